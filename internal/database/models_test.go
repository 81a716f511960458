package database

import (
	"testing"
	"time"
)

func TestStringList_Scan(t *testing.T) {
	tests := []struct {
		name    string
		input   interface{}
		want    int
		wantErr bool
	}{
		{name: "nil value", input: nil, want: 0},
		{name: "bytes", input: []byte(`["a","b"]`), want: 2},
		{name: "string", input: `["a"]`, want: 1},
		{name: "empty bytes", input: []byte{}, want: 0},
		{name: "invalid JSON", input: []byte(`not json`), wantErr: true},
		{name: "wrong type", input: 42, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s StringList
			err := s.Scan(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Scan() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(s) != tt.want {
				t.Errorf("Scan() len = %d, want %d", len(s), tt.want)
			}
		})
	}
}

func TestStringList_ValueNilIsEmptyArray(t *testing.T) {
	var s StringList
	v, err := s.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	if v != "[]" {
		t.Errorf("Value() = %v, want []", v)
	}
}

func TestStringList_Contains(t *testing.T) {
	s := StringList{"alice", "bob"}
	if !s.Contains("bob") {
		t.Error("expected list to contain bob")
	}
	if s.Contains("carol") {
		t.Error("expected list not to contain carol")
	}
}

func TestStatusHistory_ScanValue(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	h := StatusHistory{
		{Status: IssueStatusReported, Timestamp: ts},
		{Status: IssueStatusAssigned, Timestamp: ts.Add(time.Hour), AssignedTo: "caretaker-1"},
	}

	v, err := h.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}

	var out StatusHistory
	if err := out.Scan(v); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(out))
	}
	if out[1].AssignedTo != "caretaker-1" || !out[1].Timestamp.Equal(ts.Add(time.Hour)) {
		t.Errorf("unexpected second entry: %+v", out[1])
	}
}

func TestIssueStatus_IsValid(t *testing.T) {
	for _, s := range ValidIssueStatuses() {
		if !s.IsValid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if IssueStatus("Pending").IsValid() {
		t.Error("unknown status should be invalid")
	}
}

func TestIssueStatus_IsOpen(t *testing.T) {
	tests := []struct {
		status IssueStatus
		want   bool
	}{
		{IssueStatusReported, true},
		{IssueStatusAssigned, true},
		{IssueStatusInProgress, true},
		{IssueStatusResolved, false},
		{IssueStatusClosed, false},
		{IssueStatusMerged, false},
	}
	for _, tt := range tests {
		if got := tt.status.IsOpen(); got != tt.want {
			t.Errorf("%q.IsOpen() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestUserRole_IsStaff(t *testing.T) {
	if UserRoleStudent.IsStaff() {
		t.Error("students are not staff")
	}
	if !UserRoleCaretaker.IsStaff() || !UserRoleManagement.IsStaff() {
		t.Error("caretakers and management are staff")
	}
}

func TestIssue_BeforeCreateSeedsHistory(t *testing.T) {
	issue := &Issue{Description: "Leaking tap", Category: "Plumbing", ReportedBy: "alice"}
	if err := issue.BeforeCreate(nil); err != nil {
		t.Fatalf("BeforeCreate() error = %v", err)
	}

	if issue.ID == "" {
		t.Error("expected ID to be assigned")
	}
	if issue.Status != IssueStatusReported {
		t.Errorf("status = %q, want Reported", issue.Status)
	}
	if len(issue.StatusHistory) != 1 || issue.StatusHistory[0].Status != IssueStatusReported {
		t.Errorf("expected history seeded with Reported, got %+v", issue.StatusHistory)
	}
	if !issue.StatusHistory[0].Timestamp.Equal(issue.CreatedAt) {
		t.Error("seed entry should carry the creation time")
	}
}

func TestIssue_Roles(t *testing.T) {
	mergeID := "m-1"
	primary := Issue{MergeID: &mergeID}
	if !primary.IsPrimary() || primary.IsLinked() {
		t.Error("issue with merge id should be primary only")
	}

	linked := Issue{Status: IssueStatusMerged}
	if linked.IsPrimary() || !linked.IsLinked() {
		t.Error("merged issue should be linked only")
	}

	empty := ""
	if (&Issue{MergeID: &empty}).IsPrimary() {
		t.Error("empty merge id should not count as primary")
	}
}

func TestMergeRecord_LinkedIssueIDs(t *testing.T) {
	rec := MergeRecord{Links: []MergeLink{{IssueID: "d1"}, {IssueID: "d2"}}}
	ids := rec.LinkedIssueIDs()
	if len(ids) != 2 || ids[0] != "d1" || ids[1] != "d2" {
		t.Errorf("LinkedIssueIDs() = %v", ids)
	}
}
