package timeline

import (
	"reflect"
	"testing"
	"time"

	"github.com/fixithostel/fixit/internal/database"
)

var t0 = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func entry(status database.IssueStatus, offset time.Duration) database.StatusHistoryEntry {
	return database.StatusHistoryEntry{Status: status, Timestamp: t0.Add(offset)}
}

func TestBuild_ResolvedScenario(t *testing.T) {
	history := []database.StatusHistoryEntry{
		entry(database.IssueStatusReported, 0),
		{Status: database.IssueStatusAssigned, Timestamp: t0.Add(2 * time.Hour), AssignedTo: "caretaker-7"},
		{Status: database.IssueStatusResolved, Timestamp: t0.Add(5 * time.Hour), Remarks: "Replaced the fuse"},
	}

	tl := Build(history)

	wantCompleted := map[database.IssueStatus]bool{
		database.IssueStatusReported:   true,
		database.IssueStatusAssigned:   true,
		database.IssueStatusInProgress: false,
		database.IssueStatusResolved:   true,
		database.IssueStatusClosed:     false,
	}
	if len(tl.Steps) != len(CanonicalStatuses) {
		t.Fatalf("expected %d steps, got %d", len(CanonicalStatuses), len(tl.Steps))
	}
	for i, step := range tl.Steps {
		if step.Status != CanonicalStatuses[i] {
			t.Errorf("step %d status = %q, want %q", i, step.Status, CanonicalStatuses[i])
		}
		if step.Completed != wantCompleted[step.Status] {
			t.Errorf("step %q completed = %v, want %v", step.Status, step.Completed, wantCompleted[step.Status])
		}
		if !step.Completed && step.Timestamp != nil {
			t.Errorf("pending step %q should have no timestamp", step.Status)
		}
	}

	if tl.Steps[1].AssignedTo != "caretaker-7" {
		t.Errorf("assigned step assignee = %q", tl.Steps[1].AssignedTo)
	}
	if tl.Steps[3].Remarks != "Replaced the fuse" {
		t.Errorf("resolved step remarks = %q", tl.Steps[3].Remarks)
	}

	if tl.Summary == nil {
		t.Fatal("expected a summary")
	}
	if tl.Summary.TotalUpdates != 3 {
		t.Errorf("total updates = %d, want 3", tl.Summary.TotalUpdates)
	}
	if tl.Summary.CurrentStatus != database.IssueStatusResolved {
		t.Errorf("current status = %q, want Resolved", tl.Summary.CurrentStatus)
	}
	if tl.Summary.DurationHours == nil || *tl.Summary.DurationHours != 5 {
		t.Errorf("duration hours = %v, want 5", tl.Summary.DurationHours)
	}
}

func TestBuild_OrderIndependent(t *testing.T) {
	ordered := []database.StatusHistoryEntry{
		entry(database.IssueStatusReported, 0),
		entry(database.IssueStatusAssigned, time.Hour),
		entry(database.IssueStatusInProgress, 90*time.Minute),
		entry(database.IssueStatusClosed, 26*time.Hour),
	}
	shuffled := []database.StatusHistoryEntry{ordered[2], ordered[0], ordered[3], ordered[1]}

	a, b := Build(ordered), Build(shuffled)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("timeline depends on input order:\n%+v\n%+v", a, b)
	}
	if a.Summary.CurrentStatus != database.IssueStatusClosed {
		t.Errorf("current status = %q, want Closed", a.Summary.CurrentStatus)
	}
	if got := CurrentStatus(shuffled); got != database.IssueStatusClosed {
		t.Errorf("CurrentStatus() = %q, want Closed", got)
	}
}

func TestBuild_Idempotent(t *testing.T) {
	history := []database.StatusHistoryEntry{
		entry(database.IssueStatusAssigned, time.Hour),
		entry(database.IssueStatusReported, 0),
	}
	first := Build(history)
	second := Build(history)
	if !reflect.DeepEqual(first, second) {
		t.Error("repeated builds differ")
	}
	if history[0].Status != database.IssueStatusAssigned {
		t.Error("Build must not reorder the caller's slice")
	}
}

func TestBuild_EmptyHistory(t *testing.T) {
	tl := Build(nil)

	if tl.Summary != nil {
		t.Errorf("expected no summary, got %+v", tl.Summary)
	}
	for _, step := range tl.Steps {
		if step.Completed {
			t.Errorf("step %q should be pending", step.Status)
		}
	}
	if CurrentStatus(nil) != "" {
		t.Error("empty history has no current status")
	}
}

func TestBuild_SingleEntryHasNoDuration(t *testing.T) {
	tl := Build([]database.StatusHistoryEntry{entry(database.IssueStatusReported, 0)})

	if tl.Summary == nil {
		t.Fatal("expected a summary")
	}
	if tl.Summary.TotalUpdates != 1 {
		t.Errorf("total updates = %d, want 1", tl.Summary.TotalUpdates)
	}
	if tl.Summary.DurationHours != nil {
		t.Errorf("duration should be absent, got %d", *tl.Summary.DurationHours)
	}
}

func TestBuild_NonCanonicalCurrentStatus(t *testing.T) {
	tl := Build([]database.StatusHistoryEntry{
		entry(database.IssueStatusReported, 0),
		entry(database.IssueStatusMerged, 30*time.Minute),
	})

	if tl.Summary.CurrentStatus != database.IssueStatusMerged {
		t.Errorf("current status = %q, want Merged", tl.Summary.CurrentStatus)
	}
	for _, step := range tl.Steps {
		if step.Status == database.IssueStatusMerged {
			t.Error("Merged is not a canonical step")
		}
	}
	if *tl.Summary.DurationHours != 1 {
		t.Errorf("30 minutes should round up to 1 hour, got %d", *tl.Summary.DurationHours)
	}
}

func TestBuild_SkippedStepsUseMembership(t *testing.T) {
	tl := Build([]database.StatusHistoryEntry{
		entry(database.IssueStatusReported, 0),
		entry(database.IssueStatusResolved, time.Hour),
	})

	if tl.Steps[1].Completed || tl.Steps[2].Completed {
		t.Error("Assigned and In Progress were never reached")
	}
	if !tl.Steps[3].Completed {
		t.Error("Resolved should be completed even though earlier steps were skipped")
	}
}

func TestBuild_RepeatedStatusUsesLatestEntry(t *testing.T) {
	tl := Build([]database.StatusHistoryEntry{
		entry(database.IssueStatusReported, 0),
		{Status: database.IssueStatusAssigned, Timestamp: t0.Add(time.Hour), AssignedTo: "first"},
		entry(database.IssueStatusMerged, 2*time.Hour),
		{Status: database.IssueStatusAssigned, Timestamp: t0.Add(3 * time.Hour), AssignedTo: "second"},
	})

	step := tl.Steps[1]
	if step.AssignedTo != "second" {
		t.Errorf("assignee = %q, want the most recent entry", step.AssignedTo)
	}
	if !step.Timestamp.Equal(t0.Add(3 * time.Hour)) {
		t.Errorf("timestamp = %v, want the most recent entry", step.Timestamp)
	}
}

func TestElapsedHours(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want int
	}{
		{"zero", 0, 0},
		{"exact", 3 * time.Hour, 3},
		{"one second over", 3*time.Hour + time.Second, 4},
		{"under an hour", 10 * time.Minute, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ElapsedHours(t0, t0.Add(tt.d)); got != tt.want {
				t.Errorf("ElapsedHours() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFirstReached(t *testing.T) {
	history := []database.StatusHistoryEntry{
		entry(database.IssueStatusResolved, 4*time.Hour),
		entry(database.IssueStatusReported, 0),
		entry(database.IssueStatusResolved, 2*time.Hour),
	}

	ts, ok := FirstReached(history, database.IssueStatusResolved)
	if !ok || !ts.Equal(t0.Add(2*time.Hour)) {
		t.Errorf("FirstReached() = %v, %v", ts, ok)
	}
	if _, ok := FirstReached(history, database.IssueStatusClosed); ok {
		t.Error("Closed was never reached")
	}
}
