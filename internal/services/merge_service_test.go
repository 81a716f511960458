package services

import (
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/fixithostel/fixit/internal/database"
	"github.com/fixithostel/fixit/internal/testhelpers"
	"github.com/fixithostel/fixit/internal/timeline"
)

func newIssue(t *testing.T, db *gorm.DB, reporter string, status database.IssueStatus) *database.Issue {
	t.Helper()
	return testhelpers.NewIssueBuilder().WithReporter(reporter).WithStatus(status).Create(t, db)
}

func TestMergeService_MergeScenario(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := NewMergeService(db)

	p := newIssue(t, db, "alice", database.IssueStatusInProgress)
	d1 := newIssue(t, db, "bob", database.IssueStatusReported)
	d2 := newIssue(t, db, "alice", database.IssueStatusAssigned)

	record, err := svc.Merge(p.ID, []string{d1.ID, d2.ID}, "caretaker-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if record.PrimaryIssueID != p.ID {
		t.Errorf("primary = %s, want %s", record.PrimaryIssueID, p.ID)
	}
	ids := record.LinkedIssueIDs()
	if len(ids) != 2 || ids[0] != d1.ID || ids[1] != d2.ID {
		t.Errorf("linked ids = %v", ids)
	}
	if len(record.AllReporters) != 2 || record.AllReporters[0] != "alice" || record.AllReporters[1] != "bob" {
		t.Errorf("all reporters = %v, want [alice bob]", record.AllReporters)
	}
	if record.MergedBy != "caretaker-1" || record.MergedAt.IsZero() {
		t.Errorf("unexpected stamp: by=%q at=%v", record.MergedBy, record.MergedAt)
	}
	if record.Links[0].ReportedBy != "bob" || record.Links[0].Title == "" {
		t.Errorf("snapshot not captured: %+v", record.Links[0])
	}

	primary := testhelpers.MustReload(t, db, p.ID)
	if primary.MergeID == nil || *primary.MergeID != record.ID {
		t.Errorf("primary merge id = %v, want %s", primary.MergeID, record.ID)
	}
	if primary.Status != database.IssueStatusInProgress {
		t.Errorf("primary status changed to %q", primary.Status)
	}

	for _, id := range []string{d1.ID, d2.ID} {
		dup := testhelpers.MustReload(t, db, id)
		if dup.Status != database.IssueStatusMerged {
			t.Errorf("duplicate %s status = %q, want Merged", id, dup.Status)
		}
		if dup.MergeID != nil {
			t.Errorf("duplicate %s must not carry a merge id", id)
		}
		if timeline.CurrentStatus(dup.StatusHistory) != database.IssueStatusMerged {
			t.Errorf("duplicate %s history does not end in Merged", id)
		}
	}
}

func TestMergeService_UnmergeRestoresPriorStatuses(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := NewMergeService(db)

	p := newIssue(t, db, "alice", database.IssueStatusInProgress)
	d1 := newIssue(t, db, "bob", database.IssueStatusReported)
	d2 := newIssue(t, db, "carol", database.IssueStatusAssigned)

	record, err := svc.Merge(p.ID, []string{d1.ID, d2.ID}, "caretaker-1")
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	if _, err := svc.Unmerge(record.ID, "caretaker-2"); err != nil {
		t.Fatalf("unmerge failed: %v", err)
	}

	want := map[string]database.IssueStatus{
		d1.ID: database.IssueStatusReported,
		d2.ID: database.IssueStatusAssigned,
	}
	for id, status := range want {
		got := testhelpers.MustReload(t, db, id)
		if got.Status != status {
			t.Errorf("issue %s status = %q, want %q", id, got.Status, status)
		}
		if timeline.CurrentStatus(got.StatusHistory) != status {
			t.Errorf("issue %s history does not end in %q", id, status)
		}
	}

	primary := testhelpers.MustReload(t, db, p.ID)
	if primary.MergeID != nil {
		t.Errorf("primary merge id should be cleared, got %v", *primary.MergeID)
	}

	if _, err := svc.GetLinkedIssues(record.ID); KindOf(err) != ErrorKindNotFound {
		t.Errorf("record should be gone, got %v", err)
	}
}

func TestMergeService_UnmergeTwiceIsNotFound(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := NewMergeService(db)

	p := newIssue(t, db, "alice", database.IssueStatusReported)
	d := newIssue(t, db, "bob", database.IssueStatusReported)

	record, err := svc.Merge(p.ID, []string{d.ID}, "caretaker-1")
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if _, err := svc.Unmerge(record.ID, "caretaker-1"); err != nil {
		t.Fatalf("unmerge failed: %v", err)
	}

	_, err = svc.Unmerge(record.ID, "caretaker-1")
	if KindOf(err) != ErrorKindNotFound {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestMergeService_UnmergeFallsBackToReported(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := NewMergeService(db)

	p := newIssue(t, db, "alice", database.IssueStatusReported)
	d := newIssue(t, db, "bob", database.IssueStatusAssigned)

	record, err := svc.Merge(p.ID, []string{d.ID}, "caretaker-1")
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	// Legacy rows carry no prior status
	db.Model(&database.MergeLink{}).Where("merge_id = ?", record.ID).Update("prior_status", "")

	if _, err := svc.Unmerge(record.ID, "caretaker-1"); err != nil {
		t.Fatalf("unmerge failed: %v", err)
	}
	if got := testhelpers.MustReload(t, db, d.ID); got.Status != database.IssueStatusReported {
		t.Errorf("status = %q, want Reported", got.Status)
	}
}

func TestMergeService_InvalidArguments(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := NewMergeService(db)
	p := newIssue(t, db, "alice", database.IssueStatusReported)

	tests := []struct {
		name      string
		primaryID string
		dupIDs    []string
		actor     string
	}{
		{"empty duplicate set", p.ID, nil, "caretaker-1"},
		{"only blank ids", p.ID, []string{"", "  "}, "caretaker-1"},
		{"primary in duplicate set", p.ID, []string{p.ID}, "caretaker-1"},
		{"missing primary id", "", []string{"x"}, "caretaker-1"},
		{"missing actor", p.ID, []string{"x"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Merge(tt.primaryID, tt.dupIDs, tt.actor)
			if KindOf(err) != ErrorKindInvalidArgument {
				t.Errorf("expected invalid_argument, got %v", err)
			}
		})
	}

	var count int64
	db.Model(&database.MergeRecord{}).Count(&count)
	if count != 0 {
		t.Errorf("no record should exist, found %d", count)
	}
}

func TestMergeService_UnknownIssues(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := NewMergeService(db)
	p := newIssue(t, db, "alice", database.IssueStatusReported)
	d := newIssue(t, db, "bob", database.IssueStatusReported)

	if _, err := svc.Merge("missing", []string{d.ID}, "c"); KindOf(err) != ErrorKindNotFound {
		t.Errorf("unknown primary: expected not_found, got %v", err)
	}
	if _, err := svc.Merge(p.ID, []string{d.ID, "missing"}, "c"); KindOf(err) != ErrorKindNotFound {
		t.Errorf("unknown duplicate: expected not_found, got %v", err)
	}

	if got := testhelpers.MustReload(t, db, d.ID); got.Status != database.IssueStatusReported {
		t.Errorf("known duplicate was mutated to %q", got.Status)
	}
}

func TestMergeService_AlreadyLinkedDuplicateConflicts(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := NewMergeService(db)

	p1 := newIssue(t, db, "alice", database.IssueStatusReported)
	p2 := newIssue(t, db, "carol", database.IssueStatusReported)
	d := newIssue(t, db, "bob", database.IssueStatusReported)
	other := newIssue(t, db, "dave", database.IssueStatusReported)

	first, err := svc.Merge(p1.ID, []string{d.ID}, "c")
	if err != nil {
		t.Fatalf("first merge failed: %v", err)
	}

	_, err = svc.Merge(p2.ID, []string{other.ID, d.ID}, "c")
	if KindOf(err) != ErrorKindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	if got := testhelpers.MustReload(t, db, other.ID); got.Status != database.IssueStatusReported {
		t.Errorf("other duplicate should be untouched, status %q", got.Status)
	}
	if got := testhelpers.MustReload(t, db, p2.ID); got.MergeID != nil {
		t.Error("second primary should have no merge id")
	}
	rec, err := svc.GetLinkedIssues(first.ID)
	if err != nil || len(rec.Links) != 1 {
		t.Errorf("first record should be unchanged: %v %+v", err, rec)
	}
}

func TestMergeService_RoleConflicts(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := NewMergeService(db)

	p := newIssue(t, db, "alice", database.IssueStatusReported)
	d := newIssue(t, db, "bob", database.IssueStatusReported)
	if _, err := svc.Merge(p.ID, []string{d.ID}, "c"); err != nil {
		t.Fatalf("setup merge failed: %v", err)
	}

	fresh := newIssue(t, db, "carol", database.IssueStatusReported)
	resolved := newIssue(t, db, "dave", database.IssueStatusResolved)
	closed := newIssue(t, db, "erin", database.IssueStatusClosed)

	tests := []struct {
		name      string
		primaryID string
		dupIDs    []string
	}{
		{"primary already merged into", p.ID, []string{fresh.ID}},
		{"primary is a linked issue", d.ID, []string{fresh.ID}},
		{"duplicate is a primary", fresh.ID, []string{p.ID}},
		{"duplicate is resolved", fresh.ID, []string{resolved.ID}},
		{"duplicate is closed", fresh.ID, []string{closed.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Merge(tt.primaryID, tt.dupIDs, "c")
			if KindOf(err) != ErrorKindConflict {
				t.Errorf("expected conflict, got %v", err)
			}
		})
	}

	var count int64
	db.Model(&database.MergeRecord{}).Count(&count)
	if count != 1 {
		t.Errorf("expected only the setup record, found %d", count)
	}
}

func TestMergeService_DuplicateIDsCollapsed(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := NewMergeService(db)

	p := newIssue(t, db, "alice", database.IssueStatusReported)
	d := newIssue(t, db, "alice", database.IssueStatusReported)

	record, err := svc.Merge(p.ID, []string{d.ID, d.ID, " " + d.ID}, "c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(record.Links) != 1 {
		t.Errorf("expected 1 link, got %d", len(record.Links))
	}
	if len(record.AllReporters) != 1 {
		t.Errorf("all reporters should collapse to [alice], got %v", record.AllReporters)
	}
}

func TestMergeService_ConcurrentMergesOneWinner(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := NewMergeService(db)

	d := newIssue(t, db, "bob", database.IssueStatusReported)
	const contenders = 5
	primaries := make([]*database.Issue, contenders)
	for i := range primaries {
		primaries[i] = newIssue(t, db, "alice", database.IssueStatusReported)
	}

	var wg sync.WaitGroup
	errs := make([]error, contenders)
	testhelpers.MustCompleteWithin(t, 10*time.Second, func() {
		for i := range primaries {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = svc.Merge(primaries[i].ID, []string{d.ID}, "c")
			}(i)
		}
		wg.Wait()
	})

	winners := 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case KindOf(err) != ErrorKindConflict:
			t.Errorf("loser should see conflict, got %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}

	var links int64
	db.Model(&database.MergeLink{}).Where("issue_id = ?", d.ID).Count(&links)
	if links != 1 {
		t.Errorf("duplicate linked %d times", links)
	}
	var primaryCount int64
	db.Model(&database.Issue{}).Where("merge_id IS NOT NULL").Count(&primaryCount)
	if primaryCount != 1 {
		t.Errorf("expected one primary, got %d", primaryCount)
	}
}

// interfereBeforeUpdate runs change once, inside the merge transaction, just
// before the first update of issues whose assignments contain column.
func interfereBeforeUpdate(t *testing.T, db *gorm.DB, column string, change func(tx *gorm.DB) error) {
	t.Helper()
	var once sync.Once
	err := db.Callback().Update().Before("gorm:update").Register("test:interfere_"+column, func(tx *gorm.DB) {
		if tx.Statement.Table != "issues" {
			return
		}
		dest, ok := tx.Statement.Dest.(map[string]interface{})
		if !ok {
			return
		}
		if _, hit := dest[column]; !hit {
			return
		}
		once.Do(func() {
			if err := change(tx.Session(&gorm.Session{NewDB: true})); err != nil {
				t.Errorf("interfering write failed: %v", err)
			}
		})
	})
	if err != nil {
		t.Fatalf("failed to register callback: %v", err)
	}
}

func TestMergeService_ClaimLostAfterLoadRollsBack(t *testing.T) {
	tests := []struct {
		name   string
		column string
		loser  func(primary, dup *database.Issue) string
		change func(primary, dup *database.Issue) func(tx *gorm.DB) error
	}{
		{
			name:   "duplicate updated after load",
			column: "status",
			loser:  func(_, dup *database.Issue) string { return dup.ID },
			change: func(_, dup *database.Issue) func(tx *gorm.DB) error {
				return func(tx *gorm.DB) error {
					return tx.Exec("UPDATE issues SET revision = revision + 1 WHERE id = ?", dup.ID).Error
				}
			},
		},
		{
			name:   "primary claimed after load",
			column: "merge_id",
			loser:  func(primary, _ *database.Issue) string { return primary.ID },
			change: func(primary, _ *database.Issue) func(tx *gorm.DB) error {
				return func(tx *gorm.DB) error {
					return tx.Exec("UPDATE issues SET merge_id = ? WHERE id = ?", "other-merge", primary.ID).Error
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testhelpers.SetupTestDB(t)
			svc := NewMergeService(db)

			p := newIssue(t, db, "alice", database.IssueStatusInProgress)
			d := newIssue(t, db, "bob", database.IssueStatusAssigned)
			interfereBeforeUpdate(t, db, tt.column, tt.change(p, d))

			_, err := svc.Merge(p.ID, []string{d.ID}, "caretaker-1")
			if KindOf(err) != ErrorKindConflict {
				t.Fatalf("expected conflict, got %v", err)
			}
			if loser := tt.loser(p, d); !strings.Contains(err.Error(), loser) {
				t.Errorf("conflict %q should name issue %s", err.Error(), loser)
			}

			var records, links int64
			db.Model(&database.MergeRecord{}).Count(&records)
			db.Model(&database.MergeLink{}).Count(&links)
			if records != 0 || links != 0 {
				t.Errorf("rolled back merge left %d record(s) and %d link(s)", records, links)
			}

			primary := testhelpers.MustReload(t, db, p.ID)
			if primary.MergeID != nil {
				t.Errorf("primary merge id = %q, want none", *primary.MergeID)
			}
			dup := testhelpers.MustReload(t, db, d.ID)
			if dup.Status != database.IssueStatusAssigned || len(dup.StatusHistory) != len(d.StatusHistory) {
				t.Errorf("duplicate changed: status=%q history=%+v", dup.Status, dup.StatusHistory)
			}
		})
	}
}

func TestMergeService_NoIssueIsPrimaryAndLinked(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := NewMergeService(db)

	a := newIssue(t, db, "alice", database.IssueStatusReported)
	b := newIssue(t, db, "bob", database.IssueStatusReported)
	c := newIssue(t, db, "carol", database.IssueStatusReported)

	if _, err := svc.Merge(a.ID, []string{b.ID}, "x"); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	// Chaining a primary under another primary must fail
	if _, err := svc.Merge(c.ID, []string{a.ID}, "x"); KindOf(err) != ErrorKindConflict {
		t.Errorf("expected conflict, got %v", err)
	}

	var issues []database.Issue
	db.Find(&issues)
	for _, issue := range issues {
		if issue.IsPrimary() && issue.IsLinked() {
			t.Errorf("issue %s is both primary and linked", issue.ID)
		}
	}
}

func TestMergeService_GetMergeForIssue(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := NewMergeService(db)

	p := newIssue(t, db, "alice", database.IssueStatusReported)
	d := newIssue(t, db, "bob", database.IssueStatusReported)
	standalone := newIssue(t, db, "carol", database.IssueStatusReported)

	record, err := svc.Merge(p.ID, []string{d.ID}, "x")
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	for _, id := range []string{p.ID, d.ID} {
		got, err := svc.GetMergeForIssue(testhelpers.MustReload(t, db, id))
		if err != nil || got == nil || got.ID != record.ID {
			t.Errorf("issue %s: got %v, %v", id, got, err)
		}
	}

	got, err := svc.GetMergeForIssue(standalone)
	if err != nil || got != nil {
		t.Errorf("standalone issue should have no record, got %v, %v", got, err)
	}
}

func TestMergeService_GetLinkedIssuesUnknown(t *testing.T) {
	svc := NewMergeService(testhelpers.SetupTestDB(t))

	if _, err := svc.GetLinkedIssues("nope"); KindOf(err) != ErrorKindNotFound {
		t.Errorf("expected not_found, got %v", err)
	}
	if _, err := svc.GetLinkedIssues(""); KindOf(err) != ErrorKindInvalidArgument {
		t.Errorf("expected invalid_argument, got %v", err)
	}
}
