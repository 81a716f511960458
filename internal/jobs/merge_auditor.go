package jobs

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/fixithostel/fixit/internal/database"
)

// Problems reported by the merge auditor
const (
	ProblemLinkedNotMerged   = "linked_not_merged"
	ProblemLinkedHasMergeID  = "linked_has_merge_id"
	ProblemLinkedMissing     = "linked_missing"
	ProblemPrimaryMissing    = "primary_missing"
	ProblemPrimaryMismatch   = "primary_merge_id_mismatch"
	ProblemReportersMismatch = "reporters_out_of_sync"
	ProblemOrphanMerged      = "orphan_merged_issue"
)

// Finding is one merge integrity violation
type Finding struct {
	MergeID string `json:"merge_id,omitempty"`
	IssueID string `json:"issue_id"`
	Problem string `json:"problem"`
	Detail  string `json:"detail"`
}

func (f Finding) String() string {
	return fmt.Sprintf("merge=%s issue=%s %s: %s", f.MergeID, f.IssueID, f.Problem, f.Detail)
}

// MergeAuditor periodically checks that merge records and the issues they
// reference agree with each other. It only reports; it never repairs.
type MergeAuditor struct {
	db   *gorm.DB
	cron *cron.Cron

	mu           sync.RWMutex
	lastRun      time.Time
	lastFindings []Finding
}

// NewMergeAuditor creates a new merge auditor
func NewMergeAuditor(db *gorm.DB) *MergeAuditor {
	return &MergeAuditor{db: db}
}

// Audit scans every merge record and returns the violations it finds
func (a *MergeAuditor) Audit() ([]Finding, error) {
	records, err := database.ListMergeRecords(a.db)
	if err != nil {
		return nil, fmt.Errorf("failed to load merge records: %w", err)
	}

	var findings []Finding
	linked := make(map[string]bool)
	for i := range records {
		recordFindings, err := a.auditRecord(&records[i])
		if err != nil {
			return nil, err
		}
		findings = append(findings, recordFindings...)
		for _, l := range records[i].Links {
			linked[l.IssueID] = true
		}
	}

	var merged []database.Issue
	if err := a.db.Select("id").Where("status = ?", database.IssueStatusMerged).Find(&merged).Error; err != nil {
		return nil, fmt.Errorf("failed to load merged issues: %w", err)
	}
	for _, issue := range merged {
		if !linked[issue.ID] {
			findings = append(findings, Finding{
				IssueID: issue.ID,
				Problem: ProblemOrphanMerged,
				Detail:  "issue is Merged but no merge record links it",
			})
		}
	}

	a.mu.Lock()
	a.lastRun = time.Now()
	a.lastFindings = findings
	a.mu.Unlock()

	return findings, nil
}

func (a *MergeAuditor) auditRecord(record *database.MergeRecord) ([]Finding, error) {
	ids := append([]string{record.PrimaryIssueID}, record.LinkedIssueIDs()...)
	issues, err := database.GetIssuesByIDs(a.db, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load issues of merge %s: %w", record.ID, err)
	}
	byID := make(map[string]*database.Issue, len(issues))
	for i := range issues {
		byID[issues[i].ID] = &issues[i]
	}

	var findings []Finding
	add := func(issueID, problem, format string, args ...interface{}) {
		findings = append(findings, Finding{
			MergeID: record.ID,
			IssueID: issueID,
			Problem: problem,
			Detail:  fmt.Sprintf(format, args...),
		})
	}

	expected := map[string]bool{}
	primary, ok := byID[record.PrimaryIssueID]
	switch {
	case !ok:
		add(record.PrimaryIssueID, ProblemPrimaryMissing, "primary issue no longer exists")
	case primary.MergeID == nil || *primary.MergeID != record.ID:
		got := "<nil>"
		if primary.MergeID != nil {
			got = *primary.MergeID
		}
		add(primary.ID, ProblemPrimaryMismatch, "primary merge id is %s", got)
	}
	if ok {
		expected[primary.ReportedBy] = true
	}

	for _, link := range record.Links {
		expected[link.ReportedBy] = true
		issue, ok := byID[link.IssueID]
		if !ok {
			add(link.IssueID, ProblemLinkedMissing, "linked issue no longer exists")
			continue
		}
		if issue.Status != database.IssueStatusMerged {
			add(issue.ID, ProblemLinkedNotMerged, "linked issue has status %s", issue.Status)
		}
		if issue.MergeID != nil {
			add(issue.ID, ProblemLinkedHasMergeID, "linked issue carries merge id %s", *issue.MergeID)
		}
	}

	if !sameSet(record.AllReporters, expected) {
		add(record.PrimaryIssueID, ProblemReportersMismatch, "all reporters %v, links imply %v", []string(record.AllReporters), keys(expected))
	}
	return findings, nil
}

// Start schedules the audit with a standard cron expression or descriptor
// such as "@hourly". Overlapping runs are skipped.
func (a *MergeAuditor) Start(schedule string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(schedule, a.run); err != nil {
		return fmt.Errorf("invalid audit schedule %q: %w", schedule, err)
	}
	c.Start()
	a.cron = c
	log.Printf("Merge auditor scheduled (%s)", schedule)
	return nil
}

// Stop halts the schedule and waits for a running audit to finish
func (a *MergeAuditor) Stop() {
	if a.cron == nil {
		return
	}
	<-a.cron.Stop().Done()
	log.Println("Merge auditor stopped")
}

// LastRun returns when the last audit completed and what it found
func (a *MergeAuditor) LastRun() (time.Time, []Finding) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastRun, append([]Finding(nil), a.lastFindings...)
}

func (a *MergeAuditor) run() {
	findings, err := a.Audit()
	if err != nil {
		log.Printf("Merge auditor error: %v", err)
		return
	}
	for _, f := range findings {
		log.Printf("Merge auditor: %s", f)
	}
	if len(findings) > 0 {
		log.Printf("Merge auditor: %d problem(s) found", len(findings))
	}
}

func sameSet(list []string, set map[string]bool) bool {
	seen := make(map[string]bool, len(list))
	for _, v := range list {
		if !set[v] {
			return false
		}
		seen[v] = true
	}
	return len(seen) == len(set)
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
