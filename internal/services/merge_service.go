package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/fixithostel/fixit/internal/database"
	"github.com/fixithostel/fixit/internal/utils"
)

// snapshotTitleLength bounds the title kept for each linked issue
const snapshotTitleLength = 80

// MergeService links duplicate issues to a primary issue and reverses those links
type MergeService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewMergeService creates a new merge service
func NewMergeService(db *gorm.DB) *MergeService {
	return &MergeService{db: db, now: time.Now}
}

// Merge folds duplicateIDs into primaryID on behalf of actorID. Every
// duplicate is forced to Merged and the primary receives the merge id. The
// whole operation runs in one transaction: either every issue is linked or
// nothing changes.
func (s *MergeService) Merge(primaryID string, duplicateIDs []string, actorID string) (*database.MergeRecord, error) {
	primaryID = strings.TrimSpace(primaryID)
	if primaryID == "" {
		return nil, InvalidArgument("primary issue id is required")
	}
	if strings.TrimSpace(actorID) == "" {
		return nil, InvalidArgument("acting user is required")
	}

	dupIDs := uniqueIDs(duplicateIDs)
	if len(dupIDs) == 0 {
		return nil, InvalidArgument("at least one duplicate issue is required")
	}
	for _, id := range dupIDs {
		if id == primaryID {
			return nil, InvalidArgument("issue %s cannot be merged into itself", primaryID)
		}
	}

	var record *database.MergeRecord
	err := s.db.Transaction(func(tx *gorm.DB) error {
		primary, err := database.GetIssue(tx, primaryID)
		if err != nil {
			return storeError(err, fmt.Sprintf("issue %s", primaryID))
		}

		duplicates, err := s.loadDuplicates(tx, dupIDs)
		if err != nil {
			return err
		}

		if err := checkMergeable(primary, duplicates); err != nil {
			return err
		}

		now := s.now()
		record = &database.MergeRecord{
			PrimaryIssueID: primary.ID,
			AllReporters:   aggregateReporters(primary, duplicates),
			MergedBy:       actorID,
			MergedAt:       now,
			Links:          make([]database.MergeLink, 0, len(duplicates)),
		}
		for _, dup := range duplicates {
			record.Links = append(record.Links, database.MergeLink{
				IssueID:        dup.ID,
				Title:          utils.TruncateText(dup.Description, snapshotTitleLength),
				ReportedBy:     dup.ReportedBy,
				IssueCreatedAt: dup.CreatedAt,
				PriorStatus:    dup.Status,
			})
		}

		if err := database.CreateMergeRecord(tx, record); err != nil {
			return storeError(err, "merge record")
		}

		claimed, err := database.ClaimPrimary(tx, primary.ID, record.ID)
		if err != nil {
			return storeError(err, fmt.Sprintf("issue %s", primary.ID))
		}
		if !claimed {
			return Conflict("issue %s was merged concurrently", primary.ID)
		}

		for i := range duplicates {
			entry := database.StatusHistoryEntry{
				Status:    database.IssueStatusMerged,
				Timestamp: now,
				Remarks:   "Merged into " + primary.ID,
				UpdatedBy: actorID,
			}
			claimed, err := database.ClaimDuplicate(tx, &duplicates[i], entry)
			if err != nil {
				return storeError(err, fmt.Sprintf("issue %s", duplicates[i].ID))
			}
			if !claimed {
				return Conflict("issue %s was modified or merged concurrently; reload and retry", duplicates[i].ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Merged %d issue(s) into %s (merge %s, by %s)", len(record.Links), record.PrimaryIssueID, record.ID, actorID)
	return record, nil
}

// Unmerge reverses a merge: every linked issue goes back to the status it
// had before the merge, the primary loses its merge id and the record is
// deleted. Unmerging an unknown or already reversed merge is not_found.
func (s *MergeService) Unmerge(mergeID, actorID string) (*database.MergeRecord, error) {
	if strings.TrimSpace(mergeID) == "" {
		return nil, InvalidArgument("merge id is required")
	}
	if strings.TrimSpace(actorID) == "" {
		return nil, InvalidArgument("acting user is required")
	}

	var record *database.MergeRecord
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		record, err = database.GetMergeRecord(tx, mergeID)
		if err != nil {
			return storeError(err, fmt.Sprintf("merge %s", mergeID))
		}

		now := s.now()
		for _, link := range record.Links {
			issue, err := database.GetIssue(tx, link.IssueID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					log.Printf("Warning: linked issue %s of merge %s no longer exists", link.IssueID, mergeID)
					continue
				}
				return storeError(err, fmt.Sprintf("issue %s", link.IssueID))
			}

			entry := database.StatusHistoryEntry{
				Status:    restoredStatus(link),
				Timestamp: now,
				Remarks:   "Unmerged from " + record.PrimaryIssueID,
				UpdatedBy: actorID,
			}
			released, err := database.ReleaseDuplicate(tx, issue, entry)
			if err != nil {
				return storeError(err, fmt.Sprintf("issue %s", issue.ID))
			}
			if !released {
				log.Printf("Warning: linked issue %s of merge %s was not in Merged status (found %s)", issue.ID, mergeID, issue.Status)
			}
		}

		if err := database.UpdateIssueMergeID(tx, record.PrimaryIssueID, nil); err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return storeError(err, fmt.Sprintf("issue %s", record.PrimaryIssueID))
			}
			log.Printf("Warning: primary issue %s of merge %s no longer exists", record.PrimaryIssueID, mergeID)
		}

		if err := database.DeleteMergeRecord(tx, mergeID); err != nil {
			return storeError(err, fmt.Sprintf("merge %s", mergeID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Unmerged %d issue(s) from %s (merge %s, by %s)", len(record.Links), record.PrimaryIssueID, mergeID, actorID)
	return record, nil
}

// GetLinkedIssues returns the merge record with its linked issue snapshots
func (s *MergeService) GetLinkedIssues(mergeID string) (*database.MergeRecord, error) {
	if strings.TrimSpace(mergeID) == "" {
		return nil, InvalidArgument("merge id is required")
	}
	record, err := database.GetMergeRecord(s.db, mergeID)
	if err != nil {
		return nil, storeError(err, fmt.Sprintf("merge %s", mergeID))
	}
	return record, nil
}

// GetMergeForIssue returns the record an issue takes part in, either as the
// primary or as a linked issue. It returns nil for a standalone issue.
func (s *MergeService) GetMergeForIssue(issue *database.Issue) (*database.MergeRecord, error) {
	if issue.IsPrimary() {
		return s.GetLinkedIssues(*issue.MergeID)
	}
	if !issue.IsLinked() {
		return nil, nil
	}

	link, err := database.GetMergeLinkByIssue(s.db, issue.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storeError(err, "merge link")
	}
	return s.GetLinkedIssues(link.MergeID)
}

// ListMerges returns every active merge record
func (s *MergeService) ListMerges() ([]database.MergeRecord, error) {
	records, err := database.ListMergeRecords(s.db)
	if err != nil {
		return nil, storeError(err, "merge records")
	}
	return records, nil
}

// loadDuplicates fetches the duplicates in request order, failing with
// not_found when any is missing
func (s *MergeService) loadDuplicates(tx *gorm.DB, ids []string) ([]database.Issue, error) {
	found, err := database.GetIssuesByIDs(tx, ids)
	if err != nil {
		return nil, storeError(err, "issues")
	}

	byID := make(map[string]database.Issue, len(found))
	for _, issue := range found {
		byID[issue.ID] = issue
	}

	ordered := make([]database.Issue, 0, len(ids))
	var missing []string
	for _, id := range ids {
		issue, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		ordered = append(ordered, issue)
	}
	if len(missing) > 0 {
		return nil, NotFound("issue(s) not found: %s", strings.Join(missing, ", "))
	}
	return ordered, nil
}

// checkMergeable enforces the role rules: the primary must be standalone and
// every duplicate must be a standalone open issue.
func checkMergeable(primary *database.Issue, duplicates []database.Issue) error {
	if primary.IsPrimary() {
		return Conflict("issue %s already has an active merge %s", primary.ID, *primary.MergeID)
	}
	if primary.IsLinked() {
		return Conflict("issue %s is itself merged into another issue", primary.ID)
	}

	for _, dup := range duplicates {
		switch {
		case dup.IsLinked():
			return Conflict("issue %s is already merged into another issue", dup.ID)
		case dup.IsPrimary():
			return Conflict("issue %s is the primary of merge %s", dup.ID, *dup.MergeID)
		case !dup.Status.IsOpen():
			return Conflict("issue %s is %s and cannot be merged", dup.ID, dup.Status)
		}
	}
	return nil
}

// aggregateReporters returns the distinct reporters of the primary and its
// duplicates, primary first, in first-seen order
func aggregateReporters(primary *database.Issue, duplicates []database.Issue) database.StringList {
	reporters := database.StringList{primary.ReportedBy}
	for _, dup := range duplicates {
		if !reporters.Contains(dup.ReportedBy) {
			reporters = append(reporters, dup.ReportedBy)
		}
	}
	return reporters
}

// restoredStatus is the status a linked issue returns to on unmerge
func restoredStatus(link database.MergeLink) database.IssueStatus {
	if link.PriorStatus.IsOpen() {
		return link.PriorStatus
	}
	return database.IssueStatusReported
}

// uniqueIDs trims ids, drops blanks and collapses repeats, keeping order
func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
