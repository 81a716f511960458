package database

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// The functions in this file accept a db parameter so they can run either on
// the global connection or inside a transaction. Missing rows are reported as
// gorm.ErrRecordNotFound so callers can tell them apart from store failures.

// mergeableStatuses are the statuses a duplicate may have when it is claimed
var mergeableStatuses = []IssueStatus{
	IssueStatusReported,
	IssueStatusAssigned,
	IssueStatusInProgress,
}

// MergeableStatuses returns the statuses a duplicate issue may be merged from
func MergeableStatuses() []IssueStatus {
	out := make([]IssueStatus, len(mergeableStatuses))
	copy(out, mergeableStatuses)
	return out
}

// GetIssue retrieves a single issue by id
func GetIssue(db *gorm.DB, id string) (*Issue, error) {
	var issue Issue
	if err := db.Where("id = ?", id).First(&issue).Error; err != nil {
		return nil, err
	}
	return &issue, nil
}

// GetIssuesByIDs retrieves every issue whose id is in ids. Missing ids are
// simply absent from the result.
func GetIssuesByIDs(db *gorm.DB, ids []string) ([]Issue, error) {
	var issues []Issue
	if len(ids) == 0 {
		return issues, nil
	}
	err := db.Where("id IN ?", ids).Find(&issues).Error
	return issues, err
}

// ErrIssueLinked is returned when a write targets an issue that is merged
// into a primary. Linked issues only change through unmerge.
var ErrIssueLinked = errors.New("issue is merged into another issue")

// ErrStaleIssue is returned when the stored issue changed after the caller
// loaded it. The caller should reload and retry.
var ErrStaleIssue = errors.New("issue was modified concurrently")

// Writes that rewrite the JSON columns match on the revision the caller read
// and bump it, so two writers starting from the same copy cannot both win.
func nextRevision() clause.Expr {
	return gorm.Expr("revision + 1")
}

// UpdateIssueStatus sets the status of an issue and appends entry to its
// history. The write is refused with ErrIssueLinked while the issue is Merged
// and with ErrStaleIssue when issue is not the latest stored revision.
func UpdateIssueStatus(db *gorm.DB, issue *Issue, entry StatusHistoryEntry) error {
	history := append(StatusHistory{}, issue.StatusHistory...)
	history = append(history, entry)

	updates := map[string]interface{}{
		"status":         entry.Status,
		"status_history": history,
		"revision":       nextRevision(),
	}
	if entry.AssignedTo != "" {
		updates["assigned_to"] = entry.AssignedTo
	}

	result := db.Model(&Issue{}).
		Where("id = ? AND status <> ? AND revision = ?", issue.ID, IssueStatusMerged, issue.Revision).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return missingLinkedOrStale(db, issue.ID)
	}

	issue.Status = entry.Status
	issue.StatusHistory = history
	issue.Revision++
	if entry.AssignedTo != "" {
		assignee := entry.AssignedTo
		issue.AssignedTo = &assignee
	}
	return nil
}

// ClaimDuplicate forces an issue to Merged only if it is still mergeable, not
// a primary itself and unchanged since it was loaded. It returns false when
// another writer got there first or the issue is ineligible.
func ClaimDuplicate(db *gorm.DB, issue *Issue, entry StatusHistoryEntry) (bool, error) {
	history := append(StatusHistory{}, issue.StatusHistory...)
	history = append(history, entry)

	result := db.Model(&Issue{}).
		Where("id = ? AND status IN ? AND merge_id IS NULL AND revision = ?", issue.ID, mergeableStatuses, issue.Revision).
		Updates(map[string]interface{}{
			"status":         IssueStatusMerged,
			"status_history": history,
			"revision":       nextRevision(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected != 1 {
		return false, nil
	}

	issue.Status = IssueStatusMerged
	issue.StatusHistory = history
	issue.Revision++
	return true, nil
}

// ReleaseDuplicate restores a linked issue to status, but only while it is
// still Merged and unchanged since it was loaded.
func ReleaseDuplicate(db *gorm.DB, issue *Issue, entry StatusHistoryEntry) (bool, error) {
	history := append(StatusHistory{}, issue.StatusHistory...)
	history = append(history, entry)

	result := db.Model(&Issue{}).
		Where("id = ? AND status = ? AND revision = ?", issue.ID, IssueStatusMerged, issue.Revision).
		Updates(map[string]interface{}{
			"status":         entry.Status,
			"status_history": history,
			"revision":       nextRevision(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected != 1 {
		return false, nil
	}

	issue.Status = entry.Status
	issue.StatusHistory = history
	issue.Revision++
	return true, nil
}

// ClaimPrimary sets merge_id on an issue only if it has none and is not
// itself linked elsewhere. It leaves the revision alone since no JSON column
// changes.
func ClaimPrimary(db *gorm.DB, issueID, mergeID string) (bool, error) {
	result := db.Model(&Issue{}).
		Where("id = ? AND merge_id IS NULL AND status <> ?", issueID, IssueStatusMerged).
		Update("merge_id", mergeID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// AppendResolutionImages adds proof-of-fix image URLs to an issue
func AppendResolutionImages(db *gorm.DB, issue *Issue, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	images := append(StringList{}, issue.ResolutionImages...)
	images = append(images, urls...)

	result := db.Model(&Issue{}).
		Where("id = ? AND revision = ?", issue.ID, issue.Revision).
		Updates(map[string]interface{}{
			"resolution_images": images,
			"revision":          nextRevision(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return missingOrStale(db, issue.ID)
	}
	issue.ResolutionImages = images
	issue.Revision++
	return nil
}

// AppendRemark adds a remark to an issue
func AppendRemark(db *gorm.DB, issue *Issue, remark Remark) error {
	remarks := append(RemarkList{}, issue.Remarks...)
	remarks = append(remarks, remark)

	result := db.Model(&Issue{}).
		Where("id = ? AND revision = ?", issue.ID, issue.Revision).
		Updates(map[string]interface{}{
			"remarks":  remarks,
			"revision": nextRevision(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return missingOrStale(db, issue.ID)
	}
	issue.Remarks = remarks
	issue.Revision++
	return nil
}

func missingOrStale(db *gorm.DB, issueID string) error {
	var count int64
	if err := db.Model(&Issue{}).Where("id = ?", issueID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	return ErrStaleIssue
}

func missingLinkedOrStale(db *gorm.DB, issueID string) error {
	var current Issue
	if err := db.Select("id", "status").Where("id = ?", issueID).First(&current).Error; err != nil {
		return err
	}
	if current.Status == IssueStatusMerged {
		return ErrIssueLinked
	}
	return ErrStaleIssue
}

// UpdateIssueMergeID sets or clears (nil) the merge id of an issue
func UpdateIssueMergeID(db *gorm.DB, issueID string, mergeID *string) error {
	result := db.Model(&Issue{}).Where("id = ?", issueID).Update("merge_id", mergeID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CreateMergeRecord inserts a merge record together with its links. Links are
// inserted as plain rows (no association upsert) so a duplicate issue_id fails
// with gorm.ErrDuplicatedKey. Run it inside a transaction.
func CreateMergeRecord(db *gorm.DB, record *MergeRecord) error {
	if record.MergedAt.IsZero() {
		record.MergedAt = time.Now()
	}
	if err := db.Omit("Links").Create(record).Error; err != nil {
		return err
	}
	if len(record.Links) == 0 {
		return nil
	}
	for i := range record.Links {
		record.Links[i].MergeID = record.ID
	}
	return db.Omit(clause.Associations).Create(&record.Links).Error
}

// GetMergeRecord retrieves a merge record and its links by merge id
func GetMergeRecord(db *gorm.DB, mergeID string) (*MergeRecord, error) {
	var record MergeRecord
	err := db.Preload("Links", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("id ASC")
	}).Where("id = ?", mergeID).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetMergeLinkByIssue returns the link holding issueID as a duplicate
func GetMergeLinkByIssue(db *gorm.DB, issueID string) (*MergeLink, error) {
	var link MergeLink
	if err := db.Where("issue_id = ?", issueID).First(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

// ListMergeRecords returns every active merge record with its links
func ListMergeRecords(db *gorm.DB) ([]MergeRecord, error) {
	var records []MergeRecord
	err := db.Preload("Links", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("id ASC")
	}).Order("merged_at ASC").Find(&records).Error
	return records, err
}

// DeleteMergeRecord removes a merge record and its links. Links are deleted
// explicitly since SQLite does not enforce the cascade by default.
func DeleteMergeRecord(db *gorm.DB, mergeID string) error {
	if err := db.Where("merge_id = ?", mergeID).Delete(&MergeLink{}).Error; err != nil {
		return err
	}
	result := db.Where("id = ?", mergeID).Delete(&MergeRecord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountIssuesByStatus returns the number of issues per status
func CountIssuesByStatus(db *gorm.DB) (map[IssueStatus]int64, error) {
	var rows []struct {
		Status IssueStatus
		Count  int64
	}
	if err := db.Model(&Issue{}).Select("status, count(*) as count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[IssueStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// CountIssuesByCategory returns the number of issues per category
func CountIssuesByCategory(db *gorm.DB) (map[string]int64, error) {
	var rows []struct {
		Category string
		Count    int64
	}
	if err := db.Model(&Issue{}).Select("category, count(*) as count").Group("category").Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Category] = r.Count
	}
	return counts, nil
}
