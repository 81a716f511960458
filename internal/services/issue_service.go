package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/fixithostel/fixit/internal/database"
	"github.com/fixithostel/fixit/internal/notify"
	"github.com/fixithostel/fixit/internal/timeline"
	"github.com/fixithostel/fixit/internal/utils"
)

// Limits on user free text, in runes
const (
	maxDescriptionLength = 4000
	maxRemarkLength      = 2000
)

// Actor is the authenticated user performing an operation
type Actor struct {
	UserID string
	Role   database.UserRole
}

// IsStaff returns true for caretakers and management
func (a Actor) IsStaff() bool {
	return a.Role.IsStaff()
}

// ReportInput holds the fields of a new issue report
type ReportInput struct {
	Description string
	Category    string
	Location    string
	Priority    database.IssuePriority
	Visibility  database.IssueVisibility
	Images      []string
}

// StatusUpdate is a manual status change made by staff
type StatusUpdate struct {
	Status           database.IssueStatus
	Remarks          string
	ResolutionImages []string
}

// IssueFilter narrows List results. Zero values match everything.
type IssueFilter struct {
	Status     database.IssueStatus
	Category   string
	ReportedBy string
	AssignedTo string
	Visibility database.IssueVisibility
	Limit      int
	Offset     int
}

// IssueService handles reporting and the status lifecycle of issues
type IssueService struct {
	db         *gorm.DB
	merges     *MergeService
	dispatcher notify.Dispatcher
	categories []string
	now        func() time.Time
}

// NewIssueService creates a new issue service. A nil dispatcher falls back
// to logging.
func NewIssueService(db *gorm.DB, merges *MergeService, dispatcher notify.Dispatcher) *IssueService {
	if dispatcher == nil {
		dispatcher = notify.Log{}
	}
	return &IssueService{
		db:         db,
		merges:     merges,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// SetCategories restricts reports to the given categories. An empty list
// accepts any category.
func (s *IssueService) SetCategories(categories []string) {
	s.categories = categories
}

// Report creates a new issue in Reported status
func (s *IssueService) Report(actor Actor, in ReportInput) (*database.Issue, error) {
	if actor.UserID == "" {
		return nil, InvalidArgument("acting user is required")
	}
	in.Description = cleanText(in.Description, maxDescriptionLength)
	if in.Description == "" {
		return nil, InvalidArgument("description is required")
	}
	if !s.categoryAllowed(in.Category) {
		return nil, InvalidArgument("unknown category %q", in.Category)
	}
	if in.Priority == "" {
		in.Priority = database.IssuePriorityMedium
	}
	if in.Visibility == "" {
		in.Visibility = database.IssueVisibilityPublic
	}

	now := s.now()
	issue := &database.Issue{
		Description: in.Description,
		Category:    in.Category,
		Location:    in.Location,
		ReportedBy:  actor.UserID,
		Status:      database.IssueStatusReported,
		Priority:    in.Priority,
		Visibility:  in.Visibility,
		Images:      database.StringList(in.Images),
		CreatedAt:   now,
		StatusHistory: database.StatusHistory{{
			Status:    database.IssueStatusReported,
			Timestamp: now,
			UpdatedBy: actor.UserID,
		}},
	}
	if err := s.db.Create(issue).Error; err != nil {
		return nil, StoreFailure(err, "failed to create issue")
	}

	log.Printf("Issue %s reported by %s (%s)", issue.ID, actor.UserID, issue.Category)
	return issue, nil
}

// Get returns an issue the actor is allowed to see. Private issues of other
// students are reported as not found.
func (s *IssueService) Get(actor Actor, id string) (*database.Issue, error) {
	issue, err := database.GetIssue(s.db, id)
	if err != nil {
		return nil, storeError(err, fmt.Sprintf("issue %s", id))
	}
	if !canView(actor, issue) {
		return nil, NotFound("issue %s not found", id)
	}
	return issue, nil
}

// List returns the issues matching filter, newest first, together with the
// total number of matches
func (s *IssueService) List(actor Actor, filter IssueFilter) ([]database.Issue, int64, error) {
	query := s.db.Model(&database.Issue{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.ReportedBy != "" {
		query = query.Where("reported_by = ?", filter.ReportedBy)
	}
	if filter.AssignedTo != "" {
		query = query.Where("assigned_to = ?", filter.AssignedTo)
	}
	if filter.Visibility != "" {
		query = query.Where("visibility = ?", filter.Visibility)
	}
	if !actor.IsStaff() {
		query = query.Where("reported_by = ? OR visibility = ?", actor.UserID, database.IssueVisibilityPublic)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, StoreFailure(err, "failed to count issues")
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}
	var issues []database.Issue
	if err := query.Order("created_at DESC").Find(&issues).Error; err != nil {
		return nil, 0, StoreFailure(err, "failed to list issues")
	}
	return issues, total, nil
}

// Timeline builds the display timeline of an issue
func (s *IssueService) Timeline(actor Actor, id string) (timeline.Timeline, error) {
	issue, err := s.Get(actor, id)
	if err != nil {
		return timeline.Timeline{}, err
	}
	return timeline.Build(issue.StatusHistory), nil
}

// UpdateStatus applies a manual status change. Merged can only be reached
// through a merge, and linked issues only change through unmerge.
func (s *IssueService) UpdateStatus(ctx context.Context, actor Actor, id string, update StatusUpdate) (*database.Issue, error) {
	if !update.Status.IsValid() {
		return nil, InvalidArgument("unknown status %q", update.Status)
	}
	if update.Status == database.IssueStatusMerged {
		return nil, InvalidArgument("status Merged can only be set by merging issues")
	}

	var issue *database.Issue
	var previous database.IssueStatus
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		issue, err = database.GetIssue(tx, id)
		if err != nil {
			return storeError(err, fmt.Sprintf("issue %s", id))
		}
		if issue.IsLinked() {
			return Conflict("issue %s is merged into another issue; unmerge it first", id)
		}
		previous = issue.Status

		entry := database.StatusHistoryEntry{
			Status:    update.Status,
			Timestamp: s.now(),
			Remarks:   cleanText(update.Remarks, maxRemarkLength),
			UpdatedBy: actor.UserID,
		}
		if update.Status == database.IssueStatusAssigned && issue.AssignedTo != nil {
			entry.AssignedTo = *issue.AssignedTo
		}
		if err := database.UpdateIssueStatus(tx, issue, entry); err != nil {
			return s.writeError(err, id)
		}
		if err := database.AppendResolutionImages(tx, issue, update.ResolutionImages); err != nil {
			return s.writeError(err, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Issue %s moved from %s to %s by %s", issue.ID, previous, issue.Status, actor.UserID)
	s.notifyStatusChange(ctx, issue, previous, actor)
	return issue, nil
}

// Assign hands an issue to a staff member and moves it to Assigned
func (s *IssueService) Assign(ctx context.Context, actor Actor, id, assigneeID string) (*database.Issue, error) {
	if strings.TrimSpace(assigneeID) == "" {
		return nil, InvalidArgument("assignee is required")
	}

	var issue *database.Issue
	var previous database.IssueStatus
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var assignee database.User
		if err := tx.Where("id = ?", assigneeID).First(&assignee).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return InvalidArgument("assignee %s does not exist", assigneeID)
			}
			return StoreFailure(err, "failed to load assignee")
		}
		if !assignee.Role.IsStaff() {
			return InvalidArgument("assignee %s is not staff", assigneeID)
		}

		var err error
		issue, err = database.GetIssue(tx, id)
		if err != nil {
			return storeError(err, fmt.Sprintf("issue %s", id))
		}
		if issue.IsLinked() {
			return Conflict("issue %s is merged into another issue; unmerge it first", id)
		}
		previous = issue.Status

		entry := database.StatusHistoryEntry{
			Status:     database.IssueStatusAssigned,
			Timestamp:  s.now(),
			AssignedTo: assigneeID,
			Remarks:    "Assigned to " + assignee.Name,
			UpdatedBy:  actor.UserID,
		}
		return s.writeError(database.UpdateIssueStatus(tx, issue, entry), id)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Issue %s assigned to %s by %s", issue.ID, assigneeID, actor.UserID)
	s.notifyStatusChange(ctx, issue, previous, actor)
	return issue, nil
}

// AddRemark appends a free-text remark to an issue the actor can see
func (s *IssueService) AddRemark(actor Actor, id, text string) (*database.Issue, error) {
	text = cleanText(text, maxRemarkLength)
	if text == "" {
		return nil, InvalidArgument("remark text is required")
	}

	var issue *database.Issue
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		issue, err = database.GetIssue(tx, id)
		if err != nil {
			return storeError(err, fmt.Sprintf("issue %s", id))
		}
		if !canView(actor, issue) {
			return NotFound("issue %s not found", id)
		}
		remark := database.Remark{Author: actor.UserID, Timestamp: s.now(), Text: text}
		return s.writeError(database.AppendRemark(tx, issue, remark), id)
	})
	if err != nil {
		return nil, err
	}
	return issue, nil
}

// Recipients returns who hears about changes to issue: every aggregated
// reporter when it is a primary, otherwise its own reporter.
func (s *IssueService) Recipients(issue *database.Issue) ([]string, error) {
	if !issue.IsPrimary() {
		return []string{issue.ReportedBy}, nil
	}
	record, err := s.merges.GetLinkedIssues(*issue.MergeID)
	if err != nil {
		if IsKind(err, ErrorKindNotFound) {
			return []string{issue.ReportedBy}, nil
		}
		return nil, err
	}
	return []string(record.AllReporters), nil
}

// AnnounceMerge tells every reporter of a merge record that their issues
// were merged or unmerged. Failures are logged only.
func (s *IssueService) AnnounceMerge(ctx context.Context, record *database.MergeRecord, event string, actor Actor) {
	message := fmt.Sprintf("%d duplicate issue(s) were merged into issue %s", len(record.Links), record.PrimaryIssueID)
	if event == notify.EventIssueUnmerged {
		message = fmt.Sprintf("%d issue(s) were split from issue %s", len(record.Links), record.PrimaryIssueID)
	}

	n := notify.Notification{
		Type:       event,
		IssueID:    record.PrimaryIssueID,
		MergeID:    record.ID,
		Recipients: []string(record.AllReporters),
		Message:    message,
		ActorID:    actor.UserID,
		Timestamp:  s.now(),
	}
	if err := s.dispatcher.Dispatch(ctx, n); err != nil {
		log.Printf("Warning: failed to dispatch %s for merge %s: %v", event, record.ID, err)
	}
}

func (s *IssueService) notifyStatusChange(ctx context.Context, issue *database.Issue, previous database.IssueStatus, actor Actor) {
	recipients, err := s.Recipients(issue)
	if err != nil {
		log.Printf("Warning: failed to resolve recipients for issue %s: %v", issue.ID, err)
		recipients = []string{issue.ReportedBy}
	}

	n := notify.Notification{
		Type:           notify.EventIssueStatusChanged,
		IssueID:        issue.ID,
		Status:         issue.Status,
		PreviousStatus: previous,
		Recipients:     recipients,
		Message:        notify.StatusMessage(issue, previous),
		ActorID:        actor.UserID,
		Timestamp:      s.now(),
	}
	if issue.MergeID != nil {
		n.MergeID = *issue.MergeID
	}
	if err := s.dispatcher.Dispatch(ctx, n); err != nil {
		log.Printf("Warning: failed to dispatch status change for issue %s: %v", issue.ID, err)
	}
}

func (s *IssueService) writeError(err error, id string) error {
	if errors.Is(err, database.ErrIssueLinked) {
		return Conflict("issue %s was merged concurrently", id)
	}
	return storeError(err, fmt.Sprintf("issue %s", id))
}

func (s *IssueService) categoryAllowed(category string) bool {
	if strings.TrimSpace(category) == "" {
		return false
	}
	if len(s.categories) == 0 {
		return true
	}
	for _, c := range s.categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

func canView(actor Actor, issue *database.Issue) bool {
	return actor.IsStaff() ||
		issue.Visibility != database.IssueVisibilityPrivate ||
		issue.ReportedBy == actor.UserID
}

// cleanText sanitizes user free text, logging what was stripped
func cleanText(text string, maxLen int) string {
	result := utils.SanitizeText(text, maxLen)
	if len(result.Warnings) > 0 {
		log.Printf("Sanitized user text (%s): %s", strings.Join(result.Warnings, ", "), utils.EscapeForLogging(text, 80))
	}
	return result.Text
}
