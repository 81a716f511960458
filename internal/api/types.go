package api

import (
	"time"

	"github.com/fixithostel/fixit/internal/database"
	"github.com/fixithostel/fixit/internal/timeline"
)

// ========== Auth Types ==========

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the request body for POST /auth/register.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email,max=255"`
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	HostelBlock string `json:"hostel_block" validate:"omitempty,max=64"`
	RoomNumber  string `json:"room_number" validate:"omitempty,max=32"`
	SlackUserID string `json:"slack_user_id" validate:"omitempty,max=64"`
}

// LoginResponse is returned by a successful login or registration.
type LoginResponse struct {
	Token     string        `json:"token"`
	ExpiresIn int           `json:"expires_in"`
	User      database.User `json:"user"`
}

// ========== Issue Types ==========

// CreateIssueRequest is the request body for POST /api/issues.
type CreateIssueRequest struct {
	Description string   `json:"description" validate:"required,min=1,max=4000"`
	Category    string   `json:"category" validate:"required,max=64"`
	Location    string   `json:"location" validate:"omitempty,max=255"`
	Priority    string   `json:"priority" validate:"omitempty,oneof=Low Medium High Urgent"`
	Visibility  string   `json:"visibility" validate:"omitempty,oneof=Public Private"`
	Images      []string `json:"images" validate:"omitempty,max=10,dive,url"`
}

// UpdateStatusRequest is the request body for PUT /api/issues/{id}/status.
type UpdateStatusRequest struct {
	Status           string   `json:"status" validate:"required,oneof=Reported Assigned 'In Progress' Resolved Closed"`
	Remarks          string   `json:"remarks" validate:"omitempty,max=2000"`
	ResolutionImages []string `json:"resolution_images" validate:"omitempty,max=10,dive,url"`
}

// AssignIssueRequest is the request body for PUT /api/issues/{id}/assign.
type AssignIssueRequest struct {
	AssigneeID string `json:"assignee_id" validate:"required"`
}

// AddRemarkRequest is the request body for POST /api/issues/{id}/remarks.
type AddRemarkRequest struct {
	Text string `json:"text" validate:"required,min=1,max=2000"`
}

// IssueResponse is an issue as returned by the API, with its merge record
// attached when it is a primary.
type IssueResponse struct {
	database.Issue
	Merge *MergeRecordResponse `json:"merge,omitempty"`
}

// TimelineResponse is the response body for GET /api/issues/{id}/timeline.
type TimelineResponse struct {
	IssueID string `json:"issue_id"`
	timeline.Timeline
}

// ========== Merge Types ==========

// MergeIssuesRequest is the request body for POST /api/issues/{id}/merge.
// An empty list passes validation so the merge service can reject it as
// invalid_argument.
type MergeIssuesRequest struct {
	DuplicateIssueIDs []string `json:"duplicate_issue_ids" validate:"max=50,dive,required"`
}

// LinkedIssueDetail is the snapshot of a duplicate taken when it was merged.
type LinkedIssueDetail struct {
	Title       string               `json:"title"`
	ReportedBy  string               `json:"reported_by"`
	CreatedAt   time.Time            `json:"created_at"`
	PriorStatus database.IssueStatus `json:"prior_status"`
}

// MergeRecordResponse is a merge record as returned by the API.
type MergeRecordResponse struct {
	MergeID            string                       `json:"merge_id"`
	PrimaryIssueID     string                       `json:"primary_issue_id"`
	LinkedIssueIDs     []string                     `json:"linked_issue_ids"`
	LinkedIssueDetails map[string]LinkedIssueDetail `json:"linked_issue_details"`
	AllReporters       []string                     `json:"all_reporters"`
	MergedBy           string                       `json:"merged_by"`
	MergedAt           time.Time                    `json:"merged_at"`
}

// ========== Board Types ==========

// CreateAnnouncementRequest is the request body for POST /api/announcements.
type CreateAnnouncementRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=255"`
	Body        string `json:"body" validate:"required,min=1,max=8000"`
	HostelBlock string `json:"hostel_block" validate:"omitempty,max=64"`
	Pinned      bool   `json:"pinned"`
}

// CreateLostFoundRequest is the request body for POST /api/lost-found.
type CreateLostFoundRequest struct {
	Kind        string `json:"kind" validate:"required,oneof=lost found"`
	Title       string `json:"title" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	Location    string `json:"location" validate:"omitempty,max=255"`
	Images      []string `json:"images" validate:"omitempty,max=5,dive,url"`
}

// ClaimLostFoundRequest is the request body for PUT /api/lost-found/{id}/claim.
type ClaimLostFoundRequest struct {
	ClaimedBy string `json:"claimed_by"`
}

// ========== Pagination Types ==========

// PaginationMeta contains pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PaginatedResponse wraps a list response with pagination metadata.
type PaginatedResponse struct {
	Data       interface{}    `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

// ========== Mapper Output Types ==========

// IssueListItem is a compact representation of an issue for list views.
// It omits the status history, remarks and images.
type IssueListItem struct {
	ID          string                   `json:"id"`
	Title       string                   `json:"title"`
	Category    string                   `json:"category"`
	Location    string                   `json:"location"`
	ReportedBy  string                   `json:"reported_by"`
	Status      database.IssueStatus     `json:"status"`
	Priority    database.IssuePriority   `json:"priority"`
	Visibility  database.IssueVisibility `json:"visibility"`
	AssignedTo  *string                  `json:"assigned_to,omitempty"`
	MergeID     *string                  `json:"merge_id,omitempty"`
	UpdateCount int                      `json:"update_count"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}
