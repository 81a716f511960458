package database

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IssueStatus represents the lifecycle status of an issue
type IssueStatus string

const (
	IssueStatusReported   IssueStatus = "Reported"
	IssueStatusAssigned   IssueStatus = "Assigned"
	IssueStatusInProgress IssueStatus = "In Progress"
	IssueStatusResolved   IssueStatus = "Resolved"
	IssueStatusClosed     IssueStatus = "Closed"
	IssueStatusMerged     IssueStatus = "Merged"
)

// ValidIssueStatuses returns the fixed ordered set of statuses
func ValidIssueStatuses() []IssueStatus {
	return []IssueStatus{
		IssueStatusReported,
		IssueStatusAssigned,
		IssueStatusInProgress,
		IssueStatusResolved,
		IssueStatusClosed,
		IssueStatusMerged,
	}
}

// IsValid reports whether s is one of the known statuses
func (s IssueStatus) IsValid() bool {
	for _, v := range ValidIssueStatuses() {
		if s == v {
			return true
		}
	}
	return false
}

// IsOpen returns true while the issue still needs work
func (s IssueStatus) IsOpen() bool {
	return s == IssueStatusReported || s == IssueStatusAssigned || s == IssueStatusInProgress
}

// IssuePriority is the urgency assigned to an issue
type IssuePriority string

const (
	IssuePriorityLow    IssuePriority = "Low"
	IssuePriorityMedium IssuePriority = "Medium"
	IssuePriorityHigh   IssuePriority = "High"
	IssuePriorityUrgent IssuePriority = "Urgent"
)

// IssueVisibility controls who can see an issue
type IssueVisibility string

const (
	IssueVisibilityPublic  IssueVisibility = "Public"
	IssueVisibilityPrivate IssueVisibility = "Private"
)

// StatusHistoryEntry is one status transition of an issue
type StatusHistoryEntry struct {
	Status     IssueStatus `json:"status"`
	Timestamp  time.Time   `json:"timestamp"`
	AssignedTo string      `json:"assigned_to,omitempty"`
	Remarks    string      `json:"remarks,omitempty"`
	UpdatedBy  string      `json:"updated_by,omitempty"`
}

// StatusHistory is the JSON-encoded status log of an issue
type StatusHistory []StatusHistoryEntry

// Scan implements the sql.Scanner interface
func (h *StatusHistory) Scan(value interface{}) error {
	*h = StatusHistory{}
	return scanJSON(value, h)
}

// Value implements the driver.Valuer interface
func (h StatusHistory) Value() (driver.Value, error) {
	if h == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]StatusHistoryEntry(h))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Remark is a free-text note left on an issue
type Remark struct {
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
}

// RemarkList is the JSON-encoded list of remarks on an issue
type RemarkList []Remark

// Scan implements the sql.Scanner interface
func (r *RemarkList) Scan(value interface{}) error {
	*r = RemarkList{}
	return scanJSON(value, r)
}

// Value implements the driver.Valuer interface
func (r RemarkList) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]Remark(r))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Issue is a maintenance issue reported by a student
type Issue struct {
	ID               string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Description      string          `gorm:"type:text;not null" json:"description"`
	Category         string          `gorm:"type:varchar(64);not null;index" json:"category"`
	Location         string          `gorm:"type:varchar(255)" json:"location"`
	ReportedBy       string          `gorm:"type:varchar(36);not null;index" json:"reported_by"`
	Status           IssueStatus     `gorm:"type:varchar(20);not null;default:'Reported';index" json:"status"`
	Priority         IssuePriority   `gorm:"type:varchar(20);not null;default:'Medium'" json:"priority"`
	Visibility       IssueVisibility `gorm:"type:varchar(10);not null;default:'Public'" json:"visibility"`
	AssignedTo       *string         `gorm:"type:varchar(36);index" json:"assigned_to,omitempty"`
	StatusHistory    StatusHistory   `gorm:"type:jsonb" json:"status_history"`
	MergeID          *string         `gorm:"type:varchar(36);index" json:"merge_id,omitempty"` // Set only on a primary that absorbed duplicates
	Images           StringList      `gorm:"type:jsonb" json:"images"`
	ResolutionImages StringList      `gorm:"type:jsonb" json:"resolution_images"`
	Remarks          RemarkList      `gorm:"type:jsonb" json:"remarks"`
	Revision         int64           `gorm:"not null;default:0" json:"revision"` // Bumped by every write that rewrites the JSON columns
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// BeforeCreate assigns a UUID and seeds the history with the initial status
func (i *Issue) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	if i.Status == "" {
		i.Status = IssueStatusReported
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now()
	}
	if len(i.StatusHistory) == 0 {
		i.StatusHistory = StatusHistory{{Status: i.Status, Timestamp: i.CreatedAt}}
	}
	return nil
}

// IsPrimary returns true if the issue currently absorbs duplicates
func (i *Issue) IsPrimary() bool {
	return i.MergeID != nil && *i.MergeID != ""
}

// IsLinked returns true if the issue is folded into a primary
func (i *Issue) IsLinked() bool {
	return i.Status == IssueStatusMerged
}

func (Issue) TableName() string {
	return "issues"
}
