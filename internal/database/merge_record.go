package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MergeRecord ties a primary issue to the duplicates folded into it.
// A record is created by a merge and deleted by an unmerge; it is never edited.
type MergeRecord struct {
	ID             string     `gorm:"primaryKey;type:varchar(36)" json:"merge_id"`
	PrimaryIssueID string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"primary_issue_id"`
	AllReporters   StringList `gorm:"type:jsonb" json:"all_reporters"`
	MergedBy       string     `gorm:"type:varchar(36);not null" json:"merged_by"`
	MergedAt       time.Time  `gorm:"not null" json:"merged_at"`

	Links []MergeLink `gorm:"foreignKey:MergeID;constraint:OnDelete:CASCADE" json:"links,omitempty"`
}

// BeforeCreate assigns a UUID when none is set
func (m *MergeRecord) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// LinkedIssueIDs returns the ids of every linked issue in link order
func (m *MergeRecord) LinkedIssueIDs() []string {
	ids := make([]string, 0, len(m.Links))
	for _, l := range m.Links {
		ids = append(ids, l.IssueID)
	}
	return ids
}

func (MergeRecord) TableName() string {
	return "merge_records"
}

// MergeLink is one duplicate issue held by a MergeRecord, with the snapshot
// taken at merge time. IssueID is unique so a duplicate can only be claimed once.
type MergeLink struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	MergeID        string      `gorm:"type:varchar(36);not null;index" json:"merge_id"`
	IssueID        string      `gorm:"type:varchar(36);not null;uniqueIndex" json:"issue_id"`
	Title          string      `gorm:"type:varchar(255)" json:"title"`
	ReportedBy     string      `gorm:"type:varchar(36);not null" json:"reported_by"`
	IssueCreatedAt time.Time   `json:"created_at"`
	PriorStatus    IssueStatus `gorm:"type:varchar(20)" json:"prior_status"`
}

func (MergeLink) TableName() string {
	return "merge_links"
}
