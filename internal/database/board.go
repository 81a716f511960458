package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Announcement is a notice posted by hostel management
type Announcement struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title       string    `gorm:"type:varchar(255);not null" json:"title"`
	Body        string    `gorm:"type:text;not null" json:"body"`
	Author      string    `gorm:"type:varchar(36);not null" json:"author"`
	HostelBlock string    `gorm:"type:varchar(64);index" json:"hostel_block,omitempty"` // empty means every block
	Pinned      bool      `gorm:"default:false" json:"pinned"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID when none is set
func (a *Announcement) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

func (Announcement) TableName() string {
	return "announcements"
}

// LostFoundKind tells whether an item was lost or found
type LostFoundKind string

const (
	LostFoundKindLost  LostFoundKind = "lost"
	LostFoundKindFound LostFoundKind = "found"
)

// LostFoundStatus is the state of a lost & found post
type LostFoundStatus string

const (
	LostFoundStatusOpen    LostFoundStatus = "open"
	LostFoundStatusClaimed LostFoundStatus = "claimed"
)

// LostFoundItem is a lost or found item posted on the board
type LostFoundItem struct {
	ID          string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Kind        LostFoundKind   `gorm:"type:varchar(10);not null;index" json:"kind"`
	Title       string          `gorm:"type:varchar(255);not null" json:"title"`
	Description string          `gorm:"type:text" json:"description"`
	Location    string          `gorm:"type:varchar(255)" json:"location"`
	ReportedBy  string          `gorm:"type:varchar(36);not null;index" json:"reported_by"`
	Images      StringList      `gorm:"type:jsonb" json:"images"`
	Status      LostFoundStatus `gorm:"type:varchar(10);not null;default:'open'" json:"status"`
	ClaimedBy   *string         `gorm:"type:varchar(36)" json:"claimed_by,omitempty"`
	ClaimedAt   *time.Time      `json:"claimed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// BeforeCreate assigns a UUID and defaults the status
func (l *LostFoundItem) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.Status == "" {
		l.Status = LostFoundStatusOpen
	}
	return nil
}

func (LostFoundItem) TableName() string {
	return "lost_found_items"
}
