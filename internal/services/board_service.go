package services

import (
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/fixithostel/fixit/internal/database"
)

// BoardService manages the announcement and lost & found boards
type BoardService struct {
	db *gorm.DB
}

// NewBoardService creates a new board service
func NewBoardService(db *gorm.DB) *BoardService {
	return &BoardService{db: db}
}

// PostAnnouncement publishes a notice. Only management may post.
func (s *BoardService) PostAnnouncement(actor Actor, a *database.Announcement) error {
	if actor.Role != database.UserRoleManagement {
		return InvalidArgument("only management can post announcements")
	}
	a.Title = cleanText(a.Title, 255)
	a.Body = cleanText(a.Body, 8000)
	if a.Title == "" || a.Body == "" {
		return InvalidArgument("title and body are required")
	}
	a.Author = actor.UserID
	if err := s.db.Create(a).Error; err != nil {
		return StoreFailure(err, "failed to create announcement")
	}
	log.Printf("Announcement %s posted by %s", a.ID, actor.UserID)
	return nil
}

// ListAnnouncements returns notices for block (plus hostel-wide ones),
// pinned first, newest first. An empty block returns every notice.
func (s *BoardService) ListAnnouncements(block string, limit, offset int) ([]database.Announcement, int64, error) {
	query := s.db.Model(&database.Announcement{})
	if block != "" {
		query = query.Where("hostel_block = ? OR hostel_block = ''", block)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, StoreFailure(err, "failed to count announcements")
	}
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}

	var out []database.Announcement
	if err := query.Order("pinned DESC").Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, 0, StoreFailure(err, "failed to list announcements")
	}
	return out, total, nil
}

// ReportLostFound posts a lost or found item
func (s *BoardService) ReportLostFound(actor Actor, item *database.LostFoundItem) error {
	if item.Kind != database.LostFoundKindLost && item.Kind != database.LostFoundKindFound {
		return InvalidArgument("kind must be lost or found")
	}
	item.Title = cleanText(item.Title, 255)
	item.Description = cleanText(item.Description, maxRemarkLength)
	if item.Title == "" {
		return InvalidArgument("title is required")
	}
	item.ReportedBy = actor.UserID
	item.Status = database.LostFoundStatusOpen
	if err := s.db.Create(item).Error; err != nil {
		return StoreFailure(err, "failed to create lost & found item")
	}
	return nil
}

// ListLostFound returns items, optionally narrowed by kind and status
func (s *BoardService) ListLostFound(kind database.LostFoundKind, status database.LostFoundStatus, limit, offset int) ([]database.LostFoundItem, int64, error) {
	query := s.db.Model(&database.LostFoundItem{})
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, StoreFailure(err, "failed to count lost & found items")
	}
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}

	var out []database.LostFoundItem
	if err := query.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, 0, StoreFailure(err, "failed to list lost & found items")
	}
	return out, total, nil
}

// ClaimLostFound marks an item as claimed. The reporter or management may
// claim; claiming twice is a conflict.
func (s *BoardService) ClaimLostFound(actor Actor, id, claimedBy string) (*database.LostFoundItem, error) {
	var item database.LostFoundItem
	if err := s.db.Where("id = ?", id).First(&item).Error; err != nil {
		return nil, storeError(err, fmt.Sprintf("lost & found item %s", id))
	}
	if item.ReportedBy != actor.UserID && actor.Role != database.UserRoleManagement {
		return nil, InvalidArgument("only the reporter or management can mark an item claimed")
	}
	if claimedBy == "" {
		claimedBy = actor.UserID
	}

	now := time.Now()
	result := s.db.Model(&database.LostFoundItem{}).
		Where("id = ? AND status = ?", id, database.LostFoundStatusOpen).
		Updates(map[string]interface{}{
			"status":     database.LostFoundStatusClaimed,
			"claimed_by": claimedBy,
			"claimed_at": now,
		})
	if result.Error != nil {
		return nil, StoreFailure(result.Error, "failed to claim lost & found item")
	}
	if result.RowsAffected == 0 {
		return nil, Conflict("item %s is already claimed", id)
	}

	item.Status = database.LostFoundStatusClaimed
	item.ClaimedBy = &claimedBy
	item.ClaimedAt = &now
	return &item, nil
}
