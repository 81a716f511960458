package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// scanJSON decodes a JSON column value into dst. SQLite hands back either
// []byte or string depending on how the value was written.
func scanJSON(value interface{}, dst interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

// StringList is a JSON-encoded list of strings (image URLs, reporter ids)
type StringList []string

// Scan implements the sql.Scanner interface
func (s *StringList) Scan(value interface{}) error {
	*s = StringList{}
	return scanJSON(value, s)
}

// Value implements the driver.Valuer interface
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Contains reports whether v is in the list
func (s StringList) Contains(v string) bool {
	for _, item := range s {
		if item == v {
			return true
		}
	}
	return false
}

// UserRole is the access level of a user
type UserRole string

const (
	UserRoleStudent    UserRole = "student"
	UserRoleCaretaker  UserRole = "caretaker"
	UserRoleManagement UserRole = "management"
)

// ValidUserRoles returns every known role
func ValidUserRoles() []UserRole {
	return []UserRole{UserRoleStudent, UserRoleCaretaker, UserRoleManagement}
}

// IsStaff returns true for roles that may work on issues
func (r UserRole) IsStaff() bool {
	return r == UserRoleCaretaker || r == UserRoleManagement
}

// User is a student, caretaker or management account
type User struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email        string    `gorm:"uniqueIndex;type:varchar(255);not null" json:"email"`
	Name         string    `gorm:"type:varchar(255)" json:"name"`
	PasswordHash string    `gorm:"type:text;not null" json:"-"`
	Role         UserRole  `gorm:"type:varchar(20);not null;default:'student'" json:"role"`
	HostelBlock  string    `gorm:"type:varchar(64)" json:"hostel_block"`
	RoomNumber   string    `gorm:"type:varchar(32)" json:"room_number"`
	SlackUserID  string    `gorm:"type:varchar(64)" json:"slack_user_id,omitempty"` // Slack member id for notification DMs
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID when none is set
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

func (User) TableName() string {
	return "users"
}
