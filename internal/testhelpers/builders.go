package testhelpers

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/fixithostel/fixit/internal/database"
)

// ========================================
// Issue Builder
// ========================================

// IssueBuilder builds Issue instances for testing
type IssueBuilder struct {
	issue database.Issue
}

// NewIssueBuilder creates a new issue builder with defaults
func NewIssueBuilder() *IssueBuilder {
	return &IssueBuilder{
		issue: database.Issue{
			Description: "Ceiling fan not working",
			Category:    "Electrical",
			Location:    "Block A, Room 101",
			ReportedBy:  "student-1",
			Status:      database.IssueStatusReported,
			Priority:    database.IssuePriorityMedium,
			Visibility:  database.IssueVisibilityPublic,
		},
	}
}

// WithID sets the issue ID
func (b *IssueBuilder) WithID(id string) *IssueBuilder {
	b.issue.ID = id
	return b
}

// WithDescription sets the description
func (b *IssueBuilder) WithDescription(desc string) *IssueBuilder {
	b.issue.Description = desc
	return b
}

// WithCategory sets the category
func (b *IssueBuilder) WithCategory(category string) *IssueBuilder {
	b.issue.Category = category
	return b
}

// WithReporter sets the reporting user
func (b *IssueBuilder) WithReporter(userID string) *IssueBuilder {
	b.issue.ReportedBy = userID
	return b
}

// WithStatus sets the status. The seeded history entry uses the same status.
func (b *IssueBuilder) WithStatus(status database.IssueStatus) *IssueBuilder {
	b.issue.Status = status
	return b
}

// WithVisibility sets the visibility
func (b *IssueBuilder) WithVisibility(v database.IssueVisibility) *IssueBuilder {
	b.issue.Visibility = v
	return b
}

// WithAssignee sets the assigned caretaker
func (b *IssueBuilder) WithAssignee(userID string) *IssueBuilder {
	b.issue.AssignedTo = &userID
	return b
}

// WithCreatedAt sets the creation time
func (b *IssueBuilder) WithCreatedAt(ts time.Time) *IssueBuilder {
	b.issue.CreatedAt = ts
	return b
}

// WithHistory replaces the status history. The status is set to the last entry.
func (b *IssueBuilder) WithHistory(entries ...database.StatusHistoryEntry) *IssueBuilder {
	b.issue.StatusHistory = database.StatusHistory(entries)
	if len(entries) > 0 {
		b.issue.Status = entries[len(entries)-1].Status
	}
	return b
}

// Build returns the constructed issue
func (b *IssueBuilder) Build() database.Issue {
	return b.issue
}

// Create inserts the issue into db and returns it
func (b *IssueBuilder) Create(t *testing.T, db *gorm.DB) *database.Issue {
	t.Helper()
	issue := b.Build()
	MustCreate(t, db, &issue)
	return &issue
}

// ========================================
// User Builder
// ========================================

// UserBuilder builds User instances for testing
type UserBuilder struct {
	user database.User
}

// NewUserBuilder creates a new user builder with defaults
func NewUserBuilder() *UserBuilder {
	return &UserBuilder{
		user: database.User{
			Email:       "student@hostel.test",
			Name:        "Test Student",
			Role:        database.UserRoleStudent,
			HostelBlock: "A",
			RoomNumber:  "101",
		},
	}
}

// WithID sets the user ID
func (b *UserBuilder) WithID(id string) *UserBuilder {
	b.user.ID = id
	return b
}

// WithEmail sets the email
func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.user.Email = email
	return b
}

// WithRole sets the role
func (b *UserBuilder) WithRole(role database.UserRole) *UserBuilder {
	b.user.Role = role
	return b
}

// WithPasswordHash sets the stored bcrypt hash
func (b *UserBuilder) WithPasswordHash(hash string) *UserBuilder {
	b.user.PasswordHash = hash
	return b
}

// WithSlackUserID sets the Slack member id used for DMs
func (b *UserBuilder) WithSlackUserID(id string) *UserBuilder {
	b.user.SlackUserID = id
	return b
}

// Build returns the constructed user
func (b *UserBuilder) Build() database.User {
	return b.user
}

// Create inserts the user into db and returns it
func (b *UserBuilder) Create(t *testing.T, db *gorm.DB) *database.User {
	t.Helper()
	user := b.Build()
	MustCreate(t, db, &user)
	return &user
}

// ========================================
// History Helpers
// ========================================

// Entry builds a status history entry at base plus offset
func Entry(status database.IssueStatus, base time.Time, offset time.Duration) database.StatusHistoryEntry {
	return database.StatusHistoryEntry{Status: status, Timestamp: base.Add(offset)}
}
