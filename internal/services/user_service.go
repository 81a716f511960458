package services

import (
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"

	"gorm.io/gorm"

	"github.com/fixithostel/fixit/internal/database"
	"github.com/fixithostel/fixit/internal/middleware"
)

const minPasswordLength = 8

// RegisterInput holds the fields of a self-registration
type RegisterInput struct {
	Email       string
	Name        string
	Password    string
	HostelBlock string
	RoomNumber  string
	SlackUserID string
}

// UserService manages hostel accounts
type UserService struct {
	db *gorm.DB
}

// NewUserService creates a new user service
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// Register creates a student account. Staff accounts are created by management.
func (s *UserService) Register(in RegisterInput) (*database.User, error) {
	return s.create(in, database.UserRoleStudent)
}

// CreateStaff creates a caretaker or management account
func (s *UserService) CreateStaff(in RegisterInput, role database.UserRole) (*database.User, error) {
	if !role.IsStaff() {
		return nil, InvalidArgument("role %q is not a staff role", role)
	}
	return s.create(in, role)
}

func (s *UserService) create(in RegisterInput, role database.UserRole) (*database.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, InvalidArgument("invalid email address")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, InvalidArgument("name is required")
	}
	if len(in.Password) < minPasswordLength {
		return nil, InvalidArgument("password must be at least %d characters", minPasswordLength)
	}

	hash, err := middleware.HashPassword(in.Password)
	if err != nil {
		return nil, StoreFailure(err, "failed to hash password")
	}

	user := &database.User{
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		Role:         role,
		HostelBlock:  in.HostelBlock,
		RoomNumber:   in.RoomNumber,
		SlackUserID:  strings.TrimSpace(in.SlackUserID),
	}
	if err := s.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, Conflict("an account with this email already exists")
		}
		return nil, StoreFailure(err, "failed to create account")
	}

	log.Printf("Created %s account %s (ID: %s)", role, email, user.ID)
	return user, nil
}

// Authenticate returns the user matching email and password. Unknown emails
// and wrong passwords produce the same error.
func (s *UserService) Authenticate(email, password string) (*database.User, error) {
	var user database.User
	err := s.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, InvalidArgument("invalid email or password")
		}
		return nil, StoreFailure(err, "failed to load account")
	}
	if !middleware.CheckPassword(password, user.PasswordHash) {
		return nil, InvalidArgument("invalid email or password")
	}
	return &user, nil
}

// Get returns a user by id
func (s *UserService) Get(id string) (*database.User, error) {
	var user database.User
	if err := s.db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, storeError(err, fmt.Sprintf("user %s", id))
	}
	return &user, nil
}

// ListByRole returns every user with role, ordered by name
func (s *UserService) ListByRole(role database.UserRole) ([]database.User, error) {
	var users []database.User
	if err := s.db.Where("role = ?", role).Order("name ASC").Find(&users).Error; err != nil {
		return nil, StoreFailure(err, "failed to list users")
	}
	return users, nil
}

// SlackIDs maps user ids to Slack member ids. Users without a Slack id are
// left out of the result.
func (s *UserService) SlackIDs(userIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var users []database.User
	err := s.db.Select("id", "slack_user_id").
		Where("id IN ? AND slack_user_id <> ''", userIDs).
		Find(&users).Error
	if err != nil {
		return nil, StoreFailure(err, "failed to resolve Slack ids")
	}
	for _, u := range users {
		out[u.ID] = u.SlackUserID
	}
	return out, nil
}
