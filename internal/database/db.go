package database

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database instance
var DB *gorm.DB

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open opens a database connection without touching the global instance.
// TranslateError is enabled so unique violations surface as gorm.ErrDuplicatedKey.
func Open(driver, dsn string, logLevel logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres, "":
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Connect establishes the global database connection
func Connect(driver, dsn string, logLevel logger.LogLevel) error {
	db, err := Open(driver, dsn, logLevel)
	if err != nil {
		return err
	}
	DB = db

	log.Printf("Database connection established (driver: %s)", driver)
	return nil
}

// Migrate runs schema migrations on db
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Issue{},
		&MergeRecord{},
		&MergeLink{},
		&Announcement{},
		&LostFoundItem{},
	)
}

// AutoMigrate runs database migrations on the global instance
func AutoMigrate() error {
	log.Println("Running database migrations...")

	if err := Migrate(DB); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// InitializeDefaults creates default records if they don't exist
func InitializeDefaults(adminEmail, adminPasswordHash string) error {
	log.Println("Initializing default database records...")

	if err := EnsureManagementAccount(DB, adminEmail, adminPasswordHash); err != nil {
		return fmt.Errorf("failed to initialize management account: %w", err)
	}

	return nil
}

// EnsureManagementAccount creates the bootstrap management user if no user
// with that email exists yet. An existing account is left untouched.
func EnsureManagementAccount(db *gorm.DB, email, passwordHash string) error {
	var existing User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		if existing.Role != UserRoleManagement {
			log.Printf("Warning: bootstrap account %s exists with role %s", email, existing.Role)
		}
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	admin := &User{
		Email:        email,
		Name:         "Hostel Management",
		PasswordHash: passwordHash,
		Role:         UserRoleManagement,
	}
	if err := db.Create(admin).Error; err != nil {
		return err
	}

	log.Printf("Created management account %s (ID: %s)", email, admin.ID)
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// Close closes the database connection
func Close() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
