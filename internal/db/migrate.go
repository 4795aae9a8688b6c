package db

import (
	"fmt"  // Error wrapping
	"time" // Pool lifetimes

	"pharmacy_system/internal/config" // Configuration
	"pharmacy_system/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus" // Logging library

	"gorm.io/driver/mysql"    // MySQL driver for GORM
	"gorm.io/driver/postgres" // PostgreSQL driver for GORM
	"gorm.io/gorm"            // GORM ORM library
	"gorm.io/gorm/logger"     // GORM query logger
)

// Models lists every table owned by the service
func Models() []any {
	return []any{&domain.User{}, &domain.Medicine{}, &domain.Offer{}, &domain.Order{}, &domain.Prescription{}}
}

// Open picks the dialector from the configured driver
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "mysql":
		dialector = mysql.Open(cfg.DSN()) // MySQL DSN
	case "postgres":
		dialector = postgres.Open(cfg.DSN()) // PostgreSQL DSN
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	level := logger.Warn // Only slow queries and errors
	if !cfg.IsProd {
		level = logger.Info // Every query during development
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(level),                // Query logging
		NowFunc: func() time.Time { return time.Now().UTC() }, // Store timestamps in UTC
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	sqlDB, err := db.DB() // Underlying pool
	if err != nil {
		return nil, fmt.Errorf("failed to get database pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)                  // Upper bound on connections
	sqlDB.SetMaxIdleConns(5)                   // Idle connections kept warm
	sqlDB.SetConnMaxLifetime(30 * time.Minute) // Recycle connections
	return db, nil
}

// Migrate performs automatic migration for the database schema
func Migrate(db *gorm.DB) error {
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logrus.Info("Migration completed.") // Log successful migration
	return nil
}
