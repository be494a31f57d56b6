package db

import (
	"survey_wallet/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus" // Structured logging
	"gorm.io/driver/mysql"       // MySQL driver for GORM
	"gorm.io/gorm"               // GORM ORM library
)

// Models lists every table managed by the application
func Models() []any {
	return []any{
		&domain.User{},
		&domain.Transaction{},
		&domain.Survey{},
		&domain.Question{},
		&domain.Response{},
		&domain.Answer{},
		&domain.RewardClaim{},
	}
}

// Open connects to MySQL. Driver errors are translated so duplicate keys surface as gorm.ErrDuplicatedKey.
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(mysql.Open(dsn), &gorm.Config{TranslateError: true})
}

// Migrate performs automatic migration for the database schema
func Migrate(db *gorm.DB) error {
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	logrus.Info("Migration completed.") // Log successful migration
	return nil
}
