// Package testutil provides in-memory backends for package tests.
package testutil

import (
	"testing"

	"survey_wallet/internal/db"
	"survey_wallet/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory sqlite database with the full schema.
// It uses a single connection, so concurrent atomic units queue up the way
// they would on a row lock.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=1"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(conn))
	return conn
}

// NewRedis starts a miniredis server and returns a client connected to it
func NewRedis(t testing.TB) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

// CreateUser inserts a user with the given level and wallet balance
func CreateUser(t testing.TB, conn *gorm.DB, level int, wallet string) *domain.User {
	t.Helper()
	user := &domain.User{
		Email:    uuid.NewString() + "@example.com",
		Name:     "Test User",
		Phone:    "254700000000",
		Password: "x",
		Role:     domain.RoleUser,
		Active:   true,
		Level:    level,
		Wallet:   decimal.RequireFromString(wallet),
	}
	require.NoError(t, conn.Create(user).Error)
	return user
}

// CreateSurvey inserts a survey with one text question per given prompt
func CreateSurvey(t testing.TB, conn *gorm.DB, title string, prompts ...string) *domain.Survey {
	t.Helper()
	survey := &domain.Survey{Title: title}
	for _, p := range prompts {
		survey.Questions = append(survey.Questions, domain.Question{
			Text:    p,
			Type:    domain.QuestionText,
			Options: datatypes.JSON("[]"),
		})
	}
	require.NoError(t, conn.Create(survey).Error)
	return survey
}

// Balance reads a user's wallet straight from the database
func Balance(t testing.TB, conn *gorm.DB, userID uint) decimal.Decimal {
	t.Helper()
	var user domain.User
	require.NoError(t, conn.First(&user, userID).Error)
	return user.Wallet
}
