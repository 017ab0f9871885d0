package services

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"tasmil/shared/config"
	"tasmil/shared/logger"
)

func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)
	return db, mock, sqlDB
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	appLogger, err := logger.NewLogger(logger.Config{Level: "error", Environment: "development"})
	require.NoError(t, err)
	return appLogger
}

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Auth.NonceTTLSeconds = 300
	cfg.Auth.AccessTTLSeconds = 900
	cfg.Auth.RefreshTTLSeconds = 604800
	cfg.Auth.LoginMessagePrefix = "Tasmil Login Nonce: "
	cfg.Auth.ReferralRewardPoints = 100
	cfg.Auth.DailyLoginReward = 10
	cfg.Cache.TTLSeconds = 60
	return cfg
}
