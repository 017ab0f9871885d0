package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUsersService(t *testing.T) (*UsersService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, sqlDB := newTestDB(t)
	t.Cleanup(func() { sqlDB.Close() })
	return NewUsersService(db, nil, newTestConfig(), newTestLogger(t)), mock
}

func TestHandleReferralReward(t *testing.T) {
	ctx := context.Background()
	const (
		referrerID = "8d0f3a62-0000-4000-8000-0000000000aa"
		referredID = "8d0f3a62-0000-4000-8000-0000000000bb"
		userTaskID = "8d0f3a62-0000-4000-8000-0000000000cc"
	)

	t.Run("PaysReferrerOnFirstApproval", func(t *testing.T) {
		svc, mock := newUsersService(t)

		mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1`).
			WithArgs(referredID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "referred_by"}).
				AddRow(referredID, "user_refd01", referrerID))
		mock.ExpectQuery(`SELECT \* FROM "referral_events" WHERE referred_user_id = \$1`).
			WithArgs(referredID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "referral_events" WHERE referred_user_id = \$1`).
			WithArgs(referredID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectExec(`UPDATE "users" SET "total_points"=total_points \+ \$1`).
			WithArgs(100, referrerID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1`).
			WithArgs(referrerID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "tier", "total_points"}).
				AddRow(referrerID, "user_refr01", "bronze", 100))
		mock.ExpectQuery(`INSERT INTO "referral_events"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("event-1"))
		mock.ExpectCommit()

		require.NoError(t, svc.HandleReferralReward(ctx, referredID, userTaskID))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SkipsWhenAlreadyPaid", func(t *testing.T) {
		svc, mock := newUsersService(t)

		mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1`).
			WithArgs(referredID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "referred_by"}).
				AddRow(referredID, "user_refd01", referrerID))
		mock.ExpectQuery(`SELECT \* FROM "referral_events" WHERE referred_user_id = \$1`).
			WithArgs(referredID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "referred_user_id", "points_awarded"}).
				AddRow("event-1", referrerID, referredID, 100))

		require.NoError(t, svc.HandleReferralReward(ctx, referredID, userTaskID))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SkipsUsersWithoutReferrer", func(t *testing.T) {
		svc, mock := newUsersService(t)

		mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1`).
			WithArgs(referredID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "referred_by"}).
				AddRow(referredID, "user_refd01", nil))

		require.NoError(t, svc.HandleReferralReward(ctx, referredID, userTaskID))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("LostInsertRaceStillSucceeds", func(t *testing.T) {
		svc, mock := newUsersService(t)

		mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1`).
			WithArgs(referredID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "referred_by"}).
				AddRow(referredID, "user_refd01", referrerID))
		mock.ExpectQuery(`SELECT \* FROM "referral_events" WHERE referred_user_id = \$1`).
			WithArgs(referredID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "referral_events" WHERE referred_user_id = \$1`).
			WithArgs(referredID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectExec(`UPDATE "users" SET "total_points"=total_points \+ \$1`).
			WithArgs(100, referrerID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1`).
			WithArgs(referrerID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "tier", "total_points"}).
				AddRow(referrerID, "user_refr01", "bronze", 100))
		mock.ExpectQuery(`INSERT INTO "referral_events"`).
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		require.NoError(t, svc.HandleReferralReward(ctx, referredID, userTaskID))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestHandleLoginSuccess(t *testing.T) {
	ctx := context.Background()
	const userID = "8d0f3a62-0000-4000-8000-0000000000dd"

	t.Run("StampsLoginAndStreak", func(t *testing.T) {
		svc, mock := newUsersService(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1`).
			WithArgs(userID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "wallet_address", "login_streak", "last_login_at"}).
				AddRow(userID, "user_abc123", "0xabc", 3, nil))
		mock.ExpectExec(`UPDATE "users" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, svc.HandleLoginSuccess(ctx, userID))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("MissingUserIsANoop", func(t *testing.T) {
		svc, mock := newUsersService(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1`).
			WithArgs(userID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectCommit()

		require.NoError(t, svc.HandleLoginSuccess(ctx, userID))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetByUsername(t *testing.T) {
	ctx := context.Background()

	t.Run("ReturnsNilWhenMissing", func(t *testing.T) {
		svc, mock := newUsersService(t)

		mock.ExpectQuery(`SELECT \* FROM "users" WHERE username = \$1`).
			WithArgs("ghost", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		user, err := svc.GetByUsername(ctx, "ghost")
		require.NoError(t, err)
		assert.Nil(t, user)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
