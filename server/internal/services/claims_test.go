package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasmil/shared/apperr"
)

func newClaimsService(t *testing.T) (*ClaimsService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, sqlDB := newTestDB(t)
	t.Cleanup(func() { sqlDB.Close() })
	appLogger := newTestLogger(t)
	users := NewUsersService(db, nil, newTestConfig(), appLogger)
	return NewClaimsService(db, users, appLogger), mock
}

func TestClaimTask(t *testing.T) {
	ctx := context.Background()
	const (
		userID     = "8d0f3a62-0000-4000-8000-000000000001"
		taskID     = "8d0f3a62-0000-4000-8000-000000000002"
		campaignID = "8d0f3a62-0000-4000-8000-000000000003"
	)

	t.Run("PaysApprovedTask", func(t *testing.T) {
		svc, mock := newClaimsService(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "user_tasks" WHERE user_id = \$1 AND task_id = \$2(.+)FOR UPDATE`).
			WithArgs(userID, taskID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "campaign_id", "task_id", "status", "points_earned"}).
				AddRow("ut-1", userID, campaignID, taskID, "approved", 50))
		mock.ExpectQuery(`SELECT \* FROM "tasks" WHERE id = \$1`).
			WithArgs(taskID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "campaign_id", "name", "reward_points"}).
				AddRow(taskID, campaignID, "Follow us", 50))
		mock.ExpectQuery(`INSERT INTO "task_claims"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("claim-1"))
		mock.ExpectExec(`UPDATE "users" SET "total_points"=total_points \+ \$1`).
			WithArgs(50, userID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1`).
			WithArgs(userID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "tier", "total_points"}).
				AddRow(userID, "user_abc123", "bronze", 50))
		mock.ExpectCommit()

		claim, err := svc.ClaimTask(ctx, userID, taskID)
		require.NoError(t, err)
		assert.Equal(t, 50, claim.PointsEarned)
		assert.Equal(t, campaignID, claim.CampaignID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("FallsBackToTaskRewardWhenPointsUnset", func(t *testing.T) {
		svc, mock := newClaimsService(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "user_tasks" WHERE user_id = \$1 AND task_id = \$2(.+)FOR UPDATE`).
			WithArgs(userID, taskID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "campaign_id", "task_id", "status", "points_earned"}).
				AddRow("ut-1", userID, campaignID, taskID, "completed", 0))
		mock.ExpectQuery(`SELECT \* FROM "tasks" WHERE id = \$1`).
			WithArgs(taskID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "campaign_id", "name", "reward_points"}).
				AddRow(taskID, campaignID, "Join server", 75))
		mock.ExpectQuery(`INSERT INTO "task_claims"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("claim-1"))
		mock.ExpectExec(`UPDATE "user_tasks" SET "points_earned"=\$1`).
			WithArgs(75, "ut-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE "users" SET "total_points"=total_points \+ \$1`).
			WithArgs(75, userID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1`).
			WithArgs(userID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "tier", "total_points"}).
				AddRow(userID, "user_abc123", "bronze", 75))
		mock.ExpectCommit()

		claim, err := svc.ClaimTask(ctx, userID, taskID)
		require.NoError(t, err)
		assert.Equal(t, 75, claim.PointsEarned)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RejectsMissingProgress", func(t *testing.T) {
		svc, mock := newClaimsService(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "user_tasks" WHERE user_id = \$1 AND task_id = \$2(.+)FOR UPDATE`).
			WithArgs(userID, taskID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		_, err := svc.ClaimTask(ctx, userID, taskID)
		appErr := apperr.As(err)
		require.NotNil(t, appErr)
		assert.Equal(t, "TASK_NOT_APPROVED", appErr.Code)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RejectsSubmittedStatus", func(t *testing.T) {
		svc, mock := newClaimsService(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "user_tasks" WHERE user_id = \$1 AND task_id = \$2(.+)FOR UPDATE`).
			WithArgs(userID, taskID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "campaign_id", "task_id", "status", "points_earned"}).
				AddRow("ut-1", userID, campaignID, taskID, "submitted", 0))
		mock.ExpectRollback()

		_, err := svc.ClaimTask(ctx, userID, taskID)
		appErr := apperr.As(err)
		require.NotNil(t, appErr)
		assert.Equal(t, "TASK_NOT_APPROVED", appErr.Code)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DuplicateInsertIsAlreadyClaimed", func(t *testing.T) {
		svc, mock := newClaimsService(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "user_tasks" WHERE user_id = \$1 AND task_id = \$2(.+)FOR UPDATE`).
			WithArgs(userID, taskID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "campaign_id", "task_id", "status", "points_earned"}).
				AddRow("ut-1", userID, campaignID, taskID, "approved", 50))
		mock.ExpectQuery(`SELECT \* FROM "tasks" WHERE id = \$1`).
			WithArgs(taskID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "campaign_id", "name", "reward_points"}).
				AddRow(taskID, campaignID, "Follow us", 50))
		mock.ExpectQuery(`INSERT INTO "task_claims"`).
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		_, err := svc.ClaimTask(ctx, userID, taskID)
		appErr := apperr.As(err)
		require.NotNil(t, appErr)
		assert.Equal(t, "ALREADY_CLAIMED", appErr.Code)
		assert.Equal(t, 409, appErr.Status)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestClaimCampaign(t *testing.T) {
	ctx := context.Background()
	const (
		userID     = "8d0f3a62-0000-4000-8000-000000000001"
		campaignID = "8d0f3a62-0000-4000-8000-000000000003"
		taskA      = "8d0f3a62-0000-4000-8000-00000000000a"
		taskB      = "8d0f3a62-0000-4000-8000-00000000000b"
	)

	t.Run("PaysBonusPlusTaskRewards", func(t *testing.T) {
		svc, mock := newClaimsService(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "campaigns" WHERE id = \$1`).
			WithArgs(campaignID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "title", "reward_points"}).
				AddRow(campaignID, "Launch quest", 500))
		mock.ExpectQuery(`SELECT \* FROM "tasks" WHERE campaign_id = \$1`).
			WithArgs(campaignID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "campaign_id", "reward_points"}).
				AddRow(taskA, campaignID, 50).
				AddRow(taskB, campaignID, 75))
		mock.ExpectQuery(`SELECT \* FROM "user_tasks" WHERE user_id = \$1 AND campaign_id = \$2 AND status IN`).
			WithArgs(userID, campaignID, "approved", "completed").
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "campaign_id", "task_id", "status", "points_earned"}).
				AddRow("ut-a", userID, campaignID, taskA, "approved", 60).
				AddRow("ut-b", userID, campaignID, taskB, "completed", 0))
		mock.ExpectQuery(`SELECT \* FROM "campaign_claims" WHERE user_id = \$1 AND campaign_id = \$2`).
			WithArgs(userID, campaignID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery(`INSERT INTO "campaign_claims"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("claim-1"))
		mock.ExpectExec(`UPDATE "users" SET "total_points"=total_points \+ \$1`).
			WithArgs(635, userID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1`).
			WithArgs(userID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "tier", "total_points"}).
				AddRow(userID, "user_abc123", "bronze", 635))
		mock.ExpectExec(`UPDATE "users" SET "tier"=\$1`).
			WithArgs("silver", userID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		result, err := svc.ClaimCampaign(ctx, userID, campaignID)
		require.NoError(t, err)
		assert.Equal(t, 500, result.CampaignReward)
		assert.Equal(t, 135, result.TaskRewardTotal)
		assert.Equal(t, 635, result.Total)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RejectsIncompleteTasks", func(t *testing.T) {
		svc, mock := newClaimsService(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "campaigns" WHERE id = \$1`).
			WithArgs(campaignID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "title", "reward_points"}).
				AddRow(campaignID, "Launch quest", 500))
		mock.ExpectQuery(`SELECT \* FROM "tasks" WHERE campaign_id = \$1`).
			WithArgs(campaignID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "campaign_id", "reward_points"}).
				AddRow(taskA, campaignID, 50).
				AddRow(taskB, campaignID, 75))
		mock.ExpectQuery(`SELECT \* FROM "user_tasks" WHERE user_id = \$1 AND campaign_id = \$2 AND status IN`).
			WithArgs(userID, campaignID, "approved", "completed").
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "campaign_id", "task_id", "status", "points_earned"}).
				AddRow("ut-a", userID, campaignID, taskA, "approved", 60))
		mock.ExpectRollback()

		_, err := svc.ClaimCampaign(ctx, userID, campaignID)
		appErr := apperr.As(err)
		require.NotNil(t, appErr)
		assert.Equal(t, "CAMPAIGN_TASKS_INCOMPLETE", appErr.Code)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RejectsCampaignWithoutTasks", func(t *testing.T) {
		svc, mock := newClaimsService(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "campaigns" WHERE id = \$1`).
			WithArgs(campaignID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "title", "reward_points"}).
				AddRow(campaignID, "Empty quest", 500))
		mock.ExpectQuery(`SELECT \* FROM "tasks" WHERE campaign_id = \$1`).
			WithArgs(campaignID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "campaign_id", "reward_points"}))
		mock.ExpectRollback()

		_, err := svc.ClaimCampaign(ctx, userID, campaignID)
		appErr := apperr.As(err)
		require.NotNil(t, appErr)
		assert.Equal(t, "CAMPAIGN_HAS_NO_TASKS", appErr.Code)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SecondClaimConflicts", func(t *testing.T) {
		svc, mock := newClaimsService(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "campaigns" WHERE id = \$1`).
			WithArgs(campaignID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "title", "reward_points"}).
				AddRow(campaignID, "Launch quest", 500))
		mock.ExpectQuery(`SELECT \* FROM "tasks" WHERE campaign_id = \$1`).
			WithArgs(campaignID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "campaign_id", "reward_points"}).
				AddRow(taskA, campaignID, 50))
		mock.ExpectQuery(`SELECT \* FROM "user_tasks" WHERE user_id = \$1 AND campaign_id = \$2 AND status IN`).
			WithArgs(userID, campaignID, "approved", "completed").
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "campaign_id", "task_id", "status", "points_earned"}).
				AddRow("ut-a", userID, campaignID, taskA, "approved", 50))
		mock.ExpectQuery(`SELECT \* FROM "campaign_claims" WHERE user_id = \$1 AND campaign_id = \$2`).
			WithArgs(userID, campaignID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "campaign_id", "points_earned"}).
				AddRow("claim-1", userID, campaignID, 550))
		mock.ExpectRollback()

		_, err := svc.ClaimCampaign(ctx, userID, campaignID)
		appErr := apperr.As(err)
		require.NotNil(t, appErr)
		assert.Equal(t, "ALREADY_CLAIMED", appErr.Code)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
