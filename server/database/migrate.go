package database

import (
	"database/sql"
	"log"

	_ "github.com/lib/pq"
	"gorm.io/gorm"

	"tasmil/server/internal/models"
)

// MigrateDatabase runs GORM AutoMigrate for every entity and then applies
// raw SQL statements for the constraints the ledger's exactly-once semantics
// depend on. The unique indexes ARE the concurrency contract; the raw pass
// makes sure they exist even when AutoMigrate is skipped on legacy schemas.
func MigrateDatabase(db *gorm.DB, dsn string) error {
	log.Println("Running GORM migrations...")
	err := db.AutoMigrate(
		&models.User{},
		&models.Campaign{},
		&models.Task{},
		&models.UserTask{},
		&models.TaskClaim{},
		&models.CampaignClaim{},
		&models.ReferralEvent{},
		&models.CampaignParticipation{},
		&models.UserSocialAccount{},
		&models.Notification{},
	)
	if err != nil {
		return err
	}
	log.Println("GORM migrations executed successfully.")

	dbSQL, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer dbSQL.Close()

	return executeSQLMigrations(dbSQL)
}

// executeSQLMigrations enforces the unique constraints as a safety fallback.
func executeSQLMigrations(db *sql.DB) error {
	queries := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_task_claim_user_task
			ON task_claims (user_id, task_id);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_campaign_claim_user_campaign
			ON campaign_claims (user_id, campaign_id);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_referral_events_referred_user_id
			ON referral_events (referred_user_id);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_user_task_user_task
			ON user_tasks (user_id, task_id);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_campaign_participation_user_campaign
			ON campaign_participation (user_id, campaign_id);`,
		`CREATE INDEX IF NOT EXISTS idx_users_total_points
			ON users (total_points DESC);`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			log.Printf("Failed to execute query: %s, error: %v", query, err)
			return err
		}
	}
	log.Println("Raw SQL migrations executed successfully.")
	return nil
}
