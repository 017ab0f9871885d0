package env

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

var (
	Port string

	DatabaseURL string
	RedisURL    string

	JWTAccessSecret  string
	JWTRefreshSecret string

	TelegramBotToken   string
	DiscordAPIBaseURL  string
	TwitterAPIBaseURL  string
	TwitterBearerToken string

	PGHOST     string
	PGPORT     string
	PGUSER     string
	PGPASSWORD string
	PGDATABASE string
)

func loadEnvVariable(key string, isRequired bool) string {
	value := os.Getenv(key)
	if isRequired && value == "" {
		log.Fatalf("FATAL: Environment variable %s is required but not set.", key)
	}
	isHidden := key == "JWT_ACCESS_SECRET" || key == "JWT_REFRESH_SECRET" ||
		key == "TELEGRAM_BOT_TOKEN" || key == "TWITTER_BEARER_TOKEN" ||
		key == "DATABASE_URL" || key == "PGPASSWORD" || key == "REDIS_URL"
	if value == "" {
		if !isRequired {
			log.Printf("INFO: Environment variable %s is not set.", key)
		}
	} else if isHidden {
		log.Printf("INFO: Loaded %s (value hidden)", key)
	} else {
		log.Printf("INFO: Loaded %s = %s", key, value)
	}
	return value
}

func LoadEnv() error {
	if err := godotenv.Load(); err != nil {
		log.Println("INFO: .env file not found or error loading, relying on system environment variables.")
	} else {
		log.Println("INFO: .env file loaded successfully.")
	}

	Port = loadEnvVariable("PORT", false)
	if Port == "" {
		Port = "8080"
		log.Printf("INFO: PORT not set, defaulting to %s", Port)
	}

	DatabaseURL = loadEnvVariable("DATABASE_URL", false)
	RedisURL = loadEnvVariable("REDIS_URL", false)
	if RedisURL == "" {
		RedisURL = "redis://localhost:6379/0"
		log.Printf("INFO: REDIS_URL not set, defaulting to %s", RedisURL)
	}

	JWTAccessSecret = loadEnvVariable("JWT_ACCESS_SECRET", true)
	JWTRefreshSecret = loadEnvVariable("JWT_REFRESH_SECRET", true)

	TelegramBotToken = loadEnvVariable("TELEGRAM_BOT_TOKEN", false)
	TwitterBearerToken = loadEnvVariable("TWITTER_BEARER_TOKEN", false)
	DiscordAPIBaseURL = loadEnvVariable("DISCORD_API_BASE_URL", false)
	TwitterAPIBaseURL = loadEnvVariable("TWITTER_API_BASE_URL", false)

	PGHOST = loadEnvVariable("PGHOST", false)
	PGPORT = loadEnvVariable("PGPORT", false)
	PGUSER = loadEnvVariable("PGUSER", false)
	PGPASSWORD = loadEnvVariable("PGPASSWORD", false)
	PGDATABASE = loadEnvVariable("PGDATABASE", false)

	if DatabaseURL == "" {
		log.Println("WARN: DATABASE_URL is not set. Connection logic will rely on PG* variables.")
	}
	if TelegramBotToken == "" {
		log.Println("WARN: TELEGRAM_BOT_TOKEN is not set. Telegram task verification will fail until configured.")
	}

	log.Println("INFO: Environment variables loading process complete.")
	return nil
}
