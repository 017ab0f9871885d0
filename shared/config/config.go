package config

import (
	"log"
	"sync"

	"github.com/spf13/viper"
)

// AuthConfig groups token and nonce lifetimes plus the referral bonus.
type AuthConfig struct {
	NonceTTLSeconds      int    `mapstructure:"nonce_ttl_seconds"`
	AccessTTLSeconds     int    `mapstructure:"access_ttl_seconds"`
	RefreshTTLSeconds    int    `mapstructure:"refresh_ttl_seconds"`
	LoginMessagePrefix   string `mapstructure:"login_message_prefix"`
	ReferralRewardPoints int    `mapstructure:"referral_reward_points"`
	DailyLoginReward     int    `mapstructure:"daily_login_reward"`
}

// RateLimitConfig is the per-key budget applied to auth endpoints.
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

// CacheConfig controls the campaign read-through cache.
type CacheConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

// Config defines the global configuration structure.
type Config struct {
	App struct {
		Port        string `mapstructure:"port"`
		Environment string `mapstructure:"environment"`
	} `mapstructure:"app"`

	Logging struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`

	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Cache     CacheConfig     `mapstructure:"cache"`
}

var (
	globalConfig *Config
	configLock   sync.RWMutex
)

// LoadConfig loads configuration from the specified file path and merges it
// with environment variable overrides.
func LoadConfig(path string) (*Config, error) {
	log.Printf("Starting to load configuration from file: %s", path)

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	viper.SetEnvPrefix("APP")
	viper.BindEnv("app.port", "PORT")
	viper.BindEnv("app.environment", "ENVIRONMENT")
	viper.BindEnv("logging.level", "LOG_LEVEL")
	viper.BindEnv("auth.referral_reward_points", "REFERRAL_REWARD_POINTS")

	var cfg Config

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		log.Printf("Error unmarshalling configuration: %v", err)
		return nil, err
	}

	applyDefaults(&cfg)

	log.Printf("Loaded configuration from file: %s", path)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Auth.NonceTTLSeconds == 0 {
		cfg.Auth.NonceTTLSeconds = 300
	}
	if cfg.Auth.AccessTTLSeconds == 0 {
		cfg.Auth.AccessTTLSeconds = 900
	}
	if cfg.Auth.RefreshTTLSeconds == 0 {
		cfg.Auth.RefreshTTLSeconds = 604800
	}
	if cfg.Auth.LoginMessagePrefix == "" {
		cfg.Auth.LoginMessagePrefix = "Tasmil Login Nonce: "
	}
	if cfg.Auth.ReferralRewardPoints == 0 {
		cfg.Auth.ReferralRewardPoints = 100
	}
	if cfg.Auth.DailyLoginReward == 0 {
		cfg.Auth.DailyLoginReward = 10
	}
	if cfg.RateLimit.RequestsPerMinute == 0 {
		cfg.RateLimit.RequestsPerMinute = 20
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 5
	}
	if cfg.Cache.TTLSeconds == 0 {
		cfg.Cache.TTLSeconds = 60
	}
}

// SetGlobalConfig sets the loaded configuration globally.
func SetGlobalConfig(cfg *Config) {
	configLock.Lock()
	defer configLock.Unlock()
	globalConfig = cfg
}

// GetGlobalConfig retrieves the globally set configuration.
func GetGlobalConfig() *Config {
	configLock.RLock()
	defer configLock.RUnlock()
	if globalConfig == nil {
		log.Println("GetGlobalConfig: Global configuration is nil.")
	}
	return globalConfig
}
