package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/matchbase/marketplace/pkg/logger"
)

// Config holds application configuration
type Config struct {
	Server      ServerConfig
	MongoDB     MongoDBConfig
	Redis       RedisConfig
	Keycloak    KeycloakConfig
	JWT         JWTConfig
	Meili       MeiliConfig
	MinIO       MinIOConfig
	Mail        MailConfig
	RateLimit   RateLimitConfig
	Marketplace MarketplaceConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type KeycloakConfig struct {
	URL      string
	Realm    string
	ClientID string
}

// JWTConfig configures HS256 service tokens used by the admin API and CLI.
type JWTConfig struct {
	Secret   string
	TokenTTL time.Duration
}

type MeiliConfig struct {
	URL         string
	APIKey      string
	IndexPrefix string
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type MailConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type RateLimitConfig struct {
	Enabled       bool
	RPS           float64
	Burst         int
	UseRedis      bool
	WindowSeconds int
}

type MarketplaceConfig struct {
	DemoAccountID      string
	Timezone           string
	BatchPageSize      int
	ReconcileCron      string
	ReconcileWorkers   int
	RevocationTTL      time.Duration
	EnableScheduledJob bool
}

// Location resolves the configured timezone, falling back to UTC.
func (m MarketplaceConfig) Location() *time.Location {
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoadConfig loads configuration from environment variables and an optional .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5001")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("MONGODB_DATABASE", "marketplace")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("JWT_TOKEN_TTL", 60)
	viper.SetDefault("MEILI_URL", "http://localhost:7700")
	viper.SetDefault("MINIO_BUCKET", "marketplace")
	viper.SetDefault("MAIL_PORT", "587")
	viper.SetDefault("RATE_LIMIT_RPS", 10)
	viper.SetDefault("RATE_LIMIT_BURST", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	viper.SetDefault("MARKETPLACE_TIMEZONE", "Asia/Tokyo")
	viper.SetDefault("MARKETPLACE_BATCH_PAGE_SIZE", 50)
	viper.SetDefault("RECONCILE_CRON", "0 4 * * *")
	viper.SetDefault("RECONCILE_WORKERS", 8)
	viper.SetDefault("RECONCILE_ENABLED", true)
	viper.SetDefault("REVOCATION_TTL_HOURS", 24)

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		return nil, fmt.Errorf("environment variable MONGODB_URI is required")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      uri,
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Keycloak: KeycloakConfig{
			URL:      viper.GetString("KEYCLOAK_URL"),
			Realm:    viper.GetString("KEYCLOAK_REALM"),
			ClientID: viper.GetString("KEYCLOAK_CLIENT_ID"),
		},
		JWT: JWTConfig{
			Secret:   os.Getenv("JWT_SECRET"),
			TokenTTL: time.Duration(viper.GetInt("JWT_TOKEN_TTL")) * time.Minute,
		},
		Meili: MeiliConfig{
			URL:         viper.GetString("MEILI_URL"),
			APIKey:      os.Getenv("MEILI_API_KEY"),
			IndexPrefix: viper.GetString("MEILI_INDEX_PREFIX"),
		},
		MinIO: MinIOConfig{
			Endpoint:  viper.GetString("MINIO_ENDPOINT"),
			AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:    viper.GetBool("MINIO_USE_SSL"),
			Bucket:    viper.GetString("MINIO_BUCKET"),
		},
		Mail: MailConfig{
			Host:     viper.GetString("MAIL_HOST"),
			Port:     viper.GetString("MAIL_PORT"),
			Username: viper.GetString("MAIL_USERNAME"),
			Password: os.Getenv("MAIL_PASSWORD"),
			From:     viper.GetString("MAIL_FROM"),
			FromName: viper.GetString("MAIL_FROM_NAME"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Marketplace: MarketplaceConfig{
			DemoAccountID:      viper.GetString("MARKETPLACE_DEMO_ACCOUNT"),
			Timezone:           viper.GetString("MARKETPLACE_TIMEZONE"),
			BatchPageSize:      viper.GetInt("MARKETPLACE_BATCH_PAGE_SIZE"),
			ReconcileCron:      viper.GetString("RECONCILE_CRON"),
			ReconcileWorkers:   viper.GetInt("RECONCILE_WORKERS"),
			RevocationTTL:      time.Duration(viper.GetInt("REVOCATION_TTL_HOURS")) * time.Hour,
			EnableScheduledJob: viper.GetBool("RECONCILE_ENABLED"),
		},
	}

	if cfg.JWT.Secret == "" {
		logger.Warnf("JWT_SECRET is not set; admin endpoints will reject every token")
	}
	if cfg.Marketplace.BatchPageSize <= 0 {
		cfg.Marketplace.BatchPageSize = 50
	}

	return cfg, nil
}
