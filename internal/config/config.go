// Package config loads pipeline configuration from the environment, with an
// optional YAML overlay for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every knob the pipeline core consumes.
type Config struct {
	AWSRegion string `yaml:"aws_region"`

	// Database. Either a full DSN, or the Data-API style triplet resolved
	// through the secret cache by cmd wiring.
	DatabaseURL   string `yaml:"database_url"`
	DBResourceARN string `yaml:"db_resource_arn"`
	DBSecretARN   string `yaml:"db_secret_arn"`
	DBName        string `yaml:"db_name"`

	RawBucketName    string `yaml:"raw_bucket_name"`
	ExportBucketName string `yaml:"export_bucket_name"`
	SocialBucketName string `yaml:"social_bucket_name"`

	IngestionQueueURL      string `yaml:"ingestion_queue_url"`
	ClassificationQueueURL string `yaml:"classification_queue_url"`
	ReportQueueURL         string `yaml:"report_queue_url"`
	ExportQueueURL         string `yaml:"export_queue_url"`

	ExportSignedURLSeconds int `yaml:"export_signed_url_seconds"`

	ReportConfidenceThreshold float64 `yaml:"report_confidence_threshold"`
	ReportDefaultTimezone     string  `yaml:"report_default_timezone"`
	ReportEmailSender         string  `yaml:"report_email_sender"`

	// Optional dedicated SES sending account. When unset the default AWS
	// credential chain is used.
	SESAccessKey string `yaml:"ses_access_key"`
	SESSecretKey string `yaml:"ses_secret_key"`

	ClassificationPromptVersion  string `yaml:"classification_prompt_version"`
	ClassificationWindowDays     int    `yaml:"classification_window_days"`
	ClassificationSchedulerLimit int    `yaml:"classification_scheduler_limit"`
	BedrockModelID               string `yaml:"bedrock_model_id"`

	AlertCooldownMinutes int    `yaml:"alert_cooldown_minutes"`
	AlertSignalVersion   string `yaml:"alert_signal_version"`

	DefaultQueryTerms string `yaml:"default_query_terms"`

	ServerPort           int    `yaml:"server_port"`
	JWTSecret            string `yaml:"jwt_secret"`
	RedisURL             string `yaml:"redis_url"`
	LogLevel             string `yaml:"log_level"`
	SocialChannels       string `yaml:"social_channels"`
	SocialSpikeThreshold int    `yaml:"social_spike_threshold"`

	Providers ProviderCredentials `yaml:"providers"`
}

// ProviderCredentials holds per-provider API keys and endpoints. Empty keys
// disable the adapter at registry build time.
type ProviderCredentials struct {
	NewsAPIKey    string `yaml:"newsapi_key"`
	GNewsKey      string `yaml:"gnews_key"`
	NewsDataKey   string `yaml:"newsdata_key"`
	MediastackKey string `yaml:"mediastack_key"`
	GDELTBaseURL  string `yaml:"gdelt_base_url"`
	RSSFeedURLs   string `yaml:"rss_feed_urls"`
}

// Load reads .env (if present), an optional CONFIG_FILE YAML overlay, and
// then the environment. Environment variables always win over the overlay.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config overlay %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config overlay %s: %w", path, err)
		}
	}

	cfg.AWSRegion = getEnv("AWS_REGION", or(cfg.AWSRegion, "us-east-1"))

	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.DBResourceARN = getEnv("DB_RESOURCE_ARN", cfg.DBResourceARN)
	cfg.DBSecretARN = getEnv("DB_SECRET_ARN", cfg.DBSecretARN)
	cfg.DBName = getEnv("DB_NAME", cfg.DBName)

	cfg.RawBucketName = getEnv("RAW_BUCKET_NAME", cfg.RawBucketName)
	cfg.ExportBucketName = getEnv("EXPORT_BUCKET_NAME", cfg.ExportBucketName)
	cfg.SocialBucketName = getEnv("SOCIAL_BUCKET_NAME", cfg.SocialBucketName)

	cfg.IngestionQueueURL = getEnv("INGESTION_QUEUE_URL", cfg.IngestionQueueURL)
	cfg.ClassificationQueueURL = getEnv("CLASSIFICATION_QUEUE_URL", cfg.ClassificationQueueURL)
	cfg.ReportQueueURL = getEnv("REPORT_QUEUE_URL", cfg.ReportQueueURL)
	cfg.ExportQueueURL = getEnv("EXPORT_QUEUE_URL", cfg.ExportQueueURL)

	cfg.ExportSignedURLSeconds = getEnvInt("EXPORT_SIGNED_URL_SECONDS", orInt(cfg.ExportSignedURLSeconds, 900))

	cfg.ReportConfidenceThreshold = getEnvFloat("REPORT_CONFIDENCE_THRESHOLD", orFloat(cfg.ReportConfidenceThreshold, 0.65))
	cfg.ReportDefaultTimezone = getEnv("REPORT_DEFAULT_TIMEZONE", or(cfg.ReportDefaultTimezone, "America/Bogota"))
	cfg.ReportEmailSender = getEnv("REPORT_EMAIL_SENDER", cfg.ReportEmailSender)
	cfg.SESAccessKey = getEnv("SES_ACCESS_KEY", cfg.SESAccessKey)
	cfg.SESSecretKey = getEnv("SES_SECRET_KEY", cfg.SESSecretKey)

	cfg.ClassificationPromptVersion = getEnv("CLASSIFICATION_PROMPT_VERSION", or(cfg.ClassificationPromptVersion, "classification-v1"))
	cfg.ClassificationWindowDays = getEnvInt("CLASSIFICATION_WINDOW_DAYS", orInt(cfg.ClassificationWindowDays, 7))
	cfg.ClassificationSchedulerLimit = getEnvInt("CLASSIFICATION_SCHEDULER_LIMIT", orInt(cfg.ClassificationSchedulerLimit, 120))
	cfg.BedrockModelID = getEnv("BEDROCK_MODEL_ID", cfg.BedrockModelID)

	cfg.AlertCooldownMinutes = getEnvInt("ALERT_COOLDOWN_MINUTES", orInt(cfg.AlertCooldownMinutes, 60))
	if cfg.AlertCooldownMinutes < 1 {
		cfg.AlertCooldownMinutes = 1
	}
	if cfg.AlertCooldownMinutes > 1440 {
		cfg.AlertCooldownMinutes = 1440
	}
	cfg.AlertSignalVersion = getEnv("ALERT_SIGNAL_VERSION", or(cfg.AlertSignalVersion, "alert-v1-weighted"))

	cfg.DefaultQueryTerms = getEnv("DEFAULT_QUERY_TERMS", cfg.DefaultQueryTerms)

	cfg.ServerPort = getEnvInt("SERVER_PORT", orInt(cfg.ServerPort, 8080))
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.LogLevel = getEnv("LOG_LEVEL", or(cfg.LogLevel, "info"))
	cfg.SocialChannels = getEnv("SOCIAL_CHANNELS", or(cfg.SocialChannels, "facebook,instagram,x,tiktok"))
	cfg.SocialSpikeThreshold = getEnvInt("SOCIAL_SPIKE_THRESHOLD", cfg.SocialSpikeThreshold)

	cfg.Providers.NewsAPIKey = getEnv("NEWSAPI_API_KEY", cfg.Providers.NewsAPIKey)
	cfg.Providers.GNewsKey = getEnv("GNEWS_API_KEY", cfg.Providers.GNewsKey)
	cfg.Providers.NewsDataKey = getEnv("NEWSDATA_API_KEY", cfg.Providers.NewsDataKey)
	cfg.Providers.MediastackKey = getEnv("MEDIASTACK_API_KEY", cfg.Providers.MediastackKey)
	cfg.Providers.GDELTBaseURL = getEnv("GDELT_BASE_URL", or(cfg.Providers.GDELTBaseURL, "https://api.gdeltproject.org/api/v2/doc/doc"))
	cfg.Providers.RSSFeedURLs = getEnv("RSS_FEED_URLS", cfg.Providers.RSSFeedURLs)

	return cfg, nil
}

// ClassificationWindow returns the scheduler selection window as a duration.
func (c *Config) ClassificationWindow() time.Duration {
	return time.Duration(c.ClassificationWindowDays) * 24 * time.Hour
}

// RequireDB fails fast when neither a DSN nor the Data-API triplet is wired.
func (c *Config) RequireDB() error {
	if c.DatabaseURL != "" {
		return nil
	}
	if c.DBResourceARN == "" || c.DBSecretARN == "" || c.DBName == "" {
		return fmt.Errorf("misconfigured: set DATABASE_URL or the DB_RESOURCE_ARN/DB_SECRET_ARN/DB_NAME triplet")
	}
	return nil
}

// SocialChannelList splits the configured channel names.
func (c *Config) SocialChannelList() []string {
	var out []string
	for _, ch := range strings.Split(c.SocialChannels, ",") {
		if ch = strings.TrimSpace(strings.ToLower(ch)); ch != "" {
			out = append(out, ch)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvBool accepts 1/true/yes/on (case-insensitive) as true.
func getEnvBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func or(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func orInt(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}

func orFloat(v, fallback float64) float64 {
	if v != 0 {
		return v
	}
	return fallback
}
