package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Auth and PHI protection.
	SecretKey                string `mapstructure:"SECRET_KEY"`
	AccessTokenExpireMinutes int    `mapstructure:"ACCESS_TOKEN_EXPIRE_MINUTES"`
	RefreshTokenExpireDays   int    `mapstructure:"REFRESH_TOKEN_EXPIRE_DAYS"`
	PatientDataEncryptionKey string `mapstructure:"PATIENT_DATA_ENCRYPTION_KEY"`
	// Previous passphrases kept for decrypting records written before a key
	// rotation. Newest first.
	PatientDataEncryptionKeyPrevious []string `mapstructure:"PATIENT_DATA_ENCRYPTION_KEY_PREVIOUS"`
	AuditLogRetentionDays            int      `mapstructure:"AUDIT_LOG_RETENTION_DAYS"`

	// GoHighLevel CRM (MCP protocol).
	GHLMCPServerURL   string `mapstructure:"GHL_MCP_SERVER_URL"`
	GHLAPIKey         string `mapstructure:"GHL_API_KEY"`
	GHLLocationID     string `mapstructure:"GHL_LOCATION_ID"`
	GHLTimeoutSeconds int    `mapstructure:"GHL_TIMEOUT_SECONDS"`

	// Chat behavior.
	MaxConversationHistory int    `mapstructure:"MAX_CONVERSATION_HISTORY"`
	SessionTimeoutMinutes  int    `mapstructure:"SESSION_TIMEOUT_MINUTES"`
	EmergencyContactEmail  string `mapstructure:"EMERGENCY_CONTACT_EMAIL"`
	WidgetBaseURL          string `mapstructure:"WIDGET_BASE_URL"`

	// Rate limiting. The public widget and patient chat endpoints get a much
	// stricter per-IP budget than the authenticated dashboard API.
	RateLimitRPS         float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst       int     `mapstructure:"RATE_LIMIT_BURST"`
	PublicRateLimitRPS   float64 `mapstructure:"PUBLIC_RATE_LIMIT_RPS"`
	PublicRateLimitBurst int     `mapstructure:"PUBLIC_RATE_LIMIT_BURST"`

	// Event stream (optional). Empty brokers disable publishing.
	KafkaBrokers []string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string   `mapstructure:"KAFKA_TOPIC"`

	// Knowledge-base document storage (optional). Empty bucket keeps
	// documents in memory.
	S3Bucket   string `mapstructure:"S3_BUCKET"`
	S3Endpoint string `mapstructure:"S3_ENDPOINT"`
	S3Region   string `mapstructure:"S3_REGION"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	v.SetDefault("REFRESH_TOKEN_EXPIRE_DAYS", 7)
	v.SetDefault("AUDIT_LOG_RETENTION_DAYS", 2555)
	v.SetDefault("GHL_MCP_SERVER_URL", "http://localhost:3000")
	v.SetDefault("GHL_TIMEOUT_SECONDS", 30)
	v.SetDefault("MAX_CONVERSATION_HISTORY", 50)
	v.SetDefault("SESSION_TIMEOUT_MINUTES", 30)
	v.SetDefault("WIDGET_BASE_URL", "https://moonraker-engage.com")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("PUBLIC_RATE_LIMIT_RPS", 5)
	v.SetDefault("PUBLIC_RATE_LIMIT_BURST", 10)
	v.SetDefault("KAFKA_TOPIC", "engage.events")
	v.SetDefault("S3_REGION", "us-east-1")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("SECRET_KEY")
	v.BindEnv("ACCESS_TOKEN_EXPIRE_MINUTES")
	v.BindEnv("REFRESH_TOKEN_EXPIRE_DAYS")
	v.BindEnv("PATIENT_DATA_ENCRYPTION_KEY")
	v.BindEnv("PATIENT_DATA_ENCRYPTION_KEY_PREVIOUS")
	v.BindEnv("AUDIT_LOG_RETENTION_DAYS")
	v.BindEnv("GHL_MCP_SERVER_URL")
	v.BindEnv("GHL_API_KEY")
	v.BindEnv("GHL_LOCATION_ID")
	v.BindEnv("GHL_TIMEOUT_SECONDS")
	v.BindEnv("MAX_CONVERSATION_HISTORY")
	v.BindEnv("SESSION_TIMEOUT_MINUTES")
	v.BindEnv("EMERGENCY_CONTACT_EMAIL")
	v.BindEnv("WIDGET_BASE_URL")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("PUBLIC_RATE_LIMIT_RPS")
	v.BindEnv("PUBLIC_RATE_LIMIT_BURST")
	v.BindEnv("KAFKA_BROKERS")
	v.BindEnv("KAFKA_TOPIC")
	v.BindEnv("S3_BUCKET")
	v.BindEnv("S3_ENDPOINT")
	v.BindEnv("S3_REGION")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	if cfg.KafkaBrokers == nil {
		if brokers := v.GetString("KAFKA_BROKERS"); brokers != "" {
			cfg.KafkaBrokers = strings.Split(brokers, ",")
		}
	}
	if cfg.PatientDataEncryptionKeyPrevious == nil {
		if prev := v.GetString("PATIENT_DATA_ENCRYPTION_KEY_PREVIOUS"); prev != "" {
			cfg.PatientDataEncryptionKeyPrevious = strings.Split(prev, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active — all requests get owner access.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: Set ENV=production and a strong SECRET_KEY for production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// GHLConfigured reports whether the CRM connection is fully configured.
// When false, callers serve demo data instead of calling out.
func (c *Config) GHLConfigured() bool {
	return c.GHLMCPServerURL != "" && c.GHLAPIKey != "" && c.GHLLocationID != ""
}

// Validate checks that the configuration is safe to run. Outside development
// the JWT signing secret must be set and long enough to resist brute force.
// In production the patient-data encryption key is also required so PHI is
// never stored in the clear.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.SecretKey == "" {
			return fmt.Errorf(
				"SECRET_KEY is required when ENV=%q. Refusing to start without a JWT signing secret", c.Env)
		}
		if len(c.SecretKey) < 32 {
			return fmt.Errorf("SECRET_KEY must be at least 32 characters, got %d", len(c.SecretKey))
		}
	}

	if c.IsProduction() && c.PatientDataEncryptionKey == "" {
		return fmt.Errorf("PATIENT_DATA_ENCRYPTION_KEY is required in production")
	}

	if c.AccessTokenExpireMinutes <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive, got %d", c.AccessTokenExpireMinutes)
	}
	if c.RefreshTokenExpireDays <= 0 {
		return fmt.Errorf("REFRESH_TOKEN_EXPIRE_DAYS must be positive, got %d", c.RefreshTokenExpireDays)
	}

	if c.S3Endpoint != "" && c.S3Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required when S3_ENDPOINT is set")
	}

	return nil
}
