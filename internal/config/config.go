package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port               string        `mapstructure:"PORT"`
	Env                string        `mapstructure:"ENV"`
	AppBaseURL         string        `mapstructure:"APP_BASE_URL"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL           string        `mapstructure:"REDIS_URL"`
	JWTSigningKey      string        `mapstructure:"JWT_SIGNING_KEY"`
	JWTIssuer          string        `mapstructure:"JWT_ISSUER"`
	TokenTTL           time.Duration `mapstructure:"TOKEN_TTL"`
	CookieSecure       bool          `mapstructure:"COOKIE_SECURE"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS       float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int           `mapstructure:"RATE_LIMIT_BURST"`
	StorageBackend     string        `mapstructure:"STORAGE_BACKEND"`
	S3Bucket           string        `mapstructure:"S3_BUCKET"`
	S3Region           string        `mapstructure:"S3_REGION"`
	S3Endpoint         string        `mapstructure:"S3_ENDPOINT"`
	S3AccessKeyID      string        `mapstructure:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey  string        `mapstructure:"S3_SECRET_ACCESS_KEY"`
	StoragePublicURL   string        `mapstructure:"STORAGE_PUBLIC_BASE_URL"`
	SendGridAPIKey     string        `mapstructure:"SENDGRID_API_KEY"`
	MailFrom           string        `mapstructure:"MAIL_FROM"`
	PhoneDefaultRegion string        `mapstructure:"PHONE_DEFAULT_REGION"`
	LogLevel           string        `mapstructure:"LOG_LEVEL"`
	LogFile            string        `mapstructure:"LOG_FILE"`
	ReminderCron       string        `mapstructure:"REMINDER_CRON"`
	TLSEnabled         bool          `mapstructure:"TLS_ENABLED"`
	TLSCertFile        string        `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile         string        `mapstructure:"TLS_KEY_FILE"`
}

var keys = []string{
	"PORT", "ENV", "APP_BASE_URL", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"JWT_SIGNING_KEY", "JWT_ISSUER", "TOKEN_TTL", "COOKIE_SECURE", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "STORAGE_BACKEND", "S3_BUCKET", "S3_REGION",
	"S3_ENDPOINT", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY", "STORAGE_PUBLIC_BASE_URL",
	"SENDGRID_API_KEY", "MAIL_FROM", "PHONE_DEFAULT_REGION", "LOG_LEVEL", "LOG_FILE",
	"REMINDER_CRON", "TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("APP_BASE_URL", "http://localhost:3000")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("JWT_ISSUER", "medconnect")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("STORAGE_BACKEND", "memory")
	v.SetDefault("S3_BUCKET", "medical-reports")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("MAIL_FROM", "no-reply@medconnect.local")
	v.SetDefault("PHONE_DEFAULT_REGION", "US")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REMINDER_CRON", "0 7 * * *")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitTrim(origins)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// a JWT signing key of at least 32 bytes is required, and the S3 backend needs
// a bucket.
func (c *Config) Validate() error {
	if !c.IsDev() && len(c.JWTSigningKey) < 32 {
		return fmt.Errorf("JWT_SIGNING_KEY must be at least 32 bytes outside development (ENV=%q)", c.Env)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}

	switch c.StorageBackend {
	case "memory":
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND is \"s3\"")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be \"memory\" or \"s3\", got %q", c.StorageBackend)
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}

// EffectiveSigningKey returns the configured JWT key, falling back to a fixed
// development key when running locally without one.
func (c *Config) EffectiveSigningKey() []byte {
	if c.JWTSigningKey == "" && c.IsDev() {
		return []byte("medconnect-development-signing-key-0000")
	}
	return []byte(c.JWTSigningKey)
}
