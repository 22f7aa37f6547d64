package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/ulule/limiter/v3"
)

type Config struct {
	Addr               string
	DatabaseURL        string
	JWTSecret          string
	TokenTTL           time.Duration
	Environment        string
	SeedOrgName        string
	SeedAdminEmail     string
	SeedAdminPassword  string
	EmailFrom          string
	EmailEnabled       bool
	SMTPHost           string
	SMTPPort           int
	SMTPUser           string
	SMTPPassword       string
	SMTPUseTLS         bool
	RunMigrations      bool
	RunSeed            bool
	MaxBodyBytes       int64
	RateLimit          string
	RedisURL           string
	ReminderInterval   time.Duration
	CORSAllowedOrigins []string
	LogLevel           string
	LogFormat          string
	MetricsEnabled     bool
	SubmitLocksEntries bool
}

var defaults = map[string]any{
	"APP_ADDR":             ":8080",
	"APP_ENV":              "development",
	"DATABASE_URL":         "",
	"JWT_SECRET":           "",
	"TOKEN_TTL":            12 * time.Hour,
	"SEED_ORG_NAME":        "Default Organization",
	"SEED_ADMIN_EMAIL":     "",
	"SEED_ADMIN_PASSWORD":  "",
	"EMAIL_FROM":           "no-reply@example.com",
	"EMAIL_ENABLED":        false,
	"SMTP_HOST":            "",
	"SMTP_PORT":            587,
	"SMTP_USER":            "",
	"SMTP_PASSWORD":        "",
	"SMTP_USE_TLS":         true,
	"RUN_MIGRATIONS":       true,
	"RUN_SEED":             false,
	"MAX_BODY_BYTES":       1048576,
	"RATE_LIMIT":           "120-M",
	"REDIS_URL":            "",
	"REMINDER_INTERVAL":    24 * time.Hour,
	"CORS_ALLOWED_ORIGINS": "",
	"LOG_LEVEL":            "info",
	"LOG_FORMAT":           "json",
	"METRICS_ENABLED":      true,
	"SUBMIT_LOCKS_ENTRIES": false,
}

// Load reads configuration from the environment, optionally layered over
// the file named by CONFIG_FILE.
func Load() Config {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		_ = v.ReadInConfig()
	}

	return Config{
		Addr:               v.GetString("APP_ADDR"),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		TokenTTL:           v.GetDuration("TOKEN_TTL"),
		Environment:        v.GetString("APP_ENV"),
		SeedOrgName:        v.GetString("SEED_ORG_NAME"),
		SeedAdminEmail:     v.GetString("SEED_ADMIN_EMAIL"),
		SeedAdminPassword:  v.GetString("SEED_ADMIN_PASSWORD"),
		EmailFrom:          v.GetString("EMAIL_FROM"),
		EmailEnabled:       v.GetBool("EMAIL_ENABLED"),
		SMTPHost:           v.GetString("SMTP_HOST"),
		SMTPPort:           v.GetInt("SMTP_PORT"),
		SMTPUser:           v.GetString("SMTP_USER"),
		SMTPPassword:       v.GetString("SMTP_PASSWORD"),
		SMTPUseTLS:         v.GetBool("SMTP_USE_TLS"),
		RunMigrations:      v.GetBool("RUN_MIGRATIONS"),
		RunSeed:            v.GetBool("RUN_SEED"),
		MaxBodyBytes:       v.GetInt64("MAX_BODY_BYTES"),
		RateLimit:          v.GetString("RATE_LIMIT"),
		RedisURL:           v.GetString("REDIS_URL"),
		ReminderInterval:   v.GetDuration("REMINDER_INTERVAL"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFormat:          v.GetString("LOG_FORMAT"),
		MetricsEnabled:     v.GetBool("METRICS_ENABLED"),
		SubmitLocksEntries: v.GetBool("SUBMIT_LOCKS_ENTRIES"),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.IsProduction() {
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
		}
		if c.RunSeed && strings.TrimSpace(c.SeedAdminPassword) == "" {
			return fmt.Errorf("SEED_ADMIN_PASSWORD must be set or RUN_SEED disabled in production")
		}
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimit != "" {
		if _, err := limiter.NewRateFromFormatted(c.RateLimit); err != nil {
			return fmt.Errorf("RATE_LIMIT is invalid: %w", err)
		}
	}
	if c.EmailEnabled && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST must be set when EMAIL_ENABLED is true")
	}
	return nil
}
