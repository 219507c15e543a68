// Package config loads process configuration from YBG_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// ErrConfigurationMissing means a required setting is absent. The process
// should exit rather than retry.
var ErrConfigurationMissing = errors.New("configuration missing")

type Config struct {
	Port        string
	DBPath      string
	DatabaseURL string

	JWTSecret     string
	JWTAudience   string
	SessionCookie string

	Timezone      *time.Location
	CreditTTL     time.Duration
	WelcomePoints int64
	TiersFile     string

	WhatsAppNumber string
	// WSOrigins limits which origins may open /ws. Empty accepts any.
	WSOrigins []string

	PostmarkToken string
	FromEmail     string
	SAEmail       string

	Backup Backup

	LogLevel  string
	LogFormat string
}

// Backup is enabled when Bucket and Passphrase are both set.
type Backup struct {
	Endpoint   string
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	Passphrase string
	Interval   time.Duration
	Retention  time.Duration
}

func (b Backup) Enabled() bool {
	return b.Bucket != "" && b.Passphrase != ""
}

// Load reads the environment. Missing required values are reported together
// and match ErrConfigurationMissing.
func Load() (Config, error) {
	cfg := Config{
		Port:        EnvString("YBG_PORT", "8080"),
		DBPath:      EnvString("YBG_DB_PATH", "ybg.db"),
		DatabaseURL: EnvString("YBG_DATABASE_URL", ""),

		JWTSecret:     EnvString("YBG_JWT_SECRET", ""),
		JWTAudience:   EnvString("YBG_JWT_AUDIENCE", "authenticated"),
		SessionCookie: EnvString("YBG_SESSION_COOKIE", "sb-access-token"),

		CreditTTL:     EnvDuration("YBG_CREDIT_TTL", 365*24*time.Hour),
		WelcomePoints: EnvInt64("YBG_WELCOME_POINTS", 0),
		TiersFile:     EnvString("YBG_TIERS_FILE", ""),

		WhatsAppNumber: EnvString("YBG_WHATSAPP_NUMBER", ""),
		WSOrigins:      EnvList("YBG_WS_ORIGINS"),

		PostmarkToken: EnvString("YBG_POSTMARK_TOKEN", ""),
		FromEmail:     EnvString("YBG_FROM_EMAIL", ""),
		SAEmail:       EnvString("YBG_SA_EMAIL", ""),

		Backup: Backup{
			Endpoint:   EnvString("YBG_BACKUP_ENDPOINT", ""),
			Region:     EnvString("YBG_BACKUP_REGION", "auto"),
			Bucket:     EnvString("YBG_BACKUP_BUCKET", ""),
			AccessKey:  EnvString("YBG_BACKUP_ACCESS_KEY", ""),
			SecretKey:  EnvString("YBG_BACKUP_SECRET_KEY", ""),
			Passphrase: EnvString("YBG_BACKUP_PASSPHRASE", ""),
			Interval:   EnvDuration("YBG_BACKUP_INTERVAL", 24*time.Hour),
			Retention:  EnvDuration("YBG_BACKUP_RETENTION", 30*24*time.Hour),
		},

		LogLevel:  EnvString("YBG_LOG_LEVEL", "info"),
		LogFormat: EnvString("YBG_LOG_FORMAT", "text"),
	}

	var missing []string
	if cfg.JWTSecret == "" {
		missing = append(missing, "YBG_JWT_SECRET")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigurationMissing, strings.Join(missing, ", "))
	}

	tz := EnvString("YBG_TIMEZONE", "Asia/Jakarta")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Config{}, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	cfg.Timezone = loc

	return cfg, nil
}

// EnvString reads a string env var with a default.
func EnvString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// EnvInt64 reads a non-negative integer env var with a default.
func EnvInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// EnvDuration reads a positive duration env var with a default.
func EnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// EnvList reads a comma-separated env var, dropping empty items.
func EnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
