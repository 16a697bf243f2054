// Package config loads runtime settings from command-line flags, falling back
// to environment variables for every flag default.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/ratelimit"
)

// TimeOfDay is a wall-clock time such as 09:00.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay reads "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q, expected HH:MM", s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Config is the full set of runtime settings.
type Config struct {
	Port     string
	LogLevel string
	LogJSON  bool

	DBPath       string
	MaxOpenConns int

	GeminiAPIKey string
	GeminiModel  string
	ParseTimeout time.Duration

	AllowedUserIDs    []int64
	RateLimitMessages int
	RateLimitWindow   time.Duration

	Location        *time.Location
	DefaultCurrency string

	ReminderAt          TimeOfDay
	ReminderHorizonDays int
	WeeklySummaryDay    time.Weekday
	WeeklySummaryAt     TimeOfDay

	WorkerCount      int
	QueueSize        int
	NotifyWebhookURL string

	ExportBucket string

	GCPProject string
	BQDataset  string
	BQTable    string
}

// WarehouseEnabled reports whether BigQuery mirroring is configured.
func (c *Config) WarehouseEnabled() bool {
	return c.GCPProject != "" && c.BQDataset != ""
}

// Allowed reports whether ownerID passes the whitelist. An empty whitelist allows everyone.
func (c *Config) Allowed(ownerID int64) bool {
	if len(c.AllowedUserIDs) == 0 {
		return true
	}
	for _, id := range c.AllowedUserIDs {
		if id == ownerID {
			return true
		}
	}
	return false
}

// Load registers every setting on fs, parses args and validates the result.
// Flag defaults come from getenv so either source may be used.
func Load(fs *flag.FlagSet, args []string, getenv func(string) string) (*Config, error) {
	env := envReader{getenv: getenv}
	cfg := &Config{}

	fs.StringVar(&cfg.Port, "port", env.str("PORT", "8080"), "HTTP server port (PORT)")
	fs.StringVar(&cfg.LogLevel, "log-level", env.str("LOG_LEVEL", "info"), "Log level (LOG_LEVEL)")
	fs.BoolVar(&cfg.LogJSON, "log-json", env.boolean("LOG_JSON", false), "Emit JSON logs instead of console output (LOG_JSON)")

	fs.StringVar(&cfg.DBPath, "db", env.str("DB_PATH", "finance.db"), "SQLite database path (DB_PATH)")
	fs.IntVar(&cfg.MaxOpenConns, "max-open-conns", env.integer("MAX_OPEN_CONNS", 4), "Maximum open database connections (MAX_OPEN_CONNS)")

	fs.StringVar(&cfg.GeminiAPIKey, "gemini-api-key", env.str("GEMINI_API_KEY", ""), "Gemini API key (GEMINI_API_KEY)")
	fs.StringVar(&cfg.GeminiModel, "gemini-model", env.str("GEMINI_MODEL", ""), "Gemini model name (GEMINI_MODEL)")
	fs.DurationVar(&cfg.ParseTimeout, "parse-timeout", env.duration("PARSE_TIMEOUT", 15*time.Second), "Bound on one parser call (PARSE_TIMEOUT)")

	allowed := fs.String("allowed-user-ids", env.str("ALLOWED_USER_IDS", ""), "Comma-separated whitelist of owner ids, empty allows all (ALLOWED_USER_IDS)")
	fs.IntVar(&cfg.RateLimitMessages, "rate-limit-messages", env.integer("RATE_LIMIT_MESSAGES", ratelimit.DefaultLimit), "Messages allowed per window (RATE_LIMIT_MESSAGES)")
	fs.DurationVar(&cfg.RateLimitWindow, "rate-limit-window", env.seconds("RATE_LIMIT_WINDOW_SECONDS", ratelimit.DefaultWindow), "Rate limit window (RATE_LIMIT_WINDOW_SECONDS)")

	timezone := fs.String("timezone", env.str("TIMEZONE", "UTC"), "IANA timezone for dates and schedules (TIMEZONE)")
	fs.StringVar(&cfg.DefaultCurrency, "currency", env.str("DEFAULT_CURRENCY", domain.DefaultCurrency), "Default currency code (DEFAULT_CURRENCY)")

	reminderAt := fs.String("reminder-at", env.str("REMINDER_AT", "09:00"), "Daily reminder time HH:MM (REMINDER_AT)")
	fs.IntVar(&cfg.ReminderHorizonDays, "reminder-horizon-days", env.integer("REMINDER_HORIZON_DAYS", 2), "Days ahead to look for due payments (REMINDER_HORIZON_DAYS)")
	weeklyDay := fs.String("weekly-summary-day", env.str("WEEKLY_SUMMARY_DAY", "sunday"), "Weekday of the weekly summary (WEEKLY_SUMMARY_DAY)")
	weeklyAt := fs.String("weekly-summary-at", env.str("WEEKLY_SUMMARY_AT", "20:00"), "Weekly summary time HH:MM (WEEKLY_SUMMARY_AT)")

	fs.IntVar(&cfg.WorkerCount, "workers", env.integer("WORKER_COUNT", 3), "Notification worker goroutines (WORKER_COUNT)")
	fs.IntVar(&cfg.QueueSize, "queue-size", env.integer("QUEUE_SIZE", 100), "Notification queue buffer (QUEUE_SIZE)")
	fs.StringVar(&cfg.NotifyWebhookURL, "notify-webhook-url", env.str("NOTIFY_WEBHOOK_URL", ""), "Webhook receiving outbound notifications, empty logs them (NOTIFY_WEBHOOK_URL)")

	fs.StringVar(&cfg.ExportBucket, "export-bucket", env.str("EXPORT_BUCKET", ""), "GCS bucket for CSV exports (EXPORT_BUCKET)")

	fs.StringVar(&cfg.GCPProject, "gcp-project", env.str("GOOGLE_CLOUD_PROJECT", ""), "GCP project for the BigQuery mirror (GOOGLE_CLOUD_PROJECT)")
	fs.StringVar(&cfg.BQDataset, "bq-dataset", env.str("BQ_DATASET", ""), "BigQuery dataset for the mirror, empty disables it (BQ_DATASET)")
	fs.StringVar(&cfg.BQTable, "bq-table", env.str("BQ_TABLE", "transactions"), "BigQuery table for the mirror (BQ_TABLE)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("Load: parse flags: %w", err)
	}

	errs := env.errs
	var err error

	if cfg.AllowedUserIDs, err = ParseIDList(*allowed); err != nil {
		errs = append(errs, err)
	}
	if cfg.Location, err = time.LoadLocation(*timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid timezone %q: %w", *timezone, err))
	}
	if cfg.ReminderAt, err = ParseTimeOfDay(*reminderAt); err != nil {
		errs = append(errs, err)
	}
	if cfg.WeeklySummaryAt, err = ParseTimeOfDay(*weeklyAt); err != nil {
		errs = append(errs, err)
	}
	if cfg.WeeklySummaryDay, err = ParseWeekday(*weeklyDay); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, cfg.validate()...)

	if len(errs) > 0 {
		return nil, fmt.Errorf("Load: %w", errors.Join(errs...))
	}
	cfg.DefaultCurrency = strings.ToUpper(cfg.DefaultCurrency)
	return cfg, nil
}

func (c *Config) validate() []error {
	var errs []error
	if c.MaxOpenConns < 1 {
		errs = append(errs, fmt.Errorf("max-open-conns must be at least 1"))
	}
	if c.RateLimitMessages < 1 {
		errs = append(errs, fmt.Errorf("rate-limit-messages must be at least 1"))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, fmt.Errorf("rate-limit-window must be positive"))
	}
	if c.ParseTimeout <= 0 {
		errs = append(errs, fmt.Errorf("parse-timeout must be positive"))
	}
	if c.ReminderHorizonDays < 0 {
		errs = append(errs, fmt.Errorf("reminder-horizon-days must not be negative"))
	}
	if c.WorkerCount < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1"))
	}
	if len(c.DefaultCurrency) != 3 {
		errs = append(errs, fmt.Errorf("currency must be a 3-letter code, got %q", c.DefaultCurrency))
	}
	return errs
}

// ParseIDList reads a comma-separated list of integer ids, ignoring blanks.
func ParseIDList(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q in whitelist", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ParseWeekday reads an English weekday name such as "sunday" or "Sun".
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("invalid weekday %q", s)
}

// envReader turns environment values into flag defaults, collecting parse errors.
type envReader struct {
	getenv func(string) string
	errs   []error
}

func (e *envReader) str(key, fallback string) string {
	if v := e.getenv(key); v != "" {
		return v
	}
	return fallback
}

func (e *envReader) integer(key string, fallback int) int {
	v := e.getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return fallback
	}
	return n
}

func (e *envReader) boolean(key string, fallback bool) bool {
	v := e.getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return fallback
	}
	return b
}

func (e *envReader) duration(key string, fallback time.Duration) time.Duration {
	v := e.getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return fallback
	}
	return d
}

// seconds accepts either a bare number of seconds or a Go duration string.
func (e *envReader) seconds(key string, fallback time.Duration) time.Duration {
	v := e.getenv(key)
	if v == "" {
		return fallback
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return e.duration(key, fallback)
}
