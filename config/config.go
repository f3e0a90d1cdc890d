package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendSheets = "sheets"
	BackendMySQL  = "mysql"
	BackendMemory = "memory"
)

type Config struct {
	BotToken string
	BotDebug bool

	StoreBackend     string
	SheetID          string
	SheetName        string
	SheetCredentials string

	DBHost string
	DBUser string
	DBPass string
	DBName string

	AdminEmails  []string
	SMTPEmail    string
	SMTPPassword string
	SMTPHost     string
	SMTPPort     int

	ReconcileInterval time.Duration
	ReconcileFirstRun time.Duration
	StoreRateLimit    int
	StoreRateWindow   time.Duration
	RemoteWorkers     int
	DraftTTL          time.Duration

	AssetsDir   string
	LockFile    string
	MetricsAddr string
	LogLevel    slog.Level
}

// MissingError lists every required variable that was empty at startup.
type MissingError struct {
	Vars []string
}

func (e *MissingError) Error() string {
	return "missing required environment variables: " + strings.Join(e.Vars, ", ")
}

// Load reads .env files when present, then the process environment. A file
// that exists but cannot be read or parsed is an error.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		BotToken:         os.Getenv("TELEGRAM_BOT_TOKEN"),
		StoreBackend:     strings.ToLower(getEnv("STORE_BACKEND", BackendSheets)),
		SheetID:          os.Getenv("GOOGLE_SHEET_ID"),
		SheetName:        getEnv("GOOGLE_SHEET_NAME", "Sheet1"),
		SheetCredentials: firstEnv("GOOGLE_SHEETS_CREDENTIALS_JSON", "GOOGLE_SHEETS_CREDENTIALS"),
		DBHost:           os.Getenv("DB_HOST"),
		DBUser:           os.Getenv("DB_USER"),
		DBPass:           os.Getenv("DB_PASS"),
		DBName:           os.Getenv("DB_NAME"),
		AdminEmails:      splitList(os.Getenv("ADMIN_EMAILS")),
		SMTPEmail:        os.Getenv("SMTP_EMAIL"),
		SMTPPassword:     os.Getenv("SMTP_PASSWORD"),
		SMTPHost:         getEnv("SMTP_HOST", "smtp.gmail.com"),
		AssetsDir:        getEnv("ASSETS_DIR", "assets"),
		LockFile:         getEnv("LOCK_FILE", filepath.Join(os.TempDir(), "milda_bot.lock")),
		MetricsAddr:      os.Getenv("METRICS_ADDR"),
	}

	var errs []error
	var err error
	if cfg.SMTPPort, err = intEnv("SMTP_PORT", 587); err != nil {
		errs = append(errs, err)
	}
	if cfg.StoreRateLimit, err = intEnv("STORE_RATE_LIMIT", 50); err != nil {
		errs = append(errs, err)
	}
	if cfg.RemoteWorkers, err = intEnv("REMOTE_WORKERS", 8); err != nil {
		errs = append(errs, err)
	}
	if cfg.ReconcileInterval, err = durationEnv("RECONCILE_INTERVAL", 30*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.ReconcileFirstRun, err = durationEnv("RECONCILE_FIRST_RUN", 5*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.StoreRateWindow, err = durationEnv("STORE_RATE_WINDOW", time.Minute); err != nil {
		errs = append(errs, err)
	}
	if cfg.DraftTTL, err = durationEnv("DRAFT_TTL", 30*time.Minute); err != nil {
		errs = append(errs, err)
	}
	if cfg.BotDebug, err = boolEnv("BOT_DEBUG"); err != nil {
		errs = append(errs, err)
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	if err := cfg.Validate(); err != nil {
		errs = append([]error{err}, errs...)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate reports every missing required variable at once.
func (c *Config) Validate() error {
	var missing []string
	need := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}

	need("TELEGRAM_BOT_TOKEN", c.BotToken)
	switch c.StoreBackend {
	case BackendSheets:
		need("GOOGLE_SHEET_ID", c.SheetID)
		need("GOOGLE_SHEETS_CREDENTIALS_JSON", c.SheetCredentials)
	case BackendMySQL:
		need("DB_HOST", c.DBHost)
		need("DB_USER", c.DBUser)
		need("DB_NAME", c.DBName)
	case BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND: unknown backend %q", c.StoreBackend)
	}
	need("ADMIN_EMAILS", strings.Join(c.AdminEmails, ","))
	need("SMTP_EMAIL", c.SMTPEmail)
	need("SMTP_PASSWORD", c.SMTPPassword)

	if len(missing) > 0 {
		return &MissingError{Vars: missing}
	}
	return nil
}

// SheetURL links admins to the ticket table. Empty for non-sheet backends.
func (c *Config) SheetURL() string {
	if c.StoreBackend != BackendSheets || c.SheetID == "" {
		return ""
	}
	return "https://docs.google.com/spreadsheets/d/" + c.SheetID
}

func (c *Config) SMTPAddr() string {
	return c.SMTPHost + ":" + strconv.Itoa(c.SMTPPort)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s: want a positive integer, got %q", key, v)
	}
	return n, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: want a positive duration, got %q", key, v)
	}
	return d, nil
}

func boolEnv(key string) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
