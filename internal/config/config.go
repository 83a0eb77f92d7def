package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	defaultListen         = "127.0.0.1:8080"
	defaultTimezone       = "Asia/Seoul"
	defaultLocale         = "ko"
	defaultWeekStart      = "monday"
	defaultRefreshCron    = "*/15 * * * *"
	defaultHorizonDays    = 7
	defaultBackfillDays   = 1
	defaultMaxOccurrences = 5000
	defaultEventsFile     = "events.yaml"
	defaultLogLevel       = "info"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone occurrences are displayed in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Locale is the default summary language ("en", "ko"); requests may
	// override it.
	Locale string `yaml:"locale" json:"locale"`

	// WeekStart is "monday" (default) or "sunday"; it marks where weeks
	// begin in the day list.
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is a standard 5-field cron expression controlling how
	// often the events file is re-read while serving.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays / BackfillDays define the default /api/events window.
	HorizonDays  int `yaml:"horizon_days" json:"horizon_days"`
	BackfillDays int `yaml:"backfill_days" json:"backfill_days"`

	// MaxOccurrencesPerEvent caps expansion of a single event.
	MaxOccurrencesPerEvent int `yaml:"max_occurrences_per_event" json:"max_occurrences_per_event"`

	// EventsFile is the YAML schedule file. Relative paths resolve against
	// the config file's directory.
	EventsFile string `yaml:"events_file" json:"events_file"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:                 defaultListen,
		Timezone:               defaultTimezone,
		Locale:                 defaultLocale,
		WeekStart:              defaultWeekStart,
		RefreshCron:            defaultRefreshCron,
		HorizonDays:            defaultHorizonDays,
		BackfillDays:           defaultBackfillDays,
		MaxOccurrencesPerEvent: defaultMaxOccurrences,
		EventsFile:             defaultEventsFile,
		LogLevel:               defaultLogLevel,
	}
}

// Normalize fills in missing or invalid values so that partially-filled
// configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.Locale == "" {
		c.Locale = defaultLocale
	}
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		c.WeekStart = defaultWeekStart
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		c.RefreshCron = defaultRefreshCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizonDays
	}
	if c.BackfillDays < 0 {
		c.BackfillDays = 0
	}
	if c.MaxOccurrencesPerEvent <= 0 {
		c.MaxOccurrencesPerEvent = defaultMaxOccurrences
	}
	if c.EventsFile == "" {
		c.EventsFile = defaultEventsFile
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
}

// FirstWeekday returns WeekStart as a time.Weekday.
func (c *Config) FirstWeekday() time.Weekday {
	if c.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

// ResolveEventsFile returns EventsFile made absolute against the directory
// of configPath.
func (c *Config) ResolveEventsFile(configPath string) string {
	if filepath.IsAbs(c.EventsFile) || configPath == "" {
		return c.EventsFile
	}
	return filepath.Join(filepath.Dir(configPath), c.EventsFile)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written there with
//     0600 perms and returned.
//   - Otherwise the YAML is read and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename, 0600).
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, ".journalcal-config-*.tmp")
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// WriteFileAtomic writes data next to path under a temp name matching
// pattern, fsyncs it, sets 0600 and renames it over path. The parent
// directory is created with 0700 if missing.
func WriteFileAtomic(path string, data []byte, pattern string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
