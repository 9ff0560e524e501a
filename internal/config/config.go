package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // zone names must resolve on hosts without zoneinfo

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"plantime/internal/dates"
	"plantime/internal/ics"
)

// FeedConfig is a subscribed holiday calendar.
type FeedConfig struct {
	// ID becomes the calendar ID and must be unique.
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the web server.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA display zone (e.g. "Asia/Seoul").
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "monday" (default) or "sunday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is the schedule on which holiday feeds and the plan file
	// are reloaded.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// PxPerDay is the default timeline scale.
	PxPerDay float64 `yaml:"px_per_day" json:"px_per_day"`

	// RangeStart and RangeEnd are the default displayed range (YYYY-MM-DD).
	// Empty values mean the current calendar year.
	RangeStart string `yaml:"range_start" json:"range_start"`
	RangeEnd   string `yaml:"range_end" json:"range_end"`

	// PlanPath is the YAML release plan served by default.
	PlanPath string `yaml:"plan_path" json:"plan_path"`

	// Workers sizes the calendar lookup pool. Zero means GOMAXPROCS.
	Workers int `yaml:"workers" json:"workers"`

	// OverscanDays widens the lookup window beyond the viewport.
	OverscanDays int `yaml:"overscan_days" json:"overscan_days"`

	HolidayFeeds []FeedConfig `yaml:"holiday_feeds" json:"holiday_feeds"`

	// CacheDir stores fetched feeds between refreshes.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       "127.0.0.1:8080",
		Timezone:     "Asia/Seoul",
		WeekStart:    "monday",
		RefreshCron:  "0 * * * *",
		PxPerDay:     20,
		PlanPath:     "./plan.yaml",
		OverscanDays: 7,
		HolidayFeeds: []FeedConfig{},
		CacheDir:     "./var/feed-cache",
	}
}

// Normalize fills in missing or invalid values with defaults so that
// partially filled configs still behave.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	c.WeekStart = strings.ToLower(strings.TrimSpace(c.WeekStart))
	if c.WeekStart != "monday" && c.WeekStart != "sunday" {
		c.WeekStart = def.WeekStart
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.PxPerDay <= 0 {
		c.PxPerDay = def.PxPerDay
	}
	if c.PlanPath == "" {
		c.PlanPath = def.PlanPath
	}
	if c.Workers < 0 {
		c.Workers = 0
	}
	if c.OverscanDays < 0 {
		c.OverscanDays = 0
	}
	if c.HolidayFeeds == nil {
		c.HolidayFeeds = []FeedConfig{}
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
}

// Validate reports values Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		errs = append(errs, fmt.Errorf("refresh %q: %w", c.RefreshCron, err))
	}
	for _, s := range []string{c.RangeStart, c.RangeEnd} {
		if s == "" {
			continue
		}
		if _, err := dates.ParseISODate(s, time.UTC); err != nil {
			errs = append(errs, fmt.Errorf("range date %q: %w", s, err))
		}
	}
	seen := make(map[string]bool)
	for i, f := range c.HolidayFeeds {
		switch {
		case f.ID == "":
			errs = append(errs, fmt.Errorf("holiday_feeds[%d]: id is empty", i))
		case seen[f.ID]:
			errs = append(errs, fmt.Errorf("holiday_feeds[%d]: duplicate id %q", i, f.ID))
		}
		seen[f.ID] = true
		if f.URL == "" {
			errs = append(errs, fmt.Errorf("holiday_feeds[%d]: url is empty", i))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Location loads the display zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Weekday returns the configured first day of the week.
func (c *Config) Weekday() time.Weekday {
	if c.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

// Range returns the default displayed range. Missing bounds default to the
// calendar year of now in the display zone.
func (c *Config) Range(now time.Time) (start, end time.Time) {
	loc := c.Location()
	year := now.In(loc).Year()
	start = time.Date(year, 1, 1, 0, 0, 0, 0, loc)
	end = time.Date(year, 12, 31, 0, 0, 0, 0, loc)
	if t, err := dates.ParseISODate(c.RangeStart, loc); err == nil {
		start = t
	}
	if t, err := dates.ParseISODate(c.RangeEnd, loc); err == nil {
		end = t
	}
	return start, end
}

// Feeds converts the configured feeds for the fetcher.
func (c *Config) Feeds() []ics.Feed {
	out := make([]ics.Feed, 0, len(c.HolidayFeeds))
	for _, f := range c.HolidayFeeds {
		out = append(out, ics.Feed{ID: f.ID, Name: f.Name, URL: f.URL})
	}
	return out
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist a default config is written with 0600
// permissions and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically via a temp file and rename, with
// final permissions 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".plantime-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
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

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
