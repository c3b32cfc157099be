package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		Debug    bool   `yaml:"debug"`
	} `yaml:"telegram"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup BackupConfig `yaml:"backup"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		StateTTLMinutes int    `yaml:"state_ttl_minutes"`
	} `yaml:"redis"`

	Booking BookingConfig `yaml:"booking"`

	RateLimit struct {
		MessagesPerMinute int `yaml:"messages_per_minute"`
	} `yaml:"rate_limit"`

	Reminders struct {
		Enabled bool `yaml:"enabled"`
		Hour    int  `yaml:"hour"`
	} `yaml:"reminders"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		GRPCHealthPort    int  `yaml:"grpc_health_port"`
	} `yaml:"monitoring"`

	Google GoogleConfig `yaml:"google"`

	OfficeConfigPath string  `yaml:"office_config_path"`
	Admins           []int64 `yaml:"admins"`
}

// BookingConfig controls date parsing and the advanced access window.
type BookingConfig struct {
	DateFormat         string `yaml:"date_format"`
	MaxAdvanceDays     int    `yaml:"max_advance_days"`
	AdvancedMode       bool   `yaml:"advanced_mode"`
	StandardAccessDays int    `yaml:"standard_access_days"`
	Timezone           string `yaml:"timezone"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	StoragePath   string `yaml:"storage_path"`
	RetentionDays int    `yaml:"retention_days"`
}

type GoogleConfig struct {
	SheetsEnabled   bool   `yaml:"sheets_enabled"`
	CredentialsFile string `yaml:"credentials_file"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	SheetName       string `yaml:"sheet_name"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "data/deskbot.db"
	}
	if c.Booking.DateFormat == "" {
		c.Booking.DateFormat = "2006-01-02"
	}
	if c.Booking.MaxAdvanceDays <= 0 {
		c.Booking.MaxAdvanceDays = 14
	}
	if c.Booking.StandardAccessDays <= 0 {
		c.Booking.StandardAccessDays = 2
	}
	if c.Redis.StateTTLMinutes <= 0 {
		c.Redis.StateTTLMinutes = 60
	}
	if c.RateLimit.MessagesPerMinute <= 0 {
		c.RateLimit.MessagesPerMinute = 30
	}
	if c.Reminders.Hour == 0 {
		c.Reminders.Hour = 18
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}
	if c.Backup.IntervalHours <= 0 {
		c.Backup.IntervalHours = 24
	}
	if c.Backup.RetentionDays <= 0 {
		c.Backup.RetentionDays = 14
	}
	if c.Google.SheetName == "" {
		c.Google.SheetName = "Bookings"
	}
	if c.OfficeConfigPath == "" {
		c.OfficeConfigPath = "configs/office.yaml"
	}
}

// Validate checks values that have no sensible default.
func (c *Config) Validate() error {
	if _, err := time.Parse(c.Booking.DateFormat, time.Now().Format(c.Booking.DateFormat)); err != nil {
		return fmt.Errorf("booking.date_format %q does not round-trip: %w", c.Booking.DateFormat, err)
	}
	if c.Reminders.Hour < 0 || c.Reminders.Hour > 23 {
		return fmt.Errorf("reminders.hour must be 0-23, got %d", c.Reminders.Hour)
	}
	if c.Booking.Timezone != "" {
		if _, err := time.LoadLocation(c.Booking.Timezone); err != nil {
			return fmt.Errorf("booking.timezone: %w", err)
		}
	}
	if c.Google.SheetsEnabled && (c.Google.CredentialsFile == "" || c.Google.SpreadsheetID == "") {
		return fmt.Errorf("google.credentials_file and google.spreadsheet_id are required when sheets are enabled")
	}
	return nil
}

// Location returns the configured office timezone, defaulting to local time.
func (c *Config) Location() *time.Location {
	if c.Booking.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) StateTTL() time.Duration {
	return time.Duration(c.Redis.StateTTLMinutes) * time.Minute
}
