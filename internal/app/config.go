package app

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/pelletier/go-toml/v2"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/poseshaemost/internal/attendance"
)

const (
	defaultTimezone      = "Europe/Moscow"
	defaultCookieName    = "poseshaemost_session"
	defaultSessionKey    = "session:{id}"
	defaultSessionTTL    = 12 * time.Hour
	defaultMigrationsDir = "./migrations"
)

type GSheetConfig struct {
	SheetID         string `toml:"sheet_id"`
	SheetName       string `toml:"sheet_name"`
	CredentialsPath string `toml:"credentials_path"`
	Schedule        string `toml:"schedule"`
}

type BotStaff struct {
	TelegramID int64  `toml:"telegram_id"`
	Username   string `toml:"username"`
}

type Config struct {
	Server struct {
		Port  string `toml:"port"`
		Debug bool   `toml:"debug"`
	} `toml:"server"`

	Auth struct {
		RedisURL           string `toml:"redis_url"`
		SessionKeyTemplate string `toml:"session_key_template"`
		CookieName         string `toml:"cookie_name"`
		SessionTTL         string `toml:"session_ttl"`
	} `toml:"auth"`

	Database struct {
		DSN           string `toml:"dsn"`
		MigrationsDir string `toml:"migrations_dir"`
	} `toml:"database"`

	Calendar struct {
		Timezone string  `toml:"timezone"`
		Holidays [][]int `toml:"holidays"`
	} `toml:"calendar"`

	Attendance struct {
		EditWindow string `toml:"edit_window"`
	} `toml:"attendance"`

	Export struct {
		Dir      string         `toml:"dir"`
		Schedule string         `toml:"schedule"`
		GSheet   []GSheetConfig `toml:"gsheet"`
	} `toml:"export"`

	Bot struct {
		Token string     `toml:"token"`
		Staff []BotStaff `toml:"staff"`
	} `toml:"bot"`

	location   *time.Location
	editWindow time.Duration
	sessionTTL time.Duration
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf(
			"error reading config file %s\n> Error: %w\n> Content:\n%s",
			path,
			err,
			string(data),
		)
	}

	if config.Server.Port == "" {
		return nil, fmt.Errorf("Server port is not specified in config, use a value like :9999")
	}

	if err := config.applyDefaults(); err != nil {
		return nil, err
	}

	logger.Debug.Printf("Loaded calendar config: tz=%s holidays=%v", config.Calendar.Timezone, config.Calendar.Holidays)

	return &config, nil
}

func (c *Config) applyDefaults() error {
	if c.Calendar.Timezone == "" {
		c.Calendar.Timezone = defaultTimezone
	}
	loc, err := time.LoadLocation(c.Calendar.Timezone)
	if err != nil {
		return fmt.Errorf("unknown time zone %q: %w", c.Calendar.Timezone, err)
	}
	c.location = loc

	c.editWindow = attendance.DefaultEditWindow
	if c.Attendance.EditWindow != "" {
		d, err := time.ParseDuration(c.Attendance.EditWindow)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid attendance.edit_window %q", c.Attendance.EditWindow)
		}
		c.editWindow = d
	}

	c.sessionTTL = defaultSessionTTL
	if c.Auth.SessionTTL != "" {
		d, err := time.ParseDuration(c.Auth.SessionTTL)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid auth.session_ttl %q", c.Auth.SessionTTL)
		}
		c.sessionTTL = d
	}

	if c.Auth.CookieName == "" {
		c.Auth.CookieName = defaultCookieName
	}
	if c.Auth.SessionKeyTemplate == "" {
		c.Auth.SessionKeyTemplate = defaultSessionKey
	}
	if c.Database.MigrationsDir == "" {
		c.Database.MigrationsDir = defaultMigrationsDir
	}
	return nil
}

// Location is the school time zone used to decide what "today" is.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

func (c *Config) EditWindow() time.Duration {
	if c.editWindow == 0 {
		return attendance.DefaultEditWindow
	}
	return c.editWindow
}

func (c *Config) SessionTTL() time.Duration {
	if c.sessionTTL == 0 {
		return defaultSessionTTL
	}
	return c.sessionTTL
}
