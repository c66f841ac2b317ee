package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Monitor  MonitorConfig  `json:"monitor"`
	Trigger  TriggerConfig  `json:"trigger"`
	Storage  StorageConfig  `json:"storage"`
	Notifier NotifierConfig `json:"notifier"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// MonitorConfig controls the inventory poller.
//
// All durations are Go duration strings (e.g. "30s", "1h").
type MonitorConfig struct {
	APIURL     string `json:"api_url,omitempty"`
	ProductURL string `json:"product_url,omitempty"`
	// CheckInterval is how often the scheduled stock check runs.
	CheckInterval string `json:"check_interval,omitempty"`
	FetchTimeout  string `json:"fetch_timeout,omitempty"`
}

// TriggerConfig controls the HTTP trigger/health server.
//
// Secret guards the /api/cron endpoint (Bearer token). A mismatch is logged;
// it only rejects the request when EnforceSecret is true.
type TriggerConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Secret        string `json:"secret,omitempty"`
	EnforceSecret bool   `json:"enforce_secret,omitempty"`
}

// StorageConfig selects the tracked-users persistence backend.
//
// Driver values: "file" (default), "redis", "sqlite" (requires the sqlite
// build tag).
type StorageConfig struct {
	Driver string      `json:"driver,omitempty"`
	Path   string      `json:"path,omitempty"`
	Redis  RedisConfig `json:"redis,omitempty"`
}

type RedisConfig struct {
	Addr     string `json:"addr,omitempty"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
}

// NotifierConfig tunes the notification dispatcher.
type NotifierConfig struct {
	RatePerSec int `json:"rate_per_sec,omitempty"`
	RetryMax   int `json:"retry_max,omitempty"`
}

const (
	defaultAPIURL     = "https://api.getstan.app/api/v1/shop/store/inventory/slug/phonepe-gift-voucher"
	defaultProductURL = "https://www.stanshop.co/in/product/phonepe-gift-voucher"
)

// Normalize fills zero fields with defaults. It never fails; bad duration
// strings are caught by Validate.
func (c *Config) Normalize() {
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if strings.TrimSpace(c.Monitor.APIURL) == "" {
		c.Monitor.APIURL = defaultAPIURL
	}
	if strings.TrimSpace(c.Monitor.ProductURL) == "" {
		c.Monitor.ProductURL = defaultProductURL
	}
	if strings.TrimSpace(c.Monitor.CheckInterval) == "" {
		c.Monitor.CheckInterval = "1h"
	}
	if strings.TrimSpace(c.Monitor.FetchTimeout) == "" {
		c.Monitor.FetchTimeout = "30s"
	}
	if strings.TrimSpace(c.Trigger.Addr) == "" {
		c.Trigger.Addr = "127.0.0.1:8080"
	}
	if strings.TrimSpace(c.Storage.Driver) == "" {
		c.Storage.Driver = "file"
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		c.Storage.Path = "./tracked_users.json"
	}
	if c.Notifier.RatePerSec <= 0 {
		c.Notifier.RatePerSec = 3
	}
	if c.Notifier.RetryMax <= 0 {
		c.Notifier.RetryMax = 3
	}
}

// Validate checks startup-fatal configuration problems.
// Anything past startup degrades instead of failing (see component docs).
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Telegram.Token) == "" {
		errs = append(errs, errors.New("telegram.token is not set (config or TELEGRAM_BOT_TOKEN)"))
	}
	if _, err := ParseDuration(c.Monitor.CheckInterval, 0); err != nil {
		errs = append(errs, fmt.Errorf("monitor.check_interval: %w", err))
	} else if d, _ := ParseDuration(c.Monitor.CheckInterval, 0); d <= 0 {
		errs = append(errs, errors.New("monitor.check_interval must be positive"))
	}
	if _, err := ParseDuration(c.Monitor.FetchTimeout, 0); err != nil {
		errs = append(errs, fmt.Errorf("monitor.fetch_timeout: %w", err))
	}
	if c.Telegram.PollTimeout != "" {
		if _, err := ParseDuration(c.Telegram.PollTimeout, 0); err != nil {
			errs = append(errs, fmt.Errorf("telegram.poll_timeout: %w", err))
		}
	}
	return errors.Join(errs...)
}

// CheckInterval returns the parsed scheduled-check interval.
func (c *Config) CheckInterval() time.Duration {
	d, err := ParseDuration(c.Monitor.CheckInterval, time.Hour)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// FetchTimeout returns the parsed inventory fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	d, err := ParseDuration(c.Monitor.FetchTimeout, 30*time.Second)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// PollTimeout returns the parsed Telegram long-poll timeout.
func (c *Config) PollTimeout() time.Duration {
	d, err := ParseDuration(c.Telegram.PollTimeout, 10*time.Second)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// ParseDuration parses a Go duration string, returning def for empty input.
func ParseDuration(s string, def time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}
