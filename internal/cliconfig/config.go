package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Storage backends.
const (
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

// Transports for operation dispatch.
const (
	TransportHTTP = "http"
	TransportNSQ  = "nsq"
)

// DefaultListenAddr is where the daemon serves its status API.
const DefaultListenAddr = "127.0.0.1:7420"

// Config holds CLI configuration for courier.
type Config struct {
	StateDir string
	Storage  string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisNamespace string

	Transport      string
	ServiceURL     string
	AuthKey        string
	ProbeURL       string
	NSQAddr        string
	NSQTopicPrefix string
	ExtraKinds     []string

	ListenAddr string
	LogLevel   string

	EnableOfflineMode bool
	EnableAutoSync    bool
	MaxQueueSize      int
	MaxAttempts       int
	SyncInterval      time.Duration
	MaxCacheAge       time.Duration
	PollInterval      time.Duration
	SettleDelay       time.Duration
	DispatchTimeout   time.Duration
	CleanupInterval   time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Storage:           StorageFile,
		StateDir:          "", // Derived during Validate
		RedisAddr:         "127.0.0.1:6379",
		Transport:         TransportHTTP,
		NSQAddr:           "127.0.0.1:4150",
		ListenAddr:        DefaultListenAddr,
		LogLevel:          "info",
		EnableOfflineMode: true,
		EnableAutoSync:    true,
		MaxQueueSize:      100,
		MaxAttempts:       3,
		SyncInterval:      30 * time.Second,
		MaxCacheAge:       24 * time.Hour,
		PollInterval:      10 * time.Second,
		SettleDelay:       2 * time.Second,
		DispatchTimeout:   15 * time.Second,
		CleanupInterval:   time.Hour,
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	c.Storage = strings.ToLower(c.Storage)
	switch c.Storage {
	case StorageFile:
		if c.StateDir == "" {
			c.StateDir = DefaultStateDir()
		}
		if c.StateDir == "" {
			return fmt.Errorf("state-dir is required for file storage")
		}
	case StorageRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis-addr is required for redis storage")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage %q (want file, redis or memory)", c.Storage)
	}

	c.Transport = strings.ToLower(c.Transport)
	c.ServiceURL = strings.TrimRight(c.ServiceURL, "/")
	switch c.Transport {
	case TransportHTTP:
		if c.ServiceURL == "" {
			return fmt.Errorf("service-url is required for http transport")
		}
	case TransportNSQ:
		if c.NSQAddr == "" {
			return fmt.Errorf("nsq-addr is required for nsq transport")
		}
	default:
		return fmt.Errorf("unknown transport %q (want http or nsq)", c.Transport)
	}

	if c.ProbeURL == "" && c.ServiceURL != "" {
		c.ProbeURL = c.ServiceURL + "/health"
	}

	if c.MaxQueueSize <= 0 {
		return fmt.Errorf("max queue size must be positive")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"sync interval", c.SyncInterval},
		{"max cache age", c.MaxCacheAge},
		{"poll interval", c.PollInterval},
		{"settle delay", c.SettleDelay},
		{"dispatch timeout", c.DispatchTimeout},
		{"cleanup interval", c.CleanupInterval},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}

	return nil
}

// DefaultStateDir returns ~/.courier/state, or "" if the home directory is
// unknown.
func DefaultStateDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".courier", "state")
	}
	return ""
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setStrings sets a list if not empty and flag not changed.
func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = append([]string(nil), value...)
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i < 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

// setListFromString splits a comma separated list.
func (s *configSetter) setListFromString(flag, value string, dst *[]string) {
	if value == "" || s.changed[flag] {
		return
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}
