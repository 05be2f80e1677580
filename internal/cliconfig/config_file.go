package cliconfig

import (
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	StateDir          string   `toml:"state_dir"`
	Storage           string   `toml:"storage"`
	RedisAddr         string   `toml:"redis_addr"`
	RedisPassword     string   `toml:"redis_password"`
	RedisDB           int      `toml:"redis_db"`
	RedisNamespace    string   `toml:"redis_namespace"`
	Transport         string   `toml:"transport"`
	ServiceURL        string   `toml:"service_url"`
	AuthKey           string   `toml:"auth_key"`
	ProbeURL          string   `toml:"probe_url"`
	NSQAddr           string   `toml:"nsq_addr"`
	NSQTopicPrefix    string   `toml:"nsq_topic_prefix"`
	ExtraKinds        []string `toml:"extra_kinds"`
	ListenAddr        string   `toml:"listen_addr"`
	LogLevel          string   `toml:"log_level"`
	EnableOfflineMode *bool    `toml:"enable_offline_mode"`
	EnableAutoSync    *bool    `toml:"enable_auto_sync"`
	MaxQueueSize      int      `toml:"max_queue_size"`
	MaxAttempts       int      `toml:"max_attempts"`
	SyncInterval      string   `toml:"sync_interval"`
	MaxCacheAge       string   `toml:"max_cache_age"`
	PollInterval      string   `toml:"poll_interval"`
	SettleDelay       string   `toml:"settle_delay"`
	DispatchTimeout   string   `toml:"dispatch_timeout"`
	CleanupInterval   string   `toml:"cleanup_interval"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.courier/config.toml if the user home
// directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".courier", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("storage", fc.Storage, &cfg.Storage)
	s.setString("redis-addr", fc.RedisAddr, &cfg.RedisAddr)
	s.setString("redis-password", fc.RedisPassword, &cfg.RedisPassword)
	s.setString("redis-namespace", fc.RedisNamespace, &cfg.RedisNamespace)
	s.setString("transport", fc.Transport, &cfg.Transport)
	s.setString("service-url", fc.ServiceURL, &cfg.ServiceURL)
	s.setString("auth-key", fc.AuthKey, &cfg.AuthKey)
	s.setString("probe-url", fc.ProbeURL, &cfg.ProbeURL)
	s.setString("nsq-addr", fc.NSQAddr, &cfg.NSQAddr)
	s.setString("nsq-topic-prefix", fc.NSQTopicPrefix, &cfg.NSQTopicPrefix)
	s.setString("listen", fc.ListenAddr, &cfg.ListenAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setStrings("extra-kinds", fc.ExtraKinds, &cfg.ExtraKinds)

	s.setInt("redis-db", fc.RedisDB, &cfg.RedisDB)
	s.setInt("max-queue-size", fc.MaxQueueSize, &cfg.MaxQueueSize)
	s.setInt("max-attempts", fc.MaxAttempts, &cfg.MaxAttempts)

	s.setBool("offline-mode", fc.EnableOfflineMode, &cfg.EnableOfflineMode)
	s.setBool("auto-sync", fc.EnableAutoSync, &cfg.EnableAutoSync)

	durations := []struct {
		flag  string
		value string
		dst   *time.Duration
	}{
		{"sync-interval", fc.SyncInterval, &cfg.SyncInterval},
		{"max-cache-age", fc.MaxCacheAge, &cfg.MaxCacheAge},
		{"poll-interval", fc.PollInterval, &cfg.PollInterval},
		{"settle-delay", fc.SettleDelay, &cfg.SettleDelay},
		{"dispatch-timeout", fc.DispatchTimeout, &cfg.DispatchTimeout},
		{"cleanup-interval", fc.CleanupInterval, &cfg.CleanupInterval},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, d.value, d.dst); err != nil {
			return err
		}
	}

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
