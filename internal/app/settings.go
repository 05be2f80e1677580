package app

import (
	"fmt"
	"time"

	"github.com/bft-labs/courier/internal/domain"
)

// Scheduler defaults.
const (
	DefaultSyncInterval    = 30 * time.Second
	DefaultCleanupInterval = time.Hour
)

// Settings are the tunables of the engine. All of them can be changed at
// runtime through Engine.UpdateSettings.
type Settings struct {
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

// DefaultSettings returns the default tunables.
func DefaultSettings() Settings {
	return Settings{
		EnableOfflineMode: true,
		EnableAutoSync:    true,
		MaxQueueSize:      DefaultQueueCapacity,
		MaxAttempts:       domain.DefaultMaxAttempts,
		SyncInterval:      DefaultSyncInterval,
		MaxCacheAge:       DefaultMaxCacheAge,
		PollInterval:      DefaultPollInterval,
		SettleDelay:       DefaultSettleDelay,
		DispatchTimeout:   DefaultDispatchTimeout,
		CleanupInterval:   DefaultCleanupInterval,
	}
}

// Validate rejects non-positive sizes and durations.
func (s Settings) Validate() error {
	checks := []struct {
		name string
		ok   bool
	}{
		{"max queue size", s.MaxQueueSize > 0},
		{"max attempts", s.MaxAttempts > 0},
		{"sync interval", s.SyncInterval > 0},
		{"max cache age", s.MaxCacheAge > 0},
		{"poll interval", s.PollInterval > 0},
		{"settle delay", s.SettleDelay > 0},
		{"dispatch timeout", s.DispatchTimeout > 0},
		{"cleanup interval", s.CleanupInterval > 0},
	}
	for _, c := range checks {
		if !c.ok {
			return fmt.Errorf("%w: %s must be positive", domain.ErrInvalidConfig, c.name)
		}
	}
	return nil
}
