package courier

import (
	"fmt"
	"time"

	"github.com/bft-labs/courier/internal/app"
	"github.com/bft-labs/courier/internal/domain"
)

// Config holds the tunables of a Courier instance. Start from
// DefaultConfig; New fills zero sizes and durations with their defaults but
// takes the two Enable flags as given. The zero Config is rejected.
type Config struct {
	// EnableOfflineMode is the master switch. When false, cache calls are
	// no-ops and Enqueue dispatches once directly without queueing.
	// Default: true
	EnableOfflineMode bool

	// EnableAutoSync enables periodic and reconnect-triggered sync.
	// SyncNow works either way.
	// Default: true
	EnableAutoSync bool

	// MaxQueueSize is the queue capacity. The oldest operation is evicted
	// when a new one arrives at capacity.
	// Default: 100
	MaxQueueSize int

	// MaxAttempts is the retry budget of each operation.
	// Default: 3
	MaxAttempts int

	// SyncInterval is the period of the automatic sync pass.
	// Default: 30 seconds
	SyncInterval time.Duration

	// MaxCacheAge bounds the age of cache entries and queued operations.
	// Default: 24 hours
	MaxCacheAge time.Duration

	// PollInterval is the reachability probe period.
	// Default: 10 seconds
	PollInterval time.Duration

	// SettleDelay is the wait between an offline to online transition and
	// the sync pass it triggers.
	// Default: 2 seconds
	SettleDelay time.Duration

	// DispatchTimeout bounds a single executor call.
	// Default: 15 seconds
	DispatchTimeout time.Duration

	// CleanupInterval is the period of the expiry sweep.
	// Default: 1 hour
	CleanupInterval time.Duration
}

// DefaultConfig returns a Config with every field at its default.
func DefaultConfig() Config {
	return fromSettings(app.DefaultSettings())
}

// SetDefaults fills zero or negative sizes and durations with defaults.
func (c *Config) SetDefaults() {
	d := app.DefaultSettings()
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = d.MaxQueueSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = d.SyncInterval
	}
	if c.MaxCacheAge <= 0 {
		c.MaxCacheAge = d.MaxCacheAge
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = d.SettleDelay
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = d.DispatchTimeout
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = d.CleanupInterval
	}
}

// errZeroConfig guards against Config{}, which would silently disable both
// offline mode and auto sync.
var errZeroConfig = fmt.Errorf("%w: zero Config, start from DefaultConfig", domain.ErrInvalidConfig)

// checkNotZero rejects the zero Config before defaults are applied.
func (c Config) checkNotZero() error {
	if c == (Config{}) {
		return errZeroConfig
	}
	return nil
}

// Validate reports ErrInvalidConfig for non-positive sizes or durations.
func (c Config) Validate() error {
	return c.settings().Validate()
}

func (c Config) settings() app.Settings {
	return app.Settings{
		EnableOfflineMode: c.EnableOfflineMode,
		EnableAutoSync:    c.EnableAutoSync,
		MaxQueueSize:      c.MaxQueueSize,
		MaxAttempts:       c.MaxAttempts,
		SyncInterval:      c.SyncInterval,
		MaxCacheAge:       c.MaxCacheAge,
		PollInterval:      c.PollInterval,
		SettleDelay:       c.SettleDelay,
		DispatchTimeout:   c.DispatchTimeout,
		CleanupInterval:   c.CleanupInterval,
	}
}

func fromSettings(s app.Settings) Config {
	return Config{
		EnableOfflineMode: s.EnableOfflineMode,
		EnableAutoSync:    s.EnableAutoSync,
		MaxQueueSize:      s.MaxQueueSize,
		MaxAttempts:       s.MaxAttempts,
		SyncInterval:      s.SyncInterval,
		MaxCacheAge:       s.MaxCacheAge,
		PollInterval:      s.PollInterval,
		SettleDelay:       s.SettleDelay,
		DispatchTimeout:   s.DispatchTimeout,
		CleanupInterval:   s.CleanupInterval,
	}
}
