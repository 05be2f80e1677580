package cliconfig

import "github.com/bft-labs/courier/pkg/courier"

// CourierConfig extracts the runtime tunables.
func (c Config) CourierConfig() courier.Config {
	return courier.Config{
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

// SetCourierConfig overwrites the runtime tunables with cc.
func (c *Config) SetCourierConfig(cc courier.Config) {
	c.EnableOfflineMode = cc.EnableOfflineMode
	c.EnableAutoSync = cc.EnableAutoSync
	c.MaxQueueSize = cc.MaxQueueSize
	c.MaxAttempts = cc.MaxAttempts
	c.SyncInterval = cc.SyncInterval
	c.MaxCacheAge = cc.MaxCacheAge
	c.PollInterval = cc.PollInterval
	c.SettleDelay = cc.SettleDelay
	c.DispatchTimeout = cc.DispatchTimeout
	c.CleanupInterval = cc.CleanupInterval
}
