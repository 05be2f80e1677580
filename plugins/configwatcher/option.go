package configwatcher

import "github.com/bft-labs/courier/pkg/courier"

// WithConfigWatcher returns a courier Option that reloads runtime settings
// whenever the TOML config file changes.
//
// Usage:
//
//	c, err := courier.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        Path:          "/etc/courier/config.toml",
//	        DebounceDelay: 100 * time.Millisecond,
//	    }),
//	)
func WithConfigWatcher(cfg Config) courier.Option {
	return courier.WithPlugin(New(cfg))
}

// WithDefaultConfigWatcher watches ~/.courier/config.toml with default
// settings.
//
// Usage:
//
//	c, err := courier.New(cfg, configwatcher.WithDefaultConfigWatcher())
func WithDefaultConfigWatcher() courier.Option {
	return WithConfigWatcher(DefaultConfig())
}
