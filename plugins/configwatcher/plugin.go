// Package configwatcher reloads courier runtime settings from the TOML
// config file whenever it changes on disk.
package configwatcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/courier/internal/cliconfig"
	"github.com/bft-labs/courier/pkg/courier"
	"github.com/bft-labs/courier/pkg/log"
)

// Plugin watches a config file and applies the tunables it contains
// through Courier.UpdateSettings. Connection settings (storage, transport,
// listen address) are read once at startup and ignored here.
type Plugin struct {
	mu sync.Mutex

	// Configuration
	path          string
	debounceDelay time.Duration
	retryInterval time.Duration
	maxRetries    int
	changed       map[string]bool

	// Runtime state
	courier  *courier.Courier
	logger   log.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
	reloads  int
}

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// Path is the TOML file to watch.
	// Default: ~/.courier/config.toml
	Path string

	// DebounceDelay is the delay to wait after a file change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration

	// RetryInterval is the first delay before re-reading a file that failed
	// to parse, doubled on every retry.
	// Default: 500 milliseconds
	RetryInterval time.Duration

	// MaxRetries bounds re-reads of an unparsable file per change.
	// Default: 5
	MaxRetries int

	// Changed lists flag names set on the command line. Those settings keep
	// their command line value across reloads.
	Changed map[string]bool
}

const maxRetryInterval = 10 * time.Second

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Path:          cliconfig.DefaultConfigPath(),
		DebounceDelay: 100 * time.Millisecond,
		RetryInterval: 500 * time.Millisecond,
		MaxRetries:    5,
	}
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	d := DefaultConfig()
	if cfg.Path == "" {
		cfg.Path = d.Path
	}
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = d.DebounceDelay
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = d.RetryInterval
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = d.MaxRetries
	}
	changed := make(map[string]bool, len(cfg.Changed))
	for k, v := range cfg.Changed {
		changed[k] = v
	}

	return &Plugin{
		path:          cfg.Path,
		debounceDelay: cfg.DebounceDelay,
		retryInterval: cfg.RetryInterval,
		maxRetries:    cfg.MaxRetries,
		changed:       changed,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize starts watching the config file.
func (p *Plugin) Initialize(ctx context.Context, cfg courier.PluginConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	logger = log.With(logger, log.String("plugin", p.Name()), log.String("path", p.path))

	p.mu.Lock()
	p.courier = cfg.Courier
	p.logger = logger
	p.mu.Unlock()

	if p.path == "" || cfg.Courier == nil {
		logger.Warn("config watcher disabled: no config path")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: editors replace files by rename, which drops a
	// watch placed on the file itself.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(p.path), err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	logger.Info("config watcher started")
	return nil
}

// Shutdown stops the config watcher.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Lock()
	p.stopDebounce()
	p.mu.Unlock()
	p.wg.Wait()
	return nil
}

// Reloads returns how many times settings were applied from the file.
func (p *Plugin) Reloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloads
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	target := filepath.Clean(p.path)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			p.debounceReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopDebounce()

	p.wg.Add(1)
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		defer p.wg.Done()
		p.reloadWithRetry(ctx)
	})
}

// stopDebounce cancels a pending reload. Callers hold p.mu.
func (p *Plugin) stopDebounce() {
	if p.debounce != nil && p.debounce.Stop() {
		p.wg.Done()
	}
	p.debounce = nil
}

// reloadWithRetry re-reads the file until it parses, backing off between
// attempts. A missing file is not retried.
func (p *Plugin) reloadWithRetry(ctx context.Context) {
	b := newBackoff(p.retryInterval, maxRetryInterval)
	for attempt := 0; ; attempt++ {
		err := p.reload(ctx)
		if err == nil {
			return
		}
		if errors.Is(err, os.ErrNotExist) {
			p.logger.Warn("config file removed, keeping current settings")
			return
		}
		if attempt >= p.maxRetries {
			p.logger.Error("giving up on config reload", log.Err(err), log.Int("attempts", attempt+1))
			return
		}
		p.logger.Warn("config reload failed, retrying", log.Err(err))
		if b.Wait(ctx) != nil {
			return
		}
	}
}

func (p *Plugin) reload(ctx context.Context) error {
	fc, err := cliconfig.LoadFileConfig(p.path)
	if err != nil {
		return err
	}

	var cfg cliconfig.Config
	cfg.SetCourierConfig(p.courier.Settings())
	if err := cliconfig.ApplyFileConfig(&cfg, fc, p.changed); err != nil {
		return err
	}

	next := cfg.CourierConfig()
	if next == p.courier.Settings() {
		p.logger.Debug("config unchanged")
		return nil
	}
	if err := p.courier.UpdateSettings(ctx, next); err != nil {
		return err
	}

	p.mu.Lock()
	p.reloads++
	p.mu.Unlock()

	p.logger.Info("settings reloaded from config file")
	return nil
}

// Ensure Plugin implements courier.Plugin.
var _ courier.Plugin = (*Plugin)(nil)
