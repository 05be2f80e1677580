package courier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	gojson "github.com/goccy/go-json"

	"github.com/bft-labs/courier/internal/adapters/memory"
	"github.com/bft-labs/courier/internal/app"
	"github.com/bft-labs/courier/internal/domain"
	"github.com/bft-labs/courier/pkg/log"
)

// Courier keeps an expiring cache and a durable operation queue, and drains
// the queue through registered executors whenever connectivity allows.
// Use New() to create an instance, then Start() to begin syncing.
type Courier struct {
	opts      options
	engine    *app.Engine
	lifecycle *app.Lifecycle
	logger    log.Logger
	plugins   []Plugin

	mu sync.Mutex
}

// New creates a Courier with the given configuration.
// The instance is created in StateStopped; cache and queue calls work
// before Start, but nothing is synced until Start is called.
func New(cfg Config, opts ...Option) (*Courier, error) {
	if err := cfg.checkNotZero(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if o.storage == nil {
		o.storage = memory.NewStorage()
	}
	if o.shutdownTimeout <= 0 {
		o.shutdownTimeout = app.ShutdownTimeout
	}

	engine, err := app.NewEngine(cfg.settings(), app.EngineDeps{
		Storage:   o.storage,
		Probe:     o.probe,
		Signals:   o.signals,
		Executors: o.executors,
		Logger:    logger,
		Now:       o.now,
	})
	if err != nil {
		return nil, err
	}

	return &Courier{
		opts:      o,
		engine:    engine,
		lifecycle: app.NewLifecycle(logger, nil),
		logger:    logger,
		plugins:   o.plugins,
	}, nil
}

// Start restores the cache and queue from storage, probes connectivity,
// initializes plugins and starts the background loop.
// Returns ErrAlreadyRunning if the instance is already started.
func (c *Courier) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := c.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.lifecycle.SetCancel(cancel)

	if err := c.engine.Init(runCtx); err != nil {
		cancel()
		_ = c.lifecycle.TransitionTo(app.StateCrashed, "init failed")
		return fmt.Errorf("init: %w", err)
	}

	pluginCfg := PluginConfig{Courier: c, Logger: c.logger}
	for i, p := range c.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			c.logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			cancel()
			c.shutdownPlugins(c.plugins[:i])
			_ = c.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed: "+p.Name())
			return err
		}
		c.logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}

	if err := c.lifecycle.TransitionTo(app.StateRunning, "engine starting"); err != nil {
		cancel()
		return err
	}

	c.lifecycle.Go(func() {
		err := c.engine.Run(runCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("engine error", log.Err(err))
			_ = c.lifecycle.TransitionTo(app.StateCrashed, err.Error())
		}
	})

	return nil
}

// Stop cancels the background loop, waits for in-flight dispatches and
// shuts plugins down in reverse order.
// Returns nil on graceful shutdown, ErrShutdownTimeout if workers did not
// drain within 30 seconds, ErrNotRunning if not started.
func (c *Courier) Stop() error {
	c.mu.Lock()

	if !c.lifecycle.CanStop() {
		c.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := c.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		c.mu.Unlock()
		return err
	}
	c.lifecycle.Cancel()
	c.mu.Unlock()

	err := c.lifecycle.WaitWithTimeout(c.opts.shutdownTimeout)

	c.shutdownPlugins(c.plugins)

	if err != nil {
		_ = c.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = c.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	return err
}

// shutdownPlugins shuts plugins down in reverse order.
func (c *Courier) shutdownPlugins(plugins []Plugin) {
	ctx := context.Background()
	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			c.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			continue
		}
		c.logger.Info("plugin shutdown complete", log.String("plugin", p.Name()))
	}
}

// State returns the current lifecycle state.
func (c *Courier) State() State {
	return c.lifecycle.State()
}

// Put caches value under key, marshalled as JSON. An empty category
// becomes "general". Storage failures are logged, not returned.
func (c *Courier) Put(ctx context.Context, key string, value any, category string) error {
	payload, err := gojson.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	c.engine.Put(ctx, key, payload, category)
	return nil
}

// Get returns the raw cached payload for key. Missing, expired and
// unreadable entries all report false.
func (c *Courier) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	return c.engine.Get(ctx, key)
}

// GetInto decodes the cached payload for key into v.
func (c *Courier) GetInto(ctx context.Context, key string, v any) (bool, error) {
	payload, ok := c.engine.Get(ctx, key)
	if !ok {
		return false, nil
	}
	if err := gojson.Unmarshal(payload, v); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Remove deletes key from the cache. Removing an absent key is a no-op.
func (c *Courier) Remove(ctx context.Context, key string) {
	c.engine.Remove(ctx, key)
}

// Sweep evicts expired cache entries and operations older than MaxCacheAge.
func (c *Courier) Sweep(ctx context.Context) SweepResult {
	return c.engine.Sweep(ctx)
}

// Enqueue queues an operation of the given kind with data marshalled as
// JSON. When running and online the operation is also attempted at once in
// the background.
func (c *Courier) Enqueue(ctx context.Context, kind Kind, data any) (QueuedOperation, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := gojson.Marshal(data)
		if err != nil {
			return QueuedOperation{}, fmt.Errorf("marshal %s: %w", kind, err)
		}
		raw = b
	}
	return c.engine.Enqueue(ctx, domain.Operation{Kind: kind, Data: raw})
}

// Cancel removes a pending operation. Returns ErrInFlight while it is being
// dispatched and ErrOperationNotFound if it is not queued.
func (c *Courier) Cancel(ctx context.Context, id string) error {
	return c.engine.Cancel(ctx, id)
}

// SyncNow runs one sync pass. Returns ErrOffline when offline and
// ErrSyncInProgress when a pass is already running.
func (c *Courier) SyncNow(ctx context.Context) (SyncResult, error) {
	return c.engine.SyncNow(ctx)
}

// SetOnline overrides the recorded connectivity state.
func (c *Courier) SetOnline(online bool) {
	c.engine.SetOnline(online)
}

// Status returns a point-in-time view of connectivity, cache and queue.
func (c *Courier) Status() Status {
	return c.engine.Status()
}

// Pending returns the queued operations in insertion order.
func (c *Courier) Pending() []QueuedOperation {
	return c.engine.Pending()
}

// Subscribe registers h for notifications on ch.
func (c *Courier) Subscribe(ch Channel, h Handler) SubscriptionID {
	return c.engine.Events().Subscribe(ch, h)
}

// Unsubscribe removes a handler. Unknown ids are ignored.
func (c *Courier) Unsubscribe(ch Channel, id SubscriptionID) {
	c.engine.Events().Unsubscribe(ch, id)
}

// Settings returns the active configuration.
func (c *Courier) Settings() Config {
	return fromSettings(c.engine.Settings())
}

// UpdateSettings applies cfg at runtime. Zero sizes and durations take
// their defaults; timers are rescheduled and a smaller MaxQueueSize trims
// the oldest operations.
func (c *Courier) UpdateSettings(ctx context.Context, cfg Config) error {
	if err := cfg.checkNotZero(); err != nil {
		return err
	}
	cfg.SetDefaults()
	return c.engine.UpdateSettings(ctx, cfg.settings())
}
