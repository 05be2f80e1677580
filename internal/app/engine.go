package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/courier/internal/domain"
	"github.com/bft-labs/courier/internal/ports"
	"github.com/bft-labs/courier/pkg/log"
)

// SweepResult counts what one sweep evicted.
type SweepResult struct {
	CacheEvicted int `json:"cache_evicted"`
	QueueEvicted int `json:"queue_evicted"`
}

// EngineDeps are the collaborators of an engine. Storage is required;
// everything else is optional.
type EngineDeps struct {
	Storage   ports.Storage
	Probe     ports.ReachabilityProbe
	Signals   ports.NetworkSignals
	Executors map[domain.Kind]ports.Executor
	Logger    log.Logger
	Now       func() time.Time
}

// Engine composes the cache, queue, dispatcher, synchronizer and monitor
// and runs the periodic sync and cleanup timers.
type Engine struct {
	cache      *Cache
	queue      *Queue
	dispatcher *Dispatcher
	sync       *Synchronizer
	monitor    *Monitor
	events     *Events
	logger     log.Logger
	now        func() time.Time

	mu       sync.RWMutex
	settings Settings
	running  bool
	runCtx   context.Context

	// workers tracks the monitor loop and immediate dispatches.
	workers    sync.WaitGroup
	reschedule chan struct{}
}

// NewEngine wires an engine from settings and deps.
func NewEngine(settings Settings, deps EngineDeps) (*Engine, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if deps.Storage == nil {
		return nil, fmt.Errorf("%w: storage is required", domain.ErrInvalidConfig)
	}

	logger := deps.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	e := &Engine{
		events:     NewEvents(logger),
		logger:     logger,
		now:        now,
		settings:   settings,
		runCtx:     context.Background(),
		reschedule: make(chan struct{}, 1),
	}

	e.cache = NewCache(deps.Storage, e.events, logger, now)
	e.queue = NewQueue(deps.Storage, logger, now)
	e.dispatcher = NewDispatcher(logger)
	e.monitor = NewMonitor(deps.Probe, deps.Signals, e.events, e.onOnline, logger)
	e.sync = NewSynchronizer(e.queue, e.dispatcher, e.events, e.monitor.Online, logger, now)

	for kind, exec := range deps.Executors {
		e.dispatcher.Register(kind, exec)
	}
	e.apply(context.Background(), settings)
	return e, nil
}

// apply pushes settings down to the components.
func (e *Engine) apply(ctx context.Context, s Settings) {
	e.cache.SetMaxAge(s.MaxCacheAge)
	e.queue.SetCapacity(ctx, s.MaxQueueSize)
	e.queue.SetMaxAttempts(s.MaxAttempts)
	e.dispatcher.SetTimeout(s.DispatchTimeout)
	e.monitor.SetIntervals(s.PollInterval, s.SettleDelay)
}

// Events returns the notification registry.
func (e *Engine) Events() *Events { return e.events }

// Settings returns the active settings.
func (e *Engine) Settings() Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings
}

// RegisterExecutor binds an executor to kind. Registering a kind that is
// not built in extends the set of accepted kinds.
func (e *Engine) RegisterExecutor(kind domain.Kind, exec ports.Executor) {
	e.dispatcher.Register(kind, exec)
}

// Init restores the cache and queue from storage and probes connectivity.
func (e *Engine) Init(ctx context.Context) error {
	if err := e.cache.Load(ctx); err != nil {
		return fmt.Errorf("load cache: %w", err)
	}
	if err := e.queue.Load(ctx); err != nil {
		return err
	}
	e.monitor.Init(ctx)
	return nil
}

// Run drives the monitor and the periodic timers until ctx is done, then
// waits for in-flight immediate dispatches.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return domain.ErrAlreadyRunning
	}
	e.running = true
	e.runCtx = ctx
	e.mu.Unlock()

	e.workers.Add(1)
	go func() {
		defer e.workers.Done()
		_ = e.monitor.Run(ctx)
	}()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.runCtx = context.Background()
		e.mu.Unlock()
		e.workers.Wait()
	}()

	s := e.Settings()
	syncTicker := time.NewTicker(s.SyncInterval)
	defer syncTicker.Stop()
	cleanupTicker := time.NewTicker(s.CleanupInterval)
	defer cleanupTicker.Stop()

	e.logger.Info("engine running",
		log.Duration("sync_interval", s.SyncInterval),
		log.Duration("cleanup_interval", s.CleanupInterval),
		log.Int("queued", e.queue.Len()),
		log.Bool("online", e.monitor.Online()),
	)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping")
			return nil

		case <-syncTicker.C:
			e.periodicSync(ctx)

		case <-cleanupTicker.C:
			e.Sweep(ctx)

		case <-e.reschedule:
			s = e.Settings()
			syncTicker.Reset(s.SyncInterval)
			cleanupTicker.Reset(s.CleanupInterval)
			e.logger.Debug("timers rescheduled",
				log.Duration("sync_interval", s.SyncInterval),
				log.Duration("cleanup_interval", s.CleanupInterval),
			)
		}
	}
}

func (e *Engine) periodicSync(ctx context.Context) {
	s := e.Settings()
	if !s.EnableOfflineMode || !s.EnableAutoSync || !e.monitor.Online() || e.queue.Len() == 0 {
		return
	}
	e.runPass(ctx, "periodic")
}

// onOnline runs after the settle delay following an online transition.
func (e *Engine) onOnline(ctx context.Context) {
	s := e.Settings()
	if !s.EnableOfflineMode || !s.EnableAutoSync {
		return
	}
	e.runPass(ctx, "reconnect")
}

func (e *Engine) runPass(ctx context.Context, trigger string) {
	_, err := e.sync.RunSyncPass(ctx)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrSyncInProgress), errors.Is(err, domain.ErrOffline):
		e.logger.Debug("sync skipped", log.String("trigger", trigger), log.Err(err))
	default:
		e.logger.Warn("sync pass failed", log.String("trigger", trigger), log.Err(err))
	}
}

// Put caches payload under key. It is a no-op when offline mode is disabled.
func (e *Engine) Put(ctx context.Context, key string, payload json.RawMessage, category string) {
	if !e.Settings().EnableOfflineMode {
		return
	}
	e.cache.Put(ctx, key, payload, category)
}

// Get returns the cached payload for key.
func (e *Engine) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	if !e.Settings().EnableOfflineMode {
		return nil, false
	}
	return e.cache.Get(ctx, key)
}

// Remove deletes key from the cache.
func (e *Engine) Remove(ctx context.Context, key string) {
	if !e.Settings().EnableOfflineMode {
		return
	}
	e.cache.Remove(ctx, key)
}

// Enqueue queues op and, when the engine is running and online, attempts
// it immediately in the background.
//
// With offline mode disabled the operation is dispatched once, synchronously,
// and never queued; a failure is returned wrapped in ErrOfflineModeDisabled.
func (e *Engine) Enqueue(ctx context.Context, op domain.Operation) (domain.QueuedOperation, error) {
	if !e.dispatcher.Has(op.Kind) {
		return domain.QueuedOperation{}, fmt.Errorf("%w: %q", domain.ErrUnknownKind, op.Kind)
	}

	s := e.Settings()
	if !s.EnableOfflineMode {
		item := domain.NewQueuedOperation(op, 1, e.now())
		if err := e.dispatcher.Dispatch(ctx, item); err != nil {
			return item, fmt.Errorf("%w: %v", domain.ErrOfflineModeDisabled, err)
		}
		return item, nil
	}

	item, err := e.queue.Enqueue(ctx, op)
	if err != nil {
		return domain.QueuedOperation{}, err
	}
	e.logger.Debug("operation queued",
		log.String("id", item.ID),
		log.String("kind", item.Kind().String()),
		log.Int("queued", e.queue.Len()),
	)

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.running && e.monitor.Online() {
		runCtx := e.runCtx
		e.workers.Add(1)
		go func() {
			defer e.workers.Done()
			if _, err := e.sync.DispatchNow(runCtx, item.ID); err != nil {
				e.logger.Debug("immediate dispatch failed, left queued",
					log.String("id", item.ID),
					log.Err(err),
				)
			}
		}()
	}
	return item, nil
}

// Cancel removes a pending operation.
func (e *Engine) Cancel(ctx context.Context, id string) error {
	return e.queue.Cancel(ctx, id)
}

// SyncNow runs a sync pass regardless of the auto-sync setting.
func (e *Engine) SyncNow(ctx context.Context) (domain.SyncResult, error) {
	return e.sync.RunSyncPass(ctx)
}

// Sweep evicts expired cache entries and queue operations older than the
// maximum cache age.
func (e *Engine) Sweep(ctx context.Context) SweepResult {
	cutoff := e.now().Add(-e.cache.MaxAge())
	res := SweepResult{
		CacheEvicted: e.cache.SweepExpired(ctx),
		QueueEvicted: e.queue.EvictOlderThan(ctx, cutoff),
	}
	if res.CacheEvicted > 0 || res.QueueEvicted > 0 {
		e.logger.Info("sweep completed",
			log.Int("cache_evicted", res.CacheEvicted),
			log.Int("queue_evicted", res.QueueEvicted),
		)
	}
	return res
}

// SetOnline overrides the recorded connectivity state.
func (e *Engine) SetOnline(online bool) {
	e.monitor.SetOnline(online)
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Online returns the recorded connectivity state.
func (e *Engine) Online() bool {
	return e.monitor.Online()
}

// Pending returns a copy of the queue in insertion order.
func (e *Engine) Pending() []domain.QueuedOperation {
	return e.queue.Snapshot()
}

// Status returns a point-in-time view of the engine.
func (e *Engine) Status() domain.Status {
	online := e.monitor.Online()
	queued := e.queue.Len()
	capacity := e.queue.Cap()
	return domain.Status{
		Online:       online,
		CachedCount:  e.cache.Len(),
		QueuedCount:  queued,
		QueueCap:     capacity,
		LastSyncTime: e.sync.LastSyncTime(),
		Syncing:      e.sync.Syncing(),
		Healthy:      domain.IsHealthy(online, queued, capacity),
	}
}

// UpdateSettings validates and applies s. Running timers are rescheduled.
func (e *Engine) UpdateSettings(ctx context.Context, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	e.settings = s
	e.mu.Unlock()

	e.apply(ctx, s)

	select {
	case e.reschedule <- struct{}{}:
	default:
	}
	e.logger.Info("settings updated",
		log.Bool("offline_mode", s.EnableOfflineMode),
		log.Bool("auto_sync", s.EnableAutoSync),
		log.Int("max_queue_size", s.MaxQueueSize),
		log.Duration("sync_interval", s.SyncInterval),
	)
	return nil
}
