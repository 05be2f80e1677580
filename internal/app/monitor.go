package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/courier/internal/domain"
	"github.com/bft-labs/courier/internal/ports"
	"github.com/bft-labs/courier/pkg/log"
)

// Connectivity defaults.
const (
	DefaultPollInterval = 10 * time.Second
	DefaultSettleDelay  = 2 * time.Second
	probeTimeout        = 5 * time.Second
)

// Monitor tracks whether the remote system is reachable.
//
// State changes come from platform signals, the periodic probe, or
// SetOnline. Every change emits online-status-changed. A change to online
// also arms a settle timer; when it fires during Run, onOnline runs once. Further
// online transitions inside the window restart the timer, and going
// offline cancels it.
type Monitor struct {
	probe    ports.ReachabilityProbe
	signals  ports.NetworkSignals
	events   *Events
	logger   log.Logger
	onOnline func(ctx context.Context)

	mu           sync.Mutex
	online       bool
	pollInterval time.Duration
	settleDelay  time.Duration
	settle       *time.Timer
	generation   uint64
	running      bool
	runCtx       context.Context
	fires        sync.WaitGroup
	reset        chan struct{}
}

// NewMonitor creates a monitor that starts optimistic (online). probe and
// signals may be nil.
func NewMonitor(probe ports.ReachabilityProbe, signals ports.NetworkSignals, events *Events, onOnline func(ctx context.Context), logger log.Logger) *Monitor {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Monitor{
		probe:        probe,
		signals:      signals,
		events:       events,
		logger:       log.With(logger, log.String("component", "monitor")),
		onOnline:     onOnline,
		online:       true,
		pollInterval: DefaultPollInterval,
		settleDelay:  DefaultSettleDelay,
		reset:        make(chan struct{}, 1),
	}
}

// Online returns the recorded connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetIntervals changes the poll interval and settle delay. A running poll
// loop picks up the new interval immediately.
func (m *Monitor) SetIntervals(poll, settle time.Duration) {
	m.mu.Lock()
	if poll > 0 {
		m.pollInterval = poll
	}
	if settle > 0 {
		m.settleDelay = settle
	}
	m.mu.Unlock()

	select {
	case m.reset <- struct{}{}:
	default:
	}
}

// Init establishes the initial state with one probe. No notification is
// emitted and no sync is triggered.
func (m *Monitor) Init(ctx context.Context) {
	online := m.check(ctx)
	m.mu.Lock()
	m.online = online
	m.mu.Unlock()
	m.logger.Info("initial connectivity", log.Bool("online", online))
}

// check runs the probe. An error or panic counts as reachable.
func (m *Monitor) check(ctx context.Context) (online bool) {
	if m.probe == nil {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("reachability probe panicked, assuming online", log.String("panic", fmt.Sprint(r)))
			online = true
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	ok, err := m.probe.Check(ctx)
	if err != nil {
		m.logger.Debug("reachability probe failed, assuming online", log.Err(err))
		return true
	}
	return ok
}

// Run watches signals and polls the probe until ctx is done. On return no
// settle callback is pending or running.
func (m *Monitor) Run(ctx context.Context) error {
	m.mu.Lock()
	m.running = true
	m.runCtx = ctx
	interval := m.pollInterval
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running = false
		m.runCtx = nil
		m.mu.Unlock()
		m.stopSettle()
		m.fires.Wait()
	}()

	var signals <-chan bool
	if m.signals != nil {
		signals = m.signals.Signals(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case online, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}
			m.observe(online, "signal")

		case <-ticker.C:
			m.observe(m.check(ctx), "poll")

		case <-m.reset:
			m.mu.Lock()
			interval = m.pollInterval
			m.mu.Unlock()
			ticker.Reset(interval)
		}
	}
}

// SetOnline records a connectivity state reported by the host. A settle
// window that ends while Run is not active triggers no sync.
func (m *Monitor) SetOnline(online bool) {
	m.observe(online, "manual")
}

func (m *Monitor) observe(online bool, source string) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online

	if m.settle != nil {
		m.settle.Stop()
		m.settle = nil
	}
	if online && m.onOnline != nil {
		m.generation++
		gen := m.generation
		m.settle = time.AfterFunc(m.settleDelay, func() { m.fire(gen) })
	}
	m.mu.Unlock()

	m.logger.Info("connectivity changed",
		log.Bool("online", online),
		log.String("source", source),
	)
	if m.events != nil {
		m.events.Emit(domain.ChannelOnlineStatusChanged, domain.OnlineStatusChanged{Online: online})
	}
}

// fire runs onOnline with the Run context. Outside Run it does nothing.
func (m *Monitor) fire(gen uint64) {
	m.mu.Lock()
	// A restarted or cancelled window superseded this timer.
	if m.settle == nil || m.generation != gen || !m.online {
		m.mu.Unlock()
		return
	}
	m.settle = nil
	if !m.running {
		m.mu.Unlock()
		m.logger.Debug("not running, reconnect sync skipped")
		return
	}
	ctx := m.runCtx
	m.fires.Add(1)
	m.mu.Unlock()
	defer m.fires.Done()

	if ctx.Err() != nil {
		return
	}
	m.onOnline(ctx)
}

func (m *Monitor) stopSettle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settle != nil {
		m.settle.Stop()
		m.settle = nil
	}
}
