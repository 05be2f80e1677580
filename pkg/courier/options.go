package courier

import (
	"time"

	"github.com/bft-labs/courier/pkg/log"
)

// Option configures optional behavior of Courier.
type Option func(*options)

type options struct {
	storage         Storage
	probe           ReachabilityProbe
	signals         NetworkSignals
	executors       map[Kind]Executor
	logger          log.Logger
	now             func() time.Time
	plugins         []Plugin
	shutdownTimeout time.Duration
}

func defaultOptions() options {
	return options{
		executors: make(map[Kind]Executor),
	}
}

// WithStorage sets the persistent store. If not provided, records are kept
// in process memory and lost on exit.
func WithStorage(s Storage) Option {
	return func(o *options) {
		o.storage = s
	}
}

// WithProbe sets the reachability probe polled every PollInterval.
// Without a probe the instance stays online unless told otherwise through
// signals or SetOnline.
func WithProbe(p ReachabilityProbe) Option {
	return func(o *options) {
		o.probe = p
	}
}

// WithSignals sets a source of platform online/offline events.
func WithSignals(s NetworkSignals) Option {
	return func(o *options) {
		o.signals = s
	}
}

// WithExecutor binds the executor for kind. Binding a kind outside the
// built-in set makes that kind acceptable to Enqueue.
func WithExecutor(kind Kind, e Executor) Option {
	return func(o *options) {
		o.executors[kind] = e
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock replaces time.Now, mainly for tests of expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithPlugin registers a plugin to be initialized when Courier starts.
// Plugins are initialized in registration order and shut down in reverse order.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithShutdownTimeout overrides how long Stop waits for workers.
// Default: 30 seconds
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		o.shutdownTimeout = d
	}
}
