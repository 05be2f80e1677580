package courier

import (
	"context"

	"github.com/bft-labs/courier/pkg/log"
)

// Plugin extends a Courier with work that shares its lifecycle.
type Plugin interface {
	// Name identifies the plugin in logs.
	Name() string

	// Initialize is called by Start, after the queue and cache are
	// restored. A returned error aborts Start.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown is called by Stop once the workers have drained.
	Shutdown(ctx context.Context) error
}

// PluginConfig is handed to plugins on Initialize.
type PluginConfig struct {
	// Courier is the instance being started.
	Courier *Courier

	// Logger is the instance logger.
	Logger log.Logger
}
