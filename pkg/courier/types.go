package courier

import (
	"github.com/bft-labs/courier/internal/app"
	"github.com/bft-labs/courier/internal/domain"
	"github.com/bft-labs/courier/internal/ports"
)

// Core types re-exported from internal packages.
type (
	Kind            = domain.Kind
	Operation       = domain.Operation
	QueuedOperation = domain.QueuedOperation
	CacheEntry      = domain.CacheEntry
	Status          = domain.Status
	SyncResult      = domain.SyncResult
	SweepResult     = app.SweepResult
)

// Built-in operation kinds.
const (
	KindLocationUpdate  = domain.KindLocationUpdate
	KindStatusUpdate    = domain.KindStatusUpdate
	KindOrderAcceptance = domain.KindOrderAcceptance
	KindOrderCompletion = domain.KindOrderCompletion
	KindMessageSend     = domain.KindMessageSend
)

// Ports implemented by hosts or by the bundled adapters.
type (
	Storage           = ports.Storage
	ReachabilityProbe = ports.ReachabilityProbe
	ProbeFunc         = ports.ProbeFunc
	NetworkSignals    = ports.NetworkSignals
	Executor          = ports.Executor
	ExecutorFunc      = ports.ExecutorFunc
)

// Notification channels and their payloads.
type (
	Channel             = domain.Channel
	Handler             = app.Handler
	SubscriptionID      = app.SubscriptionID
	OnlineStatusChanged = domain.OnlineStatusChanged
	DataCached          = domain.DataCached
	SyncCompleted       = domain.SyncCompleted
	SyncFailed          = domain.SyncFailed
	OperationFailed     = domain.OperationFailed
)

const (
	ChannelOnlineStatusChanged = domain.ChannelOnlineStatusChanged
	ChannelDataCached          = domain.ChannelDataCached
	ChannelSyncCompleted       = domain.ChannelSyncCompleted
	ChannelSyncFailed          = domain.ChannelSyncFailed
	ChannelOperationFailed     = domain.ChannelOperationFailed
)

// State is the lifecycle state of a Courier.
type State = app.State

const (
	StateStopped  = app.StateStopped
	StateStarting = app.StateStarting
	StateRunning  = app.StateRunning
	StateStopping = app.StateStopping
	StateCrashed  = app.StateCrashed
)

// Errors returned by the public API. Check with errors.Is.
var (
	ErrNotFound            = domain.ErrNotFound
	ErrUnknownKind         = domain.ErrUnknownKind
	ErrOffline             = domain.ErrOffline
	ErrSyncInProgress      = domain.ErrSyncInProgress
	ErrSyncFailed          = domain.ErrSyncFailed
	ErrOfflineModeDisabled = domain.ErrOfflineModeDisabled
	ErrInFlight            = domain.ErrInFlight
	ErrOperationNotFound   = domain.ErrOperationNotFound
	ErrAlreadyRunning      = domain.ErrAlreadyRunning
	ErrNotRunning          = domain.ErrNotRunning
	ErrShutdownTimeout     = domain.ErrShutdownTimeout
	ErrInvalidConfig       = domain.ErrInvalidConfig
)

// ParseKind normalises a kind name ("order-acceptance" -> "order_acceptance").
func ParseKind(s string) (Kind, error) {
	return domain.ParseKind(s)
}
