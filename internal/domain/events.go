package domain

import "time"

// Channel names a notification stream.
type Channel string

// Notification channels.
const (
	ChannelOnlineStatusChanged Channel = "online-status-changed"
	ChannelDataCached          Channel = "data-cached"
	ChannelSyncCompleted       Channel = "sync-completed"
	ChannelSyncFailed          Channel = "sync-failed"
	ChannelOperationFailed     Channel = "operation-failed"
)

// Channels lists every notification channel.
func Channels() []Channel {
	return []Channel{
		ChannelOnlineStatusChanged,
		ChannelDataCached,
		ChannelSyncCompleted,
		ChannelSyncFailed,
		ChannelOperationFailed,
	}
}

// OnlineStatusChanged is emitted on every connectivity transition.
type OnlineStatusChanged struct {
	Online bool `json:"online"`
}

// DataCached is emitted after a cache write.
type DataCached struct {
	Key      string `json:"key"`
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// SyncCompleted is emitted when a sync pass finishes.
type SyncCompleted struct {
	SuccessCount int           `json:"success_count"`
	FailureCount int           `json:"failure_count"`
	Duration     time.Duration `json:"duration"`
}

// SyncFailed is emitted when a sync pass is aborted.
type SyncFailed struct {
	Err error `json:"-"`
}

// OperationFailed is emitted when an operation exhausts its retry budget.
type OperationFailed struct {
	ID       string `json:"id"`
	Kind     Kind   `json:"kind"`
	Attempts int    `json:"attempts"`
	Err      error  `json:"-"`
}
