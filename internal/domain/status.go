package domain

import "time"

// Status is a point-in-time view of the synchronizer.
type Status struct {
	Online       bool      `json:"online"`
	CachedCount  int       `json:"cached_count"`
	QueuedCount  int       `json:"queued_count"`
	QueueCap     int       `json:"queue_capacity"`
	LastSyncTime time.Time `json:"last_sync_time"`
	Syncing      bool      `json:"syncing"`
	Healthy      bool      `json:"healthy"`
}

// IsHealthy applies the health rule: online, or the queue is less than half full.
func IsHealthy(online bool, queued, capacity int) bool {
	return online || queued < capacity/2
}

// SyncResult tallies one sync pass.
type SyncResult struct {
	SuccessCount int           `json:"success_count"`
	FailureCount int           `json:"failure_count"`
	Duration     time.Duration `json:"duration"`
}
