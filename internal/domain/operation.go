package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxAttempts is the per-operation retry budget.
const DefaultMaxAttempts = 3

// Kind identifies the remote mutation an operation performs.
type Kind string

// Built-in operation kinds.
const (
	KindLocationUpdate  Kind = "location_update"
	KindStatusUpdate    Kind = "status_update"
	KindOrderAcceptance Kind = "order_acceptance"
	KindOrderCompletion Kind = "order_completion"
	KindMessageSend     Kind = "message_send"
)

// BuiltinKinds lists the kinds known to courier out of the box.
func BuiltinKinds() []Kind {
	return []Kind{
		KindLocationUpdate,
		KindStatusUpdate,
		KindOrderAcceptance,
		KindOrderCompletion,
		KindMessageSend,
	}
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	return string(k)
}

// ParseKind normalizes a user supplied kind name.
// Dashes are accepted in place of underscores ("order-completion").
func ParseKind(s string) (Kind, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	if name == "" {
		return "", fmt.Errorf("%w: empty kind", ErrUnknownKind)
	}
	return Kind(name), nil
}

// Operation is the tagged payload of a queued mutation.
type Operation struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// QueuedOperation is a pending mutation with its retry bookkeeping.
type QueuedOperation struct {
	// ID is unique across process restarts
	ID string `json:"id"`

	Operation Operation `json:"operation"`

	// EnqueuedAt is the time the operation entered the queue
	EnqueuedAt time.Time `json:"enqueued_at"`

	// Attempts counts failed executions
	Attempts int `json:"attempts"`

	// MaxAttempts is the fixed retry budget for this operation
	MaxAttempts int `json:"max_attempts"`

	// LastError holds the most recent dispatch failure, if any
	LastError string `json:"last_error,omitempty"`
}

// NewQueuedOperation creates a pending operation with zero attempts.
func NewQueuedOperation(op Operation, maxAttempts int, now time.Time) QueuedOperation {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return QueuedOperation{
		ID:          NewOperationID(now),
		Operation:   op,
		EnqueuedAt:  now,
		MaxAttempts: maxAttempts,
	}
}

// NewOperationID returns "<unix-millis>-<random>".
// The random suffix makes collisions negligible but not impossible.
func NewOperationID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%d-%s", now.UnixMilli(), suffix)
}

// Exhausted reports whether the retry budget has been spent.
func (q QueuedOperation) Exhausted() bool {
	return q.Attempts >= q.MaxAttempts
}

// Kind is shorthand for q.Operation.Kind.
func (q QueuedOperation) Kind() Kind {
	return q.Operation.Kind
}
