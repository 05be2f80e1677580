package codec

import (
	"encoding/json"
	"fmt"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/bft-labs/courier/internal/domain"
)

// Envelope is the body sent to the remote system for one operation.
type Envelope struct {
	ID         string          `json:"id"`
	Kind       domain.Kind     `json:"kind"`
	Data       json.RawMessage `json:"data,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Attempt    int             `json:"attempt"`
}

// EncodeOperation builds the wire envelope for op. Attempt is 1-based.
func EncodeOperation(op domain.QueuedOperation) ([]byte, error) {
	b, err := gojson.Marshal(Envelope{
		ID:         op.ID,
		Kind:       op.Kind(),
		Data:       op.Operation.Data,
		EnqueuedAt: op.EnqueuedAt,
		Attempt:    op.Attempts + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("encode operation %s: %w", op.ID, err)
	}
	return b, nil
}

// DecodeOperation parses a wire envelope.
func DecodeOperation(b []byte) (Envelope, error) {
	var env Envelope
	if err := gojson.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode operation: %w", err)
	}
	return env, nil
}
