package codec

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/bft-labs/courier/internal/domain"
)

func TestCacheKey(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{CacheRecordName("order-7"), "order-7", true},
		{QueueRecord, "", false},
		{CachePrefix, "", false},
		{"unrelated", "", false},
	}
	for _, tt := range tests {
		got, ok := CacheKey(tt.name)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("CacheKey(%q) = (%q, %v), want (%q, %v)", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestQueueRoundTrip_PreservesOrderAndAttempts(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	items := []domain.QueuedOperation{
		{ID: "1-a", Operation: domain.Operation{Kind: domain.KindLocationUpdate, Data: json.RawMessage(`{"lat":30.04}`)}, EnqueuedAt: now, Attempts: 2, MaxAttempts: 3},
		{ID: "2-b", Operation: domain.Operation{Kind: domain.KindMessageSend}, EnqueuedAt: now.Add(time.Second), MaxAttempts: 3, LastError: "timeout"},
	}

	b, err := EncodeQueue(items, now)
	if err != nil {
		t.Fatalf("EncodeQueue: %v", err)
	}
	got, err := DecodeQueue(b)
	if err != nil {
		t.Fatalf("DecodeQueue: %v", err)
	}

	if len(got) != len(items) {
		t.Fatalf("got %d items, want %d", len(got), len(items))
	}
	for i := range items {
		if got[i].ID != items[i].ID || got[i].Attempts != items[i].Attempts || got[i].Kind() != items[i].Kind() {
			t.Errorf("item %d = %+v, want %+v", i, got[i], items[i])
		}
		if !got[i].EnqueuedAt.Equal(items[i].EnqueuedAt) {
			t.Errorf("item %d EnqueuedAt = %v, want %v", i, got[i].EnqueuedAt, items[i].EnqueuedAt)
		}
	}
	if string(got[0].Operation.Data) != `{"lat":30.04}` {
		t.Errorf("data = %s", got[0].Operation.Data)
	}
}

func TestDecodeQueue_BareArray(t *testing.T) {
	got, err := DecodeQueue([]byte(`[{"id":"1-a","operation":{"kind":"status_update"},"attempts":1,"max_attempts":3}]`))
	if err != nil {
		t.Fatalf("DecodeQueue: %v", err)
	}
	if len(got) != 1 || got[0].ID != "1-a" || got[0].Attempts != 1 {
		t.Errorf("got %+v", got)
	}
}

func TestDecodeQueue_RejectsFutureVersion(t *testing.T) {
	if _, err := DecodeQueue([]byte(`{"version":99,"items":[]}`)); err == nil {
		t.Fatal("expected error for unsupported version")
	}
}

func TestEntryRoundTrip(t *testing.T) {
	e := domain.NewCacheEntry("order-7", json.RawMessage(`{"status":"pending"}`), "order", time.Unix(1700000000, 0).UTC())
	b, err := EncodeEntry(e)
	if err != nil {
		t.Fatalf("EncodeEntry: %v", err)
	}
	got, err := DecodeEntry(b)
	if err != nil {
		t.Fatalf("DecodeEntry: %v", err)
	}
	if got.Key != e.Key || got.Category != "order" || !got.CapturedAt.Equal(e.CapturedAt) {
		t.Errorf("got %+v, want %+v", got, e)
	}
	if string(got.Payload) != `{"status":"pending"}` {
		t.Errorf("payload = %s", got.Payload)
	}
}

func TestDecodeEntry_Corrupt(t *testing.T) {
	if _, err := DecodeEntry([]byte("{not json")); err == nil {
		t.Fatal("expected error")
	}
}

func TestEncodeOperation(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	op := domain.QueuedOperation{
		ID:          "1709287200000-abc",
		Operation:   domain.Operation{Kind: domain.KindOrderCompletion, Data: json.RawMessage(`{"order_id":7}`)},
		EnqueuedAt:  now,
		Attempts:    1,
		MaxAttempts: 3,
	}

	b, err := EncodeOperation(op)
	if err != nil {
		t.Fatalf("EncodeOperation: %v", err)
	}
	env, err := DecodeOperation(b)
	if err != nil {
		t.Fatalf("DecodeOperation: %v", err)
	}
	if env.ID != op.ID || env.Kind != domain.KindOrderCompletion || env.Attempt != 2 {
		t.Errorf("envelope = %+v", env)
	}
	if string(env.Data) != `{"order_id":7}` {
		t.Errorf("data = %s", env.Data)
	}
}
