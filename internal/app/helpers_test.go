package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/courier/internal/domain"
)

// mockStorage is an in-memory ports.Storage with failure injection.
type mockStorage struct {
	mu      sync.Mutex
	data    map[string][]byte
	sets    int
	setErr  error
	getErr  error
	listErr error
}

func newMockStorage() *mockStorage {
	return &mockStorage{data: make(map[string][]byte)}
}

func (m *mockStorage) Get(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	b, ok := m.data[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *mockStorage) Set(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.sets++
	m.data[name] = append([]byte(nil), data...)
	return nil
}

func (m *mockStorage) Remove(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, name)
	return nil
}

func (m *mockStorage) ListKeys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *mockStorage) Has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[name]
	return ok
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// scriptedExecutor returns the scripted errors in order, then nil.
type scriptedExecutor struct {
	mu     sync.Mutex
	script []error
	calls  []string
}

func (s *scriptedExecutor) Execute(_ context.Context, op domain.QueuedOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, op.ID)
	if len(s.script) == 0 {
		return nil
	}
	err := s.script[0]
	s.script = s.script[1:]
	return err
}

func (s *scriptedExecutor) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

var errRemote = errors.New("remote rejected")

// eventRecorder collects payloads per channel.
type eventRecorder struct {
	mu       sync.Mutex
	payloads map[domain.Channel][]any
}

func recordEvents(ev *Events) *eventRecorder {
	r := &eventRecorder{payloads: make(map[domain.Channel][]any)}
	for _, ch := range domain.Channels() {
		ch := ch
		ev.Subscribe(ch, func(p any) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.payloads[ch] = append(r.payloads[ch], p)
		})
	}
	return r
}

func (r *eventRecorder) Get(ch domain.Channel) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.payloads[ch]...)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
