package app

import (
	"fmt"
	"sync"

	"github.com/bft-labs/courier/internal/domain"
	"github.com/bft-labs/courier/pkg/log"
)

// Handler receives the payload of one notification. The payload type is
// fixed per channel (see domain.OnlineStatusChanged and friends).
type Handler func(payload any)

// SubscriptionID identifies a registered handler.
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// Events is a channel-keyed registry of notification handlers.
//
// Emit copies the handler list before invoking it, so handlers may
// subscribe or unsubscribe from inside a callback. A panicking handler is
// logged and does not affect the others.
type Events struct {
	mu       sync.RWMutex
	nextID   SubscriptionID
	handlers map[domain.Channel][]subscription
	logger   log.Logger
}

// NewEvents creates an empty registry.
func NewEvents(logger log.Logger) *Events {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Events{
		handlers: make(map[domain.Channel][]subscription),
		logger:   logger,
	}
}

// Subscribe registers h on ch and returns its id.
func (e *Events) Subscribe(ch domain.Channel, h Handler) SubscriptionID {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.handlers[ch] = append(e.handlers[ch], subscription{id: id, handler: h})
	return id
}

// Unsubscribe removes the handler. Unknown ids are ignored.
func (e *Events) Unsubscribe(ch domain.Channel, id SubscriptionID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	subs := e.handlers[ch]
	for i, s := range subs {
		if s.id != id {
			continue
		}
		// Build a new slice; an in-progress Emit holds the old one.
		next := make([]subscription, 0, len(subs)-1)
		next = append(next, subs[:i]...)
		next = append(next, subs[i+1:]...)
		if len(next) == 0 {
			delete(e.handlers, ch)
		} else {
			e.handlers[ch] = next
		}
		return
	}
}

// Count returns the number of handlers on ch.
func (e *Events) Count(ch domain.Channel) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers[ch])
}

// Emit invokes every handler on ch synchronously, in subscription order.
func (e *Events) Emit(ch domain.Channel, payload any) {
	e.mu.RLock()
	subs := e.handlers[ch]
	e.mu.RUnlock()

	for _, s := range subs {
		e.invoke(ch, s, payload)
	}
}

func (e *Events) invoke(ch domain.Channel, s subscription, payload any) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event handler panicked",
				log.String("channel", string(ch)),
				log.Int64("subscription", int64(s.id)),
				log.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	s.handler(payload)
}
