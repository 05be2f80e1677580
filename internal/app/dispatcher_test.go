package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bft-labs/courier/internal/domain"
	"github.com/bft-labs/courier/internal/ports"
)

func queued(kind domain.Kind) domain.QueuedOperation {
	return domain.NewQueuedOperation(domain.Operation{Kind: kind}, 3, time.Now())
}

func TestDispatcher_RoutesByKind(t *testing.T) {
	d := NewDispatcher(&mockLogger{})

	var got []domain.Kind
	for _, k := range []domain.Kind{domain.KindStatusUpdate, domain.KindMessageSend} {
		k := k
		d.Register(k, ports.ExecutorFunc(func(_ context.Context, op domain.QueuedOperation) error {
			got = append(got, k)
			return nil
		}))
	}

	if err := d.Dispatch(context.Background(), queued(domain.KindMessageSend)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(got) != 1 || got[0] != domain.KindMessageSend {
		t.Errorf("executed %v, want [message_send]", got)
	}
	if kinds := d.Kinds(); len(kinds) != 2 || kinds[0] != domain.KindMessageSend {
		t.Errorf("Kinds = %v", kinds)
	}
}

func TestDispatcher_UnknownKind(t *testing.T) {
	d := NewDispatcher(&mockLogger{})
	err := d.Dispatch(context.Background(), queued("teleport"))
	if !errors.Is(err, domain.ErrUnknownKind) {
		t.Errorf("err = %v, want ErrUnknownKind", err)
	}
}

func TestDispatcher_Timeout(t *testing.T) {
	d := NewDispatcher(&mockLogger{})
	d.SetTimeout(20 * time.Millisecond)

	release := make(chan struct{})
	defer close(release)
	// Ignores ctx on purpose.
	d.Register(domain.KindLocationUpdate, ports.ExecutorFunc(func(context.Context, domain.QueuedOperation) error {
		<-release
		return nil
	}))

	start := time.Now()
	err := d.Dispatch(context.Background(), queued(domain.KindLocationUpdate))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Dispatch took %v", elapsed)
	}
}

func TestDispatcher_RecoversPanic(t *testing.T) {
	d := NewDispatcher(&mockLogger{})
	d.Register(domain.KindOrderAcceptance, ports.ExecutorFunc(func(context.Context, domain.QueuedOperation) error {
		panic("executor bug")
	}))

	err := d.Dispatch(context.Background(), queued(domain.KindOrderAcceptance))
	if err == nil || !strings.Contains(err.Error(), "executor bug") {
		t.Errorf("err = %v, want panic converted to error", err)
	}
}
