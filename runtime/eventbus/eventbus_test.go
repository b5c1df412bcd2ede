package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aro-lang/aro/logging"
	logtest "github.com/aro-lang/aro/logging/test"
	"github.com/aro-lang/aro/value"
)

func TestEmitDispatchesToSubscriber(t *testing.T) {
	b := New(nil, nil)
	var mu sync.Mutex
	var got value.Value
	received := make(chan struct{})
	b.Subscribe("order-placed", func(ctx context.Context, env Envelope) error {
		mu.Lock()
		got = env.Payload
		mu.Unlock()
		close(received)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)
	defer cancel()

	b.Emit("order-placed", value.String("order-1"))

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was never invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	s, _ := got.Str()
	require.Equal(t, "order-1", s)
}

func TestEmitOrderingAcrossEvents(t *testing.T) {
	b := New(nil, nil)
	var mu sync.Mutex
	var order []string
	done := make(chan struct{}, 2)
	b.Subscribe("step", func(ctx context.Context, env Envelope) error {
		mu.Lock()
		s, _ := env.Payload.Str()
		order = append(order, s)
		mu.Unlock()
		done <- struct{}{}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)
	defer cancel()

	b.Emit("step", value.String("first"))
	<-done
	b.Emit("step", value.String("second"))
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first", "second"}, order)
}

func TestEmitAfterShutdownIsDropped(t *testing.T) {
	log := logtest.New()
	b := New(log, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b.Run(ctx) // drains immediately since ctx is already cancelled

	b.Emit("late", value.Null)
	b.mu.Lock()
	depth := len(b.queue)
	b.mu.Unlock()
	require.Equal(t, 0, depth)

	entries := log.Entries()
	require.NotEmpty(t, entries)
	require.Equal(t, logging.Warn, entries[len(entries)-1].Level)
	require.Contains(t, entries[len(entries)-1].Message, `dropping event "late"`)
}

func TestNoSubscribersIsHarmless(t *testing.T) {
	b := New(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)
	b.Emit("nobody-listens", value.Null)
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-b.Done()
}
