// Package eventbus implements the ARO Event Bus: a single-producer,
// multi-consumer event queue that schedules feature-set handler
// activations (spec §4.6).
package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/aro-lang/aro/internal/metrics"
	"github.com/aro-lang/aro/logging"
	"github.com/aro-lang/aro/value"
)

// Envelope is one emitted event: a name and its payload, carrying the
// scheduling order the bus guarantees relative to other envelopes.
type Envelope struct {
	Name    string
	Payload value.Value
	seq     uint64
}

// Seq returns the envelope's monotonically increasing scheduling
// sequence number, lowest first.
func (e Envelope) Seq() uint64 { return e.seq }

// Handler runs one feature-set activation against an envelope. It
// returns an error only for unrecoverable failures; ordinary feature-
// set failures are expected to be reported through logging internally.
type Handler func(ctx context.Context, env Envelope) error

// Subscription describes one feature-set registered against an event
// name, paired with the handler the runner installs to run it.
type Subscription struct {
	EventName string
	Handler   Handler
}

// Bus is the process-wide event queue. The zero value is not usable;
// construct with New.
type Bus struct {
	log     logging.Logger
	metrics *metrics.Metrics

	mu            sync.Mutex
	subscriptions map[string][]Handler
	queue         []Envelope
	nextSeq       uint64
	notify        chan struct{}

	draining bool
	inFlight sync.WaitGroup

	closeOnce sync.Once
	done      chan struct{}
}

// New creates an idle Bus. Run must be called to start draining the
// queue.
func New(log logging.Logger, m *metrics.Metrics) *Bus {
	if log == nil {
		log = logging.NewNoOpLogger()
	}
	return &Bus{
		log:           log,
		metrics:       m,
		subscriptions: make(map[string][]Handler),
		notify:        make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
}

// Subscribe registers handler to run whenever eventName is emitted.
// Subscriptions made after Run has started are honored for future
// emissions.
func (b *Bus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions[eventName] = append(b.subscriptions[eventName], handler)
}

// Emit enqueues an envelope for eventName. It never blocks on handler
// execution: the envelope is appended to the queue and Run's drain
// loop is woken. Emit is a no-op once the bus has begun draining for
// shutdown (spec §4.6: "the bus stops accepting new events").
func (b *Bus) Emit(eventName string, payload value.Value) {
	b.mu.Lock()
	if b.draining {
		b.mu.Unlock()
		b.log.Warn("eventbus: dropping event %q emitted after shutdown began", eventName)
		return
	}
	b.nextSeq++
	env := Envelope{Name: eventName, Payload: payload, seq: b.nextSeq}
	b.queue = append(b.queue, env)
	depth := len(b.queue)
	b.mu.Unlock()

	b.metrics.SetEventQueueDepth(depth)

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Run drains the queue until ctx is cancelled. Envelopes are scheduled
// strictly in emission order: every handler activation for envelope N
// is spawned before any handler activation for envelope N+1 is even
// looked up, matching spec §4.6's ordering guarantee. Handlers for the
// same envelope run concurrently with each other.
func (b *Bus) Run(ctx context.Context) {
	for {
		env, ok := b.dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				b.drainRemaining(ctx)
				b.shutdown()
				return
			case <-b.notify:
				continue
			}
		}
		b.dispatch(ctx, env)

		select {
		case <-ctx.Done():
			b.drainRemaining(ctx)
			b.shutdown()
			return
		default:
		}
	}
}

func (b *Bus) dequeue() (Envelope, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return Envelope{}, false
	}
	env := b.queue[0]
	b.queue = b.queue[1:]
	b.metrics.SetEventQueueDepth(len(b.queue))
	return env, true
}

func (b *Bus) dispatch(ctx context.Context, env Envelope) {
	b.mu.Lock()
	handlers := append([]Handler(nil), b.subscriptions[env.Name]...)
	b.mu.Unlock()

	for _, h := range handlers {
		h := h
		b.inFlight.Add(1)
		go func() {
			defer b.inFlight.Done()
			if err := h(ctx, env); err != nil {
				b.log.Error("eventbus: handler for %q failed: %v", env.Name, err)
			}
		}()
	}
}

// drainRemaining runs every remaining queued envelope to completion,
// bounded by a grace period, implementing the shutdown sequence of
// spec §4.6 ("drains the queue to quiescence with a bounded grace
// period, and then cancels all outstanding handler activations").
func (b *Bus) drainRemaining(ctx context.Context) {
	b.mu.Lock()
	b.draining = true
	remaining := b.queue
	b.queue = nil
	b.mu.Unlock()

	for _, env := range remaining {
		b.dispatch(ctx, env)
	}

	grace := make(chan struct{})
	go func() {
		b.inFlight.Wait()
		close(grace)
	}()

	select {
	case <-grace:
	case <-time.After(gracePeriod):
		b.log.Warn("eventbus: shutdown grace period elapsed with handlers still outstanding")
	}
}

const gracePeriod = 5 * time.Second

func (b *Bus) shutdown() {
	b.closeOnce.Do(func() { close(b.done) })
}

// Done returns a channel closed once Run has fully shut down.
func (b *Bus) Done() <-chan struct{} { return b.done }
