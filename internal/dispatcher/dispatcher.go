// Package dispatcher implements the event dispatcher: a single websocket
// subscriber feeding a bounded, capacity-one channel to a single serial
// consumer. Backpressure is deliberate — a slow consumer blocks the
// subscriber from enqueueing a second event rather than buffering an
// unbounded backlog.
package dispatcher

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Event is a single message the dispatcher has read off the websocket
// subscription. Raw holds the message bytes as received; the subscriber
// loop does not decode them, so Kind is left empty. ID correlates this
// event across log lines from receipt through confirmation and handling,
// since the consumer loop's block wait means those can be seconds apart.
type Event struct {
	ID   string
	Kind string
	Raw  []byte
}

// BlockWaiter blocks until the chain has produced n further blocks past
// its height at the time of the call, implementing the "wait two blocks"
// confirmation rule
// before the consumer is allowed to act on an event.
type BlockWaiter interface {
	WaitBlocks(ctx context.Context, n uint64) error
}

// Handler processes a single confirmed event. Handlers run serially on the
// dispatcher's single consumer goroutine — never concurrently.
type Handler func(ctx context.Context, ev Event) error

// confirmationBlocks is the number of blocks the dispatcher waits for
// after an event before treating it as confirmed and dispatching it to the
// handler, per the two-block wait rule.
const confirmationBlocks = 2

// MessageReader is the subset of *websocket.Conn the subscriber loop
// needs; narrowing it to an interface lets tests drive the dispatcher
// without a real socket.
type MessageReader interface {
	ReadMessage() (messageType int, p []byte, err error)
}

var _ MessageReader = (*websocket.Conn)(nil)

// Dispatcher owns the capacity-one event channel and the single consumer
// goroutine that drains it.
type Dispatcher struct {
	conn    MessageReader
	waiter  BlockWaiter
	handler Handler
	log     zerolog.Logger

	queue chan Event
}

// New constructs a Dispatcher reading events from conn and processing them
// with handler, waiting on waiter between receipt and dispatch.
func New(conn MessageReader, waiter BlockWaiter, handler Handler, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		conn:    conn,
		waiter:  waiter,
		handler: handler,
		log:     log.With().Str("component", "dispatcher").Logger(),
		queue:   make(chan Event, 1),
	}
}

// Run starts the subscriber and consumer loops and blocks until ctx is
// cancelled or the websocket connection fails.
func (d *Dispatcher) Run(ctx context.Context) error {
	done := make(chan error, 2)

	go func() { done <- d.subscribeLoop(ctx) }()
	go func() { done <- d.consumeLoop(ctx) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// subscribeLoop reads events off the websocket and enqueues them. Because
// queue has capacity 1, this blocks (applying backpressure) whenever the
// consumer is still working through a prior event.
func (d *Dispatcher) subscribeLoop(ctx context.Context) error {
	for {
		_, raw, err := d.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("dispatcher: read websocket message: %w", err)
		}

		ev := Event{ID: uuid.New().String(), Raw: raw}
		select {
		case d.queue <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// consumeLoop drains the queue one event at a time, waiting for
// confirmationBlocks before invoking the handler.
func (d *Dispatcher) consumeLoop(ctx context.Context) error {
	for {
		select {
		case ev := <-d.queue:
			if err := d.waiter.WaitBlocks(ctx, confirmationBlocks); err != nil {
				d.log.Error().Err(err).Msg("wait for block confirmation failed")
				continue
			}
			if err := d.handler(ctx, ev); err != nil {
				d.log.Error().Err(err).Str("event_id", ev.ID).Str("event_kind", ev.Kind).Msg("event handler failed")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
