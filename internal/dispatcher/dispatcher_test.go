package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	idx      int
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idx >= len(f.messages) {
		<-make(chan struct{}) // block forever once exhausted, like an idle socket
	}
	msg := f.messages[f.idx]
	f.idx++
	return 0, msg, nil
}

type fakeWaiter struct{ calls int }

func (w *fakeWaiter) WaitBlocks(ctx context.Context, n uint64) error {
	w.calls++
	return nil
}

func TestDispatcherDeliversEventsInOrder(t *testing.T) {
	conn := &fakeConn{messages: [][]byte{[]byte("first"), []byte("second")}}
	waiter := &fakeWaiter{}

	var mu sync.Mutex
	var received [][]byte
	handler := func(ctx context.Context, ev Event) error {
		mu.Lock()
		received = append(received, ev.Raw)
		mu.Unlock()
		return nil
	}

	d := New(conn, waiter, handler, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = d.Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(received), 1)
	require.Equal(t, []byte("first"), received[0])
	require.GreaterOrEqual(t, waiter.calls, 1)
}

type erroringConn struct{}

func (erroringConn) ReadMessage() (int, []byte, error) {
	return 0, nil, errors.New("connection closed")
}

func TestDispatcherReturnsOnReadError(t *testing.T) {
	d := New(erroringConn{}, &fakeWaiter{}, func(ctx context.Context, ev Event) error { return nil }, zerolog.Nop())
	err := d.Run(context.Background())
	require.Error(t, err)
}
