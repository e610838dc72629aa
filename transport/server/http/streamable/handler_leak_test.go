package streamable

import (
	"context"
	"testing"
	"time"

	"github.com/viant/mcprpc/transport"
	"go.uber.org/goleak"
)

// TestStreamable_CloseStopsSweeperGoroutine guards against the cleanup
// sweeper started by New outliving the Handler once Close is called.
func TestStreamable_CloseStopsSweeperGoroutine(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := New(func(ctx context.Context, tr transport.Transport) transport.Handler {
		return &serverHandler{}
	}, WithCleanupInterval(10*time.Millisecond))

	h.startSweeper()
	// Let the ticker fire at least once before tearing it down.
	time.Sleep(30 * time.Millisecond)
	h.Close()
}

// TestStreamable_CloseWithoutSweeperIsNoop guards Close against a handler
// whose CleanupInterval is zero, where the sweeper never started.
func TestStreamable_CloseWithoutSweeperIsNoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := New(func(ctx context.Context, tr transport.Transport) transport.Handler {
		return &serverHandler{}
	})
	h.Close()
}
