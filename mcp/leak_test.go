package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/viant/mcprpc"
	"go.uber.org/goleak"
)

// closingMockTransport wraps mockTransport with a background goroutine (as a
// real transport would run a reader/dispatch loop) that must stop when Close
// is called, so Session.Close correctly tears down whatever it is bound to.
type closingMockTransport struct {
	mockTransport
	stop chan struct{}
	done chan struct{}
}

func newClosingMockTransport() *closingMockTransport {
	t := &closingMockTransport{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(t.done)
		<-t.stop
	}()
	return t
}

func (t *closingMockTransport) Close() error {
	close(t.stop)
	<-t.done
	return nil
}

// TestSession_Close_StopsTransportGoroutine guards against Session.Close
// returning before the bound transport has finished tearing down its own
// goroutines.
func TestSession_Close_StopsTransportGoroutine(t *testing.T) {
	defer goleak.VerifyNone(t)

	mock := newClosingMockTransport()
	mock.sendFunc = func(ctx context.Context, request *jsonrpc.Request) (*jsonrpc.Response, error) {
		result := InitializeResult{ProtocolVersion: DefaultProtocolVersion, ServerInfo: ServerInfo{Name: "test-server", Version: "1.0.0"}}
		data, _ := json.Marshal(result)
		return &jsonrpc.Response{Id: request.Id, Jsonrpc: jsonrpc.Version, Result: data}, nil
	}

	session := NewSession()
	session.Bind(mock)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := session.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := session.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	select {
	case <-mock.done:
	default:
		t.Fatalf("transport goroutine did not stop after Close")
	}
}
