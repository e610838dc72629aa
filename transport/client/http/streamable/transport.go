package streamable

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"github.com/viant/mcprpc"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Transport implements client side sender for the streaming HTTP transport. It
// expects that the endpoint supplied via handshake is capable of accepting a
// POST request with a JSON payload and will synchronously return any response
// payload.
type Transport struct {
	client   *http.Client
	headers  http.Header
	endpoint string
	host     string
	c        *Client
	sync.Mutex
}

func (t *Transport) setEndpoint(uri string) {
	t.endpoint = uri
}

// SendData forwards JSON-RPC message data to the server using HTTP POST,
// retrying transient failures per t.c.retry (the same policy governing the
// GET stream reconnect loop): network errors and retriable status codes are
// retried up to MaxRetries with a doubling, jittered delay between attempts;
// 401/403 and any other non-retriable status fail immediately.
func (t *Transport) SendData(ctx context.Context, data []byte) error {
	t.Lock()

	if t.endpoint == "" {
		t.Unlock()
		return fmt.Errorf("transport is not initialised - endpoint is empty")
	}

	var resp *http.Response
	var statusErr error
	attempt := 0
	for {
		req, err := http.NewRequestWithContext(ctx, "POST", t.endpoint, bytes.NewReader(data))
		if err != nil {
			t.Unlock()
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		// Per spec, client MUST declare it supports both JSON & SSE for POST
		req.Header.Set("Accept", "application/json, text/event-stream")
		for k, v := range t.headers {
			req.Header[k] = v
		}

		resp, err = t.client.Do(req)
		if err != nil {
			if attempt < t.c.retry.MaxRetries {
				attempt++
				t.Unlock()
				t.c.retry.Sleep(attempt, ctx.Done())
				t.Lock()
				continue
			}
			t.Unlock()
			return fmt.Errorf("failed to send request: %w", err)
		}

		if statusErr = t.retriableStatusError(resp); statusErr == nil {
			break
		}
		_ = resp.Body.Close()
		if !t.c.retry.ShouldRetry(resp.StatusCode, attempt) {
			t.Unlock()
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return jsonrpc.NewUnauthorizedError(resp.StatusCode, nil)
			}
			return statusErr
		}
		attempt++
		t.Unlock()
		t.c.retry.Sleep(attempt, ctx.Done())
		t.Lock()
	}

	// If server sent session id on handshake, capture it and start the
	// managed GET stream reconnect loop the first time a session is
	// established (ensureStream is idempotent against later POSTs that
	// echo the same session id).
	if sessionID := resp.Header.Get(t.c.sessionHeaderName); sessionID != "" {
		isNewSession := t.c.sessionID == ""
		t.c.sessionID = sessionID
		// Ensure subsequent message POSTs include the session id header
		t.headers.Set(t.c.sessionHeaderName, sessionID)
		if isNewSession {
			t.c.ensureStream()
		}
	}

	if t.c.sessionID == "" {
		t.Unlock()
		return fmt.Errorf("handshake missing %s header", t.c.sessionHeaderName)
	}

	// If server responded with SSE, consume stream and return
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "text/event-stream") {
		// Release the transport lock before consuming the stream to allow
		// re-entrant SendData calls (e.g. replies to server-initiated requests)
		t.Unlock()
		reader := bufio.NewReader(resp.Body)
		// consume stream inline; server should close stream after sending response
		t.c.consumeSSEPost(ctx, reader)
		_ = resp.Body.Close()
		return nil
	}

	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if len(body) > 0 {
		t.c.base.HandleMessage(ctx, body)
	}
	t.Unlock()
	return nil
}

// retriableStatusError returns a non-nil error describing resp's status if
// it is outside the success set (200/202), leaving resp.Body open for the
// caller to close. A nil return means resp.StatusCode was OK or Accepted.
func (t *Transport) retriableStatusError(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
		return nil
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("invalid status code: %d: %s", resp.StatusCode, string(body))
	}
}
