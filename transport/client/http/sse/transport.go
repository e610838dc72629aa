package sse

import (
	"bytes"
	"context"
	"fmt"
	"github.com/viant/afs/url"
	"io"
	"net/http"
	"sync"
)

// Transport carries outbound POSTs for the legacy 2024-11-05 MCP HTTP+SSE
// flow. Its endpoint is not known until the paired Client's GET stream has
// received the server's "endpoint" event (see Client.handleHandshake);
// until then SendData fails rather than guessing a URL.
type Transport struct {
	client   *http.Client
	host     string
	endpoint string
	headers  http.Header
	sync.Mutex
}

// SendData posts a JSON-RPC frame to the endpoint the server named in its
// "endpoint" SSE event.
func (c *Transport) SendData(ctx context.Context, data []byte) error {
	c.Mutex.Lock()
	defer c.Mutex.Unlock()
	if c.endpoint == "" {
		return fmt.Errorf("Transport is not initialized - endpoint is empty")
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint,
		bytes.NewReader(data),
	)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// set custom http headers
	for k, v := range c.headers {
		req.Header[k] = v
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
	default:
		return fmt.Errorf("invalid status code: %d: %s", resp.StatusCode, body)
	}
	return nil
}

func (c *Transport) setEndpoint(URI string) {
	c.endpoint = url.Join(c.host, URI)
}
