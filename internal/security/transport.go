// Package security implements the outbound HTTP guards the streamable and
// SSE client transports apply to every request: an HTTPS-only mode, a TLS
// minimum version floor, rejection of redirects to non-HTTP(S) schemes, and
// request/response body size caps. It wraps an http.RoundTripper rather than
// replacing the caller's *http.Client outright, following the common
// package's style of layering small, composable helpers
// (transport/server/http/common.FlushWriter) over a request/response pair
// instead of owning the whole client.
package security

import (
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
)

// DefaultMaxRequestBody and DefaultMaxResponseBody are the caps spec'd for
// MCP JSON-RPC payloads: requests are single tool-call-sized JSON documents,
// responses may carry larger tool output.
const (
	DefaultMaxRequestBody  = 10 << 20 // 10 MiB
	DefaultMaxResponseBody = 50 << 20 // 50 MiB
)

// DisallowedRedirectSchemes are schemes a redirect must never be followed
// to: a malicious or misconfigured server could otherwise redirect an MCP
// client into reading local files or exfiltrating data via data URIs.
var DisallowedRedirectSchemes = map[string]bool{
	"file": true,
	"ftp":  true,
	"data": true,
}

// Config controls the guards RoundTrip enforces.
type Config struct {
	// ForceHTTPS rejects any request whose URL scheme isn't "https".
	ForceHTTPS bool
	// MinTLSVersion is passed through to the underlying *http.Transport's
	// TLSClientConfig.MinVersion, e.g. tls.VersionTLS12.
	MinTLSVersion uint16
	// MaxRequestBody caps the bytes a request body may contain; 0 disables
	// the cap. Exceeding it fails the request while its body is being read
	// for sending.
	MaxRequestBody int64
	// MaxResponseBody caps the bytes read from a response body; 0 disables
	// the cap. Exceeding it fails the read with an error instead of
	// silently truncating.
	MaxResponseBody int64
}

// DefaultConfig returns the posture described in SPEC_FULL.md's security
// guards section: TLS 1.2 floor and the two body caps, HTTPS not forced by
// default (many local/dev deployments still run plain HTTP).
func DefaultConfig() Config {
	return Config{
		MinTLSVersion:   tls.VersionTLS12,
		MaxRequestBody:  DefaultMaxRequestBody,
		MaxResponseBody: DefaultMaxResponseBody,
	}
}

// Transport wraps Base, applying Config's guards to every round trip.
type Transport struct {
	Config Config
	Base   http.RoundTripper
}

// Wrap returns client with its Transport replaced by a guard built from cfg
// around whatever RoundTripper client already had configured (or
// http.DefaultTransport if none), and its CheckRedirect set to reject
// DisallowedRedirectSchemes. If the existing transport is an *http.Transport,
// it's cloned and cfg.MinTLSVersion applied to TLSClientConfig.MinVersion
// rather than discarded.
func Wrap(client *http.Client, cfg Config) *http.Client {
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	if httpTransport, ok := base.(*http.Transport); ok {
		httpTransport = httpTransport.Clone()
		if httpTransport.TLSClientConfig == nil {
			httpTransport.TLSClientConfig = &tls.Config{}
		}
		if cfg.MinTLSVersion != 0 {
			httpTransport.TLSClientConfig.MinVersion = cfg.MinTLSVersion
		}
		base = httpTransport
	}
	client.Transport = &Transport{Config: cfg, Base: base}
	client.CheckRedirect = rejectDisallowedSchemes
	return client
}

func rejectDisallowedSchemes(req *http.Request, via []*http.Request) error {
	if DisallowedRedirectSchemes[req.URL.Scheme] {
		return fmt.Errorf("security: redirect to disallowed scheme %q", req.URL.Scheme)
	}
	if len(via) >= 10 {
		return fmt.Errorf("security: stopped after 10 redirects")
	}
	return nil
}

// RoundTrip enforces ForceHTTPS and the body caps before delegating to Base.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Config.ForceHTTPS && req.URL.Scheme != "https" {
		return nil, fmt.Errorf("security: https required, request used scheme %q", req.URL.Scheme)
	}
	if req.Body != nil && t.Config.MaxRequestBody > 0 {
		req.Body = &limitedReadCloser{reader: req.Body, limit: t.Config.MaxRequestBody, closer: req.Body}
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.Body != nil && t.Config.MaxResponseBody > 0 {
		resp.Body = &limitedReadCloser{reader: resp.Body, limit: t.Config.MaxResponseBody, closer: resp.Body}
	}
	return resp, nil
}

// limitedReadCloser fails a Read once more than limit bytes have been read,
// rather than silently truncating the body the way io.LimitReader would.
type limitedReadCloser struct {
	reader io.Reader
	closer io.Closer
	limit  int64
	read   int64
}

func (l *limitedReadCloser) Read(p []byte) (int, error) {
	if l.read > l.limit {
		return 0, fmt.Errorf("security: body exceeds %d byte limit", l.limit)
	}
	if remaining := l.limit - l.read + 1; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := l.reader.Read(p)
	l.read += int64(n)
	if l.read > l.limit {
		return n, fmt.Errorf("security: body exceeds %d byte limit", l.limit)
	}
	return n, err
}

func (l *limitedReadCloser) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
