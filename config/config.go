// Package config defines and loads the runtime configuration for mcprpc's
// client and server transports.
package config

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/viant/mcprpc/internal/backoff"
	"github.com/viant/mcprpc/internal/security"
)

// StdioConfig configures a stdio-spawned MCP server process.
type StdioConfig struct {
	Command            []string          `mapstructure:"command" yaml:"command"`
	ReadTimeout        time.Duration     `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout       time.Duration     `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout    time.Duration     `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	BufferSize         int               `mapstructure:"buffer_size" yaml:"buffer_size"`
	InheritEnvironment bool              `mapstructure:"inherit_environment" yaml:"inherit_environment"`
	ValidateMessages   bool              `mapstructure:"validate_messages" yaml:"validate_messages"`
	CaptureStderr      bool              `mapstructure:"capture_stderr" yaml:"capture_stderr"`
	Env                map[string]string `mapstructure:"env" yaml:"env"`
}

// WithDefaults returns a copy of c with zero-valued fields replaced by
// sane defaults.
func (c StdioConfig) WithDefaults() StdioConfig {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 64 * 1024
	}
	return c
}

// AuthConfig configures how outbound HTTP requests authenticate.
type AuthConfig struct {
	Type     string            `mapstructure:"type" yaml:"type"` // "bearer" | "basic" | "custom"
	Token    string            `mapstructure:"token" yaml:"token"`
	Username string            `mapstructure:"username" yaml:"username"`
	Password string            `mapstructure:"password" yaml:"password"`
	Headers  map[string]string `mapstructure:"headers" yaml:"headers"`
}

// HTTPConfig configures an HTTP(+SSE) MCP client or server transport.
type HTTPConfig struct {
	BaseURL          string            `mapstructure:"base_url" yaml:"base_url"`
	Timeout          time.Duration     `mapstructure:"timeout" yaml:"timeout"`
	SSETimeout       time.Duration     `mapstructure:"sse_timeout" yaml:"sse_timeout"`
	MaxRetries       int               `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay       time.Duration     `mapstructure:"retry_delay" yaml:"retry_delay"`
	SessionResumable bool              `mapstructure:"session_resumable" yaml:"session_resumable"`
	ValidateSSL      bool              `mapstructure:"validate_ssl" yaml:"validate_ssl"`
	ForceHTTPS       bool              `mapstructure:"force_https" yaml:"force_https"`
	MinTLSVersion    string            `mapstructure:"min_tls_version" yaml:"min_tls_version"` // "1.2" | "1.3"
	VerifyHostname   bool              `mapstructure:"verify_hostname" yaml:"verify_hostname"`
	MaxRedirects     int               `mapstructure:"max_redirects" yaml:"max_redirects"`
	FollowRedirects  bool              `mapstructure:"follow_redirects" yaml:"follow_redirects"`
	UserAgent        string            `mapstructure:"user_agent" yaml:"user_agent"`
	Headers          map[string]string `mapstructure:"headers" yaml:"headers"`
	Auth             AuthConfig        `mapstructure:"auth" yaml:"auth"`
	ProtocolVersion  string            `mapstructure:"protocol_version" yaml:"protocol_version"` // "auto" | "2025-03-26" | "2024-11-05"
	EventStoreType   string            `mapstructure:"event_store_type" yaml:"event_store_type"` // "memory" | "file" | "redis"
	EventStoreConfig map[string]string `mapstructure:"event_store_config" yaml:"event_store_config"`
	JSONResponseMode bool              `mapstructure:"json_response_mode" yaml:"json_response_mode"`
	TerminateOnClose bool              `mapstructure:"terminate_on_close" yaml:"terminate_on_close"`
}

// WithDefaults returns a copy of c with zero-valued fields replaced by
// sane defaults, matching the security-conscious posture spec'd for the
// HTTP client transport.
func (c HTTPConfig) WithDefaults() HTTPConfig {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.SSETimeout <= 0 {
		c.SSETimeout = 5 * time.Minute
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 500 * time.Millisecond
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = 5
	}
	if c.MinTLSVersion == "" {
		c.MinTLSVersion = "1.2"
	}
	if c.ProtocolVersion == "" {
		c.ProtocolVersion = "auto"
	}
	if c.EventStoreType == "" {
		c.EventStoreType = "memory"
	}
	if c.UserAgent == "" {
		c.UserAgent = "mcprpc/1.0"
	}
	return c
}

// Validate reports a configuration error that construction-time defaulting
// cannot resolve on its own.
func (c HTTPConfig) Validate() error {
	switch c.EventStoreType {
	case "memory", "redis":
	case "file":
		return errFileEventStoreUnsupported
	default:
		return &UnsupportedEventStoreError{Type: c.EventStoreType}
	}
	return nil
}

// RetryPolicy builds the backoff.Policy an HTTP transport's send/reconnect
// loops should use, seeded from MaxRetries/RetryDelay and otherwise matching
// backoff.Default()'s cap and jitter.
func (c HTTPConfig) RetryPolicy() *backoff.Policy {
	policy := backoff.Default()
	if c.MaxRetries > 0 {
		policy.MaxRetries = c.MaxRetries
	}
	if c.RetryDelay > 0 {
		policy.BaseDelay = c.RetryDelay
	}
	return policy
}

// tlsMinVersion maps MinTLSVersion's "1.2"/"1.3" config value to the
// corresponding crypto/tls constant, defaulting to TLS 1.2 for anything
// else (including empty, already defaulted by WithDefaults).
func tlsMinVersion(version string) uint16 {
	switch version {
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}

// SecureHTTPClient returns an *http.Client with security.Wrap's guards
// applied per c's ForceHTTPS/MinTLSVersion fields: TLS floor, disallowed
// redirect schemes, and the default request/response body caps.
func (c HTTPConfig) SecureHTTPClient() *http.Client {
	return security.Wrap(&http.Client{Timeout: c.Timeout}, security.Config{
		ForceHTTPS:      c.ForceHTTPS,
		MinTLSVersion:   tlsMinVersion(c.MinTLSVersion),
		MaxRequestBody:  security.DefaultMaxRequestBody,
		MaxResponseBody: security.DefaultMaxResponseBody,
	})
}

// UnsupportedEventStoreError reports an event_store_type the runtime does
// not know how to construct.
type UnsupportedEventStoreError struct {
	Type string
}

func (e *UnsupportedEventStoreError) Error() string {
	return "config: unsupported event_store_type " + e.Type
}

var errFileEventStoreUnsupported = &UnsupportedEventStoreError{Type: "file"}
