package config

import (
	"crypto/tls"
	"testing"
	"time"
)

func TestHTTPConfig_RetryPolicyUsesOverrides(t *testing.T) {
	cfg := HTTPConfig{MaxRetries: 7, RetryDelay: 2 * time.Second}.WithDefaults()
	policy := cfg.RetryPolicy()
	if policy.MaxRetries != 7 {
		t.Fatalf("expected MaxRetries 7, got %d", policy.MaxRetries)
	}
	if policy.BaseDelay != 2*time.Second {
		t.Fatalf("expected BaseDelay 2s, got %v", policy.BaseDelay)
	}
}

func TestHTTPConfig_RetryPolicyFallsBackToDefaults(t *testing.T) {
	cfg := HTTPConfig{}.WithDefaults()
	policy := cfg.RetryPolicy()
	if policy.MaxRetries != cfg.MaxRetries {
		t.Fatalf("expected MaxRetries to mirror WithDefaults' value %d, got %d", cfg.MaxRetries, policy.MaxRetries)
	}
}

func TestTLSMinVersion(t *testing.T) {
	if v := tlsMinVersion("1.3"); v != tls.VersionTLS13 {
		t.Fatalf("expected TLS 1.3, got %v", v)
	}
	if v := tlsMinVersion("1.2"); v != tls.VersionTLS12 {
		t.Fatalf("expected TLS 1.2, got %v", v)
	}
	if v := tlsMinVersion(""); v != tls.VersionTLS12 {
		t.Fatalf("expected TLS 1.2 default for empty input, got %v", v)
	}
}

func TestHTTPConfig_SecureHTTPClientAppliesForceHTTPS(t *testing.T) {
	cfg := HTTPConfig{ForceHTTPS: true}.WithDefaults()
	client := cfg.SecureHTTPClient()
	if _, err := client.Get("http://example.invalid/"); err == nil {
		t.Fatalf("expected ForceHTTPS to reject a plain-HTTP request")
	}
}
