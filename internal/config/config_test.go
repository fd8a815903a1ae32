package config

import (
	"testing"
	"time"
)

func TestResolveWSURLDerivesFromServerURL(t *testing.T) {
	cases := []struct {
		server string
		ws     string
		want   string
	}{
		{"http://localhost:4000", "", "ws://localhost:4000/ws"},
		{"https://chat.example.com", "", "wss://chat.example.com/ws"},
		{"http://localhost:4000/", "", "ws://localhost:4000/ws"},
		{"http://localhost:4000", "ws://elsewhere:9/socket", "ws://elsewhere:9/socket"},
	}

	for _, tc := range cases {
		cfg := Default()
		cfg.ServerURL = tc.server
		cfg.WSURL = tc.ws
		if got := cfg.ResolveWSURL(); got != tc.want {
			t.Fatalf("ResolveWSURL(%q, %q) = %q, want %q", tc.server, tc.ws, got, tc.want)
		}
	}
}

func TestUpdateFromSkipsZeroValues(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{ServerURL: "http://other:5000"})

	if cfg.ServerURL != "http://other:5000" {
		t.Fatalf("expected override, got %q", cfg.ServerURL)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("zero override clobbered log level: %q", cfg.LogLevel)
	}
	if cfg.ReconnectMin != time.Second {
		t.Fatalf("zero override clobbered backoff: %v", cfg.ReconnectMin)
	}
}
