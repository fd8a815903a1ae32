package config

import (
	"strings"
	"time"
)

// Config holds client configuration values.
type Config struct {
	ServerURL    string        `mapstructure:"server_url" yaml:"server_url"`
	WSURL        string        `mapstructure:"ws_url" yaml:"ws_url"`
	SessionPath  string        `mapstructure:"session_path" yaml:"session_path"`
	LogLevel     string        `mapstructure:"log_level" yaml:"log_level"`
	ReconnectMin time.Duration `mapstructure:"reconnect_min" yaml:"reconnect_min"`
	ReconnectMax time.Duration `mapstructure:"reconnect_max" yaml:"reconnect_max"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		ServerURL:    "http://localhost:4000",
		WSURL:        "", // derived from ServerURL when empty
		SessionPath:  "wirechat.db",
		LogLevel:     "info",
		ReconnectMin: time.Second,
		ReconnectMax: 30 * time.Second,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.ServerURL != "" {
		c.ServerURL = other.ServerURL
	}
	if other.WSURL != "" {
		c.WSURL = other.WSURL
	}
	if other.SessionPath != "" {
		c.SessionPath = other.SessionPath
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.ReconnectMin != 0 {
		c.ReconnectMin = other.ReconnectMin
	}
	if other.ReconnectMax != 0 {
		c.ReconnectMax = other.ReconnectMax
	}
}

// ResolveWSURL returns the websocket endpoint: WSURL when set, otherwise
// ServerURL with the scheme switched to ws(s) and "/ws" appended.
func (c Config) ResolveWSURL() string {
	if c.WSURL != "" {
		return c.WSURL
	}

	url := c.ServerURL
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return strings.TrimSuffix(url, "/") + "/ws"
}
