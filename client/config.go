package client

import (
	"strings"
	"time"
)

// Config controls how the client reaches the server.
type Config struct {
	// BaseURL is the HTTP API base, e.g. "http://localhost:8080".
	BaseURL string
	// SocketURL is the websocket endpoint. Derived from BaseURL when empty.
	SocketURL string

	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
}

// DefaultConfig returns sensible defaults for the given server base URL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:          baseURL,
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      0,
		WriteTimeout:     10 * time.Second,
	}
}

// socketURL resolves the websocket endpoint for this config.
func (c Config) socketURL() string {
	if c.SocketURL != "" {
		return c.SocketURL
	}
	base := c.BaseURL
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return strings.TrimSuffix(base, "/") + "/ws/chat"
}
