package sse

import "time"

// Config holds configuration for SSE connections
type Config struct {
	// KeepAliveInterval is how often to send keep-alive comments so that
	// proxies and timeouts do not reap idle connections
	KeepAliveInterval time.Duration

	// ClientBuffer is the capacity of each client's outbound frame channel.
	// Sends to a full buffer are dropped so a stalled client never blocks
	// the event pump.
	ClientBuffer int
}

// DefaultConfig returns the default SSE configuration
func DefaultConfig() *Config {
	return &Config{
		KeepAliveInterval: 10 * time.Second,
		ClientBuffer:      64,
	}
}
