package model

import "time"

// ProxyConfig describes how to reach the backend.
// URL is empty for a direct connection, otherwise
// http://host:port, https://host:port or socks5://[user:pass@]host:port.
type ProxyConfig struct {
	URL            string
	DialTimeout    time.Duration
	KeepAlive      time.Duration
	HandshakeLimit time.Duration
}

// ReconnectPolicy bounds automatic reconnection of the live channel.
// Attempts counts reconnections after the first failed dial.
type ReconnectPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultReconnectPolicy matches the backend's client: 5 attempts, 1s apart.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		Attempts: 5,
		Delay:    time.Second,
	}
}
