package api

import "time"

// Config holds server configuration.
type Config struct {
	Port              int
	RateLimitRequests int           // Requests per minute (0 = disabled)
	RateLimitBurst    int           // Burst size
	Auth              AuthConfig    // Authentication configuration
	TLS               TLSConfig     // TLS configuration
	AllowedOrigins    []string      // CORS and WebSocket allowed origins (empty = allow all)
	SessionTTL        time.Duration // Idle time after which a reader session is dropped
	WatchDir          string        // Data directory to watch for index changes ("" = no watching)
}

// TLSConfig holds TLS/HTTPS configuration.
type TLSConfig struct {
	Enabled  bool   // Enable HTTPS
	CertFile string // Path to TLS certificate file
	KeyFile  string // Path to TLS private key file
}
