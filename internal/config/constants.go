package config

import "time"

// Application constants for the promogen service
const (
	// Application Info
	AppName    = "Promogen"
	AppVersion = "1.0.0"

	// Network Timeouts
	DefaultHTTPTimeout = 30 * time.Second

	// WebSocket Settings
	WebSocketPingPeriod      = 30 * time.Second
	WebSocketPongWait        = 60 * time.Second
	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 1024

	// Upload Limits
	MaxUploadBytes = 10 * 1024 * 1024 // matches the pipeline's image cap

	// Log Settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// API Endpoints (internal)
const (
	APIBasePath       = "/api"
	JobsEndpoint      = "/api/jobs"
	DownloadsEndpoint = "/api/downloads"
	HealthEndpoint    = "/api/health"
	MetricsEndpoint   = "/metrics"

	// WebSocket Endpoints
	WebSocketEndpoint = "/ws"
)
