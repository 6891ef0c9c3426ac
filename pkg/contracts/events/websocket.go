// Package events contains the WebSocket message contract shared by the
// Promogen server and its browser clients.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Job lifecycle messages pushed to per-job subscribers
	MessageTypeJobProgress MessageType = "job:progress"
	MessageTypeJobComplete MessageType = "job:complete"
	MessageTypeJobError    MessageType = "job:error"

	// MessageTypeJobUpdate is broadcast to every client when a job is
	// created, cancelled or deleted so list views can refresh
	MessageTypeJobUpdate MessageType = "job:update"

	// Connection messages
	MessageTypeConnection MessageType = "connection"
	MessageTypeError      MessageType = "error"
)

// Commands a client may send over the socket
const (
	CommandSubscribe   = "subscribe"
	CommandUnsubscribe = "unsubscribe"
	CommandHeartbeat   = "heartbeat"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`       // Unique message ID
	Type      MessageType `json:"type"`               // Message type
	Timestamp time.Time   `json:"timestamp"`          // Message timestamp
	TraceID   string      `json:"trace_id,omitempty"` // Request trace ID
}

// WebSocketMessage represents a complete WebSocket message
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"` // Message payload
}

// ClientCommand is an inbound message from the client. Subscribe and
// unsubscribe carry the job ID; heartbeat carries nothing.
type ClientCommand struct {
	Type  string `json:"type"`
	JobID string `json:"job_id,omitempty"`
}

// JobSnapshot is the payload of every job:* message. Progress maps stage
// name to stage status. Result is present only on job:complete.
type JobSnapshot struct {
	JobID    string            `json:"job_id"`
	Status   string            `json:"status"`
	Progress map[string]string `json:"progress"`
	Result   interface{}       `json:"result,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// JobUpdate is the payload of job:update broadcasts.
type JobUpdate struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	Action string `json:"action"` // created|cancelled|deleted
}

// ConnectionData is the payload of the connection welcome message.
type ConnectionData struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	ClientID string `json:"client_id"`
}

// ErrorData is the payload of error messages sent to a single client.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	JobID   string `json:"job_id,omitempty"`
}
