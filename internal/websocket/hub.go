package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"promogen/internal/generation"
	"promogen/internal/infrastructure"
	"promogen/pkg/contracts/events"
)

// Error codes sent to clients over the socket
const (
	ErrCodeJobNotFound  = "JOB_NOT_FOUND"
	ErrCodeMissingJobID = "MISSING_JOB_ID"
	ErrCodeSubscribe    = "SUBSCRIBE_FAILED"
)

// Hub maintains the set of active clients, routes per-job progress events to
// their subscribers and broadcasts system messages to everyone.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages for every connected client
	broadcast chan []byte

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Source of per-job progress subscriptions
	jobs JobStream

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Logger instance
	logger *slog.Logger

	// Counters surfaced by GetHubMetrics
	totalConnections int64
	messagesSent     int64
	messagesReceived int64

	// Control
	quit        chan struct{}
	running     bool
	metricsQuit chan struct{}
}

// NewHub creates a new Hub instance with dependency injection
func NewHub(jobs JobStream, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = logger.With(slog.String("component", "websocket.hub"))

	hub := &Hub{
		broadcast:   make(chan []byte),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		clients:     make(map[*Client]bool),
		jobs:        jobs,
		logger:      logger,
		quit:        make(chan struct{}),
		metricsQuit: make(chan struct{}),
	}

	return hub
}

// Start starts the hub's goroutines
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	// Start the main hub loop
	go h.Run()

	// Start metrics reporting
	go h.reportMetrics()
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.totalConnections++
			h.mu.Unlock()

			ctx := context.Background()
			if client.traceID != "" {
				ctx = infrastructure.WithTraceID(ctx, client.traceID)
			}

			h.logger.InfoContext(ctx, "Client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			// Update metrics
			metrics := GetMetrics()
			metrics.RecordConnection()

			// Record OpenTelemetry metrics
			if otelMetrics := GetOTelMetrics(); otelMetrics != nil {
				otelMetrics.RecordConnection(ctx, client.id, client.remoteAddr)
				otelMetrics.RecordClientCount(ctx, int64(count))
			}

			// Send connection success message to the newly connected client
			connMsg := events.WebSocketMessage{
				BaseMessage: events.BaseMessage{
					Type:      events.MessageTypeConnection,
					Timestamp: time.Now(),
					TraceID:   client.traceID,
				},
				Data: events.ConnectionData{
					Status:   "connected",
					Message:  "Connected to Promogen",
					ClientID: client.id,
				},
			}

			jsonData, err := json.Marshal(connMsg)
			if err == nil {
				select {
				case client.send <- jsonData:
					h.logger.DebugContext(ctx, "Sent connection message to client",
						slog.String("client_id", client.id))
				default:
					h.logger.WarnContext(ctx, "Failed to send connection message - client buffer full",
						slog.String("client_id", client.id))
				}
			}

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			if ok {
				delete(h.clients, client)
			}
			count := len(h.clients)
			h.mu.Unlock()

			if ok {
				// Detach every job subscription first: once release
				// returns no callback can touch the send channel, so
				// closing it below is safe.
				released := client.releaseSubscriptions()
				close(client.send)

				ctx := context.Background()
				if client.traceID != "" {
					ctx = infrastructure.WithTraceID(ctx, client.traceID)
				}

				h.logger.InfoContext(ctx, "Client unregistered",
					slog.Int("total_clients", count),
					slog.Int("subscriptions_released", released),
					slog.String("client_id", client.id),
					slog.Duration("connection_duration", time.Since(client.connectedAt)))

				// Update metrics
				metrics := GetMetrics()
				metrics.RecordDisconnection(time.Since(client.connectedAt))
				for i := 0; i < released; i++ {
					metrics.RecordUnsubscription()
				}

				// Record OpenTelemetry metrics
				if otelMetrics := GetOTelMetrics(); otelMetrics != nil {
					otelMetrics.RecordDisconnection(ctx, client.id, time.Since(client.connectedAt), "normal")
					otelMetrics.RecordClientCount(ctx, int64(count))
					if released > 0 {
						otelMetrics.RecordSubscriptionChange(ctx, int64(-released))
					}
				}
			}

		case message := <-h.broadcast:
			h.mu.RLock()
			// Create a copy of clients to avoid holding lock during send
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			h.logger.Debug("Broadcasting message to clients",
				slog.Int("client_count", len(clients)),
				slog.Int("message_size", len(message)))

			successCount := 0
			failCount := 0

			// Send to all clients
			for _, client := range clients {
				select {
				case client.send <- message:
					successCount++
					h.messagesSent++
				default:
					failCount++
					// Client's send channel is full, drop the client
					h.mu.Lock()
					_, present := h.clients[client]
					if present {
						delete(h.clients, client)
					}
					h.mu.Unlock()
					if present {
						client.releaseSubscriptions()
						close(client.send)
					}

					ctx := context.Background()
					if client.traceID != "" {
						ctx = infrastructure.WithTraceID(ctx, client.traceID)
					}
					h.logger.WarnContext(ctx, "Client send buffer full, disconnecting",
						slog.String("client_id", client.id))
				}
			}

			if failCount > 0 {
				h.logger.Warn("Some clients failed to receive broadcast",
					slog.Int("success_count", successCount),
					slog.Int("fail_count", failCount))
			}

			// Record OpenTelemetry metrics for broadcast
			if otelMetrics := GetOTelMetrics(); otelMetrics != nil {
				ctx := context.Background()
				otelMetrics.RecordBroadcast(ctx, "broadcast", int64(len(clients)), int64(successCount), int64(failCount))
			}
		}
	}
}

// Subscribe attaches the client to the job's progress stream. The current
// job state is replayed immediately, then every subsequent transition is
// forwarded until Unsubscribe or disconnect. Subscribing twice to the same
// job is a no-op.
func (h *Hub) Subscribe(client *Client, jobID string) {
	if jobID == "" {
		h.sendError(client, ErrCodeMissingJobID, "subscribe requires a job_id", "")
		return
	}

	client.subMu.Lock()
	defer client.subMu.Unlock()

	// A detached client has had its send channel closed; refusing here keeps
	// the progress bus from ever writing into it again.
	if client.detached {
		return
	}
	if client.subs == nil {
		client.subs = make(map[string]generation.UnsubscribeFunc)
	}
	if _, dup := client.subs[jobID]; dup {
		return
	}

	unsubscribe, err := h.jobs.SubscribeProgress(jobID, func(ev generation.ProgressEvent) {
		h.forwardEvent(client, ev)
	})
	if err != nil {
		code := ErrCodeSubscribe
		if err == generation.ErrJobNotFound {
			code = ErrCodeJobNotFound
		}
		h.sendError(client, code, err.Error(), jobID)
		h.logger.Warn("Subscription rejected",
			slog.String("client_id", client.id),
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		return
	}

	client.subs[jobID] = unsubscribe
	GetMetrics().RecordSubscription()
	if otelMetrics := GetOTelMetrics(); otelMetrics != nil {
		otelMetrics.RecordSubscriptionChange(context.Background(), 1)
	}

	h.logger.Info("Client subscribed to job",
		slog.String("client_id", client.id),
		slog.String("job_id", jobID))
}

// Unsubscribe detaches the client from the job's progress stream. Unknown
// subscriptions are ignored.
func (h *Hub) Unsubscribe(client *Client, jobID string) {
	client.subMu.Lock()
	unsubscribe, ok := client.subs[jobID]
	if ok {
		delete(client.subs, jobID)
	}
	client.subMu.Unlock()

	if !ok {
		return
	}
	unsubscribe()
	GetMetrics().RecordUnsubscription()
	if otelMetrics := GetOTelMetrics(); otelMetrics != nil {
		otelMetrics.RecordSubscriptionChange(context.Background(), -1)
	}

	h.logger.Info("Client unsubscribed from job",
		slog.String("client_id", client.id),
		slog.String("job_id", jobID))
}

// forwardEvent delivers one progress event to one subscriber. Runs on the
// progress bus goroutine, so the send never blocks; a full client buffer
// drops the event.
func (h *Hub) forwardEvent(client *Client, ev generation.ProgressEvent) {
	msg := events.WebSocketMessage{
		BaseMessage: events.BaseMessage{
			Type:      messageTypeForKind(ev.Kind),
			Timestamp: ev.Timestamp,
			TraceID:   client.traceID,
		},
		Data: snapshotForEvent(ev),
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Error marshaling job event",
			slog.String("job_id", ev.JobID),
			slog.String("error", err.Error()))
		return
	}

	select {
	case client.send <- jsonData:
		h.mu.Lock()
		h.messagesSent++
		h.mu.Unlock()
	default:
		GetMetrics().RecordDroppedMessage()
		if otelMetrics := GetOTelMetrics(); otelMetrics != nil {
			otelMetrics.RecordDroppedMessage(context.Background(), string(msg.Type), "buffer_full")
		}
		h.logger.Warn("Dropped job event - client buffer full",
			slog.String("client_id", client.id),
			slog.String("job_id", ev.JobID))
	}
}

// messageTypeForKind maps a progress event kind to the wire message type.
func messageTypeForKind(kind generation.EventKind) events.MessageType {
	switch kind {
	case generation.EventComplete:
		return events.MessageTypeJobComplete
	case generation.EventError:
		return events.MessageTypeJobError
	default:
		return events.MessageTypeJobProgress
	}
}

// snapshotForEvent flattens a progress event into the wire payload.
func snapshotForEvent(ev generation.ProgressEvent) events.JobSnapshot {
	progress := make(map[string]string, len(ev.Progress))
	for stage, status := range ev.Progress {
		progress[string(stage)] = string(status)
	}

	snap := events.JobSnapshot{
		JobID:    ev.JobID,
		Status:   string(ev.Status),
		Progress: progress,
		Error:    ev.Error,
	}
	if ev.Result != nil {
		snap.Result = ev.Result
	}
	return snap
}

// sendError delivers an error message to a single client.
func (h *Hub) sendError(client *Client, code, message, jobID string) {
	msg := events.WebSocketMessage{
		BaseMessage: events.BaseMessage{
			Type:      events.MessageTypeError,
			Timestamp: time.Now(),
			TraceID:   client.traceID,
		},
		Data: events.ErrorData{
			Code:    code,
			Message: message,
			JobID:   jobID,
		},
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Error marshaling error message", slog.String("error", err.Error()))
		return
	}

	select {
	case client.send <- jsonData:
	default:
		h.logger.Warn("Failed to send error message - client buffer full",
			slog.String("client_id", client.id))
	}
}

// Broadcast sends a typed message to all connected clients. Used for
// job:update notifications so list views refresh.
func (h *Hub) Broadcast(messageType string, data interface{}) {
	msg := events.WebSocketMessage{
		BaseMessage: events.BaseMessage{
			Type:      events.MessageType(messageType),
			Timestamp: time.Now(),
		},
		Data: data,
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Error marshaling broadcast message",
			slog.String("error", err.Error()),
			slog.String("message_type", messageType))
		return
	}

	select {
	case h.broadcast <- jsonData:
	case <-h.quit:
		// Hub stopped; nobody left to notify.
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriptionCount returns the number of active job subscriptions across
// all connected clients.
func (h *Hub) SubscriptionCount() int {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	total := 0
	for _, client := range clients {
		client.subMu.Lock()
		total += len(client.subs)
		client.subMu.Unlock()
	}
	return total
}

// Stop gracefully stops the hub
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	// Signal goroutines to stop
	close(h.quit)
	close(h.metricsQuit)

	// Close all client connections
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		client.releaseSubscriptions()
		close(client.send)
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// reportMetrics periodically reports hub metrics
func (h *Hub) reportMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.metricsQuit:
			h.logger.Info("Metrics reporting shutting down")
			return

		case <-ticker.C:
			h.mu.RLock()
			activeClients := len(h.clients)
			h.mu.RUnlock()

			metrics := GetMetrics()
			metrics.RecordQueueDepth(int64(len(h.broadcast)))

			// Log current metrics
			h.logger.Info("WebSocket hub metrics",
				slog.Int("active_clients", activeClients),
				slog.Int("active_subscriptions", h.SubscriptionCount()),
				slog.Int64("total_connections", h.totalConnections),
				slog.Int64("messages_sent", h.messagesSent),
				slog.Int64("messages_received", h.messagesReceived),
				slog.Int("broadcast_queue", len(h.broadcast)),
			)
		}
	}
}

// GetHubMetrics returns current hub metrics
func (h *Hub) GetHubMetrics() map[string]interface{} {
	subscriptions := h.SubscriptionCount()

	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]interface{}{
		"active_clients":       len(h.clients),
		"total_connections":    h.totalConnections,
		"messages_sent":        h.messagesSent,
		"messages_received":    h.messagesReceived,
		"active_subscriptions": subscriptions,
	}
}
