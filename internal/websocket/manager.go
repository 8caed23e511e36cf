// Package websocket keeps the open preview pages in sync with the server:
// tab clicks arrive as client messages, selection changes and reloads go out
// as broadcasts.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/web-padawan/demosnippet/internal/logging"
)

// DefaultPingInterval is how often a Manager pings each client. A client
// that misses a pong is disconnected; idle clients otherwise stay open.
const DefaultPingInterval = 54 * time.Second

// MessageHandler is called for every well-formed message a client sends.
type MessageHandler func(ctx context.Context, client *Client, msg ClientMessage)

// OriginValidator interface for WebSocket origin validation
type OriginValidator interface {
	IsAllowedOrigin(origin string) bool
}

// Manager handles WebSocket connection management and broadcasting.
//
// A central hub goroutine owns registration, unregistration and broadcast;
// each client has a read pump and a write pump. The clients map is guarded
// by clientsMutex and the channels stay open until Shutdown.
type Manager struct {
	clients      map[*websocket.Conn]*Client
	clientsMutex sync.RWMutex

	broadcast  chan []byte
	register   chan *Client
	unregister chan *websocket.Conn

	originValidator OriginValidator
	newRateLimiter  func() RateLimiter
	handler         MessageHandler
	pingInterval    time.Duration
	logger          logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	isShutdown   bool
	shutdownMu   sync.RWMutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithMessageHandler sets the handler for client messages.
func WithMessageHandler(h MessageHandler) Option {
	return func(m *Manager) { m.handler = h }
}

// WithRateLimiter sets the factory for per-client message rate limiters.
func WithRateLimiter(factory func() RateLimiter) Option {
	return func(m *Manager) { m.newRateLimiter = factory }
}

// WithPingInterval sets how often clients are pinged.
func WithPingInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.pingInterval = d
		}
	}
}

// NewManager creates a manager and starts its hub goroutine.
//
// Panics if originValidator is nil.
func NewManager(originValidator OriginValidator, logger logging.Logger, opts ...Option) *Manager {
	if originValidator == nil {
		panic("websocket.Manager: originValidator cannot be nil")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	manager := &Manager{
		clients:         make(map[*websocket.Conn]*Client),
		broadcast:       make(chan []byte, 256),
		register:        make(chan *Client, 32),
		unregister:      make(chan *websocket.Conn, 32),
		originValidator: originValidator,
		newRateLimiter:  func() RateLimiter { return NewMessageLimiter(20, time.Second) },
		pingInterval:    DefaultPingInterval,
		logger:          logger.WithComponent("websocket"),
		ctx:             ctx,
		cancel:          cancel,
	}
	for _, opt := range opts {
		opt(manager)
	}

	go manager.runHub()

	return manager
}

// HandleWebSocket upgrades the request and serves the client until it
// disconnects.
//
// Security Responses:
// - 403 Forbidden: origin not allowed
// - 503 Service Unavailable: manager shut down
func (wm *Manager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if wm.IsShutdown() {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	origin := r.Header.Get("Origin")
	if origin != "" && !wm.originValidator.IsAllowedOrigin(origin) {
		wm.logger.Warn(r.Context(), nil, "WebSocket connection rejected: invalid origin",
			"origin", origin, "remote_addr", r.RemoteAddr)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origins are validated above.
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		wm.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote_addr", r.RemoteAddr)
		return
	}

	client := &Client{
		ID:           uuid.NewString(),
		conn:         conn,
		send:         make(chan []byte, 256),
		lastActivity: time.Now(),
		rateLimiter:  wm.newRateLimiter(),
	}

	select {
	case wm.register <- client:
	case <-wm.ctx.Done():
		_ = conn.Close(websocket.StatusServiceRestart, "Server shutting down")
		return
	default:
		wm.logger.Warn(r.Context(), nil, "WebSocket registration channel full, rejecting client")
		_ = conn.Close(websocket.StatusTryAgainLater, "Server busy")
		return
	}

	wm.handleClient(client)
}

// runHub manages client connections and broadcasting
func (wm *Manager) runHub() {
	for {
		select {
		case client := <-wm.register:
			wm.registerClient(client)

		case conn := <-wm.unregister:
			wm.unregisterClient(conn)

		case message := <-wm.broadcast:
			wm.broadcastToClients(message)

		case <-wm.ctx.Done():
			return
		}
	}
}

func (wm *Manager) registerClient(client *Client) {
	wm.clientsMutex.Lock()
	wm.clients[client.conn] = client
	total := len(wm.clients)
	wm.clientsMutex.Unlock()

	wm.logger.Info(wm.ctx, "WebSocket client connected", "client", client.ID, "clients", total)
}

func (wm *Manager) unregisterClient(conn *websocket.Conn) {
	wm.clientsMutex.Lock()
	client, exists := wm.clients[conn]
	if exists {
		delete(wm.clients, conn)
		close(client.send)
	}
	total := len(wm.clients)
	wm.clientsMutex.Unlock()

	if exists {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		wm.logger.Info(wm.ctx, "WebSocket client disconnected", "client", client.ID, "clients", total)
	}
}

// broadcastToClients sends a message to all connected clients
func (wm *Manager) broadcastToClients(message []byte) {
	wm.clientsMutex.RLock()
	clients := make([]*Client, 0, len(wm.clients))
	for _, client := range wm.clients {
		clients = append(clients, client)
	}
	wm.clientsMutex.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			// Client send buffer is full, drop it.
			go func(c *Client) {
				select {
				case wm.unregister <- c.conn:
				case <-wm.ctx.Done():
				}
			}(client)
		}
	}
}

// handleClient blocks until the client disconnects.
func (wm *Manager) handleClient(client *Client) {
	defer func() {
		select {
		case wm.unregister <- client.conn:
		case <-wm.ctx.Done():
		}
	}()

	go wm.writeToClient(client)

	wm.readFromClient(client)
}

func (wm *Manager) readFromClient(client *Client) {
	// Reads have no idle deadline. Liveness comes from the write pump's
	// pings, which close the connection when a pong does not arrive.
	for {
		_, data, err := client.conn.Read(wm.ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure &&
				websocket.CloseStatus(err) != websocket.StatusGoingAway {
				wm.logger.Debug(wm.ctx, "WebSocket read ended", "client", client.ID, "error", err.Error())
			}
			return
		}

		client.lastActivity = time.Now()

		if client.rateLimiter != nil && !client.rateLimiter.Allow() {
			wm.logger.Warn(wm.ctx, nil, "WebSocket message rate limit exceeded", "client", client.ID)
			_ = client.conn.Close(websocket.StatusPolicyViolation, "rate limit exceeded")
			return
		}

		wm.processClientMessage(client, data)
	}
}

func (wm *Manager) writeToClient(client *Client) {
	ticker := time.NewTicker(wm.pingInterval)
	defer ticker.Stop()

	pingTimeout := 10 * time.Second
	if wm.pingInterval < pingTimeout {
		pingTimeout = wm.pingInterval
	}

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}

			ctx, cancel := context.WithTimeout(wm.ctx, 10*time.Second)
			err := client.conn.Write(ctx, websocket.MessageText, message)
			cancel()

			if err != nil {
				wm.logger.Debug(wm.ctx, "WebSocket write failed", "client", client.ID, "error", err.Error())
				_ = client.conn.CloseNow()
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(wm.ctx, pingTimeout)
			err := client.conn.Ping(ctx)
			cancel()

			if err != nil {
				// Unblocks the read pump, which unregisters the client.
				wm.logger.Debug(wm.ctx, "WebSocket ping failed", "client", client.ID, "error", err.Error())
				_ = client.conn.CloseNow()
				return
			}

		case <-wm.ctx.Done():
			return
		}
	}
}

func (wm *Manager) processClientMessage(client *Client, data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		wm.logger.Warn(wm.ctx, err, "Ignoring malformed WebSocket message", "client", client.ID, "bytes", len(data))
		return
	}

	if wm.handler != nil {
		wm.handler(wm.ctx, client, msg)
	}
}

// BroadcastMessage sends a message to all connected WebSocket clients
func (wm *Manager) BroadcastMessage(message UpdateMessage) {
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}

	data, err := json.Marshal(message)
	if err != nil {
		wm.logger.Error(wm.ctx, err, "Failed to marshal broadcast message")
		return
	}

	if wm.IsShutdown() {
		return
	}

	select {
	case wm.broadcast <- data:
	case <-wm.ctx.Done():
	default:
		wm.logger.Warn(wm.ctx, nil, "Broadcast channel full, dropping message", "type", message.Type)
	}
}

// GetConnectedClients returns the number of connected clients
func (wm *Manager) GetConnectedClients() int {
	wm.clientsMutex.RLock()
	defer wm.clientsMutex.RUnlock()
	return len(wm.clients)
}

// Shutdown closes every client connection and stops the hub.
func (wm *Manager) Shutdown(ctx context.Context) error {
	wm.shutdownOnce.Do(func() {
		wm.shutdownMu.Lock()
		wm.isShutdown = true
		wm.shutdownMu.Unlock()

		wm.cancel()

		wm.clientsMutex.Lock()
		for conn := range wm.clients {
			_ = conn.Close(websocket.StatusGoingAway, "Server shutdown")
		}
		wm.clients = make(map[*websocket.Conn]*Client)
		wm.clientsMutex.Unlock()

		wm.logger.Info(ctx, "WebSocket manager shut down")
	})

	return nil
}

// IsShutdown returns whether the WebSocket manager has been shut down
func (wm *Manager) IsShutdown() bool {
	wm.shutdownMu.RLock()
	defer wm.shutdownMu.RUnlock()
	return wm.isShutdown
}
