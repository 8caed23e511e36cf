package websocket

import (
	"time"

	"github.com/coder/websocket"

	"github.com/web-padawan/demosnippet/internal/layout"
)

// Message types exchanged with the page.
const (
	MessageClick  = "click"
	MessageSelect = "select"
	MessageReload = "reload"
)

// Client represents a WebSocket client connection
type Client struct {
	ID           string
	conn         *websocket.Conn
	send         chan []byte
	lastActivity time.Time
	rateLimiter  RateLimiter
}

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type       string    `json:"type"`
	Target     string    `json:"target,omitempty"`
	Generation uint64    `json:"generation,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ClientMessage is a message received from the browser. Path is set for
// click messages.
type ClientMessage struct {
	Type string          `json:"type"`
	Path []layout.Target `json:"path,omitempty"`
}

// RateLimiter interface for WebSocket rate limiting
type RateLimiter interface {
	Allow() bool
	Reset()
}
