package websocket

import (
	"time"

	"github.com/coder/websocket"
)

// Message types sent to the browser.
const (
	TypeUpdate = "update"
	TypeReload = "reload"
	TypeError  = "error"
)

// Client represents a WebSocket client connection
type Client struct {
	conn         *websocket.Conn
	send         chan []byte
	remote       string
	lastActivity time.Time
}

// UpdateMessage is pushed to every client after the live template commits.
// Content holds the outer HTML of the template container.
type UpdateMessage struct {
	Type      string    `json:"type"`
	Target    string    `json:"target,omitempty"`
	Content   string    `json:"content,omitempty"`
	Reused    []string  `json:"reused,omitempty"`
	Fresh     []string  `json:"fresh,omitempty"`
	Dropped   []string  `json:"dropped,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is an event sent by the browser for a mounted portal.
type ClientMessage struct {
	Type   string `json:"type"`
	Target string `json:"target"`
	Event  string `json:"event"`
}
