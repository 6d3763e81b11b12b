package wire

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// OutboundSink delivers an encoded ack or timing message to whatever
// transport the controller is listening on. Send must not block the
// caller for long: C6 never throttles the core, so a full sink drops the
// message rather than backing up the pipeline.
type OutboundSink interface {
	Send(data []byte) error
}

// ChannelSink is an in-process OutboundSink backed by a buffered Go
// channel, for tests and for embedding the core in a process that
// already owns its own transport. Send never blocks: a full channel
// drops the message silently, without logging and without returning
// an error.
type ChannelSink struct {
	out chan []byte
}

// NewChannelSink creates a ChannelSink with the given buffer depth.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{out: make(chan []byte, buffer)}
}

// Send enqueues data, dropping it if the channel is full.
func (s *ChannelSink) Send(data []byte) error {
	select {
	case s.out <- data:
		return nil
	default:
		return nil
	}
}

// C returns the channel messages are delivered on, for a test or an
// embedding process to drain.
func (s *ChannelSink) C() <-chan []byte {
	return s.out
}

// wsClient is one connected websocket subscriber.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// WebSocketHub broadcasts ack/timing messages to every connected
// websocket client, adapted from the teacher pack's web.Hub: the same
// register/unregister/broadcast channel trio and non-blocking,
// drop-on-full delivery to slow clients.
type WebSocketHub struct {
	mu         sync.RWMutex
	clients    map[*wsClient]bool
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
}

// NewWebSocketHub creates a hub. Call Run in its own goroutine before
// registering clients or sending.
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
	}
}

// Run is the hub's event loop. It never returns: callers stop it by
// abandoning it at process shutdown, matching the teacher's fire-and
// forget hub lifecycle.
func (h *WebSocketHub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					go func(c *wsClient) { h.unregister <- c }(c)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Send implements OutboundSink by queuing msg for broadcast; a full
// internal buffer drops the message rather than blocking the caller.
func (h *WebSocketHub) Send(data []byte) error {
	select {
	case h.broadcast <- data:
	default:
	}
	return nil
}

// ClientCount reports how many websocket clients are currently attached.
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Attach registers conn as a subscriber and starts pumping messages to
// it until the connection errors or is closed.
func (h *WebSocketHub) Attach(conn *websocket.Conn) {
	c := &wsClient{conn: conn, send: make(chan []byte, 16)}
	h.register <- c
	go h.pumpAndUnregister(c)
}

// upgrader matches the teacher's web.Server upgrader: local/operator
// tooling only, so any origin is accepted.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

// ServeHTTP upgrades the request to a websocket connection and attaches
// it to the hub as a subscriber, the same upgrade-then-attach shape the
// teacher's handleWebSocket uses. It lets a driver mount the hub
// directly at an http.ServeMux pattern instead of hand-rolling the
// upgrade dance at the call site.
func (h *WebSocketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	h.Attach(conn)
}

func (h *WebSocketHub) pumpAndUnregister(c *wsClient) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			return
		}
	}
}
