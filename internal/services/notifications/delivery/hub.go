package delivery

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

// connectedFrame greets every new connection.
var connectedFrame = []byte(`{"type":"connected","data":{"status":"connected"}}`)

// ErrRecipientUnavailable reports that no live connection accepted a message.
var ErrRecipientUnavailable = errors.New("recipient has no live connection")

// Message is one frame written to push clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte

	mu     sync.Mutex
	closed bool
}

// offer queues frame without blocking. full is true when the client is
// alive but its buffer has no room.
func (c *client) offer(frame []byte) (sent bool, full bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, false
	}
	select {
	case c.send <- frame:
		return true, false
	default:
		return false, true
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub tracks WebSocket connections by user id.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

// NewHub builds a hub. A nil checkOrigin accepts same-origin requests only.
func NewHub(checkOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		clients: make(map[string]map[*client]struct{}),
	}
}

// Serve upgrades the request and streams messages for userID until the
// client disconnects.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade websocket: %w", err)
	}
	c := &client{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
	// The buffer is empty until register publishes c.
	c.send <- connectedFrame
	h.register(c)

	go h.writePump(c)
	h.readPump(c)
	return nil
}

// Connected reports whether userID has at least one live connection.
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[strings.TrimSpace(userID)]) > 0
}

// ConnectionCount returns the number of live connections across users.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, conns := range h.clients {
		total += len(conns)
	}
	return total
}

// SendTo queues msg on every connection of userID and returns how many
// accepted it.
func (h *Hub) SendTo(userID string, msg Message) (int, error) {
	frame, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("encode push message: %w", err)
	}
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients[strings.TrimSpace(userID)]))
	for c := range h.clients[strings.TrimSpace(userID)] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	sent := h.enqueue(targets, frame)
	if sent == 0 {
		return 0, ErrRecipientUnavailable
	}
	return sent, nil
}

// Broadcast queues msg on every live connection and returns how many
// accepted it.
func (h *Hub) Broadcast(msg Message) (int, error) {
	frame, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("encode push message: %w", err)
	}
	h.mu.RLock()
	targets := make([]*client, 0)
	for _, conns := range h.clients {
		for c := range conns {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	return h.enqueue(targets, frame), nil
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.clients
	h.clients = make(map[string]map[*client]struct{})
	h.mu.Unlock()
	for _, conns := range all {
		for c := range conns {
			c.close()
		}
	}
}

// enqueue drops clients whose buffers are full.
func (h *Hub) enqueue(targets []*client, frame []byte) int {
	sent := 0
	for _, c := range targets {
		ok, full := c.offer(frame)
		if ok {
			sent++
			continue
		}
		if full {
			log.Printf("push client for user %s is too slow, disconnecting", c.userID)
			h.unregister(c)
		}
	}
	return sent
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.clients[c.userID]
	if !ok {
		conns = make(map[*client]struct{})
		h.clients[c.userID] = conns
	}
	conns[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if conns, ok := h.clients[c.userID]; ok {
		if _, present := conns[c]; present {
			delete(conns, c)
			if len(conns) == 0 {
				delete(h.clients, c.userID)
			}
		}
	}
	h.mu.Unlock()
	c.close()
}

// readPump discards client frames; it exists to observe pongs and closes.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("push read for user %s: %v", c.userID, err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
