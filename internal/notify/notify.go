// Package notify is the optional live push channel for a running model: a
// WebSocket broadcaster that mirrors cycle-completion and per-aspect result
// events to any subscribed UI, modeled on the teacher's
// internal/network WebSocketServer/WebSocketConn broadcast pattern. It is a
// pure observer — nothing in internal/engine depends on a Broadcaster being
// started, and a nil or unstarted Broadcaster is always a safe no-op.
package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// EventType distinguishes the three kinds of pushed events.
type EventType string

const (
	// EventCycleComplete is pushed once per cycle, after every output
	// aspect's result(t) has been computed for that cycle.
	EventCycleComplete EventType = "cycle_complete"
	// EventResult carries a single aspect's result(t) value.
	EventResult EventType = "result"
	// EventIssue carries a diagnostics issue recorded during a cycle.
	EventIssue EventType = "issue"
)

// Event is the JSON payload pushed to every subscriber. Display carries the
// values.Format rendering so a UI never has to reimplement the sentinel
// decoding rules itself.
type Event struct {
	Type       EventType `json:"type"`
	Cycle      int       `json:"cycle"`
	AspectID   string    `json:"aspect_id,omitempty"`
	AspectName string    `json:"aspect_name,omitempty"`
	Value      float64   `json:"value,omitempty"`
	Display    string    `json:"display,omitempty"`
	Message    string    `json:"message,omitempty"`
}

type client struct {
	id     string
	conn   *websocket.Conn
	mu     sync.Mutex
	closed bool
}

func (c *client) send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("notify: client closed")
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.closed = true
		return err
	}
	return nil
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.conn.Close()
}

// Broadcaster accepts WebSocket subscribers at a single endpoint and fans
// every published Event out to all of them. The zero value is not usable;
// construct with New.
type Broadcaster struct {
	addr     string
	upgrader websocket.Upgrader
	server   *http.Server

	mu      sync.RWMutex
	clients map[string]*client
	nextID  uint64
}

// New builds a Broadcaster listening at addr (e.g. "localhost:8765"). It
// does not start listening until Start is called.
func New(addr string) *Broadcaster {
	return &Broadcaster{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
}

// Start begins listening for subscriber connections on /events in a
// background goroutine. It returns once the listener is bound, so a caller
// can rely on Stop being safe to call immediately after.
func (b *Broadcaster) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", b.handleSubscribe)
	b.server = &http.Server{Addr: b.addr, Handler: mux}

	ln, err := newListener(b.addr)
	if err != nil {
		return errors.Wrap(err, "notify: listen")
	}
	go b.server.Serve(ln)
	return nil
}

// Stop gracefully shuts the broadcaster down, closing every subscriber.
func (b *Broadcaster) Stop(ctx context.Context) error {
	b.mu.Lock()
	for id, c := range b.clients {
		c.close()
		delete(b.clients, id)
	}
	b.mu.Unlock()

	if b.server == nil {
		return nil
	}
	if err := b.server.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "notify: shutdown")
	}
	return nil
}

func (b *Broadcaster) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	b.mu.Lock()
	b.nextID++
	id := clientID(b.nextID)
	c := &client{id: id, conn: conn}
	b.clients[id] = c
	b.mu.Unlock()

	// Subscribers are write-only from the broadcaster's perspective; the
	// read loop only exists to notice a closed connection promptly.
	go func() {
		defer b.drop(id)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (b *Broadcaster) drop(id string) {
	b.mu.Lock()
	c, ok := b.clients[id]
	if ok {
		delete(b.clients, id)
	}
	b.mu.Unlock()
	if ok {
		c.close()
	}
}

// Publish encodes event as JSON and sends it to every currently connected
// subscriber, dropping any client whose connection has failed. A nil
// Broadcaster is a no-op, so callers can wire Publish unconditionally.
func (b *Broadcaster) Publish(event Event) error {
	if b == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "notify: encode event")
	}

	b.mu.RLock()
	targets := make([]*client, 0, len(b.clients))
	for _, c := range b.clients {
		targets = append(targets, c)
	}
	b.mu.RUnlock()

	var lastErr error
	for _, c := range targets {
		if err := c.send(payload); err != nil {
			lastErr = err
			b.drop(c.id)
		}
	}
	return lastErr
}

// ClientCount reports how many subscribers are currently connected, mostly
// useful for tests and health checks. A nil Broadcaster reports zero.
func (b *Broadcaster) ClientCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
