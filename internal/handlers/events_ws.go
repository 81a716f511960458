package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fixithostel/fixit/internal/middleware"
	"github.com/fixithostel/fixit/internal/notify"
)

const (
	eventsWriteWait  = 10 * time.Second
	eventsPongWait   = 60 * time.Second
	eventsPingPeriod = eventsPongWait * 9 / 10
	eventsSendBuffer = 16
)

type eventsClient struct {
	userID string
	staff  bool
	conn   *websocket.Conn
	send   chan []byte
}

// EventsHub streams issue notifications to connected browsers. Students
// receive the events that name them as a recipient; staff receive every event.
// It implements notify.Dispatcher so it can sit alongside the Slack notifier.
type EventsHub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[*eventsClient]struct{}
}

// NewEventsHub creates a new events hub
func NewEventsHub(allowedOrigins []string) *EventsHub {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &EventsHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*eventsClient]struct{}),
	}
}

// SetupRoutes configures the events endpoint. Browsers cannot set headers on
// a WebSocket handshake, so the JWT middleware also accepts ?token=.
func (h *EventsHub) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/events", h.HandleWebSocket)
}

// HandleWebSocket upgrades an authenticated request and registers the client
func (h *EventsHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade events WebSocket: %v", err)
		return
	}

	client := &eventsClient{
		userID: claims.UserID,
		staff:  claims.Role.IsStaff(),
		conn:   conn,
		send:   make(chan []byte, eventsSendBuffer),
	}
	h.register(client)
	log.Printf("Events client connected: user=%s from %s", client.userID, r.RemoteAddr)

	go h.writePump(client)
	h.readPump(client)
}

func (h *EventsHub) register(c *eventsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *EventsHub) unregister(c *eventsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// readPump discards client frames; it exists to observe pongs and closes
func (h *EventsHub) readPump(c *eventsClient) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
		log.Printf("Events client disconnected: user=%s", c.userID)
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(eventsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(eventsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Events WebSocket read error: %v", err)
			}
			return
		}
	}
}

func (h *EventsHub) writePump(c *eventsClient) {
	ticker := time.NewTicker(eventsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Dispatch queues n for every interested client. A client whose buffer is
// full misses the event rather than stalling the caller.
func (h *EventsHub) Dispatch(_ context.Context, n notify.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}

	recipients := make(map[string]bool, len(n.Recipients))
	for _, id := range n.Recipients {
		recipients[id] = true
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.staff && !recipients[c.userID] {
			continue
		}
		select {
		case c.send <- data:
		default:
			log.Printf("Events client %s is slow, dropping %s for issue %s", c.userID, n.Type, n.IssueID)
		}
	}
	return nil
}

// ClientCount returns the number of connected clients
func (h *EventsHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
