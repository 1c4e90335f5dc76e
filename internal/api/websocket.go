package api

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/mescon/timr/internal/domain"
	"github.com/mescon/timr/internal/eventbus"
	"github.com/mescon/timr/internal/logger"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// newWebSocketUpgrader returns an upgrader that validates the Origin header against
// the comma separated corsOrigins, the same way the CORS middleware does.
func newWebSocketUpgrader(corsOrigins string) websocket.Upgrader {
	allowedOrigins := make(map[string]bool)
	if corsOrigins != "" && corsOrigins != "*" {
		for _, origin := range strings.Split(corsOrigins, ",") {
			allowedOrigins[strings.TrimSpace(origin)] = true
		}
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if corsOrigins == "*" {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true // No origin header = same-origin request
			}
			if corsOrigins == "" {
				u, err := url.Parse(origin)
				return err == nil && u.Host == r.Host
			}
			return allowedOrigins[origin]
		},
	}
}

// WebSocketHub streams every timer event and log entry to connected clients as
// {"type": "event"|"log", "data": ...} messages.
type WebSocketHub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan any
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.Mutex
	upgrader   websocket.Upgrader
	eventBus   *eventbus.EventBus
	logCh      chan logger.LogEntry
}

func NewWebSocketHub(eventBus *eventbus.EventBus, corsOrigins string) *WebSocketHub {
	h := &WebSocketHub{
		broadcast:  make(chan any),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		clients:    make(map[*websocket.Conn]bool),
		upgrader:   newWebSocketUpgrader(corsOrigins),
		eventBus:   eventBus,
	}

	// One subscription for every type keeps the events of a timer in order
	if eventBus != nil {
		eventBus.SubscribeAll(func(e domain.Event) {
			h.send(gin.H{"type": "event", "data": e})
		})
	}

	h.logCh = logger.Subscribe()
	go func() {
		for entry := range h.logCh {
			h.send(gin.H{"type": "log", "data": entry})
		}
	}()

	go h.run()
	return h
}

// send queues msg for broadcast unless the hub is stopped.
func (h *WebSocketHub) send(msg any) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

func (h *WebSocketHub) registerClient(ws *websocket.Conn) bool {
	select {
	case h.register <- ws:
		return true
	case <-h.done:
		return false
	}
}

func (h *WebSocketHub) unregisterClient(ws *websocket.Conn) {
	select {
	case h.unregister <- ws:
	case <-h.done:
	}
}

func (h *WebSocketHub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				_ = client.Close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			logger.Debugf("WebSocket client connected (Total: %d)", len(h.clients))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				if err := client.Close(); err != nil {
					logger.Debugf("WebSocket close error: %v", err)
				}
				logger.Debugf("WebSocket client disconnected")
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if err := client.WriteJSON(message); err != nil {
					logger.Debugf("WebSocket write error: %v", err)
					if closeErr := client.Close(); closeErr != nil {
						logger.Debugf("WebSocket close error during broadcast: %v", closeErr)
					}
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *WebSocketHub) HandleConnection(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Errorf("Failed to upgrade to WebSocket: %v", err)
		return
	}
	if !h.registerClient(ws) {
		_ = ws.Close()
		return
	}

	// Hold the mutex so the greeting never interleaves with a broadcast
	h.mu.Lock()
	if err := ws.WriteJSON(gin.H{"type": "ping", "timestamp": time.Now()}); err != nil {
		logger.Debugf("Failed to send initial ping: %v", err)
	}
	h.mu.Unlock()

	if err := ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Debugf("Failed to set initial read deadline: %v", err)
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	stopPing := make(chan struct{})
	defer close(stopPing)

	go func() {
		for {
			select {
			case <-h.done:
				return
			case <-stopPing:
				return
			case <-ticker.C:
			}
			h.mu.Lock()
			if !h.clients[ws] {
				h.mu.Unlock()
				return
			}
			err := ws.WriteMessage(websocket.PingMessage, nil)
			h.mu.Unlock()
			if err != nil {
				logger.Debugf("WebSocket ping error: %v", err)
				h.unregisterClient(ws)
				return
			}
		}
	}()

	defer h.unregisterClient(ws)

	// Inbound messages are ignored; reading keeps the pong handler running until
	// the connection closes.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
}

// ClientCount returns the number of connected WebSocket clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Stop disconnects every client and detaches the hub from the log stream. Events
// still delivered by the bus afterwards are discarded.
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		logger.Unsubscribe(h.logCh)
	})
}
