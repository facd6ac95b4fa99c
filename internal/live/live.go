// Package live pushes dashboard views over a websocket as selectors change.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/dvloznov/sales-dashboard/internal/dashboard"
	"github.com/dvloznov/sales-dashboard/internal/domain"
	"github.com/dvloznov/sales-dashboard/internal/logger"
	"github.com/dvloznov/sales-dashboard/internal/selection"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 8
)

// Message types.
const (
	TypeSelect = "select"
	TypePing   = "ping"
	TypePong   = "pong"
	TypeView   = "view"
	TypeError  = "error"
)

// Inbound is a message from the browser. For "select", a missing or null
// year leaves the default in effect and 0 clears it.
type Inbound struct {
	Type   string `json:"type"`
	Client string `json:"client,omitempty"`
	Year   *int   `json:"year,omitempty"`
	Course string `json:"course,omitempty"`
}

// Outbound is a message to the browser.
type Outbound struct {
	Type  string          `json:"type"`
	View  *dashboard.View `json:"view,omitempty"`
	Code  string          `json:"code,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Renderer renders the dashboard for one selector state.
type Renderer interface {
	Render(ctx context.Context, req selection.Request) (*dashboard.View, error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades connections and serves one render per select message.
type Handler struct {
	renderer Renderer
	log      zerolog.Logger

	mu      sync.Mutex
	clients map[string]*client
}

type client struct {
	id     string
	socket *websocket.Conn
	send   chan []byte
}

// NewHandler creates a websocket handler.
func NewHandler(renderer Renderer, log zerolog.Logger) *Handler {
	return &Handler{
		renderer: renderer,
		log:      log,
		clients:  make(map[string]*client),
	}
}

// ServeHTTP handles GET /ws. The initial view is sent as soon as the
// connection opens.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	socket, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &client{id: uuid.New().String(), socket: socket, send: make(chan []byte, sendBuffer)}
	h.register(c)

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), h.log.With().Str("conn_id", c.id).Logger()))
	go h.writePump(c)
	h.respond(ctx, c, selection.Request{})
	go h.readPump(ctx, cancel, c)
}

// Connections returns the number of open connections.
func (h *Handler) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Handler) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.log.Debug().Str("conn_id", c.id).Msg("Websocket connected")
}

func (h *Handler) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	h.mu.Unlock()
	h.log.Debug().Str("conn_id", c.id).Msg("Websocket disconnected")
}

// readPump handles messages in order, so the last selection sent is the last
// view received.
func (h *Handler) readPump(ctx context.Context, cancel context.CancelFunc, c *client) {
	defer func() {
		cancel()
		h.unregister(c)
		c.socket.Close()
	}()

	c.socket.SetReadLimit(maxMessageSize)
	c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn().Err(err).Str("conn_id", c.id).Msg("Websocket closed unexpectedly")
			}
			return
		}

		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			h.send(c, Outbound{Type: TypeError, Code: "bad_message", Error: "Invalid message"})
			continue
		}

		switch msg.Type {
		case TypePing:
			h.send(c, Outbound{Type: TypePong})
		case TypeSelect:
			if msg.Year != nil && *msg.Year < 0 {
				h.send(c, Outbound{Type: TypeError, Code: "bad_message", Error: "Invalid year"})
				continue
			}
			h.respond(ctx, c, selection.Request{Client: msg.Client, Year: msg.Year, Course: msg.Course})
		default:
			h.send(c, Outbound{Type: TypeError, Code: "bad_message", Error: "Unknown message type"})
		}
	}
}

func (h *Handler) respond(ctx context.Context, c *client, req selection.Request) {
	view, err := h.renderer.Render(ctx, req)
	if err != nil {
		h.send(c, Outbound{Type: TypeError, Code: domain.ErrorCode(err), Error: err.Error()})
		return
	}
	h.send(c, Outbound{Type: TypeView, View: view})
}

func (h *Handler) send(c *client, msg Outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode websocket message")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		h.log.Warn().Str("conn_id", c.id).Msg("Websocket send buffer full, dropping message")
	}
}

func (h *Handler) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
