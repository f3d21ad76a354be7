package ws

import (
	"net/http"
	"time"

	"github.com/GriffinCanCode/modhost/internal/domain/registry"
	"github.com/GriffinCanCode/modhost/internal/infrastructure/monitoring"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait   = 10 * time.Second
	sendBuffer  = 32
	maxInbound  = 4096
	pingTimeout = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS middleware governs origins
	},
}

// Subscriber is the catalog event source
type Subscriber interface {
	Subscribe(fn func(registry.Event)) func()
}

// Message is one frame exchanged with a client
type Message struct {
	Type      string      `json:"type"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Handler manages WebSocket connections
type Handler struct {
	events  Subscriber
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(events Subscriber, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		events:  events,
		metrics: metrics,
		logger:  logger,
	}
}

// HandleConnection upgrades the request and streams catalog events
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	out := make(chan Message, sendBuffer)
	done := make(chan struct{}) // closed by the reader
	quit := make(chan struct{}) // closed by the writer
	defer close(quit)

	unsubscribe := h.events.Subscribe(func(ev registry.Event) {
		select {
		case out <- Message{Type: string(ev.Type), Data: ev.Record, Timestamp: time.Now().Unix()}:
		case <-done:
		case <-quit:
		default:
			h.logger.Warn("Dropping catalog event for slow client", zap.String("type", string(ev.Type)))
		}
	})
	defer unsubscribe()

	// Reader: answers pings and notices disconnects
	go func() {
		defer close(done)
		conn.SetReadLimit(maxInbound)
		for {
			_ = conn.SetReadDeadline(time.Now().Add(pingTimeout))
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			switch msg.Type {
			case "ping":
				h.enqueue(out, quit, Message{Type: "pong"})
			default:
				h.enqueue(out, quit, Message{Type: "error", Message: "unknown message type"})
			}
		}
	}()

	if err := h.send(conn, Message{Type: "system", Message: "Connected to module catalog stream"}); err != nil {
		return
	}

	for {
		select {
		case msg := <-out:
			if err := h.send(conn, msg); err != nil {
				h.logger.Debug("WebSocket write failed", zap.Error(err))
				return
			}
		case <-done:
			return
		}
	}
}

// enqueue blocks until the writer takes msg or has exited
func (h *Handler) enqueue(out chan<- Message, quit <-chan struct{}, msg Message) {
	select {
	case out <- msg:
	case <-quit:
	}
}

func (h *Handler) send(conn *websocket.Conn, msg Message) error {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}
