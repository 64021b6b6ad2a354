// internal/handlers/hub.go
package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/kimlj/Multiwordle-sub000/internal/game"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	sendBuffer   = 64
	writeTimeout = 3 * time.Second
)

// Client is one websocket connection's outbound side.
type Client struct {
	ID      string
	Token   string
	send    chan []byte
	done    chan struct{}
	limiter *rate.Limiter

	closeOnce   sync.Once
	closeCode   websocket.StatusCode
	closeReason string
}

func newClient(id, token string, limiter *rate.Limiter) *Client {
	return &Client{
		ID:      id,
		Token:   token,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		limiter: limiter,
	}
}

// close asks the write pump to close the socket with code. Only the first call counts.
func (c *Client) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.done)
	})
}

// enqueue hands data to the write pump without blocking. It reports false when the
// client is gone or its buffer is full.
func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Hub routes room events to connections. It implements game.Broadcaster and
// session.Evictor.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  logrus.FieldLogger
}

// NewHub creates an empty hub.
func NewHub(logger logrus.FieldLogger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{clients: make(map[string]*Client), logger: logger}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.ID] == c {
		delete(h.clients, c.ID)
	}
}

func (h *Hub) client(connID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	return c, ok
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send marshals ev and queues it for connID. It is called with a room lock held and
// never blocks; a client that cannot keep up is disconnected.
func (h *Hub) Send(connID string, ev game.Event) {
	c, ok := h.client(connID)
	if !ok {
		return
	}
	data, err := game.EncodeEvent(ev)
	if err != nil {
		h.logger.Errorf("failed to marshal event %s: %v", ev.Type, err)
		return
	}
	if !c.enqueue(data) {
		select {
		case <-c.done:
		default:
			h.logger.WithField("conn", connID).Warnf("send buffer full, dropping slow client")
			c.close(websocket.StatusPolicyViolation, "too slow")
		}
	}
}

// reply queues a direct response (ack or pong) for c.
func (h *Hub) reply(c *Client, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Errorf("failed to marshal reply: %v", err)
		return
	}
	if !c.enqueue(data) {
		h.logger.WithField("conn", c.ID).Debug("reply dropped")
	}
}

// Evict closes connID because its player continued on another connection.
func (h *Hub) Evict(connID string) {
	c, ok := h.client(connID)
	if !ok {
		return
	}
	h.Send(connID, game.Event{Type: eventSessionReplaced})
	c.close(SessionReplacedError, "session continued on another connection")
}

// CloseAll closes every connection, used at shutdown.
func (h *Hub) CloseAll(reason string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.close(ServerShutdownError, reason)
	}
}

// writePump drains c.send to the socket until the client is closed or ctx ends.
func (h *Hub) writePump(ctx context.Context, ws *websocket.Conn, c *Client) {
	defer func() {
		code, reason := websocket.StatusGoingAway, "connection closing"
		select {
		case <-c.done:
			code, reason = c.closeCode, c.closeReason
		default:
		}
		_ = ws.Close(code, reason)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			// flush what is already queued, such as the eviction notice
			for {
				select {
				case data := <-c.send:
					if !h.write(ws, c, data) {
						return
					}
				default:
					return
				}
			}
		case data := <-c.send:
			if !h.write(ws, c, data) {
				return
			}
		}
	}
}

func (h *Hub) write(ws *websocket.Conn, c *Client, data []byte) bool {
	writeCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	err := ws.Write(writeCtx, websocket.MessageText, data)
	cancel()
	if err != nil {
		h.logger.WithField("conn", c.ID).Warnf("failed to write to websocket: %v", err)
		return false
	}
	return true
}
