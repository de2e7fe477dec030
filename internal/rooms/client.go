package rooms

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/palafeltre/matchcast/internal/telemetry"
)

const (
	sendBuf       = 256
	writeDeadline = 5 * time.Second
	pongWait      = 30 * time.Second
	pingInterval  = 20 * time.Second
	readLimit     = 4 << 10
)

var (
	errConnClosed = errors.New("connection closed")
	errSendFull   = errors.New("send buffer full")
)

// wsClient adapts one gorilla websocket connection to the Conn interface.
// Send enqueues to a buffered channel drained by writePump; a full buffer is
// reported as a send failure so the registry treats the client as gone.
type wsClient struct {
	id   string
	room string
	reg  *Registry
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

func newWSClient(reg *Registry, room string, conn *websocket.Conn) *wsClient {
	return &wsClient{
		id:   uuid.New().String(),
		room: room,
		reg:  reg,
		conn: conn,
		send: make(chan []byte, sendBuf),
		done: make(chan struct{}),
	}
}

func (c *wsClient) ID() string { return c.id }

func (c *wsClient) Send(data []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errSendFull
	}
}

func (c *wsClient) Close() error {
	return c.conn.Close()
}

// writePump drains the send channel and writes to the connection. It owns the
// client lifecycle: on exit it removes the client from its room and closes
// the connection, so the registry never sends to a stale channel.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.reg.Unsubscribe(c.room, c)
		c.conn.Close()
		telemetry.Metrics.ActiveConnections.Dec()
		telemetry.Debugf("rooms: disconnected id=%s room=%s", c.id, c.room)
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				telemetry.Warnf("rooms: write error room=%s: %v", c.room, err)
				return
			}
		case <-c.done:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump keeps the connection alive by reading pongs / close frames.
// Subscribers are read-only; inbound payloads are discarded.
// On exit it signals writePump via c.done (never closes c.send).
func (c *wsClient) readPump() {
	defer close(c.done)

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}
