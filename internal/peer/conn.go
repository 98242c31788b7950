package peer

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/colorbets/internal/protocol"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

// Conn is a Transport over a websocket connection.
type Conn struct {
	ws      *websocket.Conn
	send    chan *protocol.Message
	inbound chan *protocol.Message
	logger  *log.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closing   chan struct{}
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, logger *log.Logger) *Conn {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Conn{
		ws:      ws,
		send:    make(chan *protocol.Message, sendBufferSize),
		inbound: make(chan *protocol.Message, sendBufferSize),
		logger:  logger.With("remote", ws.RemoteAddr().String()),
		ctx:     ctx,
		cancel:  cancel,
		closing: make(chan struct{}),
	}
	go c.writePump()
	go c.readPump()
	return c
}

func (c *Conn) Inbound() <-chan *protocol.Message { return c.inbound }
func (c *Conn) Done() <-chan struct{}             { return c.ctx.Done() }

// Send queues msg for the write pump. A full buffer means the peer stopped
// reading, and the link is dropped.
func (c *Conn) Send(msg *protocol.Message) error {
	select {
	case <-c.closing:
		return ErrClosed
	case <-c.ctx.Done():
		return ErrClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	default:
		c.logger.Warn("Send buffer full, closing connection")
		c.cancel()
		return ErrSendBufferFull
	}
}

// Close flushes queued messages, sends a close frame and releases the
// connection.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.closing) })
	return nil
}

// readPump handles incoming messages from the peer
func (c *Conn) readPump() {
	defer c.cancel()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		msg, err := protocol.Unmarshal(data)
		if err != nil {
			c.logger.Warn("Dropping unreadable message", "error", err)
			continue
		}
		c.logger.Debug("Received message", "type", msg.Type)

		select {
		case c.inbound <- msg:
		case <-c.ctx.Done():
			return
		}
	}
}

// writePump handles outgoing messages to the peer
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.cancel()
		_ = c.ws.Close() // Ignore close errors during cleanup
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				c.logger.Error("Failed to write message", "type", msg.Type, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closing:
			c.flush()
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Conn) flush() {
	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Conn) write(msg *protocol.Message) error {
	data, err := protocol.Marshal(msg)
	if err != nil {
		return err
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}
