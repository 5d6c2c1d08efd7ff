package network

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"gridrealm/server/logger"
	"gridrealm/server/messages"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

var (
	// ErrConnectionClosed is returned when sending on a closed connection
	ErrConnectionClosed = errors.New("connection closed")
	// ErrSendBufferFull is returned when a slow client falls too far behind.
	// The connection is closed when this happens.
	ErrSendBufferFull = errors.New("send buffer full")
)

// Connection wraps the WebSocket connection with an outbound queue.
// Only WritePump writes to the socket.
type Connection struct {
	ws         *websocket.Conn
	codec      messages.Codec
	send       chan []byte
	done       chan struct{}
	closeOnce  sync.Once
	remoteAddr string
}

// NewConnection creates a new connection wrapper. maxMessageSize limits
// inbound frames; zero leaves the limit unset.
func NewConnection(ws *websocket.Conn, codec messages.Codec, maxMessageSize int64) *Connection {
	if codec == nil {
		codec = messages.JSONCodec{}
	}
	if maxMessageSize > 0 {
		ws.SetReadLimit(maxMessageSize)
	}
	return &Connection{
		ws:         ws,
		codec:      codec,
		send:       make(chan []byte, sendBufferSize),
		done:       make(chan struct{}),
		remoteAddr: ws.RemoteAddr().String(),
	}
}

// Codec returns the codec used for this connection
func (c *Connection) Codec() messages.Codec {
	return c.codec
}

// RemoteAddr returns the peer address
func (c *Connection) RemoteAddr() string {
	return c.remoteAddr
}

// ReadPump reads messages until the peer goes away or the connection is
// closed, handing each frame to h.
func (c *Connection) ReadPump(h MessageHandler) {
	defer c.Close()

	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warning("Error reading message", "remote", c.remoteAddr, "error", err)
			}
			return
		}
		h.HandleMessage(c, message)
	}
}

// WritePump writes queued frames and keepalive pings. On close it flushes
// what is still queued, then sends a close frame.
func (c *Connection) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.write(message); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.drain()
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Connection) drain() {
	for {
		select {
		case message := <-c.send:
			if err := c.write(message); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Connection) write(message []byte) error {
	frameType := websocket.TextMessage
	if c.codec.Binary() {
		frameType = websocket.BinaryMessage
	}
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(frameType, message)
}

// SendMessage encodes msg and queues it without blocking
func (c *Connection) SendMessage(msg interface{}) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	data, err := c.codec.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		logger.Warning("Send buffer full, dropping client", "remote", c.remoteAddr)
		c.Close()
		return ErrSendBufferFull
	}
}

// Close marks the connection closed. It is safe to call more than once.
// A read blocked in ReadPump is released by the deadline.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.SetReadDeadline(time.Now())
	})
}

// MessageHandler handles frames read from a connection
type MessageHandler interface {
	HandleMessage(conn *Connection, message []byte)
}
