package ws

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"hearthchat/contract"
	"hearthchat/domain"
	"hearthchat/domain/event"
	"hearthchat/errors"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
)

var _ contract.EventSink = (*Conn)(nil)

// Conn is one live WebSocket connection: a room subscription or a
// notification subscription. It owns the socket through two pumps and
// never touches another connection; everything it shares with the rest
// of the system goes through the command pipeline and its send buffer.
type Conn struct {
	id        string
	principal domain.Principal
	room      domain.RoomID
	socket    *websocket.Conn
	send      chan []byte
	dispatch  func(domain.SendMessageCommand) bool
	onClose   func()
	log       *slog.Logger
}

func newConn(socket *websocket.Conn, principal domain.Principal, room domain.RoomID, bufferSize int, log *slog.Logger) *Conn {
	id := uuid.NewString()
	return &Conn{
		id:        id,
		principal: principal,
		room:      room,
		socket:    socket,
		send:      make(chan []byte, bufferSize),
		log:       log.With("connection_id", id, "user_id", principal.UserID),
	}
}

// Consume implements contract.EventSink. It marshals the event and
// enqueues it without blocking: the fan-out worker must never wait on
// one slow client.
func (c *Conn) Consume(_ context.Context, e event.DomainEvent) error {
	raw, err := encodeEvent(e)
	if err != nil {
		return err
	}
	select {
	case c.send <- raw:
		return nil
	default:
		return fmt.Errorf("send buffer full for connection %s", c.id)
	}
}

// readPump drains the socket until it closes. On a room connection each
// text frame becomes a SendMessageCommand; on a notification connection
// inbound frames are ignored, the pump only keeps the socket alive.
func (c *Conn) readPump() {
	defer func() {
		if c.onClose != nil {
			c.onClose()
		}
		c.socket.Close()
	}()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, raw, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("Unexpected close", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage || c.dispatch == nil {
			continue
		}
		c.handleFrame(raw)
	}
}

func (c *Conn) handleFrame(raw []byte) {
	ciphertext, iv, err := decodeInbound(raw)
	if err != nil {
		c.reject(err)
		return
	}
	ok := c.dispatch(domain.SendMessageCommand{
		Room:       int64(c.room),
		Sender:     c.principal,
		Ciphertext: ciphertext,
		IV:         iv,
		Connection: c.id,
		ReceivedAt: time.Now().UTC(),
	})
	if !ok {
		c.enqueue(encodeError("Server busy, message dropped"))
	}
}

// reject reports a malformed frame back to this client only, mirroring
// the error strings clients already know.
func (c *Conn) reject(err error) {
	switch err {
	case errors.ErrUnsupportedFrame:
		c.enqueue(encodeError("Unsupported message type"))
	case errors.ErrInvalidJSON:
		c.enqueue(encodeError("Invalid JSON"))
	default:
		c.enqueue(encodeError("Missing ciphertext or iv"))
	}
}

func (c *Conn) enqueue(raw []byte) {
	select {
	case c.send <- raw:
	default:
		c.log.Warn("Send buffer full, dropping frame")
	}
}

// writePump serializes all socket writes: queued frames plus the
// keepalive pings. It is the only goroutine allowed to write.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()

	for {
		select {
		case raw, ok := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteMessage(websocket.TextMessage, raw); err != nil {
				c.log.Debug("Write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Conn) run() {
	go c.writePump()
	go c.readPump()
}
