package server

import (
	"sync"
	"time"

	"candle-replay/src/backtest"
	"candle-replay/src/models"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// -----------------------------------------------------------------------------
// Client Structure
// -----------------------------------------------------------------------------

// Client is one websocket connection. The owner of a session drives it with
// commands; a viewer only receives the session's broadcasts.
type Client struct {
	server  *ReplayServer
	conn    *websocket.Conn
	group   string
	session *backtest.Session // nil for viewers

	// send is never closed; done signals shutdown to both pumps.
	send      chan interface{}
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(s *ReplayServer, conn *websocket.Conn, group string) *Client {
	buffer := s.Config.Replay.SendBuffer
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{
		server: s,
		conn:   conn,
		group:  group,
		send:   make(chan interface{}, buffer),
		done:   make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

// Send queues an event without blocking. A client that cannot keep up is
// disconnected.
func (c *Client) Send(event interface{}) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- event:
		return true
	default:
		c.server.Logger.Warning("Client of %s too slow, disconnecting", c.group)
		c.Close()
		return false
	}
}

// Close stops both pumps. It is safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// -----------------------------------------------------------------------------
// readPump - handles incoming messages from client
// Act as a Watchdog for the connection
// -----------------------------------------------------------------------------

func (c *Client) readPump() {
	defer func() {
		c.server.release(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.server.Logger.Info("WebSocket error: %v", err)
			}
			return
		}

		if c.session == nil {
			c.Send(models.NewErrorEvent("read-only viewer cannot send commands"))
			continue
		}
		c.session.HandleMessage(message)
	}
}

// -----------------------------------------------------------------------------
// writePump - sends messages to client
// -----------------------------------------------------------------------------

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.server.Logger.Info("Write error: %v", err)
				c.Close()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
