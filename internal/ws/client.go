package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/incuverse/presence/internal/auth"
	"github.com/incuverse/presence/internal/protocol"
	"github.com/incuverse/presence/internal/session"
)

// Client pairs one websocket connection with its session state and an
// outbound buffer. The read and write pumps are the only goroutines
// touching the underlying connection.
type Client struct {
	id       string
	identity auth.Identity
	conn     *websocket.Conn
	sess     *session.Conn

	send      chan protocol.Message
	done      chan struct{}
	closeOnce sync.Once

	logger *zap.Logger
}

// ConnID identifies the underlying connection.
func (c *Client) ConnID() string { return c.id }

// Identity returns the authenticated user attached at handshake time.
func (c *Client) Identity() auth.Identity { return c.identity }

// Send enqueues a message without blocking. A client whose buffer is
// full is not keeping up; it gets closed rather than stalling the
// sender, and reconnects with a fresh view.
func (c *Client) Send(msg protocol.Message) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		c.logger.Warn("dropping slow client",
			zap.String("conn_id", c.id),
			zap.String("user_id", c.identity.ID),
		)
		c.close()
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump reads envelopes off the wire and hands them to the session
// handler. It owns connection teardown: when the read loop exits the
// client is unregistered and its presence entries are cleaned up.
func (c *Client) readPump(s *Server) {
	defer func() {
		s.unregister(c)
		c.close()
	}()

	c.conn.SetReadLimit(s.presenceCfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(s.presenceCfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(s.presenceCfg.PongTimeout))
		return nil
	})

	for {
		var msg protocol.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read failed",
					zap.String("conn_id", c.id),
					zap.Error(err),
				)
			}
			return
		}
		s.handler.HandleMessage(s.baseCtx, c.sess, c, msg)
	}
}

// writePump drains the send buffer onto the wire and keeps the
// connection alive with periodic pings.
func (c *Client) writePump(s *Server) {
	ticker := time.NewTicker(s.presenceCfg.PingPeriod())
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(s.presenceCfg.WriteTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(s.presenceCfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(s.presenceCfg.WriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
