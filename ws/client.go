package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	pongWait     = 10 * time.Second
	pingInterval = (pongWait * 9) / 10
	writeWait    = 10 * time.Second

	// Large enough that no valid command (chat content included) ever
	// trips it; oversized frames still close the connection.
	maxMessageSize int64 = 64 * 1024
)

// Client is one live websocket connection and its metadata: the join key
// between the wire layer, the lobby room, and the engine's player.
type Client struct {
	ID       string
	Username string

	// Color and PlayerID are set when the connection is bound to an
	// engine player, either in the default match or on game start.
	// Guarded by the manager's mutex.
	Color    string
	PlayerID string

	manager    *Manager
	connection *websocket.Conn

	egress chan any
	err    chan error
	done   chan struct{}
	once   sync.Once
}

func NewClient(conn *websocket.Conn, manager *Manager, username string) *Client {
	return &Client{
		ID:         uuid.NewString(),
		Username:   username,
		manager:    manager,
		connection: conn,
		egress:     make(chan any, 16),
		err:        make(chan error, 2),
		done:       make(chan struct{}),
	}
}

// Send queues a message for delivery. It never blocks past the client's
// teardown: messages for a closing client are dropped.
func (c *Client) Send(msg any) {
	select {
	case c.egress <- msg:
	case <-c.done:
	}
}

// Err returns the channel the read/write pumps report fatal errors on.
func (c *Client) Err() chan error {
	return c.err
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
	})
}

func (c *Client) handleError(e error) {
	c.err <- e
}

// readMessages consumes inbound frames and routes each decoded command.
func (c *Client) readMessages(ctx context.Context) {
	c.connection.SetReadLimit(maxMessageSize)

	if err := c.connection.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.handleError(err)
		return
	}

	c.connection.SetPongHandler(c.pongHandler)

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, payload, err := c.connection.ReadMessage()

			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
					c.manager.logger.Warn().Str("client", c.ID).Err(err).Msg("unexpected socket closure")
				}
				c.handleError(err)
				return
			}

			c.manager.routeCommand(c, payload)
		}
	}
}

// writeMessages delivers queued messages and keeps the connection alive
// with pings.
func (c *Client) writeMessages(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)

	defer func() {
		ticker.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case message := <-c.egress:
			data, err := json.Marshal(message)

			if err != nil {
				c.manager.logger.Error().Str("client", c.ID).Err(err).Msg("cannot marshal outbound message")
				continue
			}

			c.connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.connection.WriteMessage(websocket.TextMessage, data); err != nil {
				c.handleError(err)
				return
			}
		case <-ticker.C:
			c.connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.connection.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				c.handleError(err)
				return
			}
		}
	}
}

// pongHandler extends the read deadline whenever a pong arrives.
func (c *Client) pongHandler(pongMsg string) error {
	return c.connection.SetReadDeadline(time.Now().Add(pongWait))
}
