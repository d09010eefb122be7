package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gptgenerals/server/game"
	"github.com/gptgenerals/server/ws"
)

// Config controls a client connection.
type Config struct {
	// ServerURL is the websocket endpoint, e.g. ws://localhost:8765/ws.
	ServerURL string
	Token     string

	// MaxRetries bounds the dial attempts; RetryDelay is the fixed
	// backoff between them.
	MaxRetries int
	RetryDelay time.Duration

	Logger zerolog.Logger
}

// Client is a websocket client for the game server. Server messages are
// delivered to listeners registered by message type.
type Client struct {
	cfg       Config
	listeners *listenerRegistry

	mu   sync.Mutex // guards conn writes
	conn *websocket.Conn

	done chan struct{}
	err  chan error
}

func New(cfg Config) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	return &Client{
		cfg:       cfg,
		listeners: newListenerRegistry(cfg.Logger),
		done:      make(chan struct{}),
		err:       make(chan error, 1),
	}
}

// AcquireToken requests a connection token for a display name from the
// server's HTTP endpoint.
func AcquireToken(baseURL, username string) (string, error) {
	body, err := json.Marshal(map[string]string{"username": username})
	if err != nil {
		return "", err
	}

	resp, err := http.Post(baseURL+"/token", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed with status %d", resp.StatusCode)
	}

	var data struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"token"`
		} `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", err
	}

	if !data.Success || data.Data.Token == "" {
		return "", errors.New("server did not return a token")
	}

	return data.Data.Token, nil
}

// On registers a handler for a server message type. Handlers for one type
// run synchronously in registration order.
func (c *Client) On(messageType string, h Handler) {
	c.listeners.on(messageType, h)
}

// Connect dials the server, retrying with a fixed backoff, and starts the
// read loop.
func (c *Client) Connect(ctx context.Context) error {
	url := fmt.Sprintf("%s?token=%s", c.cfg.ServerURL, c.cfg.Token)

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.cfg.Logger.Info().Int("attempt", attempt+1).Msg("retrying connection")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.RetryDelay):
			}
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			lastErr = err
			continue
		}

		c.conn = conn
		go c.readLoop()

		return nil
	}

	return fmt.Errorf("could not connect after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

// Err reports the read loop's terminal error.
func (c *Client) Err() <-chan error {
	return c.err
}

// Close shuts the connection down.
func (c *Client) Close() error {
	select {
	case <-c.done:
		return nil
	default:
	}

	close(c.done)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

func (c *Client) readLoop() {
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.err <- err
			}
			return
		}

		var envelope struct {
			Type string `json:"type"`
		}

		if err := json.Unmarshal(payload, &envelope); err != nil {
			c.cfg.Logger.Warn().Err(err).Msg("dropping unparseable server message")
			continue
		}

		c.listeners.dispatch(envelope.Type, payload)
	}
}

func (c *Client) send(command map[string]any) error {
	data, err := json.Marshal(command)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return errors.New("client is not connected")
	}

	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Move asks the server to move a unit one cell.
func (c *Client) Move(unitName string, direction game.Direction) error {
	return c.send(map[string]any{
		"command":   ws.CommandMove,
		"unit_name": unitName,
		"direction": direction,
	})
}

// Chat sends a chat message to the sender's match.
func (c *Client) Chat(sender, content, senderType string) error {
	return c.send(map[string]any{
		"command":     ws.CommandChat,
		"sender":      sender,
		"content":     content,
		"sender_type": senderType,
	})
}

// GetState requests a fresh state snapshot.
func (c *Client) GetState() error {
	return c.send(map[string]any{"command": ws.CommandGetState})
}

// Reset asks the server to restart the sender's match.
func (c *Client) Reset() error {
	return c.send(map[string]any{"command": ws.CommandReset})
}

// GetLobbyState requests the room list.
func (c *Client) GetLobbyState() error {
	return c.send(map[string]any{"command": ws.CommandGetLobbyState})
}

// CreateRoom opens a lobby room with the caller as host.
func (c *Client) CreateRoom(roomName, playerName, playerColor string) error {
	return c.send(map[string]any{
		"command":      ws.CommandCreateRoom,
		"room_name":    roomName,
		"player_name":  playerName,
		"player_color": playerColor,
	})
}

// JoinRoom joins a waiting lobby room.
func (c *Client) JoinRoom(roomID, playerName, playerColor string) error {
	return c.send(map[string]any{
		"command":      ws.CommandJoinRoom,
		"room_id":      roomID,
		"player_name":  playerName,
		"player_color": playerColor,
	})
}

// LeaveRoom leaves the caller's room.
func (c *Client) LeaveRoom() error {
	return c.send(map[string]any{"command": ws.CommandLeaveRoom})
}

// StartGame starts the caller's room (host only).
func (c *Client) StartGame() error {
	return c.send(map[string]any{"command": ws.CommandStartGame})
}

// SetPlayerInfo updates the caller's display name and color.
func (c *Client) SetPlayerInfo(playerName, playerColor string) error {
	return c.send(map[string]any{
		"command":      ws.CommandSetPlayerInfo,
		"player_name":  playerName,
		"player_color": playerColor,
	})
}
