package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gptgenerals/server/game"
	"github.com/gptgenerals/server/http_utils"
	"github.com/gptgenerals/server/lobby"
	"github.com/gptgenerals/server/token"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// CommandHandler processes one decoded client command. The raw payload is
// the full inbound message, so handlers unmarshal their own fields.
type CommandHandler func(raw json.RawMessage, c *Client) error

// Manager owns the client registry, the default (lobby-less) match, and
// the lobby. Command dispatch runs under a single mutex so handlers never
// interleave mid-mutation, mirroring the one-event-loop model the
// protocol assumes.
type Manager struct {
	mu      sync.RWMutex
	clients map[string]*Client

	handlers map[string]CommandHandler

	engineCfg game.Config
	engine    *game.Engine
	chat      *game.ChatHistory

	lobby *lobby.Manager

	tokenMaker token.Maker
	validate   *validator.Validate
	logger     zerolog.Logger
}

func NewManager(engineCfg game.Config, maker token.Maker, logger zerolog.Logger) *Manager {
	m := &Manager{
		clients:    make(map[string]*Client),
		handlers:   make(map[string]CommandHandler),
		engineCfg:  engineCfg,
		lobby:      lobby.NewManager(engineCfg),
		tokenMaker: maker,
		validate:   validator.New(),
		logger:     logger,
	}

	m.engine = m.newDefaultEngine()
	m.chat = game.NewChatHistory()

	m.setupCommandHandlers()

	return m
}

func (m *Manager) setupCommandHandlers() {
	m.handlers[CommandMove] = MoveHandler
	m.handlers[CommandChat] = ChatHandler
	m.handlers[CommandGetState] = GetStateHandler
	m.handlers[CommandReset] = ResetHandler
	m.handlers[CommandGetLobbyState] = GetLobbyStateHandler
	m.handlers[CommandCreateRoom] = CreateRoomHandler
	m.handlers[CommandJoinRoom] = JoinRoomHandler
	m.handlers[CommandLeaveRoom] = LeaveRoomHandler
	m.handlers[CommandStartGame] = StartGameHandler
	m.handlers[CommandSetPlayerInfo] = SetPlayerInfoHandler
}

// newDefaultEngine builds the ungrouped match seeded with the two default
// players and their units, as the original standalone server did.
func (m *Manager) newDefaultEngine() *game.Engine {
	engine := game.New(m.engineCfg)

	for _, name := range []string{"Player 1", "Player 2"} {
		id := engine.AddPlayer(name)
		if _, err := engine.AddUnit(id); err != nil {
			m.logger.Warn().Err(err).Str("player", name).Msg("could not place default unit")
		}
	}

	return engine
}

// Lobby exposes the room manager.
func (m *Manager) Lobby() *lobby.Manager {
	return m.lobby
}

// routeCommand decodes the envelope and runs the matching handler under
// the dispatch lock. Handler errors and panics are reported to the sender
// only; they never take down the loop or affect other connections.
func (m *Manager) routeCommand(c *Client, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Str("client", c.ID).Interface("panic", r).Msg("command handler panicked")
			c.Send(NewErrorMessage(fmt.Sprintf("Server error: %v", r)))
		}
	}()

	var envelope struct {
		Command string `json:"command"`
	}

	if err := json.Unmarshal(payload, &envelope); err != nil {
		c.Send(NewErrorMessage("Invalid JSON format"))
		return
	}

	if envelope.Command == "" {
		c.Send(NewErrorMessage("Missing command"))
		return
	}

	handler, ok := m.handlers[envelope.Command]
	if !ok {
		c.Send(NewErrorMessage(fmt.Sprintf("Unknown command: %s", envelope.Command)))
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := handler(payload, c); err != nil {
		m.logger.Debug().Str("client", c.ID).Str("command", envelope.Command).Err(err).Msg("command failed")
		c.Send(NewErrorMessage(err.Error()))
	}
}

// match resolves the engine, chat log and audience for a client: its
// room's when it has one, the default match otherwise. A nil engine means
// the client sits in a room whose game has not started.
func (m *Manager) match(c *Client) (engine *game.Engine, chat *game.ChatHistory, audience []*Client, playerID string) {
	if room, ok := m.lobby.RoomOf(c.ID); ok {
		member, _ := room.Member(c.ID)
		if member != nil {
			playerID = member.PlayerID
		}
		return room.Engine, room.Chat, m.clientsByIDLocked(room.ConnIDs()), playerID
	}

	all := make([]*Client, 0, len(m.clients))
	for _, client := range m.clients {
		all = append(all, client)
	}

	return m.engine, m.chat, all, c.PlayerID
}

func (m *Manager) clientsByIDLocked(ids []string) []*Client {
	out := make([]*Client, 0, len(ids))
	for _, id := range ids {
		if client, ok := m.clients[id]; ok {
			out = append(out, client)
		}
	}
	return out
}

func (m *Manager) lobbyStateLocked() LobbyStateMessage {
	return LobbyStateMessage{Type: TypeLobbyState, Rooms: m.lobby.Rooms()}
}

// broadcastLobbyStateLocked sends the room list to every connection; the
// lobby browser is global, not room-scoped.
func (m *Manager) broadcastLobbyStateLocked() {
	msg := m.lobbyStateLocked()
	for _, client := range m.clients {
		client.Send(msg)
	}
}

func (m *Manager) addClient(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clients[client.ID] = client

	// Bind the newcomer to a fresh engine player once the seeded default
	// players are outnumbered by connections. Earlier connections drive
	// the seeded units unrestricted.
	if len(m.engine.Players()) <= len(m.clients) {
		playerName := fmt.Sprintf("Player %d", len(m.clients))
		playerID := m.engine.AddPlayer(playerName)

		if _, err := m.engine.AddUnit(playerID); err != nil {
			m.logger.Warn().Err(err).Str("player", playerName).Msg("could not add unit for new player")
		} else {
			client.PlayerID = playerID
			client.Color = m.engine.Players()[playerID].Color
			m.logger.Info().Str("client", client.ID).Str("player", playerID).Msg("bound connection to new player")
		}
	}

	client.Send(NewGameStateMessage(m.engine.Snapshot()))
	client.Send(m.lobbyStateLocked())
}

func (m *Manager) removeClient(client *Client) {
	client.close()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[client.ID]; !ok {
		return
	}

	client.connection.Close()
	delete(m.clients, client.ID)

	if room, deleted := m.lobby.LeaveRoom(client.ID); room != nil && !deleted {
		for _, member := range m.clientsByIDLocked(room.ConnIDs()) {
			member.Send(RoomResultMessage{
				Type:    TypeRoomLeft,
				Success: true,
				RoomID:  room.ID,
				Message: fmt.Sprintf("%s left the room", client.Username),
			})
		}
	}

	m.broadcastLobbyStateLocked()

	m.logger.Info().Str("client", client.ID).Int("remaining", len(m.clients)).Msg("client disconnected")
}

type wsQuery struct {
	Token string `validate:"required"`
}

// ServeWS authenticates the upgrade request, starts the client's pumps
// and blocks until the connection dies.
func (m *Manager) ServeWS(w http.ResponseWriter, r *http.Request) {
	query := wsQuery{Token: r.URL.Query().Get("token")}

	if vErr := http_utils.ValidateStruct(m.validate, query); !reflect.ValueOf(vErr).IsZero() {
		http_utils.SendResponse(w, http.StatusUnauthorized, http_utils.NewBaseResponse(false, "token not sent"))
		return
	}

	payload, err := m.tokenMaker.VerifyToken(query.Token)

	if err != nil {
		http_utils.SendResponse(w, http.StatusUnauthorized, http_utils.NewBaseResponse(false, "unauthorized"))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)

	if err != nil {
		m.logger.Error().Err(err).Msg("error upgrading to websocket connection")
		return
	}

	client := NewClient(conn, m, payload.Username)

	m.logger.Info().Str("client", client.ID).Str("username", client.Username).Msg("client connected")

	m.addClient(client)

	ctx, cancel := context.WithCancel(r.Context())

	defer func() {
		cancel()
		m.removeClient(client)

		err := conn.WriteMessage(websocket.CloseMessage, nil)
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			m.logger.Debug().Err(err).Msg("error sending close message")
		}
	}()

	go client.readMessages(ctx)
	go client.writeMessages(ctx)

	err = <-client.Err()

	m.logger.Debug().Str("client", client.ID).Err(err).Msg("client error")
}

type usernameRequest struct {
	Username string `json:"username" validate:"required"`
}

// TokenHandler issues a connection token for a display name.
func (m *Manager) TokenHandler(w http.ResponseWriter, r *http.Request) {
	var data usernameRequest
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		http_utils.SendResponse(w, http.StatusBadRequest, http_utils.NewBaseResponse(false, "invalid body, username required"))
		return
	}

	if vErr := http_utils.ValidateStruct(m.validate, data); !reflect.ValueOf(vErr).IsZero() {
		http_utils.SendResponse(w, http.StatusBadRequest, vErr)
		return
	}

	tkn, payload, err := m.tokenMaker.CreateToken(data.Username, 24*time.Hour)

	if err != nil {
		http_utils.SendResponse(w, http.StatusInternalServerError, http_utils.NewBaseResponse(false, "could not create token"))
		return
	}

	http_utils.SendResponse(w, http.StatusOK, http_utils.NewDataResponse("token created", map[string]string{
		"id":       payload.ID.String(),
		"username": payload.Username,
		"token":    tkn,
	}))
}
