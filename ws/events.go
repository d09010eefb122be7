package ws

import (
	"github.com/gptgenerals/server/game"
	"github.com/gptgenerals/server/lobby"
)

// Client -> server command names. Every inbound message carries a
// top-level "command" discriminator next to its fields.
const (
	CommandMove          = "move"
	CommandChat          = "chat"
	CommandGetState      = "get_state"
	CommandReset         = "reset"
	CommandGetLobbyState = "get_lobby_state"

	CommandCreateRoom    = "lobby_create_room"
	CommandJoinRoom      = "lobby_join_room"
	CommandLeaveRoom     = "lobby_leave_room"
	CommandStartGame     = "lobby_start_game"
	CommandSetPlayerInfo = "lobby_set_player_info"
)

// Server -> client message types.
const (
	TypeGameState         = "game_state"
	TypeLobbyState        = "lobby_state"
	TypeMoveResult        = "move_result"
	TypeChatMessage       = "chat_message"
	TypeChatResult        = "chat_result"
	TypeResetResult       = "reset_result"
	TypeRoomCreated       = "room_created"
	TypeRoomJoined        = "room_joined"
	TypeRoomLeft          = "room_left"
	TypeGameStarted       = "game_started"
	TypePlayerInfoUpdated = "player_info_updated"
	TypeError             = "error"
)

type MoveCommand struct {
	UnitName  string `json:"unit_name" validate:"required"`
	Direction string `json:"direction" validate:"required"`
}

type ChatCommand struct {
	Sender     string `json:"sender" validate:"required"`
	Content    string `json:"content" validate:"required"`
	SenderType string `json:"sender_type"`
}

type CreateRoomCommand struct {
	RoomName    string `json:"room_name" validate:"required"`
	PlayerName  string `json:"player_name" validate:"required"`
	PlayerColor string `json:"player_color"`
}

type JoinRoomCommand struct {
	RoomID      string `json:"room_id" validate:"required"`
	PlayerName  string `json:"player_name" validate:"required"`
	PlayerColor string `json:"player_color"`
}

type SetPlayerInfoCommand struct {
	PlayerName  string `json:"player_name"`
	PlayerColor string `json:"player_color"`
}

// GameStateMessage is the full serialized match state broadcast after
// every successful mutation.
type GameStateMessage struct {
	Type          string                 `json:"type"`
	MapGrid       game.Grid              `json:"map_grid"`
	Units         map[string]game.Unit   `json:"units"`
	Players       map[string]game.Player `json:"players"`
	CoinPositions []game.Position        `json:"coin_positions"`
	CurrentTurn   int                    `json:"current_turn"`
	Width         int                    `json:"width"`
	Height        int                    `json:"height"`
}

func NewGameStateMessage(s game.Snapshot) GameStateMessage {
	return GameStateMessage{
		Type:          TypeGameState,
		MapGrid:       s.MapGrid,
		Units:         s.Units,
		Players:       s.Players,
		CoinPositions: s.CoinPositions,
		CurrentTurn:   s.Turn,
		Width:         s.MapGrid.Width(),
		Height:        s.MapGrid.Height(),
	}
}

type LobbyStateMessage struct {
	Type  string           `json:"type"`
	Rooms []lobby.RoomInfo `json:"rooms"`
}

type MoveResultMessage struct {
	Type      string `json:"type"`
	Success   bool   `json:"success"`
	UnitName  string `json:"unit_name"`
	Direction string `json:"direction"`
	Message   string `json:"message,omitempty"`
}

type ChatBroadcastMessage struct {
	Type string `json:"type"`
	game.ChatMessage
}

type ChatResultMessage struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ResetResultMessage struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type RoomResultMessage struct {
	Type    string          `json:"type"`
	Success bool            `json:"success"`
	RoomID  string          `json:"room_id,omitempty"`
	Room    *lobby.RoomInfo `json:"room,omitempty"`
	Message string          `json:"message,omitempty"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewErrorMessage(message string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: message}
}
