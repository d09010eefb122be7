package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gptgenerals/server/game"
	"github.com/gptgenerals/server/lobby"
)

var errGameNotStarted = errors.New("the game has not started yet")

// MoveHandler validates and applies a unit move. A successful move
// advances the turn and re-broadcasts the full state to the match; a
// failed move is reported to the sender only, with no turn advance.
func MoveHandler(raw json.RawMessage, c *Client) error {
	var cmd MoveCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return err
	}

	if err := c.manager.validate.Struct(cmd); err != nil {
		return errors.New("Missing unit_name or direction for move command")
	}

	engine, _, audience, playerID := c.manager.match(c)
	if engine == nil {
		return errGameNotStarted
	}

	moveErr := func() error {
		direction, err := game.ParseDirection(cmd.Direction)
		if err != nil {
			return err
		}
		return engine.MoveUnit(cmd.UnitName, direction, playerID)
	}()

	if moveErr != nil {
		c.Send(MoveResultMessage{
			Type:      TypeMoveResult,
			Success:   false,
			UnitName:  cmd.UnitName,
			Direction: cmd.Direction,
			Message:   fmt.Sprintf("Invalid move: %s cannot move %s (%v)", cmd.UnitName, cmd.Direction, moveErr),
		})
		return nil
	}

	engine.NextTurn()

	c.Send(MoveResultMessage{
		Type:      TypeMoveResult,
		Success:   true,
		UnitName:  cmd.UnitName,
		Direction: cmd.Direction,
	})

	state := NewGameStateMessage(engine.Snapshot())
	for _, client := range audience {
		client.Send(state)
	}

	return nil
}

// ChatHandler records the message and broadcasts it, timestamped, to the
// sender's match (globally when the sender has no room).
func ChatHandler(raw json.RawMessage, c *Client) error {
	var cmd ChatCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return err
	}

	if err := c.manager.validate.Struct(cmd); err != nil {
		return errors.New("Missing sender or content for chat command")
	}

	_, chat, audience, _ := c.manager.match(c)

	msg := chat.Add(cmd.Sender, cmd.Content, cmd.SenderType)

	broadcast := ChatBroadcastMessage{Type: TypeChatMessage, ChatMessage: msg}
	for _, client := range audience {
		client.Send(broadcast)
	}

	c.Send(ChatResultMessage{
		Type:    TypeChatResult,
		Success: true,
		Message: "Chat message sent",
	})

	return nil
}

// GetStateHandler sends the match state to the sender only.
func GetStateHandler(raw json.RawMessage, c *Client) error {
	engine, _, _, _ := c.manager.match(c)
	if engine == nil {
		return errGameNotStarted
	}

	c.Send(NewGameStateMessage(engine.Snapshot()))
	return nil
}

// ResetHandler replaces the sender's match engine wholesale. Inside a
// room only the host may reset; in the default match any connection can,
// and every connection's player binding is cleared with it.
func ResetHandler(raw json.RawMessage, c *Client) error {
	m := c.manager

	if _, ok := m.lobby.RoomOf(c.ID); ok {
		room, err := m.lobby.ResetGame(c.ID)
		if err != nil {
			c.Send(ResetResultMessage{Type: TypeResetResult, Success: false, Message: err.Error()})
			return nil
		}

		state := NewGameStateMessage(room.Engine.Snapshot())
		for _, client := range m.clientsByIDLocked(room.ConnIDs()) {
			client.Send(state)
		}

		c.Send(ResetResultMessage{Type: TypeResetResult, Success: true})
		return nil
	}

	m.engine = m.newDefaultEngine()
	m.chat = game.NewChatHistory()

	state := NewGameStateMessage(m.engine.Snapshot())
	for _, client := range m.clients {
		client.PlayerID = ""
		client.Send(state)
	}

	c.Send(ResetResultMessage{Type: TypeResetResult, Success: true})
	return nil
}

// GetLobbyStateHandler sends the room list to the sender only.
func GetLobbyStateHandler(raw json.RawMessage, c *Client) error {
	c.Send(c.manager.lobbyStateLocked())
	return nil
}

// CreateRoomHandler opens a room with the sender as host.
func CreateRoomHandler(raw json.RawMessage, c *Client) error {
	var cmd CreateRoomCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return err
	}

	if err := c.manager.validate.Struct(cmd); err != nil {
		return errors.New("Missing room_name or player_name for lobby_create_room command")
	}

	room, err := c.manager.lobby.CreateRoom(cmd.RoomName, lobby.Member{
		ConnID:     c.ID,
		PlayerName: cmd.PlayerName,
		Color:      cmd.PlayerColor,
	})

	if err != nil {
		c.Send(RoomResultMessage{Type: TypeRoomCreated, Success: false, Message: err.Error()})
		return nil
	}

	info := room.Info()
	c.Send(RoomResultMessage{Type: TypeRoomCreated, Success: true, RoomID: room.ID, Room: &info})

	c.manager.broadcastLobbyStateLocked()
	return nil
}

// JoinRoomHandler adds the sender to a waiting room.
func JoinRoomHandler(raw json.RawMessage, c *Client) error {
	var cmd JoinRoomCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return err
	}

	if err := c.manager.validate.Struct(cmd); err != nil {
		return errors.New("Missing room_id or player_name for lobby_join_room command")
	}

	room, err := c.manager.lobby.JoinRoom(cmd.RoomID, lobby.Member{
		ConnID:     c.ID,
		PlayerName: cmd.PlayerName,
		Color:      cmd.PlayerColor,
	})

	if err != nil {
		c.Send(RoomResultMessage{Type: TypeRoomJoined, Success: false, RoomID: cmd.RoomID, Message: err.Error()})
		return nil
	}

	info := room.Info()
	c.Send(RoomResultMessage{Type: TypeRoomJoined, Success: true, RoomID: room.ID, Room: &info})

	c.manager.broadcastLobbyStateLocked()
	return nil
}

// LeaveRoomHandler removes the sender from its room.
func LeaveRoomHandler(raw json.RawMessage, c *Client) error {
	room, _ := c.manager.lobby.LeaveRoom(c.ID)
	if room == nil {
		c.Send(RoomResultMessage{Type: TypeRoomLeft, Success: false, Message: lobby.ErrNotInRoom.Error()})
		return nil
	}

	c.Send(RoomResultMessage{Type: TypeRoomLeft, Success: true, RoomID: room.ID})

	c.manager.broadcastLobbyStateLocked()
	return nil
}

// StartGameHandler starts the room's game: the lobby builds the engine
// and binds one player and unit per member; every member then receives
// game_started plus the initial state.
func StartGameHandler(raw json.RawMessage, c *Client) error {
	m := c.manager

	room, err := m.lobby.StartGame(c.ID)
	if err != nil {
		c.Send(RoomResultMessage{Type: TypeGameStarted, Success: false, Message: err.Error()})
		return nil
	}

	// propagate player bindings onto the connections
	for _, member := range room.Members() {
		if client, ok := m.clients[member.ConnID]; ok {
			client.PlayerID = member.PlayerID
			client.Color = member.Color
		}
	}

	state := NewGameStateMessage(room.Engine.Snapshot())
	for _, client := range m.clientsByIDLocked(room.ConnIDs()) {
		client.Send(RoomResultMessage{Type: TypeGameStarted, Success: true, RoomID: room.ID})
		client.Send(state)
	}

	m.broadcastLobbyStateLocked()
	return nil
}

// SetPlayerInfoHandler updates the sender's display name and color on the
// connection, its room membership, and the engine player when bound.
func SetPlayerInfoHandler(raw json.RawMessage, c *Client) error {
	var cmd SetPlayerInfoCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return err
	}

	if cmd.PlayerName != "" {
		c.Username = cmd.PlayerName
	}
	if cmd.PlayerColor != "" {
		c.Color = cmd.PlayerColor
	}

	if _, inRoom := c.manager.lobby.RoomOf(c.ID); inRoom {
		if _, err := c.manager.lobby.SetPlayerInfo(c.ID, cmd.PlayerName, cmd.PlayerColor); err != nil {
			c.Send(RoomResultMessage{Type: TypePlayerInfoUpdated, Success: false, Message: err.Error()})
			return nil
		}
	} else if c.PlayerID != "" {
		if err := c.manager.engine.UpdatePlayer(c.PlayerID, cmd.PlayerName, cmd.PlayerColor); err != nil {
			c.Send(RoomResultMessage{Type: TypePlayerInfoUpdated, Success: false, Message: err.Error()})
			return nil
		}
	}

	c.Send(RoomResultMessage{Type: TypePlayerInfoUpdated, Success: true})

	c.manager.broadcastLobbyStateLocked()
	return nil
}
