package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gptgenerals/server/game"
)

func newTestServer(t *testing.T) (*Manager, *httptest.Server) {
	t.Helper()

	cfg := game.Config{
		Grid:       game.EmptyMap(6, 6),
		NumCoins:   0,
		MaxHistory: 64,
		Seed:       42,
	}

	manager := NewManager(cfg, testMaker, zerolog.Nop())

	mux := http.NewServeMux()
	mux.HandleFunc("/token", manager.TokenHandler)
	mux.HandleFunc("/ws", manager.ServeWS)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return manager, server
}

func dial(t *testing.T, server *httptest.Server, username string) *websocket.Conn {
	t.Helper()

	tkn, _, err := testMaker.CreateToken(username, time.Minute)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + tkn

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func sendCommand(t *testing.T, conn *websocket.Conn, command map[string]any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(command))
}

// waitFor reads messages until one of the wanted type arrives, decoding
// it into T. Messages of other types are skipped.
func waitFor[T any](t *testing.T, conn *websocket.Conn, msgType string) T {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	for {
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %q", msgType)

		var envelope struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(payload, &envelope))

		if envelope.Type != msgType {
			continue
		}

		var out T
		require.NoError(t, json.Unmarshal(payload, &out))
		return out
	}
}

// waitForLobbyState reads lobby_state messages until one satisfies the
// condition; earlier queued broadcasts are skipped.
func waitForLobbyState(t *testing.T, conn *websocket.Conn, cond func(LobbyStateMessage) bool) LobbyStateMessage {
	t.Helper()

	for {
		msg := waitFor[LobbyStateMessage](t, conn, TypeLobbyState)
		if cond(msg) {
			return msg
		}
	}
}

func TestServeWSRejectsBadTokens(t *testing.T) {
	_, server := newTestServer(t)

	t.Run("missing token", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/ws")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("garbage token", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/ws?token=nonsense")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestTokenHandler(t *testing.T) {
	_, server := newTestServer(t)

	t.Run("issues a token", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/token", "application/json", strings.NewReader(`{"username":"alice"}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Success bool `json:"success"`
			Data    struct {
				Token    string `json:"token"`
				Username string `json:"username"`
			} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.True(t, body.Success)
		require.NotEmpty(t, body.Data.Token)
		require.Equal(t, "alice", body.Data.Username)

		_, err = testMaker.VerifyToken(body.Data.Token)
		require.NoError(t, err)
	})

	t.Run("rejects missing username", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/token", "application/json", strings.NewReader(`{}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestConnectReceivesInitialState(t *testing.T) {
	_, server := newTestServer(t)

	conn := dial(t, server, "alice")

	state := waitFor[GameStateMessage](t, conn, TypeGameState)
	require.Equal(t, 6, state.Width)
	require.Equal(t, 6, state.Height)
	require.Equal(t, 0, state.CurrentTurn)
	require.Len(t, state.Units, 2)
	require.Len(t, state.Players, 2)

	lobbyState := waitFor[LobbyStateMessage](t, conn, TypeLobbyState)
	require.Empty(t, lobbyState.Rooms)
}

func TestMoveCommand(t *testing.T) {
	_, server := newTestServer(t)

	conn1 := dial(t, server, "alice")
	conn2 := dial(t, server, "bob")

	state := waitFor[GameStateMessage](t, conn1, TypeGameState)
	waitFor[GameStateMessage](t, conn2, TypeGameState)

	// pick a direction that keeps unit A on the all-land grid
	direction := "up"
	if state.Units["A"].Position.Y == state.Height-1 {
		direction = "down"
	}

	sendCommand(t, conn1, map[string]any{
		"command": "move", "unit_name": "A", "direction": direction,
	})

	result := waitFor[MoveResultMessage](t, conn1, TypeMoveResult)
	require.True(t, result.Success)
	require.Equal(t, "A", result.UnitName)
	require.Equal(t, direction, result.Direction)

	// both clients get the re-broadcast state with the turn advanced
	updated1 := waitFor[GameStateMessage](t, conn1, TypeGameState)
	updated2 := waitFor[GameStateMessage](t, conn2, TypeGameState)
	require.Equal(t, 1, updated1.CurrentTurn)
	require.Equal(t, updated1.Units["A"].Position, updated2.Units["A"].Position)
	require.NotEqual(t, state.Units["A"].Position, updated1.Units["A"].Position)
}

func TestMoveFailureDoesNotAdvanceTurn(t *testing.T) {
	_, server := newTestServer(t)

	conn := dial(t, server, "alice")
	waitFor[GameStateMessage](t, conn, TypeGameState)

	sendCommand(t, conn, map[string]any{
		"command": "move", "unit_name": "Z", "direction": "up",
	})

	result := waitFor[MoveResultMessage](t, conn, TypeMoveResult)
	require.False(t, result.Success)
	require.Contains(t, result.Message, "Invalid move")

	sendCommand(t, conn, map[string]any{"command": "get_state"})
	state := waitFor[GameStateMessage](t, conn, TypeGameState)
	require.Equal(t, 0, state.CurrentTurn)
}

func TestMoveValidation(t *testing.T) {
	_, server := newTestServer(t)

	conn := dial(t, server, "alice")
	waitFor[GameStateMessage](t, conn, TypeGameState)

	sendCommand(t, conn, map[string]any{"command": "move", "unit_name": "A"})

	errMsg := waitFor[ErrorMessage](t, conn, TypeError)
	require.Contains(t, errMsg.Message, "Missing unit_name or direction")
}

func TestChatCommand(t *testing.T) {
	_, server := newTestServer(t)

	conn1 := dial(t, server, "alice")
	conn2 := dial(t, server, "bob")
	waitFor[GameStateMessage](t, conn1, TypeGameState)
	waitFor[GameStateMessage](t, conn2, TypeGameState)

	sendCommand(t, conn1, map[string]any{
		"command": "chat", "sender": "alice", "content": "hello", "sender_type": "player",
	})

	msg := waitFor[ChatBroadcastMessage](t, conn2, TypeChatMessage)
	require.Equal(t, "alice", msg.Sender)
	require.Equal(t, "hello", msg.Content)
	require.NotEmpty(t, msg.Timestamp)

	ack := waitFor[ChatResultMessage](t, conn1, TypeChatResult)
	require.True(t, ack.Success)

	t.Run("long content", func(t *testing.T) {
		// well over 1 KB; must be relayed, not rejected at the socket
		long := strings.Repeat("lorem ipsum ", 200)

		sendCommand(t, conn1, map[string]any{
			"command": "chat", "sender": "alice", "content": long,
		})

		msg := waitFor[ChatBroadcastMessage](t, conn2, TypeChatMessage)
		require.Equal(t, long, msg.Content)

		ack := waitFor[ChatResultMessage](t, conn1, TypeChatResult)
		require.True(t, ack.Success)
	})

	t.Run("missing fields", func(t *testing.T) {
		sendCommand(t, conn1, map[string]any{"command": "chat", "sender": "alice"})
		errMsg := waitFor[ErrorMessage](t, conn1, TypeError)
		require.Contains(t, errMsg.Message, "Missing sender or content")
	})
}

func TestMalformedAndUnknownCommands(t *testing.T) {
	_, server := newTestServer(t)

	conn := dial(t, server, "alice")
	waitFor[GameStateMessage](t, conn, TypeGameState)

	t.Run("invalid json", func(t *testing.T) {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
		errMsg := waitFor[ErrorMessage](t, conn, TypeError)
		require.Equal(t, "Invalid JSON format", errMsg.Message)
	})

	t.Run("unknown command", func(t *testing.T) {
		sendCommand(t, conn, map[string]any{"command": "teleport"})
		errMsg := waitFor[ErrorMessage](t, conn, TypeError)
		require.Equal(t, "Unknown command: teleport", errMsg.Message)
	})

	t.Run("missing command", func(t *testing.T) {
		sendCommand(t, conn, map[string]any{"unit_name": "A"})
		errMsg := waitFor[ErrorMessage](t, conn, TypeError)
		require.Equal(t, "Missing command", errMsg.Message)
	})
}

func TestRoomLifecycleEndToEnd(t *testing.T) {
	manager, server := newTestServer(t)

	host := dial(t, server, "alice")
	guest := dial(t, server, "bob")
	waitFor[GameStateMessage](t, host, TypeGameState)
	waitFor[GameStateMessage](t, guest, TypeGameState)

	// host creates a room
	sendCommand(t, host, map[string]any{
		"command": "lobby_create_room", "room_name": "R", "player_name": "Alice", "player_color": "#F44336",
	})

	created := waitFor[RoomResultMessage](t, host, TypeRoomCreated)
	require.True(t, created.Success)
	require.NotEmpty(t, created.RoomID)
	require.Equal(t, "Alice", created.Room.HostName)

	// all clients see the room in the lobby broadcast
	lobbyState := waitForLobbyState(t, guest, func(msg LobbyStateMessage) bool {
		return len(msg.Rooms) == 1
	})
	require.Equal(t, "R", lobbyState.Rooms[0].Name)

	// guest joins
	sendCommand(t, guest, map[string]any{
		"command": "lobby_join_room", "room_id": created.RoomID, "player_name": "Bob",
	})

	joined := waitFor[RoomResultMessage](t, guest, TypeRoomJoined)
	require.True(t, joined.Success)
	require.Len(t, joined.Room.Players, 2)

	// only the host may start
	sendCommand(t, guest, map[string]any{"command": "lobby_start_game"})
	denied := waitFor[RoomResultMessage](t, guest, TypeGameStarted)
	require.False(t, denied.Success)

	sendCommand(t, host, map[string]any{"command": "lobby_start_game"})

	started := waitFor[RoomResultMessage](t, host, TypeGameStarted)
	require.True(t, started.Success)
	waitFor[RoomResultMessage](t, guest, TypeGameStarted)

	hostState := waitFor[GameStateMessage](t, host, TypeGameState)
	guestState := waitFor[GameStateMessage](t, guest, TypeGameState)
	require.Len(t, hostState.Units, 2)

	// both clients' get_state snapshots are identical
	sendCommand(t, host, map[string]any{"command": "get_state"})
	sendCommand(t, guest, map[string]any{"command": "get_state"})
	hostState = waitFor[GameStateMessage](t, host, TypeGameState)
	guestState = waitFor[GameStateMessage](t, guest, TypeGameState)
	require.Equal(t, hostState, guestState)

	room, ok := manager.Lobby().Room(created.RoomID)
	require.True(t, ok)
	require.NotNil(t, room.Engine)
}

func TestRoomScopedOwnership(t *testing.T) {
	_, server := newTestServer(t)

	host := dial(t, server, "alice")
	guest := dial(t, server, "bob")
	waitFor[GameStateMessage](t, host, TypeGameState)
	waitFor[GameStateMessage](t, guest, TypeGameState)

	sendCommand(t, host, map[string]any{
		"command": "lobby_create_room", "room_name": "R", "player_name": "Alice",
	})
	created := waitFor[RoomResultMessage](t, host, TypeRoomCreated)

	sendCommand(t, guest, map[string]any{
		"command": "lobby_join_room", "room_id": created.RoomID, "player_name": "Bob",
	})
	waitFor[RoomResultMessage](t, guest, TypeRoomJoined)

	sendCommand(t, host, map[string]any{"command": "lobby_start_game"})
	waitFor[RoomResultMessage](t, guest, TypeGameStarted)
	state := waitFor[GameStateMessage](t, guest, TypeGameState)

	// find the host's unit (owned by p0, the first joiner)
	var hostUnit string
	for name, u := range state.Units {
		if u.PlayerID == "p0" {
			hostUnit = name
		}
	}
	require.NotEmpty(t, hostUnit)

	// the guest cannot move the host's unit in any direction
	for _, direction := range []string{"up", "down", "left", "right"} {
		sendCommand(t, guest, map[string]any{
			"command": "move", "unit_name": hostUnit, "direction": direction,
		})
		result := waitFor[MoveResultMessage](t, guest, TypeMoveResult)
		require.False(t, result.Success, "direction %s", direction)
	}
}

func TestResetRequiresHostInsideRoom(t *testing.T) {
	_, server := newTestServer(t)

	host := dial(t, server, "alice")
	guest := dial(t, server, "bob")
	waitFor[GameStateMessage](t, host, TypeGameState)
	waitFor[GameStateMessage](t, guest, TypeGameState)

	sendCommand(t, host, map[string]any{
		"command": "lobby_create_room", "room_name": "R", "player_name": "Alice",
	})
	created := waitFor[RoomResultMessage](t, host, TypeRoomCreated)

	sendCommand(t, guest, map[string]any{
		"command": "lobby_join_room", "room_id": created.RoomID, "player_name": "Bob",
	})
	waitFor[RoomResultMessage](t, guest, TypeRoomJoined)

	sendCommand(t, host, map[string]any{"command": "lobby_start_game"})
	waitFor[RoomResultMessage](t, host, TypeGameStarted)

	sendCommand(t, guest, map[string]any{"command": "reset"})
	denied := waitFor[ResetResultMessage](t, guest, TypeResetResult)
	require.False(t, denied.Success)

	sendCommand(t, host, map[string]any{"command": "reset"})
	allowed := waitFor[ResetResultMessage](t, host, TypeResetResult)
	require.True(t, allowed.Success)
}

func TestHostLeavingReassignsHost(t *testing.T) {
	manager, server := newTestServer(t)

	host := dial(t, server, "alice")
	guest := dial(t, server, "bob")
	waitFor[GameStateMessage](t, host, TypeGameState)
	waitFor[GameStateMessage](t, guest, TypeGameState)

	sendCommand(t, host, map[string]any{
		"command": "lobby_create_room", "room_name": "R", "player_name": "Alice",
	})
	created := waitFor[RoomResultMessage](t, host, TypeRoomCreated)

	sendCommand(t, guest, map[string]any{
		"command": "lobby_join_room", "room_id": created.RoomID, "player_name": "Bob",
	})
	waitFor[RoomResultMessage](t, guest, TypeRoomJoined)

	sendCommand(t, host, map[string]any{"command": "lobby_leave_room"})
	left := waitFor[RoomResultMessage](t, host, TypeRoomLeft)
	require.True(t, left.Success)

	// the earliest remaining joiner is now host
	waitForLobbyState(t, guest, func(msg LobbyStateMessage) bool {
		return len(msg.Rooms) == 1 && msg.Rooms[0].HostName == "Bob"
	})

	// guest leaves too; the empty room is deleted
	sendCommand(t, guest, map[string]any{"command": "lobby_leave_room"})
	waitFor[RoomResultMessage](t, guest, TypeRoomLeft)

	require.Eventually(t, func() bool {
		_, ok := manager.Lobby().Room(created.RoomID)
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestSetPlayerInfo(t *testing.T) {
	_, server := newTestServer(t)

	conn := dial(t, server, "anon")
	waitFor[GameStateMessage](t, conn, TypeGameState)

	sendCommand(t, conn, map[string]any{
		"command": "lobby_create_room", "room_name": "R", "player_name": "Anon",
	})
	waitFor[RoomResultMessage](t, conn, TypeRoomCreated)

	sendCommand(t, conn, map[string]any{
		"command": "lobby_set_player_info", "player_name": "Alice", "player_color": "#123456",
	})

	updated := waitFor[RoomResultMessage](t, conn, TypePlayerInfoUpdated)
	require.True(t, updated.Success)

	lobbyState := waitForLobbyState(t, conn, func(msg LobbyStateMessage) bool {
		return len(msg.Rooms) == 1 && msg.Rooms[0].Players[0].Name == "Alice"
	})
	require.Equal(t, "#123456", lobbyState.Rooms[0].Players[0].Color)
}

func TestSetPlayerInfoUpdatesDefaultMatchPlayer(t *testing.T) {
	_, server := newTestServer(t)

	conn1 := dial(t, server, "alice")
	waitFor[GameStateMessage](t, conn1, TypeGameState)

	// the second connection is bound to a fresh engine player (p2)
	conn2 := dial(t, server, "bob")
	state := waitFor[GameStateMessage](t, conn2, TypeGameState)
	require.Len(t, state.Players, 3)

	sendCommand(t, conn2, map[string]any{
		"command": "lobby_set_player_info", "player_name": "Bobby", "player_color": "#ABCDEF",
	})

	updated := waitFor[RoomResultMessage](t, conn2, TypePlayerInfoUpdated)
	require.True(t, updated.Success)

	sendCommand(t, conn2, map[string]any{"command": "get_state"})
	state = waitFor[GameStateMessage](t, conn2, TypeGameState)
	require.Equal(t, "Bobby", state.Players["p2"].Name)
	require.Equal(t, "#ABCDEF", state.Players["p2"].Color)
}
