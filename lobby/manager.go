package lobby

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/gptgenerals/server/game"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomNotJoinable = errors.New("room is not accepting players")
	ErrAlreadyInRoom   = errors.New("connection already belongs to a room")
	ErrNotInRoom       = errors.New("connection is not in a room")
	ErrNotHost         = errors.New("only the host can do that")
	ErrGameNotStarted  = errors.New("the game has not started")
)

// Manager owns every room and the connection-to-room index. All methods
// are safe for concurrent use.
type Manager struct {
	mu        sync.RWMutex
	rooms     map[string]*Room
	roomOf    map[string]string // connection id -> room id
	engineCfg game.Config
}

// NewManager builds a lobby manager; engineCfg is the template used for
// every room's engine when its game starts.
func NewManager(engineCfg game.Config) *Manager {
	return &Manager{
		rooms:     make(map[string]*Room),
		roomOf:    make(map[string]string),
		engineCfg: engineCfg,
	}
}

// CreateRoom opens a new room with the requesting connection as host and
// sole member.
func (m *Manager) CreateRoom(name string, host Member) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.roomOf[host.ConnID]; ok {
		return nil, ErrAlreadyInRoom
	}

	room := newRoom(name, host)
	m.rooms[room.ID] = room
	m.roomOf[host.ConnID] = room.ID

	return room, nil
}

// JoinRoom adds the connection as a non-host member of a waiting room.
func (m *Manager) JoinRoom(roomID string, member Member) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.roomOf[member.ConnID]; ok {
		return nil, ErrAlreadyInRoom
	}

	room, ok := m.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}

	if room.Status != StatusWaiting {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotJoinable, roomID)
	}

	room.members = append(room.members, &member)
	m.roomOf[member.ConnID] = room.ID

	return room, nil
}

// LeaveRoom removes the connection from its room. An empty room is
// deleted; a departing host hands the role to the earliest remaining
// joiner. The returned room is nil when the connection was not in one.
func (m *Manager) LeaveRoom(connID string) (room *Room, deleted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	roomID, ok := m.roomOf[connID]
	if !ok {
		return nil, false
	}

	delete(m.roomOf, connID)

	room = m.rooms[roomID]
	if room == nil {
		return nil, false
	}

	if empty := room.removeMember(connID); empty {
		delete(m.rooms, roomID)
		return room, true
	}

	return room, false
}

// StartGame builds the room's engine, registering one player and one unit
// per member in join order. Only the host may start.
func (m *Manager) StartGame(connID string) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.startGameLocked(connID)
}

func (m *Manager) startGameLocked(connID string) (*Room, error) {
	room, ok := m.roomLocked(connID)
	if !ok {
		return nil, ErrNotInRoom
	}

	if room.HostID != connID {
		return nil, ErrNotHost
	}

	engine := game.New(m.engineCfg)

	for _, member := range room.members {
		member.PlayerID = engine.AddPlayer(member.PlayerName)
		if member.Color != "" {
			if err := engine.UpdatePlayer(member.PlayerID, "", member.Color); err != nil {
				return nil, err
			}
		}
		if _, err := engine.AddUnit(member.PlayerID); err != nil {
			return nil, err
		}
	}

	room.Engine = engine
	room.Status = StatusPlaying

	return room, nil
}

// ResetGame replaces a playing room's engine with a fresh one built the
// same way. Only the host may reset, and only once the game has started;
// a waiting room stays waiting.
func (m *Manager) ResetGame(connID string) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.roomLocked(connID)
	if !ok {
		return nil, ErrNotInRoom
	}

	if room.Status != StatusPlaying {
		return nil, ErrGameNotStarted
	}

	return m.startGameLocked(connID)
}

// SetPlayerInfo updates a member's display name and color, propagating to
// the engine player once the game has started.
func (m *Manager) SetPlayerInfo(connID, name, color string) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.roomLocked(connID)
	if !ok {
		return nil, ErrNotInRoom
	}

	member, ok := room.Member(connID)
	if !ok {
		return nil, ErrNotInRoom
	}

	if name != "" {
		member.PlayerName = name
	}
	if color != "" {
		member.Color = color
	}

	if room.Engine != nil && member.PlayerID != "" {
		if err := room.Engine.UpdatePlayer(member.PlayerID, name, color); err != nil {
			return nil, err
		}
	}

	return room, nil
}

// RoomOf returns the room a connection belongs to.
func (m *Manager) RoomOf(connID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.roomLocked(connID)
}

// Room returns a room by id.
func (m *Manager) Room(roomID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[roomID]
	return room, ok
}

func (m *Manager) roomLocked(connID string) (*Room, bool) {
	roomID, ok := m.roomOf[connID]
	if !ok {
		return nil, false
	}
	room, ok := m.rooms[roomID]
	return room, ok
}

// Rooms serializes every room for the lobby browser, oldest room first.
func (m *Manager) Rooms() []RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := lo.Map(lo.Values(m.rooms), func(r *Room, _ int) RoomInfo {
		return r.Info()
	})

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt != infos[j].CreatedAt {
			return infos[i].CreatedAt < infos[j].CreatedAt
		}
		return infos[i].ID < infos[j].ID
	})

	return infos
}
