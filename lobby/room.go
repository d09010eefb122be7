package lobby

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/gptgenerals/server/game"
)

// Status of a room's lifecycle.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Member binds a connection to its in-room identity. PlayerID is empty
// until the game starts.
type Member struct {
	ConnID     string
	PlayerName string
	Color      string
	PlayerID   string
}

// Room binds a set of connections to at most one engine instance. Members
// are kept in join order so host reassignment is deterministic: the
// earliest remaining joiner inherits the host role.
type Room struct {
	ID        string
	Name      string
	HostID    string // connection id of the host
	Status    Status
	CreatedAt time.Time

	members []*Member

	Engine *game.Engine
	Chat   *game.ChatHistory
}

func newRoom(name string, host Member) *Room {
	r := &Room{
		ID:        uuid.NewString(),
		Name:      name,
		HostID:    host.ConnID,
		Status:    StatusWaiting,
		CreatedAt: time.Now(),
		Chat:      game.NewChatHistory(),
	}
	r.members = append(r.members, &host)
	return r
}

// Member returns the member for a connection id.
func (r *Room) Member(connID string) (*Member, bool) {
	for _, m := range r.members {
		if m.ConnID == connID {
			return m, true
		}
	}
	return nil, false
}

// Members returns the member list in join order.
func (r *Room) Members() []*Member {
	return append([]*Member(nil), r.members...)
}

// ConnIDs returns the connection ids of all members in join order.
func (r *Room) ConnIDs() []string {
	return lo.Map(r.members, func(m *Member, _ int) string {
		return m.ConnID
	})
}

func (r *Room) hostName() string {
	if m, ok := r.Member(r.HostID); ok {
		return m.PlayerName
	}
	return ""
}

// removeMember drops a member, reassigning the host role when needed.
// Reports whether the room is now empty.
func (r *Room) removeMember(connID string) bool {
	r.members = lo.Reject(r.members, func(m *Member, _ int) bool {
		return m.ConnID == connID
	})

	if len(r.members) == 0 {
		return true
	}

	if r.HostID == connID {
		r.HostID = r.members[0].ConnID
	}

	return false
}

// PlayerInfo is the lobby-facing view of a room member.
type PlayerInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	IsHost bool   `json:"isHost"`
}

// RoomInfo is the serialized room summary broadcast to every connected
// client for the room browser.
type RoomInfo struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	HostID    string       `json:"hostId"`
	HostName  string       `json:"hostName"`
	Players   []PlayerInfo `json:"players"`
	Status    Status       `json:"status"`
	CreatedAt int64        `json:"createdAt"`
}

// Info builds the serialized summary of the room.
func (r *Room) Info() RoomInfo {
	return RoomInfo{
		ID:       r.ID,
		Name:     r.Name,
		HostID:   r.HostID,
		HostName: r.hostName(),
		Players: lo.Map(r.members, func(m *Member, _ int) PlayerInfo {
			return PlayerInfo{
				ID:     m.ConnID,
				Name:   m.PlayerName,
				Color:  m.Color,
				IsHost: m.ConnID == r.HostID,
			}
		}),
		Status:    r.Status,
		CreatedAt: r.CreatedAt.Unix(),
	}
}
