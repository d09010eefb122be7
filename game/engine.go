package game

import (
	"fmt"
	"math/rand"
	"time"
)

// Player is a participant in a match.
type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Unit is a player-owned token on the grid, identified by a single letter.
type Unit struct {
	Name     string   `json:"name"`
	Position Position `json:"position"`
	PlayerID string   `json:"player_id"`
}

// Direction of a unit move. Up increases y, down decreases it.
type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

// ParseDirection converts a wire string into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Up, Down, Left, Right:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("%w: unknown direction %q", ErrInvalidMove, s)
	}
}

func (d Direction) delta() (dx, dy int) {
	switch d {
	case Up:
		return 0, 1
	case Down:
		return 0, -1
	case Left:
		return -1, 0
	default:
		return 1, 0
	}
}

// Snapshot is an immutable deep copy of match state taken at a turn
// boundary.
type Snapshot struct {
	MapGrid       Grid              `json:"map_grid"`
	Units         map[string]Unit   `json:"units"`
	Players       map[string]Player `json:"players"`
	CoinPositions []Position        `json:"coin_positions"`
	Turn          int               `json:"turn"`
}

// defaultColors is the palette cycled over as players are added.
var defaultColors = []string{
	"#F44336", // red
	"#2196F3", // blue
	"#4CAF50", // green
	"#FF9800", // orange
	"#9C27B0", // purple
	"#00BCD4", // cyan
	"#FFEB3B", // yellow
	"#795548", // brown
}

// Config controls engine construction.
type Config struct {
	Width            int
	Height           int
	WaterProbability float64
	NumCoins         int

	// MaxHistory bounds the snapshot history; older snapshots are dropped
	// from the front once the limit is reached. Zero means unbounded.
	MaxHistory int

	// Grid, when set, is used instead of generating terrain.
	Grid Grid

	// Coins, when set, is used instead of sampling coin positions.
	Coins []Position

	// Seed for the engine's random source. Zero seeds from the clock.
	Seed int64
}

// DefaultConfig matches the original server defaults.
func DefaultConfig() Config {
	return Config{
		Width:            10,
		Height:           10,
		WaterProbability: 0.2,
		NumCoins:         5,
		MaxHistory:       256,
	}
}

// Engine is the authoritative per-match state: map, players, units, coins
// and the turn counter. It is not synchronized; callers serialize access.
type Engine struct {
	grid    Grid
	players map[string]*Player
	units   map[string]*Unit
	coins   []Position

	turn       int
	history    []Snapshot
	maxHistory int

	nextUnit int
	rng      *rand.Rand
}

// New builds an engine with terrain and coins in place but no players or
// units; callers register those (the default match seeds two players, a
// lobby room seeds one per member).
func New(cfg Config) *Engine {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	e := &Engine{
		players:    make(map[string]*Player),
		units:      make(map[string]*Unit),
		maxHistory: cfg.MaxHistory,
		rng:        rand.New(rand.NewSource(seed)),
	}

	if cfg.Grid != nil {
		e.grid = cfg.Grid.Copy()
	} else {
		e.grid = GenerateMap(cfg.Width, cfg.Height, cfg.WaterProbability, e.rng)
	}

	if cfg.Coins != nil {
		e.coins = append([]Position(nil), cfg.Coins...)
	} else {
		e.coins = RandomLandPositions(e.grid, cfg.NumCoins, nil, e.rng)
	}

	e.saveState()

	return e
}

// AddPlayer registers a new player and returns its id. Ids are sequential
// (p0, p1, ...) and colors cycle through the default palette.
func (e *Engine) AddPlayer(name string) string {
	id := fmt.Sprintf("p%d", len(e.players))
	e.players[id] = &Player{
		ID:    id,
		Name:  name,
		Color: defaultColors[len(e.players)%len(defaultColors)],
	}
	return id
}

// UpdatePlayer changes a player's name and/or color. Empty arguments leave
// the corresponding field untouched.
func (e *Engine) UpdatePlayer(id, name, color string) error {
	p, ok := e.players[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, id)
	}
	if name != "" {
		p.Name = name
	}
	if color != "" {
		p.Color = color
	}
	return nil
}

// AddUnit spawns a unit for the player on a random free land cell and
// returns its single-letter name.
func (e *Engine) AddUnit(playerID string) (string, error) {
	if _, ok := e.players[playerID]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID)
	}

	if e.nextUnit >= 26 {
		return "", ErrUnitNamesExhausted
	}

	excluded := make([]Position, 0, len(e.units))
	for _, u := range e.units {
		excluded = append(excluded, u.Position)
	}

	positions := RandomLandPositions(e.grid, 1, excluded, e.rng)
	if len(positions) == 0 {
		return "", ErrNoAvailablePosition
	}

	name := string(rune('A' + e.nextUnit))
	e.nextUnit++

	e.units[name] = &Unit{Name: name, Position: positions[0], PlayerID: playerID}

	return name, nil
}

// PlaceUnit forces a unit onto a specific cell. Used for scenario setup;
// normal movement goes through MoveUnit.
func (e *Engine) PlaceUnit(name string, p Position) error {
	u, ok := e.units[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUnit, name)
	}
	if !e.grid.Contains(p) {
		return fmt.Errorf("%w: %s is out of bounds", ErrInvalidMove, p)
	}
	u.Position = p
	return nil
}

// MoveUnit moves a unit one cell in the given direction. When playerID is
// non-empty the unit must belong to that player. The target must be an
// in-bounds land cell; a coin on the target cell is collected. Another
// unit on the target cell does not block the move: co-location is allowed.
func (e *Engine) MoveUnit(unitName string, direction Direction, playerID string) error {
	u, ok := e.units[unitName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUnit, unitName)
	}

	if playerID != "" && u.PlayerID != playerID {
		return fmt.Errorf("%w: %s", ErrNotYourUnit, unitName)
	}

	dx, dy := direction.delta()
	target := Position{X: u.Position.X + dx, Y: u.Position.Y + dy}

	if !e.grid.Contains(target) {
		return fmt.Errorf("%w: %s is out of bounds", ErrInvalidMove, target)
	}

	if e.grid.At(target) == Water {
		return fmt.Errorf("%w: %s is water", ErrInvalidMove, target)
	}

	u.Position = target
	e.collectCoin(target)

	return nil
}

func (e *Engine) collectCoin(p Position) {
	for i, c := range e.coins {
		if c == p {
			e.coins = append(e.coins[:i], e.coins[i+1:]...)
			return
		}
	}
}

// NextTurn advances the match clock and appends a snapshot to history.
func (e *Engine) NextTurn() {
	e.turn++
	e.saveState()
}

func (e *Engine) saveState() {
	e.history = append(e.history, e.Snapshot())
	if e.maxHistory > 0 && len(e.history) > e.maxHistory {
		e.history = e.history[len(e.history)-e.maxHistory:]
	}
}

// Snapshot returns a deep copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	units := make(map[string]Unit, len(e.units))
	for name, u := range e.units {
		units[name] = *u
	}

	players := make(map[string]Player, len(e.players))
	for id, p := range e.players {
		players[id] = *p
	}

	return Snapshot{
		MapGrid:       e.grid.Copy(),
		Units:         units,
		Players:       players,
		CoinPositions: append([]Position(nil), e.coins...),
		Turn:          e.turn,
	}
}

// History returns the recorded snapshots, oldest first.
func (e *Engine) History() []Snapshot {
	return append([]Snapshot(nil), e.history...)
}

// Turn returns the current turn number.
func (e *Engine) Turn() int {
	return e.turn
}

// Width returns the grid width.
func (e *Engine) Width() int {
	return e.grid.Width()
}

// Height returns the grid height.
func (e *Engine) Height() int {
	return e.grid.Height()
}

// Unit returns a copy of the named unit.
func (e *Engine) Unit(name string) (Unit, bool) {
	u, ok := e.units[name]
	if !ok {
		return Unit{}, false
	}
	return *u, true
}

// Units returns a copy of all units keyed by name.
func (e *Engine) Units() map[string]Unit {
	out := make(map[string]Unit, len(e.units))
	for name, u := range e.units {
		out[name] = *u
	}
	return out
}

// Players returns a copy of all players keyed by id.
func (e *Engine) Players() map[string]Player {
	out := make(map[string]Player, len(e.players))
	for id, p := range e.players {
		out[id] = *p
	}
	return out
}

// Coins returns a copy of the remaining coin positions.
func (e *Engine) Coins() []Position {
	return append([]Position(nil), e.coins...)
}

// RenderMap draws the current state as text.
func (e *Engine) RenderMap() string {
	positions := make(map[string]Position, len(e.units))
	for name, u := range e.units {
		positions[name] = u.Position
	}
	return Render(e.grid, positions, e.coins)
}
