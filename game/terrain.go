package game

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Terrain is the type of a single map cell.
type Terrain int

const (
	Land Terrain = iota
	Water
)

// Symbol returns the single-character map symbol for the terrain.
func (t Terrain) Symbol() string {
	switch t {
	case Water:
		return "~"
	default:
		return "."
	}
}

func (t Terrain) String() string {
	switch t {
	case Water:
		return "WATER"
	default:
		return "LAND"
	}
}

func (t Terrain) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Symbol())
}

// UnmarshalJSON accepts both the symbol form (".", "~") and the enum name
// form ("LAND", "WATER") since older servers serialized the names.
func (t *Terrain) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch strings.ToUpper(s) {
	case ".", "LAND":
		*t = Land
	case "~", "WATER":
		*t = Water
	default:
		return fmt.Errorf("unknown terrain value %q", s)
	}

	return nil
}

// Grid is a row-major terrain grid addressed as grid[y][x], with y=0 at
// the bottom. Rendering inverts the row order.
type Grid [][]Terrain

func (g Grid) Width() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

func (g Grid) Height() int {
	return len(g)
}

// Contains reports whether the position is within grid bounds.
func (g Grid) Contains(p Position) bool {
	return p.X >= 0 && p.X < g.Width() && p.Y >= 0 && p.Y < g.Height()
}

// At returns the terrain at p. The position must be in bounds.
func (g Grid) At(p Position) Terrain {
	return g[p.Y][p.X]
}

// Copy returns a deep copy of the grid.
func (g Grid) Copy() Grid {
	out := make(Grid, len(g))
	for y, row := range g {
		out[y] = make([]Terrain, len(row))
		copy(out[y], row)
	}
	return out
}

// Position is an (x, y) cell address on the grid.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Position) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}
