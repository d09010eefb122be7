package game

import (
	"fmt"
	"math/rand"
	"strings"
)

// GenerateMap builds a random grid where each cell is water with the given
// probability and land otherwise.
func GenerateMap(width, height int, waterProbability float64, rng *rand.Rand) Grid {
	grid := make(Grid, height)
	for y := 0; y < height; y++ {
		row := make([]Terrain, width)
		for x := 0; x < width; x++ {
			if rng.Float64() < waterProbability {
				row[x] = Water
			} else {
				row[x] = Land
			}
		}
		grid[y] = row
	}
	return grid
}

// EmptyMap builds a grid of all land tiles.
func EmptyMap(width, height int) Grid {
	grid := make(Grid, height)
	for y := 0; y < height; y++ {
		grid[y] = make([]Terrain, width)
	}
	return grid
}

// RandomLandPositions picks up to count random land cells that are not in
// the excluded list. If fewer free land cells exist than requested, all of
// them are returned.
func RandomLandPositions(grid Grid, count int, excluded []Position, rng *rand.Rand) []Position {
	taken := make(map[Position]bool, len(excluded))
	for _, p := range excluded {
		taken[p] = true
	}

	var free []Position
	for y := 0; y < grid.Height(); y++ {
		for x := 0; x < grid.Width(); x++ {
			p := Position{X: x, Y: y}
			if grid.At(p) == Land && !taken[p] {
				free = append(free, p)
			}
		}
	}

	if len(free) <= count {
		return free
	}

	rng.Shuffle(len(free), func(i, j int) {
		free[i], free[j] = free[j], free[i]
	})

	return free[:count]
}

// Render draws the grid as text with a column header and row numbers,
// overlaying unit letters and coin markers on the terrain. Rows are drawn
// top-down from the highest y so that y=0 ends up at the bottom.
func Render(grid Grid, units map[string]Position, coins []Position) string {
	width := grid.Width()
	height := grid.Height()

	coinSet := make(map[Position]bool, len(coins))
	for _, p := range coins {
		coinSet[p] = true
	}

	unitAt := make(map[Position]string, len(units))
	for name, p := range units {
		unitAt[p] = name
	}

	var b strings.Builder

	b.WriteString("  ")
	for x := 0; x < width; x++ {
		fmt.Fprintf(&b, "%d", x%10)
	}

	for y := height - 1; y >= 0; y-- {
		fmt.Fprintf(&b, "\n%d ", y%10)
		for x := 0; x < width; x++ {
			p := Position{X: x, Y: y}
			switch {
			case unitAt[p] != "":
				b.WriteString(unitAt[p])
			case coinSet[p]:
				b.WriteString("c")
			default:
				b.WriteString(grid.At(p).Symbol())
			}
		}
	}

	return b.String()
}
