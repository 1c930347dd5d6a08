package city

import (
	"fmt"
	"math"
)

// Passage selects which walkability rule applies to a mover.
type Passage uint8

const (
	PassageOnFoot    Passage = iota // Civilians, police, arsonists, off-duty firefighters
	PassageResponder                // Firefighters responding to or fighting a fire
)

// Fire levels above this block ordinary movers.
const MaxWalkableFire = 3.0

// Grid holds the complete city layout, row-major.
type Grid struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Cells  []Cell `json:"cells"`
}

// NewGrid creates a grid of plain land cells.
func NewGrid(width, height int) *Grid {
	g := &Grid{
		Width:  width,
		Height: height,
		Cells:  make([]Cell, width*height),
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g.Cells[y*width+x] = Cell{
				Coord:        Coord{X: x, Y: y},
				Terrain:      TerrainLand,
				Flammability: DefaultFlammability,
				ArsonRisk:    DefaultArsonRisk,
			}
		}
	}
	return g
}

// InBounds returns true if the coordinate lies on the grid.
func (g *Grid) InBounds(c Coord) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < g.Width && c.Y < g.Height
}

// Get returns the cell at the given coordinate, or nil if out of bounds.
func (g *Grid) Get(c Coord) *Cell {
	if !g.InBounds(c) {
		return nil
	}
	return &g.Cells[c.Y*g.Width+c.X]
}

// At is Get for a real-valued position, flooring each axis.
func (g *Grid) At(x, y float64) *Cell {
	return g.Get(CellOf(x, y))
}

// CellOf maps a continuous position to the cell containing it.
func CellOf(x, y float64) Coord {
	return Coord{X: int(math.Floor(x)), Y: int(math.Floor(y))}
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	out := &Grid{Width: g.Width, Height: g.Height, Cells: make([]Cell, len(g.Cells))}
	copy(out.Cells, g.Cells)
	for i := range out.Cells {
		if t := out.Cells[i].IgnitedAt; t != nil {
			v := *t
			out.Cells[i].IgnitedAt = &v
		}
	}
	return out
}

// Find returns the coordinates of every cell matching the filter, in row-major order.
func (g *Grid) Find(filter func(*Cell) bool) []Coord {
	var out []Coord
	for i := range g.Cells {
		if filter(&g.Cells[i]) {
			out = append(out, g.Cells[i].Coord)
		}
	}
	return out
}

// First returns the first cell in row-major order matching the filter.
func (g *Grid) First(filter func(*Cell) bool) (Coord, bool) {
	for i := range g.Cells {
		if filter(&g.Cells[i]) {
			return g.Cells[i].Coord, true
		}
	}
	return Coord{}, false
}

// Walkable reports whether a mover with the given passage may stand on c.
// Cells off the grid are never walkable.
func (g *Grid) Walkable(c Coord, p Passage) bool {
	cell := g.Get(c)
	if cell == nil {
		return false
	}
	return cell.Walkable(p)
}

// Walkable applies the terrain and fire rules to a single cell.
func (c *Cell) Walkable(p Passage) bool {
	if !(c.Terrain == TerrainRoad || c.Terrain == TerrainPark || c.IsTransit()) {
		return false
	}
	if p == PassageResponder {
		return !c.BurntOut
	}
	return c.FireLevel <= MaxWalkableFire
}

// MoveCost is the pathfinding edge weight for entering the cell.
func (c *Cell) MoveCost() float64 {
	switch {
	case c.Terrain == TerrainRoad:
		return 1
	case c.IsTransit():
		return 1.5
	case c.Terrain == TerrainPark:
		return 2
	default:
		return math.Inf(1)
	}
}

// BurningCount returns the number of cells currently on fire.
func (g *Grid) BurningCount() int {
	n := 0
	for i := range g.Cells {
		if g.Cells[i].IsBurning() {
			n++
		}
	}
	return n
}

// TerrainCounts returns a summary of terrain type distribution.
func (g *Grid) TerrainCounts() map[Terrain]int {
	counts := make(map[Terrain]int)
	for i := range g.Cells {
		counts[g.Cells[i].Terrain]++
	}
	return counts
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(%dx%d)", g.Width, g.Height)
}

// Neighbors4 lists the orthogonal offsets in the order spread and search visit them.
var Neighbors4 = [4]Coord{{X: -1, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: -1}, {X: 0, Y: 1}}

// Neighbors8 lists the ring of offsets around a cell.
var Neighbors8 = [8]Coord{
	{X: -1, Y: -1}, {X: -1, Y: 0}, {X: -1, Y: 1},
	{X: 0, Y: -1}, {X: 0, Y: 1},
	{X: 1, Y: -1}, {X: 1, Y: 0}, {X: 1, Y: 1},
}

// Intn is the slice of math/rand used to pick locations.
type Intn interface {
	Intn(n int) int
}

// RandomCell samples up to 1000 random cells for one matching the filter, then
// falls back to the first match in row-major order.
func (g *Grid) RandomCell(rng Intn, filter func(*Cell) bool) (Coord, bool) {
	if g.Width <= 0 || g.Height <= 0 {
		return Coord{}, false
	}
	for attempt := 0; attempt < 1000; attempt++ {
		c := Coord{X: rng.Intn(g.Width), Y: rng.Intn(g.Height)}
		if filter(g.Get(c)) {
			return c, true
		}
	}
	return g.First(filter)
}
