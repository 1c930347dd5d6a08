package pathfind

import (
	"testing"

	"github.com/talgya/firesim/internal/city"
)

// roadGrid returns a w x h grid where every cell is road.
func roadGrid(w, h int) *city.Grid {
	g := city.NewGrid(w, h)
	for i := range g.Cells {
		g.Cells[i].Terrain = city.TerrainRoad
	}
	return g
}

func TestFindPath_Straight(t *testing.T) {
	g := roadGrid(10, 1)
	path, ok := FindPath(g, city.Coord{X: 0}, city.Coord{X: 5}, city.PassageOnFoot)
	if !ok {
		t.Fatal("expected a path on open road")
	}
	if len(path) != 5 {
		t.Fatalf("path length = %d, want 5: %v", len(path), path)
	}
	if path[0] != (city.Coord{X: 1}) {
		t.Errorf("path should exclude start, first = %v", path[0])
	}
	if path[len(path)-1] != (city.Coord{X: 5}) {
		t.Errorf("path should end at goal, last = %v", path[len(path)-1])
	}
}

func TestFindPath_SameCell(t *testing.T) {
	g := roadGrid(3, 3)
	path, ok := FindPath(g, city.Coord{X: 1, Y: 1}, city.Coord{X: 1, Y: 1}, city.PassageOnFoot)
	if !ok || len(path) != 0 {
		t.Fatalf("same cell: path=%v ok=%v", path, ok)
	}
}

func TestFindPath_FourConnected(t *testing.T) {
	g := roadGrid(5, 5)
	path, ok := FindPath(g, city.Coord{}, city.Coord{X: 4, Y: 4}, city.PassageOnFoot)
	if !ok {
		t.Fatal("no path")
	}
	if len(path) != 8 {
		t.Fatalf("path length = %d, want manhattan distance 8", len(path))
	}
	prev := city.Coord{}
	for _, c := range path {
		dx, dy := c.X-prev.X, c.Y-prev.Y
		if dx*dx+dy*dy != 1 {
			t.Fatalf("non-orthogonal step %v -> %v", prev, c)
		}
		prev = c
	}
}

func TestFindPath_PrefersCheaperTerrain(t *testing.T) {
	// Row 0 is park (cost 2), row 1 is road (cost 1). A detour through road is cheaper.
	g := roadGrid(6, 2)
	for x := 1; x < 5; x++ {
		g.Get(city.Coord{X: x, Y: 0}).Terrain = city.TerrainPark
	}
	path, ok := FindPath(g, city.Coord{X: 0, Y: 0}, city.Coord{X: 5, Y: 0}, city.PassageOnFoot)
	if !ok {
		t.Fatal("no path")
	}
	if got := Cost(g, path); got != 7 {
		t.Errorf("path cost = %v, want 7 via the road row: %v", got, path)
	}
}

func TestFindPath_GoalInsideBuilding(t *testing.T) {
	g := roadGrid(5, 3)
	goal := city.Coord{X: 4, Y: 1}
	g.Cells[1*5+4] = city.NewBuildingCell(goal, city.BuildingHospital, city.DefaultCatalog())

	path, ok := FindPath(g, city.Coord{X: 0, Y: 1}, goal, city.PassageOnFoot)
	if !ok {
		t.Fatal("expected fallback path to building")
	}
	if path[len(path)-1] != goal {
		t.Fatalf("last waypoint = %v, want spliced goal %v", path[len(path)-1], goal)
	}
	if before := path[len(path)-2]; !g.Walkable(before, city.PassageOnFoot) {
		t.Errorf("step before entering building is unwalkable: %v", before)
	}
}

func TestFindPath_StartInsideBuilding(t *testing.T) {
	g := roadGrid(5, 3)
	start := city.Coord{X: 0, Y: 1}
	g.Cells[1*5+0] = city.NewBuildingCell(start, city.BuildingFireStation, city.DefaultCatalog())

	path, ok := FindPath(g, start, city.Coord{X: 4, Y: 1}, city.PassageOnFoot)
	if !ok {
		t.Fatal("expected path out of the building")
	}
	if path[0] == start {
		t.Fatal("path must not begin with the start cell")
	}
	if !g.Walkable(path[0], city.PassageOnFoot) {
		t.Errorf("first step %v unwalkable", path[0])
	}
}

func TestFindPath_EnclosedStart(t *testing.T) {
	// A lone road cell surrounded by water.
	g := city.NewGrid(3, 3)
	for i := range g.Cells {
		g.Cells[i].Terrain = city.TerrainWater
	}
	g.Get(city.Coord{X: 1, Y: 1}).Terrain = city.TerrainRoad
	g.Get(city.Coord{X: 2, Y: 2}).Terrain = city.TerrainRoad

	path, ok := FindPath(g, city.Coord{X: 1, Y: 1}, city.Coord{X: 2, Y: 2}, city.PassageOnFoot)
	if ok || path != nil {
		t.Fatalf("enclosed start: path=%v ok=%v, want no path", path, ok)
	}
}

func TestFindPath_NoWalkableNeighbour(t *testing.T) {
	g := city.NewGrid(3, 3) // all land
	g.Get(city.Coord{X: 2, Y: 2}).Terrain = city.TerrainRoad
	_, ok := FindPath(g, city.Coord{X: 0, Y: 0}, city.Coord{X: 2, Y: 2}, city.PassageOnFoot)
	if ok {
		t.Fatal("start with no walkable ring should fail")
	}
}

func TestFindPath_ResponderCrossesFire(t *testing.T) {
	g := roadGrid(5, 1)
	g.Get(city.Coord{X: 2}).FireLevel = 8

	if _, ok := FindPath(g, city.Coord{}, city.Coord{X: 4}, city.PassageOnFoot); ok {
		t.Fatal("on-foot path crossed an intense fire")
	}
	if _, ok := FindPath(g, city.Coord{}, city.Coord{X: 4}, city.PassageResponder); !ok {
		t.Fatal("responder path blocked by fire")
	}
}
