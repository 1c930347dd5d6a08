// Package pathfind implements grid A* over the walkable subset of the city,
// with a one-ring fallback for starts and goals inside solid cells.
package pathfind

import (
	"container/heap"
	"math"

	"github.com/talgya/firesim/internal/city"
)

type pathNode struct {
	c      city.Coord
	g, h   float64
	seq    int
	parent *pathNode
	index  int // heap index
}

type openList []*pathNode

func (ol openList) Len() int { return len(ol) }
func (ol openList) Less(i, j int) bool {
	fi, fj := ol[i].g+ol[i].h, ol[j].g+ol[j].h
	if fi != fj {
		return fi < fj
	}
	if ol[i].g != ol[j].g {
		return ol[i].g < ol[j].g
	}
	return ol[i].seq < ol[j].seq
}
func (ol openList) Swap(i, j int)       { ol[i], ol[j] = ol[j], ol[i]; ol[i].index = i; ol[j].index = j }
func (ol *openList) Push(x interface{}) { n := x.(*pathNode); n.index = len(*ol); *ol = append(*ol, n) }
func (ol *openList) Pop() interface{} {
	old := *ol
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*ol = old[:len(old)-1]
	return n
}

func manhattan(a, b city.Coord) float64 {
	return math.Abs(float64(a.X-b.X)) + math.Abs(float64(a.Y-b.Y))
}

// nearestWalkable returns the walkable cell in the 8-ring around c closest to toward.
func nearestWalkable(g *city.Grid, c, toward city.Coord, p city.Passage) (city.Coord, bool) {
	best := math.Inf(1)
	var out city.Coord
	found := false
	for _, d := range city.Neighbors8 {
		n := c.Add(d.X, d.Y)
		if !g.Walkable(n, p) {
			continue
		}
		dist := math.Hypot(float64(toward.X-n.X), float64(toward.Y-n.Y))
		if dist < best {
			best = dist
			out = n
			found = true
		}
	}
	return out, found
}

// FindPath returns the waypoints from start (exclusive) to goal (inclusive).
// If start or goal is unwalkable the search runs from/to the nearest walkable
// neighbour and the true endpoint is spliced back on as an extra step.
// ok is false when no route exists; start == goal yields an empty path.
func FindPath(g *city.Grid, start, goal city.Coord, p city.Passage) ([]city.Coord, bool) {
	if start == goal {
		return nil, true
	}

	from, to := start, goal
	if !g.Walkable(from, p) {
		n, ok := nearestWalkable(g, from, goal, p)
		if !ok {
			return nil, false
		}
		from = n
	}
	if !g.Walkable(to, p) {
		n, ok := nearestWalkable(g, to, from, p)
		if !ok {
			return nil, false
		}
		to = n
	}

	if from == to {
		var path []city.Coord
		if from != start {
			path = append(path, from)
		}
		if to != goal {
			path = append(path, goal)
		}
		return path, len(path) > 0
	}

	end := search(g, from, to, p)
	if end == nil {
		return nil, false
	}

	path := buildPath(end)
	if path[0] == start {
		path = path[1:]
	}
	if len(path) > 0 && path[len(path)-1] != goal {
		path = append(path, goal)
	}
	return path, true
}

func search(g *city.Grid, from, to city.Coord, p city.Passage) *pathNode {
	key := func(c city.Coord) int { return c.Y*g.Width + c.X }

	seq := 0
	start := &pathNode{c: from, h: manhattan(from, to)}
	ol := &openList{start}
	heap.Init(ol)

	closed := make(map[int]bool)
	best := make(map[int]*pathNode)
	best[key(from)] = start

	for ol.Len() > 0 {
		cur := heap.Pop(ol).(*pathNode)
		if cur.c == to {
			return cur
		}
		k := key(cur.c)
		if closed[k] {
			continue
		}
		closed[k] = true

		for _, d := range city.Neighbors4 {
			n := cur.c.Add(d.X, d.Y)
			if !g.Walkable(n, p) {
				continue
			}
			nk := key(n)
			if closed[nk] {
				continue
			}
			ng := cur.g + g.Get(n).MoveCost()
			if prev, ok := best[nk]; ok && ng >= prev.g {
				continue
			}
			seq++
			node := &pathNode{c: n, g: ng, h: manhattan(n, to), seq: seq, parent: cur}
			best[nk] = node
			heap.Push(ol, node)
		}
	}
	return nil
}

func buildPath(end *pathNode) []city.Coord {
	var cells []city.Coord
	for n := end; n != nil; n = n.parent {
		cells = append(cells, n.c)
	}
	// Reverse
	for i, j := 0, len(cells)-1; i < j; i, j = i+1, j-1 {
		cells[i], cells[j] = cells[j], cells[i]
	}
	return cells
}

// Cost sums the move cost of every waypoint in path.
func Cost(g *city.Grid, path []city.Coord) float64 {
	total := 0.0
	for _, c := range path {
		if cell := g.Get(c); cell != nil {
			total += cell.MoveCost()
		}
	}
	return total
}
