package engine

import (
	"math"

	"github.com/talgya/firesim/internal/agents"
	"github.com/talgya/firesim/internal/city"
	"github.com/talgya/firesim/internal/pathfind"
)

// tickContext carries the per-tick event buffer and counters through every
// phase of a Step. It is discarded once the stats are folded in.
type tickContext struct {
	now        uint64
	hour       int
	congestion float64

	events []Event

	casualties   int
	destroyed    int
	extinguished int
	started      int
	arrests      int

	firesByProfile [agents.NumProfiles]int
}

func (s *Simulation) newTick() *tickContext {
	hour := HourOf(s.Tick)
	return &tickContext{
		now:        s.Tick,
		hour:       hour,
		congestion: s.Params.Scenario.Congestion(hour),
	}
}

func (tc *tickContext) emit(category, format string, args ...any) {
	tc.events = append(tc.events, newEvent(tc.now, category, format, args...))
}

// report files the fire at c unless it is already known.
func (s *Simulation) report(tc *tickContext, c city.Coord) {
	if !s.Fires.Report(c) {
		return
	}
	if cell := s.Grid.Get(c); cell != nil && cell.Controls.Has(city.ControlFireAlarm) {
		tc.emit(CategoryReport, "AUTOMATED ALARM: Fire detected at %v.", c)
		return
	}
	tc.emit(CategoryReport, "Fire reported at %v.", c)
}

// pathTo replaces a's path with a route to goal. A failed search leaves no path.
func (s *Simulation) pathTo(a *agents.Agent, goal city.Coord, p city.Passage) bool {
	return a.SetPath(pathfind.FindPath(s.Grid, a.Cell(), goal, p))
}

func walkable(c *city.Cell) bool {
	return c.Walkable(city.PassageOnFoot)
}

// wander sends a pathless agent towards a random walkable cell.
func (s *Simulation) wander(a *agents.Agent) {
	if a.HasPath() {
		return
	}
	if dest, ok := s.Grid.RandomCell(s.rng, walkable); ok {
		s.pathTo(a, dest, city.PassageOnFoot)
	}
}

func distance(a, b city.Coord) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}

// nearest returns the candidate closest to from, first wins on ties.
func nearest(from city.Coord, candidates []city.Coord) (city.Coord, bool) {
	best, bestD, found := city.Coord{}, math.Inf(1), false
	for _, c := range candidates {
		if d := distance(from, c); d < bestD {
			best, bestD, found = c, d, true
		}
	}
	return best, found
}
