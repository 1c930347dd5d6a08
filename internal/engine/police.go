package engine

import (
	"github.com/talgya/firesim/internal/agents"
	"github.com/talgya/firesim/internal/city"
)

const (
	ArrestRange      = 2.0 // Euclidean cells between officer and arsonist
	ArrestHoldTicks  = 2
	PoliceScanRadius = 7 // Half-width of the square scanned for fires
)

func (s *Simulation) updatePolice(tc *tickContext, a *agents.Agent) {
	if a.State == agents.StateApprehending {
		a.Timer--
		if a.Timer <= 0 {
			a.State = agents.StatePatrolling
		}
		s.scanForFires(tc, a)
		return
	}

	if suspect := s.arrestable(a); suspect != nil {
		suspect.State = agents.StateApprehended
		suspect.Path = nil
		a.State = agents.StateApprehending
		a.Timer = ArrestHoldTicks
		a.Path = nil
		tc.arrests++
		tc.emit(CategoryArrest, "Arsonist with %s profile apprehended at %v.",
			suspect.Arsonist().Profile, suspect.Cell())
		return
	}

	if !a.HasPath() {
		s.patrol(a)
		a.State = agents.StatePatrolling
	}
	s.scanForFires(tc, a)
}

// arrestable returns the first free arsonist within arrest range of the officer.
func (s *Simulation) arrestable(officer *agents.Agent) *agents.Agent {
	c := officer.Cell()
	for _, a := range s.Agents {
		if a.Kind != agents.KindArsonist || a.Apprehended() {
			continue
		}
		if a.DistanceTo(float64(c.X), float64(c.Y)) < ArrestRange {
			return a
		}
	}
	return nil
}

// scanForFires reports the first burning cell in the officer's square and
// stops there, so a fire that is already known shadows the rest of the
// square for that tick.
func (s *Simulation) scanForFires(tc *tickContext, a *agents.Agent) {
	from := a.Cell()
	for dx := -PoliceScanRadius; dx <= PoliceScanRadius; dx++ {
		for dy := -PoliceScanRadius; dy <= PoliceScanRadius; dy++ {
			c := from.Add(dx, dy)
			if cell := s.Grid.Get(c); cell != nil && cell.IsBurning() {
				s.report(tc, c)
				return
			}
		}
	}
}

func arterial(c *city.Cell) bool {
	return c.Road == city.RoadHighway || c.Road == city.RoadMain
}

// patrol picks the next patrol destination.
func (s *Simulation) patrol(a *agents.Agent) {
	dest, ok := city.Coord{}, false
	if s.Params.Patrol.Strategy == PatrolRisk {
		dest, ok = s.riskPatrolTarget(a.Cell())
	}
	if !ok {
		dest, ok = s.Grid.RandomCell(s.rng, arterial)
	}
	if ok {
		s.pathTo(a, dest, city.PassageOnFoot)
	}
}

// riskPatrolTarget samples road cells around from and scores each by the
// mean effective arson risk nearby plus a random term.
func (s *Simulation) riskPatrolTarget(from city.Coord) (city.Coord, bool) {
	pp := s.Params.Patrol
	r := pp.ScanRadius
	if r <= 0 || pp.Samples <= 0 {
		return city.Coord{}, false
	}

	best, bestScore, found := city.Coord{}, 0.0, false
	for i := 0; i < pp.Samples; i++ {
		c := from.Add(s.rng.Intn(2*r+1)-r, s.rng.Intn(2*r+1)-r)
		cell := s.Grid.Get(c)
		if cell == nil || cell.Terrain != city.TerrainRoad {
			continue
		}
		score := s.meanRisk(c, pp.RiskRadius)*pp.RiskWeight + s.rng.Float64()*pp.RandomWeight
		if !found || score > bestScore {
			best, bestScore, found = c, score, true
		}
	}
	return best, found
}

func (s *Simulation) meanRisk(c city.Coord, r int) float64 {
	sum, n := 0.0, 0
	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			if cell := s.Grid.Get(c.Add(dx, dy)); cell != nil {
				sum += cell.EffectiveArsonRisk()
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
