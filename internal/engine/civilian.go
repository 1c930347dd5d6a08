package engine

import (
	"math"

	"github.com/talgya/firesim/internal/agents"
	"github.com/talgya/firesim/internal/city"
)

const (
	PerceptionRadius = 8
	FleeDistance     = 5 // Multiplier on the vector away from the fires

	RiotJoinChance  = 0.7
	RiotHoldRadius  = 20.0
	EventJoinChance = 0.7

	WorkShopChance    = 0.2
	EveningShopChance = 0.1
	ShopRetryTicks    = 100

	StayTicksMin      = 100
	StayTicksSpread   = 200
	BrowseTicksMin    = 20
	BrowseTicksSpread = 50

	WorkStart, WorkEnd             = 8, 18
	NightShiftStart, NightShiftEnd = 20, 6
)

func (s *Simulation) updateCivilian(tc *tickContext, a *agents.Agent) {
	if a.Trapped {
		return
	}
	res := a.Resident()
	from := a.Cell()

	if fires := s.perceiveFires(tc, from); len(fires) > 0 {
		s.flee(a, from, fires)
		return
	}
	if a.State == agents.StateFleeing {
		a.State = agents.StatePatrolling
	}

	if !a.HasPath() {
		switch a.State {
		case agents.StateGoingToWork:
			a.State = agents.StateWorking
			a.Timer = StayTicksMin + s.rng.Intn(StayTicksSpread)
		case agents.StateGoingHome:
			a.State = agents.StateAtHome
			a.Timer = StayTicksMin + s.rng.Intn(StayTicksSpread)
		case agents.StateShopping:
			a.State = agents.StatePatrolling
			a.Timer = BrowseTicksMin + s.rng.Intn(BrowseTicksSpread)
		}
	}
	if a.Timer > 0 {
		a.Timer--
	}

	switch s.Params.Scenario {
	case ScenarioRiot:
		if s.Hotspot != nil && res.Routine == agents.RoutineCommuter && s.rng.Float64() < RiotJoinChance {
			if a.State != agents.StateFleeing && a.State != agents.StatePatrolling {
				a.State = agents.StatePatrolling
				s.pathTo(a, *s.Hotspot, city.PassageOnFoot)
			}
			if distance(from, *s.Hotspot) < RiotHoldRadius {
				a.Path = nil
			}
			return
		}
	case ScenarioLargeEvent:
		if s.Venue != nil && res.Routine != agents.RoutineStayAtHome && s.rng.Float64() < EventJoinChance {
			if a.State != agents.StatePatrolling || !a.HasPath() {
				if s.pathTo(a, *s.Venue, city.PassageOnFoot) {
					a.State = agents.StatePatrolling
				}
			}
			return
		}
	}

	s.followRoutine(tc, a, res, from)

	if !a.HasPath() && (a.State == agents.StateIdle || a.State == agents.StatePatrolling) {
		s.wander(a)
	}
}

// perceiveFires reports and returns every burning cell within sight.
func (s *Simulation) perceiveFires(tc *tickContext, from city.Coord) []city.Coord {
	var fires []city.Coord
	for dx := -PerceptionRadius; dx <= PerceptionRadius; dx++ {
		for dy := -PerceptionRadius; dy <= PerceptionRadius; dy++ {
			c := from.Add(dx, dy)
			if cell := s.Grid.Get(c); cell != nil && cell.IsBurning() {
				fires = append(fires, c)
				s.report(tc, c)
			}
		}
	}
	return fires
}

// flee heads away from the centroid of the visible fires. The route is
// recomputed every tick so a spreading fire redirects the civilian.
func (s *Simulation) flee(a *agents.Agent, from city.Coord, fires []city.Coord) {
	a.State = agents.StateFleeing

	var sx, sy float64
	for _, f := range fires {
		sx += float64(f.X)
		sy += float64(f.Y)
	}
	n := float64(len(fires))
	fx, fy := float64(from.X), float64(from.Y)
	target := city.Coord{
		X: clampInt(int(math.Round(fx+(fx-sx/n)*FleeDistance)), 0, s.Grid.Width-1),
		Y: clampInt(int(math.Round(fy+(fy-sy/n)*FleeDistance)), 0, s.Grid.Height-1),
	}
	if s.pathTo(a, target, city.PassageOnFoot) && a.HasPath() {
		return
	}
	if dest, ok := s.Grid.RandomCell(s.rng, walkable); ok {
		s.pathTo(a, dest, city.PassageOnFoot)
	}
}

func (s *Simulation) followRoutine(tc *tickContext, a *agents.Agent, res *agents.Resident, from city.Coord) {
	switch res.Routine {
	case agents.RoutineStayAtHome:
		if a.State != agents.StateAtHome && a.State != agents.StateGoingHome {
			s.pathTo(a, res.Home, city.PassageOnFoot)
			a.State = agents.StateGoingHome
		}

	case agents.RoutineNightShift:
		if tc.hour >= NightShiftStart || tc.hour < NightShiftEnd {
			if a.State != agents.StateWorking && a.State != agents.StateGoingToWork {
				s.pathTo(a, res.Workplace, city.PassageOnFoot)
				a.State = agents.StateGoingToWork
			}
		} else if a.State == agents.StateWorking {
			s.pathTo(a, res.Home, city.PassageOnFoot)
			a.State = agents.StateGoingHome
		}

	default:
		if tc.hour >= WorkStart && tc.hour < WorkEnd {
			switch {
			case a.State == agents.StateAtHome:
				s.pathTo(a, res.Workplace, city.PassageOnFoot)
				a.State = agents.StateGoingToWork
			case a.State == agents.StateWorking && a.Timer == 0:
				if s.rng.Float64() < WorkShopChance {
					if !s.goShopping(a, from) {
						a.Timer = ShopRetryTicks
					}
				}
			}
			return
		}
		// Off hours: head home, occasionally via a shop. A trip already
		// under way runs to completion first.
		if a.State == agents.StateWorking || a.State == agents.StatePatrolling {
			if s.rng.Float64() < EveningShopChance && s.goShopping(a, from) {
				return
			}
			s.pathTo(a, res.Home, city.PassageOnFoot)
			a.State = agents.StateGoingHome
		}
	}
}

func (s *Simulation) goShopping(a *agents.Agent, from city.Coord) bool {
	shop, ok := nearest(from, s.shops)
	if !ok {
		return false
	}
	s.pathTo(a, shop, city.PassageOnFoot)
	a.State = agents.StateShopping
	return true
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
