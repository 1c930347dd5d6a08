package engine

import (
	"math"

	"github.com/talgya/firesim/internal/agents"
	"github.com/talgya/firesim/internal/city"
)

// onScene reports whether a is a firefighter allowed through heavy fire.
func onScene(a *agents.Agent) bool {
	return a.Kind == agents.KindFirefighter &&
		(a.State == agents.StateResponding || a.State == agents.StateExtinguishing)
}

func (s *Simulation) speed(tc *tickContext, a *agents.Agent) float64 {
	v := s.Params.WalkSpeed
	if a.Kind == agents.KindFirefighter && a.State == agents.StateResponding {
		v *= s.Params.ResponderMultiplier
	}
	return v * tc.congestion
}

// move spends the agent's speed budget along its path. Whatever is left after
// reaching a waypoint carries on towards the next one.
func (s *Simulation) move(tc *tickContext, a *agents.Agent) {
	budget := s.speed(tc, a)
	for budget > 0 && a.HasPath() {
		next := a.Path[0]
		if s.blocked(a, next) {
			s.halt(a)
			return
		}

		dx, dy := float64(next.X)-a.X, float64(next.Y)-a.Y
		d := math.Hypot(dx, dy)
		if d <= budget {
			a.X, a.Y = float64(next.X), float64(next.Y)
			a.Path = a.Path[1:]
			budget -= d
			continue
		}
		a.X += dx / d * budget
		a.Y += dy / d * budget
		return
	}
}

func (s *Simulation) blocked(a *agents.Agent, next city.Coord) bool {
	cell := s.Grid.Get(next)
	if cell == nil {
		return true
	}
	if onScene(a) {
		return cell.BurntOut
	}
	return cell.FireLevel > city.MaxWalkableFire
}

// halt drops a blocked agent's path. Civilians take flight; firefighters give
// up their assignment.
func (s *Simulation) halt(a *agents.Agent) {
	a.Path = nil
	switch a.Kind {
	case agents.KindCivilian:
		a.State = agents.StateFleeing
	case agents.KindFirefighter:
		s.standDown(a)
	}
}

// updateSurveillance recomputes the police presence bonus: every cell within
// the radius of an officer gets the bonus, overlapping officers do not stack.
func (s *Simulation) updateSurveillance() {
	for i := range s.Grid.Cells {
		s.Grid.Cells[i].DynamicSurveillance = 0
	}
	r := s.Params.SurveillanceRadius
	bonus := s.Params.SurveillanceBonus
	for _, a := range s.Agents {
		if a.Kind != agents.KindPolice {
			continue
		}
		c := a.Cell()
		for dx := -r; dx <= r; dx++ {
			for dy := -r; dy <= r; dy++ {
				if dx*dx+dy*dy > r*r {
					continue
				}
				if cell := s.Grid.Get(c.Add(dx, dy)); cell != nil {
					cell.DynamicSurveillance = math.Max(cell.DynamicSurveillance, bonus)
				}
			}
		}
	}
}
