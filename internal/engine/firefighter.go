package engine

import (
	"sort"

	"github.com/talgya/firesim/internal/agents"
	"github.com/talgya/firesim/internal/city"
	"github.com/talgya/firesim/internal/fire"
	"github.com/talgya/firesim/internal/pathfind"
)

const (
	DispatchCandidates = 3 // Nearest unclaimed fires tried per idle tick
	ExtinguishTicks    = 4 // One hour on scene
)

func (s *Simulation) updateFirefighter(tc *tickContext, a *agents.Agent) {
	switch a.State {
	case agents.StateIdle:
		s.dispatchFirefighter(tc, a)

	case agents.StateResponding:
		if a.HasPath() {
			return
		}
		if !s.targetBurning(a) {
			s.standDown(a)
			return
		}
		a.State = agents.StateExtinguishing
		a.Timer = ExtinguishTicks

	case agents.StateExtinguishing:
		a.Timer--
		if a.Timer > 0 {
			return
		}
		r := a.Responder()
		if a.Target != nil && fire.Extinguish(s.Grid, s.Fires, *a.Target) {
			tc.extinguished++
			r.Extinguished++
			tc.emit(CategoryFire, "Fire extinguished at %v.", *a.Target)
		}
		a.Target = nil
		a.State = agents.StateIdle
		if _, reported, _ := s.Fires.Counts(); reported == 0 {
			if s.pathTo(a, r.Station, city.PassageOnFoot) && a.HasPath() {
				a.State = agents.StateReturning
			}
		}

	case agents.StateReturning:
		if !a.HasPath() {
			a.State = agents.StateIdle
		}

	default:
		a.State = agents.StateIdle
	}
}

// dispatchFirefighter claims the nearest reachable unclaimed fire.
func (s *Simulation) dispatchFirefighter(tc *tickContext, a *agents.Agent) {
	from := a.Cell()
	candidates := s.Fires.Unclaimed()
	if len(candidates) == 0 {
		return
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return distance(from, candidates[i]) < distance(from, candidates[j])
	})

	for i := 0; i < len(candidates) && i < DispatchCandidates; i++ {
		c := candidates[i]
		path, ok := pathfind.FindPath(s.Grid, from, c, city.PassageResponder)
		if !ok || !s.Fires.Claim(c) {
			continue
		}
		a.Path = path
		a.Target = &c
		a.State = agents.StateResponding
		tc.emit(CategoryDispatch, "%s dispatched to fire at %v.", a.Label(), c)
		return
	}
}

func (s *Simulation) targetBurning(a *agents.Agent) bool {
	if a.Target == nil {
		return false
	}
	cell := s.Grid.Get(*a.Target)
	return cell != nil && cell.IsBurning()
}

// standDown abandons the current assignment, freeing its claim for others.
func (s *Simulation) standDown(a *agents.Agent) {
	if a.Target != nil {
		s.Fires.Release(*a.Target)
	}
	a.Target = nil
	a.Path = nil
	a.State = agents.StateIdle
}
