package engine

import (
	"github.com/talgya/firesim/internal/agents"
	"github.com/talgya/firesim/internal/city"
	"github.com/talgya/firesim/internal/fire"
)

const (
	ArsonScanRadius        = 3
	ArsonCooldownMin       = 40
	ArsonCooldownSpread    = 40
	SurveillanceDeterrence = 0.5 // Full surveillance halves the ignition chance
)

func (s *Simulation) updateArsonist(tc *tickContext, a *agents.Agent) {
	if a.Trapped {
		return
	}
	ars := a.Arsonist()

	if ars.Cooldown > 0 {
		ars.Cooldown--
	}
	if ars.Cooldown > 0 {
		s.wander(a)
		return
	}

	if a.State == agents.StateWanderingLimitReached || s.Params.FireCaps.Reached(ars.Profile, ars.ArsonCount) {
		a.State = agents.StateWanderingLimitReached
		s.wander(a)
		return
	}

	targets := s.arsonTargets(a.Cell(), ars.Profile)
	if len(targets) == 0 {
		s.wander(a)
		return
	}

	c := targets[s.rng.Intn(len(targets))]
	cell := s.Grid.Get(c)
	chance := cell.EffectiveArsonRisk() * s.Params.ArsonMultiplier *
		(1 - cell.TotalSurveillance()*SurveillanceDeterrence)
	// A failed attempt costs nothing; the arsonist tries again next tick.
	if s.rng.Float64() >= chance {
		return
	}
	if !fire.Set(s.Grid, s.Fires, c, fire.ArsonLevel, tc.now) {
		return
	}

	ars.ArsonCount++
	ars.Cooldown = ArsonCooldownMin + s.rng.Intn(ArsonCooldownSpread)
	tc.started++
	tc.firesByProfile[ars.Profile]++
	tc.emit(CategoryFire, "Fire started by %s at a %s %v.", ars.Profile.DisplayName(), cell.Building.Label(), c)
}

// arsonTargets lists the intact, unlit buildings near from that the profile
// will burn.
func (s *Simulation) arsonTargets(from city.Coord, p agents.Profile) []city.Coord {
	var out []city.Coord
	for dx := -ArsonScanRadius; dx <= ArsonScanRadius; dx++ {
		for dy := -ArsonScanRadius; dy <= ArsonScanRadius; dy++ {
			c := from.Add(dx, dy)
			cell := s.Grid.Get(c)
			if cell == nil || cell.Terrain != city.TerrainBuilding || cell.FireLevel != 0 || cell.BurntOut {
				continue
			}
			if p.Targets(cell.Building) {
				out = append(out, c)
			}
		}
	}
	return out
}
