// Simulation owns the city, its fires and its agents, and advances them one
// tick at a time. All mutation happens inside Step; the real-time Engine and
// the API serialise access through the Engine's lock.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/firesim/internal/agents"
	"github.com/talgya/firesim/internal/city"
	"github.com/talgya/firesim/internal/entropy"
	"github.com/talgya/firesim/internal/fire"
)

// Phase is the run lifecycle: not started, running and paused (in either
// direction), then ended.
type Phase uint8

const (
	PhaseNotStarted Phase = iota
	PhaseRunning
	PhasePaused
	PhaseEnded
)

var phaseNames = [...]string{"not_started", "running", "paused", "ended"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", p)
}

// MarshalText renders the phase by name in JSON payloads.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Simulation holds the complete run state.
type Simulation struct {
	Params Params
	Grid   *city.Grid
	Agents []*agents.Agent // Dispatch order within each kind
	Fires  *fire.Registry
	Tick   uint64 // Most recent tick processed
	Phase  Phase

	Events      []Event // Newest first, at most MaxEvents
	Stats       Stats
	History     []HistorySample // Most recent MaxHistory hourly samples
	FullHistory []HistorySample // Every hourly sample of the run

	// Scenario landmarks; nil when the city has none.
	Hotspot *city.Coord // Town hall, the RIOT rally point
	Venue   *city.Coord // Stadium, the LARGE_EVENT destination

	shops []city.Coord
	rng   entropy.Source
}

// Build generates the city and population from p and returns a simulation
// ready to start.
func Build(p Params) *Simulation {
	g := city.Generate(p.GenConfig())
	ag := agents.NewSpawner(p.Seed).Spawn(g, p.SpawnConfig())
	return NewSimulation(p, g, ag, entropy.New(p.Seed+500))
}

// NewSimulation creates a Simulation from a materialised grid and
// population. Cells already on fire are registered as burning.
func NewSimulation(p Params, g *city.Grid, ag []*agents.Agent, rng entropy.Source) *Simulation {
	s := &Simulation{
		Params: p,
		Grid:   g,
		Agents: ag,
		Fires:  fire.NewRegistry(),
		Stats:  newStats(),
		rng:    rng,
	}
	for i := range g.Cells {
		c := &g.Cells[i]
		if c.IsBurning() {
			s.Fires.Ignite(c.Coord)
		}
		switch {
		case c.Building == city.BuildingTownHall && s.Hotspot == nil:
			h := c.Coord
			s.Hotspot = &h
		case c.Building == city.BuildingStadium && s.Venue == nil:
			v := c.Coord
			s.Venue = &v
		case c.Building.IsShop():
			s.shops = append(s.shops, c.Coord)
		}
	}
	s.countPopulation()
	s.Stats.ActiveFires, _, _ = s.Fires.Counts()
	s.Events = []Event{newEvent(0, CategorySystem, "Simulation initialized with %s scenario.", p.Scenario)}
	return s
}

// Reset rebuilds the run from its parameters. The seed is unchanged, so the
// city and population are regenerated identically.
func (s *Simulation) Reset() {
	*s = *Build(s.Params)
	s.Events = []Event{newEvent(0, CategorySystem, "Simulation reset with %s scenario.", s.Params.Scenario)}
}

// Record appends a system event outside of a tick.
func (s *Simulation) Record(category, format string, args ...any) {
	s.Events = prependEvents(s.Events, []Event{newEvent(s.Tick, category, format, args...)})
}

// Start moves a fresh simulation to running.
func (s *Simulation) Start() {
	if s.Phase == PhaseNotStarted {
		s.Phase = PhaseRunning
	}
}

// Pause stops ticking until Resume. Returns false if not running.
func (s *Simulation) Pause() bool {
	if s.Phase != PhaseRunning {
		return false
	}
	s.Phase = PhasePaused
	s.Record(CategorySystem, "Simulation paused.")
	return true
}

// Resume continues a paused simulation. Returns false if not paused.
func (s *Simulation) Resume() bool {
	if s.Phase != PhasePaused {
		return false
	}
	s.Phase = PhaseRunning
	s.Record(CategorySystem, "Simulation resumed.")
	return true
}

// Ended returns true once the cycle length has been reached.
func (s *Simulation) Ended() bool {
	return s.Phase == PhaseEnded
}

func (s *Simulation) end() {
	if s.Phase == PhaseEnded {
		return
	}
	s.Phase = PhaseEnded
	s.Record(CategorySystem, "Simulation ended after %d days.", s.Params.Days)
	slog.Info("simulation ended",
		"tick", s.Tick,
		"casualties", s.Stats.Casualties,
		"buildings_destroyed", s.Stats.BuildingsDestroyed,
		"fires_extinguished", s.Stats.FiresExtinguished,
		"arsonists_apprehended", s.Stats.ArsonistsApprehended,
	)
}

// Step advances the simulation by one tick. It returns false, doing
// nothing, while paused or after the end.
func (s *Simulation) Step() bool {
	switch s.Phase {
	case PhasePaused, PhaseEnded:
		return false
	case PhaseNotStarted:
		s.Phase = PhaseRunning
	}
	if s.Tick >= s.Params.MaxTicks() {
		s.end()
		return false
	}

	s.Tick++
	tc := s.newTick()

	s.updateSurveillance()
	burnt := s.advanceFires(tc)
	s.collapse(tc, burnt)
	if s.Params.Scenario == ScenarioRiot {
		s.convertRioters(tc)
	}
	s.updateTrapped(tc)
	s.dispatch(tc)
	for _, a := range s.Agents {
		if !a.Apprehended() {
			s.move(tc, a)
		}
	}

	s.updateStats(tc)
	if s.Tick%TicksPerHour == 0 {
		s.recordHistory()
	}
	s.Events = prependEvents(s.Events, tc.events)
	if s.Tick%TicksPerDay == 0 {
		s.logDaily()
	}

	if s.Tick >= s.Params.MaxTicks() {
		s.end()
	}
	return true
}

// advanceFires runs the fire pass and reports its burnouts and alarms. It
// returns every cell that burnt out this tick, whatever its terrain.
func (s *Simulation) advanceFires(tc *tickContext) map[city.Coord]bool {
	res := fire.Advance(s.Grid, s.Fires, tc.now, s.rng)

	burnt := make(map[city.Coord]bool, len(res.BurntOut))
	for _, c := range res.BurntOut {
		burnt[c] = true
		cell := s.Grid.Get(c)
		if cell.Terrain != city.TerrainBuilding {
			continue
		}
		tc.destroyed++
		tc.emit(CategoryFire, "%s at %v completely burned down.", cell.Building.Label(), c)
	}
	for _, c := range res.Alarms {
		s.report(tc, c)
	}
	return burnt
}

// collapse kills civilians and free arsonists standing on a cell that just
// burnt out.
func (s *Simulation) collapse(tc *tickContext, burnt map[city.Coord]bool) {
	if len(burnt) == 0 {
		return
	}
	survivors := s.Agents[:0]
	for _, a := range s.Agents {
		c := a.Cell()
		victim := a.Kind == agents.KindCivilian || (a.Kind == agents.KindArsonist && !a.Apprehended())
		if victim && burnt[c] {
			tc.casualties++
			tc.emit(CategoryCasualty, "%s perished in collapsed building at %v.", a.Kind.Title(), c)
			continue
		}
		survivors = append(survivors, a)
	}
	for i := len(survivors); i < len(s.Agents); i++ {
		s.Agents[i] = nil
	}
	s.Agents = survivors
}

// convertRioters turns civilians into protester arsonists, far more often
// near the rally point.
func (s *Simulation) convertRioters(tc *tickContext) {
	for _, a := range s.Agents {
		if a.Kind != agents.KindCivilian {
			continue
		}
		chance := s.Params.RiotConversionBase
		if s.Hotspot != nil && a.DistanceTo(float64(s.Hotspot.X), float64(s.Hotspot.Y)) < s.Params.RiotRadius {
			chance *= s.Params.RiotConversionMultiplier
		}
		if s.rng.Float64() < chance {
			a.ConvertToArsonist(agents.ProfileProtester)
			tc.emit(CategoryRiot, "A civilian has joined the riot at %v!", a.Cell())
		}
	}
}

// Fire levels governing entrapment.
const (
	TrapFireLevel   = 7.0 // Standing in fire above this may trap an agent
	EscapeFireLevel = 4.0 // A neighbour below this is an escape route
)

// updateTrapped marks civilians and arsonists standing in intense fire with
// no walkable, cooler neighbour.
func (s *Simulation) updateTrapped(tc *tickContext) {
	for _, a := range s.Agents {
		if a.Kind != agents.KindCivilian && a.Kind != agents.KindArsonist {
			continue
		}
		c := a.Cell()
		cell := s.Grid.Get(c)
		if cell == nil || cell.FireLevel <= TrapFireLevel || s.canEscape(c) {
			a.Trapped = false
			continue
		}
		if !a.Trapped {
			a.Trapped = true
			tc.emit(CategoryTrapped, "%s trapped by fire at %v.", a.Kind.Title(), c)
		}
	}
}

func (s *Simulation) canEscape(c city.Coord) bool {
	for _, d := range city.Neighbors8 {
		n := s.Grid.Get(c.Add(d.X, d.Y))
		if n != nil && n.Walkable(city.PassageOnFoot) && n.FireLevel < EscapeFireLevel {
			return true
		}
	}
	return false
}

// dispatch runs every free agent's state machine, kind by kind: firefighters,
// police, civilians, then arsonists.
func (s *Simulation) dispatch(tc *tickContext) {
	for k := agents.Kind(0); k < agents.NumKinds; k++ {
		for _, a := range s.Agents {
			if a.Kind != k || a.Apprehended() {
				continue
			}
			switch k {
			case agents.KindFirefighter:
				s.updateFirefighter(tc, a)
			case agents.KindPolice:
				s.updatePolice(tc, a)
			case agents.KindCivilian:
				s.updateCivilian(tc, a)
			case agents.KindArsonist:
				s.updateArsonist(tc, a)
			}
		}
	}
}

func (s *Simulation) logDaily() {
	slog.Info("daily report",
		"tick", s.Tick,
		"time", SimTime(s.Tick),
		"fires", s.Stats.ActiveFires,
		"casualties", s.Stats.Casualties,
		"buildings_destroyed", s.Stats.BuildingsDestroyed,
		"fires_extinguished", s.Stats.FiresExtinguished,
		"arsonists_apprehended", s.Stats.ArsonistsApprehended,
		"civilians", s.Stats.LiveCivilians,
		"arsonists", s.Stats.LiveArsonists,
	)
}
