package engine

import (
	"fmt"
	"strings"

	"github.com/talgya/firesim/internal/agents"
	"github.com/talgya/firesim/internal/city"
)

// Scenario selects the crowd-behaviour overlay for a run.
type Scenario uint8

const (
	ScenarioNormal Scenario = iota
	ScenarioRiot
	ScenarioLargeEvent
	ScenarioCrisis
)

var scenarioNames = [...]string{"NORMAL", "RIOT", "LARGE_EVENT", "CRISIS"}

func (s Scenario) String() string {
	if int(s) < len(scenarioNames) {
		return scenarioNames[s]
	}
	return fmt.Sprintf("Scenario(%d)", s)
}

// MarshalText renders the scenario by name in JSON payloads.
func (s Scenario) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseScenario resolves a scenario name (case-insensitive).
func ParseScenario(name string) (Scenario, error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range scenarioNames {
		if n == key {
			return Scenario(i), nil
		}
	}
	return 0, fmt.Errorf("unknown scenario %q", name)
}

// Congestion returns the movement speed multiplier for the hour of day.
func (s Scenario) Congestion(hour int) float64 {
	m := 1.0
	if (hour >= 7 && hour <= 9) || (hour >= 16 && hour <= 18) {
		m = 0.6
	}
	switch s {
	case ScenarioRiot, ScenarioLargeEvent:
		m = min(m, 0.4)
	case ScenarioCrisis:
		m = min(m, 0.5)
	}
	return m
}

// PatrolStrategy decides where police patrol when they have no path.
type PatrolStrategy uint8

const (
	PatrolRoads PatrolStrategy = iota // Random highway or main-road cell
	PatrolRisk                        // Best of sampled road cells by nearby arson risk
)

var patrolNames = [...]string{"roads", "risk"}

func (p PatrolStrategy) String() string {
	if int(p) < len(patrolNames) {
		return patrolNames[p]
	}
	return fmt.Sprintf("PatrolStrategy(%d)", p)
}

// ParsePatrolStrategy resolves "roads" or "risk".
func ParsePatrolStrategy(name string) (PatrolStrategy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for i, n := range patrolNames {
		if n == key {
			return PatrolStrategy(i), nil
		}
	}
	return 0, fmt.Errorf("unknown patrol strategy %q", name)
}

// PatrolParams tunes police patrol target selection.
type PatrolParams struct {
	Strategy     PatrolStrategy
	ScanRadius   int // Radius around the officer to sample candidates from
	RiskRadius   int // Radius averaged when scoring a candidate
	Samples      int
	RiskWeight   float64
	RandomWeight float64
}

// Params is everything needed to build and run a simulation.
type Params struct {
	Seed     int64
	Scenario Scenario
	Days     int // Cycle length; the run ends after Days*TicksPerDay ticks

	Width, Height int
	Catalog       city.Catalog

	Firefighters int
	Police       int
	Civilians    int
	Arsonists    []agents.Profile
	FireCaps     agents.FireCaps

	SurveillanceRadius int
	SurveillanceBonus  float64

	ArsonMultiplier          float64
	RiotConversionBase       float64
	RiotConversionMultiplier float64
	RiotRadius               float64 // Distance from the hotspot that counts as near

	WalkSpeed           float64 // Cells per tick
	ResponderMultiplier float64 // Speed boost for responding firefighters

	Patrol PatrolParams
}

// DefaultParams returns the reference configuration.
func DefaultParams() Params {
	return Params{
		Seed:     42,
		Scenario: ScenarioNormal,
		Days:     7,

		Width:   120,
		Height:  100,
		Catalog: city.DefaultCatalog(),

		Firefighters: 12,
		Police:       12,
		Civilians:    100,
		Arsonists: []agents.Profile{
			agents.ProfilePyromaniac, agents.ProfileGrifter,
			agents.ProfileVandal, agents.ProfileVandal,
		},
		FireCaps: agents.DefaultFireCaps(),

		SurveillanceRadius: 5,
		SurveillanceBonus:  0.5,

		ArsonMultiplier:          1.0,
		RiotConversionBase:       0.00002,
		RiotConversionMultiplier: 25,
		RiotRadius:               25,

		WalkSpeed:           2.5,
		ResponderMultiplier: 4,

		Patrol: PatrolParams{
			Strategy:     PatrolRoads,
			ScanRadius:   20,
			RiskRadius:   3,
			Samples:      8,
			RiskWeight:   0.7,
			RandomWeight: 0.3,
		},
	}
}

// MaxTicks is the tick at which the run ends.
func (p Params) MaxTicks() uint64 {
	return uint64(p.Days) * TicksPerDay
}

// GenConfig derives the city generation parameters, sizing the station
// counts to the responder force.
func (p Params) GenConfig() city.GenConfig {
	cfg := city.DefaultGenConfig()
	cfg.Seed = p.Seed
	if p.Width > 0 {
		cfg.Width = p.Width
	}
	if p.Height > 0 {
		cfg.Height = p.Height
	}
	cfg.PoliceStations, cfg.FireStations = city.StationCounts(p.Police, p.Firefighters)
	if p.Catalog != nil {
		cfg.Catalog = p.Catalog
	}
	return cfg
}

// SpawnConfig derives the initial population request.
func (p Params) SpawnConfig() agents.SpawnConfig {
	return agents.SpawnConfig{
		Firefighters: p.Firefighters,
		Police:       p.Police,
		Civilians:    p.Civilians,
		Arsonists:    p.Arsonists,
	}
}
