// Package config loads and validates the YAML run configuration and turns
// it into engine parameters.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/talgya/firesim/internal/agents"
	"github.com/talgya/firesim/internal/city"
	"github.com/talgya/firesim/internal/engine"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// MinGridSize is the smallest width or height the city generator accepts.
const MinGridSize = 20

// SupportedDays are the cycle lengths a run may use.
var SupportedDays = []int{1, 7, 30}

// Config is the on-disk run configuration.
type Config struct {
	Seed     int64  `yaml:"seed"` // 0 draws a seed from crypto/rand
	Scenario string `yaml:"scenario"`
	Days     int    `yaml:"days"`
	Speed    string `yaml:"speed"`

	Grid         GridConfig                  `yaml:"grid"`
	Agents       AgentsConfig                `yaml:"agents"`
	Surveillance SurveillanceConfig          `yaml:"surveillance"`
	Arson        ArsonConfig                 `yaml:"arson"`
	Movement     MovementConfig              `yaml:"movement"`
	Patrol       PatrolConfig                `yaml:"patrol"`
	Buildings    map[string]BuildingOverride `yaml:"buildings,omitempty"`
}

type GridConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type AgentsConfig struct {
	Firefighters int                       `yaml:"firefighters"`
	Police       int                       `yaml:"police"`
	Civilians    int                       `yaml:"civilians"`
	Arsonists    map[string]ArsonistConfig `yaml:"arsonists"`
}

// ArsonistConfig sets how many arsonists of a profile to spawn and their
// fire cap. A nil MaxFires keeps the profile default; -1 is unlimited.
type ArsonistConfig struct {
	Count    int  `yaml:"count"`
	MaxFires *int `yaml:"max_fires,omitempty"`
}

type SurveillanceConfig struct {
	Radius int     `yaml:"radius"`
	Bonus  float64 `yaml:"bonus"`
}

type ArsonConfig struct {
	ProbabilityMultiplier    float64 `yaml:"probability_multiplier"`
	RiotConversionBase       float64 `yaml:"riot_conversion_base"`
	RiotConversionMultiplier float64 `yaml:"riot_conversion_multiplier"`
}

type MovementConfig struct {
	WalkSpeed           float64 `yaml:"walk_speed"`
	ResponderMultiplier float64 `yaml:"responder_multiplier"`
}

type PatrolConfig struct {
	Strategy     string  `yaml:"strategy"`
	ScanRadius   int     `yaml:"scan_radius"`
	RiskRadius   int     `yaml:"risk_radius"`
	Samples      int     `yaml:"samples"`
	RiskWeight   float64 `yaml:"risk_weight"`
	RandomWeight float64 `yaml:"random_weight"`
}

// BuildingOverride replaces individual properties of a building type. Unset
// fields keep the catalog value; a non-nil Controls list replaces the flags.
type BuildingOverride struct {
	Flammability *float64 `yaml:"flammability,omitempty"`
	ArsonRisk    *float64 `yaml:"arson_risk,omitempty"`
	Surveillance *float64 `yaml:"surveillance,omitempty"`
	Capacity     *int     `yaml:"capacity,omitempty"`
	Controls     []string `yaml:"controls,omitempty"`
}

// Default returns the reference configuration.
func Default() *Config {
	p := engine.DefaultParams()

	counts := make(map[agents.Profile]int)
	for _, prof := range p.Arsonists {
		counts[prof]++
	}
	arsonists := make(map[string]ArsonistConfig, agents.NumProfiles)
	for _, prof := range agents.AllProfiles() {
		maxFires := p.FireCaps[prof]
		arsonists[prof.String()] = ArsonistConfig{Count: counts[prof], MaxFires: &maxFires}
	}

	return &Config{
		Seed:     p.Seed,
		Scenario: p.Scenario.String(),
		Days:     p.Days,
		Speed:    engine.Speed1x.String(),
		Grid:     GridConfig{Width: p.Width, Height: p.Height},
		Agents: AgentsConfig{
			Firefighters: p.Firefighters,
			Police:       p.Police,
			Civilians:    p.Civilians,
			Arsonists:    arsonists,
		},
		Surveillance: SurveillanceConfig{Radius: p.SurveillanceRadius, Bonus: p.SurveillanceBonus},
		Arson: ArsonConfig{
			ProbabilityMultiplier:    p.ArsonMultiplier,
			RiotConversionBase:       p.RiotConversionBase,
			RiotConversionMultiplier: p.RiotConversionMultiplier,
		},
		Movement: MovementConfig{WalkSpeed: p.WalkSpeed, ResponderMultiplier: p.ResponderMultiplier},
		Patrol: PatrolConfig{
			Strategy:     p.Patrol.Strategy.String(),
			ScanRadius:   p.Patrol.ScanRadius,
			RiskRadius:   p.Patrol.RiskRadius,
			Samples:      p.Patrol.Samples,
			RiskWeight:   p.Patrol.RiskWeight,
			RandomWeight: p.Patrol.RandomWeight,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	defaults := cfg.Agents.Arsonists
	cfg.Agents.Arsonists = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	cfg.mergeArsonists(defaults)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding config YAML: %w", err)
	}
	return data, nil
}

// Validate reports every invalid field at once. The returned error wraps
// ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}
	nonNegative := func(field string, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			add("%s must be a non-negative number, got %v", field, v)
		}
	}
	unit := func(field string, v float64) {
		if math.IsNaN(v) || v < 0 || v > 1 {
			add("%s must be within [0, 1], got %v", field, v)
		}
	}

	if c.Seed < 0 {
		add("seed must not be negative, got %d", c.Seed)
	}
	if _, err := engine.ParseScenario(c.Scenario); err != nil {
		errs = append(errs, err)
	}
	if !supportedDays(c.Days) {
		add("days must be one of %v, got %d", SupportedDays, c.Days)
	}
	if _, err := engine.ParseSpeed(c.Speed); err != nil {
		errs = append(errs, err)
	}

	if c.Grid.Width < MinGridSize || c.Grid.Height < MinGridSize {
		add("grid must be at least %dx%d, got %dx%d", MinGridSize, MinGridSize, c.Grid.Width, c.Grid.Height)
	}

	if c.Agents.Firefighters < 0 {
		add("agents.firefighters must not be negative, got %d", c.Agents.Firefighters)
	}
	if c.Agents.Police < 0 {
		add("agents.police must not be negative, got %d", c.Agents.Police)
	}
	if c.Agents.Civilians < 0 {
		add("agents.civilians must not be negative, got %d", c.Agents.Civilians)
	}
	for _, name := range sortedKeys(c.Agents.Arsonists) {
		ac := c.Agents.Arsonists[name]
		if _, err := agents.ParseProfile(name); err != nil {
			errs = append(errs, err)
			continue
		}
		if ac.Count < 0 {
			add("agents.arsonists.%s.count must not be negative, got %d", name, ac.Count)
		}
		if ac.MaxFires != nil && *ac.MaxFires < agents.Unlimited {
			add("agents.arsonists.%s.max_fires must be -1 or more, got %d", name, *ac.MaxFires)
		}
	}

	if c.Surveillance.Radius < 0 {
		add("surveillance.radius must not be negative, got %d", c.Surveillance.Radius)
	}
	unit("surveillance.bonus", c.Surveillance.Bonus)
	nonNegative("arson.probability_multiplier", c.Arson.ProbabilityMultiplier)
	unit("arson.riot_conversion_base", c.Arson.RiotConversionBase)
	nonNegative("arson.riot_conversion_multiplier", c.Arson.RiotConversionMultiplier)
	if math.IsNaN(c.Movement.WalkSpeed) || c.Movement.WalkSpeed <= 0 {
		add("movement.walk_speed must be positive, got %v", c.Movement.WalkSpeed)
	}
	if math.IsNaN(c.Movement.ResponderMultiplier) || c.Movement.ResponderMultiplier < 1 {
		add("movement.responder_multiplier must be at least 1, got %v", c.Movement.ResponderMultiplier)
	}

	if _, err := engine.ParsePatrolStrategy(c.Patrol.Strategy); err != nil {
		errs = append(errs, err)
	}
	if c.Patrol.ScanRadius < 1 || c.Patrol.RiskRadius < 0 || c.Patrol.Samples < 1 {
		add("patrol radii and samples out of range: scan %d, risk %d, samples %d",
			c.Patrol.ScanRadius, c.Patrol.RiskRadius, c.Patrol.Samples)
	}
	nonNegative("patrol.risk_weight", c.Patrol.RiskWeight)
	nonNegative("patrol.random_weight", c.Patrol.RandomWeight)

	for _, name := range sortedKeys(c.Buildings) {
		o := c.Buildings[name]
		if _, err := city.ParseBuildingType(name); err != nil {
			errs = append(errs, err)
			continue
		}
		if o.Flammability != nil {
			unit("buildings."+name+".flammability", *o.Flammability)
		}
		if o.ArsonRisk != nil {
			unit("buildings."+name+".arson_risk", *o.ArsonRisk)
		}
		if o.Surveillance != nil {
			unit("buildings."+name+".surveillance", *o.Surveillance)
		}
		if o.Capacity != nil && *o.Capacity < 0 {
			add("buildings.%s.capacity must not be negative, got %d", name, *o.Capacity)
		}
		for _, ctl := range o.Controls {
			if _, err := city.ParseControl(ctl); err != nil {
				errs = append(errs, fmt.Errorf("buildings.%s: %w", name, err))
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// Params converts a validated configuration into engine parameters.
func (c *Config) Params() (engine.Params, error) {
	if err := c.Validate(); err != nil {
		return engine.Params{}, err
	}
	p := engine.DefaultParams()
	p.Seed = c.Seed
	p.Scenario, _ = engine.ParseScenario(c.Scenario)
	p.Days = c.Days
	p.Width, p.Height = c.Grid.Width, c.Grid.Height

	p.Firefighters = c.Agents.Firefighters
	p.Police = c.Agents.Police
	p.Civilians = c.Agents.Civilians
	p.Arsonists = nil
	p.FireCaps = agents.DefaultFireCaps()
	for _, prof := range agents.AllProfiles() {
		ac, ok := c.arsonist(prof)
		if !ok {
			continue
		}
		for i := 0; i < ac.Count; i++ {
			p.Arsonists = append(p.Arsonists, prof)
		}
		if ac.MaxFires != nil {
			p.FireCaps[prof] = *ac.MaxFires
		}
	}

	p.SurveillanceRadius = c.Surveillance.Radius
	p.SurveillanceBonus = c.Surveillance.Bonus
	p.ArsonMultiplier = c.Arson.ProbabilityMultiplier
	p.RiotConversionBase = c.Arson.RiotConversionBase
	p.RiotConversionMultiplier = c.Arson.RiotConversionMultiplier
	p.WalkSpeed = c.Movement.WalkSpeed
	p.ResponderMultiplier = c.Movement.ResponderMultiplier

	p.Patrol.Strategy, _ = engine.ParsePatrolStrategy(c.Patrol.Strategy)
	p.Patrol.ScanRadius = c.Patrol.ScanRadius
	p.Patrol.RiskRadius = c.Patrol.RiskRadius
	p.Patrol.Samples = c.Patrol.Samples
	p.Patrol.RiskWeight = c.Patrol.RiskWeight
	p.Patrol.RandomWeight = c.Patrol.RandomWeight

	p.Catalog = city.DefaultCatalog().Clone()
	for name, o := range c.Buildings {
		bt, _ := city.ParseBuildingType(name)
		spec := p.Catalog[bt]
		if o.Flammability != nil {
			spec.Flammability = *o.Flammability
		}
		if o.ArsonRisk != nil {
			spec.ArsonRisk = *o.ArsonRisk
		}
		if o.Surveillance != nil {
			spec.Surveillance = *o.Surveillance
		}
		if o.Capacity != nil {
			spec.Capacity = *o.Capacity
		}
		if o.Controls != nil {
			spec.Controls = 0
			for _, ctl := range o.Controls {
				flag, _ := city.ParseControl(ctl)
				spec.Controls |= flag
			}
		}
		p.Catalog[bt] = spec
	}
	return p, nil
}

// EngineSpeed returns the configured real-time pace.
func (c *Config) EngineSpeed() engine.Speed {
	sp, err := engine.ParseSpeed(c.Speed)
	if err != nil {
		return engine.Speed1x
	}
	return sp
}

// mergeArsonists fills profiles the file did not mention from defaults.
// Keys are matched case-insensitively.
func (c *Config) mergeArsonists(defaults map[string]ArsonistConfig) {
	if c.Agents.Arsonists == nil {
		c.Agents.Arsonists = make(map[string]ArsonistConfig, len(defaults))
	}
	for name, ac := range defaults {
		prof, err := agents.ParseProfile(name)
		if err != nil {
			continue
		}
		if _, ok := c.arsonist(prof); !ok {
			c.Agents.Arsonists[name] = ac
		}
	}
}

// arsonist finds the entry for prof, accepting any key case.
func (c *Config) arsonist(prof agents.Profile) (ArsonistConfig, bool) {
	for name, ac := range c.Agents.Arsonists {
		if p, err := agents.ParseProfile(name); err == nil && p == prof {
			return ac, true
		}
	}
	return ArsonistConfig{}, false
}

func supportedDays(d int) bool {
	for _, s := range SupportedDays {
		if s == d {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
