package city

import (
	"fmt"
	"sort"
	"strings"
)

// Controls is a bit set of the prevention and risk flags a building carries.
type Controls uint16

const (
	ControlCCTV Controls = 1 << iota
	ControlFireAlarm
	ControlSprinklers
	ControlSecurityPatrol
	ControlCommunityWatch
	ControlAbandoned
	ControlPoorMaintenance
	ControlGraffiti
	ControlIsolated
	ControlControversial

	numControls = iota
)

// ControlImpact is the fixed adjustment one flag applies.
type ControlImpact struct {
	Risk         float64
	Flammability float64
}

type controlInfo struct {
	name   string
	impact ControlImpact
}

// Indexed by bit position.
var controlTable = [numControls]controlInfo{
	{"cctv", ControlImpact{Risk: -0.1}},
	{"fire_alarm", ControlImpact{Risk: -0.05}},
	{"sprinklers", ControlImpact{Flammability: -0.3}},
	{"security_patrol", ControlImpact{Risk: -0.3}},
	{"community_watch", ControlImpact{Risk: -0.05}},
	{"abandoned", ControlImpact{Risk: 0.2, Flammability: 0.4}},
	{"poor_maintenance", ControlImpact{Risk: 0.05, Flammability: 0.2}},
	{"graffiti", ControlImpact{Risk: 0.1}},
	{"isolated", ControlImpact{Risk: 0.15}},
	{"controversial", ControlImpact{Risk: 0.2}},
}

// Has returns true if every flag in f is set.
func (c Controls) Has(f Controls) bool {
	return c&f == f
}

// With returns c with flag f set or cleared.
func (c Controls) With(f Controls, on bool) Controls {
	if on {
		return c | f
	}
	return c &^ f
}

// RiskDelta sums the arson-risk adjustments of all active flags.
// Flags are visited in bit order so the sum does not depend on how the set was built.
func (c Controls) RiskDelta() float64 {
	sum := 0.0
	for i := 0; i < numControls; i++ {
		if c&(1<<i) != 0 {
			sum += controlTable[i].impact.Risk
		}
	}
	return sum
}

// FlammabilityDelta sums the flammability adjustments of all active flags.
func (c Controls) FlammabilityDelta() float64 {
	sum := 0.0
	for i := 0; i < numControls; i++ {
		if c&(1<<i) != 0 {
			sum += controlTable[i].impact.Flammability
		}
	}
	return sum
}

// Names lists the active flags by name.
func (c Controls) Names() []string {
	var names []string
	for i := 0; i < numControls; i++ {
		if c&(1<<i) != 0 {
			names = append(names, controlTable[i].name)
		}
	}
	return names
}

// MarshalText renders the set as a comma-separated list of flag names.
func (c Controls) MarshalText() ([]byte, error) {
	return []byte(strings.Join(c.Names(), ",")), nil
}

// ParseControl resolves a flag name such as "fire_alarm".
func ParseControl(name string) (Controls, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for i := 0; i < numControls; i++ {
		if controlTable[i].name == key {
			return 1 << i, nil
		}
	}
	return 0, fmt.Errorf("unknown control %q", name)
}

// ControlNames returns every known flag name, sorted.
func ControlNames() []string {
	names := make([]string, 0, numControls)
	for i := 0; i < numControls; i++ {
		names = append(names, controlTable[i].name)
	}
	sort.Strings(names)
	return names
}
