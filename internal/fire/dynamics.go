package fire

import (
	"math"

	"github.com/talgya/firesim/internal/city"
)

// Fire dynamics constants.
const (
	MaxLevel        = 10.0
	GrowthFactor    = 0.1  // Growth chance per tick is GrowthFactor x effective flammability
	SpreadThreshold = 5.0  // Sources above this level ignite eligible neighbours
	SpreadDelay     = 1    // Ticks a cell must burn before it can spread
	BurnOutTicks    = 10   // Ticks an intense cell burns before it is destroyed
	ArsonLevel      = 3.33 // Starting level of a deliberately set fire
	SpreadLevel     = 1.0  // Starting level of a spread ignition
)

// Rand is the randomness fire dynamics and agents draw from.
// *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Stage is the coarse phase of a cell's fire.
type Stage uint8

const (
	StageUnignited Stage = iota // Level 0
	StageSmoldering             // Level in (0, 5]
	StageIntense                // Level above 5
	StageBurntOut               // Terminal
)

var stageNames = [...]string{"unignited", "smoldering", "intense", "burnt_out"}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// StageOf classifies a cell's fire.
func StageOf(c *city.Cell) Stage {
	switch {
	case c.BurntOut:
		return StageBurntOut
	case c.FireLevel > SpreadThreshold:
		return StageIntense
	case c.FireLevel > 0:
		return StageSmoldering
	default:
		return StageUnignited
	}
}

// Result lists what changed during one fire pass.
type Result struct {
	BurntOut []city.Coord // Newly destroyed cells, already removed from the registry
	Alarms   []city.Coord // Cells whose fire alarm tripped this pass
	Ignited  []city.Coord // Neighbours set alight by spread
}

// Advance runs one fire pass over every cell burning at the start of the tick:
// burnout, then growth, then alarm, then spread. Cells ignited by spread join
// the registry but are not advanced until the next pass.
func Advance(g *city.Grid, reg *Registry, now uint64, rng Rand) Result {
	var res Result

	for _, c := range reg.Burning() {
		cell := g.Get(c)
		if cell == nil || !cell.IsBurning() {
			reg.burning.Remove(c)
			continue
		}

		elapsed, stamped := cell.TicksBurning(now)
		if stamped && elapsed >= BurnOutTicks && cell.FireLevel > SpreadThreshold {
			cell.BurnOut()
			res.BurntOut = append(res.BurntOut, c)
			continue
		}

		if cell.FireLevel < MaxLevel && rng.Float64() < GrowthFactor*cell.EffectiveFlammability() {
			cell.FireLevel = math.Min(MaxLevel, cell.FireLevel+1)
		}

		if cell.FireLevel == 1 && cell.Controls.Has(city.ControlFireAlarm) {
			res.Alarms = append(res.Alarms, c)
		}

		if !stamped || elapsed < SpreadDelay || cell.FireLevel <= SpreadThreshold {
			continue
		}
		for _, d := range city.Neighbors4 {
			nc := c.Add(d.X, d.Y)
			n := g.Get(nc)
			if !canSpreadInto(n) || reg.IsBurning(nc) {
				continue
			}
			if n.Ignite(SpreadLevel, now) {
				reg.Ignite(nc)
				res.Ignited = append(res.Ignited, nc)
				if n.Controls.Has(city.ControlFireAlarm) {
					res.Alarms = append(res.Alarms, nc)
				}
			}
		}
	}

	for _, c := range res.BurntOut {
		reg.Resolve(c)
	}
	return res
}

func canSpreadInto(n *city.Cell) bool {
	if n == nil || n.BurntOut || n.FireLevel != 0 {
		return false
	}
	return n.Terrain != city.TerrainRoad && n.Terrain != city.TerrainWater
}

// Extinguish puts out the fire at c and drops it from every registry set.
// It returns true only if the cell was actually burning.
func Extinguish(g *city.Grid, reg *Registry, c city.Coord) bool {
	reg.Resolve(c)
	cell := g.Get(c)
	if cell == nil {
		return false
	}
	return cell.Extinguish()
}

// Set ignites c at the given level and registers it. Burnt-out and
// off-grid cells are refused.
func Set(g *city.Grid, reg *Registry, c city.Coord, level float64, now uint64) bool {
	cell := g.Get(c)
	if cell == nil || !cell.Ignite(level, now) {
		return false
	}
	reg.Ignite(c)
	return true
}
