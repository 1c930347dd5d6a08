// Package city provides the grid, cell model, building catalog and city layout
// generator that the simulation runs on.
package city

import "fmt"

// Coord is an integer grid position. X grows east, Y grows south.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// String returns the coordinate as "(x, y)" for event messages.
func (c Coord) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Y)
}

// Add returns c offset by (dx, dy).
func (c Coord) Add(dx, dy int) Coord {
	return Coord{X: c.X + dx, Y: c.Y + dy}
}

// Terrain is the base kind of a cell.
type Terrain uint8

const (
	TerrainLand     Terrain = iota // Unbuilt lot, becomes infill during generation
	TerrainRoad                    // Highways, main roads, streets, alleys, bridges
	TerrainPark                    // Green space, walkable but slow
	TerrainWater                   // River, never burns
	TerrainBuilding                // Solid structure unless a transit-like type
)

var terrainNames = [...]string{"LAND", "ROAD", "PARK", "WATER", "BUILDING"}

func (t Terrain) String() string {
	if int(t) < len(terrainNames) {
		return terrainNames[t]
	}
	return fmt.Sprintf("Terrain(%d)", t)
}

// MarshalText renders the terrain by name in JSON payloads.
func (t Terrain) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// RoadType distinguishes road cells.
type RoadType uint8

const (
	RoadNone RoadType = iota
	RoadHighway
	RoadMain
	RoadAlley
	RoadBridge
	RoadStreet
)

var roadNames = [...]string{"", "HIGHWAY", "MAIN_ROAD", "ALLEY", "BRIDGE", "STREET"}

func (r RoadType) String() string {
	if int(r) < len(roadNames) {
		return roadNames[r]
	}
	return fmt.Sprintf("RoadType(%d)", r)
}

// MarshalText renders the road type by name in JSON payloads.
func (r RoadType) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Default coefficients for cells that carry no building.
const (
	DefaultFlammability = 0.1
	DefaultArsonRisk    = 0.01
)

// Cell is one square of the city grid.
//
// Invariant: once BurntOut is set, FireLevel stays 0 and IgnitedAt stays nil.
// Use Ignite, Extinguish and BurnOut rather than writing fire fields directly.
type Cell struct {
	Coord    Coord        `json:"coord"`
	Terrain  Terrain      `json:"terrain"`
	Building BuildingType `json:"building,omitempty"`
	Road     RoadType     `json:"road,omitempty"`

	// Static properties, fixed for the duration of a run.
	Flammability float64  `json:"flammability"`
	ArsonRisk    float64  `json:"arson_risk"`
	Controls     Controls `json:"controls"`
	Surveillance float64  `json:"surveillance"`
	Capacity     int      `json:"capacity,omitempty"`

	// Recomputed from police positions at the start of every tick.
	DynamicSurveillance float64 `json:"dynamic_surveillance"`

	// Fire state.
	FireLevel float64 `json:"fire_level"` // 0 = no fire, up to 10
	BurntOut  bool    `json:"burnt_out"`
	IgnitedAt *uint64 `json:"ignited_at,omitempty"` // Tick of ignition, nil when not burning
}

// IsBurning returns true if the cell currently carries fire.
func (c *Cell) IsBurning() bool {
	return c.FireLevel > 0
}

// IsTransit returns true for building types agents may walk through.
func (c *Cell) IsTransit() bool {
	return c.Terrain == TerrainBuilding && c.Building.IsTransit()
}

// Ignite sets the fire level and stamps the ignition tick. Burnt-out cells
// cannot be ignited again; Ignite reports whether the cell caught.
func (c *Cell) Ignite(level float64, tick uint64) bool {
	if c.BurntOut {
		return false
	}
	t := tick
	c.FireLevel = level
	c.IgnitedAt = &t
	return true
}

// Extinguish clears the fire and reports whether anything was burning.
func (c *Cell) Extinguish() bool {
	wasBurning := c.FireLevel > 0
	c.FireLevel = 0
	c.IgnitedAt = nil
	return wasBurning
}

// BurnOut marks the cell as permanently destroyed.
func (c *Cell) BurnOut() {
	c.FireLevel = 0
	c.IgnitedAt = nil
	c.BurntOut = true
}

// TicksBurning returns how many ticks have elapsed since ignition, and false
// if the cell has no ignition stamp.
func (c *Cell) TicksBurning(now uint64) (uint64, bool) {
	if c.IgnitedAt == nil || now < *c.IgnitedAt {
		return 0, false
	}
	return now - *c.IgnitedAt, true
}

// EffectiveFlammability is the base flammability plus active control deltas,
// clamped to [0, 1].
func (c *Cell) EffectiveFlammability() float64 {
	return clamp01(c.Flammability + c.Controls.FlammabilityDelta())
}

// EffectiveArsonRisk is the base arson risk plus active control deltas,
// clamped to [0, 1].
func (c *Cell) EffectiveArsonRisk() float64 {
	return clamp01(c.ArsonRisk + c.Controls.RiskDelta())
}

// TotalSurveillance combines static and police-projected surveillance, capped at 1.
func (c *Cell) TotalSurveillance() float64 {
	s := c.Surveillance + c.DynamicSurveillance
	if s > 1 {
		return 1
	}
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
