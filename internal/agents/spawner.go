// Agent spawning: responders at their stations, civilians in residential
// capacity slots, arsonists on random walkable cells.
package agents

import (
	"math/rand"

	"github.com/talgya/firesim/internal/city"
)

// SpawnConfig controls initial population generation.
type SpawnConfig struct {
	Firefighters int
	Police       int
	Civilians    int       // Capped by total residential capacity
	Arsonists    []Profile // One arsonist per entry
}

// Spawner creates agents for the simulation.
type Spawner struct {
	rng    *rand.Rand
	nextID AgentID
}

// NewSpawner creates an agent spawner with the given seed.
func NewSpawner(seed int64) *Spawner {
	return &Spawner{
		rng:    rand.New(rand.NewSource(seed + 300)),
		nextID: 1,
	}
}

func (s *Spawner) id() AgentID {
	id := s.nextID
	s.nextID++
	return id
}

// Spawn creates the full initial population in dispatch order: firefighters,
// police, civilians, arsonists.
func (s *Spawner) Spawn(g *city.Grid, cfg SpawnConfig) []*Agent {
	walkable := func(c *city.Cell) bool { return c.Walkable(city.PassageOnFoot) }
	fallback := func() city.Coord {
		c, _ := g.RandomCell(s.rng, walkable)
		return c
	}

	fireStations := g.Find(func(c *city.Cell) bool { return c.Building == city.BuildingFireStation })
	policeStations := g.Find(func(c *city.Cell) bool { return c.Building == city.BuildingPoliceStation })
	workplaces := g.Find(func(c *city.Cell) bool {
		return c.Terrain == city.TerrainBuilding && c.Capacity > 0 &&
			!c.Building.IsResidential() && !c.Building.IsStation()
	})

	out := make([]*Agent, 0, cfg.Firefighters+cfg.Police+cfg.Civilians+len(cfg.Arsonists))

	for i := 0; i < cfg.Firefighters; i++ {
		station := fallback()
		if len(fireStations) > 0 {
			station = fireStations[i%len(fireStations)]
		}
		out = append(out, NewFirefighter(s.id(), station))
	}

	for i := 0; i < cfg.Police; i++ {
		station := fallback()
		if len(policeStations) > 0 {
			station = policeStations[i%len(policeStations)]
		}
		out = append(out, NewPolice(s.id(), station))
	}

	// One slot per unit of residential capacity, shuffled.
	var slots []city.Coord
	for i := range g.Cells {
		c := &g.Cells[i]
		if c.Capacity > 0 && c.Building.IsResidential() {
			for n := 0; n < c.Capacity; n++ {
				slots = append(slots, c.Coord)
			}
		}
	}
	s.rng.Shuffle(len(slots), func(i, j int) { slots[i], slots[j] = slots[j], slots[i] })

	civilians := min(cfg.Civilians, len(slots))
	for i := 0; i < civilians; i++ {
		work := fallback()
		if len(workplaces) > 0 {
			work = workplaces[s.rng.Intn(len(workplaces))]
		}
		out = append(out, NewCivilian(s.id(), slots[i], work, s.routine()))
	}

	for _, p := range cfg.Arsonists {
		out = append(out, NewArsonist(s.id(), fallback(), p, s.rng.Intn(200)))
	}

	return out
}

// routine draws 30% stay-at-home, 65% commuter, 5% night shift.
func (s *Spawner) routine() Routine {
	r := s.rng.Float64()
	switch {
	case r < 0.3:
		return RoutineStayAtHome
	case r < 0.95:
		return RoutineCommuter
	default:
		return RoutineNightShift
	}
}
