package agents

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/talgya/firesim/internal/city"
)

func TestConvertToArsonist_PreservesIdentity(t *testing.T) {
	a := NewCivilian(7, city.Coord{X: 3, Y: 4}, city.Coord{X: 9, Y: 9}, RoutineCommuter)
	a.X, a.Y = 3.5, 4.25
	a.Path = []city.Coord{{X: 4, Y: 4}}

	a.ConvertToArsonist(ProfileProtester)

	if a.ID != 7 || a.X != 3.5 || a.Y != 4.25 {
		t.Fatalf("identity lost: id=%d pos=(%v,%v)", a.ID, a.X, a.Y)
	}
	if a.Kind != KindArsonist || a.Role.Kind() != KindArsonist {
		t.Fatalf("kind = %v, role kind = %v", a.Kind, a.Role.Kind())
	}
	ars := a.Arsonist()
	if ars == nil || ars.Profile != ProfileProtester || ars.Cooldown != 0 || ars.ArsonCount != 0 {
		t.Fatalf("arsonist role = %+v", ars)
	}
	if a.Resident() != nil {
		t.Fatal("resident role survived conversion")
	}
	if a.State != StatePatrolling {
		t.Errorf("state = %v, want patrolling", a.State)
	}
}

func TestAgent_RoleAccessors(t *testing.T) {
	ff := NewFirefighter(1, city.Coord{X: 1, Y: 1})
	if ff.Responder() == nil || ff.Responder().Kind() != KindFirefighter {
		t.Fatal("firefighter has no firefighter responder role")
	}
	if ff.Arsonist() != nil || ff.Resident() != nil {
		t.Fatal("firefighter exposes foreign roles")
	}
	p := NewPolice(2, city.Coord{})
	if p.Role.Kind() != KindPolice || p.State != StatePatrolling {
		t.Fatalf("police role kind = %v state = %v", p.Role.Kind(), p.State)
	}
	if ff.Label() != "firefighter-1" {
		t.Errorf("Label = %q", ff.Label())
	}
}

func TestAgent_CellFloors(t *testing.T) {
	a := &Agent{X: 2.9, Y: 0.1}
	if got := a.Cell(); got != (city.Coord{X: 2, Y: 0}) {
		t.Fatalf("Cell = %v", got)
	}
}

func TestAgent_JSON(t *testing.T) {
	a := NewArsonist(5, city.Coord{X: 1, Y: 2}, ProfileVandal, 12)
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{`"kind":"arsonist"`, `"state":"patrolling"`, `"profile":"VANDAL"`} {
		if !strings.Contains(s, want) {
			t.Errorf("JSON %s missing %s", s, want)
		}
	}
}

func TestProfile_Targets(t *testing.T) {
	if !ProfilePyromaniac.Targets(city.BuildingChurch) {
		t.Error("pyromaniac should target any building")
	}
	if !ProfileGrifter.Targets(city.BuildingGasStation) {
		t.Error("grifter should target gas stations")
	}
	if ProfileGrifter.Targets(city.BuildingChurch) {
		t.Error("grifter should not target churches")
	}
	if !ProfileProtester.Targets(city.BuildingTownHall) {
		t.Error("protester should target the town hall")
	}
}

func TestFireCaps(t *testing.T) {
	caps := DefaultFireCaps()
	if caps.Reached(ProfilePyromaniac, 1000) {
		t.Error("pyromaniac cap reached")
	}
	if caps.Reached(ProfileVandal, 1) {
		t.Error("vandal capped after one fire")
	}
	if !caps.Reached(ProfileVandal, 2) {
		t.Error("vandal not capped after two fires")
	}
	caps[ProfileGrifter] = 0
	if !caps.Reached(ProfileGrifter, 0) {
		t.Error("zero cap should block the first fire")
	}
}

func TestParseProfile(t *testing.T) {
	p, err := ParseProfile("grifter")
	if err != nil || p != ProfileGrifter {
		t.Fatalf("ParseProfile = %v, %v", p, err)
	}
	if _, err := ParseProfile("arsonist"); err == nil {
		t.Fatal("expected error")
	}
}

func TestSpawn_Counts(t *testing.T) {
	cfg := city.DefaultGenConfig()
	cfg.PoliceStations, cfg.FireStations = city.StationCounts(6, 8)
	g := city.Generate(cfg)

	sp := NewSpawner(1)
	ag := sp.Spawn(g, SpawnConfig{
		Firefighters: 8,
		Police:       6,
		Civilians:    50,
		Arsonists:    []Profile{ProfilePyromaniac, ProfileVandal},
	})

	var counts [NumKinds]int
	seen := make(map[AgentID]bool)
	for _, a := range ag {
		counts[a.Kind]++
		if seen[a.ID] {
			t.Fatalf("duplicate id %d", a.ID)
		}
		seen[a.ID] = true
	}
	if counts[KindFirefighter] != 8 || counts[KindPolice] != 6 || counts[KindCivilian] != 50 || counts[KindArsonist] != 2 {
		t.Fatalf("counts = %v", counts)
	}

	// Dispatch order is preserved by spawn order.
	for i := 1; i < len(ag); i++ {
		if ag[i].Kind < ag[i-1].Kind {
			t.Fatalf("agent %d (%v) spawned after %v", i, ag[i].Kind, ag[i-1].Kind)
		}
	}

	for _, a := range ag {
		if r := a.Resident(); r != nil {
			if !g.Get(r.Home).Building.IsResidential() {
				t.Fatalf("civilian %d home %v is not residential", a.ID, r.Home)
			}
		}
		if a.Kind == KindFirefighter && len(g.Find(func(c *city.Cell) bool { return c.Building == city.BuildingFireStation })) > 0 {
			if g.Get(a.Responder().Station).Building != city.BuildingFireStation {
				t.Fatalf("firefighter %d not at a fire station", a.ID)
			}
		}
	}
}

func TestSpawn_CiviliansCappedByCapacity(t *testing.T) {
	g := city.NewGrid(3, 1)
	g.Cells[0] = city.NewBuildingCell(city.Coord{}, city.BuildingSingleFamilyHome, city.DefaultCatalog())
	g.Cells[1].Terrain = city.TerrainRoad

	ag := NewSpawner(1).Spawn(g, SpawnConfig{Civilians: 10})
	if len(ag) != 4 {
		t.Fatalf("spawned %d civilians into capacity 4", len(ag))
	}
}
