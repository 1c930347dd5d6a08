package engine

import (
	"strings"
	"testing"

	"github.com/talgya/firesim/internal/agents"
	"github.com/talgya/firesim/internal/city"
	"github.com/talgya/firesim/internal/entropy"
	"github.com/talgya/firesim/internal/fire"
)

// roadGrid returns a grid paved entirely with streets.
func roadGrid(w, h int) *city.Grid {
	g := city.NewGrid(w, h)
	for i := range g.Cells {
		g.Cells[i].Terrain = city.TerrainRoad
		g.Cells[i].Road = city.RoadStreet
	}
	return g
}

func placeBuilding(g *city.Grid, c city.Coord, b city.BuildingType) *city.Cell {
	*g.Get(c) = city.NewBuildingCell(c, b, city.DefaultCatalog())
	return g.Get(c)
}

func testParams() Params {
	p := DefaultParams()
	p.Days = 30
	p.Arsonists = nil
	return p
}

func newTestSim(g *city.Grid, ag []*agents.Agent, rng entropy.Source) *Simulation {
	return NewSimulation(testParams(), g, ag, rng)
}

func countEvents(s *Simulation, substr string) int {
	n := 0
	for _, e := range s.Events {
		if strings.Contains(e.Description, substr) {
			n++
		}
	}
	return n
}

func TestStep_RegistryInvariantsHoldEveryTick(t *testing.T) {
	p := DefaultParams()
	p.Width, p.Height = 60, 50
	p.Days = 3
	p.Civilians = 60
	p.ArsonMultiplier = 40
	p.Arsonists = []agents.Profile{agents.ProfilePyromaniac, agents.ProfilePyromaniac, agents.ProfileVandal}
	s := Build(p)
	for _, a := range s.Agents {
		if ars := a.Arsonist(); ars != nil {
			ars.Cooldown = 0
		}
	}

	for s.Step() {
		if !s.Fires.Consistent() {
			t.Fatalf("tick %d: a claimed fire is not reported", s.Tick)
		}
		for _, c := range s.Fires.Burning() {
			cell := s.Grid.Get(c)
			if cell.FireLevel <= 0 || cell.BurntOut {
				t.Fatalf("tick %d: registry burning %v has level %v burnt=%v", s.Tick, c, cell.FireLevel, cell.BurntOut)
			}
		}
		for i := range s.Grid.Cells {
			cell := &s.Grid.Cells[i]
			if cell.BurntOut && cell.FireLevel != 0 {
				t.Fatalf("tick %d: burnt cell %v still at level %v", s.Tick, cell.Coord, cell.FireLevel)
			}
			if cell.IsBurning() && !s.Fires.IsBurning(cell.Coord) {
				t.Fatalf("tick %d: burning cell %v missing from registry", s.Tick, cell.Coord)
			}
		}
		seen := make(map[agents.AgentID]bool, len(s.Agents))
		for _, a := range s.Agents {
			if seen[a.ID] {
				t.Fatalf("tick %d: duplicate agent %d", s.Tick, a.ID)
			}
			seen[a.ID] = true
			if a.Kind != a.Role.Kind() {
				t.Fatalf("tick %d: agent %d kind %v role %v", s.Tick, a.ID, a.Kind, a.Role.Kind())
			}
		}
	}
	if !s.Ended() || s.Tick != p.MaxTicks() {
		t.Fatalf("run stopped at tick %d phase %v", s.Tick, s.Phase)
	}
	if s.Stats.FiresStarted == 0 {
		t.Error("no fires were started; the run exercised nothing")
	}
}

func TestFirefighters_SingleCreditPerFire(t *testing.T) {
	g := roadGrid(12, 3)
	target := city.Coord{X: 10, Y: 0}
	cell := placeBuilding(g, target, city.BuildingWarehouse)
	cell.Ignite(3, 0)

	ag := []*agents.Agent{
		agents.NewFirefighter(1, city.Coord{X: 0, Y: 1}),
		agents.NewFirefighter(2, city.Coord{X: 1, Y: 1}),
	}
	s := newTestSim(g, ag, entropy.Always(0.99))
	s.Fires.Report(target)

	for i := 0; i < 20; i++ {
		s.Step()
	}

	if s.Stats.FiresExtinguished != 1 {
		t.Fatalf("fires extinguished = %d, want 1", s.Stats.FiresExtinguished)
	}
	total := ag[0].Responder().Extinguished + ag[1].Responder().Extinguished
	if total != 1 {
		t.Fatalf("per-firefighter credits sum to %d", total)
	}
	if g.Get(target).IsBurning() {
		t.Fatal("target still burning")
	}
	if b, r, c := s.Fires.Counts(); b+r+c != 0 {
		t.Fatalf("registry not cleared: burning=%d reported=%d claimed=%d", b, r, c)
	}
	if n := countEvents(s, "dispatched to fire"); n != 1 {
		t.Errorf("%d dispatch events, want 1", n)
	}
}

func TestFirefighter_ClaimsOnlyWhenReachable(t *testing.T) {
	g := roadGrid(6, 1)
	target := city.Coord{X: 5, Y: 0}
	placeBuilding(g, target, city.BuildingWarehouse).Ignite(3, 0)
	// Water cuts the firefighter off.
	g.Get(city.Coord{X: 2, Y: 0}).Terrain = city.TerrainWater

	ff := agents.NewFirefighter(1, city.Coord{X: 0, Y: 0})
	s := newTestSim(g, []*agents.Agent{ff}, entropy.Always(0.99))
	s.Fires.Report(target)
	s.Step()

	if s.Fires.IsClaimed(target) {
		t.Fatal("unreachable fire was claimed")
	}
	if ff.State != agents.StateIdle {
		t.Fatalf("state = %v, want idle", ff.State)
	}
}

func TestFirefighter_TargetBurntOutOnArrival(t *testing.T) {
	g := roadGrid(3, 1)
	target := city.Coord{X: 2, Y: 0}
	placeBuilding(g, target, city.BuildingWarehouse).BurnOut()

	ff := agents.NewFirefighter(1, city.Coord{X: 0, Y: 0})
	ff.X = 1
	ff.State = agents.StateResponding
	ff.Target = &target
	s := newTestSim(g, []*agents.Agent{ff}, entropy.Always(0.99))
	s.Step()

	if ff.State != agents.StateIdle || ff.Target != nil {
		t.Fatalf("state = %v target = %v, want idle with no target", ff.State, ff.Target)
	}
	if s.Stats.FiresExtinguished != 0 {
		t.Fatal("credited a fire that was not burning")
	}
}

func TestFirefighter_NoCreditForFireGoneBeforeCompletion(t *testing.T) {
	g := roadGrid(3, 1)
	target := city.Coord{X: 2, Y: 0}
	placeBuilding(g, target, city.BuildingWarehouse)

	ff := agents.NewFirefighter(1, city.Coord{X: 0, Y: 0})
	ff.State = agents.StateExtinguishing
	ff.Timer = 1
	ff.Target = &target
	s := newTestSim(g, []*agents.Agent{ff}, entropy.Always(0.99))
	s.Step()

	if s.Stats.FiresExtinguished != 0 || countEvents(s, "Fire extinguished") != 0 {
		t.Fatal("extinguish credited for a cell that was not burning")
	}
	if ff.Target != nil {
		t.Fatal("target kept after completion")
	}
}

func TestCollapse_KillsOccupantsOnce(t *testing.T) {
	g := city.NewGrid(1, 1)
	c := city.Coord{}
	placeBuilding(g, c, city.BuildingWarehouse).Ignite(9, 0)

	civ := agents.NewCivilian(1, c, c, agents.RoutineStayAtHome)
	free := agents.NewArsonist(2, c, agents.ProfileVandal, 500)
	caught := agents.NewArsonist(3, c, agents.ProfileVandal, 500)
	caught.State = agents.StateApprehended
	s := newTestSim(g, []*agents.Agent{civ, free, caught}, entropy.Always(0.99))

	for i := 0; i < 12; i++ {
		s.Step()
	}

	if s.Stats.Casualties != 2 {
		t.Fatalf("casualties = %d, want 2", s.Stats.Casualties)
	}
	if s.Stats.BuildingsDestroyed != 1 {
		t.Fatalf("buildings destroyed = %d, want 1", s.Stats.BuildingsDestroyed)
	}
	if len(s.Agents) != 1 || s.Agents[0].ID != 3 {
		t.Fatalf("survivors = %v, want only the apprehended arsonist", s.Agents)
	}
	if n := countEvents(s, "perished in collapsed building at (0, 0)"); n != 2 {
		t.Errorf("%d casualty events, want 2", n)
	}
	if n := countEvents(s, "Civilian trapped by fire"); n != 1 {
		t.Errorf("%d civilian trapped events, want 1", n)
	}
	if countEvents(s, "Warehouse at (0, 0) completely burned down.") != 1 {
		t.Error("missing burnout event")
	}
}

func TestCollapse_BurntOutParkKillsOccupant(t *testing.T) {
	g := city.NewGrid(1, 1)
	c := city.Coord{}
	park := g.Get(c)
	park.Terrain = city.TerrainPark
	park.Ignite(9, 0)

	civ := agents.NewCivilian(1, c, c, agents.RoutineStayAtHome)
	s := newTestSim(g, []*agents.Agent{civ}, entropy.Always(0.99))

	for i := 0; i < 12; i++ {
		s.Step()
	}

	if !park.BurntOut {
		t.Fatal("park did not burn out")
	}
	if s.Stats.Casualties != 1 || len(s.Agents) != 0 {
		t.Fatalf("casualties = %d agents = %d, want 1 and 0", s.Stats.Casualties, len(s.Agents))
	}
	if s.Stats.BuildingsDestroyed != 0 {
		t.Errorf("buildings destroyed = %d for a park", s.Stats.BuildingsDestroyed)
	}
	if countEvents(s, "completely burned down") != 0 {
		t.Error("park reported as a destroyed building")
	}
	if countEvents(s, "Civilian perished in collapsed building at (0, 0).") != 1 {
		t.Error("missing casualty event")
	}
}

func TestArsonist_RespectsFireCap(t *testing.T) {
	g := roadGrid(5, 3)
	for x := 0; x < 5; x++ {
		placeBuilding(g, city.Coord{X: x, Y: 0}, city.BuildingWarehouse)
		placeBuilding(g, city.Coord{X: x, Y: 2}, city.BuildingWarehouse)
	}
	ars := agents.NewArsonist(1, city.Coord{X: 2, Y: 1}, agents.ProfileGrifter, 0)
	s := newTestSim(g, []*agents.Agent{ars}, entropy.Always(0))

	for i := 0; i < 80; i++ {
		s.Step()
	}

	if s.Stats.FiresStarted != 1 {
		t.Fatalf("fires started = %d, want 1", s.Stats.FiresStarted)
	}
	if s.Stats.FiresByProfile[agents.ProfileGrifter] != 1 {
		t.Fatalf("fires by profile = %v", s.Stats.FiresByProfile)
	}
	if ars.Arsonist().ArsonCount != 1 {
		t.Fatalf("arson count = %d", ars.Arsonist().ArsonCount)
	}
	if ars.State != agents.StateWanderingLimitReached {
		t.Fatalf("state = %v, want wandering_limit_reached", ars.State)
	}
	if countEvents(s, "Fire started by Financial at a Warehouse") != 1 {
		t.Error("missing fire started event")
	}
}

func TestArsonist_ZeroChanceNeverIgnites(t *testing.T) {
	g := roadGrid(3, 2)
	for x := 0; x < 3; x++ {
		// CCTV cancels the gas station's base risk entirely.
		placeBuilding(g, city.Coord{X: x, Y: 0}, city.BuildingGasStation)
	}
	ars := agents.NewArsonist(1, city.Coord{X: 1, Y: 1}, agents.ProfileGrifter, 0)
	s := newTestSim(g, []*agents.Agent{ars}, entropy.Always(0))
	for i := 0; i < 10; i++ {
		s.Step()
	}
	if s.Stats.FiresStarted != 0 {
		t.Fatalf("fires started = %d at zero effective risk", s.Stats.FiresStarted)
	}
}

func TestPolice_ApprehendsNearbyArsonist(t *testing.T) {
	g := roadGrid(4, 1)
	cop := agents.NewPolice(1, city.Coord{X: 0, Y: 0})
	ars := agents.NewArsonist(2, city.Coord{X: 1, Y: 0}, agents.ProfileVandal, 100)
	s := newTestSim(g, []*agents.Agent{cop, ars}, entropy.Always(0.5))

	s.Step()
	if !ars.Apprehended() {
		t.Fatalf("arsonist state = %v", ars.State)
	}
	if cop.State != agents.StateApprehending {
		t.Fatalf("police state = %v", cop.State)
	}
	if s.Stats.ArsonistsApprehended != 1 || s.Stats.LiveArsonists != 0 {
		t.Fatalf("stats = %+v", s.Stats)
	}
	if countEvents(s, "Arsonist with VANDAL profile apprehended at (1, 0).") != 1 {
		t.Error("missing arrest event")
	}

	pos := ars.X
	s.Step()
	s.Step()
	if cop.State != agents.StatePatrolling {
		t.Fatalf("police still %v after hold", cop.State)
	}
	if ars.X != pos || !ars.Apprehended() {
		t.Fatal("apprehended arsonist moved or was released")
	}
	if s.Stats.ArsonistsApprehended != 1 {
		t.Fatalf("arrest counted %d times", s.Stats.ArsonistsApprehended)
	}
}

func TestPolice_ReportsFireInView(t *testing.T) {
	g := roadGrid(10, 3)
	fireAt := city.Coord{X: 6, Y: 0}
	placeBuilding(g, fireAt, city.BuildingWarehouse).Ignite(2, 0)
	cop := agents.NewPolice(1, city.Coord{X: 0, Y: 1})
	s := newTestSim(g, []*agents.Agent{cop}, entropy.Always(0.99))

	s.Step()
	if !s.Fires.IsReported(fireAt) {
		t.Fatal("fire within the officer's view was not reported")
	}
	if countEvents(s, "Fire reported at (6, 0).") != 1 {
		t.Error("missing report event")
	}
}

func TestPolice_KnownFireShadowsRestOfScan(t *testing.T) {
	g := roadGrid(20, 20)
	known, unknown := city.Coord{X: 5, Y: 10}, city.Coord{X: 12, Y: 10}
	placeBuilding(g, known, city.BuildingWarehouse).Ignite(2, 0)
	placeBuilding(g, unknown, city.BuildingWarehouse).Ignite(2, 0)
	cop := agents.NewPolice(1, city.Coord{X: 10, Y: 10})
	s := newTestSim(g, []*agents.Agent{cop}, entropy.Always(0.99))
	s.Fires.Report(known)

	s.Step()
	if s.Fires.IsReported(unknown) {
		t.Fatal("officer reported past the first burning cell in the scan")
	}

	fire.Extinguish(g, s.Fires, known)
	s.Step()
	if !s.Fires.IsReported(unknown) {
		t.Fatal("fire not reported once it is the first in the scan")
	}
}

func TestSurveillance_DiscWithoutStacking(t *testing.T) {
	g := city.NewGrid(21, 21)
	center := city.Coord{X: 10, Y: 10}
	ag := []*agents.Agent{
		agents.NewPolice(1, center),
		agents.NewPolice(2, center.Add(1, 0)),
	}
	s := newTestSim(g, ag, entropy.Always(0.5))
	s.Step()

	r := s.Params.SurveillanceRadius
	for i := range g.Cells {
		cell := &g.Cells[i]
		in := false
		for _, a := range ag {
			p := a.Cell()
			dx, dy := cell.Coord.X-p.X, cell.Coord.Y-p.Y
			if dx*dx+dy*dy <= r*r {
				in = true
			}
		}
		want := 0.0
		if in {
			want = s.Params.SurveillanceBonus
		}
		if cell.DynamicSurveillance != want {
			t.Fatalf("cell %v surveillance = %v, want %v", cell.Coord, cell.DynamicSurveillance, want)
		}
	}
}

func TestRiot_ConvertsCivilianKeepingIdentity(t *testing.T) {
	g := roadGrid(5, 1)
	civ := agents.NewCivilian(9, city.Coord{X: 2, Y: 0}, city.Coord{X: 4, Y: 0}, agents.RoutineStayAtHome)
	p := testParams()
	p.Scenario = ScenarioRiot
	s := NewSimulation(p, g, []*agents.Agent{civ}, entropy.Always(0))

	s.Step()
	if civ.Kind != agents.KindArsonist || civ.ID != 9 {
		t.Fatalf("agent = %v/%d after riot tick", civ.Kind, civ.ID)
	}
	if civ.Arsonist().Profile != agents.ProfileProtester {
		t.Fatalf("profile = %v", civ.Arsonist().Profile)
	}
	if countEvents(s, "A civilian has joined the riot at (2, 0)!") != 1 {
		t.Error("missing riot event")
	}
}

func TestCivilian_FleesVisibleFire(t *testing.T) {
	g := roadGrid(20, 3)
	placeBuilding(g, city.Coord{X: 5, Y: 0}, city.BuildingWarehouse).Ignite(2, 0)
	civ := agents.NewCivilian(1, city.Coord{X: 6, Y: 1}, city.Coord{X: 19, Y: 1}, agents.RoutineStayAtHome)
	s := newTestSim(g, []*agents.Agent{civ}, entropy.Always(0.99))

	s.Step()
	if civ.State != agents.StateFleeing {
		t.Fatalf("state = %v, want fleeing", civ.State)
	}
	if civ.X <= 6 {
		t.Fatalf("civilian moved towards the fire: x = %v", civ.X)
	}
	if !s.Fires.IsReported(city.Coord{X: 5, Y: 0}) {
		t.Error("civilian did not report the fire")
	}
}

func TestMove_CarriesBudgetAcrossWaypoints(t *testing.T) {
	g := roadGrid(6, 1)
	a := agents.NewPolice(1, city.Coord{})
	a.Path = []city.Coord{{X: 1, Y: 0}, {X: 2, Y: 0}, {X: 3, Y: 0}, {X: 4, Y: 0}}
	s := newTestSim(g, []*agents.Agent{a}, entropy.Always(0.5))

	s.move(&tickContext{congestion: 1}, a)
	if a.X != 2.5 || a.Y != 0 {
		t.Fatalf("position = (%v, %v), want (2.5, 0)", a.X, a.Y)
	}
	if len(a.Path) != 2 {
		t.Fatalf("%d waypoints left, want 2", len(a.Path))
	}
}

func TestMove_BlockedByFireClearsPath(t *testing.T) {
	g := roadGrid(4, 1)
	g.Get(city.Coord{X: 1, Y: 0}).FireLevel = 5
	civ := agents.NewCivilian(1, city.Coord{}, city.Coord{X: 3, Y: 0}, agents.RoutineCommuter)
	civ.State = agents.StateGoingToWork
	civ.Path = []city.Coord{{X: 1, Y: 0}, {X: 2, Y: 0}}
	s := newTestSim(g, []*agents.Agent{civ}, entropy.Always(0.5))

	s.move(&tickContext{congestion: 1}, civ)
	if civ.HasPath() || civ.State != agents.StateFleeing || civ.X != 0 {
		t.Fatalf("blocked civilian: path=%v state=%v x=%v", civ.Path, civ.State, civ.X)
	}

	ff := agents.NewFirefighter(2, city.Coord{})
	ff.State = agents.StateResponding
	ff.Path = []city.Coord{{X: 1, Y: 0}}
	s.move(&tickContext{congestion: 1}, ff)
	if ff.X != 1 {
		t.Fatalf("responding firefighter did not enter the fire: x=%v", ff.X)
	}
}

func TestStep_HistoryAndEventOrder(t *testing.T) {
	g := roadGrid(3, 1)
	s := newTestSim(g, nil, entropy.Always(0.5))
	for i := 0; i < 8; i++ {
		s.Step()
	}
	if len(s.History) != 2 || s.History[1].Tick != 8 {
		t.Fatalf("history = %+v", s.History)
	}
	s.Record(CategorySystem, "later")
	if s.Events[0].Description != "later" {
		t.Fatalf("newest event = %q", s.Events[0].Description)
	}
}

func TestStep_PausedAndEnded(t *testing.T) {
	g := roadGrid(3, 1)
	p := testParams()
	p.Days = 1
	s := NewSimulation(p, g, nil, entropy.Always(0.5))

	s.Step()
	if !s.Pause() || s.Step() || s.Tick != 1 {
		t.Fatal("paused simulation advanced")
	}
	if !s.Resume() {
		t.Fatal("resume failed")
	}
	for s.Step() {
	}
	if !s.Ended() || s.Tick != TicksPerDay {
		t.Fatalf("ended=%v at tick %d", s.Ended(), s.Tick)
	}
	if countEvents(s, "Simulation ended") != 1 {
		t.Error("end recorded more than once")
	}
	if s.Step() {
		t.Fatal("stepped after end")
	}
}

func TestReset_RegeneratesIdentically(t *testing.T) {
	p := DefaultParams()
	p.Width, p.Height = 40, 30
	p.Civilians = 10
	s := Build(p)
	first := s.Grid.Clone()
	for i := 0; i < 5; i++ {
		s.Step()
	}
	s.Reset()
	if s.Tick != 0 || s.Phase != PhaseNotStarted {
		t.Fatalf("reset left tick %d phase %v", s.Tick, s.Phase)
	}
	for i := range first.Cells {
		if first.Cells[i].Terrain != s.Grid.Cells[i].Terrain || first.Cells[i].Building != s.Grid.Cells[i].Building {
			t.Fatalf("cell %d differs after reset", i)
		}
	}
	if !strings.HasPrefix(s.Events[0].Description, "Simulation reset with NORMAL") {
		t.Fatalf("reset event = %q", s.Events[0].Description)
	}
}
