// City generation: river, parks, road skeleton, then building blocks ringed
// by street perimeters so every structure has a walkable approach.
package city

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds city generation parameters.
type GenConfig struct {
	Width              int
	Height             int
	Seed               int64
	PoliceStations     int
	FireStations       int
	HorizontalHighways int
	VerticalHighways   int
	MainRoadInterval   int
	Alleys             int
	Hospitals          int
	MinStationDistance float64
	Density            float64 // Residential placement attempts multiplier
	Catalog            Catalog
}

// DefaultGenConfig returns the reference 120x100 layout parameters.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:              120,
		Height:             100,
		Seed:               42,
		PoliceStations:     3,
		FireStations:       2,
		HorizontalHighways: 2,
		VerticalHighways:   3,
		MainRoadInterval:   10,
		Alleys:             30,
		Hospitals:          2,
		MinStationDistance: 30,
		Density:            1.8,
		Catalog:            DefaultCatalog(),
	}
}

// StationCounts returns how many police and fire stations a force of the
// given size needs: one police station per 4 officers, one fire station per 6
// firefighters.
func StationCounts(police, firefighters int) (policeStations, fireStations int) {
	return (police + 3) / 4, (firefighters + 5) / 6
}

type generator struct {
	cfg  GenConfig
	g    *Grid
	rng  *rand.Rand
	cat  Catalog
	seed int64
}

// Generate builds a complete city deterministically from cfg.Seed.
func Generate(cfg GenConfig) *Grid {
	if cfg.Catalog == nil {
		cfg.Catalog = DefaultCatalog()
	}
	if cfg.MainRoadInterval <= 0 {
		cfg.MainRoadInterval = 10
	}
	if cfg.Density <= 0 {
		cfg.Density = 1
	}

	gen := &generator{
		cfg:  cfg,
		g:    NewGrid(cfg.Width, cfg.Height),
		rng:  rand.New(rand.NewSource(cfg.Seed)),
		cat:  cfg.Catalog,
		seed: cfg.Seed,
	}

	// Terrain and backbones.
	gen.addRiver()
	gen.addParks()
	gen.addHighways()
	gen.addMainRoads()

	// Buildings.
	gen.placeResidential()
	gen.placePublicAndHealth()
	gen.placeCommercialAndTransport()
	gen.placeIndustrial()
	gen.placeSafety()
	gen.addAlleys()

	// Infill single-tile homes.
	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			c := Coord{X: x, Y: y}
			if gen.g.Get(c).Terrain != TerrainLand {
				continue
			}
			gen.setBuilding(c, BuildingSingleFamilyHome)
			if !gen.hasAdjacentRoad(c) {
				gen.addPerimeter(x, y, 1, 1)
			}
		}
	}

	return gen.g
}

// intn is rand.Intn that tolerates non-positive bounds on small grids.
func (gen *generator) intn(n int) int {
	if n <= 0 {
		return 0
	}
	return gen.rng.Intn(n)
}

func (gen *generator) setTerrain(c Coord, t Terrain, road RoadType) {
	cell := gen.g.Get(c)
	if cell == nil {
		return
	}
	*cell = Cell{
		Coord:        c,
		Terrain:      t,
		Road:         road,
		Flammability: DefaultFlammability,
		ArsonRisk:    DefaultArsonRisk,
	}
}

func (gen *generator) setBuilding(c Coord, b BuildingType) {
	cell := gen.g.Get(c)
	if cell == nil {
		return
	}
	*cell = NewBuildingCell(c, b, gen.cat)
}

// NewBuildingCell creates a building cell with properties taken from the catalog.
// Types missing from the catalog get the plain-cell defaults.
func NewBuildingCell(c Coord, b BuildingType, cat Catalog) Cell {
	cell := Cell{
		Coord:        c,
		Terrain:      TerrainBuilding,
		Building:     b,
		Flammability: DefaultFlammability,
		ArsonRisk:    DefaultArsonRisk,
	}
	if spec, ok := cat[b]; ok {
		cell.Flammability = spec.Flammability
		cell.ArsonRisk = spec.ArsonRisk
		cell.Surveillance = spec.Surveillance
		cell.Capacity = spec.Capacity
		cell.Controls = spec.Controls
	}
	return cell
}

// addRiver carves one east-west river whose centre line meanders with simplex noise.
func (gen *generator) addRiver() {
	w, h := gen.cfg.Width, gen.cfg.Height
	width := gen.rng.Intn(4) + 3 // 3-6
	if h < width+2 {
		return
	}
	base := gen.intn(h-20) + 10
	if base > h-width {
		base = h - width
	}
	drift := opensimplex.NewNormalized(gen.seed + 1)

	for x := 0; x < w; x++ {
		offset := (octaveNoise(drift, float64(x), 0, 3, 0.03, 0.5) - 0.5) * 16
		top := base + int(math.Round(offset))
		top = max(0, min(h-width, top))
		for dy := 0; dy < width; dy++ {
			gen.setTerrain(Coord{X: x, Y: top + dy}, TerrainWater, RoadNone)
		}
	}
}

// addParks lays out a central park and several noise-shaped neighbourhood parks.
func (gen *generator) addParks() {
	w, h := gen.cfg.Width, gen.cfg.Height
	px, py := w/4, h/4
	for y := py; y < py+10 && y < h; y++ {
		for x := px; x < px+15 && x < w; x++ {
			gen.setTerrain(Coord{X: x, Y: y}, TerrainPark, RoadNone)
		}
	}

	shape := opensimplex.NewNormalized(gen.seed + 2)
	for i := 0; i < 6; i++ {
		x0 := gen.intn(w-10) + 5
		y0 := gen.intn(h-10) + 5
		pw := gen.rng.Intn(4) + 3
		ph := gen.rng.Intn(4) + 3
		for y := y0; y < y0+ph; y++ {
			for x := x0; x < x0+pw; x++ {
				c := Coord{X: x, Y: y}
				cell := gen.g.Get(c)
				if cell == nil || cell.Terrain != TerrainLand {
					continue
				}
				// Ragged edges: drop border cells where the noise is low.
				edge := x == x0 || y == y0 || x == x0+pw-1 || y == y0+ph-1
				if edge && octaveNoise(shape, float64(x), float64(y), 2, 0.3, 0.5) < 0.35 {
					continue
				}
				gen.setTerrain(c, TerrainPark, RoadNone)
			}
		}
	}
}

// addHighways lays three-cell-wide highways; crossings over water become bridges.
func (gen *generator) addHighways() {
	w, h := gen.cfg.Width, gen.cfg.Height
	n := gen.cfg.HorizontalHighways
	for i := 1; i <= n; i++ {
		y := int(math.Floor(float64(h) / float64(n+1) * float64(i)))
		for x := 0; x < w; x++ {
			t := RoadHighway
			if gen.g.Get(Coord{X: x, Y: y}).Terrain == TerrainWater {
				t = RoadBridge
			}
			for off := -1; off <= 1; off++ {
				gen.setTerrain(Coord{X: x, Y: y + off}, TerrainRoad, t)
			}
		}
	}
	n = gen.cfg.VerticalHighways
	for i := 1; i <= n; i++ {
		x := int(math.Floor(float64(w) / float64(n+1) * float64(i)))
		for y := 0; y < h; y++ {
			t := RoadHighway
			if gen.g.Get(Coord{X: x, Y: y}).Terrain == TerrainWater {
				t = RoadBridge
			}
			for off := -1; off <= 1; off++ {
				gen.setTerrain(Coord{X: x + off, Y: y}, TerrainRoad, t)
			}
		}
	}
}

// addMainRoads lays a grid of single-cell main roads over open land.
func (gen *generator) addMainRoads() {
	w, h, step := gen.cfg.Width, gen.cfg.Height, gen.cfg.MainRoadInterval
	for y := 0; y < h; y += step {
		for x := 0; x < w; x++ {
			gen.roadIfLand(Coord{X: x, Y: y}, RoadMain)
		}
	}
	for x := 0; x < w; x += step {
		for y := 0; y < h; y++ {
			gen.roadIfLand(Coord{X: x, Y: y}, RoadMain)
		}
	}
}

func (gen *generator) roadIfLand(c Coord, t RoadType) {
	if cell := gen.g.Get(c); cell != nil && cell.Terrain == TerrainLand {
		gen.setTerrain(c, TerrainRoad, t)
	}
}

// addPerimeter rings a w x h block at (x, y) with street cells over open land.
func (gen *generator) addPerimeter(x, y, w, h int) {
	for dx := -1; dx <= w; dx++ {
		gen.roadIfLand(Coord{X: x + dx, Y: y - 1}, RoadStreet)
		gen.roadIfLand(Coord{X: x + dx, Y: y + h}, RoadStreet)
	}
	for dy := 0; dy < h; dy++ {
		gen.roadIfLand(Coord{X: x - 1, Y: y + dy}, RoadStreet)
		gen.roadIfLand(Coord{X: x + w, Y: y + dy}, RoadStreet)
	}
}

func (gen *generator) canPlace(x, y, w, h int) bool {
	if x < 0 || y < 0 || x+w > gen.cfg.Width || y+h > gen.cfg.Height {
		return false
	}
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			if gen.g.Get(Coord{X: x + dx, Y: y + dy}).Terrain != TerrainLand {
				return false
			}
		}
	}
	return true
}

func (gen *generator) size(b BuildingType) (int, int) {
	spec, ok := gen.cat[b]
	if !ok || spec.Width <= 0 || spec.Height <= 0 {
		return 1, 1
	}
	return spec.Width, spec.Height
}

func (gen *generator) stamp(b BuildingType, x, y, w, h int) {
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			gen.setBuilding(Coord{X: x + dx, Y: y + dy}, b)
		}
	}
	gen.addPerimeter(x, y, w, h)
}

// placeBlock tries up to 120 random positions for each of count buildings.
func (gen *generator) placeBlock(b BuildingType, count int) {
	w, h := gen.size(b)
	for i := 0; i < count; i++ {
		for tries := 0; tries < 120; tries++ {
			x := gen.intn(gen.cfg.Width - w)
			y := gen.intn(gen.cfg.Height - h)
			if !gen.canPlace(x, y, w, h) {
				continue
			}
			gen.stamp(b, x, y, w, h)
			break
		}
	}
}

type placement struct {
	b     BuildingType
	count int
}

// placeResidential fills four quadrant districts with a mix of home types.
func (gen *generator) placeResidential() {
	sx := float64(gen.cfg.Width) / 120
	sy := float64(gen.cfg.Height) / 100
	scale := func(v int, s float64) int { return int(float64(v) * s) }

	areas := [4][4]int{
		{6, 6, 44, 44},
		{65, 5, 44, 44},
		{6, 55, 44, 38},
		{65, 55, 44, 38},
	}
	attempts := int(60 * gen.cfg.Density)
	for _, a := range areas {
		ax, ay := scale(a[0], sx), scale(a[1], sy)
		aw, ah := scale(a[2], sx), scale(a[3], sy)
		for i := 0; i < attempts; i++ {
			x := ax + gen.intn(aw)
			y := ay + gen.intn(ah)
			cell := gen.g.Get(Coord{X: x, Y: y})
			if cell == nil || cell.Terrain != TerrainLand {
				continue
			}
			b := BuildingApartment
			switch r := gen.rng.Float64(); {
			case r < 0.12:
				b = BuildingSingleFamilyHome
			case r < 0.55:
				b = BuildingMultiFamilyHome
			}
			w, h := gen.size(b)
			if !gen.canPlace(x, y, w, h) {
				continue
			}
			gen.stamp(b, x, y, w, h)
		}
	}
}

func (gen *generator) placePublicAndHealth() {
	for _, p := range []placement{
		{BuildingTownHall, 1},
		{BuildingAdminOffice, 2},
		{BuildingPublicOffice, 3},
		{BuildingElementarySchool, 4},
		{BuildingMiddleSchool, 3},
		{BuildingHighSchool, 2},
		{BuildingKindergarten, 5},
		{BuildingVocationalSchool, 2},
		{BuildingUniversity, 1},
		{BuildingChurch, 3},
		{BuildingSynagogue, 1},
		{BuildingMosque, 1},
		{BuildingBuddhistTemple, 1},
		{BuildingLibrary, 2},
		{BuildingMuseum, 1},
		{BuildingTheater, 1},
		{BuildingPool, 1},
		{BuildingCommunityCenter, 4},
		{BuildingStadium, 1},
		{BuildingHospital, gen.cfg.Hospitals},
		{BuildingClinic, 3},
	} {
		gen.placeBlock(p.b, p.count)
	}
}

func (gen *generator) placeCommercialAndTransport() {
	for _, p := range []placement{
		{BuildingGasStation, 6},
		{BuildingKiosk, 20},
		{BuildingSupermarket, 8},
		{BuildingShoppingMall, 2},
		{BuildingParkingGarage, 4},
		{BuildingParkingLot, 15},
		{BuildingMarketStall, 10},
		{BuildingBusStop, 30},
		{BuildingTrainStation, 1},
	} {
		gen.placeBlock(p.b, p.count)
	}
}

// placeIndustrial keeps heavy industry in the southern band of the city.
func (gen *generator) placeIndustrial() {
	w, h := gen.cfg.Width, gen.cfg.Height
	band := int(float64(h) * 0.7)
	for _, p := range []placement{
		{BuildingIndustrialHall, 4},
		{BuildingWarehouse, 8},
		{BuildingBusDepot, 2},
	} {
		bw, bh := gen.size(p.b)
		for i := 0; i < p.count; i++ {
			for tries := 0; tries < 120; tries++ {
				x := gen.intn(w-bw-20) + 10
				y := gen.intn(h-bh-band-5) + band
				if !gen.canPlace(x, y, bw, bh) {
					continue
				}
				gen.stamp(p.b, x, y, bw, bh)
				break
			}
		}
	}
}

// placeSafety spaces police and fire stations at least MinStationDistance apart.
func (gen *generator) placeSafety() {
	var placed []Coord
	for _, p := range []placement{
		{BuildingPoliceStation, gen.cfg.PoliceStations},
		{BuildingFireStation, gen.cfg.FireStations},
	} {
		w, h := gen.size(p.b)
		for i := 0; i < p.count; i++ {
			for tries := 0; tries < 200; tries++ {
				x := gen.intn(gen.cfg.Width - w)
				y := gen.intn(gen.cfg.Height - h)
				if !gen.canPlace(x, y, w, h) || gen.tooClose(placed, x, y) {
					continue
				}
				gen.stamp(p.b, x, y, w, h)
				placed = append(placed, Coord{X: x, Y: y})
				break
			}
		}
	}
}

func (gen *generator) tooClose(placed []Coord, x, y int) bool {
	for _, p := range placed {
		if math.Hypot(float64(x-p.X), float64(y-p.Y)) < gen.cfg.MinStationDistance {
			return true
		}
	}
	return false
}

// addAlleys cuts short straight passages through building blocks.
func (gen *generator) addAlleys() {
	dirs := [4]Coord{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}}
	for i := 0; i < gen.cfg.Alleys; i++ {
		x0 := gen.intn(gen.cfg.Width-2) + 1
		y0 := gen.intn(gen.cfg.Height-2) + 1
		if cell := gen.g.Get(Coord{X: x0, Y: y0}); cell == nil || cell.Terrain != TerrainBuilding {
			continue
		}
		length := gen.rng.Intn(6) + 5
		d := dirs[gen.rng.Intn(4)]
		for l := 0; l < length; l++ {
			c := Coord{X: x0 + l*d.X, Y: y0 + l*d.Y}
			cell := gen.g.Get(c)
			if cell == nil || cell.Terrain != TerrainBuilding {
				break
			}
			gen.setTerrain(c, TerrainRoad, RoadAlley)
		}
	}
}

func (gen *generator) hasAdjacentRoad(c Coord) bool {
	for _, d := range Neighbors4 {
		if n := gen.g.Get(c.Add(d.X, d.Y)); n != nil && n.Terrain == TerrainRoad {
			return true
		}
	}
	return false
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
