package city

import (
	"fmt"
	"strings"
)

// BuildingType enumerates the structures a building cell can hold.
type BuildingType uint8

const (
	BuildingNone BuildingType = iota

	// Public
	BuildingTownHall
	BuildingAdminOffice
	BuildingPublicOffice
	BuildingElementarySchool
	BuildingMiddleSchool
	BuildingHighSchool
	BuildingVocationalSchool
	BuildingUniversity
	BuildingKindergarten
	BuildingChurch
	BuildingSynagogue
	BuildingMosque
	BuildingBuddhistTemple
	BuildingStadium
	BuildingLibrary
	BuildingMuseum
	BuildingTheater
	BuildingPool
	BuildingCommunityCenter

	// Residential
	BuildingSingleFamilyHome
	BuildingMultiFamilyHome
	BuildingApartment

	// Commercial
	BuildingGasStation
	BuildingKiosk
	BuildingSupermarket
	BuildingShoppingMall
	BuildingParkingGarage
	BuildingParkingLot
	BuildingMarketStall

	// Health
	BuildingHospital
	BuildingClinic

	// Safety
	BuildingPoliceStation
	BuildingFireStation

	// Transport
	BuildingTrainStation
	BuildingBusDepot
	BuildingBusStop

	// Industrial
	BuildingIndustrialHall
	BuildingWarehouse

	numBuildingTypes
)

var buildingNames = [numBuildingTypes]string{
	"",
	"TOWN_HALL", "ADMIN_OFFICE", "PUBLIC_OFFICE", "ELEMENTARY_SCHOOL", "MIDDLE_SCHOOL",
	"HIGH_SCHOOL", "VOCATIONAL_SCHOOL", "UNIVERSITY", "KINDERGARTEN", "CHURCH",
	"SYNAGOGUE", "MOSQUE", "BUDDHIST_TEMPLE", "STADIUM", "LIBRARY", "MUSEUM",
	"THEATER", "POOL", "COMMUNITY_CENTER",
	"SINGLE_FAMILY_HOME", "MULTI_FAMILY_HOME", "APARTMENT_BUILDING",
	"GAS_STATION", "KIOSK", "SUPERMARKET", "SHOPPING_MALL", "PARKING_GARAGE",
	"PARKING_LOT", "MARKET_STALL",
	"HOSPITAL", "CLINIC",
	"POLICE_STATION", "FIRE_STATION",
	"TRAIN_STATION", "BUS_DEPOT", "BUS_STOP",
	"INDUSTRIAL_HALL", "WAREHOUSE",
}

func (b BuildingType) String() string {
	if b < numBuildingTypes {
		return buildingNames[b]
	}
	return fmt.Sprintf("BuildingType(%d)", b)
}

// MarshalText renders the building type by name in JSON payloads.
func (b BuildingType) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// Label returns a human-readable name such as "Gas Station".
func (b BuildingType) Label() string {
	if b == BuildingNone {
		return "Building"
	}
	words := strings.Split(strings.ToLower(b.String()), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// IsTransit returns true for the building types agents can pass through.
func (b BuildingType) IsTransit() bool {
	return b == BuildingParkingLot || b == BuildingMarketStall || b == BuildingPool
}

// IsResidential returns true for homes civilians spawn in.
func (b BuildingType) IsResidential() bool {
	return b == BuildingSingleFamilyHome || b == BuildingMultiFamilyHome || b == BuildingApartment
}

// IsStation returns true for police and fire stations.
func (b BuildingType) IsStation() bool {
	return b == BuildingPoliceStation || b == BuildingFireStation
}

// IsShop returns true for destinations of civilian shopping trips.
func (b BuildingType) IsShop() bool {
	return b == BuildingSupermarket || b == BuildingShoppingMall || b == BuildingKiosk
}

// ParseBuildingType resolves a name such as "GAS_STATION" (case-insensitive).
func ParseBuildingType(name string) (BuildingType, error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	for i := BuildingType(1); i < numBuildingTypes; i++ {
		if buildingNames[i] == key {
			return i, nil
		}
	}
	return BuildingNone, fmt.Errorf("unknown building type %q", name)
}

// AllBuildingTypes lists every concrete building type in declaration order.
func AllBuildingTypes() []BuildingType {
	out := make([]BuildingType, 0, numBuildingTypes-1)
	for i := BuildingType(1); i < numBuildingTypes; i++ {
		out = append(out, i)
	}
	return out
}

// BuildingSpec holds the editable properties of a building type.
type BuildingSpec struct {
	Width        int      `json:"width"`
	Height       int      `json:"height"`
	ArsonRisk    float64  `json:"arson_risk"`
	Flammability float64  `json:"flammability"`
	Surveillance float64  `json:"surveillance"`
	Capacity     int      `json:"capacity"`
	Controls     Controls `json:"controls"`
}

// Catalog maps building types to their properties. It is edited between runs
// and applied to cells when the city is generated.
type Catalog map[BuildingType]BuildingSpec

// Clone returns an independent copy of the catalog.
func (c Catalog) Clone() Catalog {
	out := make(Catalog, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// DefaultCatalog returns the reference building table.
func DefaultCatalog() Catalog {
	const (
		cctv   = ControlCCTV
		contro = ControlControversial
		iso    = ControlIsolated
		patrol = ControlSecurityPatrol
	)
	return Catalog{
		BuildingTownHall:         {3, 2, 0.07, 0.6, 0.8, 50, contro | cctv},
		BuildingAdminOffice:      {2, 2, 0.06, 0.5, 0.6, 40, cctv},
		BuildingPublicOffice:     {2, 2, 0.05, 0.5, 0.5, 30, cctv},
		BuildingElementarySchool: {3, 2, 0.02, 0.4, 0.3, 150, 0},
		BuildingMiddleSchool:     {3, 2, 0.03, 0.5, 0.3, 200, 0},
		BuildingHighSchool:       {3, 2, 0.02, 0.4, 0.4, 250, 0},
		BuildingVocationalSchool: {3, 2, 0.03, 0.5, 0.3, 100, 0},
		BuildingUniversity:       {10, 8, 0.03, 0.5, 0.5, 1000, cctv},
		BuildingKindergarten:     {2, 2, 0.02, 0.4, 0.2, 50, 0},
		BuildingChurch:           {3, 2, 0.02, 0.4, 0.2, 80, 0},
		BuildingSynagogue:        {2, 2, 0.03, 0.5, 0.7, 60, contro | cctv},
		BuildingMosque:           {1, 2, 0.03, 0.5, 0.6, 100, contro | cctv},
		BuildingBuddhistTemple:   {2, 2, 0.01, 0.3, 0.1, 40, 0},
		BuildingStadium:          {8, 5, 0.08, 0.7, 0.7, 5000, cctv},
		BuildingLibrary:          {3, 2, 0.01, 0.3, 0.4, 100, 0},
		BuildingMuseum:           {5, 4, 0.02, 0.4, 0.7, 200, cctv},
		BuildingTheater:          {4, 4, 0.02, 0.4, 0.6, 300, cctv},
		BuildingPool:             {6, 4, 0.01, 0.3, 0.2, 150, 0},
		BuildingCommunityCenter:  {2, 2, 0.03, 0.5, 0.2, 50, 0},
		BuildingSingleFamilyHome: {1, 1, 0.02, 0.7, 0.05, 4, 0},
		BuildingMultiFamilyHome:  {2, 2, 0.04, 0.8, 0.1, 8, 0},
		BuildingApartment:        {3, 3, 0.05, 0.85, 0.2, 20, 0},
		BuildingGasStation:       {2, 2, 0.07, 0.9, 0.8, 10, cctv},
		BuildingKiosk:            {1, 1, 0.04, 0.6, 0.3, 5, 0},
		BuildingSupermarket:      {3, 2, 0.05, 0.7, 0.6, 100, cctv},
		BuildingShoppingMall:     {6, 4, 0.06, 0.8, 0.75, 500, cctv},
		BuildingParkingGarage:    {3, 3, 0.03, 0.6, 0.4, 0, cctv | iso},
		BuildingParkingLot:       {1, 2, 0.02, 0.4, 0.1, 0, iso},
		BuildingMarketStall:      {1, 1, 0.04, 0.5, 0.1, 3, 0},
		BuildingHospital:         {8, 4, 0.02, 0.4, 0.7, 600, cctv},
		BuildingClinic:           {2, 2, 0.02, 0.4, 0.6, 50, cctv},
		BuildingPoliceStation:    {3, 2, 0.05, 0.3, 0.95, 50, cctv | patrol | contro},
		BuildingFireStation:      {3, 2, 0.01, 0.1, 0.9, 30, cctv},
		BuildingTrainStation:     {12, 6, 0.07, 0.7, 0.85, 1500, cctv},
		BuildingBusDepot:         {4, 3, 0.03, 0.5, 0.5, 60, 0},
		BuildingBusStop:          {1, 1, 0.02, 0.3, 0.1, 15, 0},
		BuildingIndustrialHall:   {10, 6, 0.08, 0.9, 0.4, 80, iso},
		BuildingWarehouse:        {2, 3, 0.05, 0.8, 0.3, 20, iso},
	}
}
