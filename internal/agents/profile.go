package agents

import (
	"fmt"
	"strings"

	"github.com/talgya/firesim/internal/city"
)

// Profile is an arsonist's motive, which decides its targets and fire cap.
type Profile uint8

const (
	ProfilePyromaniac Profile = iota // Sets fires anywhere, no cap
	ProfileGrifter                   // Insurance fraud on commercial and industrial property
	ProfileProtester                 // Political and public-order institutions
	ProfileVandal                    // Schools, transit and culture
)

// NumProfiles is the number of arsonist profiles.
const NumProfiles = 4

// Unlimited as a fire cap means the arsonist never retires.
const Unlimited = -1

type profileInfo struct {
	key      string
	name     string // Display name used in event messages
	maxFires int
	targets  []city.BuildingType // nil means any building
}

var profileTable = [NumProfiles]profileInfo{
	{key: "PYROMANIAC", name: "Psychiatric", maxFires: Unlimited},
	{
		key: "GRIFTER", name: "Financial", maxFires: 1,
		targets: []city.BuildingType{
			city.BuildingSupermarket, city.BuildingShoppingMall, city.BuildingWarehouse,
			city.BuildingIndustrialHall, city.BuildingGasStation,
		},
	},
	{
		key: "PROTESTER", name: "Protester", maxFires: 1,
		targets: []city.BuildingType{
			city.BuildingTownHall, city.BuildingAdminOffice, city.BuildingPublicOffice,
			city.BuildingPoliceStation,
		},
	},
	{
		key: "VANDAL", name: "Vandal", maxFires: 2,
		targets: []city.BuildingType{
			city.BuildingElementarySchool, city.BuildingMiddleSchool, city.BuildingHighSchool,
			city.BuildingBusStop, city.BuildingCommunityCenter, city.BuildingKiosk,
			city.BuildingParkingLot, city.BuildingParkingGarage, city.BuildingLibrary,
			city.BuildingTheater, city.BuildingMuseum,
		},
	},
}

func (p Profile) String() string {
	if p < NumProfiles {
		return profileTable[p].key
	}
	return fmt.Sprintf("Profile(%d)", p)
}

// MarshalText renders the profile by key in JSON payloads.
func (p Profile) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a profile key, so archived stats decode.
func (p *Profile) UnmarshalText(text []byte) error {
	v, err := ParseProfile(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// DisplayName is the human-facing motive name, e.g. "Financial".
func (p Profile) DisplayName() string {
	if p < NumProfiles {
		return profileTable[p].name
	}
	return p.String()
}

// DefaultMaxFires is the reference fire cap; Unlimited for pyromaniacs.
func (p Profile) DefaultMaxFires() int {
	if p < NumProfiles {
		return profileTable[p].maxFires
	}
	return 0
}

// Targets reports whether an arsonist of this profile will set fire to b.
func (p Profile) Targets(b city.BuildingType) bool {
	if p >= NumProfiles {
		return false
	}
	list := profileTable[p].targets
	if list == nil {
		return true
	}
	for _, t := range list {
		if t == b {
			return true
		}
	}
	return false
}

// ParseProfile resolves a key such as "VANDAL" (case-insensitive).
func ParseProfile(name string) (Profile, error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	for i := Profile(0); i < NumProfiles; i++ {
		if profileTable[i].key == key {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown arsonist profile %q", name)
}

// AllProfiles lists the profiles in declaration order.
func AllProfiles() []Profile {
	return []Profile{ProfilePyromaniac, ProfileGrifter, ProfileProtester, ProfileVandal}
}

// FireCaps holds the per-run fire cap of each profile.
type FireCaps [NumProfiles]int

// DefaultFireCaps returns the reference caps.
func DefaultFireCaps() FireCaps {
	var caps FireCaps
	for _, p := range AllProfiles() {
		caps[p] = p.DefaultMaxFires()
	}
	return caps
}

// Reached reports whether count fires exhaust profile p's cap.
func (c FireCaps) Reached(p Profile, count int) bool {
	if p >= NumProfiles {
		return true
	}
	limit := c[p]
	return limit != Unlimited && count >= limit
}
