// Package agents provides the agent data model: kinds, behavioural states,
// role variants and the initial spawner.
package agents

import (
	"fmt"
	"math"
	"strings"

	"github.com/talgya/firesim/internal/city"
)

// AgentID is a unique identifier for an agent. It survives kind conversion.
type AgentID uint64

// Kind is the agent's type tag. It can change at runtime (civilian to arsonist).
type Kind uint8

const (
	KindFirefighter Kind = iota
	KindPolice
	KindCivilian
	KindArsonist
)

// NumKinds is the number of agent kinds, in dispatch order.
const NumKinds = 4

var kindNames = [NumKinds]string{"firefighter", "police", "civilian", "arsonist"}

func (k Kind) String() string {
	if k < NumKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Title returns the kind capitalised for event messages.
func (k Kind) Title() string {
	s := k.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

// MarshalText renders the kind by name in JSON payloads.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseKind resolves a kind name such as "police" (case-insensitive).
func ParseKind(name string) (Kind, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for i, n := range kindNames {
		if n == key {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown agent kind %q", name)
}

// State is the agent's discrete behavioural state.
type State uint8

const (
	// Generic
	StateIdle State = iota
	StatePatrolling
	StateFleeing

	// Firefighter
	StateResponding
	StateExtinguishing
	StateReturning

	// Arsonist
	StateApprehended
	StateWanderingLimitReached

	// Civilian
	StateGoingToWork
	StateWorking
	StateGoingHome
	StateAtHome
	StateSeekingShelter
	StateShopping

	// Police
	StateApprehending
)

var stateNames = [...]string{
	"idle", "patrolling", "fleeing",
	"responding", "extinguishing", "returning",
	"apprehended", "wandering_limit_reached",
	"going_to_work", "working", "going_home", "at_home", "seeking_shelter", "shopping",
	"apprehending",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

// MarshalText renders the state by name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Routine governs a civilian's daily schedule.
type Routine uint8

const (
	RoutineCommuter   Routine = iota // Works 8-18
	RoutineStayAtHome                // Never leaves home willingly
	RoutineNightShift                // Works 20-6
)

var routineNames = [...]string{"REGULAR_COMMUTER", "STAY_AT_HOME", "NIGHT_SHIFT"}

func (r Routine) String() string {
	if int(r) < len(routineNames) {
		return routineNames[r]
	}
	return fmt.Sprintf("Routine(%d)", r)
}

// MarshalText renders the routine by name in JSON payloads.
func (r Routine) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Role holds the kind-specific fields of an agent.
type Role interface {
	Kind() Kind
}

// Responder is the role of firefighters and police.
type Responder struct {
	Force        Kind       `json:"-"`
	Station      city.Coord `json:"station"`
	Extinguished int        `json:"extinguished,omitempty"` // Fires put out (firefighters)
}

func (r *Responder) Kind() Kind { return r.Force }

// Resident is the role of civilians.
type Resident struct {
	Home      city.Coord `json:"home"`
	Workplace city.Coord `json:"workplace"`
	Routine   Routine    `json:"routine"`
}

func (*Resident) Kind() Kind { return KindCivilian }

// Arsonist is the role of fire-setters.
type Arsonist struct {
	Profile    Profile `json:"profile"`
	Cooldown   int     `json:"cooldown"`
	ArsonCount int     `json:"arson_count"`
}

func (*Arsonist) Kind() Kind { return KindArsonist }

// Agent is a mobile entity on the city grid.
//
// Invariant: Kind == Role.Kind(). Use the constructors and ConvertToArsonist
// rather than swapping Role directly.
type Agent struct {
	ID   AgentID `json:"id"`
	Kind Kind    `json:"kind"`

	// Continuous position; the occupied cell is the floor of each axis.
	X float64 `json:"x"`
	Y float64 `json:"y"`

	State   State        `json:"state"`
	Path    []city.Coord `json:"path,omitempty"` // Consumed front to back
	Target  *city.Coord  `json:"target,omitempty"`
	Timer   int          `json:"timer,omitempty"` // Countdown shared by timed states
	Trapped bool         `json:"trapped,omitempty"`

	Role Role `json:"role"`
}

// NewFirefighter creates a firefighter standing on its station.
func NewFirefighter(id AgentID, station city.Coord) *Agent {
	return &Agent{
		ID: id, Kind: KindFirefighter,
		X: float64(station.X), Y: float64(station.Y),
		State: StateIdle,
		Role:  &Responder{Force: KindFirefighter, Station: station},
	}
}

// NewPolice creates a police officer standing on its station.
func NewPolice(id AgentID, station city.Coord) *Agent {
	return &Agent{
		ID: id, Kind: KindPolice,
		X: float64(station.X), Y: float64(station.Y),
		State: StatePatrolling,
		Role:  &Responder{Force: KindPolice, Station: station},
	}
}

// NewCivilian creates a civilian at home.
func NewCivilian(id AgentID, home, workplace city.Coord, routine Routine) *Agent {
	return &Agent{
		ID: id, Kind: KindCivilian,
		X: float64(home.X), Y: float64(home.Y),
		State: StateAtHome,
		Timer: 100,
		Role:  &Resident{Home: home, Workplace: workplace, Routine: routine},
	}
}

// NewArsonist creates an arsonist with the given profile and initial cooldown.
func NewArsonist(id AgentID, pos city.Coord, profile Profile, cooldown int) *Agent {
	return &Agent{
		ID: id, Kind: KindArsonist,
		X: float64(pos.X), Y: float64(pos.Y),
		State: StatePatrolling,
		Role:  &Arsonist{Profile: profile, Cooldown: cooldown},
	}
}

// ConvertToArsonist turns the agent into a fresh arsonist with the given
// profile. ID, position, path and trapped status carry over.
func (a *Agent) ConvertToArsonist(profile Profile) {
	a.Kind = KindArsonist
	a.State = StatePatrolling
	a.Target = nil
	a.Timer = 0
	a.Role = &Arsonist{Profile: profile}
}

// Responder returns the responder role, or nil for other kinds.
func (a *Agent) Responder() *Responder {
	r, _ := a.Role.(*Responder)
	return r
}

// Resident returns the civilian role, or nil for other kinds.
func (a *Agent) Resident() *Resident {
	r, _ := a.Role.(*Resident)
	return r
}

// Arsonist returns the arsonist role, or nil for other kinds.
func (a *Agent) Arsonist() *Arsonist {
	r, _ := a.Role.(*Arsonist)
	return r
}

// Cell returns the grid cell the agent occupies.
func (a *Agent) Cell() city.Coord {
	return city.CellOf(a.X, a.Y)
}

// Label names the agent in event messages, e.g. "firefighter-3".
func (a *Agent) Label() string {
	return fmt.Sprintf("%s-%d", a.Kind, a.ID)
}

// Apprehended returns true for arrested arsonists.
func (a *Agent) Apprehended() bool {
	return a.Kind == KindArsonist && a.State == StateApprehended
}

// HasPath returns true if waypoints remain.
func (a *Agent) HasPath() bool {
	return len(a.Path) > 0
}

// SetPath replaces the path, treating a failed search as no path.
func (a *Agent) SetPath(path []city.Coord, ok bool) bool {
	if !ok {
		a.Path = nil
		return false
	}
	a.Path = path
	return true
}

// DistanceTo is the Euclidean distance from the agent to (x, y).
func (a *Agent) DistanceTo(x, y float64) float64 {
	return math.Hypot(a.X-x, a.Y-y)
}
