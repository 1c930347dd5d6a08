package engine

import (
	"github.com/talgya/firesim/internal/agents"
	"github.com/talgya/firesim/internal/city"
)

// AgentView is the wire form of an agent in a frame.
type AgentView struct {
	ID      agents.AgentID `json:"id"`
	Kind    agents.Kind    `json:"kind"`
	X       float64        `json:"x"`
	Y       float64        `json:"y"`
	State   agents.State   `json:"state"`
	Trapped bool           `json:"trapped,omitempty"`
	Target  *city.Coord    `json:"target,omitempty"`
	Profile string         `json:"profile,omitempty"`
}

// FireView is a burning cell in a frame.
type FireView struct {
	X     int     `json:"x"`
	Y     int     `json:"y"`
	Level float64 `json:"level"`
}

// Frame is the per-tick observation snapshot. It shares no memory with the
// simulation and is safe to hand to other goroutines.
type Frame struct {
	Tick   uint64      `json:"tick"`
	Time   string      `json:"time"`
	Phase  Phase       `json:"phase"`
	Stats  Stats       `json:"stats"`
	Agents []AgentView `json:"agents"`
	Fires  []FireView  `json:"fires"`
	Events []Event     `json:"events,omitempty"` // Events raised during this tick
}

// Frame captures the current state.
func (s *Simulation) Frame() Frame {
	f := Frame{
		Tick:   s.Tick,
		Time:   SimTime(s.Tick),
		Phase:  s.Phase,
		Stats:  s.Stats.Clone(),
		Agents: s.AgentViews(),
	}
	for _, c := range s.Fires.Burning() {
		f.Fires = append(f.Fires, FireView{X: c.X, Y: c.Y, Level: s.Grid.Get(c).FireLevel})
	}
	for _, e := range s.Events {
		if e.Tick != s.Tick {
			break
		}
		f.Events = append(f.Events, e)
	}
	return f
}

// AgentViews copies every agent into its wire form.
func (s *Simulation) AgentViews() []AgentView {
	out := make([]AgentView, 0, len(s.Agents))
	for _, a := range s.Agents {
		v := AgentView{
			ID: a.ID, Kind: a.Kind,
			X: a.X, Y: a.Y,
			State: a.State, Trapped: a.Trapped,
		}
		if a.Target != nil {
			t := *a.Target
			v.Target = &t
		}
		if ars := a.Arsonist(); ars != nil {
			v.Profile = ars.Profile.String()
		}
		out = append(out, v)
	}
	return out
}
