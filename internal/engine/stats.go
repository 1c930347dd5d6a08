package engine

import (
	"github.com/talgya/firesim/internal/agents"
)

// MaxHistory bounds the in-memory hourly history.
const MaxHistory = 100

// Stats tracks aggregate run statistics. Counters are cumulative; the
// remaining fields are gauges recomputed every tick.
type Stats struct {
	Casualties           int `json:"casualties"`
	BuildingsDestroyed   int `json:"buildings_destroyed"`
	FiresExtinguished    int `json:"fires_extinguished"`
	FiresStarted         int `json:"fires_started"`
	ArsonistsApprehended int `json:"arsonists_apprehended"`

	FiresByProfile map[agents.Profile]int `json:"fires_by_profile"`

	ReportedFires   int     `json:"fires"`
	ActiveFires     int     `json:"active_fires"`
	CitizensTrapped int     `json:"citizens_trapped"`
	Congestion      float64 `json:"congestion"`

	LiveFirefighters int `json:"live_firefighters"`
	LivePolice       int `json:"live_police"`
	LiveCivilians    int `json:"live_civilians"`
	LiveArsonists    int `json:"live_arsonists"`
}

// HistorySample is the hourly snapshot of a run.
type HistorySample struct {
	Tick                 uint64 `json:"tick"`
	Fires                int    `json:"fires"`
	ActiveFires          int    `json:"active_fires"`
	Casualties           int    `json:"casualties"`
	BuildingsDestroyed   int    `json:"buildings_destroyed"`
	ArsonistsApprehended int    `json:"arsonists_apprehended"`
}

func newStats() Stats {
	return Stats{FiresByProfile: make(map[agents.Profile]int), Congestion: 1}
}

// Clone returns a copy with its own profile map.
func (s Stats) Clone() Stats {
	out := s
	out.FiresByProfile = make(map[agents.Profile]int, len(s.FiresByProfile))
	for p, n := range s.FiresByProfile {
		out.FiresByProfile[p] = n
	}
	return out
}

// updateStats folds a finished tick into the running stats.
func (s *Simulation) updateStats(tc *tickContext) {
	st := &s.Stats
	st.Casualties += tc.casualties
	st.BuildingsDestroyed += tc.destroyed
	st.FiresExtinguished += tc.extinguished
	st.FiresStarted += tc.started
	st.ArsonistsApprehended += tc.arrests
	for p, n := range tc.firesByProfile {
		if n > 0 {
			st.FiresByProfile[agents.Profile(p)] += n
		}
	}

	burning, reported, _ := s.Fires.Counts()
	st.ReportedFires = reported
	st.ActiveFires = burning
	st.Congestion = tc.congestion
	s.countPopulation()
}

func (s *Simulation) countPopulation() {
	st := &s.Stats
	st.LiveFirefighters, st.LivePolice, st.LiveCivilians, st.LiveArsonists = 0, 0, 0, 0
	st.CitizensTrapped = 0
	for _, a := range s.Agents {
		if a.Trapped {
			st.CitizensTrapped++
		}
		switch a.Kind {
		case agents.KindFirefighter:
			st.LiveFirefighters++
		case agents.KindPolice:
			st.LivePolice++
		case agents.KindCivilian:
			st.LiveCivilians++
		case agents.KindArsonist:
			if !a.Apprehended() {
				st.LiveArsonists++
			}
		}
	}
}

func (s *Simulation) sample() HistorySample {
	return HistorySample{
		Tick:                 s.Tick,
		Fires:                s.Stats.ReportedFires,
		ActiveFires:          s.Stats.ActiveFires,
		Casualties:           s.Stats.Casualties,
		BuildingsDestroyed:   s.Stats.BuildingsDestroyed,
		ArsonistsApprehended: s.Stats.ArsonistsApprehended,
	}
}

func (s *Simulation) recordHistory() {
	h := s.sample()
	s.FullHistory = append(s.FullHistory, h)
	s.History = append(s.History, h)
	if len(s.History) > MaxHistory {
		s.History = s.History[len(s.History)-MaxHistory:]
	}
}
