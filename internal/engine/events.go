package engine

import (
	"fmt"

	"github.com/google/uuid"
)

// MaxEvents bounds the in-memory event log.
const MaxEvents = 100

// Event categories.
const (
	CategoryFire     = "fire"
	CategoryReport   = "report"
	CategoryDispatch = "dispatch"
	CategoryArrest   = "arrest"
	CategoryCasualty = "casualty"
	CategoryTrapped  = "trapped"
	CategoryRiot     = "riot"
	CategorySystem   = "system"
)

// Event is a notable occurrence in the simulation.
type Event struct {
	ID          string `json:"id"`
	Tick        uint64 `json:"tick"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

func newEvent(tick uint64, category, format string, args ...any) Event {
	return Event{
		ID:          uuid.NewString(),
		Tick:        tick,
		Description: fmt.Sprintf(format, args...),
		Category:    category,
	}
}

// prependEvents places a batch recorded in chronological order in front of
// log, newest first, and trims to MaxEvents.
func prependEvents(log, batch []Event) []Event {
	if len(batch) == 0 {
		return log
	}
	out := make([]Event, 0, min(len(batch)+len(log), MaxEvents))
	for i := len(batch) - 1; i >= 0 && len(out) < MaxEvents; i-- {
		out = append(out, batch[i])
	}
	for _, e := range log {
		if len(out) == MaxEvents {
			break
		}
		out = append(out, e)
	}
	return out
}
