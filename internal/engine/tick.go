// Package engine provides the tick-based city fire simulation and the
// real-time loop that drives it.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// TickSchedule: one tick is 15 simulated minutes.
const (
	TicksPerHour = 4
	TicksPerDay  = 96
)

// HourOf returns the hour of day (0-23) for a tick.
func HourOf(tick uint64) int {
	return int(tick%TicksPerDay) / TicksPerHour
}

// DayOf returns the 1-based day number for a tick.
func DayOf(tick uint64) int {
	return int(tick/TicksPerDay) + 1
}

// SimTime returns a human-readable simulation time string from a tick number.
func SimTime(tick uint64) string {
	minutes := (tick % TicksPerHour) * 15
	return fmt.Sprintf("Day %d, %02d:%02d", DayOf(tick), HourOf(tick), minutes)
}

// Speed is the wall-clock pace of the real-time loop.
type Speed uint8

const (
	Speed1x Speed = iota
	Speed2x
	Speed4x
)

var speedNames = [...]string{"1x", "2x", "4x"}

var speedIntervals = [...]time.Duration{
	time.Second,
	500 * time.Millisecond,
	250 * time.Millisecond,
}

func (sp Speed) String() string {
	if int(sp) < len(speedNames) {
		return speedNames[sp]
	}
	return fmt.Sprintf("Speed(%d)", sp)
}

// MarshalText renders the speed by name in JSON payloads.
func (sp Speed) MarshalText() ([]byte, error) {
	return []byte(sp.String()), nil
}

// Interval is the wall time per tick.
func (sp Speed) Interval() time.Duration {
	if int(sp) < len(speedIntervals) {
		return speedIntervals[sp]
	}
	return time.Second
}

// ParseSpeed resolves "1x", "2x" or "4x".
func ParseSpeed(name string) (Speed, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for i, n := range speedNames {
		if n == key {
			return Speed(i), nil
		}
	}
	return 0, fmt.Errorf("unknown speed %q", name)
}

// Engine drives a Simulation in real time and broadcasts a Frame after
// every tick. All access to the simulation goes through the engine's lock.
type Engine struct {
	mu    sync.Mutex
	sim   *Simulation
	speed Speed
	ended bool // OnEnd has fired for the current run

	subs    map[int]chan Frame
	nextSub int

	// FrameInterval is how often the loop checks the wall clock.
	FrameInterval time.Duration

	// Callbacks, populated during setup. They run on the loop goroutine
	// without the lock held.
	OnTick func(tick uint64) // Every tick
	OnHour func(tick uint64) // Every 4 ticks
	OnDay  func(tick uint64) // Every 96 ticks
	OnEnd  func(tick uint64) // Once, when the cycle length is reached
}

// NewEngine creates an engine for sim at the given speed.
func NewEngine(sim *Simulation, speed Speed) *Engine {
	return &Engine{
		sim:           sim,
		speed:         speed,
		subs:          make(map[int]chan Frame),
		FrameInterval: 16 * time.Millisecond,
	}
}

// Run starts the simulation loop. It accumulates wall time on every frame
// and runs as many ticks as fit, so a slow frame catches up instead of
// drifting. Returns nil when the run ends, or the context error.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	e.sim.Start()
	slog.Info("simulation engine started", "tick", e.sim.Tick, "speed", e.speed.String())
	e.mu.Unlock()

	ticker := time.NewTicker(e.FrameInterval)
	defer ticker.Stop()

	last := time.Now()
	var acc time.Duration
	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation engine stopped", "tick", e.Tick())
			return ctx.Err()
		case now := <-ticker.C:
			acc += now.Sub(last)
			last = now

			interval := e.Speed().Interval()
			for acc >= interval {
				acc -= interval
				if !e.step() {
					// Paused: discard accumulated time so resuming does not burst.
					acc = 0
					break
				}
			}
			if e.Ended() {
				slog.Info("simulation engine finished", "tick", e.Tick())
				return nil
			}
		}
	}
}

// RunToEnd executes ticks back to back without sleeping until the run ends.
func (e *Engine) RunToEnd(ctx context.Context) error {
	e.mu.Lock()
	e.sim.Start()
	e.mu.Unlock()

	for !e.Ended() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !e.step() && !e.Ended() {
			return fmt.Errorf("simulation is %s", e.Phase())
		}
	}
	return nil
}

// step advances the simulation by one tick and fans out the results.
func (e *Engine) step() bool {
	e.mu.Lock()
	ran := e.sim.Step()
	tick := e.sim.Tick
	justEnded := e.sim.Ended() && !e.ended
	if justEnded {
		e.ended = true
	}
	if ran && len(e.subs) > 0 {
		frame := e.sim.Frame()
		for _, ch := range e.subs {
			select {
			case ch <- frame:
			default: // Slow subscriber; drop the frame.
			}
		}
	}
	e.mu.Unlock()

	if ran {
		if e.OnTick != nil {
			e.OnTick(tick)
		}
		if tick%TicksPerHour == 0 && e.OnHour != nil {
			e.OnHour(tick)
		}
		if tick%TicksPerDay == 0 && e.OnDay != nil {
			e.OnDay(tick)
		}
	}
	if justEnded && e.OnEnd != nil {
		e.OnEnd(tick)
	}
	return ran
}

// Pause halts ticking. Returns false if the simulation was not running.
func (e *Engine) Pause() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sim.Pause()
}

// Resume continues after Pause. Returns false if it was not paused.
func (e *Engine) Resume() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sim.Resume()
}

// SetSpeed changes the wall-clock pace.
func (e *Engine) SetSpeed(sp Speed) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = sp
	e.sim.Record(CategorySystem, "Simulation speed set to %s.", sp)
}

// Speed returns the current pace.
func (e *Engine) Speed() Speed {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// Reset regenerates the run from its parameters and re-arms OnEnd.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sim.Reset()
	e.sim.Start()
	e.ended = false
}

// Tick returns the most recently processed tick.
func (e *Engine) Tick() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sim.Tick
}

// Phase returns the lifecycle phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sim.Phase
}

// Ended returns true once the run has reached its cycle length.
func (e *Engine) Ended() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sim.Ended()
}

// View calls fn with the simulation under the engine lock. fn must not
// retain the simulation or call back into the engine.
func (e *Engine) View(fn func(*Simulation)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.sim)
}

// Subscribe registers a frame listener. Frames are dropped when the
// channel's buffer is full.
func (e *Engine) Subscribe() (int, <-chan Frame) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	ch := make(chan Frame, 16)
	e.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a listener and closes its channel.
func (e *Engine) Unsubscribe(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ch, ok := e.subs[id]; ok {
		delete(e.subs, id)
		close(ch)
	}
}
