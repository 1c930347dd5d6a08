// Package entropy provides seeding and the random sources the simulation draws from.
// A run is reproducible from its seed; seed 0 asks for a fresh one from crypto/rand.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	mrand "math/rand"
)

// Source is the randomness consumed by the tick. *math/rand.Rand satisfies it.
type Source interface {
	Float64() float64
	Intn(n int) int
}

// New returns a deterministic source for the seed.
func New(seed int64) *mrand.Rand {
	return mrand.New(mrand.NewSource(seed))
}

// Seed resolves a configured seed. Zero means "pick one": a seed is drawn
// from crypto/rand and logged so the run can be replayed.
func Seed(configured int64) int64 {
	if configured != 0 {
		return configured
	}
	seed := CryptoSeed()
	slog.Info("generated random seed", "seed", seed)
	return seed
}

// CryptoSeed returns a non-zero positive seed from crypto/rand.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen; fall back to a fixed seed.
		return 1
	}
	seed := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if seed == 0 {
		return 1
	}
	return seed
}

// CryptoFloat returns a uniform float64 in [0, 1) using crypto/rand.
func CryptoFloat() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0.5
	}
	// Use only 53 bits for a uniform float64 in [0, 1).
	n := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(1<<53)
}

// Scripted replays a fixed sequence of floats, cycling when exhausted.
// Intn maps the next float onto [0, n). Used to force outcomes in tests.
type Scripted struct {
	Floats []float64
	pos    int
}

// NewScripted creates a scripted source. With no values it always returns 0.
func NewScripted(values ...float64) *Scripted {
	return &Scripted{Floats: values}
}

// Float64 returns the next scripted value.
func (s *Scripted) Float64() float64 {
	if len(s.Floats) == 0 {
		return 0
	}
	v := s.Floats[s.pos%len(s.Floats)]
	s.pos++
	return v
}

// Intn returns the next scripted value scaled to [0, n).
func (s *Scripted) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	i := int(s.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

// Always returns a source whose every draw is v.
func Always(v float64) *Scripted {
	return NewScripted(v)
}
