// Package fire tracks which cells are burning, reported and claimed, and
// advances fire intensity, spread and burnout each tick.
package fire

import (
	"sort"

	"github.com/zyedidia/generic/mapset"

	"github.com/talgya/firesim/internal/city"
)

// Registry holds the three fire sets shared by every agent within a tick.
//
// Invariant: claimed is a subset of reported. Claim refuses unreported cells
// and Resolve drops a cell from all three sets together.
type Registry struct {
	burning  mapset.Set[city.Coord]
	reported mapset.Set[city.Coord]
	claimed  mapset.Set[city.Coord]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		burning:  mapset.New[city.Coord](),
		reported: mapset.New[city.Coord](),
		claimed:  mapset.New[city.Coord](),
	}
}

// Ignite adds c to the burning set.
func (r *Registry) Ignite(c city.Coord) {
	r.burning.Put(c)
}

// IsBurning returns true if c is tracked as burning.
func (r *Registry) IsBurning(c city.Coord) bool {
	return r.burning.Has(c)
}

// Report makes c visible to responders. It returns false if c was already
// reported or claimed.
func (r *Registry) Report(c city.Coord) bool {
	if r.reported.Has(c) || r.claimed.Has(c) {
		return false
	}
	r.reported.Put(c)
	return true
}

// IsReported returns true if responders know about c.
func (r *Registry) IsReported(c city.Coord) bool {
	return r.reported.Has(c)
}

// Claim reserves a reported fire for one firefighter. It returns false if the
// fire is unreported or already claimed.
func (r *Registry) Claim(c city.Coord) bool {
	if !r.reported.Has(c) || r.claimed.Has(c) {
		return false
	}
	r.claimed.Put(c)
	return true
}

// IsClaimed returns true if a firefighter has reserved c.
func (r *Registry) IsClaimed(c city.Coord) bool {
	return r.claimed.Has(c)
}

// Release gives up a claim without resolving the fire.
func (r *Registry) Release(c city.Coord) {
	r.claimed.Remove(c)
}

// Resolve removes c from every set, once it is extinguished or burnt out.
func (r *Registry) Resolve(c city.Coord) {
	r.burning.Remove(c)
	r.reported.Remove(c)
	r.claimed.Remove(c)
}

// Burning returns the burning cells in row-major order.
func (r *Registry) Burning() []city.Coord {
	return sorted(r.burning)
}

// Reported returns the reported cells in row-major order.
func (r *Registry) Reported() []city.Coord {
	return sorted(r.reported)
}

// Unclaimed returns reported fires nobody has claimed, in row-major order.
func (r *Registry) Unclaimed() []city.Coord {
	var out []city.Coord
	r.reported.Each(func(c city.Coord) {
		if !r.claimed.Has(c) {
			out = append(out, c)
		}
	})
	sortCoords(out)
	return out
}

// Counts returns the sizes of the burning, reported and claimed sets.
func (r *Registry) Counts() (burning, reported, claimed int) {
	return r.burning.Size(), r.reported.Size(), r.claimed.Size()
}

// Consistent reports whether every claimed fire is also reported.
func (r *Registry) Consistent() bool {
	ok := true
	r.claimed.Each(func(c city.Coord) {
		if !r.reported.Has(c) {
			ok = false
		}
	})
	return ok
}

func sorted(s mapset.Set[city.Coord]) []city.Coord {
	out := make([]city.Coord, 0, s.Size())
	s.Each(func(c city.Coord) {
		out = append(out, c)
	})
	sortCoords(out)
	return out
}

func sortCoords(cs []city.Coord) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Y != cs[j].Y {
			return cs[i].Y < cs[j].Y
		}
		return cs[i].X < cs[j].X
	})
}
