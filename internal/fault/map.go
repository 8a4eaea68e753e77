package fault

import (
	"math"
	"sort"
)

// Map holds one score per vehicle, keyed by the vehicle's detection index.
// Iterate with Indices to get a stable ascending order.
type Map map[int]float64

// Indices returns the keys in ascending order.
func (m Map) Indices() []int {
	idx := make([]int, 0, len(m))
	for i := range m {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// Values returns the scores in index order.
func (m Map) Values() []float64 {
	vals := make([]float64, 0, len(m))
	for _, i := range m.Indices() {
		vals = append(vals, m[i])
	}
	return vals
}

// Clone returns an independent copy.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Max returns the largest score, or 0 for an empty map.
func (m Map) Max() float64 {
	if len(m) == 0 {
		return 0
	}
	hi := math.Inf(-1)
	for _, v := range m {
		hi = math.Max(hi, v)
	}
	return hi
}

// Sum adds all scores.
func (m Map) Sum() float64 {
	var s float64
	for _, v := range m {
		s += v
	}
	return s
}

// Primary returns the index holding the highest score, preferring the
// lowest index on ties. ok is false for an empty map.
func (m Map) Primary() (index int, ok bool) {
	best := math.Inf(-1)
	for _, i := range m.Indices() {
		if m[i] > best {
			best, index, ok = m[i], i, true
		}
	}
	return index, ok
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
