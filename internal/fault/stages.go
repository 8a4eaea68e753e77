// Package fault apportions responsibility for a collision between the
// vehicles visible in a single frame.
//
// Scoring runs as a pipeline of pure stages over a Map: Score builds raw
// rule-based scores, Verify applies consistency corrections, and Normalize
// converts the result to percentages. Every stage returns a new Map.
package fault

import (
	"math"
	"strings"

	"github.com/banshee-data/incident.report/internal/detection"
	"github.com/banshee-data/incident.report/internal/geometry"
)

// Rule weights and thresholds.
const (
	BaseScore = 50.0

	InvolvementIoU = 0.01 // exclusive; any pair above marks both involved
	InteractionIoU = 0.05 // exclusive; pair treated as interacting

	FallenVictimBonus   = 30.0 // added to every vehicle other than a fallen motorcycle
	FallenSelfPenalty   = 10.0 // removed from the fallen motorcycle
	KeywordBonus        = 5.0
	FrontBackBonus      = 20.0
	RightmostBonus      = 15.0
	RearEndBonus        = 20.0
	InteractionTol      = 50.0 // px, horizontal dead band for interacting pairs
	RearEndAlignment    = 80.0 // px, exclusive
	VerifyFallenPenalty = 30.0
	VerifyOtherBonus    = 10.0 // per fallen motorcycle, to every other vehicle
	VerifyLeaderBonus   = 10.0

	minMaxEpsilon = 1e-6
)

// Keywords in the scene summary that indicate an impact.
var Keywords = []string{"crash", "collided", "impact", "wreck", "smashed", "collision"}

// Evidence is the read-only input shared by every stage.
type Evidence struct {
	Vehicles []detection.Object
	Summary  string
}

// involved reports, per vehicle, whether it overlaps any other vehicle.
func (ev Evidence) involved() []bool {
	n := len(ev.Vehicles)
	out := make([]bool, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j && geometry.IoU(ev.Vehicles[i].Box, ev.Vehicles[j].Box) > InvolvementIoU {
				out[i] = true
				break
			}
		}
	}
	return out
}

func (ev Evidence) mentionsImpact() bool {
	s := strings.ToLower(ev.Summary)
	for _, k := range Keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// Score computes raw min-max normalised scores in [0, 100]. With one or no
// vehicle the result is {0: 0}.
func Score(ev Evidence) Map {
	n := len(ev.Vehicles)
	if n <= 1 {
		return Map{0: 0}
	}

	raw := make([]float64, n)
	for i := range raw {
		raw[i] = BaseScore
	}

	for i, v := range ev.Vehicles {
		if !detection.IsFallenMotorcycle(v) {
			continue
		}
		for j := range raw {
			if j == i {
				raw[j] -= FallenSelfPenalty
			} else {
				raw[j] += FallenVictimBonus
			}
		}
	}

	if ev.mentionsImpact() {
		for i := range raw {
			raw[i] += KeywordBonus
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a, b := ev.Vehicles[i].Box, ev.Vehicles[j].Box
			if geometry.IoU(a, b) <= InteractionIoU {
				continue
			}
			switch geometry.HorizontalRelation(a, b, InteractionTol) {
			case geometry.Overlap:
				raw[i] += FrontBackBonus
				raw[j] += FrontBackBonus
			case geometry.Left:
				raw[j] += RightmostBonus
			default:
				raw[i] += RightmostBonus
			}
		}
	}

	// The vehicle lower in the frame is closer to the camera and is taken
	// to be the one running into the other.
	for i := 0; i < n; i++ {
		ci := geometry.Center(ev.Vehicles[i].Box)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			cj := geometry.Center(ev.Vehicles[j].Box)
			if math.Abs(ci.X-cj.X) < RearEndAlignment && cj.Y > ci.Y {
				raw[j] += RearEndBonus
			}
		}
	}

	lo, hi := raw[0], raw[0]
	for _, v := range raw[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	involved := ev.involved()
	out := make(Map, n)
	for i, v := range raw {
		if !involved[i] {
			out[i] = 0
			continue
		}
		out[i] = round1((v - lo) / (hi - lo + minMaxEpsilon) * 100)
	}
	return out
}

// Verify applies the consistency corrections. Each fallen motorcycle loses
// VerifyFallenPenalty (floored at 0) and hands VerifyOtherBonus to every
// other vehicle, so several fallen motorcycles compound. Uninvolved
// vehicles then drop to 0 and every vehicle tied at the maximum gains
// VerifyLeaderBonus.
func Verify(m Map, ev Evidence) Map {
	if len(m) == 0 {
		return Map{}
	}

	out := m.Clone()
	for i, v := range ev.Vehicles {
		if _, ok := out[i]; !ok || !detection.IsFallenMotorcycle(v) {
			continue
		}
		for j, s := range out {
			if j == i {
				out[j] = math.Max(0, s-VerifyFallenPenalty)
			} else {
				out[j] = s + VerifyOtherBonus
			}
		}
	}

	involved := ev.involved()
	for i := range out {
		if i < len(involved) && !involved[i] {
			out[i] = 0
		}
	}

	top := out.Max()
	for i, s := range out {
		if s == top {
			out[i] = s + VerifyLeaderBonus
		}
	}
	return out
}

// Normalize rescales scores to percentages rounded to one decimal. A map
// summing to zero becomes all zeros.
func Normalize(m Map) Map {
	out := make(Map, len(m))
	total := m.Sum()
	for i, s := range m {
		if total == 0 {
			out[i] = 0
			continue
		}
		out[i] = round1(s / total * 100)
	}
	return out
}
