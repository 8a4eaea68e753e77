// Package severity scores how serious a collision is from the overlap
// between vehicles, the dominant fault share and whether people are present.
package severity

import "math"

// Level is the coarse severity band of a score.
type Level string

const (
	// LevelMinor covers scores up to and including 35
	LevelMinor Level = "MINOR"
	// LevelModerate covers scores above 35 up to and including 70
	LevelModerate Level = "MODERATE"
	// LevelSevere covers scores above 70
	LevelSevere Level = "SEVERE"
)

// Scoring thresholds and weights.
const (
	SevereOverlap   = 0.25 // IoU, exclusive
	ModerateOverlap = 0.10 // IoU, exclusive
	MinorOverlap    = 0.02 // IoU, exclusive

	SevereOverlapPoints   = 50
	ModerateOverlapPoints = 30
	MinorOverlapPoints    = 15

	FaultWeight  = 0.4 // applied to the largest fault percentage
	HumansPoints = 15

	MaxScore = 100

	SevereAbove   = 70.0
	ModerateAbove = 35.0
)

// Result pairs a score with its level.
type Result struct {
	Score int   `json:"score"`
	Level Level `json:"level"`
}

// Compute returns the severity score in [0, 100].
func Compute(maxOverlap float64, faults []float64, humans int) int {
	var s float64
	switch {
	case maxOverlap > SevereOverlap:
		s += SevereOverlapPoints
	case maxOverlap > ModerateOverlap:
		s += ModerateOverlapPoints
	case maxOverlap > MinorOverlap:
		s += MinorOverlapPoints
	}

	if len(faults) > 0 {
		top := math.Inf(-1)
		for _, f := range faults {
			top = math.Max(top, f)
		}
		s += FaultWeight * top
	}

	if humans > 0 {
		s += HumansPoints
	}

	score := int(s)
	if score > MaxScore {
		score = MaxScore
	}
	return score
}

// Assess computes the score and its level together.
func Assess(maxOverlap float64, faults []float64, humans int) Result {
	score := Compute(maxOverlap, faults, humans)
	return Result{Score: score, Level: LevelFor(float64(score))}
}

// LevelFor maps a score to its level. Boundaries are strict: exactly 70 is
// MODERATE and exactly 35 is MINOR. Averaged video scores use the same
// mapping.
func LevelFor(score float64) Level {
	switch {
	case score > SevereAbove:
		return LevelSevere
	case score > ModerateAbove:
		return LevelModerate
	default:
		return LevelMinor
	}
}

// Rank orders levels from MINOR (0) to SEVERE (2).
func (l Level) Rank() int {
	switch l {
	case LevelSevere:
		return 2
	case LevelModerate:
		return 1
	default:
		return 0
	}
}
