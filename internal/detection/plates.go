package detection

import (
	"math"
	"strings"
	"unicode"
)

// Plate filtering thresholds.
const (
	MinPlateLength     = 5   // characters after cleaning
	MinPlateConfidence = 0.4 // exclusive
)

// PlateCandidate is raw OCR output.
type PlateCandidate struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Plate is a cleaned licence plate reading.
type Plate struct {
	Plate      string  `json:"plate"`
	Confidence float64 `json:"confidence"`
}

// FilterPlates cleans OCR candidates and drops weak or short readings.
func FilterPlates(candidates []PlateCandidate) []Plate {
	plates := make([]Plate, 0, len(candidates))
	for _, c := range candidates {
		text := strings.ToUpper(strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, c.Text))
		if len([]rune(text)) < MinPlateLength || c.Confidence <= MinPlateConfidence {
			continue
		}
		plates = append(plates, Plate{
			Plate:      text,
			Confidence: math.Round(c.Confidence*100) / 100,
		})
	}
	return plates
}
