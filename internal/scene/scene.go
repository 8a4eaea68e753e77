// Package scene classifies the overall collision from vehicle overlap and
// builds the augmented scene summary used by the rest of the reasoning.
package scene

import (
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/incident.report/internal/detection"
	"github.com/banshee-data/incident.report/internal/geometry"
	"github.com/banshee-data/incident.report/internal/severity"
)

// Collision type labels.
const (
	TypeHighEnergy   = "High-energy collision"
	TypeMediumEnergy = "Medium-energy collision"
	TypeLowEnergy    = "Low-energy incident"
)

// Assessment describes the scene as a whole.
type Assessment struct {
	Summary          string  `json:"summary"`
	CollisionOverlap float64 `json:"collision_overlap"`
	CollisionType    string  `json:"collision_type"`
}

// MaxOverlap returns the largest IoU between any two vehicles, or 0 when
// fewer than two are present.
func MaxOverlap(vehicles []detection.Object) float64 {
	var hi float64
	for i := range vehicles {
		for j := i + 1; j < len(vehicles); j++ {
			hi = math.Max(hi, geometry.IoU(vehicles[i].Box, vehicles[j].Box))
		}
	}
	return hi
}

// CollisionType labels an overlap using the severity thresholds.
func CollisionType(overlap float64) string {
	switch {
	case overlap > severity.SevereOverlap:
		return TypeHighEnergy
	case overlap > severity.ModerateOverlap:
		return TypeMediumEnergy
	default:
		return TypeLowEnergy
	}
}

// Summary appends vehicle, collision and pedestrian clauses to the raw
// caption, in that order.
func Summary(raw string, vehicles, persons int, overlap float64) string {
	var pieces []string

	switch {
	case vehicles > 1:
		pieces = append(pieces, fmt.Sprintf("%d vehicles involved", vehicles))
	case vehicles == 1:
		pieces = append(pieces, "single vehicle present")
	}

	switch {
	case overlap > severity.SevereOverlap:
		pieces = append(pieces, "severe collision")
	case overlap > severity.ModerateOverlap:
		pieces = append(pieces, "moderate collision")
	case overlap > severity.MinorOverlap:
		pieces = append(pieces, "minor contact")
	}

	if persons > 0 {
		pieces = append(pieces, fmt.Sprintf("%d pedestrian(s) present", persons))
	}

	if len(pieces) == 0 {
		return raw
	}
	return fmt.Sprintf("%s, with %s.", raw, strings.Join(pieces, ", "))
}

// Classify builds the scene assessment. The returned overlap is rounded to
// three decimals for reporting; use MaxOverlap for scoring.
func Classify(raw string, vehicles, persons []detection.Object) Assessment {
	overlap := MaxOverlap(vehicles)
	return Assessment{
		Summary:          Summary(raw, len(vehicles), len(persons), overlap),
		CollisionOverlap: math.Round(overlap*1000) / 1000,
		CollisionType:    CollisionType(overlap),
	}
}
