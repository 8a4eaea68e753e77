package engine

import (
	"fmt"
	"strings"

	"github.com/banshee-data/incident.report/internal/report"
	"github.com/banshee-data/incident.report/internal/severity"
)

// Confidence reason phrases.
const (
	reasonHighImpact   = "high-impact collision zone"
	reasonProximity    = "moderate collision proximity"
	reasonPrimary      = "primary fault contributor"
	reasonShared       = "shared responsibility"
	reasonPedestrian   = "pedestrian risk amplification"
	reasonInsufficient = "insufficient visual indicators"

	primaryFaultAbove = 60.0
	sharedFaultAbove  = 30.0
)

// confidenceReason explains why a vehicle received its fault share.
func confidenceReason(faultPercent, overlap float64, pedestrians bool) string {
	var reasons []string

	switch {
	case overlap > severity.SevereOverlap:
		reasons = append(reasons, reasonHighImpact)
	case overlap > severity.ModerateOverlap:
		reasons = append(reasons, reasonProximity)
	}

	switch {
	case faultPercent > primaryFaultAbove:
		reasons = append(reasons, reasonPrimary)
	case faultPercent > sharedFaultAbove:
		reasons = append(reasons, reasonShared)
	}

	if pedestrians {
		reasons = append(reasons, reasonPedestrian)
	}

	if len(reasons) == 0 {
		return reasonInsufficient
	}
	return strings.Join(reasons, ", ")
}

// explanation names the primary vehicle and notes pedestrians.
func explanation(primary *report.Vehicle, persons int) string {
	if primary == nil {
		return "No vehicles detected. Forensic fault analysis could not be established."
	}

	s := fmt.Sprintf(
		"The scene analysis indicates that %s (%s) bears the primary responsibility based on spatial overlap, "+
			"collision dynamics, and relative positioning observed in the evidence.",
		primary.ID, primary.Type)
	if persons > 0 {
		s += fmt.Sprintf(" Presence of %d pedestrian(s) increased the overall severity and risk assessment.", persons)
	}
	return s
}

// narrative reconstructs the incident in investigator prose.
func narrative(vehicles int, level severity.Level, collisionType, primary string, persons int) string {
	lines := []string{
		fmt.Sprintf("Based on visual evidence analysis, the incident appears to involve %d motor vehicle(s) in a %s-severity collision.",
			vehicles, strings.ToLower(string(level))),
		fmt.Sprintf("The collision is classified as a %s, based on spatial overlap and object interaction patterns.",
			strings.ToLower(collisionType)),
	}

	if primary != "" {
		lines = append(lines, fmt.Sprintf("%s exhibits dominant fault indicators, including positional overlap "+
			"and impact alignment consistent with active motion at the time of collision.", primary))
	}

	if persons > 0 {
		lines = append(lines, fmt.Sprintf("%d pedestrian(s) were detected in the scene, which increases overall risk severity. "+
			"No direct pedestrian impact is visually confirmed.", persons))
	}

	lines = append(lines, "All conclusions are derived from visual evidence and probabilistic reasoning. "+
		"This reconstruction represents an AI-assisted forensic assessment.")
	return strings.Join(lines, " ")
}
