package video

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/incident.report/internal/report"
)

// Narrative writes the reconstruction paragraph for a video case.
func Narrative(agg report.Aggregation, events []report.TimelineEvent) string {
	parts := []string{
		"Video evidence was analyzed frame-by-frame to reconstruct the sequence of events leading to the collision.",
	}

	switch impacts := ImpactCount(events); {
	case impacts > 1:
		parts = append(parts, fmt.Sprintf("Significant impact activity was detected across %d distinct escalation points, indicating a critical safety event.", impacts))
	case impacts == 1:
		parts = append(parts, "Significant impact activity was detected at a specific moment of high severity, indicating a critical safety event.")
	default:
		parts = append(parts, "No severe impact events were explicitly categorized in the timeline, suggesting a lower-severity incident or near-miss scenario.")
	}

	parts = append(parts, fmt.Sprintf("Average severity across the incident is %s/100, with a peak severity of %d.",
		formatFloat(agg.AvgSeverity), agg.PeakSeverity))

	if len(agg.VehicleFaults) == 0 {
		parts = append(parts, "Insufficient data to assign specific vehicle fault percentages.")
	}
	for _, vf := range agg.VehicleFaults {
		parts = append(parts, fmt.Sprintf("%s demonstrates approximately %s%% fault contribution based on trajectory and proximity analysis.",
			vf.VehicleID, formatFloat(vf.FaultPercent)))
	}

	parts = append(parts, "This reconstruction is derived from visual evidence and temporal consistency analysis.")
	return strings.Join(parts, " ")
}

// formatFloat prints whole numbers with one decimal ("50.0") and others in
// their shortest form ("33.33").
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
