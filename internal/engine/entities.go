package engine

import (
	"github.com/banshee-data/incident.report/internal/detection"
	"github.com/banshee-data/incident.report/internal/fault"
	"github.com/banshee-data/incident.report/internal/report"
)

func buildVehicles(vehicles []detection.Object, final fault.Map, overlap float64, pedestrians bool) []report.Vehicle {
	out := make([]report.Vehicle, 0, len(vehicles))
	for i, v := range vehicles {
		pct := final[i]
		out = append(out, report.Vehicle{
			ID:               detection.VehicleID(i),
			Type:             v.Class,
			BoundingBox:      v.Box,
			Confidence:       v.Confidence,
			FaultPercent:     pct,
			ConfidenceReason: confidenceReason(pct, overlap, pedestrians),
		})
	}
	return out
}

func buildPersons(persons []detection.Object, demographics []detection.Demographics) []report.Person {
	out := make([]report.Person, 0, len(persons))
	for i, p := range persons {
		d := detection.UnknownDemographics()
		if i < len(demographics) {
			d = demographics[i]
		}
		d = d.Normalized()
		out = append(out, report.Person{
			ID:          detection.PersonID(i),
			Role:        d.Role,
			RiskLevel:   d.Risk,
			BoundingBox: p.Box,
			Gender:      d.Gender,
			Age:         d.Age,
			Category:    d.Category,
		})
	}
	return out
}

// primaryVehicle returns the vehicle with the highest final fault, the
// lowest index winning ties, or nil when there are no vehicles.
func primaryVehicle(vehicles []report.Vehicle, final fault.Map) *report.Vehicle {
	if len(vehicles) == 0 {
		return nil
	}
	idx, ok := final.Primary()
	if !ok || idx >= len(vehicles) {
		idx = 0
	}
	return &vehicles[idx]
}

// faultShares lists the final fault of each vehicle in detection order.
func faultShares(n int, final fault.Map) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = final[i]
	}
	return out
}
