package video

import (
	"cmp"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/incident.report/internal/report"
)

// Aggregate computes average and peak severity and the mean fault per
// vehicle id. Vehicle ids are frame-local, so the same id in two frames may
// name different vehicles; the mean is taken over the id string as-is.
func Aggregate(results []report.FrameResult) report.Aggregation {
	agg := report.Aggregation{VehicleFaults: []report.VehicleFault{}}

	var scores []float64
	var order []string
	faults := make(map[string][]float64)
	for _, fr := range results {
		if fr.Report == nil {
			continue
		}
		scores = append(scores, float64(fr.Report.Analysis.Severity.Score))
		for _, v := range fr.Report.Entities.Vehicles {
			if _, seen := faults[v.ID]; !seen {
				order = append(order, v.ID)
			}
			faults[v.ID] = append(faults[v.ID], v.FaultPercent)
		}
	}

	if len(scores) > 0 {
		agg.AvgSeverity = roundTo(stat.Mean(scores, nil), 1)
		agg.PeakSeverity = int(floats.Max(scores))
	}
	for _, id := range order {
		agg.VehicleFaults = append(agg.VehicleFaults, report.VehicleFault{
			VehicleID:    id,
			FaultPercent: roundTo(stat.Mean(faults[id], nil), 2),
		})
	}
	return agg
}

// AggregatePlates lists every plate read across the frames, ordered by
// frame and then by descending confidence.
func AggregatePlates(results []report.FrameResult) []report.PlateSighting {
	out := []report.PlateSighting{}
	for _, fr := range results {
		if fr.Report == nil {
			continue
		}
		for _, p := range fr.Report.Analysis.LicensePlates {
			out = append(out, report.PlateSighting{
				Plate:        p.Plate,
				Confidence:   p.Confidence,
				TimestampSec: fr.TimestampSec,
				Frame:        fr.FrameFile,
				FrameIndex:   fr.FrameIndex,
			})
		}
	}
	slices.SortStableFunc(out, func(a, b report.PlateSighting) int {
		if c := cmp.Compare(a.FrameIndex, b.FrameIndex); c != 0 {
			return c
		}
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	return out
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
