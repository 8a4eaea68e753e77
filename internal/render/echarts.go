package render

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/incident.report/internal/report"
	"github.com/banshee-data/incident.report/internal/severity"
)

// EchartsAssetsHost serves the echarts javascript. Empty uses the
// go-echarts default CDN.
var EchartsAssetsHost = ""

// TimelineHTML writes an interactive page plotting per-frame severity
// across the video, with the level thresholds and the timeline events
// marked.
func TimelineHTML(w io.Writer, rep *report.VideoReport) error {
	x := make([]string, 0, len(rep.Frames))
	scores := make([]opts.LineData, 0, len(rep.Frames))
	for _, f := range rep.Frames {
		x = append(x, strconv.FormatFloat(f.TimestampSec, 'f', 2, 64))
		scores = append(scores, opts.LineData{Name: f.FrameFile, Value: f.SeverityScore})
	}

	events := make([]opts.MarkPointNameCoordItem, 0, len(rep.Timeline))
	for _, ev := range rep.Timeline {
		score := scoreAt(rep.Frames, ev.Frame)
		events = append(events, opts.MarkPointNameCoordItem{
			Name:       ev.Event,
			Coordinate: []interface{}{strconv.FormatFloat(ev.TimestampSec, 'f', 2, 64), score},
			Label:      &opts.Label{Show: opts.Bool(false)},
		})
	}

	initOpts := opts.Initialization{
		PageTitle: "Severity timeline " + rep.Case.CaseID,
		Width:     "100%",
		Height:    "520px",
	}
	if EchartsAssetsHost != "" {
		initOpts.AssetsHost = EchartsAssetsHost
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts),
		charts.WithTitleOpts(opts.Title{
			Title:    "Severity timeline",
			Subtitle: fmt.Sprintf("case=%s frames=%d avg=%.1f peak=%d", rep.Case.CaseID, len(rep.Frames), rep.Analysis.Aggregation.AvgSeverity, rep.Analysis.Aggregation.PeakSeverity),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Severity", Min: 0, Max: severity.MaxScore}),
	)

	seriesOpts := []charts.SeriesOpts{
		charts.WithMarkLineNameYAxisItemOpts(
			opts.MarkLineNameYAxisItem{Name: string(severity.LevelModerate), YAxis: severity.ModerateAbove},
			opts.MarkLineNameYAxisItem{Name: string(severity.LevelSevere), YAxis: severity.SevereAbove},
		),
	}
	if len(events) > 0 {
		seriesOpts = append(seriesOpts, charts.WithMarkPointNameCoordItemOpts(events...))
	}
	line.SetXAxis(x).AddSeries("severity", scores, seriesOpts...)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("failed to render timeline chart: %w", err)
	}
	return nil
}

func scoreAt(frames []report.FrameSummary, name string) int {
	for _, f := range frames {
		if f.FrameFile == name {
			return f.SeverityScore
		}
	}
	return 0
}
