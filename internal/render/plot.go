package render

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/incident.report/internal/report"
	"github.com/banshee-data/incident.report/internal/severity"
)

// ErrNoData is returned when a chart would have nothing to draw.
var ErrNoData = errors.New("nothing to plot")

var (
	moderateColor = color.RGBA{R: 230, G: 160, B: 0, A: 255}
	severeColor   = color.RGBA{R: 200, G: 30, B: 30, A: 255}
	seriesColor   = color.RGBA{R: 30, G: 90, B: 180, A: 255}
)

const (
	plotWidth  = 8 * vg.Inch
	plotHeight = 4 * vg.Inch
)

// SeverityPNG writes a PNG of per-frame severity against time with the
// MODERATE and SEVERE thresholds drawn as dashed lines.
func SeverityPNG(w io.Writer, rep *report.VideoReport) error {
	if len(rep.Frames) == 0 {
		return ErrNoData
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Severity per frame (case %s)", rep.Case.CaseID)
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Severity"
	p.Y.Min = 0
	p.Y.Max = severity.MaxScore

	pts := make(plotter.XYs, len(rep.Frames))
	for i, f := range rep.Frames {
		pts[i] = plotter.XY{X: f.TimestampSec, Y: float64(f.SeverityScore)}
	}
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return fmt.Errorf("failed to create severity line: %w", err)
	}
	line.Color = seriesColor
	line.Width = vg.Points(1.5)
	points.Color = seriesColor

	xmin, xmax := pts[0].X, pts[len(pts)-1].X
	if xmax <= xmin {
		xmax = xmin + 1
	}
	p.X.Min, p.X.Max = xmin, xmax

	p.Add(plotter.NewGrid(), line, points)
	p.Legend.Add("severity", line, points)
	for _, th := range []struct {
		name  string
		value float64
		color color.Color
	}{
		{string(severity.LevelModerate), severity.ModerateAbove, moderateColor},
		{string(severity.LevelSevere), severity.SevereAbove, severeColor},
	} {
		v := th.value
		fn := plotter.NewFunction(func(float64) float64 { return v })
		fn.XMin, fn.XMax = xmin, xmax
		fn.Color = th.color
		fn.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(fn)
		p.Legend.Add(th.name, fn)
	}

	return writePNG(w, p)
}

// FaultPNG writes a bar chart of the fault share of each vehicle in an
// image case.
func FaultPNG(w io.Writer, rep *report.CaseReport) error {
	vehicles := rep.Entities.Vehicles
	if len(vehicles) == 0 {
		return ErrNoData
	}

	values := make(plotter.Values, len(vehicles))
	names := make([]string, len(vehicles))
	for i, v := range vehicles {
		values[i] = v.FaultPercent
		names[i] = v.ID
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Fault allocation (case %s)", rep.Case.CaseID)
	p.Y.Label.Text = "Fault (%)"
	p.Y.Min = 0
	p.Y.Max = 100

	bars, err := plotter.NewBarChart(values, vg.Points(30))
	if err != nil {
		return fmt.Errorf("failed to create fault bars: %w", err)
	}
	bars.Color = seriesColor
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(names...)

	return writePNG(w, p)
}

func writePNG(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return fmt.Errorf("failed to create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return nil
}
