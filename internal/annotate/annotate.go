// Package annotate draws detection boxes and fault labels onto evidence
// images.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/banshee-data/incident.report/internal/detection"
	"github.com/banshee-data/incident.report/internal/geometry"
	"github.com/banshee-data/incident.report/internal/media"
)

var (
	vehicleColor = color.RGBA{G: 255, A: 255}
	personColor  = color.RGBA{R: 255, G: 128, A: 255}
	labelText    = color.RGBA{A: 255}
)

const strokeWidth = 2

// Label is one box to draw.
type Label struct {
	Box   geometry.Box
	Text  string
	Color color.Color
}

// Labels builds the annotation set for a frame: every detection gets its
// class and confidence, and vehicles additionally show their fault share.
func Labels(vehicles, persons []detection.Object, faults []float64) []Label {
	labels := make([]Label, 0, len(vehicles)+len(persons))
	for i, v := range vehicles {
		text := fmt.Sprintf("%s %s %.2f", detection.VehicleID(i), v.Class, v.Confidence)
		if i < len(faults) {
			text += fmt.Sprintf(" | fault %.1f%%", faults[i])
		}
		labels = append(labels, Label{Box: v.Box, Text: text, Color: vehicleColor})
	}
	for i, p := range persons {
		labels = append(labels, Label{
			Box:   p.Box,
			Text:  fmt.Sprintf("%s %.2f", detection.PersonID(i), p.Confidence),
			Color: personColor,
		})
	}
	return labels
}

// Draw returns a copy of img with the labels rendered on top.
func Draw(img image.Image, labels []Label) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)

	for _, l := range labels {
		r := l.Box.Image().Intersect(b)
		if r.Empty() {
			continue
		}
		strokeRect(out, r, l.Color)
		caption(out, r, l.Text, l.Color)
	}
	return out
}

// Render draws the labels and encodes the result as JPEG.
func Render(img image.Image, labels []Label) ([]byte, error) {
	return media.EncodeJPEG(Draw(img, labels))
}

func strokeRect(dst *image.RGBA, r image.Rectangle, c color.Color) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+strokeWidth),
		image.Rect(r.Min.X, r.Max.Y-strokeWidth, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+strokeWidth, r.Max.Y),
		image.Rect(r.Max.X-strokeWidth, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), src, image.Point{}, draw.Src)
	}
}

// caption writes text on a filled band just above the box, or inside its
// top edge when the box touches the top of the image.
func caption(dst *image.RGBA, r image.Rectangle, text string, bg color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(labelText), Face: face}
	width := d.MeasureString(text).Ceil()
	height := face.Metrics().Height.Ceil()

	top := r.Min.Y - height
	if top < dst.Bounds().Min.Y {
		top = r.Min.Y
	}
	band := image.Rect(r.Min.X, top, r.Min.X+width+4, top+height).Intersect(dst.Bounds())
	draw.Draw(dst, band, image.NewUniform(bg), image.Point{}, draw.Src)

	d.Dot = fixed.P(band.Min.X+2, band.Min.Y+face.Metrics().Ascent.Ceil())
	d.DrawString(text)
}
