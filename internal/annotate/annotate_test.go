package annotate

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/incident.report/internal/detection"
	"github.com/banshee-data/incident.report/internal/geometry"
	"github.com/banshee-data/incident.report/internal/media"
)

func gray(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	return img
}

func TestLabels(t *testing.T) {
	vehicles := []detection.Object{
		{Class: "car", Confidence: 0.91, Box: geometry.Box{X1: 10, Y1: 10, X2: 60, Y2: 60}},
		{Class: "truck", Confidence: 0.5, Box: geometry.Box{X1: 40, Y1: 10, X2: 90, Y2: 60}},
	}
	persons := []detection.Object{{Class: "person", Confidence: 0.77}}

	labels := Labels(vehicles, persons, []float64{62.5})

	require.Len(t, labels, 3)
	assert.Equal(t, "Vehicle-1 car 0.91 | fault 62.5%", labels[0].Text)
	assert.Equal(t, "Vehicle-2 truck 0.50", labels[1].Text)
	assert.Equal(t, "Person-1 0.77", labels[2].Text)
	assert.Equal(t, personColor, labels[2].Color)
}

func TestDraw(t *testing.T) {
	src := gray(120, 80)
	out := Draw(src, []Label{
		{Box: geometry.Box{X1: 20, Y1: 30, X2: 70, Y2: 70}, Text: "Vehicle-1", Color: vehicleColor},
		{Box: geometry.Box{X1: 500, Y1: 500, X2: 600, Y2: 600}, Text: "off image", Color: vehicleColor},
	})

	assert.Equal(t, src.Bounds(), out.Bounds())
	assert.Equal(t, color.RGBA{G: 255, A: 255}, out.RGBAAt(20, 50), "left edge stroked")
	assert.Equal(t, color.RGBA{G: 255, A: 255}, out.RGBAAt(45, 69), "bottom edge stroked")
	assert.Equal(t, color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0x80}, out.RGBAAt(45, 50), "interior untouched")
	assert.Equal(t, uint8(0x80), src.Pix[0], "source not modified")
}

func TestRender(t *testing.T) {
	data, err := Render(gray(64, 48), []Label{{Box: geometry.Box{X1: 0, Y1: 0, X2: 30, Y2: 30}, Text: "x", Color: personColor}})
	require.NoError(t, err)

	img, format, err := media.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())
}
