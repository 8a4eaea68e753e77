package geometry

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIoU(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b Box
		want float64
	}{
		{"identical", Box{0, 0, 10, 10}, Box{0, 0, 10, 10}, 1.0},
		{"disjoint", Box{0, 0, 10, 10}, Box{20, 20, 30, 30}, 0},
		{"touching edges", Box{0, 0, 10, 10}, Box{10, 0, 20, 10}, 0},
		{"half overlap", Box{0, 0, 10, 10}, Box{5, 0, 15, 10}, 50.0 / 150.0},
		{"contained", Box{0, 0, 10, 10}, Box{0, 0, 5, 10}, 0.5},
		{"degenerate", Box{5, 5, 5, 5}, Box{0, 0, 10, 10}, 0},
		{"both degenerate", Box{5, 5, 5, 5}, Box{5, 5, 5, 5}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := IoU(tt.a, tt.b)
			assert.InDelta(t, tt.want, got, 1e-6)
			assert.Equal(t, got, IoU(tt.b, tt.a), "IoU must be symmetric")
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestIoU_BoundsOverManyBoxes(t *testing.T) {
	t.Parallel()

	boxes := []Box{
		{0, 0, 100, 100}, {30, 0, 130, 100}, {0, 50, 150, 100},
		{100, 0, 200, 100}, {-20, -20, 5, 5}, {50, 50, 50, 80},
		{10, 10, 1000, 12},
	}
	for _, a := range boxes {
		for _, b := range boxes {
			v := IoU(a, b)
			if v < 0 || v > 1 || math.IsNaN(v) {
				t.Errorf("IoU(%v, %v) = %v, want value in [0,1]", a, b, v)
			}
			if v != IoU(b, a) {
				t.Errorf("IoU(%v, %v) not symmetric", a, b)
			}
		}
	}
}

func TestCenter(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Point{X: 5, Y: 10}, Center(Box{0, 0, 10, 20}))
	assert.Equal(t, Point{X: 150, Y: 75}, Center(Box{100, 50, 200, 100}))
}

func TestBoxDimensions(t *testing.T) {
	t.Parallel()

	b := Box{10, 20, 40, 30}
	assert.Equal(t, 30.0, b.Width())
	assert.Equal(t, 10.0, b.Height())
	assert.Equal(t, 300.0, b.Area())
	assert.False(t, b.Empty())

	inverted := Box{40, 30, 10, 20}
	assert.Equal(t, 0.0, inverted.Area())
	assert.True(t, inverted.Empty())
}

func TestBoxClampAndImage(t *testing.T) {
	t.Parallel()

	b := Box{-5, 2.4, 120.2, 60}.Clamp(100, 50)
	assert.Equal(t, Box{0, 2.4, 100, 50}, b)
	assert.Equal(t, image.Rect(0, 2, 100, 50), b.Image())
}
