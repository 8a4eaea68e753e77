// Package testutil holds fixtures shared by package tests: encoded images,
// detection scenes and HTTP assertions.
package testutil

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/incident.report/internal/detection"
	"github.com/banshee-data/incident.report/internal/geometry"
)

// gradient returns a w x h image whose content depends on seed, so two
// seeds never hash to the same bytes.
func gradient(w, h int, seed uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: seed, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	return img
}

// PNGImage encodes a seeded gradient as PNG.
func PNGImage(t testing.TB, w, h int, seed uint8) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, gradient(w, h, seed)); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

// JPEGImage encodes a seeded gradient as JPEG.
func JPEGImage(t testing.TB, w, h int, seed uint8) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gradient(w, h, seed), nil); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}
	return buf.Bytes()
}

// Box is shorthand for a geometry.Box literal.
func Box(x1, y1, x2, y2 float64) geometry.Box {
	return geometry.Box{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// CollisionScene is two overlapping cars (IoU about 0.54), a pedestrian and
// an object outside the vocabulary, fitting a 320x200 image.
func CollisionScene() []detection.Object {
	return []detection.Object{
		{Class: detection.ClassCar, Confidence: 0.92, Box: Box(0, 0, 100, 100)},
		{Class: detection.ClassPerson, Confidence: 0.81, Box: Box(250, 50, 280, 150)},
		{Class: "traffic light", Confidence: 0.6, Box: Box(300, 0, 310, 30)},
		{Class: detection.ClassCar, Confidence: 0.88, Box: Box(30, 0, 130, 100)},
	}
}

// AssertStatusCode reports a mismatched HTTP status along with the body.
func AssertStatusCode(t testing.TB, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Errorf("status code = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

// DecodeJSON decodes the recorded body into v.
func DecodeJSON(t testing.TB, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}
