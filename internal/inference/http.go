// Package inference implements the perception collaborators as clients of
// HTTP model services. Each client posts the JPEG-encoded image and decodes
// a small JSON document.
package inference

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"strings"

	"github.com/banshee-data/incident.report/internal/detection"
	"github.com/banshee-data/incident.report/internal/geometry"
	"github.com/banshee-data/incident.report/internal/httputil"
	"github.com/banshee-data/incident.report/internal/media"
)

// Service endpoint paths, relative to the base URL.
const (
	PathDetect       = "/detect"
	PathCaption      = "/caption"
	PathDemographics = "/demographics"
	PathPlates       = "/plates"
)

// Client talks to a perception service. The zero HTTP field uses a client
// with httputil.DefaultTimeout.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    httputil.HTTPClient
}

// NewClient returns a client for baseURL.
func NewClient(baseURL, apiKey string, hc httputil.HTTPClient) *Client {
	if hc == nil {
		hc = httputil.NewStandardClient(0)
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), APIKey: apiKey, HTTP: hc}
}

func (c *Client) post(ctx context.Context, path string, img image.Image, out any) error {
	body, err := media.EncodeJPEG(img)
	if err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	var header http.Header
	if c.APIKey != "" {
		header = http.Header{"Authorization": []string{"Bearer " + c.APIKey}}
	}
	hc := c.HTTP
	if hc == nil {
		hc = httputil.NewStandardClient(0)
	}
	return httputil.PostForJSON(ctx, hc, c.BaseURL+path, "image/jpeg", body, header, out)
}

type wireObject struct {
	ClassName  string    `json:"class_name"`
	Confidence float64   `json:"confidence"`
	Box        []float64 `json:"box"` // x1, y1, x2, y2
}

type detectResponse struct {
	Objects []wireObject `json:"objects"`
}

// Detector calls the object detection endpoint.
type Detector struct{ *Client }

func (d Detector) Detect(ctx context.Context, img image.Image) ([]detection.Object, error) {
	var resp detectResponse
	if err := d.post(ctx, PathDetect, img, &resp); err != nil {
		return nil, err
	}
	objects := make([]detection.Object, 0, len(resp.Objects))
	for i, o := range resp.Objects {
		if len(o.Box) != 4 {
			return nil, fmt.Errorf("object %d: box has %d coordinates, want 4", i, len(o.Box))
		}
		objects = append(objects, detection.Object{
			Class:      strings.ToLower(o.ClassName),
			Confidence: o.Confidence,
			Box:        geometry.Box{X1: o.Box[0], Y1: o.Box[1], X2: o.Box[2], Y2: o.Box[3]},
		})
	}
	return objects, nil
}

// Captioner calls the captioning endpoint.
type Captioner struct{ *Client }

func (c Captioner) Caption(ctx context.Context, img image.Image) (string, error) {
	var resp struct {
		Caption string `json:"caption"`
	}
	if err := c.post(ctx, PathCaption, img, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Caption), nil
}

// Analyzer calls the demographic estimation endpoint for one person crop.
type Analyzer struct{ *Client }

func (a Analyzer) Analyze(ctx context.Context, crop image.Image) (detection.Demographics, error) {
	var resp detection.Demographics
	if err := a.post(ctx, PathDemographics, crop, &resp); err != nil {
		return detection.Demographics{}, err
	}
	return resp, nil
}

// PlateReader calls the licence plate OCR endpoint.
type PlateReader struct{ *Client }

func (p PlateReader) Read(ctx context.Context, img image.Image) ([]detection.PlateCandidate, error) {
	var resp struct {
		Candidates []detection.PlateCandidate `json:"candidates"`
	}
	if err := p.post(ctx, PathPlates, img, &resp); err != nil {
		return nil, err
	}
	return resp.Candidates, nil
}
