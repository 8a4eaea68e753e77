package detection

import (
	"context"
	"image"
)

// Detector locates objects in an image.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Object, error)
}

// Captioner produces a free-text description of an image.
type Captioner interface {
	Caption(ctx context.Context, img image.Image) (string, error)
}

// DemographicAnalyzer estimates attributes of a single person crop.
// Implementations may be called with very small crops.
type DemographicAnalyzer interface {
	Analyze(ctx context.Context, crop image.Image) (Demographics, error)
}

// PlateReader returns raw licence plate text candidates found in an image.
type PlateReader interface {
	Read(ctx context.Context, img image.Image) ([]PlateCandidate, error)
}
