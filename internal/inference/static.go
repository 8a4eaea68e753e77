package inference

import (
	"context"
	"image"

	"github.com/banshee-data/incident.report/internal/detection"
)

// Static collaborators return fixed results. They back the offline CLI
// mode and demos where no model service is running.
type Static struct {
	Objects      []detection.Object
	Text         string
	Demographics detection.Demographics
	Plates       []detection.PlateCandidate
}

func (s Static) Detect(context.Context, image.Image) ([]detection.Object, error) {
	return append([]detection.Object(nil), s.Objects...), nil
}

func (s Static) Caption(context.Context, image.Image) (string, error) { return s.Text, nil }

func (s Static) Analyze(context.Context, image.Image) (detection.Demographics, error) {
	if s.Demographics == (detection.Demographics{}) {
		return detection.UnknownDemographics(), nil
	}
	return s.Demographics, nil
}

func (s Static) Read(context.Context, image.Image) ([]detection.PlateCandidate, error) {
	return append([]detection.PlateCandidate(nil), s.Plates...), nil
}
