// Package video turns a video file into a forensic case by sampling frames,
// running the image engine on each, and rolling the results up into a
// timeline, aggregate statistics and a chain-of-custody record.
package video

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"

	"github.com/banshee-data/incident.report/internal/fsutil"
)

// ErrMedia is returned when a video cannot be opened or read.
var ErrMedia = errors.New("cannot open video")

// Sampling defaults.
const (
	DefaultTargetFPS   = 3.0
	FallbackSourceFPS  = 30.0
	frameNameFormat    = "frame_%04d.jpg"
	framesDirSuffix    = "_frames"
	timestampPrecision = 100 // two decimals
)

// FrameSource yields encoded frames in source order.
type FrameSource interface {
	// FrameRate is the native rate, or 0 when unknown.
	FrameRate() float64
	// Frames calls fn for every frame with its 0-based source index and
	// JPEG bytes. Returning an error from fn stops iteration.
	Frames(ctx context.Context, fn func(index int, jpeg []byte) error) error
}

// SampledFrame is one emitted frame.
type SampledFrame struct {
	Path      string  `json:"path"`
	Timestamp float64 `json:"timestamp"`
	Index     int     `json:"index"` // count of emitted frames, not the source index
}

// Interval returns the source-frame stride for the target rate. Unknown or
// non-positive source rates are taken as FallbackSourceFPS.
func Interval(sourceFPS, targetFPS float64) int {
	if sourceFPS <= 0 {
		sourceFPS = FallbackSourceFPS
	}
	if targetFPS <= 0 {
		targetFPS = DefaultTargetFPS
	}
	if sourceFPS > targetFPS {
		if n := int(math.Floor(sourceFPS / targetFPS)); n > 1 {
			return n
		}
	}
	return 1
}

// Sampler writes the frames of a source at a target rate into a directory.
type Sampler struct {
	FS        fsutil.FileSystem
	TargetFPS float64
}

// Sample emits every Interval-th source frame into dir as frame_NNNN.jpg,
// numbered by emission order.
func (s Sampler) Sample(ctx context.Context, src FrameSource, dir string) ([]SampledFrame, error) {
	fsys := s.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create frames directory: %w", err)
	}

	sourceFPS := src.FrameRate()
	if sourceFPS <= 0 {
		sourceFPS = FallbackSourceFPS
	}
	interval := Interval(sourceFPS, s.TargetFPS)

	var frames []SampledFrame
	err := src.Frames(ctx, func(idx int, jpeg []byte) error {
		if idx%interval != 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(dir, fmt.Sprintf(frameNameFormat, len(frames)))
		if err := fsys.WriteFile(path, jpeg, 0o644); err != nil {
			return fmt.Errorf("failed to write frame: %w", err)
		}
		frames = append(frames, SampledFrame{
			Path:      path,
			Timestamp: math.Round(float64(idx)/sourceFPS*timestampPrecision) / timestampPrecision,
			Index:     len(frames),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return frames, nil
}
