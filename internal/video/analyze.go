package video

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/incident.report/internal/fsutil"
	"github.com/banshee-data/incident.report/internal/monitoring"
	"github.com/banshee-data/incident.report/internal/report"
)

// FrameAnalyzer runs the image pipeline on one encoded frame.
type FrameAnalyzer interface {
	Run(ctx context.Context, data []byte, name string) (*report.CaseReport, error)
}

// Analyze runs every sampled frame through a, at most workers at a time.
// Results are returned in emission order regardless of completion order.
// The first failing frame cancels the rest.
func Analyze(ctx context.Context, a FrameAnalyzer, fsys fsutil.FileSystem, frames []SampledFrame, workers int) ([]report.FrameResult, error) {
	if workers < 1 {
		workers = 1
	}
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}

	results := make([]report.FrameResult, len(frames))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, f := range frames {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := fsys.ReadFile(f.Path)
			if err != nil {
				return fmt.Errorf("failed to read frame %d: %w", f.Index, err)
			}
			name := filepath.Base(f.Path)
			rep, err := a.Run(gctx, data, name)
			if err != nil {
				return fmt.Errorf("frame %s: %w", name, err)
			}
			results[i] = report.FrameResult{
				Report:       rep,
				FrameIndex:   f.Index,
				TimestampSec: f.Timestamp,
				FrameFile:    name,
				FullPath:     f.Path,
			}
			monitoring.FramesProcessed.Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
