package video

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/banshee-data/incident.report/internal/fsutil"
	"github.com/banshee-data/incident.report/internal/monitoring"
	"github.com/banshee-data/incident.report/internal/report"
	"github.com/banshee-data/incident.report/internal/severity"
	"github.com/banshee-data/incident.report/internal/timeutil"
)

// OpenFunc opens a frame source for a video path.
type OpenFunc func(ctx context.Context, path string) (FrameSource, error)

// Pipeline analyses whole videos. Zero-valued fields select defaults.
type Pipeline struct {
	Engine     FrameAnalyzer
	Open       OpenFunc
	FS         fsutil.FileSystem
	Clock      timeutil.Clock
	StorageDir string
	TargetFPS  float64
	Workers    int
	NewCaseID  func() string
}

// FFmpegOpener returns an OpenFunc backed by the given binaries.
func FFmpegOpener(ffmpegBin, ffprobeBin string) OpenFunc {
	return func(ctx context.Context, path string) (FrameSource, error) {
		return OpenFFmpeg(ctx, path, ffmpegBin, ffprobeBin)
	}
}

// FramesDir is the directory frames of a case are written to.
func (p *Pipeline) FramesDir(caseID string) string {
	return CaseFramesDir(p.storageDir(), caseID)
}

// CaseFramesDir is the frames directory of caseID under storageDir.
func CaseFramesDir(storageDir, caseID string) string {
	return filepath.Join(storageDir, caseID+framesDirSuffix)
}

// Run samples, analyses and aggregates the video at path. handledBy is
// recorded in the chain of custody.
func (p *Pipeline) Run(ctx context.Context, path, handledBy string) (*report.VideoReport, error) {
	if p.Engine == nil {
		return nil, errors.New("video: engine is required")
	}
	fsys := p.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	clock := p.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	open := p.Open
	if open == nil {
		open = FFmpegOpener("", "")
	}
	targetFPS := p.TargetFPS
	if targetFPS <= 0 {
		targetFPS = DefaultTargetFPS
	}
	start := clock.Now()

	src, err := open(ctx, path)
	if err != nil {
		if errors.Is(err, ErrMedia) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrMedia, err)
	}

	caseID := p.newCaseID()
	framesDir := p.FramesDir(caseID)
	frames, err := Sampler{FS: fsys, TargetFPS: targetFPS}.Sample(ctx, src, framesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to sample video: %w", err)
	}
	monitoring.Logf("[Video] case %s: sampled %d frames at %.1f fps from %s",
		caseID, len(frames), targetFPS, filepath.Base(path))

	results, err := Analyze(ctx, p.Engine, fsys, frames, p.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze frames: %w", err)
	}

	agg := Aggregate(results)
	timeline := Timeline(results)
	custody := CustodyRecorder{FS: fsys, Clock: clock}.Record(caseID, path, frames, handledBy)

	names := make([]string, len(results))
	summaries := make([]report.FrameSummary, len(results))
	for i, fr := range results {
		names[i] = fr.FrameFile
		summaries[i] = fr.Summarize()
	}

	rep := &report.VideoReport{
		Case: report.NewCase(caseID, clock.Now()),
		Scene: report.VideoScene{
			VideoFPS:            targetFPS,
			SourceFPS:           src.FrameRate(),
			TotalFramesAnalyzed: len(results),
		},
		Analysis: report.VideoAnalysis{
			Severity: report.VideoSeverity{
				Score: agg.AvgSeverity,
				Level: severity.LevelFor(agg.AvgSeverity),
			},
			Aggregation: agg,
		},
		Evidence: report.VideoEvidence{
			VideoFile: filepath.Base(path),
			FramesDir: filepath.Base(framesDir),
			Frames:    names,
		},
		Timeline: timeline,
		Narrative: report.Narrative{
			Reconstruction: Narrative(agg, timeline),
			Tone:           report.NarrativeTone,
			Confidence:     report.NarrativeConfidence,
		},
		ChainOfCustody: custody,
		LicensePlates:  AggregatePlates(results),
		Frames:         summaries,
	}

	monitoring.CasesAnalyzed.WithLabelValues(string(report.KindVideo)).Inc()
	monitoring.AnalysisDuration.WithLabelValues(string(report.KindVideo)).Observe(clock.Since(start).Seconds())
	monitoring.Logf("[Video] case %s: avg severity %.1f, peak %d, %d timeline events",
		caseID, agg.AvgSeverity, agg.PeakSeverity, len(timeline))
	return rep, nil
}

func (p *Pipeline) storageDir() string {
	if p.StorageDir == "" {
		return "outputs"
	}
	return p.StorageDir
}

func (p *Pipeline) newCaseID() string {
	if p.NewCaseID != nil {
		return p.NewCaseID()
	}
	return uuid.New().String()[:8]
}
