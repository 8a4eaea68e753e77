package video

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/incident.report/internal/detection"
	"github.com/banshee-data/incident.report/internal/fsutil"
	"github.com/banshee-data/incident.report/internal/report"
	"github.com/banshee-data/incident.report/internal/severity"
	"github.com/banshee-data/incident.report/internal/timeutil"
)

// fakeSource yields n frames whose payload is "frame-<index>".
type fakeSource struct {
	fps float64
	n   int
}

func (s fakeSource) FrameRate() float64 { return s.fps }

func (s fakeSource) Frames(ctx context.Context, fn func(int, []byte) error) error {
	for i := 0; i < s.n; i++ {
		if err := fn(i, []byte(fmt.Sprintf("frame-%d", i))); err != nil {
			return err
		}
	}
	return nil
}

// fakeFrameAnalyzer returns a canned report per frame name.
type fakeFrameAnalyzer struct {
	mu      sync.Mutex
	reports map[string]*report.CaseReport
	failOn  string
	seen    []string
}

func (f *fakeFrameAnalyzer) Run(_ context.Context, _ []byte, name string) (*report.CaseReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, name)
	if name == f.failOn {
		return nil, errors.New("detector unavailable")
	}
	if rep, ok := f.reports[name]; ok {
		return rep, nil
	}
	return frameReport("c-"+name, 0), nil
}

func frameReport(caseID string, score int, faults ...float64) *report.CaseReport {
	rep := &report.CaseReport{
		Case: report.Case{CaseID: caseID},
		Analysis: report.Analysis{
			Severity: severity.Result{Score: score, Level: severity.LevelFor(float64(score))},
		},
	}
	for i, f := range faults {
		rep.Entities.Vehicles = append(rep.Entities.Vehicles, report.Vehicle{
			ID:           detection.VehicleID(i),
			Type:         detection.ClassCar,
			FaultPercent: f,
		})
	}
	return rep
}

func frameResults(scores ...int) []report.FrameResult {
	out := make([]report.FrameResult, len(scores))
	for i, s := range scores {
		out[i] = report.FrameResult{
			Report:       frameReport(fmt.Sprintf("f%d", i), s),
			FrameIndex:   i,
			TimestampSec: float64(i) / 3,
			FrameFile:    fmt.Sprintf("frame_%04d.jpg", i),
		}
	}
	return out
}

func TestInterval(t *testing.T) {
	tests := []struct {
		name      string
		source    float64
		target    float64
		wantSteps int
	}{
		{"30 to 3", 30, 3, 10},
		{"29.97 to 3", 29.97, 3, 9},
		{"unknown rate falls back to 30", 0, 3, 10},
		{"negative rate falls back to 30", -5, 3, 10},
		{"source slower than target", 2, 3, 1},
		{"equal rates", 3, 3, 1},
		{"zero target uses default", 30, 0, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantSteps, Interval(tt.source, tt.target))
		})
	}
}

func TestSampleThirtyToThree(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	frames, err := Sampler{FS: fsys, TargetFPS: 3}.Sample(context.Background(), fakeSource{fps: 30, n: 100}, "out/c1_frames")
	require.NoError(t, err)
	require.Len(t, frames, 10)

	wantTimes := []float64{0, 0.33, 0.67, 1, 1.33, 1.67, 2, 2.33, 2.67, 3}
	for i, f := range frames {
		assert.Equal(t, i, f.Index)
		assert.InDelta(t, wantTimes[i], f.Timestamp, 1e-9, "frame %d", i)
		assert.Equal(t, filepath.Join("out/c1_frames", fmt.Sprintf("frame_%04d.jpg", i)), f.Path)
	}

	data, err := fsys.ReadFile(frames[3].Path)
	require.NoError(t, err)
	assert.Equal(t, "frame-30", string(data))
}

func TestSampleUnknownRate(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	frames, err := Sampler{FS: fsys, TargetFPS: 3}.Sample(context.Background(), fakeSource{fps: 0, n: 31}, "f")
	require.NoError(t, err)
	require.Len(t, frames, 4)
	assert.InDelta(t, 1.0, frames[3].Timestamp, 1e-9)
}

func TestSampleCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Sampler{FS: fsutil.NewMemoryFileSystem()}.Sample(ctx, fakeSource{fps: 30, n: 100}, "f")
	assert.ErrorIs(t, err, context.Canceled)
}

func encodeFrame(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 48, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 48; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: uint8(x * 5), B: uint8(y * 7), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}))
	return buf.Bytes()
}

func TestSplitJPEG(t *testing.T) {
	want := [][]byte{encodeFrame(t, 10), encodeFrame(t, 120), encodeFrame(t, 250)}
	stream := bytes.Join(want, nil)

	var got [][]byte
	var idx []int
	err := SplitJPEG(bytes.NewReader(stream), func(i int, b []byte) error {
		idx = append(idx, i)
		got = append(got, bytes.Clone(b))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, idx)
	require.Len(t, got, 3)
	for i := range want {
		assert.True(t, bytes.Equal(want[i], got[i]), "frame %d differs", i)
		_, err := jpeg.Decode(bytes.NewReader(got[i]))
		assert.NoError(t, err)
	}
}

func TestSplitJPEGErrors(t *testing.T) {
	frame := encodeFrame(t, 50)

	err := SplitJPEG(bytes.NewReader(frame[:len(frame)/2]), func(int, []byte) error { return nil })
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	err = SplitJPEG(bytes.NewReader([]byte("not a jpeg")), func(int, []byte) error { return nil })
	assert.Error(t, err)

	stop := errors.New("stop")
	err = SplitJPEG(bytes.NewReader(bytes.Join([][]byte{frame, frame}, nil)), func(int, []byte) error { return stop })
	assert.ErrorIs(t, err, stop)

	assert.NoError(t, SplitJPEG(bytes.NewReader(nil), func(int, []byte) error { return nil }))
}

// jpegStream is a FrameSource over concatenated JPEG bytes, the shape of
// ffmpeg's image2pipe output.
type jpegStream struct {
	fps    float64
	stream []byte
}

func (s jpegStream) FrameRate() float64 { return s.fps }

func (s jpegStream) Frames(_ context.Context, fn func(int, []byte) error) error {
	return SplitJPEG(bytes.NewReader(s.stream), fn)
}

func TestSampleSplitStream(t *testing.T) {
	var want [][]byte
	for i := 0; i < 7; i++ {
		want = append(want, encodeFrame(t, uint8(i*35)))
	}
	fsys := fsutil.NewMemoryFileSystem()

	frames, err := Sampler{FS: fsys, TargetFPS: 3}.Sample(context.Background(), jpegStream{fps: 6, stream: bytes.Join(want, nil)}, "out/c7_frames")
	require.NoError(t, err)
	require.Len(t, frames, 4)

	wantTimes := []float64{0, 0.33, 0.67, 1}
	for i, f := range frames {
		assert.Equal(t, i, f.Index)
		assert.InDelta(t, wantTimes[i], f.Timestamp, 1e-9, "frame %d", i)

		data, err := fsys.ReadFile(f.Path)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(want[i*2], data), "frame %d is not source frame %d", i, i*2)
		img, err := jpeg.Decode(bytes.NewReader(data))
		require.NoError(t, err, "frame %d", i)
		assert.Equal(t, image.Rect(0, 0, 48, 32), img.Bounds())
	}
}

func TestParseProbe(t *testing.T) {
	fps, err := parseProbe([]byte(`{"streams":[{"r_frame_rate":"30/1","avg_frame_rate":"30000/1001"}]}`))
	require.NoError(t, err)
	assert.InDelta(t, 29.97, fps, 0.001)

	fps, err = parseProbe([]byte(`{"streams":[{"r_frame_rate":"25/1","avg_frame_rate":"0/0"}]}`))
	require.NoError(t, err)
	assert.Equal(t, 25.0, fps)

	_, err = parseProbe([]byte(`{"streams":[]}`))
	assert.Error(t, err)

	assert.Equal(t, 0.0, parseRate("abc"))
	assert.Equal(t, 24.0, parseRate("24"))
}

func TestOpenFFmpegMissingFile(t *testing.T) {
	_, err := OpenFFmpeg(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"), "", "")
	assert.ErrorIs(t, err, ErrMedia)
}

func TestAnalyzeKeepsEmissionOrder(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	frames, err := Sampler{FS: fsys, TargetFPS: 3}.Sample(context.Background(), fakeSource{fps: 30, n: 60}, "f")
	require.NoError(t, err)

	a := &fakeFrameAnalyzer{}
	results, err := Analyze(context.Background(), a, fsys, frames, 4)
	require.NoError(t, err)
	require.Len(t, results, 6)
	for i, r := range results {
		assert.Equal(t, i, r.FrameIndex)
		assert.Equal(t, fmt.Sprintf("frame_%04d.jpg", i), r.FrameFile)
		assert.Equal(t, "c-"+r.FrameFile, r.Report.Case.CaseID)
		assert.Equal(t, frames[i].Timestamp, r.TimestampSec)
	}
	assert.Len(t, a.seen, 6)
}

func TestAnalyzeFrameFailure(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	frames, err := Sampler{FS: fsys, TargetFPS: 3}.Sample(context.Background(), fakeSource{fps: 30, n: 30}, "f")
	require.NoError(t, err)

	_, err = Analyze(context.Background(), &fakeFrameAnalyzer{failOn: "frame_0001.jpg"}, fsys, frames, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frame_0001.jpg")
}

func TestAggregate(t *testing.T) {
	results := []report.FrameResult{
		{Report: frameReport("a", 10, 50, 50)},
		{Report: frameReport("b", 80, 100)},
		{Report: frameReport("c", 10)},
	}
	got := Aggregate(results)
	want := report.Aggregation{
		AvgSeverity:  33.3,
		PeakSeverity: 80,
		VehicleFaults: []report.VehicleFault{
			{VehicleID: "Vehicle-1", FaultPercent: 75},
			{VehicleID: "Vehicle-2", FaultPercent: 50},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Aggregate() mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregateEmpty(t *testing.T) {
	got := Aggregate(nil)
	assert.Zero(t, got.AvgSeverity)
	assert.Zero(t, got.PeakSeverity)
	assert.NotNil(t, got.VehicleFaults)
	assert.Empty(t, got.VehicleFaults)
}

func TestAggregateFaultRounding(t *testing.T) {
	got := Aggregate([]report.FrameResult{
		{Report: frameReport("a", 40, 33.3)},
		{Report: frameReport("b", 40, 33.4)},
		{Report: frameReport("c", 41, 33.4)},
	})
	assert.Equal(t, 40.3, got.AvgSeverity)
	assert.Equal(t, 33.37, got.VehicleFaults[0].FaultPercent)
}

func TestTimelineTransitions(t *testing.T) {
	events := Timeline(frameResults(10, 80, 10))
	require.Len(t, events, 2)

	assert.Equal(t, "Severity escalated to SEVERE (Score: 80)", events[0].Event)
	assert.Equal(t, severity.LevelMinor, events[0].From)
	assert.Equal(t, severity.LevelSevere, events[0].To)
	assert.Equal(t, "frame_0001.jpg", events[0].Frame)

	assert.Equal(t, "Severity de-escalated to MINOR (Score: 10)", events[1].Event)
	assert.Equal(t, "frame_0002.jpg", events[1].Frame)
	assert.Equal(t, 1, ImpactCount(events))
}

func TestTimelineNoChange(t *testing.T) {
	results := frameResults(20, 20, 20)
	events := Timeline(results)
	require.Len(t, events, 2)
	assert.Equal(t, EventStarted, events[0].Event)
	assert.Equal(t, results[0].TimestampSec, events[0].TimestampSec)
	assert.Equal(t, EventEnded, events[1].Event)
	assert.Equal(t, results[2].TimestampSec, events[1].TimestampSec)
	assert.Zero(t, ImpactCount(events))
}

func TestTimelineEmpty(t *testing.T) {
	events := Timeline(nil)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestTimelineModerateSteps(t *testing.T) {
	events := Timeline(frameResults(50, 90, 50, 95))
	require.Len(t, events, 4)
	assert.Equal(t, "Severity escalated to MODERATE (Score: 50)", events[0].Event)
	assert.Equal(t, 2, ImpactCount(events))
}

func TestNarrative(t *testing.T) {
	agg := report.Aggregation{
		AvgSeverity:  33.3,
		PeakSeverity: 80,
		VehicleFaults: []report.VehicleFault{
			{VehicleID: "Vehicle-1", FaultPercent: 75},
			{VehicleID: "Vehicle-2", FaultPercent: 33.33},
		},
	}
	got := Narrative(agg, Timeline(frameResults(10, 80, 10)))
	want := "Video evidence was analyzed frame-by-frame to reconstruct the sequence of events leading to the collision. " +
		"Significant impact activity was detected at a specific moment of high severity, indicating a critical safety event. " +
		"Average severity across the incident is 33.3/100, with a peak severity of 80. " +
		"Vehicle-1 demonstrates approximately 75.0% fault contribution based on trajectory and proximity analysis. " +
		"Vehicle-2 demonstrates approximately 33.33% fault contribution based on trajectory and proximity analysis. " +
		"This reconstruction is derived from visual evidence and temporal consistency analysis."
	assert.Equal(t, want, got)
}

func TestNarrativeVariants(t *testing.T) {
	empty := Narrative(report.Aggregation{}, nil)
	assert.Contains(t, empty, "No severe impact events were explicitly categorized")
	assert.Contains(t, empty, "Insufficient data to assign specific vehicle fault percentages.")
	assert.Contains(t, empty, "Average severity across the incident is 0.0/100, with a peak severity of 0.")

	multi := Narrative(report.Aggregation{}, Timeline(frameResults(80, 10, 90)))
	assert.Contains(t, multi, "across 2 distinct escalation points")
}

func sum(data string) string {
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:])
}

func TestCustodyRecord(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile("in/clip.mp4", []byte("video-bytes"), 0o644))
	require.NoError(t, fsys.WriteFile("out/f/frame_0000.jpg", []byte("a"), 0o644))
	require.NoError(t, fsys.WriteFile("out/f/frame_0002.jpg", []byte("c"), 0o644))
	frames := []SampledFrame{
		{Path: "out/f/frame_0000.jpg", Index: 0},
		{Path: "out/f/frame_0001.jpg", Index: 1},
		{Path: "out/f/frame_0002.jpg", Index: 2},
	}

	at := time.Date(2026, 4, 2, 9, 30, 0, 0, time.FixedZone("BST", 3600))
	rec := CustodyRecorder{FS: fsys, Clock: timeutil.NewMockClock(at)}.Record("case01", "in/clip.mp4", frames, "")

	assert.Equal(t, "case01", rec.CaseID)
	assert.Equal(t, sum("video-bytes"), rec.FileHash)
	assert.Equal(t, rec.FileHash, rec.Evidence.VideoSHA256)
	assert.Equal(t, "clip.mp4", rec.Evidence.VideoFile)
	assert.Equal(t, 2, rec.Evidence.FramesHashed)
	assert.Equal(t, DefaultHandledBy, rec.HandledBy)
	assert.Equal(t, time.UTC, rec.Timestamp.Location())
	assert.True(t, rec.Timestamp.Equal(at))
	assert.Equal(t, report.Integrity{Algorithm: "SHA-256", Verified: true}, rec.Integrity)
	assert.Equal(t, []report.FrameHash{
		{Frame: "frame_0000.jpg", SHA256: sum("a")},
		{Frame: "frame_0002.jpg", SHA256: sum("c")},
	}, rec.FrameHashes)
}

func TestCustodyMissingVideo(t *testing.T) {
	rec := CustodyRecorder{FS: fsutil.NewMemoryFileSystem()}.Record("c", "gone.mp4", nil, "Officer 12")
	assert.Equal(t, MissingHash, rec.FileHash)
	assert.Equal(t, "Officer 12", rec.HandledBy)
	assert.Empty(t, rec.FrameHashes)
}

func TestCustodyVerify(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile("v.mp4", []byte("video"), 0o644))
	require.NoError(t, fsys.WriteFile("f/frame_0000.jpg", []byte("a"), 0o644))
	require.NoError(t, fsys.WriteFile("f/frame_0001.jpg", []byte("b"), 0o644))
	frames := []SampledFrame{{Path: "f/frame_0000.jpg"}, {Path: "f/frame_0001.jpg", Index: 1}}

	c := CustodyRecorder{FS: fsys}
	rec := c.Record("c1", "v.mp4", frames, "")
	original := rec

	v := c.Verify(rec, "v.mp4", "f")
	assert.True(t, v.Verified)
	assert.Equal(t, 3, v.Checked)
	assert.Empty(t, v.Mismatches)

	require.NoError(t, fsys.WriteFile("f/frame_0001.jpg", []byte("tampered"), 0o644))
	require.NoError(t, fsys.RemoveAll("v.mp4"))

	v = c.Verify(rec, "v.mp4", "f")
	assert.False(t, v.Verified)
	assert.Equal(t, []Mismatch{
		{File: "v.mp4", Expected: sum("video"), Actual: MissingHash},
		{File: "frame_0001.jpg", Expected: sum("b"), Actual: sum("tampered")},
	}, v.Mismatches)
	assert.Equal(t, original, rec)
}

func TestPipelineRun(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile("in/clip.mp4", []byte("video-bytes"), 0o644))
	clock := timeutil.NewMockClock(time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC))

	a := &fakeFrameAnalyzer{reports: map[string]*report.CaseReport{
		"frame_0000.jpg": frameReport("r0", 10, 50, 50),
		"frame_0001.jpg": frameReport("r1", 80, 100, 0),
		"frame_0002.jpg": frameReport("r2", 30, 50, 50),
	}}
	a.reports["frame_0000.jpg"].Analysis.LicensePlates = []detection.Plate{{Plate: "AB12CDE", Confidence: 0.9}}
	a.reports["frame_0002.jpg"].Analysis.LicensePlates = []detection.Plate{
		{Plate: "XY99ZZZ", Confidence: 0.5},
		{Plate: "AB12CDE", Confidence: 0.8},
	}

	p := &Pipeline{
		Engine: a,
		Open: func(context.Context, string) (FrameSource, error) {
			return fakeSource{fps: 9, n: 9}, nil
		},
		FS:         fsys,
		Clock:      clock,
		StorageDir: "out",
		Workers:    2,
		NewCaseID:  func() string { return "vid00001" },
	}

	rep, err := p.Run(context.Background(), "in/clip.mp4", "Investigator A")
	require.NoError(t, err)

	assert.Equal(t, "vid00001", rep.Case.CaseID)
	assert.Equal(t, report.SystemName, rep.Case.System)
	assert.Equal(t, report.VideoScene{VideoFPS: 3, SourceFPS: 9, TotalFramesAnalyzed: 3}, rep.Scene)
	assert.Equal(t, 40.0, rep.Analysis.Severity.Score)
	assert.Equal(t, severity.LevelModerate, rep.Analysis.Severity.Level)
	assert.Equal(t, 80, rep.Analysis.Aggregation.PeakSeverity)
	assert.Equal(t, []report.VehicleFault{
		{VehicleID: "Vehicle-1", FaultPercent: 66.67},
		{VehicleID: "Vehicle-2", FaultPercent: 33.33},
	}, rep.Analysis.Aggregation.VehicleFaults)

	assert.Equal(t, report.VideoEvidence{
		VideoFile: "clip.mp4",
		FramesDir: "vid00001_frames",
		Frames:    []string{"frame_0000.jpg", "frame_0001.jpg", "frame_0002.jpg"},
	}, rep.Evidence)
	assert.True(t, fsys.Exists(filepath.Join("out", "vid00001_frames", "frame_0002.jpg")))

	require.Len(t, rep.Timeline, 2)
	assert.InDelta(t, 0.33, rep.Timeline[0].TimestampSec, 1e-9)

	assert.Equal(t, "Investigator A", rep.ChainOfCustody.HandledBy)
	assert.Equal(t, sum("video-bytes"), rep.ChainOfCustody.FileHash)
	assert.Equal(t, 3, rep.ChainOfCustody.Evidence.FramesHashed)
	assert.Equal(t, sum("frame-3"), rep.ChainOfCustody.FrameHashes[1].SHA256)

	assert.Equal(t, []report.PlateSighting{
		{Plate: "AB12CDE", Confidence: 0.9, TimestampSec: 0, Frame: "frame_0000.jpg", FrameIndex: 0},
		{Plate: "AB12CDE", Confidence: 0.8, TimestampSec: 0.67, Frame: "frame_0002.jpg", FrameIndex: 2},
		{Plate: "XY99ZZZ", Confidence: 0.5, TimestampSec: 0.67, Frame: "frame_0002.jpg", FrameIndex: 2},
	}, rep.LicensePlates)

	require.Len(t, rep.Frames, 3)
	assert.Equal(t, "r1", rep.Frames[1].CaseID)
	assert.Equal(t, 80, rep.Frames[1].SeverityScore)
	assert.Contains(t, rep.Narrative.Reconstruction, "at a specific moment of high severity")
}

func TestPipelineOpenFailure(t *testing.T) {
	p := &Pipeline{
		Engine: &fakeFrameAnalyzer{},
		FS:     fsutil.NewMemoryFileSystem(),
		Open: func(context.Context, string) (FrameSource, error) {
			return nil, errors.New("moov atom not found")
		},
	}
	_, err := p.Run(context.Background(), "broken.mp4", "")
	assert.ErrorIs(t, err, ErrMedia)

	_, err = (&Pipeline{}).Run(context.Background(), "x.mp4", "")
	assert.Error(t, err)
}
