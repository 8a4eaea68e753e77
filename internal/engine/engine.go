// Package engine runs the image case pipeline: perception collaborators,
// scene classification, fault and severity reasoning, and report assembly.
// Results are cached by content so identical images are analysed once per
// process.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/banshee-data/incident.report/internal/annotate"
	"github.com/banshee-data/incident.report/internal/detection"
	"github.com/banshee-data/incident.report/internal/fault"
	"github.com/banshee-data/incident.report/internal/fsutil"
	"github.com/banshee-data/incident.report/internal/media"
	"github.com/banshee-data/incident.report/internal/monitoring"
	"github.com/banshee-data/incident.report/internal/report"
	"github.com/banshee-data/incident.report/internal/scene"
	"github.com/banshee-data/incident.report/internal/severity"
	"github.com/banshee-data/incident.report/internal/timeutil"
)

// ErrDecode is returned when the input is not a decodable image.
var ErrDecode = errors.New("invalid image input")

// Collaborators are the perception services the engine consumes. Detector
// and Captioner are required; a nil Analyzer or PlateReader skips that step.
type Collaborators struct {
	Detector    detection.Detector
	Captioner   detection.Captioner
	Analyzer    detection.DemographicAnalyzer
	PlateReader detection.PlateReader
}

// RenderFunc draws annotation labels onto an image and encodes it.
type RenderFunc func(img image.Image, labels []annotate.Label) ([]byte, error)

// Options configure an Engine. Zero values select the defaults.
type Options struct {
	StorageDir string // annotated images are written here
	FS         fsutil.FileSystem
	Clock      timeutil.Clock
	Hasher     Hasher
	Cache      *ResultCache
	Render     RenderFunc
	NewCaseID  func() string
}

// Engine analyses single images. It is safe for concurrent use.
type Engine struct {
	collab     Collaborators
	storageDir string
	fs         fsutil.FileSystem
	clock      timeutil.Clock
	hash       Hasher
	cache      *ResultCache
	render     RenderFunc
	newCaseID  func() string
}

// NewCaseID returns the first eight characters of a random UUID.
func NewCaseID() string {
	return uuid.New().String()[:8]
}

// New validates the collaborators and applies option defaults.
func New(c Collaborators, opts Options) (*Engine, error) {
	if c.Detector == nil {
		return nil, errors.New("engine: detector is required")
	}
	if c.Captioner == nil {
		return nil, errors.New("engine: captioner is required")
	}

	e := &Engine{
		collab:     c,
		storageDir: opts.StorageDir,
		fs:         opts.FS,
		clock:      opts.Clock,
		hash:       opts.Hasher,
		cache:      opts.Cache,
		render:     opts.Render,
		newCaseID:  opts.NewCaseID,
	}
	if e.storageDir == "" {
		e.storageDir = "outputs"
	}
	if e.fs == nil {
		e.fs = fsutil.OSFileSystem{}
	}
	if e.clock == nil {
		e.clock = timeutil.RealClock{}
	}
	if e.hash == nil {
		e.hash = XXHash
	}
	if e.cache == nil {
		e.cache = NewResultCache(0)
	}
	if e.render == nil {
		e.render = annotate.Render
	}
	if e.newCaseID == nil {
		e.newCaseID = NewCaseID
	}

	if err := e.fs.MkdirAll(e.storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return e, nil
}

// StorageDir is the directory annotated evidence is written to.
func (e *Engine) StorageDir() string { return e.storageDir }

// Cache exposes the result cache.
func (e *Engine) Cache() *ResultCache { return e.cache }

// RunFile reads an image through the engine's filesystem and runs it.
func (e *Engine) RunFile(ctx context.Context, path string) (*report.CaseReport, error) {
	data, err := e.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return e.Run(ctx, data, filepath.Base(path))
}

// Run analyses an image. name is recorded as the original evidence file.
// A previously seen image returns the same report pointer without calling
// any collaborator. Concurrent callers with the same image share one
// analysis, which is not cancelled when the caller that started it goes away.
func (e *Engine) Run(ctx context.Context, data []byte, name string) (*report.CaseReport, error) {
	key := e.hash(data)
	shared := context.WithoutCancel(ctx)
	rep, _, err := e.cache.GetOrCompute(key, func() (*report.CaseReport, error) {
		return e.analyze(shared, data, name, key)
	})
	return rep, err
}

func (e *Engine) analyze(ctx context.Context, data []byte, name, key string) (*report.CaseReport, error) {
	start := e.clock.Now()

	img, _, err := media.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	objects, err := e.collab.Detector.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("failed to detect objects: %w", err)
	}
	vehicles, persons := detection.Split(objects)

	var demographics []detection.Demographics
	if len(persons) > 0 {
		demographics = e.analyzePersons(ctx, img, persons)
	}

	plates := e.readPlates(ctx, img)

	caption, err := e.collab.Captioner.Caption(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("failed to caption image: %w", err)
	}

	overlap := scene.MaxOverlap(vehicles)
	assessment := scene.Classify(caption, vehicles, persons)
	trace := fault.Assess(vehicles, assessment.Summary)
	sev := severity.Assess(overlap, trace.Final.Values(), len(persons))

	vehicleEntities := buildVehicles(vehicles, trace.Final, overlap, len(persons) > 0)
	personEntities := buildPersons(persons, demographics)
	primary := primaryVehicle(vehicleEntities, trace.Final)
	primaryID := ""
	if primary != nil {
		primaryID = primary.ID
	}

	caseID := e.newCaseID()
	annotated, err := e.render(img, annotate.Labels(vehicles, persons, faultShares(len(vehicles), trace.Final)))
	if err != nil {
		return nil, fmt.Errorf("failed to render annotations: %w", err)
	}
	annotatedName := caseID + "_annotated.jpg"
	if err := e.fs.WriteFile(filepath.Join(e.storageDir, annotatedName), annotated, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write annotated image: %w", err)
	}

	rep := &report.CaseReport{
		Case:  report.NewCase(caseID, e.clock.Now()),
		Scene: assessment,
		Entities: report.Entities{
			Vehicles: vehicleEntities,
			Persons:  personEntities,
		},
		Analysis: report.Analysis{
			FaultAllocation: report.FaultAllocation{
				PrimaryVehicle: primaryID,
				Method:         report.FaultMethod,
				Stages:         trace.Stages,
			},
			Severity: sev,
			RiskFactors: report.RiskFactors{
				PedestrianInvolved: len(persons) > 0,
				MultiVehicle:       len(vehicles) > 1,
			},
			LicensePlates: plates,
		},
		Narrative: report.Narrative{
			Reconstruction: narrative(len(vehicleEntities), sev.Level, assessment.CollisionType, primaryID, len(persons)),
			Tone:           report.NarrativeTone,
			Confidence:     report.NarrativeConfidence,
		},
		Evidence: report.Evidence{
			AnnotatedImage: annotatedName,
			OriginalImage:  filepath.Base(name),
			ContentHash:    key,
		},
		Explanation: explanation(primary, len(persons)),
	}

	monitoring.CasesAnalyzed.WithLabelValues(string(report.KindImage)).Inc()
	monitoring.AnalysisDuration.WithLabelValues(string(report.KindImage)).Observe(e.clock.Since(start).Seconds())
	monitoring.Logf("[Engine] case %s: %d vehicles, %d persons, severity %d (%s)",
		caseID, len(vehicles), len(persons), sev.Score, sev.Level)
	return rep, nil
}

// analyzePersons estimates demographics per person. Empty crops and
// analyzer failures yield unknown values.
func (e *Engine) analyzePersons(ctx context.Context, img image.Image, persons []detection.Object) []detection.Demographics {
	out := make([]detection.Demographics, len(persons))
	for i, p := range persons {
		out[i] = detection.UnknownDemographics()
		if e.collab.Analyzer == nil {
			continue
		}
		crop := media.Crop(img, p.Box.Image())
		if crop == nil {
			continue
		}
		d, err := e.collab.Analyzer.Analyze(ctx, crop)
		if err != nil {
			monitoring.CollaboratorFailures.WithLabelValues("analyzer").Inc()
			monitoring.Warnf("[Engine] demographic analysis failed for %s: %v", detection.PersonID(i), err)
			continue
		}
		out[i] = d
	}
	return out
}

// readPlates runs OCR over the whole image. Failures yield no plates.
func (e *Engine) readPlates(ctx context.Context, img image.Image) []detection.Plate {
	if e.collab.PlateReader == nil {
		return []detection.Plate{}
	}
	candidates, err := e.collab.PlateReader.Read(ctx, img)
	if err != nil {
		monitoring.CollaboratorFailures.WithLabelValues("plate_reader").Inc()
		monitoring.Warnf("[Engine] plate reading failed: %v", err)
		return []detection.Plate{}
	}
	return detection.FilterPlates(candidates)
}
