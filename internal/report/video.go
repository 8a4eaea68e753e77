package report

import (
	"time"

	"github.com/banshee-data/incident.report/internal/severity"
)

// FrameResult is the image assessment of one sampled frame. Report may be
// shared with other frames of identical content and must not be modified.
type FrameResult struct {
	Report       *CaseReport `json:"report"`
	FrameIndex   int         `json:"frame_index"`
	TimestampSec float64     `json:"timestamp_sec"`
	FrameFile    string      `json:"frame_file"`
	FullPath     string      `json:"full_path"`
}

// FrameSummary is the per-frame line stored with a video report.
type FrameSummary struct {
	FrameIndex    int            `json:"frame_index"`
	TimestampSec  float64        `json:"timestamp_sec"`
	FrameFile     string         `json:"frame_file"`
	CaseID        string         `json:"case_id"`
	SeverityScore int            `json:"severity_score"`
	SeverityLevel severity.Level `json:"severity_level"`
	Vehicles      int            `json:"vehicles"`
	Persons       int            `json:"persons"`
}

// Summarize reduces a frame result to its summary line.
func (fr FrameResult) Summarize() FrameSummary {
	s := FrameSummary{
		FrameIndex:   fr.FrameIndex,
		TimestampSec: fr.TimestampSec,
		FrameFile:    fr.FrameFile,
	}
	if fr.Report != nil {
		s.CaseID = fr.Report.Case.CaseID
		s.SeverityScore = fr.Report.Analysis.Severity.Score
		s.SeverityLevel = fr.Report.Analysis.Severity.Level
		s.Vehicles = len(fr.Report.Entities.Vehicles)
		s.Persons = len(fr.Report.Entities.Persons)
	}
	return s
}

// TimelineEvent marks a severity level change, or the synthetic start and
// end of an analysis in which the level never changed.
type TimelineEvent struct {
	TimestampSec float64        `json:"timestamp_sec"`
	Frame        string         `json:"frame"`
	Event        string         `json:"event"`
	From         severity.Level `json:"from,omitempty"`
	To           severity.Level `json:"to,omitempty"`
}

// VehicleFault is the mean fault of one frame-local vehicle id.
type VehicleFault struct {
	VehicleID    string  `json:"vehicle_id"`
	FaultPercent float64 `json:"fault_percent"`
}

// Aggregation rolls per-frame results up across the video. VehicleFaults
// keeps the order in which ids were first seen.
type Aggregation struct {
	AvgSeverity   float64        `json:"avg_severity"`
	PeakSeverity  int            `json:"peak_severity"`
	VehicleFaults []VehicleFault `json:"vehicle_faults"`
}

// PlateSighting is a licence plate read in a particular frame.
type PlateSighting struct {
	Plate        string  `json:"plate"`
	Confidence   float64 `json:"confidence"`
	TimestampSec float64 `json:"timestamp_sec"`
	Frame        string  `json:"frame"`
	FrameIndex   int     `json:"frame_index"`
}

type FrameHash struct {
	Frame  string `json:"frame"`
	SHA256 string `json:"sha256"`
}

type Integrity struct {
	Algorithm string `json:"algorithm"`
	Verified  bool   `json:"verified"`
}

type CustodyEvidence struct {
	VideoFile    string `json:"video_file"`
	VideoSHA256  string `json:"video_sha256"`
	FramesHashed int    `json:"frames_hashed"`
}

// CustodyRecord anchors the evidence of a video case. It is created once
// and never modified.
type CustodyRecord struct {
	CaseID      string          `json:"case_id"`
	FileHash    string          `json:"file_hash"`
	Timestamp   time.Time       `json:"timestamp"`
	HandledBy   string          `json:"handled_by"`
	Evidence    CustodyEvidence `json:"evidence"`
	FrameHashes []FrameHash     `json:"frame_hashes"`
	Integrity   Integrity       `json:"integrity"`
}

type VideoScene struct {
	VideoFPS            float64 `json:"video_fps"`
	SourceFPS           float64 `json:"source_fps"`
	TotalFramesAnalyzed int     `json:"total_frames_analyzed"`
}

// VideoSeverity carries the average severity, which need not be whole.
type VideoSeverity struct {
	Score float64        `json:"score"`
	Level severity.Level `json:"level"`
}

type VideoAnalysis struct {
	Severity    VideoSeverity `json:"severity"`
	Aggregation Aggregation   `json:"aggregation"`
}

type VideoEvidence struct {
	VideoFile string   `json:"video_file"`
	FramesDir string   `json:"frames_dir"`
	Frames    []string `json:"frames"`
}

// VideoReport is the full assessment of one video.
type VideoReport struct {
	Case           Case            `json:"case"`
	Scene          VideoScene      `json:"scene"`
	Analysis       VideoAnalysis   `json:"analysis"`
	Evidence       VideoEvidence   `json:"evidence"`
	Timeline       []TimelineEvent `json:"timeline"`
	Narrative      Narrative       `json:"narrative"`
	ChainOfCustody CustodyRecord   `json:"chain_of_custody"`
	LicensePlates  []PlateSighting `json:"license_plates"`
	Frames         []FrameSummary  `json:"frames"`
}
