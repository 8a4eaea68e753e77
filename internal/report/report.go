// Package report defines the forensic case documents produced for images
// and videos. Reports are built once and treated as immutable afterwards.
package report

import (
	"time"

	"github.com/banshee-data/incident.report/internal/detection"
	"github.com/banshee-data/incident.report/internal/fault"
	"github.com/banshee-data/incident.report/internal/geometry"
	"github.com/banshee-data/incident.report/internal/scene"
	"github.com/banshee-data/incident.report/internal/severity"
)

// Fixed report metadata.
const (
	SystemName          = "Incident Forensic System v1.0"
	Disclaimer          = "AI-assisted forensic assessment."
	FaultMethod         = "Spatial overlap and object interaction reasoning"
	NarrativeTone       = "investigative"
	NarrativeConfidence = "medium"
)

// Kind distinguishes image and video cases in storage.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Case identifies a report.
type Case struct {
	CaseID      string    `json:"case_id"`
	GeneratedAt time.Time `json:"generated_at"`
	System      string    `json:"system"`
	Disclaimer  string    `json:"disclaimer"`
}

// NewCase stamps a case with the fixed system metadata.
func NewCase(id string, at time.Time) Case {
	return Case{CaseID: id, GeneratedAt: at.UTC(), System: SystemName, Disclaimer: Disclaimer}
}

// Vehicle is a vehicle entity within a single image or frame. Its ID is
// frame-local: Vehicle-1 in one frame is unrelated to Vehicle-1 in the next.
type Vehicle struct {
	ID               string       `json:"id"`
	Type             string       `json:"type"`
	BoundingBox      geometry.Box `json:"bounding_box"`
	Confidence       float64      `json:"detection_confidence"`
	FaultPercent     float64      `json:"fault_percent"`
	ConfidenceReason string       `json:"confidence_reason"`
}

// Person is a person entity within a single image or frame.
type Person struct {
	ID          string       `json:"id"`
	Role        string       `json:"role"`
	RiskLevel   string       `json:"risk_level"`
	BoundingBox geometry.Box `json:"bounding_box"`
	Gender      string       `json:"gender"`
	Age         *int         `json:"age"`
	Category    string       `json:"category"`
}

type Entities struct {
	Vehicles []Vehicle `json:"vehicles"`
	Persons  []Person  `json:"persons"`
}

// FaultAllocation records how fault was assigned. Stages holds the output
// of every scoring stage for audit.
type FaultAllocation struct {
	PrimaryVehicle string           `json:"primary_vehicle,omitempty"`
	Method         string           `json:"method"`
	Stages         []fault.Snapshot `json:"stages,omitempty"`
}

type RiskFactors struct {
	PedestrianInvolved bool `json:"pedestrian_involved"`
	MultiVehicle       bool `json:"multi_vehicle"`
}

type Analysis struct {
	FaultAllocation FaultAllocation   `json:"fault_allocation"`
	Severity        severity.Result   `json:"severity"`
	RiskFactors     RiskFactors       `json:"risk_factors"`
	LicensePlates   []detection.Plate `json:"license_plates"`
}

type Narrative struct {
	Reconstruction string `json:"reconstruction"`
	Tone           string `json:"tone,omitempty"`
	Confidence     string `json:"confidence,omitempty"`
}

// Evidence references files in the evidence directory by base name.
type Evidence struct {
	AnnotatedImage string `json:"annotated_image"`
	OriginalImage  string `json:"original_image"`
	ContentHash    string `json:"content_hash"`
}

// CaseReport is the full assessment of one image.
type CaseReport struct {
	Case        Case             `json:"case"`
	Scene       scene.Assessment `json:"scene"`
	Entities    Entities         `json:"entities"`
	Analysis    Analysis         `json:"analysis"`
	Narrative   Narrative        `json:"narrative"`
	Evidence    Evidence         `json:"evidence"`
	Explanation string           `json:"explanation"`
}
