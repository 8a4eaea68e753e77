// Package events announces analysed cases to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/banshee-data/incident.report/internal/report"
	"github.com/banshee-data/incident.report/internal/severity"
)

// TypeCaseAnalyzed is emitted once a case has been stored.
const TypeCaseAnalyzed = "case.analyzed"

// Event is the JSON payload published per case.
type Event struct {
	Type          string         `json:"type"`
	CaseID        string         `json:"case_id"`
	Kind          report.Kind    `json:"kind"`
	Owner         string         `json:"owner"`
	SeverityScore float64        `json:"severity_score"`
	SeverityLevel severity.Level `json:"severity_level"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

// Encode returns the message key and value for e.
func (e Event) Encode() (key, value []byte, err error) {
	value, err = json.Marshal(e)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return []byte(e.CaseID), value, nil
}

// ImageCase builds the event for a stored image report.
func ImageCase(rep *report.CaseReport, owner string, at time.Time) Event {
	return Event{
		Type:          TypeCaseAnalyzed,
		CaseID:        rep.Case.CaseID,
		Kind:          report.KindImage,
		Owner:         owner,
		SeverityScore: float64(rep.Analysis.Severity.Score),
		SeverityLevel: rep.Analysis.Severity.Level,
		OccurredAt:    at.UTC(),
	}
}

// VideoCase builds the event for a stored video report.
func VideoCase(rep *report.VideoReport, owner string, at time.Time) Event {
	return Event{
		Type:          TypeCaseAnalyzed,
		CaseID:        rep.Case.CaseID,
		Kind:          report.KindVideo,
		Owner:         owner,
		SeverityScore: rep.Analysis.Severity.Score,
		SeverityLevel: rep.Analysis.Severity.Level,
		OccurredAt:    at.UTC(),
	}
}

// Publisher delivers events. Publish must not block on broker round trips.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close()
}

// NoopPublisher drops every event. It is used when no brokers are set.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close()                               {}
