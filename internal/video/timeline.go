package video

import (
	"fmt"
	"strings"

	"github.com/banshee-data/incident.report/internal/report"
	"github.com/banshee-data/incident.report/internal/severity"
)

// Synthetic timeline events for videos whose level never changes.
const (
	EventStarted = "Video analysis started"
	EventEnded   = "Video analysis ended"
)

// Timeline walks frames in order from an initial MINOR level and records
// every level change. When no change occurs but frames exist, it brackets
// the analysis with start and end events instead.
func Timeline(results []report.FrameResult) []report.TimelineEvent {
	events := []report.TimelineEvent{}
	last := severity.LevelMinor

	for _, fr := range results {
		if fr.Report == nil {
			continue
		}
		sev := fr.Report.Analysis.Severity
		if sev.Level == last {
			continue
		}
		verb := "escalated"
		if sev.Level.Rank() < last.Rank() {
			verb = "de-escalated"
		}
		events = append(events, report.TimelineEvent{
			TimestampSec: fr.TimestampSec,
			Frame:        fr.FrameFile,
			Event:        fmt.Sprintf("Severity %s to %s (Score: %d)", verb, sev.Level, sev.Score),
			From:         last,
			To:           sev.Level,
		})
		last = sev.Level
	}

	if len(events) == 0 && len(results) > 0 {
		first, end := results[0], results[len(results)-1]
		events = append(events,
			report.TimelineEvent{TimestampSec: first.TimestampSec, Frame: first.FrameFile, Event: EventStarted},
			report.TimelineEvent{TimestampSec: end.TimestampSec, Frame: end.FrameFile, Event: EventEnded},
		)
	}
	return events
}

// ImpactCount is the number of escalations into SEVERE.
func ImpactCount(events []report.TimelineEvent) int {
	n := 0
	for _, e := range events {
		if strings.Contains(e.Event, "escalated to "+string(severity.LevelSevere)) {
			n++
		}
	}
	return n
}
