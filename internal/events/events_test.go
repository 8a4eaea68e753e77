package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/incident.report/internal/monitoring"
	"github.com/banshee-data/incident.report/internal/report"
	"github.com/banshee-data/incident.report/internal/severity"
)

type fakeProducer struct {
	mu       sync.Mutex
	produced []*kafka.Message
	err      error
	events   chan kafka.Event
	flushed  bool
}

func newFakeProducer() *fakeProducer {
	return &fakeProducer{events: make(chan kafka.Event, 8)}
}

func (f *fakeProducer) Produce(msg *kafka.Message, _ chan kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.produced = append(f.produced, msg)
	return nil
}

func (f *fakeProducer) Events() chan kafka.Event { return f.events }
func (f *fakeProducer) Flush(int) int            { f.flushed = true; return 0 }
func (f *fakeProducer) Close()                   { close(f.events) }

var at = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

func TestImageAndVideoEvents(t *testing.T) {
	img := &report.CaseReport{
		Case:     report.Case{CaseID: "img00001"},
		Analysis: report.Analysis{Severity: severity.Result{Score: 85, Level: severity.LevelSevere}},
	}
	e := ImageCase(img, "SYSTEM", at)
	assert.Equal(t, Event{
		Type: TypeCaseAnalyzed, CaseID: "img00001", Kind: report.KindImage, Owner: "SYSTEM",
		SeverityScore: 85, SeverityLevel: severity.LevelSevere, OccurredAt: at,
	}, e)

	vid := &report.VideoReport{
		Case:     report.Case{CaseID: "vid00001"},
		Analysis: report.VideoAnalysis{Severity: report.VideoSeverity{Score: 40.5, Level: severity.LevelModerate}},
	}
	v := VideoCase(vid, "det-smith", at)
	assert.Equal(t, report.KindVideo, v.Kind)
	assert.Equal(t, 40.5, v.SeverityScore)
	assert.Equal(t, "det-smith", v.Owner)
}

func TestKafkaPublisherPublish(t *testing.T) {
	fp := newFakeProducer()
	kp := newKafkaPublisher(fp, "")

	e := Event{Type: TypeCaseAnalyzed, CaseID: "c1", Kind: report.KindImage, Owner: "SYSTEM", OccurredAt: at}
	require.NoError(t, kp.Publish(context.Background(), e))
	kp.Close()

	require.Len(t, fp.produced, 1)
	msg := fp.produced[0]
	assert.Equal(t, DefaultTopic, *msg.TopicPartition.Topic)
	assert.Equal(t, kafka.PartitionAny, msg.TopicPartition.Partition)
	assert.Equal(t, "c1", string(msg.Key))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, e, decoded)
	assert.Contains(t, msg.Headers, kafka.Header{Key: "kind", Value: []byte("image")})
	assert.True(t, fp.flushed)
}

func TestKafkaPublisherErrors(t *testing.T) {
	fp := newFakeProducer()
	fp.err = errors.New("queue full")
	kp := newKafkaPublisher(fp, "cases")
	defer kp.Close()

	err := kp.Publish(context.Background(), Event{CaseID: "c2"})
	assert.ErrorContains(t, err, "queue full")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, kp.Publish(ctx, Event{CaseID: "c3"}), context.Canceled)
}

func TestKafkaPublisherDeliveryReports(t *testing.T) {
	failed := testutil.ToFloat64(monitoring.EventsPublished.WithLabelValues("failed"))
	delivered := testutil.ToFloat64(monitoring.EventsPublished.WithLabelValues("delivered"))

	fp := newFakeProducer()
	kp := newKafkaPublisher(fp, "cases")
	topic := "cases"
	fp.events <- &kafka.Message{TopicPartition: kafka.TopicPartition{Topic: &topic}, Key: []byte("ok")}
	fp.events <- &kafka.Message{TopicPartition: kafka.TopicPartition{Topic: &topic, Error: errors.New("broker down")}, Key: []byte("bad")}
	kp.Close()

	assert.Equal(t, failed+1, testutil.ToFloat64(monitoring.EventsPublished.WithLabelValues("failed")))
	assert.Equal(t, delivered+1, testutil.ToFloat64(monitoring.EventsPublished.WithLabelValues("delivered")))
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), Event{}))
	p.Close()
}
