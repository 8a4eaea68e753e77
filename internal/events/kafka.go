package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/banshee-data/incident.report/internal/monitoring"
)

// DefaultTopic receives case events when none is configured.
const DefaultTopic = "incident.cases"

const flushTimeout = 10 * time.Second

// producer is the subset of *kafka.Producer the publisher uses.
type producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Events() chan kafka.Event
	Flush(timeoutMs int) int
	Close()
}

// KafkaPublisher produces events asynchronously and logs failed
// deliveries from the producer's event channel.
type KafkaPublisher struct {
	producer producer
	topic    string
	wg       sync.WaitGroup
}

// NewKafkaPublisher connects to brokers, a comma-separated list.
func NewKafkaPublisher(brokers, topic string) (*KafkaPublisher, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":   brokers,
		"client.id":           "incident-report",
		"acks":                "all",
		"enable.idempotence":  true,
		"linger.ms":           20,
		"delivery.timeout.ms": 60000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	return newKafkaPublisher(p, topic), nil
}

func newKafkaPublisher(p producer, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	kp := &KafkaPublisher{producer: p, topic: topic}
	kp.wg.Add(1)
	go kp.handleEvents()
	monitoring.Logf("[Events] kafka publisher ready, topic %s", topic)
	return kp
}

func (kp *KafkaPublisher) handleEvents() {
	defer kp.wg.Done()
	for e := range kp.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				monitoring.EventsPublished.WithLabelValues("failed").Inc()
				monitoring.Warnf("[Events] delivery of %s failed: %v", ev.Key, ev.TopicPartition.Error)
				continue
			}
			monitoring.EventsPublished.WithLabelValues("delivered").Inc()
		case kafka.Error:
			monitoring.Warnf("[Events] producer error: %v", ev)
		}
	}
}

// Message builds the kafka message for e.
func (kp *KafkaPublisher) Message(e Event) (*kafka.Message, error) {
	key, value, err := e.Encode()
	if err != nil {
		return nil, err
	}
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &kp.topic, Partition: kafka.PartitionAny},
		Key:            key,
		Value:          value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
			{Key: "kind", Value: []byte(e.Kind)},
			{Key: "owner", Value: []byte(e.Owner)},
		},
	}, nil
}

func (kp *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := kp.Message(e)
	if err != nil {
		return err
	}
	if err := kp.producer.Produce(msg, nil); err != nil {
		monitoring.EventsPublished.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to produce event for %s: %w", e.CaseID, err)
	}
	return nil
}

// Close flushes pending messages and closes the producer.
func (kp *KafkaPublisher) Close() {
	if n := kp.producer.Flush(int(flushTimeout.Milliseconds())); n > 0 {
		monitoring.Warnf("[Events] %d messages still queued after flush", n)
	}
	kp.producer.Close()
	kp.wg.Wait()
}
