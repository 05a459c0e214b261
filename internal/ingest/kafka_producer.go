package ingest

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/example/visit-trip-linker/internal/models"
)

// MessageWriter is the subset of kafka.Writer used by ResultPublisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ResultPublisher emits match records, keyed by visit, to the results topic.
type ResultPublisher struct {
	writer MessageWriter
}

func NewResultPublisher(brokers []string, topic string) *ResultPublisher {
	w := &kafka.Writer{Addr: kafka.TCP(brokers...), Topic: topic, Balancer: &kafka.Hash{}}
	return &ResultPublisher{writer: w}
}

func (k *ResultPublisher) Publish(ctx context.Context, runID string, records []models.MatchRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		b, err := json.Marshal(r)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(r.VisitID),
			Value:   b,
			Headers: []kafka.Header{{Key: "run_id", Value: []byte(runID)}},
		})
	}
	return k.writer.WriteMessages(ctx, msgs...)
}

func (k *ResultPublisher) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
