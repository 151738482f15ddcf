package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/synaptica-ai/radiology-console/pkg/common/logger"
	"github.com/synaptica-ai/radiology-console/pkg/common/models"
)

const (
	EventTypeAnalysisCompleted = "analysis.completed"
	sourceAnalysisService      = "analysis-service"
)

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{writer: writer}
}

// PublishAnalysisCompleted writes one event keyed by case id so all events
// for a case land on the same partition.
func (p *Producer) PublishAnalysisCompleted(ctx context.Context, event models.AnalysisCompletedEvent) error {
	message, err := encodeEvent(event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"event_id": event.ID,
			"case_id":  event.CaseID,
		}).Error("Failed to publish event")
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"event_id": event.ID,
		"case_id":  event.CaseID,
		"topic":    p.writer.Topic,
	}).Info("Event published")
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func encodeEvent(event models.AnalysisCompletedEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.CaseID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(EventTypeAnalysisCompleted)},
			{Key: "source", Value: []byte(sourceAnalysisService)},
		},
	}, nil
}
