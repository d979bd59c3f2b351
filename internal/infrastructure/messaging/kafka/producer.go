package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/vantagelab/termlens/internal/application/analysis"
	"github.com/vantagelab/termlens/internal/config"
	"github.com/vantagelab/termlens/internal/infrastructure/monitoring/logging"
	"github.com/vantagelab/termlens/pkg/errors"
)

const producerSource = "termlens"

// writerInterface abstracts kafka.Writer for testing.
type writerInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes run lifecycle events. Messages carry their topic so one
// writer serves all three topics.
type Producer struct {
	writer writerInterface
	logger logging.Logger
	now    func() time.Time
}

var _ analysis.EventPublisher = (*Producer)(nil)

// NewProducer creates a Producer from the application config.
func NewProducer(cfg config.KafkaConfig, logger logging.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers are required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout == 0 {
		batchTimeout = time.Second
	}
	retries := cfg.ProducerRetries
	if retries == 0 {
		retries = 3
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  retries,
		BatchTimeout: batchTimeout,
	}
	return &Producer{
		writer: writer,
		logger: logger.Named("kafka_producer"),
		now:    time.Now,
	}, nil
}

func (p *Producer) PublishAnalysisRequested(ctx context.Context, runID, batchID string) error {
	return p.publish(ctx, TopicAnalysisRequested, EventAnalysisRequested, runID,
		AnalysisRequestedPayload{RunID: runID, BatchID: batchID})
}

func (p *Producer) PublishAnalysisCompleted(ctx context.Context, runID string, partial bool) error {
	return p.publish(ctx, TopicAnalysisCompleted, EventAnalysisCompleted, runID,
		AnalysisCompletedPayload{RunID: runID, Partial: partial})
}

func (p *Producer) PublishAnalysisFailed(ctx context.Context, runID, reason string) error {
	return p.publish(ctx, TopicAnalysisFailed, EventAnalysisFailed, runID,
		AnalysisFailedPayload{RunID: runID, Reason: reason})
}

// publish wraps the payload in an envelope and writes it keyed by run id, so
// events for one run stay ordered within a partition.
func (p *Producer) publish(ctx context.Context, topic, eventType, runID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "marshal event payload")
	}
	envelope := EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Source:        producerSource,
		Timestamp:     p.now().UTC(),
		SchemaVersion: "1",
		Payload:       raw,
	}
	value, err := json.Marshal(envelope)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "marshal event envelope")
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(runID),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "write kafka message")
	}
	p.logger.Debug("event published",
		logging.String("topic", topic),
		logging.String("event_type", eventType),
		logging.String("run_id", runID))
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
