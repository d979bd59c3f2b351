package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/vantagelab/termlens/internal/config"
	"github.com/vantagelab/termlens/internal/infrastructure/monitoring/logging"
	"github.com/vantagelab/termlens/pkg/errors"
)

// RequestHandler processes one analysis request event. A returned error keeps
// the message uncommitted so another consumer can retry it; unparseable
// messages are committed and skipped.
type RequestHandler func(ctx context.Context, req AnalysisRequestedPayload) error

// readerInterface abstracts kafka.Reader for testing.
type readerInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads analysis request events in a consumer group and hands them
// to the worker's handler one at a time. Runs are independent, so there is no
// need for concurrent handling within one consumer.
type Consumer struct {
	reader  readerInterface
	handler RequestHandler
	logger  logging.Logger
	running atomic.Bool
}

// NewConsumer creates a Consumer from the application config.
func NewConsumer(cfg config.KafkaConfig, handler RequestHandler, logger logging.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers are required")
	}
	if handler == nil {
		return nil, errors.New(errors.ErrCodeValidation, "request handler is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	startOffset := kafka.FirstOffset
	if cfg.AutoOffsetReset == "latest" {
		startOffset = kafka.LastOffset
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       TopicAnalysisRequested,
		StartOffset: startOffset,
		MinBytes:    1,
		MaxBytes:    10 * 1024 * 1024,
		MaxWait:     time.Second,
	})
	return &Consumer{
		reader:  reader,
		handler: handler,
		logger:  logger.Named("kafka_consumer"),
	}, nil
}

// Run consumes until the context is canceled. It returns nil on cancellation
// and the fetch error otherwise.
func (c *Consumer) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New(errors.ErrCodeConflict, "consumer already running")
	}
	defer c.running.Store(false)

	c.logger.Info("consumer started", logging.String("topic", TopicAnalysisRequested))
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, errors.ErrCodeExternalService, "fetch kafka message")
		}

		req, err := decodeRequest(msg.Value)
		if err != nil {
			// Malformed messages would be redelivered forever; log and skip.
			c.logger.Error("malformed request event skipped",
				logging.Int("partition", msg.Partition),
				logging.Err(err))
			c.commit(ctx, msg)
			continue
		}

		if err := c.handler(ctx, req); err != nil {
			c.logger.Error("request handling failed",
				logging.String("run_id", req.RunID),
				logging.Err(err))
			// Left uncommitted for redelivery after a rebalance.
			continue
		}
		c.commit(ctx, msg)
	}
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Warn("commit failed", logging.Err(err))
	}
}

// Close shuts down the reader and leaves the consumer group.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

func decodeRequest(value []byte) (AnalysisRequestedPayload, error) {
	var envelope EventEnvelope
	if err := json.Unmarshal(value, &envelope); err != nil {
		return AnalysisRequestedPayload{}, errors.Wrap(err, errors.ErrCodeSerialization, "decode envelope")
	}
	if envelope.EventType != EventAnalysisRequested {
		return AnalysisRequestedPayload{}, errors.New(errors.ErrCodeValidation, fmt.Sprintf("unexpected event type %q", envelope.EventType))
	}
	var req AnalysisRequestedPayload
	if err := json.Unmarshal(envelope.Payload, &req); err != nil {
		return AnalysisRequestedPayload{}, errors.Wrap(err, errors.ErrCodeSerialization, "decode request payload")
	}
	if req.RunID == "" {
		return AnalysisRequestedPayload{}, errors.New(errors.ErrCodeValidation, "request event missing run_id")
	}
	return req, nil
}
