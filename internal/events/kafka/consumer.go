package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/banking-ledger-saga/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/models"
)

// Handler processes one raw message value. A nil return acknowledges the
// message; an error triggers another local delivery attempt, and once
// MaxRetries attempts are exhausted the message goes to the dead-letter sink.
type Handler func(ctx context.Context, message []byte) error

// ConsumerConfig configures one consumer-group member.
type ConsumerConfig struct {
	Brokers      []string
	Topic        string
	GroupID      string
	MaxRetries   int
	RetryBackoff time.Duration
}

// messageReader is the fetch/commit surface of kafka.Reader the consumer
// depends on.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer pulls messages from one topic within a consumer group and feeds
// them to the handler with bounded redelivery.
type Consumer struct {
	reader  messageReader
	handler Handler
	sink    interfaces.DeadLetterSink
	cfg     ConsumerConfig
	log     *zap.Logger
}

func NewConsumer(cfg ConsumerConfig, handler Handler, sink interfaces.DeadLetterSink, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		StartOffset: kafka.FirstOffset,
		MaxBytes:    10e6,
	})

	return &Consumer{
		reader:  reader,
		handler: handler,
		sink:    sink,
		cfg:     cfg,
		log:     logger,
	}
}

// Run blocks consuming messages until ctx is done or the reader fails. The
// offset is committed only after the message is settled — handled
// successfully or accepted by the dead-letter sink — so a crash
// mid-processing redelivers the message instead of silently losing it.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info("consumer started",
		zap.String("topic", c.cfg.Topic),
		zap.String("group_id", c.cfg.GroupID))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		if !c.process(ctx, msg) {
			// Unsettled: leave the offset uncommitted so the group
			// redelivers the message after a restart or rebalance.
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// process reports whether the message is settled: the handler returned nil,
// or redelivery was exhausted and the dead-letter sink took the message.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	var err error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if err = c.handler(ctx, msg.Value); err == nil {
			return true
		}

		c.log.Warn("handler attempt failed",
			zap.String("topic", msg.Topic),
			zap.Int64("offset", msg.Offset),
			zap.Int("attempt", attempt),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.cfg.RetryBackoff):
		}
	}

	c.log.Error("redelivery exhausted, handing message to dead-letter sink",
		zap.String("topic", msg.Topic),
		zap.Int64("offset", msg.Offset),
		zap.Error(err))

	original := models.BusMessage{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
		Time:      msg.Time,
	}
	if sinkErr := c.sink.Accept(ctx, original, err.Error()); sinkErr != nil {
		c.log.Error("dead-letter sink rejected message", zap.Error(sinkErr))
		return false
	}
	return true
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
