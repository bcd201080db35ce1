package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"alert-service/internal/logging"
	"alert-service/internal/models"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// EventCreator is the ingestion path messages are fed into.
type EventCreator interface {
	CreateEvent(ctx context.Context, in models.EventCreate) (models.Event, []models.DeliveryResult, error)
}

type Consumer struct {
	reader         *kafka.Reader
	svc            EventCreator
	logger         *logging.Logger
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func NewConsumer(brokers []string, topic, groupID string, svc EventCreator, logger *logging.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return &Consumer{
		reader:         reader,
		svc:            svc,
		logger:         logger,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}
}

// Start reads until ctx is cancelled. A message is committed once it is
// stored or rejected as invalid; on any other failure it is retried, so
// an outage of the event store never loses an event.
func (c *Consumer) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Infof("Kafka consumer started on topic %s", c.reader.Config().Topic)
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.Info("Kafka consumer stopped")
					return
				}
				c.logger.Errorf("Read message failed: %v", err)
				continue
			}

			fields := logging.Fields{"partition": msg.Partition, "offset": msg.Offset}
			if err := c.deliver(ctx, msg.Value, fields); err != nil {
				// Uncommitted; redelivered after restart or rebalance.
				c.logger.WithFields(fields).Info("Kafka consumer stopped, message left uncommitted")
				return
			}
			if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				c.logger.Errorf("Commit failed: %v", err)
			}
		}
	}()
}

// deliver processes one message until it is stored or permanently
// rejected. It returns an error only when ctx ends first.
func (c *Consumer) deliver(ctx context.Context, value []byte, fields logging.Fields) error {
	backoff := c.initialBackoff
	for {
		err := c.handleMessage(ctx, value)
		if err == nil {
			return nil
		}
		if errors.Is(err, models.ErrInvalidInput) {
			c.logger.WithFields(fields).Errorf("Skipping message: %v", err)
			return nil
		}

		c.logger.WithFields(fields).Warnf("Processing failed, retrying in %s: %v", backoff, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, value []byte) error {
	var in models.EventCreate
	if err := json.Unmarshal(value, &in); err != nil {
		return models.InvalidInputf("unmarshal message: %v", err)
	}
	ev, results, err := c.svc.CreateEvent(ctx, in)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	c.logger.WithFields(logging.Fields{"event_id": ev.ID, "notifications": len(results)}).Info("Processed Kafka message")
	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
