package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, topic string, groupID string) *Consumer {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: false, // Force IPv4
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,    // Process immediately
		MaxBytes: 10e6, // 10MB
		MaxWait:  1 * time.Second,
		Dialer:   dialer,
	})
	return &Consumer{reader: r}
}

func (c *Consumer) FetchMessage(ctx context.Context) (kafka.Message, error) {
	return c.reader.FetchMessage(ctx)
}

func (c *Consumer) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	return c.reader.CommitMessages(ctx, msgs...)
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Dispatcher routes one raw envelope and reports whether the message should
// be committed to the broker.
type Dispatcher interface {
	Dispatch(ctx context.Context, raw []byte) (ack bool, err error)
}

// ConsumerPool runs N competing workers in one consumer group, each with its
// own reader. Workers share no in-process mutable state; coordination happens
// through the idempotency store and the broker's own delivery semantics.
type ConsumerPool struct {
	brokers    []string
	topic      string
	groupID    string
	workers    int
	dispatcher Dispatcher
}

func NewConsumerPool(brokers []string, topic, groupID string, workers int, d Dispatcher) *ConsumerPool {
	if workers < 1 {
		workers = 1
	}
	return &ConsumerPool{
		brokers:    brokers,
		topic:      topic,
		groupID:    groupID,
		workers:    workers,
		dispatcher: d,
	}
}

// Run blocks until ctx is cancelled and all workers have drained.
func (p *ConsumerPool) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.runWorker(ctx, worker)
		}(i)
	}

	wg.Wait()
}

func (p *ConsumerPool) runWorker(ctx context.Context, worker int) {
	consumer := NewConsumer(p.brokers, p.topic, p.groupID)
	defer consumer.Close()

	slog.Info("consumer worker started", "topic", p.topic, "group_id", p.groupID, "worker", worker)

	for {
		msg, err := consumer.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			slog.Error("failed to fetch message", "topic", p.topic, "error", err)
			time.Sleep(1 * time.Second)
			continue
		}

		// Retry Loop: a message is only redispatched while no claim was
		// committed (idempotency store unreachable), so retrying the whole
		// decision is safe.
		for attempt := 0; ; attempt++ {
			ack, err := p.dispatcher.Dispatch(ctx, msg.Value)
			if err != nil {
				slog.Error("message processing failed", "topic", p.topic, "worker", worker, "error", err)
			}

			if ack {
				if err := consumer.CommitMessages(ctx, msg); err != nil {
					slog.Error("failed to commit kafka message", "topic", p.topic, "error", err)
				}
				break
			}

			backoff := 30 * time.Second
			if attempt < 5 {
				backoff = time.Duration(1<<uint(attempt)) * time.Second
			}
			slog.Warn("redispatching message", "topic", p.topic, "attempt", attempt+1, "backoff", backoff)

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
		}
	}
}
