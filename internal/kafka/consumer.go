package kafka

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler returns nil only when the message was processed and its offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

// Reader is the subset of *kafka.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       Reader
	workers int
	// Backoff is the first retry delay after a failed message; it doubles up to MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int) *Consumer {
	return NewConsumerWithReader(kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	}), workers)
}

func NewConsumerWithReader(r Reader, workers int) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, Backoff: 200 * time.Millisecond, MaxBackoff: 5 * time.Second}
}

// Start dispatches messages to the worker pool until ctx is done or the reader fails.
// A partition always maps to the same worker, so its messages are handled and committed in offset order.
// A failed message is retried in place and nothing after it on that partition is committed.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	queues := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan kafka.Message, 4)
		wg.Add(1)
		go func(id int, jobs <-chan kafka.Message) {
			defer wg.Done()
			for m := range jobs {
				if ctx.Err() != nil {
					continue
				}
				c.process(ctx, id, h, m)
			}
		}(i, queues[i])
	}

	err := c.dispatch(ctx, queues)
	for _, q := range queues {
		close(q)
	}
	wg.Wait()
	return err
}

func (c *Consumer) process(ctx context.Context, id int, h Handler, m kafka.Message) {
	delay := c.Backoff
	for {
		err := h(ctx, m)
		if err == nil {
			if err := c.r.CommitMessages(ctx, m); err != nil {
				log.Printf("worker %d: commit partition=%d offset=%d: %v", id, m.Partition, m.Offset, err)
			}
			return
		}
		log.Printf("worker %d: topic=%s partition=%d offset=%d: %v", id, m.Topic, m.Partition, m.Offset, err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if c.MaxBackoff > 0 && delay > c.MaxBackoff {
			delay = c.MaxBackoff
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, queues []chan kafka.Message) error {
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		select {
		case queues[m.Partition%len(queues)] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}
