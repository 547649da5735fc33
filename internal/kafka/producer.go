package kafka

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

var ErrProducerClosed = errors.New("kafka: producer closed")

// Writer is the subset of *kafka.Writer the producer needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer buffers messages in memory and writes them from a single goroutine.
type Producer struct {
	w       Writer
	topic   string
	inbox   chan kafka.Message
	closeCh chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewProducer(brokers []string, topic string, buf int) *Producer {
	return NewProducerWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}, topic, buf)
}

func NewProducerWithWriter(w Writer, topic string, buf int) *Producer {
	if buf <= 0 {
		buf = 1
	}
	return &Producer{
		w:       w,
		topic:   topic,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

// Start runs the write loop until Close. Writes are bounded by a per-message timeout.
func (p *Producer) Start() {
	go func() {
		defer close(p.closeCh)
		for m := range p.inbox {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := p.w.WriteMessages(ctx, m); err != nil {
				log.Printf("kafka write topic=%s key=%s: %v", p.topic, m.Key, err)
			}
			cancel()
		}
		if err := p.w.Close(); err != nil {
			log.Printf("kafka writer close topic=%s: %v", p.topic, err)
		}
	}()
}

// Publish queues a message. It blocks while the buffer is full, until ctx is done.
func (p *Producer) Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}
	m := kafka.Message{Key: key, Value: value, Time: time.Now(), Headers: headers}
	select {
	case p.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting messages; the loop flushes what is queued, then closes the writer.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.inbox)
}

// WaitClosed blocks until the queue is flushed. Start must have been called.
func (p *Producer) WaitClosed() { <-p.closeCh }
