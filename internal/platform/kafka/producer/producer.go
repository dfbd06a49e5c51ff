// Package producer publishes ledger events to Kafka through franz-go.
package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"covenant/internal/platform/config"
)

const (
	linger       = 5 * time.Millisecond
	flushTimeout = 30 * time.Second
)

// ErrClosed is returned by Produce and Healthy after Close.
var ErrClosed = errors.New("ledger event producer is closed")

// Message is one ledger event bound for a topic.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Producer publishes synchronously: Produce returns once the broker has
// acknowledged the record at the configured acks level.
type Producer struct {
	client *kgo.Client
	logger *slog.Logger
	closed atomic.Bool
}

func New(cfg config.Kafka, logger *slog.Logger) (*Producer, error) {
	seeds := SplitBrokers(cfg.Brokers)
	if len(seeds) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	if logger == nil {
		logger = slog.Default()
	}

	acks, idempotent := acksFor(cfg.Acks)
	opts := []kgo.Opt{
		kgo.SeedBrokers(seeds...),
		kgo.RequiredAcks(acks),
		kgo.RecordRetries(cfg.Retries),
		kgo.ProducerLinger(linger),
	}
	if !idempotent {
		opts = append(opts, kgo.DisableIdempotentWrite())
	}
	if cfg.DeliveryTimeout > 0 {
		opts = append(opts, kgo.RecordDeliveryTimeout(cfg.DeliveryTimeout))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("ledger event producer: %w", err)
	}
	return &Producer{client: client, logger: logger}, nil
}

// acksFor maps the configured level to franz-go acks. Only acks=all keeps
// idempotent writes, which franz-go requires.
func acksFor(level string) (kgo.Acks, bool) {
	switch level {
	case "0":
		return kgo.NoAck(), false
	case "1":
		return kgo.LeaderAck(), false
	default:
		return kgo.AllISRAcks(), true
	}
}

// SplitBrokers turns a comma separated broker list into seeds.
func SplitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func (p *Producer) Produce(ctx context.Context, msg *Message) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if err := p.client.ProduceSync(ctx, toRecord(msg)).FirstErr(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Topic, err)
	}
	return nil
}

func toRecord(msg *Message) *kgo.Record {
	rec := &kgo.Record{Topic: msg.Topic, Key: msg.Key, Value: msg.Value}
	for k, v := range msg.Headers {
		rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return rec
}

// Close flushes buffered events and shuts the client down. Later calls are
// no-ops.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Warn("ledger events left unflushed at shutdown", "error", err)
	}
	p.client.Close()
	return nil
}

// Healthy pings the brokers.
func (p *Producer) Healthy(ctx context.Context) error {
	if p.closed.Load() {
		return ErrClosed
	}
	return p.client.Ping(ctx)
}

// Client exposes the underlying client for topic administration.
func (p *Producer) Client() *kgo.Client {
	return p.client
}

// NoopProducer discards messages. With no brokers configured the outbox
// keeps its entries until a producer is wired in.
type NoopProducer struct{}

func (NoopProducer) Produce(context.Context, *Message) error { return nil }
