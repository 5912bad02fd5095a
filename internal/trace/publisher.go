package trace

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const publishTimeout = 5 * time.Second

// Publisher ships spans to a Kafka topic for external collectors. Publishing
// is best-effort: a broker outage degrades to a warning, never to a failed
// turn.
type Publisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewPublisher creates a publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
		logger: logger,
	}
}

// Publish writes one span keyed by its turn id, so all spans of a turn land
// on the same partition in order.
func (p *Publisher) Publish(ctx context.Context, sp Span) {
	data, err := json.Marshal(sp)
	if err != nil {
		p.logger.Warn("trace: marshal span failed", "span", sp.SpanID, "error", err)
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	msg := kafka.Message{
		Key:   []byte(sp.TurnID),
		Value: data,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(sp.Kind)},
		},
	}
	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		p.logger.Warn("trace: publish span failed", "span", sp.SpanID, "error", err)
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if err := p.writer.Close(); err != nil {
		p.logger.Warn("trace: close publisher failed", "error", err)
	}
}
