package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// Message header names set by Publish.
const (
	HeaderKind          = "kind"
	HeaderSource        = "source"
	HeaderCorrelationID = "correlation_id"
)

var (
	publishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_events_published_total",
			Help: "Storefront events handed to Kafka, by topic and outcome.",
		},
		[]string{"topic", "outcome"},
	)
	publishSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_event_publish_seconds",
			Help:    "Time spent writing one storefront event to Kafka.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"topic"},
	)
)

// Writer is the part of *kafka.Writer the producer needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes envelopes to Kafka.
type Producer struct {
	w       Writer
	brokers []string
	logger  *slog.Logger
}

// NewProducer dials brokers lazily through a kafka-go writer. Cart events
// are small and latency matters more than throughput, so batches flush
// after 10ms.
func NewProducer(brokers []string, logger *slog.Logger) *Producer {
	return NewProducerWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		BatchSize:    50,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}, brokers, logger)
}

// NewProducerWithWriter builds a producer over w.
func NewProducerWithWriter(w Writer, brokers []string, logger *slog.Logger) *Producer {
	return &Producer{w: w, brokers: brokers, logger: logger}
}

// Publish writes env to topic keyed by env.Key. The trace context in ctx is
// copied into the headers.
func (p *Producer) Publish(ctx context.Context, topic string, env *Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	headers := []kafka.Header{
		{Key: HeaderKind, Value: []byte(env.Kind)},
		{Key: HeaderSource, Value: []byte(env.Source)},
	}
	if env.CorrelationID != "" {
		headers = append(headers, kafka.Header{Key: HeaderCorrelationID, Value: []byte(env.CorrelationID)})
	}
	otel.GetTextMapPropagator().Inject(ctx, NewHeaderCarrier(&headers))

	start := time.Now()
	err = p.w.WriteMessages(ctx, kafka.Message{Topic: topic, Key: []byte(env.Key), Value: value, Headers: headers})
	publishSeconds.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	if err != nil {
		publishedTotal.WithLabelValues(topic, "error").Inc()
		p.logger.WarnContext(ctx, "kafka write failed",
			slog.String("topic", topic),
			slog.String("kind", env.Kind),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("write to %s: %w", topic, err)
	}
	publishedTotal.WithLabelValues(topic, "ok").Inc()
	p.logger.DebugContext(ctx, "event published", slog.String("topic", topic), slog.String("key", env.Key))
	return nil
}

// Ping checks that at least one broker answers.
func (p *Producer) Ping(ctx context.Context) error {
	return PingBrokers(ctx, p.brokers)
}

// PingBrokers returns nil as soon as one broker answers a metadata request.
func PingBrokers(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("kafka: no brokers configured")
	}
	var lastErr error
	for _, addr := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		_, lastErr = conn.Brokers()
		_ = conn.Close()
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("kafka: no broker reachable: %w", lastErr)
}

// Close flushes buffered messages.
func (p *Producer) Close() error {
	return p.w.Close()
}
