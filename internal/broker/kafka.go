package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"courier/internal/config"
	"courier/internal/constants"
	"courier/internal/logger"
	"courier/pkg/metrics"
	"courier/pkg/models"
	"courier/pkg/retry"
	"courier/pkg/tracing"
)

// KafkaProducer publishes keyed messages. The hash balancer pins every key to
// one partition, which is what gives messages sharing an sqsGroupId their
// per-group ordering guarantee.
type KafkaProducer struct {
	writer *kafka.Writer
	policy retry.Policy
	logger logger.Logger
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		Async:        false,
	}

	return &KafkaProducer{writer: w, policy: retry.PolicyFromConfig(cfg.Retry), logger: log}
}

func (p *KafkaProducer) Publish(ctx context.Context, topic string, msg models.ServiceMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal service message: %w", err)
	}
	return p.write(ctx, topic, msg.SQSGroupID, body)
}

func (p *KafkaProducer) PublishStatus(ctx context.Context, topic string, ev models.StatusEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}
	return p.write(ctx, topic, ev.SQSGroupID, body)
}

func (p *KafkaProducer) write(ctx context.Context, topic, key string, body []byte) error {
	headers := []kafka.Header{}
	headers = tracing.InjectTraceContext(ctx, headers)

	start := time.Now()
	err := retry.RetryWithCallback(ctx, p.policy, func() error {
		return p.writer.WriteMessages(ctx, kafka.Message{
			Topic:   topic,
			Key:     []byte(key),
			Value:   body,
			Headers: headers,
			Time:    time.Now(),
		})
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.PublishRetryAttemptsTotal.WithLabelValues(topic).Inc()
		p.logger.WarnwCtx(ctx, "Retrying queue publish",
			"attempt", attempt,
			"max_attempts", p.policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
			"topic", topic,
		)
	})
	metrics.ObserveQueuePublishDuration(topic, time.Since(start))

	if err != nil {
		metrics.QueuePublishesTotal.WithLabelValues(topic, "failed").Inc()
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.QueuePublishesTotal.WithLabelValues(topic, "ok").Inc()
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
