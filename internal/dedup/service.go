package dedup

import (
	"context"
	"fmt"
	"time"

	"courier/internal/config"
	"courier/internal/constants"
	"courier/internal/logger"
	"courier/pkg/metrics"
	"courier/pkg/tracing"
)

// Service claims carrier delivery ids so redelivered webhooks are answered
// without producing a second canonical message. A claim is provisional until
// the message reaches the publish stage: callers release it when processing
// fails before that point, so the carrier's retry gets a fresh attempt.
type Service struct {
	repo   Repository
	ttl    time.Duration
	logger logger.Logger
}

func NewService(repo Repository, cfg config.DeduplicationConfig, log logger.Logger) *Service {
	ttlSeconds := cfg.TTLSeconds
	if ttlSeconds <= 0 {
		ttlSeconds = constants.DefaultDedupTTLSeconds
	}
	return &Service{
		repo:   repo,
		ttl:    time.Duration(ttlSeconds) * time.Second,
		logger: log,
	}
}

// Claim returns false when the carrier message id was already claimed within
// the TTL window.
func (s *Service) Claim(ctx context.Context, carrierName, messageID string) (bool, error) {
	ctx, span := tracing.GetTracer("dedup-service").Start(ctx, "dedup.claim")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return false, err
	}

	key := deliveryKey(carrierName, messageID)
	claimed, err := s.repo.SetNX(ctx, key, time.Now().Unix(), s.ttl)
	if err != nil {
		return false, fmt.Errorf("dedup claim for %s: %w", key, err)
	}
	if !claimed {
		metrics.DuplicateDeliveriesTotal.WithLabelValues(carrierName).Inc()
		s.logger.InfowCtx(ctx, "Suppressing duplicate delivery",
			"carrier", carrierName,
			"carrier_message_id", messageID,
		)
	}
	return claimed, nil
}

// Release drops a claim taken by Claim. It is called when processing fails
// before the message was staged for publish.
func (s *Service) Release(ctx context.Context, carrierName, messageID string) {
	key := deliveryKey(carrierName, messageID)
	if err := s.repo.Delete(ctx, key); err != nil {
		// The claim expires with its TTL anyway; the carrier's next retry
		// after that window will be reprocessed.
		s.logger.WarnwCtx(ctx, "Failed to release delivery claim",
			"key", key,
			"error", err,
		)
	}
}

func deliveryKey(carrierName, messageID string) string {
	return constants.CacheKeyPrefixDelivery + carrierName + ":" + messageID
}
