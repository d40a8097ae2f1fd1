package fragment

import (
	"context"
	"strings"
	"sync"
	"time"

	"courier/internal/carrier"
	"courier/internal/config"
	"courier/internal/constants"
	"courier/internal/logger"
	apperrors "courier/pkg/errors"
	"courier/pkg/metrics"
	"courier/pkg/tracing"
)

// DiagnosticsRecorder receives operator-facing events for fragment sets that
// never completed.
type DiagnosticsRecorder interface {
	Record(ctx context.Context, eventType, carrierName, ref, detail string)
}

// Service reassembles multi-segment carrier messages. Segments buffer in
// Redis until the set completes; sets that idle past the TTL are swept and
// reported as incomplete.
type Service struct {
	repo        Repository
	diagnostics DiagnosticsRecorder
	ttl         time.Duration
	sweepEvery  time.Duration
	logger      logger.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewService(repo Repository, diag DiagnosticsRecorder, cfg config.FragmentsConfig, log logger.Logger) *Service {
	ttlSeconds := cfg.TTLSeconds
	if ttlSeconds <= 0 {
		ttlSeconds = constants.DefaultFragmentTTLSeconds
	}
	sweepEvery := time.Duration(cfg.SweepIntervalSeconds) * time.Second
	if sweepEvery <= 0 {
		sweepEvery = constants.DefaultSweepInterval
	}
	return &Service{
		repo:        repo,
		diagnostics: diag,
		ttl:         time.Duration(ttlSeconds) * time.Second,
		sweepEvery:  sweepEvery,
		logger:      log,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Assemble buffers one segment. It returns (msg, true) with the reassembled
// text once every segment arrived, and (nil, false) while the set is still
// partial. Messages without fragment info pass through unchanged.
func (s *Service) Assemble(ctx context.Context, msg *carrier.InboundMessage) (*carrier.InboundMessage, bool, error) {
	if msg.Fragment == nil {
		return msg, true, nil
	}

	ctx, span := tracing.GetTracer("fragment-service").Start(ctx, "fragment.assemble")
	defer span.End()

	key := setKey(msg.Carrier, msg.MessageID)
	parts, err := s.repo.Upsert(ctx, key, msg.Fragment.Index, msg.Fragment.Count, msg.Text, s.ttl)
	if err != nil {
		metrics.FragmentsReceivedTotal.WithLabelValues(msg.Carrier, "error").Inc()
		return nil, false, err
	}
	if parts == nil {
		metrics.FragmentsReceivedTotal.WithLabelValues(msg.Carrier, "buffered").Inc()
		s.logger.DebugwCtx(ctx, "Buffered message segment",
			"carrier", msg.Carrier,
			"carrier_message_id", msg.MessageID,
			"segment", msg.Fragment.Index,
			"of", msg.Fragment.Count,
		)
		return nil, false, nil
	}

	metrics.FragmentsReceivedTotal.WithLabelValues(msg.Carrier, "completed").Inc()
	whole := *msg
	whole.Text = strings.Join(parts, "")
	whole.Fragment = nil
	return &whole, true, nil
}

// Discard removes the buffered set for a fragmented message after it was
// handed off. Assemble keeps complete sets stored until then, so a publish
// failure is recovered by the carrier redelivering the completing segment.
func (s *Service) Discard(ctx context.Context, msg *carrier.InboundMessage) error {
	if msg.Fragment == nil {
		return nil
	}
	return s.repo.Remove(ctx, setKey(msg.Carrier, msg.MessageID))
}

// Start launches the background sweeper. Stop shuts it down and waits.
func (s *Service) Start(ctx context.Context) {
	go s.sweepLoop(ctx)
}

func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		<-s.done
	})
}

func (s *Service) sweepLoop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	defer func() {
		_ = apperrors.RecoverPanicWithCallback(recover(), func(err error) {
			s.logger.ErrorwCtx(ctx, "Fragment sweep panicked", "error", err)
		})
	}()

	keys, err := s.repo.ExpiredSets(ctx, time.Now(), 100)
	if err != nil {
		s.logger.WarnwCtx(ctx, "Fragment sweep failed", "error", err)
		return
	}
	for _, key := range keys {
		carrierName, messageID := splitSetKey(key)
		metrics.FragmentSetsExpiredTotal.WithLabelValues(carrierName).Inc()
		s.logger.WarnwCtx(ctx, "Fragment set expired before completion",
			"carrier", carrierName,
			"carrier_message_id", messageID,
		)
		if s.diagnostics != nil {
			s.diagnostics.Record(ctx, constants.EventIncompleteMessage, carrierName, messageID,
				"fragment set expired before all segments arrived")
		}
	}
}

func setKey(carrierName, messageID string) string {
	return constants.CacheKeyPrefixFragment + carrierName + ":" + messageID
}

func splitSetKey(key string) (carrierName, messageID string) {
	rest := strings.TrimPrefix(key, constants.CacheKeyPrefixFragment)
	parts := strings.SplitN(rest, ":", 2)
	if len(parts) != 2 {
		return rest, ""
	}
	return parts[0], parts[1]
}
