package routing

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"courier/internal/config"
	"courier/internal/constants"
	"courier/internal/logger"
	"courier/pkg/metrics"
	"courier/pkg/retry"
)

// Forwarder ships the original validated carrier payload to an alternate
// environment. The body is forwarded byte for byte so the receiving
// environment can re-validate the carrier signature itself.
type Forwarder struct {
	client *http.Client
	policy retry.Policy
	logger logger.Logger
}

func NewForwarder(cfg config.RoutingConfig, log logger.Logger) *Forwarder {
	timeout := cfg.ForwardTimeout
	if timeout <= 0 {
		timeout = constants.DefaultForwardTimeout
	}

	return &Forwarder{
		client: &http.Client{Timeout: timeout},
		policy: retry.PolicyFromConfig(cfg.Retry),
		logger: log,
	}
}

func (f *Forwarder) Forward(ctx context.Context, targetURL string, body []byte, header http.Header) error {
	err := retry.RetryWithCallback(ctx, f.policy, func() error {
		return f.forwardOnce(ctx, targetURL, body, header)
	}, func(attempt int, err error, nextDelay time.Duration) {
		f.logger.WarnwCtx(ctx, "Retrying payload forward",
			"attempt", attempt,
			"next_delay", nextDelay,
			"error", err,
		)
	})

	if err != nil {
		metrics.WabaForwardsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to forward payload: %w", err)
	}
	metrics.WabaForwardsTotal.WithLabelValues("ok").Inc()
	return nil
}

func (f *Forwarder) forwardOnce(ctx context.Context, targetURL string, body []byte, header http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return retry.NewFatalError(err)
	}
	if ct := header.Get("Content-Type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	if sig := header.Get("X-Hub-Signature-256"); sig != "" {
		req.Header.Set("X-Hub-Signature-256", sig)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("target answered %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return retry.NewFatalError(fmt.Errorf("target rejected forward with %d", resp.StatusCode))
	}
	return nil
}
