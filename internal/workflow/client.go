package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"courier/internal/config"
	"courier/internal/constants"
	"courier/internal/logger"
	"courier/pkg/circuitbreaker"
	"courier/pkg/models"
)

// Evaluator asks the external policy service for a verdict on one step.
// Transport failures and timeouts surface as errors; the engine maps them to
// an internal-server-error verdict.
type Evaluator interface {
	Evaluate(ctx context.Context, step string, msg models.ServiceMessage) (Response, error)
}

type HTTPEvaluator struct {
	baseURL string
	client  *http.Client
	breaker *circuitbreaker.Wrapper
	logger  logger.Logger
}

func NewHTTPEvaluator(cfg config.WorkflowConfig, cbCfg config.CircuitBreakerConfig, log logger.Logger) *HTTPEvaluator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultEvaluatorTimeout
	}

	var breaker *circuitbreaker.Wrapper
	if cbCfg.Enabled {
		breaker = circuitbreaker.NewWrapper(circuitbreaker.FromConfig("policy-evaluator", cbCfg))
	}

	return &HTTPEvaluator{
		baseURL: cfg.EvaluatorURL,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
		logger:  log,
	}
}

func (e *HTTPEvaluator) Evaluate(ctx context.Context, step string, msg models.ServiceMessage) (Response, error) {
	if e.breaker == nil {
		return e.evaluate(ctx, step, msg)
	}

	result, err := e.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		return e.evaluate(ctx, step, msg)
	})
	if err != nil {
		return Response{}, err
	}
	return result.(Response), nil
}

func (e *HTTPEvaluator) evaluate(ctx context.Context, step string, msg models.ServiceMessage) (Response, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal message for evaluator: %w", err)
	}

	url := e.baseURL + "/steps/" + step
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to build evaluator request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.WarnwCtx(ctx, "Policy evaluator call failed",
			"step", step,
			"elapsed", time.Since(start),
			"error", err,
		)
		return Response{}, fmt.Errorf("evaluator call for step %s: %w", step, err)
	}
	defer resp.Body.Close()

	// The verdict's status code is the HTTP status itself; the body carries
	// the variables to merge.
	out := Response{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Response{}, fmt.Errorf("failed to read evaluator response: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return Response{}, fmt.Errorf("failed to decode evaluator response: %w", err)
		}
		out.StatusCode = resp.StatusCode
	}
	return out, nil
}
