package workflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/config"
	"courier/internal/logger"
	"courier/pkg/models"
)

func TestHTTPEvaluatorSuccess(t *testing.T) {
	var gotPath string
	var gotMsg models.ServiceMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotMsg))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Response{
			CustomVariables: map[string]string{"identityId": "id-1"},
		})
	}))
	defer server.Close()

	eval := NewHTTPEvaluator(
		config.WorkflowConfig{EvaluatorURL: server.URL, Timeout: 2 * time.Second},
		config.CircuitBreakerConfig{},
		logger.NopLogger(),
	)

	resp, err := eval.Evaluate(context.Background(), models.StepIdentityLookup, models.ServiceMessage{CorrelationID: "c-1"})
	require.NoError(t, err)
	assert.Equal(t, "/steps/identityLookup", gotPath)
	assert.Equal(t, "c-1", gotMsg.CorrelationID)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "id-1", resp.CustomVariables["identityId"])
}

func TestHTTPEvaluatorPropagatesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	eval := NewHTTPEvaluator(
		config.WorkflowConfig{EvaluatorURL: server.URL},
		config.CircuitBreakerConfig{},
		logger.NopLogger(),
	)

	resp, err := eval.Evaluate(context.Background(), models.StepPreRouting, models.ServiceMessage{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTPEvaluatorTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	eval := NewHTTPEvaluator(
		config.WorkflowConfig{EvaluatorURL: server.URL, Timeout: 50 * time.Millisecond},
		config.CircuitBreakerConfig{},
		logger.NopLogger(),
	)

	_, err := eval.Evaluate(context.Background(), models.StepInboundWorkFlow, models.ServiceMessage{})
	assert.Error(t, err)
}

func TestHTTPEvaluatorBreakerOpensAfterFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(100 * time.Millisecond)
	}))
	defer server.Close()

	eval := NewHTTPEvaluator(
		config.WorkflowConfig{EvaluatorURL: server.URL, Timeout: 10 * time.Millisecond},
		config.CircuitBreakerConfig{Enabled: true, Timeout: time.Minute},
		logger.NopLogger(),
	)

	for i := 0; i < 5; i++ {
		_, _ = eval.Evaluate(context.Background(), models.StepIdentityLookup, models.ServiceMessage{})
	}
	assert.True(t, eval.breaker.IsOpen())
}
