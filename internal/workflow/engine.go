package workflow

import (
	"context"
	"net/http"
	"time"

	"courier/internal/constants"
	"courier/internal/logger"
	"courier/pkg/metrics"
	"courier/pkg/models"
	"courier/pkg/tracing"
)

// DiagnosticsRecorder receives operator-facing events for failed steps.
type DiagnosticsRecorder interface {
	Record(ctx context.Context, eventType, carrierName, ref, detail string)
}

// Engine drives the step sequence for one message. Steps run strictly in
// order; a step only runs when its predecessor ended EXECUTED_OK or SKIPPED.
// A failed step halts the remaining steps and puts the conversation on hold,
// but the message is still published so nothing the customer sent is lost.
type Engine struct {
	evaluator   Evaluator
	rules       *RuleEngine
	diagnostics DiagnosticsRecorder
	logger      logger.Logger
}

func NewEngine(evaluator Evaluator, rules *RuleEngine, diag DiagnosticsRecorder, log logger.Logger) *Engine {
	return &Engine{
		evaluator:   evaluator,
		rules:       rules,
		diagnostics: diag,
		logger:      log,
	}
}

// Run executes every REQUIRED step in declaration order, mutating the
// message's step statuses and variable context in place.
func (e *Engine) Run(ctx context.Context, msg *models.ServiceMessage) {
	ctx, span := tracing.GetTracer("workflow-engine").Start(ctx, "workflow.run")
	defer span.End()

	for i := range msg.WorkFlowSteps {
		step := &msg.WorkFlowSteps[i]
		if step.Status != models.StepRequired {
			continue
		}
		if !e.executeStep(ctx, msg, step) {
			e.haltRemaining(msg, i+1)
			return
		}
	}
}

// executeStep returns false when the pipeline must halt.
func (e *Engine) executeStep(ctx context.Context, msg *models.ServiceMessage, step *models.WorkFlowStep) bool {
	start := time.Now()
	resp, err := e.evaluator.Evaluate(ctx, step.Name, *msg)
	if err != nil {
		// Transport failure, timeout, or open breaker: same outcome as an
		// evaluator 500.
		resp = Response{StatusCode: http.StatusInternalServerError}
		e.logger.ErrorwCtx(ctx, "Policy evaluator unreachable",
			"step", step.Name,
			"correlation_id", msg.CorrelationID,
			"error", err,
		)
	}
	metrics.ObserveWorkflowStepDuration(step.Name, time.Since(start))

	now := time.Now()
	step.ExecutedAt = &now
	step.StatusCode = resp.StatusCode

	switch {
	case resp.StatusCode == http.StatusOK:
		step.Status = models.StepExecutedOK
		msg.MergeVariables(resp.CustomVariables, resp.SessionVariables)
		for _, entry := range resp.LogActivity {
			msg.ConversationResolution = append(msg.ConversationResolution, entry)
		}
		metrics.WorkflowStepsTotal.WithLabelValues(step.Name, "ok").Inc()
		return true

	case resp.StatusCode == http.StatusNotFound:
		// No policy configured for this step: continue with defaults.
		step.Status = models.StepExecutedOK
		step.Detail = "no policy configured, defaults applied"
		if step.Name == models.StepPreRouting && e.rules != nil {
			if vars := e.rules.Apply(ctx, *msg); vars != nil {
				msg.MergeVariables(vars, nil)
				step.Detail = "no policy configured, prerouting rules applied"
			}
		}
		metrics.WorkflowStepsTotal.WithLabelValues(step.Name, "default").Inc()
		e.logger.InfowCtx(ctx, "No policy configured for step, continuing with defaults",
			"step", step.Name,
			"correlation_id", msg.CorrelationID,
		)
		return true

	default:
		step.Status = models.StepExecutedFailed
		msg.ConversationOnHold = true
		msg.AppendEvent(constants.EventWorkflowStepFailed, step.Name)
		metrics.WorkflowStepsTotal.WithLabelValues(step.Name, "failed").Inc()
		e.logger.ErrorwCtx(ctx, "Workflow step failed, conversation on hold",
			"step", step.Name,
			"status_code", resp.StatusCode,
			"correlation_id", msg.CorrelationID,
		)
		if e.diagnostics != nil {
			e.diagnostics.Record(ctx, constants.EventWorkflowStepFailed, msg.Carrier, msg.CorrelationID, step.Name)
		}
		return false
	}
}

func (e *Engine) haltRemaining(msg *models.ServiceMessage, from int) {
	for i := from; i < len(msg.WorkFlowSteps); i++ {
		if msg.WorkFlowSteps[i].Status == models.StepRequired {
			msg.WorkFlowSteps[i].Status = models.StepSkipped
			msg.WorkFlowSteps[i].Detail = "predecessor failed"
		}
	}
}
