package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"courier/pkg/models"
)

// Evaluator compiles and runs rule expressions against canonical messages.
// Expressions see the message through a fixed set of variables; they cannot
// mutate the message.
type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("carrier", cel.StringType),
		cel.Variable("orgId", cel.StringType),
		cel.Variable("direction", cel.StringType),
		cel.Variable("text", cel.StringType),
		cel.Variable("senderAddress", cel.StringType),
		cel.Variable("attachmentCount", cel.IntType),
		cel.Variable("custom", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

// ValidateRuleExpression checks syntax and that the expression yields bool.
// Called when rules are written, so bad expressions never reach the pipeline.
func (e *Evaluator) ValidateRuleExpression(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("rule expression must return bool, got %v", ast.OutputType())
	}
	return nil
}

// Compile prepares an expression for repeated evaluation.
func (e *Evaluator) Compile(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule expression must return bool, got %v", ast.OutputType())
	}
	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}
	return program, nil
}

// EvaluateMessage runs a compiled rule against one message.
func (e *Evaluator) EvaluateMessage(ctx context.Context, program cel.Program, msg models.ServiceMessage) (bool, error) {
	result, _, err := program.ContextEval(ctx, messageVars(msg))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}
	return boolVal, nil
}

func messageVars(msg models.ServiceMessage) map[string]interface{} {
	text := ""
	if msg.MessagePayload.TextMessage != nil {
		text = msg.MessagePayload.TextMessage.Text
	}
	sender := ""
	if msg.Identity != nil {
		sender = msg.Identity.Address
	}
	custom := msg.CustomVariables
	if custom == nil {
		custom = map[string]string{}
	}
	return map[string]interface{}{
		"carrier":         msg.Carrier,
		"orgId":           msg.Tenant.OrgID,
		"direction":       string(msg.Direction),
		"text":            text,
		"senderAddress":   sender,
		"attachmentCount": len(msg.MessagePayload.Attachments),
		"custom":          custom,
	}
}
