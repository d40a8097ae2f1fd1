package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	celgo "github.com/google/cel-go/cel"

	"courier/internal/config"
	"courier/internal/logger"
	"courier/pkg/cel"
	"courier/pkg/metrics"
	"courier/pkg/models"
)

type RuleRepository interface {
	GetActiveRules(ctx context.Context, orgID string) ([]Rule, error)
}

type PostgresRuleRepository struct {
	db *sql.DB
}

func NewRuleRepository(db *sql.DB) *PostgresRuleRepository {
	return &PostgresRuleRepository{db: db}
}

func (r *PostgresRuleRepository) GetActiveRules(ctx context.Context, orgID string) ([]Rule, error) {
	query := `
		SELECT id, org_id, name, expression, variables, priority, enabled, created_at, updated_at
		FROM prerouting_rules
		WHERE enabled = true AND org_id = $1
		ORDER BY priority DESC, created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query prerouting rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var rule Rule
		var variables []byte
		if err := rows.Scan(
			&rule.ID,
			&rule.OrgID,
			&rule.Name,
			&rule.Expression,
			&variables,
			&rule.Priority,
			&rule.Enabled,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan prerouting rule: %w", err)
		}
		if len(variables) > 0 {
			if err := json.Unmarshal(variables, &rule.Variables); err != nil {
				return nil, fmt.Errorf("failed to decode variables for rule %s: %w", rule.ID, err)
			}
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return rules, nil
}

func (r *PostgresRuleRepository) Insert(ctx context.Context, rule Rule) (Rule, error) {
	if rule.Variables == nil {
		rule.Variables = map[string]string{}
	}
	variables, err := json.Marshal(rule.Variables)
	if err != nil {
		return Rule{}, fmt.Errorf("failed to encode rule variables: %w", err)
	}

	query := `
		INSERT INTO prerouting_rules (org_id, name, expression, variables, priority, enabled)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowContext(ctx, query,
		rule.OrgID,
		rule.Name,
		rule.Expression,
		variables,
		rule.Priority,
		rule.Enabled,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
		return Rule{}, fmt.Errorf("failed to insert prerouting rule: %w", err)
	}
	return rule, nil
}

type compiledRule struct {
	rule    Rule
	program celgo.Program
}

// RuleEngine keeps the active pre-routing rules compiled in memory and
// refreshes them on an interval. Rules that fail to compile are skipped with
// a log line rather than poisoning the whole reload.
type RuleEngine struct {
	repo      RuleRepository
	evaluator *cel.Evaluator
	orgID     string
	interval  time.Duration
	logger    logger.Logger

	rulesMu sync.RWMutex
	rules   []compiledRule
}

func NewRuleEngine(repo RuleRepository, orgID string, cfg config.PreRoutingConfig, log logger.Logger) (*RuleEngine, error) {
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return nil, err
	}

	interval := time.Duration(cfg.ReloadIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}

	return &RuleEngine{
		repo:      repo,
		evaluator: evaluator,
		orgID:     orgID,
		interval:  interval,
		logger:    log,
	}, nil
}

// ValidateExpression checks a rule expression without loading it into the
// active set.
func (e *RuleEngine) ValidateExpression(expression string) error {
	return e.evaluator.ValidateRuleExpression(expression)
}

func (e *RuleEngine) Reload(ctx context.Context) error {
	rules, err := e.repo.GetActiveRules(ctx, e.orgID)
	if err != nil {
		return fmt.Errorf("failed to load prerouting rules: %w", err)
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		program, err := e.evaluator.Compile(rule.Expression)
		if err != nil {
			e.logger.ErrorwCtx(ctx, "Skipping prerouting rule with invalid expression",
				"rule_id", rule.ID,
				"rule_name", rule.Name,
				"error", err,
			)
			continue
		}
		compiled = append(compiled, compiledRule{rule: rule, program: program})
	}

	e.rulesMu.Lock()
	e.rules = compiled
	e.rulesMu.Unlock()

	metrics.PreRoutingRulesActive.Set(float64(len(compiled)))
	e.logger.InfowCtx(ctx, "Prerouting rules reloaded",
		"active", len(compiled),
		"skipped", len(rules)-len(compiled),
	)
	return nil
}

// StartReloader blocks until ctx is done, reloading on the configured
// interval. The first reload happens immediately.
func (e *RuleEngine) StartReloader(ctx context.Context) error {
	if err := e.Reload(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.Reload(ctx); err != nil {
				e.logger.ErrorwCtx(ctx, "Prerouting rule reload failed", "error", err)
			}
		}
	}
}

// Apply evaluates the active rules against the message and returns the merged
// variables of every matching rule, higher priority first. Evaluation errors
// on individual rules are logged and skipped.
func (e *RuleEngine) Apply(ctx context.Context, msg models.ServiceMessage) map[string]string {
	e.rulesMu.RLock()
	rules := e.rules
	e.rulesMu.RUnlock()

	var merged map[string]string
	for _, cr := range rules {
		match, err := e.evaluator.EvaluateMessage(ctx, cr.program, msg)
		if err != nil {
			e.logger.WarnwCtx(ctx, "Prerouting rule evaluation failed",
				"rule_id", cr.rule.ID,
				"error", err,
			)
			continue
		}
		if !match {
			continue
		}
		if merged == nil {
			merged = make(map[string]string)
		}
		for k, v := range cr.rule.Variables {
			if _, set := merged[k]; !set {
				merged[k] = v
			}
		}
	}
	return merged
}
