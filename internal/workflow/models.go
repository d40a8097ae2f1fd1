package workflow

import "time"

// Response is the policy evaluator's verdict for one step.
type Response struct {
	StatusCode       int               `json:"statusCode"`
	LogActivity      []string          `json:"logActivity,omitempty"`
	CustomVariables  map[string]string `json:"customVariables,omitempty"`
	SessionVariables map[string]string `json:"sessionVariables,omitempty"`
}

// Rule is an organization-level pre-routing rule applied when no evaluator
// policy is configured for the pre-routing step. Expressions are CEL
// predicates over the canonical message; matching rules merge their variables
// into the message context in priority order.
type Rule struct {
	ID         string            `json:"id"`
	OrgID      string            `json:"orgId"`
	Name       string            `json:"name"`
	Expression string            `json:"expression"`
	Variables  map[string]string `json:"variables,omitempty"`
	Priority   int               `json:"priority"`
	Enabled    bool              `json:"enabled"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}
