package workflow

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"courier/internal/logger"
	"courier/pkg/errors"
	"courier/pkg/middleware"
)

// RuleStore persists pre-routing rules.
type RuleStore interface {
	GetActiveRules(ctx context.Context, orgID string) ([]Rule, error)
	Insert(ctx context.Context, rule Rule) (Rule, error)
}

// RulesHandler exposes the administrative pre-routing rule API. Expressions
// are validated at write time, so the engine never loads a rule it cannot
// compile. Internal-only: every route requires the admin bearer token.
type RulesHandler struct {
	store      RuleStore
	engine     *RuleEngine
	adminToken string
	logger     logger.Logger
}

func NewRulesHandler(store RuleStore, engine *RuleEngine, adminToken string, log logger.Logger) *RulesHandler {
	return &RulesHandler{store: store, engine: engine, adminToken: adminToken, logger: log}
}

func (h *RulesHandler) RegisterRoutes(router *gin.Engine, mw ...gin.HandlerFunc) {
	handlers := append(append([]gin.HandlerFunc{}, mw...), middleware.RequireBearer(h.adminToken))
	rules := router.Group("/workflow/prerouting-rules", handlers...)
	{
		rules.POST("", h.CreateRule)
		rules.GET("", h.ListRules)
	}
}

type CreateRuleRequest struct {
	Name       string            `json:"name" binding:"required"`
	Expression string            `json:"expression" binding:"required"`
	Variables  map[string]string `json:"variables"`
	Priority   int               `json:"priority"`
	Enabled    bool              `json:"enabled"`
}

// CreateRule godoc
// @Summary      Create a pre-routing rule
// @Description  Rejects expressions that do not compile to a boolean CEL predicate
// @Tags         prerouting-rules
// @Accept       json
// @Produce      json
// @Param        rule  body      CreateRuleRequest  true  "Rule data"
// @Success      201   {object}  Rule
// @Failure      400   {object}  map[string]interface{}
// @Failure      401   {object}  map[string]interface{}
// @Router       /workflow/prerouting-rules [post]
func (h *RulesHandler) CreateRule(c *gin.Context) {
	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	if err := h.engine.ValidateExpression(req.Expression); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(
			errors.ErrValidation.WithDetail("message", err.Error())))
		return
	}

	rule, err := h.store.Insert(c.Request.Context(), Rule{
		OrgID:      h.engine.orgID,
		Name:       req.Name,
		Expression: req.Expression,
		Variables:  req.Variables,
		Priority:   req.Priority,
		Enabled:    req.Enabled,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	// Activate without waiting for the next reload tick.
	if err := h.engine.Reload(c.Request.Context()); err != nil {
		h.logger.WarnwCtx(c.Request.Context(), "Rule reload after write failed", "error", err)
	}

	h.logger.InfowCtx(c.Request.Context(), "Prerouting rule created",
		"rule_id", rule.ID,
		"rule_name", rule.Name,
		"enabled", rule.Enabled,
	)
	c.JSON(http.StatusCreated, rule)
}

// ListRules godoc
// @Summary      List active pre-routing rules
// @Tags         prerouting-rules
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]interface{}
// @Router       /workflow/prerouting-rules [get]
func (h *RulesHandler) ListRules(c *gin.Context) {
	rules, err := h.store.GetActiveRules(c.Request.Context(), h.engine.orgID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

func (h *RulesHandler) handleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}
