package routing

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"courier/internal/logger"
	"courier/pkg/errors"
	"courier/pkg/middleware"
)

// Handler exposes the administrative WABA mapping API. It is internal-only:
// every route requires the admin bearer token.
type Handler struct {
	repo       WabaRepository
	adminToken string
	logger     logger.Logger
}

func NewHandler(repo WabaRepository, adminToken string, log logger.Logger) *Handler {
	return &Handler{repo: repo, adminToken: adminToken, logger: log}
}

func (h *Handler) RegisterRoutes(router *gin.Engine, mw ...gin.HandlerFunc) {
	handlers := append(append([]gin.HandlerFunc{}, mw...), middleware.RequireBearer(h.adminToken))
	mapping := router.Group("/webhooks/whatsapp/mapping", handlers...)
	{
		mapping.POST("", h.UpsertMapping)
		mapping.GET("/:wabaId", h.GetMapping)
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

type UpsertMappingRequest struct {
	WabaID    string `json:"wabaId" binding:"required"`
	TargetURL string `json:"targetUrl" binding:"required"`
	Enabled   bool   `json:"enabled"`
}

// UpsertMapping godoc
// @Summary      Create or update a WABA routing entry
// @Description  Points all traffic for a business account at an alternate environment
// @Tags         waba-mapping
// @Accept       json
// @Produce      json
// @Param        mapping  body      UpsertMappingRequest  true  "Mapping data"
// @Success      200      {object}  WabaRoute
// @Failure      400      {object}  map[string]interface{}
// @Failure      401      {object}  map[string]interface{}
// @Router       /webhooks/whatsapp/mapping [post]
func (h *Handler) UpsertMapping(c *gin.Context) {
	var req UpsertMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	parsed, err := url.Parse(req.TargetURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(
			errors.ErrValidation.WithDetail("message", "targetUrl must be an absolute http(s) url")))
		return
	}

	route, err := h.repo.Upsert(c.Request.Context(), WabaRoute{
		WabaID:    req.WabaID,
		TargetURL: req.TargetURL,
		Enabled:   req.Enabled,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.logger.InfowCtx(c.Request.Context(), "WABA mapping updated",
		"waba_id", route.WabaID,
		"enabled", route.Enabled,
	)
	c.JSON(http.StatusOK, route)
}

// GetMapping godoc
// @Summary      Fetch a WABA routing entry
// @Tags         waba-mapping
// @Produce      json
// @Param        wabaId  path      string  true  "Business account id"
// @Success      200     {object}  WabaRoute
// @Failure      404     {object}  map[string]interface{}
// @Router       /webhooks/whatsapp/mapping/{wabaId} [get]
func (h *Handler) GetMapping(c *gin.Context) {
	route, err := h.repo.Get(c.Request.Context(), c.Param("wabaId"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, route)
}
