package ingest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"courier/internal/carrier"
	"courier/internal/logger"
	"courier/internal/signature"
	apperrors "courier/pkg/errors"
	"courier/pkg/metrics"
)

// Rerouter checks the environment routing table before local processing.
type Rerouter interface {
	Reroute(ctx context.Context, wabaID string, body []byte, header http.Header) (bool, error)
}

// Handler terminates the carrier-facing webhook surface. Route paths select
// the carrier; payloads are never inspected to pick an adapter.
type Handler struct {
	validators *signature.Registry
	adapters   *carrier.Registry
	pipeline   *Pipeline
	rerouter   Rerouter
	logger     logger.Logger
}

func NewHandler(validators *signature.Registry, adapters *carrier.Registry, pipeline *Pipeline, rerouter Rerouter, log logger.Logger) *Handler {
	return &Handler{
		validators: validators,
		adapters:   adapters,
		pipeline:   pipeline,
		rerouter:   rerouter,
		logger:     log,
	}
}

var carrierNames = []string{
	carrier.WhatsApp,
	carrier.Messenger,
	carrier.SMSGW,
	carrier.Telegram,
	carrier.Webchat,
	carrier.RCS,
}

// Routes are registered per carrier so the static admin mapping path can
// coexist under /webhooks/whatsapp.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	for _, name := range carrierNames {
		name := name
		group := router.Group("/webhooks/" + name)
		group.GET("/receive", func(c *gin.Context) { h.verify(c, name) })
		group.POST("/receive", func(c *gin.Context) { h.receive(c, name) })
	}
}

// authSchemes labels authentication failures by mechanism rather than by
// secret-bearing detail.
var authSchemes = map[string]string{
	carrier.WhatsApp:  "hmac-sha256",
	carrier.Messenger: "hmac-sha256",
	carrier.SMSGW:     "hmac-sha1",
	carrier.Telegram:  "secret-token",
	carrier.Webchat:   "api-key",
	carrier.RCS:       "origin",
}

func (h *Handler) verify(c *gin.Context, name string) {
	validator, err := h.validators.Get(name)
	if err != nil {
		c.JSON(http.StatusNotFound, apperrors.ToErrorResponse(err))
		return
	}

	handshaker, ok := validator.(signature.Handshaker)
	if !ok {
		c.JSON(http.StatusForbidden, apperrors.ToErrorResponse(apperrors.ErrForbidden))
		return
	}

	challenge, err := handshaker.Handshake(c.Request)
	if err != nil {
		metrics.AuthenticationFailuresTotal.WithLabelValues(name, authSchemes[name]).Inc()
		c.JSON(http.StatusForbidden, apperrors.ToErrorResponse(apperrors.ErrForbidden))
		return
	}
	c.String(http.StatusOK, challenge)
}

func (h *Handler) receive(c *gin.Context, name string) {
	start := time.Now()
	outcome := h.handleReceive(c, name)
	metrics.WebhookRequestsTotal.WithLabelValues(name, outcome).Inc()
	metrics.ObserveWebhookDuration(name, outcome, time.Since(start))
}

func (h *Handler) handleReceive(c *gin.Context, name string) string {
	ctx := c.Request.Context()

	validator, err := h.validators.Get(name)
	if err != nil {
		c.JSON(http.StatusNotFound, apperrors.ToErrorResponse(err))
		return "unknown_carrier"
	}
	adapter, err := h.adapters.Get(name)
	if err != nil {
		c.JSON(http.StatusNotFound, apperrors.ToErrorResponse(err))
		return "unknown_carrier"
	}

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, apperrors.ToErrorResponse(apperrors.ErrMalformedPayload.WithCause(err)))
		return "read_error"
	}

	if err := validator.Validate(c.Request, body); err != nil {
		metrics.AuthenticationFailuresTotal.WithLabelValues(name, authSchemes[name]).Inc()
		h.logger.WarnwCtx(ctx, "Webhook rejected by signature validation",
			"carrier", name,
			"remote_addr", c.ClientIP(),
		)
		c.JSON(apperrors.ToHTTPStatus(err), apperrors.ToErrorResponse(err))
		return "unauthorized"
	}

	events, err := adapter.Parse(body, c.Request.Header)
	if err != nil {
		h.logger.WarnwCtx(ctx, "Webhook payload failed schema validation",
			"carrier", name,
			"error", err,
		)
		c.JSON(apperrors.ToHTTPStatus(err), apperrors.ToErrorResponse(err))
		return "malformed"
	}

	if wabaID := firstWabaID(events); wabaID != "" && h.rerouter != nil {
		forwarded, err := h.rerouter.Reroute(ctx, wabaID, body, c.Request.Header)
		if err != nil {
			c.JSON(http.StatusInternalServerError, apperrors.ToErrorResponse(err))
			return "forward_failed"
		}
		if forwarded {
			c.JSON(http.StatusOK, gin.H{"status": "forwarded"})
			return "forwarded"
		}
	}

	duplicates := 0
	for _, ev := range events {
		var procErr error
		switch {
		case ev.Inbound != nil:
			procErr = h.pipeline.ProcessInbound(ctx, ev.Inbound)
		case ev.Status != nil:
			procErr = h.pipeline.ProcessStatus(ctx, ev.Status)
		}
		if procErr == nil {
			continue
		}
		if apperrors.ToHTTPStatus(procErr) == http.StatusOK {
			// Redelivery of something already handled: the carrier must see
			// success or it will retry forever.
			duplicates++
			continue
		}
		h.logger.ErrorwCtx(ctx, "Webhook processing failed",
			"carrier", name,
			"error", procErr,
		)
		c.JSON(apperrors.ToHTTPStatus(procErr), apperrors.ToErrorResponse(procErr))
		return "error"
	}

	if duplicates == len(events) && len(events) > 0 {
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return "duplicate"
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
	return "accepted"
}

func firstWabaID(events []carrier.Event) string {
	for _, ev := range events {
		if ev.Inbound != nil && ev.Inbound.WabaID != "" {
			return ev.Inbound.WabaID
		}
	}
	return ""
}
