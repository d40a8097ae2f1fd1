package routing

import (
	"context"
	"net/http"

	"courier/internal/constants"
	"courier/internal/logger"
	apperrors "courier/pkg/errors"
	"courier/pkg/metrics"
	"courier/pkg/models"
)

type DiagnosticsRecorder interface {
	Record(ctx context.Context, eventType, carrierName, ref, detail string)
}

// Router decides where a validated message goes: to an alternate environment
// (WABA re-route), or onward through the local pipeline with its channel
// group resolved.
type Router struct {
	wabaRepo    WabaRepository
	channels    ChannelRepository
	forwarder   *Forwarder
	diagnostics DiagnosticsRecorder
	logger      logger.Logger
}

func NewRouter(wabaRepo WabaRepository, channels ChannelRepository, forwarder *Forwarder, diag DiagnosticsRecorder, log logger.Logger) *Router {
	return &Router{
		wabaRepo:    wabaRepo,
		channels:    channels,
		forwarder:   forwarder,
		diagnostics: diag,
		logger:      log,
	}
}

// Reroute forwards the raw payload when an enabled routing entry exists for
// the business account. It returns true when the payload was forwarded and
// local processing must stop. A failed forward is returned as an error so the
// carrier retries the whole delivery.
func (r *Router) Reroute(ctx context.Context, wabaID string, body []byte, header http.Header) (bool, error) {
	if wabaID == "" || r.wabaRepo == nil {
		return false, nil
	}

	route, err := r.wabaRepo.Get(ctx, wabaID)
	if apperrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		// Routing table unavailable: keep the message moving locally rather
		// than bouncing the delivery.
		r.logger.ErrorwCtx(ctx, "WABA routing lookup failed, processing locally",
			"waba_id", wabaID,
			"error", err,
		)
		return false, nil
	}
	if !route.Enabled {
		return false, nil
	}

	if err := r.forwarder.Forward(ctx, route.TargetURL, body, header); err != nil {
		return false, err
	}

	r.logger.InfowCtx(ctx, "Payload forwarded to alternate environment",
		"waba_id", wabaID,
		"target_url", route.TargetURL,
	)
	return true, nil
}

// ResolveGroup attaches the channel group for the message's receiving
// address. Unresolved channels are recorded for operator attention.
func (r *Router) ResolveGroup(ctx context.Context, msg *models.ServiceMessage, channelAddress string) error {
	ref, err := r.channels.ResolveChannel(ctx, msg.Tenant.OrgID, msg.Carrier, channelAddress)
	if err != nil {
		if apperrors.ToHTTPStatus(err) == http.StatusNotFound {
			metrics.RoutingUnresolvedTotal.WithLabelValues(msg.Carrier).Inc()
			if r.diagnostics != nil {
				r.diagnostics.Record(ctx, constants.EventRoutingUnresolved, msg.Carrier, msg.CorrelationID, channelAddress)
			}
		}
		return err
	}

	msg.DigitalChannel = &ref
	msg.AppendEvent("ChannelGroupResolved", ref.GroupID)
	return nil
}
