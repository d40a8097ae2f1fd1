package normalize

import (
	"time"

	"github.com/google/uuid"

	"courier/internal/carrier"
	"courier/pkg/models"
)

// Normalizer converts parsed carrier events into the canonical message shape.
// Every inbound message gets a fresh correlation id here; the idempotency
// claim upstream guarantees this runs at most once per carrier message id.
type Normalizer struct {
	defaultOrgID string
}

func New(defaultOrgID string) *Normalizer {
	return &Normalizer{defaultOrgID: defaultOrgID}
}

func (n *Normalizer) Normalize(in *carrier.InboundMessage) models.ServiceMessage {
	orgID := in.OrgID
	if orgID == "" {
		orgID = n.defaultOrgID
	}

	receivedAt := in.Timestamp
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	msg := models.ServiceMessage{
		CorrelationID:    uuid.NewString(),
		Carrier:          in.Carrier,
		CarrierMessageID: in.MessageID,
		Tenant:           models.Tenant{OrgID: orgID},
		Direction:        models.DirectionInbound,
		SQSGroupID:       GroupID(orgID, in.Carrier, in.From),
		MessagePayload:   payload(in),
		Identity: &models.IdentityRef{
			Address:     in.From,
			DisplayName: in.SenderName,
		},
		WorkFlowSteps: []models.WorkFlowStep{
			{Name: models.StepIdentityLookup, Status: models.StepRequired},
			{Name: models.StepPreRouting, Status: models.StepRequired},
			{Name: models.StepInboundWorkFlow, Status: models.StepRequired},
			{Name: models.StepOutboundWorkFlow, Status: models.StepSkipped},
		},
		ReceivedAt: receivedAt,
	}
	return msg
}

func (n *Normalizer) NormalizeStatus(in *carrier.StatusEvent) models.StatusEvent {
	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return models.StatusEvent{
		CarrierMessageID: in.MessageID,
		Carrier:          in.Carrier,
		Tenant:           models.Tenant{OrgID: n.defaultOrgID},
		Status:           in.Status,
		RawStatus:        in.RawStatus,
		SQSGroupID:       GroupID(n.defaultOrgID, in.Carrier, in.Recipient),
		Timestamp:        ts,
	}
}

// GroupID derives the per-conversation ordering key: one org, one carrier,
// one remote address map to one queue group.
func GroupID(orgID, carrierName, address string) string {
	return orgID + ":" + carrierName + ":" + address
}

func payload(in *carrier.InboundMessage) models.MessagePayload {
	p := models.MessagePayload{Attachments: in.Attachments}
	if in.Text != "" {
		p.TextMessage = &models.TextMessage{Text: in.Text}
	}
	return p
}
