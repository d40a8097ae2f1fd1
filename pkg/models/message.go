package models

import "time"

type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

type StepStatus string

const (
	StepRequired       StepStatus = "REQUIRED"
	StepExecutedOK     StepStatus = "EXECUTED_OK"
	StepExecutedFailed StepStatus = "EXECUTED_FAILED"
	StepSkipped        StepStatus = "SKIPPED"
)

const (
	StepIdentityLookup   = "identityLookup"
	StepPreRouting       = "preRoutingWorkFlow"
	StepInboundWorkFlow  = "inboundWorkFlow"
	StepOutboundWorkFlow = "outboundWorkFlow"
)

// ServiceMessage is the canonical carrier-independent unit flowing through the
// pipeline. It is assigned exactly one correlation id per logical carrier
// message; carrier redeliveries of the same message id never produce a second
// instance.
type ServiceMessage struct {
	CorrelationID    string         `json:"correlationId"`
	Carrier          string         `json:"carrier"`
	CarrierMessageID string         `json:"carrierMessageId"`
	Tenant           Tenant         `json:"tenant"`
	Direction        Direction      `json:"direction"`
	SQSGroupID       string         `json:"sqsGroupId"`
	MessagePayload   MessagePayload `json:"messagePayload"`
	DigitalChannel   *ChannelRef    `json:"digitalChannel,omitempty"`
	Identity         *IdentityRef   `json:"identity,omitempty"`
	WorkFlowSteps    []WorkFlowStep `json:"workFlowSteps"`

	// EmittedEvents and ConversationResolution are append-only audit trails
	// of routing decisions taken while the message moved through the stages.
	EmittedEvents          []EmittedEvent    `json:"emittedEvents,omitempty"`
	ConversationResolution []string          `json:"conversationResolution,omitempty"`
	ConversationOnHold     bool              `json:"conversationOnHold"`
	CustomVariables        map[string]string `json:"customVariables,omitempty"`
	SessionVariables       map[string]string `json:"sessionVariables,omitempty"`
	ReceivedAt             time.Time         `json:"receivedAt"`
}

type Tenant struct {
	OrgID  string `json:"orgId"`
	UserID string `json:"userId,omitempty"`
}

type MessagePayload struct {
	TextMessage *TextMessage `json:"textMessage,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type TextMessage struct {
	Text string `json:"text"`
}

type Attachment struct {
	Type     string `json:"type"`
	URL      string `json:"url,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// ChannelRef points at an administratively created digital channel. The
// pipeline only ever reads channels, it never creates them.
type ChannelRef struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	GroupID string `json:"groupId,omitempty"`
}

type IdentityRef struct {
	ID          string `json:"id"`
	Address     string `json:"address"`
	DisplayName string `json:"displayName,omitempty"`
}

type WorkFlowStep struct {
	Name       string     `json:"name"`
	Status     StepStatus `json:"status"`
	StatusCode int        `json:"statusCode,omitempty"`
	Detail     string     `json:"detail,omitempty"`
	ExecutedAt *time.Time `json:"executedAt,omitempty"`
}

type EmittedEvent struct {
	Type      string    `json:"type"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusEvent is emitted for delivery-status callbacks on previously sent
// outbound messages. It carries no new message payload; it is keyed by the
// carrier's id for the original message.
type StatusEvent struct {
	CarrierMessageID string    `json:"carrierMessageId"`
	Carrier          string    `json:"carrier"`
	Tenant           Tenant    `json:"tenant"`
	Status           string    `json:"status"`
	RawStatus        string    `json:"rawStatus,omitempty"`
	SQSGroupID       string    `json:"sqsGroupId"`
	Timestamp        time.Time `json:"timestamp"`
}

// Normalized delivery-status values across carriers.
const (
	StatusQueued    = "queued"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

func (m *ServiceMessage) Step(name string) *WorkFlowStep {
	for i := range m.WorkFlowSteps {
		if m.WorkFlowSteps[i].Name == name {
			return &m.WorkFlowSteps[i]
		}
	}
	return nil
}

func (m *ServiceMessage) AppendEvent(eventType, detail string) {
	m.EmittedEvents = append(m.EmittedEvents, EmittedEvent{
		Type:      eventType,
		Detail:    detail,
		Timestamp: time.Now(),
	})
}

func (m *ServiceMessage) MergeVariables(custom, session map[string]string) {
	if len(custom) > 0 && m.CustomVariables == nil {
		m.CustomVariables = make(map[string]string, len(custom))
	}
	for k, v := range custom {
		m.CustomVariables[k] = v
	}
	if len(session) > 0 && m.SessionVariables == nil {
		m.SessionVariables = make(map[string]string, len(session))
	}
	for k, v := range session {
		m.SessionVariables[k] = v
	}
}
