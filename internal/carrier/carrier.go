package carrier

import (
	"net/http"
	"time"

	"courier/pkg/errors"
	"courier/pkg/models"
)

// Carrier names form a closed set; adapters are selected by route path, never
// by inspecting the payload.
const (
	WhatsApp  = "whatsapp"
	Messenger = "messenger"
	SMSGW     = "smsgw"
	Telegram  = "telegram"
	Webchat   = "webchat"
	RCS       = "rcs"
)

// Adapter parses one carrier's raw webhook request into pipeline events.
// Schema violations surface as ErrMalformedPayload; adapters never see a
// request that has not passed signature validation.
type Adapter interface {
	Name() string
	Parse(body []byte, header http.Header) ([]Event, error)
}

// Event is either an inbound customer message or a delivery-status callback
// for a previously sent outbound message, never both.
type Event struct {
	Inbound *InboundMessage
	Status  *StatusEvent
}

type InboundMessage struct {
	Carrier     string
	MessageID   string
	From        string
	To          string
	SenderName  string
	OrgID       string
	Text        string
	Attachments []models.Attachment
	Timestamp   time.Time

	// WabaID is set by carriers whose business account id keys the
	// environment routing table.
	WabaID string

	// Fragment is non-nil when the carrier split the message into numbered
	// segments that must be reassembled before normalization.
	Fragment *FragmentInfo
}

type FragmentInfo struct {
	Index int
	Count int
}

type StatusEvent struct {
	Carrier   string
	MessageID string
	Recipient string
	Status    string
	RawStatus string
	Timestamp time.Time
}

// Registry holds the configured adapters keyed by carrier name.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, errors.ErrNotFound.WithDetail("message", "unknown carrier '"+name+"'")
	}
	return a, nil
}

func malformed(detail string) error {
	return errors.ErrMalformedPayload.WithDetail("message", detail)
}

func malformedWrap(detail string, cause error) error {
	return errors.ErrMalformedPayload.WithCause(cause).WithDetail("message", detail)
}

func unixTime(seconds int64) time.Time {
	if seconds == 0 {
		return time.Now()
	}
	return time.Unix(seconds, 0)
}
