package carrier

import (
	"encoding/json"
	"net/http"
	"strconv"

	"courier/internal/config"
	"courier/pkg/models"
)

// MessengerAdapter parses Graph-style page messaging events: inbound messages
// plus delivery and read callbacks.
type MessengerAdapter struct {
	cfg config.MetaCarrierConfig
}

func NewMessengerAdapter(cfg config.MetaCarrierConfig) *MessengerAdapter {
	return &MessengerAdapter{cfg: cfg}
}

func (a *MessengerAdapter) Name() string { return Messenger }

type fbPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID        string        `json:"id"`
		Time      int64         `json:"time"`
		Messaging []fbMessaging `json:"messaging"`
	} `json:"entry"`
}

type fbMessaging struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Timestamp int64 `json:"timestamp"`
	Message   *struct {
		MID         string `json:"mid"`
		Text        string `json:"text"`
		Attachments []struct {
			Type    string `json:"type"`
			Payload struct {
				URL string `json:"url"`
			} `json:"payload"`
		} `json:"attachments"`
	} `json:"message"`
	Delivery *struct {
		MIDs []string `json:"mids"`
	} `json:"delivery"`
	Read *struct {
		Watermark int64 `json:"watermark"`
	} `json:"read"`
}

func (a *MessengerAdapter) Parse(body []byte, _ http.Header) ([]Event, error) {
	var payload fbPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, malformedWrap("invalid messenger event body", err)
	}
	if payload.Object != "page" {
		return nil, malformed("unexpected event object '" + payload.Object + "'")
	}

	var events []Event
	for _, entry := range payload.Entry {
		for _, m := range entry.Messaging {
			ts := m.Timestamp / 1000
			switch {
			case m.Message != nil:
				if m.Message.MID == "" || m.Sender.ID == "" {
					return nil, malformed("messaging event missing mid or sender")
				}
				inbound := &InboundMessage{
					Carrier:   Messenger,
					MessageID: m.Message.MID,
					From:      m.Sender.ID,
					To:        m.Recipient.ID,
					Text:      m.Message.Text,
					Timestamp: unixTime(ts),
				}
				for _, att := range m.Message.Attachments {
					inbound.Attachments = append(inbound.Attachments, models.Attachment{
						Type: att.Type,
						URL:  att.Payload.URL,
					})
				}
				if inbound.Text == "" && len(inbound.Attachments) == 0 {
					return nil, malformed("messaging event '" + m.Message.MID + "' has no content")
				}
				events = append(events, Event{Inbound: inbound})

			case m.Delivery != nil:
				for _, mid := range m.Delivery.MIDs {
					events = append(events, Event{Status: &StatusEvent{
						Carrier:   Messenger,
						MessageID: mid,
						Recipient: m.Sender.ID,
						Status:    models.StatusDelivered,
						RawStatus: "delivery",
						Timestamp: unixTime(ts),
					}})
				}

			case m.Read != nil:
				// Read callbacks carry no mid, only a watermark covering every
				// message sent up to that instant.
				events = append(events, Event{Status: &StatusEvent{
					Carrier:   Messenger,
					MessageID: strconv.FormatInt(m.Read.Watermark, 10),
					Recipient: m.Sender.ID,
					Status:    models.StatusRead,
					RawStatus: "read",
					Timestamp: unixTime(m.Read.Watermark / 1000),
				}})
			}
		}
	}

	if len(events) == 0 {
		return nil, malformed("event carries no messaging entries")
	}
	return events, nil
}
