package carrier

import (
	"encoding/json"
	"net/http"
	"strconv"

	"courier/internal/config"
	"courier/pkg/models"
)

// WhatsAppAdapter parses Graph-style change notifications for a WhatsApp
// Business Account. Each entry carries the WABA id used by the environment
// routing table.
type WhatsAppAdapter struct {
	cfg config.MetaCarrierConfig
}

func NewWhatsAppAdapter(cfg config.MetaCarrierConfig) *WhatsAppAdapter {
	return &WhatsAppAdapter{cfg: cfg}
}

func (a *WhatsAppAdapter) Name() string { return WhatsApp }

type waPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Metadata struct {
					DisplayPhoneNumber string `json:"display_phone_number"`
					PhoneNumberID      string `json:"phone_number_id"`
				} `json:"metadata"`
				Contacts []struct {
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
					WaID string `json:"wa_id"`
				} `json:"contacts"`
				Messages []waMessage `json:"messages"`
				Statuses []waStatus  `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type waMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Image    *waMedia `json:"image"`
	Document *waMedia `json:"document"`
	Audio    *waMedia `json:"audio"`
	Video    *waMedia `json:"video"`
}

type waMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
	Filename string `json:"filename"`
	Link     string `json:"link"`
}

type waStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}

func (a *WhatsAppAdapter) Parse(body []byte, _ http.Header) ([]Event, error) {
	var payload waPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, malformedWrap("invalid whatsapp notification body", err)
	}
	if payload.Object != "whatsapp_business_account" {
		return nil, malformed("unexpected notification object '" + payload.Object + "'")
	}
	if len(payload.Entry) == 0 {
		return nil, malformed("notification carries no entries")
	}

	var events []Event
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			contactNames := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				contactNames[c.WaID] = c.Profile.Name
			}

			for _, msg := range change.Value.Messages {
				if msg.ID == "" || msg.From == "" {
					return nil, malformed("message missing id or sender")
				}
				inbound := &InboundMessage{
					Carrier:    WhatsApp,
					MessageID:  msg.ID,
					From:       msg.From,
					To:         change.Value.Metadata.DisplayPhoneNumber,
					SenderName: contactNames[msg.From],
					Timestamp:  unixTime(parseEpoch(msg.Timestamp)),
					WabaID:     entry.ID,
				}
				if msg.Text != nil {
					inbound.Text = msg.Text.Body
				}
				inbound.Attachments = waAttachments(msg)
				if inbound.Text == "" && len(inbound.Attachments) == 0 {
					return nil, malformed("message '" + msg.ID + "' has neither text nor attachments")
				}
				events = append(events, Event{Inbound: inbound})
			}

			for _, st := range change.Value.Statuses {
				if st.ID == "" {
					return nil, malformed("status callback missing message id")
				}
				events = append(events, Event{Status: &StatusEvent{
					Carrier:   WhatsApp,
					MessageID: st.ID,
					Recipient: st.RecipientID,
					Status:    normalizeWaStatus(st.Status),
					RawStatus: st.Status,
					Timestamp: unixTime(parseEpoch(st.Timestamp)),
				}})
			}
		}
	}

	if len(events) == 0 {
		return nil, malformed("notification carries neither messages nor statuses")
	}
	return events, nil
}

func waAttachments(msg waMessage) []models.Attachment {
	var out []models.Attachment
	add := func(kind string, m *waMedia) {
		if m == nil {
			return
		}
		out = append(out, models.Attachment{
			Type:     kind,
			URL:      m.Link,
			MimeType: m.MimeType,
			Caption:  m.Caption,
			Filename: m.Filename,
		})
	}
	add("image", msg.Image)
	add("document", msg.Document)
	add("audio", msg.Audio)
	add("video", msg.Video)
	return out
}

func normalizeWaStatus(s string) string {
	switch s {
	case "sent":
		return models.StatusSent
	case "delivered":
		return models.StatusDelivered
	case "read":
		return models.StatusRead
	case "failed":
		return models.StatusFailed
	default:
		return models.StatusQueued
	}
}

func parseEpoch(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
