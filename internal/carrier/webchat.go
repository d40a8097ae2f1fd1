package carrier

import (
	"encoding/json"
	"net/http"

	"courier/internal/config"
	"courier/pkg/models"
)

// WebchatAdapter parses the first-party widget payload. The widget already
// speaks a near-canonical schema, so parsing is mostly validation. The org id
// comes from the authenticated API key, carried on a header set by the
// signature layer.
type WebchatAdapter struct {
	cfg config.WebchatConfig
}

func NewWebchatAdapter(cfg config.WebchatConfig) *WebchatAdapter {
	return &WebchatAdapter{cfg: cfg}
}

func (a *WebchatAdapter) Name() string { return Webchat }

// HeaderWebchatOrg carries the org resolved during API-key validation into the
// adapter. It is stripped from inbound requests before validation runs.
const HeaderWebchatOrg = "X-Webchat-Org"

type webchatPayload struct {
	MessageID   string `json:"messageId"`
	SessionID   string `json:"sessionId"`
	VisitorID   string `json:"visitorId"`
	VisitorName string `json:"visitorName"`
	Text        string `json:"text"`
	Timestamp   int64  `json:"timestamp"`
	Attachments []struct {
		Type     string `json:"type"`
		URL      string `json:"url"`
		MimeType string `json:"mimeType"`
		Filename string `json:"filename"`
	} `json:"attachments"`
}

func (a *WebchatAdapter) Parse(body []byte, header http.Header) ([]Event, error) {
	var payload webchatPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, malformedWrap("invalid webchat message body", err)
	}
	if payload.MessageID == "" || payload.VisitorID == "" {
		return nil, malformed("webchat message missing messageId or visitorId")
	}

	inbound := &InboundMessage{
		Carrier:    Webchat,
		MessageID:  payload.MessageID,
		From:       payload.VisitorID,
		To:         payload.SessionID,
		SenderName: payload.VisitorName,
		OrgID:      header.Get(HeaderWebchatOrg),
		Text:       payload.Text,
		Timestamp:  unixTime(payload.Timestamp),
	}
	for _, att := range payload.Attachments {
		inbound.Attachments = append(inbound.Attachments, models.Attachment{
			Type:     att.Type,
			URL:      att.URL,
			MimeType: att.MimeType,
			Filename: att.Filename,
		})
	}
	if inbound.Text == "" && len(inbound.Attachments) == 0 {
		return nil, malformed("webchat message '" + payload.MessageID + "' has no content")
	}
	return []Event{{Inbound: inbound}}, nil
}
