package carrier

import (
	"encoding/json"
	"net/http"
	"time"

	"courier/internal/config"
	"courier/pkg/models"
)

// RCSAdapter parses agent-message events from the RCS business messaging
// gateway. Requests are trusted by network origin, checked upstream of the
// adapter.
type RCSAdapter struct {
	cfg config.RCSConfig
}

func NewRCSAdapter(cfg config.RCSConfig) *RCSAdapter {
	return &RCSAdapter{cfg: cfg}
}

func (a *RCSAdapter) Name() string { return RCS }

type rcsPayload struct {
	MessageID   string `json:"messageId"`
	SenderPhone string `json:"senderPhoneNumber"`
	AgentID     string `json:"agentId"`
	SendTime    string `json:"sendTime"`
	Text        string `json:"text"`
	UserFile    *struct {
		Payload struct {
			FileURI  string `json:"fileUri"`
			MimeType string `json:"mimeType"`
			FileName string `json:"fileName"`
		} `json:"payload"`
	} `json:"userFile"`
	SuggestionResponse *struct {
		PostbackData string `json:"postbackData"`
		Text         string `json:"text"`
	} `json:"suggestionResponse"`
}

func (a *RCSAdapter) Parse(body []byte, _ http.Header) ([]Event, error) {
	var payload rcsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, malformedWrap("invalid rcs event body", err)
	}
	if payload.MessageID == "" || payload.SenderPhone == "" {
		return nil, malformed("rcs event missing messageId or senderPhoneNumber")
	}
	if a.cfg.AgentID != "" && payload.AgentID != "" && payload.AgentID != a.cfg.AgentID {
		return nil, malformed("rcs event addressed to unknown agent '" + payload.AgentID + "'")
	}

	inbound := &InboundMessage{
		Carrier:   RCS,
		MessageID: payload.MessageID,
		From:      payload.SenderPhone,
		To:        a.cfg.AgentID,
		Text:      payload.Text,
		Timestamp: parseRFC3339(payload.SendTime),
	}
	if payload.SuggestionResponse != nil && inbound.Text == "" {
		inbound.Text = payload.SuggestionResponse.Text
	}
	if payload.UserFile != nil {
		inbound.Attachments = append(inbound.Attachments, models.Attachment{
			Type:     "file",
			URL:      payload.UserFile.Payload.FileURI,
			MimeType: payload.UserFile.Payload.MimeType,
			Filename: payload.UserFile.Payload.FileName,
		})
	}
	if inbound.Text == "" && len(inbound.Attachments) == 0 {
		return nil, malformed("rcs event '" + payload.MessageID + "' has no content")
	}
	return []Event{{Inbound: inbound}}, nil
}

func parseRFC3339(s string) time.Time {
	if s == "" {
		return time.Now()
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Now()
	}
	return t
}
