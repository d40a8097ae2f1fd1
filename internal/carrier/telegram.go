package carrier

import (
	"encoding/json"
	"net/http"
	"strconv"

	"courier/internal/config"
	"courier/pkg/models"
)

// TelegramAdapter parses bot API update objects. Only message updates are
// accepted; edited messages and channel posts are out of scope for routing.
type TelegramAdapter struct {
	cfg config.TelegramConfig
}

func NewTelegramAdapter(cfg config.TelegramConfig) *TelegramAdapter {
	return &TelegramAdapter{cfg: cfg}
}

func (a *TelegramAdapter) Name() string { return Telegram }

type tgUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		MessageID int64 `json:"message_id"`
		From      struct {
			ID        int64  `json:"id"`
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
			Username  string `json:"username"`
		} `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Date    int64  `json:"date"`
		Text    string `json:"text"`
		Caption string `json:"caption"`
		Photo   []struct {
			FileID string `json:"file_id"`
		} `json:"photo"`
		Document *struct {
			FileID   string `json:"file_id"`
			FileName string `json:"file_name"`
			MimeType string `json:"mime_type"`
		} `json:"document"`
		Voice *struct {
			FileID   string `json:"file_id"`
			MimeType string `json:"mime_type"`
		} `json:"voice"`
	} `json:"message"`
}

func (a *TelegramAdapter) Parse(body []byte, _ http.Header) ([]Event, error) {
	var update tgUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		return nil, malformedWrap("invalid telegram update body", err)
	}
	if update.UpdateID == 0 {
		return nil, malformed("update missing update_id")
	}
	if update.Message == nil {
		return nil, malformed("update carries no message")
	}

	msg := update.Message
	if msg.MessageID == 0 || msg.From.ID == 0 {
		return nil, malformed("message missing message_id or sender")
	}

	inbound := &InboundMessage{
		Carrier:    Telegram,
		MessageID:  strconv.FormatInt(msg.Chat.ID, 10) + ":" + strconv.FormatInt(msg.MessageID, 10),
		From:       strconv.FormatInt(msg.From.ID, 10),
		To:         a.cfg.BotID,
		SenderName: tgDisplayName(msg.From.FirstName, msg.From.LastName, msg.From.Username),
		Text:       msg.Text,
		Timestamp:  unixTime(msg.Date),
	}
	if inbound.Text == "" {
		inbound.Text = msg.Caption
	}
	if len(msg.Photo) > 0 {
		// The bot API sends every thumbnail size; the last element is the
		// full-resolution rendition.
		inbound.Attachments = append(inbound.Attachments, models.Attachment{
			Type: "image",
			URL:  msg.Photo[len(msg.Photo)-1].FileID,
		})
	}
	if msg.Document != nil {
		inbound.Attachments = append(inbound.Attachments, models.Attachment{
			Type:     "document",
			URL:      msg.Document.FileID,
			MimeType: msg.Document.MimeType,
			Filename: msg.Document.FileName,
		})
	}
	if msg.Voice != nil {
		inbound.Attachments = append(inbound.Attachments, models.Attachment{
			Type:     "audio",
			URL:      msg.Voice.FileID,
			MimeType: msg.Voice.MimeType,
		})
	}

	if inbound.Text == "" && len(inbound.Attachments) == 0 {
		return nil, malformed("message has neither text nor attachments")
	}
	return []Event{{Inbound: inbound}}, nil
}

func tgDisplayName(first, last, username string) string {
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	default:
		return username
	}
}
