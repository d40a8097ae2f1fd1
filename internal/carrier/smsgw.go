package carrier

import (
	"net/http"
	"net/url"
	"strconv"

	"courier/internal/config"
	"courier/pkg/models"
)

// SMSGatewayAdapter parses form-encoded gateway callbacks. Long messages
// arrive as numbered segments that the fragment store reassembles downstream.
type SMSGatewayAdapter struct {
	cfg config.SMSGatewayConfig
}

func NewSMSGatewayAdapter(cfg config.SMSGatewayConfig) *SMSGatewayAdapter {
	return &SMSGatewayAdapter{cfg: cfg}
}

func (a *SMSGatewayAdapter) Name() string { return SMSGW }

func (a *SMSGatewayAdapter) Parse(body []byte, _ http.Header) ([]Event, error) {
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, malformedWrap("invalid form-encoded gateway body", err)
	}

	if status := form.Get("SmsStatus"); status != "" {
		sid := form.Get("MessageSid")
		if sid == "" {
			return nil, malformed("status callback missing MessageSid")
		}
		return []Event{{Status: &StatusEvent{
			Carrier:   SMSGW,
			MessageID: sid,
			Recipient: form.Get("To"),
			Status:    normalizeGatewayStatus(status),
			RawStatus: status,
			Timestamp: unixTime(0),
		}}}, nil
	}

	sid := form.Get("MessageSid")
	from := form.Get("From")
	if sid == "" || from == "" {
		return nil, malformed("gateway callback missing MessageSid or From")
	}
	text := form.Get("Body")
	if text == "" {
		return nil, malformed("gateway message '" + sid + "' has an empty body")
	}

	inbound := &InboundMessage{
		Carrier:   SMSGW,
		MessageID: sid,
		From:      from,
		To:        form.Get("To"),
		Text:      text,
		Timestamp: unixTime(0),
	}
	for i := 0; ; i++ {
		key := "MediaUrl" + strconv.Itoa(i)
		mediaURL := form.Get(key)
		if mediaURL == "" {
			break
		}
		inbound.Attachments = append(inbound.Attachments, models.Attachment{
			Type:     "media",
			URL:      mediaURL,
			MimeType: form.Get("MediaContentType" + strconv.Itoa(i)),
		})
	}

	if info, err := parseSegmentFields(form); err != nil {
		return nil, err
	} else if info != nil {
		inbound.Fragment = info
	}

	return []Event{{Inbound: inbound}}, nil
}

// parseSegmentFields returns nil for single-part messages. Both fields must be
// present together and describe a consistent 1-based position.
func parseSegmentFields(form url.Values) (*FragmentInfo, error) {
	rawIdx := form.Get("SegmentIndex")
	rawCount := form.Get("SegmentCount")
	if rawIdx == "" && rawCount == "" {
		return nil, nil
	}
	if rawIdx == "" || rawCount == "" {
		return nil, malformed("segment fields must be provided together")
	}
	idx, err := strconv.Atoi(rawIdx)
	if err != nil {
		return nil, malformedWrap("invalid SegmentIndex", err)
	}
	count, err := strconv.Atoi(rawCount)
	if err != nil {
		return nil, malformedWrap("invalid SegmentCount", err)
	}
	if count < 1 || idx < 1 || idx > count {
		return nil, malformed("segment position " + rawIdx + "/" + rawCount + " out of range")
	}
	if count == 1 {
		return nil, nil
	}
	return &FragmentInfo{Index: idx, Count: count}, nil
}

func normalizeGatewayStatus(s string) string {
	switch s {
	case "queued", "accepted":
		return models.StatusQueued
	case "sent":
		return models.StatusSent
	case "delivered":
		return models.StatusDelivered
	case "read":
		return models.StatusRead
	case "failed", "undelivered":
		return models.StatusFailed
	default:
		return models.StatusQueued
	}
}
