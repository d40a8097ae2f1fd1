package carrier

import (
	stderrors "errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/config"
	"courier/pkg/errors"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry(
		NewWhatsAppAdapter(config.MetaCarrierConfig{}),
		NewTelegramAdapter(config.TelegramConfig{}),
	)

	a, err := reg.Get("whatsapp")
	require.NoError(t, err)
	assert.Equal(t, WhatsApp, a.Name())

	_, err = reg.Get("pigeon")
	require.Error(t, err)
	var appErr *errors.Error
	require.True(t, stderrors.As(err, &appErr))
	assert.Equal(t, http.StatusNotFound, appErr.Status)
}

func TestWhatsAppParse(t *testing.T) {
	adapter := NewWhatsAppAdapter(config.MetaCarrierConfig{})

	body := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "waba-100",
			"changes": [{
				"field": "messages",
				"value": {
					"metadata": {"display_phone_number": "15550001111", "phone_number_id": "pn-1"},
					"contacts": [{"profile": {"name": "Ada"}, "wa_id": "15559992222"}],
					"messages": [{
						"id": "wamid.abc",
						"from": "15559992222",
						"timestamp": "1717000000",
						"type": "text",
						"text": {"body": "hello"}
					}]
				}
			}]
		}]
	}`)

	events, err := adapter.Parse(body, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	inbound := events[0].Inbound
	require.NotNil(t, inbound)
	assert.Equal(t, "wamid.abc", inbound.MessageID)
	assert.Equal(t, "15559992222", inbound.From)
	assert.Equal(t, "15550001111", inbound.To)
	assert.Equal(t, "Ada", inbound.SenderName)
	assert.Equal(t, "hello", inbound.Text)
	assert.Equal(t, "waba-100", inbound.WabaID)
	assert.Equal(t, time.Unix(1717000000, 0), inbound.Timestamp)
}

func TestWhatsAppParseStatus(t *testing.T) {
	adapter := NewWhatsAppAdapter(config.MetaCarrierConfig{})

	body := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "waba-100",
			"changes": [{
				"field": "messages",
				"value": {
					"statuses": [{
						"id": "wamid.out",
						"status": "read",
						"timestamp": "1717000100",
						"recipient_id": "15559992222"
					}]
				}
			}]
		}]
	}`)

	events, err := adapter.Parse(body, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	st := events[0].Status
	require.NotNil(t, st)
	assert.Equal(t, "wamid.out", st.MessageID)
	assert.Equal(t, "read", st.Status)
}

func TestWhatsAppParseRejectsMalformed(t *testing.T) {
	adapter := NewWhatsAppAdapter(config.MetaCarrierConfig{})

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{{`},
		{"wrong object", `{"object": "page", "entry": [{"id": "x"}]}`},
		{"no entries", `{"object": "whatsapp_business_account", "entry": []}`},
		{
			"message without id",
			`{"object": "whatsapp_business_account", "entry": [{"id": "w", "changes": [{"value": {"messages": [{"from": "1", "text": {"body": "hi"}}]}}]}]}`,
		},
		{
			"message without content",
			`{"object": "whatsapp_business_account", "entry": [{"id": "w", "changes": [{"value": {"messages": [{"id": "m1", "from": "1"}]}}]}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := adapter.Parse([]byte(tt.body), nil)
			require.Error(t, err)
			var appErr *errors.Error
			require.True(t, stderrors.As(err, &appErr))
			assert.Equal(t, "MALFORMED_PAYLOAD", appErr.Code)
		})
	}
}

func TestMessengerParse(t *testing.T) {
	adapter := NewMessengerAdapter(config.MetaCarrierConfig{})

	body := []byte(`{
		"object": "page",
		"entry": [{
			"id": "page-1",
			"time": 1717000000000,
			"messaging": [{
				"sender": {"id": "psid-9"},
				"recipient": {"id": "page-1"},
				"timestamp": 1717000000000,
				"message": {"mid": "m_abc", "text": "hi there"}
			}]
		}]
	}`)

	events, err := adapter.Parse(body, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	inbound := events[0].Inbound
	require.NotNil(t, inbound)
	assert.Equal(t, "m_abc", inbound.MessageID)
	assert.Equal(t, "psid-9", inbound.From)
	assert.Equal(t, "hi there", inbound.Text)
}

func TestMessengerParseDelivery(t *testing.T) {
	adapter := NewMessengerAdapter(config.MetaCarrierConfig{})

	body := []byte(`{
		"object": "page",
		"entry": [{
			"id": "page-1",
			"messaging": [{
				"sender": {"id": "psid-9"},
				"recipient": {"id": "page-1"},
				"timestamp": 1717000000000,
				"delivery": {"mids": ["m_1", "m_2"]}
			}]
		}]
	}`)

	events, err := adapter.Parse(body, nil)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, ev := range events {
		require.NotNil(t, ev.Status)
		assert.Equal(t, "delivered", ev.Status.Status)
	}
}

func TestMessengerParseRead(t *testing.T) {
	adapter := NewMessengerAdapter(config.MetaCarrierConfig{})

	body := []byte(`{
		"object": "page",
		"entry": [{
			"id": "page-1",
			"messaging": [{
				"sender": {"id": "psid-9"},
				"recipient": {"id": "page-1"},
				"timestamp": 1717000360000,
				"read": {"watermark": 1717000350000}
			}]
		}]
	}`)

	events, err := adapter.Parse(body, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	status := events[0].Status
	require.NotNil(t, status)
	assert.Equal(t, "read", status.Status)
	assert.Equal(t, "read", status.RawStatus)
	assert.Equal(t, "1717000350000", status.MessageID)
	assert.Equal(t, "psid-9", status.Recipient)
	assert.Equal(t, int64(1717000350), status.Timestamp.Unix())
}

func TestSMSGatewayParse(t *testing.T) {
	adapter := NewSMSGatewayAdapter(config.SMSGatewayConfig{})

	form := url.Values{}
	form.Set("MessageSid", "SM123")
	form.Set("From", "+15550001111")
	form.Set("To", "+15559992222")
	form.Set("Body", "part one of a long message")
	form.Set("SegmentIndex", "1")
	form.Set("SegmentCount", "3")

	events, err := adapter.Parse([]byte(form.Encode()), nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	inbound := events[0].Inbound
	require.NotNil(t, inbound)
	assert.Equal(t, "SM123", inbound.MessageID)
	require.NotNil(t, inbound.Fragment)
	assert.Equal(t, 1, inbound.Fragment.Index)
	assert.Equal(t, 3, inbound.Fragment.Count)
}

func TestSMSGatewayParseSinglePart(t *testing.T) {
	adapter := NewSMSGatewayAdapter(config.SMSGatewayConfig{})

	form := url.Values{}
	form.Set("MessageSid", "SM456")
	form.Set("From", "+15550001111")
	form.Set("Body", "short")

	events, err := adapter.Parse([]byte(form.Encode()), nil)
	require.NoError(t, err)
	require.Nil(t, events[0].Inbound.Fragment)
}

func TestSMSGatewayParseSegmentValidation(t *testing.T) {
	adapter := NewSMSGatewayAdapter(config.SMSGatewayConfig{})

	tests := []struct {
		name  string
		index string
		count string
	}{
		{"index without count", "2", ""},
		{"index out of range", "4", "3"},
		{"zero index", "0", "3"},
		{"non-numeric", "two", "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{}
			form.Set("MessageSid", "SM789")
			form.Set("From", "+15550001111")
			form.Set("Body", "x")
			if tt.index != "" {
				form.Set("SegmentIndex", tt.index)
			}
			if tt.count != "" {
				form.Set("SegmentCount", tt.count)
			}
			_, err := adapter.Parse([]byte(form.Encode()), nil)
			require.Error(t, err)
		})
	}
}

func TestSMSGatewayParseStatusCallback(t *testing.T) {
	adapter := NewSMSGatewayAdapter(config.SMSGatewayConfig{})

	form := url.Values{}
	form.Set("MessageSid", "SM123")
	form.Set("To", "+15559992222")
	form.Set("SmsStatus", "undelivered")

	events, err := adapter.Parse([]byte(form.Encode()), nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	st := events[0].Status
	require.NotNil(t, st)
	assert.Equal(t, "failed", st.Status)
	assert.Equal(t, "undelivered", st.RawStatus)
}

func TestTelegramParse(t *testing.T) {
	adapter := NewTelegramAdapter(config.TelegramConfig{BotID: "bot-7"})

	body := []byte(`{
		"update_id": 900100,
		"message": {
			"message_id": 42,
			"from": {"id": 777, "first_name": "Grace", "last_name": "Hopper"},
			"chat": {"id": 777},
			"date": 1717000000,
			"text": "compile it"
		}
	}`)

	events, err := adapter.Parse(body, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	inbound := events[0].Inbound
	require.NotNil(t, inbound)
	assert.Equal(t, "777:42", inbound.MessageID)
	assert.Equal(t, "777", inbound.From)
	assert.Equal(t, "bot-7", inbound.To)
	assert.Equal(t, "Grace Hopper", inbound.SenderName)
}

func TestTelegramParseRejectsNonMessageUpdate(t *testing.T) {
	adapter := NewTelegramAdapter(config.TelegramConfig{})

	_, err := adapter.Parse([]byte(`{"update_id": 900101}`), nil)
	require.Error(t, err)
}

func TestWebchatParse(t *testing.T) {
	adapter := NewWebchatAdapter(config.WebchatConfig{})

	header := http.Header{}
	header.Set(HeaderWebchatOrg, "org-55")

	body := []byte(`{
		"messageId": "wc-1",
		"sessionId": "sess-9",
		"visitorId": "vis-3",
		"visitorName": "Visitor",
		"text": "is anyone there",
		"timestamp": 1717000000
	}`)

	events, err := adapter.Parse(body, header)
	require.NoError(t, err)
	inbound := events[0].Inbound
	require.NotNil(t, inbound)
	assert.Equal(t, "org-55", inbound.OrgID)
	assert.Equal(t, "sess-9", inbound.To)
}

func TestRCSParse(t *testing.T) {
	adapter := NewRCSAdapter(config.RCSConfig{AgentID: "agent-1"})

	body := []byte(`{
		"messageId": "rcs-1",
		"senderPhoneNumber": "+15550001111",
		"agentId": "agent-1",
		"sendTime": "2026-08-01T10:00:00Z",
		"text": "rich message"
	}`)

	events, err := adapter.Parse(body, nil)
	require.NoError(t, err)
	inbound := events[0].Inbound
	require.NotNil(t, inbound)
	assert.Equal(t, "rcs-1", inbound.MessageID)
	assert.Equal(t, "agent-1", inbound.To)
}

func TestRCSParseRejectsForeignAgent(t *testing.T) {
	adapter := NewRCSAdapter(config.RCSConfig{AgentID: "agent-1"})

	body := []byte(`{"messageId": "rcs-2", "senderPhoneNumber": "+1555", "agentId": "agent-2", "text": "x"}`)
	_, err := adapter.Parse(body, nil)
	require.Error(t, err)
}

func TestRCSParseSuggestionResponse(t *testing.T) {
	adapter := NewRCSAdapter(config.RCSConfig{AgentID: "agent-1"})

	body := []byte(`{
		"messageId": "rcs-3",
		"senderPhoneNumber": "+15550001111",
		"suggestionResponse": {"postbackData": "yes", "text": "Yes please"}
	}`)

	events, err := adapter.Parse(body, nil)
	require.NoError(t, err)
	assert.Equal(t, "Yes please", events[0].Inbound.Text)
}
