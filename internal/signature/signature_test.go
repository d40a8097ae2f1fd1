package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/carrier"
	"courier/internal/config"
)

func metaSign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestMetaValidator(t *testing.T) {
	v := NewMetaValidator(carrier.WhatsApp, config.MetaCarrierConfig{AppSecret: "s3cret"})
	body := []byte(`{"object":"whatsapp_business_account"}`)

	t.Run("valid signature", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhooks/whatsapp/receive", nil)
		r.Header.Set("X-Hub-Signature-256", metaSign("s3cret", body))
		assert.NoError(t, v.Validate(r, body))
	})

	t.Run("missing header", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhooks/whatsapp/receive", nil)
		assert.Error(t, v.Validate(r, body))
	})

	t.Run("wrong secret", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhooks/whatsapp/receive", nil)
		r.Header.Set("X-Hub-Signature-256", metaSign("other", body))
		assert.Error(t, v.Validate(r, body))
	})

	t.Run("tampered body", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhooks/whatsapp/receive", nil)
		r.Header.Set("X-Hub-Signature-256", metaSign("s3cret", body))
		assert.Error(t, v.Validate(r, []byte(`{"object":"page"}`)))
	})

	t.Run("sha1 scheme rejected", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhooks/whatsapp/receive", nil)
		r.Header.Set("X-Hub-Signature-256", "sha1=deadbeef")
		assert.Error(t, v.Validate(r, body))
	})
}

func TestMetaHandshake(t *testing.T) {
	v := NewMetaValidator(carrier.WhatsApp, config.MetaCarrierConfig{VerifyToken: "tok-1"})

	t.Run("valid handshake echoes challenge", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/webhooks/whatsapp/receive?hub.mode=subscribe&hub.verify_token=tok-1&hub.challenge=42", nil)
		challenge, err := v.Handshake(r)
		require.NoError(t, err)
		assert.Equal(t, "42", challenge)
	})

	t.Run("wrong token", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/webhooks/whatsapp/receive?hub.mode=subscribe&hub.verify_token=bad&hub.challenge=42", nil)
		_, err := v.Handshake(r)
		assert.Error(t, err)
	})

	t.Run("wrong mode", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/webhooks/whatsapp/receive?hub.mode=unsubscribe&hub.verify_token=tok-1&hub.challenge=42", nil)
		_, err := v.Handshake(r)
		assert.Error(t, err)
	})
}

func gatewaySign(token, requestURL string, form url.Values) string {
	names := make([]string, 0, len(form))
	for name := range form {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(requestURL)
	for _, name := range names {
		for _, value := range form[name] {
			b.WriteString(name)
			b.WriteString(value)
		}
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestSMSGatewayValidator(t *testing.T) {
	v := NewSMSGatewayValidator(config.SMSGatewayConfig{AuthToken: "auth-token"})

	form := url.Values{}
	form.Set("MessageSid", "SM123")
	form.Set("From", "+15550001111")
	form.Set("Body", "hello")
	body := []byte(form.Encode())

	t.Run("valid signature", func(t *testing.T) {
		r := httptest.NewRequest("POST", "http://gateway.example.com/webhooks/smsgw/receive", nil)
		r.Header.Set("X-Gateway-Signature", gatewaySign("auth-token", "http://gateway.example.com/webhooks/smsgw/receive", form))
		assert.NoError(t, v.Validate(r, body))
	})

	t.Run("param order does not matter", func(t *testing.T) {
		reordered := url.Values{}
		reordered.Set("Body", "hello")
		reordered.Set("From", "+15550001111")
		reordered.Set("MessageSid", "SM123")
		r := httptest.NewRequest("POST", "http://gateway.example.com/webhooks/smsgw/receive", nil)
		r.Header.Set("X-Gateway-Signature", gatewaySign("auth-token", "http://gateway.example.com/webhooks/smsgw/receive", form))
		assert.NoError(t, v.Validate(r, []byte(reordered.Encode())))
	})

	t.Run("wrong token", func(t *testing.T) {
		r := httptest.NewRequest("POST", "http://gateway.example.com/webhooks/smsgw/receive", nil)
		r.Header.Set("X-Gateway-Signature", gatewaySign("other", "http://gateway.example.com/webhooks/smsgw/receive", form))
		assert.Error(t, v.Validate(r, body))
	})

	t.Run("missing header", func(t *testing.T) {
		r := httptest.NewRequest("POST", "http://gateway.example.com/webhooks/smsgw/receive", nil)
		assert.Error(t, v.Validate(r, body))
	})

	t.Run("public url override", func(t *testing.T) {
		proxied := NewSMSGatewayValidator(config.SMSGatewayConfig{AuthToken: "auth-token"})
		proxied.PublicURL = "https://public.example.com/webhooks/smsgw/receive"
		r := httptest.NewRequest("POST", "http://internal:8080/webhooks/smsgw/receive", nil)
		r.Header.Set("X-Gateway-Signature", gatewaySign("auth-token", "https://public.example.com/webhooks/smsgw/receive", form))
		assert.NoError(t, proxied.Validate(r, body))
	})
}

func TestTelegramValidator(t *testing.T) {
	v := NewTelegramValidator(config.TelegramConfig{SecretToken: "tg-secret"})

	t.Run("valid token", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhooks/telegram/receive", nil)
		r.Header.Set("X-Telegram-Bot-Api-Secret-Token", "tg-secret")
		assert.NoError(t, v.Validate(r, nil))
	})

	t.Run("wrong token", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhooks/telegram/receive", nil)
		r.Header.Set("X-Telegram-Bot-Api-Secret-Token", "nope")
		assert.Error(t, v.Validate(r, nil))
	})

	t.Run("missing header", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhooks/telegram/receive", nil)
		assert.Error(t, v.Validate(r, nil))
	})
}

func TestWebchatValidator(t *testing.T) {
	v := NewWebchatValidator(config.WebchatConfig{APIKeys: map[string]string{
		"org-1": "key-one",
		"org-2": "key-two",
	}})

	t.Run("valid key resolves org", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhooks/webchat/receive", nil)
		r.Header.Set("Authorization", "Bearer key-two")
		require.NoError(t, v.Validate(r, nil))
		assert.Equal(t, "org-2", r.Header.Get(carrier.HeaderWebchatOrg))
	})

	t.Run("unknown key", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhooks/webchat/receive", nil)
		r.Header.Set("Authorization", "Bearer key-nine")
		assert.Error(t, v.Validate(r, nil))
	})

	t.Run("spoofed org header is discarded", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhooks/webchat/receive", nil)
		r.Header.Set(carrier.HeaderWebchatOrg, "org-1")
		r.Header.Set("Authorization", "Bearer key-two")
		require.NoError(t, v.Validate(r, nil))
		assert.Equal(t, "org-2", r.Header.Get(carrier.HeaderWebchatOrg))
	})

	t.Run("basic scheme rejected", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhooks/webchat/receive", nil)
		r.Header.Set("Authorization", "Basic a2V5")
		assert.Error(t, v.Validate(r, nil))
	})
}

func TestRCSValidator(t *testing.T) {
	v, err := NewRCSValidator(config.RCSConfig{TrustedCIDRs: []string{"10.10.0.0/16", "192.168.1.0/24"}})
	require.NoError(t, err)

	t.Run("trusted remote addr", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhooks/rcs/receive", nil)
		r.RemoteAddr = "10.10.4.7:51234"
		assert.NoError(t, v.Validate(r, nil))
	})

	t.Run("untrusted remote addr", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhooks/rcs/receive", nil)
		r.RemoteAddr = "172.16.0.9:51234"
		assert.Error(t, v.Validate(r, nil))
	})

	t.Run("forwarded-for wins over remote addr", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhooks/rcs/receive", nil)
		r.RemoteAddr = "172.16.0.9:51234"
		r.Header.Set("X-Forwarded-For", "192.168.1.50, 172.16.0.9")
		assert.NoError(t, v.Validate(r, nil))
	})

	t.Run("invalid cidr rejected at construction", func(t *testing.T) {
		_, err := NewRCSValidator(config.RCSConfig{TrustedCIDRs: []string{"not-a-cidr"}})
		assert.Error(t, err)
	})
}

func TestRegistryUnknownCarrier(t *testing.T) {
	reg := NewRegistry(NewTelegramValidator(config.TelegramConfig{SecretToken: "x"}))
	_, err := reg.Get("whatsapp")
	assert.Error(t, err)
}
