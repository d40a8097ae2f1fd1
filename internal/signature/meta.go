package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"courier/internal/config"
)

const (
	headerHubSignature = "X-Hub-Signature-256"
	sha256Prefix       = "sha256="
)

// MetaValidator authenticates Graph-platform webhooks (whatsapp and
// messenger): the request body is HMAC-SHA256 signed with the app secret,
// and subscription setup arrives as a GET handshake carrying a verify token.
type MetaValidator struct {
	carrier string
	cfg     config.MetaCarrierConfig
}

func NewMetaValidator(carrier string, cfg config.MetaCarrierConfig) *MetaValidator {
	return &MetaValidator{carrier: carrier, cfg: cfg}
}

func (v *MetaValidator) Carrier() string { return v.carrier }

// Validate checks the hex-encoded HMAC from the signature header against a
// locally computed digest of the raw body.
func (v *MetaValidator) Validate(r *http.Request, body []byte) error {
	sig := r.Header.Get(headerHubSignature)
	if sig == "" {
		return authFailed("missing " + headerHubSignature + " header")
	}
	if !strings.HasPrefix(sig, sha256Prefix) {
		return authFailed("unsupported signature scheme")
	}
	provided, err := hex.DecodeString(strings.TrimPrefix(sig, sha256Prefix))
	if err != nil {
		return authFailed("signature is not valid hex")
	}

	mac := hmac.New(sha256.New, []byte(v.cfg.AppSecret))
	mac.Write(body)
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return authFailed("signature mismatch")
	}
	return nil
}

func (v *MetaValidator) Handshake(r *http.Request) (string, error) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" {
		return "", authFailed("unsupported hub.mode")
	}
	token := q.Get("hub.verify_token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(v.cfg.VerifyToken)) != 1 {
		return "", authFailed("verify token mismatch")
	}
	challenge := q.Get("hub.challenge")
	if challenge == "" {
		return "", authFailed("missing hub.challenge")
	}
	return challenge, nil
}
