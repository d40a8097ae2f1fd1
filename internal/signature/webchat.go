package signature

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"courier/internal/carrier"
	"courier/internal/config"
)

// WebchatValidator authenticates widget requests with per-organization API
// keys. On success it records the resolved org on the request so the adapter
// can attribute the message without a second lookup.
type WebchatValidator struct {
	cfg config.WebchatConfig
}

func NewWebchatValidator(cfg config.WebchatConfig) *WebchatValidator {
	return &WebchatValidator{cfg: cfg}
}

func (v *WebchatValidator) Carrier() string { return carrier.Webchat }

func (v *WebchatValidator) Validate(r *http.Request, _ []byte) error {
	// Never trust an org header supplied by the caller.
	r.Header.Del(carrier.HeaderWebchatOrg)

	auth := r.Header.Get("Authorization")
	if auth == "" {
		return authFailed("missing Authorization header")
	}
	key, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return authFailed("authorization scheme must be Bearer")
	}

	// The loop visits every configured key even after a match.
	matchedOrg := ""
	for org, configured := range v.cfg.APIKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(configured)) == 1 {
			matchedOrg = org
		}
	}
	if matchedOrg == "" {
		return authFailed("unknown api key")
	}

	r.Header.Set(carrier.HeaderWebchatOrg, matchedOrg)
	return nil
}
