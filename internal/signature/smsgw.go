package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"courier/internal/carrier"
	"courier/internal/config"
)

const headerGatewaySignature = "X-Gateway-Signature"

// SMSGatewayValidator authenticates gateway callbacks: the signature is
// HMAC-SHA1 over the full request URL followed by each form parameter name
// and value concatenated in lexicographic name order, base64 encoded.
type SMSGatewayValidator struct {
	cfg config.SMSGatewayConfig

	// PublicURL overrides the URL reconstructed from the request, needed when
	// the service sits behind a TLS-terminating proxy.
	PublicURL string
}

func NewSMSGatewayValidator(cfg config.SMSGatewayConfig) *SMSGatewayValidator {
	return &SMSGatewayValidator{cfg: cfg}
}

func (v *SMSGatewayValidator) Carrier() string { return carrier.SMSGW }

func (v *SMSGatewayValidator) Validate(r *http.Request, body []byte) error {
	provided := r.Header.Get(headerGatewaySignature)
	if provided == "" {
		return authFailed("missing " + headerGatewaySignature + " header")
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return authFailed("body is not form-encoded")
	}

	expected := v.compute(v.requestURL(r), form)
	if !hmac.Equal([]byte(provided), []byte(expected)) {
		return authFailed("signature mismatch")
	}
	return nil
}

func (v *SMSGatewayValidator) compute(requestURL string, form url.Values) string {
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

	mac := hmac.New(sha1.New, []byte(v.cfg.AuthToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (v *SMSGatewayValidator) requestURL(r *http.Request) string {
	if v.PublicURL != "" {
		return v.PublicURL
	}
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
