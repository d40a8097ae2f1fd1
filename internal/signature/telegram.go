package signature

import (
	"crypto/subtle"
	"net/http"

	"courier/internal/carrier"
	"courier/internal/config"
)

const headerTelegramSecret = "X-Telegram-Bot-Api-Secret-Token"

// TelegramValidator checks the shared secret registered at setWebhook time.
type TelegramValidator struct {
	cfg config.TelegramConfig
}

func NewTelegramValidator(cfg config.TelegramConfig) *TelegramValidator {
	return &TelegramValidator{cfg: cfg}
}

func (v *TelegramValidator) Carrier() string { return carrier.Telegram }

func (v *TelegramValidator) Validate(r *http.Request, _ []byte) error {
	token := r.Header.Get(headerTelegramSecret)
	if token == "" {
		return authFailed("missing " + headerTelegramSecret + " header")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(v.cfg.SecretToken)) != 1 {
		return authFailed("secret token mismatch")
	}
	return nil
}
