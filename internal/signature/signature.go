package signature

import (
	"net/http"

	"courier/pkg/errors"
)

// Validator authenticates one carrier's webhook requests before any byte of
// the payload is parsed. Implementations must compare secrets in constant
// time and must never include secret material in returned errors.
type Validator interface {
	Carrier() string
	Validate(r *http.Request, body []byte) error
}

// Handshaker is implemented by validators whose carrier performs a GET
// subscription handshake. It returns the challenge to echo back.
type Handshaker interface {
	Handshake(r *http.Request) (string, error)
}

// Registry holds the configured validators keyed by carrier name.
type Registry struct {
	validators map[string]Validator
}

func NewRegistry(validators ...Validator) *Registry {
	r := &Registry{validators: make(map[string]Validator, len(validators))}
	for _, v := range validators {
		r.validators[v.Carrier()] = v
	}
	return r
}

func (r *Registry) Get(name string) (Validator, error) {
	v, ok := r.validators[name]
	if !ok {
		return nil, errors.ErrNotFound.WithDetail("message", "unknown carrier '"+name+"'")
	}
	return v, nil
}

func authFailed(detail string) error {
	return errors.ErrAuthenticationFailed.WithDetail("message", detail)
}
