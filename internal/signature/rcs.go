package signature

import (
	"net"
	"net/http"
	"strings"

	"courier/internal/carrier"
	"courier/internal/config"
)

// RCSValidator trusts requests by network origin: the client address must
// fall inside one of the configured gateway CIDR ranges.
type RCSValidator struct {
	networks []*net.IPNet
}

func NewRCSValidator(cfg config.RCSConfig) (*RCSValidator, error) {
	v := &RCSValidator{}
	for _, raw := range cfg.TrustedCIDRs {
		_, network, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, err
		}
		v.networks = append(v.networks, network)
	}
	return v, nil
}

func (v *RCSValidator) Carrier() string { return carrier.RCS }

func (v *RCSValidator) Validate(r *http.Request, _ []byte) error {
	if len(v.networks) == 0 {
		return authFailed("no trusted networks configured")
	}

	ip := clientIP(r)
	if ip == nil {
		return authFailed("cannot determine client address")
	}
	for _, network := range v.networks {
		if network.Contains(ip) {
			return nil
		}
	}
	return authFailed("client address outside trusted networks")
}

func clientIP(r *http.Request) net.IP {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return net.ParseIP(r.RemoteAddr)
	}
	return net.ParseIP(host)
}
