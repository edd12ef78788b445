package identity

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/poyrazK/dyndns/internal/core/domain"
)

// HeaderPrincipal trusts a principal header injected by the hosting platform.
// The value is base64 JSON carrying userId, userDetails and userRoles.
// Only enable it behind a proxy that strips the header from client traffic.
type HeaderPrincipal struct {
	header string
}

func NewHeaderPrincipal(header string) *HeaderPrincipal {
	return &HeaderPrincipal{header: header}
}

type principal struct {
	UserID      string   `json:"userId"`
	UserDetails string   `json:"userDetails"`
	UserRoles   []string `json:"userRoles"`
}

func (h *HeaderPrincipal) Identify(r *http.Request) (*domain.Identity, error) {
	raw := r.Header.Get(h.header)
	if raw == "" {
		return nil, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", h.header, err)
	}
	var p principal
	if err := json.Unmarshal(decoded, &p); err != nil {
		return nil, fmt.Errorf("parse %s: %w", h.header, err)
	}
	if p.UserID == "" {
		return nil, nil
	}
	return &domain.Identity{SubjectID: p.UserID, Email: p.UserDetails, Roles: p.UserRoles}, nil
}
