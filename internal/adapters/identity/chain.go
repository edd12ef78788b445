package identity

import (
	"net/http"

	"github.com/poyrazK/dyndns/internal/core/domain"
	"github.com/poyrazK/dyndns/internal/core/ports"
)

// Chain asks each provider in order and returns the first identity found.
type Chain []ports.IdentityProvider

func (c Chain) Identify(r *http.Request) (*domain.Identity, error) {
	var firstErr error
	for _, p := range c {
		if p == nil {
			continue
		}
		id, err := p.Identify(r)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if id != nil {
			return id, nil
		}
	}
	return nil, firstErr
}
