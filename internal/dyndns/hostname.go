package dyndns

import (
	"errors"
	"regexp"
	"strings"
)

// ErrRejected means the requested FQDN does not map into the managed zone.
var ErrRejected = errors.New("hostname outside managed zone")

var recordNamePattern = regexp.MustCompile(`^[A-Za-z0-9.-]+$`)

// HostnameResolver maps external FQDNs to zone-relative record names.
type HostnameResolver struct {
	zone      string
	subdomain string
}

// NewHostnameResolver creates a resolver for zone (e.g. "example.com") with
// the given DDNS subdomain label (e.g. "ddns"). An empty label disables the
// subdomain shape.
func NewHostnameResolver(zone, subdomain string) *HostnameResolver {
	return &HostnameResolver{
		zone:      normalize(zone),
		subdomain: normalize(subdomain),
	}
}

// Zone returns the normalized zone name without a trailing dot.
func (h *HostnameResolver) Zone() string { return h.zone }

// RecordName resolves fqdn. Two shapes are accepted, checked in order:
//
//	<prefix>.<subdomain>.<zone>  ->  <prefix>.<subdomain>
//	<prefix>.<zone>              ->  <prefix>
func (h *HostnameResolver) RecordName(fqdn string) (string, error) {
	name := normalize(fqdn)
	if name == "" || h.zone == "" {
		return "", ErrRejected
	}

	var record string
	if h.subdomain != "" {
		if prefix, ok := strings.CutSuffix(name, "."+h.subdomain+"."+h.zone); ok {
			if prefix == "" {
				return "", ErrRejected
			}
			record = prefix + "." + h.subdomain
		}
	}
	if record == "" {
		prefix, ok := strings.CutSuffix(name, "."+h.zone)
		if !ok || prefix == "" {
			return "", ErrRejected
		}
		record = prefix
	}

	if !recordNamePattern.MatchString(record) {
		return "", ErrRejected
	}
	return record, nil
}

// FQDN turns a record name back into a fully qualified name with trailing dot.
func (h *HostnameResolver) FQDN(recordName string) string {
	return recordName + "." + h.zone + "."
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(s), "."))
}
