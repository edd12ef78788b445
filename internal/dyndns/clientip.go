package dyndns

import (
	"errors"
	"net"
	"net/http"
	"net/netip"
	"regexp"
	"strings"
)

var (
	// ErrUndetermined means no usable public address could be detected.
	ErrUndetermined = errors.New("client ip could not be determined")
	// ErrInvalidIP means an explicit address was supplied but is not an IP literal.
	ErrInvalidIP = errors.New("invalid ip address")
)

// DefaultClientIPHeaders is the detection order used when none is configured:
// platform client-IP header, forwarded-for, real-ip, original-for.
var DefaultClientIPHeaders = []string{
	"X-Azure-ClientIP",
	"X-Forwarded-For",
	"X-Real-IP",
	"X-Original-Forwarded-For",
}

var ipv4WithPort = regexp.MustCompile(`^(\d{1,3}(?:\.\d{1,3}){3}):\d+$`)

// IPResolver extracts the caller's public address from a request.
type IPResolver struct {
	headers []string
}

// NewIPResolver creates a resolver checking the given headers in order before
// falling back to the transport peer address.
func NewIPResolver(headers []string) *IPResolver {
	if len(headers) == 0 {
		headers = DefaultClientIPHeaders
	}
	return &IPResolver{headers: headers}
}

// Resolve returns the address to publish. An explicit myip wins unless it is
// empty, "auto" or an internal address; internal addresses are treated as a
// request for auto-detection because they cannot be the public address.
func (r *IPResolver) Resolve(req *http.Request, explicit string) (string, error) {
	explicit = strings.TrimSpace(explicit)
	if explicit != "" && !strings.EqualFold(explicit, "auto") {
		cleaned := CleanIP(explicit)
		addr, err := netip.ParseAddr(cleaned)
		if err != nil {
			return "", ErrInvalidIP
		}
		if !IsInternal(addr) {
			return cleaned, nil
		}
	}

	if ip := r.Detect(req); ip != "" {
		return ip, nil
	}
	return "", ErrUndetermined
}

// Detect walks the configured headers, then the peer address, and returns the
// first candidate that is a public IPv4 literal. It returns "" when none is.
func (r *IPResolver) Detect(req *http.Request) string {
	for _, h := range r.headers {
		v := req.Header.Get(h)
		if v == "" {
			continue
		}
		first, _, _ := strings.Cut(v, ",")
		if ip, ok := usable(first); ok {
			return ip
		}
	}
	if ip, ok := usable(req.RemoteAddr); ok {
		return ip
	}
	return ""
}

func usable(candidate string) (string, bool) {
	cleaned := CleanIP(candidate)
	if cleaned == "" {
		return "", false
	}
	addr, err := netip.ParseAddr(cleaned)
	if err != nil || IsInternal(addr) {
		return "", false
	}
	// Only A records are published.
	if addr = addr.Unmap(); !addr.Is4() {
		return "", false
	}
	return addr.String(), true
}

// CleanIP strips whitespace, IPv6 brackets and a trailing port.
func CleanIP(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		if host, _, err := net.SplitHostPort(s); err == nil {
			return host
		}
		return strings.TrimSpace(strings.Trim(s, "[]"))
	}
	if m := ipv4WithPort.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

// IsInternal reports loopback, RFC 1918 / ULA private, link-local and
// unspecified addresses. None of these may be written to public DNS.
func IsInternal(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsUnspecified()
}
