// Package dnsprovider publishes dynamic A records to an external
// authoritative server using RFC 2136 UPDATE messages.
package dnsprovider

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/poyrazK/dyndns/internal/core/domain"
)

const tsigFudge = 300

// RFC2136Config holds the primary server address and optional TSIG key.
type RFC2136Config struct {
	Server        string // host:port
	Zone          string
	TSIGKeyName   string
	TSIGSecret    string // base64
	TSIGAlgorithm string // e.g. dns.HmacSHA256
	Timeout       time.Duration
}

// RFC2136Provider implements ports.DNSProvider.
type RFC2136Provider struct {
	server  string
	zone    string
	keyName string
	alg     string
	client  *dns.Client
}

func NewRFC2136Provider(cfg RFC2136Config) *RFC2136Provider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	p := &RFC2136Provider{
		server: cfg.Server,
		zone:   dns.Fqdn(strings.ToLower(cfg.Zone)),
		alg:    cfg.TSIGAlgorithm,
		client: &dns.Client{Net: "udp", Timeout: timeout},
	}
	if p.alg == "" {
		p.alg = dns.HmacSHA256
	}
	if cfg.TSIGKeyName != "" && cfg.TSIGSecret != "" {
		p.keyName = dns.Fqdn(cfg.TSIGKeyName)
		p.client.TsigSecret = map[string]string{p.keyName: cfg.TSIGSecret}
	}
	return p
}

func (p *RFC2136Provider) Name() string { return "rfc2136" }

func (p *RFC2136Provider) fqdn(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, ".")) + "." + p.zone
}

func providerErr(op string, err error) error {
	return fmt.Errorf("%w: rfc2136 %s: %w", domain.ErrProviderFailure, op, err)
}

func (p *RFC2136Provider) exchange(ctx context.Context, m *dns.Msg) (*dns.Msg, error) {
	if p.keyName != "" {
		m.SetTsig(p.keyName, p.alg, tsigFudge, time.Now().Unix())
	}
	r, _, err := p.client.ExchangeContext(ctx, m, p.server)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (p *RFC2136Provider) GetARecord(ctx context.Context, name string) (*domain.ARecord, error) {
	m := new(dns.Msg)
	m.SetQuestion(p.fqdn(name), dns.TypeA)
	m.RecursionDesired = false

	r, err := p.exchange(ctx, m)
	if err != nil {
		return nil, providerErr("query", err)
	}
	switch r.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, nil
	default:
		return nil, providerErr("query", fmt.Errorf("rcode %s", dns.RcodeToString[r.Rcode]))
	}

	for _, rr := range r.Answer {
		if a, ok := rr.(*dns.A); ok {
			return &domain.ARecord{Name: name, IP: a.A.String(), TTL: int(a.Hdr.Ttl)}, nil
		}
	}
	return nil, nil
}

// UpsertARecord deletes the A RRset at name and adds the new address in a
// single UPDATE message.
func (p *RFC2136Provider) UpsertARecord(ctx context.Context, record domain.ARecord) error {
	ip := net.ParseIP(record.IP).To4()
	if ip == nil {
		return providerErr("update", fmt.Errorf("%q is not an IPv4 address", record.IP))
	}
	fqdn := p.fqdn(record.Name)

	m := new(dns.Msg)
	m.SetUpdate(p.zone)
	m.RemoveRRset([]dns.RR{&dns.A{Hdr: dns.RR_Header{Name: fqdn, Rrtype: dns.TypeA, Class: dns.ClassINET}}})
	m.Insert([]dns.RR{&dns.A{
		Hdr: dns.RR_Header{Name: fqdn, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: uint32(record.TTL)},
		A:   ip,
	}})

	r, err := p.exchange(ctx, m)
	if err != nil {
		return providerErr("update", err)
	}
	if r.Rcode != dns.RcodeSuccess {
		return providerErr("update", fmt.Errorf("rcode %s", dns.RcodeToString[r.Rcode]))
	}
	return nil
}

// Ping asks the primary for the zone SOA.
func (p *RFC2136Provider) Ping(ctx context.Context) error {
	m := new(dns.Msg)
	m.SetQuestion(p.zone, dns.TypeSOA)
	r, err := p.exchange(ctx, m)
	if err != nil {
		return providerErr("ping", err)
	}
	if r.Rcode != dns.RcodeSuccess {
		return providerErr("ping", fmt.Errorf("rcode %s", dns.RcodeToString[r.Rcode]))
	}
	return nil
}
