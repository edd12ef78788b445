package dnsprovider

import (
	"context"
	"encoding/base64"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/poyrazK/dyndns/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = base64.StdEncoding.EncodeToString([]byte("a-test-tsig-secret-of-32-bytes!!"))

// fakePrimary is an in-process authoritative server that applies UPDATEs.
type fakePrimary struct {
	mu       sync.Mutex
	records  map[string]*dns.A
	refuse   bool
	requireT bool
	updates  int
}

func (f *fakePrimary) ServeDNS(w dns.ResponseWriter, r *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(r)

	if f.requireT && (r.IsTsig() == nil || w.TsigStatus() != nil) {
		m.Rcode = dns.RcodeNotAuth
		_ = w.WriteMsg(m)
		return
	}
	if t := r.IsTsig(); t != nil {
		m.SetTsig(t.Hdr.Name, t.Algorithm, 300, time.Now().Unix())
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case f.refuse:
		m.Rcode = dns.RcodeRefused
	case r.Opcode == dns.OpcodeUpdate:
		f.updates++
		for _, rr := range r.Ns {
			h := rr.Header()
			switch {
			case h.Class == dns.ClassANY && h.Rrtype == dns.TypeA:
				delete(f.records, h.Name)
			case h.Class == dns.ClassINET:
				if a, ok := rr.(*dns.A); ok {
					f.records[h.Name] = a
				}
			}
		}
	default:
		q := r.Question[0]
		switch q.Qtype {
		case dns.TypeSOA:
			m.Answer = append(m.Answer, &dns.SOA{Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeSOA, Class: dns.ClassINET, Ttl: 3600}, Ns: "ns1." + q.Name, Mbox: "hostmaster." + q.Name, Serial: 1})
		case dns.TypeA:
			if a, ok := f.records[q.Name]; ok {
				m.Answer = append(m.Answer, a)
			} else {
				m.Rcode = dns.RcodeNameError
			}
		}
	}
	_ = w.WriteMsg(m)
}

func startPrimary(t *testing.T, f *fakePrimary, tsig map[string]string) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: f, TsigSecret: tsig, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

func TestRFC2136Provider_UpsertAndGet(t *testing.T) {
	f := &fakePrimary{records: map[string]*dns.A{}}
	addr := startPrimary(t, f, nil)
	p := NewRFC2136Provider(RFC2136Config{Server: addr, Zone: "example.com", Timeout: time.Second})
	ctx := context.Background()

	rec, err := p.GetARecord(ctx, "home.ddns")
	require.NoError(t, err)
	assert.Nil(t, rec, "NXDOMAIN is absence")

	require.NoError(t, p.UpsertARecord(ctx, domain.ARecord{Name: "home.ddns", IP: "203.0.113.42", TTL: 60}))
	require.NoError(t, p.UpsertARecord(ctx, domain.ARecord{Name: "home.ddns", IP: "203.0.113.43", TTL: 60}))

	rec, err = p.GetARecord(ctx, "home.ddns")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "203.0.113.43", rec.IP)
	assert.Equal(t, 60, rec.TTL)
	assert.Equal(t, 2, f.updates)

	assert.NoError(t, p.Ping(ctx))
	assert.Equal(t, "rfc2136", p.Name())
}

func TestRFC2136Provider_TSIG(t *testing.T) {
	f := &fakePrimary{records: map[string]*dns.A{}, requireT: true}
	addr := startPrimary(t, f, map[string]string{"ddns-key.": testSecret})
	ctx := context.Background()

	signed := NewRFC2136Provider(RFC2136Config{Server: addr, Zone: "example.com.", TSIGKeyName: "ddns-key", TSIGSecret: testSecret, Timeout: time.Second})
	require.NoError(t, signed.UpsertARecord(ctx, domain.ARecord{Name: "home.ddns", IP: "203.0.113.42", TTL: 60}))

	unsigned := NewRFC2136Provider(RFC2136Config{Server: addr, Zone: "example.com.", Timeout: time.Second})
	err := unsigned.UpsertARecord(ctx, domain.ARecord{Name: "home.ddns", IP: "203.0.113.42", TTL: 60})
	assert.True(t, errors.Is(err, domain.ErrProviderFailure))
}

func TestRFC2136Provider_Failures(t *testing.T) {
	f := &fakePrimary{records: map[string]*dns.A{}, refuse: true}
	addr := startPrimary(t, f, nil)
	p := NewRFC2136Provider(RFC2136Config{Server: addr, Zone: "example.com", Timeout: time.Second})
	ctx := context.Background()

	_, err := p.GetARecord(ctx, "home.ddns")
	assert.ErrorIs(t, err, domain.ErrProviderFailure)

	err = p.UpsertARecord(ctx, domain.ARecord{Name: "home.ddns", IP: "203.0.113.42", TTL: 60})
	assert.ErrorIs(t, err, domain.ErrProviderFailure)

	err = p.UpsertARecord(ctx, domain.ARecord{Name: "home.ddns", IP: "2001:db8::1", TTL: 60})
	assert.ErrorIs(t, err, domain.ErrProviderFailure)

	assert.ErrorIs(t, p.Ping(ctx), domain.ErrProviderFailure)
}

func TestRFC2136Provider_Unreachable(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := pc.LocalAddr().String()
	pc.Close()

	p := NewRFC2136Provider(RFC2136Config{Server: addr, Zone: "example.com", Timeout: 200 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err = p.GetARecord(ctx, "home.ddns")
	assert.ErrorIs(t, err, domain.ErrProviderFailure)
}
