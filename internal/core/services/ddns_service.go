package services

import (
	"context"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/poyrazK/dyndns/internal/core/domain"
	"github.com/poyrazK/dyndns/internal/core/ports"
	"github.com/poyrazK/dyndns/internal/dyndns"
	"github.com/poyrazK/dyndns/internal/infrastructure/logging"
	"github.com/poyrazK/dyndns/internal/infrastructure/metrics"
)

const auditTimeout = 5 * time.Second

// Pinger is anything whose liveness the health endpoint reports.
type Pinger interface {
	Ping(ctx context.Context) error
}

// UpdateDeps wires the update engine. Legacy and Invalidator are optional.
type UpdateDeps struct {
	Keys        ports.APIKeyService
	Legacy      ports.Authenticator
	Updater     ports.RecordUpdater
	History     ports.HistoryRepository
	Invalidator ports.RecordInvalidator
	Hostnames   *dyndns.HostnameResolver
	IPs         *dyndns.IPResolver
	Timeout     time.Duration

	// Health maps a dependency name to its liveness probe.
	Health map[string]Pinger
}

type updateService struct {
	UpdateDeps
	wg sync.WaitGroup
}

// attempt collects what the audit row needs as the pipeline advances.
type attempt struct {
	hostname   string
	ip         string
	oldIP      string
	authMethod domain.AuthMethod
	keyHash    string
	keyHost    string
	keyOwner   string
	recordName string
}

func NewUpdateService(deps UpdateDeps) ports.UpdateService {
	if deps.IPs == nil {
		deps.IPs = dyndns.NewIPResolver(nil)
	}
	return &updateService{UpdateDeps: deps}
}

// Update runs one DynDNS2 request through the pipeline and always returns a
// protocol token. It never returns internal error detail.
func (s *updateService) Update(ctx context.Context, req ports.UpdateRequest) domain.ResultCode {
	start := time.Now()
	if req.HTTP == nil {
		req.HTTP = &http.Request{Header: http.Header{}}
	}

	a := &attempt{
		hostname:   strings.ToLower(strings.TrimSuffix(strings.TrimSpace(req.Hostname), ".")),
		authMethod: domain.AuthNone,
	}
	code := s.run(ctx, req, a)
	elapsed := time.Since(start)

	metrics.UpdatesTotal.WithLabelValues(string(code), string(a.authMethod)).Inc()
	metrics.UpdateDuration.Observe(elapsed.Seconds())
	logging.FromContext(ctx).Info("ddns update",
		"hostname", a.hostname,
		"result", string(code),
		"auth_method", string(a.authMethod),
		"key_hash_prefix", domain.HashPrefix(a.keyHash),
		"ip", a.ip,
		"duration_ms", elapsed.Milliseconds(),
	)

	s.audit(ctx, &domain.UpdateHistoryEntry{
		ID:             uuid.New().String(),
		Hostname:       a.hostname,
		Timestamp:      start.UTC(),
		IPAddress:      a.ip,
		OldIPAddress:   a.oldIP,
		Success:        code.Success(),
		ResultCode:     code,
		AuthMethod:     a.authMethod,
		KeyHashPrefix:  domain.HashPrefix(a.keyHash),
		ResponseTimeMs: elapsed.Milliseconds(),
	})
	return code
}

func (s *updateService) run(ctx context.Context, req ports.UpdateRequest, a *attempt) domain.ResultCode {
	log := logging.FromContext(ctx)

	// 1. authenticate
	creds, ok := dyndns.ParseBasicAuth(req.Authorization)
	if !ok {
		return domain.ResultBadAuth
	}

	kctx, cancel := s.withTimeout(ctx)
	validation, err := s.Keys.ValidateKey(kctx, creds.Secret, s.IPs.Detect(req.HTTP))
	cancel()
	if err != nil {
		log.Error("api key validation failed", "error", err)
		return domain.Result911
	}
	switch {
	case validation != nil:
		a.authMethod = domain.AuthAPIKey
		a.keyHash = validation.KeyHash
		a.keyHost = strings.ToLower(strings.TrimSuffix(validation.Hostname, "."))
		a.keyOwner = validation.OwnerID
	case s.Legacy != nil && s.Legacy.Authenticate(creds.Username, creds.Secret):
		a.authMethod = domain.AuthLegacy
	default:
		return domain.ResultBadAuth
	}

	// 2. hostname presence
	if a.hostname == "" {
		return domain.ResultNotFQDN
	}
	if _, err := domain.NormalizeHostname(a.hostname); err != nil {
		return domain.ResultNotFQDN
	}

	// 3. client ip
	ip, err := s.IPs.Resolve(req.HTTP, req.MyIP)
	if err != nil {
		log.Warn("could not determine client ip", "error", err)
		return domain.Result911
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Unmap().Is4() {
		return domain.Result911
	}
	a.ip = addr.Unmap().String()

	// 4. scope
	if a.authMethod == domain.AuthAPIKey {
		if !hostnameInScope(a.keyHost, a.hostname) {
			return domain.ResultNoHost
		}
		// A parent name claimed by someone else stays theirs.
		if a.keyHost != a.hostname {
			octx, cancel := s.withTimeout(ctx)
			owner, err := s.Keys.GetOwner(octx, a.hostname)
			cancel()
			if err != nil {
				log.Error("ownership lookup failed", "hostname", a.hostname, "error", err)
				return domain.Result911
			}
			if owner != nil && owner.OwnerID != a.keyOwner {
				return domain.ResultNoHost
			}
		}
	}

	// 5. record name
	recordName, err := s.Hostnames.RecordName(a.hostname)
	if err != nil {
		return domain.ResultNoHost
	}
	a.recordName = recordName

	// 6. dns
	res, err := s.Updater.UpsertARecord(ctx, recordName, a.ip)
	if err != nil {
		log.Error("dns update failed", "record", recordName, "error", err)
		return domain.Result911
	}
	a.oldIP = res.PreviousIP
	if !res.Changed {
		return domain.ResultNoChg
	}

	s.invalidate(ctx, s.Hostnames.FQDN(recordName))
	return domain.ResultGood
}

// hostnameInScope reports whether a key bound to keyHost may update
// requested: the names are equal, or keyHost is exactly one label below it.
func hostnameInScope(keyHost, requested string) bool {
	keyHost = strings.ToLower(strings.TrimSuffix(keyHost, "."))
	requested = strings.ToLower(strings.TrimSuffix(requested, "."))
	if keyHost == "" || requested == "" {
		return false
	}
	if keyHost == requested {
		return true
	}
	label, ok := strings.CutSuffix(keyHost, "."+requested)
	return ok && label != "" && !strings.Contains(label, ".")
}

func (s *updateService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.Timeout)
}

// audit writes the history row in the background. Failures are counted and
// logged, never returned.
func (s *updateService) audit(ctx context.Context, entry *domain.UpdateHistoryEntry) {
	if s.History == nil {
		return
	}
	log := logging.FromContext(ctx)
	actx := logging.WithLogger(context.WithoutCancel(ctx), log)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				metrics.AuditFailures.Inc()
				log.Error("audit write panicked", "panic", r)
			}
		}()

		wctx, cancel := context.WithTimeout(actx, auditTimeout)
		defer cancel()
		if err := s.History.AppendHistory(wctx, entry); err != nil {
			metrics.AuditFailures.Inc()
			log.Warn("failed to write update history", "hostname", entry.Hostname, "error", err)
		}
	}()
}

func (s *updateService) invalidate(ctx context.Context, fqdn string) {
	if s.Invalidator == nil {
		return
	}
	log := logging.FromContext(ctx)
	ictx := context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		wctx, cancel := context.WithTimeout(ictx, auditTimeout)
		defer cancel()
		if err := s.Invalidator.Invalidate(wctx, fqdn, domain.TypeA); err != nil {
			log.Warn("failed to publish invalidation", "name", fqdn, "error", err)
		}
	}()
}

// Wait blocks until background audit and invalidation writes finish.
func (s *updateService) Wait() {
	s.wg.Wait()
}

func (s *updateService) HealthCheck(ctx context.Context) map[string]error {
	results := make(map[string]error, len(s.Health))
	for name, p := range s.Health {
		pctx, cancel := s.withTimeout(ctx)
		results[name] = p.Ping(pctx)
		cancel()
	}
	return results
}
