package services

import (
	"context"
	"time"

	"github.com/poyrazK/dyndns/internal/core/domain"
	"github.com/poyrazK/dyndns/internal/core/ports"
	"github.com/poyrazK/dyndns/internal/infrastructure/metrics"
)

type recordUpdater struct {
	provider ports.DNSProvider
	ttl      int
	timeout  time.Duration
}

// NewRecordUpdater wraps a provider with the read-compare-write rule for
// dynamic A records. A zero timeout leaves the caller's deadline alone.
func NewRecordUpdater(provider ports.DNSProvider, ttl int, timeout time.Duration) ports.RecordUpdater {
	if ttl <= 0 {
		ttl = domain.DefaultRecordTTL
	}
	return &recordUpdater{provider: provider, ttl: ttl, timeout: timeout}
}

func (u *recordUpdater) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if u.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, u.timeout)
}

func (u *recordUpdater) UpsertARecord(ctx context.Context, recordName, ip string) (ports.UpsertResult, error) {
	ctx, cancel := u.withTimeout(ctx)
	defer cancel()

	current, err := u.provider.GetARecord(ctx, recordName)
	metrics.ProviderOperations.WithLabelValues(u.provider.Name(), "get", metrics.Outcome(err)).Inc()
	if err != nil {
		return ports.UpsertResult{}, err
	}

	var previous string
	if current != nil {
		previous = current.IP
		if current.IP == ip {
			return ports.UpsertResult{Changed: false, PreviousIP: previous}, nil
		}
	}

	err = u.provider.UpsertARecord(ctx, domain.ARecord{Name: recordName, IP: ip, TTL: u.ttl})
	metrics.ProviderOperations.WithLabelValues(u.provider.Name(), "upsert", metrics.Outcome(err)).Inc()
	if err != nil {
		return ports.UpsertResult{}, err
	}
	return ports.UpsertResult{Changed: true, PreviousIP: previous}, nil
}

func (u *recordUpdater) CurrentIP(ctx context.Context, recordName string) (string, error) {
	ctx, cancel := u.withTimeout(ctx)
	defer cancel()

	current, err := u.provider.GetARecord(ctx, recordName)
	metrics.ProviderOperations.WithLabelValues(u.provider.Name(), "get", metrics.Outcome(err)).Inc()
	if err != nil || current == nil {
		return "", err
	}
	return current.IP, nil
}
