package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poyrazK/dyndns/internal/core/domain"
	"github.com/poyrazK/dyndns/internal/core/ports"
	"github.com/poyrazK/dyndns/internal/dyndns"
	"github.com/poyrazK/dyndns/internal/infrastructure/logging"
)

// DashboardHistoryLimit is how many history rows the manage page shows.
const DashboardHistoryLimit = 50

type ownershipService struct {
	keys      ports.APIKeyService
	history   ports.HistoryRepository
	updater   ports.RecordUpdater
	hostnames *dyndns.HostnameResolver
	now       func() time.Time
}

func NewOwnershipService(keys ports.APIKeyService, history ports.HistoryRepository, updater ports.RecordUpdater, hostnames *dyndns.HostnameResolver) ports.OwnershipService {
	return &ownershipService{
		keys:      keys,
		history:   history,
		updater:   updater,
		hostnames: hostnames,
		now:       time.Now,
	}
}

// normalize validates a hostname and makes sure it lives in the managed zone.
func (s *ownershipService) normalize(hostname string) (string, string, error) {
	name, err := domain.NormalizeHostname(hostname)
	if err != nil {
		return "", "", err
	}
	recordName, err := s.hostnames.RecordName(name)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s is not in zone %s", domain.ErrInvalidHostname, name, s.hostnames.Zone())
	}
	return name, recordName, nil
}

func (s *ownershipService) requireOwner(ctx context.Context, hostname string, caller domain.Identity) error {
	if caller.SubjectID == "" {
		return domain.ErrUnauthenticated
	}
	owner, err := s.keys.GetOwner(ctx, hostname)
	if err != nil {
		return err
	}
	if owner == nil || owner.OwnerID != caller.SubjectID {
		return fmt.Errorf("%w: you don't own %s", domain.ErrForbidden, hostname)
	}
	return nil
}

func (s *ownershipService) Dashboard(ctx context.Context, hostname string, caller domain.Identity) (*ports.Dashboard, error) {
	if caller.SubjectID == "" {
		return nil, domain.ErrUnauthenticated
	}
	name, recordName, err := s.normalize(hostname)
	if err != nil {
		return nil, err
	}

	if err := s.keys.Claim(ctx, name, caller); err != nil && !errors.Is(err, domain.ErrAlreadyClaimed) {
		return nil, err
	}
	owner, err := s.keys.GetOwner(ctx, name)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, fmt.Errorf("%w: ownership of %s", domain.ErrNotFound, name)
	}
	if owner.OwnerID != caller.SubjectID {
		return nil, fmt.Errorf("%w: you don't own %s", domain.ErrForbidden, name)
	}

	keys, err := s.keys.ListKeysForHostname(ctx, name)
	if err != nil {
		return nil, err
	}
	history, err := s.history.ListHistory(ctx, name, DashboardHistoryLimit)
	if err != nil {
		return nil, err
	}

	currentIP, err := s.updater.CurrentIP(ctx, recordName)
	if err != nil {
		logging.FromContext(ctx).Warn("failed to read current record", "record", recordName, "error", err)
	}

	now := s.now()
	views := make([]ports.KeyView, 0, len(keys))
	for _, k := range keys {
		views = append(views, ports.KeyView{
			KeyHash:        k.KeyHash,
			KeyHashPrefix:  k.HashPrefix(),
			State:          k.State(now),
			CreatedAt:      k.CreatedAt,
			ExpiresAt:      k.ExpiresAt,
			UseCount:       k.UseCount,
			LastUsedAt:     k.LastUsedAt,
			LastUsedFromIP: k.LastUsedFromIP,
			RevokedAt:      k.RevokedAt,
		})
	}
	if history == nil {
		history = []domain.UpdateHistoryEntry{}
	}

	return &ports.Dashboard{
		Hostname:  name,
		Owner:     *owner,
		CurrentIP: currentIP,
		Keys:      views,
		History:   history,
	}, nil
}

func (s *ownershipService) GenerateKey(ctx context.Context, hostname string, caller domain.Identity) (string, error) {
	name, _, err := s.normalize(hostname)
	if err != nil {
		return "", err
	}
	if err := s.requireOwner(ctx, name, caller); err != nil {
		return "", err
	}

	secret, key, err := s.keys.IssueKey(ctx, name, caller)
	if err != nil {
		return "", err
	}
	logging.FromContext(ctx).Info("api key issued", "hostname", name, "key_hash_prefix", key.HashPrefix())
	return secret, nil
}

func (s *ownershipService) RevokeKey(ctx context.Context, hostname, keyHash string, caller domain.Identity) (bool, error) {
	name, _, err := s.normalize(hostname)
	if err != nil {
		return false, err
	}
	if err := s.requireOwner(ctx, name, caller); err != nil {
		return false, err
	}

	// Only keys bound to this hostname may be revoked here.
	keys, err := s.keys.ListKeysForHostname(ctx, name)
	if err != nil {
		return false, err
	}
	for _, k := range keys {
		if k.KeyHash == keyHash {
			return s.keys.RevokeKey(ctx, keyHash)
		}
	}
	return false, nil
}

func (s *ownershipService) RevokeAll(ctx context.Context, hostname string, caller domain.Identity) (int, error) {
	name, _, err := s.normalize(hostname)
	if err != nil {
		return 0, err
	}
	if err := s.requireOwner(ctx, name, caller); err != nil {
		return 0, err
	}

	keys, err := s.keys.ListKeysForHostname(ctx, name)
	if err != nil {
		return 0, err
	}

	log := logging.FromContext(ctx)
	revoked := 0
	for _, k := range keys {
		if !k.IsActive {
			continue
		}
		ok, err := s.keys.RevokeKey(ctx, k.KeyHash)
		if err != nil {
			log.Warn("failed to revoke key", "hostname", name, "key_hash_prefix", k.HashPrefix(), "error", err)
			continue
		}
		if ok {
			revoked++
		}
	}
	return revoked, nil
}
