// Package memory provides process-local implementations of the entity store
// and DNS zone. Nothing survives a restart; use it for development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/poyrazK/dyndns/internal/core/domain"
)

// Store implements ports.KeyRepository and ports.HistoryRepository.
type Store struct {
	mu         sync.RWMutex
	ownerships map[string]domain.HostnameOwnership // key: lowercase hostname
	keys       map[string]domain.APIKey            // key: key hash
	history    []domain.UpdateHistoryEntry
}

func NewStore() *Store {
	return &Store{
		ownerships: make(map[string]domain.HostnameOwnership),
		keys:       make(map[string]domain.APIKey),
	}
}

func (s *Store) ClaimHostname(_ context.Context, ownership *domain.HostnameOwnership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(ownership.Hostname)
	if _, found := s.ownerships[key]; found {
		return domain.ErrAlreadyClaimed
	}
	s.ownerships[key] = *ownership
	return nil
}

func (s *Store) GetOwnership(_ context.Context, hostname string) (*domain.HostnameOwnership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, found := s.ownerships[strings.ToLower(hostname)]
	if !found {
		return nil, nil
	}
	return &o, nil
}

func (s *Store) CreateAPIKey(_ context.Context, key *domain.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key.KeyHash] = *key
	return nil
}

func (s *Store) GetAPIKeyByHash(_ context.Context, keyHash string) (*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k, found := s.keys[keyHash]
	if !found {
		return nil, nil
	}
	return &k, nil
}

func (s *Store) RecordKeyUsage(_ context.Context, keyHash string, usedAt time.Time, sourceIP string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, found := s.keys[keyHash]
	if !found {
		return nil
	}
	k.UseCount++
	k.LastUsedAt = &usedAt
	k.LastUsedFromIP = sourceIP
	s.keys[keyHash] = k
	return nil
}

func (s *Store) RevokeAPIKey(_ context.Context, keyHash string, revokedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, found := s.keys[keyHash]
	if !found || !k.IsActive {
		return false, nil
	}
	k.IsActive = false
	k.RevokedAt = &revokedAt
	s.keys[keyHash] = k
	return true, nil
}

func (s *Store) ListAPIKeysByHostname(_ context.Context, hostname string) ([]domain.APIKey, error) {
	return s.listKeys(func(k domain.APIKey) bool { return strings.EqualFold(k.Hostname, hostname) }), nil
}

func (s *Store) ListAPIKeysByOwner(_ context.Context, ownerID string) ([]domain.APIKey, error) {
	return s.listKeys(func(k domain.APIKey) bool { return k.OwnerID == ownerID }), nil
}

// listKeys returns matching keys, newest first.
func (s *Store) listKeys(match func(domain.APIKey) bool) []domain.APIKey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.APIKey
	for _, k := range s.keys {
		if match(k) {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Store) AppendHistory(_ context.Context, entry *domain.UpdateHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, *entry)
	return nil
}

func (s *Store) ListHistory(_ context.Context, hostname string, limit int) ([]domain.UpdateHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.UpdateHistoryEntry
	for _, e := range s.history {
		if strings.EqualFold(e.Hostname, hostname) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Ping(_ context.Context) error { return nil }
