package testutil

import (
	"context"
	"time"

	"github.com/poyrazK/dyndns/internal/core/domain"
	"github.com/stretchr/testify/mock"
)

// MockRepo implements ports.KeyRepository and ports.HistoryRepository.
type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) ClaimHostname(ctx context.Context, ownership *domain.HostnameOwnership) error {
	args := m.Called(ownership)
	return args.Error(0)
}

func (m *MockRepo) GetOwnership(ctx context.Context, hostname string) (*domain.HostnameOwnership, error) {
	args := m.Called(hostname)
	if v := args.Get(0); v != nil {
		return v.(*domain.HostnameOwnership), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepo) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	args := m.Called(key)
	return args.Error(0)
}

func (m *MockRepo) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	args := m.Called(keyHash)
	if v := args.Get(0); v != nil {
		return v.(*domain.APIKey), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepo) RecordKeyUsage(ctx context.Context, keyHash string, usedAt time.Time, sourceIP string) error {
	args := m.Called(keyHash, usedAt, sourceIP)
	return args.Error(0)
}

func (m *MockRepo) RevokeAPIKey(ctx context.Context, keyHash string, revokedAt time.Time) (bool, error) {
	args := m.Called(keyHash, revokedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepo) ListAPIKeysByHostname(ctx context.Context, hostname string) ([]domain.APIKey, error) {
	args := m.Called(hostname)
	if v := args.Get(0); v != nil {
		return v.([]domain.APIKey), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepo) ListAPIKeysByOwner(ctx context.Context, ownerID string) ([]domain.APIKey, error) {
	args := m.Called(ownerID)
	if v := args.Get(0); v != nil {
		return v.([]domain.APIKey), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepo) AppendHistory(ctx context.Context, entry *domain.UpdateHistoryEntry) error {
	args := m.Called(entry)
	return args.Error(0)
}

func (m *MockRepo) ListHistory(ctx context.Context, hostname string, limit int) ([]domain.UpdateHistoryEntry, error) {
	args := m.Called(hostname, limit)
	if v := args.Get(0); v != nil {
		return v.([]domain.UpdateHistoryEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepo) Ping(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}
