package testutil

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/poyrazK/dyndns/internal/core/domain"
	"github.com/stretchr/testify/mock"
)

// MockDNSProvider implements ports.DNSProvider for testing.
type MockDNSProvider struct {
	mock.Mock
}

func (m *MockDNSProvider) Name() string { return "mock" }

func (m *MockDNSProvider) GetARecord(ctx context.Context, name string) (*domain.ARecord, error) {
	args := m.Called(name)
	if v := args.Get(0); v != nil {
		return v.(*domain.ARecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDNSProvider) UpsertARecord(ctx context.Context, record domain.ARecord) error {
	args := m.Called(record)
	return args.Error(0)
}

func (m *MockDNSProvider) Ping(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}

// MockInvalidator records published invalidations.
type MockInvalidator struct {
	mu      sync.Mutex
	Names   []string
	FailPub bool
}

func (m *MockInvalidator) Invalidate(_ context.Context, fqdn string, qType domain.RecordType) error {
	if m.FailPub {
		return errors.New("publish failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Names = append(m.Names, fqdn+":"+string(qType))
	return nil
}

func (m *MockInvalidator) Ping(_ context.Context) error { return nil }

func (m *MockInvalidator) Published() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Names...)
}

// StaticIdentity implements ports.IdentityProvider returning a fixed identity.
// A nil Identity means every request is anonymous.
type StaticIdentity struct {
	Identity *domain.Identity
	Err      error
}

func (s StaticIdentity) Identify(_ *http.Request) (*domain.Identity, error) {
	return s.Identity, s.Err
}
