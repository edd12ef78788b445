package testutil

import (
	"context"
	"testing"

	"github.com/poyrazK/dyndns/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestMockInvalidator(t *testing.T) {
	m := &MockInvalidator{}
	assert.NoError(t, m.Invalidate(context.Background(), "a.example.com.", domain.TypeA))
	assert.Equal(t, []string{"a.example.com.:A"}, m.Published())

	m.FailPub = true
	assert.Error(t, m.Invalidate(context.Background(), "b.example.com.", domain.TypeA))
	assert.Len(t, m.Published(), 1)
}

func TestMockDNSProvider(t *testing.T) {
	m := new(MockDNSProvider)
	m.On("GetARecord", "x").Return(nil, nil)
	rec, err := m.GetARecord(context.Background(), "x")
	assert.Nil(t, rec)
	assert.NoError(t, err)
	assert.Equal(t, "mock", m.Name())
}

func TestStaticIdentity(t *testing.T) {
	id, err := StaticIdentity{}.Identify(nil)
	assert.Nil(t, id)
	assert.NoError(t, err)
}
