package services

import (
	"context"
	"errors"
	"testing"

	"github.com/poyrazK/dyndns/internal/core/domain"
	"github.com/poyrazK/dyndns/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordUpdater(t *testing.T) {
	ctx := context.Background()

	t.Run("absent record is created", func(t *testing.T) {
		p := new(testutil.MockDNSProvider)
		p.On("GetARecord", "home.ddns").Return(nil, nil)
		p.On("UpsertARecord", domain.ARecord{Name: "home.ddns", IP: "203.0.113.42", TTL: 60}).Return(nil)

		res, err := NewRecordUpdater(p, 60, 0).UpsertARecord(ctx, "home.ddns", "203.0.113.42")
		require.NoError(t, err)
		assert.True(t, res.Changed)
		assert.Empty(t, res.PreviousIP)
		p.AssertExpectations(t)
	})

	t.Run("same ip is not written", func(t *testing.T) {
		p := new(testutil.MockDNSProvider)
		p.On("GetARecord", "home.ddns").Return(&domain.ARecord{Name: "home.ddns", IP: "203.0.113.42", TTL: 60}, nil)

		res, err := NewRecordUpdater(p, 60, 0).UpsertARecord(ctx, "home.ddns", "203.0.113.42")
		require.NoError(t, err)
		assert.False(t, res.Changed)
		assert.Equal(t, "203.0.113.42", res.PreviousIP)
		p.AssertNotCalled(t, "UpsertARecord", domain.ARecord{Name: "home.ddns", IP: "203.0.113.42", TTL: 60})
	})

	t.Run("changed ip keeps previous", func(t *testing.T) {
		p := new(testutil.MockDNSProvider)
		p.On("GetARecord", "home.ddns").Return(&domain.ARecord{IP: "198.51.100.1"}, nil)
		p.On("UpsertARecord", domain.ARecord{Name: "home.ddns", IP: "203.0.113.42", TTL: 60}).Return(nil)

		res, err := NewRecordUpdater(p, 0, 0).UpsertARecord(ctx, "home.ddns", "203.0.113.42")
		require.NoError(t, err)
		assert.True(t, res.Changed)
		assert.Equal(t, "198.51.100.1", res.PreviousIP)
	})

	t.Run("provider failure", func(t *testing.T) {
		p := new(testutil.MockDNSProvider)
		p.On("GetARecord", "home.ddns").Return(nil, domain.ErrProviderFailure)

		_, err := NewRecordUpdater(p, 60, 0).UpsertARecord(ctx, "home.ddns", "203.0.113.42")
		assert.True(t, errors.Is(err, domain.ErrProviderFailure))
	})

	t.Run("current ip", func(t *testing.T) {
		p := new(testutil.MockDNSProvider)
		p.On("GetARecord", "a").Return(&domain.ARecord{IP: "203.0.113.7"}, nil)
		p.On("GetARecord", "b").Return(nil, nil)

		u := NewRecordUpdater(p, 60, 0)
		ip, err := u.CurrentIP(ctx, "a")
		assert.NoError(t, err)
		assert.Equal(t, "203.0.113.7", ip)
		ip, err = u.CurrentIP(ctx, "b")
		assert.NoError(t, err)
		assert.Empty(t, ip)
	})
}

func TestLegacyAuthenticator(t *testing.T) {
	off := NewLegacyAuthenticator(false, "admin", "pw")
	assert.False(t, off.Enabled())
	assert.False(t, off.Authenticate("admin", "pw"))

	incomplete := NewLegacyAuthenticator(true, "admin", "")
	assert.False(t, incomplete.Enabled())
	assert.False(t, incomplete.Authenticate("admin", ""))

	on := NewLegacyAuthenticator(true, "admin", "pw")
	assert.True(t, on.Enabled())
	assert.True(t, on.Authenticate("admin", "pw"))
	assert.False(t, on.Authenticate("admin", "PW"))
	assert.False(t, on.Authenticate("root", "pw"))

	var nilAuth *LegacyAuthenticator
	assert.False(t, nilAuth.Enabled())
}
