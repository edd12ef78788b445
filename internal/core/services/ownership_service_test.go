package services

import (
	"context"
	"errors"
	"testing"

	"github.com/poyrazK/dyndns/internal/adapters/memory"
	"github.com/poyrazK/dyndns/internal/core/domain"
	"github.com/poyrazK/dyndns/internal/core/ports"
	"github.com/poyrazK/dyndns/internal/dyndns"
	"github.com/poyrazK/dyndns/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var bob = domain.Identity{SubjectID: "bob-sub", Email: "bob@example.com"}

func newOwnership(t *testing.T) (ports.OwnershipService, ports.APIKeyService, *memory.Store, *memory.Zone) {
	t.Helper()
	store := memory.NewStore()
	zone := memory.NewZone()
	keys := NewAPIKeyService(store)
	svc := NewOwnershipService(keys, store, NewRecordUpdater(zone, 60, 0), dyndns.NewHostnameResolver("example.com", "ddns"))
	return svc, keys, store, zone
}

func TestOwnership_DashboardClaimsThenShows(t *testing.T) {
	svc, _, store, zone := newOwnership(t)
	ctx := context.Background()
	require.NoError(t, zone.UpsertARecord(ctx, domain.ARecord{Name: "home.ddns", IP: "203.0.113.5", TTL: 60}))

	d, err := svc.Dashboard(ctx, "Home.DDNS.example.com.", alice)
	require.NoError(t, err)
	assert.Equal(t, "home.ddns.example.com", d.Hostname)
	assert.Equal(t, alice.SubjectID, d.Owner.OwnerID)
	assert.Equal(t, "alice@example.com", d.Owner.OwnerLabel)
	assert.Equal(t, "203.0.113.5", d.CurrentIP)
	assert.Empty(t, d.Keys)
	assert.NotNil(t, d.History)

	o, _ := store.GetOwnership(ctx, "home.ddns.example.com")
	require.NotNil(t, o)

	// same owner again is idempotent
	_, err = svc.Dashboard(ctx, "home.ddns.example.com", alice)
	assert.NoError(t, err)

	_, err = svc.Dashboard(ctx, "home.ddns.example.com", bob)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestOwnership_DashboardRejects(t *testing.T) {
	svc, _, _, _ := newOwnership(t)
	ctx := context.Background()

	_, err := svc.Dashboard(ctx, "home.ddns.example.com", domain.Identity{})
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = svc.Dashboard(ctx, "bad host!", alice)
	assert.ErrorIs(t, err, domain.ErrInvalidHostname)

	_, err = svc.Dashboard(ctx, "home.example.org", alice)
	assert.ErrorIs(t, err, domain.ErrInvalidHostname)
}

func TestOwnership_GenerateKey(t *testing.T) {
	svc, keys, _, _ := newOwnership(t)
	ctx := context.Background()

	_, err := svc.GenerateKey(ctx, "home.ddns.example.com", alice)
	assert.ErrorIs(t, err, domain.ErrForbidden, "unclaimed hostname")

	_, err = svc.Dashboard(ctx, "home.ddns.example.com", alice)
	require.NoError(t, err)

	secret, err := svc.GenerateKey(ctx, "home.ddns.example.com", alice)
	require.NoError(t, err)
	v, err := keys.ValidateKey(ctx, secret, "")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "home.ddns.example.com", v.Hostname)

	_, err = svc.GenerateKey(ctx, "home.ddns.example.com", bob)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	d, err := svc.Dashboard(ctx, "home.ddns.example.com", alice)
	require.NoError(t, err)
	require.Len(t, d.Keys, 1)
	assert.Equal(t, HashKey(secret), d.Keys[0].KeyHash)
	assert.Equal(t, HashKey(secret)[:8], d.Keys[0].KeyHashPrefix)
	assert.Equal(t, "active", d.Keys[0].State)
}

func TestOwnership_RevokeKey(t *testing.T) {
	svc, keys, _, _ := newOwnership(t)
	ctx := context.Background()

	_, err := svc.Dashboard(ctx, "home.ddns.example.com", alice)
	require.NoError(t, err)
	_, err = svc.Dashboard(ctx, "work.ddns.example.com", bob)
	require.NoError(t, err)

	secret, err := svc.GenerateKey(ctx, "home.ddns.example.com", alice)
	require.NoError(t, err)
	bobSecret, err := svc.GenerateKey(ctx, "work.ddns.example.com", bob)
	require.NoError(t, err)

	_, err = svc.RevokeKey(ctx, "home.ddns.example.com", HashKey(secret), bob)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	ok, err := svc.RevokeKey(ctx, "home.ddns.example.com", HashKey(bobSecret), alice)
	require.NoError(t, err)
	assert.False(t, ok, "key of another hostname is untouched")
	v, _ := keys.ValidateKey(ctx, bobSecret, "")
	assert.NotNil(t, v)

	ok, err = svc.RevokeKey(ctx, "home.ddns.example.com", HashKey(secret), alice)
	require.NoError(t, err)
	assert.True(t, ok)
	v, _ = keys.ValidateKey(ctx, secret, "")
	assert.Nil(t, v)

	ok, err = svc.RevokeKey(ctx, "home.ddns.example.com", HashKey(secret), alice)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOwnership_RevokeAll(t *testing.T) {
	svc, keys, _, _ := newOwnership(t)
	ctx := context.Background()

	_, err := svc.Dashboard(ctx, "home.ddns.example.com", alice)
	require.NoError(t, err)
	var secrets []string
	for i := 0; i < 3; i++ {
		s, err := svc.GenerateKey(ctx, "home.ddns.example.com", alice)
		require.NoError(t, err)
		secrets = append(secrets, s)
	}
	_, err = keys.RevokeKey(ctx, HashKey(secrets[0]))
	require.NoError(t, err)

	n, err := svc.RevokeAll(ctx, "home.ddns.example.com", alice)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, s := range secrets {
		v, _ := keys.ValidateKey(ctx, s, "")
		assert.Nil(t, v)
	}
}

func TestOwnership_RevokeAllContinuesOnError(t *testing.T) {
	repo := new(testutil.MockRepo)
	owner := &domain.HostnameOwnership{Hostname: "home.ddns.example.com", OwnerID: alice.SubjectID}
	repo.On("GetOwnership", "home.ddns.example.com").Return(owner, nil)
	repo.On("ListAPIKeysByHostname", "home.ddns.example.com").Return([]domain.APIKey{
		{KeyHash: "k1", IsActive: true},
		{KeyHash: "k2", IsActive: true},
		{KeyHash: "k3", IsActive: true},
	}, nil)
	repo.On("RevokeAPIKey", "k1", mock.Anything).Return(true, nil)
	repo.On("RevokeAPIKey", "k2", mock.Anything).Return(false, errors.New("timeout"))
	repo.On("RevokeAPIKey", "k3", mock.Anything).Return(true, nil)

	svc := NewOwnershipService(NewAPIKeyService(repo), repo, NewRecordUpdater(memory.NewZone(), 60, 0), dyndns.NewHostnameResolver("example.com", "ddns"))
	n, err := svc.RevokeAll(context.Background(), "home.ddns.example.com", alice)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	repo.AssertNumberOfCalls(t, "RevokeAPIKey", 3)
}

func TestOwnership_ClaimConflictSurfacesStoreErrors(t *testing.T) {
	repo := new(testutil.MockRepo)
	repo.On("ClaimHostname", mock.Anything).Return(domain.ErrStoreUnavailable)

	svc := NewOwnershipService(NewAPIKeyService(repo), repo, NewRecordUpdater(memory.NewZone(), 60, 0), dyndns.NewHostnameResolver("example.com", "ddns"))
	_, err := svc.Dashboard(context.Background(), "home.ddns.example.com", alice)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
