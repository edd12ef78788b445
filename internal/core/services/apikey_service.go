package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/poyrazK/dyndns/internal/core/domain"
	"github.com/poyrazK/dyndns/internal/core/ports"
	"github.com/poyrazK/dyndns/internal/infrastructure/logging"
	"github.com/poyrazK/dyndns/internal/infrastructure/metrics"
)

const (
	// DefaultKeyLifetime is how long an issued key stays valid.
	DefaultKeyLifetime = 365 * 24 * time.Hour
	keySecretBytes     = 32
)

type apiKeyService struct {
	repo     ports.KeyRepository
	lifetime time.Duration
	now      func() time.Time
}

// APIKeyOption customizes the key service.
type APIKeyOption func(*apiKeyService)

func WithKeyLifetime(d time.Duration) APIKeyOption {
	return func(s *apiKeyService) {
		if d > 0 {
			s.lifetime = d
		}
	}
}

// WithClock replaces time.Now, mostly for expiry tests.
func WithClock(now func() time.Time) APIKeyOption {
	return func(s *apiKeyService) { s.now = now }
}

func NewAPIKeyService(repo ports.KeyRepository, opts ...APIKeyOption) ports.APIKeyService {
	s := &apiKeyService{repo: repo, lifetime: DefaultKeyLifetime, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HashKey is the digest used as the key lookup id.
func HashKey(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func (s *apiKeyService) Claim(ctx context.Context, hostname string, owner domain.Identity) error {
	return s.repo.ClaimHostname(ctx, &domain.HostnameOwnership{
		Hostname:   hostname,
		OwnerID:    owner.SubjectID,
		OwnerLabel: owner.Label(),
		ClaimedAt:  s.now().UTC(),
	})
}

func (s *apiKeyService) GetOwner(ctx context.Context, hostname string) (*domain.HostnameOwnership, error) {
	return s.repo.GetOwnership(ctx, hostname)
}

func (s *apiKeyService) IssueKey(ctx context.Context, hostname string, owner domain.Identity) (string, *domain.APIKey, error) {
	buf := make([]byte, keySecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("failed to generate key: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(buf)

	now := s.now().UTC()
	key := &domain.APIKey{
		KeyHash:    HashKey(secret),
		Hostname:   hostname,
		OwnerID:    owner.SubjectID,
		OwnerLabel: owner.Label(),
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.lifetime),
		IsActive:   true,
	}
	if err := s.repo.CreateAPIKey(ctx, key); err != nil {
		return "", nil, err
	}
	return secret, key, nil
}

func (s *apiKeyService) ValidateKey(ctx context.Context, secret, sourceIP string) (*ports.KeyValidation, error) {
	if secret == "" {
		metrics.KeyValidations.WithLabelValues("invalid").Inc()
		return nil, nil
	}

	keyHash := HashKey(secret)
	key, err := s.repo.GetAPIKeyByHash(ctx, keyHash)
	if err != nil {
		metrics.KeyValidations.WithLabelValues("error").Inc()
		return nil, err
	}

	now := s.now()
	if key == nil || !key.Usable(now) {
		metrics.KeyValidations.WithLabelValues("invalid").Inc()
		return nil, nil
	}

	if err := s.repo.RecordKeyUsage(ctx, keyHash, now.UTC(), sourceIP); err != nil {
		logging.FromContext(ctx).Warn("failed to record key usage",
			"key_hash_prefix", domain.HashPrefix(keyHash), "error", err)
	}

	metrics.KeyValidations.WithLabelValues("valid").Inc()
	return &ports.KeyValidation{Hostname: key.Hostname, KeyHash: keyHash, OwnerID: key.OwnerID}, nil
}

func (s *apiKeyService) RevokeKey(ctx context.Context, keyHash string) (bool, error) {
	return s.repo.RevokeAPIKey(ctx, keyHash, s.now().UTC())
}

func (s *apiKeyService) ListKeysForHostname(ctx context.Context, hostname string) ([]domain.APIKey, error) {
	return s.repo.ListAPIKeysByHostname(ctx, hostname)
}

func (s *apiKeyService) ListKeysForOwner(ctx context.Context, ownerID string) ([]domain.APIKey, error) {
	return s.repo.ListAPIKeysByOwner(ctx, ownerID)
}
