package ports

import (
	"context"
	"net/http"
	"time"

	"github.com/poyrazK/dyndns/internal/core/domain"
)

// KeyRepository is the durable entity store for ownership and API keys.
// Transient failures are wrapped with domain.ErrStoreUnavailable; absence is
// reported as a nil result, never as an error.
type KeyRepository interface {
	// ClaimHostname inserts the ownership row only if none exists. It returns
	// domain.ErrAlreadyClaimed when the hostname is already owned.
	ClaimHostname(ctx context.Context, ownership *domain.HostnameOwnership) error
	GetOwnership(ctx context.Context, hostname string) (*domain.HostnameOwnership, error)
	CreateAPIKey(ctx context.Context, key *domain.APIKey) error
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	RecordKeyUsage(ctx context.Context, keyHash string, usedAt time.Time, sourceIP string) error
	// RevokeAPIKey deactivates an active key and reports whether anything changed.
	RevokeAPIKey(ctx context.Context, keyHash string, revokedAt time.Time) (bool, error)
	ListAPIKeysByHostname(ctx context.Context, hostname string) ([]domain.APIKey, error)
	ListAPIKeysByOwner(ctx context.Context, ownerID string) ([]domain.APIKey, error)
	Ping(ctx context.Context) error
}

// HistoryRepository is the append-only update audit log.
type HistoryRepository interface {
	AppendHistory(ctx context.Context, entry *domain.UpdateHistoryEntry) error
	ListHistory(ctx context.Context, hostname string, limit int) ([]domain.UpdateHistoryEntry, error)
}

// DNSProvider is the external authoritative zone. Names are zone-relative
// record names. Any failure is wrapped with domain.ErrProviderFailure.
type DNSProvider interface {
	Name() string
	GetARecord(ctx context.Context, name string) (*domain.ARecord, error)
	UpsertARecord(ctx context.Context, record domain.ARecord) error
	Ping(ctx context.Context) error
}

// RecordInvalidator tells downstream caches a record changed.
type RecordInvalidator interface {
	Invalidate(ctx context.Context, fqdn string, qType domain.RecordType) error
	Ping(ctx context.Context) error
}

// IdentityProvider reads the human principal from a request. A nil identity
// with a nil error means the request is anonymous.
type IdentityProvider interface {
	Identify(r *http.Request) (*domain.Identity, error)
}

// Authenticator is a device authentication strategy used after API-key
// validation fails.
type Authenticator interface {
	Authenticate(username, secret string) bool
	Enabled() bool
}

// KeyValidation is the outcome of a successful API key check.
type KeyValidation struct {
	Hostname string
	KeyHash  string
	OwnerID  string
}

type APIKeyService interface {
	Claim(ctx context.Context, hostname string, owner domain.Identity) error
	GetOwner(ctx context.Context, hostname string) (*domain.HostnameOwnership, error)
	// IssueKey returns the plaintext secret. Callers must have verified ownership.
	IssueKey(ctx context.Context, hostname string, owner domain.Identity) (string, *domain.APIKey, error)
	// ValidateKey returns nil, nil for unknown, inactive or expired keys.
	ValidateKey(ctx context.Context, secret, sourceIP string) (*KeyValidation, error)
	RevokeKey(ctx context.Context, keyHash string) (bool, error)
	ListKeysForHostname(ctx context.Context, hostname string) ([]domain.APIKey, error)
	ListKeysForOwner(ctx context.Context, ownerID string) ([]domain.APIKey, error)
}

// UpsertResult is what the record updater did.
type UpsertResult struct {
	Changed    bool
	PreviousIP string
}

type RecordUpdater interface {
	UpsertARecord(ctx context.Context, recordName, ip string) (UpsertResult, error)
	CurrentIP(ctx context.Context, recordName string) (string, error)
}

// UpdateRequest carries everything the update engine needs from one call.
type UpdateRequest struct {
	Authorization string
	Hostname      string
	MyIP          string
	HTTP          *http.Request
}

type UpdateService interface {
	Update(ctx context.Context, req UpdateRequest) domain.ResultCode
	HealthCheck(ctx context.Context) map[string]error
	Wait()
}

// Dashboard is the plain data model behind the manage page.
type Dashboard struct {
	Hostname  string                      `json:"hostname"`
	Owner     domain.HostnameOwnership    `json:"owner"`
	CurrentIP string                      `json:"current_ip,omitempty"`
	Keys      []KeyView                   `json:"keys"`
	History   []domain.UpdateHistoryEntry `json:"history"`
}

// KeyView is an API key as shown to its owner. It never carries the secret.
type KeyView struct {
	KeyHash        string     `json:"key_hash"`
	KeyHashPrefix  string     `json:"key_hash_prefix"`
	State          string     `json:"state"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	UseCount       int64      `json:"use_count"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`
	LastUsedFromIP string     `json:"last_used_from_ip,omitempty"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`
}

type OwnershipService interface {
	// Dashboard claims the hostname if unclaimed, then returns its state.
	Dashboard(ctx context.Context, hostname string, caller domain.Identity) (*Dashboard, error)
	GenerateKey(ctx context.Context, hostname string, caller domain.Identity) (string, error)
	RevokeKey(ctx context.Context, hostname, keyHash string, caller domain.Identity) (bool, error)
	RevokeAll(ctx context.Context, hostname string, caller domain.Identity) (int, error)
}
