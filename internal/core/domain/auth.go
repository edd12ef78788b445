package domain

import (
	"time"
)

// AuthMethod identifies how an update request was authenticated.
type AuthMethod string

const (
	AuthNone   AuthMethod = "none"
	AuthAPIKey AuthMethod = "api_key"
	AuthLegacy AuthMethod = "legacy" // shared static credentials, kept for old devices
)

// KeyHashPrefixLen is the number of digest characters shown in dashboards and logs.
const KeyHashPrefixLen = 8

// HostnameOwnership binds exclusive update rights over a hostname to one identity.
type HostnameOwnership struct {
	Hostname   string    `json:"hostname"`
	OwnerID    string    `json:"owner_id"`
	OwnerLabel string    `json:"owner_label"` // e.g. the owner's email
	ClaimedAt  time.Time `json:"claimed_at"`
}

// APIKey is a device credential bound to one hostname. Only the digest of the
// secret is stored.
type APIKey struct {
	KeyHash        string     `json:"key_hash"`
	Hostname       string     `json:"hostname"`
	OwnerID        string     `json:"owner_id"`
	OwnerLabel     string     `json:"owner_label"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	IsActive       bool       `json:"is_active"`
	UseCount       int64      `json:"use_count"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`
	LastUsedFromIP string     `json:"last_used_from_ip,omitempty"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`
}

// Usable reports whether the key may authenticate at the given instant.
func (k *APIKey) Usable(now time.Time) bool {
	return k.IsActive && now.Before(k.ExpiresAt)
}

// State is a display label for dashboards.
func (k *APIKey) State(now time.Time) string {
	switch {
	case !k.IsActive:
		return "revoked"
	case !now.Before(k.ExpiresAt):
		return "expired"
	default:
		return "active"
	}
}

// HashPrefix returns a truncated, non-reversible reference to the key.
func (k *APIKey) HashPrefix() string {
	return HashPrefix(k.KeyHash)
}

// HashPrefix truncates a key digest for display.
func HashPrefix(keyHash string) string {
	if len(keyHash) <= KeyHashPrefixLen {
		return keyHash
	}
	return keyHash[:KeyHashPrefixLen]
}

// Identity is the human principal supplied by the hosting layer.
type Identity struct {
	SubjectID string   `json:"sub"`
	Email     string   `json:"email"`
	Roles     []string `json:"roles,omitempty"`
}

// Label is the display string stored alongside ownership records.
func (i *Identity) Label() string {
	if i.Email != "" {
		return i.Email
	}
	return i.SubjectID
}
