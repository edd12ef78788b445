// Package domain contains the core entities and protocol vocabulary of the
// dynamic DNS service.
package domain

import (
	"time"
)

// RecordType represents the type of a DNS record.
type RecordType string

const (
	// TypeA represents an IPv4 address record. It is the only type written by
	// the update engine.
	TypeA RecordType = "A"
	// TypeSOA represents a start of authority record.
	TypeSOA RecordType = "SOA"
	// TypeNS represents a name server record.
	TypeNS RecordType = "NS"
)

// DefaultRecordTTL bounds propagation delay after a real IP change.
const DefaultRecordTTL = 60

// Zone represents an authoritative DNS zone held in the zone store.
type Zone struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"` // e.g., example.com.
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Record represents a DNS resource record within a zone.
type Record struct {
	ID        string     `json:"id"`
	ZoneID    string     `json:"zone_id"`
	Name      string     `json:"name"` // fully qualified, e.g. wan1.ddns.example.com.
	Type      RecordType `json:"type"`
	Content   string     `json:"content"`
	TTL       int        `json:"ttl"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ARecord is the provider-neutral view of a single A record.
type ARecord struct {
	Name string // zone-relative record name, e.g. wan1.ddns
	IP   string
	TTL  int
}
