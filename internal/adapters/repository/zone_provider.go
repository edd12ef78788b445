package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/poyrazK/dyndns/internal/core/domain"
)

// ZoneProvider implements ports.DNSProvider on the dns_zones/dns_records
// tables an authoritative server reads from. Record names are stored as
// FQDNs with a trailing dot.
type ZoneProvider struct {
	db       *sql.DB
	zoneName string // "example.com."
	ns       string
}

// NewZoneProvider creates a provider for zone. ns is the primary nameserver
// written into the default SOA and NS records when the zone is bootstrapped.
func NewZoneProvider(db *sql.DB, zone, ns string) *ZoneProvider {
	zone = strings.ToLower(strings.TrimSuffix(zone, ".")) + "."
	if ns == "" {
		ns = "ns1." + zone
	}
	return &ZoneProvider{db: db, zoneName: zone, ns: ns}
}

func (p *ZoneProvider) Name() string { return "postgres" }

func providerErr(op string, err error) error {
	return fmt.Errorf("%w: postgres %s: %w", domain.ErrProviderFailure, op, err)
}

func (p *ZoneProvider) fqdn(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, ".")) + "." + p.zoneName
}

// EnsureZone creates the zone with default SOA and NS records if it does
// not exist yet.
func (p *ZoneProvider) EnsureZone(ctx context.Context) error {
	now := time.Now().UTC()
	zone := domain.Zone{
		ID:          uuid.New().String(),
		Name:        p.zoneName,
		Description: "dynamic dns zone",
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tx, errTx := p.db.BeginTx(ctx, nil)
	if errTx != nil {
		return providerErr("begin", errTx)
	}
	defer func() {
		if errRollback := tx.Rollback(); errRollback != nil && !errors.Is(errRollback, sql.ErrTxDone) {
			slog.Warn("failed to rollback transaction", "error", errRollback)
		}
	}()

	zoneQuery := `INSERT INTO dns_zones (id, tenant_id, name, description, created_at, updated_at)
	              VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (name) DO NOTHING`
	res, errExec := tx.ExecContext(ctx, zoneQuery, zone.ID, zone.TenantID, zone.Name, zone.Description, zone.CreatedAt, zone.UpdatedAt)
	if errExec != nil {
		return providerErr("create zone", errExec)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	// Format: "ns1.example.com. hostmaster.example.com. 2024021101 3600 600 1209600 300"
	soa := fmt.Sprintf("%s hostmaster.%s %s 3600 600 1209600 300", p.ns, p.zoneName, now.Format("2006010215"))
	records := []domain.Record{
		{ID: uuid.New().String(), ZoneID: zone.ID, Name: zone.Name, Type: domain.TypeSOA, Content: soa, TTL: 3600, CreatedAt: now, UpdatedAt: now},
		{ID: uuid.New().String(), ZoneID: zone.ID, Name: zone.Name, Type: domain.TypeNS, Content: p.ns, TTL: 3600, CreatedAt: now, UpdatedAt: now},
	}
	recordQuery := `INSERT INTO dns_records (id, zone_id, name, type, content, ttl, created_at, updated_at)
	                VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for _, rec := range records {
		if _, err := tx.ExecContext(ctx, recordQuery, rec.ID, rec.ZoneID, rec.Name, string(rec.Type), rec.Content, rec.TTL, rec.CreatedAt, rec.UpdatedAt); err != nil {
			return providerErr("create zone records", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return providerErr("commit", err)
	}
	return nil
}

func (p *ZoneProvider) GetARecord(ctx context.Context, name string) (*domain.ARecord, error) {
	query := `SELECT r.content, r.ttl FROM dns_records r JOIN dns_zones z ON r.zone_id = z.id
	          WHERE LOWER(z.name) = LOWER($1) AND LOWER(r.name) = LOWER($2) AND r.type = 'A'
	          ORDER BY r.updated_at DESC LIMIT 1`
	rec := domain.ARecord{Name: name}
	errRow := p.db.QueryRowContext(ctx, query, p.zoneName, p.fqdn(name)).Scan(&rec.IP, &rec.TTL)
	if errors.Is(errRow, sql.ErrNoRows) {
		return nil, nil
	}
	if errRow != nil {
		return nil, providerErr("get record", errRow)
	}
	return &rec, nil
}

// UpsertARecord replaces every A record at name with a single record.
func (p *ZoneProvider) UpsertARecord(ctx context.Context, record domain.ARecord) error {
	tx, errTx := p.db.BeginTx(ctx, nil)
	if errTx != nil {
		return providerErr("begin", errTx)
	}
	defer func() {
		if errRollback := tx.Rollback(); errRollback != nil && !errors.Is(errRollback, sql.ErrTxDone) {
			slog.Warn("failed to rollback transaction", "error", errRollback)
		}
	}()

	var zoneID string
	errRow := tx.QueryRowContext(ctx, `SELECT id FROM dns_zones WHERE LOWER(name) = LOWER($1)`, p.zoneName).Scan(&zoneID)
	if errors.Is(errRow, sql.ErrNoRows) {
		return providerErr("lookup zone", fmt.Errorf("zone %s not found", p.zoneName))
	}
	if errRow != nil {
		return providerErr("lookup zone", errRow)
	}

	fqdn := p.fqdn(record.Name)
	if _, err := tx.ExecContext(ctx, `DELETE FROM dns_records WHERE zone_id = $1 AND LOWER(name) = LOWER($2) AND type = 'A'`, zoneID, fqdn); err != nil {
		return providerErr("delete record", err)
	}

	now := time.Now().UTC()
	insert := `INSERT INTO dns_records (id, zone_id, name, type, content, ttl, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := tx.ExecContext(ctx, insert, uuid.New().String(), zoneID, fqdn, string(domain.TypeA), record.IP, record.TTL, now, now); err != nil {
		return providerErr("insert record", err)
	}

	if err := tx.Commit(); err != nil {
		return providerErr("commit", err)
	}
	return nil
}

func (p *ZoneProvider) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return providerErr("ping", err)
	}
	return nil
}
