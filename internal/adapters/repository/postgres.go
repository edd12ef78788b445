package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poyrazK/dyndns/internal/core/domain"
	"github.com/poyrazK/dyndns/internal/infrastructure/metrics"
)

// PostgresRepository implements ports.KeyRepository and
// ports.HistoryRepository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates and returns a new PostgresRepository instance.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, op, err)
}

func closeRows(rows *sql.Rows) {
	if errClose := rows.Close(); errClose != nil {
		slog.Warn("failed to close rows", "error", errClose)
	}
}

const apiKeyColumns = `key_hash, hostname, owner_id, owner_label, created_at, expires_at, is_active, use_count, last_used_at, last_used_from_ip, revoked_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAPIKey(row rowScanner) (*domain.APIKey, error) {
	var k domain.APIKey
	var lastUsed, revoked sql.NullTime
	if err := row.Scan(&k.KeyHash, &k.Hostname, &k.OwnerID, &k.OwnerLabel, &k.CreatedAt, &k.ExpiresAt,
		&k.IsActive, &k.UseCount, &lastUsed, &k.LastUsedFromIP, &revoked); err != nil {
		return nil, err
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		k.LastUsedAt = &t
	}
	if revoked.Valid {
		t := revoked.Time
		k.RevokedAt = &t
	}
	return &k, nil
}

func (r *PostgresRepository) ClaimHostname(ctx context.Context, o *domain.HostnameOwnership) error {
	query := `INSERT INTO hostname_ownerships (hostname, owner_id, owner_label, claimed_at)
	          VALUES ($1, $2, $3, $4) ON CONFLICT (hostname) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, strings.ToLower(o.Hostname), o.OwnerID, o.OwnerLabel, o.ClaimedAt)
	if err != nil {
		return storeErr("claim hostname", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("claim hostname", err)
	}
	if n == 0 {
		return domain.ErrAlreadyClaimed
	}
	return nil
}

func (r *PostgresRepository) GetOwnership(ctx context.Context, hostname string) (*domain.HostnameOwnership, error) {
	query := `SELECT hostname, owner_id, owner_label, claimed_at FROM hostname_ownerships WHERE hostname = $1`
	var o domain.HostnameOwnership
	errRow := r.db.QueryRowContext(ctx, query, strings.ToLower(hostname)).Scan(&o.Hostname, &o.OwnerID, &o.OwnerLabel, &o.ClaimedAt)
	if errors.Is(errRow, sql.ErrNoRows) {
		return nil, nil
	}
	if errRow != nil {
		return nil, storeErr("get ownership", errRow)
	}
	return &o, nil
}

func (r *PostgresRepository) CreateAPIKey(ctx context.Context, k *domain.APIKey) error {
	query := `INSERT INTO api_keys (key_hash, hostname, owner_id, owner_label, created_at, expires_at, is_active)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query, k.KeyHash, strings.ToLower(k.Hostname), k.OwnerID, k.OwnerLabel, k.CreatedAt, k.ExpiresAt, k.IsActive)
	if err != nil {
		return storeErr("create api key", err)
	}
	return nil
}

func (r *PostgresRepository) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE key_hash = $1`
	k, err := scanAPIKey(r.db.QueryRowContext(ctx, query, keyHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get api key", err)
	}
	return k, nil
}

func (r *PostgresRepository) RecordKeyUsage(ctx context.Context, keyHash string, usedAt time.Time, sourceIP string) error {
	query := `UPDATE api_keys SET use_count = use_count + 1, last_used_at = $2, last_used_from_ip = $3 WHERE key_hash = $1`
	if _, err := r.db.ExecContext(ctx, query, keyHash, usedAt, sourceIP); err != nil {
		return storeErr("record key usage", err)
	}
	return nil
}

func (r *PostgresRepository) RevokeAPIKey(ctx context.Context, keyHash string, revokedAt time.Time) (bool, error) {
	query := `UPDATE api_keys SET is_active = FALSE, revoked_at = $2 WHERE key_hash = $1 AND is_active`
	res, err := r.db.ExecContext(ctx, query, keyHash, revokedAt)
	if err != nil {
		return false, storeErr("revoke api key", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("revoke api key", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) ListAPIKeysByHostname(ctx context.Context, hostname string) ([]domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE hostname = $1 ORDER BY created_at DESC`
	return r.listAPIKeys(ctx, query, strings.ToLower(hostname))
}

func (r *PostgresRepository) ListAPIKeysByOwner(ctx context.Context, ownerID string) ([]domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE owner_id = $1 ORDER BY created_at DESC`
	return r.listAPIKeys(ctx, query, ownerID)
}

func (r *PostgresRepository) listAPIKeys(ctx context.Context, query string, arg string) ([]domain.APIKey, error) {
	rows, errQuery := r.db.QueryContext(ctx, query, arg)
	if errQuery != nil {
		return nil, storeErr("list api keys", errQuery)
	}
	defer closeRows(rows)

	var keys []domain.APIKey
	for rows.Next() {
		k, errScan := scanAPIKey(rows)
		if errScan != nil {
			return nil, storeErr("scan api key", errScan)
		}
		keys = append(keys, *k)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list api keys", err)
	}
	return keys, nil
}

func (r *PostgresRepository) AppendHistory(ctx context.Context, e *domain.UpdateHistoryEntry) error {
	query := `INSERT INTO update_history (id, hostname, ts, ip_address, old_ip_address, success, result_code, auth_method, key_hash_prefix, response_time_ms)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(ctx, query, e.ID, strings.ToLower(e.Hostname), e.Timestamp, e.IPAddress, e.OldIPAddress,
		e.Success, string(e.ResultCode), string(e.AuthMethod), e.KeyHashPrefix, e.ResponseTimeMs)
	if err != nil {
		return storeErr("append history", err)
	}
	return nil
}

func (r *PostgresRepository) ListHistory(ctx context.Context, hostname string, limit int) ([]domain.UpdateHistoryEntry, error) {
	query := `SELECT id, hostname, ts, ip_address, old_ip_address, success, result_code, auth_method, key_hash_prefix, response_time_ms
	          FROM update_history WHERE hostname = $1 ORDER BY ts DESC LIMIT $2`
	rows, errQuery := r.db.QueryContext(ctx, query, strings.ToLower(hostname), limit)
	if errQuery != nil {
		return nil, storeErr("list history", errQuery)
	}
	defer closeRows(rows)

	var entries []domain.UpdateHistoryEntry
	for rows.Next() {
		var e domain.UpdateHistoryEntry
		if errScan := rows.Scan(&e.ID, &e.Hostname, &e.Timestamp, &e.IPAddress, &e.OldIPAddress, &e.Success,
			&e.ResultCode, &e.AuthMethod, &e.KeyHashPrefix, &e.ResponseTimeMs); errScan != nil {
			return nil, storeErr("scan history", errScan)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list history", err)
	}
	return entries, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	metrics.DBConnectionsActive.Set(float64(r.db.Stats().InUse))
	if err := r.db.PingContext(ctx); err != nil {
		return storeErr("ping", err)
	}
	return nil
}
