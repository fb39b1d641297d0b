// Package postgres implements the storage interfaces backed by PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE vault_objects (
//	    content_id TEXT PRIMARY KEY,
//	    name       TEXT NOT NULL,
//	    data       BYTEA NOT NULL,
//	    metadata   JSONB NOT NULL DEFAULT '{}',
//	    stored_at  TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE vault_audit (
//	    seq        BIGSERIAL PRIMARY KEY,
//	    query_id   TEXT NOT NULL,
//	    query_type TEXT NOT NULL,
//	    token_id   BIGINT NOT NULL,
//	    requester  TEXT NOT NULL,
//	    session_id TEXT NOT NULL,
//	    status     TEXT NOT NULL,
//	    at         TIMESTAMPTZ NOT NULL
//	);
package postgres

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/HelixVault/agent_layer/internal/app/storage"
)

// Store implements the storage interfaces on a PostgreSQL handle.
type Store struct {
	db *sql.DB
}

var _ storage.ContentStore = (*Store)(nil)
var _ storage.AuditStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Fetch(ctx context.Context, contentID string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM vault_objects WHERE content_id = $1
	`, contentID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", contentID, err)
	}
	return data, nil
}

func (s *Store) Upload(ctx context.Context, data []byte, name string, metadata map[string]string) (storage.UploadResult, error) {
	sum := sha256.Sum256(data)
	contentID := hex.EncodeToString(sum[:])

	if metadata == nil {
		metadata = map[string]string{}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return storage.UploadResult{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO vault_objects (content_id, name, data, metadata, stored_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (content_id) DO NOTHING
	`, contentID, name, data, metaJSON, time.Now().UTC())
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("store %s: %w", contentID, err)
	}
	return storage.UploadResult{ContentID: contentID, Size: int64(len(data))}, nil
}

func (s *Store) Stat(ctx context.Context, contentID string) (storage.ObjectInfo, error) {
	var (
		info     storage.ObjectInfo
		size     int64
		metaJSON []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT name, octet_length(data), metadata, stored_at
		FROM vault_objects WHERE content_id = $1
	`, contentID).Scan(&info.Name, &size, &metaJSON, &info.StoredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ObjectInfo{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("stat %s: %w", contentID, err)
	}

	info.ContentID = contentID
	info.Size = size
	if err := json.Unmarshal(metaJSON, &info.Metadata); err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("decode metadata: %w", err)
	}
	return info, nil
}

func (s *Store) Delete(ctx context.Context, contentID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM vault_objects WHERE content_id = $1
	`, contentID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", contentID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) AppendAudit(ctx context.Context, rec storage.AuditRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vault_audit (query_id, query_type, token_id, requester, session_id, status, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.QueryID, rec.QueryType, rec.TokenID, rec.Requester, rec.SessionID, rec.Status, rec.Time)
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

func (s *Store) ListAudit(ctx context.Context, limit int) ([]storage.AuditRecord, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT query_id, query_type, token_id, requester, session_id, status, at
		FROM vault_audit ORDER BY seq DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var out []storage.AuditRecord
	for rows.Next() {
		var rec storage.AuditRecord
		if err := rows.Scan(&rec.QueryID, &rec.QueryType, &rec.TokenID, &rec.Requester, &rec.SessionID, &rec.Status, &rec.Time); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Oldest first, matching the append order of the other stores.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
