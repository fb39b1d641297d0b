// Package storage declares the persistence contracts consumed by the agent
// core. The content store is the only place encrypted genome payloads live;
// the core never persists plaintext.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a content ID has no stored payload.
var ErrNotFound = errors.New("storage: content not found")

// UploadResult describes a stored payload.
type UploadResult struct {
	ContentID string
	Size      int64
}

// ObjectInfo carries the metadata recorded alongside a payload.
type ObjectInfo struct {
	ContentID string
	Name      string
	Size      int64
	Metadata  map[string]string
	StoredAt  time.Time
}

// ContentStore persists opaque encrypted payloads addressed by content ID.
// Retries with backoff are the implementation's concern; callers treat a
// single failure as final.
type ContentStore interface {
	Fetch(ctx context.Context, contentID string) ([]byte, error)
	Upload(ctx context.Context, data []byte, name string, metadata map[string]string) (UploadResult, error)
	Stat(ctx context.Context, contentID string) (ObjectInfo, error)
	Delete(ctx context.Context, contentID string) error
}

// AuditRecord is one immutable audit-log entry. It references queries, never
// results or raw data.
type AuditRecord struct {
	QueryID   string    `json:"query_id"`
	QueryType string    `json:"query_type"`
	TokenID   int64     `json:"token_id"`
	Requester string    `json:"requester"`
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	Time      time.Time `json:"time"`
}

// AuditStore persists audit records durably. Appends must tolerate
// concurrent writers; only a total order is required.
type AuditStore interface {
	AppendAudit(ctx context.Context, rec AuditRecord) error
	ListAudit(ctx context.Context, limit int) ([]AuditRecord, error)
}
