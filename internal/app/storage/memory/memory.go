// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development.
package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/HelixVault/agent_layer/internal/app/storage"
)

// Store keeps payloads and audit records in process memory. Content IDs are
// the hex SHA-256 of the payload, so uploads are content addressed and
// idempotent.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
	audit   []storage.AuditRecord
}

type object struct {
	data []byte
	info storage.ObjectInfo
}

var _ storage.ContentStore = (*Store)(nil)
var _ storage.AuditStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{objects: make(map[string]object)}
}

func (s *Store) Fetch(_ context.Context, contentID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[contentID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return out, nil
}

func (s *Store) Upload(_ context.Context, data []byte, name string, metadata map[string]string) (storage.UploadResult, error) {
	sum := sha256.Sum256(data)
	contentID := hex.EncodeToString(sum[:])

	stored := make([]byte, len(data))
	copy(stored, data)

	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[contentID] = object{
		data: stored,
		info: storage.ObjectInfo{
			ContentID: contentID,
			Name:      name,
			Size:      int64(len(stored)),
			Metadata:  meta,
			StoredAt:  time.Now().UTC(),
		},
	}
	return storage.UploadResult{ContentID: contentID, Size: int64(len(stored))}, nil
}

func (s *Store) Stat(_ context.Context, contentID string) (storage.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[contentID]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrNotFound
	}
	return obj.info, nil
}

func (s *Store) Delete(_ context.Context, contentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[contentID]; !ok {
		return storage.ErrNotFound
	}
	delete(s.objects, contentID)
	return nil
}

func (s *Store) AppendAudit(_ context.Context, rec storage.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, rec)
	return nil
}

func (s *Store) ListAudit(_ context.Context, limit int) ([]storage.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.audit
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]storage.AuditRecord, len(all))
	copy(out, all)
	return out, nil
}
