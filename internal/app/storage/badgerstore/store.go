// Package badgerstore implements the content store on top of BadgerDB for
// single-node deployments that need encrypted payloads to survive restarts.
package badgerstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/HelixVault/agent_layer/internal/app/storage"
)

const (
	objectPrefix = "obj/"
	infoPrefix   = "inf/"
	auditPrefix  = "aud/"
)

// Store persists payloads and audit records in a Badger database. Content
// IDs are the hex SHA-256 of the payload.
type Store struct {
	db       *badger.DB
	auditSeq *badger.Sequence
}

var _ storage.ContentStore = (*Store)(nil)
var _ storage.AuditStore = (*Store)(nil)

// Open opens (or creates) a store at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}

	seq, err := db.GetSequence([]byte("seq/audit"), 64)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open audit sequence: %w", err)
	}

	return &Store{db: db, auditSeq: seq}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if err := s.auditSeq.Release(); err != nil {
		_ = s.db.Close()
		return err
	}
	return s.db.Close()
}

func (s *Store) Fetch(_ context.Context, contentID string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(objectPrefix + contentID))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", contentID, err)
	}
	return out, nil
}

func (s *Store) Upload(_ context.Context, data []byte, name string, metadata map[string]string) (storage.UploadResult, error) {
	sum := sha256.Sum256(data)
	contentID := hex.EncodeToString(sum[:])

	info := storage.ObjectInfo{
		ContentID: contentID,
		Name:      name,
		Size:      int64(len(data)),
		Metadata:  metadata,
		StoredAt:  time.Now().UTC(),
	}
	infoJSON, err := json.Marshal(info)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("encode object info: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(objectPrefix+contentID), data); err != nil {
			return err
		}
		return txn.Set([]byte(infoPrefix+contentID), infoJSON)
	})
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("store %s: %w", contentID, err)
	}
	return storage.UploadResult{ContentID: contentID, Size: int64(len(data))}, nil
}

func (s *Store) Stat(_ context.Context, contentID string) (storage.ObjectInfo, error) {
	var info storage.ObjectInfo
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(infoPrefix + contentID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &info)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return storage.ObjectInfo{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("stat %s: %w", contentID, err)
	}
	return info, nil
}

func (s *Store) Delete(_ context.Context, contentID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(objectPrefix + contentID)); err != nil {
			return err
		}
		if err := txn.Delete([]byte(objectPrefix + contentID)); err != nil {
			return err
		}
		return txn.Delete([]byte(infoPrefix + contentID))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return storage.ErrNotFound
	}
	return err
}

func (s *Store) AppendAudit(_ context.Context, rec storage.AuditRecord) error {
	seq, err := s.auditSeq.Next()
	if err != nil {
		return fmt.Errorf("audit sequence: %w", err)
	}
	recJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}
	key := fmt.Sprintf("%s%020d", auditPrefix, seq)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), recJSON)
	})
}

func (s *Store) ListAudit(_ context.Context, limit int) ([]storage.AuditRecord, error) {
	var out []storage.AuditRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(auditPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var rec storage.AuditRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
