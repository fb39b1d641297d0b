package sessions

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/HelixVault/agent_layer/internal/app/storage"
)

// Sink receives audit records for durable persistence.
type Sink interface {
	Write(ctx context.Context, rec storage.AuditRecord) error
}

// AuditLog is the append-only query audit trail. It keeps a bounded
// in-memory window for inspection and forwards every record to an optional
// sink. Records reference queries, never results or raw data.
type AuditLog struct {
	mu      sync.Mutex
	entries []storage.AuditRecord
	max     int
	sink    Sink
}

// NewAuditLog builds an audit log retaining at most max records in memory.
func NewAuditLog(max int, sink Sink) *AuditLog {
	if max <= 0 {
		max = 200
	}
	return &AuditLog{max: max, sink: sink}
}

// Append records one entry. Sink failures are swallowed so persistence
// problems never block query execution.
func (l *AuditLog) Append(ctx context.Context, rec storage.AuditRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, rec)
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
	if l.sink != nil {
		_ = l.sink.Write(ctx, rec)
	}
}

// Entries returns a copy of the most recent limit records, oldest first.
// limit <= 0 returns the full in-memory window.
func (l *AuditLog) Entries(limit int) []storage.AuditRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]storage.AuditRecord, len(l.entries))
	copy(out, l.entries)
	if limit <= 0 || len(out) <= limit {
		return out
	}
	return out[len(out)-limit:]
}

// FileSink appends audit records as JSONL.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileSink opens (or creates) a JSONL audit file. An empty path yields
// a nil sink.
func NewFileSink(path string) (*FileSink, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, err
	}
	return &FileSink{file: f}, nil
}

func (s *FileSink) Write(_ context.Context, rec storage.AuditRecord) error {
	if s == nil || s.file == nil {
		return nil
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.file.Write(append(b, '\n'))
	return err
}

// Close releases the underlying file.
func (s *FileSink) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}

// MultiSink fans one record out to several sinks; the first error wins
// but every sink still sees the record.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks. Nil entries are skipped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	out := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			out.sinks = append(out.sinks, s)
		}
	}
	return out
}

func (m *MultiSink) Write(ctx context.Context, rec storage.AuditRecord) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Write(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// StoreSink forwards audit records to a storage.AuditStore.
type StoreSink struct {
	store storage.AuditStore
}

// NewStoreSink wraps an audit store as a sink.
func NewStoreSink(store storage.AuditStore) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Write(ctx context.Context, rec storage.AuditRecord) error {
	if s == nil || s.store == nil {
		return nil
	}
	return s.store.AppendAudit(ctx, rec)
}
