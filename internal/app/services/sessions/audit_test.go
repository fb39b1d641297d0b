package sessions

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/HelixVault/agent_layer/internal/app/storage"
)

func TestAuditLogBoundedWindow(t *testing.T) {
	l := NewAuditLog(3, nil)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		l.Append(ctx, storage.AuditRecord{QueryID: fmt.Sprintf("q-%d", i), Time: time.Now()})
	}

	entries := l.Entries(0)
	if len(entries) != 3 {
		t.Fatalf("window = %d, want 3", len(entries))
	}
	if entries[0].QueryID != "q-2" || entries[2].QueryID != "q-4" {
		t.Fatalf("window dropped wrong entries: %+v", entries)
	}

	if got := l.Entries(1); len(got) != 1 || got[0].QueryID != "q-4" {
		t.Fatalf("limit=1 must return newest entry, got %+v", got)
	}
}

func TestFileSinkWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	defer sink.Close()

	l := NewAuditLog(10, sink)
	ctx := context.Background()
	l.Append(ctx, storage.AuditRecord{QueryID: "q-1", QueryType: "variant_check", Time: time.Now().UTC()})
	l.Append(ctx, storage.AuditRecord{QueryID: "q-2", QueryType: "trait_query", Time: time.Now().UTC()})

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit file: %v", err)
	}
	defer f.Close()

	var recs []storage.AuditRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec storage.AuditRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("bad JSONL line: %v", err)
		}
		recs = append(recs, rec)
	}
	if len(recs) != 2 || recs[0].QueryID != "q-1" || recs[1].QueryID != "q-2" {
		t.Fatalf("unexpected records: %+v", recs)
	}
}

func TestNewFileSinkEmptyPath(t *testing.T) {
	sink, err := NewFileSink("")
	if err != nil || sink != nil {
		t.Fatalf("empty path must yield nil sink, got %v (%v)", sink, err)
	}
	// A nil sink is safe to use.
	if err := sink.Write(context.Background(), storage.AuditRecord{}); err != nil {
		t.Fatalf("nil sink write: %v", err)
	}
}
