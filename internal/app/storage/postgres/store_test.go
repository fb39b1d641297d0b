package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"

	"github.com/HelixVault/agent_layer/internal/app/storage"
)

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	store := New(db)
	ctx := context.Background()

	payload := []byte("encrypted payload bytes")
	res, err := store.Upload(ctx, payload, "genome.enc", map[string]string{"algorithm": "AES-256-GCM"})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	fetched, err := store.Fetch(ctx, res.ContentID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(fetched) != string(payload) {
		t.Fatalf("fetched payload mismatch")
	}

	info, err := store.Stat(ctx, res.ContentID)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Metadata["algorithm"] != "AES-256-GCM" {
		t.Fatalf("unexpected metadata: %#v", info.Metadata)
	}

	if err := store.AppendAudit(ctx, storage.AuditRecord{QueryID: "q1", QueryType: "variant_check", TokenID: 7, Requester: "0xabc", SessionID: "s1", Status: "completed"}); err != nil {
		t.Fatalf("append audit: %v", err)
	}
	records, err := store.ListAudit(ctx, 10)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(records) == 0 {
		t.Fatalf("expected at least one audit record")
	}

	if err := store.Delete(ctx, res.ContentID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Fetch(ctx, res.ContentID); err != storage.ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
