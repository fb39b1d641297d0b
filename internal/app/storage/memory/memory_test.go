package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HelixVault/agent_layer/internal/app/storage"
)

func TestContentRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	data := []byte("encrypted payload bytes")
	up, err := s.Upload(ctx, data, "genome.bin", map[string]string{"type": "genome-payload"})
	require.NoError(t, err)
	require.NotEmpty(t, up.ContentID)
	assert.Equal(t, int64(len(data)), up.Size)

	got, err := s.Fetch(ctx, up.ContentID)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	info, err := s.Stat(ctx, up.ContentID)
	require.NoError(t, err)
	assert.Equal(t, "genome.bin", info.Name)
	assert.Equal(t, "genome-payload", info.Metadata["type"])
}

func TestContentAddressingIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, err := s.Upload(ctx, []byte("same bytes"), "a", nil)
	require.NoError(t, err)
	second, err := s.Upload(ctx, []byte("same bytes"), "b", nil)
	require.NoError(t, err)
	assert.Equal(t, first.ContentID, second.ContentID)
}

func TestFetchUnknownContent(t *testing.T) {
	s := New()
	_, err := s.Fetch(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	up, err := s.Upload(ctx, []byte("bytes"), "x", nil)
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, up.ContentID))

	_, err = s.Fetch(ctx, up.ContentID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAuditAppendAndList(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, id := range []string{"q-1", "q-2", "q-3"} {
		require.NoError(t, s.AppendAudit(ctx, storage.AuditRecord{QueryID: id, Time: time.Now().UTC()}))
	}

	recs, err := s.ListAudit(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "q-2", recs[0].QueryID)
	assert.Equal(t, "q-3", recs[1].QueryID)
}

func TestFetchReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()

	up, err := s.Upload(ctx, []byte{1, 2, 3}, "x", nil)
	require.NoError(t, err)

	got, err := s.Fetch(ctx, up.ContentID)
	require.NoError(t, err)
	got[0] = 9

	again, err := s.Fetch(ctx, up.ContentID)
	require.NoError(t, err)
	assert.Equal(t, byte(1), again[0])
}
