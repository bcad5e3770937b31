package minio

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/hupe1980/hybridmem/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStore_Integration needs a running MinIO instance. Set MINIO_ENDPOINT
// (e.g. localhost:9000) to enable it.
func TestStore_Integration(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("Skipping MinIO integration test: MINIO_ENDPOINT not set")
	}

	ctx := context.Background()

	store, err := Connect(ctx, Config{
		Endpoint:     endpoint,
		AccessKey:    envOr("MINIO_ACCESS_KEY", "minioadmin"),
		SecretKey:    envOr("MINIO_SECRET_KEY", "minioadmin"),
		Bucket:       "test-hybridmem",
		Prefix:       "test-prefix/",
		CreateBucket: true,
	})
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	data := []byte("hello minio world")
	require.NoError(t, store.Put(ctx, "test.snap", data))

	b, err := store.Open(ctx, "test.snap")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), b.Size())

	buf := make([]byte, len(data))
	n, err := b.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, data, buf)

	rc, err := b.ReadRange(ctx, 6, 5)
	require.NoError(t, err)
	part, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "minio", string(part))
	require.NoError(t, rc.Close())
	require.NoError(t, b.Close())

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, names, "test.snap")

	require.NoError(t, store.Delete(ctx, "test.snap"))
	_, err = store.Open(ctx, "test.snap")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	// Deleting twice is fine.
	require.NoError(t, store.Delete(ctx, "test.snap"))

	wb, err := store.Create(ctx, "stream.snap")
	require.NoError(t, err)
	_, err = wb.Write([]byte("streamed data"))
	require.NoError(t, err)
	require.NoError(t, wb.Close())

	got, err := blobstore.ReadAll(ctx, store, "stream.snap")
	require.NoError(t, err)
	assert.Equal(t, "streamed data", string(got))

	_ = store.Delete(ctx, "stream.snap")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
