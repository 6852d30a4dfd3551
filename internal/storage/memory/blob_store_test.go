package memory

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/web-presence-auditor/internal/audit"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "run/qualified.csv", "text/csv", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "memory://run/qualified.csv", uri)
	payload[0] = 'C'

	rc, err := store.GetObject(context.Background(), "run/qualified.csv")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "content", string(got))
	require.Equal(t, "text/csv", store.ContentType("run/qualified.csv"))
}

func TestBlobStoreMissingAndEmptyPath(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	_, err := store.GetObject(context.Background(), "missing.json")
	require.ErrorIs(t, err, audit.ErrObjectNotFound)

	_, err = store.PutObject(context.Background(), " ", "text/plain", bytes.NewReader(nil))
	require.Error(t, err)
}

func TestBlobStorePaths(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	for _, p := range []string{"out/b.csv", "out/a.csv", "other/c.csv"} {
		_, err := store.PutObject(context.Background(), p, "text/csv", bytes.NewReader([]byte("x")))
		require.NoError(t, err)
	}
	require.Equal(t, []string{"out/a.csv", "out/b.csv"}, store.Paths("out/"))
}
