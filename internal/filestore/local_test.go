package filestore

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error { return nil }

func newMemFile(data []byte) ReadSeekCloser {
	return memFile{Reader: bytes.NewReader(data)}
}

func newTestLocalStore(t *testing.T, publicURL string) Store {
	t.Helper()
	store, err := createLocalStore(map[string]interface{}{
		"dir":        t.TempDir(),
		"public_url": publicURL,
	})
	require.NoError(t, err)
	return store
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestLocalStore(t, "")

	data := []byte("Hello world")
	require.NoError(t, store.Save(ctx, "u1/doc1.txt", newMemFile(data), int64(len(data)), "text/plain"))

	rc, err := store.Open(ctx, "u1/doc1.txt")
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestLocalStoreDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestLocalStore(t, "")

	data := []byte("payload")
	require.NoError(t, store.Save(ctx, "u1/doc2.bin", newMemFile(data), int64(len(data)), ""))

	require.NoError(t, store.Delete(ctx, "u1/doc2.bin"))
	require.NoError(t, store.Delete(ctx, "u1/doc2.bin"))
	require.NoError(t, store.Delete(ctx, "u1/never-existed.bin"))

	_, err := store.Open(ctx, "u1/doc2.bin")
	require.Error(t, err)
}

func TestLocalStoreRejectsBadKeys(t *testing.T) {
	ctx := context.Background()
	store := newTestLocalStore(t, "")

	for _, key := range []string{"", "/abs.txt", "../escape.txt", "u1/../../etc/passwd", `u1\doc.txt`} {
		err := store.Save(ctx, key, newMemFile([]byte("x")), 1, "")
		require.Error(t, err, "key %q", key)
	}
}

func TestLocalStoreSignedURL(t *testing.T) {
	ctx := context.Background()

	store := newTestLocalStore(t, "https://files.example.com/")
	url, err := store.SignedURL(ctx, "u1/doc3.pdf", time.Minute)
	require.NoError(t, err)
	require.Equal(t, "https://files.example.com/u1/doc3.pdf", url)

	bare := newTestLocalStore(t, "")
	_, err = bare.SignedURL(ctx, "u1/doc3.pdf", time.Minute)
	require.Error(t, err)
}
