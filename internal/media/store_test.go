package media

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "media"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPutGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.Put(ctx, "image/png", []byte("png-bytes"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	blob, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "image/png", blob.ContentType)
	assert.Equal(t, []byte("png-bytes"), blob.Data)
	assert.Equal(t, 9, blob.Size)
}

func TestGetMissing(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalUploader(t *testing.T) {
	store := openTestStore(t)
	uploader := NewLocalUploader(store, "http://localhost:8083/")

	url, err := uploader.Upload(context.Background(), "a.jpg", "image/jpeg", []byte("jpeg"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "http://localhost:8083/media/"))

	blob, err := store.Get(context.Background(), strings.TrimPrefix(url, "http://localhost:8083/media/"))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), blob.Data)
}
