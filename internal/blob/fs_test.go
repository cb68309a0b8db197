package blob

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/household/internal/config"
)

func TestFSBucketRoundTrip(t *testing.T) {
	ctx := context.Background()
	b, err := NewFSBucket(t.TempDir())
	require.NoError(t, err)

	key := "statements/7/1700000000000-abcdef012345-jan.pdf"
	body := "%PDF-1.4 fake"
	err = b.Put(ctx, key, strings.NewReader(body), int64(len(body)), Object{
		ContentType: "application/pdf",
		Metadata:    map[string]string{"cycle": "7"},
	})
	require.NoError(t, err)

	rc, obj, err := b.Get(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)

	assert.Equal(t, body, string(data))
	assert.Equal(t, "application/pdf", obj.ContentType)
	assert.Equal(t, int64(len(body)), obj.Size)
	assert.Equal(t, "7", obj.Metadata["cycle"])

	require.NoError(t, b.Delete(ctx, key))
	_, _, err = b.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, b.Delete(ctx, key), ErrNotFound)
}

func TestFSBucketRejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	b, err := NewFSBucket(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "/etc/passwd", "../x", "a/../../x", "a//b", "a\\b", ".", "x.meta.json"} {
		err := b.Put(ctx, key, strings.NewReader("x"), 1, Object{})
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestFSBucketSizeMismatchLeavesNothing(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	b, err := NewFSBucket(root)
	require.NoError(t, err)

	err = b.Put(ctx, "a/b.pdf", strings.NewReader("short"), 100, Object{})
	require.Error(t, err)

	_, err = os.Stat(filepath.Join(root, "a", "b.pdf"))
	assert.True(t, os.IsNotExist(err))
	entries, err := os.ReadDir(filepath.Join(root, "a"))
	require.NoError(t, err)
	assert.Empty(t, entries, "temp file removed")
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b, err := Open(ctx, config.StorageConfig{BlobBackend: config.BlobFS, BlobDir: dir})
	require.NoError(t, err)
	fsb, ok := b.(*FSBucket)
	require.True(t, ok)
	assert.Equal(t, dir, fsb.Root())

	_, err = Open(ctx, config.StorageConfig{BlobBackend: "tape"})
	assert.Error(t, err)
}
