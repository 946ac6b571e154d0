package filestore

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	key := ObjectKey(7, "My Résumé (final).PDF")
	assert.Regexp(t, regexp.MustCompile(`^competitors/7/[0-9a-f]{8}-my-resume-final\.pdf$`), key)

	assert.Regexp(t, `^competitors/1/[0-9a-f]{8}-file\.zip$`, ObjectKey(1, "!!!.zip"))
	assert.NotEqual(t, ObjectKey(1, "a.png"), ObjectKey(1, "a.png"))
}

func TestLocal_PutDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	l, err := NewLocal(dir, "/uploads/")
	require.NoError(t, err)

	url, err := l.Put(ctx, "competitors/1/x.txt", "text/plain", []byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/competitors/1/x.txt", url)

	b, err := os.ReadFile(filepath.Join(dir, "competitors", "1", "x.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(b))

	require.NoError(t, l.Delete(ctx, "competitors/1/x.txt"))
	require.NoError(t, l.Delete(ctx, "competitors/1/x.txt"))

	_, err = l.Put(ctx, "../escape.txt", "text/plain", []byte("no"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}
