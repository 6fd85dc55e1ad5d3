package refs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestLoadKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.txt", "b.md", "c.txt", "d.txt", "e.txt", "f.txt"} {
		paths = append(paths, writeFile(t, dir, name, []byte("notes from "+name)))
	}

	blobs, err := Loader{Concurrency: 2}.Load(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, blobs, len(paths))
	for i, p := range paths {
		assert.Contains(t, blobs[i], "Source: "+filepath.Base(p)+" (notes)")
		assert.Contains(t, blobs[i], "notes from "+filepath.Base(p))
	}
}

func TestLoadAnnotatesLinks(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "list.txt", []byte("Our spots: https://www.google.com/maps/place/Fushimi+Inari, and https://wanderlog.com/view/abc."))

	blobs, err := Loader{}.Load(context.Background(), []string{p})
	require.NoError(t, err)
	assert.Contains(t, blobs[0], "(google maps list)")
	assert.Contains(t, blobs[0], "- https://www.google.com/maps/place/Fushimi+Inari\n")
	assert.True(t, strings.HasSuffix(blobs[0], "- https://wanderlog.com/view/abc"))
}

func TestLoadRejectsBinaryFormats(t *testing.T) {
	dir := t.TempDir()
	pdf := writeFile(t, dir, "guide.pdf", []byte("%PDF-1.4"))
	bin := writeFile(t, dir, "blob.txt", []byte{0x89, 'P', 'N', 'G', 0, 0, 1})

	_, err := Loader{}.Load(context.Background(), []string{pdf})
	require.ErrorIs(t, err, ErrUnsupported)

	_, err = Loader{}.Load(context.Background(), []string{bin})
	require.ErrorIs(t, err, ErrUnsupported)

	_, err = Loader{}.Load(context.Background(), []string{filepath.Join(dir, "missing.txt")})
	require.Error(t, err)
}

func TestTruncate(t *testing.T) {
	blob, err := Loader{MaxChars: 5}.FromText("n.txt", "東京タワーと浅草")
	require.NoError(t, err)
	assert.Contains(t, blob, "東京タワー\n... (truncated)")
	assert.NotContains(t, blob, "浅草")
}

func TestKindAndLinks(t *testing.T) {
	assert.Equal(t, "wanderlog trip", Kind("see https://WANDERLOG.com/x"))
	assert.Equal(t, "notes", Kind("just text"))
	assert.Equal(t, []string{"https://a.example/x", "http://b.example"}, Links("https://a.example/x https://a.example/x; http://b.example."))
}
