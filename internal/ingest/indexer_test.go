package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnidoc/omnidoc/internal/log"
	"github.com/omnidoc/omnidoc/internal/retrieval"
)

// fakeChunkStore records chunks in memory.
type fakeChunkStore struct {
	mu      sync.Mutex
	chunks  map[string]retrieval.StoredChunk
	addErr  error
	deletes []string
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{chunks: make(map[string]retrieval.StoredChunk)}
}

func (f *fakeChunkStore) Add(_ context.Context, chunk retrieval.StoredChunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.chunks[chunk.ID] = chunk
	return nil
}

func (f *fakeChunkStore) DeleteDocument(_ context.Context, documentID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, documentID)
	var n int64
	for id, c := range f.chunks {
		if c.DocumentID == documentID {
			delete(f.chunks, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeChunkStore) byDocument(documentID string) []retrieval.StoredChunk {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []retrieval.StoredChunk
	for _, c := range f.chunks {
		if c.DocumentID == documentID {
			out = append(out, c)
		}
	}
	return out
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewIndexer_Validation(t *testing.T) {
	_, err := NewIndexer(nil, log.NewNop())
	assert.Error(t, err)

	_, err = NewIndexer(newFakeChunkStore(), nil)
	assert.Error(t, err)
}

func TestAddFile_ChunksAndStores(t *testing.T) {
	store := newFakeChunkStore()
	idx, err := NewIndexer(store, log.NewNop(), WithChunking(100, 20))
	require.NoError(t, err)

	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", strings.Repeat("alpha beta gamma ", 30))

	added, err := idx.AddFile(context.Background(), path)
	require.NoError(t, err)
	assert.Greater(t, added, 1)

	absPath, err := filepath.Abs(path)
	require.NoError(t, err)
	stored := store.byDocument(DocumentID(absPath))
	assert.Len(t, stored, added)
	for _, c := range stored {
		assert.Equal(t, absPath, c.File)
		assert.NotEmpty(t, c.Text)
	}
}

func TestAddFile_ReingestReplaces(t *testing.T) {
	store := newFakeChunkStore()
	idx, err := NewIndexer(store, log.NewNop(), WithChunking(100, 20))
	require.NoError(t, err)
	ctx := context.Background()

	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", strings.Repeat("first version ", 40))
	first, err := idx.AddFile(ctx, path)
	require.NoError(t, err)

	// Shorter second version must not leave stale trailing chunks.
	writeFile(t, dir, "notes.txt", "second version, much shorter")
	second, err := idx.AddFile(ctx, path)
	require.NoError(t, err)
	require.Less(t, second, first)

	absPath, err := filepath.Abs(path)
	require.NoError(t, err)
	stored := store.byDocument(DocumentID(absPath))
	assert.Len(t, stored, second)
	for _, c := range stored {
		assert.Contains(t, c.Text, "second version")
	}
}

func TestAddFile_RejectsUnsupportedAndInvalid(t *testing.T) {
	store := newFakeChunkStore()
	idx, err := NewIndexer(store, log.NewNop())
	require.NoError(t, err)
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("unsupported kind", func(t *testing.T) {
		path := writeFile(t, dir, "archive.zip", "not really a zip")
		_, err := idx.AddFile(ctx, path)
		assert.ErrorIs(t, err, ErrUnsupportedKind)
	})

	t.Run("invalid utf8", func(t *testing.T) {
		path := filepath.Join(dir, "binary.txt")
		require.NoError(t, os.WriteFile(path, []byte{0xff, 0xfe, 0x00, 0x41}, 0o600))
		_, err := idx.AddFile(ctx, path)
		assert.Error(t, err)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := idx.AddFile(ctx, dir)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := idx.AddFile(ctx, filepath.Join(dir, "nope.txt"))
		assert.Error(t, err)
	})
}

func TestAddFile_StoreFailureSurfaces(t *testing.T) {
	store := newFakeChunkStore()
	store.addErr = errors.New("embedding service down")
	idx, err := NewIndexer(store, log.NewNop())
	require.NoError(t, err)

	path := writeFile(t, t.TempDir(), "notes.txt", "some content to ingest")
	_, err = idx.AddFile(context.Background(), path)
	assert.ErrorContains(t, err, "embedding service down")
}

func TestAddDirectory(t *testing.T) {
	store := newFakeChunkStore()
	idx, err := NewIndexer(store, log.NewNop(), WithChunking(100, 20))
	require.NoError(t, err)

	dir := t.TempDir()
	writeFile(t, dir, "a.txt", strings.Repeat("readable text ", 20))
	writeFile(t, dir, "b.md", strings.Repeat("markdown notes ", 20))
	writeFile(t, dir, "skip.zip", "binary")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o750))
	writeFile(t, dir, filepath.Join("sub", "c.txt"), strings.Repeat("nested file ", 20))

	res, err := idx.AddDirectory(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 3, res.FilesAdded)
	assert.Equal(t, 1, res.FilesSkipped)
	assert.Equal(t, 0, res.FilesFailed)
	assert.Greater(t, res.ChunksAdded, 3)
}

func TestAddDirectory_HonorsGitignore(t *testing.T) {
	store := newFakeChunkStore()
	idx, err := NewIndexer(store, log.NewNop())
	require.NoError(t, err)

	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "ignored.txt\nvendor/\n")
	writeFile(t, dir, "kept.txt", "kept content")
	writeFile(t, dir, "ignored.txt", "ignored content")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "vendor"), 0o750))
	writeFile(t, dir, filepath.Join("vendor", "dep.txt"), "vendored content")

	res, err := idx.AddDirectory(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, res.FilesAdded)
	for _, c := range store.chunks {
		assert.NotContains(t, c.Text, "ignored content")
		assert.NotContains(t, c.Text, "vendored content")
	}
}

func TestRemoveFile(t *testing.T) {
	store := newFakeChunkStore()
	idx, err := NewIndexer(store, log.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	path := writeFile(t, t.TempDir(), "notes.txt", strings.Repeat("remove me ", 30))
	added, err := idx.AddFile(ctx, path)
	require.NoError(t, err)
	require.Greater(t, added, 0)

	deleted, err := idx.RemoveFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, int64(added), deleted)

	absPath, err := filepath.Abs(path)
	require.NoError(t, err)
	assert.Empty(t, store.byDocument(DocumentID(absPath)))
}

func TestDocumentID_Stable(t *testing.T) {
	assert.Equal(t, DocumentID("/home/u/notes.txt"), DocumentID("/home/u/notes.txt"))
	assert.NotEqual(t, DocumentID("/home/u/notes.txt"), DocumentID("/home/u/other.txt"))
	assert.Len(t, DocumentID("/home/u/notes.txt"), 32)
}
