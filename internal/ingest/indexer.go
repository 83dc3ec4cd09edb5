package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/omnidoc/omnidoc/internal/retrieval"
)

// MaxFileSize caps how large a single file may be before ingestion
// refuses it. Oversized files produce hundreds of chunks of marginal
// retrieval value and slow embedding to a crawl.
const MaxFileSize = 4 * 1024 * 1024 // 4MB

// ChunkStore persists embedded chunks. Satisfied by *retrieval.Store.
type ChunkStore interface {
	Add(ctx context.Context, chunk retrieval.StoredChunk) error
	DeleteDocument(ctx context.Context, documentID string) (int64, error)
}

// Result summarizes one ingestion run.
type Result struct {
	FilesAdded   int
	FilesSkipped int
	FilesFailed  int
	ChunksAdded  int
	TotalSize    int64
	Duration     time.Duration
}

// Indexer ingests files into the chunk store.
type Indexer struct {
	store      ChunkStore
	extractors extractorSet
	chunkSize  int
	overlap    int
	logger     *slog.Logger
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithChunking overrides the chunk size and overlap (in runes).
func WithChunking(size, overlap int) Option {
	return func(idx *Indexer) {
		idx.chunkSize = size
		idx.overlap = overlap
	}
}

// WithExtractors registers additional extractors. A later extractor
// wins when kinds collide.
func WithExtractors(extractors ...Extractor) Option {
	return func(idx *Indexer) {
		for _, e := range extractors {
			idx.extractors.register(e)
		}
	}
}

// NewIndexer creates a file indexer writing to store.
func NewIndexer(store ChunkStore, logger *slog.Logger, opts ...Option) (*Indexer, error) {
	if store == nil {
		return nil, fmt.Errorf("chunk store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	idx := &Indexer{
		store:      store,
		extractors: newExtractorSet(),
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx, nil
}

// DocumentID derives the stable document ID for a file path. The same
// absolute path always maps to the same ID, so re-ingesting replaces.
func DocumentID(absPath string) string {
	sum := sha256.Sum256([]byte(absPath))
	return hex.EncodeToString(sum[:16])
}

// AddFile ingests a single file: extract, chunk, embed, store. Returns
// the number of chunks written.
func (idx *Indexer) AddFile(ctx context.Context, filePath string) (int, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return 0, fmt.Errorf("resolving path: %w", err)
	}

	// os.Root confines reads to the parent directory so symlinks
	// cannot escape it.
	parentDir := filepath.Dir(absPath)
	fileName := filepath.Base(absPath)

	root, err := os.OpenRoot(parentDir)
	if err != nil {
		return 0, fmt.Errorf("opening directory %s: %w", parentDir, err)
	}
	defer func() {
		_ = root.Close()
	}()

	info, err := root.Stat(fileName)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", fileName, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory, use AddDirectory instead", filePath)
	}
	if info.Size() > MaxFileSize {
		return 0, fmt.Errorf("file %s (%d bytes) exceeds ingestion limit (%d bytes)",
			fileName, info.Size(), MaxFileSize)
	}

	content, err := root.ReadFile(fileName)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", fileName, err)
	}

	return idx.ingest(ctx, absPath, content)
}

// AddDirectory recursively ingests all supported files under dirPath,
// honoring a .gitignore at its root. Individual file failures are
// counted, not fatal.
func (idx *Indexer) AddDirectory(ctx context.Context, dirPath string) (*Result, error) {
	start := time.Now()
	result := &Result{}

	absDir, err := filepath.Abs(dirPath)
	if err != nil {
		return nil, fmt.Errorf("resolving directory path: %w", err)
	}

	root, err := os.OpenRoot(absDir)
	if err != nil {
		return nil, fmt.Errorf("opening directory %s: %w", absDir, err)
	}
	defer func() {
		_ = root.Close()
	}()

	var gitIgnore *ignore.GitIgnore
	gitignorePath := filepath.Join(absDir, ".gitignore")
	if _, err := os.Stat(gitignorePath); err == nil {
		// A malformed .gitignore disables filtering rather than
		// failing the whole run.
		gitIgnore, _ = ignore.CompileIgnoreFile(gitignorePath)
	}

	walkErr := filepath.Walk(absDir, func(path string, info os.FileInfo, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			result.FilesFailed++
			return nil
		}

		relPath, err := filepath.Rel(absDir, path)
		if err != nil {
			result.FilesFailed++
			return nil
		}

		if gitIgnore != nil && gitIgnore.MatchesPath(relPath) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			result.FilesSkipped++
			return nil
		}
		if info.IsDir() {
			return nil
		}

		kind := DetectKind(path)
		if _, ok := idx.extractors[kind]; !ok {
			result.FilesSkipped++
			return nil
		}
		if info.Size() > MaxFileSize {
			result.FilesSkipped++
			return nil
		}

		content, err := root.ReadFile(relPath)
		if err != nil {
			result.FilesFailed++
			return nil
		}

		added, err := idx.ingest(ctx, path, content)
		if err != nil {
			idx.logger.Warn("ingesting file failed",
				slog.String("file", relPath),
				slog.String("error", err.Error()))
			result.FilesFailed++
			return nil
		}

		result.FilesAdded++
		result.ChunksAdded += added
		result.TotalSize += info.Size()
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walking directory: %w", walkErr)
	}

	result.Duration = time.Since(start)
	idx.logger.Info("directory ingested",
		slog.String("dir", absDir),
		slog.Int("files_added", result.FilesAdded),
		slog.Int("files_skipped", result.FilesSkipped),
		slog.Int("files_failed", result.FilesFailed),
		slog.Int("chunks_added", result.ChunksAdded))
	return result, nil
}

// RemoveFile deletes all chunks previously ingested for filePath.
func (idx *Indexer) RemoveFile(ctx context.Context, filePath string) (int64, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return 0, fmt.Errorf("resolving path: %w", err)
	}
	return idx.store.DeleteDocument(ctx, DocumentID(absPath))
}

// ingest extracts, chunks and stores one file's content. Existing
// chunks for the document are removed first so stale trailing chunks
// from a previously longer version cannot linger.
func (idx *Indexer) ingest(ctx context.Context, absPath string, content []byte) (int, error) {
	text, err := idx.extractors.extract(DetectKind(absPath), content, absPath)
	if err != nil {
		return 0, err
	}
	if text == "" {
		return 0, nil
	}

	docID := DocumentID(absPath)
	if _, err := idx.store.DeleteDocument(ctx, docID); err != nil {
		return 0, fmt.Errorf("clearing previous chunks: %w", err)
	}

	pieces := SplitText(text, idx.chunkSize, idx.overlap)
	for i, piece := range pieces {
		chunk := retrieval.StoredChunk{
			ID:         fmt.Sprintf("%s-%04d", docID, i),
			DocumentID: docID,
			File:       absPath,
			Ordinal:    i,
			Text:       piece,
		}
		if err := idx.store.Add(ctx, chunk); err != nil {
			return i, fmt.Errorf("storing chunk %d of %s: %w", i, absPath, err)
		}
	}

	idx.logger.Debug("file ingested",
		slog.String("file", absPath),
		slog.Int("chunks", len(pieces)))
	return len(pieces), nil
}
