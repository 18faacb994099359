// Package chunkstore builds the ordered chunk sequence of a corpus and
// persists it between runs.
package chunkstore

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"ragqa/internal/cache"
	"ragqa/internal/domain"
)

const (
	// FileName is the name of the chunk cache inside the cache directory.
	FileName = "chunks.cache"
	kind     = "chunks"
)

type snapshot struct {
	Chunks []domain.Chunk
}

// Store chunks documents and reads/writes the chunk cache.
type Store struct {
	chunker domain.Chunker
	path    string
	logger  *slog.Logger
}

func New(chunker domain.Chunker, cacheDir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		chunker: chunker,
		path:    filepath.Join(cacheDir, FileName),
		logger:  logger.With("component", "chunkstore"),
	}
}

// Path returns the location of the chunk cache.
func (s *Store) Path() string { return s.path }

// Build chunks documents in the given order. Chunk indices restart at 0 for
// every document.
func (s *Store) Build(docs []domain.Document) []domain.Chunk {
	var chunks []domain.Chunk
	for _, doc := range docs {
		docChunks := s.chunker.Chunk(doc)
		s.logger.Debug("chunked document", "source", doc.Filename, "chunks", len(docChunks))
		chunks = append(chunks, docChunks...)
	}
	s.logger.Info("built chunks", "documents", len(docs), "chunks", len(chunks))
	return chunks
}

// LoadFromCache returns the cached chunks if the cache was written for the
// same fingerprint. Errors wrap the cache package sentinels.
func (s *Store) LoadFromCache(fingerprint string) ([]domain.Chunk, error) {
	snap, err := cache.Load[snapshot](s.path, kind, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("load chunk cache: %w", err)
	}
	s.logger.Info("loaded chunks from cache", "path", s.path, "chunks", len(snap.Chunks))
	return snap.Chunks, nil
}

// SaveToCache persists chunks under fingerprint.
func (s *Store) SaveToCache(fingerprint string, chunks []domain.Chunk) error {
	if err := cache.Save(s.path, kind, fingerprint, snapshot{Chunks: chunks}); err != nil {
		return fmt.Errorf("save chunk cache: %w", err)
	}
	s.logger.Info("saved chunk cache", "path", s.path, "chunks", len(chunks))
	return nil
}
