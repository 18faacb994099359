package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"ragqa/internal/cache"
	"ragqa/internal/chunker"
	"ragqa/internal/chunkstore"
	"ragqa/internal/contextutil"
	"ragqa/internal/corpus"
	"ragqa/internal/domain"
	"ragqa/internal/embedding/tfidf"
	"ragqa/internal/ranker"
)

const previewLength = 100

// Tokenizer is a domain.Tokenizer that can identify its filtering setup.
type Tokenizer interface {
	domain.Tokenizer
	Signature() string
}

// Options configures an Engine.
type Options struct {
	CorpusDir        string
	CacheDir         string
	MaxChunkLength   int
	Index            tfidf.Params
	TopK             int
	Threshold        float64
	SummarySentences int
}

// Stats describes the loaded corpus.
type Stats struct {
	Documents   int    `json:"documents"`
	Chunks      int    `json:"chunks"`
	Vocabulary  int    `json:"vocabulary"`
	CacheReady  bool   `json:"cache_ready"`
	FromCache   bool   `json:"from_cache"`
	Fingerprint string `json:"fingerprint"`
}

// state is an immutable snapshot of everything built from one corpus.
type state struct {
	docs        []domain.Document
	chunks      []domain.Chunk
	index       *tfidf.Index
	fingerprint string
	fromCache   bool
	summary     string
}

// Engine answers questions over a fixed corpus. Query, Retrieve and Stats
// are safe for concurrent use; Initialize and Rebuild swap in a new snapshot.
type Engine struct {
	opts       Options
	tokenizer  Tokenizer
	chunker    *chunker.SentenceChunker
	store      *chunkstore.Store
	generator  domain.Generator
	summarizer domain.Summarizer
	logger     *slog.Logger

	buildMu sync.Mutex
	mu      sync.RWMutex
	state   *state
}

// New creates an uninitialised engine. summarizer may be nil.
func New(opts Options, tok Tokenizer, gen domain.Generator, summarizer domain.Summarizer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	ch := chunker.NewSentenceChunker(opts.MaxChunkLength)
	opts.MaxChunkLength = ch.MaxChunkLength()
	return &Engine{
		opts:       opts,
		tokenizer:  tok,
		chunker:    ch,
		store:      chunkstore.New(ch, opts.CacheDir, logger),
		generator:  gen,
		summarizer: summarizer,
		logger:     logger.With("component", "engine"),
	}
}

// Initialize loads the corpus and reuses valid caches, building and saving
// whatever is missing or stale.
func (e *Engine) Initialize(ctx context.Context) error {
	return e.build(ctx, false)
}

// Rebuild ignores existing caches, rebuilds chunks and index from the corpus
// and rewrites both caches.
func (e *Engine) Rebuild(ctx context.Context) error {
	return e.build(ctx, true)
}

func (e *Engine) build(ctx context.Context, force bool) error {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	start := time.Now()
	logger := contextutil.LoggerFromContextOr(ctx, e.logger)
	docs := corpus.Load(e.opts.CorpusDir, logger)
	fp := e.fingerprint(docs)
	if err := ctx.Err(); err != nil {
		return err
	}

	st := &state{docs: docs, fingerprint: fp}
	indexPath := tfidf.CachePath(e.opts.CacheDir)
	index := tfidf.NewIndex(e.tokenizer, e.opts.Index, logger)

	chunksLoaded := false
	if !force {
		chunks, err := e.store.LoadFromCache(fp)
		if err == nil {
			st.chunks = chunks
			chunksLoaded = true
			if err := index.LoadFromCache(indexPath, fp); err == nil && len(index.Rows()) == len(chunks) {
				st.index = index
				st.fromCache = true
			} else {
				logCacheMiss(logger, "index", err)
			}
		} else {
			logCacheMiss(logger, "chunks", err)
		}
	}

	if !chunksLoaded {
		st.chunks = e.store.Build(docs)
		if err := e.store.SaveToCache(fp, st.chunks); err != nil {
			logger.Error("failed to save chunk cache", "error", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if st.index == nil {
		index.Build(st.chunks)
		if err := index.SaveToCache(indexPath, fp); err != nil {
			logger.Error("failed to save index cache", "error", err)
		}
		st.index = index
	}
	st.summary = e.summarize(docs, logger)

	e.mu.Lock()
	e.state = st
	e.mu.Unlock()
	logger.Info("engine ready",
		"documents", len(docs),
		"chunks", len(st.chunks),
		"vocabulary", st.index.VocabularySize(),
		"from_cache", st.fromCache,
		"duration", time.Since(start),
	)
	return nil
}

func logCacheMiss(logger *slog.Logger, what string, err error) {
	switch {
	case err == nil:
		logger.Warn("cache inconsistent with chunks, rebuilding", "cache", what)
	case errors.Is(err, cache.ErrNotFound):
		logger.Info("no cache found, building", "cache", what)
	case errors.Is(err, cache.ErrStale):
		logger.Info("cache is stale, rebuilding", "cache", what)
	default:
		logger.Warn("cache unusable, rebuilding", "cache", what, "error", err)
	}
}

// fingerprint identifies the corpus together with every setting that shapes
// the chunks and the index.
func (e *Engine) fingerprint(docs []domain.Document) string {
	h := sha256.New()
	fmt.Fprintf(h, "corpus=%s\n", corpus.Fingerprint(docs))
	fmt.Fprintf(h, "chunker=%d\n", e.opts.MaxChunkLength)
	fmt.Fprintf(h, "index=%s\n", e.opts.Index)
	fmt.Fprintf(h, "tokenizer=%s\n", e.tokenizer.Signature())
	return hex.EncodeToString(h.Sum(nil))
}

func (e *Engine) summarize(docs []domain.Document, logger *slog.Logger) string {
	if e.summarizer == nil || len(docs) == 0 {
		return ""
	}
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Content
	}
	summary, err := e.summarizer.Summarize(strings.Join(parts, "\n"), e.opts.SummarySentences)
	if err != nil {
		logger.Warn("failed to summarize corpus", "error", err)
		return ""
	}
	return summary
}

func (e *Engine) snapshot() *state {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Defaults returns the configured topK and similarity threshold.
func (e *Engine) Defaults() (int, float64) { return e.opts.TopK, e.opts.Threshold }

// Retrieve ranks chunks against question. A blank question yields no results.
func (e *Engine) Retrieve(ctx context.Context, question string, topK int, threshold float64) ([]domain.RetrievalResult, error) {
	st := e.snapshot()
	if st == nil {
		return nil, ErrNotInitialized
	}
	if strings.TrimSpace(question) == "" {
		return []domain.RetrievalResult{}, nil
	}
	results, err := ranker.Retrieve(st.index, st.chunks, question, topK, threshold)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	contextutil.LoggerFromContextOr(ctx, e.logger).Debug("retrieved chunks", "count", len(results), "top_k", topK, "threshold", threshold)
	return results, nil
}

// Query retrieves supporting chunks and asks the generator for an answer.
// Generator failures are reported in the answer, not as an error.
func (e *Engine) Query(ctx context.Context, question string, topK int, threshold float64) (domain.QueryResponse, error) {
	id := uuid.NewString()
	logger := contextutil.LoggerFromContextOr(ctx, e.logger).With("query_id", id)
	ctx = contextutil.WithQueryID(contextutil.WithLogger(ctx, logger), id)
	logger.Info("query started", "question", question, "top_k", topK, "threshold", threshold)

	results, err := e.Retrieve(ctx, question, topK, threshold)
	if err != nil {
		logger.Error("query failed", "error", err)
		return domain.QueryResponse{}, err
	}
	resp := domain.QueryResponse{ID: id, Question: question, Sources: []domain.Source{}}
	if len(results) == 0 {
		logger.Info("no relevant chunks found")
		resp.Answer = NoResultsAnswer
		return resp, nil
	}

	chunks := make([]domain.Chunk, len(results))
	for i, r := range results {
		chunks[i] = r.Chunk
		resp.Sources = append(resp.Sources, domain.Source{
			Source:         r.Chunk.Source,
			ChunkIndex:     r.Chunk.ChunkIndex,
			Similarity:     r.Similarity,
			ContentPreview: Preview(r.Chunk.Content),
		})
	}

	start := time.Now()
	answer, err := e.generator.Generate(ctx, question, chunks)
	if err != nil {
		logger.Warn("answer generation failed", "error", err)
		answer = FailureAnswer(err)
	} else {
		logger.Info("answer generated", "sources", len(chunks), "duration", time.Since(start))
	}
	resp.Answer = answer
	return resp, nil
}

// Stats reports the current snapshot. Before Initialize only CacheReady is set.
func (e *Engine) Stats() Stats {
	s := Stats{CacheReady: CacheReady(e.opts.CacheDir)}
	st := e.snapshot()
	if st == nil {
		return s
	}
	s.Documents = len(st.docs)
	s.Chunks = len(st.chunks)
	s.Vocabulary = st.index.VocabularySize()
	s.FromCache = st.fromCache
	s.Fingerprint = st.fingerprint
	return s
}

// Summary returns the extractive overview of the corpus, if any.
func (e *Engine) Summary() string {
	if st := e.snapshot(); st != nil {
		return st.summary
	}
	return ""
}

// Chunks returns the chunk sequence of the current snapshot.
func (e *Engine) Chunks() []domain.Chunk {
	if st := e.snapshot(); st != nil {
		return st.chunks
	}
	return nil
}

// CacheReady reports whether both cache artifacts exist in dir.
func CacheReady(dir string) bool {
	return cache.Exists(filepath.Join(dir, chunkstore.FileName)) && cache.Exists(tfidf.CachePath(dir))
}

// Preview returns the first 100 runes of content, with "..." when truncated.
func Preview(content string) string {
	if utf8.RuneCountInString(content) <= previewLength {
		return content
	}
	return string([]rune(content)[:previewLength]) + "..."
}
