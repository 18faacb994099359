package tfidf

import (
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"ragqa/internal/cache"
	"ragqa/internal/domain"
)

const (
	// FileName is the name of the index cache inside the cache directory.
	FileName = "index.cache"
	kind     = "tfidf"
)

// Params controls vocabulary construction.
type Params struct {
	MaxFeatures int
	MinDF       int
	MaxDF       float64
	NGramMin    int
	NGramMax    int
}

func DefaultParams() Params {
	return Params{MaxFeatures: 5000, MinDF: 2, MaxDF: 0.8, NGramMin: 1, NGramMax: 3}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.MaxFeatures <= 0 {
		p.MaxFeatures = d.MaxFeatures
	}
	if p.MinDF <= 0 {
		p.MinDF = d.MinDF
	}
	if p.MaxDF <= 0 || p.MaxDF > 1 {
		p.MaxDF = d.MaxDF
	}
	if p.NGramMin <= 0 {
		p.NGramMin = d.NGramMin
	}
	if p.NGramMax < p.NGramMin {
		p.NGramMax = p.NGramMin
	}
	return p
}

// String renders the parameters for cache fingerprints.
func (p Params) String() string {
	p = p.withDefaults()
	return fmt.Sprintf("features=%d,min_df=%d,max_df=%g,ngram=%d-%d", p.MaxFeatures, p.MinDF, p.MaxDF, p.NGramMin, p.NGramMax)
}

// Index is a TF-IDF document-term matrix over a chunk sequence. Row i belongs
// to chunk i. An Index is not safe for concurrent Build; once built it is
// read-only.
type Index struct {
	params    Params
	tokenizer domain.Tokenizer
	logger    *slog.Logger

	vocabulary map[string]int
	terms      []string
	idf        []float64
	rows       []Vector
}

// NewIndex creates an empty index. Queries against it yield zero vectors.
func NewIndex(tokenizer domain.Tokenizer, params Params, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		params:     params.withDefaults(),
		tokenizer:  tokenizer,
		logger:     logger.With("component", "tfidf"),
		vocabulary: map[string]int{},
	}
}

// Params returns the effective parameters.
func (ix *Index) Params() Params { return ix.params }

// Build computes the vocabulary, IDF table and one L2-normalised row per chunk.
func (ix *Index) Build(chunks []domain.Chunk) {
	n := len(chunks)
	ix.vocabulary = map[string]int{}
	ix.terms = nil
	ix.idf = nil
	ix.rows = make([]Vector, n)
	if n == 0 {
		ix.logger.Warn("building index over an empty chunk set")
		return
	}

	counts := make([]map[string]int, n)
	df := make(map[string]int)
	total := make(map[string]int)
	for i, c := range chunks {
		counts[i] = ix.countTerms(c.Content)
		for term, cnt := range counts[i] {
			df[term]++
			total[term] += cnt
		}
	}

	maxDocs := ix.params.MaxDF * float64(n)
	prune := maxDocs >= float64(ix.params.MinDF)
	if !prune {
		ix.logger.Warn("corpus too small for document-frequency pruning, keeping all terms",
			"chunks", n, "min_df", ix.params.MinDF, "max_df", ix.params.MaxDF)
	}
	terms := make([]string, 0, len(df))
	for term, d := range df {
		if prune && (d < ix.params.MinDF || float64(d) > maxDocs) {
			continue
		}
		terms = append(terms, term)
	}
	if len(terms) > ix.params.MaxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if total[terms[i]] != total[terms[j]] {
				return total[terms[i]] > total[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:ix.params.MaxFeatures]
	}
	if len(terms) == 0 {
		ix.logger.Warn("no terms left after pruning, all rows are zero", "chunks", n)
	}
	sort.Strings(terms)

	ix.terms = terms
	ix.idf = make([]float64, len(terms))
	N := float64(n)
	for i, term := range terms {
		ix.vocabulary[term] = i
		// Smoothed IDF
		ix.idf[i] = math.Log((1+N)/(1+float64(df[term]))) + 1.0
	}
	for i := range chunks {
		ix.rows[i] = ix.weigh(counts[i])
	}
	ix.logger.Info("built tf-idf index", "chunks", n, "vocabulary", len(terms))
}

// Query projects text into the index's term space.
func (ix *Index) Query(text string) Vector {
	if len(ix.vocabulary) == 0 {
		return Vector{}
	}
	return ix.weigh(ix.countTerms(text))
}

// Rows returns the document-term matrix. Callers must not modify it.
func (ix *Index) Rows() []Vector { return ix.rows }

// VocabularySize returns the number of columns.
func (ix *Index) VocabularySize() int { return len(ix.terms) }

// Terms returns the vocabulary ordered by column id.
func (ix *Index) Terms() []string { return append([]string(nil), ix.terms...) }

// IDF returns the weight of column id.
func (ix *Index) IDF(id int) float64 { return ix.idf[id] }

// Lookup returns the column id of term.
func (ix *Index) Lookup(term string) (int, bool) {
	id, ok := ix.vocabulary[term]
	return id, ok
}

func (ix *Index) countTerms(text string) map[string]int {
	counts := make(map[string]int)
	for _, term := range NGrams(ix.tokenizer.Tokenize(text), ix.params.NGramMin, ix.params.NGramMax) {
		counts[term]++
	}
	return counts
}

func (ix *Index) weigh(counts map[string]int) Vector {
	var v Vector
	for term := range counts {
		id, ok := ix.vocabulary[term]
		if !ok {
			continue
		}
		v.Indices = append(v.Indices, id)
	}
	sort.Ints(v.Indices)
	if len(v.Indices) == 0 {
		return Vector{}
	}
	v.Values = make([]float64, len(v.Indices))
	for k, id := range v.Indices {
		v.Values[k] = float64(counts[ix.terms[id]]) * ix.idf[id]
	}
	// L2 normalize
	if norm := v.Norm(); norm > 0 {
		for k := range v.Values {
			v.Values[k] /= norm
		}
	}
	return v
}

// NGrams returns all n-grams of tokens for n in [lo, hi], joined by a single
// space, shortest first.
func NGrams(tokens []string, lo, hi int) []string {
	var out []string
	for n := lo; n <= hi; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}

type snapshot struct {
	Params Params
	Terms  []string
	IDF    []float64
	Rows   []Vector
}

// CachePath returns the index cache location inside dir.
func CachePath(dir string) string { return filepath.Join(dir, FileName) }

// SaveToCache persists vocabulary, IDF and matrix under fingerprint.
func (ix *Index) SaveToCache(path, fingerprint string) error {
	snap := snapshot{Params: ix.params, Terms: ix.terms, IDF: ix.idf, Rows: ix.rows}
	if err := cache.Save(path, kind, fingerprint, snap); err != nil {
		return fmt.Errorf("save index cache: %w", err)
	}
	ix.logger.Info("saved index cache", "path", path, "vocabulary", len(ix.terms), "rows", len(ix.rows))
	return nil
}

// LoadFromCache replaces the index contents with a cached snapshot. The
// tokenizer is kept, so Query keeps working on the loaded vocabulary.
func (ix *Index) LoadFromCache(path, fingerprint string) error {
	snap, err := cache.Load[snapshot](path, kind, fingerprint)
	if err != nil {
		return fmt.Errorf("load index cache: %w", err)
	}
	if len(snap.Terms) != len(snap.IDF) {
		return fmt.Errorf("load index cache: %d terms but %d idf values: %w", len(snap.Terms), len(snap.IDF), cache.ErrCorrupt)
	}
	vocab := make(map[string]int, len(snap.Terms))
	for i, term := range snap.Terms {
		vocab[term] = i
	}
	for r, row := range snap.Rows {
		if len(row.Indices) != len(row.Values) {
			return fmt.Errorf("load index cache: row %d malformed: %w", r, cache.ErrCorrupt)
		}
		for _, id := range row.Indices {
			if id < 0 || id >= len(snap.Terms) {
				return fmt.Errorf("load index cache: row %d column %d out of range: %w", r, id, cache.ErrCorrupt)
			}
		}
	}
	ix.params = snap.Params
	ix.vocabulary = vocab
	ix.terms = snap.Terms
	ix.idf = snap.IDF
	ix.rows = snap.Rows
	if ix.rows == nil {
		ix.rows = []Vector{}
	}
	ix.logger.Info("loaded index from cache", "path", path, "vocabulary", len(ix.terms), "rows", len(ix.rows))
	return nil
}
