// Package ranker scores chunks against a query by exact cosine similarity.
package ranker

import (
	"errors"
	"fmt"
	"sort"

	"ragqa/internal/domain"
	"ragqa/internal/embedding/tfidf"
)

var ErrRowMismatch = errors.New("index rows and chunks length mismatch")

// Index is the read side of a term-weight index.
type Index interface {
	Query(text string) tfidf.Vector
	Rows() []tfidf.Vector
}

// Retrieve projects query into the index and ranks every chunk against it.
func Retrieve(index Index, chunks []domain.Chunk, query string, topK int, threshold float64) ([]domain.RetrievalResult, error) {
	if topK <= 0 {
		return []domain.RetrievalResult{}, nil
	}
	return Rank(index.Query(query), index.Rows(), chunks, topK, threshold)
}

// Rank orders chunks by similarity of their row to q, descending, with ties
// kept in chunk store order. The first topK entries are kept
// and those scoring below threshold are dropped from them.
func Rank(q tfidf.Vector, rows []tfidf.Vector, chunks []domain.Chunk, topK int, threshold float64) ([]domain.RetrievalResult, error) {
	if len(rows) != len(chunks) {
		return nil, fmt.Errorf("%d rows, %d chunks: %w", len(rows), len(chunks), ErrRowMismatch)
	}
	if topK <= 0 || len(rows) == 0 {
		return []domain.RetrievalResult{}, nil
	}

	scores := make([]float64, len(rows))
	for i := range rows {
		scores[i] = similarity(q, rows[i])
	}
	idxs := argsortDesc(scores)
	if topK > len(idxs) {
		topK = len(idxs)
	}
	results := make([]domain.RetrievalResult, 0, topK)
	for _, j := range idxs[:topK] {
		if scores[j] < threshold {
			continue
		}
		results = append(results, domain.RetrievalResult{Chunk: chunks[j], Similarity: scores[j]})
	}
	return results, nil
}

// similarity is the cosine of q and row clamped to [0, 1].
func similarity(q, row tfidf.Vector) float64 {
	s := tfidf.Cosine(q, row)
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}

// argsortDesc returns row positions by score, descending. Equal scores keep
// ascending row order.
func argsortDesc(scores []float64) []int {
	idxs := make([]int, len(scores))
	for i := range scores {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool {
		return scores[idxs[a]] > scores[idxs[b]]
	})
	return idxs
}
