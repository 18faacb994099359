package domain

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_generator.go -package=mocks ragqa/internal/domain Generator

import (
	"context"
	"fmt"
)

// Document represents a single text file loaded from the corpus directory.
type Document struct {
	Filename string
	Content  string
	Path     string
}

// Chunk is a sentence-aligned passage of a document used for indexing.
type Chunk struct {
	Source     string
	ChunkIndex int
	Content    string
	FullPath   string
}

// RetrievalResult is a chunk paired with its similarity to a query.
type RetrievalResult struct {
	Chunk      Chunk
	Similarity float64
}

// Source describes one retrieved chunk in a query response.
type Source struct {
	Source         string  `json:"source"`
	ChunkIndex     int     `json:"chunk_index"`
	Similarity     float64 `json:"similarity"`
	ContentPreview string  `json:"content_preview"`
}

// QueryResponse is the answer to a question together with the chunks it was grounded on.
type QueryResponse struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []Source `json:"sources"`
}

// Tokenizer splits free text into normalized terms.
type Tokenizer interface {
	Tokenize(text string) []string
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) []Chunk
}

// Generator produces an answer for a question from retrieved context chunks.
type Generator interface {
	Generate(ctx context.Context, question string, chunks []Chunk) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// Generation error kinds.
const (
	KindNetwork        = "network"
	KindAuthentication = "authentication"
	KindRateLimit      = "rate_limit"
	KindTimeout        = "timeout"
	KindAPI            = "api"
	KindEmptyResponse  = "empty_response"
	KindUnavailable    = "unavailable"
)

// GenerationError is returned by Generator implementations when the remote
// service could not produce an answer.
type GenerationError struct {
	Kind string
	Err  error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return e.Kind
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
