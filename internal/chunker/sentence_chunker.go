package chunker

import (
	"strings"
	"unicode/utf8"

	"ragqa/internal/domain"
)

// DefaultMaxChunkLength is the rune budget of a chunk.
const DefaultMaxChunkLength = 300

const terminators = ".!?。！？"

// SentenceChunker packs whole sentences into chunks of bounded length.
type SentenceChunker struct {
	maxChunkLength int
}

func NewSentenceChunker(maxChunkLength int) *SentenceChunker {
	if maxChunkLength <= 0 {
		maxChunkLength = DefaultMaxChunkLength
	}
	return &SentenceChunker{maxChunkLength: maxChunkLength}
}

// MaxChunkLength returns the configured rune budget.
func (c *SentenceChunker) MaxChunkLength() int { return c.maxChunkLength }

// Chunk splits a document and numbers its chunks from 0.
func (c *SentenceChunker) Chunk(document domain.Document) []domain.Chunk {
	texts := Split(document.Content, c.maxChunkLength)
	chunks := make([]domain.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, domain.Chunk{
			Source:     document.Filename,
			ChunkIndex: i,
			Content:    text,
			FullPath:   document.Path,
		})
	}
	return chunks
}

type sentence struct {
	text       string
	terminator string
}

// SplitSentences splits text on sentence terminators, trimming and dropping
// empty sentences. Each sentence keeps the terminator it ended with; the last
// one gets "." when the text has no trailing terminator.
func SplitSentences(text string) []string {
	parts := splitSentences(text)
	out := make([]string, len(parts))
	for i, s := range parts {
		out[i] = s.text + s.terminator
	}
	return out
}

func splitSentences(text string) []sentence {
	var out []sentence
	start := 0
	for i, r := range text {
		if !strings.ContainsRune(terminators, r) {
			continue
		}
		if s := strings.TrimSpace(text[start:i]); s != "" {
			out = append(out, sentence{text: s, terminator: string(r)})
		}
		start = i + utf8.RuneLen(r)
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, sentence{text: s, terminator: "."})
	}
	return out
}

// Split greedily accumulates sentences into chunks of at most maxChunkLength
// runes. A sentence is never split, so one longer than the budget becomes a
// chunk of its own.
func Split(text string, maxChunkLength int) []string {
	if maxChunkLength <= 0 {
		maxChunkLength = DefaultMaxChunkLength
	}
	var (
		chunks  []string
		current strings.Builder
		curLen  int
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
		curLen = 0
	}
	for _, s := range splitSentences(text) {
		piece := s.text + s.terminator
		n := utf8.RuneCountInString(piece)
		if curLen > 0 && curLen+n > maxChunkLength {
			flush()
		}
		current.WriteString(piece)
		curLen += n
	}
	flush()
	return chunks
}
