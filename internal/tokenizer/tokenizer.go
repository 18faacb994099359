// Package tokenizer turns raw text into the normalized term stream used by the
// term-weight index.
package tokenizer

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/go-ego/gse"
)

// DefaultPunctuation lists the marks a token may consist of and still be dropped.
const DefaultPunctuation = "，。！？：；“”‘’（）【】《》、…—·,.!?:;\"'()[]<>-"

// Segmenter performs word-level segmentation. *gse.Segmenter satisfies it.
type Segmenter interface {
	Cut(text string, hmm ...bool) []string
}

// Tokenizer segments text and filters stop-words, punctuation and
// single-rune tokens.
type Tokenizer struct {
	seg         Segmenter
	stopwords   map[string]struct{}
	punctuation map[rune]struct{}
}

// NewSegmenter loads the embedded gse dictionary.
func NewSegmenter() (*gse.Segmenter, error) {
	seg := &gse.Segmenter{SkipLog: true}
	if err := seg.LoadDictEmbed(); err != nil {
		return nil, fmt.Errorf("load segmentation dictionary: %w", err)
	}
	return seg, nil
}

// New creates a tokenizer. A nil stop-word set is treated as empty; an empty
// punctuation string selects DefaultPunctuation.
func New(seg Segmenter, stopwords map[string]struct{}, punctuation string) *Tokenizer {
	if stopwords == nil {
		stopwords = map[string]struct{}{}
	}
	if punctuation == "" {
		punctuation = DefaultPunctuation
	}
	punct := make(map[rune]struct{}, utf8.RuneCountInString(punctuation))
	for _, r := range punctuation {
		punct[r] = struct{}{}
	}
	return &Tokenizer{seg: seg, stopwords: stopwords, punctuation: punct}
}

// Tokenize returns the surviving terms of text in segmentation order.
func (t *Tokenizer) Tokenize(text string) []string {
	words := t.seg.Cut(strings.ToLower(text), true)
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" || utf8.RuneCountInString(w) <= 1 {
			continue
		}
		if _, isStop := t.stopwords[w]; isStop {
			continue
		}
		if t.isPunctuation(w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

func (t *Tokenizer) isPunctuation(w string) bool {
	for _, r := range w {
		if _, ok := t.punctuation[r]; !ok {
			return false
		}
	}
	return true
}

// Signature identifies the filtering configuration so that indexes built with
// a different stop-word set or punctuation are not reused.
func (t *Tokenizer) Signature() string {
	words := make([]string, 0, len(t.stopwords))
	for w := range t.stopwords {
		words = append(words, w)
	}
	sort.Strings(words)
	marks := make([]string, 0, len(t.punctuation))
	for r := range t.punctuation {
		marks = append(marks, string(r))
	}
	sort.Strings(marks)

	h := sha256.New()
	for _, w := range words {
		h.Write([]byte(w))
		h.Write([]byte{0})
	}
	h.Write([]byte{1})
	h.Write([]byte(strings.Join(marks, "")))
	return hex.EncodeToString(h.Sum(nil)[:8])
}

// LoadStopWords reads one stop-word per line. A missing or unreadable file
// yields an empty set.
func LoadStopWords(path string, logger *slog.Logger) map[string]struct{} {
	if logger == nil {
		logger = slog.Default()
	}
	words := map[string]struct{}{}
	if path == "" {
		return words
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("stop-word file not found, continuing without stop-words", "path", path)
		} else {
			logger.Error("failed to open stop-word file", "path", path, "error", err)
		}
		return words
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		w := strings.TrimSpace(scanner.Text())
		if w != "" {
			words[w] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Error("failed to read stop-word file", "path", path, "error", err)
		return map[string]struct{}{}
	}
	logger.Info("loaded stop-words", "path", path, "count", len(words))
	return words
}
