package summarizer

import (
	"math"
	"sort"
	"strings"

	"ragqa/internal/chunker"
	"ragqa/internal/domain"
)

// DefaultSentences is used when Summarize is asked for zero sentences.
const DefaultSentences = 3

// FrequencySummarizer ranks sentences by the corpus frequency of their terms.
type FrequencySummarizer struct {
	tokenizer domain.Tokenizer
}

// NewFrequencySummarizer creates a summarizer that scores terms produced by tokenizer.
func NewFrequencySummarizer(tokenizer domain.Tokenizer) *FrequencySummarizer {
	return &FrequencySummarizer{tokenizer: tokenizer}
}

// Summarize picks the maxSentences highest scoring sentences and returns them
// in their original order.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = DefaultSentences
	}
	sentences := chunker.SplitSentences(text)
	if len(sentences) == 0 {
		return strings.TrimSpace(text), nil
	}

	tokens := make([][]string, len(sentences))
	freq := map[string]float64{}
	for i, sent := range sentences {
		tokens[i] = s.tokenizer.Tokenize(sent)
		for _, tok := range tokens[i] {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i := range sentences {
		score := 0.0
		for _, tok := range tokens[i] {
			score += freq[tok]
		}
		// dampen long sentences
		if l := float64(len(tokens[i])); l > 0 {
			score /= math.Sqrt(l)
		}
		scores[i] = pair{i, score}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if maxSentences > len(scores) {
		maxSentences = len(scores)
	}

	selected := make([]int, maxSentences)
	for i := 0; i < maxSentences; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, len(selected))
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, ""), nil
}
