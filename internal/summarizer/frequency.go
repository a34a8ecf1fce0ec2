// Package summarizer produces short extractive digests of document text.
package summarizer

import (
	"math"
	"regexp"
	"slices"
	"strings"
)

// DefaultSentences is used when Summarize is asked for a non-positive count.
const DefaultSentences = 5

var (
	sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+`)
	wordPattern     = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

// FrequencySummarizer picks the sentences whose words occur most often in
// the whole text, ignoring stopwords.
type FrequencySummarizer struct {
	stopwords map[string]struct{}
}

// NewFrequencySummarizer creates a frequency-based sentence ranker.
func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{stopwords: defaultStopwords()}
}

type scoredSentence struct {
	pos   int
	score float64
}

// Summarize returns up to maxSentences sentences of text in their original
// order. Text without sentence punctuation is returned trimmed.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = DefaultSentences
	}
	sentences := sentencePattern.FindAllString(text, -1)
	if len(sentences) == 0 {
		return strings.TrimSpace(text), nil
	}

	words := make([][]string, len(sentences))
	weight := map[string]float64{}
	peak := 0.0
	for i, sent := range sentences {
		words[i] = s.words(sent)
		for _, w := range words[i] {
			weight[w]++
			peak = max(peak, weight[w])
		}
	}

	ranked := make([]scoredSentence, len(sentences))
	for i, ws := range words {
		total := 0.0
		for _, w := range ws {
			total += weight[w] / peak
		}
		if len(ws) > 0 {
			total /= math.Sqrt(float64(len(ws)))
		}
		ranked[i] = scoredSentence{pos: i, score: total}
	}
	slices.SortStableFunc(ranked, func(a, b scoredSentence) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})
	ranked = ranked[:min(maxSentences, len(ranked))]
	slices.SortFunc(ranked, func(a, b scoredSentence) int { return a.pos - b.pos })

	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = strings.TrimSpace(sentences[r.pos])
	}
	return strings.Join(out, " "), nil
}

// words returns the lowercased non-stopword tokens of text.
func (s *FrequencySummarizer) words(text string) []string {
	all := wordPattern.FindAllString(strings.ToLower(text), -1)
	out := all[:0]
	for _, w := range all {
		if _, stop := s.stopwords[w]; !stop {
			out = append(out, w)
		}
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	list := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those",
		"from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about",
		"between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same",
		"too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(list))
	for _, w := range list {
		m[w] = struct{}{}
	}
	return m
}
