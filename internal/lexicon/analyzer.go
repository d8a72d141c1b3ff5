package lexicon

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxMatchedWords  = 5
	maxFallbackWords = 3
	minFallbackLen   = 3
)

type Analysis struct {
	RawScore     float64
	TokenCount   int
	MatchedWords []string
	TopWords     []string
}

// Score is the per-token average polarity. Empty text scores 0.
func (a Analysis) Score() float64 {
	return a.RawScore / float64(max(a.TokenCount, 1))
}

type Analyzer struct {
	lexicon Lexicon
}

func NewAnalyzer(lexicon Lexicon) *Analyzer {
	return &Analyzer{lexicon: lexicon}
}

func (a *Analyzer) Analyze(text string) Analysis {
	cleaned := ConvertMarkdownToText(text)
	if cleaned == "" {
		cleaned = text
	}

	tokens := strings.Fields(cleaned)
	result := Analysis{TokenCount: len(tokens)}

	seen := make(map[string]struct{})
	for _, token := range tokens {
		word := normalize(token)
		polarity, ok := a.lexicon.Polarity(word)
		if !ok {
			continue
		}
		result.RawScore += polarity

		if _, dup := seen[word]; dup || len(result.MatchedWords) >= maxMatchedWords {
			continue
		}
		seen[word] = struct{}{}
		result.MatchedWords = append(result.MatchedWords, word)
	}

	result.TopWords = topWords(result.MatchedWords, text)
	return result
}

func topWords(matched []string, text string) []string {
	if len(matched) > 0 {
		return append([]string(nil), matched...)
	}

	raw := strings.Fields(text)
	words := make([]string, 0, maxFallbackWords)
	for _, token := range raw {
		if utf8.RuneCountInString(token) > minFallbackLen {
			words = append(words, token)
			if len(words) == maxFallbackWords {
				break
			}
		}
	}
	if len(words) > 0 {
		return words
	}

	if len(raw) > maxFallbackWords {
		raw = raw[:maxFallbackWords]
	}
	return append(words, raw...)
}

func normalize(token string) string {
	lower := strings.ToLower(token)
	trimmed := strings.TrimFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if trimmed == "" {
		return lower
	}
	return trimmed
}
