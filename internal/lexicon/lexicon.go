package lexicon

import (
	"github.com/jonreiter/govader"
)

// Lexicon maps a normalized word to its polarity weight.
type Lexicon interface {
	Polarity(word string) (float64, bool)
}

// MapLexicon is a static word table.
type MapLexicon map[string]float64

func (m MapLexicon) Polarity(word string) (float64, bool) {
	v, ok := m[word]
	return v, ok
}

// VaderLexicon looks words up in VADER's raw valence table, which rates
// words from -4 to 4 ("love" is 3.2). The table is read-only after
// construction.
type VaderLexicon struct {
	valences map[string]float64
}

func NewVaderLexicon() *VaderLexicon {
	return &VaderLexicon{valences: govader.NewSentimentIntensityAnalyzer().Lexicon}
}

func (v *VaderLexicon) Polarity(word string) (float64, bool) {
	if word == "" {
		return 0, false
	}
	score, ok := v.valences[word]
	return score, ok && score != 0
}
