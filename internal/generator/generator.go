// Package generator builds offline practice drills.
package generator

import (
	"math/rand"
	"slices"
	"strings"
	"time"
	"unicode"
)

// Generator produces randomized drill text.
type Generator struct {
	rnd *rand.Rand
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded returns a deterministic Generator.
func NewSeeded(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Options tunes a drill.
type Options struct {
	Words int
	// Factor is the extra weight per missed character in a word.
	Factor float64
	// MinSentence and MaxSentence bound sentence lengths in words.
	MinSentence int
	MaxSentence int
}

// DefaultOptions returns the stock drill shape.
func DefaultOptions() Options {
	return Options{Words: 60, Factor: 3, MinSentence: 5, MaxSentence: 12}
}

// Drill builds sentences from words, biased toward words holding missed
// characters. Missed punctuation is attached to words. The result starts with a
// paragraph tab.
func (g *Generator) Drill(words []string, missed map[rune]struct{}, opts Options) string {
	if len(words) == 0 || opts.Words <= 0 {
		return ""
	}
	if opts.MinSentence <= 0 {
		opts.MinSentence = 1
	}
	if opts.MaxSentence < opts.MinSentence {
		opts.MaxSentence = opts.MinSentence
	}
	punctSet := punctuation(missed)
	picked := g.GenerateWeighted(words, opts.Words, missed, opts.Factor)

	var b strings.Builder
	b.WriteByte('\t')
	sentenceLeft := 0
	for i, word := range picked {
		if sentenceLeft == 0 {
			sentenceLeft = opts.MinSentence + g.rnd.Intn(opts.MaxSentence-opts.MinSentence+1)
			word = capitalize(word)
		}
		sentenceLeft--
		last := i == len(picked)-1
		switch {
		case sentenceLeft == 0 || last:
			word += "."
			sentenceLeft = 0
		case len(punctSet) > 0 && g.rnd.Float64() < 0.3:
			word += string(punctSet[g.rnd.Intn(len(punctSet))])
		}
		b.WriteString(word)
		if !last {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// GenerateWeighted selects words with a bias toward missed characters.
func (g *Generator) GenerateWeighted(words []string, count int, missed map[rune]struct{}, factor float64) []string {
	weights := make([]float64, len(words))
	total := 0.0
	for i, word := range words {
		missCount := 0
		for _, r := range word {
			if _, ok := missed[r]; ok {
				missCount++
			} else if _, ok := missed[unicode.ToUpper(r)]; ok {
				missCount++
			}
		}
		w := 1.0 + float64(missCount)*factor
		weights[i] = w
		total += w
	}

	result := make([]string, 0, count)
	for i := 0; i < count; i++ {
		r := g.rnd.Float64() * total
		acc := 0.0
		idx := len(words) - 1
		for j, w := range weights {
			acc += w
			if r <= acc {
				idx = j
				break
			}
		}
		result = append(result, words[idx])
	}
	return result
}

func capitalize(word string) string {
	runes := []rune(word)
	if len(runes) == 0 {
		return word
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func punctuation(missed map[rune]struct{}) []rune {
	var out []rune
	for r := range missed {
		if r == ',' || r == ';' || r == ':' || r == '!' || r == '?' {
			out = append(out, r)
		}
	}
	slices.Sort(out)
	return out
}
