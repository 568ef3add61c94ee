package generator

import (
	"strings"
	"testing"
)

func TestDrillShape(t *testing.T) {
	g := NewSeeded(1)
	words := []string{"quiet", "river", "stone", "apple"}
	out := g.Drill(words, map[rune]struct{}{'q': {}, ',': {}}, Options{Words: 30, Factor: 5, MinSentence: 3, MaxSentence: 6})
	if !strings.HasPrefix(out, "\t") {
		t.Fatalf("drill must start with a paragraph tab: %q", out)
	}
	if !strings.HasSuffix(out, ".") {
		t.Fatalf("drill must end a sentence: %q", out)
	}
	if n := len(strings.Fields(out)); n != 30 {
		t.Fatalf("expected 30 words, got %d", n)
	}
	first := strings.Fields(out)[0]
	if first[0] < 'A' || first[0] > 'Z' {
		t.Fatalf("sentences must be capitalized: %q", first)
	}
}

func TestDrillIsDeterministicPerSeed(t *testing.T) {
	words := []string{"a", "b", "c", "d"}
	missed := map[rune]struct{}{'b': {}, '?': {}, ';': {}}
	one := NewSeeded(42).Drill(words, missed, DefaultOptions())
	two := NewSeeded(42).Drill(words, missed, DefaultOptions())
	if one != two {
		t.Fatalf("drills differ for the same seed")
	}
}

func TestGenerateWeightedFavorsMissed(t *testing.T) {
	g := NewSeeded(7)
	words := []string{"zzz", "aaa"}
	picked := g.GenerateWeighted(words, 2000, map[rune]struct{}{'z': {}}, 10)
	z := 0
	for _, w := range picked {
		if w == "zzz" {
			z++
		}
	}
	if z < 1500 {
		t.Fatalf("expected missed words to dominate, got %d of 2000", z)
	}
}

func TestDrillEmpty(t *testing.T) {
	if got := New().Drill(nil, nil, DefaultOptions()); got != "" {
		t.Fatalf("expected empty drill, got %q", got)
	}
}
