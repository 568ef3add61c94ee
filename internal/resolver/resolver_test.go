package resolver

import (
	"errors"
	"strings"
	"testing"

	"github.com/verte-zerg/typebook/internal/model"
)

func staging(chapters ...[]string) *model.Staging {
	st := &model.Staging{}
	for i, texts := range chapters {
		ch := model.Chapter{ID: i + 1, Title: "Ch"}
		for _, text := range texts {
			ch.Segments = append(ch.Segments, model.Segment{Text: text})
		}
		st.Chapters = append(st.Chapters, ch)
	}
	return st
}

func TestReplaceAllAcrossSegments(t *testing.T) {
	st := staging(
		[]string{"\tone ― dash", "\ttwo ― dashes ― here"},
		[]string{"\tclean text"},
	)
	r := New(st)
	if got := len(r.Errors()); got != 3 {
		t.Fatalf("expected 3 errors, got %d", got)
	}
	p, ok := r.Current()
	if !ok {
		t.Fatalf("expected an active error")
	}
	if p.Occurrences != 3 {
		t.Fatalf("expected 3 occurrences, got %d", p.Occurrences)
	}
	n, err := r.ReplaceAll("--")
	if err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 replacements, got %d", n)
	}
	if len(r.Errors()) != 0 || !r.Done() {
		t.Fatalf("expected queue exhausted, got %d errors", len(r.Errors()))
	}
	if st.Chapters[0].Segments[1].Text != "\ttwo -- dashes -- here" {
		t.Fatalf("unexpected text: %q", st.Chapters[0].Segments[1].Text)
	}
}

func TestReplaceAllRetargetsRemainingCharacters(t *testing.T) {
	st := staging([]string{"\tnaïve ¿no?", "\tother ¿"})
	r := New(st)
	if len(r.Errors()) != 3 {
		t.Fatalf("expected 3 errors, got %d", len(r.Errors()))
	}
	p, _ := r.Current()
	if p.Error.BadChar != 'ï' {
		t.Fatalf("expected first bad char ï, got %q", p.Error.BadChar)
	}
	if _, err := r.ReplaceAll("i"); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}
	errs := r.Errors()
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors left, got %d", len(errs))
	}
	for _, e := range errs {
		if e.BadChar != '¿' {
			t.Fatalf("expected remaining errors to target ¿, got %q", e.BadChar)
		}
	}
	p, ok := r.Current()
	if !ok || p.Error.Ref != (model.SegmentRef{Chapter: 0, Segment: 0}) {
		t.Fatalf("expected active error to stay on the first segment, got %+v", p.Error.Ref)
	}
	if p.Occurrences != 2 {
		t.Fatalf("expected 2 occurrences of ¿, got %d", p.Occurrences)
	}
}

func TestReplaceAllRejectsUntypableReplacement(t *testing.T) {
	st := staging([]string{"\tcafé"})
	r := New(st)
	if _, err := r.ReplaceAll("é"); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if st.Chapters[0].Segments[0].Text != "\tcafé" {
		t.Fatalf("text must be untouched after a rejected replacement")
	}
}

func TestIgnoreAdvances(t *testing.T) {
	st := staging([]string{"\ta ¿", "\tb ¡"})
	r := New(st)
	r.Ignore()
	p, ok := r.Current()
	if !ok || p.Error.BadChar != '¡' {
		t.Fatalf("expected second error active, got %+v", p)
	}
	r.Ignore()
	if !r.Done() {
		t.Fatalf("expected resolver done")
	}
	if st.Chapters[0].Segments[0].Text != "\ta ¿" {
		t.Fatalf("ignore must not modify text")
	}
}

func TestSaveReplacesContextWindow(t *testing.T) {
	st := staging([]string{"\tFirst sentence. Señor said hi! Last one."})
	r := New(st)
	p, ok := r.Current()
	if !ok {
		t.Fatalf("expected active error")
	}
	if p.Context != " Señor said hi!" {
		t.Fatalf("unexpected context %q", p.Context)
	}
	if err := r.Save(" Senor said hi!"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if got := st.Chapters[0].Segments[0].Text; got != "\tFirst sentence. Senor said hi! Last one." {
		t.Fatalf("unexpected text after save: %q", got)
	}
	if !r.Done() {
		t.Fatalf("expected resolver done after fixing the only error")
	}
}

func TestEachOccurrenceHasItsOwnContext(t *testing.T) {
	st := staging([]string{"\tOne é here. Two é there. Three éclair."})
	r := New(st)
	want := []string{"\tOne é here.", " Two é there.", " Three éclair."}
	for i, ctx := range want {
		p, ok := r.Current()
		if !ok {
			t.Fatalf("expected error %d to be active", i)
		}
		if p.Context != ctx {
			t.Fatalf("error %d: expected context %q, got %q", i, ctx, p.Context)
		}
		r.Ignore()
	}
	if !r.Done() {
		t.Fatalf("expected queue exhausted")
	}
}

func TestSaveEditsLaterOccurrence(t *testing.T) {
	st := staging([]string{"\tOne é here. Two é there."})
	r := New(st)
	r.Ignore()
	if err := r.Save(" Two e there."); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if got := st.Chapters[0].Segments[0].Text; got != "\tOne é here. Two e there." {
		t.Fatalf("unexpected text after save: %q", got)
	}
	errs := r.Errors()
	if len(errs) != 1 || errs[0].Pos != 5 {
		t.Fatalf("expected the ignored first occurrence to remain at 5, got %+v", errs)
	}
	if !r.Done() {
		t.Fatalf("expected no active error after the ignored one")
	}
}

func TestSaveRejectsUntypableEdit(t *testing.T) {
	st := staging([]string{"\tSeñor."})
	r := New(st)
	err := r.Save("Señor.")
	var ve *model.ValidationError
	if !errors.As(err, &ve) || ve.Char != 'ñ' {
		t.Fatalf("expected validation error for ñ, got %v", err)
	}
	if r.Done() {
		t.Fatalf("error must stay active after a failed save")
	}
}

func TestContextWindowFallsBackForLongSentences(t *testing.T) {
	long := strings.Repeat("a", 250) + "¿" + strings.Repeat("b", 250)
	st := staging([]string{"\t" + long})
	r := New(st)
	p, _ := r.Current()
	if n := len([]rune(p.Context)); n != 2*FixedWindowRadius+1 {
		t.Fatalf("expected fixed window of %d runes, got %d", 2*FixedWindowRadius+1, n)
	}
	if !strings.Contains(p.Context, "¿") {
		t.Fatalf("context must contain the bad character")
	}
}

func TestReplaceWord(t *testing.T) {
	st := staging([]string{"\t\"Señor,\" he said.", "\tThe Señor left; señor stayed."})
	r := New(st)
	p, _ := r.Current()
	if p.Word != "Señor" {
		t.Fatalf("expected word Señor, got %q", p.Word)
	}
	if p.WordOccurrences != 2 {
		t.Fatalf("expected 2 word occurrences, got %d", p.WordOccurrences)
	}
	n, err := r.ReplaceWord("Senor")
	if err != nil {
		t.Fatalf("ReplaceWord failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 replacements, got %d", n)
	}
	errs := r.Errors()
	if len(errs) != 1 || errs[0].Ref.Chapter != 0 || errs[0].Ref.Segment != 1 {
		t.Fatalf("expected one error left in the second segment, got %+v", errs)
	}
	p, _ = r.Current()
	if p.Word != "señor" {
		t.Fatalf("expected lowercase word next, got %q", p.Word)
	}
}

func TestReplaceWordNeedsWord(t *testing.T) {
	st := staging([]string{"\ta ¿ b"})
	r := New(st)
	if _, err := r.ReplaceWord("x"); !errors.Is(err, ErrNoWord) {
		t.Fatalf("expected ErrNoWord, got %v", err)
	}
}

func TestCancelClearsStaging(t *testing.T) {
	st := staging([]string{"\ta ¿"})
	r := New(st)
	r.Cancel()
	if !r.Done() || !r.Cancelled() {
		t.Fatalf("expected cancelled resolver")
	}
	if len(st.Chapters) != 0 {
		t.Fatalf("expected staged chapters cleared")
	}
}

func TestApplySuggestions(t *testing.T) {
	st := staging([]string{"\tWait… what™", "\tSeñor"})
	r := New(st)
	replaced, ignored := r.ApplySuggestions()
	if replaced != 2 || ignored != 1 {
		t.Fatalf("expected 2 replaced and 1 ignored, got %d and %d", replaced, ignored)
	}
	if !r.Done() {
		t.Fatalf("expected queue to be exhausted")
	}
	if got := st.Chapters[0].Segments[0].Text; got != "\tWait... what(TM)" {
		t.Fatalf("unexpected text %q", got)
	}
	if got := st.Chapters[0].Segments[1].Text; got != "\tSeñor" {
		t.Fatalf("ignored text must stay, got %q", got)
	}
}
