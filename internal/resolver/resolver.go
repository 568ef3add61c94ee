// Package resolver walks untypable characters left after sanitization and applies
// the fixes chosen by the importing user.
package resolver

import (
	"errors"
	"strings"
	"unicode"

	"github.com/verte-zerg/typebook/internal/model"
	"github.com/verte-zerg/typebook/internal/sanitize"
)

const (
	// MaxSentenceWindow is the longest sentence shown as context before falling
	// back to a fixed window.
	MaxSentenceWindow = 300
	// FixedWindowRadius is the half-width of the fallback context window.
	FixedWindowRadius = 100
)

// ErrNoWord is returned by ReplaceWord when the active character stands alone.
var ErrNoWord = errors.New("no word around the active character")

// Prompt is everything the user needs to decide how to fix the active error.
type Prompt struct {
	Index           int
	Total           int
	Error           model.ImportError
	Context         string
	Occurrences     int
	Word            string
	WordOccurrences int
	Suggestion      string
	HasSuggestion   bool
}

// Resolver is the state machine over the queue of import errors.
type Resolver struct {
	staging   *model.Staging
	queue     []model.ImportError
	current   int
	cancelled bool
}

// New scans every staged segment and queues one error per untypable occurrence.
func New(staging *model.Staging) *Resolver {
	r := &Resolver{staging: staging}
	for _, ref := range staging.Refs() {
		text := staging.Text(ref)
		for _, occ := range sanitize.Untypable(text) {
			r.queue = append(r.queue, model.ImportError{
				Ref:       ref,
				BadChar:   occ.Char,
				Pos:       occ.Index,
				FullText:  text,
				ChapTitle: staging.Chapters[ref.Chapter].Title,
			})
		}
	}
	return r
}

// Errors returns the remaining queue.
func (r *Resolver) Errors() []model.ImportError {
	out := make([]model.ImportError, len(r.queue))
	copy(out, r.queue)
	return out
}

// Remaining counts errors from the active one to the end of the queue.
func (r *Resolver) Remaining() int {
	if r.Done() {
		return 0
	}
	return len(r.queue) - r.current
}

// Done reports whether the queue is exhausted or the import was cancelled.
func (r *Resolver) Done() bool {
	return r.cancelled || r.current >= len(r.queue)
}

// Cancelled reports whether Cancel was called.
func (r *Resolver) Cancelled() bool {
	return r.cancelled
}

// Current presents the active error.
func (r *Resolver) Current() (Prompt, bool) {
	if r.Done() {
		return Prompt{}, false
	}
	e := &r.queue[r.current]
	runes := []rune(r.staging.Text(e.Ref))
	pos := e.Pos
	if pos < 0 || pos >= len(runes) || runes[pos] != e.BadChar {
		pos = max(0, indexRune(runes, e.BadChar))
	}
	start, end := contextWindow(runes, pos)
	e.ContextStart, e.ContextEnd = start, end
	e.FullText = string(runes)

	p := Prompt{
		Index:       r.current,
		Total:       len(r.queue),
		Error:       *e,
		Context:     string(runes[start:end]),
		Occurrences: r.countAll(string(e.BadChar)),
	}
	p.Word = wordAt(runes, pos)
	if p.Word != "" {
		p.WordOccurrences = r.countAll(p.Word)
	}
	p.Suggestion, p.HasSuggestion = sanitize.Suggest(e.BadChar)
	return p, true
}

// Ignore leaves the text untouched and moves to the next error.
func (r *Resolver) Ignore() {
	if r.Done() {
		return
	}
	r.current++
}

// Save replaces the active context window with a manual edit. The edit must be
// fully typable; on failure the same error stays active.
func (r *Resolver) Save(replacement string) error {
	if r.Done() {
		return nil
	}
	if err := validate(replacement); err != nil {
		return err
	}
	if _, ok := r.Current(); !ok {
		return nil
	}
	e := r.queue[r.current]
	runes := []rune(r.staging.Text(e.Ref))
	updated := string(runes[:e.ContextStart]) + replacement + string(runes[e.ContextEnd:])
	r.staging.SetText(e.Ref, updated)
	r.refilter()
	return nil
}

// ReplaceAll substitutes every occurrence of the active character across all
// staged segments and returns the number of replacements.
func (r *Resolver) ReplaceAll(replacement string) (int, error) {
	if r.Done() {
		return 0, nil
	}
	if err := validate(replacement); err != nil {
		return 0, err
	}
	n := r.replaceEverywhere(string(r.queue[r.current].BadChar), replacement)
	r.refilter()
	return n, nil
}

// ReplaceWord substitutes every literal occurrence of the word holding the active
// character across all staged segments.
func (r *Resolver) ReplaceWord(replacement string) (int, error) {
	p, ok := r.Current()
	if !ok {
		return 0, nil
	}
	if p.Word == "" {
		return 0, ErrNoWord
	}
	if err := validate(replacement); err != nil {
		return 0, err
	}
	n := r.replaceEverywhere(p.Word, replacement)
	r.refilter()
	return n, nil
}

// Cancel abandons the import and clears every staged chapter.
func (r *Resolver) Cancel() {
	r.cancelled = true
	r.queue = nil
	r.current = 0
	r.staging.Clear()
}

func (r *Resolver) replaceEverywhere(old, replacement string) int {
	total := 0
	for _, ref := range r.staging.Refs() {
		text := r.staging.Text(ref)
		n := strings.Count(text, old)
		if n == 0 {
			continue
		}
		total += n
		r.staging.SetText(ref, strings.ReplaceAll(text, old, replacement))
	}
	return total
}

// countAll counts literal occurrences across every staged segment. Each segment is
// visited once no matter how many errors point at it.
func (r *Resolver) countAll(s string) int {
	total := 0
	for _, ref := range r.staging.Refs() {
		total += strings.Count(r.staging.Text(ref), s)
	}
	return total
}

// refilter drops errors whose segment became clean and re-targets the rest. The
// k-th surviving error of a segment takes the k-th untypable character still in
// it, so a segment keeps at most one error per remaining occurrence. The active
// position moves to the first surviving error at or after the old one.
func (r *Resolver) refilter() {
	occs := map[model.SegmentRef][]sanitize.Occurrence{}
	used := map[model.SegmentRef]int{}
	kept := r.queue[:0]
	next := -1
	for i, e := range r.queue {
		text := r.staging.Text(e.Ref)
		list, seen := occs[e.Ref]
		if !seen {
			list = sanitize.Untypable(text)
			occs[e.Ref] = list
		}
		k := used[e.Ref]
		if k >= len(list) {
			continue
		}
		used[e.Ref] = k + 1
		e.BadChar, e.Pos = list[k].Char, list[k].Index
		e.FullText = text
		if next < 0 && i >= r.current {
			next = len(kept)
		}
		kept = append(kept, e)
	}
	r.queue = kept
	if next < 0 {
		next = len(kept)
	}
	r.current = next
}

func validate(s string) error {
	if bad, _, found := sanitize.FirstUntypable(s); found {
		return &model.ValidationError{Char: bad, Text: s}
	}
	return nil
}

func indexRune(runes []rune, target rune) int {
	for i, r := range runes {
		if r == target {
			return i
		}
	}
	return -1
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// contextWindow spans the sentence around pos, or a fixed window when the sentence
// is too long. The result is a half-open rune range.
func contextWindow(runes []rune, pos int) (int, int) {
	start := 0
	for i := pos - 1; i >= 0; i-- {
		if isTerminator(runes[i]) {
			start = i + 1
			break
		}
	}
	end := len(runes)
	for i := pos; i < len(runes); i++ {
		if isTerminator(runes[i]) {
			end = i + 1
			break
		}
	}
	if end-start > MaxSentenceWindow {
		start = max(0, pos-FixedWindowRadius)
		end = min(len(runes), pos+FixedWindowRadius+1)
	}
	return start, end
}

// wordAt returns the whitespace-delimited run around pos with outer punctuation
// stripped. The bad character itself is never stripped.
func wordAt(runes []rune, pos int) string {
	if pos < 0 || pos >= len(runes) {
		return ""
	}
	start, end := pos, pos+1
	for start > 0 && !unicode.IsSpace(runes[start-1]) {
		start--
	}
	for end < len(runes) && !unicode.IsSpace(runes[end]) {
		end++
	}
	for start < pos && isOuterPunct(runes[start]) {
		start++
	}
	for end-1 > pos && isOuterPunct(runes[end-1]) {
		end--
	}
	word := string(runes[start:end])
	if len([]rune(word)) == 1 {
		// A lone character is already covered by replace-all.
		return ""
	}
	return word
}

func isOuterPunct(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

// ApplySuggestions resolves the whole queue without interaction: characters with a
// suggested replacement are replaced everywhere, the rest are ignored.
func (r *Resolver) ApplySuggestions() (replaced, ignored int) {
	for !r.Done() {
		p, _ := r.Current()
		if p.HasSuggestion {
			if n, err := r.ReplaceAll(p.Suggestion); err == nil {
				replaced += n
				continue
			}
		}
		r.Ignore()
		ignored++
	}
	return replaced, ignored
}
