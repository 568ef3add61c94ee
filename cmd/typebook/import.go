// Package main provides the CLI entrypoint for typebook.
package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/typebook/internal/editor"
	"github.com/verte-zerg/typebook/internal/epub"
	"github.com/verte-zerg/typebook/internal/importui"
	"github.com/verte-zerg/typebook/internal/model"
	"github.com/verte-zerg/typebook/internal/resolver"
	"github.com/verte-zerg/typebook/internal/sanitize"
)

var (
	importTitle            string
	importAuthor           string
	importGenre            string
	importBookID           string
	importCollapseNewlines bool
	importNormalizeLetters bool
	importAutoSplit        bool
	importHeadingMaxLen    int
	importDelete           []int
	importMerge            []int
	importIDs              []string
	importYes              bool
	importForce            bool
)

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE.epub",
		Short: "Import an EPUB book",
		Long: `Import an EPUB book.

Untypable characters are resolved in an interactive wizard. Without a terminal,
--yes applies the suggested replacements and ignores the rest.

--merge N joins chapter N with chapter N+1. --delete N removes chapter N.
Merges run first, highest index first; deletes then use the numbering left
after merging. --id N=ID pins chapter N (numbered after deletes) to id ID;
the other chapters are numbered around pinned ids.`,
		Args: cobra.ExactArgs(1),
		RunE: runImportCmd,
	}
	cmd.Flags().StringVar(&importTitle, "title", "", "override the book title")
	cmd.Flags().StringVar(&importAuthor, "author", "", "override the author")
	cmd.Flags().StringVar(&importGenre, "genre", "", "genre label")
	cmd.Flags().StringVar(&importBookID, "book-id", "", "book id (default: slug of the title)")
	cmd.Flags().BoolVar(&importCollapseNewlines, "collapse-newlines", false, "join line breaks inside paragraphs")
	cmd.Flags().BoolVar(&importNormalizeLetters, "normalize-letters", false, "strip diacritics and expand ligatures")
	cmd.Flags().BoolVar(&importAutoSplit, "auto-split", false, "split chapters at detected headings")
	cmd.Flags().IntVar(&importHeadingMaxLen, "heading-max-len", editor.DefaultHeadingRules().MaxLen, "longest paragraph treated as a heading")
	cmd.Flags().IntSliceVar(&importDelete, "delete", nil, "delete chapter N (1-based, repeatable)")
	cmd.Flags().IntSliceVar(&importMerge, "merge", nil, "merge chapter N into N+1 (1-based, repeatable)")
	cmd.Flags().StringSliceVar(&importIDs, "id", nil, "set the id of chapter N as N=ID (repeatable)")
	cmd.Flags().BoolVar(&importYes, "yes", false, "apply suggested replacements without asking")
	cmd.Flags().BoolVar(&importForce, "force", false, "overwrite an existing book with the same id")
	return cmd
}

func runImportCmd(cmd *cobra.Command, args []string) error {
	applyBoolConfig(cmd, "collapse-newlines", &importCollapseNewlines, fileCfg.Import.CollapseNewlines)
	applyBoolConfig(cmd, "normalize-letters", &importNormalizeLetters, fileCfg.Import.NormalizeLetters)
	applyBoolConfig(cmd, "auto-split", &importAutoSplit, fileCfg.Import.AutoSplit)
	applyIntConfig(cmd, "heading-max-len", &importHeadingMaxLen, fileCfg.Import.HeadingMaxLen)

	res, err := epub.ExtractFile(args[0], sanitize.Options{
		CollapseNewlines: importCollapseNewlines,
		NormalizeLetters: importNormalizeLetters,
	})
	if err != nil {
		return err
	}
	for _, href := range res.Skipped {
		logErrf("skipped unreadable spine item %s\n", href)
	}
	staging := res.Staging()
	if importTitle != "" {
		staging.Title = importTitle
	}
	if importAuthor != "" {
		staging.Author = importAuthor
	}
	staging.Genre = importGenre

	if err := resolveImport(staging); err != nil {
		return err
	}

	chapters, err := editChapters(staging.Chapters)
	if err != nil {
		return err
	}
	if len(chapters) == 0 {
		return fmt.Errorf("no chapters left to import: %w", model.ErrValidation)
	}
	staging.Chapters = chapters

	ctx := context.Background()
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	id := importBookID
	if id == "" {
		id = slugify(staging.Title)
	}
	if id == "" {
		id = uuid.NewString()
	}
	exists, err := st.BookExists(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check book: %w", err)
	}
	if exists && !importForce {
		return fmt.Errorf("book %q already exists, use --force to overwrite: %w", id, model.ErrCancelled)
	}

	book, docs := buildDocs(id, staging)
	if err := st.SaveBook(ctx, book, docs, staging.Cover); err != nil {
		return fmt.Errorf("failed to save book: %w", err)
	}
	chars := 0
	for _, doc := range docs {
		chars += len([]rune(model.ChapterText(doc.Segments)))
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %q as %s: %d chapters, %s characters\n",
		book.Title, book.ID, book.TotalChapters, humanize.Comma(int64(chars)))
	return err
}

// resolveImport clears untypable characters, interactively when possible.
func resolveImport(staging *model.Staging) error {
	r := resolver.New(staging)
	if r.Done() {
		return nil
	}
	if interactive() && !importYes {
		m := importui.NewModel(r)
		err := withLogFile(func() error {
			_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to run import wizard: %w", err)
		}
		if m.Cancelled() {
			return fmt.Errorf("import abandoned: %w", model.ErrCancelled)
		}
		return nil
	}
	if !importYes {
		return fmt.Errorf("%d untypable characters remain; run in a terminal or pass --yes: %w", r.Remaining(), model.ErrValidation)
	}
	replaced, ignored := r.ApplySuggestions()
	logErrf("applied %d replacements, left %d characters unresolved\n", replaced, ignored)
	return nil
}

// editChapters applies auto-split, merges, deletes and id overrides in that order.
func editChapters(chapters []model.Chapter) ([]model.Chapter, error) {
	overrides, err := parseIDOverrides(importIDs)
	if err != nil {
		return nil, err
	}
	if importAutoSplit {
		rules := editor.DefaultHeadingRules()
		rules.MaxLen = importHeadingMaxLen
		chapters = rules.AutoSplit(chapters)
	}
	for _, n := range descending(importMerge) {
		if chapters, err = editor.Merge(chapters, n-1); err != nil {
			return nil, fmt.Errorf("--merge %d: %w", n, err)
		}
	}
	for _, n := range descending(importDelete) {
		if chapters, err = editor.Delete(chapters, n-1); err != nil {
			return nil, fmt.Errorf("--delete %d: %w", n, err)
		}
	}
	for _, o := range overrides {
		if chapters, err = editor.SetID(chapters, o.chapter-1, o.id); err != nil {
			return nil, fmt.Errorf("--id %d=%d: %w", o.chapter, o.id, err)
		}
	}
	return chapters, nil
}

type idOverride struct {
	chapter int
	id      int
}

func parseIDOverrides(values []string) ([]idOverride, error) {
	out := make([]idOverride, 0, len(values))
	for _, v := range values {
		left, right, ok := strings.Cut(v, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --id value %q, want N=ID: %w", v, model.ErrValidation)
		}
		chapter, err := strconv.Atoi(strings.TrimSpace(left))
		if err != nil {
			return nil, fmt.Errorf("invalid --id chapter %q: %w", left, model.ErrValidation)
		}
		id, err := strconv.Atoi(strings.TrimSpace(right))
		if err != nil {
			return nil, fmt.Errorf("invalid --id value %q: %w", right, model.ErrValidation)
		}
		out = append(out, idOverride{chapter: chapter, id: id})
	}
	return out, nil
}

func descending(values []int) []int {
	out := make([]int, 0, len(values))
	seen := map[int]bool{}
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

func buildDocs(id string, staging *model.Staging) (model.BookDoc, []model.ChapterDoc) {
	book := model.BookDoc{
		ID:            id,
		Title:         staging.Title,
		Author:        staging.Author,
		Genre:         staging.Genre,
		TotalChapters: len(staging.Chapters),
	}
	if staging.Cover != nil {
		book.CoverURL = "/api/books/" + id + "/cover"
	}
	docs := make([]model.ChapterDoc, 0, len(staging.Chapters))
	for _, ch := range staging.Chapters {
		book.Chapters = append(book.Chapters, model.ChapterRef{ID: model.ChapterKey(ch.ID), Title: ch.Title})
		docs = append(docs, model.ChapterDoc{Segments: ch.Segments})
	}
	return book, docs
}
