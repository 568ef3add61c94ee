// Package main provides the CLI entrypoint for typebook.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/typebook/internal/model"
	"github.com/verte-zerg/typebook/internal/store"
)

var (
	booksDelete  string
	exportFormat string
	exportOutput string
)

func newBooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "List imported books",
		Args:  cobra.NoArgs,
		RunE:  runBooksCmd,
	}
	cmd.Flags().StringVar(&booksDelete, "delete", "", "delete the book with this id")
	return cmd
}

func runBooksCmd(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := context.Background()
	out := cmd.OutOrStdout()
	if booksDelete != "" {
		if err := st.DeleteBook(ctx, booksDelete); err != nil {
			return fmt.Errorf("failed to delete book: %w", err)
		}
		_, err := fmt.Fprintf(out, "Deleted %s\n", booksDelete)
		return err
	}
	books, err := st.ListBooks(ctx)
	if err != nil {
		return fmt.Errorf("failed to list books: %w", err)
	}
	if len(books) == 0 {
		logErrln("No books imported yet. Import one with: typebook import FILE.epub")
		return nil
	}
	return writeBookList(out, books)
}

func writeBookList(w io.Writer, books []model.BookDoc) error {
	for _, b := range books {
		line := fmt.Sprintf("%s\t%s", b.ID, b.Title)
		if b.Author != "" {
			line += " by " + b.Author
		}
		line += fmt.Sprintf("\t%s chapters", humanize.Comma(int64(b.TotalChapters)))
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export BOOK",
		Short: "Export a book and its chapters as YAML or JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runExportCmd,
	}
	cmd.Flags().StringVar(&exportFormat, "format", "yaml", "output format (yaml or json)")
	cmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	return cmd
}

// exportChapter is one chapter document with its key and title.
type exportChapter struct {
	Key      string          `json:"key" yaml:"key"`
	Title    string          `json:"title" yaml:"title"`
	Segments []model.Segment `json:"segments" yaml:"segments"`
}

// exportDoc is the full export of one book.
type exportDoc struct {
	Book     model.BookDoc   `json:"book" yaml:"book"`
	Chapters []exportChapter `json:"chapters" yaml:"chapters"`
}

func runExportCmd(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(exportFormat)
	if format != "yaml" && format != "json" {
		return fmt.Errorf("--format must be yaml or json")
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	doc, err := loadExport(context.Background(), st, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil {
				logErrf("failed to close output: %v\n", cerr)
			}
		}()
		out = f
	}
	return encodeExport(out, doc, format)
}

func loadExport(ctx context.Context, st *store.Store, id string) (exportDoc, error) {
	book, err := st.GetBook(ctx, id)
	if err != nil {
		return exportDoc{}, err
	}
	doc := exportDoc{Book: book}
	for _, ref := range book.Chapters {
		ch, err := st.GetChapter(ctx, id, ref.ID)
		if err != nil {
			return exportDoc{}, fmt.Errorf("failed to load %s: %w", ref.ID, err)
		}
		doc.Chapters = append(doc.Chapters, exportChapter{Key: ref.ID, Title: ref.Title, Segments: ch.Segments})
	}
	return doc, nil
}

func encodeExport(w io.Writer, doc exportDoc, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}
