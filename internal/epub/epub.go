// Package epub extracts chapters, author and cover from EPUB archives.
package epub

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/verte-zerg/typebook/internal/model"
	"github.com/verte-zerg/typebook/internal/sanitize"
)

// Result is the outcome of extracting one archive.
type Result struct {
	Title    string
	Author   string
	Cover    *model.Cover
	Chapters []model.Chapter
	// Skipped lists spine hrefs that could not be loaded.
	Skipped []string
}

// Staging converts the result into a Staging arena for the import flow.
func (r *Result) Staging() *model.Staging {
	return &model.Staging{
		Title:    r.Title,
		Author:   r.Author,
		Cover:    r.Cover,
		Chapters: r.Chapters,
	}
}

// ExtractFile opens and extracts an EPUB from disk.
func ExtractFile(name string, opts sanitize.Options) (*Result, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read epub: %w", err)
	}
	return Extract(data, opts)
}

// Extract parses an EPUB archive held in memory.
func Extract(data []byte, opts sanitize.Options) (*Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &model.FormatError{Reason: fmt.Sprintf("not a zip container: %v", err)}
	}
	ar := newArchive(zr)

	opfPath, ok := ar.packagePath()
	if !ok {
		return nil, &model.FormatError{Reason: "no package document found"}
	}
	raw, err := ar.read(opfPath)
	if err != nil {
		return nil, &model.FormatError{Reason: err.Error()}
	}
	var pkg packageDoc
	if err := xml.Unmarshal(raw, &pkg); err != nil {
		return nil, &model.FormatError{Reason: fmt.Sprintf("invalid package document %s: %v", opfPath, err)}
	}
	baseDir := path.Dir(opfPath)

	res := &Result{}
	if len(pkg.Metadata.Titles) > 0 {
		res.Title = strings.TrimSpace(pkg.Metadata.Titles[0])
	}
	if len(pkg.Metadata.Creators) > 0 {
		res.Author = strings.TrimSpace(pkg.Metadata.Creators[0])
	}

	for _, ref := range pkg.Spine.Itemrefs {
		item, ok := pkg.item(ref.IDRef)
		if !ok {
			res.Skipped = append(res.Skipped, ref.IDRef)
			continue
		}
		href := resolveHref(baseDir, item.Href)
		markup, err := ar.read(href)
		if err != nil {
			res.Skipped = append(res.Skipped, href)
			continue
		}
		content, err := parseContent(markup)
		if err != nil {
			res.Skipped = append(res.Skipped, href)
			continue
		}
		segments := make([]model.Segment, 0, len(content.paragraphs))
		for _, p := range content.paragraphs {
			text := sanitize.Paragraph(p, opts)
			if text == "" {
				continue
			}
			segments = append(segments, model.Segment{Text: text})
		}
		if len(segments) == 0 {
			continue
		}
		n := len(res.Chapters) + 1
		title := cleanTitle(content.title, opts)
		if title == "" {
			title = fmt.Sprintf("Chapter %d", n)
		}
		res.Chapters = append(res.Chapters, model.Chapter{ID: n, Title: title, Segments: segments})
	}

	res.Cover = extractCover(ar, &pkg, baseDir)
	return res, nil
}

func cleanTitle(title string, opts sanitize.Options) string {
	opts.CollapseNewlines = true
	return strings.TrimPrefix(sanitize.Paragraph(title, opts), sanitize.ParagraphMarker)
}

// extractCover tries the cover metadata entry, then the cover-image property, then
// any image item whose id mentions "cover". A missing cover is not an error.
func extractCover(ar *archive, pkg *packageDoc, baseDir string) *model.Cover {
	var candidates []manifestItem
	for _, m := range pkg.Metadata.Metas {
		if m.Name == "cover" && m.Content != "" {
			if it, ok := pkg.item(m.Content); ok {
				candidates = append(candidates, it)
			}
			break
		}
	}
	for _, it := range pkg.Manifest.Items {
		for _, prop := range strings.Fields(it.Properties) {
			if prop == "cover-image" {
				candidates = append(candidates, it)
				break
			}
		}
	}
	for _, it := range pkg.Manifest.Items {
		if strings.Contains(strings.ToLower(it.ID), "cover") && strings.HasPrefix(it.MediaType, "image/") {
			candidates = append(candidates, it)
		}
	}
	for _, it := range candidates {
		href := resolveHref(baseDir, it.Href)
		data, err := ar.read(href)
		if err != nil || len(data) == 0 {
			continue
		}
		return &model.Cover{Href: href, MediaType: it.MediaType, Data: data}
	}
	return nil
}
