// Package epub extracts chapters, author and cover from EPUB archives.
package epub

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
)

const containerPath = "META-INF/container.xml"

type containerDoc struct {
	Rootfiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

type manifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

type packageDoc struct {
	Metadata struct {
		Titles   []string `xml:"title"`
		Creators []string `xml:"creator"`
		Metas    []struct {
			Name    string `xml:"name,attr"`
			Content string `xml:"content,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Manifest struct {
		Items []manifestItem `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		Itemrefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

func (p *packageDoc) item(id string) (manifestItem, bool) {
	for _, it := range p.Manifest.Items {
		if it.ID == id {
			return it, true
		}
	}
	return manifestItem{}, false
}

// archive indexes zip entries by name.
type archive struct {
	files []*zip.File
	byKey map[string]*zip.File
}

func newArchive(zr *zip.Reader) *archive {
	a := &archive{files: zr.File, byKey: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		a.byKey[f.Name] = f
	}
	return a
}

func (a *archive) lookup(name string) (*zip.File, bool) {
	if f, ok := a.byKey[name]; ok {
		return f, true
	}
	for _, f := range a.files {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return nil, false
}

func (a *archive) read(name string) ([]byte, error) {
	f, ok := a.lookup(name)
	if !ok {
		return nil, fmt.Errorf("entry %q not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", name, err)
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			// Best-effort close for a read-only entry.
			_ = cerr
		}
	}()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", name, err)
	}
	return data, nil
}

// packagePath prefers the rootfile declared in container.xml and falls back to
// the first .opf entry in the archive.
func (a *archive) packagePath() (string, bool) {
	if data, err := a.read(containerPath); err == nil {
		var c containerDoc
		if err := xml.Unmarshal(data, &c); err == nil {
			for _, rf := range c.Rootfiles {
				p := strings.TrimPrefix(rf.FullPath, "/")
				if p == "" {
					continue
				}
				if _, ok := a.lookup(p); ok {
					return p, true
				}
			}
		}
	}
	for _, f := range a.files {
		if strings.EqualFold(path.Ext(f.Name), ".opf") {
			return f.Name, true
		}
	}
	return "", false
}

// resolveHref resolves href against the package document directory.
func resolveHref(baseDir, href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	var joined string
	if strings.HasPrefix(href, "/") {
		joined = path.Clean(href)
	} else {
		joined = path.Join(baseDir, href)
	}
	joined = strings.TrimPrefix(joined, "/")
	if joined == "." {
		return ""
	}
	return joined
}
