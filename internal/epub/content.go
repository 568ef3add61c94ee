// Package epub extracts chapters, author and cover from EPUB archives.
package epub

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var selfClosing = regexp.MustCompile(`<([A-Za-z][A-Za-z0-9_.:-]*)(\s[^<>]*?)?\s*/>`)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true,
	"img": true, "input": true, "link": true, "meta": true, "param": true,
	"source": true, "track": true, "wbr": true,
}

// expandSelfClosing rewrites XML empty-element tags such as <title/> or <a id="x"/>
// into open and close pairs. The HTML parser ignores the trailing slash on
// non-void elements and would otherwise swallow the following markup.
func expandSelfClosing(markup []byte) []byte {
	return selfClosing.ReplaceAllFunc(markup, func(tag []byte) []byte {
		m := selfClosing.FindSubmatch(tag)
		name := string(m[1])
		local := name
		if i := strings.LastIndexByte(local, ':'); i >= 0 {
			local = local[i+1:]
		}
		if voidElements[strings.ToLower(local)] {
			return tag
		}
		out := make([]byte, 0, len(tag)+len(name)+3)
		out = append(out, '<')
		out = append(out, name...)
		out = append(out, m[2]...)
		out = append(out, "></"...)
		out = append(out, name...)
		return append(out, '>')
	})
}

type content struct {
	title      string
	paragraphs []string
}

// parseContent reads an XHTML content document: the first h1-h3 heading becomes
// the title and every <p> becomes a paragraph in document order.
func parseContent(markup []byte) (content, error) {
	doc, err := html.Parse(bytes.NewReader(expandSelfClosing(markup)))
	if err != nil {
		return content{}, err
	}
	var c content
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Head:
				return
			case atom.H1, atom.H2, atom.H3:
				if c.title == "" {
					c.title = strings.Join(strings.Fields(nodeText(n)), " ")
				}
				return
			case atom.P:
				c.paragraphs = append(c.paragraphs, nodeText(n))
				return
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			visit(child)
		}
	}
	visit(doc)
	return c, nil
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Br:
				b.WriteByte('\n')
				return
			case atom.Script, atom.Style:
				return
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return b.String()
}
