// Package dom wraps an HTML snapshot of the host page. A Document is taken
// right before it is used and is never kept across events: the host page
// rebuilds its markup at will.
package dom

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// SlideInMarker is present while the host shows its transient slide-in panel.
const SlideInMarker = ".base-slidein__modal--open,[data-test-base-slidein]"

// Document is a parsed page snapshot.
type Document struct {
	doc *goquery.Document
	url string
}

// Element is a single node of a Document.
type Element struct {
	sel *goquery.Selection
}

// Parse builds a Document from markup taken at url.
func Parse(r io.Reader, url string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}
	return &Document{doc: doc, url: url}, nil
}

// ParseString is Parse for in-memory markup.
func ParseString(markup, url string) (*Document, error) {
	return Parse(strings.NewReader(markup), url)
}

// URL returns the location the snapshot was taken at.
func (d *Document) URL() string {
	if d == nil {
		return ""
	}
	return d.url
}

// Compile parses a CSS selector group.
func Compile(selector string) (cascadia.Selector, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, fmt.Errorf("empty selector")
	}
	compiled, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return compiled, nil
}

// Query returns every element matching selector in document order.
func (d *Document) Query(selector string) ([]Element, error) {
	if d == nil {
		return nil, nil
	}
	m, err := Compile(selector)
	if err != nil {
		return nil, err
	}
	return elements(d.doc.FindMatcher(m)), nil
}

// First returns the first element matching selector. Invalid selectors and
// missing elements both report ok=false.
func (d *Document) First(selector string) (Element, bool) {
	if d == nil {
		return Element{}, false
	}
	return first(d.doc.Selection, selector)
}

// Exists reports whether selector matches anything.
func (d *Document) Exists(selector string) bool {
	_, ok := d.First(selector)
	return ok
}

// SlideInOpen reports whether the slide-in marker is present.
func (d *Document) SlideInOpen() bool {
	return d.Exists(SlideInMarker)
}

// First returns the first descendant of e matching selector.
func (e Element) First(selector string) (Element, bool) {
	if e.sel == nil {
		return Element{}, false
	}
	return first(e.sel, selector)
}

// Query returns every descendant of e matching selector.
func (e Element) Query(selector string) ([]Element, error) {
	if e.sel == nil {
		return nil, nil
	}
	m, err := Compile(selector)
	if err != nil {
		return nil, err
	}
	return elements(e.sel.FindMatcher(m)), nil
}

// Closest returns the nearest ancestor of e (e included) matching selector.
func (e Element) Closest(selector string) (Element, bool) {
	if e.sel == nil {
		return Element{}, false
	}
	m, err := Compile(selector)
	if err != nil {
		return Element{}, false
	}
	found := e.sel.ClosestMatcher(m)
	if found.Length() == 0 {
		return Element{}, false
	}
	return Element{sel: found.First()}, true
}

// Node returns the underlying node. Two Elements are the same element when
// their nodes are equal.
func (e Element) Node() *html.Node {
	if e.sel == nil {
		return nil
	}
	return e.sel.Get(0)
}

// Valid reports whether e refers to a node.
func (e Element) Valid() bool {
	return e.Node() != nil
}

// Tag returns the lower-case tag name.
func (e Element) Tag() string {
	if n := e.Node(); n != nil {
		return n.Data
	}
	return ""
}

// Attr returns the value of the named attribute.
func (e Element) Attr(name string) (string, bool) {
	if e.sel == nil {
		return "", false
	}
	return e.sel.Attr(name)
}

// Text returns the text content with whitespace normalized.
func (e Element) Text() string {
	if e.sel == nil {
		return ""
	}
	return NormalizeSpace(e.sel.Text())
}

// Path returns a CSS selector that addresses e by position from the root,
// e.g. "html > body:nth-child(2) > div:nth-child(1)".
func (e Element) Path() string {
	n := e.Node()
	if n == nil {
		return ""
	}

	var parts []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		if cur.Parent == nil || cur.Parent.Type != html.ElementNode {
			parts = append(parts, cur.Data)
			break
		}
		parts = append(parts, cur.Data+":nth-child("+strconv.Itoa(elementIndex(cur))+")")
	}

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

func elementIndex(n *html.Node) int {
	idx := 1
	for sib := n.PrevSibling; sib != nil; sib = sib.PrevSibling {
		if sib.Type == html.ElementNode {
			idx++
		}
	}
	return idx
}

func first(scope *goquery.Selection, selector string) (Element, bool) {
	m, err := Compile(selector)
	if err != nil {
		return Element{}, false
	}
	found := scope.FindMatcher(m)
	if found.Length() == 0 {
		return Element{}, false
	}
	return Element{sel: found.First()}, true
}

func elements(sel *goquery.Selection) []Element {
	result := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		result = append(result, Element{sel: s})
	})
	return result
}

// NormalizeSpace trims every line, collapses inner runs of blanks and drops
// empty lines.
func NormalizeSpace(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
