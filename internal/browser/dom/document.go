// Package dom adapts a server-rendered storefront page to the operations the
// browser-side packages need: attribute and class access, badge text edits,
// toast insertion and removal. Every access goes through the Document lock so
// timer callbacks and HTTP completions can touch the page from any goroutine.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Document is a parsed page.
type Document struct {
	mu   sync.RWMutex
	root *html.Node
}

// Parse reads an HTML page.
func Parse(r io.Reader) (*Document, error) {
	root, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseString is Parse for an in-memory page.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Authenticated reports the page's sign-in flag, <body data-authenticated="true">.
func (d *Document) Authenticated() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	body := htmlquery.FindOne(d.root, "//body")
	if body == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(htmlquery.SelectAttr(body, "data-authenticated")), "true")
}

// CSRFToken returns the token from the csrfmiddlewaretoken input, falling
// back to <meta name="csrf-token">. It reads the page on every call.
func (d *Document) CSRFToken() string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if n := htmlquery.FindOne(d.root, "//input[@name='csrfmiddlewaretoken']"); n != nil {
		if v := strings.TrimSpace(htmlquery.SelectAttr(n, "value")); v != "" {
			return v
		}
	}
	if n := htmlquery.FindOne(d.root, "//meta[@name='csrf-token']"); n != nil {
		return strings.TrimSpace(htmlquery.SelectAttr(n, "content"))
	}
	return ""
}

// Find returns the elements matching an XPath expression.
func (d *Document) Find(expr string) ([]*Element, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	nodes, err := htmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", expr, err)
	}
	return d.wrap(nodes), nil
}

// FindOne returns the first element matching expr, or nil.
func (d *Document) FindOne(expr string) (*Element, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n, err := htmlquery.Query(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", expr, err)
	}
	if n == nil {
		return nil, nil
	}
	return &Element{doc: d, node: n}, nil
}

// ByClass returns every element carrying class in its class list.
func (d *Document) ByClass(class string) []*Element {
	els, _ := d.Find(classXPath(class))
	return els
}

// ByID returns the element with the given id, or nil.
func (d *Document) ByID(id string) *Element {
	el, _ := d.FindOne(fmt.Sprintf("//*[@id=%s]", xpathLiteral(id)))
	return el
}

// Body returns the <body> element.
func (d *Document) Body() *Element {
	el, _ := d.FindOne("//body")
	return el
}

// CreateElement returns a detached element. Attach it with Tx.AppendChild.
func (d *Document) CreateElement(tag string) *Element {
	return &Element{doc: d, node: &html.Node{Type: html.ElementNode, Data: strings.ToLower(tag)}}
}

// Edit runs fn with the document locked, so every change fn makes becomes
// visible at once.
func (d *Document) Edit(fn func(tx *Tx) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(&Tx{doc: d})
}

// Render writes the page as HTML.
func (d *Document) Render(w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return html.Render(w, d.root)
}

// String renders the page, for logs and tests.
func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

func (d *Document) wrap(nodes []*html.Node) []*Element {
	els := make([]*Element, len(nodes))
	for i, n := range nodes {
		els[i] = &Element{doc: d, node: n}
	}
	return els
}

func classXPath(class string) string {
	return fmt.Sprintf("//*[contains(concat(' ', normalize-space(@class), ' '), %s)]", xpathLiteral(" "+class+" "))
}

// xpathLiteral quotes s for use in an XPath expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}
