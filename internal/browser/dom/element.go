package dom

import (
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Element is a handle on a node of a Document. Reads lock the document for
// reading; writes go through Document.Edit.
type Element struct {
	doc  *Document
	node *html.Node
}

// Tag returns the element name.
func (e *Element) Tag() string {
	return e.node.Data
}

// Attr returns the value of attribute key.
func (e *Element) Attr(key string) (string, bool) {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return attr(e.node, key)
}

// AttrOr returns the value of attribute key, or def when absent.
func (e *Element) AttrOr(key, def string) string {
	if v, ok := e.Attr(key); ok {
		return v
	}
	return def
}

// HasAttr reports whether attribute key is present.
func (e *Element) HasAttr(key string) bool {
	_, ok := e.Attr(key)
	return ok
}

// ID returns the id attribute.
func (e *Element) ID() string {
	return e.AttrOr("id", "")
}

// HasClass reports whether class is in the element's class list.
func (e *Element) HasClass(class string) bool {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return hasClass(e.node, class)
}

// Text returns the element's text content.
func (e *Element) Text() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return htmlquery.InnerText(e.node)
}

// Attached reports whether the element is still part of the page.
func (e *Element) Attached() bool {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	for n := e.node; n != nil; n = n.Parent {
		if n == e.doc.root {
			return true
		}
	}
	return false
}

// Find returns descendants matching a relative XPath expression.
func (e *Element) Find(expr string) ([]*Element, error) {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	nodes, err := htmlquery.QueryAll(e.node, expr)
	if err != nil {
		return nil, err
	}
	return e.doc.wrap(nodes), nil
}

// SetAttr sets attribute key.
func (e *Element) SetAttr(key, val string) {
	_ = e.doc.Edit(func(tx *Tx) error {
		tx.SetAttr(e, key, val)
		return nil
	})
}

// AddClass adds class to the class list.
func (e *Element) AddClass(class string) {
	_ = e.doc.Edit(func(tx *Tx) error {
		tx.AddClass(e, class)
		return nil
	})
}

// RemoveClass removes class from the class list.
func (e *Element) RemoveClass(class string) {
	_ = e.doc.Edit(func(tx *Tx) error {
		tx.RemoveClass(e, class)
		return nil
	})
}

// Same reports whether both handles point at the same node.
func (e *Element) Same(other *Element) bool {
	return other != nil && e.node == other.node
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasClass(n *html.Node, class string) bool {
	v, _ := attr(n, "class")
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}
