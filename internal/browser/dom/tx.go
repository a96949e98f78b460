package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Tx applies changes while Document.Edit holds the lock. It must not be
// used after fn returns.
type Tx struct {
	doc *Document
}

// Attr reads an attribute inside the edit.
func (tx *Tx) Attr(e *Element, key string) (string, bool) {
	return attr(e.node, key)
}

// HasClass reads the class list inside the edit.
func (tx *Tx) HasClass(e *Element, class string) bool {
	return hasClass(e.node, class)
}

// SetAttr sets attribute key, replacing any previous value.
func (tx *Tx) SetAttr(e *Element, key, val string) {
	for i, a := range e.node.Attr {
		if a.Key == key {
			e.node.Attr[i].Val = val
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes attribute key if present.
func (tx *Tx) RemoveAttr(e *Element, key string) {
	for i, a := range e.node.Attr {
		if a.Key == key {
			e.node.Attr = append(e.node.Attr[:i], e.node.Attr[i+1:]...)
			return
		}
	}
}

// AddClass adds class unless already present.
func (tx *Tx) AddClass(e *Element, class string) {
	if hasClass(e.node, class) {
		return
	}
	v, _ := attr(e.node, "class")
	tx.SetAttr(e, "class", strings.TrimSpace(v+" "+class))
}

// RemoveClass removes every occurrence of class.
func (tx *Tx) RemoveClass(e *Element, class string) {
	v, ok := attr(e.node, "class")
	if !ok {
		return
	}
	kept := make([]string, 0, 4)
	for _, c := range strings.Fields(v) {
		if c != class {
			kept = append(kept, c)
		}
	}
	tx.SetAttr(e, "class", strings.Join(kept, " "))
}

// SetText replaces the element's children with a single text node.
func (tx *Tx) SetText(e *Element, text string) {
	for c := e.node.FirstChild; c != nil; {
		next := c.NextSibling
		e.node.RemoveChild(c)
		c = next
	}
	e.node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// AppendChild moves child to the end of parent's children.
func (tx *Tx) AppendChild(parent, child *Element) {
	if child.node.Parent != nil {
		child.node.Parent.RemoveChild(child.node)
	}
	parent.node.AppendChild(child.node)
}

// Remove detaches e from the page. Removing a detached element is a no-op.
func (tx *Tx) Remove(e *Element) {
	if e.node.Parent != nil {
		e.node.Parent.RemoveChild(e.node)
	}
}
