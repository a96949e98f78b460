package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/jashezan/HomifyHub/internal/browser/dom"
)

// ContainerID is the id of the element toasts are appended to.
const ContainerID = "toast-container"

// DOMRenderer draws notifications as toasts inside the page.
type DOMRenderer struct {
	doc *dom.Document

	mu     sync.Mutex
	toasts map[Handle]*dom.Element
}

// NewDOMRenderer draws into doc, creating the toast container at the end of
// <body> when the page has none.
func NewDOMRenderer(doc *dom.Document) *DOMRenderer {
	return &DOMRenderer{doc: doc, toasts: make(map[Handle]*dom.Element)}
}

// Mount appends a toast element.
func (r *DOMRenderer) Mount(n Notification) {
	// Look up or create the container before locking the page for the edit.
	container := r.doc.ByID(ContainerID)
	body := r.doc.Body()
	toast := r.doc.CreateElement("div")

	_ = r.doc.Edit(func(tx *dom.Tx) error {
		if container == nil {
			container = r.doc.CreateElement("div")
			tx.SetAttr(container, "id", ContainerID)
			tx.SetAttr(container, "class", "toast-container")
			if body != nil {
				tx.AppendChild(body, container)
			}
		}
		tx.SetAttr(toast, "class", "toast toast-"+string(n.Kind))
		tx.SetAttr(toast, "role", "status")
		tx.SetAttr(toast, "data-toast-id", string(n.Handle))
		tx.SetText(toast, n.Message)
		tx.AppendChild(container, toast)
		return nil
	})

	r.mu.Lock()
	r.toasts[n.Handle] = toast
	r.mu.Unlock()
}

// BeginExit adds the hiding class. Toasts the page already removed are left
// alone.
func (r *DOMRenderer) BeginExit(h Handle) {
	if t := r.toast(h); t != nil && t.Attached() {
		t.AddClass("hiding")
	}
}

// Unmount removes the toast from the page.
func (r *DOMRenderer) Unmount(h Handle) {
	r.mu.Lock()
	t := r.toasts[h]
	delete(r.toasts, h)
	r.mu.Unlock()

	if t == nil || !t.Attached() {
		return
	}
	_ = r.doc.Edit(func(tx *dom.Tx) error {
		tx.Remove(t)
		return nil
	})
}

func (r *DOMRenderer) toast(h Handle) *dom.Element {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.toasts[h]
}

// ANSI colours per kind.
var kindColor = map[Kind]string{
	Success: "\033[32m",
	Error:   "\033[31m",
	Warning: "\033[33m",
	Info:    "\033[36m",
}

// WriterRenderer prints one line per notification, for terminals.
type WriterRenderer struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

// NewWriterRenderer prints to w, colouring the kind label when color is set.
func NewWriterRenderer(w io.Writer, color bool) *WriterRenderer {
	return &WriterRenderer{w: w, color: color}
}

// Mount prints the notification.
func (r *WriterRenderer) Mount(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	label := fmt.Sprintf("%-7s", n.Kind)
	if r.color {
		label = kindColor[n.Kind] + label + "\033[0m"
	}
	fmt.Fprintf(r.w, "%s %s\n", label, n.Message)
}

// BeginExit does nothing; printed lines stay.
func (r *WriterRenderer) BeginExit(Handle) {}

// Unmount does nothing; printed lines stay.
func (r *WriterRenderer) Unmount(Handle) {}
