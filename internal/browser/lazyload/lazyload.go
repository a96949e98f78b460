// Package lazyload swaps placeholder images for their real source once they
// become visible.
package lazyload

import (
	"sync"

	"github.com/jashezan/HomifyHub/internal/browser/dom"
)

// PendingAttr holds the deferred image source.
const PendingAttr = "data-src"

// LoadedClass marks images whose source has been resolved.
const LoadedClass = "loaded"

// Observer reports elements entering the viewport.
type Observer interface {
	Observe(el *dom.Element)
	Unobserve(el *dom.Element)
}

// ObserverFactory creates an observer that calls back on intersection. A nil
// factory means the runtime has no intersection primitive.
type ObserverFactory func(onVisible func(el *dom.Element)) Observer

// Loader tracks pending images.
type Loader struct {
	doc      *dom.Document
	observer Observer

	mu      sync.Mutex
	pending []*dom.Element
}

// Init finds every image with a pending source. With a factory the images are
// observed; without one they all load now.
func Init(doc *dom.Document, factory ObserverFactory) *Loader {
	l := &Loader{doc: doc}
	images, _ := doc.Find("//img[@" + PendingAttr + "]")

	if factory == nil {
		for _, img := range images {
			l.resolve(img)
		}
		return l
	}

	l.observer = factory(l.onVisible)
	l.mu.Lock()
	l.pending = append(l.pending, images...)
	l.mu.Unlock()
	for _, img := range images {
		l.observer.Observe(img)
	}
	return l
}

func (l *Loader) onVisible(el *dom.Element) {
	if !l.take(el) {
		return
	}
	l.observer.Unobserve(el)
	l.resolve(el)
}

// take removes el from the pending set, reporting whether it was there.
func (l *Loader) take(el *dom.Element) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, p := range l.pending {
		if p.Same(el) {
			l.pending = append(l.pending[:i], l.pending[i+1:]...)
			return true
		}
	}
	return false
}

func (l *Loader) resolve(img *dom.Element) {
	_ = l.doc.Edit(func(tx *dom.Tx) error {
		src, ok := tx.Attr(img, PendingAttr)
		if !ok || src == "" {
			return nil
		}
		tx.SetAttr(img, "src", src)
		tx.AddClass(img, LoadedClass)
		return nil
	})
}

// Pending returns the number of images still waiting for visibility.
func (l *Loader) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}
