// Package badge keeps the cart and wishlist counters on the page in step with
// the counts the storefront reports.
package badge

import (
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/jashezan/HomifyHub/internal/browser/dom"
)

// Kind names a badge.
type Kind string

const (
	Cart     Kind = "cart"
	Wishlist Kind = "wishlist"
)

// Class is the CSS class carried by every node of the badge.
func (k Kind) Class() string { return string(k) + "-count" }

// ZeroPolicy decides what a badge shows at zero.
type ZeroPolicy int

const (
	HideZero ZeroPolicy = iota
	ShowZero
)

// Config configures a Reconciler.
type Config struct {
	Authenticated bool
	// Zero holds per-kind policies; kinds not listed hide at zero.
	Zero   map[Kind]ZeroPolicy
	Logger *slog.Logger
}

type state struct {
	count   int
	applied uint64
	issued  uint64
}

// Reconciler overwrites badge nodes with server counts.
type Reconciler struct {
	doc    *dom.Document
	auth   bool
	zero   map[Kind]ZeroPolicy
	logger *slog.Logger

	mu    sync.Mutex
	state map[Kind]*state
}

// New creates a reconciler for doc.
func New(doc *dom.Document, cfg Config) *Reconciler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		doc:    doc,
		auth:   cfg.Authenticated,
		zero:   cfg.Zero,
		logger: logger,
		state: map[Kind]*state{
			Cart:     {},
			Wishlist: {},
		},
	}
}

// InitFromPage seeds the counts from the server-rendered badges.
func (r *Reconciler) InitFromPage() {
	for _, kind := range []Kind{Cart, Wishlist} {
		if kind == Wishlist && !r.auth {
			continue
		}
		nodes := r.doc.ByClass(kind.Class())
		if len(nodes) == 0 {
			continue
		}
		count, err := strconv.Atoi(strings.TrimSpace(nodes[0].Text()))
		if err != nil {
			count = 0
		}
		r.Reconcile(kind, count)
	}
}

// Reconcile sets every node of kind to count. It reports false when the badge
// is not applicable, currently only the wishlist for guests.
func (r *Reconciler) Reconcile(kind Kind, count int) bool {
	return r.ReconcileSeq(kind, r.NextSeq(kind), count)
}

// NextSeq reserves the next sequence number for kind. Callers take one before
// issuing a request and pass it to ReconcileSeq with the response.
func (r *Reconciler) NextSeq(kind Kind) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.stateLocked(kind)
	st.issued++
	return st.issued
}

// ReconcileSeq applies count unless a response with a newer sequence number
// was already applied.
func (r *Reconciler) ReconcileSeq(kind Kind, seq uint64, count int) bool {
	if kind == Wishlist && !r.auth {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.stateLocked(kind)
	if seq < st.applied {
		r.logger.Debug("dropping stale badge count",
			"badge", string(kind),
			"seq", seq,
			"applied", st.applied,
		)
		return false
	}

	// Hold r.mu across the edit so concurrent reconciles land in seq order.
	nodes := r.doc.ByClass(kind.Class())
	text := strconv.Itoa(count)
	hide := count <= 0 && r.zero[kind] != ShowZero
	_ = r.doc.Edit(func(tx *dom.Tx) error {
		for _, n := range nodes {
			tx.SetText(n, text)
			if hide {
				tx.SetAttr(n, "hidden", "")
			} else {
				tx.RemoveAttr(n, "hidden")
			}
		}
		return nil
	})

	st.applied = seq
	st.count = count
	return true
}

// Count returns the last applied count of kind.
func (r *Reconciler) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked(kind).count
}

// Authenticated reports the page's auth flag.
func (r *Reconciler) Authenticated() bool { return r.auth }

func (r *Reconciler) stateLocked(kind Kind) *state {
	st, ok := r.state[kind]
	if !ok {
		st = &state{}
		r.state[kind] = st
	}
	return st
}
