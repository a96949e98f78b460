// Package notify shows transient, auto-dismissing notifications.
package notify

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind selects the notification's styling and default lifetime.
type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
	Warning Kind = "warning"
	Info    Kind = "info"
)

// Duration values with special meaning for Show.
const (
	// UseDefault selects the kind's default lifetime.
	UseDefault time.Duration = -1
	// Forever keeps the notification until it is dismissed.
	Forever time.Duration = 0
)

// ExitTransition is how long a dismissed notification keeps its hiding
// class before it is removed.
const ExitTransition = 300 * time.Millisecond

// DefaultDuration returns the lifetime of kind when none is given.
func DefaultDuration(kind Kind) time.Duration {
	switch kind {
	case Success, Info:
		return 3 * time.Second
	case Warning:
		return 4 * time.Second
	case Error:
		return 5 * time.Second
	default:
		return 3 * time.Second
	}
}

// Handle identifies a shown notification.
type Handle string

// Notification is one message on screen.
type Notification struct {
	Handle   Handle
	Message  string
	Kind     Kind
	Duration time.Duration
	Shown    time.Time
}

// Renderer puts notifications on screen. Calls for one handle arrive in
// order Mount, BeginExit, Unmount.
type Renderer interface {
	Mount(n Notification)
	BeginExit(h Handle)
	Unmount(h Handle)
}

// Timer is the part of *time.Timer the notifier uses.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d, like time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

// Option configures a Notifier.
type Option func(*Notifier)

// WithAfterFunc replaces the timer source, for tests.
func WithAfterFunc(f AfterFunc) Option {
	return func(n *Notifier) { n.afterFunc = f }
}

// WithClock replaces the clock used for Notification.Shown.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) { n.now = now }
}

// WithExitTransition overrides ExitTransition.
func WithExitTransition(d time.Duration) Option {
	return func(n *Notifier) { n.exit = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) { n.logger = l }
}

type entry struct {
	n       Notification
	timer   Timer
	exiting bool
}

// Notifier tracks the notifications on screen. It is safe for concurrent
// use; timer callbacks may run on any goroutine.
type Notifier struct {
	mu        sync.Mutex
	renderer  Renderer
	afterFunc AfterFunc
	now       func() time.Time
	exit      time.Duration
	logger    *slog.Logger
	active    map[Handle]*entry
	closed    bool
}

// New creates a notifier drawing with r.
func New(r Renderer, opts ...Option) *Notifier {
	n := &Notifier{
		renderer: r,
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
		now:    time.Now,
		exit:   ExitTransition,
		logger: slog.Default(),
		active: make(map[Handle]*entry),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Show displays message. A negative duration selects the kind default,
// zero keeps it until dismissed.
func (n *Notifier) Show(message string, kind Kind, duration time.Duration) Handle {
	if duration < 0 {
		duration = DefaultDuration(kind)
	}
	h := Handle(uuid.NewString())
	note := Notification{
		Handle:   h,
		Message:  message,
		Kind:     kind,
		Duration: duration,
		Shown:    n.now(),
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return h
	}

	e := &entry{n: note}
	n.active[h] = e
	n.renderer.Mount(note)
	if duration > 0 {
		e.timer = n.afterFunc(duration, func() { n.Dismiss(h) })
	}
	return h
}

// Success shows a success notification with the default lifetime.
func (n *Notifier) Success(message string) Handle { return n.Show(message, Success, UseDefault) }

// Error shows an error notification with the default lifetime.
func (n *Notifier) Error(message string) Handle { return n.Show(message, Error, UseDefault) }

// Warning shows a warning notification with the default lifetime.
func (n *Notifier) Warning(message string) Handle { return n.Show(message, Warning, UseDefault) }

// Info shows an info notification with the default lifetime.
func (n *Notifier) Info(message string) Handle { return n.Show(message, Info, UseDefault) }

// Sticky shows a notification that stays until dismissed.
func (n *Notifier) Sticky(message string, kind Kind) Handle { return n.Show(message, kind, Forever) }

// Dismiss starts the exit transition of h and removes it afterwards. It
// reports false when h is unknown or already leaving.
func (n *Notifier) Dismiss(h Handle) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	e, ok := n.active[h]
	if !ok || e.exiting {
		return false
	}
	e.exiting = true
	if e.timer != nil {
		e.timer.Stop()
	}
	n.renderer.BeginExit(h)

	if n.exit <= 0 || n.closed {
		n.unmountLocked(h)
		return true
	}
	e.timer = n.afterFunc(n.exit, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		n.unmountLocked(h)
	})
	return true
}

func (n *Notifier) unmountLocked(h Handle) {
	if _, ok := n.active[h]; !ok {
		return
	}
	delete(n.active, h)
	n.renderer.Unmount(h)
}

// Active returns the notifications on screen, oldest first, including those
// in their exit transition.
func (n *Notifier) Active() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]Notification, 0, len(n.active))
	for _, e := range n.active {
		out = append(out, e.n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Shown.Before(out[j].Shown) })
	return out
}

// Close stops every pending timer and removes all notifications.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.closed = true
	for h, e := range n.active {
		if e.timer != nil {
			e.timer.Stop()
		}
		n.unmountLocked(h)
	}
}
