// Package notify keeps a bounded, newest-first log of user facing
// notifications about the outcome of mutations.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"finflow/internal/stream"
)

// Type is the severity of a notification.
type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeWarning Type = "warning"
	TypeInfo    Type = "info"
)

// Category tags the domain a notification belongs to.
type Category string

const (
	CategoryIncome     Category = "income"
	CategoryExpense    Category = "expense"
	CategoryDebt       Category = "debt"
	CategorySaving     Category = "saving"
	CategoryBudget     Category = "budget"
	CategoryInvestment Category = "investment"
	CategoryGeneral    Category = "general"
)

const (
	DefaultMaxEntries   = 50
	DefaultDismissAfter = 5 * time.Second
)

// Entry is one notification.
type Entry struct {
	ID        string
	Type      Type
	Title     string
	Message   string
	Category  Category
	Action    string
	Data      any
	Timestamp time.Time
	Read      bool
}

// Draft is the caller supplied part of an Entry.
type Draft struct {
	Type     Type
	Title    string
	Message  string
	Category Category
	Action   string
	Data     any
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, f func()) { time.AfterFunc(d, f) }

// Option configures a Log.
type Option func(*Log)

// WithMaxEntries caps the log size.
func WithMaxEntries(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.max = n
		}
	}
}

// WithDismissAfter sets the auto-dismiss delay for transient categories.
func WithDismissAfter(d time.Duration) Option {
	return func(l *Log) {
		if d > 0 {
			l.dismissAfter = d
		}
	}
}

// WithScheduler replaces the timer used for auto-dismiss.
func WithScheduler(s Scheduler) Option {
	return func(l *Log) { l.sched = s }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// Log is the notification log. The unread count is always derived from the
// entries, never tracked separately.
type Log struct {
	emitMu sync.Mutex
	mu     sync.RWMutex

	entries      []Entry
	max          int
	dismissAfter time.Duration
	sched        Scheduler
	now          func() time.Time
	newID        func() string

	notifications *stream.BehaviorSubject[[]Entry]
	unread        *stream.BehaviorSubject[int]
}

// New creates an empty log.
func New(opts ...Option) *Log {
	l := &Log{
		max:           DefaultMaxEntries,
		dismissAfter:  DefaultDismissAfter,
		sched:         timerScheduler{},
		now:           time.Now,
		newID:         uuid.NewString,
		notifications: stream.NewBehaviorSubject[[]Entry](nil),
		unread:        stream.NewBehaviorSubject(0),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Add records a new unread entry at the front and returns its id. Entries
// beyond the cap are dropped, oldest first.
func (l *Log) Add(d Draft) string {
	id := l.newID()
	if d.Category == "" {
		d.Category = CategoryGeneral
	}
	if d.Type == "" {
		d.Type = TypeInfo
	}
	l.mutate(func() {
		e := Entry{
			ID:        id,
			Type:      d.Type,
			Title:     d.Title,
			Message:   d.Message,
			Category:  d.Category,
			Action:    d.Action,
			Data:      d.Data,
			Timestamp: l.now(),
		}
		next := make([]Entry, 0, min(len(l.entries)+1, l.max))
		next = append(next, e)
		for _, old := range l.entries {
			if len(next) == l.max {
				break
			}
			next = append(next, old)
		}
		l.entries = next
	})
	return id
}

// MarkRead marks one entry as read.
func (l *Log) MarkRead(id string) {
	l.mutate(func() {
		l.entries = mapEntries(l.entries, func(e Entry) Entry {
			if e.ID == id {
				e.Read = true
			}
			return e
		})
	})
}

// MarkAllRead marks every entry as read.
func (l *Log) MarkAllRead() {
	l.mutate(func() {
		l.entries = mapEntries(l.entries, func(e Entry) Entry {
			e.Read = true
			return e
		})
	})
}

// Remove deletes the entry with id. Unknown ids are ignored.
func (l *Log) Remove(id string) {
	l.mutate(func() {
		next := make([]Entry, 0, len(l.entries))
		for _, e := range l.entries {
			if e.ID != id {
				next = append(next, e)
			}
		}
		l.entries = next
	})
}

// ClearAll removes every entry.
func (l *Log) ClearAll() {
	l.mutate(func() { l.entries = nil })
}

// Entries returns the current entries, newest first.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.entries...)
}

// Get returns the entry with id.
func (l *Log) Get(id string) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// UnreadCount returns the number of unread entries.
func (l *Log) UnreadCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return countUnread(l.entries)
}

// ByCategory returns a point-in-time snapshot of the entries in cat.
func (l *Log) ByCategory(cat Category) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Entry
	for _, e := range l.entries {
		if e.Category == cat {
			out = append(out, e)
		}
	}
	return out
}

// OnNotifications subscribes fn to the entry list. fn receives the current
// list immediately.
func (l *Log) OnNotifications(fn func([]Entry)) (unsubscribe func()) {
	return l.notifications.Subscribe(func(es []Entry) { fn(append([]Entry(nil), es...)) })
}

// OnUnreadCount subscribes fn to the unread count.
func (l *Log) OnUnreadCount(fn func(int)) (unsubscribe func()) {
	return l.unread.Subscribe(fn)
}

// scheduleRemoval removes id after the dismiss delay. Removal is idempotent,
// so a manual remove before the timer fires is harmless.
func (l *Log) scheduleRemoval(id string) {
	l.sched.AfterFunc(l.dismissAfter, func() { l.Remove(id) })
}

func (l *Log) mutate(apply func()) {
	l.emitMu.Lock()
	defer l.emitMu.Unlock()

	l.mu.Lock()
	apply()
	snap := append([]Entry(nil), l.entries...)
	unread := countUnread(l.entries)
	l.mu.Unlock()

	l.notifications.Next(snap)
	l.unread.Next(unread)
}

func countUnread(es []Entry) int {
	n := 0
	for _, e := range es {
		if !e.Read {
			n++
		}
	}
	return n
}

func mapEntries(es []Entry, f func(Entry) Entry) []Entry {
	out := make([]Entry, len(es))
	for i, e := range es {
		out[i] = f(e)
	}
	return out
}
