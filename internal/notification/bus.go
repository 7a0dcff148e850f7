// Package notification holds the process-wide queue of transient user-facing messages.
// A single Bus is built at startup and injected into every producer and renderer.
package notification

import (
	"sync"
	"time"

	"botdeck/backend/pkg/logger"

	"github.com/google/uuid"
)

// Kind categorises a notification for styling
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
)

// DefaultDuration applies when a producer does not pick one
const DefaultDuration = 5 * time.Second

// Notification is one queued message
type Notification struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Title      string    `json:"title,omitempty"`
	Message    string    `json:"message"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`

	// UserID scopes delivery; empty means every user sees it
	UserID string `json:"-"`
}

// Sticky reports whether the notification waits for a manual dismiss
func (n Notification) Sticky() bool {
	return n.DurationMs == 0
}

// Option customises a published notification
type Option func(*Notification)

// WithTitle sets a heading shown above the message
func WithTitle(title string) Option {
	return func(n *Notification) { n.Title = title }
}

// WithDuration sets the auto-dismiss delay. Zero makes the notification sticky.
// Negative values fall back to the bus default.
func WithDuration(d time.Duration) Option {
	return func(n *Notification) {
		if d < 0 {
			n.DurationMs = -1
			return
		}
		n.DurationMs = d.Milliseconds()
	}
}

// ForUser restricts delivery to one user
func ForUser(userID string) Option {
	return func(n *Notification) { n.UserID = userID }
}

// Sink observes queue changes. Sinks are called in queue order while the bus lock is held,
// so they must not call back into the bus and must not block.
type Sink interface {
	NotificationAdded(n Notification)
	NotificationRemoved(n Notification)
}

// Scheduler runs f after d and returns a function that cancels it
type Scheduler func(d time.Duration, f func()) (cancel func() bool)

func afterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Bus is the notification queue
type Bus struct {
	mu       sync.Mutex
	items    []Notification
	timers   map[string]func() bool
	sinks    []Sink
	closed   bool
	schedule Scheduler
	duration time.Duration
	now      func() time.Time
	log      *logger.Logger
}

// BusOption configures a Bus
type BusOption func(*Bus)

// WithScheduler replaces the timer implementation (tests use a manual one)
func WithScheduler(s Scheduler) BusOption {
	return func(b *Bus) { b.schedule = s }
}

// WithSink registers a sink at construction time
func WithSink(s Sink) BusOption {
	return func(b *Bus) { b.sinks = append(b.sinks, s) }
}

// WithDefaultDuration changes how long notifications stay up when the producer does not say
func WithDefaultDuration(d time.Duration) BusOption {
	return func(b *Bus) {
		if d > 0 {
			b.duration = d
		}
	}
}

// WithLogger sets the bus logger
func WithLogger(l *logger.Logger) BusOption {
	return func(b *Bus) { b.log = l }
}

// NewBus creates the queue. Call it once per process.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		timers:   make(map[string]func() bool),
		schedule: afterFunc,
		duration: DefaultDuration,
		now:      time.Now,
		log:      logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AddSink registers a sink after construction
func (b *Bus) AddSink(s Sink) {
	b.mu.Lock()
	b.sinks = append(b.sinks, s)
	b.mu.Unlock()
}

// Publish appends a notification and schedules its removal. Fire-and-forget.
func (b *Bus) Publish(kind Kind, message string, opts ...Option) {
	n := Notification{
		ID:         uuid.New().String(),
		Kind:       normalizeKind(kind),
		Message:    message,
		DurationMs: -1,
	}
	for _, opt := range opts {
		opt(&n)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		b.log.Debugf("notification dropped after shutdown: %s", message)
		return
	}

	if n.DurationMs < 0 {
		n.DurationMs = b.duration.Milliseconds()
	}
	n.CreatedAt = b.now()
	b.items = append(b.items, n)
	if n.DurationMs > 0 {
		id := n.ID
		b.timers[id] = b.schedule(time.Duration(n.DurationMs)*time.Millisecond, func() {
			b.remove(id)
		})
	}

	for _, s := range b.sinks {
		s.NotificationAdded(n)
	}
}

// Success publishes a success notification
func (b *Bus) Success(message string, opts ...Option) { b.Publish(KindSuccess, message, opts...) }

// Error publishes an error notification
func (b *Bus) Error(message string, opts ...Option) { b.Publish(KindError, message, opts...) }

// Info publishes an info notification
func (b *Bus) Info(message string, opts ...Option) { b.Publish(KindInfo, message, opts...) }

// Warning publishes a warning notification
func (b *Bus) Warning(message string, opts ...Option) { b.Publish(KindWarning, message, opts...) }

// Dismiss removes a notification. Unknown or already removed ids are ignored.
func (b *Bus) Dismiss(id string) {
	b.remove(id)
}

// remove is shared by Dismiss and the expiry timer; whichever runs second finds nothing
func (b *Bus) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := -1
	for i := range b.items {
		if b.items[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	n := b.items[idx]
	b.items = append(b.items[:idx], b.items[idx+1:]...)

	if cancel, ok := b.timers[id]; ok {
		cancel()
		delete(b.timers, id)
	}

	for _, s := range b.sinks {
		s.NotificationRemoved(n)
	}
}

// List returns every queued notification, oldest first
func (b *Bus) List() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Notification, len(b.items))
	copy(out, b.items)
	return out
}

// ListFor returns the notifications visible to userID, oldest first
func (b *Bus) ListFor(userID string) []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Notification, 0, len(b.items))
	for _, n := range b.items {
		if n.UserID == "" || n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// Get returns a queued notification by id
func (b *Bus) Get(id string) (Notification, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, n := range b.items {
		if n.ID == id {
			return n, true
		}
	}
	return Notification{}, false
}

// Close cancels every pending timer and empties the queue. Later calls are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, cancel := range b.timers {
		cancel()
		delete(b.timers, id)
	}
	b.items = nil
}

func normalizeKind(k Kind) Kind {
	switch k {
	case KindSuccess, KindError, KindInfo, KindWarning:
		return k
	}
	return KindInfo
}
