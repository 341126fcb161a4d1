// Package event implements the synchronous listener fan-out used by the
// snippet store and the propagation engine.
//
// Unlike a channel-based broadcaster, delivery here is deliberately
// synchronous and in registration order: every mutating call notifies each
// listener exactly once, after the triggering state change is complete, and
// before the call returns. Listener faults are isolated so one misbehaving
// observer can never corrupt the caller's control flow.
package event

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/snipsyncapp/snipsync-server/internal/id"
)

// Type identifies what happened.
type Type string

// Event types emitted by the snippet store.
const (
	// TypeSnippetCreated signals a new snippet record.
	TypeSnippetCreated Type = "snippet.created"
	// TypeSnippetUpdated signals a content or metadata update.
	TypeSnippetUpdated Type = "snippet.updated"
	// TypeSnippetRenamed signals a name change.
	TypeSnippetRenamed Type = "snippet.renamed"
	// TypeSnippetDeleted signals a tombstoned snippet.
	TypeSnippetDeleted Type = "snippet.deleted"
	// TypeSnippetUsed signals a usage counter increment.
	TypeSnippetUsed Type = "snippet.used"
)

// Event types emitted by the propagation engine.
const (
	// TypeChangeProposed signals a new pending universal change.
	TypeChangeProposed Type = "change.proposed"
	// TypeChangeApplied signals a universal change every template accepted.
	TypeChangeApplied Type = "change.applied"
	// TypeChangeFailed signals a universal change at least one template rejected.
	TypeChangeFailed Type = "change.failed"
)

// Event is the payload delivered to listeners. Listeners treat it as a
// "something changed, re-read" signal; IDs are included so observers can
// scope their re-read.
type Event struct {
	Type      Type      `json:"type"`
	SnippetID string    `json:"snippet_id,omitempty"`
	ChangeID  string    `json:"change_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates an event of the given type.
func New(t Type) Event {
	return Event{Type: t, Timestamp: time.Now()}
}

// NewSnippetEvent creates a snippet-scoped event.
func NewSnippetEvent(t Type, snippetID string) Event {
	return Event{Type: t, SnippetID: snippetID, Timestamp: time.Now()}
}

// NewChangeEvent creates a change-scoped event.
func NewChangeEvent(t Type, changeID, snippetID string) Event {
	return Event{Type: t, ChangeID: changeID, SnippetID: snippetID, Timestamp: time.Now()}
}

// Listener receives events. It runs synchronously inside the mutating call,
// so it must be fast and must not mutate the store it observes.
type Listener func(Event)

// Subscription identifies a registered listener for later removal.
type Subscription struct {
	id string
	fn Listener
}

// Bus is a synchronous fan-out of events to registered listeners.
// Safe for concurrent use; delivery order follows registration order.
type Bus struct {
	mu     sync.RWMutex
	subs   []*Subscription
	logger *slog.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe registers a listener and returns its subscription handle.
func (b *Bus) Subscribe(fn Listener) *Subscription {
	sub := &Subscription{id: id.MustGenerate("sub"), fn: fn}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, sub)
	return sub
}

// Unsubscribe removes a previously registered listener. Unknown
// subscriptions are ignored.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = slices.DeleteFunc(b.subs, func(s *Subscription) bool {
		return s.id == sub.id
	})
}

// Len returns the number of registered listeners.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Emit delivers the event to every listener, in registration order,
// synchronously. A panicking listener is logged and skipped; the remaining
// listeners still run and the caller never sees the fault.
func (b *Bus) Emit(evt Event) {
	b.mu.RLock()
	subs := slices.Clone(b.subs)
	b.mu.RUnlock()

	for _, sub := range subs {
		b.deliver(sub, evt)
	}
}

func (b *Bus) deliver(sub *Subscription, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			if b.logger != nil {
				b.logger.Error("event listener panicked",
					"event_type", string(evt.Type),
					"subscription", sub.id,
					"panic", r,
				)
			}
		}
	}()
	sub.fn(evt)
}
