package event

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus() *Bus {
	return NewBus(slog.New(slog.DiscardHandler))
}

func TestBus_Emit_RegistrationOrder(t *testing.T) {
	bus := newTestBus()

	var order []string
	bus.Subscribe(func(Event) { order = append(order, "first") })
	bus.Subscribe(func(Event) { order = append(order, "second") })
	bus.Subscribe(func(Event) { order = append(order, "third") })

	bus.Emit(New(TypeSnippetCreated))

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestBus_Emit_Synchronous(t *testing.T) {
	bus := newTestBus()

	delivered := false
	bus.Subscribe(func(evt Event) {
		assert.Equal(t, TypeSnippetRenamed, evt.Type)
		assert.Equal(t, "snip-1", evt.SnippetID)
		delivered = true
	})

	bus.Emit(NewSnippetEvent(TypeSnippetRenamed, "snip-1"))

	// Delivery completes before Emit returns.
	assert.True(t, delivered)
}

func TestBus_Emit_ExactlyOncePerEmit(t *testing.T) {
	bus := newTestBus()

	count := 0
	bus.Subscribe(func(Event) { count++ })

	bus.Emit(New(TypeSnippetCreated))
	bus.Emit(New(TypeSnippetUpdated))

	assert.Equal(t, 2, count)
}

func TestBus_PanickingListenerIsolated(t *testing.T) {
	bus := newTestBus()

	var secondRan bool
	bus.Subscribe(func(Event) { panic("listener bug") })
	bus.Subscribe(func(Event) { secondRan = true })

	// Must not panic the caller.
	require.NotPanics(t, func() {
		bus.Emit(New(TypeSnippetCreated))
	})
	assert.True(t, secondRan, "later listeners still run after an earlier panic")
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := newTestBus()

	count := 0
	sub := bus.Subscribe(func(Event) { count++ })
	require.Equal(t, 1, bus.Len())

	bus.Emit(New(TypeSnippetCreated))
	bus.Unsubscribe(sub)
	bus.Emit(New(TypeSnippetCreated))

	assert.Equal(t, 1, count)
	assert.Equal(t, 0, bus.Len())
}

func TestBus_Unsubscribe_Unknown(t *testing.T) {
	bus := newTestBus()
	bus.Subscribe(func(Event) {})

	// Unsubscribing nil or a foreign subscription is a no-op.
	bus.Unsubscribe(nil)
	bus.Unsubscribe(&Subscription{id: "sub-unknown"})

	assert.Equal(t, 1, bus.Len())
}

func TestNewChangeEvent(t *testing.T) {
	evt := NewChangeEvent(TypeChangeProposed, "chg-1", "snip-1")
	assert.Equal(t, TypeChangeProposed, evt.Type)
	assert.Equal(t, "chg-1", evt.ChangeID)
	assert.Equal(t, "snip-1", evt.SnippetID)
	assert.False(t, evt.Timestamp.IsZero())
}
