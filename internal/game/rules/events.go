package rules

import (
	"sync"
	"time"

	"github.com/thraizz/gridwar-server-go/internal/game/board"
	"github.com/thraizz/gridwar-server-go/internal/game/grid"
)

// EventType indicates the category of a match event.
type EventType string

const (
	EventMatchStarted    EventType = "MATCH_STARTED"
	EventTokenRevealed   EventType = "TOKEN_REVEALED"
	EventTokenSelected   EventType = "TOKEN_SELECTED"
	EventTokenDeselected EventType = "TOKEN_DESELECTED"
	EventTokenMoved      EventType = "TOKEN_MOVED"
	EventTokenAttacked   EventType = "TOKEN_ATTACKED"
	EventTokenDied       EventType = "TOKEN_DIED"
	EventTurnChanged     EventType = "TURN_CHANGED"
	EventMatchOver       EventType = "MATCH_OVER"
)

// Event is a single thing that happened during a click.
type Event struct {
	Type      EventType
	MatchID   string
	SessionID string        // set by the engine before publishing
	Team      board.Team    // acting team, or the new active team for TURN_CHANGED
	TokenID   board.TokenID // token the event is about
	SourceID  board.TokenID // attacker for TOKEN_ATTACKED
	From      grid.Cell
	To        grid.Cell
	Amount    int // damage dealt, remaining health, revealed count
	Timestamp time.Time
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// EventBus provides a synchronous publish/subscribe implementation with type filtering.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType][]TypedListener
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by the provided handle,
// whether it was registered with Subscribe or SubscribeTyped.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for _, listener := range bus.listeners {
		listener(event)
	}
	for _, listener := range bus.typedListeners[event.Type] {
		listener.Callback(event)
	}
}

// PublishBatch publishes events in order.
func (bus *EventBus) PublishBatch(events []Event) {
	for _, event := range events {
		bus.Publish(event)
	}
}

// NewEvent creates a new event with common fields populated.
func NewEvent(eventType EventType, matchID string, team board.Team, tokenID board.TokenID) Event {
	return Event{
		Type:      eventType,
		MatchID:   matchID,
		Team:      team,
		TokenID:   tokenID,
		SourceID:  board.NoToken,
		Timestamp: time.Now(),
	}
}
