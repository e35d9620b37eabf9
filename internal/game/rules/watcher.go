package rules

import "sync"

// Watcher observes the events of one match and tracks a condition.
type Watcher interface {
	// Watch is called for every event of the match; watchers filter internally.
	Watch(event Event)

	// Reset clears the condition and counters before a new match.
	Reset()

	// ConditionMet returns true once the tracked condition happened.
	ConditionMet() bool

	// Key identifies the watcher inside a registry.
	Key() string
}

// BaseWatcher carries the key and condition flag shared by all watchers.
type BaseWatcher struct {
	key       string
	condition bool
}

// NewBaseWatcher creates a base watcher registered under key.
func NewBaseWatcher(key string) *BaseWatcher {
	return &BaseWatcher{key: key}
}

// Key returns the registry key.
func (bw *BaseWatcher) Key() string {
	return bw.key
}

// ConditionMet returns whether the condition has been met.
func (bw *BaseWatcher) ConditionMet() bool {
	return bw.condition
}

// SetCondition sets the condition flag.
func (bw *BaseWatcher) SetCondition(condition bool) {
	bw.condition = condition
}

// Reset clears the condition.
func (bw *BaseWatcher) Reset() {
	bw.condition = false
}

// WatcherRegistry holds the watchers of a session. Watchers see events in
// the order they were added, and survive restarts through ResetWatchers.
type WatcherRegistry struct {
	mu    sync.RWMutex
	byKey map[string]int
	order []Watcher
}

// NewWatcherRegistry creates an empty registry.
func NewWatcherRegistry() *WatcherRegistry {
	return &WatcherRegistry{byKey: make(map[string]int)}
}

// AddWatcher registers a watcher. A watcher with the same key is replaced
// in place and keeps its position.
func (wr *WatcherRegistry) AddWatcher(watcher Watcher) {
	if watcher == nil {
		return
	}

	wr.mu.Lock()
	defer wr.mu.Unlock()

	if i, ok := wr.byKey[watcher.Key()]; ok {
		wr.order[i] = watcher
		return
	}
	wr.byKey[watcher.Key()] = len(wr.order)
	wr.order = append(wr.order, watcher)
}

// GetWatcher retrieves a watcher by key, or nil.
func (wr *WatcherRegistry) GetWatcher(key string) Watcher {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	if i, ok := wr.byKey[key]; ok {
		return wr.order[i]
	}
	return nil
}

// Len returns the number of registered watchers.
func (wr *WatcherRegistry) Len() int {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	return len(wr.order)
}

// ResetWatchers resets every watcher, ready for a new match.
func (wr *WatcherRegistry) ResetWatchers() {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	for _, watcher := range wr.order {
		watcher.Reset()
	}
}

// NotifyWatchers hands one event to every watcher.
func (wr *WatcherRegistry) NotifyWatchers(event Event) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	for _, watcher := range wr.order {
		watcher.Watch(event)
	}
}

// NotifyWatchersBatch notifies all watchers of events in order.
func (wr *WatcherRegistry) NotifyWatchersBatch(events []Event) {
	for _, event := range events {
		wr.NotifyWatchers(event)
	}
}
