// Package registry maintains the parameter sets extracted from known source
// files and broadcasts change events to interested watchers such as the
// development server's WebSocket hub.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/scadform/scadform/internal/types"
)

// ParamRegistry manages all extracted parameter sets, keyed by source path.
type ParamRegistry struct {
	sets     map[string]*ParamSet
	mutex    sync.RWMutex
	watchers []chan types.ParamSetEvent
}

// ParamSet holds the descriptors extracted from one source file.
type ParamSet struct {
	// Path is the source file the set was extracted from.
	Path string
	// Source is the exact text the descriptors were extracted against;
	// descriptor line anchors are only valid for this text.
	Source string
	// Descriptors is the ordered extracted set.
	Descriptors []types.ParameterDescriptor
	// LastMod tracks when the set was last replaced.
	LastMod time.Time
}

// NewParamRegistry creates an empty registry.
func NewParamRegistry() *ParamRegistry {
	return &ParamRegistry{
		sets:     make(map[string]*ParamSet),
		watchers: make([]chan types.ParamSetEvent, 0),
	}
}

// Register adds or replaces the parameter set for a source path and notifies
// watchers.
func (r *ParamRegistry) Register(set *ParamSet) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	eventType := types.EventTypeAdded
	if _, exists := r.sets[set.Path]; exists {
		eventType = types.EventTypeUpdated
	}

	set.LastMod = time.Now()
	r.sets[set.Path] = set

	r.notify(types.ParamSetEvent{
		Type:        eventType,
		Path:        set.Path,
		Descriptors: set.Descriptors,
		Timestamp:   set.LastMod,
	})
}

// Get retrieves the parameter set for a source path.
func (r *ParamRegistry) Get(path string) (*ParamSet, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	set, exists := r.sets[path]
	return set, exists
}

// Remove drops a source path from the registry and notifies watchers.
func (r *ParamRegistry) Remove(path string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.sets[path]; !exists {
		return
	}
	delete(r.sets, path)

	r.notify(types.ParamSetEvent{
		Type:      types.EventTypeRemoved,
		Path:      path,
		Timestamp: time.Now(),
	})
}

// Paths returns all registered source paths in sorted order.
func (r *ParamRegistry) Paths() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	paths := make([]string, 0, len(r.sets))
	for p := range r.sets {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Count returns the number of registered parameter sets.
func (r *ParamRegistry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.sets)
}

// Watch returns a channel receiving future registry events. The channel is
// buffered; events are dropped rather than blocking the registry when a
// watcher falls behind.
func (r *ParamRegistry) Watch() <-chan types.ParamSetEvent {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ch := make(chan types.ParamSetEvent, 16)
	r.watchers = append(r.watchers, ch)
	return ch
}

// Unwatch removes and closes one watcher channel previously returned by
// Watch.
func (r *ParamRegistry) Unwatch(ch <-chan types.ParamSetEvent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, watcher := range r.watchers {
		if watcher == ch {
			close(watcher)
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			return
		}
	}
}

// UnwatchAll closes and removes all watcher channels.
func (r *ParamRegistry) UnwatchAll() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, ch := range r.watchers {
		close(ch)
	}
	r.watchers = r.watchers[:0]
}

func (r *ParamRegistry) notify(event types.ParamSetEvent) {
	for _, watcher := range r.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}
