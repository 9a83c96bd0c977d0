package backend

import "sync"

// OutputTable is a hotplug-tolerant, numeric-id-keyed collection of
// per-output adapter state, generic over what a "per-output handle"
// looks like for a driver's protocol (wlrgamma uses it; hyprctm keeps
// its own list of output ids) (spec §9: "backend → outputs is a parent-owned
// collection keyed by numeric output id").
type OutputTable[T any] struct {
	mu   sync.Mutex
	byID map[uint32]T
}

// NewOutputTable constructs an empty table.
func NewOutputTable[T any]() *OutputTable[T] {
	return &OutputTable[T]{byID: make(map[uint32]T)}
}

// Add registers handle for a newly discovered output (spec §4.E:
// "on output-added, apply current target to the new output").
func (t *OutputTable[T]) Add(id uint32, handle T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID[id] = handle
}

// Remove drops id's handle without error if present (spec §4.E:
// "on output-removed, drop its handle without error").
func (t *OutputTable[T]) Remove(id uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byID, id)
}

// Each calls fn once per currently-registered output, skipping any
// output removed concurrently with the call.
func (t *OutputTable[T]) Each(fn func(id uint32, handle T) error) error {
	t.mu.Lock()
	snapshot := make(map[uint32]T, len(t.byID))
	for k, v := range t.byID {
		snapshot[k] = v
	}
	t.mu.Unlock()

	for id, handle := range snapshot {
		if err := fn(id, handle); err != nil {
			return err
		}
	}
	return nil
}

// Len reports the number of registered outputs.
func (t *OutputTable[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byID)
}
