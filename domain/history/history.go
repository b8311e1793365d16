// Package history keeps a bounded, linear undo/redo timeline of snapshots.
package history

// DefaultCapacity is the number of snapshots kept before the oldest is evicted.
const DefaultCapacity = 50

// History is an ordered list of snapshots plus a cursor pointing at the
// current one. The list is never empty and the cursor is always valid.
// Recording after an undo discards everything after the cursor.
//
// History is not safe for concurrent use.
type History[T any] struct {
	entries  []T
	cursor   int
	capacity int
}

// New creates a history whose only entry is initial. A capacity below 1
// falls back to DefaultCapacity.
func New[T any](initial T, capacity int) *History[T] {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &History[T]{
		entries:  []T{initial},
		cursor:   0,
		capacity: capacity,
	}
}

// Record appends a snapshot after the cursor and makes it current.
func (h *History[T]) Record(snapshot T) {
	h.entries = append(h.entries[:h.cursor+1], snapshot)
	h.cursor = len(h.entries) - 1

	if over := len(h.entries) - h.capacity; over > 0 {
		var zero T
		for i := 0; i < over; i++ {
			h.entries[i] = zero
		}
		h.entries = h.entries[over:]
		h.cursor -= over
	}
}

// Undo moves the cursor back one step and returns the snapshot there.
// At the oldest entry it does nothing and returns false.
func (h *History[T]) Undo() (T, bool) {
	if !h.CanUndo() {
		var zero T
		return zero, false
	}
	h.cursor--
	return h.entries[h.cursor], true
}

// Redo moves the cursor forward one step and returns the snapshot there.
// At the newest entry it does nothing and returns false.
func (h *History[T]) Redo() (T, bool) {
	if !h.CanRedo() {
		var zero T
		return zero, false
	}
	h.cursor++
	return h.entries[h.cursor], true
}

// Current returns the snapshot at the cursor.
func (h *History[T]) Current() T {
	return h.entries[h.cursor]
}

func (h *History[T]) CanUndo() bool { return h.cursor > 0 }

func (h *History[T]) CanRedo() bool { return h.cursor < len(h.entries)-1 }

// Len returns the number of stored snapshots.
func (h *History[T]) Len() int { return len(h.entries) }

// Cursor returns the index of the current snapshot.
func (h *History[T]) Cursor() int { return h.cursor }

// Capacity returns the maximum number of stored snapshots.
func (h *History[T]) Capacity() int { return h.capacity }

// Reset drops every entry and starts over from initial.
func (h *History[T]) Reset(initial T) {
	h.entries = []T{initial}
	h.cursor = 0
}
