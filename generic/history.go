/*
history.go - Two-stack undo/redo sequencing

PURPOSE:
  History records reversible actions and hands them back in LIFO order.
  It never applies anything itself: the caller receives the action from
  Undo() and applies its "before" values, or from Redo() and applies its
  "after" values. That keeps History testable without any grid.

INVARIANTS:
  1. LINEAR: Record() always clears the redo stack (no branching history)
  2. LIFO: Undo() returns the most recently recorded (or redone) action
  3. SYMMETRIC: Undo() moves an action to redo; Redo() moves it back

LIFECYCLE:
  Clear() is called after a successful save and on every full reload.
  Actions captured before a save may reference row identifiers that the
  reload replaced, so they must not survive it.

CONCURRENCY:
  Not safe for concurrent use. Callers serialize access (single writer).

SEE ALSO:
  - attendance/ledger.go: Applies the actions to the grid
*/
package generic

// History is a linear undo/redo log of actions of type A.
// A should be an immutable value (no pointers into live state).
type History[A any] struct {
	undo []A
	redo []A
}

func NewHistory[A any]() *History[A] {
	return &History[A]{}
}

// Record pushes a fresh action and discards everything that could be redone.
func (h *History[A]) Record(action A) {
	h.undo = append(h.undo, action)
	h.redo = h.redo[:0]
}

// Undo pops the newest action onto the redo stack and returns it.
// Returns false if there is nothing to undo.
func (h *History[A]) Undo() (A, bool) {
	var zero A
	if len(h.undo) == 0 {
		return zero, false
	}
	last := len(h.undo) - 1
	action := h.undo[last]
	h.undo[last] = zero
	h.undo = h.undo[:last]
	h.redo = append(h.redo, action)
	return action, true
}

// Redo pops the newest undone action back onto the undo stack and returns it.
// Returns false if there is nothing to redo.
func (h *History[A]) Redo() (A, bool) {
	var zero A
	if len(h.redo) == 0 {
		return zero, false
	}
	last := len(h.redo) - 1
	action := h.redo[last]
	h.redo[last] = zero
	h.redo = h.redo[:last]
	h.undo = append(h.undo, action)
	return action, true
}

// Clear empties both stacks.
func (h *History[A]) Clear() {
	h.undo = nil
	h.redo = nil
}

func (h *History[A]) CanUndo() bool { return len(h.undo) > 0 }
func (h *History[A]) CanRedo() bool { return len(h.redo) > 0 }

// Depth returns the sizes of the undo and redo stacks.
func (h *History[A]) Depth() (undo, redo int) {
	return len(h.undo), len(h.redo)
}
