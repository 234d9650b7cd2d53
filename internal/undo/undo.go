// Package undo provides a bounded undo/redo stack of reversible actions.
package undo

import "sync"

// Action is a reversible edit. Undo and Redo must be safe to call in
// alternation any number of times.
type Action struct {
	Description string
	Undo        func()
	Redo        func()
}

const defaultLimit = 64

// Stack holds committed actions. Pushing a new action discards any
// redo history.
type Stack struct {
	mu     sync.Mutex
	done   []Action
	undone []Action
	limit  int
}

// NewStack creates a stack bounded to the default action limit.
func NewStack() *Stack {
	return &Stack{limit: defaultLimit}
}

// Push records a committed action and clears the redo history.
func (s *Stack) Push(a Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = append(s.done, a)
	if len(s.done) > s.limit {
		s.done = s.done[len(s.done)-s.limit:]
	}
	s.undone = s.undone[:0]
}

// Undo reverts the most recent action. Returns false if there is nothing
// to undo.
func (s *Stack) Undo() bool {
	s.mu.Lock()
	if len(s.done) == 0 {
		s.mu.Unlock()
		return false
	}
	a := s.done[len(s.done)-1]
	s.done = s.done[:len(s.done)-1]
	s.undone = append(s.undone, a)
	s.mu.Unlock()

	a.Undo()
	return true
}

// Redo re-applies the most recently undone action. Returns false if there
// is nothing to redo.
func (s *Stack) Redo() bool {
	s.mu.Lock()
	if len(s.undone) == 0 {
		s.mu.Unlock()
		return false
	}
	a := s.undone[len(s.undone)-1]
	s.undone = s.undone[:len(s.undone)-1]
	s.done = append(s.done, a)
	s.mu.Unlock()

	a.Redo()
	return true
}

// CanUndo reports whether an action is available to undo.
func (s *Stack) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.done) > 0
}

// CanRedo reports whether an action is available to redo.
func (s *Stack) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undone) > 0
}

// Clear drops all undo and redo history.
func (s *Stack) Clear() {
	s.mu.Lock()
	s.done = nil
	s.undone = nil
	s.mu.Unlock()
}
