package undo

import "testing"

func TestUndoRedoSymmetry(t *testing.T) {
	s := NewStack()
	value := 0

	s.Push(Action{
		Description: "set to 1",
		Undo:        func() { value = 0 },
		Redo:        func() { value = 1 },
	})
	value = 1

	if !s.CanUndo() {
		t.Fatal("CanUndo false after push")
	}
	if !s.Undo() {
		t.Fatal("Undo returned false")
	}
	if value != 0 {
		t.Errorf("value after undo = %d, want 0", value)
	}
	if !s.CanRedo() {
		t.Fatal("CanRedo false after undo")
	}
	if !s.Redo() {
		t.Fatal("Redo returned false")
	}
	if value != 1 {
		t.Errorf("value after redo = %d, want 1", value)
	}
}

func TestPushClearsRedo(t *testing.T) {
	s := NewStack()
	s.Push(Action{Undo: func() {}, Redo: func() {}})
	s.Undo()
	if !s.CanRedo() {
		t.Fatal("expected redo available")
	}
	s.Push(Action{Undo: func() {}, Redo: func() {}})
	if s.CanRedo() {
		t.Error("redo history survived a new push")
	}
}

func TestEmptyStack(t *testing.T) {
	s := NewStack()
	if s.Undo() {
		t.Error("Undo on empty stack returned true")
	}
	if s.Redo() {
		t.Error("Redo on empty stack returned true")
	}
	if s.CanUndo() || s.CanRedo() {
		t.Error("empty stack reports available edits")
	}
}

func TestDepthLimitDropsOldest(t *testing.T) {
	s := NewStack()
	for i := 0; i < 70; i++ {
		s.Push(Action{Undo: func() {}, Redo: func() {}})
	}
	count := 0
	for s.Undo() {
		count++
	}
	if count != 64 {
		t.Errorf("undo depth = %d, want 64", count)
	}
}

func TestClear(t *testing.T) {
	s := NewStack()
	s.Push(Action{Undo: func() {}, Redo: func() {}})
	s.Undo()
	s.Push(Action{Undo: func() {}, Redo: func() {}})
	s.Clear()
	if s.CanUndo() || s.CanRedo() {
		t.Error("stack not empty after Clear")
	}
}
