package history

import (
	"fmt"

	"github.com/chazu/camber/pkg/model"
)

// Stack is the linear undo/redo history. Applying a new command after
// an undo discards the redo branch.
type Stack struct {
	undo []Command
	redo []Command
}

// NewStack returns an empty history.
func NewStack() *Stack {
	return &Stack{}
}

// Apply runs the command against the document it was built for and, on
// success, pushes it onto the undo stack and clears redo. A failed
// command leaves the history untouched.
func (s *Stack) Apply(d *model.Document, cmd Command) error {
	if err := cmd.Apply(d); err != nil {
		return err
	}
	s.undo = append(s.undo, cmd)
	s.redo = s.redo[:0]
	return nil
}

// Undo inverts the most recent command.
func (s *Stack) Undo(d *model.Document) (Command, error) {
	if len(s.undo) == 0 {
		return nil, fmt.Errorf("history: nothing to undo")
	}
	cmd := s.undo[len(s.undo)-1]
	if err := cmd.Invert(d); err != nil {
		return nil, fmt.Errorf("history: undo %s: %w", cmd.Name(), err)
	}
	s.undo = s.undo[:len(s.undo)-1]
	s.redo = append(s.redo, cmd)
	return cmd, nil
}

// Redo re-applies the most recently undone command.
func (s *Stack) Redo(d *model.Document) (Command, error) {
	if len(s.redo) == 0 {
		return nil, fmt.Errorf("history: nothing to redo")
	}
	cmd := s.redo[len(s.redo)-1]
	if err := cmd.Apply(d); err != nil {
		return nil, fmt.Errorf("history: redo %s: %w", cmd.Name(), err)
	}
	s.redo = s.redo[:len(s.redo)-1]
	s.undo = append(s.undo, cmd)
	return cmd, nil
}

func (s *Stack) CanUndo() bool { return len(s.undo) > 0 }
func (s *Stack) CanRedo() bool { return len(s.redo) > 0 }

// Depth returns the undo depth.
func (s *Stack) Depth() int { return len(s.undo) }
