package dialog

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyStack indicates a non-bootstrap event arrived for a session
	// with no active flow. The caller must re-bootstrap the conversation.
	ErrEmptyStack = errors.New("dialog: empty session stack")
	// ErrUnknownFlow indicates a transition referenced an unregistered flow.
	ErrUnknownFlow = errors.New("dialog: unknown flow")
	// ErrUnknownState indicates a switch targeted a state missing from the
	// active flow.
	ErrUnknownState = errors.New("dialog: unknown state")
	// ErrNoSuchAction indicates an action id with no handler on the current
	// state. It is logged and surfaced as a warning render, never applied.
	ErrNoSuchAction = errors.New("dialog: no such action")
)

// Frame is one activation of a flow on the navigation stack.
type Frame struct {
	Flow  FlowID
	State StateID
	Data  Data
}

// Session holds one user's conversation context. It is owned by the engine
// and must only be mutated under the engine's per-user serialization.
type Session struct {
	UserID int64
	Stack  []*Frame
}

// Top returns the innermost (active) frame, or nil for an empty stack.
func (s *Session) Top() *Frame {
	if s == nil || len(s.Stack) == 0 {
		return nil
	}
	return s.Stack[len(s.Stack)-1]
}

// Depth reports the number of frames on the stack.
func (s *Session) Depth() int {
	if s == nil {
		return 0
	}
	return len(s.Stack)
}

// apply executes a transition against the stack. It validates targets against
// the registry and mutates nothing when it returns an error.
func (s *Session) apply(reg *Registry, tr Transition) error {
	switch tr.Op {
	case OpStay:
		return nil

	case OpSwitch:
		top := s.Top()
		if top == nil {
			return ErrEmptyStack
		}
		fl, ok := reg.Flow(top.Flow)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownFlow, top.Flow)
		}
		if _, ok := fl.States[tr.State]; !ok {
			return fmt.Errorf("%w: %s in flow %s", ErrUnknownState, tr.State, top.Flow)
		}
		top.State = tr.State
		return nil

	case OpPush:
		fr, err := newFrame(reg, tr.Flow, tr.Data)
		if err != nil {
			return err
		}
		s.Stack = append(s.Stack, fr)
		return nil

	case OpPop:
		if len(s.Stack) == 0 {
			return ErrEmptyStack
		}
		s.Stack[len(s.Stack)-1] = nil
		s.Stack = s.Stack[:len(s.Stack)-1]
		return nil

	case OpReset:
		fr, err := newFrame(reg, tr.Flow, tr.Data)
		if err != nil {
			return err
		}
		s.Stack = []*Frame{fr}
		return nil
	}
	return fmt.Errorf("dialog: unsupported transition op %d", tr.Op)
}

func newFrame(reg *Registry, flow FlowID, data Data) (*Frame, error) {
	fl, ok := reg.Flow(flow)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFlow, flow)
	}
	if data == nil && fl.NewData != nil {
		data = fl.NewData()
	}
	return &Frame{Flow: fl.ID, State: fl.Entry, Data: data}, nil
}
