package dialog

import "context"

// FlowID identifies a flow, a named graph of conversation states.
type FlowID string

// StateID identifies a single screen within a flow.
type StateID string

// EventKind discriminates inbound conversation events.
type EventKind uint8

const (
	// EventCommand is a slash command such as /start.
	EventCommand EventKind = iota
	// EventText is free-form text typed by the user.
	EventText
	// EventAction is a button press identified by an action id.
	EventAction
)

// Event is a single inbound interaction attributed to a user.
type Event struct {
	Kind    EventKind
	Command string
	Text    string
	Action  string
	Payload string
}

// CommandEvent builds a command event.
func CommandEvent(name string) Event {
	return Event{Kind: EventCommand, Command: name}
}

// TextEvent builds a free-text event.
func TextEvent(text string) Event {
	return Event{Kind: EventText, Text: text}
}

// ActionEvent builds a button-press event with an optional payload.
func ActionEvent(id, payload string) Event {
	return Event{Kind: EventAction, Action: id, Payload: payload}
}

// ActionButton is a navigation affordance offered with a rendered screen.
type ActionButton struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Payload string `json:"payload,omitempty"`
}

// RenderRequest is the engine's opaque output: a structured view model plus
// the actions available on the screen. Formatting is the caller's concern.
type RenderRequest struct {
	View    map[string]any `json:"view,omitempty"`
	Error   string         `json:"error,omitempty"`
	Actions []ActionButton `json:"actions,omitempty"`
}

// Op enumerates navigation-stack operations a handler may request.
type Op uint8

const (
	// OpStay keeps the current state; the screen is re-rendered.
	OpStay Op = iota
	// OpSwitch replaces the current state within the same flow frame.
	OpSwitch
	// OpPush starts a new flow frame on top of the stack.
	OpPush
	// OpPop discards the top frame.
	OpPop
	// OpReset discards the whole stack and starts a fresh flow.
	OpReset
)

// Transition is a handler's decision about what happens next.
type Transition struct {
	Op    Op
	State StateID
	Flow  FlowID
	Data  Data
}

// Stay keeps the current state.
func Stay() Transition { return Transition{Op: OpStay} }

// SwitchTo replaces the current state within the active frame.
func SwitchTo(st StateID) Transition { return Transition{Op: OpSwitch, State: st} }

// Push starts flow on top of the stack with the given initial data.
func Push(flow FlowID, data Data) Transition { return Transition{Op: OpPush, Flow: flow, Data: data} }

// Pop discards the top frame, returning to the flow below.
func Pop() Transition { return Transition{Op: OpPop} }

// Reset discards the entire stack and starts flow fresh.
func Reset(flow FlowID, data Data) Transition { return Transition{Op: OpReset, Flow: flow, Data: data} }

// Data is flow-scoped state carried by a frame. Each flow declares one
// concrete struct type for it; handlers access it through DataOf.
type Data = any

// Ctx carries the per-dispatch view of the active session frame.
type Ctx struct {
	// UserID is the transport-level identifier of the conversation owner.
	UserID int64

	frame *Frame
}

// DataOf returns the active frame's scoped data as *T, initializing a zero
// value when the frame holds none. Using the wrong T for a flow replaces the
// data, so each flow must consistently use a single type.
func DataOf[T any](c *Ctx) *T {
	if c == nil || c.frame == nil {
		return new(T)
	}
	if d, ok := c.frame.Data.(*T); ok {
		return d
	}
	d := new(T)
	c.frame.Data = d
	return d
}

// TextHandler consumes free-text input at a state.
type TextHandler func(ctx context.Context, c *Ctx, text string) (Transition, error)

// ActionHandler reacts to a button press at a state.
type ActionHandler func(ctx context.Context, c *Ctx, payload string) (Transition, error)

// RenderFunc produces the view model for a state. It may call external
// services but must not mutate the navigation stack.
type RenderFunc func(ctx context.Context, c *Ctx) (*RenderRequest, error)

// CommandHandler reacts to a global slash command. The frame in Ctx is the
// current stack top and may be nil when the session has no stack yet.
type CommandHandler func(ctx context.Context, c *Ctx) (Transition, error)

// State declares one screen: its optional text handler, its action handlers,
// and the view-model producer invoked after every transition onto it.
type State struct {
	ID      StateID
	OnText  TextHandler
	Actions map[string]ActionHandler
	Render  RenderFunc
}

// Flow is a named static state graph.
type Flow struct {
	ID     FlowID
	Entry  StateID
	States map[StateID]State

	// NewData builds the zero value of the flow's scoped data. It is used
	// when a frame is created without explicit data and when sessions are
	// decoded from external storage.
	NewData func() Data
}
