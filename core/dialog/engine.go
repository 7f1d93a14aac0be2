package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vexa-ai/vexabot/core/logger"
)

// genericFailureMsg is shown when a handler or renderer fails without a
// user-presentable message of its own.
const genericFailureMsg = "Something went wrong. Please try again."

// UserError wraps a message that is safe to show verbatim to the end user,
// such as input validation feedback. Handlers return it to re-render the
// current screen with an inline error.
type UserError struct {
	Msg string
}

func (e *UserError) Error() string { return e.Msg }

// Failf builds a UserError from a format string.
func Failf(format string, args ...any) error {
	return &UserError{Msg: fmt.Sprintf(format, args...)}
}

// Engine interprets inbound events against each user's active flow frame and
// applies the resulting transitions. All collaborators are injected at
// construction.
type Engine struct {
	reg   *Registry
	store Store

	// locks serializes dispatches per user: the navigation stack is not
	// safe for concurrent mutation. Values are *sync.Mutex.
	locks sync.Map
}

// NewEngine constructs an Engine over a validated registry and a session store.
func NewEngine(reg *Registry, store Store) *Engine {
	return &Engine{reg: reg, store: store}
}

func (e *Engine) userLock(userID int64) *sync.Mutex {
	if v, ok := e.locks.Load(userID); ok {
		return v.(*sync.Mutex)
	}
	v, _ := e.locks.LoadOrStore(userID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Start resets the user's stack to the entry state of the given flow and
// renders it. It is used for bootstrap commands and auth redirects.
func (e *Engine) Start(ctx context.Context, userID int64, flow FlowID, data Data) (*RenderRequest, error) {
	mu := e.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := e.loadSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := sess.apply(e.reg, Reset(flow, data)); err != nil {
		return nil, err
	}
	if err := e.store.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("dialog: persist session: %w", err)
	}
	return e.render(ctx, sess, ""), nil
}

// ActiveFlow reports the flow owning the session's top frame, or "" when the
// user has no active conversation. Transports use it to decide whether an
// auth redirect should reset the stack or let the event reach the flow the
// user is already in.
func (e *Engine) ActiveFlow(ctx context.Context, userID int64) (FlowID, error) {
	mu := e.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := e.loadSession(ctx, userID)
	if err != nil {
		return "", err
	}
	if top := sess.Top(); top != nil {
		return top.Flow, nil
	}
	return "", nil
}

// Dispatch is the sole entry point for inbound events. It resolves the
// session, runs the matching handler on the active state, applies at most one
// transition, and renders the resulting screen.
//
// A nil RenderRequest with a nil error means the event was deliberately
// ignored (free text on a screen without a text widget).
func (e *Engine) Dispatch(ctx context.Context, userID int64, ev Event) (*RenderRequest, error) {
	mu := e.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	start := time.Now()
	sess, err := e.loadSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	c := &Ctx{UserID: userID, frame: sess.Top()}

	var (
		tr         Transition
		handlerErr error
	)

	switch ev.Kind {
	case EventCommand:
		h, ok := e.reg.Command(ev.Command)
		if !ok {
			if sess.Top() == nil {
				return nil, fmt.Errorf("%w: unknown command %q", ErrEmptyStack, ev.Command)
			}
			logger.Warn(ctx, "dialog", "dispatch.command.unknown",
				slog.Int64("user_id", userID),
				slog.String("command", logger.SanitizeLimit(ev.Command, 64)),
			)
			return e.render(ctx, sess, "Unknown command."), nil
		}
		tr, handlerErr = h(ctx, c)

	case EventText:
		st, err := e.currentState(sess)
		if err != nil {
			return nil, err
		}
		if st.OnText == nil {
			// No text widget on this screen.
			logger.Debug(ctx, "dialog", "dispatch.text.ignored",
				slog.Int64("user_id", userID),
				slog.String("flow", string(sess.Top().Flow)),
				slog.String("state", string(sess.Top().State)),
			)
			return nil, nil
		}
		tr, handlerErr = st.OnText(ctx, c, ev.Text)

	case EventAction:
		st, err := e.currentState(sess)
		if err != nil {
			return nil, err
		}
		h, ok := st.Actions[ev.Action]
		if !ok {
			logger.Warn(ctx, "dialog", "dispatch.action.unknown",
				slog.Int64("user_id", userID),
				slog.String("flow", string(sess.Top().Flow)),
				slog.String("state", string(sess.Top().State)),
				slog.String("action", logger.SanitizeLimit(ev.Action, 64)),
				slog.String("err", ErrNoSuchAction.Error()),
			)
			return e.render(ctx, sess, "This action is not available here."), nil
		}
		tr, handlerErr = h(ctx, c, ev.Payload)

	default:
		return nil, fmt.Errorf("dialog: unsupported event kind %d", ev.Kind)
	}

	errMsg := ""
	if handlerErr != nil {
		// A failed or timed-out handler must not advance the stack:
		// its transition, if any, is unconfirmed.
		tr = Stay()
		errMsg = userMessage(handlerErr)
		logger.Warn(ctx, "dialog", "dispatch.handler.fail",
			slog.Int64("user_id", userID),
			slog.String("err", logger.SanitizeLimit(handlerErr.Error(), 256)),
		)
	}

	if applyErr := sess.apply(e.reg, tr); applyErr != nil {
		logger.Error(ctx, "dialog", "dispatch.transition.fail",
			slog.Int64("user_id", userID),
			slog.String("err", applyErr.Error()),
		)
		if errMsg == "" {
			errMsg = genericFailureMsg
		}
	}

	if err := e.store.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("dialog: persist session: %w", err)
	}

	rr := e.render(ctx, sess, errMsg)
	logger.Debug(ctx, "dialog", "dispatch.handled",
		slog.Int64("user_id", userID),
		slog.Int("depth", sess.Depth()),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	)
	return rr, nil
}

func (e *Engine) loadSession(ctx context.Context, userID int64) (*Session, error) {
	sess, err := e.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("dialog: load session: %w", err)
	}
	if sess == nil {
		sess = &Session{UserID: userID}
	}
	return sess, nil
}

func (e *Engine) currentState(sess *Session) (State, error) {
	top := sess.Top()
	if top == nil {
		return State{}, ErrEmptyStack
	}
	fl, ok := e.reg.Flow(top.Flow)
	if !ok {
		return State{}, fmt.Errorf("%w: %s", ErrUnknownFlow, top.Flow)
	}
	st, ok := fl.States[top.State]
	if !ok {
		return State{}, fmt.Errorf("%w: %s in flow %s", ErrUnknownState, top.State, top.Flow)
	}
	return st, nil
}

// render invokes the active state's view-model producer. Renderer failures
// are folded into RenderRequest.Error so the screen is always redrawn.
func (e *Engine) render(ctx context.Context, sess *Session, errMsg string) *RenderRequest {
	top := sess.Top()
	if top == nil {
		return &RenderRequest{
			View:  map[string]any{"session_closed": true},
			Error: errMsg,
		}
	}

	st, err := e.currentState(sess)
	if err != nil {
		return &RenderRequest{Error: genericFailureMsg}
	}

	rr, renderErr := st.Render(ctx, &Ctx{UserID: sess.UserID, frame: top})
	if rr == nil {
		rr = &RenderRequest{}
	}
	if renderErr != nil {
		logger.Warn(ctx, "dialog", "render.fail",
			slog.Int64("user_id", sess.UserID),
			slog.String("flow", string(top.Flow)),
			slog.String("state", string(top.State)),
			slog.String("err", logger.SanitizeLimit(renderErr.Error(), 256)),
		)
		if rr.Error == "" {
			rr.Error = userMessage(renderErr)
		}
	}
	if errMsg != "" && rr.Error == "" {
		rr.Error = errMsg
	}
	return rr
}

func userMessage(err error) string {
	if err == nil {
		return ""
	}
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Msg
	}
	return genericFailureMsg
}
