package dialog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	flowHome   FlowID = "home"
	flowWizard FlowID = "wizard"

	stHomeMain  StateID = "main"
	stHomeOther StateID = "other"
	stWizStep1  StateID = "step1"
	stWizStep2  StateID = "step2"
)

type wizardData struct {
	Count int `json:"count"`
}

func staticRender(name string) RenderFunc {
	return func(ctx context.Context, c *Ctx) (*RenderRequest, error) {
		return &RenderRequest{View: map[string]any{"screen": name}}, nil
	}
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()

	home := Flow{
		ID:    flowHome,
		Entry: stHomeMain,
		States: map[StateID]State{
			stHomeMain: {
				ID: stHomeMain,
				OnText: func(ctx context.Context, c *Ctx, text string) (Transition, error) {
					if text == "boom" {
						return Stay(), errors.New("handler exploded")
					}
					return SwitchTo(stHomeOther), nil
				},
				Actions: map[string]ActionHandler{
					"wizard": func(ctx context.Context, c *Ctx, _ string) (Transition, error) {
						return Push(flowWizard, nil), nil
					},
					"switch": func(ctx context.Context, c *Ctx, _ string) (Transition, error) {
						return SwitchTo(stHomeOther), nil
					},
					"bad_switch": func(ctx context.Context, c *Ctx, _ string) (Transition, error) {
						return SwitchTo("missing"), nil
					},
					"fail": func(ctx context.Context, c *Ctx, _ string) (Transition, error) {
						return Push(flowWizard, nil), errors.New("backend unavailable")
					},
					"fail_user": func(ctx context.Context, c *Ctx, _ string) (Transition, error) {
						return Stay(), Failf("try a different value")
					},
				},
				Render: staticRender("home.main"),
			},
			stHomeOther: {
				ID: stHomeOther,
				Actions: map[string]ActionHandler{
					"back": func(ctx context.Context, c *Ctx, _ string) (Transition, error) {
						return SwitchTo(stHomeMain), nil
					},
				},
				Render: staticRender("home.other"),
			},
		},
	}

	wizard := Flow{
		ID:      flowWizard,
		Entry:   stWizStep1,
		NewData: func() Data { return &wizardData{} },
		States: map[StateID]State{
			stWizStep1: {
				ID: stWizStep1,
				OnText: func(ctx context.Context, c *Ctx, text string) (Transition, error) {
					data := DataOf[wizardData](c)
					data.Count++
					return SwitchTo(stWizStep2), nil
				},
				Render: staticRender("wizard.step1"),
			},
			stWizStep2: {
				ID: stWizStep2,
				Actions: map[string]ActionHandler{
					"done": func(ctx context.Context, c *Ctx, _ string) (Transition, error) {
						return Pop(), nil
					},
				},
				Render: staticRender("wizard.step2"),
			},
		},
	}

	require.NoError(t, reg.AddFlow(home))
	require.NoError(t, reg.AddFlow(wizard))
	require.NoError(t, reg.AddCommand("/begin", func(ctx context.Context, c *Ctx) (Transition, error) {
		return Reset(flowHome, nil), nil
	}))
	require.NoError(t, reg.Validate())
	return reg
}

func newTestEngine(t *testing.T) (*Engine, Store) {
	t.Helper()
	store := NewMemoryStore()
	return NewEngine(testRegistry(t), store), store
}

func mustSession(t *testing.T, store Store, userID int64) *Session {
	t.Helper()
	sess, err := store.Get(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, sess)
	return sess
}

func TestCommandResetsStack(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Start(ctx, 1, flowHome, nil)
	require.NoError(t, err)
	_, err = engine.Dispatch(ctx, 1, ActionEvent("wizard", ""))
	require.NoError(t, err)
	require.Equal(t, 2, mustSession(t, store, 1).Depth())

	rr, err := engine.Dispatch(ctx, 1, CommandEvent("/begin"))
	require.NoError(t, err)
	require.NotNil(t, rr)
	assert.Equal(t, "home.main", rr.View["screen"])

	sess := mustSession(t, store, 1)
	assert.Equal(t, 1, sess.Depth())
	assert.Equal(t, flowHome, sess.Top().Flow)
	assert.Equal(t, stHomeMain, sess.Top().State)
}

func TestPushAndPopReturnsToParent(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Start(ctx, 2, flowHome, nil)
	require.NoError(t, err)

	rr, err := engine.Dispatch(ctx, 2, ActionEvent("wizard", ""))
	require.NoError(t, err)
	assert.Equal(t, "wizard.step1", rr.View["screen"])

	rr, err = engine.Dispatch(ctx, 2, TextEvent("anything"))
	require.NoError(t, err)
	assert.Equal(t, "wizard.step2", rr.View["screen"])

	rr, err = engine.Dispatch(ctx, 2, ActionEvent("done", ""))
	require.NoError(t, err)
	assert.Equal(t, "home.main", rr.View["screen"])

	sess := mustSession(t, store, 2)
	assert.Equal(t, 1, sess.Depth())
	assert.Equal(t, flowHome, sess.Top().Flow)
}

func TestSwitchKeepsDepth(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Start(ctx, 3, flowHome, nil)
	require.NoError(t, err)

	rr, err := engine.Dispatch(ctx, 3, ActionEvent("switch", ""))
	require.NoError(t, err)
	assert.Equal(t, "home.other", rr.View["screen"])
	assert.Equal(t, 1, mustSession(t, store, 3).Depth())
}

func TestHandlerErrorKeepsState(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Start(ctx, 4, flowHome, nil)
	require.NoError(t, err)

	// The handler asked to push a new flow and then failed: the push is
	// unconfirmed and must not happen.
	rr, err := engine.Dispatch(ctx, 4, ActionEvent("fail", ""))
	require.NoError(t, err)
	assert.Equal(t, "home.main", rr.View["screen"])
	assert.Equal(t, genericFailureMsg, rr.Error)

	sess := mustSession(t, store, 4)
	assert.Equal(t, 1, sess.Depth())
	assert.Equal(t, stHomeMain, sess.Top().State)
}

func TestUserErrorSurfacesVerbatim(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Start(ctx, 5, flowHome, nil)
	require.NoError(t, err)

	rr, err := engine.Dispatch(ctx, 5, ActionEvent("fail_user", ""))
	require.NoError(t, err)
	assert.Equal(t, "try a different value", rr.Error)
	assert.Equal(t, "home.main", rr.View["screen"])
}

func TestUnknownActionRendersWarning(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Start(ctx, 6, flowHome, nil)
	require.NoError(t, err)

	rr, err := engine.Dispatch(ctx, 6, ActionEvent("stale_button", ""))
	require.NoError(t, err)
	require.NotNil(t, rr)
	assert.NotEmpty(t, rr.Error)
	assert.Equal(t, "home.main", rr.View["screen"])

	sess := mustSession(t, store, 6)
	assert.Equal(t, 1, sess.Depth())
	assert.Equal(t, stHomeMain, sess.Top().State)
}

func TestTextWithoutWidgetIsIgnored(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Start(ctx, 7, flowHome, nil)
	require.NoError(t, err)
	_, err = engine.Dispatch(ctx, 7, ActionEvent("switch", ""))
	require.NoError(t, err)

	// home.other declares no text handler.
	rr, err := engine.Dispatch(ctx, 7, TextEvent("hello"))
	require.NoError(t, err)
	assert.Nil(t, rr)
}

func TestEmptyStackRejectsNonCommand(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Dispatch(ctx, 8, TextEvent("hello"))
	require.ErrorIs(t, err, ErrEmptyStack)

	_, err = engine.Dispatch(ctx, 8, ActionEvent("switch", ""))
	require.ErrorIs(t, err, ErrEmptyStack)

	_, err = engine.Dispatch(ctx, 8, CommandEvent("/unknown"))
	require.ErrorIs(t, err, ErrEmptyStack)
}

func TestUnknownCommandWithActiveStack(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Start(ctx, 9, flowHome, nil)
	require.NoError(t, err)

	rr, err := engine.Dispatch(ctx, 9, CommandEvent("/bogus"))
	require.NoError(t, err)
	assert.NotEmpty(t, rr.Error)
	assert.Equal(t, 1, mustSession(t, store, 9).Depth())
}

func TestInvalidSwitchTargetKeepsState(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Start(ctx, 10, flowHome, nil)
	require.NoError(t, err)

	rr, err := engine.Dispatch(ctx, 10, ActionEvent("bad_switch", ""))
	require.NoError(t, err)
	assert.Equal(t, genericFailureMsg, rr.Error)
	assert.Equal(t, stHomeMain, mustSession(t, store, 10).Top().State)
}

func TestPopToEmptyClosesSession(t *testing.T) {
	reg := testRegistry(t)
	store := NewMemoryStore()
	engine := NewEngine(reg, store)
	ctx := context.Background()

	_, err := engine.Start(ctx, 11, flowWizard, nil)
	require.NoError(t, err)
	_, err = engine.Dispatch(ctx, 11, TextEvent("go"))
	require.NoError(t, err)

	rr, err := engine.Dispatch(ctx, 11, ActionEvent("done", ""))
	require.NoError(t, err)
	assert.Equal(t, true, rr.View["session_closed"])
	assert.Equal(t, 0, mustSession(t, store, 11).Depth())
}

func TestFlowDataIsScopedToFrame(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Start(ctx, 12, flowHome, nil)
	require.NoError(t, err)
	_, err = engine.Dispatch(ctx, 12, ActionEvent("wizard", ""))
	require.NoError(t, err)
	_, err = engine.Dispatch(ctx, 12, TextEvent("step"))
	require.NoError(t, err)

	sess := mustSession(t, store, 12)
	data, ok := sess.Top().Data.(*wizardData)
	require.True(t, ok)
	assert.Equal(t, 1, data.Count)

	// Popping the wizard discards its data with the frame.
	_, err = engine.Dispatch(ctx, 12, ActionEvent("done", ""))
	require.NoError(t, err)
	assert.Nil(t, mustSession(t, store, 12).Top().Data)
}

func TestDispatchSerializedPerUser(t *testing.T) {
	reg := NewRegistry()
	var active atomic.Int32
	var overlapped atomic.Bool

	slow := Flow{
		ID:    "slow",
		Entry: "s",
		States: map[StateID]State{
			"s": {
				ID: "s",
				OnText: func(ctx context.Context, c *Ctx, text string) (Transition, error) {
					if active.Add(1) > 1 {
						overlapped.Store(true)
					}
					time.Sleep(20 * time.Millisecond)
					active.Add(-1)
					return Stay(), nil
				},
				Render: staticRender("slow"),
			},
		},
	}
	require.NoError(t, reg.AddFlow(slow))
	require.NoError(t, reg.Validate())

	engine := NewEngine(reg, NewMemoryStore())
	ctx := context.Background()
	_, err := engine.Start(ctx, 13, "slow", nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Dispatch(ctx, 13, TextEvent("tick"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.False(t, overlapped.Load(), "concurrent dispatches for one user must not overlap")
}

func TestDistinctUsersDoNotShareSessions(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Start(ctx, 20, flowHome, nil)
	require.NoError(t, err)
	_, err = engine.Start(ctx, 21, flowHome, nil)
	require.NoError(t, err)

	_, err = engine.Dispatch(ctx, 20, ActionEvent("wizard", ""))
	require.NoError(t, err)

	assert.Equal(t, 2, mustSession(t, store, 20).Depth())
	assert.Equal(t, 1, mustSession(t, store, 21).Depth())
}
