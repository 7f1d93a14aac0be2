package dialog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopCommand(ctx context.Context, c *Ctx) (Transition, error) {
	return Stay(), nil
}

func validFlow(id FlowID) Flow {
	return Flow{
		ID:    id,
		Entry: "main",
		States: map[StateID]State{
			"main": {ID: "main", Render: staticRender(string(id))},
		},
	}
}

func TestAddFlowRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.AddFlow(validFlow("one")))
	assert.Error(t, reg.AddFlow(validFlow("one")))
}

func TestAddCommandRequiresSlashPrefix(t *testing.T) {
	reg := NewRegistry()
	assert.Error(t, reg.AddCommand("start", noopCommand))
	require.NoError(t, reg.AddCommand("/start", noopCommand))
	assert.Error(t, reg.AddCommand("/start", noopCommand))
}

func TestValidateCatchesStructuralDefects(t *testing.T) {
	cases := []struct {
		name string
		flow Flow
	}{
		{"no states", Flow{ID: "f", Entry: "main"}},
		{"missing entry", Flow{
			ID:    "f",
			Entry: "gone",
			States: map[StateID]State{
				"main": {ID: "main", Render: staticRender("f")},
			},
		}},
		{"state key mismatch", Flow{
			ID:    "f",
			Entry: "main",
			States: map[StateID]State{
				"main": {ID: "other", Render: staticRender("f")},
			},
		}},
		{"missing renderer", Flow{
			ID:    "f",
			Entry: "main",
			States: map[StateID]State{
				"main": {ID: "main"},
			},
		}},
		{"empty action id", Flow{
			ID:    "f",
			Entry: "main",
			States: map[StateID]State{
				"main": {
					ID:     "main",
					Render: staticRender("f"),
					Actions: map[string]ActionHandler{
						"": func(ctx context.Context, c *Ctx, _ string) (Transition, error) {
							return Stay(), nil
						},
					},
				},
			},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := NewRegistry()
			require.NoError(t, reg.AddFlow(tc.flow))
			assert.Error(t, reg.Validate())
		})
	}
}

func TestFlowsSorted(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.AddFlow(validFlow("zulu")))
	require.NoError(t, reg.AddFlow(validFlow("alpha")))
	assert.Equal(t, []FlowID{"alpha", "zulu"}, reg.Flows())
}
