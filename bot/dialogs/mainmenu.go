package dialogs

import (
	"context"

	"github.com/vexa-ai/vexabot/core/dialog"
)

const (
	stMenuMain dialog.StateID = "main"
	stMenuHelp dialog.StateID = "help"
)

// mainMenuFlow is the hub every registered user lands on. Each section is
// pushed as its own flow so Back always returns here.
func mainMenuFlow() dialog.Flow {
	return dialog.Flow{
		ID:    FlowMainMenu,
		Entry: stMenuMain,
		States: map[dialog.StateID]dialog.State{
			stMenuMain: {
				ID: stMenuMain,
				Actions: map[string]dialog.ActionHandler{
					"meetings": func(ctx context.Context, c *dialog.Ctx, _ string) (dialog.Transition, error) {
						return dialog.Push(FlowMeetings, nil), nil
					},
					"transcriptions": func(ctx context.Context, c *dialog.Ctx, _ string) (dialog.Transition, error) {
						return dialog.Push(FlowTranscriptions, nil), nil
					},
					"profile": func(ctx context.Context, c *dialog.Ctx, _ string) (dialog.Transition, error) {
						return dialog.Push(FlowProfile, nil), nil
					},
					"help": func(ctx context.Context, c *dialog.Ctx, _ string) (dialog.Transition, error) {
						return dialog.SwitchTo(stMenuHelp), nil
					},
				},
				Render: func(ctx context.Context, c *dialog.Ctx) (*dialog.RenderRequest, error) {
					return &dialog.RenderRequest{
						View: map[string]any{
							"title":  "Main menu",
							"prompt": "What would you like to do?",
						},
						Actions: []dialog.ActionButton{
							{ID: "meetings", Label: "My meetings"},
							{ID: "transcriptions", Label: "Transcriptions"},
							{ID: "profile", Label: "Profile"},
							{ID: "help", Label: "Help"},
						},
					}, nil
				},
			},
			stMenuHelp: {
				ID: stMenuHelp,
				Actions: map[string]dialog.ActionHandler{
					"back": func(ctx context.Context, c *dialog.Ctx, _ string) (dialog.Transition, error) {
						return dialog.SwitchTo(stMenuMain), nil
					},
				},
				Render: func(ctx context.Context, c *dialog.Ctx) (*dialog.RenderRequest, error) {
					return &dialog.RenderRequest{
						View: map[string]any{
							"title": "Help",
							"lines": []string{
								"Send a Vexa bot into your meetings to record and transcribe them.",
								"My meetings shows active and past meetings and lets you launch a bot.",
								"Transcriptions gives you the text of any recorded meeting.",
								"Use /start at any time to return to this menu.",
							},
						},
						Actions: []dialog.ActionButton{
							{ID: "back", Label: "Back"},
						},
					}, nil
				},
			},
		},
	}
}
