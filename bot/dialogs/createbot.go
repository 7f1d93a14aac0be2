package dialogs

import (
	"context"
	"regexp"
	"strings"

	"github.com/vexa-ai/vexabot/bot/api"
	"github.com/vexa-ai/vexabot/bot/auth"
	"github.com/vexa-ai/vexabot/core/dialog"
)

const (
	stCreatePlatform  dialog.StateID = "platform"
	stCreateMeetingID dialog.StateID = "meeting_id"
	stCreateConfirm   dialog.StateID = "confirm"
)

var (
	// Google Meet codes look like abc-defg-hij.
	googleMeetIDRe = regexp.MustCompile(`^[a-z]{3}-[a-z]{4}-[a-z]{3}$`)
	zoomIDRe       = regexp.MustCompile(`^[0-9]{9,11}$`)
)

type createBotData struct {
	Platform  string `json:"platform"`
	MeetingID string `json:"meeting_id"`
}

// createBotFlow is the launch wizard. It is pushed on top of the meetings
// flow and pops back to it once the bot is confirmed, so the wizard leaves
// no trace on the stack.
func createBotFlow(d Deps) dialog.Flow {
	return dialog.Flow{
		ID:      FlowCreateBot,
		Entry:   stCreatePlatform,
		NewData: func() dialog.Data { return &createBotData{} },
		States: map[dialog.StateID]dialog.State{
			stCreatePlatform: {
				ID: stCreatePlatform,
				Actions: map[string]dialog.ActionHandler{
					"pick": func(ctx context.Context, c *dialog.Ctx, payload string) (dialog.Transition, error) {
						if payload != "google_meet" && payload != "zoom" {
							return dialog.Stay(), dialog.Failf("Please pick one of the listed platforms.")
						}
						data := dialog.DataOf[createBotData](c)
						data.Platform = payload
						return dialog.SwitchTo(stCreateMeetingID), nil
					},
					"cancel": func(ctx context.Context, c *dialog.Ctx, _ string) (dialog.Transition, error) {
						return dialog.Pop(), nil
					},
				},
				Render: func(ctx context.Context, c *dialog.Ctx) (*dialog.RenderRequest, error) {
					return &dialog.RenderRequest{
						View: map[string]any{
							"title":  "Add bot to meeting",
							"prompt": "Which platform is the meeting on?",
						},
						Actions: []dialog.ActionButton{
							{ID: "pick", Label: "Google Meet", Payload: "google_meet"},
							{ID: "pick", Label: "Zoom", Payload: "zoom"},
							{ID: "cancel", Label: "Cancel"},
						},
					}, nil
				},
			},
			stCreateMeetingID: {
				ID:     stCreateMeetingID,
				OnText: acceptMeetingID,
				Actions: map[string]dialog.ActionHandler{
					"back": func(ctx context.Context, c *dialog.Ctx, _ string) (dialog.Transition, error) {
						return dialog.SwitchTo(stCreatePlatform), nil
					},
				},
				Render: func(ctx context.Context, c *dialog.Ctx) (*dialog.RenderRequest, error) {
					data := dialog.DataOf[createBotData](c)
					prompt := "Enter the meeting ID."
					if data.Platform == "google_meet" {
						prompt = "Enter the Google Meet code (like abc-defg-hij)."
					} else if data.Platform == "zoom" {
						prompt = "Enter the Zoom meeting number."
					}
					return &dialog.RenderRequest{
						View: map[string]any{
							"title":    "Add bot to meeting",
							"platform": platformLabel(data.Platform),
							"prompt":   prompt,
						},
						Actions: []dialog.ActionButton{
							{ID: "back", Label: "Back"},
						},
					}, nil
				},
			},
			stCreateConfirm: {
				ID: stCreateConfirm,
				Actions: map[string]dialog.ActionHandler{
					"confirm": launchBot(d),
					"back": func(ctx context.Context, c *dialog.Ctx, _ string) (dialog.Transition, error) {
						return dialog.SwitchTo(stCreateMeetingID), nil
					},
					"cancel": func(ctx context.Context, c *dialog.Ctx, _ string) (dialog.Transition, error) {
						return dialog.Pop(), nil
					},
				},
				Render: func(ctx context.Context, c *dialog.Ctx) (*dialog.RenderRequest, error) {
					data := dialog.DataOf[createBotData](c)
					return &dialog.RenderRequest{
						View: map[string]any{
							"title":      "Confirm",
							"platform":   platformLabel(data.Platform),
							"meeting_id": data.MeetingID,
							"prompt":     "Send the bot into this meeting?",
						},
						Actions: []dialog.ActionButton{
							{ID: "confirm", Label: "Yes, send the bot"},
							{ID: "back", Label: "Back"},
							{ID: "cancel", Label: "Cancel"},
						},
					}, nil
				},
			},
		},
	}
}

func acceptMeetingID(ctx context.Context, c *dialog.Ctx, text string) (dialog.Transition, error) {
	data := dialog.DataOf[createBotData](c)
	id := strings.TrimSpace(strings.ToLower(text))

	switch data.Platform {
	case "google_meet":
		// Tolerate a pasted meet.google.com link.
		if i := strings.LastIndex(id, "/"); i >= 0 {
			id = id[i+1:]
		}
		if !googleMeetIDRe.MatchString(id) {
			return dialog.Stay(), dialog.Failf("A Google Meet code looks like abc-defg-hij. Please try again.")
		}
	case "zoom":
		id = strings.ReplaceAll(id, " ", "")
		if !zoomIDRe.MatchString(id) {
			return dialog.Stay(), dialog.Failf("A Zoom meeting number is 9 to 11 digits. Please try again.")
		}
	default:
		return dialog.SwitchTo(stCreatePlatform), nil
	}

	data.MeetingID = id
	return dialog.SwitchTo(stCreateConfirm), nil
}

// launchBot calls the gateway and pops the wizard on success. On any error,
// including a timeout, the confirm screen is kept: the launch is unconfirmed
// and the user decides whether to retry.
func launchBot(d Deps) dialog.ActionHandler {
	return func(ctx context.Context, c *dialog.Ctx, _ string) (dialog.Transition, error) {
		identity := auth.IdentityFrom(ctx)
		if identity == nil {
			return dialog.Stay(), dialog.Failf("Please use /start to sign in first.")
		}
		data := dialog.DataOf[createBotData](c)

		_, err := d.API.CreateBot(ctx, identity.Token, api.BotRequest{
			Platform:        data.Platform,
			NativeMeetingID: data.MeetingID,
			BotName:         d.BotName,
			Language:        d.Language,
		})
		if err != nil {
			if api.IsStatus(err, 409) {
				return dialog.Stay(), dialog.Failf("A bot is already in that meeting.")
			}
			return dialog.Stay(), err
		}
		return dialog.Pop(), nil
	}
}
