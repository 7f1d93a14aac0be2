package dialogs

import (
	"context"

	"github.com/vexa-ai/vexabot/bot/auth"
	"github.com/vexa-ai/vexabot/core/dialog"
)

const (
	stMeetingsList    dialog.StateID = "list"
	stMeetingsDetails dialog.StateID = "details"
)

type meetingsData struct {
	Platform string `json:"platform"`
	NativeID string `json:"native_id"`
	Notice   string `json:"notice,omitempty"`
}

// meetingsFlow lists the user's meetings with their live status and offers
// the bot-launch wizard and per-meeting controls.
func meetingsFlow(d Deps) dialog.Flow {
	return dialog.Flow{
		ID:      FlowMeetings,
		Entry:   stMeetingsList,
		NewData: func() dialog.Data { return &meetingsData{} },
		States: map[dialog.StateID]dialog.State{
			stMeetingsList: {
				ID: stMeetingsList,
				Actions: map[string]dialog.ActionHandler{
					"open": func(ctx context.Context, c *dialog.Ctx, payload string) (dialog.Transition, error) {
						platform, nativeID, err := parseMeetingRef(payload)
						if err != nil {
							return dialog.Stay(), err
						}
						data := dialog.DataOf[meetingsData](c)
						data.Platform, data.NativeID, data.Notice = platform, nativeID, ""
						return dialog.SwitchTo(stMeetingsDetails), nil
					},
					"create": func(ctx context.Context, c *dialog.Ctx, _ string) (dialog.Transition, error) {
						return dialog.Push(FlowCreateBot, nil), nil
					},
					"refresh": func(ctx context.Context, c *dialog.Ctx, _ string) (dialog.Transition, error) {
						return dialog.Stay(), nil
					},
					"back": func(ctx context.Context, c *dialog.Ctx, _ string) (dialog.Transition, error) {
						return dialog.Pop(), nil
					},
				},
				Render: renderMeetingsList(d),
			},
			stMeetingsDetails: {
				ID: stMeetingsDetails,
				Actions: map[string]dialog.ActionHandler{
					"stop_bot": stopBot(d),
					"back": func(ctx context.Context, c *dialog.Ctx, _ string) (dialog.Transition, error) {
						data := dialog.DataOf[meetingsData](c)
						data.Notice = ""
						return dialog.SwitchTo(stMeetingsList), nil
					},
				},
				Render: func(ctx context.Context, c *dialog.Ctx) (*dialog.RenderRequest, error) {
					data := dialog.DataOf[meetingsData](c)
					view := map[string]any{
						"title":      "Meeting details",
						"platform":   platformLabel(data.Platform),
						"meeting_id": data.NativeID,
					}
					if data.Notice != "" {
						view["notice"] = data.Notice
					}
					return &dialog.RenderRequest{
						View: view,
						Actions: []dialog.ActionButton{
							{ID: "stop_bot", Label: "Stop bot"},
							{ID: "back", Label: "Back"},
						},
					}, nil
				},
			},
		},
	}
}

func renderMeetingsList(d Deps) dialog.RenderFunc {
	return func(ctx context.Context, c *dialog.Ctx) (*dialog.RenderRequest, error) {
		identity := auth.IdentityFrom(ctx)
		if identity == nil {
			return nil, dialog.Failf("Please use /start to sign in first.")
		}

		meetings, err := d.API.Meetings(ctx, identity.Token)
		if err != nil {
			return nil, err
		}

		// Live status is decorative; a failed status call must not hide
		// the list itself.
		running := map[string]bool{}
		if bots, err := d.API.RunningBots(ctx, identity.Token); err == nil {
			for _, b := range bots {
				running[meetingRef(b.Platform, b.NativeMeetingID)] = true
			}
		}

		if len(meetings) > maxMeetingsShown {
			meetings = meetings[:maxMeetingsShown]
		}

		rows := make([]map[string]any, 0, len(meetings))
		actions := make([]dialog.ActionButton, 0, len(meetings)+2)
		for _, m := range meetings {
			ref := meetingRef(m.Platform, m.NativeMeetingID)
			rows = append(rows, map[string]any{
				"platform":   platformLabel(m.Platform),
				"meeting_id": m.NativeMeetingID,
				"status":     m.Status,
				"live":       running[ref],
			})
			label := platformLabel(m.Platform) + " " + m.NativeMeetingID
			if running[ref] {
				label = "● " + label
			}
			actions = append(actions, dialog.ActionButton{ID: "open", Label: label, Payload: ref})
		}
		actions = append(actions,
			dialog.ActionButton{ID: "create", Label: "Add bot to meeting"},
			dialog.ActionButton{ID: "refresh", Label: "Refresh"},
			dialog.ActionButton{ID: "back", Label: "Back"},
		)

		return &dialog.RenderRequest{
			View: map[string]any{
				"title":    "My meetings",
				"meetings": rows,
			},
			Actions: actions,
		}, nil
	}
}

func stopBot(d Deps) dialog.ActionHandler {
	return func(ctx context.Context, c *dialog.Ctx, _ string) (dialog.Transition, error) {
		identity := auth.IdentityFrom(ctx)
		if identity == nil {
			return dialog.Stay(), dialog.Failf("Please use /start to sign in first.")
		}
		data := dialog.DataOf[meetingsData](c)
		if _, err := d.API.StopBot(ctx, identity.Token, data.Platform, data.NativeID); err != nil {
			return dialog.Stay(), err
		}
		data.Notice = "Stop request sent."
		return dialog.Stay(), nil
	}
}
