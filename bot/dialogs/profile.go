package dialogs

import (
	"context"
	"strconv"

	"github.com/vexa-ai/vexabot/bot/auth"
	"github.com/vexa-ai/vexabot/core/dialog"
)

const stProfileMain dialog.StateID = "main"

type profileData struct {
	Notice string `json:"notice,omitempty"`
}

// profileFlow shows the account the Telegram user is linked to. Key and
// settings management live in the web dashboard, so those buttons only
// leave a notice.
func profileFlow() dialog.Flow {
	return dialog.Flow{
		ID:      FlowProfile,
		Entry:   stProfileMain,
		NewData: func() dialog.Data { return &profileData{} },
		States: map[dialog.StateID]dialog.State{
			stProfileMain: {
				ID: stProfileMain,
				Actions: map[string]dialog.ActionHandler{
					"api_keys": func(ctx context.Context, c *dialog.Ctx, _ string) (dialog.Transition, error) {
						data := dialog.DataOf[profileData](c)
						data.Notice = "API keys are managed in the Vexa web dashboard."
						return dialog.Stay(), nil
					},
					"settings": func(ctx context.Context, c *dialog.Ctx, _ string) (dialog.Transition, error) {
						data := dialog.DataOf[profileData](c)
						data.Notice = "Settings are managed in the Vexa web dashboard."
						return dialog.Stay(), nil
					},
					"back": func(ctx context.Context, c *dialog.Ctx, _ string) (dialog.Transition, error) {
						return dialog.Pop(), nil
					},
				},
				Render: func(ctx context.Context, c *dialog.Ctx) (*dialog.RenderRequest, error) {
					identity := auth.IdentityFrom(ctx)
					if identity == nil {
						return nil, dialog.Failf("Please use /start to sign in first.")
					}
					data := dialog.DataOf[profileData](c)

					view := map[string]any{
						"title":      "Profile",
						"account_id": strconv.FormatInt(identity.Account.ID, 10),
						"email":      identity.Account.Email,
						"token":      maskToken(identity.Token),
					}
					if identity.Account.Name != "" {
						view["name"] = identity.Account.Name
					}
					if data.Notice != "" {
						view["notice"] = data.Notice
					}
					return &dialog.RenderRequest{
						View: view,
						Actions: []dialog.ActionButton{
							{ID: "api_keys", Label: "API keys"},
							{ID: "settings", Label: "Settings"},
							{ID: "back", Label: "Back"},
						},
					}, nil
				},
			},
		},
	}
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "********"
	}
	return token[:4] + "…" + token[len(token)-4:]
}
