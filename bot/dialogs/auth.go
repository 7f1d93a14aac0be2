package dialogs

import (
	"context"
	"errors"

	"github.com/vexa-ai/vexabot/bot/auth"
	"github.com/vexa-ai/vexabot/bot/users"
	"github.com/vexa-ai/vexabot/core/dialog"
)

const (
	stAuthWaitingEmail dialog.StateID = "waiting_email"
	stAuthComplete     dialog.StateID = "complete"
)

type authData struct {
	AccountID int64  `json:"account_id"`
	Email     string `json:"email"`
	Token     string `json:"token"`
}

// authFlow registers a new user: it asks for an email, runs registration
// against the admin API and confirms with a link to the main menu.
func authFlow(d Deps) dialog.Flow {
	return dialog.Flow{
		ID:      FlowAuth,
		Entry:   stAuthWaitingEmail,
		NewData: func() dialog.Data { return &authData{} },
		States: map[dialog.StateID]dialog.State{
			stAuthWaitingEmail: {
				ID:     stAuthWaitingEmail,
				OnText: registerByEmail(d),
				Render: func(ctx context.Context, c *dialog.Ctx) (*dialog.RenderRequest, error) {
					return &dialog.RenderRequest{
						View: map[string]any{
							"title":  "Welcome to Vexa",
							"prompt": "Please enter your email address to get started.",
						},
					}, nil
				},
			},
			stAuthComplete: {
				ID: stAuthComplete,
				Actions: map[string]dialog.ActionHandler{
					"to_main_menu": func(ctx context.Context, c *dialog.Ctx, _ string) (dialog.Transition, error) {
						return dialog.Reset(FlowMainMenu, nil), nil
					},
				},
				Render: func(ctx context.Context, c *dialog.Ctx) (*dialog.RenderRequest, error) {
					data := dialog.DataOf[authData](c)
					return &dialog.RenderRequest{
						View: map[string]any{
							"title": "Registration complete",
							"email": data.Email,
						},
						Actions: []dialog.ActionButton{
							{ID: "to_main_menu", Label: "Open main menu"},
						},
					}, nil
				},
			},
		},
	}
}

func registerByEmail(d Deps) dialog.TextHandler {
	return func(ctx context.Context, c *dialog.Ctx, text string) (dialog.Transition, error) {
		sender := auth.SenderFrom(ctx)

		identity, err := d.Accounts.Register(ctx, text, c.UserID, sender.Username, sender.FullName)
		if err != nil {
			if errors.Is(err, users.ErrInvalidEmail) {
				return dialog.Stay(), dialog.Failf("That doesn't look like an email address. Please try again.")
			}
			var regErr *users.RegistrationError
			if errors.As(err, &regErr) {
				return dialog.Stay(), dialog.Failf("Registration failed. Please try again in a moment.")
			}
			return dialog.Stay(), err
		}

		data := dialog.DataOf[authData](c)
		data.AccountID = identity.Account.ID
		data.Email = identity.Account.Email
		data.Token = identity.Token
		return dialog.SwitchTo(stAuthComplete), nil
	}
}
