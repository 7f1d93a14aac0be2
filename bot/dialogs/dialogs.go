// Package dialogs declares the bot's conversation flows: registration, the
// main menu, meeting management, the bot-launch wizard, transcripts and the
// profile screen.
package dialogs

import (
	"context"
	"fmt"
	"strings"

	"github.com/vexa-ai/vexabot/bot/api"
	"github.com/vexa-ai/vexabot/bot/users"
	"github.com/vexa-ai/vexabot/core/dialog"
)

// Flow identifiers.
const (
	FlowAuth           dialog.FlowID = "auth"
	FlowMainMenu       dialog.FlowID = "main_menu"
	FlowMeetings       dialog.FlowID = "meetings"
	FlowCreateBot      dialog.FlowID = "create_bot"
	FlowTranscriptions dialog.FlowID = "transcriptions"
	FlowProfile        dialog.FlowID = "profile"
)

// CmdStart bootstraps a session from any state.
const CmdStart = "/start"

const (
	maxMeetingsShown = 20
	maxSegmentsShown = 50
	segmentsPerPage  = 5
)

// Accounts is the identity surface the flows depend on.
type Accounts interface {
	Resolve(ctx context.Context, telegramID int64) (*users.Identity, error)
	Register(ctx context.Context, email string, telegramID int64, username, name string) (*users.Identity, error)
}

// VexaAPI is the gateway surface the flows depend on.
type VexaAPI interface {
	CreateBot(ctx context.Context, apiKey string, req api.BotRequest) (*api.BotStatus, error)
	StopBot(ctx context.Context, apiKey, platform, nativeMeetingID string) (*api.BotStatus, error)
	RunningBots(ctx context.Context, apiKey string) ([]api.BotStatus, error)
	Meetings(ctx context.Context, apiKey string) ([]api.Meeting, error)
	Transcript(ctx context.Context, apiKey, platform, nativeMeetingID string) (*api.Transcript, error)
}

// Deps carries everything the flows need. BotName and Language are applied
// to every launched bot.
type Deps struct {
	Accounts Accounts
	API      VexaAPI
	BotName  string
	Language string
}

// NewRegistry assembles and validates the full flow registry.
func NewRegistry(d Deps) (*dialog.Registry, error) {
	reg := dialog.NewRegistry()

	for _, fl := range []dialog.Flow{
		authFlow(d),
		mainMenuFlow(),
		meetingsFlow(d),
		createBotFlow(d),
		transcriptionsFlow(d),
		profileFlow(),
	} {
		if err := reg.AddFlow(fl); err != nil {
			return nil, err
		}
	}

	if err := reg.AddCommand(CmdStart, startCommand(d)); err != nil {
		return nil, err
	}

	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

// startCommand resolves the sender and lands them on the main menu, or on
// registration when no identity exists yet.
func startCommand(d Deps) dialog.CommandHandler {
	return func(ctx context.Context, c *dialog.Ctx) (dialog.Transition, error) {
		identity, err := d.Accounts.Resolve(ctx, c.UserID)
		if err != nil {
			return dialog.Stay(), err
		}
		if identity == nil {
			return dialog.Reset(FlowAuth, nil), nil
		}
		return dialog.Reset(FlowMainMenu, nil), nil
	}
}

// meetingRef encodes a meeting reference for button payloads.
func meetingRef(platform, nativeID string) string {
	return platform + "|" + nativeID
}

func parseMeetingRef(payload string) (platform, nativeID string, err error) {
	platform, nativeID, ok := strings.Cut(payload, "|")
	if !ok || platform == "" || nativeID == "" {
		return "", "", fmt.Errorf("dialogs: malformed meeting reference %q", payload)
	}
	return platform, nativeID, nil
}

func platformLabel(platform string) string {
	switch platform {
	case "google_meet":
		return "Google Meet"
	case "zoom":
		return "Zoom"
	default:
		return platform
	}
}
