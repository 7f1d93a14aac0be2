package dialogs

import (
	"context"
	"fmt"

	"github.com/vexa-ai/vexabot/bot/api"
	"github.com/vexa-ai/vexabot/bot/auth"
	"github.com/vexa-ai/vexabot/core/dialog"
)

const (
	stTrMeetingList dialog.StateID = "meeting_list"
	stTrView        dialog.StateID = "view"
	stTrSegments    dialog.StateID = "segments"
)

type transcriptionsData struct {
	Platform string `json:"platform"`
	NativeID string `json:"native_id"`
	Offset   int    `json:"offset"`
	// Total is the capped segment count captured when paging starts, so the
	// prev/next handlers can bound Offset without refetching.
	Total int `json:"total"`
}

// transcriptionsFlow lets the user pick a recorded meeting and read its
// transcript, either as a short preview or page by page.
func transcriptionsFlow(d Deps) dialog.Flow {
	return dialog.Flow{
		ID:      FlowTranscriptions,
		Entry:   stTrMeetingList,
		NewData: func() dialog.Data { return &transcriptionsData{} },
		States: map[dialog.StateID]dialog.State{
			stTrMeetingList: {
				ID: stTrMeetingList,
				Actions: map[string]dialog.ActionHandler{
					"open": func(ctx context.Context, c *dialog.Ctx, payload string) (dialog.Transition, error) {
						platform, nativeID, err := parseMeetingRef(payload)
						if err != nil {
							return dialog.Stay(), err
						}
						data := dialog.DataOf[transcriptionsData](c)
						data.Platform, data.NativeID, data.Offset = platform, nativeID, 0
						return dialog.SwitchTo(stTrView), nil
					},
					"back": func(ctx context.Context, c *dialog.Ctx, _ string) (dialog.Transition, error) {
						return dialog.Pop(), nil
					},
				},
				Render: renderTranscriptMeetings(d),
			},
			stTrView: {
				ID: stTrView,
				Actions: map[string]dialog.ActionHandler{
					"segments": openSegments(d),
					"refresh": func(ctx context.Context, c *dialog.Ctx, _ string) (dialog.Transition, error) {
						return dialog.Stay(), nil
					},
					"back": func(ctx context.Context, c *dialog.Ctx, _ string) (dialog.Transition, error) {
						return dialog.SwitchTo(stTrMeetingList), nil
					},
				},
				Render: renderTranscriptView(d),
			},
			stTrSegments: {
				ID: stTrSegments,
				Actions: map[string]dialog.ActionHandler{
					"prev": func(ctx context.Context, c *dialog.Ctx, _ string) (dialog.Transition, error) {
						data := dialog.DataOf[transcriptionsData](c)
						data.Offset -= segmentsPerPage
						clampOffset(data)
						return dialog.Stay(), nil
					},
					"next": func(ctx context.Context, c *dialog.Ctx, _ string) (dialog.Transition, error) {
						data := dialog.DataOf[transcriptionsData](c)
						data.Offset += segmentsPerPage
						clampOffset(data)
						return dialog.Stay(), nil
					},
					"back": func(ctx context.Context, c *dialog.Ctx, _ string) (dialog.Transition, error) {
						return dialog.SwitchTo(stTrView), nil
					},
				},
				Render: renderTranscriptSegments(d),
			},
		},
	}
}

// openSegments records how many segments there are to page over before
// switching to the segments screen. The count lives in the frame data so the
// prev/next handlers can clamp Offset without another fetch.
func openSegments(d Deps) dialog.ActionHandler {
	return func(ctx context.Context, c *dialog.Ctx, _ string) (dialog.Transition, error) {
		identity := auth.IdentityFrom(ctx)
		if identity == nil {
			return dialog.Stay(), dialog.Failf("Please use /start to sign in first.")
		}
		data := dialog.DataOf[transcriptionsData](c)

		tr, err := d.API.Transcript(ctx, identity.Token, data.Platform, data.NativeID)
		if err != nil {
			if api.IsStatus(err, 404) {
				return dialog.Stay(), dialog.Failf("No transcript is available for this meeting yet.")
			}
			return dialog.Stay(), err
		}

		data.Total = len(tr.Segments)
		if data.Total > maxSegmentsShown {
			data.Total = maxSegmentsShown
		}
		data.Offset = 0
		return dialog.SwitchTo(stTrSegments), nil
	}
}

// lastPageOffset returns the offset of the last page for the given segment
// count.
func lastPageOffset(total int) int {
	if total <= segmentsPerPage {
		return 0
	}
	return ((total - 1) / segmentsPerPage) * segmentsPerPage
}

func clampOffset(data *transcriptionsData) {
	if last := lastPageOffset(data.Total); data.Offset > last {
		data.Offset = last
	}
	if data.Offset < 0 {
		data.Offset = 0
	}
}

func renderTranscriptMeetings(d Deps) dialog.RenderFunc {
	return func(ctx context.Context, c *dialog.Ctx) (*dialog.RenderRequest, error) {
		identity := auth.IdentityFrom(ctx)
		if identity == nil {
			return nil, dialog.Failf("Please use /start to sign in first.")
		}
		meetings, err := d.API.Meetings(ctx, identity.Token)
		if err != nil {
			return nil, err
		}
		if len(meetings) > maxMeetingsShown {
			meetings = meetings[:maxMeetingsShown]
		}

		actions := make([]dialog.ActionButton, 0, len(meetings)+1)
		for _, m := range meetings {
			actions = append(actions, dialog.ActionButton{
				ID:      "open",
				Label:   platformLabel(m.Platform) + " " + m.NativeMeetingID,
				Payload: meetingRef(m.Platform, m.NativeMeetingID),
			})
		}
		actions = append(actions, dialog.ActionButton{ID: "back", Label: "Back"})

		return &dialog.RenderRequest{
			View: map[string]any{
				"title":  "Transcriptions",
				"prompt": "Pick a meeting.",
				"count":  len(meetings),
			},
			Actions: actions,
		}, nil
	}
}

func renderTranscriptView(d Deps) dialog.RenderFunc {
	return func(ctx context.Context, c *dialog.Ctx) (*dialog.RenderRequest, error) {
		identity := auth.IdentityFrom(ctx)
		if identity == nil {
			return nil, dialog.Failf("Please use /start to sign in first.")
		}
		data := dialog.DataOf[transcriptionsData](c)

		tr, err := d.API.Transcript(ctx, identity.Token, data.Platform, data.NativeID)
		if err != nil {
			if api.IsStatus(err, 404) {
				return nil, dialog.Failf("No transcript is available for this meeting yet.")
			}
			return nil, err
		}

		segments := tr.Segments
		if len(segments) > maxSegmentsShown {
			segments = segments[:maxSegmentsShown]
		}
		preview := segments
		if len(preview) > segmentsPerPage {
			preview = preview[:segmentsPerPage]
		}

		return &dialog.RenderRequest{
			View: map[string]any{
				"title":      "Transcript",
				"platform":   platformLabel(data.Platform),
				"meeting_id": data.NativeID,
				"total":      len(tr.Segments),
				"preview":    segmentRows(preview, 0),
			},
			Actions: []dialog.ActionButton{
				{ID: "segments", Label: "Read full transcript"},
				{ID: "refresh", Label: "Refresh"},
				{ID: "back", Label: "Back"},
			},
		}, nil
	}
}

func renderTranscriptSegments(d Deps) dialog.RenderFunc {
	return func(ctx context.Context, c *dialog.Ctx) (*dialog.RenderRequest, error) {
		identity := auth.IdentityFrom(ctx)
		if identity == nil {
			return nil, dialog.Failf("Please use /start to sign in first.")
		}
		data := dialog.DataOf[transcriptionsData](c)

		tr, err := d.API.Transcript(ctx, identity.Token, data.Platform, data.NativeID)
		if err != nil {
			return nil, err
		}

		segments := tr.Segments
		if len(segments) > maxSegmentsShown {
			segments = segments[:maxSegmentsShown]
		}
		// The renderer never writes back to the frame data; the transcript
		// may have shrunk since paging started, so clamp a local copy.
		offset := data.Offset
		if offset >= len(segments) {
			offset = lastPageOffset(len(segments))
		}
		end := offset + segmentsPerPage
		if end > len(segments) {
			end = len(segments)
		}
		page := segments[offset:end]

		actions := make([]dialog.ActionButton, 0, 3)
		if offset > 0 {
			actions = append(actions, dialog.ActionButton{ID: "prev", Label: "Previous"})
		}
		if end < len(segments) {
			actions = append(actions, dialog.ActionButton{ID: "next", Label: "Next"})
		}
		actions = append(actions, dialog.ActionButton{ID: "back", Label: "Back"})

		return &dialog.RenderRequest{
			View: map[string]any{
				"title":      "Transcript",
				"meeting_id": data.NativeID,
				"from":       offset + 1,
				"to":         end,
				"total":      len(segments),
				"segments":   segmentRows(page, offset),
			},
			Actions: actions,
		}, nil
	}
}

func segmentRows(segments []api.TranscriptSegment, offset int) []map[string]any {
	rows := make([]map[string]any, 0, len(segments))
	for i, s := range segments {
		speaker := s.Speaker
		if speaker == "" {
			speaker = "Unknown"
		}
		rows = append(rows, map[string]any{
			"n":       offset + i + 1,
			"at":      formatOffset(s.StartTime),
			"speaker": speaker,
			"text":    s.Text,
		})
	}
	return rows
}

func formatOffset(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
