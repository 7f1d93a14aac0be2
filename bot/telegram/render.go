package telegram

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/vexa-ai/vexabot/core/dialog"
)

// formatMessage flattens a view model into plain message text. Known keys
// are printed in a stable order so screens look consistent.
func formatMessage(rr *dialog.RenderRequest) string {
	var b strings.Builder

	if rr.View != nil {
		if v, ok := rr.View["session_closed"].(bool); ok && v {
			b.WriteString("Session closed. Use /start to begin again.\n")
		}
		if s := viewString(rr.View, "title"); s != "" {
			b.WriteString(s + "\n\n")
		}
		for _, key := range []string{"platform", "meeting_id", "status", "account_id", "email", "name", "token"} {
			if s := viewString(rr.View, key); s != "" {
				fmt.Fprintf(&b, "%s: %s\n", fieldLabel(key), s)
			}
		}
		if lines, ok := rr.View["lines"].([]string); ok {
			for _, line := range lines {
				b.WriteString(line + "\n")
			}
		}
		writeRows(&b, rr.View, "meetings", formatMeetingRow)
		writeRows(&b, rr.View, "preview", formatSegmentRow)
		writeRows(&b, rr.View, "segments", formatSegmentRow)
		if from, ok := viewInt(rr.View, "from"); ok {
			to, _ := viewInt(rr.View, "to")
			total, _ := viewInt(rr.View, "total")
			fmt.Fprintf(&b, "\nShowing %d-%d of %d\n", from, to, total)
		}
		if s := viewString(rr.View, "prompt"); s != "" {
			b.WriteString("\n" + s + "\n")
		}
		if s := viewString(rr.View, "notice"); s != "" {
			b.WriteString("\n" + s + "\n")
		}
	}

	if rr.Error != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("⚠️ " + rr.Error + "\n")
	}

	text := strings.TrimRight(b.String(), "\n")
	if text == "" {
		text = "Nothing to show here."
	}
	return text
}

// buildKeyboard turns the screen's actions into an inline keyboard, one
// button per row.
func buildKeyboard(actions []dialog.ActionButton) *tele.ReplyMarkup {
	if len(actions) == 0 {
		return nil
	}
	markup := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, len(actions))
	for _, a := range actions {
		btn := markup.Data(a.Label, a.ID, a.Payload)
		rows = append(rows, markup.Row(btn))
	}
	markup.Inline(rows...)
	return markup
}

// parseCallback splits Telebot callback data of the form "\f<unique>|<payload>".
func parseCallback(cb *tele.Callback) (action, payload string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	action, payload, _ = strings.Cut(raw, "|")
	return strings.TrimSpace(action), payload
}

func viewString(view map[string]any, key string) string {
	s, _ := view[key].(string)
	return s
}

func viewInt(view map[string]any, key string) (int, bool) {
	switch v := view[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func fieldLabel(key string) string {
	switch key {
	case "meeting_id":
		return "Meeting"
	case "platform":
		return "Platform"
	case "status":
		return "Status"
	case "account_id":
		return "Account ID"
	case "email":
		return "Email"
	case "name":
		return "Name"
	case "token":
		return "API key"
	}
	return key
}

func writeRows(b *strings.Builder, view map[string]any, key string, format func(map[string]any) string) {
	rows, ok := view[key].([]map[string]any)
	if !ok {
		return
	}
	if len(rows) == 0 && key == "meetings" {
		b.WriteString("You have no meetings yet.\n")
		return
	}
	for _, row := range rows {
		b.WriteString(format(row) + "\n")
	}
}

func formatMeetingRow(row map[string]any) string {
	var b strings.Builder
	if live, ok := row["live"].(bool); ok && live {
		b.WriteString("● ")
	}
	b.WriteString(viewString(row, "platform"))
	b.WriteString(" ")
	b.WriteString(viewString(row, "meeting_id"))
	if st := viewString(row, "status"); st != "" {
		b.WriteString(" (" + st + ")")
	}
	return b.String()
}

func formatSegmentRow(row map[string]any) string {
	at := viewString(row, "at")
	speaker := viewString(row, "speaker")
	text := viewString(row, "text")
	if speaker == "" {
		return fmt.Sprintf("[%s] %s", at, text)
	}
	return fmt.Sprintf("[%s] %s: %s", at, speaker, text)
}
