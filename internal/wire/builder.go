// Package wire maps engine response messages onto WhatsApp-shaped outbound
// payloads, enforcing the channel's length and cardinality limits.
package wire

import (
	"log/slog"

	"github.com/kalidas7337/whatsapp-saas-sub000/internal/models"
)

// TextPayload is a plain text message body.
type TextPayload struct {
	Body string `json:"body"`
}

// ButtonPayload is one quick-reply button.
type ButtonPayload struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ButtonsPayload is an interactive button message.
type ButtonsPayload struct {
	Body    string          `json:"body"`
	Header  string          `json:"header,omitempty"`
	Footer  string          `json:"footer,omitempty"`
	Buttons []ButtonPayload `json:"buttons"`
}

// RowPayload is one selectable row inside a list section.
type RowPayload struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// SectionPayload groups list rows under a section title.
type SectionPayload struct {
	Title string       `json:"title,omitempty"`
	Rows  []RowPayload `json:"rows"`
}

// ListPayload is an interactive list message.
type ListPayload struct {
	Body       string           `json:"body"`
	ButtonText string           `json:"button_text"`
	Sections   []SectionPayload `json:"sections"`
}

// OutboundMessage is one wire-ready outbound message. Exactly one of the
// payload fields is set, matching Type.
type OutboundMessage struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	DelayMs int64           `json:"delay_ms,omitempty"`
	Text    *TextPayload    `json:"text,omitempty"`
	Buttons *ButtonsPayload `json:"buttons,omitempty"`
	List    *ListPayload    `json:"list,omitempty"`
}

// Build converts one engine response message into its wire form. Overlong
// titles and descriptions are truncated and excess buttons or rows dropped,
// silently except for a debug log, so a sloppy flow definition still sends.
func Build(msg models.BotResponseMessage) OutboundMessage {
	out := OutboundMessage{
		ID:      msg.ID,
		Type:    string(msg.Type),
		DelayMs: msg.Delay.Milliseconds(),
	}

	switch msg.Type {
	case models.ResponseTypeButtons:
		out.Buttons = buildButtons(msg)
	case models.ResponseTypeList:
		out.List = buildList(msg)
	default:
		out.Type = string(models.ResponseTypeText)
		out.Text = &TextPayload{Body: msg.Text}
	}
	return out
}

// BuildAll converts a full response message slice.
func BuildAll(msgs []models.BotResponseMessage) []OutboundMessage {
	out := make([]OutboundMessage, len(msgs))
	for i, msg := range msgs {
		out[i] = Build(msg)
	}
	return out
}

func buildButtons(msg models.BotResponseMessage) *ButtonsPayload {
	buttons := msg.Buttons
	if len(buttons) > models.MaxButtonsPerMessage {
		slog.Debug("wire.buildButtons: dropping excess buttons", "messageID", msg.ID, "count", len(buttons), "max", models.MaxButtonsPerMessage)
		buttons = buttons[:models.MaxButtonsPerMessage]
	}
	payload := &ButtonsPayload{
		Body:    msg.Text,
		Header:  msg.Header,
		Footer:  msg.Footer,
		Buttons: make([]ButtonPayload, len(buttons)),
	}
	for i, b := range buttons {
		payload.Buttons[i] = ButtonPayload{
			ID:    b.ID,
			Title: truncate(b.Title, models.MaxButtonTitleLength),
		}
	}
	return payload
}

func buildList(msg models.BotResponseMessage) *ListPayload {
	payload := &ListPayload{
		Body:       msg.Text,
		ButtonText: truncate(msg.ButtonText, models.MaxButtonTitleLength),
		Sections:   make([]SectionPayload, 0, len(msg.Sections)),
	}
	total := 0
	for _, section := range msg.Sections {
		out := SectionPayload{Title: truncate(section.Title, models.MaxListSectionTitleLength)}
		for _, row := range section.Rows {
			if total >= models.MaxListRowsPerMessage {
				slog.Debug("wire.buildList: dropping excess rows", "messageID", msg.ID, "max", models.MaxListRowsPerMessage)
				break
			}
			out.Rows = append(out.Rows, RowPayload{
				ID:          row.ID,
				Title:       truncate(row.Title, models.MaxListRowTitleLength),
				Description: truncate(row.Description, models.MaxListRowDescriptionLength),
			})
			total++
		}
		if len(out.Rows) > 0 {
			payload.Sections = append(payload.Sections, out)
		}
	}
	return payload
}

// truncate cuts s to max runes. Limits are counted in characters, not bytes,
// so multibyte titles are not split mid-rune.
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
