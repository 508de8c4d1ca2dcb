package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/deepgram/chatroom/internal/domain/chat/models"
)

// relativeTime renders ts relative to now. The zero time and the epoch carry
// no meaningful time and render as "".
func relativeTime(ts, now time.Time) string {
	if ts.IsZero() || ts.Unix() == 0 {
		return ""
	}

	d := now.Sub(ts)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	default:
		return ts.Local().Format("Jan 2 15:04")
	}
}

type renderer struct {
	markdown *glamour.TermRenderer
	width    int
}

func newRenderer(width int, markdown bool) *renderer {
	r := &renderer{width: width}
	if !markdown {
		return r
	}

	tr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(bubbleWidth(width)),
	)
	if err == nil {
		r.markdown = tr
	}
	return r
}

func bubbleWidth(width int) int {
	w := width * 3 / 4
	if w < 20 {
		w = 20
	}
	return w
}

func (r *renderer) text(s string) string {
	if r.markdown == nil {
		return s
	}
	out, err := r.markdown.Render(s)
	if err != nil {
		return s
	}
	return strings.Trim(out, "\n")
}

// choices returns the buttons of the newest button message; those are the
// ones the number keys click.
func choices(messages []models.Message) []models.Button {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Content.Type == models.ContentButtons {
			return messages[i].Content.Buttons
		}
	}
	return nil
}

func (r *renderer) messages(messages []models.Message, now time.Time) string {
	active := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Content.Type == models.ContentButtons {
			active = i
			break
		}
	}

	blocks := make([]string, 0, len(messages))
	for i, m := range messages {
		blocks = append(blocks, r.message(m, now, i == active))
	}
	return strings.Join(blocks, "\n")
}

func (r *renderer) message(m models.Message, now time.Time, numbered bool) string {
	var body string
	switch m.Content.Type {
	case models.ContentText:
		body = r.text(m.Content.Text)
	case models.ContentImage:
		body = "[image] " + m.Content.Image
	case models.ContentButtons:
		lines := make([]string, 0, len(m.Content.Buttons))
		for i, b := range m.Content.Buttons {
			label := b.Title
			if numbered {
				label = fmt.Sprintf("%d. %s", i+1, b.Title)
			}
			if b.Selected {
				lines = append(lines, selectedStyle.Render("✓ "+label))
			} else {
				lines = append(lines, buttonStyle.Render(label))
			}
		}
		body = strings.Join(lines, "\n")
	}

	style, align := botBubble, lipgloss.Left
	if !m.IsBot() {
		style, align = userBubble, lipgloss.Right
	}
	if limit := bubbleWidth(r.width); lipgloss.Width(body) > limit-2 {
		style = style.Width(limit)
	}
	bubble := style.Render(body)

	if t := relativeTime(m.Timestamp, now); t != "" {
		bubble = lipgloss.JoinVertical(align, bubble, timeStyle.Render(t))
	}
	return lipgloss.PlaceHorizontal(r.width, align, bubble)
}
