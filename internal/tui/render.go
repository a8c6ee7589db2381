package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"

	"github.com/HexSleeves/topbot/internal/conversation"
)

const minBubbleWidth = 20

// markdownRenderer is satisfied by *glamour.TermRenderer.
type markdownRenderer interface {
	Render(in string) (string, error)
}

// bubbleWidth is the widest a message bubble may be for a view of width.
func bubbleWidth(width int) int {
	w := width * 3 / 4
	if w < minBubbleWidth {
		w = minBubbleWidth
	}
	return w
}

// wrapText breaks s at word boundaries so no line is wider than limit. Words
// longer than limit are split.
func wrapText(s string, limit int) string {
	if limit < 1 {
		return s
	}
	return wrap.String(wordwrap.String(s, limit), limit)
}

// renderMessage draws one message: user messages right-aligned in blue,
// bot messages left-aligned in green under the sender name.
func renderMessage(m conversation.Message, width int, md markdownRenderer) string {
	maxW := bubbleWidth(width)
	content := wrapText(m.Content, maxW-2)

	if m.Role == conversation.RoleUser {
		bubble := userBubble.Render(content)
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, bubble)
	}

	if md != nil {
		if out, err := md.Render(m.Content); err == nil {
			content = strings.Trim(out, "\n")
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		senderStyle.Render(m.Sender),
		aiBubble.Render(content),
	)
}

// renderTranscript draws every message oldest first.
func renderTranscript(msgs []conversation.Message, width int, md markdownRenderer) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, renderMessage(m, width, md))
	}
	return strings.Join(parts, "\n\n")
}
