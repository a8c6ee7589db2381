package tui

import (
	"io"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
	"github.com/pterm/pterm"

	"github.com/HexSleeves/topbot/internal/bus"
	"github.com/HexSleeves/topbot/internal/conversation"
)

var (
	plainUser   = pterm.NewStyle(pterm.FgLightBlue)
	plainAI     = pterm.NewStyle(pterm.FgGreen)
	plainSender = pterm.NewStyle(pterm.FgGray, pterm.Italic)
)

// FormatPlain renders m as uncoloured text: user lines flush right, bot
// lines flush left under the sender name.
func FormatPlain(m conversation.Message, width int) string {
	if width <= 0 {
		width = defaultWidth
	}
	lines := strings.Split(wrapText(m.Content, bubbleWidth(width)), "\n")

	if m.Role == conversation.RoleUser {
		for i, l := range lines {
			lines[i] = runewidth.FillLeft(l, width)
		}
		return strings.Join(lines, "\n")
	}
	return m.Sender + ":\n  " + strings.Join(lines, "\n  ")
}

// Printer writes transcript messages to a plain terminal or pipe.
type Printer struct {
	mu    sync.Mutex
	w     io.Writer
	width int
}

func NewPrinter(w io.Writer, width int) *Printer {
	return &Printer{w: w, width: width}
}

func (p *Printer) Print(m conversation.Message) {
	text := FormatPlain(m, p.width)

	p.mu.Lock()
	defer p.mu.Unlock()
	if m.Role == conversation.RoleUser {
		pterm.Fprintln(p.w, plainUser.Sprint(text))
	} else {
		sender, body, _ := strings.Cut(text, "\n")
		pterm.Fprintln(p.w, plainSender.Sprint(sender))
		pterm.Fprintln(p.w, plainAI.Sprint(body))
	}
	pterm.Fprintln(p.w)
}

// PrintAll writes msgs oldest first.
func (p *Printer) PrintAll(msgs []conversation.Message) {
	for _, m := range msgs {
		p.Print(m)
	}
}

// Attach prints every message appended from now on.
func (p *Printer) Attach(b *bus.MessageBus) *bus.Subscription {
	return b.Subscribe(bus.MsgConversationAppended, func(msg bus.Message) {
		if m, ok := msg.Payload.(conversation.Message); ok {
			p.Print(m)
		}
	})
}
