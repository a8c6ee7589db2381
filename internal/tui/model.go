// Package tui is the Bubble Tea chat view.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/HexSleeves/topbot/internal/bus"
	"github.com/HexSleeves/topbot/internal/conversation"
	"github.com/HexSleeves/topbot/internal/exchange"
)

const (
	headerHeight = 1
	statusHeight = 1
	inputHeight  = 3
	inputChrome  = 2 // top and bottom border
	defaultWidth = 80
)

// Submitter is the part of *exchange.Session the view needs.
type Submitter interface {
	Submit(ctx context.Context, text string) (exchange.Outcome, error)
	History() *conversation.History
}

// Options tweaks the model.
type Options struct {
	Title    string
	Markdown bool // render bot replies through glamour
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	session Submitter
	ctx     context.Context
	opts    Options

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	md       markdownRenderer

	messages []conversation.Message

	width    int
	height   int
	busy     bool
	status   string
	lastErr  string
	quitting bool
}

// New creates the chat model. ctx bounds every exchange started from the view.
func New(ctx context.Context, session Submitter, opts Options) Model {
	if opts.Title == "" {
		opts.Title = "topbot"
	}

	ta := textarea.New()
	ta.Placeholder = "Input here"
	ta.CharLimit = 4096
	ta.ShowLineNumbers = false
	ta.SetHeight(inputHeight)
	ta.SetWidth(defaultWidth - inputChrome)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	vp := viewport.New(defaultWidth, 20)

	m := Model{
		session:  session,
		ctx:      ctx,
		opts:     opts,
		viewport: vp,
		input:    ta,
		spinner:  sp,
		width:    defaultWidth,
		messages: session.History().All(),
	}
	m.md = m.newMarkdown(defaultWidth)
	m.refresh()
	return m
}

func (m Model) newMarkdown(width int) markdownRenderer {
	if !m.opts.Markdown {
		return nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(bubbleWidth(width)-2),
	)
	if err != nil {
		return nil
	}
	return r
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, tea.WindowSize())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		//nolint:exhaustive // only a few keys are handled here
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.md = m.newMarkdown(msg.Width)
		m.layout()
		m.refresh()

	case AppendedMsg:
		m.messages = m.session.History().All()
		m.refresh()

	case ExchangeDoneMsg:
		m.busy = false
		m.status = ""
		m.messages = m.session.History().All()
		m.refresh()
		switch {
		case errors.Is(msg.Err, exchange.ErrExchangeInFlight):
			m.lastErr = "still waiting on the previous reply"
		case msg.Outcome.Err != nil:
			m.lastErr = msg.Outcome.Err.Error()
		default:
			m.lastErr = ""
		}

	case SystemErrorMsg:
		m.lastErr = "internal error: " + msg.Reason

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// submit sends the input box contents. While an exchange is running the
// text stays in the box and nothing is sent.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.busy {
		m.lastErr = "still waiting on the previous reply"
		return m, nil
	}

	text := m.input.Value()
	m.input.Reset()
	m.busy = true
	m.lastErr = ""
	m.status = "thinking"

	session, ctx := m.session, m.ctx
	run := func() tea.Msg {
		out, err := session.Submit(ctx, text)
		return ExchangeDoneMsg{Outcome: out, Err: err}
	}
	return m, tea.Batch(run, m.spinner.Tick)
}

func (m *Model) layout() {
	vpHeight := m.height - headerHeight - statusHeight - inputHeight - inputChrome
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = m.width
	m.viewport.Height = vpHeight
	m.input.SetWidth(max(m.width-inputChrome, 1))
}

// refresh re-renders the transcript and scrolls to the newest message.
func (m *Model) refresh() {
	m.viewport.SetContent(renderTranscript(m.messages, m.width, m.md))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	header := headerStyle.Render(m.opts.Title)

	var status string
	switch {
	case m.busy && m.lastErr != "":
		status = statusStyle.Render(fmt.Sprintf("%s %s ", m.spinner.View(), m.status)) + errorStyle.Render(m.lastErr)
	case m.busy:
		status = statusStyle.Render(fmt.Sprintf("%s %s", m.spinner.View(), m.status))
	case m.lastErr != "":
		status = errorStyle.Render(m.lastErr)
	default:
		status = statusStyle.Render("enter: send • pgup/pgdn: scroll • esc: quit")
	}

	return strings.Join([]string{
		header,
		m.viewport.View(),
		status,
		inputStyle.Render(m.input.View()),
	}, "\n")
}

// Busy reports whether an exchange started from the view is running.
func (m Model) Busy() bool { return m.busy }

// Messages returns the transcript the view last rendered.
func (m Model) Messages() []conversation.Message { return m.messages }

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, session *exchange.Session, b *bus.MessageBus, opts Options) error {
	p := tea.NewProgram(New(ctx, session, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if b != nil {
		sub := Bridge(b, p)
		defer sub.Unsubscribe()
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
