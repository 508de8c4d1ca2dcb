// Package tui is a terminal front end for a widget Controller.
package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/deepgram/chatroom/internal/widget"
	"github.com/deepgram/chatroom/pkg/logger"
)

// Controller is the part of *widget.Controller the terminal drives.
type Controller interface {
	Subscribe() <-chan widget.View
	SendMessage(text, payload string) error
	OnButtonClick(title, payload string) error
	ToggleOpen() error
}

// TrackerFunc fetches the server-side tracker document for the debug pane.
type TrackerFunc func(ctx context.Context) ([]byte, error)

type Options struct {
	Title    string
	Markdown bool
	Tracker  TrackerFunc
	// DebugInterval is how often the debug pane refreshes.
	DebugInterval time.Duration
}

type (
	viewMsg       struct{ view widget.View }
	viewClosedMsg struct{}
	actionErrMsg  struct{ err error }
	debugTickMsg  struct{}
	trackerMsg    struct {
		body string
		err  error
	}
)

type Model struct {
	ctrl Controller
	opts Options
	sub  <-chan widget.View
	view widget.View
	now  func() time.Time

	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model
	render   *renderer

	width  int
	height int

	status  string
	debug   bool
	tracker string
}

func New(ctrl Controller, opts Options) Model {
	if opts.Title == "" {
		opts.Title = "Chat"
	}
	if opts.DebugInterval <= 0 {
		opts.DebugInterval = time.Second
	}

	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Prompt = "> "
	ti.CharLimit = 1024
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points

	vp := viewport.New(80, 20)
	// Letter keys belong to the input; only paging scrolls the transcript.
	vp.KeyMap = viewport.KeyMap{
		PageUp:   key.NewBinding(key.WithKeys("pgup")),
		PageDown: key.NewBinding(key.WithKeys("pgdown")),
		Up:       key.NewBinding(key.WithKeys("up")),
		Down:     key.NewBinding(key.WithKeys("down")),
	}

	m := Model{
		ctrl:     ctrl,
		opts:     opts,
		sub:      ctrl.Subscribe(),
		now:      time.Now,
		input:    ti,
		spinner:  sp,
		viewport: vp,
		width:    80,
		height:   24,
	}
	m.render = newRenderer(m.width, opts.Markdown)
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForView(m.sub))
}

func waitForView(sub <-chan widget.View) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-sub
		if !ok {
			return viewClosedMsg{}
		}
		return viewMsg{view: v}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.render = newRenderer(m.paneWidth(), m.opts.Markdown)
		m.input.Width = m.width - 4
		m.layout()

	case tea.KeyMsg:
		cmd, handled := m.handleKey(msg)
		if handled {
			return m, cmd
		}

	case viewMsg:
		m.view = msg.view
		m.layout()
		return m, waitForView(m.sub)

	case viewClosedMsg:
		logger.Info(logger.TUI, "Controller closed, leaving")
		return m, tea.Quit

	case actionErrMsg:
		m.status = msg.err.Error()
		logger.Warn(logger.TUI, "Action failed: %v", msg.err)
		return m, nil

	case debugTickMsg:
		if m.debug {
			return m, m.fetchTracker()
		}
		return m, nil

	case trackerMsg:
		if msg.err != nil {
			m.tracker = "tracker unavailable: " + msg.err.Error()
		} else {
			m.tracker = msg.body
		}
		m.layout()
		if m.debug {
			return m, tea.Tick(m.opts.DebugInterval, func(time.Time) tea.Msg { return debugTickMsg{} })
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	pressed := msg.String()

	switch pressed {
	case "ctrl+c", "esc":
		return tea.Quit, true
	case "ctrl+o":
		return m.action(m.ctrl.ToggleOpen), true
	case "ctrl+d":
		m.debug = !m.debug
		m.layout()
		if m.debug && m.opts.Tracker != nil {
			return m.fetchTracker(), true
		}
		return nil, true
	case "enter":
		text := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		m.status = ""
		if text == "" {
			return nil, true
		}
		if n, ok := choiceIndex(text, "/"); ok {
			return m.click(n), true
		}
		return m.action(func() error { return m.ctrl.SendMessage(text, "") }), true
	}

	if n, ok := choiceIndex(pressed, "alt+"); ok {
		return m.click(n), true
	}
	return nil, false
}

// choiceIndex parses "/3" or "alt+3" style input into a zero-based index.
func choiceIndex(s, prefix string) (int, bool) {
	if !strings.HasPrefix(s, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(s, prefix))
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}

func (m *Model) click(i int) tea.Cmd {
	buttons := choices(m.view.Messages)
	if i >= len(buttons) {
		m.status = "no such choice"
		return nil
	}
	b := buttons[i]
	return m.action(func() error { return m.ctrl.OnButtonClick(b.Title, b.Payload) })
}

func (m *Model) action(fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return actionErrMsg{err: err}
		}
		return nil
	}
}

func (m *Model) fetchTracker() tea.Cmd {
	source := m.opts.Tracker
	if source == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		body, err := source(ctx)
		if err != nil {
			return trackerMsg{err: err}
		}
		var pretty bytes.Buffer
		if json.Indent(&pretty, body, "", "  ") != nil {
			return trackerMsg{body: string(body)}
		}
		return trackerMsg{body: pretty.String()}
	}
}

func (m *Model) paneWidth() int {
	if m.debug {
		return m.width * 3 / 5
	}
	return m.width
}

// layout sizes the viewport and refills it with the current messages.
func (m *Model) layout() {
	if m.render.width != m.paneWidth() {
		m.render = newRenderer(m.paneWidth(), m.opts.Markdown)
	}

	// header, waiting line, input, help
	h := m.height - 4
	if h < 1 {
		h = 1
	}
	m.viewport.Width = m.paneWidth()
	m.viewport.Height = h
	m.viewport.SetContent(m.render.messages(m.view.Messages, m.now()))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	state := "closed"
	if m.view.IsOpen {
		state = "open"
	}
	header := headerStyle.Render(m.opts.Title) + " " + helpStyle.Render(state)
	help := helpStyle.Render("enter send • /N or alt+N choose • ctrl+o open/close • ctrl+d debug • esc quit")

	if !m.view.IsOpen {
		return lipgloss.JoinVertical(lipgloss.Left, header, help)
	}

	var status string
	switch {
	case m.view.Err != nil:
		status = errorStyle.Render("Could not load conversation: " + m.view.Err.Error())
	case m.status != "":
		status = errorStyle.Render(m.status)
	case m.view.Waiting:
		status = m.spinner.View()
	}

	pane := m.viewport.View()
	if m.debug {
		pane = lipgloss.JoinHorizontal(lipgloss.Top, pane,
			debugStyle.Width(m.width-m.paneWidth()-2).Height(m.viewport.Height).Render(m.tracker))
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, pane, status, m.input.View(), help)
}
