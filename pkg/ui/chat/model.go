package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	chatclient "healthchat/pkg/chat"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const mouseWheelStep = 3

type bootstrapDoneMsg struct {
	result chatclient.BootstrapResult
}

type exchangeDoneMsg struct {
	result chatclient.ExchangeResult
}

type model struct {
	ctx    context.Context
	client *chatclient.Client
	info   Info

	theme      theme
	spinner    spinner.Model
	input      textinput.Model
	viewport   viewport.Model
	snap       chatclient.Snapshot
	width      int
	height     int
	isReady    bool
	followLog  bool
	quickIndex int
}

func newModel(ctx context.Context, client *chatclient.Client, info Info) *model {
	spin := spinner.New()
	spin.Spinner = spinner.Points
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = "Ask about symptoms, medications, or general health..."
	in.Focus()
	in.CharLimit = 0

	vp := viewport.New(80, 12)

	return &model{
		ctx:       ctx,
		client:    client,
		info:      info,
		theme:     defaultTheme(),
		spinner:   spin,
		input:     in,
		viewport:  vp,
		snap:      client.Snapshot(),
		width:     100,
		height:    30,
		followLog: true,
	}
}

func (m *model) Init() tea.Cmd {
	attempt, ok := m.client.StartBootstrap()
	m.sync(false)
	if !ok {
		return textinput.Blink
	}

	return tea.Batch(m.spinner.Tick, textinput.Blink, bootstrapCmd(m.ctx, attempt))
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.resizeComponents()
		m.refreshViewport(false)
		m.isReady = true
		return m, nil
	case tea.MouseMsg:
		m.handleViewportMouse(typed)
		return m, nil
	case tea.KeyMsg:
		switch typed.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "ctrl+r":
			return m, m.retry()
		case "ctrl+d":
			m.client.ToggleDebug()
			m.sync(false)
			return m, nil
		case "tab":
			m.cycleQuickReply()
			return m, nil
		}

		if handled := m.handleViewportKey(typed); handled {
			return m, nil
		}

		if typed.String() == "enter" {
			return m, m.submit()
		}

		if !m.inputEnabled() {
			return m, nil
		}
	case spinner.TickMsg:
		if !m.snap.Loading {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd
	case bootstrapDoneMsg:
		m.client.FinishBootstrap(typed.result)
		m.sync(true)
		return m, nil
	case exchangeDoneMsg:
		m.client.FinishSend(typed.result)
		m.sync(m.followLog)
		return m, nil
	}

	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit starts an exchange for the current input. The client rejects blank
// text, a missing session and a pending reply.
func (m *model) submit() tea.Cmd {
	value := m.input.Value()
	if isExitCommand(value) {
		return tea.Quit
	}

	exchange, ok := m.client.StartSend(value)
	if !ok {
		return nil
	}

	m.input.SetValue("")
	m.quickIndex = 0
	m.followLog = true
	m.sync(true)

	return tea.Batch(m.spinner.Tick, exchangeCmd(m.ctx, exchange))
}

// retry is allowed in any state. A bootstrap still in flight is abandoned
// and its result discarded by the client.
func (m *model) retry() tea.Cmd {
	attempt, ok := m.client.Retry()
	m.followLog = true
	m.quickIndex = 0
	m.sync(true)
	if !ok {
		return nil
	}

	return tea.Batch(m.spinner.Tick, bootstrapCmd(m.ctx, attempt))
}

// cycleQuickReply fills the input with the next canned question.
func (m *model) cycleQuickReply() {
	if !m.snap.ShowQuickReplies() || m.snap.Loading {
		return
	}

	replies := m.snap.QuickReplies
	m.input.SetValue(replies[m.quickIndex%len(replies)])
	m.input.CursorEnd()
	m.quickIndex++
}

func (m *model) inputEnabled() bool {
	return m.snap.Connected() && !m.snap.Loading
}

// sync refreshes the cached snapshot after the client changed.
func (m *model) sync(forceBottom bool) {
	m.snap = m.client.Snapshot()
	m.refreshViewport(forceBottom)
}

func (m *model) View() string {
	if !m.isReady {
		m.resizeComponents()
		m.refreshViewport(false)
	}

	header := m.theme.header.Width(m.width - 2).Render("🩺 Healthcare Assistant")
	meta := lipgloss.JoinHorizontal(lipgloss.Left,
		m.connectionIndicator(),
		m.theme.headerMeta.Render("  ·  "),
		m.debugIndicator(),
		m.theme.headerMeta.Render(fmt.Sprintf("  ·  backend:%s %s", displayOrNA(m.info.BackendKind), displayOrNA(m.info.BackendURL))),
	)
	if label := sessionLabel(m.snap.SessionID); label != "" {
		meta = lipgloss.JoinHorizontal(lipgloss.Left, meta, m.theme.headerMeta.Render("  ·  "+label))
	}
	line := m.theme.divider.Width(m.width - 2).Render(strings.Repeat("─", max(8, m.width-2)))

	parts := []string{header, meta}
	if m.snap.LastError != "" {
		parts = append(parts, m.theme.statusErr.Width(m.width-2).Render("Connection Error: "+m.snap.LastError))
	}
	parts = append(parts, line, m.theme.viewport.Width(m.width-2).Render(m.viewport.View()))

	if m.snap.ShowQuickReplies() {
		parts = append(parts, m.quickRepliesView())
	}

	parts = append(parts,
		m.statusLine(),
		m.theme.input.Width(m.width-2).Render(m.input.View()),
		m.theme.disclaimer.Render(m.info.Disclaimer),
	)

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *model) connectionIndicator() string {
	switch m.snap.State {
	case chatclient.Connected:
		return m.theme.connected.Render("● Connected")
	case chatclient.Connecting:
		return m.theme.connecting.Render("◌ Connecting...")
	default:
		return m.theme.disconnected.Render("○ Disconnected")
	}
}

func (m *model) debugIndicator() string {
	if m.snap.Debug {
		return m.theme.debugOn.Render("Debug ON")
	}

	return m.theme.hint.Render("Debug OFF")
}

func (m *model) statusLine() string {
	switch {
	case m.snap.Loading && m.snap.State == chatclient.Connecting:
		return m.theme.statusBusy.Render(fmt.Sprintf("%s connecting to the healthcare assistant... · Ctrl+R retry", m.spinner.View()))
	case m.snap.Loading:
		return m.theme.statusBusy.Render(fmt.Sprintf("%s assistant is typing...", m.spinner.View()))
	case m.snap.State == chatclient.Disconnected:
		return m.theme.statusErr.Render("Connection failed · Ctrl+R retry connection · Esc quit")
	default:
		return m.theme.status.Render("Enter send · Ctrl+R retry · Ctrl+D debug · PgUp/PgDn scroll · Esc quit")
	}
}

func (m *model) quickRepliesView() string {
	lines := []string{m.theme.inputLabel.Render("Quick questions") + " " + m.theme.hint.Render("(Tab to use)")}
	for _, reply := range m.snap.QuickReplies {
		lines = append(lines, m.theme.quickReply.Render("› "+reply))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m *model) resizeComponents() {
	w := m.width - 6
	if w < 40 {
		w = 40
	}
	h := m.height - 12
	if m.snap.ShowQuickReplies() {
		h -= len(m.snap.QuickReplies) + 1
	}
	if h < 6 {
		h = 6
	}

	m.viewport.Width = w
	m.viewport.Height = h
	m.input.Width = w - 2
}

func (m *model) refreshViewport(forceBottom bool) {
	previousOffset := m.viewport.YOffset
	sections := make([]string, 0, len(m.snap.Transcript))
	for _, item := range m.snap.Transcript {
		sections = append(sections, m.renderMessage(item))
	}

	m.viewport.SetContent(strings.Join(sections, "\n\n"))
	if m.followLog || forceBottom {
		m.viewport.GotoBottom()
		m.followLog = true
		return
	}

	maxOffset := m.viewport.TotalLineCount() - m.viewport.Height
	if maxOffset < 0 {
		maxOffset = 0
	}
	if previousOffset > maxOffset {
		previousOffset = maxOffset
	}
	m.viewport.SetYOffset(previousOffset)
}

func (m *model) renderMessage(item chatclient.Message) string {
	stamp := m.theme.hint.Render(formatTimestamp(item.At))
	body := strings.TrimRight(item.Text, " \t\r\n")

	switch {
	case item.IsError:
		return lipgloss.JoinVertical(lipgloss.Left,
			m.theme.errorTitle.Render("Error")+" "+stamp,
			m.theme.errorBox.Width(m.viewport.Width).Render(body),
		)
	case item.Role == chatclient.RoleUser:
		return lipgloss.JoinVertical(lipgloss.Left,
			m.theme.userTitle.Render("You")+" "+stamp,
			m.theme.userBox.Width(m.viewport.Width).Render(body),
		)
	default:
		return lipgloss.JoinVertical(lipgloss.Left,
			m.theme.assistantTitle.Render("Assistant")+" "+stamp,
			m.theme.assistantBox.Width(m.viewport.Width).Render(body),
		)
	}
}

func (m *model) handleViewportKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "pgup", "ctrl+b", "alt+up", "ctrl+up":
		m.viewport.PageUp()
		m.followLog = false
		return true
	case "pgdown", "ctrl+f", "alt+down", "ctrl+down":
		m.viewport.PageDown()
		if m.viewport.AtBottom() {
			m.followLog = true
		}
		return true
	case "home":
		m.viewport.GotoTop()
		m.followLog = false
		return true
	case "end":
		m.viewport.GotoBottom()
		m.followLog = true
		return true
	default:
		return false
	}
}

// handleViewportMouse scrolls the transcript on wheel events.
func (m *model) handleViewportMouse(msg tea.MouseMsg) bool {
	if msg.Action != tea.MouseActionPress {
		return false
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.viewport.SetYOffset(m.viewport.YOffset - mouseWheelStep)
		m.followLog = false
		return true
	case tea.MouseButtonWheelDown:
		m.viewport.SetYOffset(m.viewport.YOffset + mouseWheelStep)
		if m.viewport.AtBottom() {
			m.followLog = true
		}
		return true
	default:
		return false
	}
}

func bootstrapCmd(ctx context.Context, attempt chatclient.BootstrapAttempt) tea.Cmd {
	return func() tea.Msg {
		return bootstrapDoneMsg{result: attempt.Run(ctx)}
	}
}

func exchangeCmd(ctx context.Context, exchange chatclient.Exchange) tea.Cmd {
	return func() tea.Msg {
		return exchangeDoneMsg{result: exchange.Run(ctx)}
	}
}

// sessionLabel shortens a session id to its first eight characters.
func sessionLabel(sessionID string) string {
	if sessionID == "" {
		return ""
	}

	runes := []rune(sessionID)
	if len(runes) <= 8 {
		return "Session: " + sessionID
	}

	return "Session: " + string(runes[:8]) + "..."
}

func formatTimestamp(at time.Time) string {
	if at.IsZero() {
		return ""
	}

	return at.Format("15:04")
}

func displayOrNA(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "n/a"
	}

	return trimmed
}

func isExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "/exit", "quit", ":q":
		return true
	default:
		return false
	}
}
