package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	backendtypes "healthchat/pkg/backend/types"
	chatclient "healthchat/pkg/chat"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	mu       sync.Mutex
	probeErr error
	messages []string
}

func (b *stubBackend) Probe(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.probeErr
}

func (b *stubBackend) CreateSession(context.Context, string) (string, error) {
	return "session-1", nil
}

func (b *stubBackend) Send(_ context.Context, _ string, message string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, message)
	return "Drink water.", nil
}

func newTestModel(t *testing.T, backend *stubBackend) *model {
	t.Helper()

	client := chatclient.New(backend,
		chatclient.WithLogger(slog.New(slog.DiscardHandler)),
		chatclient.WithQuickReplies([]string{"Q1", "Q2"}),
		chatclient.WithClock(func() time.Time { return time.Date(2026, 10, 17, 14, 5, 0, 0, time.UTC) }),
	)
	return newModel(context.Background(), client, Info{BackendKind: "http", BackendURL: "http://127.0.0.1:8000", Disclaimer: "Call emergency services in an emergency."})
}

// runCmd executes cmd and flattens batches into their messages.
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}

	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var msgs []tea.Msg
		for _, inner := range batch {
			msgs = append(msgs, runCmd(inner)...)
		}
		return msgs
	}

	return []tea.Msg{msg}
}

// deliver feeds bootstrap and exchange results produced by cmd back into m.
func deliver(m *model, cmd tea.Cmd) {
	for _, msg := range runCmd(cmd) {
		switch msg.(type) {
		case bootstrapDoneMsg, exchangeDoneMsg:
			m.Update(msg)
		}
	}
}

func connectedModel(t *testing.T, backend *stubBackend) *model {
	t.Helper()

	m := newTestModel(t, backend)
	deliver(m, m.Init())
	require.Equal(t, chatclient.Connected, m.snap.State)
	return m
}

func typeText(m *model, text string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func TestInitStartsBootstrap(t *testing.T) {
	m := newTestModel(t, &stubBackend{})

	cmd := m.Init()
	require.NotNil(t, cmd)
	assert.Equal(t, chatclient.Connecting, m.snap.State)
	assert.True(t, m.snap.Loading)
	assert.Contains(t, m.View(), "Connecting")

	deliver(m, cmd)
	assert.Equal(t, chatclient.Connected, m.snap.State)
	require.Len(t, m.snap.Transcript, 1)
	assert.Contains(t, m.View(), "Connected")
}

func TestBootstrapFailureShowsRetryHint(t *testing.T) {
	backend := &stubBackend{probeErr: backendtypes.Unreachable(503, nil)}
	m := newTestModel(t, backend)
	deliver(m, m.Init())

	assert.Equal(t, chatclient.Disconnected, m.snap.State)
	view := m.View()
	assert.Contains(t, view, "Disconnected")
	assert.Contains(t, view, "Ctrl+R retry connection")

	typeText(m, "hello")
	assert.Empty(t, m.input.Value(), "input is disabled while disconnected")

	backend.mu.Lock()
	backend.probeErr = nil
	backend.mu.Unlock()

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	assert.Empty(t, m.snap.Transcript, "retry clears the transcript first")
	assert.Equal(t, chatclient.Connecting, m.snap.State)

	deliver(m, cmd)
	assert.Equal(t, chatclient.Connected, m.snap.State)
	require.Len(t, m.snap.Transcript, 1)
	assert.False(t, m.snap.Transcript[0].IsError)
}

func TestCtrlRWhileConnectingRestartsBootstrap(t *testing.T) {
	m := newTestModel(t, &stubBackend{})

	initCmd := m.Init()
	require.Equal(t, chatclient.Connecting, m.snap.State)
	assert.Contains(t, m.View(), "Ctrl+R retry")

	_, retryCmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NotNil(t, retryCmd, "retry must start a new bootstrap while one is pending")
	assert.Equal(t, chatclient.Connecting, m.snap.State)

	deliver(m, initCmd)
	assert.Equal(t, chatclient.Connecting, m.snap.State, "the abandoned bootstrap result is discarded")
	assert.Empty(t, m.snap.Transcript)

	deliver(m, retryCmd)
	assert.Equal(t, chatclient.Connected, m.snap.State)
	require.Len(t, m.snap.Transcript, 1)
	assert.False(t, m.snap.Transcript[0].IsError)
}

func TestViewShowsSessionAndConnectionError(t *testing.T) {
	m := connectedModel(t, &stubBackend{})
	assert.Contains(t, m.View(), "Session: session-...")
	assert.NotContains(t, m.View(), "Connection Error:")

	failed := newTestModel(t, &stubBackend{probeErr: backendtypes.Unreachable(503, nil)})
	deliver(failed, failed.Init())
	view := failed.View()
	assert.Contains(t, view, "Connection Error: backend is not responding (status 503)")
	assert.NotContains(t, view, "Session:")
}

func TestSessionLabel(t *testing.T) {
	assert.Empty(t, sessionLabel(""))
	assert.Equal(t, "Session: abc", sessionLabel("abc"))
	assert.Equal(t, "Session: 12345678...", sessionLabel("1234567890abcdef"))
}

func TestEnterSendsMessage(t *testing.T) {
	backend := &stubBackend{}
	m := connectedModel(t, backend)

	typeText(m, "  What should I do for a headache?  ")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	assert.Empty(t, m.input.Value())
	assert.True(t, m.snap.Loading)
	require.Len(t, m.snap.Transcript, 2)
	assert.Equal(t, "What should I do for a headache?", m.snap.Transcript[1].Text)

	typeText(m, "more")
	assert.Empty(t, m.input.Value(), "input is disabled while loading")

	deliver(m, cmd)
	assert.False(t, m.snap.Loading)
	require.Len(t, m.snap.Transcript, 3)
	assert.Equal(t, "Drink water.", m.snap.Transcript[2].Text)
	assert.Contains(t, m.View(), "Drink water.")
}

func TestEnterWithBlankInputIsNoOp(t *testing.T) {
	backend := &stubBackend{}
	m := connectedModel(t, backend)

	typeText(m, "   ")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Len(t, m.snap.Transcript, 1)
	assert.Empty(t, backend.messages)
}

func TestTabCyclesQuickReplies(t *testing.T) {
	m := connectedModel(t, &stubBackend{})
	assert.Contains(t, m.View(), "Quick questions")

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "Q1", m.input.Value())
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "Q2", m.input.Value())
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "Q1", m.input.Value())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	deliver(m, cmd)
	assert.NotContains(t, m.View(), "Quick questions")
}

func TestCtrlDTogglesDebug(t *testing.T) {
	m := connectedModel(t, &stubBackend{})
	assert.Contains(t, m.View(), "Debug OFF")

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlD})
	assert.True(t, m.snap.Debug)
	assert.Contains(t, m.View(), "Debug ON")
}

func TestViewShowsTimestampsAndDisclaimer(t *testing.T) {
	m := connectedModel(t, &stubBackend{})

	view := m.View()
	assert.Contains(t, view, "14:05")
	assert.Contains(t, view, "Call emergency services in an emergency.")
	assert.Empty(t, formatTimestamp(time.Time{}))
}

func TestExitCommandQuits(t *testing.T) {
	m := connectedModel(t, &stubBackend{})
	typeText(m, "quit")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestIsExitCommand(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{input: "exit", want: true},
		{input: " quit ", want: true},
		{input: ":q", want: true},
		{input: "EXIT", want: true},
		{input: "hello", want: false},
		{input: "quit now", want: false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isExitCommand(tt.input), "isExitCommand(%q)", tt.input)
	}
}

func TestHandleViewportMouseWheelUpDisablesFollowLog(t *testing.T) {
	m := newTestModel(t, &stubBackend{})
	m.viewport.Width = 40
	m.viewport.Height = 5
	m.viewport.SetContent(strings.Repeat("line\n", 40))
	m.viewport.GotoBottom()
	m.followLog = true

	previousOffset := m.viewport.YOffset
	handled := m.handleViewportMouse(tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonWheelUp})
	require.True(t, handled)
	assert.False(t, m.followLog)
	assert.Less(t, m.viewport.YOffset, previousOffset)
}

func TestHandleViewportMouseWheelDownAtBottomEnablesFollowLog(t *testing.T) {
	m := newTestModel(t, &stubBackend{})
	m.viewport.Width = 40
	m.viewport.Height = 5
	m.viewport.SetContent(strings.Repeat("line\n", 40))
	m.viewport.GotoBottom()

	maxOffset := m.viewport.TotalLineCount() - m.viewport.Height
	m.viewport.SetYOffset(max(0, maxOffset-1))
	m.followLog = false

	handled := m.handleViewportMouse(tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonWheelDown})
	require.True(t, handled)
	assert.True(t, m.viewport.AtBottom())
	assert.True(t, m.followLog)
}

func TestHandleViewportMouseIgnoresNonWheelEvents(t *testing.T) {
	m := newTestModel(t, &stubBackend{})
	handled := m.handleViewportMouse(tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	assert.False(t, handled)
}
