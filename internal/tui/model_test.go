package tui

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/helpdesk-widget/internal/domain"
	"github.com/ashureev/helpdesk-widget/internal/session"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	submitted []string
	cleared   int
	feedback  []domain.FeedbackSign
	voiceErrs []error
	messages  []domain.Message
	busy      bool
	observer  session.Observer
}

func (f *fakeController) Submit(text string) bool {
	if strings.TrimSpace(text) == "" || f.busy {
		return false
	}
	f.submitted = append(f.submitted, text)
	return true
}

func (f *fakeController) Clear() { f.cleared++ }

func (f *fakeController) ProvideFeedback(sign domain.FeedbackSign) error {
	f.feedback = append(f.feedback, sign)
	return nil
}

func (f *fakeController) VoiceResult(_ string, err error) bool {
	f.voiceErrs = append(f.voiceErrs, err)
	return false
}

func (f *fakeController) OpenFAQ(category string) (session.FAQLink, error) {
	link, ok := session.LookupFAQ(category)
	if !ok {
		return session.FAQLink{}, session.ErrUnknownFAQCategory
	}
	return link, nil
}

func (f *fakeController) Snapshot() ([]domain.Message, bool) { return f.messages, f.busy }

func (f *fakeController) Subscribe(obs session.Observer) func() {
	f.observer = obs
	return func() { f.observer = nil }
}

func (f *fakeController) Transcript() string { return session.TranscriptTitle + "\n" }

func enter(m *Model, text string) tea.Cmd {
	m.input.SetValue(text)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		raw, cmd, arg string
	}{
		{"/clear", "clear", ""},
		{"  /FAQ  akademik ", "faq", "akademik"},
		{"/print now please", "print", "now please"},
	}
	for _, tt := range tests {
		cmd, arg := parseCommand(tt.raw)
		assert.Equal(t, tt.cmd, cmd, tt.raw)
		assert.Equal(t, tt.arg, arg, tt.raw)
	}
}

func TestConfidenceStyle(t *testing.T) {
	th := newTheme()
	assert.Equal(t, lipgloss.Color("#2a9d8f"), th.confidenceStyle(0.92).GetForeground())
	assert.Equal(t, lipgloss.Color("#2a9d8f"), th.confidenceStyle(0.7).GetForeground())
	assert.Equal(t, lipgloss.Color("#e9c46a"), th.confidenceStyle(0.55).GetForeground())
	assert.Equal(t, lipgloss.Color("#e63946"), th.confidenceStyle(0.3).GetForeground())
}

func TestEnterSubmitsText(t *testing.T) {
	ctrl := &fakeController{}
	m := New(ctrl, t.TempDir())
	defer m.Close()

	enter(m, "jam layanan?")
	assert.Equal(t, []string{"jam layanan?"}, ctrl.submitted)
	assert.Empty(t, m.input.Value())

	ctrl.busy = true
	enter(m, "lagi")
	assert.Len(t, ctrl.submitted, 1)
	assert.Equal(t, "tunggu balasan sebelumnya", m.status)
}

func TestSlashCommands(t *testing.T) {
	ctrl := &fakeController{}
	m := New(ctrl, t.TempDir())
	defer m.Close()

	enter(m, "/clear")
	assert.Equal(t, 1, ctrl.cleared)

	enter(m, "/good")
	enter(m, "/bad")
	assert.Equal(t, []domain.FeedbackSign{domain.FeedbackPositive, domain.FeedbackNegative}, ctrl.feedback)

	enter(m, "/faq akademik")
	link, _ := session.LookupFAQ("akademik")
	assert.Contains(t, m.status, link.URL)

	enter(m, "/faq olahraga")
	assert.Contains(t, m.status, "akademik")

	enter(m, "/voice")
	require.Len(t, ctrl.voiceErrs, 1)
	assert.True(t, errors.Is(ctrl.voiceErrs[0], session.ErrVoiceUnsupported))

	enter(m, "/dance")
	assert.Contains(t, m.status, "/dance")
	assert.Empty(t, ctrl.submitted)
}

func TestQuitCommand(t *testing.T) {
	m := New(&fakeController{}, t.TempDir())
	defer m.Close()

	cmd := enter(m, "/quit")
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestPrintWritesTranscript(t *testing.T) {
	dir := t.TempDir()
	m := New(&fakeController{}, dir)
	defer m.Close()

	path, err := m.printTranscript(time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "chat-history-20240301-093000.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), session.TranscriptTitle)
}

func TestChangeRefreshesTimeline(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	ctrl := &fakeController{}
	m := New(ctrl, t.TempDir())
	defer m.Close()
	require.NotNil(t, ctrl.observer)

	ctrl.messages = []domain.Message{
		{ID: 1, Sender: domain.SenderUser, Text: "jam layanan?", CreatedAt: now},
		{ID: 2, Sender: domain.SenderBot, Text: "Jam layanan 08.00-16.00", Category: "Layanan", Confidence: domain.Float(0.92), CreatedAt: now},
	}
	ctrl.busy = true
	ctrl.observer(session.Change{Type: session.ChangeBusy})

	cmd := waitChange(m.changes)
	msg := cmd()
	require.Equal(t, changedMsg{}, msg)
	m.Update(msg)

	assert.True(t, m.busy)
	view := m.View()
	assert.Contains(t, view, "Bot sedang mengetik...")
	assert.Contains(t, m.timeline.View(), "Layanan · 92%")
}
