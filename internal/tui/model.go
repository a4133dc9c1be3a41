// Package tui is a terminal adapter for a widget session. It drives a
// session.Controller in-process and renders its transcript with bubbletea.
package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/helpdesk-widget/internal/domain"
	"github.com/ashureev/helpdesk-widget/internal/session"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Controller is the part of session.Controller the terminal adapter drives.
type Controller interface {
	Submit(text string) bool
	Clear()
	ProvideFeedback(sign domain.FeedbackSign) error
	VoiceResult(text string, err error) bool
	OpenFAQ(category string) (session.FAQLink, error)
	Snapshot() ([]domain.Message, bool)
	Subscribe(obs session.Observer) func()
	Transcript() string
}

var _ Controller = (*session.Controller)(nil)

// changedMsg tells the model the controller state moved.
type changedMsg struct{}

// Model is the bubbletea model of the chat screen.
type Model struct {
	ctrl        Controller
	changes     chan struct{}
	unsubscribe func()
	printDir    string

	messages []domain.Message
	busy     bool
	status   string

	input    textinput.Model
	timeline viewport.Model
	spinner  spinner.Model
	theme    theme
	width    int
	height   int
}

// New creates the model and subscribes to ctrl. Printed transcripts are
// written to printDir.
func New(ctrl Controller, printDir string) *Model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 2000
	input.Placeholder = "Ketik pertanyaan, atau /help"
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points

	th := newTheme()
	sp.Style = th.spinner

	m := &Model{
		ctrl:     ctrl,
		changes:  make(chan struct{}, 1),
		printDir: printDir,
		status:   "siap",
		input:    input,
		timeline: viewport.New(80, 20),
		spinner:  sp,
		theme:    th,
	}
	// The observer runs under the controller lock, so it only signals.
	m.unsubscribe = ctrl.Subscribe(func(session.Change) {
		select {
		case m.changes <- struct{}{}:
		default:
		}
	})
	return m
}

// Close detaches the model from the controller.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func waitChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitChange(m.changes))
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.renderTimeline()
	case changedMsg:
		m.refresh()
		cmds = append(cmds, waitChange(m.changes))
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			raw := m.input.Value()
			m.input.SetValue("")
			if strings.HasPrefix(strings.TrimSpace(raw), "/") {
				if quit := m.handleSlash(raw); quit {
					return m, tea.Quit
				}
			} else if !m.ctrl.Submit(raw) && strings.TrimSpace(raw) != "" {
				m.status = "tunggu balasan sebelumnya"
			}
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.timeline, cmd = m.timeline.Update(msg)
			cmds = append(cmds, cmd)
			return m, tea.Batch(cmds...)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// refresh pulls the transcript from the controller.
func (m *Model) refresh() {
	m.messages, m.busy = m.ctrl.Snapshot()
	m.renderTimeline()
}

// handleSlash runs a slash command and reports whether the program should quit.
func (m *Model) handleSlash(raw string) bool {
	cmd, arg := parseCommand(raw)
	switch cmd {
	case "quit", "exit":
		return true
	case "clear":
		m.ctrl.Clear()
		m.status = "percakapan dihapus"
	case "good", "bad":
		sign := domain.FeedbackPositive
		if cmd == "bad" {
			sign = domain.FeedbackNegative
		}
		if err := m.ctrl.ProvideFeedback(sign); err != nil {
			m.status = err.Error()
		}
	case "faq":
		link, err := m.ctrl.OpenFAQ(arg)
		if err != nil {
			m.status = "kategori FAQ: " + strings.Join(faqCategories(), ", ")
			break
		}
		m.status = "FAQ " + link.Name + ": " + link.URL
	case "voice":
		m.ctrl.VoiceResult("", session.ErrVoiceUnsupported)
	case "print":
		path, err := m.printTranscript(time.Now())
		if err != nil {
			m.status = "gagal mencetak: " + err.Error()
			break
		}
		m.status = "transkrip disimpan ke " + path
	case "help":
		m.status = "/clear /faq <kategori> /good /bad /print /voice /quit"
	default:
		m.status = "perintah tidak dikenal: /" + cmd
	}
	return false
}

func (m *Model) printTranscript(now time.Time) (string, error) {
	name := "chat-history-" + now.Format("20060102-150405") + ".txt"
	path := filepath.Join(m.printDir, name)
	if err := os.WriteFile(path, []byte(m.ctrl.Transcript()), 0o600); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	return path, nil
}

// parseCommand splits "/faq akademik" into ("faq", "akademik").
func parseCommand(raw string) (string, string) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "/")
	cmd, arg, _ := strings.Cut(raw, " ")
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}

func faqCategories() []string {
	links := session.FAQLinks()
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.Category)
	}
	return out
}

func (m *Model) resize() {
	w := maxInt(40, m.width-2)
	h := maxInt(5, m.height-6)
	m.timeline.Width = w
	m.timeline.Height = h
	m.input.Width = maxInt(20, w-4)
}

func (m *Model) renderTimeline() {
	var b strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.renderMessage(msg))
	}
	m.timeline.SetContent(lipgloss.NewStyle().Width(m.timeline.Width).Render(b.String()))
	m.timeline.GotoBottom()
}

func (m *Model) renderMessage(msg domain.Message) string {
	ts := m.theme.muted.Render(msg.CreatedAt.Format("15:04"))
	switch msg.Sender {
	case domain.SenderUser:
		return ts + " " + m.theme.user.Render("Anda") + "\n" + msg.Text
	case domain.SenderBot:
		header := ts + " " + m.theme.bot.Render("Bot")
		if msg.Category != "" {
			c := msg.ConfidenceValue()
			header += " " + m.theme.confidenceStyle(c).Render(fmt.Sprintf("%s · %d%%", msg.Category, int(c*100+0.5)))
		}
		return header + "\n" + msg.Text
	default:
		style, ok := m.theme.system[string(msg.Kind)]
		if !ok {
			style = m.theme.system["info"]
		}
		return ts + " " + style.Render(msg.Text)
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	header := m.theme.header.Render("Helpdesk UPA TIK UNJA")
	status := m.theme.status.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + m.theme.status.Render("Bot sedang mengetik...")
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.theme.frame.Render(m.timeline.View()),
		status,
		m.input.View(),
	)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
