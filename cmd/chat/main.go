// Terminal client for the helpdesk assistant.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ashureev/helpdesk-widget/internal/assistant"
	"github.com/ashureev/helpdesk-widget/internal/session"
	"github.com/ashureev/helpdesk-widget/internal/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type options struct {
	baseURL   string
	mock      bool
	timeout   time.Duration
	altScreen bool
	printDir  string
	logFile   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "helpdesk-chat: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := options{}
	// A missing .env is fine; flags and the environment still apply.
	_ = godotenv.Load()

	cmd := &cobra.Command{
		Use:          "helpdesk-chat",
		Short:        "Chat with the helpdesk assistant from a terminal",
		SilenceUsage: true,
		RunE: func(*cobra.Command, []string) error {
			return run(opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.baseURL, "base-url", envOr("ASSISTANT_BASE_URL", "http://localhost:5000"), "assistant backend base URL")
	flags.BoolVar(&opts.mock, "mock", false, "use the built-in mock assistant instead of the backend")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "per-question timeout")
	flags.BoolVar(&opts.altScreen, "alt-screen", true, "use the terminal's alternate screen")
	flags.StringVar(&opts.printDir, "print-dir", ".", "directory /print writes transcripts to")
	flags.StringVar(&opts.logFile, "log-file", "", "write JSON logs to this file (default: discard)")
	return cmd
}

func run(opts options) error {
	logger, closeLog, err := newLogger(opts.logFile)
	if err != nil {
		return err
	}
	defer closeLog()

	var asst assistant.Assistant
	if opts.mock {
		asst = assistant.NewMock(nil, 400*time.Millisecond, logger)
	} else {
		cfg := assistant.DefaultClientConfig()
		cfg.BaseURL = opts.baseURL
		cfg.AskTimeout = opts.timeout
		asst = assistant.NewHTTPClient(cfg, logger)
	}

	ctrl := session.NewController(session.Options{
		Assistant:  asst,
		Logger:     logger,
		VisitorID:  "terminal",
		SessionID:  uuid.NewString(),
		AskTimeout: opts.timeout,
	})
	defer ctrl.Close()

	model := tui.New(ctrl, opts.printDir)
	defer model.Close()
	ctrl.Start()

	var programOpts []tea.ProgramOption
	if opts.altScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}
	if _, err := tea.NewProgram(model, programOpts...).Run(); err != nil {
		return fmt.Errorf("run terminal UI: %w", err)
	}
	return nil
}

// newLogger keeps logs off the terminal the UI draws on.
func newLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewJSONHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() { _ = f.Close() }, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
