package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/deepgram/chatroom/internal/config"
	"github.com/deepgram/chatroom/internal/infrastructure/chatroom"
	"github.com/deepgram/chatroom/internal/metrics"
	"github.com/deepgram/chatroom/internal/tui"
	"github.com/deepgram/chatroom/internal/widget"
	"github.com/deepgram/chatroom/pkg/logger"
)

type chatFlags struct {
	configPath  string
	host        string
	userID      string
	title       string
	logFile     string
	metricsAddr string
	noMarkdown  bool
	startClosed bool
}

func newChatCmd() *cobra.Command {
	var f chatFlags

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open a terminal chat against a bot server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWidgetConfig(f.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Host = f.host
			}
			if cmd.Flags().Changed("user-id") {
				cfg.UserID = f.userID
			}
			if cmd.Flags().Changed("title") {
				cfg.Title = f.title
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runChat(cmd.Context(), cfg, f)
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "YAML widget config file")
	cmd.Flags().StringVar(&f.host, "host", config.DefaultHost, "Bot server base URL")
	cmd.Flags().StringVar(&f.userID, "user-id", "", "Conversation id (a new one per run when empty)")
	cmd.Flags().StringVar(&f.title, "title", config.DefaultTitle, "Title shown in the header")
	cmd.Flags().StringVar(&f.logFile, "log-file", "chatroom.log", "Where to write logs while the terminal is in use")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Serve client metrics on this address")
	cmd.Flags().BoolVar(&f.noMarkdown, "no-markdown", false, "Render text messages verbatim")
	cmd.Flags().BoolVar(&f.startClosed, "closed", false, "Start with the chat closed")
	return cmd
}

func runChat(ctx context.Context, cfg config.WidgetConfig, f chatFlags) error {
	logFile, err := os.OpenFile(f.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()
	logger.Setup(logFile, false)

	userID := cfg.UserID
	if userID == "" {
		userID = uuid.NewString()
	}

	transport := chatroom.NewService(cfg.Host, nil)
	if err := checkHealth(ctx, transport); err != nil {
		logger.Warn(logger.APP, "Bot server at %s is not healthy yet: %v", cfg.Host, err)
	}

	m := metrics.New()
	if f.metricsAddr != "" {
		srv := &http.Server{Addr: f.metricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error(logger.APP, "Metrics server stopped: %v", err)
			}
		}()
		defer srv.Close()
	}

	opts := widget.OptionsFromConfig(cfg)
	opts.Metrics = m

	ctrl := widget.NewController(userID, transport, opts)
	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	defer ctrl.Close()

	if !f.startClosed {
		if err := ctrl.SetOpen(true); err != nil {
			return err
		}
	}

	logger.Info(logger.APP, "Chatting as %s with %s", userID, cfg.Host)

	model := tui.New(ctrl, tui.Options{
		Title:    cfg.Title,
		Markdown: !f.noMarkdown,
		Tracker: func(ctx context.Context) ([]byte, error) {
			return transport.Tracker(ctx, userID)
		},
	})

	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

func checkHealth(ctx context.Context, transport *chatroom.Service) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return transport.Health(ctx)
}
