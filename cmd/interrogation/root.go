package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	orchestration "github.com/koscakluka/ema-interrogation/core"
	"github.com/koscakluka/ema-interrogation/core/agent"
	"github.com/koscakluka/ema-interrogation/core/agent/groq"
	"github.com/koscakluka/ema-interrogation/internal/config"
)

type rootFlags struct {
	configPath   string
	agentBackend string
	agentURL     string
	sessionID    string
	audioBackend string
	logLevel     string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "interrogation",
		Short: "Talk to a remote interrogation agent by voice or keyboard",
		Long: `interrogation runs a spoken, turn based conversation with a remote
dialogue agent. Your answers are transcribed with Deepgram and posted to the
agent, and the agent's replies are spoken back before the microphone reopens.

Keys:
  enter     submit the typed answer ("/play N" replays message N)
  ctrl+t    start or stop listening
  ctrl+r    replay the last agent message
  ctrl+c    quit

Environment variables are read from .env when present. DEEPGRAM_API_KEY
enables speech; without it the conversation is text only. GROQ_API_KEY is
used when the agent backend is groq.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config file")
	cmd.Flags().StringVar(&flags.agentBackend, "agent", "", "agent backend: remote or groq (overrides config)")
	cmd.Flags().StringVar(&flags.agentURL, "agent-url", "", "base URL of the agent backend (overrides config)")
	cmd.Flags().StringVar(&flags.sessionID, "session", "", "session identifier sent to the agent (overrides config)")
	cmd.Flags().StringVar(&flags.audioBackend, "audio", "", "audio backend: miniaudio, portaudio or none (overrides config)")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn or error (overrides config)")

	cmd.AddCommand(newVoicesCmd(flags))

	return cmd
}

func loadConfig(flags *rootFlags) (*config.Config, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if flags.agentBackend != "" {
		cfg.Agent.Backend = flags.agentBackend
	}
	if flags.agentURL != "" {
		cfg.Agent.URL = flags.agentURL
	}
	if flags.sessionID != "" {
		cfg.Agent.SessionID = flags.sessionID
	}
	if flags.audioBackend != "" {
		cfg.Audio.Backend = flags.audioBackend
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, shutdownLogging, err := setupLogging(cfg.Log)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownLogging(context.Background()); err != nil {
			fmt.Fprintln(os.Stderr, "failed to flush logs:", err)
		}
	}()

	remote, err := newAgent(cfg)
	if err != nil {
		return err
	}

	speech, closeDevices := newSpeechController(ctx, cfg, logger)
	defer closeDevices()

	feed := newViewFeed()
	opts := []orchestration.CoordinatorOption{
		orchestration.WithSessionID(cfg.Agent.SessionID),
		orchestration.WithChangeCallback(feed.publish),
	}
	if opening := cfg.Conversation; opening.OpeningLine != "" {
		opts = append(opts, orchestration.WithOpeningUtterance(orchestration.Utterance{
			Role:      orchestration.RoleAgent,
			Text:      opening.OpeningLine,
			AgentName: opening.OpeningAgent,
			Emotion:   opening.OpeningEmotion,
		}))
	}
	coordinator := orchestration.NewCoordinator(remote, speech, opts...)

	logger.Info("starting interrogation",
		"agent_backend", cfg.Agent.Backend,
		"agent_url", cfg.Agent.URL,
		"session_id", coordinator.SessionID(),
		"audio_backend", cfg.Audio.Backend,
		"capture", speech.CaptureSupported(),
		"playback", speech.PlaybackSupported(),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- coordinator.Run(ctx) }()

	program := tea.NewProgram(newModel(coordinator, feed), tea.WithAltScreen(), tea.WithContext(ctx))
	_, tuiErr := program.Run()
	cancel()

	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("coordinator stopped", "error", err)
		return err
	}
	if tuiErr != nil && !errors.Is(tuiErr, tea.ErrProgramKilled) {
		return fmt.Errorf("running terminal ui: %w", tuiErr)
	}

	logger.Info("interrogation ended", "session_id", coordinator.SessionID())
	return nil
}

func newAgent(cfg *config.Config) (orchestration.Agent, error) {
	if cfg.Agent.Backend == config.AgentBackendGroq {
		room, err := groq.NewRoom(cfg.Groq.APIKey, groq.WithModel(cfg.Groq.Model), groq.WithURL(cfg.Groq.URL))
		if err != nil {
			return nil, fmt.Errorf("creating interrogation room: %w", err)
		}
		return room, nil
	}
	return agent.NewClient(cfg.Agent.URL), nil
}
