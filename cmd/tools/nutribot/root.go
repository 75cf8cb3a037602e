package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nutrigraph/nutribot/backend/internal/config"
	"github.com/nutrigraph/nutribot/backend/internal/logger"
	"github.com/nutrigraph/nutribot/backend/internal/model/persona"
	"github.com/nutrigraph/nutribot/backend/internal/service/ai"
	"github.com/nutrigraph/nutribot/backend/internal/service/conversation"
)

type rootOptions struct {
	envFile   string
	personaID string
	timeout   time.Duration
	offline   bool
	logFile   string
}

var opts rootOptions

var rootCmd = &cobra.Command{
	Use:           "nutribot",
	Short:         "Chat with NutriBot from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.StringVarP(&opts.personaID, "persona", "p", persona.DefaultID, "persona to talk to")
	flags.DurationVar(&opts.timeout, "timeout", 0, "remote call bound (defaults to CHAT_TIMEOUT)")
	flags.BoolVar(&opts.offline, "offline", false, "skip the remote model and always use fallback answers")
	flags.StringVar(&opts.logFile, "log-file", "", "write logs to this file")
}

// setup loads configuration and builds a conversation client. logOut is
// where logs go when --log-file is not set.
func setup(ctx context.Context, logOut io.Writer) (*conversation.Client, persona.Persona, func(), error) {
	_ = godotenv.Load(opts.envFile)

	cfg, err := config.Load()
	if err != nil {
		return nil, persona.Persona{}, nil, err
	}

	cleanup := func() {}
	logger.Init(cfg.Log.Level, "json")
	if opts.logFile != "" {
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, persona.Persona{}, nil, fmt.Errorf("open log file: %w", err)
		}
		logger.SetOutput(f)
		cleanup = func() { _ = f.Close() }
	} else {
		logger.SetOutput(logOut)
	}
	log := logger.For("cli")

	p, ok := persona.NewMemoryStore(persona.Seed()).FindByID(opts.personaID)
	if !ok {
		cleanup()
		return nil, persona.Persona{}, nil, fmt.Errorf("unknown persona %q", opts.personaID)
	}

	timeout := cfg.Chat.Timeout
	if opts.timeout > 0 {
		timeout = opts.timeout
	}

	var responder conversation.Responder
	switch {
	case opts.offline:
		log.Info().Msg("offline mode")
	case !cfg.AI.Enabled():
		log.Warn().Str("provider", cfg.AI.Provider).Msg("model credentials missing, using fallback answers")
	default:
		svc, err := ai.NewService(ctx, p, cfg.AI)
		if err != nil {
			log.Warn().Err(err).Msg("remote model unavailable, using fallback answers")
		} else {
			responder = svc
		}
	}

	client := conversation.New(responder, conversation.Options{
		SessionID: "cli-" + time.Now().UTC().Format("20060102T150405"),
		Timeout:   timeout,
		Greeting:  p.OpeningLine,
	})
	return client, p, cleanup, nil
}
