package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chat-agent/internal/app"
	"chat-agent/internal/config"
	"chat-agent/internal/console"
	"chat-agent/internal/logging"
	"chat-agent/internal/service"
	"chat-agent/internal/tui"
)

type globalFlags struct {
	configPath string
	docsDir    string
	verbose    bool
	logFile    string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	var useTUI bool
	var sessionKey string

	root := &cobra.Command{
		Use:   "chat-agent",
		Short: "Conversational assistant over local documents and tools",
		Long: `chat-agent answers questions either from the text files in a local
documents directory or with tools: weather forecasts, Wikipedia lookups and
Go code evaluation.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, g, useTUI, sessionKey)
		},
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "path to YAML config (default ./config.yaml or ~/.config/chat-agent/config.yaml)")
	root.PersistentFlags().StringVar(&g.docsDir, "docs", "", "documents directory (overrides docs.dir)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().StringVar(&g.logFile, "log-file", "", "log file path (default in the user cache dir)")
	root.Flags().BoolVar(&useTUI, "tui", false, "full-screen chat interface")
	root.Flags().StringVar(&sessionKey, "session", "", "session key (default: random)")

	root.AddCommand(newAskCmd(g), newIndexCmd(g), newConfigCmd(g))
	return root
}

func newAskCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a single question and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, logger, err := buildApp(g)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			ctx := cmd.Context()
			if _, err := a.Init(ctx); err != nil && !errors.Is(err, service.ErrNoDocuments) {
				logger.Warn("index unavailable", zap.Error(err))
			}
			reply := a.Turn(ctx, uuid.NewString(), args[0])
			if reply.Exit {
				cmd.Println(reply.Text)
				return nil
			}
			cmd.Printf("[%s] %s\n", reply.Path, reply.Text)
			return nil
		},
	}
}

func newIndexCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Build the document index and print corpus statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(g)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			// building needs no language model
			a, err := app.NewWithModel(cfg, offlineModel{}, logger)
			if err != nil {
				return err
			}
			summary, err := a.Init(cmd.Context())
			if err != nil {
				return fmt.Errorf("index %s: %w", cfg.Docs.Dir, err)
			}
			stats := a.Index.Stats()
			cmd.Printf("Indexed %d documents into %d chunks from %s\n", stats.Documents, stats.Chunks, cfg.Docs.Dir)
			if summary != "" {
				cmd.Println("Summary:", summary)
			}
			return nil
		},
	}
}

func newConfigCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "config.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := config.Save(path, config.Default()); err != nil {
				return err
			}
			cmd.Println("Wrote", path)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the configuration file in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if g.configPath != "" {
				cmd.Println(g.configPath)
				return nil
			}
			_, path, err := config.LoadDefault()
			if err != nil {
				return err
			}
			cmd.Println(path)
			return nil
		},
	})
	return cmd
}

func runChat(cmd *cobra.Command, g *globalFlags, useTUI bool, sessionKey string) error {
	a, logger, err := buildApp(g)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if sessionKey == "" {
		sessionKey = uuid.NewString()
	}
	logger.Info("session started", zap.String("session", sessionKey), zap.Bool("tui", useTUI))
	ctx := cmd.Context()

	if !useTUI {
		return console.New(cmd.InOrStdin(), cmd.OutOrStdout(), a, sessionKey, a.Config.Docs.Dir).Run(ctx)
	}
	summary, err := a.Init(ctx)
	if err != nil {
		summary = "No document index: " + err.Error()
	}
	_, err = tea.NewProgram(tui.New(ctx, a, sessionKey, summary), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

func setup(g *globalFlags) (*config.AppConfig, *zap.Logger, error) {
	var cfg *config.AppConfig
	var err error
	if g.configPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(g.configPath)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if g.docsDir != "" {
		cfg.Docs.Dir = g.docsDir
	}
	logger, err := logging.New(g.verbose, g.logFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func buildApp(g *globalFlags) (*app.App, *zap.Logger, error) {
	cfg, logger, err := setup(g)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return a, logger, nil
}

var errOffline = errors.New("language model not configured for this command")

// offlineModel satisfies app.Model for commands that never ask the model.
type offlineModel struct{}

func (offlineModel) Generate(context.Context, string) (string, error) { return "", errOffline }

func (offlineModel) Chat(context.Context, []openai.ChatCompletionMessage, []openai.Tool) (openai.ChatCompletionMessage, error) {
	return openai.ChatCompletionMessage{}, errOffline
}
