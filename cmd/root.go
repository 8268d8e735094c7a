/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"healthchat/pkg/backend"
	"healthchat/pkg/chat"
	"healthchat/pkg/config"
	"healthchat/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	debugMode  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "healthchat",
	Short: "Chat with a healthcare assistant from the terminal",
	Long: `healthchat connects to a healthcare assistant backend, opens a chat session,
and exchanges messages with it from a terminal UI, a one-shot prompt, or a
Telegram gateway.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		if path := strings.TrimSpace(configPath); path != "" {
			return os.Setenv("HEALTHCHAT_CONFIG", path)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json or config.yaml")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "start with debug tracing enabled")
}

// runtime bundles what every command needs once config is resolved.
type runtime struct {
	cfg      *config.Config
	log      *slog.Logger
	backend  backend.Client
	closeLog func() error
}

func (r *runtime) Close() {
	if r.closeLog != nil {
		_ = r.closeLog()
	}
}

// loadRuntime reads config, installs the process logger, and builds the
// configured backend. defaultLogFile is used when no log file is configured.
func loadRuntime(defaultLogFile string) (*runtime, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if debugMode {
		cfg.Chat.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if strings.TrimSpace(cfg.Logging.File) == "" {
		cfg.Logging.File = defaultLogFile
	}
	appLogger, closeLog, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	slog.SetDefault(appLogger)

	client, err := backend.New(cfg)
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("initialize backend: %w", err)
	}

	return &runtime{cfg: cfg, log: appLogger, backend: client, closeLog: closeLog}, nil
}

func (r *runtime) chatClient(extra ...chat.Option) *chat.Client {
	opts := chat.OptionsFromConfig(r.cfg.Chat)
	opts = append(opts, chat.WithLogger(r.log))
	opts = append(opts, extra...)
	return chat.New(r.backend, opts...)
}
