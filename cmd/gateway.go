package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"healthchat/pkg/bus"
	"healthchat/pkg/channel"
	"healthchat/pkg/channel/telegram"
	"healthchat/pkg/chat"
	"healthchat/pkg/config"
	"healthchat/pkg/gateway"

	"github.com/spf13/cobra"
)

const telegramChannelName = "telegram"

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Serve the chat session over channels with status endpoints",
	Long:  "Runs one chat session behind the enabled channels and serves health, readiness, and debug endpoints.",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime("")
		if err != nil {
			return err
		}
		defer rt.Close()
		log := rt.log.With("component", "cmd.gateway")

		adapters, err := enabledAdapters(rt.cfg, rt.log)
		if err != nil {
			return fmt.Errorf("gateway configuration invalid: %w", err)
		}

		parent := cmd.Context()
		if parent == nil {
			parent = context.Background()
		}
		runCtx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
		defer stop()

		events := bus.NewMessageBus()
		defer events.Close()

		client := rt.chatClient(chat.WithEvents(events))
		svc, err := gateway.NewService(rt.cfg, client, events, adapters, rt.log)
		if err != nil {
			return fmt.Errorf("initialize gateway service: %w", err)
		}

		log.Info("Gateway started", "channels", enabledChannelNames(adapters), "backend", rt.cfg.Backend.Kind, "url", rt.cfg.BackendURL())
		if err := svc.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Gateway runtime failed", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
}

// enabledAdapters builds the configured channel adapters. A gateway without
// channels still serves its status endpoints.
func enabledAdapters(cfg *config.Config, log *slog.Logger) ([]channel.Adapter, error) {
	adapters := make([]channel.Adapter, 0, 1)

	if cfg.Channels.Telegram.Enabled {
		adapter, err := telegram.NewAdapter(cfg.Channels.Telegram, log)
		if err != nil {
			return nil, fmt.Errorf("configure %s channel: %w", telegramChannelName, err)
		}
		adapters = append(adapters, adapter)
	}

	return adapters, nil
}

func enabledChannelNames(adapters []channel.Adapter) string {
	if len(adapters) == 0 {
		return "none"
	}

	names := make([]string, 0, len(adapters))
	for _, adapter := range adapters {
		names = append(names, adapter.Name())
	}

	return strings.Join(names, ",")
}
