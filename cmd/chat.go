package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	ui "healthchat/pkg/ui/chat"

	"github.com/spf13/cobra"
)

const defaultChatLogFile = "healthchat.log"

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat",
	Long:  "Connects to the configured backend, opens a session, and starts the full-screen chat UI.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	// The UI owns the terminal, so logs always go to a file.
	rt, err := loadRuntime(defaultChatLogFile)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := rt.chatClient()
	rt.log.Info("Starting chat", "backend", rt.cfg.Backend.Kind, "url", rt.cfg.BackendURL(), "user_id", client.UserID())

	return ui.RunInteractive(ctx, client, ui.Info{
		BackendKind: rt.cfg.Backend.Kind,
		BackendURL:  rt.cfg.BackendURL(),
		Disclaimer:  rt.cfg.Chat.Disclaimer,
	})
}
