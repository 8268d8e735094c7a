package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"healthchat/pkg/chat"

	"github.com/spf13/cobra"
)

var promptText string

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the assistant a single question",
	Long:  "Opens a session, sends one question, prints the reply, and exits with a non-zero status when the exchange fails.",
	RunE: func(cmd *cobra.Command, args []string) error {
		question := resolvePrompt(args)
		if question == "" {
			return errors.New("a question is required: pass it as arguments or with --prompt")
		}

		rt, err := loadRuntime("")
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		return askQuestion(ctx, rt.chatClient(), question, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&promptText, "prompt", "p", "", "question to send")
}

func resolvePrompt(args []string) string {
	if value := strings.TrimSpace(promptText); value != "" {
		return value
	}

	if len(args) == 0 {
		return ""
	}

	return strings.TrimSpace(strings.Join(args, " "))
}

// askQuestion runs one bootstrap and one exchange on client and writes the reply to out.
func askQuestion(ctx context.Context, client *chat.Client, question string, out io.Writer) error {
	client.Bootstrap(ctx)
	if snap := client.Snapshot(); !snap.Connected() {
		return fmt.Errorf("connection error: %s", snap.LastError)
	}

	reply, ok := client.Send(ctx, question)
	if !ok {
		return errors.New("question was not sent")
	}
	if reply.IsError {
		return errors.New(reply.Text)
	}

	printAssistantMessage(out, reply.Text)
	return nil
}

func printAssistantMessage(out io.Writer, message string) {
	lines := assistantLines(message)
	for _, line := range lines {
		fmt.Fprintf(out, "🩺 %s\n", line)
	}
	if len(lines) > 0 {
		fmt.Fprintln(out)
	}
}

func assistantLines(message string) []string {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return nil
	}

	return strings.Split(trimmed, "\n")
}
