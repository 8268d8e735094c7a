package chat

import (
	"context"
	"errors"
	"fmt"

	chatclient "healthchat/pkg/chat"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Info describes the backend and footer shown around the transcript.
type Info struct {
	BackendKind string
	BackendURL  string
	Disclaimer  string
}

// RunInteractive drives client from a full-screen terminal UI until the user quits.
func RunInteractive(ctx context.Context, client *chatclient.Client, info Info) error {
	model := newModel(ctx, client, info)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}

	fmt.Println(renderGoodbyeBanner())
	return nil
}

func renderGoodbyeBanner() string {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("231")).
		Background(lipgloss.Color("28")).
		Padding(1, 2)

	return style.Render("🩺 Take care. Goodbye from your healthcare assistant")
}
