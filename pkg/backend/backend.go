package backend

import (
	"context"
	"fmt"
	"log/slog"

	"healthchat/pkg/backend/httpapi"
	backendopenai "healthchat/pkg/backend/openai"
	"healthchat/pkg/backend/opencode"
	"healthchat/pkg/config"
)

// Client is the assistant backend seen by the chat client. Implementations
// return *types.Error values so failures can be classified with types.KindOf.
type Client interface {
	Probe(ctx context.Context) error
	CreateSession(ctx context.Context, userID string) (string, error)
	Send(ctx context.Context, sessionID string, message string) (string, error)
}

func New(cfg *config.Config) (Client, error) {
	kind := cfg.Backend.Kind
	if kind == "" {
		kind = config.BackendKindHTTP
	}

	slog.Default().With("component", "backend.factory").Debug("Resolving backend client", "kind", kind)

	switch kind {
	case config.BackendKindHTTP:
		return httpapi.New(cfg)
	case config.BackendKindOpenAI:
		return backendopenai.New(cfg)
	case config.BackendKindOpenCode:
		return opencode.New(cfg)
	default:
		return nil, fmt.Errorf("unsupported backend kind: %s", kind)
	}
}
