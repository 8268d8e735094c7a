package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"healthchat/pkg/backend/profile"
	backendtypes "healthchat/pkg/backend/types"
	"healthchat/pkg/config"

	osdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/conversations"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

// Client answers healthcare questions through the OpenAI Responses API, using
// one conversation per chat session.
type Client struct {
	client         osdk.Client
	model          string
	instructions   string
	requestTimeout time.Duration
}

func New(cfg *config.Config) (*Client, error) {
	backendCfg := cfg.Backend.OpenAI
	apiKey := resolveAPIKey(backendCfg)
	if apiKey == "" {
		return nil, errors.New("backend.openai.api_key_env is required or OPENAI_API_KEY must be set")
	}

	model, err := normalizeModel(backendCfg.Model)
	if err != nil {
		return nil, err
	}

	instructions, err := profile.ResolveInstructions(config.BackendKindOpenAI, backendCfg.Instructions)
	if err != nil {
		return nil, fmt.Errorf("resolve instructions: %w", err)
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := strings.TrimSpace(backendCfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if organization := strings.TrimSpace(backendCfg.Organization); organization != "" {
		opts = append(opts, option.WithOrganization(organization))
	}
	if project := strings.TrimSpace(backendCfg.Project); project != "" {
		opts = append(opts, option.WithProject(project))
	}

	requestTimeout := time.Duration(cfg.Backend.RequestTimeoutSeconds) * time.Second
	if requestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(requestTimeout))
	}

	return &Client{
		client:         osdk.NewClient(opts...),
		model:          model,
		instructions:   instructions,
		requestTimeout: requestTimeout,
	}, nil
}

func (c *Client) Probe(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := backendLogger().With("operation", "probe")
	startedAt := time.Now()
	log.Debug("backend request started")

	if _, err := c.client.Models.List(ctx); err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		if status, _, ok := apiStatus(err); ok {
			return backendtypes.Unreachable(status, nil)
		}
		return backendtypes.Unreachable(0, err)
	}
	log.Debug("backend request completed", "duration_ms", time.Since(startedAt).Milliseconds())

	return nil
}

func (c *Client) CreateSession(ctx context.Context, userID string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := backendLogger().With("operation", "create_session")
	startedAt := time.Now()
	log.Debug("backend request started", "user_id", userID)

	conversation, err := c.client.Conversations.New(ctx, conversations.ConversationNewParams{})
	if err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		if status, body, ok := apiStatus(err); ok {
			return "", backendtypes.SessionFailed(status, body)
		}
		return "", backendtypes.NetworkFailure("create session", err)
	}
	if conversation == nil || strings.TrimSpace(conversation.ID) == "" {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", "empty conversation id")
		return "", backendtypes.MalformedSession("empty conversation id")
	}
	log.Debug("backend request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "session_id", strings.TrimSpace(conversation.ID))

	return strings.TrimSpace(conversation.ID), nil
}

func (c *Client) Send(ctx context.Context, sessionID string, message string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := backendLogger().With("operation", "send")
	startedAt := time.Now()
	log.Debug("backend request started",
		"session_id", sessionID,
		"model", c.model,
		"message_length", len(message),
	)

	params := responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{OfString: osdk.String(message)},
		Conversation: responses.ResponseNewParamsConversationUnion{
			OfConversationObject: &responses.ResponseConversationParam{ID: sessionID},
		},
	}
	if c.instructions != "" {
		params.Instructions = osdk.String(c.instructions)
	}

	response, err := c.client.Responses.New(ctx, params)
	if err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		if status, body, ok := apiStatus(err); ok {
			return "", backendtypes.SendFailed(status, body)
		}
		return "", backendtypes.NetworkFailure("send", err)
	}

	text := strings.TrimSpace(response.OutputText())
	if text == "" {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", "no output text")
		return "", backendtypes.EmptyReply()
	}
	log.Debug("backend request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "reply_length", len(text))

	return text, nil
}

// apiStatus unpacks an API error returned with an HTTP response.
func apiStatus(err error) (int, string, bool) {
	var apiErr *osdk.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode == 0 {
		return 0, "", false
	}

	return apiErr.StatusCode, apiErr.RawJSON(), true
}

func backendLogger() *slog.Logger {
	return slog.Default().With("component", "backend.openai")
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, c.requestTimeout)
}

func resolveAPIKey(cfg config.OpenAIBackendConfig) string {
	if apiKeyEnv := strings.TrimSpace(cfg.APIKeyEnv); apiKeyEnv != "" {
		if apiKey := strings.TrimSpace(os.Getenv(apiKeyEnv)); apiKey != "" {
			return apiKey
		}
	}

	return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
}

func normalizeModel(model string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return "", errors.New("backend.openai.model is required")
	}

	parts := strings.SplitN(model, "/", 2)
	if len(parts) != 2 {
		return model, nil
	}

	providerID := strings.TrimSpace(parts[0])
	modelID := strings.TrimSpace(parts[1])
	if providerID == "" || modelID == "" {
		return "", errors.New("backend.openai.model is invalid")
	}
	if providerID != "openai" {
		return "", fmt.Errorf("model provider %q is not supported by the openai backend", providerID)
	}

	return modelID, nil
}
