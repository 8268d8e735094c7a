package opencode

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	backendtypes "healthchat/pkg/backend/types"
	"healthchat/pkg/config"

	sdk "github.com/sst/opencode-sdk-go"
	"github.com/sst/opencode-sdk-go/option"
)

// Client talks to an OpenCode server, mapping each chat session onto an
// OpenCode session.
type Client struct {
	client         *sdk.Client
	model          string
	agent          string
	requestTimeout time.Duration
}

type healthResponse struct {
	Healthy bool   `json:"healthy"`
	Version string `json:"version"`
}

func New(cfg *config.Config) (*Client, error) {
	backendCfg := cfg.Backend.OpenCode
	baseURL := strings.TrimSpace(backendCfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("backend.opencode.base_url is required")
	}

	opts := []option.RequestOption{option.WithBaseURL(baseURL)}
	if authHeader, ok := buildBasicAuthHeader(backendCfg); ok {
		opts = append(opts, option.WithHeader("Authorization", authHeader))
	}

	return &Client{
		client:         sdk.NewClient(opts...),
		model:          strings.TrimSpace(backendCfg.Model),
		agent:          strings.TrimSpace(backendCfg.Agent),
		requestTimeout: time.Duration(cfg.Backend.RequestTimeoutSeconds) * time.Second,
	}, nil
}

func (c *Client) Probe(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := backendLogger().With("operation", "probe")
	startedAt := time.Now()
	log.Debug("backend request started")

	var response healthResponse
	if err := c.client.Get(ctx, "/global/health", nil, &response); err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		if status, ok := apiStatus(err); ok {
			return backendtypes.Unreachable(status, nil)
		}
		return backendtypes.Unreachable(0, err)
	}
	if !response.Healthy {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", "server unhealthy")
		return backendtypes.Unreachable(0, errors.New("opencode server reported unhealthy status"))
	}
	log.Debug("backend request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "version", response.Version)

	return nil
}

func (c *Client) CreateSession(ctx context.Context, userID string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := backendLogger().With("operation", "create_session")
	startedAt := time.Now()
	log.Debug("backend request started", "user_id", userID)

	params := sdk.SessionNewParams{}
	if title := sessionTitle(userID); title != "" {
		params.Title = sdk.F(title)
	}

	session, err := c.client.Session.New(ctx, params)
	if err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		if status, ok := apiStatus(err); ok {
			return "", backendtypes.SessionFailed(status, http.StatusText(status))
		}
		return "", backendtypes.NetworkFailure("create session", err)
	}
	if session == nil || strings.TrimSpace(session.ID) == "" {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", "empty session id")
		return "", backendtypes.MalformedSession("empty session id")
	}
	log.Debug("backend request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "session_id", session.ID)

	return session.ID, nil
}

func (c *Client) Send(ctx context.Context, sessionID string, message string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := backendLogger().With("operation", "send")
	startedAt := time.Now()
	log.Debug("backend request started",
		"session_id", sessionID,
		"model", c.model,
		"agent", c.agent,
		"message_length", len(message),
	)

	params := sdk.SessionPromptParams{
		Parts: sdk.F([]sdk.SessionPromptParamsPartUnion{
			sdk.TextPartInputParam{
				Type: sdk.F(sdk.TextPartInputTypeText),
				Text: sdk.F(message),
			},
		}),
	}
	if c.agent != "" {
		params.Agent = sdk.F(c.agent)
	}
	if providerID, modelID, ok := parseModelRef(c.model); ok {
		params.Model = sdk.F(sdk.SessionPromptParamsModel{
			ProviderID: sdk.F(providerID),
			ModelID:    sdk.F(modelID),
		})
	}

	response, err := c.client.Session.Prompt(ctx, sessionID, params)
	if err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		if status, ok := apiStatus(err); ok {
			return "", backendtypes.SendFailed(status, http.StatusText(status))
		}
		return "", backendtypes.NetworkFailure("send", err)
	}

	text := extractText(response.Parts)
	if text == "" {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", "no text parts")
		return "", backendtypes.EmptyReply()
	}
	log.Debug("backend request completed",
		"duration_ms", time.Since(startedAt).Milliseconds(),
		"reply_length", len(text),
		"parts_count", len(response.Parts),
	)

	return text, nil
}

func apiStatus(err error) (int, bool) {
	var apiErr *sdk.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode == 0 {
		return 0, false
	}

	return apiErr.StatusCode, true
}

func backendLogger() *slog.Logger {
	return slog.Default().With("component", "backend.opencode")
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, c.requestTimeout)
}

func sessionTitle(userID string) string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ""
	}

	return "healthchat:" + userID
}

func buildBasicAuthHeader(cfg config.OpenCodeBackendConfig) (string, bool) {
	passwordEnv := strings.TrimSpace(cfg.PasswordEnv)
	if passwordEnv == "" {
		return "", false
	}

	password := strings.TrimSpace(os.Getenv(passwordEnv))
	if password == "" {
		return "", false
	}

	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		username = "opencode"
	}

	token := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return "Basic " + token, true
}

func parseModelRef(input string) (providerID string, modelID string, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(input), "/", 2)
	if len(parts) != 2 {
		return "", "", false
	}

	providerID = strings.TrimSpace(parts[0])
	modelID = strings.TrimSpace(parts[1])
	if providerID == "" || modelID == "" {
		return "", "", false
	}

	return providerID, modelID, true
}

func extractText(parts []sdk.Part) string {
	var lines []string
	for _, part := range parts {
		if part.Type != sdk.PartTypeText {
			continue
		}
		if text := strings.TrimSpace(part.Text); text != "" {
			lines = append(lines, text)
		}
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}
