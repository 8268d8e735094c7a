package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	backendtypes "healthchat/pkg/backend/types"
	"healthchat/pkg/config"
)

const (
	probePath   = "/list-apps"
	sessionPath = "/chat/sessions"
	sendPath    = "/chat/send"

	maxBodyBytes = 1 << 20
)

// Client talks to the healthcare assistant REST backend.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	requestTimeout time.Duration
}

type createSessionRequest struct {
	UserID string `json:"user_id"`
}

type sendRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func New(cfg *config.Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.Backend.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("backend.base_url is required")
	}

	return &Client{
		baseURL:        baseURL,
		httpClient:     &http.Client{},
		requestTimeout: time.Duration(cfg.Backend.RequestTimeoutSeconds) * time.Second,
	}, nil
}

// NewWithHTTPClient builds a client around a caller-provided http.Client.
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
	}
}

// BaseURL returns the backend address requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Probe checks that the backend answers its app listing with a 2xx status.
func (c *Client) Probe(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := backendLogger().With("operation", "probe")
	startedAt := time.Now()
	log.Debug("backend request started", "path", probePath)

	status, _, err := c.do(ctx, http.MethodGet, probePath, nil)
	if err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return backendtypes.Unreachable(0, err)
	}
	if !isSuccess(status) {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "status", status)
		return backendtypes.Unreachable(status, nil)
	}
	log.Debug("backend request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "status", status)

	return nil
}

// CreateSession asks the backend for a session scoped to userID.
func (c *Client) CreateSession(ctx context.Context, userID string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := backendLogger().With("operation", "create_session")
	startedAt := time.Now()
	log.Debug("backend request started", "path", sessionPath, "user_id", userID)

	status, body, err := c.do(ctx, http.MethodPost, sessionPath, createSessionRequest{UserID: userID})
	if err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return "", backendtypes.NetworkFailure("create session", err)
	}
	if !isSuccess(status) {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "status", status)
		return "", backendtypes.SessionFailed(status, string(body))
	}

	sessionID, err := parseSessionID(body)
	if err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return "", err
	}
	log.Debug("backend request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "session_id", sessionID)

	return sessionID, nil
}

// Send posts one user message to the session and interprets the reply body.
func (c *Client) Send(ctx context.Context, sessionID string, message string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := backendLogger().With("operation", "send")
	startedAt := time.Now()
	log.Debug("backend request started", "path", sendPath, "session_id", sessionID, "message_length", len(message))

	status, body, err := c.do(ctx, http.MethodPost, sendPath, sendRequest{SessionID: sessionID, Message: message})
	if err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return "", backendtypes.NetworkFailure("send", err)
	}
	if !isSuccess(status) {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "status", status)
		return "", backendtypes.SendFailed(status, string(body))
	}

	reply, extractor, err := extractReply(body)
	if err != nil {
		log.Debug("backend request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return "", err
	}
	log.Debug("backend request completed",
		"duration_ms", time.Since(startedAt).Milliseconds(),
		"reply_length", len(reply),
		"extractor", extractor,
	)

	return reply, nil
}

func (c *Client) do(ctx context.Context, method string, path string, payload any) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response body: %w", err)
	}

	return resp.StatusCode, body, nil
}

func parseSessionID(body []byte) (string, error) {
	var session struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(body, &session); err != nil {
		return "", backendtypes.MalformedSession("body is not a JSON object")
	}
	if len(session.ID) == 0 {
		return "", backendtypes.MalformedSession("missing id")
	}

	var id string
	if err := json.Unmarshal(session.ID, &id); err != nil {
		return "", backendtypes.MalformedSession("id is not a string")
	}
	if strings.TrimSpace(id) == "" {
		return "", backendtypes.MalformedSession("empty id")
	}

	return id, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func backendLogger() *slog.Logger {
	return slog.Default().With("component", "backend.http")
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}
