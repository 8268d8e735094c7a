package chat

import (
	"log/slog"
	"slices"
	"strings"
	"time"

	"healthchat/pkg/config"

	"github.com/google/uuid"
)

type Option func(*Client)

// WithUserID fixes the user identifier instead of generating one.
func WithUserID(userID string) Option {
	return func(c *Client) {
		if userID = strings.TrimSpace(userID); userID != "" {
			c.userID = userID
		}
	}
}

func WithWelcome(text string) Option {
	return func(c *Client) {
		if text = strings.TrimSpace(text); text != "" {
			c.welcome = text
		}
	}
}

func WithQuickReplies(replies []string) Option {
	return func(c *Client) {
		clean := make([]string, 0, len(replies))
		for _, reply := range replies {
			if reply = strings.TrimSpace(reply); reply != "" {
				clean = append(clean, reply)
			}
		}
		c.quickReplies = slices.Clip(clean)
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.baseLog = log
		}
	}
}

// WithEvents publishes transcript lifecycle events to publisher.
func WithEvents(publisher EventPublisher) Option {
	return func(c *Client) {
		c.events = publisher
	}
}

// WithClock overrides the message timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

func WithDebug(enabled bool) Option {
	return func(c *Client) {
		c.debug = enabled
	}
}

// OptionsFromConfig maps the chat section of cfg onto client options.
func OptionsFromConfig(cfg config.ChatConfig) []Option {
	return []Option{
		WithUserID(NewUserID(cfg.UserIDPrefix)),
		WithWelcome(cfg.WelcomeMessage),
		WithQuickReplies(cfg.QuickReplies),
		WithDebug(cfg.Debug),
	}
}

// NewUserID returns prefix followed by a short random token.
func NewUserID(prefix string) string {
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = "user_"
	}

	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + token[:9]
}
