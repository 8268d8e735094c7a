package cmd

import (
	"context"
	"testing"

	"healthchat/pkg/channel"
	"healthchat/pkg/config"
	"healthchat/pkg/logger"
)

type testAdapter struct{ name string }

func (a testAdapter) Name() string { return a.name }

func (a testAdapter) Run(_ context.Context, _ channel.Handler) error { return nil }

func TestEnabledAdaptersAllowsNoChannels(t *testing.T) {
	t.Parallel()

	adapters, err := enabledAdapters(&config.Config{}, logger.Discard())
	if err != nil {
		t.Fatalf("enabledAdapters error: %v", err)
	}
	if len(adapters) != 0 {
		t.Fatalf("adapters = %d, want 0", len(adapters))
	}
}

func TestEnabledAdaptersRejectsTelegramWithoutAllowList(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Channels.Telegram = config.TelegramConfig{Enabled: true, Token: "123:abc"}
	if _, err := enabledAdapters(cfg, logger.Discard()); err == nil {
		t.Fatal("expected error when telegram has no allow_from entries")
	}
}

func TestEnabledAdaptersBuildsTelegram(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Channels.Telegram = config.TelegramConfig{Enabled: true, Token: "123:abc", AllowFrom: []string{"42"}}
	adapters, err := enabledAdapters(cfg, logger.Discard())
	if err != nil {
		t.Fatalf("enabledAdapters error: %v", err)
	}
	if len(adapters) != 1 || adapters[0].Name() != telegramChannelName {
		t.Fatalf("adapters = %#v", adapters)
	}
}

func TestEnabledChannelNames(t *testing.T) {
	t.Parallel()

	adapters := []channel.Adapter{testAdapter{name: "telegram"}, testAdapter{name: "slack"}}
	if got := enabledChannelNames(adapters); got != "telegram,slack" {
		t.Fatalf("enabledChannelNames = %q, want %q", got, "telegram,slack")
	}
	if got := enabledChannelNames(nil); got != "none" {
		t.Fatalf("enabledChannelNames(nil) = %q, want %q", got, "none")
	}
}
