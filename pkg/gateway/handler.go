package gateway

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"healthchat/pkg/bus"
	"healthchat/pkg/chat"
)

const (
	commandStart = "/start"
	commandRetry = "/retry"
	commandDebug = "/debug"

	notConnectedText = "Not connected to the healthcare assistant. Send /retry to reconnect."
	busyText         = "Please wait for the previous reply before sending another message."
)

// sessionHandler routes channel messages to the single shared chat client.
type sessionHandler struct {
	client           *chat.Client
	log              *slog.Logger
	bootstrapTimeout time.Duration
}

func newSessionHandler(client *chat.Client, log *slog.Logger) *sessionHandler {
	if log == nil {
		log = slog.Default()
	}

	return &sessionHandler{
		client:           client,
		log:              log.With("component", "gateway.session"),
		bootstrapTimeout: defaultStartupTimeout,
	}
}

// Handle runs a command or a message exchange for one inbound message.
// Failures are reported in OutboundMessage.Error; the returned error is
// reserved for unusable input.
func (h *sessionHandler) Handle(ctx context.Context, inbound bus.InboundMessage) (bus.OutboundMessage, error) {
	outbound := bus.OutboundMessage{Channel: inbound.Channel, ChatID: inbound.ChatID}
	content := strings.TrimSpace(inbound.Content)

	switch command(content) {
	case commandStart:
		if !h.client.Snapshot().Connected() {
			bootCtx, cancel := context.WithTimeout(ctx, h.bootstrapTimeout)
			h.client.Bootstrap(bootCtx)
			cancel()
		}
		return h.greeting(outbound), nil
	case commandRetry:
		if attempt, ok := h.client.Retry(); ok {
			bootCtx, cancel := context.WithTimeout(ctx, h.bootstrapTimeout)
			h.client.FinishBootstrap(attempt.Run(bootCtx))
			cancel()
		}
		return h.greeting(outbound), nil
	case commandDebug:
		if h.client.ToggleDebug() {
			outbound.Content = "Debug ON"
		} else {
			outbound.Content = "Debug OFF"
		}
		return outbound, nil
	}

	snap := h.client.Snapshot()
	if !snap.Connected() {
		outbound.Error = notConnectedText
		return outbound, nil
	}

	msg, ok := h.client.Send(ctx, content)
	if !ok {
		outbound.Error = busyText
		return outbound, nil
	}

	outbound.Metadata = map[string]string{"message_id": strconv.FormatUint(msg.ID, 10)}
	if msg.IsError {
		outbound.Error = msg.Text
		return outbound, nil
	}
	outbound.Content = msg.Text

	return outbound, nil
}

// greeting reports the latest bootstrap outcome, offering quick replies
// while the conversation has not started.
func (h *sessionHandler) greeting(outbound bus.OutboundMessage) bus.OutboundMessage {
	snap := h.client.Snapshot()
	if !snap.Connected() {
		if len(snap.Transcript) > 0 {
			outbound.Error = snap.Transcript[len(snap.Transcript)-1].Text + "\n" + notConnectedText
		} else {
			outbound.Error = notConnectedText
		}
		return outbound
	}

	outbound.Content = h.client.Welcome()
	if snap.ShowQuickReplies() {
		outbound.QuickReplies = snap.QuickReplies
	}

	return outbound
}

// command returns the bot command in content, ignoring any @botname suffix.
func command(content string) string {
	if !strings.HasPrefix(content, "/") {
		return ""
	}

	name, _, _ := strings.Cut(strings.Fields(content)[0], "@")
	return strings.ToLower(name)
}
