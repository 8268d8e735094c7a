package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"healthchat/pkg/bus"
	"healthchat/pkg/channel"
	"healthchat/pkg/config"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const channelName = "telegram"
const messagePreviewLimit = 240
const typingRefreshInterval = 4 * time.Second

// Adapter bridges Telegram updates into the shared chat session.
type Adapter struct {
	cfg       config.TelegramConfig
	allowFrom map[string]struct{}
	log       *slog.Logger
}

// NewAdapter validates Telegram configuration and constructs an adapter instance.
//
// The gateway serves a single chat session, so an allow list is mandatory.
func NewAdapter(cfg config.TelegramConfig, log *slog.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("channels.telegram.token is required")
	}

	allowFrom := allowFromSet(cfg.AllowFrom)
	if len(allowFrom) == 0 {
		return nil, errors.New("channels.telegram.allow_from must list at least one sender id")
	}

	if log == nil {
		log = slog.Default()
	}

	return &Adapter{
		cfg:       cfg,
		allowFrom: allowFrom,
		log:       log.With("component", "channel.telegram"),
	}, nil
}

// Name returns the channel identifier used in bus metadata and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run starts Telegram long polling and forwards messages through the shared channel handler.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	bot, err := telego.NewBot(strings.TrimSpace(a.cfg.Token))
	if err != nil {
		return fmt.Errorf("initialize telegram bot: %w", err)
	}

	updates, err := bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	a.log.Info("Telegram channel started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil
				}
				return errors.New("telegram updates channel closed")
			}

			inbound, ok := a.inboundFromUpdate(update)
			if !ok {
				continue
			}
			chatID := update.Message.Chat.ID
			a.log.Info("Received message", "chat_id", inbound.ChatID, "sender_id", inbound.SenderID, "content", previewText(inbound.Content))

			stopTyping := a.startTypingIndicator(ctx, bot, chatID)

			outbound, err := handler(ctx, inbound)
			stopTyping()
			if err != nil {
				a.log.Error("Failed to process inbound message", "error", err)
				if strings.TrimSpace(outbound.Content) == "" && strings.TrimSpace(outbound.Error) == "" {
					outbound.Error = err.Error()
				}
			}

			params, ok := replyParams(chatID, outbound)
			if !ok {
				continue
			}
			a.log.Info("Sending message", "chat_id", inbound.ChatID, "content", previewText(params.Text), "quick_replies", len(outbound.QuickReplies))

			if _, err := bot.SendMessage(ctx, params); err != nil {
				a.log.Error("Failed to send telegram message", "error", err)
			}
		}
	}
}

// inboundFromUpdate converts a text update from an allowed sender.
func (a *Adapter) inboundFromUpdate(update telego.Update) (bus.InboundMessage, bool) {
	message := update.Message
	if message == nil {
		return bus.InboundMessage{}, false
	}

	content := strings.TrimSpace(message.Text)
	if content == "" {
		return bus.InboundMessage{}, false
	}
	if message.From == nil {
		a.log.Debug("Ignoring message without sender")
		return bus.InboundMessage{}, false
	}

	senderID := strconv.FormatInt(message.From.ID, 10)
	if !a.senderAllowed(senderID) {
		a.log.Debug("Ignoring message from unauthorized sender", "sender_id", senderID)
		return bus.InboundMessage{}, false
	}

	return bus.InboundMessage{
		Channel:  channelName,
		SenderID: senderID,
		ChatID:   strconv.FormatInt(message.Chat.ID, 10),
		Content:  content,
		Metadata: map[string]string{
			"update_id": strconv.Itoa(update.UpdateID),
		},
	}, true
}

// replyParams builds the Telegram message for an outbound reply. Quick
// replies become a one-time reply keyboard; other replies clear it.
func replyParams(chatID int64, outbound bus.OutboundMessage) (*telego.SendMessageParams, bool) {
	text := strings.TrimSpace(outbound.Content)
	if text == "" {
		text = strings.TrimSpace(outbound.Error)
	}
	if text == "" {
		return nil, false
	}

	params := tu.Message(tu.ID(chatID), text)
	if len(outbound.QuickReplies) == 0 {
		return params.WithReplyMarkup(tu.ReplyKeyboardRemove()), true
	}

	rows := make([][]telego.KeyboardButton, 0, len(outbound.QuickReplies))
	for _, reply := range outbound.QuickReplies {
		rows = append(rows, tu.KeyboardRow(tu.KeyboardButton(reply)))
	}

	return params.WithReplyMarkup(tu.Keyboard(rows...).WithResizeKeyboard().WithOneTimeKeyboard()), true
}

// senderAllowed checks whether a sender is permitted by allow_from config.
func (a *Adapter) senderAllowed(senderID string) bool {
	_, ok := a.allowFrom[strings.TrimSpace(senderID)]
	return ok
}

// allowFromSet normalizes allow_from values into a lookup set.
func allowFromSet(allowFrom []string) map[string]struct{} {
	if len(allowFrom) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(allowFrom))
	for _, value := range allowFrom {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		allowed[trimmed] = struct{}{}
	}

	if len(allowed) == 0 {
		return nil
	}

	return allowed
}

// previewText returns a bounded log-safe preview of message text.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	runes := []rune(trimmed)
	if len(runes) <= messagePreviewLimit {
		return trimmed
	}

	return string(runes[:messagePreviewLimit]) + "..."
}

// startTypingIndicator sends an initial typing action and refreshes it periodically
// until the returned cancel function is called.
func (a *Adapter) startTypingIndicator(ctx context.Context, bot *telego.Bot, chatID int64) context.CancelFunc {
	typingCtx, cancel := context.WithCancel(ctx)

	sendTyping := func() {
		if err := bot.SendChatAction(typingCtx, tu.ChatAction(tu.ID(chatID), telego.ChatActionTyping)); err != nil && typingCtx.Err() == nil {
			a.log.Debug("Failed to send typing indicator", "chat_id", chatID, "error", err)
		}
	}

	sendTyping()

	go func() {
		ticker := time.NewTicker(typingRefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-typingCtx.Done():
				return
			case <-ticker.C:
				sendTyping()
			}
		}
	}()

	return cancel
}
