package channel

import (
	"context"

	"healthchat/pkg/bus"
)

// Handler processes one inbound channel message and returns an outbound reply.
type Handler func(context.Context, bus.InboundMessage) (bus.OutboundMessage, error)

// Adapter bridges one external transport (for example Telegram) into the chat client.
type Adapter interface {
	Name() string
	Run(context.Context, Handler) error
}
