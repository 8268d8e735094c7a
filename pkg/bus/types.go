package bus

// InboundMessage is one piece of user text received from a channel.
type InboundMessage struct {
	Channel  string            `json:"channel"`
	SenderID string            `json:"sender_id"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage is the reply a channel delivers back to the user.
type OutboundMessage struct {
	Channel      string            `json:"channel"`
	ChatID       string            `json:"chat_id"`
	Content      string            `json:"content"`
	Error        string            `json:"error,omitempty"`
	QuickReplies []string          `json:"quick_replies,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}
