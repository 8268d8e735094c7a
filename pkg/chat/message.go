package chat

import "time"

// Role identifies who authored a transcript entry.
type Role string

const (
	RoleBot  Role = "bot"
	RoleUser Role = "user"
)

// Message is one immutable transcript entry.
type Message struct {
	ID      uint64    `json:"id"`
	Text    string    `json:"text"`
	Role    Role      `json:"role"`
	IsError bool      `json:"is_error,omitempty"`
	At      time.Time `json:"at"`
}

// ConnectionState is the bootstrap status of the client.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Snapshot is a point-in-time copy of everything a view needs to render.
type Snapshot struct {
	Transcript   []Message       `json:"transcript"`
	Loading      bool            `json:"loading"`
	State        ConnectionState `json:"-"`
	LastError    string          `json:"last_error,omitempty"`
	Debug        bool            `json:"debug"`
	SessionID    string          `json:"session_id,omitempty"`
	UserID       string          `json:"user_id"`
	QuickReplies []string        `json:"quick_replies,omitempty"`
}

// Connected reports whether a session is active.
func (s Snapshot) Connected() bool {
	return s.State == Connected
}

// CanSend reports whether a submit would start an exchange.
func (s Snapshot) CanSend() bool {
	return s.State == Connected && s.SessionID != "" && !s.Loading
}

// ShowQuickReplies reports whether canned questions should be offered. They
// stay visible until the first exchange adds to the welcome message.
func (s Snapshot) ShowQuickReplies() bool {
	return s.State == Connected && len(s.Transcript) <= 1 && len(s.QuickReplies) > 0
}
