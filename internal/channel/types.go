// Package channel defines the transport-neutral boundary between chat adapters and the bot core.
package channel

import (
	"strings"
	"time"
)

// EventKind classifies an inbound event.
type EventKind string

const (
	EventPhoto    EventKind = "photo"
	EventDocument EventKind = "document"
	EventCommand  EventKind = "command"
	EventText     EventKind = "text"
	EventOther    EventKind = "other"
)

// Chat types reported by the transport.
const (
	ChatPrivate    = "private"
	ChatGroup      = "group"
	ChatSupergroup = "supergroup"
	ChatChannel    = "channel"
)

// Event is one inbound message reduced to what the bot needs.
type Event struct {
	Kind       EventKind
	ChatID     int64
	ChatType   string
	UserID     int64
	Username   string
	MessageID  int
	FileID     string
	FileName   string
	MimeHint   string
	FileSize   int64
	Command    string
	Args       string
	Text       string
	ReceivedAt time.Time
}

// IsPrivate reports whether the event came from a one-to-one conversation.
func (e Event) IsPrivate() bool {
	return strings.EqualFold(e.ChatType, ChatPrivate)
}

// HasFile reports whether the event carries a downloadable file reference.
func (e Event) HasFile() bool {
	return strings.TrimSpace(e.FileID) != ""
}
