package media

import "errors"

// Origin classifies how an inbound payload reached the bot.
type Origin string

const (
	// OriginPhoto is a platform-compressed photo.
	OriginPhoto Origin = "photo"
	// OriginDocument is a file sent uncompressed as a document.
	OriginDocument Origin = "document"
)

// Extension returns the staging file extension (without dot) for the origin.
func (o Origin) Extension() string {
	switch o {
	case OriginPhoto:
		return "jpg"
	default:
		return "cache"
	}
}

func (o Origin) String() string {
	return string(o)
}

var (
	// ErrUnreadable is returned when a staged file cannot be opened or read for classification.
	ErrUnreadable = errors.New("media: unreadable file")
)
