package pipeline

import (
	"errors"
	"fmt"

	"github.com/memohai/imgbot/internal/imagehost"
)

// Outcome is the terminal state of one file event.
type Outcome int

const (
	OutcomeUploaded Outcome = iota
	OutcomeRejected
	OutcomeUploadFailed
	OutcomeTooLarge
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUploaded:
		return "uploaded"
	case OutcomeRejected:
		return "rejected"
	case OutcomeUploadFailed:
		return "upload_failed"
	case OutcomeTooLarge:
		return "too_large"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	// ErrUnreadablePayload: the payload could not be fetched, staged or classified.
	ErrUnreadablePayload = errors.New("unreadable payload")
	// ErrFormatRejected: the classified type is not allow-listed.
	ErrFormatRejected = errors.New("format rejected")
	// ErrUploadTransport: the image host failed or could not be reached.
	ErrUploadTransport = errors.New("upload failed")
)

// User-facing replies. Upload failures never expose status codes or response bodies.
const (
	MessageUploadFailed     = "Image Host error! Please try again later."
	MessageProcessingFailed = "Something went wrong while processing your file. Please try again later."
	MessagePhotoProgress    = "Downloading image from Telegram server..."
	MessageDocumentProgress = "Downloading image file from Telegram server..."
)

// SuccessMessage renders the reply for an uploaded image.
func SuccessMessage(img imagehost.Image) string {
	return fmt.Sprintf("Upload succeeded!\nWeb viewer: %s\nOrigin size: %s", img.ViewerURL, img.URL)
}
