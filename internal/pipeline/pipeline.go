// Package pipeline relays inbound photos and image documents to the image host.
//
// Each event runs Received → Staged → (Classified) → Accept|Reject → Uploaded → CleanedUp.
// The staged file is removed on every terminal path, success included.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/memohai/imgbot/internal/channel"
	"github.com/memohai/imgbot/internal/config"
	"github.com/memohai/imgbot/internal/imagehost"
	"github.com/memohai/imgbot/internal/media"
	"github.com/memohai/imgbot/internal/metrics"
	"github.com/memohai/imgbot/internal/storage"
)

// Stager is the part of the staging store the pipeline needs.
type Stager interface {
	Stage(ctx context.Context, r io.Reader, origin media.Origin) (storage.StagedFile, error)
	Remove(file storage.StagedFile) error
}

// Uploader relays a staged file to the image host.
type Uploader interface {
	Upload(ctx context.Context, path, mime string) (imagehost.Image, error)
}

// Pipeline handles one file event per call; calls may run concurrently.
type Pipeline struct {
	store      Stager
	classifier media.Classifier
	uploader   Uploader
	fetcher    channel.FileFetcher
	replier    channel.Replier
	host       config.HostConfig
	maxBytes   int64
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// New wires a pipeline. metrics may be nil.
func New(log *slog.Logger, host config.HostConfig, store Stager, classifier media.Classifier, uploader Uploader, fetcher channel.FileFetcher, replier channel.Replier, m *metrics.Metrics) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		store:      store,
		classifier: classifier,
		uploader:   uploader,
		fetcher:    fetcher,
		replier:    replier,
		host:       host,
		maxBytes:   host.MaxFileBytes(),
		metrics:    m,
		logger:     log.With(slog.String("component", "pipeline")),
	}
}

// HandlePhoto relays a platform-compressed photo. Photos are size-checked but
// not matched against the MIME allow-list.
func (p *Pipeline) HandlePhoto(ctx context.Context, event channel.Event) (Outcome, error) {
	return p.run(ctx, event, media.OriginPhoto)
}

// HandleDocument relays a document whose content classifies into the allow-list.
func (p *Pipeline) HandleDocument(ctx context.Context, event channel.Event) (Outcome, error) {
	return p.run(ctx, event, media.OriginDocument)
}

func (p *Pipeline) run(ctx context.Context, event channel.Event, origin media.Origin) (outcome Outcome, err error) {
	// Once staging begins the event runs to a terminal state.
	ctx = context.WithoutCancel(ctx)
	log := p.logger.With(
		slog.Int64("chat_id", event.ChatID),
		slog.String("origin", origin.String()),
		slog.String("file_id", event.FileID),
	)
	started := time.Now()
	defer func() {
		p.metrics.ObserveEvent(origin.String(), outcome.String())
		log.Info("event finished", slog.String("outcome", outcome.String()), slog.Duration("elapsed", time.Since(started)))
	}()

	if p.maxBytes > 0 && event.FileSize > p.maxBytes {
		p.reply(ctx, event.ChatID, p.tooLargeMessage())
		return OutcomeTooLarge, fmt.Errorf("%w: declared %d bytes", storage.ErrTooLarge, event.FileSize)
	}

	staged, err := p.receive(ctx, event, origin)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			p.reply(ctx, event.ChatID, p.tooLargeMessage())
			return OutcomeTooLarge, err
		}
		p.reply(ctx, event.ChatID, MessageProcessingFailed)
		return OutcomeFailed, fmt.Errorf("%w: %w", ErrUnreadablePayload, err)
	}
	defer p.cleanup(log, staged)
	p.metrics.ObserveStaged(staged.Size)
	log.Debug("staged", slog.String("id", staged.ID), slog.Int64("size", staged.Size))

	mime, err := p.classifier.Classify(staged.Path)
	if err != nil {
		p.reply(ctx, event.ChatID, MessageProcessingFailed)
		return OutcomeFailed, fmt.Errorf("%w: %w", ErrUnreadablePayload, err)
	}
	if origin == media.OriginDocument && !media.Allowed(mime, p.host.AllowedFileMimeTypes) {
		log.Info("format rejected", slog.String("mime", mime))
		p.reply(ctx, event.ChatID, p.rejectMessage())
		return OutcomeRejected, fmt.Errorf("%w: %s", ErrFormatRejected, mime)
	}

	ref, hasRef := p.progress(ctx, event.ChatID, origin)

	uploadStarted := time.Now()
	img, err := p.uploader.Upload(ctx, staged.Path, mime)
	p.metrics.ObserveUpload(err == nil, time.Since(uploadStarted))
	if err != nil {
		p.finish(ctx, event.ChatID, ref, hasRef, MessageUploadFailed)
		return OutcomeUploadFailed, fmt.Errorf("%w: %w", ErrUploadTransport, err)
	}
	p.finish(ctx, event.ChatID, ref, hasRef, SuccessMessage(img))
	return OutcomeUploaded, nil
}

func (p *Pipeline) receive(ctx context.Context, event channel.Event, origin media.Origin) (storage.StagedFile, error) {
	if !event.HasFile() {
		return storage.StagedFile{}, errors.New("event has no file reference")
	}
	rc, err := p.fetcher.FetchFile(ctx, event.FileID)
	if err != nil {
		return storage.StagedFile{}, fmt.Errorf("fetch file: %w", err)
	}
	defer rc.Close()
	return p.store.Stage(ctx, rc, origin)
}

func (p *Pipeline) cleanup(log *slog.Logger, staged storage.StagedFile) {
	if err := p.store.Remove(staged); err != nil {
		log.Warn("cleanup staged file failed", slog.String("path", staged.Path), slog.Any("error", err))
	}
}

// progress posts the "downloading" notice when the replier can edit it later.
func (p *Pipeline) progress(ctx context.Context, chatID int64, origin media.Origin) (channel.MessageRef, bool) {
	editor, ok := p.replier.(channel.Editor)
	if !ok {
		return channel.MessageRef{}, false
	}
	text := MessagePhotoProgress
	if origin == media.OriginDocument {
		text = MessageDocumentProgress
	}
	ref, err := editor.SendTextRef(ctx, chatID, text)
	if err != nil {
		p.logger.Warn("send progress failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
		return channel.MessageRef{}, false
	}
	return ref, true
}

func (p *Pipeline) finish(ctx context.Context, chatID int64, ref channel.MessageRef, hasRef bool, text string) {
	if hasRef {
		if editor, ok := p.replier.(channel.Editor); ok {
			err := editor.EditText(ctx, ref, text)
			if err == nil {
				return
			}
			p.logger.Warn("edit progress failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
		}
	}
	p.reply(ctx, chatID, text)
}

func (p *Pipeline) reply(ctx context.Context, chatID int64, text string) {
	if err := p.replier.SendText(ctx, chatID, text); err != nil {
		p.logger.Warn("send reply failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}

func (p *Pipeline) rejectMessage() string {
	return fmt.Sprintf("Please send me %s format image file only!", p.host.AllowedFormatsText())
}

func (p *Pipeline) tooLargeMessage() string {
	return fmt.Sprintf("File is too large! Max file size: %dMB", p.host.MaxFileSizeMB)
}
