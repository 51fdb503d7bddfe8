package router

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/imgbot/internal/channel"
	"github.com/memohai/imgbot/internal/config"
	"github.com/memohai/imgbot/internal/imagehost"
	"github.com/memohai/imgbot/internal/media"
	"github.com/memohai/imgbot/internal/metrics"
	"github.com/memohai/imgbot/internal/pipeline"
	"github.com/memohai/imgbot/internal/storage"
)

var (
	onePixelPNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	plainText   = []byte("just some notes, not an image\n")
)

type staticFetcher map[string][]byte

func (f staticFetcher) FetchFile(_ context.Context, fileID string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f[fileID])), nil
}

type recordingUploader struct {
	mu    sync.Mutex
	mimes []string
}

func (u *recordingUploader) Upload(_ context.Context, _ string, mime string) (imagehost.Image, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.mimes = append(u.mimes, mime)
	return imagehost.Image{ViewerURL: "https://img.example.com/v", URL: "https://img.example.com/i.png"}, nil
}

func newContentRouter(t *testing.T, fetcher staticFetcher) (*Router, *recordingUploader, *recordingReplier) {
	t.Helper()
	store := storage.NewStore(nil, filepath.Join(t.TempDir(), "cache"), 1<<20)
	require.NoError(t, store.EnsureReady())
	host := config.HostConfig{
		AllowedFileFormats:   []string{"jpg", "png"},
		AllowedFileMimeTypes: []string{"image/jpeg", "image/png"},
		MaxFileSizeMB:        1,
	}
	uploader := &recordingUploader{}
	replier := &recordingReplier{}
	p := pipeline.New(nil, host, store, media.NewClassifier(), uploader, fetcher, replier, metrics.New())
	return New(nil, p, replier, Options{}), uploader, replier
}

func TestDocumentAcceptedByContentNotDeclaredType(t *testing.T) {
	t.Parallel()

	for _, hint := range []string{"text/plain", ""} {
		r, uploader, replier := newContentRouter(t, staticFetcher{"png": onePixelPNG})
		err := r.Handle(context.Background(), channel.Event{
			Kind:     channel.EventDocument,
			ChatID:   1,
			ChatType: channel.ChatPrivate,
			FileID:   "png",
			FileName: "pic.txt",
			MimeHint: hint,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"image/png"}, uploader.mimes, "hint %q", hint)
		require.Len(t, replier.texts, 1)
		assert.Contains(t, replier.texts[0], "https://img.example.com/v")
		assert.NotEqual(t, MessageUnknown, replier.texts[0])
	}
}

func TestDocumentRejectedByContentDespiteImageType(t *testing.T) {
	t.Parallel()

	r, uploader, replier := newContentRouter(t, staticFetcher{"txt": plainText})
	err := r.Handle(context.Background(), channel.Event{
		Kind:     channel.EventDocument,
		ChatID:   1,
		ChatType: channel.ChatPrivate,
		FileID:   "txt",
		FileName: "pic.png",
		MimeHint: "image/png",
	})
	require.NoError(t, err)
	assert.Empty(t, uploader.mimes)
	assert.Equal(t, []string{"Please send me jpg, png format image file only!"}, replier.texts)
}
