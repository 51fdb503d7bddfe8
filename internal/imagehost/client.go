// Package imagehost uploads staged images to a Chevereto-compatible image host.
package imagehost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/memohai/imgbot/internal/config"
)

const (
	uploadPath  = "/api/1/upload/"
	sourceField = "source"
	// maxErrorBody bounds how much of a failed response is kept for logging.
	maxErrorBody = 64 * 1024
)

// Image holds the links returned for a successful upload.
type Image struct {
	ViewerURL string
	URL       string
}

// StatusError is returned when the host answers with anything but 200.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("image host returned status %d", e.StatusCode)
}

type uploadResponse struct {
	Image struct {
		URL       string `json:"url"`
		URLViewer string `json:"url_viewer"`
	} `json:"image"`
}

// Client talks to the upload endpoint. One request per call, never retried.
type Client struct {
	http      *http.Client
	baseURL   string
	apiKey    string
	format    string
	userAgent string
	logger    *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithBaseURL overrides the https://{host} prefix, e.g. for plain-http hosts.
func WithBaseURL(base string) Option {
	return func(cl *Client) {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			cl.baseURL = base
		}
	}
}

// NewClient builds a client for cfg. apiKey is passed separately so env overrides apply.
func NewClient(log *slog.Logger, cfg config.HostConfig, apiKey string, opts ...Option) *Client {
	if log == nil {
		log = slog.Default()
	}
	format := strings.TrimSpace(cfg.ImageHostReturnFormat)
	if format == "" {
		format = config.DefaultReturnFormat
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}
	c := &Client{
		http:      http.DefaultClient,
		baseURL:   "https://" + strings.TrimSpace(cfg.ImageHost),
		apiKey:    apiKey,
		format:    format,
		userAgent: userAgent,
		logger:    log.With(slog.String("service", "imagehost")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the full upload URL including the response format parameter.
func (c *Client) Endpoint() string {
	return c.baseURL + uploadPath + "?format=" + url.QueryEscape(c.format)
}

// Upload posts the file at path as the multipart field "source" with the given MIME type.
func (c *Client) Upload(ctx context.Context, path, mime string) (Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return Image{}, fmt.Errorf("open upload source: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	written := make(chan struct{})
	go func() {
		defer close(written)
		pw.CloseWithError(writeSourcePart(mw, filepath.Base(path), mime, f))
	}()
	// Closing the read side unblocks the writer when the host answers before
	// consuming the whole body.
	defer func() {
		_ = pr.Close()
		<-written
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), pr)
	if err != nil {
		return Image{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return Image{}, fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()
	c.logger.Info("upload response", slog.String("file", filepath.Base(path)), slog.String("mime", mime), slog.Int("status", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Error("upload failed", slog.Int("status", resp.StatusCode), slog.String("body", string(raw)))
		return Image{}, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Image{}, fmt.Errorf("decode upload response: %w", err)
	}
	if strings.TrimSpace(out.Image.URL) == "" || strings.TrimSpace(out.Image.URLViewer) == "" {
		return Image{}, errors.New("upload response is missing image urls")
	}
	return Image{ViewerURL: out.Image.URLViewer, URL: out.Image.URL}, nil
}

func writeSourcePart(mw *multipart.Writer, name, mime string, r io.Reader) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, sourceField, name))
	if mime == "" {
		mime = "application/octet-stream"
	}
	header.Set("Content-Type", mime)
	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return err
	}
	return mw.Close()
}
