// Package storage implements the directory-backed staging cache used while relaying uploads.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/memohai/imgbot/internal/media"
)

var (
	// ErrTooLarge is returned by Stage when the payload exceeds the store limit.
	ErrTooLarge = errors.New("staged payload exceeds size limit")
	// ErrEmptyPayload is returned by Stage when the payload has no bytes.
	ErrEmptyPayload = errors.New("staged payload is empty")
)

// StagedFile is one payload written to the store, owned by the caller until removed.
type StagedFile struct {
	ID     string
	Path   string
	Origin media.Origin
	Size   int64
}

// Snapshot is a point-in-time aggregate over the store.
type Snapshot struct {
	Files int
	Bytes int64
}

// Store is a flat directory of staged payloads named <uuid>.jpg or <uuid>.cache.
type Store struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger
}

// NewStore creates a store rooted at dir. maxBytes <= 0 disables the size limit.
func NewStore(log *slog.Logger, dir string, maxBytes int64) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		dir:      dir,
		maxBytes: maxBytes,
		logger:   log.With(slog.String("service", "storage")),
	}
}

// Dir returns the store root.
func (s *Store) Dir() string {
	return s.dir
}

// EnsureReady creates the store directory if it does not exist.
func (s *Store) EnsureReady() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	return nil
}

// Stage writes r under a fresh unique name. The file is complete and closed on return.
func (s *Store) Stage(ctx context.Context, r io.Reader, origin media.Origin) (StagedFile, error) {
	if r == nil {
		return StagedFile{}, errors.New("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return StagedFile{}, err
	}
	id := uuid.NewString()
	path := filepath.Join(s.dir, id+"."+origin.Extension())

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return StagedFile{}, fmt.Errorf("create staged file: %w", err)
	}
	staged := StagedFile{ID: id, Path: path, Origin: origin}
	keepFile := false
	defer func() {
		if !keepFile {
			_ = os.Remove(path)
		}
	}()

	src := r
	if s.maxBytes > 0 {
		src = &io.LimitedReader{R: r, N: s.maxBytes + 1}
	}
	written, err := io.Copy(f, src)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return StagedFile{}, fmt.Errorf("write staged file: %w", err)
	}
	if s.maxBytes > 0 && written > s.maxBytes {
		return StagedFile{}, fmt.Errorf("%w: max %d bytes", ErrTooLarge, s.maxBytes)
	}
	if written == 0 {
		return StagedFile{}, ErrEmptyPayload
	}
	keepFile = true
	staged.Size = written
	s.logger.Debug("staged", slog.String("id", id), slog.String("origin", origin.String()), slog.Int64("size", written))
	return staged, nil
}

// Remove deletes the staged file. A file that is already gone is not an error.
func (s *Store) Remove(file StagedFile) error {
	if strings.TrimSpace(file.Path) == "" {
		return nil
	}
	if err := os.Remove(file.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove staged file %q: %w", file.Path, err)
	}
	return nil
}

// Snapshot walks the store, summing the size of every regular file and
// counting the regular files at the top level.
func (s *Store) Snapshot() (Snapshot, error) {
	var snap Snapshot
	root := filepath.Clean(s.dir)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		snap.Bytes += info.Size()
		if filepath.Dir(path) == root {
			snap.Files++
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("scan cache dir: %w", err)
	}
	return snap, nil
}

// PurgeUploadArtifacts removes every top-level .jpg and .cache entry and
// leaves everything else untouched. It returns the number of files removed.
func (s *Store) PurgeUploadArtifacts() (int, error) {
	return s.removeArtifacts(func(fs.FileInfo) bool { return true })
}

// Sweep removes upload artifacts last modified more than maxAge ago.
func (s *Store) Sweep(maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-maxAge)
	return s.removeArtifacts(func(info fs.FileInfo) bool {
		return info.ModTime().Before(cutoff)
	})
}

func (s *Store) removeArtifacts(match func(fs.FileInfo) bool) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("list cache dir: %w", err)
	}
	var result *multierror.Error
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !IsUploadArtifact(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				result = multierror.Append(result, err)
			}
			continue
		}
		if !match(info) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				result = multierror.Append(result, err)
			}
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("removed cache files", slog.Int("count", removed))
	}
	return removed, result.ErrorOrNil()
}

// IsUploadArtifact reports whether name carries one of the extensions Stage creates.
func IsUploadArtifact(name string) bool {
	return strings.HasSuffix(name, "."+media.OriginPhoto.Extension()) ||
		strings.HasSuffix(name, "."+media.OriginDocument.Extension())
}
