// Package commands implements the bot's slash commands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/memohai/imgbot/internal/channel"
	"github.com/memohai/imgbot/internal/config"
	"github.com/memohai/imgbot/internal/logger"
	"github.com/memohai/imgbot/internal/metrics"
	"github.com/memohai/imgbot/internal/router"
	"github.com/memohai/imgbot/internal/storage"
	"github.com/memohai/imgbot/internal/sysinfo"
)

const (
	MessageCacheCleared     = "All upload cache are cleared."
	MessageCacheCleanFailed = "Cache clean finished with errors, %d files removed."
	MessageUnavailable      = "Not available on this host."
)

// CacheStore is the part of the staging store the admin commands inspect.
type CacheStore interface {
	Dir() string
	Snapshot() (storage.Snapshot, error)
	PurgeUploadArtifacts() (int, error)
}

// Service answers commands through a replier.
type Service struct {
	host    config.HostConfig
	store   CacheStore
	sys     sysinfo.Provider
	replier channel.Replier
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func New(log *slog.Logger, host config.HostConfig, store CacheStore, sys sysinfo.Provider, replier channel.Replier, m *metrics.Metrics) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		host:    host,
		store:   store,
		sys:     sys,
		replier: replier,
		metrics: m,
		logger:  log.With(slog.String("service", "commands")),
		now:     time.Now,
	}
}

// Register adds every command to r. Introspection and cache commands are admin only.
func (s *Service) Register(r *router.Router) {
	typing := router.WithTyping(s.logger, s.replier)
	r.Command("start", s.Help, false, typing)
	r.Command("help", s.Help, false, typing)
	r.Command("uptime", s.Uptime, false)
	r.Command("storage_status", s.StorageStatus, true)
	r.Command("cache_status", s.CacheStatus, true)
	r.Command("cache_clean", s.CacheClean, true)
}

// HelpText lists the accepted formats and size limit.
func (s *Service) HelpText() string {
	return fmt.Sprintf("Send me photo or image file.\nAvailable format: %s\nMax file size: %dMB",
		s.host.AllowedFormatsText(), s.host.MaxFileSizeMB)
}

func (s *Service) Help(ctx context.Context, event channel.Event) error {
	return s.replier.SendText(ctx, event.ChatID, s.HelpText())
}

func (s *Service) Uptime(ctx context.Context, event channel.Event) error {
	up, err := s.sys.Uptime()
	if err != nil {
		s.logger.Warn("read uptime failed", slog.Any("error", err))
		return s.replier.SendText(ctx, event.ChatID, MessageUnavailable)
	}
	return s.replier.SendText(ctx, event.ChatID, sysinfo.FormatUptime(up, s.now()))
}

// StorageStatus reports the filesystems holding the cache and the root.
func (s *Service) StorageStatus(ctx context.Context, event channel.Event) error {
	var disks []sysinfo.Disk
	for _, path := range storagePaths(s.store.Dir()) {
		d, err := s.sys.Disk(path)
		if err != nil {
			s.logger.Warn("read disk usage failed", slog.String("path", path), slog.Any("error", err))
			continue
		}
		disks = append(disks, d)
	}
	if len(disks) == 0 {
		return s.replier.SendText(ctx, event.ChatID, MessageUnavailable)
	}
	return s.replier.SendText(ctx, event.ChatID, sysinfo.FormatDisks(disks))
}

func (s *Service) CacheStatus(ctx context.Context, event channel.Event) error {
	snap, err := s.store.Snapshot()
	if err != nil {
		return fmt.Errorf("cache status: %w", err)
	}
	return s.replier.SendText(ctx, event.ChatID, FormatSnapshot(snap))
}

func (s *Service) CacheClean(ctx context.Context, event channel.Event) error {
	log := logger.FromContext(ctx)
	removed, err := s.store.PurgeUploadArtifacts()
	s.metrics.ObserveCacheRemoval("purge", removed)
	if err != nil {
		log.Error("cache clean failed", slog.Int("removed", removed), slog.Any("error", err))
		return s.replier.SendText(ctx, event.ChatID, fmt.Sprintf(MessageCacheCleanFailed, removed))
	}
	log.Info("cache cleaned", slog.Int("removed", removed))
	return s.replier.SendText(ctx, event.ChatID, MessageCacheCleared)
}

// FormatSnapshot renders the cache_status reply.
func FormatSnapshot(snap storage.Snapshot) string {
	return fmt.Sprintf("Current cache status:\nCache files count: %d\nCache files size: %s",
		snap.Files, humanize.IBytes(uint64(snap.Bytes)))
}

func storagePaths(cacheDir string) []string {
	root := string(filepath.Separator)
	if cacheDir == "" {
		return []string{root}
	}
	if abs, err := filepath.Abs(cacheDir); err == nil {
		cacheDir = abs
	}
	if cacheDir == root {
		return []string{root}
	}
	return []string{cacheDir, root}
}
