// Package media fetches broadcast audio with yt-dlp.
package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/valpere/space2thread/internal/executor"
	"github.com/valpere/space2thread/internal/logger"
)

var ErrFileNotFound = errors.New("download completed but file not found")

type Options struct {
	YtDlp     string
	FFmpegDir string
	Dir       string
}

// Downloader extracts the audio track of a Space URL as mp3.
type Downloader struct {
	exec executor.Executor
	opts Options
	log  logger.Logger
	now  func() time.Time
}

func NewDownloader(exec executor.Executor, opts Options, log logger.Logger) *Downloader {
	if opts.YtDlp == "" {
		opts.YtDlp = "yt-dlp"
	}
	if opts.Dir == "" {
		opts.Dir = "downloads"
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Downloader{exec: exec, opts: opts, log: log, now: time.Now}
}

// Download runs yt-dlp into space_<timestamp>.mp3 and returns the absolute
// path of the produced file.
func (d *Downloader) Download(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", errors.New("url is required")
	}
	if err := os.MkdirAll(d.opts.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	stamp := d.now().Format("20060102_150405")
	template := filepath.Join(d.opts.Dir, "space_"+stamp+".%(ext)s")

	args := []string{"-x", "--audio-format", "mp3"}
	if d.opts.FFmpegDir != "" {
		args = append(args, "--ffmpeg-location", d.opts.FFmpegDir)
	}
	args = append(args, "-o", template, url)

	d.log.Info(ctx, "Starting download for: %s", url)
	if _, err := d.exec.Execute(ctx, d.opts.YtDlp, args...); err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(d.opts.Dir, "space_"+stamp+"*.mp3"))
	if err != nil {
		return "", fmt.Errorf("failed to search downloads: %w", err)
	}
	if len(matches) == 0 {
		return "", ErrFileNotFound
	}

	abs, err := filepath.Abs(matches[0])
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	d.log.Info(ctx, "Downloaded to: %s", abs)
	return abs, nil
}
