// Package clip renders short highlight videos: ffmpeg cuts the audio range and
// a Remotion project composites it with a waveform, title and captions.
package clip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/valpere/space2thread/internal/executor"
	"github.com/valpere/space2thread/internal/logger"
)

var (
	ErrInvalidRange = errors.New("end time must be greater than start time")
	ErrNotFound     = errors.New("clip not found")
)

// Layout names accepted in Request.Layout.
const (
	LayoutCenteredWaveform = "centered_waveform"
	LayoutSplitScreen      = "split_screen"
	LayoutPodcastCard      = "podcast_card"
)

var compositions = map[string]string{
	LayoutCenteredWaveform: "CenteredWaveform",
	LayoutSplitScreen:      "SplitScreen",
	LayoutPodcastCard:      "PodcastCard",
}

// Composition returns the Remotion composition id for a layout. Unknown
// layouts fall back to CenteredWaveform.
func Composition(layout string) string {
	if c, ok := compositions[layout]; ok {
		return c
	}
	return compositions[LayoutCenteredWaveform]
}

// DefaultColors is the palette used when a request carries none.
func DefaultColors() map[string]string {
	return map[string]string{
		"background": "#0a0a0a",
		"waveform":   "#a855f7",
		"text":       "#ffffff",
		"accent":     "#3b82f6",
	}
}

type Request struct {
	AudioPath    string            `json:"audio_path"`
	StartTime    float64           `json:"start_time"`
	EndTime      float64           `json:"end_time"`
	Layout       string            `json:"layout"`
	Title        string            `json:"title"`
	CaptionText  string            `json:"caption_text"`
	LogoPath     string            `json:"logo_path,omitempty"`
	LogoPosition string            `json:"logo_position"`
	Colors       map[string]string `json:"colors,omitempty"`
}

type Options struct {
	FFmpeg      string
	Npx         string
	RemotionDir string
	ClipsDir    string
	LogosDir    string
}

type Renderer struct {
	exec  executor.Executor
	opts  Options
	log   logger.Logger
	newID func() string
}

func NewRenderer(exec executor.Executor, opts Options, log logger.Logger) *Renderer {
	if opts.FFmpeg == "" {
		opts.FFmpeg = "ffmpeg"
	}
	if opts.Npx == "" {
		opts.Npx = "npx"
	}
	if opts.RemotionDir == "" {
		opts.RemotionDir = "remotion"
	}
	if opts.ClipsDir == "" {
		opts.ClipsDir = filepath.Join("downloads", "clips")
	}
	if opts.LogosDir == "" {
		opts.LogosDir = filepath.Join("downloads", "logos")
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Renderer{exec: exec, opts: opts, log: log, newID: shortID}
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}

// SliceAudio cuts [start, end) out of input into a new mp3 in the clips
// directory.
func (r *Renderer) SliceAudio(ctx context.Context, input string, start, end float64) (string, error) {
	if end <= start {
		return "", ErrInvalidRange
	}
	if err := os.MkdirAll(r.opts.ClipsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create clips directory: %w", err)
	}

	output := filepath.Join(r.opts.ClipsDir, "slice_"+r.newID()+".mp3")
	args := []string{
		"-y",
		"-i", input,
		"-ss", formatSeconds(start),
		"-t", formatSeconds(end - start),
		"-acodec", "libmp3lame",
		"-q:a", "2",
		output,
	}

	r.log.Info(ctx, "Slicing audio: %ss - %ss", formatSeconds(start), formatSeconds(end))
	if _, err := r.exec.Execute(ctx, r.opts.FFmpeg, args...); err != nil {
		return "", fmt.Errorf("ffmpeg slice failed: %w", err)
	}
	return output, nil
}

type renderProps struct {
	AudioSrc          string            `json:"audioSrc"`
	Title             string            `json:"title"`
	CaptionText       string            `json:"captionText"`
	LogoSrc           *string           `json:"logoSrc"`
	LogoPosition      string            `json:"logoPosition"`
	Colors            map[string]string `json:"colors"`
	DurationInSeconds float64           `json:"durationInSeconds"`
}

func fileURL(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

// Render slices the audio, writes the input props and runs the Remotion CLI.
// The slice and the props file are removed whether or not rendering succeeds.
func (r *Renderer) Render(ctx context.Context, req Request) (string, error) {
	if req.EndTime <= req.StartTime {
		return "", ErrInvalidRange
	}
	colors := req.Colors
	if colors == nil {
		colors = DefaultColors()
	}
	position := req.LogoPosition
	if position == "" {
		position = "top-right"
	}
	composition := Composition(req.Layout)

	slice, err := r.SliceAudio(ctx, req.AudioPath, req.StartTime, req.EndTime)
	if err != nil {
		return "", err
	}
	defer os.Remove(slice)

	audioSrc, err := fileURL(slice)
	if err != nil {
		return "", fmt.Errorf("failed to resolve slice path: %w", err)
	}

	props := renderProps{
		AudioSrc:          audioSrc,
		Title:             req.Title,
		CaptionText:       req.CaptionText,
		LogoPosition:      position,
		Colors:            colors,
		DurationInSeconds: req.EndTime - req.StartTime,
	}
	if req.LogoPath != "" {
		if _, err := os.Stat(req.LogoPath); err == nil {
			logoSrc, err := fileURL(req.LogoPath)
			if err == nil {
				props.LogoSrc = &logoSrc
			}
		}
	}

	propsData, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("failed to encode props: %w", err)
	}
	propsFile, err := filepath.Abs(filepath.Join(r.opts.ClipsDir, "props_"+r.newID()+".json"))
	if err != nil {
		return "", fmt.Errorf("failed to resolve props path: %w", err)
	}
	if err := os.WriteFile(propsFile, propsData, 0o644); err != nil {
		return "", fmt.Errorf("failed to write props: %w", err)
	}
	defer os.Remove(propsFile)

	output, err := filepath.Abs(filepath.Join(r.opts.ClipsDir, "clip_"+r.newID()+".mp4"))
	if err != nil {
		return "", fmt.Errorf("failed to resolve output path: %w", err)
	}

	r.log.Info(ctx, "Rendering clip: %s (%.1fs)", composition, props.DurationInSeconds)
	r.log.Info(ctx, "Output: %s", output)
	_, err = r.exec.ExecuteInDir(ctx, r.opts.RemotionDir, r.opts.Npx,
		"remotion", "render", "src/index.ts", composition, output, "--props", propsFile)
	if err != nil {
		return "", fmt.Errorf("remotion render failed: %w", err)
	}

	r.log.Info(ctx, "Clip rendered successfully: %s", output)
	return output, nil
}

// SaveLogo stores an uploaded image as logo_<id><ext> and returns its path
// and file name. The extension defaults to .png.
func (r *Renderer) SaveLogo(originalName string, src io.Reader) (string, string, error) {
	if err := os.MkdirAll(r.opts.LogosDir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create logos directory: %w", err)
	}
	ext := filepath.Ext(originalName)
	if ext == "" {
		ext = ".png"
	}
	name := "logo_" + r.newID() + ext
	path := filepath.Join(r.opts.LogosDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to create logo file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(path)
		return "", "", fmt.Errorf("failed to write logo: %w", err)
	}
	return path, name, nil
}

// ClipPath resolves a rendered clip by file name. Names with path components
// are rejected.
func (r *Renderer) ClipPath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrNotFound
	}
	path := filepath.Join(r.opts.ClipsDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", ErrNotFound
	}
	return path, nil
}
