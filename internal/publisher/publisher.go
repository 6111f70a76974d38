// Package publisher uploads composed images to an image host, falling back
// from PNG to JPEG when the host rejects the first upload.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"strings"

	"titletoimagebot/internal/domain"
)

const jpegQuality = 90

// Host uploads the file at path and returns a link to it. Implementations wrap
// domain.ErrRateLimited or domain.ErrUploadRejected; any other error is treated
// as a transport failure.
type Host interface {
	Upload(ctx context.Context, path string, cfg domain.UploadConfig) (string, error)
}

type Outcome int

const (
	Published Outcome = iota
	RateLimited
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Published:
		return "published"
	case RateLimited:
		return "rate_limited"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

type Result struct {
	Outcome Outcome
	URL     string
}

type Publisher struct {
	host   Host
	tmpDir string
	log    *slog.Logger
}

// New returns a Publisher writing temporary files to tmpDir (os.TempDir when empty).
func New(host Host, tmpDir string, log *slog.Logger) *Publisher {
	return &Publisher{
		host:   host,
		tmpDir: tmpDir,
		log:    log,
	}
}

type encoding struct {
	ext    string
	encode func(f *os.File, img image.Image) error
}

var encodings = []encoding{
	{
		ext: "png",
		encode: func(f *os.File, img image.Image) error {
			return png.Encode(f, img)
		},
	},
	{
		ext: "jpg",
		encode: func(f *os.File, img image.Image) error {
			return jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality})
		},
	},
}

// Publish returns an error only for failures that are neither a rate limit nor
// a rejected upload.
func (p *Publisher) Publish(
	ctx context.Context,
	img image.Image,
	cfg domain.UploadConfig,
) (Result, error) {
	var paths []string
	defer func() {
		for _, path := range paths {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				p.log.ErrorContext(ctx, "Failed to remove temporary file",
					"error", err,
					"path", path,
					"name", cfg.Name)
			}
		}
	}()

	for _, enc := range encodings {
		path, err := p.writeTemp(img, cfg.Name, enc)
		if path != "" {
			paths = append(paths, path)
		}
		if err != nil {
			return Result{}, fmt.Errorf("write %s: %w", enc.ext, err)
		}
	}

	for i, path := range paths {
		ext := encodings[i].ext

		link, err := p.host.Upload(ctx, path, cfg)

		switch {
		case err == nil:
			p.log.DebugContext(ctx, "Image is uploaded",
				"name", cfg.Name,
				"format", ext,
				"link", link)

			return Result{Outcome: Published, URL: link}, nil

		case errors.Is(err, domain.ErrRateLimited):
			return Result{Outcome: RateLimited}, nil

		case errors.Is(err, domain.ErrUploadRejected):
			if i < len(paths)-1 {
				p.log.WarnContext(ctx, "Upload failed, trying next format",
					"error", err,
					"name", cfg.Name,
					"format", ext)
			} else {
				p.log.ErrorContext(ctx, "Upload failed, no formats left",
					"error", err,
					"name", cfg.Name,
					"format", ext)
			}

		default:
			return Result{}, fmt.Errorf("upload %s: %w", ext, err)
		}
	}

	return Result{Outcome: Failed}, nil
}

func (p *Publisher) writeTemp(img image.Image, name string, enc encoding) (string, error) {
	f, err := os.CreateTemp(p.tmpDir, tempPattern(name, enc.ext))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	path := f.Name()

	if err = enc.encode(f, img); err != nil {
		_ = f.Close()
		return path, fmt.Errorf("encode: %w", err)
	}

	if err = f.Close(); err != nil {
		return path, fmt.Errorf("close temp file: %w", err)
	}

	return path, nil
}

func tempPattern(name, ext string) string {
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == '*' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, name)
	if name == "" {
		name = "image"
	}

	return name + "-*." + ext
}
