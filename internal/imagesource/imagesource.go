// Package imagesource downloads and decodes submission images.
package imagesource

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // Registers the GIF decoder.
	_ "image/jpeg" // Registers the JPEG decoder.
	_ "image/png"  // Registers the PNG decoder.
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"titletoimagebot/internal/domain"

	"github.com/PuerkitoBio/goquery"
	_ "golang.org/x/image/bmp"  // Registers the BMP decoder.
	_ "golang.org/x/image/webp" // Registers the WebP decoder.
)

const (
	clientTimeout = 30 * time.Second
	maxBodyBytes  = 40 << 20
	// maxPixels is checked against the dimensions declared in the image
	// header before any pixel buffer is allocated.
	maxPixels = 25_000_000

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"
)

type Fetcher struct {
	client *http.Client
	log    *slog.Logger
}

func NewFetcher(log *slog.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: clientTimeout},
		log:    log,
	}
}

// Fetch downloads rawURL and decodes it. HTML pages are followed through their
// og:image meta tag once. Bodies that cannot be decoded, including non-200
// responses, wrap domain.ErrUndecodable; other errors are transport failures.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (image.Image, error) {
	body, contentType, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if isHTML(contentType) {
		imageURL, findErr := findOpenGraphImage(body, rawURL)
		if findErr != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrUndecodable, findErr)
		}

		f.log.DebugContext(ctx, "Resolved page to image",
			"pageURL", rawURL,
			"imageURL", imageURL)

		body, _, err = f.get(ctx, imageURL)
		if err != nil {
			return nil, err
		}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: decode config: %w", domain.ErrUndecodable, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, fmt.Errorf("%w: image is too large: %dx%d", domain.ErrUndecodable, cfg.Width, cfg.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %w", domain.ErrUndecodable, err)
	}

	f.log.DebugContext(ctx, "Image is decoded",
		"url", rawURL,
		"format", format,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy())

	return img, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: create request: %w", domain.ErrUndecodable, err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			f.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"url", rawURL,
				"operation", "get")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: unexpected status: %d", domain.ErrUndecodable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}

	return body, resp.Header.Get("Content-Type"), nil
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

func findOpenGraphImage(body []byte, pageURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create document from reader: %w", err)
	}

	content, ok := doc.Find("meta[property='og:image']").Attr("content")
	content = strings.TrimSpace(content)
	if !ok || content == "" {
		return "", fmt.Errorf("og:image is missing (page = %s)", pageURL)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse page URL: %w", err)
	}

	ref, err := url.Parse(content)
	if err != nil {
		return "", fmt.Errorf("parse og:image URL: %w", err)
	}

	return base.ResolveReference(ref).String(), nil
}
