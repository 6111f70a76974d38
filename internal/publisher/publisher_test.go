package publisher

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"titletoimagebot/internal/domain"
)

type fakeHost struct {
	errs    []error
	uploads []string
}

func (h *fakeHost) Upload(_ context.Context, path string, _ domain.UploadConfig) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("stat upload: %w", err)
	}

	i := len(h.uploads)
	h.uploads = append(h.uploads, filepath.Ext(path))

	if i < len(h.errs) && h.errs[i] != nil {
		return "", h.errs[i]
	}

	return "https://i.imgur.com/abc" + filepath.Ext(path), nil
}

func newTestPublisher(t *testing.T, host Host) (*Publisher, string) {
	t.Helper()

	dir := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(host, dir, log), dir
}

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 20, 10))
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected temporary files to be removed, found %d", len(entries))
	}
}

func TestPublish(t *testing.T) {
	tests := []struct {
		name        string
		errs        []error
		wantOutcome Outcome
		wantURL     string
		wantUploads []string
	}{
		{
			name:        "PNG first",
			wantOutcome: Published,
			wantURL:     "https://i.imgur.com/abc.png",
			wantUploads: []string{".png"},
		},
		{
			name:        "falls back to JPEG",
			errs:        []error{fmt.Errorf("%w: status 400", domain.ErrUploadRejected)},
			wantOutcome: Published,
			wantURL:     "https://i.imgur.com/abc.jpg",
			wantUploads: []string{".png", ".jpg"},
		},
		{
			name:        "all formats rejected",
			errs:        []error{domain.ErrUploadRejected, domain.ErrUploadRejected},
			wantOutcome: Failed,
			wantUploads: []string{".png", ".jpg"},
		},
		{
			name:        "rate limit skips JPEG",
			errs:        []error{fmt.Errorf("%w: status 429", domain.ErrRateLimited)},
			wantOutcome: RateLimited,
			wantUploads: []string{".png"},
		},
		{
			name:        "rate limit on JPEG",
			errs:        []error{domain.ErrUploadRejected, domain.ErrRateLimited},
			wantOutcome: RateLimited,
			wantUploads: []string{".png", ".jpg"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			host := &fakeHost{errs: test.errs}
			p, dir := newTestPublisher(t, host)

			result, err := p.Publish(context.Background(), testImage(), domain.UploadConfig{Name: "abc123"})
			if err != nil {
				t.Fatalf("Publish() failed: %v", err)
			}

			if result.Outcome != test.wantOutcome {
				t.Errorf("Expected outcome %s, got %s", test.wantOutcome, result.Outcome)
			}
			if result.URL != test.wantURL {
				t.Errorf("Expected URL %q, got %q", test.wantURL, result.URL)
			}
			if !slices.Equal(host.uploads, test.wantUploads) {
				t.Errorf("Expected uploads %v, got %v", test.wantUploads, host.uploads)
			}

			assertNoTempFiles(t, dir)
		})
	}
}

func TestPublishTransportErrorIsReturned(t *testing.T) {
	transportErr := errors.New("connection reset")
	host := &fakeHost{errs: []error{transportErr}}
	p, dir := newTestPublisher(t, host)

	if _, err := p.Publish(context.Background(), testImage(), domain.UploadConfig{Name: "abc123"}); !errors.Is(err, transportErr) {
		t.Fatalf("Expected transport error, got %v", err)
	}

	assertNoTempFiles(t, dir)
}

func TestTempPattern(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		want string
	}{
		{"abc123", "png", "abc123-*.png"},
		{"a/b*c", "jpg", "a_b_c-*.jpg"},
		{"", "png", "image-*.png"},
	}

	for _, test := range tests {
		if got := tempPattern(test.name, test.ext); got != test.want {
			t.Errorf("tempPattern(%q, %q) = %q, want %q", test.name, test.ext, got, test.want)
		}
	}
}
