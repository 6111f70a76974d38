// Package imgur uploads composed images to Imgur.
package imgur

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"titletoimagebot/internal/domain"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL = "https://api.imgur.com"

	clientTimeout = 60 * time.Second
	maxBodyBytes  = 1 << 20
)

var creditHeaders = []string{
	"X-RateLimit-UserRemaining",
	"X-RateLimit-ClientRemaining",
}

type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	BaseURL      string
}

type Client struct {
	http     *http.Client
	baseURL  string
	clientID string
	bearer   bool
	log      *slog.Logger
}

// NewClient uploads as the account owning RefreshToken when one is set and
// anonymously otherwise.
func NewClient(ctx context.Context, cfg Config, log *slog.Logger) *Client {
	baseURL := strings.TrimRight(cmp.Or(cfg.BaseURL, DefaultBaseURL), "/")

	c := &Client{
		http:     &http.Client{Timeout: clientTimeout},
		baseURL:  baseURL,
		clientID: cfg.ClientID,
		log:      log,
	}

	if cfg.RefreshToken != "" {
		conf := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  baseURL + "/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		}

		oauthCtx := context.WithValue(ctx, oauth2.HTTPClient, c.http)
		c.http = oauth2.NewClient(oauthCtx, conf.TokenSource(oauthCtx, &oauth2.Token{
			RefreshToken: cfg.RefreshToken,
		}))
		c.http.Timeout = clientTimeout
		c.bearer = true
	}

	return c
}

// Upload posts the file at path and returns its public link. Rejections wrap
// domain.ErrUploadRejected and exhausted quotas wrap domain.ErrRateLimited.
func (c *Client) Upload(ctx context.Context, path string, cfg domain.UploadConfig) (string, error) {
	body, contentType, err := multipartBody(path, cfg)
	if err != nil {
		return "", fmt.Errorf("build upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/3/image", body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	if !c.bearer {
		req.Header.Set("Authorization", "Client-ID "+c.clientID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			c.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"operation", "Upload")
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || creditsExhausted(resp.Header) {
		return "", fmt.Errorf("upload %s: status %d: %w", filepath.Base(path), resp.StatusCode, domain.ErrRateLimited)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || !gjson.GetBytes(data, "success").Bool() {
		return "", fmt.Errorf("upload %s: status %d: %s: %w",
			filepath.Base(path), resp.StatusCode, errorMessage(data), domain.ErrUploadRejected)
	}

	link := gjson.GetBytes(data, "data.link").String()
	if link == "" {
		return "", fmt.Errorf("upload %s: response has no link: %w", filepath.Base(path), domain.ErrUploadRejected)
	}

	return link, nil
}

func multipartBody(path string, cfg domain.UploadConfig) (*bytes.Buffer, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("image", filepath.Base(path))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err = io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy file: %w", err)
	}

	fields := [][2]string{
		{"type", "file"},
		{"name", cfg.Name},
		{"title", cfg.Title},
		{"description", cfg.Description},
	}
	for _, field := range fields {
		if field[1] == "" {
			continue
		}
		if err = w.WriteField(field[0], field[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", field[0], err)
		}
	}

	if err = w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}

func creditsExhausted(h http.Header) bool {
	for _, name := range creditHeaders {
		v := h.Get(name)
		if v == "" {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil && n <= 0 {
			return true
		}
	}
	return false
}

func errorMessage(data []byte) string {
	if msg := gjson.GetBytes(data, "data.error.message").String(); msg != "" {
		return msg
	}
	if msg := gjson.GetBytes(data, "data.error").String(); msg != "" {
		return msg
	}
	return "no error message"
}
