// Package reddit is a small client for the parts of the Reddit API the bot uses.
package reddit

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"titletoimagebot/internal/domain"
	"titletoimagebot/internal/ratelimiter"

	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL  = "https://oauth.reddit.com"
	DefaultTokenURL = "https://www.reddit.com/api/v1/access_token"

	clientTimeout = 30 * time.Second
	maxBodyBytes  = 8 << 20
)

type Config struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	UserAgent    string
	BaseURL      string
	TokenURL     string
}

type Client struct {
	http     *http.Client
	baseURL  string
	username string
	limiter  *ratelimiter.RateLimiter
	log      *slog.Logger
}

// APIError is an error listed in the json.errors field of a Reddit response.
type APIError struct {
	Code    string
	Message string
	Field   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("reddit API error %s: %s (field = %s)", e.Code, e.Message, e.Field)
}

func (e *APIError) Unwrap() error {
	return domain.ErrPlatform
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	StatusCode int
	Path       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d (path = %s)", e.StatusCode, e.Path)
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)

	return t.base.RoundTrip(req)
}

// passwordTokenSource runs the password grant for every new token; Reddit
// does not issue refresh tokens for script apps.
type passwordTokenSource struct {
	ctx      context.Context
	conf     *oauth2.Config
	username string
	password string
}

func (s *passwordTokenSource) Token() (*oauth2.Token, error) {
	return s.conf.PasswordCredentialsToken(s.ctx, s.username, s.password)
}

func NewClient(
	ctx context.Context,
	cfg Config,
	limiter *ratelimiter.RateLimiter,
	log *slog.Logger,
) *Client {
	baseURL := strings.TrimRight(cmp.Or(cfg.BaseURL, DefaultBaseURL), "/")
	tokenURL := cmp.Or(cfg.TokenURL, DefaultTokenURL)

	base := &http.Client{
		Timeout: clientTimeout,
		Transport: &userAgentTransport{
			base:      http.DefaultTransport,
			userAgent: cfg.UserAgent,
		},
	}
	oauthCtx := context.WithValue(ctx, oauth2.HTTPClient, base)

	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	src := oauth2.ReuseTokenSource(nil, &passwordTokenSource{
		ctx:      oauthCtx,
		conf:     conf,
		username: cfg.Username,
		password: cfg.Password,
	})

	httpClient := oauth2.NewClient(oauthCtx, src)
	httpClient.Timeout = clientTimeout

	return &Client{
		http:     httpClient,
		baseURL:  baseURL,
		username: cfg.Username,
		limiter:  limiter,
		log:      log,
	}
}

func (c *Client) Username() string {
	return c.username
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.do(ctx, ratelimiter.Read, http.MethodGet, path, query, nil)
}

func (c *Client) post(ctx context.Context, path string, form url.Values) ([]byte, error) {
	return c.do(ctx, ratelimiter.Write, http.MethodPost, path, nil, form)
}

func (c *Client) do(
	ctx context.Context,
	kind ratelimiter.Kind,
	method string,
	path string,
	query url.Values,
	form url.Values,
) ([]byte, error) {
	if err := c.limiter.Wait(ctx, kind); err != nil {
		return nil, fmt.Errorf("wait for rate limiter: %w", err)
	}

	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if query != nil {
		req.URL.RawQuery = query.Encode()
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			c.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"path", path,
				"operation", "do")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Path: path}
	}

	return body, nil
}
