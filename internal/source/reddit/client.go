// Package reddit implements source.ContentSource over Reddit's OAuth JSON API
// using application-only credentials.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/jonesrussell/ddharvester/internal/logger"
	"github.com/jonesrussell/ddharvester/internal/retry"
	"github.com/jonesrussell/ddharvester/internal/source"
)

const (
	// DefaultBaseURL is the base URL for authenticated API calls.
	DefaultBaseURL = "https://oauth.reddit.com"
	// DefaultTokenURL is the OAuth token endpoint.
	DefaultTokenURL = "https://www.reddit.com/api/v1/access_token"
	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second
	// DefaultRequestsPerMinute stays under the API's per-client quota.
	DefaultRequestsPerMinute = 60
	// DefaultUserAgent identifies the client when none is configured.
	DefaultUserAgent = "ddharvester/1.0"

	pageSize     = 100
	maxErrorBody = 512
)

var errMissingCredentials = errors.New("reddit: client id and secret are required")

// Config holds the client settings.
type Config struct {
	ClientID          string        `mapstructure:"client_id"           yaml:"client_id"`
	ClientSecret      string        `mapstructure:"client_secret"       yaml:"client_secret"`
	UserAgent         string        `mapstructure:"user_agent"          yaml:"user_agent"`
	Subreddit         string        `mapstructure:"subreddit"           yaml:"subreddit"`
	BaseURL           string        `mapstructure:"base_url"            yaml:"base_url"`
	TokenURL          string        `mapstructure:"token_url"           yaml:"token_url"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	Timeout           time.Duration `mapstructure:"timeout"             yaml:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"         yaml:"max_retries"`
}

// WithDefaults returns a copy of the config with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.TokenURL == "" {
		c.TokenURL = DefaultTokenURL
	}
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = retry.DefaultMaxAttempts
	}
	return c
}

// Client is a Reddit API client scoped to one subreddit.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      retry.Config
	log        logger.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithLimiter replaces the request rate limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithRetry replaces the retry policy for API requests.
func WithRetry(cfg retry.Config) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

var _ source.ContentSource = (*Client)(nil)

// New creates a client that authenticates with client credentials. Tokens
// are fetched lazily and refreshed when they expire.
func New(cfg Config, log logger.Logger, opts ...Option) (*Client, error) {
	cfg = cfg.WithDefaults()
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errMissingCredentials
	}

	base := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &userAgentTransport{userAgent: cfg.UserAgent, base: http.DefaultTransport},
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	httpClient := cc.Client(tokenCtx)
	httpClient.Timeout = cfg.Timeout

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = cfg.MaxRetries

	c := &Client{
		cfg:        cfg,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
		retry:      retryCfg,
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Search yields submissions in the subreddit matching params, paging with the
// listing cursor until the results or the limit run out.
func (c *Client) Search(ctx context.Context, params source.SearchParams) iter.Seq2[source.Submission, error] {
	return func(yield func(source.Submission, error) bool) {
		after := ""
		seen := 0
		for {
			size := pageSize
			if params.Limit > 0 && params.Limit-seen < size {
				size = params.Limit - seen
			}

			q := url.Values{}
			q.Set("q", params.Query)
			q.Set("restrict_sr", "1")
			q.Set("limit", strconv.Itoa(size))
			if params.Sort != "" {
				q.Set("sort", params.Sort)
			}
			if params.Syntax != "" {
				q.Set("syntax", params.Syntax)
			}
			if after != "" {
				q.Set("after", after)
			}

			var page listing
			if err := c.get(ctx, "/r/"+c.cfg.Subreddit+"/search", q, &page); err != nil {
				yield(source.Submission{}, fmt.Errorf("search %q: %w", params.Query, err))
				return
			}

			subs, err := page.submissions()
			if err != nil {
				yield(source.Submission{}, fmt.Errorf("search %q: %w", params.Query, err))
				return
			}

			for _, sub := range subs {
				if !yield(sub, nil) {
					return
				}
				seen++
				if params.Limit > 0 && seen >= params.Limit {
					return
				}
			}

			after = page.Data.After
			if after == "" || len(page.Data.Children) == 0 {
				return
			}
		}
	}
}

// SubmissionByID fetches one submission by id.
func (c *Client) SubmissionByID(ctx context.Context, id string) (source.Submission, error) {
	q := url.Values{}
	q.Set("limit", "1")
	q.Set("depth", "1")

	var pages []listing
	if err := c.get(ctx, "/comments/"+id, q, &pages); err != nil {
		return source.Submission{}, fmt.Errorf("fetch submission %s: %w", id, err)
	}
	return firstSubmission(pages, id)
}

// SubmissionByURL fetches the submission a link points at.
func (c *Client) SubmissionByURL(ctx context.Context, link string) (source.Submission, error) {
	q := url.Values{}
	q.Set("url", link)

	var page listing
	if err := c.get(ctx, "/api/info", q, &page); err != nil {
		return source.Submission{}, fmt.Errorf("fetch submission by url: %w", err)
	}
	return firstSubmission([]listing{page}, link)
}

// TopComments returns up to limit loaded top-level comments of sub, each
// carrying the replies the API returned with it.
func (c *Client) TopComments(ctx context.Context, sub source.Submission, sort string, limit int) ([]source.Comment, error) {
	q := url.Values{}
	q.Set("depth", "2")
	if sort != "" {
		q.Set("sort", sort)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var pages []listing
	if err := c.get(ctx, "/comments/"+sub.ID, q, &pages); err != nil {
		return nil, fmt.Errorf("fetch comments %s: %w", sub.ID, err)
	}
	if len(pages) < 2 {
		return nil, fmt.Errorf("fetch comments %s: unexpected response shape", sub.ID)
	}

	comments, err := pages[1].comments()
	if err != nil {
		return nil, fmt.Errorf("fetch comments %s: %w", sub.ID, err)
	}
	if limit > 0 && len(comments) > limit {
		comments = comments[:limit]
	}
	return comments, nil
}

// Replies returns up to limit replies already loaded with the comment. No
// further requests are made.
func (c *Client) Replies(_ context.Context, comment source.Comment, limit int) ([]source.Comment, error) {
	replies := comment.Replies
	if limit >= 0 && len(replies) > limit {
		replies = replies[:limit]
	}
	return replies, nil
}

func firstSubmission(pages []listing, ref string) (source.Submission, error) {
	if len(pages) == 0 {
		return source.Submission{}, fmt.Errorf("%s: %w", ref, source.ErrNotFound)
	}
	subs, err := pages[0].submissions()
	if err != nil {
		return source.Submission{}, err
	}
	if len(subs) == 0 {
		return source.Submission{}, fmt.Errorf("%s: %w", ref, source.ErrNotFound)
	}
	return subs[0], nil
}

// get performs a rate-limited, retried GET and decodes the JSON body into result.
func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	params.Set("raw_json", "1")
	reqURL := strings.TrimRight(c.cfg.BaseURL, "/") + path + "?" + params.Encode()

	return retry.Do(ctx, c.retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		c.log.Debug("Reddit API request", logger.String("path", path))

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return &APIError{
				StatusCode: resp.StatusCode,
				Endpoint:   path,
				Message:    strings.TrimSpace(string(body)),
				Wait:       parseRetryAfter(resp.Header.Get("Retry-After")),
			}
		}

		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

type userAgentTransport struct {
	userAgent string
	base      http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(clone)
}
