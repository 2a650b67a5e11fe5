package onenote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	graphAPIBase = "https://graph.microsoft.com/v1.0"

	DefaultMaxRetries     = 3
	DefaultBaseDelay      = time.Second
	MaxRetriesLimit       = 20
	MaxRetryDelay         = 10 * time.Minute
	defaultRequestTimeout = 2 * time.Minute

	acceptJSON = "application/json"
	acceptHTML = "text/html"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Client struct {
	httpClient     *http.Client
	baseURL        string
	maxRetries     int
	baseDelay      time.Duration
	requestTimeout time.Duration
	mediaMaxBytes  int64
	mediaTimeout   time.Duration
	mediaMu        sync.Mutex
	mediaNames     map[string]string
	sleep          SleepFunc
	now            func() time.Time
	logger         *zap.Logger
}

type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = min(n, MaxRetriesLimit)
		}
	}
}

func WithBaseDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		if d >= 0 {
			c.baseDelay = d
		}
	}
}

// WithRequestTimeout bounds a single attempt, body read included.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.requestTimeout = d
	}
}

func WithSleep(sleep SleepFunc) ClientOption {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient wraps an HTTP client that already carries the bearer token,
// usually Session.HTTPClient().
func NewClient(httpClient *http.Client, opts ...ClientOption) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	c := &Client{
		httpClient:     httpClient,
		baseURL:        graphAPIBase,
		maxRetries:     DefaultMaxRetries,
		baseDelay:      DefaultBaseDelay,
		requestTimeout: defaultRequestTimeout,
		mediaMaxBytes:  DefaultMediaMaxBytes,
		mediaTimeout:   DefaultMediaTimeout,
		mediaNames:     make(map[string]string),
		sleep:          sleepContext,
		now:            time.Now,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) Notebooks(ctx context.Context) ([]Notebook, error) {
	notebooks, err := ListAll[Notebook](ctx, c, c.baseURL+"/me/onenote/notebooks")
	if err != nil {
		return nil, fmt.Errorf("get notebooks: %w", err)
	}

	return notebooks, nil
}

func (c *Client) Sections(ctx context.Context, notebookID string) ([]Section, error) {
	endpoint := fmt.Sprintf("%s/me/onenote/notebooks/%s/sections", c.baseURL, url.PathEscape(notebookID))

	sections, err := ListAll[Section](ctx, c, endpoint)
	if err != nil {
		return nil, fmt.Errorf("get sections (notebook_id: %s): %w", notebookID, err)
	}

	return sections, nil
}

func (c *Client) Pages(ctx context.Context, sectionID string) ([]Page, error) {
	endpoint := fmt.Sprintf("%s/me/onenote/sections/%s/pages", c.baseURL, url.PathEscape(sectionID))

	pages, err := ListAll[Page](ctx, c, endpoint)
	if err != nil {
		return nil, fmt.Errorf("get pages (section_id: %s): %w", sectionID, err)
	}

	return pages, nil
}

// PageContent returns the HTML representation of a page.
func (c *Client) PageContent(ctx context.Context, pageID string) (string, error) {
	endpoint := fmt.Sprintf("%s/me/onenote/pages/%s/content", c.baseURL, url.PathEscape(pageID))

	body, err := c.Call(ctx, endpoint, acceptHTML)
	if err != nil {
		return "", fmt.Errorf("get page content (page_id: %s): %w", pageID, err)
	}

	return string(body), nil
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.getJSON(ctx, c.baseURL+"/me", &user); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &user, nil
}

// ListAll follows @odata.nextLink until the listing is exhausted and returns
// every record in response order.
func ListAll[T any](ctx context.Context, c *Client, endpoint string) ([]T, error) {
	var items []T

	next := endpoint
	for next != "" {
		var page listResponse[T]
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, err
		}
		items = append(items, page.Value...)

		if page.NextLink == next {
			c.logger.Warn("next link points at the current page, stopping", zap.String("url", next))
			break
		}
		next = page.NextLink
		if next != "" {
			c.logger.Info("fetching next page", zap.String("url", next), zap.Int("collected", len(items)))
		}
	}

	return items, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, result any) error {
	body, err := c.Call(ctx, endpoint, acceptJSON)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return &APICallError{URL: endpoint, Err: fmt.Errorf("decode response: %w", err)}
	}

	return nil
}

// Call issues a GET with the retry policy: 429 waits for Retry-After (or the
// exponential delay when absent), 5xx and transport failures wait
// base_delay*2^attempt, any other non-2xx status fails at once. Every attempt,
// rate-limited ones included, counts against maxRetries+1.
func (c *Client) Call(ctx context.Context, endpoint, accept string) ([]byte, error) {
	attempts := c.maxRetries + 1

	var (
		lastStatus int
		lastBody   string
		lastErr    error
	)

retry:
	for attempt := 0; attempt < attempts; attempt++ {
		final := attempt == attempts-1

		status, header, body, err := c.do(ctx, endpoint, accept)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &APICallError{URL: endpoint, Attempts: attempt + 1, Err: ctx.Err()}
			}

			lastStatus, lastBody, lastErr = 0, "", err
			if final {
				c.logger.Error("request failed, giving up",
					zap.String("url", endpoint), zap.Int("attempts", attempt+1), zap.Error(err))
				break retry
			}

			delay := c.backoff(attempt)
			c.logger.Warn("request failed, retrying",
				zap.String("url", endpoint), zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
			if err := c.sleep(ctx, delay); err != nil {
				return nil, &APICallError{URL: endpoint, Attempts: attempt + 1, Err: err}
			}
			continue
		}

		switch {
		case status == http.StatusTooManyRequests:
			lastStatus, lastBody, lastErr = status, string(body), nil
			if final {
				break retry
			}

			delay := c.retryAfter(header.Get("Retry-After"), attempt)
			c.logger.Warn("rate limited, waiting",
				zap.String("url", endpoint), zap.Int("attempt", attempt), zap.Duration("delay", delay))
			if err := c.sleep(ctx, delay); err != nil {
				return nil, &APICallError{URL: endpoint, StatusCode: status, Attempts: attempt + 1, Err: err}
			}
			continue

		case status >= http.StatusInternalServerError:
			lastStatus, lastBody, lastErr = status, string(body), nil
			if final {
				break retry
			}

			delay := c.backoff(attempt)
			c.logger.Warn("server error, retrying",
				zap.String("url", endpoint), zap.Int("status", status), zap.Duration("delay", delay))
			if err := c.sleep(ctx, delay); err != nil {
				return nil, &APICallError{URL: endpoint, StatusCode: status, Attempts: attempt + 1, Err: err}
			}
			continue

		case status < 200 || status > 299:
			return nil, &APICallError{URL: endpoint, StatusCode: status, Body: string(body), Attempts: attempt + 1}
		}

		return body, nil
	}

	return nil, &APICallError{URL: endpoint, StatusCode: lastStatus, Body: lastBody, Attempts: attempts, Err: lastErr}
}

func (c *Client) do(ctx context.Context, endpoint, accept string) (int, http.Header, []byte, error) {
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("read response body (status: %d): %w", resp.StatusCode, err)
	}

	return resp.StatusCode, resp.Header, body, nil
}

// backoff is base_delay*2^attempt, capped at MaxRetryDelay.
func (c *Client) backoff(attempt int) time.Duration {
	if c.baseDelay <= 0 {
		return 0
	}

	d := c.baseDelay
	for i := 0; i < attempt; i++ {
		if d >= MaxRetryDelay/2 {
			return MaxRetryDelay
		}
		d *= 2
	}

	return min(d, MaxRetryDelay)
}

// retryAfter honours both forms of the header: delta-seconds and HTTP-date.
func (c *Client) retryAfter(value string, attempt int) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return c.backoff(attempt)
	}

	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil && seconds >= 0 {
		if seconds >= int64(MaxRetryDelay/time.Second) {
			return MaxRetryDelay
		}
		return time.Duration(seconds) * time.Second
	}

	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(c.now()); d > 0 {
			return min(d, MaxRetryDelay)
		}
		return 0
	}

	return c.backoff(attempt)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
