// Package census fetches block-group demographic counts from the Census
// Data API, one request per county.
package census

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/district-census/internal/model"
	"github.com/sells-group/district-census/internal/resilience"
)

const (
	defaultBaseURL = "https://api.census.gov/data"
	defaultYear    = 2023
	defaultDataset = "acs/acs5"
	defaultPacing  = 500 * time.Millisecond
)

// Option configures the Client.
type Option func(*Client)

// WithAPIKey sets the Census API key. An empty key sends no key parameter.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL overrides the API root (e.g. for tests).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithDataset sets the survey year and dataset path, e.g. 2023 and "acs/acs5".
func WithDataset(year int, dataset string) Option {
	return func(c *Client) {
		c.year = year
		c.dataset = strings.Trim(dataset, "/")
	}
}

// WithPacing sets the minimum delay between successive county requests.
// Zero disables pacing.
func WithPacing(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithRetry sets the per-county retry policy.
func WithRetry(p resilience.Policy) Option {
	return func(c *Client) {
		c.retry = p
	}
}

// Client is a paced, retrying Census Data API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	year       int
	dataset    string
	apiKey     string
	limiter    *rate.Limiter
	retry      resilience.Policy
	log        *zap.Logger
}

// NewClient creates a Client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    defaultBaseURL,
		year:       defaultYear,
		dataset:    defaultDataset,
		limiter:    rate.NewLimiter(rate.Every(defaultPacing), 1),
		retry:      resilience.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retry.Retryable = resilience.Always
	c.log = zap.L().With(zap.String("component", "census"))
	return c
}

// FetchResult is the outcome of a multi-county fetch.
type FetchResult struct {
	Rows []model.AttributeRow
	// Failed lists counties whose retries were exhausted and that
	// contributed no rows.
	Failed []string
}

// FetchCounties fetches every block group in the given counties of one state.
// Counties are requested sequentially with pacing between them. A county
// that keeps failing is logged and skipped so the caller still gets the
// rows of the others. Only context cancellation is returned as an error.
func (c *Client) FetchCounties(ctx context.Context, state string, counties []string) (*FetchResult, error) {
	if len(counties) == 0 {
		return nil, eris.New("census: no counties requested")
	}

	res := &FetchResult{}
	for _, county := range counties {
		if err := c.limiter.Wait(ctx); err != nil {
			return res, eris.Wrap(err, "census: pacing")
		}

		rows, err := c.FetchCounty(ctx, state, county)
		if err != nil {
			if ctx.Err() != nil {
				return res, eris.Wrap(ctx.Err(), "census: fetch cancelled")
			}
			c.log.Warn("county fetch failed, continuing without its data",
				zap.String("state", state),
				zap.String("county", county),
				zap.Error(err),
			)
			res.Failed = append(res.Failed, county)
			continue
		}

		c.log.Debug("county fetched",
			zap.String("state", state),
			zap.String("county", county),
			zap.Int("rows", len(rows)),
		)
		res.Rows = append(res.Rows, rows...)
	}

	return res, nil
}

// FetchCounty fetches one county's block groups with bounded retry.
// A 204 No Content response yields zero rows and no error.
func (c *Client) FetchCounty(ctx context.Context, state, county string) ([]model.AttributeRow, error) {
	cfg := c.retry
	cfg.OnRetry = resilience.LogRetries("census_fetch",
		zap.String("state", state),
		zap.String("county", county),
	)
	return resilience.Value(ctx, cfg, func(ctx context.Context) ([]model.AttributeRow, error) {
		return c.fetchOnce(ctx, state, county)
	})
}

func (c *Client) fetchOnce(ctx context.Context, state, county string) ([]model.AttributeRow, error) {
	reqURL := c.requestURL(state, county)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "census: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "census: request county %s", county)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return nil, nil
	default:
		return nil, resilience.StatusError(resp.StatusCode, c.redact(reqURL))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "census: read response")
	}

	return parseResponse(data)
}

// requestURL builds the block-group query for one county.
func (c *Client) requestURL(state, county string) string {
	params := url.Values{
		"get": {"NAME," + strings.Join(Variables, ",")},
		"for": {"block group:*"},
		"in":  {"state:" + state + " county:" + county},
	}
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	return c.baseURL + "/" + strconv.Itoa(c.year) + "/" + c.dataset + "?" + params.Encode()
}

// redact removes the API key from a URL before it is logged.
func (c *Client) redact(u string) string {
	if c.apiKey == "" {
		return u
	}
	return strings.ReplaceAll(u, url.QueryEscape(c.apiKey), "REDACTED")
}
