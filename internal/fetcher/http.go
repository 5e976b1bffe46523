package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/district-census/internal/resilience"
)

// Options configures an HTTPFetcher.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	Retry     resilience.Policy

	// HostRates caps requests per second by host. Hosts not listed are
	// not limited. Nil means DefaultHostRates.
	HostRates map[string]rate.Limit
}

// DefaultHostRates keeps TIGER and Census API traffic polite.
func DefaultHostRates() map[string]rate.Limit {
	return map[string]rate.Limit{
		"www2.census.gov": 2,
		"api.census.gov":  2,
	}
}

// throttle is a per-host limiter that halves its rate when the host answers
// 429 and climbs back by a fifth per success, never above its starting rate
// times two or below a quarter of it.
type throttle struct {
	mu      sync.Mutex
	lim     *rate.Limiter
	ceiling rate.Limit
	floor   rate.Limit
}

func newThrottle(r rate.Limit) *throttle {
	return &throttle{
		lim:     rate.NewLimiter(r, 1),
		ceiling: r * 2,
		floor:   r / 4,
	}
}

func (t *throttle) wait(ctx context.Context) error {
	return t.lim.Wait(ctx)
}

func (t *throttle) slowDown() rate.Limit {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lim.SetLimit(max(t.lim.Limit()/2, t.floor))
	return t.lim.Limit()
}

func (t *throttle) speedUp() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lim.SetLimit(min(t.lim.Limit()*1.2, t.ceiling))
}

func (t *throttle) limit() rate.Limit {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lim.Limit()
}

// HTTPFetcher implements Fetcher over net/http with per-host throttling and
// retry of transient failures.
type HTTPFetcher struct {
	client    *http.Client
	opts      Options
	throttles map[string]*throttle
}

// NewHTTPFetcher creates an HTTPFetcher. Zero options get a 10 minute
// timeout, three attempts starting at one second, and DefaultHostRates.
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Minute
	}
	if opts.Retry.Backoff <= 0 {
		opts.Retry.Backoff = time.Second
	}
	if opts.Retry.MaxDelay <= 0 {
		opts.Retry.MaxDelay = 30 * opts.Retry.Backoff
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "district-census/1.0"
	}
	if opts.HostRates == nil {
		opts.HostRates = DefaultHostRates()
	}

	throttles := make(map[string]*throttle, len(opts.HostRates))
	for host, r := range opts.HostRates {
		throttles[host] = newThrottle(r)
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:      opts,
		throttles: throttles,
	}
}

// get performs a GET and returns a 200 response. 429 and 5xx answers and
// network failures are retried under the fetcher's policy.
func (f *HTTPFetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	a, err := f.newAttempt(rawURL)
	if err != nil {
		return nil, err
	}
	return resilience.Value(ctx, a.policy, a.do)
}

// attempt is one throttled GET of a URL.
type attempt struct {
	f      *HTTPFetcher
	rawURL string
	th     *throttle
	log    *zap.Logger
	policy resilience.Policy
}

func (f *HTTPFetcher) newAttempt(rawURL string) (*attempt, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse %s", rawURL)
	}
	a := &attempt{
		f:      f,
		rawURL: rawURL,
		th:     f.throttles[u.Host],
		log:    zap.L().With(zap.String("component", "fetcher"), zap.String("url", rawURL)),
		policy: f.opts.Retry,
	}
	a.policy.OnRetry = func(n int, err error) {
		a.log.Warn("download failed, retrying", zap.Int("attempt", n), zap.Error(err))
	}
	return a, nil
}

func (a *attempt) do(ctx context.Context) (*http.Response, error) {
	if a.th != nil {
		if err := a.th.wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: throttle wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", a.f.opts.UserAgent)

	resp, err := a.f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "fetcher: request cancelled")
		}
		return nil, resilience.Transient(eris.Wrapf(err, "fetcher: get %s", a.rawURL), 0)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests && a.th != nil {
			a.log.Warn("host is rate limiting, slowing down", zap.Float64("rate", float64(a.th.slowDown())))
		}
		return nil, resilience.StatusError(resp.StatusCode, a.rawURL)
	}

	if a.th != nil {
		a.th.speedUp()
	}
	return resp, nil
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	resp, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: download")
	}
	return resp.Body, nil
}

// DownloadToFile fetches the URL into a temp file next to path and renames
// it into place. A body cut short by the network is fetched again under the
// retry policy.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	a, err := f.newAttempt(rawURL)
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: download")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, eris.Wrapf(err, "fetcher: create %s", dir)
	}

	n, err := resilience.Value(ctx, a.policy, func(ctx context.Context) (int64, error) {
		resp, err := a.do(ctx)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close() //nolint:errcheck
		return writeAtomic(resp.Body, path)
	})
	if err != nil {
		return n, eris.Wrap(err, "fetcher: download")
	}
	return n, nil
}

// writeAtomic copies body into a temp file beside path and renames it over
// path. Read failures are transient; write failures are not.
func writeAtomic(body io.Reader, path string) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.part")
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	src := &readTracker{r: body}
	n, err := io.Copy(tmp, src)
	if err != nil {
		_ = tmp.Close()
		err = eris.Wrapf(err, "fetcher: write %s", path)
		if src.err != nil {
			return n, resilience.Transient(err, 0)
		}
		return n, err
	}
	if err := tmp.Close(); err != nil {
		return n, eris.Wrapf(err, "fetcher: close %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return n, eris.Wrapf(err, "fetcher: rename into %s", path)
	}
	return n, nil
}

// readTracker remembers the first non-EOF read error.
type readTracker struct {
	r   io.Reader
	err error
}

func (t *readTracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}
