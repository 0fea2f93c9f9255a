// Package casc fetches game files from a remote CASC mirror, keeping every
// downloaded file in a local content cache.
package casc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/eak1mov/go-minimaps/cache"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://wow.tools/casc/file/"

	defaultFileName = "output"
)

var (
	ErrNotFound  = errors.New("minimaps: content not found")
	ErrTransport = errors.New("minimaps: content transport error")
)

// Client fetches files of a single build. It is safe for concurrent use.
//
// Every call consults the cache first. On a miss it issues exactly one
// request and stores a successful response before returning. Concurrent
// misses for the same file share one request. Errors are not cached and
// requests are never retried.
type Client struct {
	build      string
	baseURL    *url.URL
	store      *cache.Store
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	group      singleflight.Group
}

type clientConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	Rate       float64
	Logger     *slog.Logger
}

type Option func(*clientConfig)

func WithBaseURL(baseURL string) Option {
	return func(c *clientConfig) { c.BaseURL = baseURL }
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *clientConfig) { c.HTTPClient = httpClient }
}

// WithRateLimit limits remote requests to rps per second. Zero means no limit.
func WithRateLimit(rps float64) Option {
	return func(c *clientConfig) { c.Rate = rps }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) { c.Logger = logger }
}

// NewClient creates a Client fetching files of build through store.
func NewClient(build string, store *cache.Store, opts ...Option) (*Client, error) {
	config := clientConfig{
		BaseURL:    DefaultBaseURL,
		HTTPClient: http.DefaultClient,
		Logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}

	if build == "" {
		return nil, errors.New("minimaps: build is required")
	}
	if store == nil {
		return nil, errors.New("minimaps: cache store is required")
	}

	baseURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("minimaps: invalid base URL: %w", err)
	}
	if !strings.HasSuffix(baseURL.Path, "/") {
		baseURL.Path += "/"
	}

	var limiter *rate.Limiter
	if config.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.Rate), 1)
	}

	return &Client{
		build:      build,
		baseURL:    baseURL,
		store:      store,
		httpClient: config.HTTPClient,
		limiter:    limiter,
		logger:     config.Logger,
	}, nil
}

// FileByID returns the file with the given file data ID. The name is sent
// to the mirror as the download file name and defaults to "output".
// The returned slice may be shared with other callers and must not be
// modified.
func (c *Client) FileByID(ctx context.Context, id uint32, name string) ([]byte, error) {
	if name == "" {
		name = defaultFileName
	}
	query := url.Values{}
	query.Set("buildconfig", c.build)
	query.Set("filedataid", strconv.FormatUint(uint64(id), 10))
	query.Set("filename", name)
	return c.fetch(ctx, cache.IDKey(c.build, id), "fdid", query)
}

// FileByName returns the file with the given path, e.g.
// "dbfilesclient/map.db2". The returned slice must not be modified.
func (c *Client) FileByName(ctx context.Context, path string) ([]byte, error) {
	query := url.Values{}
	query.Set("buildconfig", c.build)
	query.Set("filename", path)
	return c.fetch(ctx, cache.NameKey(c.build, path), "fname", query)
}

func (c *Client) lookup(key cache.Key) ([]byte, bool, error) {
	data, found, err := c.store.Lookup(key)
	if errors.Is(err, cache.ErrInvalidKey) {
		return nil, false, err
	}
	if err != nil {
		c.logger.Warn("minimaps: cache lookup failed", "key", key.String(), "error", err)
		return nil, false, nil
	}
	return data, found, nil
}

func (c *Client) fetch(ctx context.Context, key cache.Key, endpoint string, query url.Values) ([]byte, error) {
	data, found, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	if found {
		return data, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		// A concurrent flight may have filled the cache since the lookup above.
		if data, found, _ := c.lookup(key); found {
			return data, nil
		}

		data, err := c.download(ctx, endpoint, query)
		if err != nil {
			return nil, fmt.Errorf("fetch %v: %w", key, err)
		}

		if _, err := c.store.Store(key, data); err != nil {
			c.logger.Warn("minimaps: cache store failed", "key", key.String(), "error", err)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Client) download(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTransport, err)
		}
	}

	requestURL := c.baseURL.ResolveReference(&url.URL{Path: endpoint, RawQuery: query.Encode()})
	c.logger.Debug("minimaps: download", "url", requestURL.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("%w: %v", ErrNotFound, resp.Status)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: unexpected status %v", ErrTransport, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrNotFound)
	}
	return data, nil
}
