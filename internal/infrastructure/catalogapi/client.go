package catalogapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sentimentscope/catalog/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL      = "http://localhost:8000"
	DefaultTimeout      = 8 * time.Second
	DefaultProbeTimeout = 3 * time.Second

	// maxErrorBodyBytes caps how much of an error response is kept for logging
	maxErrorBodyBytes = 1024
)

// ClientConfig holds configuration for the catalog API client
type ClientConfig struct {
	BaseURL           string
	Timeout           time.Duration
	ProbeTimeout      time.Duration
	RequestsPerSecond float64 // <= 0 disables outbound rate limiting
	Burst             int
	HTTPClient        *http.Client
}

// APIError is re-exported so callers of this package need not import domain
type APIError = domain.APIError

// Client handles communication with the catalog aggregation API
type Client struct {
	httpClient     *http.Client
	baseURL        string
	timeout        time.Duration
	probeTimeout   time.Duration
	cache          domain.ResponseCache
	rateLimiter    *rate.Limiter
	logger         *zap.Logger
	defaultHeaders map[string]string
}

// RequestOptions tunes a single Call
type RequestOptions struct {
	Method  string // defaults to GET
	Body    any    // JSON-encoded when set
	Headers map[string]string
	NoCache bool          // skip the response cache for this GET
	Timeout time.Duration // overrides the client timeout
}

// NewClient creates a new catalog API client. cache may be nil to disable
// response caching; logger may be nil.
func NewClient(cfg ClientConfig, cache domain.ResponseCache, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// Deadlines come from per-request contexts
		httpClient = &http.Client{}
	}

	return &Client{
		httpClient:   httpClient,
		baseURL:      baseURL,
		timeout:      timeout,
		probeTimeout: probeTimeout,
		cache:        cache,
		rateLimiter:  limiter,
		logger:       logger.Named("catalogapi"),
		defaultHeaders: map[string]string{
			"Content-Type": "application/json",
			"User-Agent":   "SentimentScope/1.0",
		},
	}
}

// BaseURL returns the normalized base URL requests are issued against
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Call issues a request to {baseURL}{path} and decodes the JSON body into out.
// out may be nil when only the status matters. Successful GET bodies are
// cached by full URL unless opts.NoCache is set.
func (c *Client) Call(ctx context.Context, path string, opts RequestOptions, out any) error {
	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodGet
	}
	reqURL := c.baseURL + path
	useCache := method == http.MethodGet && !opts.NoCache && c.cache != nil

	if useCache {
		if body, err := c.cache.Get(ctx, reqURL); err == nil {
			c.logger.Debug("cache hit", zap.String("url", reqURL))
			return decodeBody(body, out)
		}
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	body, err := c.doRequest(reqCtx, method, reqURL, opts)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			c.logger.Debug("request timed out",
				zap.String("method", method),
				zap.String("url", reqURL),
				zap.Duration("timeout", timeout))
			return fmt.Errorf("%w: %s %s after %s", domain.ErrTimeout, method, path, timeout)
		}
		return err
	}

	if err := decodeBody(body, out); err != nil {
		c.logger.Debug("decode failed", zap.String("url", reqURL), zap.Error(err))
		return err
	}

	if useCache {
		if err := c.cache.Set(ctx, reqURL, body); err != nil {
			c.logger.Warn("failed to cache response", zap.String("url", reqURL), zap.Error(err))
		}
	}

	c.logger.Debug("request completed",
		zap.String("method", method),
		zap.String("url", reqURL),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// doRequest executes the HTTP request and returns the body of a 2xx response
func (c *Client) doRequest(ctx context.Context, method, reqURL string, opts RequestOptions) ([]byte, error) {
	var reqBody io.Reader
	if opts.Body != nil {
		payload, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range c.defaultHeaders {
		req.Header.Set(k, v)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAPIFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := readLimitedBody(resp.Body, maxErrorBodyBytes)
		c.logger.Debug("non-2xx response",
			zap.String("url", reqURL),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet))
		return nil, &APIError{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", domain.ErrAPIFailure, err)
	}
	return body, nil
}

// ClearCache drops every cached response
func (c *Client) ClearCache() {
	if c.cache != nil {
		c.cache.Clear()
	}
}

// Ping probes the API root with the short probe timeout. Any 2xx means reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.Call(ctx, "/", RequestOptions{NoCache: true, Timeout: c.probeTimeout}, nil)
}

// GetBrands lists every brand known to the API
func (c *Client) GetBrands(ctx context.Context) ([]domain.BrandRecord, error) {
	var brands []domain.BrandRecord
	if err := c.Call(ctx, "/brands", RequestOptions{}, &brands); err != nil {
		return nil, err
	}
	return brands, nil
}

// GetPhones lists raw phone records, capped at limit
func (c *Client) GetPhones(ctx context.Context, limit int) ([]domain.PhoneRecord, error) {
	var phones []domain.PhoneRecord
	path := fmt.Sprintf("/phones?limit=%d", limit)
	if err := c.Call(ctx, path, RequestOptions{}, &phones); err != nil {
		return nil, err
	}
	return phones, nil
}

// GetSentiments fetches the sentiment breakdown for one phone
func (c *Client) GetSentiments(ctx context.Context, phoneID int64) (domain.SentimentBreakdown, error) {
	var resp domain.SentimentsResponse
	path := "/sentiments?phone_id=" + url.QueryEscape(strconv.FormatInt(phoneID, 10))
	if err := c.Call(ctx, path, RequestOptions{}, &resp); err != nil {
		return nil, err
	}
	if resp.Sentiments == nil {
		return domain.SentimentBreakdown{}, nil
	}
	return resp.Sentiments, nil
}

// GetPhoneDetails fetches the full review/sentiment/topic bundle for one phone
func (c *Client) GetPhoneDetails(ctx context.Context, phoneID string) (*domain.PhoneDetailsResponse, error) {
	var resp domain.PhoneDetailsResponse
	path := "/phones/" + url.PathEscape(phoneID) + "/complete"
	if err := c.Call(ctx, path, RequestOptions{}, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %w", domain.ErrProductNotFound, err)
		}
		return nil, err
	}
	return &resp, nil
}

// Search runs the server-side filtered phone search
func (c *Client) Search(ctx context.Context, params domain.SearchParams) ([]domain.PhoneRecord, error) {
	values := url.Values{}
	values.Set("query", params.Query)
	if params.Sentiment != "" {
		values.Set("sentiment_filter", string(params.Sentiment))
	}
	if params.BrandID != nil {
		values.Set("brand_filter", strconv.FormatInt(*params.BrandID, 10))
	}

	var resp domain.SearchResponse
	if err := c.Call(ctx, "/search?"+values.Encode(), RequestOptions{}, &resp); err != nil {
		return nil, err
	}
	return resp.Phones, nil
}

// GetStats fetches aggregate pipeline counters
func (c *Client) GetStats(ctx context.Context) (*domain.StatsResponse, error) {
	var stats domain.StatsResponse
	if err := c.Call(ctx, "/stats", RequestOptions{}, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func decodeBody(body []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	return nil
}

// readLimitedBody reads at most limit bytes from r
func readLimitedBody(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}
