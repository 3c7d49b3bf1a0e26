package catalogapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Fallstop/super-tracker-nz/internal/backoff"
	"github.com/Fallstop/super-tracker-nz/internal/util"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultPageSize       = 120
	DefaultConnectTimeout = 5 * time.Second
	DefaultTimeout        = 10 * time.Second

	pageDelay       = 1000 * time.Millisecond
	pageDelayJitter = 500 * time.Millisecond
)

// Client talks to the retailer's product browse endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	pageSize   int
	retry      backoff.Config
	limiter    *rate.Limiter
	headers    http.Header
	logger     *zap.Logger

	sleep  backoff.SleepFunc
	jitter func(max time.Duration) time.Duration
}

type ClientOptions struct {
	BaseURL        string
	PageSize       int
	ConnectTimeout time.Duration
	Timeout        time.Duration
	// RequestsPerSecond of 0 disables request pacing.
	RequestsPerSecond float64
	Retry             backoff.Config
}

// NewClient creates a catalog API client.
func NewClient(opts ClientOptions) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog API URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid catalog API URL: %q", opts.BaseURL)
	}

	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   opts.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		baseURL:  base,
		pageSize: opts.PageSize,
		retry:    opts.Retry,
		limiter:  limiter,
		headers:  browserHeaders(base.Host),
		logger:   util.GetLogger(),
		sleep:    backoff.Sleep,
		jitter:   backoff.Jitter,
	}, nil
}

// The upstream rejects requests that do not look like they came from its web app.
func browserHeaders(host string) http.Header {
	h := http.Header{}
	h.Set("authority", host)
	h.Set("Accept", "application/json, text/plain, */*")
	h.Set("Accept-Language", "en-GB,en-US;q=0.9,en;q=0.8")
	h.Set("Cache-Control", "no-cache")
	h.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36")
	h.Set("X-Requested-With", "OnlineShopping.WebApp")
	h.Set("X-UI-Ver", "7.30.266")
	return h
}

// FetchPage requests one page of the browse listing. An empty department
// browses the root listing. Transport, status and decode failures are retried
// according to the client's backoff configuration.
func (c *Client) FetchPage(ctx context.Context, department string, page, size int) (*APIResponse, error) {
	if page < 1 || size < 1 {
		return nil, fmt.Errorf("invalid page request: page=%d size=%d", page, size)
	}

	reqURL := c.pageURL(department, page, size)

	policy := backoff.New(c.retry,
		backoff.WithSleep(c.sleep),
		backoff.OnRetry(func(attempt int, delay time.Duration, err error) {
			fields := []zap.Field{
				zap.String("department", department),
				zap.Int("page", page),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			}
			var decodeErr *PayloadDecodeError
			if errors.As(err, &decodeErr) {
				fields = append(fields, zap.String("body", decodeErr.Snippet()))
			}
			util.CatalogFetchRetries.WithLabelValues(retryReason(err)).Inc()
			c.logger.Warn("Catalog fetch failed, retrying", fields...)
		}),
	)

	return backoff.Retry(ctx, policy, func(ctx context.Context) (*APIResponse, error) {
		return c.fetchOnce(ctx, reqURL)
	})
}

func (c *Client) pageURL(department string, page, size int) string {
	u := *c.baseURL
	q := u.Query()
	q.Set("target", "browse")
	q.Set("inStockProductsOnly", "false")
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	if department != "" {
		q.Set("dasFilter", fmt.Sprintf("Department;;%s;false", department))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) fetchOnce(ctx context.Context, reqURL string) (*APIResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range c.headers {
		req.Header[k] = v
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	util.CatalogFetchLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrTransientFetch, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}

	var apiResp APIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, &PayloadDecodeError{Body: body, Err: err}
	}
	if !apiResp.IsSuccessful {
		c.logger.Debug("Catalog response flagged unsuccessful", zap.String("url", reqURL))
	}
	return &apiResp, nil
}

// FetchDepartment pages through one department until the upstream total or
// maxItems is reached, whichever comes first. Promotion tiles are dropped.
func (c *Client) FetchDepartment(ctx context.Context, department string, maxItems int) ([]Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogClient.FetchDepartment")
	defer span.End()

	if maxItems < 1 {
		return nil, nil
	}

	total := -1
	products := make([]Product, 0)

	for page := 1; ; page++ {
		limit := maxItems
		if total >= 0 && total < limit {
			limit = total
		}
		size := min(c.pageSize, limit-len(products))
		if size <= 0 {
			break
		}

		resp, err := c.FetchPage(ctx, department, page, size)
		if err != nil {
			return products, fmt.Errorf("department %q page %d: %w", department, page, err)
		}
		if total < 0 {
			total = resp.Products.TotalItems
		}

		products = append(products, resp.Products.Products()...)
		util.CatalogPagesFetched.WithLabelValues(department).Inc()

		c.logger.Info("Fetched catalog page",
			zap.String("department", department),
			zap.Int("page", page),
			zap.Int("requested", size),
			zap.Int("items", len(resp.Products.Items)),
			zap.Int("fetched", len(products)),
			zap.Int("total", total),
			zap.Int("max", maxItems))

		if len(products) >= total || len(products) >= maxItems {
			break
		}
		if len(resp.Products.Items) == 0 {
			c.logger.Warn("Catalog returned an empty page before reaching its total",
				zap.String("department", department),
				zap.Int("page", page),
				zap.Int("fetched", len(products)),
				zap.Int("total", total))
			break
		}

		if err := c.sleep(ctx, pageDelay+c.jitter(pageDelayJitter)); err != nil {
			return products, err
		}
	}

	if len(products) > maxItems {
		products = products[:maxItems]
	}
	return products, nil
}

func retryReason(err error) string {
	var statusErr *StatusError
	var decodeErr *PayloadDecodeError
	switch {
	case errors.As(err, &statusErr):
		return "status"
	case errors.As(err, &decodeErr):
		return "decode"
	default:
		return "transport"
	}
}
