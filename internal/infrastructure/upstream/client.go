package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/jaennil/guide_helper/backend/geocache/internal/entity"
	"github.com/jaennil/guide_helper/backend/geocache/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/config"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/logger"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/metrics"
	"github.com/jaennil/guide_helper/backend/geocache/pkg/telemetry"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Response is a successful provider reply.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Client performs outbound GETs to third-party providers. Every call runs under its
// own timeout, detached from the caller's cancellation, behind a per-provider circuit
// breaker. Successful bodies are cached when a cache is configured.
type Client struct {
	httpClient *http.Client
	cfg        config.Upstream
	cache      cache.ResponseCache
	logger     logger.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[*Response]
}

// NewClient builds a client. httpClient and c may be nil.
func NewClient(cfg config.Upstream, httpClient *http.Client, c cache.ResponseCache, l logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		httpClient: httpClient,
		cfg:        cfg,
		cache:      c,
		logger:     l,
		breakers:   make(map[string]*gobreaker.CircuitBreaker[*Response]),
	}
}

// maxRedirects matches net/http's default redirect limit.
const maxRedirects = 10

// HostCheck vets a host before any request is sent to it. A non-nil error stops
// the fetch and is returned as is.
type HostCheck func(host string) error

// Get fetches rawURL on behalf of provider. A non-2xx reply is returned as an
// *entity.UpstreamError carrying the provider status. Transport failures map to 502
// and an open circuit to 503.
func (c *Client) Get(ctx context.Context, provider, rawURL string) (*Response, error) {
	return c.get(ctx, provider, rawURL, nil)
}

// GetChecked is Get with every redirect target passed through check before it is
// followed. The initial host is the caller's to vet.
func (c *Client) GetChecked(ctx context.Context, provider, rawURL string, check HostCheck) (*Response, error) {
	return c.get(ctx, provider, rawURL, check)
}

func (c *Client) get(ctx context.Context, provider, rawURL string, check HostCheck) (*Response, error) {
	cacheKey := provider + " " + rawURL
	if c.cache != nil {
		body, ok, err := c.cache.Get(ctx, cacheKey)
		if err != nil {
			c.logger.Warn("upstream cache lookup failed", "provider", provider, "error", err)
		} else if ok {
			c.logger.Debug("upstream cache hit", "provider", provider)
			return decodeCached(body), nil
		}
	}

	resp, err := c.breaker(provider).Execute(func() (*Response, error) {
		return c.do(ctx, provider, rawURL, check)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.UpstreamRequests.WithLabelValues(provider, "circuit_open").Inc()
			return nil, &entity.UpstreamError{Provider: provider, StatusCode: http.StatusServiceUnavailable, Err: err}
		}
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey, encodeCached(resp)); err != nil {
			c.logger.Warn("upstream cache store failed", "provider", provider, "error", err)
		}
	}

	return resp, nil
}

func (c *Client) do(ctx context.Context, provider, rawURL string, check HostCheck) (*Response, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
	defer cancel()

	ctx, span := telemetry.Tracer().Start(ctx, "upstream."+provider,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("upstream.provider", provider),
			attribute.String("http.url", rawURL),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.UpstreamLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &entity.UpstreamError{Provider: provider, StatusCode: http.StatusBadGateway, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	c.logger.Debug("fetching from upstream", "provider", provider, "url", rawURL)

	resp, err := c.client(check).Do(req)
	if err != nil {
		var forbidden *entity.ForbiddenError
		if errors.As(err, &forbidden) {
			metrics.UpstreamRequests.WithLabelValues(provider, "redirect_rejected").Inc()
			c.logger.Warn("upstream redirect rejected", "provider", provider, "host", forbidden.Host)
			return nil, forbidden
		}
		metrics.UpstreamRequests.WithLabelValues(provider, "transport_error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("upstream request failed", "provider", provider, "error", err)
		return nil, &entity.UpstreamError{Provider: provider, StatusCode: http.StatusBadGateway, Err: err}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseBytes+1))
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(provider, "transport_error").Inc()
		span.RecordError(err)
		return nil, &entity.UpstreamError{Provider: provider, StatusCode: http.StatusBadGateway, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if int64(len(body)) > c.cfg.MaxResponseBytes {
		metrics.UpstreamRequests.WithLabelValues(provider, "too_large").Inc()
		return nil, &entity.UpstreamError{Provider: provider, StatusCode: http.StatusBadGateway, Err: fmt.Errorf("response exceeds %d bytes", c.cfg.MaxResponseBytes)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamRequests.WithLabelValues(provider, "status_error").Inc()
		span.SetStatus(codes.Error, resp.Status)
		c.logger.Warn("upstream returned non-2xx", "provider", provider, "status", resp.StatusCode)
		return nil, &entity.UpstreamError{Provider: provider, StatusCode: resp.StatusCode, Err: errors.New(statusText(resp.StatusCode, body))}
	}

	metrics.UpstreamRequests.WithLabelValues(provider, "success").Inc()

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// client returns the shared http client, or a copy of it whose redirect policy runs
// check on every hop.
func (c *Client) client(check HostCheck) *http.Client {
	if check == nil {
		return c.httpClient
	}

	hc := *c.httpClient
	next := c.httpClient.CheckRedirect
	hc.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if err := check(req.URL.Hostname()); err != nil {
			return err
		}
		if next != nil {
			return next(req, via)
		}
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}
	return &hc
}

func (c *Client) breaker(name string) *gobreaker.CircuitBreaker[*Response] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[name]; ok {
		return cb
	}

	failures := c.cfg.BreakerFailures
	cb := gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     c.cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return failures > 0 && counts.ConsecutiveFailures >= failures
		},
		// provider 4xx replies and rejected redirects are answers, not outages
		IsSuccessful: func(err error) bool {
			var forbidden *entity.ForbiddenError
			if errors.As(err, &forbidden) {
				return true
			}
			var ue *entity.UpstreamError
			if errors.As(err, &ue) {
				return ue.StatusCode < 500
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			c.logger.Warn("circuit breaker state changed", "provider", name, "from", from.String(), "to", to.String())
		},
	})
	metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))
	c.breakers[name] = cb

	return cb
}

func statusText(code int, body []byte) string {
	const maxSnippet = 200
	snippet := string(body)
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet]
	}
	if snippet == "" {
		return http.StatusText(code)
	}
	return fmt.Sprintf("%s: %s", http.StatusText(code), snippet)
}
