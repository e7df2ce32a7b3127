package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/gasflow/ops-console/internal/export"
	pkgerrors "github.com/gasflow/ops-console/pkg/errors"
	"github.com/gasflow/ops-console/pkg/logger"
	"github.com/gasflow/ops-console/pkg/metrics"
	"github.com/gasflow/ops-console/pkg/pagination"
)

const defaultTimeout = 30 * time.Second

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}

// AuthHandler receives every failed backend response. A 401 is expected to end
// the operator session.
type AuthHandler interface {
	HandleAPIError(ctx context.Context, err *APIError)
}

// Client talks to the order backend REST API.
type Client struct {
	http        *resty.Client
	tokens      TokenSource
	auth        AuthHandler
	metrics     *metrics.GatewayMetrics
	logg        *logger.Logger
	csv         export.Writer
	exportLimit int
}

type Option func(*Client)

// WithHTTPClient swaps the underlying transport, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = resty.NewWithClient(hc).SetBaseURL(c.http.BaseURL)
		}
	}
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

func WithAuthHandler(h AuthHandler) Option {
	return func(c *Client) {
		c.auth = h
	}
}

func WithMetrics(m *metrics.GatewayMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logg = l
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// WithExport sets the CSV writer and the page size used to pull an export.
func WithExport(w export.Writer, limit int) Option {
	return func(c *Client) {
		c.csv = w
		if limit > 0 {
			c.exportLimit = limit
		}
	}
}

// NewClient builds a backend client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "backend base url is required")
	}

	c := &Client{
		http:        resty.New().SetBaseURL(baseURL).SetTimeout(defaultTimeout),
		logg:        logger.Nop(),
		csv:         export.NewWriter(export.DefaultCurrency),
		exportLimit: pagination.ExportLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.http.SetHeader("Accept", "application/json")
	return c, nil
}

// call executes one request and returns the raw body of a 2xx response.
func (c *Client) call(ctx context.Context, op string, req request) (*resty.Response, error) {
	if c == nil || c.http == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "order gateway not configured")
	}

	r := c.http.R().SetContext(ctx)
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "operator token unavailable")
		}
		if token != "" {
			r.SetAuthToken(token)
		}
	}
	if req.query != nil {
		r.SetQueryParamsFromValues(req.query)
	}
	if req.body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(req.body)
	}

	start := time.Now()
	resp, err := r.Execute(req.method, req.path)
	if err != nil {
		c.metrics.Observe(op, 0, time.Since(start))
		c.logg.Error(c.logg.WithField(ctx, "operation", op), "order backend unreachable", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order service unreachable")
	}
	c.metrics.Observe(op, resp.StatusCode(), time.Since(start))

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		apiErr := parseAPIError(op, resp.StatusCode(), resp.Body())
		if c.auth != nil {
			c.auth.HandleAPIError(ctx, apiErr)
		}
		ctx = c.logg.WithFields(ctx, map[string]any{
			"operation": op,
			"status":    apiErr.Status,
		})
		c.logg.Warn(ctx, "order backend rejected request: "+apiErr.UpstreamMessage())
		return nil, classify(apiErr)
	}
	return resp, nil
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
}
