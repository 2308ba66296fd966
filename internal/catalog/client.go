package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"pbimirror/internal/config"
	apperrors "pbimirror/internal/errors"
	"pbimirror/internal/infrastructure"
)

// Client lists folders and fetches item content from one report server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	tracer     trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracer sets the tracer used for catalog.list and catalog.fetch spans
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// NewClient creates a catalog client. httpClient carries authentication and
// the request timeout, see NewHTTPClient.
func NewClient(cfg config.RemoteConfig, httpClient *http.Client, opts ...Option) *Client {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	c := &Client{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     infrastructure.GetLogger(),
		tracer:     tracenoop.NewTracerProvider().Tracer("catalog"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = infrastructure.WithComponent(c.logger, "catalog")
	return c
}

// BaseURL returns the server the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// List fetches and decodes one folder listing. Non-200 responses fail with
// HTTP_STATUS, transport failures with NETWORK and bad bodies with PARSING.
func (c *Client) List(ctx context.Context, ref FolderRef) (*Listing, error) {
	url := ListURL(c.baseURL, ref)

	ctx, span := c.tracer.Start(ctx, "catalog.list", trace.WithAttributes(
		attribute.String("catalog.folder", ref.String()),
		attribute.String("http.url", url),
	))
	defer span.End()

	body, err := c.get(ctx, url)
	if err != nil {
		infrastructure.RecordSpanError(span, err)
		return nil, err
	}

	listing, err := DecodeListing(body)
	if err != nil {
		err = fmt.Errorf("%s: %w", url, err)
		infrastructure.RecordSpanError(span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("catalog.items", len(listing.Items)),
		attribute.Int("catalog.malformed", len(listing.Malformed)),
	)
	c.logger.InfoContext(ctx, "Successfully retrieved folder items",
		slog.String("url", url),
		slog.Int("items", len(listing.Items)))

	return listing, nil
}

// ListItems is the fail-soft form of List: any failure is logged and yields
// an empty slice. Malformed entries are logged and dropped.
func (c *Client) ListItems(ctx context.Context, ref FolderRef) []Item {
	listing, err := c.List(ctx, ref)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to retrieve folder items",
			slog.String("folder", ref.String()),
			slog.String("error", err.Error()))
		return []Item{}
	}
	for _, m := range listing.Malformed {
		c.logger.WarnContext(ctx, "Unexpected item format",
			slog.String("entry", string(m.Raw)),
			slog.String("error", m.Err.Error()))
	}
	return listing.Items
}

// FetchContent downloads the raw content of an item.
func (c *Client) FetchContent(ctx context.Context, itemID string) ([]byte, error) {
	url := ContentURL(c.baseURL, itemID)

	ctx, span := c.tracer.Start(ctx, "catalog.fetch", trace.WithAttributes(
		attribute.String("catalog.item_id", itemID),
		attribute.String("http.url", url),
	))
	defer span.End()

	body, err := c.get(ctx, url)
	if err != nil {
		infrastructure.RecordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response_size", len(body)))
	return body, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.NewNetworkError("request not sent", err).WithContext("url", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.NewNetworkError("failed to build request", err).WithContext("url", url)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewNetworkError("request failed", err).WithContext("url", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, apperrors.NewHTTPStatusError(url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewNetworkError("failed to read response body", err).WithContext("url", url)
	}
	return body, nil
}
