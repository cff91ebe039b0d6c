package sourceprovider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Amund211/scriptcache/internal/constants"
	"github.com/Amund211/scriptcache/internal/domain"
	"github.com/Amund211/scriptcache/internal/logging"
	"github.com/Amund211/scriptcache/internal/ratelimiting"
	"github.com/Amund211/scriptcache/internal/reporting"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type httpSourceProvider struct {
	httpClient    HttpClient
	limiter       ratelimiting.RateLimiter
	maxSourceSize int64

	metrics httpSourceProviderMetricsCollection
}

// NewHTTPSourceProvider fetches sources over http. Bodies larger than
// maxSourceSize bytes are rejected with domain.ErrSourceTooLarge.
func NewHTTPSourceProvider(httpClient HttpClient, limiter ratelimiting.RateLimiter, maxSourceSize int64) (SourceProvider, error) {
	if maxSourceSize <= 0 {
		return nil, fmt.Errorf("max source size must be positive, got %d", maxSourceSize)
	}

	meter := otel.Meter("sourceprovider/http")
	metrics, err := setupHTTPSourceProviderMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	return &httpSourceProvider{
		httpClient:    httpClient,
		limiter:       limiter,
		maxSourceSize: maxSourceSize,

		metrics: metrics,
	}, nil
}

func (h *httpSourceProvider) GetSource(ctx context.Context, url string) ([]byte, error) {
	logger := logging.FromContext(ctx).With(slog.String("url", url))

	err := h.limiter.Wait(ctx, ratelimiting.HostKey(url))
	if err != nil {
		// Only happens when ctx is done, not worth reporting
		return nil, fmt.Errorf("%w: %w", domain.ErrTemporarilyUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		reporting.Report(ctx, err, map[string]string{"url": url})
		return nil, err
	}

	req.Header.Set("User-Agent", constants.USER_AGENT)

	start := time.Now()
	resp, err := h.httpClient.Do(req)
	if err != nil {
		h.metrics.requestCount.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "failed")))
		err := fmt.Errorf("%w: failed to send request: %w", domain.ErrTemporarilyUnavailable, err)
		reporting.Report(ctx, err, map[string]string{"url": url})
		return nil, err
	}

	defer resp.Body.Close()
	// One byte past the limit tells a body of exactly maxSourceSize from a larger one
	data, err := io.ReadAll(io.LimitReader(resp.Body, h.maxSourceSize+1))
	if err != nil {
		err := fmt.Errorf("failed to read response body: %w", err)
		reporting.Report(ctx, err, map[string]string{"url": url})
		return nil, err
	}
	if int64(len(data)) > h.maxSourceSize {
		h.metrics.requestCount.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "too_large")))
		err := fmt.Errorf("%w: body exceeds %d bytes", domain.ErrSourceTooLarge, h.maxSourceSize)
		reporting.Report(ctx, err, map[string]string{
			"url":    url,
			"status": strconv.Itoa(resp.StatusCode),
		})
		return nil, err
	}

	h.metrics.requestCount.Add(ctx, 1, metric.WithAttributes(attribute.String("status", strconv.Itoa(resp.StatusCode))))
	logger.InfoContext(ctx, "source request completed", "status", resp.StatusCode, "duration", time.Since(start).String())

	source, err := sourceFromResponse(resp.StatusCode, data)
	if err != nil {
		err := fmt.Errorf("failed to get source from response: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"url":    url,
			"status": strconv.Itoa(resp.StatusCode),
		})
		return nil, err
	}

	return source, nil
}

func sourceFromResponse(statusCode int, data []byte) ([]byte, error) {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return nil, fmt.Errorf("%w: server returned status code %d", domain.ErrTemporarilyUnavailable, statusCode)
	}

	switch statusCode {
	case http.StatusNotFound,
		http.StatusGone:
		return nil, fmt.Errorf("%w: server returned status code %d", domain.ErrSourceNotFound, statusCode)
	}

	if statusCode < 200 || statusCode >= 300 {
		return nil, fmt.Errorf("unexpected status code %d", statusCode)
	}

	return data, nil
}

type httpSourceProviderMetricsCollection struct {
	requestCount metric.Int64Counter
}

func setupHTTPSourceProviderMetrics(meter metric.Meter) (httpSourceProviderMetricsCollection, error) {
	requestCount, err := meter.Int64Counter("sourceprovider/http/request_count")
	if err != nil {
		return httpSourceProviderMetricsCollection{}, fmt.Errorf("failed to create metric: %w", err)
	}

	return httpSourceProviderMetricsCollection{
		requestCount: requestCount,
	}, nil
}
