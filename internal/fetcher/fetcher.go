// Package fetcher retrieves raw climate series text from the upstream publisher.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"uk-weather-platform/internal/models"
	"uk-weather-platform/pkg/logging"
	"uk-weather-platform/pkg/metrics"
)

// DefaultBaseURL is the Met Office HadUK-Grid regional series root
const DefaultBaseURL = "https://www.metoffice.gov.uk/pub/data/weather/uk/climate/datasets"

const (
	defaultTimeout      = 30 * time.Second
	defaultUserAgent    = "uk-weather-platform/1.0"
	defaultMaxBodyBytes = 8 << 20
)

// Fetcher returns the text body behind a URL or fails with *models.FetchError
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Config configures an HTTPFetcher
type Config struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
	// RequestsPerSecond limits upstream calls; zero or less disables limiting.
	RequestsPerSecond float64
	Burst             int
}

// HTTPFetcher downloads series over HTTP
type HTTPFetcher struct {
	client       *http.Client
	limiter      *rate.Limiter
	userAgent    string
	maxBodyBytes int64
	logger       *logging.StructuredLogger
	metrics      *metrics.Collector
}

// NewHTTPFetcher creates a fetcher from cfg, filling unset fields with defaults
func NewHTTPFetcher(cfg Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &HTTPFetcher{
		client:       &http.Client{Timeout: cfg.Timeout},
		limiter:      limiter,
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxBodyBytes,
		logger:       logger,
		metrics:      metricsCollector,
	}
}

// Fetch performs a GET and returns the body. Transport failures, deadline
// expiry, oversized bodies and non-2xx statuses come back as *models.FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	timer := f.metrics.NewTimer(f.metrics.FetchDuration)
	defer timer.ObserveDuration()

	if err := f.limiter.Wait(ctx); err != nil {
		return "", &models.FetchError{URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &models.FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/plain")

	f.logger.Debug(ctx, "[FETCH_START] Fetching series", logging.Fields{
		"url": rawURL,
	})

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &models.FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain a little so the connection can be reused
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return "", &models.FetchError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        errors.New(resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		return "", &models.FetchError{URL: rawURL, Err: fmt.Errorf("failed to read body: %w", err)}
	}
	if int64(len(body)) > f.maxBodyBytes {
		return "", &models.FetchError{URL: rawURL, Err: fmt.Errorf("body exceeds %d bytes", f.maxBodyBytes)}
	}

	f.logger.Debug(ctx, "[FETCH_COMPLETE] Series fetched", logging.Fields{
		"url":   rawURL,
		"bytes": len(body),
	})

	return string(body), nil
}

// DatasetURL builds the series location for a region and parameter:
// {base}/{parameter}/date/{region}.txt
func DatasetURL(base, region, parameter string) string {
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(parameter) + "/date/" + url.PathEscape(region) + ".txt"
}

// ParseDatasetURL recovers the region and parameter codes from a URL shaped
// like the ones DatasetURL builds.
func ParseDatasetURL(rawURL string) (region, parameter string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", &models.ValidationError{Field: "url", Value: rawURL, Message: "invalid url"}
	}

	segments := strings.Split(strings.Trim(u.EscapedPath(), "/"), "/")
	if len(segments) < 3 || segments[len(segments)-2] != "date" || path.Ext(segments[len(segments)-1]) != ".txt" {
		return "", "", &models.ValidationError{
			Field:   "url",
			Value:   rawURL,
			Message: "url does not match {base}/{parameter}/date/{region}.txt",
		}
	}

	file := segments[len(segments)-1]
	region, err = url.PathUnescape(strings.TrimSuffix(file, ".txt"))
	if err != nil {
		return "", "", &models.ValidationError{Field: "url", Value: rawURL, Message: "invalid region segment"}
	}
	parameter, err = url.PathUnescape(segments[len(segments)-3])
	if err != nil {
		return "", "", &models.ValidationError{Field: "url", Value: rawURL, Message: "invalid parameter segment"}
	}
	if region == "" || parameter == "" {
		return "", "", &models.ValidationError{Field: "url", Value: rawURL, Message: "url is missing region or parameter"}
	}

	return region, parameter, nil
}
