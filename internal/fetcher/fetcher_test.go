package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uk-weather-platform/internal/models"
	"uk-weather-platform/pkg/logging"
	"uk-weather-platform/pkg/metrics"
)

func newTestFetcher(cfg Config) *HTTPFetcher {
	return NewHTTPFetcher(cfg, logging.NewNopLogger(), metrics.NewCollectorForTesting())
}

func TestHTTPFetcher_Success(t *testing.T) {
	const body = "year jan feb\n2020 4.5 5.1\n"
	var gotUA string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	text, err := newTestFetcher(Config{UserAgent: "weather-test"}).Fetch(context.Background(), srv.URL+"/Tmax/date/UK.txt")
	require.NoError(t, err)
	assert.Equal(t, body, text)
	assert.Equal(t, "weather-test", gotUA)
}

func TestHTTPFetcher_Non2xx(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusNotFound, false},
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			_, err := newTestFetcher(Config{}).Fetch(context.Background(), srv.URL)
			var fetchErr *models.FetchError
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, tt.status, fetchErr.StatusCode)
			assert.Equal(t, tt.transient, fetchErr.IsTransient())
		})
	}
}

func TestHTTPFetcher_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := newTestFetcher(Config{Timeout: 50 * time.Millisecond}).Fetch(context.Background(), srv.URL)
	var fetchErr *models.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Zero(t, fetchErr.StatusCode)
	assert.True(t, fetchErr.IsTransient())
}

func TestHTTPFetcher_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher(Config{RequestsPerSecond: 1}).Fetch(ctx, "http://127.0.0.1:1/never")
	var fetchErr *models.FetchError
	assert.ErrorAs(t, err, &fetchErr)
}

func TestHTTPFetcher_BodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	_, err := newTestFetcher(Config{MaxBodyBytes: 16}).Fetch(context.Background(), srv.URL)
	var fetchErr *models.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, fetchErr.Error(), "exceeds")
}

func TestDatasetURL(t *testing.T) {
	assert.Equal(t,
		"https://www.metoffice.gov.uk/pub/data/weather/uk/climate/datasets/Tmax/date/UK.txt",
		DatasetURL("", "UK", "Tmax"))
	assert.Equal(t,
		"http://mirror.test/data/Rainfall/date/England_and_Wales.txt",
		DatasetURL("http://mirror.test/data/", "England_and_Wales", "Rainfall"))
}

func TestParseDatasetURL(t *testing.T) {
	region, parameter, err := ParseDatasetURL(DatasetURL("", "Scotland_N", "Sunshine"))
	require.NoError(t, err)
	assert.Equal(t, "Scotland_N", region)
	assert.Equal(t, "Sunshine", parameter)

	for _, bad := range []string{
		"https://example.test/UK.txt",
		"https://example.test/Tmax/data/UK.txt",
		"https://example.test/Tmax/date/UK.csv",
		"https://example.test/Tmax/date/.txt",
		"://broken",
	} {
		t.Run(bad, func(t *testing.T) {
			_, _, err := ParseDatasetURL(bad)
			var verr *models.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}
