package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_RecordIngestionRun(t *testing.T) {
	c := NewCollectorForTesting()

	c.RecordIngestionRun("UK", "Tmax", 12, 3)
	c.RecordIngestionRun("UK", "Tmax", 0, 15)

	assert.Equal(t, 12.0, testutil.ToFloat64(c.IngestionRecordsCreated.WithLabelValues("UK", "Tmax")))
	assert.Equal(t, 18.0, testutil.ToFloat64(c.IngestionRecordsSkipped.WithLabelValues("UK", "Tmax")))
}

func TestCollector_Counters(t *testing.T) {
	c := NewCollectorForTesting()

	c.RecordAPIRequest("/observations/", "GET", "200")
	c.RecordAPIError("bad_request", "/observations/")
	c.RecordIngestionError("fetch_error")
	c.RecordDBError("exec_error")
	c.UpdateDBConnectionPool(2, 3, 5)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.APIRequestsTotal.WithLabelValues("/observations/", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.APIErrorsTotal.WithLabelValues("bad_request", "/observations/")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.IngestionErrorsTotal.WithLabelValues("fetch_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.DBErrorsTotal.WithLabelValues("exec_error")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.DBConnectionPool.WithLabelValues("total")))
}

func TestNewCollectorWithRegistry_Independent(t *testing.T) {
	assert.NotPanics(t, func() {
		NewCollectorWithRegistry("weather_platform", prometheus.NewRegistry())
		NewCollectorWithRegistry("weather_platform", prometheus.NewRegistry())
	})
}

func TestTimer_ObserveDuration(t *testing.T) {
	c := NewCollectorForTesting()
	timer := c.NewTimer(c.IngestionDuration)
	assert.GreaterOrEqual(t, timer.ObserveDuration().Nanoseconds(), int64(0))
}
