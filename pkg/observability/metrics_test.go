package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics{}

	m.Counter("test", 1)
	m.Gauge("test", 1.0)
	m.Histogram("test", 1.0)
	m.Timing("test", time.Second)
}

func TestInMemoryMetrics(t *testing.T) {
	t.Run("counter with tags", func(t *testing.T) {
		m := NewInMemoryMetrics()

		m.Counter(MetricNotifications, 1, T("channel", "pushover"), T("status", "sent"))
		m.Counter(MetricNotifications, 1, T("channel", "pushover"), T("status", "failed"))
		m.Counter(MetricNotifications, 1, T("status", "sent"), T("channel", "pushover"))

		assert.Equal(t, int64(2), m.GetCounter(MetricNotifications, T("channel", "pushover"), T("status", "sent")))
		assert.Equal(t, int64(1), m.GetCounter(MetricNotifications, T("status", "failed"), T("channel", "pushover")))
	})

	t.Run("gauge keeps last value", func(t *testing.T) {
		m := NewInMemoryMetrics()

		m.Gauge(MetricRetryAttempts, 2)
		m.Gauge(MetricRetryAttempts, 3)

		assert.Equal(t, 3.0, m.GetGauge(MetricRetryAttempts))
	})

	t.Run("histogram and timing", func(t *testing.T) {
		m := NewInMemoryMetrics()

		m.Histogram("payload_bytes", 100)
		m.Histogram("payload_bytes", 200)
		m.Timing(MetricCycleDuration, 100*time.Millisecond)

		assert.Equal(t, []float64{100, 200}, m.GetHistogram("payload_bytes"))
		assert.Equal(t, []time.Duration{100 * time.Millisecond}, m.GetTimings(MetricCycleDuration))
	})

	t.Run("reset", func(t *testing.T) {
		m := NewInMemoryMetrics()
		m.Counter("test", 1)
		m.Gauge("test", 1.0)

		m.Reset()

		assert.Zero(t, m.GetCounter("test"))
		assert.Zero(t, m.GetGauge("test"))
	})
}

func TestFormatKey(t *testing.T) {
	tests := []struct {
		name     string
		tags     []Tag
		expected string
	}{
		{name: "no tags", tags: nil, expected: "requests"},
		{name: "single tag", tags: []Tag{T("method", "GET")}, expected: "requests:method=GET"},
		{name: "sorted by key", tags: []Tag{T("status", "200"), T("method", "GET")}, expected: "requests:method=GET:status=200"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatKey("requests", tt.tags))
		})
	}
}

func TestTimer(t *testing.T) {
	m := NewInMemoryMetrics()

	StartTimer("portal.get").WithMetrics(m).StopWithError(t.Context(), assert.AnError)
	StartTimer("portal.get").WithMetrics(m).Stop(t.Context())

	assert.Equal(t, int64(1), m.GetCounter(MetricOperationTotal, T(OperationKey, "portal.get"), T(StatusKey, "ok")))
	assert.Equal(t, int64(1), m.GetCounter(MetricOperationTotal, T(OperationKey, "portal.get"), T(StatusKey, "error")))
	assert.Equal(t, int64(1), m.GetCounter(MetricOperationErrors, T(OperationKey, "portal.get")))
	assert.Len(t, m.GetTimings(MetricOperationDuration, T(OperationKey, "portal.get")), 2)
}

func TestTimeOperationResult(t *testing.T) {
	m := NewInMemoryMetrics()

	got, err := TimeOperationResult(t.Context(), nil, m, "lookup", func() (int, error) {
		return 42, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, int64(1), m.GetCounter(MetricOperationTotal, T(OperationKey, "lookup"), T(StatusKey, "ok")))
}
