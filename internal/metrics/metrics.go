package metrics

import (
	"net/http"
	"time"
)

// Metrics interface for dependency injection
type Metrics interface {
	RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration)
	RecordGroupFetch(platform, status string)
	RecordAggregationRun(duration time.Duration, processed, failed int)
	SetSnapshotGroups(count float64)
	SetDBConnectionsActive(count float64)
	RecordDBQuery(operation, status string)
	Handler() http.Handler
}

// NoOpMetrics provides a no-op implementation
type NoOpMetrics struct{}

func (m *NoOpMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
}
func (m *NoOpMetrics) RecordGroupFetch(platform, status string)                           {}
func (m *NoOpMetrics) RecordAggregationRun(duration time.Duration, processed, failed int) {}
func (m *NoOpMetrics) SetSnapshotGroups(count float64)                                    {}
func (m *NoOpMetrics) SetDBConnectionsActive(count float64)                               {}
func (m *NoOpMetrics) RecordDBQuery(operation, status string)                             {}
func (m *NoOpMetrics) Handler() http.Handler                                              { return http.NotFoundHandler() }

// Global metrics instance
var globalMetrics Metrics = &NoOpMetrics{}

// Init initializes metrics (no-op for now, can be extended with Prometheus)
func Init() {
	// For now, keep using no-op metrics
}

// Handler returns the metrics handler
func Handler() http.Handler {
	return globalMetrics.Handler()
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	globalMetrics.RecordHTTPRequest(method, endpoint, statusCode, duration)
}

// RecordGroupFetch records the outcome of one group fetch
func RecordGroupFetch(platform, status string) {
	globalMetrics.RecordGroupFetch(platform, status)
}

// RecordAggregationRun records one full aggregation pass
func RecordAggregationRun(duration time.Duration, processed, failed int) {
	globalMetrics.RecordAggregationRun(duration, processed, failed)
}

// SetSnapshotGroups sets the number of groups in the published snapshot
func SetSnapshotGroups(count float64) {
	globalMetrics.SetSnapshotGroups(count)
}

// SetDBConnectionsActive sets the number of active database connections
func SetDBConnectionsActive(count float64) {
	globalMetrics.SetDBConnectionsActive(count)
}

// RecordDBQuery records database query metrics
func RecordDBQuery(operation, status string) {
	globalMetrics.RecordDBQuery(operation, status)
}
