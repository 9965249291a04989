package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flowmaps"

// Fetch holds the remote API client metrics. A nil *Fetch is a valid no-op.
type Fetch struct {
	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	documents  *prometheus.CounterVec
	operations *prometheus.CounterVec
}

// NewFetch creates fetch metrics and registers them on reg, reusing
// collectors that are already registered.
func NewFetch(reg prometheus.Registerer) (*Fetch, error) {
	m := &Fetch{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total API page requests by collection and HTTP status.",
		}, []string{"collection", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API page request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"collection"}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "documents_total",
			Help:      "Total documents retrieved by collection.",
		}, []string{"collection"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "operations_total",
			Help:      "Total fetch operations by type and status.",
		}, []string{"operation", "status"}),
	}
	if reg == nil {
		return m, nil
	}
	if err := registerOrReuse(reg, &m.requests); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.documents); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	return m, nil
}

// ObserveRequest records one HTTP round trip. status 0 means no response.
func (m *Fetch) ObserveRequest(collection string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(collection, label).Inc()
	m.duration.WithLabelValues(collection).Observe(dur.Seconds())
}

// AddDocuments counts documents received for a collection.
func (m *Fetch) AddDocuments(collection string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.documents.WithLabelValues(collection).Add(float64(n))
}

// ObserveOperation records the outcome of a complete fetch operation.
func (m *Fetch) ObserveOperation(op string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.operations.WithLabelValues(op, status).Inc()
}

// registerOrReuse registers a collector or reuses an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("metrics: already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("metrics: register: %w", err)
	}
	return nil
}
