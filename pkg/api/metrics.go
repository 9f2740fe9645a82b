package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"roadnet/pkg/network"
)

// Metrics bundles the Prometheus collectors for the HTTP API and the loaded
// network.
type Metrics struct {
	gatherer prometheus.Gatherer

	Requests  *prometheus.CounterVec
	Durations *prometheus.HistogramVec

	Sensors    prometheus.Gauge
	Edges      prometheus.Gauge
	Components prometheus.Gauge
	Isolated   prometheus.Gauge
}

// NewMetrics registers the API metrics against reg, defaulting to the global
// Prometheus registry when nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roadnet_http_requests_total",
		Help: "Total number of handled API requests, labeled by route and status code.",
	}, []string{"route", "code"}), "roadnet_http_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "roadnet_http_request_duration_seconds",
		Help:    "API request latency in seconds.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
	}, []string{"route"}), "roadnet_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	gauges := make([]prometheus.Gauge, 4)
	for i, g := range []struct{ name, help string }{
		{"roadnet_network_sensors", "Number of sensors in the loaded network."},
		{"roadnet_network_edges", "Number of directed edges in the loaded network."},
		{"roadnet_network_components", "Number of connected components in the loaded network."},
		{"roadnet_network_isolated_sensors", "Number of sensors with no adjacent sensor."},
	} {
		gauges[i], err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{Name: g.name, Help: g.help}), g.name)
		if err != nil {
			return nil, err
		}
	}

	return &Metrics{
		gatherer:   gatherer,
		Requests:   requests,
		Durations:  durations,
		Sensors:    gauges[0],
		Edges:      gauges[1],
		Components: gauges[2],
		Isolated:   gauges[3],
	}, nil
}

// SetNetwork updates the network gauges.
func (m *Metrics) SetNetwork(st network.Stats) {
	if m == nil {
		return
	}
	m.Sensors.Set(float64(st.Sensors))
	m.Edges.Set(float64(st.Edges))
	m.Components.Set(float64(st.Components))
	m.Isolated.Set(float64(st.Isolated))
}

func (m *Metrics) observe(route string, code int, seconds float64) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.Durations.WithLabelValues(route).Observe(seconds)
}

// Handler exposes a ready-to-use /metrics handler.
func (m *Metrics) Handler() http.Handler {
	gatherer := m.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
