// Package metrics exposes thermostat state as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/water-heater/internal/logic"
)

const namespace = "water_heater"

// Metrics holds the collectors on their own registry, so tests and multiple
// instances don't collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	raw           prometheus.Gauge
	smoothed      prometheus.Gauge
	heaterOn      prometheus.Gauge
	servoAttached prometheus.Gauge
	transitions   *prometheus.CounterVec
	rejected      prometheus.Counter
	faults        *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		raw: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "raw_celsius",
			Help:      "Last accepted raw thermocouple reading.",
		}),
		smoothed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "smoothed_celsius",
			Help:      "Median of the readings window.",
		}),
		heaterOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "heater_on",
			Help:      "1 if the heater is commanded on.",
		}),
		servoAttached: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "servo_attached",
			Help:      "1 while the servo is being driven.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Counter of heater transitions.",
		}, []string{"event"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_rejected_total",
			Help:      "Counter of non-finite readings refused by the controller.",
		}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_faults_total",
			Help:      "Counter of thermocouple fault samples.",
		}, []string{"fault"}),
	}

	m.registry.MustRegister(
		m.raw,
		m.smoothed,
		m.heaterOn,
		m.servoAttached,
		m.transitions,
		m.rejected,
		m.faults,
	)
	return m
}

// ObserveReading records an accepted reading and the controller result.
func (m *Metrics) ObserveReading(raw float64, res logic.Result) {
	m.raw.Set(raw)
	if res.Available {
		m.smoothed.Set(res.Smoothed)
	}
	m.heaterOn.Set(boolGauge(res.HeaterOn))
	if res.Event != nil {
		m.transitions.WithLabelValues(string(res.Event.Type)).Inc()
	}
}

// ObserveRejected counts a refused reading.
func (m *Metrics) ObserveRejected() {
	m.rejected.Inc()
}

// ObserveFault counts a sensor fault sample.
func (m *Metrics) ObserveFault(fault string) {
	m.faults.WithLabelValues(fault).Inc()
}

// SetServoAttached sets the servo gauge.
func (m *Metrics) SetServoAttached(attached bool) {
	m.servoAttached.Set(boolGauge(attached))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
