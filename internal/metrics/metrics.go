// Package metrics exports session outcomes and last reading in Prometheus text format,
// for node_exporter textfile collector.
package metrics

import (
	"strconv"
	"time"

	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/temoto/mbus-hat/internal/session"
)

const namespace = "mbus"

type Config struct {
	Textfile string `hcl:"textfile"` // /var/lib/node_exporter/mbus.prom
}

type Metrics struct {
	Registry *prometheus.Registry

	Sessions        *prometheus.CounterVec // labels: result
	SessionDuration prometheus.Gauge
	LastSuccess     prometheus.Gauge
	Delivered       *prometheus.CounterVec // labels: result=published|failed
	Measurement     *prometheus.GaugeVec   // labels: meter, key, unit, storage, tariff
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Read cycles by result, success or failure cause.",
		}, []string{"result"}),
		SessionDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of last successful read cycle.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of last successful read cycle.",
		}),
		Delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_messages_total",
			Help:      "Readings handed to sink by result, failed ones are spooled when configured.",
		}, []string{"result"}),
		Measurement: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "measurement_value",
			Help:      "Numeric measurements of last reading.",
		}, []string{"meter", "key", "unit", "storage", "tariff"}),
	}
	m.Registry.MustRegister(m.Sessions, m.SessionDuration, m.LastSuccess, m.Delivered, m.Measurement)
	return m
}

// Observe accounts one Session.Run outcome.
func (self *Metrics) Observe(r *session.Result, err error) {
	if err != nil {
		result := session.CauseUnexpected.String()
		if f, ok := session.AsFailure(err); ok {
			result = f.Cause.String()
		}
		self.Sessions.WithLabelValues(result).Inc()
		return
	}
	self.Sessions.WithLabelValues("success").Inc()
	self.SessionDuration.Set(r.Duration.Seconds())
	self.LastSuccess.Set(float64(r.Started.Add(r.Duration).UnixNano()) / float64(time.Second))

	meter := r.RoutingKey()
	self.Measurement.Reset()
	for _, m := range r.Reading.Measurements {
		if m.Value == nil {
			continue
		}
		self.Measurement.WithLabelValues(meter, m.Key, m.Unit, strconv.FormatUint(m.Storage, 10), strconv.FormatUint(uint64(m.Tariff), 10)).Set(*m.Value)
	}
}

func (self *Metrics) ObserveDelivery(err error) {
	result := "published"
	if err != nil {
		result = "failed"
	}
	self.Delivered.WithLabelValues(result).Inc()
}

// WriteTextfile atomically replaces path, no-op on empty path.
func (self *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return errors.Annotatef(prometheus.WriteToTextfile(path, self.Registry), "metrics textfile=%s", path)
}
