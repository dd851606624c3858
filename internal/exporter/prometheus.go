package exporter

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "refreshd"

var powerStates = []string{"unknown", "ac", "battery"}

var _ Recorder = (*PrometheusRecorder)(nil)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	attempts        *prom.CounterVec
	attemptDuration *prom.HistogramVec
	targetRate      prom.Gauge
	powerState      *prom.GaugeVec
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}

	pr := &PrometheusRecorder{
		attempts: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Reconciliation attempts by outcome",
		}, []string{"outcome"}),
		attemptDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "reconciliation_duration_seconds",
			Help:      "Duration of reconciliation attempts",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"outcome"}),
		targetRate: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "target_refresh_rate_hz",
			Help:      "Refresh rate requested by the last reconciliation",
		}),
		powerState: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "power_state",
			Help:      "Current power state, 1 for the active state",
		}, []string{"state"}),
	}

	reg.MustRegister(pr.attempts, pr.attemptDuration, pr.targetRate, pr.powerState)

	return pr
}

func (p *PrometheusRecorder) ObserveAttempt(outcome string, d time.Duration) {
	if p == nil || p.attempts == nil {
		return
	}
	p.attempts.WithLabelValues(outcome).Inc()
	p.attemptDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetTargetRate(hz int) {
	if p == nil || p.targetRate == nil {
		return
	}
	p.targetRate.Set(float64(hz))
}

func (p *PrometheusRecorder) SetPowerState(state string) {
	if p == nil || p.powerState == nil {
		return
	}
	for _, s := range powerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		p.powerState.WithLabelValues(s).Set(v)
	}
}
