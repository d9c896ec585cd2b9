package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once          sync.Once
	clicks        *prom.CounterVec
	clickDuration prom.Histogram
	commands      *prom.CounterVec
	notifications *prom.CounterVec
	stallChecks   *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.clicks = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "tidepool",
			Name:      "clicks_total",
			Help:      "Click gate results by outcome",
		}, []string{"outcome"})
		pr.clickDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "tidepool",
			Name:      "click_duration_seconds",
			Help:      "Duration of click gate processing",
			Buckets:   prom.DefBuckets,
		})
		pr.commands = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "tidepool",
			Name:      "admin_commands_total",
			Help:      "Dispatched admin commands by name",
		}, []string{"command"})
		pr.notifications = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "tidepool",
			Name:      "notifications_total",
			Help:      "Outbound notification sends by result",
		}, []string{"success"})
		pr.stallChecks = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "tidepool",
			Name:      "stall_checks_total",
			Help:      "Idle-stall detector runs by result",
		}, []string{"stalled"})
		reg.MustRegister(pr.clicks, pr.clickDuration, pr.commands, pr.notifications, pr.stallChecks)
	})
	return pr
}

func (p *PrometheusRecorder) IncClick(outcome ClickOutcome) {
	if p == nil || p.clicks == nil {
		return
	}
	p.clicks.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveClickDuration(d time.Duration) {
	if p == nil || p.clickDuration == nil {
		return
	}
	p.clickDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCommand(command string) {
	if p == nil || p.commands == nil {
		return
	}
	p.commands.WithLabelValues(command).Inc()
}

func (p *PrometheusRecorder) IncNotification(success bool) {
	if p == nil || p.notifications == nil {
		return
	}
	p.notifications.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func (p *PrometheusRecorder) IncStallCheck(stalled bool) {
	if p == nil || p.stallChecks == nil {
		return
	}
	p.stallChecks.WithLabelValues(strconv.FormatBool(stalled)).Inc()
}

// HTTPHandler returns an http.Handler that serves Prometheus metrics for the provided registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
