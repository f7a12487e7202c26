package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "watchboard"

// Metrics groups the collectors updated by discovery, the handle registry
// and the scheduler.
type Metrics struct {
	refreshes       prometheus.Counter
	failures        prometheus.Counter
	passes          prometheus.Counter
	passDuration    prometheus.Histogram
	discovery       prometheus.Histogram
	profiles        *prometheus.GaugeVec
	handles         *prometheus.GaugeVec
	targets         prometheus.Gauge
	postedWork      prometheus.Counter
	formatterBuilds *prometheus.CounterVec
}

func newCounter(subsystem, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
}

func newGaugeVec(subsystem, name, help string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func newHistogram(subsystem, name, help string, buckets []float64) prometheus.Histogram {
	return prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	})
}

// New creates the collectors and registers them with reg.
// Collectors that are already registered are reused.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		refreshes:    newCounter("scheduler", "refreshes_total", "Handle refreshes performed by the scheduler"),
		failures:     newCounter("scheduler", "refresh_failures_total", "Handle refreshes that failed and disabled their handle"),
		passes:       newCounter("scheduler", "passes_total", "Refresh passes run by the scheduler"),
		passDuration: newHistogram("scheduler", "pass_duration_seconds", "Wall time of one refresh pass", []float64{.0001, .0005, .001, .005, .01, .025, .05, .1}),
		discovery:    newHistogram("discovery", "duration_seconds", "Wall time of profile discovery", []float64{.001, .01, .05, .1, .5, 1, 5}),
		profiles:     newGaugeVec("discovery", "profiles", "Profiles built by the last discovery", []string{"scope"}),
		handles:      newGaugeVec("registry", "handles", "Live handles", []string{"scope"}),
		targets:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Subsystem: "registry", Name: "targets", Help: "Registered targets"}),
		postedWork:   newCounter("registry", "posted_work_total", "Work items posted to the update loop"),
		formatterBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "format",
			Name:      "builds_total",
			Help:      "Formatter constructions by dispatch rule",
		}, []string{"rule"}),
	}

	collectors := []prometheus.Collector{
		m.refreshes, m.failures, m.passes, m.passDuration, m.discovery,
		m.profiles, m.handles, m.targets, m.postedWork, m.formatterBuilds,
	}
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, err
			}
			collectors[i] = are.ExistingCollector
		}
	}
	m.rebind(collectors)

	return m, nil
}

// rebind swaps in collectors that were already registered under our names.
func (m *Metrics) rebind(c []prometheus.Collector) {
	m.refreshes = c[0].(prometheus.Counter)
	m.failures = c[1].(prometheus.Counter)
	m.passes = c[2].(prometheus.Counter)
	m.passDuration = c[3].(prometheus.Histogram)
	m.discovery = c[4].(prometheus.Histogram)
	m.profiles = c[5].(*prometheus.GaugeVec)
	m.handles = c[6].(*prometheus.GaugeVec)
	m.targets = c[7].(prometheus.Gauge)
	m.postedWork = c[8].(prometheus.Counter)
	m.formatterBuilds = c[9].(*prometheus.CounterVec)
}

func scope(static bool) string {
	if static {
		return "static"
	}
	return "instance"
}

// ObservePass records a refresh pass over n handles.
func (m *Metrics) ObservePass(n int, d time.Duration) {
	if m == nil {
		return
	}
	m.passes.Inc()
	m.refreshes.Add(float64(n))
	m.passDuration.Observe(d.Seconds())
}

// RefreshFailed counts a failed refresh.
func (m *Metrics) RefreshFailed() {
	if m == nil {
		return
	}
	m.failures.Inc()
}

// ObserveDiscovery records a completed discovery.
func (m *Metrics) ObserveDiscovery(d time.Duration, static, instance int) {
	if m == nil {
		return
	}
	m.discovery.Observe(d.Seconds())
	m.profiles.WithLabelValues("static").Set(float64(static))
	m.profiles.WithLabelValues("instance").Set(float64(instance))
}

// HandleCreated increments the live handle gauge.
func (m *Metrics) HandleCreated(static bool) {
	if m == nil {
		return
	}
	m.handles.WithLabelValues(scope(static)).Inc()
}

// HandleDisposed decrements the live handle gauge.
func (m *Metrics) HandleDisposed(static bool) {
	if m == nil {
		return
	}
	m.handles.WithLabelValues(scope(static)).Dec()
}

// SetTargets records the number of registered targets.
func (m *Metrics) SetTargets(n int) {
	if m == nil {
		return
	}
	m.targets.Set(float64(n))
}

// WorkPosted counts one posted work item.
func (m *Metrics) WorkPosted() {
	if m == nil {
		return
	}
	m.postedWork.Inc()
}

// FormatterBuilt counts a formatter built by the named rule.
func (m *Metrics) FormatterBuilt(rule string) {
	if m == nil {
		return
	}
	m.formatterBuilds.WithLabelValues(rule).Inc()
}
