// Package metrics exposes Prometheus collectors for plugin discovery,
// module loading, instance lifecycle and state operations.
//
// A nil *Metrics is valid and records nothing, so components take one
// optionally.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lv2host"

// Instantiation outcomes.
const (
	ResultOK        = "ok"
	ResultRefused   = "refused"
	ResultLoadError = "load_error"
)

// Metrics groups the host collectors.
type Metrics struct {
	BundlesLoaded     prometheus.Counter
	DocumentsFailed   prometheus.Counter
	PluginsDiscovered prometheus.Gauge
	DuplicatePlugins  prometheus.Counter
	ModulesOpen       prometheus.Gauge
	ModuleLoadErrors  *prometheus.CounterVec
	Instantiations    *prometheus.CounterVec
	InstancesLive     prometheus.Gauge
	InstancesActive   prometheus.Gauge
	StateOperations   *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		BundlesLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "world",
			Name:      "bundles_loaded_total",
			Help:      "Number of bundles loaded into the world.",
		}),
		DocumentsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "world",
			Name:      "documents_failed_total",
			Help:      "Number of bundle documents skipped because they could not be read or parsed.",
		}),
		PluginsDiscovered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "world",
			Name:      "plugins",
			Help:      "Number of plugins currently registered in the world.",
		}),
		DuplicatePlugins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "world",
			Name:      "duplicate_plugins_total",
			Help:      "Number of plugin declarations whose URI was already registered.",
		}),
		ModulesOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "module",
			Name:      "open",
			Help:      "Number of plugin modules currently loaded.",
		}),
		ModuleLoadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "module",
			Name:      "load_errors_total",
			Help:      "Module load failures by error kind.",
		}, []string{"kind"}),
		Instantiations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "instance",
			Name:      "instantiations_total",
			Help:      "Instantiation attempts by result.",
		}, []string{"result"}),
		InstancesLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "instance",
			Name:      "live",
			Help:      "Number of instances not yet freed.",
		}),
		InstancesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "instance",
			Name:      "active",
			Help:      "Number of instances in the active state.",
		}),
		StateOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "state",
			Name:      "operations_total",
			Help:      "State save and restore calls by operation and status.",
		}, []string{"op", "status"}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.BundlesLoaded,
		m.DocumentsFailed,
		m.PluginsDiscovered,
		m.DuplicatePlugins,
		m.ModulesOpen,
		m.ModuleLoadErrors,
		m.Instantiations,
		m.InstancesLive,
		m.InstancesActive,
		m.StateOperations,
	}
}

func (m *Metrics) BundleLoaded() {
	if m != nil {
		m.BundlesLoaded.Inc()
	}
}

func (m *Metrics) DocumentFailed() {
	if m != nil {
		m.DocumentsFailed.Inc()
	}
}

func (m *Metrics) SetPlugins(n int) {
	if m != nil {
		m.PluginsDiscovered.Set(float64(n))
	}
}

func (m *Metrics) DuplicatePlugin() {
	if m != nil {
		m.DuplicatePlugins.Inc()
	}
}

func (m *Metrics) ModuleOpened() {
	if m != nil {
		m.ModulesOpen.Inc()
	}
}

func (m *Metrics) ModuleClosed() {
	if m != nil {
		m.ModulesOpen.Dec()
	}
}

func (m *Metrics) ModuleLoadFailed(kind string) {
	if m != nil {
		m.ModuleLoadErrors.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) Instantiated(result string) {
	if m != nil {
		m.Instantiations.WithLabelValues(result).Inc()
		if result == ResultOK {
			m.InstancesLive.Inc()
		}
	}
}

func (m *Metrics) InstanceFreed() {
	if m != nil {
		m.InstancesLive.Dec()
	}
}

func (m *Metrics) InstanceActivated() {
	if m != nil {
		m.InstancesActive.Inc()
	}
}

func (m *Metrics) InstanceDeactivated() {
	if m != nil {
		m.InstancesActive.Dec()
	}
}

func (m *Metrics) StateOperation(op, status string) {
	if m != nil {
		m.StateOperations.WithLabelValues(op, status).Inc()
	}
}
