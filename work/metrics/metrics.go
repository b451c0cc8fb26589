package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"iptv-check/work/types"
)

// Recorder holds the metrics of one validation run on a private registry,
// so tests and repeated runs never collide on the global one.
type Recorder struct {
	registry *prometheus.Registry

	// ProbesTotal counts finished probes by classification label
	// (online, offline_network, offline_bad_login).
	ProbesTotal *prometheus.CounterVec

	// ProbeDuration is the wall time of a whole probe pipeline.
	ProbeDuration prometheus.Histogram

	// InflightProbes is the number of pipelines currently running.
	InflightProbes prometheus.Gauge

	// Channels tracks run sizes by state (parsed, skipped, filtered, dispatched, online).
	Channels *prometheus.GaugeVec

	// Uncheckable counts offline channels diverted to the uncheckable list.
	Uncheckable prometheus.Counter
}

// New creates a Recorder with all collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		ProbesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iptv_check_probes_total",
			Help: "Number of finished stream probes by classification",
		}, []string{"classification"}),
		ProbeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "iptv_check_probe_duration_seconds",
			Help:    "Duration of a stream probe pipeline",
			Buckets: []float64{0.5, 1, 2, 5, 10, 15, 20, 30, 60},
		}),
		InflightProbes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "iptv_check_inflight_probes",
			Help: "Number of probes currently running",
		}),
		Channels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "iptv_check_channels",
			Help: "Channels in the current run by state",
		}, []string{"state"}),
		Uncheckable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iptv_check_uncheckable_total",
			Help: "Offline channels written to the uncheckable list",
		}),
	}

	r.registry.MustRegister(r.ProbesTotal, r.ProbeDuration, r.InflightProbes, r.Channels, r.Uncheckable)
	return r
}

// ProbeStarted marks a pipeline as running.
func (r *Recorder) ProbeStarted() {
	if r == nil {
		return
	}
	r.InflightProbes.Inc()
}

// ProbeFinished records a completed pipeline.
func (r *Recorder) ProbeFinished(res types.ProbeResult) {
	if r == nil {
		return
	}
	r.InflightProbes.Dec()
	r.ProbesTotal.WithLabelValues(res.Classification.Label()).Inc()
	r.ProbeDuration.Observe(res.Duration.Seconds())
}

// SetChannels records a run size for state.
func (r *Recorder) SetChannels(state string, n int) {
	if r == nil {
		return
	}
	r.Channels.WithLabelValues(state).Set(float64(n))
}

// UncheckableAdded counts one channel written to the uncheckable list.
func (r *Recorder) UncheckableAdded() {
	if r == nil {
		return
	}
	r.Uncheckable.Inc()
}

// Registry exposes the private registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry for the node_exporter textfile
// collector. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
