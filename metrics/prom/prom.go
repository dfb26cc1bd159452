// Package prom exports list cache and poll activity as Prometheus metrics.
package prom

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/deltacache/deltasync"
	"github.com/IvanBrykalov/deltacache/listcache"
)

// Adapter implements listcache.Metrics and deltasync.Observer.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evicts    *prometheus.CounterVec
	entries   prometheus.Gauge
	bytes     prometheus.Gauge
	polls     *prometheus.CounterVec
	deltaSize *prometheus.HistogramVec
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "List cache hits",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "List cache misses (absent, expired or corrupt)",
			ConstLabels: constLabels,
		}),
		evicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "evictions_total",
				Help:        "List cache evictions by reason",
				ConstLabels: constLabels,
			},
			[]string{"reason"},
		),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "entries",
			Help:        "Number of resident lists",
			ConstLabels: constLabels,
		}),
		bytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "compressed_bytes",
			Help:        "Total compressed size of resident lists",
			ConstLabels: constLabels,
		}),
		polls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "polls_total",
				Help:        "Answered polls by resource type and whether the answer was a full list",
				ConstLabels: constLabels,
			},
			[]string{"resource", "full"},
		),
		deltaSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "delta_items",
				Help:        "Items sent per incremental poll (changed plus removed)",
				Buckets:     []float64{0, 1, 5, 10, 50, 100, 500, 1000},
				ConstLabels: constLabels,
			},
			[]string{"resource"},
		),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.entries, a.bytes, a.polls, a.deltaSize)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter with a reason label.
func (a *Adapter) Evict(r listcache.EvictReason) {
	a.evicts.WithLabelValues(r.String()).Inc()
}

// Size updates gauges for resident lists and their compressed size.
func (a *Adapter) Size(entries int, bytes int64) {
	a.entries.Set(float64(entries))
	a.bytes.Set(float64(bytes))
}

// ObserveSync counts the poll; incremental answers also record their size.
func (a *Adapter) ObserveSync(rt listcache.ResourceType, full bool, changed, removed, _ int) {
	a.polls.WithLabelValues(string(rt), strconv.FormatBool(full)).Inc()
	if !full {
		a.deltaSize.WithLabelValues(string(rt)).Observe(float64(changed + removed))
	}
}

// Compile-time checks.
var (
	_ listcache.Metrics  = (*Adapter)(nil)
	_ deltasync.Observer = (*Adapter)(nil)
)
