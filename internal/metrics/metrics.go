// Package metrics exposes QuranScope activity as Prometheus collectors.
//
// Collectors live on a private registry so that tests and embedded servers
// do not collide with the global default registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	qerrors "github.com/FocuswithJustin/QuranScope/core/errors"
	"github.com/FocuswithJustin/QuranScope/core/explain"
	"github.com/FocuswithJustin/QuranScope/core/keyword"
	"github.com/FocuswithJustin/QuranScope/core/themes"
)

const namespace = "quranscope"

// Recorder holds the collectors. It implements reader.Observer.
type Recorder struct {
	registry *prometheus.Registry

	searches       *prometheus.CounterVec
	chapterLoads   *prometheus.CounterVec
	keywordLatency prometheus.Histogram
	themeLatency   prometheus.Histogram
	explainStreams *prometheus.CounterVec
	explainBytes   prometheus.Counter
	wsClients      prometheus.Gauge
	sessions       prometheus.Gauge
}

// New creates a Recorder with its own registry, including the Go runtime
// and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Searches by kind (theme, keyword) and outcome.",
		}, []string{"kind", "outcome"}),
		chapterLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chapter_loads_total",
			Help:      "Chapter file fetches by result (ok, missing, error).",
		}, []string{"result"}),
		keywordLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "keyword_search_duration_seconds",
			Help:      "Wall time of completed keyword scans.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		themeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "theme_search_duration_seconds",
			Help:      "Wall time of theme searches.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
		explainStreams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "explain_streams_total",
			Help:      "Finished explanation streams by cache state and final state.",
		}, []string{"cache", "state"}),
		explainBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "explain_stream_bytes_total",
			Help:      "Body bytes received from the explanation service.",
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected search sockets.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Live reader sessions.",
		}),
	}
	r.registry.MustRegister(
		r.searches, r.chapterLoads, r.keywordLatency, r.themeLatency,
		r.explainStreams, r.explainBytes, r.wsClients, r.sessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the private registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ChapterLoaded counts a chapter fetch.
func (r *Recorder) ChapterLoaded(_ int, err error) {
	result := "ok"
	switch {
	case err == nil:
	case qerrors.IsNotFound(err):
		result = "missing"
	default:
		result = "error"
	}
	r.chapterLoads.WithLabelValues(result).Inc()
}

// ThemeSearched counts a theme search.
func (r *Recorder) ThemeSearched(out themes.Outcome, d time.Duration) {
	outcome := "matched"
	switch {
	case out.Theme == "" && len(out.Suggestions) > 0:
		outcome = "suggested"
	case out.Theme == "":
		outcome = "empty"
	}
	r.searches.WithLabelValues("theme", outcome).Inc()
	r.themeLatency.Observe(d.Seconds())
}

// KeywordFinished counts a finished keyword run. Only completed runs
// contribute to the latency histogram.
func (r *Recorder) KeywordFinished(run *keyword.Run) {
	if run.Query == "" {
		return
	}
	outcome := "completed"
	if run.Cancelled() {
		outcome = "cancelled"
	} else {
		r.keywordLatency.Observe(run.Duration().Seconds())
	}
	r.searches.WithLabelValues("keyword", outcome).Inc()
}

// ExplainFinished counts a finished explanation stream.
func (r *Recorder) ExplainFinished(_ explain.Request, snap explain.Snapshot, bytes int64) {
	r.explainStreams.WithLabelValues(cacheLabel(snap.Cache), snap.State.String()).Inc()
	r.explainBytes.Add(float64(bytes))
}

// WebSocketConnected adjusts the socket gauge by delta.
func (r *Recorder) WebSocketConnected(delta int) {
	r.wsClients.Add(float64(delta))
}

// SetSessions records the number of live sessions.
func (r *Recorder) SetSessions(n int) {
	r.sessions.Set(float64(n))
}

func cacheLabel(c explain.CacheState) string {
	if c == explain.CacheUnknown {
		return "unknown"
	}
	return c.String()
}
