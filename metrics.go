package storyengine

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eringen/storyengine/asset"
	"github.com/eringen/storyengine/compose"
	"github.com/eringen/storyengine/fragment"
	"github.com/eringen/storyengine/oracle"
)

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "storyengine"

// Metrics holds the Prometheus collectors for the submission pipeline.
type Metrics struct {
	SubmissionsTotal   *prometheus.CounterVec
	SubmissionDuration prometheus.Histogram
	WarningsTotal      *prometheus.CounterVec
	AssetsTotal        *prometheus.CounterVec
	DraftsTotal        *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics creates and registers the collectors on reg. A nil reg gets a
// private registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		SubmissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Name:      "submissions_total",
				Help:      "Submissions processed, by outcome",
			},
			[]string{"status"},
		),
		SubmissionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: MetricsNamespace,
				Name:      "submission_duration_seconds",
				Help:      "Time spent processing one submission",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		WarningsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Name:      "warnings_total",
				Help:      "Non-fatal diagnostics raised while processing submissions",
			},
			[]string{"kind"},
		),
		AssetsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Name:      "assets_resolved_total",
				Help:      "Source images resolved, by classification",
			},
			[]string{"kind"},
		),
		DraftsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Name:      "drafts_total",
				Help:      "Metadata drafts requested, by outcome",
			},
			[]string{"status"},
		),
		gatherer: reg,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) observeSubmission(status string, started, finished time.Time) {
	m.SubmissionsTotal.WithLabelValues(status).Inc()
	m.SubmissionDuration.Observe(finished.Sub(started).Seconds())
}

func (m *Metrics) observeWarning(err error) {
	m.WarningsTotal.WithLabelValues(warningKind(err)).Inc()
}

func (m *Metrics) observeAsset(kind asset.Kind) {
	if kind == "" {
		kind = "degraded"
	}
	m.AssetsTotal.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) observeDraft(status string) {
	m.DraftsTotal.WithLabelValues(status).Inc()
}

// warningKind maps a diagnostic to a low-cardinality label.
func warningKind(err error) string {
	var (
		fetchErr  *asset.FetchError
		uploadErr *asset.UploadError
		anchorErr *compose.MissingAnchorError
		tokenErr  *compose.UnresolvedTokenError
		parseErr  *oracle.ParseError
	)
	switch {
	case errors.As(err, &fetchErr):
		return "fetch"
	case errors.As(err, &uploadErr):
		return "upload"
	case errors.As(err, &anchorErr):
		return "missing_anchor"
	case errors.As(err, &tokenErr):
		return "unresolved_token"
	case errors.As(err, &parseErr):
		return "oracle_parse"
	case errors.Is(err, fragment.ErrStyleNotFound):
		return "style_not_found"
	case errors.Is(err, fragment.ErrStoryNotFound):
		return "story_not_found"
	case errors.Is(err, compose.ErrBracedURLs):
		return "braced_urls"
	case errors.Is(err, compose.ErrEmptyDirectory):
		return "attribution"
	default:
		return "other"
	}
}
