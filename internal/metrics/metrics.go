// Package metrics exposes Prometheus metrics for executions.
package metrics

import (
	"github.com/caffeineduck/runbox/executor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes reported in the outcome label.
const (
	OutcomeOK          = "ok"
	OutcomeTimeout     = "timeout"
	OutcomeCompile     = "compile_error"
	OutcomeLoad        = "load_error"
	OutcomeRuntime     = "runtime_error"
	OutcomeUnsupported = "unsupported"
	OutcomeCancelled   = "cancelled"
	OutcomeInternal    = "internal_error"
)

// Metrics holds the collectors the HTTP service updates.
type Metrics struct {
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	RateLimitHits     prometheus.Counter
}

// New registers the runbox metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runbox_executions_total",
				Help: "Total number of code executions",
			},
			[]string{"language", "outcome"},
		),
		ExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "runbox_execution_duration_seconds",
				Help:    "Execution duration including runtime load",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"language"},
		),
		RateLimitHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "runbox_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),
	}
}

// UnknownLanguage is the language label for names outside the known set.
const UnknownLanguage = "unknown"

var knownLanguages = func() map[executor.Language]bool {
	known := make(map[executor.Language]bool)
	for _, info := range executor.Languages() {
		known[info.ID] = true
	}
	return known
}()

// Observe records one execution.
func (m *Metrics) Observe(lang executor.Language, res executor.Result) {
	label := LanguageLabel(lang)
	m.ExecutionsTotal.WithLabelValues(label, Outcome(res)).Inc()
	m.ExecutionDuration.WithLabelValues(label).Observe(res.Duration.Seconds())
}

// LanguageLabel keeps the language label bounded: client-supplied names that
// are not known languages collapse into UnknownLanguage.
func LanguageLabel(lang executor.Language) string {
	lang = executor.ParseLanguage(string(lang))
	if !knownLanguages[lang] {
		return UnknownLanguage
	}
	return string(lang)
}

// Outcome classifies a result for the outcome label.
func Outcome(res executor.Result) string {
	switch {
	case res.Success():
		return OutcomeOK
	case res.TimedOut():
		return OutcomeTimeout
	}
	switch res.ErrorTag {
	case "":
		return OutcomeUnsupported
	case executor.TagCompilationFailed:
		return OutcomeCompile
	case executor.TagRuntimeLoadFailed:
		return OutcomeLoad
	case executor.TagCancelled:
		return OutcomeCancelled
	case executor.TagInternal, executor.TagClosed:
		return OutcomeInternal
	default:
		return OutcomeRuntime
	}
}
