package logger

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// MetricLogStatements counts written log lines per level.
const MetricLogStatements = "settings_log_statements_total"

var (
	statementsOnce sync.Once              //nolint:gochecknoglobals
	statements     *prometheus.CounterVec //nolint:gochecknoglobals
)

// StatementsHook counts log lines per level. Lines without a level (access log) are skipped.
type StatementsHook struct {
	counter *prometheus.CounterVec
}

// Run implements zerolog.Hook.
func (h StatementsHook) Run(_ *zerolog.Event, level zerolog.Level, _ string) {
	if level == zerolog.NoLevel || h.counter == nil {
		return
	}

	h.counter.WithLabelValues(level.String()).Inc()
}

// NewStatementsHook returns the hook. The counter is registered once per process,
// the service label is fixed by the first call.
func NewStatementsHook(service string) StatementsHook {
	statementsOnce.Do(func() {
		statements = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        MetricLogStatements,
				Help:        "Number of log statements of the settings service, by level.",
				ConstLabels: prometheus.Labels{"service": service},
			},
			[]string{"level"},
		)
	})

	return StatementsHook{counter: statements}
}
