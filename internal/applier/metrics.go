package applier

import "github.com/prometheus/client_golang/prometheus"

// Pass outcomes.
const (
	OutcomeApplied = "applied" // every fragment injected
	OutcomePartial = "partial" // some fragments failed
	OutcomeFailed  = "failed"  // every fragment failed
	OutcomeEmpty   = "empty"   // nothing matched
	OutcomeSkipped = "skipped" // signature unchanged
)

// Fragment outcomes.
const (
	FragmentInjected = "injected"
	FragmentFailed   = "failed"
)

// Metrics counts applier activity.
type Metrics struct {
	Passes    *prometheus.CounterVec
	Fragments *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them on reg when it is not
// nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cloudywindow",
			Subsystem: "applier",
			Name:      "passes_total",
			Help:      "Apply passes by outcome.",
		}, []string{"outcome"}),
		Fragments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cloudywindow",
			Subsystem: "applier",
			Name:      "fragments_total",
			Help:      "CSS fragments injected or failed.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.Passes, m.Fragments)
	}
	return m
}
