// Package metrics exposes Prometheus counters for query execution and a
// plan observer that feeds them.
package metrics

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"

	"github.com/roach88/quadmatch/internal/ir"
)

var (
	// DispatchTotal counts executed operators by the strategy that ran them.
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quadmatch_dispatch_total",
			Help: "Total number of operators executed, by strategy",
		},
		[]string{"strategy"},
	)
	// FallbackTotal counts operators handed from the row engine to the
	// nested evaluator.
	FallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quadmatch_fallback_total",
			Help: "Total number of fallbacks to the nested evaluator, by reason",
		},
		[]string{"reason"},
	)
	// ScanRowsTotal counts rows read from storage by plan steps.
	ScanRowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quadmatch_scan_rows_total",
		Help: "Total number of rows read from storage scans",
	})
	// JoinBuildRowsTotal counts rows inserted into hash join tables.
	JoinBuildRowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quadmatch_join_build_rows_total",
		Help: "Total number of rows on the build side of hash joins",
	})
	// JoinOutputRowsTotal counts rows emitted by hash joins.
	JoinOutputRowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quadmatch_join_output_rows_total",
		Help: "Total number of rows emitted by hash joins",
	})
	// ExecuteDuration is the wall time of operator execution up to the
	// point its result iterator is returned or drained.
	ExecuteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quadmatch_execute_duration_seconds",
			Help:    "Operator execution latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)
)

// Observer feeds plan step row counts and dispatch counts into the package
// counters. The zero value is ready to use.
type Observer struct{}

// Dispatched counts one operator run by strategy and records its latency.
func (Observer) Dispatched(strategy string, elapsed time.Duration) {
	DispatchTotal.WithLabelValues(strategy).Inc()
	ExecuteDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
}

// FellBack counts one hand-off to the nested evaluator.
func (Observer) FellBack(reason string) {
	FallbackTotal.WithLabelValues(reason).Inc()
}

// ScanRows implements plan.Observer.
func (Observer) ScanRows(_ ir.Pattern, n int) {
	ScanRowsTotal.Add(float64(n))
}

// BuildRows implements plan.Observer.
func (Observer) BuildRows(_ ir.Pattern, n int) {
	JoinBuildRowsTotal.Add(float64(n))
}

// JoinRows implements plan.Observer.
func (Observer) JoinRows(_ ir.Pattern, n int) {
	JoinOutputRowsTotal.Add(float64(n))
}

// WriteText writes every metric family of g in the Prometheus text
// exposition format. Only families whose name starts with prefix are
// written; an empty prefix writes everything.
func WriteText(w io.Writer, g prometheus.Gatherer, prefix string) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if prefix != "" && !strings.HasPrefix(mf.GetName(), prefix) {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
