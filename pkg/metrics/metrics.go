// Package metrics holds the prometheus collectors for the construction
// engine. Collectors register with the default registry on import; the
// server exposes them on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// solvePasses counts solver passes by outcome ("ok", "invariant", "skipped").
	solvePasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "compass_solve_passes_total",
		Help: "Solver passes by outcome",
	}, []string{"outcome"})

	solveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "compass_solve_duration_seconds",
		Help:    "Solver pass duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 14), // 10us to ~80ms
	})

	// solvedObjects counts recomputed objects by result ("resolved", "absent").
	solvedObjects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "compass_solved_objects_total",
		Help: "Objects recomputed by the solver, by result",
	}, []string{"result"})

	rebuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "compass_spatial_rebuild_duration_seconds",
		Help:    "Spatial hash rebuild duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 14),
	})

	spatialCells = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "compass_spatial_cells",
		Help: "Occupied cells after the last spatial hash rebuild",
	})

	// snapQueries counts snap queries by target kind ("point", "line", "intersection", "none").
	snapQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "compass_snap_queries_total",
		Help: "Snap queries by target kind",
	}, []string{"kind"})

	// rejectedEdits counts structural edits refused by the dependency graph.
	rejectedEdits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "compass_rejected_edits_total",
		Help: "Structural edits rejected, by error kind",
	}, []string{"reason"})

	evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "compass_script_evaluations_total",
		Help: "Construction script evaluations by outcome",
	}, []string{"outcome"})

	sessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "compass_live_sessions",
		Help: "Open websocket sessions",
	})
)

// ObserveSolve records a completed solver pass.
func ObserveSolve(d time.Duration, resolved, absent int) {
	solvePasses.WithLabelValues("ok").Inc()
	solveDuration.Observe(d.Seconds())
	solvedObjects.WithLabelValues("resolved").Add(float64(resolved))
	solvedObjects.WithLabelValues("absent").Add(float64(absent))
}

// SolveAborted records a pass aborted by an invariant violation.
func SolveAborted() { solvePasses.WithLabelValues("invariant").Inc() }

// SolveSkipped records a frame in which the solver had nothing to do.
func SolveSkipped() { solvePasses.WithLabelValues("skipped").Inc() }

// ObserveRebuild records a spatial hash rebuild.
func ObserveRebuild(d time.Duration, cells int) {
	rebuildDuration.Observe(d.Seconds())
	spatialCells.Set(float64(cells))
}

// SnapQuery records a snap query result.
func SnapQuery(kind string) { snapQueries.WithLabelValues(kind).Inc() }

// RejectedEdit records a refused structural edit.
func RejectedEdit(reason string) { rejectedEdits.WithLabelValues(reason).Inc() }

// Evaluation records a script evaluation ("ok", "script_error", "timeout", "failed").
func Evaluation(outcome string) { evaluations.WithLabelValues(outcome).Inc() }

// SessionOpened and SessionClosed track live websocket sessions.
func SessionOpened() { sessions.Inc() }
func SessionClosed() { sessions.Dec() }
