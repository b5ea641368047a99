// Package metrics defines the Prometheus collectors for the attendance
// service. Collectors register on the default registry at init and are
// served by promhttp at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for CellsSaved.
const (
	OutcomeWritten = "written"
	OutcomeDeleted = "deleted"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// ─── Ledger ─────────────────────────────────────────────────────────────────

// Edits counts accepted grid mutations by operation
// (set_cell, fill_range, undo, redo, bonus).
var Edits = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "attendance",
	Subsystem: "ledger",
	Name:      "edits_total",
	Help:      "Total accepted ledger mutations by operation.",
}, []string{"op"})

// CellsSaved counts dirty cells processed by save, by outcome.
var CellsSaved = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "attendance",
	Subsystem: "ledger",
	Name:      "cells_saved_total",
	Help:      "Dirty cells processed by save, by outcome.",
}, []string{"outcome"})

var SaveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "attendance",
	Subsystem: "ledger",
	Name:      "save_duration_seconds",
	Help:      "Wall time of a full save including the reload.",
	Buckets:   prometheus.DefBuckets,
})

var LoadFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "attendance",
	Subsystem: "ledger",
	Name:      "load_failures_total",
	Help:      "Month loads that failed, by stage.",
}, []string{"stage"})

// BonusWrites counts bonus upserts by result (ok, rolled_back).
var BonusWrites = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "attendance",
	Subsystem: "ledger",
	Name:      "bonus_writes_total",
	Help:      "Bonus upserts by result.",
}, []string{"result"})

// ─── Sessions ───────────────────────────────────────────────────────────────

var OpenSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "attendance",
	Subsystem: "sessions",
	Name:      "open",
	Help:      "Ledger sessions currently held in memory.",
})

var SessionsEvicted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "attendance",
	Subsystem: "sessions",
	Name:      "evicted_total",
	Help:      "Sessions dropped from memory, by reason (idle, closed, roster).",
}, []string{"reason"})
