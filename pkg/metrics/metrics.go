// Package metrics provides Prometheus counters for the scan pipeline.
// All metrics are registered automatically at package init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LinesScanned counts every line pulled from a partition, per table.
	LinesScanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lflog",
			Name:      "lines_scanned_total",
			Help:      "Total log lines read from partitions",
		},
		[]string{"table"},
	)

	// LinesMatched counts lines that matched the pattern and produced a row.
	LinesMatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lflog",
			Name:      "lines_matched_total",
			Help:      "Total log lines that matched the pattern",
		},
		[]string{"table"},
	)

	// LinesSkipped counts lines dropped because the pattern did not match.
	LinesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lflog",
			Name:      "lines_skipped_total",
			Help:      "Total log lines skipped as non-matching",
		},
		[]string{"table"},
	)

	// BatchesEmitted counts record batches handed to the SQL engine.
	BatchesEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lflog",
			Name:      "batches_emitted_total",
			Help:      "Total record batches emitted by partition scans",
		},
		[]string{"table"},
	)

	// PartitionsPlanned counts partitions created by the planner.
	PartitionsPlanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lflog",
			Name:      "partitions_planned_total",
			Help:      "Total partitions created for scans",
		},
		[]string{"table"},
	)
)
