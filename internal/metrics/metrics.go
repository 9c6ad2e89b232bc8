// Package metrics defines the Prometheus collectors for the ledger service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transfer outcomes used as label values.
const (
	OutcomeCommitted         = "committed"
	OutcomeInsufficientFunds = "insufficient_funds"
	OutcomeNotFound          = "account_not_found"
	OutcomeConflict          = "conflict_exhausted"
	OutcomeInvalid           = "invalid"
	OutcomeError             = "error"
)

var (
	// TransfersTotal counts transfer attempts by final outcome.
	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_transfers_total",
		Help: "Transfers processed, labeled by outcome.",
	}, []string{"outcome"})

	// TransferRetries counts atomic-unit re-executions after conflicts.
	TransferRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_transfer_retries_total",
		Help: "Atomic unit re-executions caused by concurrent modification conflicts.",
	})

	// TransferDuration observes end-to-end transfer latency in seconds.
	TransferDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_transfer_duration_seconds",
		Help:    "End-to-end transfer duration including retries.",
		Buckets: prometheus.DefBuckets,
	})

	// CascadeDeletes counts cascading account deletions.
	CascadeDeletes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_cascade_deletes_total",
		Help: "Cascading account deletions executed.",
	})
)
