// Package metrics holds the prometheus collectors of the sequencer. They are
// registered in the default registry and exposed by the API at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "zkacc"

var (
	// VotesReceived counts the votes accepted into the pending queues.
	VotesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "votes_received_total",
		Help:      "Number of votes accepted into the pending queues.",
	})
	// ReceiptsProved counts the receipts produced by the provers.
	ReceiptsProved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "receipts_proved_total",
		Help:      "Number of receipts proved.",
	})
	// ReceiptsSettled counts the receipts applied to a contract state.
	ReceiptsSettled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "receipts_settled_total",
		Help:      "Number of receipts settled.",
	})
	// SettlementFailures counts the receipts dropped by the settlement layer,
	// labelled by reason.
	SettlementFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settlement_failures_total",
		Help:      "Number of receipts rejected by the settlement layer.",
	}, []string{"reason"})
	// PendingVotes is the number of votes waiting to be proved.
	PendingVotes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pending_votes",
		Help:      "Number of votes waiting to be proved.",
	})
	// ProvingDuration observes the time spent proving a batch.
	ProvingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "proving_duration_seconds",
		Help:      "Time spent proving a batch of votes.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})
)

// Settlement failure reasons.
const (
	ReasonInvalid       = "invalid"
	ReasonDuplicate     = "duplicate"
	ReasonUnknown       = "unknown_contract"
	ReasonUnknownProver = "unknown_prover"
	ReasonInternal      = "internal"
)
