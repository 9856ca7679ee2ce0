package main

import (
	gethlog "github.com/ethereum/go-ethereum/log"

	"github.com/cpstream/aligner/gate"
)

// loggingNotifier is the demo binary's gate.CheckpointNotifier: it has no
// durable storage to write a checkpoint to, so it just logs the lifecycle
// events a real notifier would turn into snapshot writes or abort handling.
type loggingNotifier struct {
	log gethlog.Logger
}

func newLoggingNotifier(l gethlog.Logger) *loggingNotifier {
	return &loggingNotifier{log: l}
}

func (n *loggingNotifier) TriggerOnBarrier(meta gate.CheckpointMetadata, opts gate.CheckpointOptions, metrics gate.CheckpointMetrics) {
	n.log.Info("checkpoint aligned",
		"id", meta.ID,
		"alignmentMode", opts.AlignmentMode,
		"alignmentDurationNanos", metrics.AlignmentDurationNanos,
	)
}

func (n *loggingNotifier) AbortOnBarrier(id int64, reason gate.CheckpointFailureReason) {
	n.log.Warn("checkpoint aborted", "id", id, "reason", reason)
}

var _ gate.CheckpointNotifier = (*loggingNotifier)(nil)
