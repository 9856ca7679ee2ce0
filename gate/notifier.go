package gate

import "fmt"

// CheckpointFailureReason enumerates why a checkpoint will not complete;
// spec §7.
type CheckpointFailureReason int

const (
	CheckpointDeclinedOnCancellationBarrier CheckpointFailureReason = iota
	CheckpointDeclinedSubsumed
	CheckpointDeclinedOnCloseOfChannel
	// CheckpointDeclinedTaskNotReady is never emitted by the aligner; it is
	// only here so a notifier can surface it upward with the same type.
	CheckpointDeclinedTaskNotReady
	// CheckpointFailureUnknown is reserved; the aligner never emits it.
	CheckpointFailureUnknown
)

func (r CheckpointFailureReason) String() string {
	switch r {
	case CheckpointDeclinedOnCancellationBarrier:
		return "declined-on-cancellation-barrier"
	case CheckpointDeclinedSubsumed:
		return "declined-subsumed"
	case CheckpointDeclinedOnCloseOfChannel:
		return "declined-on-close-of-channel"
	case CheckpointDeclinedTaskNotReady:
		return "declined-task-not-ready"
	default:
		return "unknown"
	}
}

// CheckpointMetadata identifies the checkpoint a trigger applies to.
type CheckpointMetadata struct {
	ID        int64
	Timestamp int64
}

// CheckpointMetrics carries the measurements collected during alignment.
type CheckpointMetrics struct {
	AlignmentDurationNanos int64
}

// CheckpointNotifier is the downstream sink for alignment lifecycle events
// (spec §6). Both methods are invoked synchronously on the task thread that
// drives CheckpointedInputGate.PollNext.
type CheckpointNotifier interface {
	// TriggerOnBarrier is called once alignment for a checkpoint completes.
	TriggerOnBarrier(meta CheckpointMetadata, opts CheckpointOptions, metrics CheckpointMetrics)
	// AbortOnBarrier is called once alignment for a checkpoint is known to
	// never complete.
	AbortOnBarrier(id int64, reason CheckpointFailureReason)
}

// InvariantViolation is panicked, never returned, for conditions §7 calls
// fatal: a bug in a collaborator rather than a protocol outcome.
type InvariantViolation struct {
	Msg string
}

func (e InvariantViolation) Error() string { return e.Msg }

func invariantViolation(format string, args ...any) {
	panic(InvariantViolation{Msg: fmt.Sprintf(format, args...)})
}
