package gate

import (
	"context"
	"io"

	"github.com/hashicorp/go-multierror"
)

// InputGate is the network-fed collaborator the aligner wraps (spec §4.3,
// §1 "out of scope"): it owns the actual channel transport and honors
// blocking by withholding delivery from blocked channels until they are
// resumed.
type InputGate interface {
	// PollNext returns the next (channel, item) pair, blocking until one is
	// available, the gate is closed, or ctx is done. err is io.EOF once the
	// gate is exhausted (every channel closed and drained).
	PollNext(ctx context.Context) (channelIdx int, item Item, err error)
	// BlockConsumption tells the gate to stop delivering from these
	// channels until a matching ResumeConsumption; the dual of
	// resumeConsumption implied by spec §4.1.1 rule 5's "instruct the gate
	// to stop delivering from c". Idempotent on already-blocked channels.
	BlockConsumption(channelIndices []int)
	// ResumeConsumption unblocks a batch of channels in one call. Idempotent
	// on channels that are already unblocked.
	ResumeConsumption(channelIndices []int)
	NumberOfInputChannels() int
	IsFinished() bool
	Close() error
}

// CheckpointedInputGate is the façade in spec §4.2: it drives the
// BarrierAligner over an InputGate and exposes the operations a task needs.
type CheckpointedInputGate struct {
	underlying InputGate
	aligner    *BarrierAligner
	metrics    Metrics

	pending []BufferOrEvent
	closed  bool
}

// NewCheckpointedInputGate wraps underlying with the given aligner. metr
// records buffers recycled on Close; pass
// NoopMetrics if no instrumentation is wanted.
func NewCheckpointedInputGate(underlying InputGate, aligner *BarrierAligner, metr Metrics) *CheckpointedInputGate {
	return &CheckpointedInputGate{underlying: underlying, aligner: aligner, metrics: metr}
}

// PollNext returns the next in-order item for the operator, or (zero, false,
// nil) once the gate is finished. It loops internally pulling from the
// underlying gate and feeding the aligner until something is emitted or the
// gate is exhausted, per spec §4.2.
func (g *CheckpointedInputGate) PollNext(ctx context.Context) (BufferOrEvent, bool, error) {
	for len(g.pending) == 0 {
		if g.underlying.IsFinished() {
			return BufferOrEvent{}, false, nil
		}
		channelIdx, item, err := g.underlying.PollNext(ctx)
		if err == io.EOF {
			return BufferOrEvent{}, false, nil
		}
		if err != nil {
			return BufferOrEvent{}, false, err
		}

		emit, resume, block := g.aligner.Process(channelIdx, item)
		if len(block) > 0 {
			g.underlying.BlockConsumption(block)
		}
		if len(resume) > 0 {
			g.underlying.ResumeConsumption(resume)
		}
		g.pending = append(g.pending, emit...)
	}

	next := g.pending[0]
	g.pending = g.pending[1:]
	return next, true, nil
}

// IsFinished reports whether the underlying gate is finished and there is no
// queued output left to drain.
func (g *CheckpointedInputGate) IsFinished() bool {
	return g.underlying.IsFinished() && len(g.pending) == 0
}

// Close closes the underlying gate and recycles any buffers still queued in
// this façade. It is idempotent.
func (g *CheckpointedInputGate) Close() error {
	if g.closed {
		return nil
	}
	g.closed = true

	var result *multierror.Error
	if err := g.underlying.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	for _, boe := range g.pending {
		if boe.Item.Buffer != nil {
			boe.Item.Buffer.Recycle()
			g.metrics.RecordBufferRecycled()
		}
	}
	g.pending = nil
	return result.ErrorOrNil()
}

// AlignmentDurationNanos is the duration of the last completed alignment.
func (g *CheckpointedInputGate) AlignmentDurationNanos() int64 { return g.aligner.AlignmentDurationNanos() }

// CheckpointStartDelayNanos is now - triggerTimestampMs at the first barrier
// of the most recent pending checkpoint.
func (g *CheckpointedInputGate) CheckpointStartDelayNanos() int64 {
	return g.aligner.CheckpointStartDelayNanos()
}

// LatestCheckpointID is the id of the most recent pending checkpoint.
func (g *CheckpointedInputGate) LatestCheckpointID() int64 { return g.aligner.LatestCheckpointID() }
