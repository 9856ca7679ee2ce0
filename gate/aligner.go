package gate

import (
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// BarrierAligner is the state machine described in spec §4.1: it consumes
// (channel, Item) pairs from an InputGate, emits ordered BufferOrEvents, and
// signals a CheckpointNotifier as checkpoints align, get subsumed, get
// cancelled, or get aborted by a channel closing.
//
// BarrierAligner is not safe for concurrent use: spec §5 requires it run on
// a single task thread with no internal locking.
type BarrierAligner struct {
	log      log.Logger
	notifier CheckpointNotifier
	metrics  Metrics
	now      func() time.Time

	channels        []*channelState
	numOpenChannels int

	current         *pendingCheckpoint
	latestObservedID int64
	lastCancelledID  int64

	// triggeredIDs remembers which checkpoint ids completed via TriggerOnBarrier,
	// so a cancellation barrier arriving after the fact for that id still
	// reports an abort rather than being silently swallowed (spec §9, the
	// one point the source left ambiguous: this implementation only emits
	// AbortOnBarrier for a cancel with no live pending when the id is known
	// to have triggered). Entries at or below lastCancelledID are pruned each
	// time a cancellation is recorded; while no cancellation arrives, every
	// triggered id stays in the map.
	triggeredIDs map[int64]struct{}

	lastAlignmentNanos           int64
	lastCheckpointStartDelayNanos int64
	latestCheckpointID           int64
}

// NewBarrierAligner constructs an aligner for numChannels input channels, all
// initially open. notifier and metr must be non-nil; pass NoopMetrics if no
// instrumentation is wanted.
func NewBarrierAligner(l log.Logger, notifier CheckpointNotifier, metr Metrics, numChannels int) *BarrierAligner {
	if numChannels <= 0 {
		invariantViolation("barrier aligner requires at least one input channel, got %d", numChannels)
	}
	channels := make([]*channelState, numChannels)
	for i := range channels {
		channels[i] = newChannelState()
	}
	return &BarrierAligner{
		log:             l,
		notifier:        notifier,
		metrics:         metr,
		now:             time.Now,
		channels:        channels,
		numOpenChannels: numChannels,
		latestCheckpointID: -1,
		lastCancelledID:    -1,
		triggeredIDs:       make(map[int64]struct{}),
	}
}

func (a *BarrierAligner) observeID(id int64) {
	if id > a.latestObservedID {
		a.latestObservedID = id
	}
}

func (a *BarrierAligner) openChannels() []int {
	out := make([]int, 0, a.numOpenChannels)
	for i, c := range a.channels {
		if !c.closed {
			out = append(out, i)
		}
	}
	return out
}

// Process feeds one (channel, item) pair from the underlying gate into the
// state machine. It returns the items to emit downstream (zero or one for
// every item variant), the set of channels the caller must resume
// consumption on, and the set of channels the caller must now stop
// delivering from until a future resume, per spec §4.1.2, §4.1.3 and the
// "instruct the gate to stop delivering from c" clause of rule 5 (§4.1.1):
// this aligner's block set is internal, but the underlying gate still has
// to be told which channel just earned it so it can honor §4.1's "never
// delivers from a blocked channel" guarantee.
func (a *BarrierAligner) Process(channelIdx int, item Item) (emit []BufferOrEvent, resume []int, block []int) {
	if channelIdx < 0 || channelIdx >= len(a.channels) {
		invariantViolation("item delivered on out-of-range channel %d (have %d channels)", channelIdx, len(a.channels))
	}
	c := a.channels[channelIdx]

	switch {
	case item.Buffer != nil:
		emit = a.processBuffer(channelIdx, c, item)
		return emit, nil, nil
	case item.Barrier != nil:
		return a.processBarrier(channelIdx, c, item.Barrier)
	case item.CancellationBarrier != nil:
		emit, resume = a.processCancellationBarrier(channelIdx, c, item.CancellationBarrier)
		return emit, resume, nil
	case item.EndOfPartition != nil:
		emit, resume = a.processEndOfPartition(channelIdx, c)
		return emit, resume, nil
	default:
		invariantViolation("empty item delivered on channel %d", channelIdx)
		return nil, nil, nil
	}
}

func (a *BarrierAligner) processBuffer(channelIdx int, c *channelState, item Item) []BufferOrEvent {
	if c.blocked {
		invariantViolation("gate delivered a buffer from blocked channel %d", channelIdx)
	}
	a.metrics.RecordBufferEmitted()
	return []BufferOrEvent{{Item: item, Channel: InputChannelInfo{ChannelIdx: channelIdx}}}
}

func (a *BarrierAligner) processBarrier(channelIdx int, c *channelState, b *Barrier) (emit []BufferOrEvent, resume []int, block []int) {
	if c.closed {
		invariantViolation("barrier %d delivered on closed channel %d", b.ID, channelIdx)
	}
	a.observeID(b.ID)

	// Rule 1: late or duplicate.
	if b.ID <= c.lastBarrierID {
		a.log.Debug("dropping barrier, already observed on this channel", "channel", channelIdx, "id", b.ID, "lastSeen", c.lastBarrierID)
		a.metrics.RecordBarrierDropped()
		return nil, nil, nil
	}

	if a.current != nil && b.ID < a.current.id {
		// Rule 2: a cancellation or subsumption already retired this id globally.
		a.log.Debug("dropping barrier, lower than the in-flight checkpoint", "channel", channelIdx, "id", b.ID, "pending", a.current.id)
		a.metrics.RecordBarrierDropped()
		return nil, nil, nil
	}

	if a.current != nil && b.ID > a.current.id {
		// Rule 3: subsumption.
		resume = append(resume, a.subsume()...)
	}

	if a.current == nil {
		// Rule 4: open (or continue, after subsumption above).
		a.current = newPendingCheckpoint(b.ID, a.now(), b.TriggerTimestampMs, a.openChannels(), channelIdx)
		a.latestCheckpointID = b.ID
		startDelay := a.current.startDelayNanos(a.now().UnixMilli())
		a.lastCheckpointStartDelayNanos = startDelay
		a.metrics.RecordCheckpointStartDelay(startDelay)
	}

	// Rule 5 (and rule 6, single-channel, handled by construction: awaiting
	// is already empty when there was only one open channel to begin with).
	c.lastBarrierID = b.ID
	complete := a.current.ackChannel(channelIdx)
	if complete {
		completionEmit, completionResume := a.completeCurrent(channelIdx, b)
		emit = append(emit, completionEmit...)
		resume = append(resume, completionResume...)
		return emit, resume, nil
	}

	c.blocked = true
	a.metrics.RecordBlockedChannels(len(a.current.blocked))
	a.log.Debug("blocking channel pending barrier alignment", "channel", channelIdx, "id", b.ID, "awaiting", len(a.current.awaiting))
	return emit, resume, []int{channelIdx}
}

// subsume aborts the current pending checkpoint because a strictly higher
// barrier id has been observed, and returns the channels to resume.
func (a *BarrierAligner) subsume() []int {
	p := a.current
	a.log.Info("checkpoint subsumed by a newer barrier", "id", p.id)
	a.notifier.AbortOnBarrier(p.id, CheckpointDeclinedSubsumed)
	resume := p.blockedChannels()
	a.unblock(resume)
	a.current = nil
	return resume
}

// completeCurrent fires TriggerOnBarrier for the checkpoint that just
// finished aligning (spec §4.1.2), and re-emits the completing barrier
// downstream for visibility (spec §6).
func (a *BarrierAligner) completeCurrent(channelIdx int, b *Barrier) (emit []BufferOrEvent, resume []int) {
	p := a.current

	// spec §4.1.2: no channel ever had to wait for this one (the
	// single-channel case, or more generally any time the completing
	// barrier is the first and only one to arrive) takes no measurable
	// alignment time by construction, not by the luck of two close
	// clock reads landing on the same instant.
	var alignmentNanos int64
	if len(p.blocked) > 0 {
		alignmentNanos = p.alignmentNanos(a.now())
	}
	a.lastAlignmentNanos = alignmentNanos
	a.metrics.RecordAlignmentDuration(alignmentNanos)

	a.notifier.TriggerOnBarrier(
		CheckpointMetadata{ID: p.id, Timestamp: p.triggerTimestampMs},
		b.Options,
		CheckpointMetrics{AlignmentDurationNanos: alignmentNanos},
	)
	a.triggeredIDs[p.id] = struct{}{}

	resume = p.blockedChannels()
	a.unblock(resume)
	a.observeID(p.id)
	a.current = nil

	a.log.Info("checkpoint aligned", "id", p.id, "alignmentNanos", alignmentNanos)
	return []BufferOrEvent{{Item: BarrierItem(b), Channel: InputChannelInfo{ChannelIdx: channelIdx}}}, resume
}

func (a *BarrierAligner) unblock(channels []int) {
	for _, idx := range channels {
		a.channels[idx].blocked = false
	}
	a.metrics.RecordBlockedChannels(0)
}

func (a *BarrierAligner) processCancellationBarrier(channelIdx int, c *channelState, cb *CancellationBarrier) (emit []BufferOrEvent, resume []int) {
	a.observeID(cb.ID)
	emitItem := BufferOrEvent{Item: CancellationBarrierItem(cb), Channel: InputChannelInfo{ChannelIdx: channelIdx}}

	switch {
	case a.current != nil && cb.ID == a.current.id:
		a.log.Info("checkpoint cancelled", "id", cb.ID)
		a.notifier.AbortOnBarrier(cb.ID, CheckpointDeclinedOnCancellationBarrier)
		resume = a.current.blockedChannels()
		a.unblock(resume)
		a.current = nil
		c.lastBarrierID = cb.ID
		a.setCancelled(cb.ID)

	case a.current != nil && cb.ID > a.current.id:
		resume = append(resume, a.subsume()...)
		a.setCancelled(cb.ID)

	case a.current != nil && cb.ID < a.current.id:
		return nil, nil

	case cb.ID <= a.lastCancelledID:
		return nil, nil

	default: // current == nil && cb.ID > lastCancelledID
		_, wasTriggered := a.triggeredIDs[cb.ID]
		a.setCancelled(cb.ID)
		if wasTriggered {
			a.notifier.AbortOnBarrier(cb.ID, CheckpointDeclinedOnCancellationBarrier)
		}
	}

	return []BufferOrEvent{emitItem}, resume
}

// setCancelled records id as cancelled and prunes triggeredIDs entries that
// can no longer be queried (spec §4.1.1's "remember via lastCancelledId").
func (a *BarrierAligner) setCancelled(id int64) {
	if id > a.lastCancelledID {
		a.lastCancelledID = id
	}
	for tid := range a.triggeredIDs {
		if tid <= a.lastCancelledID {
			delete(a.triggeredIDs, tid)
		}
	}
}

func (a *BarrierAligner) processEndOfPartition(channelIdx int, c *channelState) (emit []BufferOrEvent, resume []int) {
	if a.current != nil && (a.current.isAwaiting(channelIdx) || a.current.isBlocked(channelIdx)) {
		a.log.Warn("checkpoint aborted by channel close", "id", a.current.id, "channel", channelIdx)
		a.notifier.AbortOnBarrier(a.current.id, CheckpointDeclinedOnCloseOfChannel)
		resume = a.current.blockedChannels()
		a.unblock(resume)
		a.current = nil
	}

	c.closed = true
	a.numOpenChannels--

	return []BufferOrEvent{{Item: EndOfPartitionItem(), Channel: InputChannelInfo{ChannelIdx: channelIdx}}}, resume
}

// AlignmentDurationNanos is the duration of the last completed alignment (0
// if none occurred yet, or the checkpoint completed on a single channel).
func (a *BarrierAligner) AlignmentDurationNanos() int64 { return a.lastAlignmentNanos }

// CheckpointStartDelayNanos is now - triggerTimestampMs computed at the
// first barrier of the most recently opened pending checkpoint.
func (a *BarrierAligner) CheckpointStartDelayNanos() int64 { return a.lastCheckpointStartDelayNanos }

// LatestCheckpointID is the id of the most recently opened pending
// checkpoint, whether it went on to complete, get subsumed, or get
// cancelled.
func (a *BarrierAligner) LatestCheckpointID() int64 { return a.latestCheckpointID }

// NumOpenChannels reports how many of the aligner's channels have not yet
// delivered an EndOfPartition.
func (a *BarrierAligner) NumOpenChannels() int { return a.numOpenChannels }

// HasPendingCheckpoint reports whether a checkpoint is currently aligning.
func (a *BarrierAligner) HasPendingCheckpoint() bool { return a.current != nil }
