package gate

import "fmt"

// AlignmentMode selects how a checkpoint's barriers are handled as they
// arrive on different input channels. The aligner itself only implements
// Aligned and AtLeastOnce; the other values pass through untouched so a
// caller composing this package with an unaligned-checkpointing layer can
// still describe its options through the same type.
type AlignmentMode int

const (
	AlignmentModeAligned AlignmentMode = iota
	AlignmentModeAtLeastOnce
	AlignmentModeUnaligned
	AlignmentModeForcedAligned
)

func (m AlignmentMode) String() string {
	switch m {
	case AlignmentModeAligned:
		return "aligned"
	case AlignmentModeAtLeastOnce:
		return "at-least-once"
	case AlignmentModeUnaligned:
		return "unaligned"
	case AlignmentModeForcedAligned:
		return "forced-aligned"
	default:
		return "unknown"
	}
}

// CheckpointType distinguishes a regular checkpoint from a user-requested
// savepoint. The aligner treats both identically; the distinction is
// carried through to the notifier.
type CheckpointType int

const (
	CheckpointTypeCheckpoint CheckpointType = iota
	CheckpointTypeSavepoint
)

// CheckpointOptions accompanies a Barrier and is passed through, unmodified,
// to CheckpointNotifier.TriggerOnBarrier.
type CheckpointOptions struct {
	CheckpointType CheckpointType
	TargetLocation string
	AlignmentMode  AlignmentMode
}

// Buffer is an opaque data payload delivered on a channel. The aligner never
// inspects its contents; it either emits the buffer downstream (transferring
// ownership) or calls Recycle exactly once.
type Buffer struct {
	Bytes []byte

	recycled bool
	onRecycle func()
}

// NewBuffer wraps a payload with an optional recycle hook, e.g. returning the
// backing array to a pool. onRecycle may be nil.
func NewBuffer(bytes []byte, onRecycle func()) *Buffer {
	return &Buffer{Bytes: bytes, onRecycle: onRecycle}
}

// Recycle returns the buffer to its owner. It is safe to call multiple
// times; only the first call has an effect, matching the "exactly once"
// resource contract in spec §5 (the aligner itself never calls this more
// than once per buffer, but a defensive collaborator should not double-free
// either).
func (b *Buffer) Recycle() {
	if b == nil || b.recycled {
		return
	}
	b.recycled = true
	if b.onRecycle != nil {
		b.onRecycle()
	}
}

// Barrier is a numbered snapshot marker injected into one input channel.
type Barrier struct {
	ID int64
	// TriggerTimestampMs is the wall-clock time (ms since epoch) at which
	// the coordinator issued this barrier. Non-positive values mean "not
	// provided" and are not used for the start-delay metric.
	TriggerTimestampMs int64
	Options            CheckpointOptions
}

// CancellationBarrier aborts the checkpoint identified by ID on every task
// that observes it.
type CancellationBarrier struct {
	ID int64
}

// EndOfPartition is the terminal marker for a channel: no further items will
// ever be delivered on it.
type EndOfPartition struct{}

// Item is the tagged union of everything a channel can deliver. Exactly one
// field is non-nil.
type Item struct {
	Buffer               *Buffer
	Barrier              *Barrier
	CancellationBarrier  *CancellationBarrier
	EndOfPartition       *EndOfPartition
}

func (it Item) String() string {
	switch {
	case it.Buffer != nil:
		return fmt.Sprintf("Buffer(%d bytes)", len(it.Buffer.Bytes))
	case it.Barrier != nil:
		return fmt.Sprintf("Barrier(%d)", it.Barrier.ID)
	case it.CancellationBarrier != nil:
		return fmt.Sprintf("CancellationBarrier(%d)", it.CancellationBarrier.ID)
	case it.EndOfPartition != nil:
		return "EndOfPartition"
	default:
		return "Item(empty)"
	}
}

// BufferItem, BarrierItem, CancellationBarrierItem and EndOfPartitionItem are
// convenience constructors used by InputGate implementations and tests.
func BufferItem(b *Buffer) Item                       { return Item{Buffer: b} }
func BarrierItem(b *Barrier) Item                     { return Item{Barrier: b} }
func CancellationBarrierItem(c *CancellationBarrier) Item { return Item{CancellationBarrier: c} }
func EndOfPartitionItem() Item                        { return Item{EndOfPartition: &EndOfPartition{}} }

// InputChannelInfo tags an item with the gate and channel it was delivered
// on, for downstream visibility (spec §6).
type InputChannelInfo struct {
	GateIdx    int
	ChannelIdx int
}

// BufferOrEvent pairs an Item with the channel it arrived on, the shape
// pollNext returns to the operator.
type BufferOrEvent struct {
	Item    Item
	Channel InputChannelInfo
}
