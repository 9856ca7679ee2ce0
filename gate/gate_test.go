package gate

import (
	"context"
	"io"
	"io/ioutil"
	"testing"

	gethlog "github.com/ethereum/go-ethereum/log"
)

func testLogger() gethlog.Logger {
	return gethlog.NewLogger(gethlog.NewTerminalHandlerWithLevel(ioutil.Discard, gethlog.LevelCrit, false))
}

// scriptItem is one entry of a fakeInputGate's scripted arrival order.
type scriptItem struct {
	channel int
	item    Item
}

// fakeInputGate plays back a fixed arrival-order script the way a real
// network-fed InputGate would: it delivers items in the given order except
// that an item whose channel is currently blocked is held back (without
// reordering that channel's own remaining items relative to each other)
// until a later ResumeConsumption unblocks it. This lets test scenarios be
// written exactly as spec §8 states them, including items addressed to a
// channel that a just-processed barrier blocked.
type fakeInputGate struct {
	numChannels int
	remaining   []scriptItem
	blocked     []bool

	closeCount int
}

func newFakeInputGate(numChannels int, script []scriptItem) *fakeInputGate {
	return &fakeInputGate{
		numChannels: numChannels,
		remaining:   append([]scriptItem(nil), script...),
		blocked:     make([]bool, numChannels),
	}
}

func (g *fakeInputGate) PollNext(ctx context.Context) (int, Item, error) {
	for i, si := range g.remaining {
		if g.blocked[si.channel] {
			continue
		}
		g.remaining = append(g.remaining[:i:i], g.remaining[i+1:]...)
		return si.channel, si.item, nil
	}
	if len(g.remaining) == 0 {
		return 0, Item{}, io.EOF
	}
	panic("fakeInputGate deadlocked: every remaining item's channel is blocked")
}

func (g *fakeInputGate) BlockConsumption(channels []int) {
	for _, c := range channels {
		g.blocked[c] = true
	}
}

func (g *fakeInputGate) ResumeConsumption(channels []int) {
	for _, c := range channels {
		g.blocked[c] = false
	}
}

func (g *fakeInputGate) NumberOfInputChannels() int { return g.numChannels }

func (g *fakeInputGate) IsFinished() bool { return len(g.remaining) == 0 }

func (g *fakeInputGate) Close() error {
	g.closeCount++
	return nil
}

type notifierCall struct {
	trigger bool
	id      int64
	reason  CheckpointFailureReason
	nanos   int64
}

type fakeNotifier struct {
	calls []notifierCall
}

func (n *fakeNotifier) TriggerOnBarrier(meta CheckpointMetadata, _ CheckpointOptions, metrics CheckpointMetrics) {
	n.calls = append(n.calls, notifierCall{trigger: true, id: meta.ID, nanos: metrics.AlignmentDurationNanos})
}

func (n *fakeNotifier) AbortOnBarrier(id int64, reason CheckpointFailureReason) {
	n.calls = append(n.calls, notifierCall{trigger: false, id: id, reason: reason})
}

func (n *fakeNotifier) triggeredIDs() []int64 {
	var out []int64
	for _, c := range n.calls {
		if c.trigger {
			out = append(out, c.id)
		}
	}
	return out
}

func (n *fakeNotifier) abortedIDs() []int64 {
	var out []int64
	for _, c := range n.calls {
		if !c.trigger {
			out = append(out, c.id)
		}
	}
	return out
}

func barrier(id int64) Item { return BarrierItem(&Barrier{ID: id}) }
func cancel(id int64) Item  { return CancellationBarrierItem(&CancellationBarrier{ID: id}) }
func data() Item             { return BufferItem(NewBuffer([]byte("x"), nil)) }
func eop() Item               { return EndOfPartitionItem() }

// drain pumps a CheckpointedInputGate to exhaustion, returning every emitted
// BufferOrEvent in order.
func drain(t *testing.T, g *CheckpointedInputGate) []BufferOrEvent {
	t.Helper()
	var out []BufferOrEvent
	for {
		boe, ok, err := g.PollNext(context.Background())
		if err != nil {
			t.Fatalf("PollNext: %v", err)
		}
		if !ok {
			break
		}
		out = append(out, boe)
	}
	return out
}
