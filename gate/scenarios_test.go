package gate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// sc is shorthand for building a fakeInputGate script entry.
func sc(channel int, item Item) scriptItem { return scriptItem{channel: channel, item: item} }

func runScenario(t *testing.T, numChannels int, script []scriptItem) (*fakeNotifier, []BufferOrEvent) {
	t.Helper()
	underlying := newFakeInputGate(numChannels, script)
	notifier := &fakeNotifier{}
	aligner := NewBarrierAligner(testLogger(), notifier, NoopMetrics, numChannels)
	g := NewCheckpointedInputGate(underlying, aligner, NoopMetrics)
	out := drain(t, g)
	require.NoError(t, g.Close())
	return notifier, out
}

// Scenario 1: single channel with barriers. N=1, d, d, B(1), d, B(2), B(3), d, E.
// Every barrier completes alignment the instant it arrives since there is
// nothing else to wait for.
func TestScenario1_SingleChannelBarriers(t *testing.T) {
	notifier, out := runScenario(t, 1, []scriptItem{
		sc(0, data()), sc(0, data()), sc(0, barrier(1)),
		sc(0, data()), sc(0, barrier(2)), sc(0, barrier(3)),
		sc(0, data()), sc(0, eop()),
	})

	require.Equal(t, []int64{1, 2, 3}, notifier.triggeredIDs())
	require.Empty(t, notifier.abortedIDs())
	for _, c := range notifier.calls {
		if c.trigger {
			require.Zero(t, c.nanos, "single-channel alignment should take no measurable time")
		}
	}

	bufferCount, barrierCount, eopCount := 0, 0, 0
	for _, boe := range out {
		switch {
		case boe.Item.Buffer != nil:
			bufferCount++
		case boe.Item.Barrier != nil:
			barrierCount++
		case boe.Item.EndOfPartition != nil:
			eopCount++
		}
	}
	require.Equal(t, 4, bufferCount)
	require.Equal(t, 3, barrierCount)
	require.Equal(t, 1, eopCount)
}

// Scenario 2: multi-channel alignment. N=3, d(0), d(2), d(0), B(1,1), B(1,2),
// d(0), B(1,0). After B(1,0) the aligner triggers 1 and unblocks every
// channel, with no aborts along the way.
func TestScenario2_MultiChannelAlignment(t *testing.T) {
	notifier, out := runScenario(t, 3, []scriptItem{
		sc(0, data()), sc(2, data()), sc(0, data()),
		sc(1, barrier(1)), sc(2, barrier(1)),
		sc(0, data()), sc(0, barrier(1)),
	})

	require.Equal(t, []int64{1}, notifier.triggeredIDs())
	require.Empty(t, notifier.abortedIDs())

	bufferCount := 0
	for _, boe := range out {
		if boe.Item.Buffer != nil {
			bufferCount++
		}
	}
	require.Equal(t, 4, bufferCount)
}

// Scenario 3: subsumption. N=3, B(1,0), B(1,2), d(2), B(3,1), d(1), d(0),
// B(3,0), B(3,2). Channel 1 jumps straight to barrier 3 without ever
// delivering barrier 1, subsuming checkpoint 1 before it can align.
func TestScenario3_Subsumption(t *testing.T) {
	notifier, _ := runScenario(t, 3, []scriptItem{
		sc(0, barrier(1)), sc(2, barrier(1)), sc(2, data()),
		sc(1, barrier(3)), sc(1, data()), sc(0, data()),
		sc(0, barrier(3)), sc(2, barrier(3)),
	})

	require.Equal(t, []int64{3}, notifier.triggeredIDs())
	require.Len(t, notifier.calls, 2)
	require.Equal(t, int64(1), notifier.calls[0].id)
	require.Equal(t, CheckpointDeclinedSubsumed, notifier.calls[0].reason)
}

// Scenario 4: cancellation. N=3, B(1,1), d(2), d(0), X(1,0), d(1), B(2,1),
// d(2), d(0), B(1,2), B(2,0), B(2,2). The cancellation barrier aborts
// checkpoint 1 while it is aligning; the late B(1,2) that follows is dropped
// since checkpoint 2 has already superseded it.
func TestScenario4_Cancellation(t *testing.T) {
	notifier, _ := runScenario(t, 3, []scriptItem{
		sc(1, barrier(1)), sc(2, data()), sc(0, data()),
		sc(0, cancel(1)), sc(1, data()), sc(1, barrier(2)),
		sc(2, data()), sc(0, data()), sc(2, barrier(1)),
		sc(0, barrier(2)), sc(2, barrier(2)),
	})

	require.Len(t, notifier.calls, 2)
	require.Equal(t, int64(1), notifier.calls[0].id)
	require.Equal(t, CheckpointDeclinedOnCancellationBarrier, notifier.calls[0].reason)
	require.Equal(t, []int64{2}, notifier.triggeredIDs())
}

// Scenario 5: end-of-partition during alignment. N=3, B(1,0), B(1,1),
// B(1,2), d(0), d(0), d(2), B(2,2), B(2,0), d(1), E(1), E(2), d(0), E(0).
// Checkpoint 1 aligns cleanly; checkpoint 2 is aborted when channel 1
// closes while still awaited, and the already-blocked channels 0 and 2 are
// released.
func TestScenario5_EndOfPartitionDuringAlignment(t *testing.T) {
	notifier, _ := runScenario(t, 3, []scriptItem{
		sc(0, barrier(1)), sc(1, barrier(1)), sc(2, barrier(1)),
		sc(0, data()), sc(0, data()), sc(2, data()),
		sc(2, barrier(2)), sc(0, barrier(2)),
		sc(1, data()), sc(1, eop()), sc(2, eop()),
		sc(0, data()), sc(0, eop()),
	})

	require.Equal(t, []int64{1}, notifier.triggeredIDs())
	require.Len(t, notifier.calls, 2)
	require.Equal(t, int64(2), notifier.calls[1].id)
	require.Equal(t, CheckpointDeclinedOnCloseOfChannel, notifier.calls[1].reason)
}

// Scenario 6: closed channels at start. N=4, E(2), E(1), d(0), d(0), d(3),
// B(2,3), B(2,0), B(3,0), B(3,3), d(0), d(0), d(3), E(0), d(3), B(4,3),
// d(3), E(3). Channels 1 and 2 close before ever sending a barrier, so
// every later checkpoint only ever awaits {0,3}, and the last one aligns
// alone on the single remaining channel.
func TestScenario6_ClosedChannelsAtStart(t *testing.T) {
	notifier, _ := runScenario(t, 4, []scriptItem{
		sc(2, eop()), sc(1, eop()),
		sc(0, data()), sc(0, data()), sc(3, data()),
		sc(3, barrier(2)), sc(0, barrier(2)),
		sc(0, barrier(3)), sc(3, barrier(3)),
		sc(0, data()), sc(0, data()), sc(3, data()),
		sc(0, eop()),
		sc(3, data()), sc(3, barrier(4)), sc(3, data()), sc(3, eop()),
	})

	require.Equal(t, []int64{2, 3, 4}, notifier.triggeredIDs())
	require.Empty(t, notifier.abortedIDs())
}
