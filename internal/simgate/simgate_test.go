package simgate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGate_BarriersArriveInLockstepAcrossChannels(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	const channels = 4
	g, err := New(ctx, Config{
		Channels:           channels,
		CheckpointInterval: 10 * time.Millisecond,
		BufferInterval:     time.Millisecond,
	})
	require.NoError(t, err)
	defer g.Close()

	seenBy := map[int64]map[int]struct{}{}
	for {
		channel, item, err := g.PollNext(ctx)
		require.NoError(t, err, "gate must keep delivering until a barrier reaches every channel")
		if item.Barrier == nil {
			continue
		}
		set := seenBy[item.Barrier.ID]
		if set == nil {
			set = map[int]struct{}{}
			seenBy[item.Barrier.ID] = set
		}
		set[channel] = struct{}{}
		if len(set) == channels {
			return
		}
	}
}

func TestGate_NoCheckpointIntervalNeverEmitsBarriers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	g, err := New(ctx, Config{Channels: 2, BufferInterval: time.Millisecond})
	require.NoError(t, err)
	defer g.Close()

	for {
		_, item, err := g.PollNext(ctx)
		if err != nil {
			return
		}
		require.Nil(t, item.Barrier, "CheckpointInterval 0 must never inject a barrier")
	}
}

func TestGate_BlockConsumptionStallsChannel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	g, err := New(ctx, Config{Channels: 2, BufferInterval: time.Millisecond})
	require.NoError(t, err)
	defer g.Close()

	g.BlockConsumption([]int{0})

	for i := 0; i < 20; i++ {
		channel, _, err := g.PollNext(ctx)
		require.NoError(t, err)
		require.NotEqual(t, 0, channel, "blocked channel must not deliver")
	}

	g.ResumeConsumption([]int{0})
	sawZero := false
	for i := 0; i < 50 && !sawZero; i++ {
		channel, _, err := g.PollNext(ctx)
		require.NoError(t, err)
		if channel == 0 {
			sawZero = true
		}
	}
	require.True(t, sawZero, "channel must resume delivering after ResumeConsumption")
}
