package gate

// channelState is the per-channel bookkeeping the aligner maintains: §3.
type channelState struct {
	blocked       bool
	lastBarrierID int64
	closed        bool
}

func newChannelState() *channelState {
	return &channelState{lastBarrierID: -1}
}
