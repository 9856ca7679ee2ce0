// Package simgate is a synthetic multi-channel gate.InputGate, standing in
// for the real network transport the demo binary doesn't have: one
// goroutine per channel generates data buffers on its own schedule, while a
// single shared clock goroutine periodically allocates one barrier id and
// fans it out to every channel in lockstep, and PollNext fans the results
// back in over a single channel. A blocked channel's goroutine stalls
// before sending, the same way a real transport would stop reading off the
// wire once told to.
package simgate

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/cpstream/aligner/gate"
)

// recycleLogCacheSize bounds the ring of recently recycled buffer ids that
// recordRecycle keeps. Nothing in this package reads the ring back: Close
// makes no leak or double-recycle check.
const recycleLogCacheSize = 1024

type delivery struct {
	channel int
	item    gate.Item
}

// Config describes the synthetic workload a Gate generates.
type Config struct {
	Channels int
	// CheckpointInterval, if positive, injects a barrier on every channel
	// roughly this often.
	CheckpointInterval time.Duration
	// BufferInterval is the pacing between synthetic data buffers on a
	// channel; defaults to 1ms if zero.
	BufferInterval time.Duration
}

// Gate is a gate.InputGate backed by goroutines generating synthetic load.
type Gate struct {
	cfg Config

	out  chan delivery
	done chan struct{}

	mu      sync.Mutex
	cond    *sync.Cond
	blocked []bool

	group  *errgroup.Group
	cancel context.CancelFunc

	recycled      *lru.Cache[int64, struct{}]
	nextBufferID  atomicCounter
	nextBarrierID atomicCounter

	closeOnce sync.Once
}

// atomicCounter is a tiny mutex-guarded id allocator, used for simgate's
// buffer ids and barrier ids.
type atomicCounter struct {
	mu sync.Mutex
	n  int64
}

func (c *atomicCounter) next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.n
}

// New starts a Gate generating synthetic load over cfg.Channels channels.
func New(ctx context.Context, cfg Config) (*Gate, error) {
	if cfg.Channels <= 0 {
		return nil, fmt.Errorf("simgate: need at least one channel, got %d", cfg.Channels)
	}
	if cfg.BufferInterval <= 0 {
		cfg.BufferInterval = time.Millisecond
	}
	recycled, err := lru.New[int64, struct{}](recycleLogCacheSize)
	if err != nil {
		return nil, fmt.Errorf("simgate: building recycle cache: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	g := &Gate{
		cfg:      cfg,
		out:      make(chan delivery, cfg.Channels),
		done:     make(chan struct{}),
		blocked:  make([]bool, cfg.Channels),
		cancel:   cancel,
		recycled: recycled,
	}
	g.cond = sync.NewCond(&g.mu)

	group, groupCtx := errgroup.WithContext(runCtx)
	g.group = group
	for c := 0; c < cfg.Channels; c++ {
		c := c
		group.Go(func() error { return g.runChannel(groupCtx, c) })
	}
	group.Go(func() error { return g.runBarrierClock(groupCtx) })
	go func() {
		_ = group.Wait()
		close(g.done)
	}()

	return g, nil
}

// awaitUnblocked returns once channel is no longer blocked or ctx is done.
func (g *Gate) awaitUnblocked(ctx context.Context, channel int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for g.blocked[channel] {
		if ctx.Err() != nil {
			return false
		}
		// Cond.Wait doesn't take a context; a done goroutine broadcasts on
		// cancellation so this still wakes promptly on shutdown.
		g.cond.Wait()
	}
	return true
}

func (g *Gate) send(ctx context.Context, channel int, item gate.Item) {
	if !g.awaitUnblocked(ctx, channel) {
		return
	}
	select {
	case g.out <- delivery{channel: channel, item: item}:
	case <-ctx.Done():
	}
}

func (g *Gate) runChannel(ctx context.Context, channel int) error {
	go func() {
		<-ctx.Done()
		g.cond.Broadcast()
	}()

	ticker := time.NewTicker(g.cfg.BufferInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			select {
			case g.out <- delivery{channel: channel, item: gate.EndOfPartitionItem()}:
			case <-g.done:
			}
			return nil
		case <-ticker.C:
			id := g.nextBufferID.next()
			payload := make([]byte, 8)
			rand.Read(payload)
			g.send(ctx, channel, gate.BufferItem(gate.NewBuffer(payload, func() { g.recordRecycle(id) })))
		}
	}
}

// runBarrierClock is the synthetic stand-in for a checkpoint coordinator:
// one ticker allocates a single barrier id per tick and fans it out to
// every channel in turn, the way Flink's periodic checkpoint trigger fires
// the same barrier id on every source task at once. Per-channel tickers
// would each draw from their own arrival order and essentially never agree
// on an id, so alignment in BarrierAligner.processBarrier (which keys
// purely on Barrier.ID equality across channels) would never complete.
func (g *Gate) runBarrierClock(ctx context.Context) error {
	if g.cfg.CheckpointInterval <= 0 {
		return nil
	}
	ticker := time.NewTicker(g.cfg.CheckpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			id := g.nextBarrierID.next()
			triggerMs := time.Now().UnixMilli()
			for c := 0; c < g.cfg.Channels; c++ {
				g.send(ctx, c, gate.BarrierItem(&gate.Barrier{
					ID:                 id,
					TriggerTimestampMs: triggerMs,
				}))
			}
		}
	}
}

func (g *Gate) recordRecycle(id int64) { g.recycled.Add(id, struct{}{}) }

// PollNext implements gate.InputGate.
func (g *Gate) PollNext(ctx context.Context) (int, gate.Item, error) {
	select {
	case d := <-g.out:
		return d.channel, d.item, nil
	case <-g.done:
		select {
		case d := <-g.out:
			return d.channel, d.item, nil
		default:
			return 0, gate.Item{}, io.EOF
		}
	case <-ctx.Done():
		return 0, gate.Item{}, ctx.Err()
	}
}

// ResumeConsumption implements gate.InputGate.
func (g *Gate) ResumeConsumption(channels []int) {
	g.mu.Lock()
	for _, c := range channels {
		g.blocked[c] = false
	}
	g.mu.Unlock()
	g.cond.Broadcast()
}

// BlockConsumption implements gate.InputGate.
func (g *Gate) BlockConsumption(channels []int) {
	g.mu.Lock()
	for _, c := range channels {
		g.blocked[c] = true
	}
	g.mu.Unlock()
}

// NumberOfInputChannels implements gate.InputGate.
func (g *Gate) NumberOfInputChannels() int { return g.cfg.Channels }

// IsFinished implements gate.InputGate.
func (g *Gate) IsFinished() bool {
	select {
	case <-g.done:
		return len(g.out) == 0
	default:
		return false
	}
}

// Close stops every channel goroutine and waits for them to exit.
func (g *Gate) Close() error {
	var err error
	g.closeOnce.Do(func() {
		g.cancel()
		g.cond.Broadcast()
		err = g.group.Wait()
	})
	return err
}

var _ gate.InputGate = (*Gate)(nil)
