package domain

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/flowsim/internal/dynamo"
)

// errAborted is reported by receives blocked when the group is torn down.
var errAborted = errors.New("process group aborted")

type message struct {
	tag  int
	data []float64
}

// mailbox holds the messages queued from one source to one destination.
// Only the destination rank receives from it.
type mailbox struct {
	mu     sync.Mutex
	msgs   []message
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

func (m *mailbox) deliver(msg message) {
	m.mu.Lock()
	m.msgs = append(m.msgs, msg)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) take(tag int) ([]float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, msg := range m.msgs {
		if msg.tag == tag {
			m.msgs = append(m.msgs[:i], m.msgs[i+1:]...)
			return msg.data, true
		}
	}
	return nil, false
}

// World is an in-process group of ranks exchanging messages through
// per-pair mailboxes. Each rank is meant to be driven by exactly one
// goroutine, which is the single-threaded process of that rank.
type World struct {
	size  int
	boxes [][]*mailbox // [src][dst]

	abortOnce sync.Once
	done      chan struct{}
}

// NewWorld creates a group of size ranks.
func NewWorld(size int) (*World, error) {
	if size < 1 {
		return nil, dynamo.Configf("world", "size must be positive, got %d", size)
	}
	w := &World{size: size, done: make(chan struct{})}
	w.boxes = make([][]*mailbox, size)
	for src := range w.boxes {
		w.boxes[src] = make([]*mailbox, size)
		for dst := range w.boxes[src] {
			w.boxes[src][dst] = newMailbox()
		}
	}
	return w, nil
}

// Serial returns the communicator of a one-rank group.
func Serial() Communicator {
	w, _ := NewWorld(1)
	return w.Comm(0)
}

func (w *World) Size() int { return w.size }

// Comm returns the communicator of rank r.
func (w *World) Comm(r int) Communicator {
	return &worldComm{world: w, rank: r}
}

// Abort unblocks every pending receive in the group.
func (w *World) Abort() {
	w.abortOnce.Do(func() { close(w.done) })
}

// Run drives fn once per rank, each on its own goroutine. The first error
// cancels the context of every other rank, so ranks blocked in a receive
// unwind with ErrCommunication, and that first error is returned.
func Run(ctx context.Context, size int, fn func(ctx context.Context, comm Communicator) error) error {
	w, err := NewWorld(size)
	if err != nil {
		return err
	}
	defer w.Abort()

	g, gctx := errgroup.WithContext(ctx)
	for r := 0; r < size; r++ {
		comm := w.Comm(r)
		g.Go(func() error {
			return fn(gctx, comm)
		})
	}
	return g.Wait()
}

type worldComm struct {
	world *World
	rank  int
}

func (c *worldComm) Rank() int { return c.rank }
func (c *worldComm) Size() int { return c.world.size }

type doneRequest struct{}

func (doneRequest) Wait(context.Context) error { return nil }

func (c *worldComm) Isend(dest, tag int, data []float64) Request {
	buf := make([]float64, len(data))
	copy(buf, data)
	c.world.boxes[c.rank][dest].deliver(message{tag: tag, data: buf})
	return doneRequest{}
}

func (c *worldComm) Recv(ctx context.Context, src, tag int) ([]float64, error) {
	if src < 0 || src >= c.world.size {
		return nil, &dynamo.CommError{Rank: c.rank, Peer: src, Op: "recv", Err: errors.New("no such rank")}
	}
	box := c.world.boxes[src][c.rank]
	for {
		if data, ok := box.take(tag); ok {
			return data, nil
		}
		select {
		case <-box.signal:
		case <-ctx.Done():
			return nil, &dynamo.CommError{Rank: c.rank, Peer: src, Op: "recv", Err: ctx.Err()}
		case <-c.world.done:
			return nil, &dynamo.CommError{Rank: c.rank, Peer: src, Op: "recv", Err: errAborted}
		}
	}
}

func (c *worldComm) Allgather(ctx context.Context, data []float64) ([][]float64, error) {
	for dst := 0; dst < c.world.size; dst++ {
		c.Isend(dst, tagAllgather, data)
	}
	out := make([][]float64, c.world.size)
	for src := 0; src < c.world.size; src++ {
		buf, err := c.Recv(ctx, src, tagAllgather)
		if err != nil {
			return nil, err
		}
		out[src] = buf
	}
	return out, nil
}

func (c *worldComm) Allreduce(ctx context.Context, v float64, op Op) (float64, error) {
	parts, err := c.Allgather(ctx, []float64{v})
	if err != nil {
		return 0, err
	}
	acc := parts[0][0]
	for _, p := range parts[1:] {
		acc = op.apply(acc, p[0])
	}
	return acc, nil
}

func (c *worldComm) Barrier(ctx context.Context) error {
	_, err := c.Allreduce(ctx, 0, Sum)
	return err
}
