package domain

import (
	"context"
	"fmt"
	"math"
)

// Op is a collective reduction operator.
type Op int

const (
	Sum Op = iota
	Min
	Max
)

func (o Op) String() string {
	switch o {
	case Sum:
		return "sum"
	case Min:
		return "min"
	case Max:
		return "max"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

func (o Op) apply(acc, v float64) float64 {
	switch o {
	case Min:
		return math.Min(acc, v)
	case Max:
		return math.Max(acc, v)
	default:
		return acc + v
	}
}

// Request tracks a non-blocking send.
type Request interface {
	Wait(ctx context.Context) error
}

// Communicator is the message-passing surface one rank sees. Every rank of
// the group must issue collectives in the same order and the same number of
// times, otherwise the group deadlocks.
type Communicator interface {
	Rank() int
	Size() int

	// Isend copies data and queues it for dest. It never blocks.
	Isend(dest, tag int, data []float64) Request

	// Recv blocks until a message with tag from src arrives, the context is
	// done, or the group is aborted.
	Recv(ctx context.Context, src, tag int) ([]float64, error)

	Allreduce(ctx context.Context, v float64, op Op) (float64, error)
	Allgather(ctx context.Context, data []float64) ([][]float64, error)
	Barrier(ctx context.Context) error
}

// Reserved tag ranges. Halo exchanges use tagSync + 2*axis + direction.
const (
	tagSync      = 1 << 10
	tagAllgather = 1 << 12
)
