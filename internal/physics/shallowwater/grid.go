package shallowwater

import (
	"github.com/sirupsen/logrus"

	"github.com/san-kum/flowsim/internal/domain"
	"github.com/san-kum/flowsim/internal/dynamo"
)

// Halo is the halo width the centered stencils need.
const Halo = 1

// Grid is a regular two dimensional grid of N[0] x N[1] cells on a box of
// size L[0] x L[1]. Every field lives at cell centers.
type Grid struct {
	N        [2]int
	L        [2]float64
	Periodic bool
}

// NewGrid returns a square periodic grid.
func NewGrid(n int, l float64) Grid {
	return Grid{N: [2]int{n, n}, L: [2]float64{l, l}, Periodic: true}
}

// D returns the cell width along axis.
func (g Grid) D(axis int) float64 { return g.L[axis] / float64(g.N[axis]) }

// CellArea is the area of one cell.
func (g Grid) CellArea() float64 { return g.D(0) * g.D(1) }

func (g Grid) Validate() error {
	for a := 0; a < 2; a++ {
		if g.N[a] < 2 {
			return dynamo.Configf("grid", "axis %d needs at least 2 cells, got %d", a, g.N[a])
		}
		if !(g.L[a] > 0) {
			return dynamo.Configf("grid", "axis %d has non-positive length %v", a, g.L[a])
		}
	}
	return nil
}

// Decompose splits the grid over the ranks of comm with the halo the
// stencils need.
func (g Grid) Decompose(comm domain.Communicator, log *logrus.Entry) (*domain.Decomposition, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	opts := []domain.Option{domain.WithPeriodic(g.Periodic)}
	if log != nil {
		opts = append(opts, domain.WithLogger(log))
	}
	return domain.New(comm, g.N[:], nil, Halo, opts...)
}

// Coord returns the position of the center of a cell along axis from its
// global index.
func (g Grid) Coord(axis, i int) float64 {
	return (float64(i) + 0.5) * g.D(axis)
}
