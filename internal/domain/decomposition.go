package domain

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/flowsim/internal/dynamo"
)

type options struct {
	periodic []bool
	log      *logrus.Entry
}

// Option configures a Decomposition.
type Option func(*options)

// WithPeriodic sets the boundary periodicity. A single value applies to
// every axis; otherwise one value per axis is expected. Default: periodic.
func WithPeriodic(p ...bool) Option {
	return func(o *options) { o.periodic = append([]bool(nil), p...) }
}

// WithLogger sets the logger used for setup messages.
func WithLogger(l *logrus.Entry) Option {
	return func(o *options) { o.log = l }
}

// Decomposition splits a global grid across the ranks of a Communicator.
// It is built once per run and read-only afterwards.
type Decomposition struct {
	comm     Communicator
	global   Shape
	shared   []bool
	periodic []bool
	halo     int
	dims     []int

	subs     []Subdomain
	spectral []Subdomain
	specErr  error
}

// New builds the decomposition of shape over the ranks of comm. Axes listed
// in sharedAxes are never split and carry no halo. Every failure is a
// configuration error raised before any communication happens.
func New(comm Communicator, shape []int, sharedAxes []int, halo int, opts ...Option) (*Decomposition, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logrus.StandardLogger().WithField("component", "domain")
	}

	if comm == nil {
		return nil, dynamo.Configf("domain", "nil communicator")
	}
	if len(shape) == 0 {
		return nil, dynamo.Configf("domain", "empty global shape")
	}
	for a, n := range shape {
		if n < 1 {
			return nil, dynamo.Configf("domain", "axis %d has non-positive extent %d", a, n)
		}
	}
	if halo < 0 {
		return nil, dynamo.Configf("domain", "negative halo %d", halo)
	}

	ndim := len(shape)
	shared := make([]bool, ndim)
	for _, a := range sharedAxes {
		if a < 0 || a >= ndim {
			return nil, dynamo.Configf("domain", "shared axis %d out of range for %d dimensions", a, ndim)
		}
		shared[a] = true
	}

	periodic := make([]bool, ndim)
	switch len(o.periodic) {
	case 0:
		for a := range periodic {
			periodic[a] = true
		}
	case 1:
		for a := range periodic {
			periodic[a] = o.periodic[0]
		}
	case ndim:
		copy(periodic, o.periodic)
	default:
		return nil, dynamo.Configf("domain", "got %d periodicity flags for %d dimensions", len(o.periodic), ndim)
	}

	global := Shape(shape).Clone()
	size := comm.Size()
	dims, err := processGrid(global, shared, size)
	if err != nil {
		return nil, err
	}

	decomposed := make([]bool, ndim)
	for a := range decomposed {
		decomposed[a] = !shared[a]
	}
	for a := range global {
		if global[a] < dims[a] {
			return nil, dynamo.Configf("domain", "cannot split axis %d of extent %d among %d processes", a, global[a], dims[a])
		}
		// the smallest block along a is floor(n/d)
		if decomposed[a] && halo > global[a]/dims[a] {
			return nil, dynamo.Configf("domain", "halo %d exceeds local interior %d on axis %d", halo, global[a]/dims[a], a)
		}
	}

	d := &Decomposition{
		comm:     comm,
		global:   global,
		shared:   shared,
		periodic: periodic,
		halo:     halo,
		dims:     dims,
		subs:     layout(global, dims, decomposed, periodic, halo),
	}

	sdims := make([]int, ndim)
	for a := range sdims {
		sdims[a] = dims[(a+1)%ndim]
	}
	for a := range global {
		if global[a] < sdims[a] {
			d.specErr = dynamo.Configf("domain", "spectral layout cannot split axis %d of extent %d among %d processes", a, global[a], sdims[a])
			break
		}
	}
	if d.specErr == nil {
		d.spectral = layout(global, sdims, make([]bool, ndim), periodic, 0)
	}

	if comm.Rank() == 0 {
		o.log.WithFields(logrus.Fields{
			"shape": []int(global),
			"procs": dims,
			"halo":  halo,
		}).Debug("domain decomposed")
	}
	return d, nil
}

// processGrid distributes size processes over the non-shared axes, giving
// the largest prime factors to the axes with the most cells per process.
func processGrid(global Shape, shared []bool, size int) ([]int, error) {
	if size < 1 {
		return nil, dynamo.Configf("domain", "invalid process count %d", size)
	}
	dims := make([]int, len(global))
	splittable := false
	for a := range dims {
		dims[a] = 1
		if !shared[a] {
			splittable = true
		}
	}
	if size == 1 {
		return dims, nil
	}
	if !splittable {
		return nil, dynamo.Configf("domain", "%d processes but every axis is shared", size)
	}

	factors := primeFactors(size)
	sort.Sort(sort.Reverse(sort.IntSlice(factors)))
	for _, f := range factors {
		best, load := -1, -1.0
		for a := range global {
			if shared[a] {
				continue
			}
			if l := float64(global[a]) / float64(dims[a]); l > load {
				best, load = a, l
			}
		}
		dims[best] *= f
	}
	return dims, nil
}

func primeFactors(n int) []int {
	var out []int
	for p := 2; p*p <= n; p++ {
		for n%p == 0 {
			out = append(out, p)
			n /= p
		}
	}
	if n > 1 {
		out = append(out, n)
	}
	return out
}

func (d *Decomposition) Comm() Communicator { return d.comm }
func (d *Decomposition) Rank() int          { return d.comm.Rank() }
func (d *Decomposition) Size() int          { return d.comm.Size() }
func (d *Decomposition) Global() Shape      { return d.global.Clone() }
func (d *Decomposition) Halo() int          { return d.halo }
func (d *Decomposition) NDim() int          { return len(d.global) }

// Dims returns the number of processes along each axis.
func (d *Decomposition) Dims() []int { return append([]int(nil), d.dims...) }

func (d *Decomposition) Shared(axis int) bool   { return d.shared[axis] }
func (d *Decomposition) Periodic(axis int) bool { return d.periodic[axis] }

// Subdomain returns the physical-space block of the calling rank.
func (d *Decomposition) Subdomain() Subdomain { return d.subs[d.comm.Rank()] }

// SubdomainOf returns the physical-space block of rank r.
func (d *Decomposition) SubdomainOf(r int) Subdomain { return d.subs[r] }

// SpectralSubdomain returns the calling rank's block in transform space.
// The process counts are rotated by one axis and there is no halo.
func (d *Decomposition) SpectralSubdomain() (Subdomain, error) {
	if d.specErr != nil {
		return Subdomain{}, d.specErr
	}
	return d.spectral[d.comm.Rank()], nil
}
