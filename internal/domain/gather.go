package domain

import (
	"context"

	"github.com/san-kum/flowsim/internal/dynamo"
)

// Reduce combines v across all ranks; every rank gets the same result.
func (d *Decomposition) Reduce(ctx context.Context, v float64, op Op) (float64, error) {
	return d.comm.Allreduce(ctx, v, op)
}

// GatherGlobal assembles the interiors of a physical-layout array from all
// ranks into a global row-major array, returned on every rank.
func (d *Decomposition) GatherGlobal(ctx context.Context, data []float64) ([]float64, error) {
	return gather(ctx, d.comm, d.subs, data)
}

// ScatterGlobal copies the calling rank's block of global into the interior
// of data. Halo cells are left untouched.
func (d *Decomposition) ScatterGlobal(global, data []float64) error {
	return scatter(d.Subdomain(), global, data)
}

// GatherSpectral is GatherGlobal for arrays on the spectral layout.
func (d *Decomposition) GatherSpectral(ctx context.Context, data []float64) ([]float64, error) {
	if d.specErr != nil {
		return nil, d.specErr
	}
	return gather(ctx, d.comm, d.spectral, data)
}

// ScatterSpectral is ScatterGlobal for arrays on the spectral layout.
func (d *Decomposition) ScatterSpectral(global, data []float64) error {
	sub, err := d.SpectralSubdomain()
	if err != nil {
		return err
	}
	return scatter(sub, global, data)
}

func gather(ctx context.Context, comm Communicator, subs []Subdomain, data []float64) ([]float64, error) {
	me := subs[comm.Rank()]
	local := me.LocalShape()
	if len(data) != local.Size() {
		return nil, dynamo.Configf("gather", "array holds %d values, local shape %v needs %d", len(data), local, local.Size())
	}

	parts, err := comm.Allgather(ctx, Pack(data, local, me.Inner()))
	if err != nil {
		return nil, err
	}
	global := make([]float64, me.Global.Size())
	for r, part := range parts {
		s := subs[r]
		Unpack(global, s.Global, s.globalRegion(), part)
	}
	return global, nil
}

func scatter(sub Subdomain, global, data []float64) error {
	if len(global) != sub.Global.Size() {
		return dynamo.Configf("scatter", "global array holds %d values, shape %v needs %d", len(global), sub.Global, sub.Global.Size())
	}
	local := sub.LocalShape()
	if len(data) != local.Size() {
		return dynamo.Configf("scatter", "array holds %d values, local shape %v needs %d", len(data), local, local.Size())
	}
	Unpack(data, local, sub.Inner(), Pack(global, sub.Global, sub.globalRegion()))
	return nil
}
