package domain

import (
	"context"
	"fmt"

	"github.com/san-kum/flowsim/internal/dynamo"
)

const (
	toLeft  = 0
	toRight = 1
)

func syncTag(axis, dir int) int { return tagSync + 2*axis + dir }

// Sync fills the halo cells of data, an array laid out on the calling
// rank's Subdomain, with the interior values of the neighbouring blocks.
// Axes listed in flatAxes, or with extent 1 in shape, are skipped. Axes
// are exchanged one after another so corner cells pick up diagonal
// neighbours. Every rank must call Sync collectively.
func (d *Decomposition) Sync(ctx context.Context, data []float64, shape []int, flatAxes ...int) error {
	sub := d.Subdomain()
	local := sub.LocalShape()
	if len(shape) != len(local) {
		return dynamo.Configf("sync", "array has %d dimensions, domain has %d", len(shape), len(local))
	}
	if Shape(shape).Size() != len(data) {
		return dynamo.Configf("sync", "array holds %d values for shape %v", len(data), shape)
	}

	flat := make([]bool, len(shape))
	for _, a := range flatAxes {
		if a < 0 || a >= len(shape) {
			return dynamo.Configf("sync", "flat axis %d out of range", a)
		}
		flat[a] = true
	}
	for a := range shape {
		switch {
		case shape[a] == local[a]:
		case shape[a] == 1:
			flat[a] = true
		default:
			return dynamo.Configf("sync", "array extent %d on axis %d does not match local extent %d", shape[a], a, local[a])
		}
	}

	h := d.halo
	if h == 0 {
		return nil
	}

	full := Full(shape)
	for a := range shape {
		if !sub.Decomposed[a] || flat[a] {
			continue
		}
		n := sub.Interior[a]
		left, right := sub.Left[a], sub.Right[a]

		var reqs []Request
		if left >= 0 {
			reqs = append(reqs, d.comm.Isend(left, syncTag(a, toLeft), Pack(data, shape, full.Along(a, h, 2*h))))
		}
		if right >= 0 {
			reqs = append(reqs, d.comm.Isend(right, syncTag(a, toRight), Pack(data, shape, full.Along(a, n, n+h))))
		}

		if right >= 0 {
			if err := d.recvInto(ctx, data, shape, full.Along(a, n+h, n+2*h), right, syncTag(a, toLeft)); err != nil {
				return err
			}
		}
		if left >= 0 {
			if err := d.recvInto(ctx, data, shape, full.Along(a, 0, h), left, syncTag(a, toRight)); err != nil {
				return err
			}
		}

		for _, r := range reqs {
			if err := r.Wait(ctx); err != nil {
				return &dynamo.CommError{Rank: d.Rank(), Peer: -1, Op: "sync wait", Err: err}
			}
		}
	}
	return nil
}

func (d *Decomposition) recvInto(ctx context.Context, data []float64, shape []int, r Region, src, tag int) error {
	buf, err := d.comm.Recv(ctx, src, tag)
	if err != nil {
		return err
	}
	if len(buf) != r.Size() {
		return &dynamo.CommError{
			Rank: d.Rank(),
			Peer: src,
			Op:   "sync",
			Err:  fmt.Errorf("halo slab holds %d values, expected %d", len(buf), r.Size()),
		}
	}
	Unpack(data, shape, r, buf)
	return nil
}
