package domain

// Subdomain describes the block of the global grid owned by one rank.
// Halo cells exist only on decomposed axes, on both sides, even when a
// single process spans the axis.
type Subdomain struct {
	Rank       int
	Coords     []int
	Global     Shape
	Interior   Shape
	Offset     []int
	Halo       int
	Decomposed []bool

	// Left and Right hold the neighbouring rank per axis, -1 when there is
	// none (shared axis or non-periodic boundary).
	Left, Right []int
}

// HaloOn returns the halo width on axis.
func (s Subdomain) HaloOn(axis int) int {
	if s.Decomposed[axis] {
		return s.Halo
	}
	return 0
}

// LocalShape is the interior plus halo on every decomposed axis.
func (s Subdomain) LocalShape() Shape {
	out := s.Interior.Clone()
	for a := range out {
		out[a] += 2 * s.HaloOn(a)
	}
	return out
}

// Inner is the interior region in local indices.
func (s Subdomain) Inner() Region {
	r := Region{Lo: make([]int, len(s.Interior)), Hi: make([]int, len(s.Interior))}
	for a := range s.Interior {
		h := s.HaloOn(a)
		r.Lo[a] = h
		r.Hi[a] = h + s.Interior[a]
	}
	return r
}

// GlobalIndex maps a local index on axis to the global index, wrapping
// periodically for halo cells.
func (s Subdomain) GlobalIndex(axis, local int) int {
	g := s.Offset[axis] + local - s.HaloOn(axis)
	n := s.Global[axis]
	return ((g % n) + n) % n
}

// AtLowBoundary reports whether the block touches the start of axis.
func (s Subdomain) AtLowBoundary(axis int) bool { return s.Offset[axis] == 0 }

// AtHighBoundary reports whether the block touches the end of axis.
func (s Subdomain) AtHighBoundary(axis int) bool {
	return s.Offset[axis]+s.Interior[axis] == s.Global[axis]
}

func (s Subdomain) globalRegion() Region {
	r := Region{Lo: append([]int(nil), s.Offset...), Hi: make([]int, len(s.Offset))}
	for a := range r.Hi {
		r.Hi[a] = s.Offset[a] + s.Interior[a]
	}
	return r
}

func coordsOf(rank int, dims []int) []int {
	c := make([]int, len(dims))
	for a := len(dims) - 1; a >= 0; a-- {
		c[a] = rank % dims[a]
		rank /= dims[a]
	}
	return c
}

func rankOf(coords, dims []int) int {
	r := 0
	for a := range dims {
		r = r*dims[a] + coords[a]
	}
	return r
}

// split returns the extent and offset of block c when n cells are divided
// among d processes; the first n%d processes take one extra cell.
func split(n, d, c int) (extent, offset int) {
	base, rem := n/d, n%d
	extent = base
	if c < rem {
		extent++
	}
	offset = c*base + min(c, rem)
	return extent, offset
}

func layout(global Shape, dims []int, decomposed, periodic []bool, halo int) []Subdomain {
	size := 1
	for _, d := range dims {
		size *= d
	}
	subs := make([]Subdomain, size)
	for r := range subs {
		c := coordsOf(r, dims)
		s := Subdomain{
			Rank:       r,
			Coords:     c,
			Global:     global.Clone(),
			Interior:   make(Shape, len(global)),
			Offset:     make([]int, len(global)),
			Halo:       halo,
			Decomposed: append([]bool(nil), decomposed...),
			Left:       make([]int, len(global)),
			Right:      make([]int, len(global)),
		}
		for a := range global {
			s.Interior[a], s.Offset[a] = split(global[a], dims[a], c[a])
			s.Left[a], s.Right[a] = -1, -1
			if !decomposed[a] {
				continue
			}
			s.Left[a] = neighbour(c, dims, a, -1, periodic[a])
			s.Right[a] = neighbour(c, dims, a, +1, periodic[a])
		}
		subs[r] = s
	}
	return subs
}

func neighbour(coords, dims []int, axis, dir int, periodic bool) int {
	n := append([]int(nil), coords...)
	n[axis] += dir
	if n[axis] < 0 || n[axis] >= dims[axis] {
		if !periodic {
			return -1
		}
		n[axis] = (n[axis] + dims[axis]) % dims[axis]
	}
	return rankOf(n, dims)
}
