package domain

// Shape is the extent of an array along each axis.
type Shape []int

// Size returns the number of cells.
func (s Shape) Size() int {
	n := 1
	for _, v := range s {
		n *= v
	}
	return n
}

func (s Shape) Clone() Shape {
	return append(Shape(nil), s...)
}

func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Strides returns the row-major strides of shape (last axis fastest).
func Strides(shape []int) []int {
	st := make([]int, len(shape))
	acc := 1
	for a := len(shape) - 1; a >= 0; a-- {
		st[a] = acc
		acc *= shape[a]
	}
	return st
}

// Region is a half-open box [Lo, Hi) of local indices.
type Region struct {
	Lo, Hi []int
}

// Full returns the region covering the whole of shape.
func Full(shape []int) Region {
	return Region{Lo: make([]int, len(shape)), Hi: append([]int(nil), shape...)}
}

func (r Region) Size() int {
	n := 1
	for a := range r.Lo {
		if r.Hi[a] <= r.Lo[a] {
			return 0
		}
		n *= r.Hi[a] - r.Lo[a]
	}
	return n
}

// Along returns a copy of r restricted to [lo, hi) on axis.
func (r Region) Along(axis, lo, hi int) Region {
	out := Region{Lo: append([]int(nil), r.Lo...), Hi: append([]int(nil), r.Hi...)}
	out.Lo[axis] = lo
	out.Hi[axis] = hi
	return out
}

// ForEach calls fn with the flat offset of every cell of r inside an array
// of the given shape, in row-major order.
func ForEach(shape []int, r Region, fn func(off int)) {
	n := len(shape)
	if r.Size() == 0 {
		return
	}
	strides := Strides(shape)
	idx := append([]int(nil), r.Lo...)
	for {
		off := 0
		for a := 0; a < n; a++ {
			off += idx[a] * strides[a]
		}
		fn(off)

		a := n - 1
		for ; a >= 0; a-- {
			idx[a]++
			if idx[a] < r.Hi[a] {
				break
			}
			idx[a] = r.Lo[a]
		}
		if a < 0 {
			return
		}
	}
}

// Pack copies the cells of r out of data.
func Pack(data []float64, shape []int, r Region) []float64 {
	buf := make([]float64, 0, r.Size())
	ForEach(shape, r, func(off int) {
		buf = append(buf, data[off])
	})
	return buf
}

// Unpack writes buf into the cells of r, in the order Pack produced it.
func Unpack(data []float64, shape []int, r Region, buf []float64) {
	i := 0
	ForEach(shape, r, func(off int) {
		data[off] = buf[i]
		i++
	})
}
