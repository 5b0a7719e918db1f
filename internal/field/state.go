package field

import (
	"context"
	"math"

	"github.com/san-kum/flowsim/internal/domain"
	"github.com/san-kum/flowsim/internal/dynamo"
)

// State is an ordered collection of named arrays sharing one decomposition
// and one spectral flag. Arithmetic requires both operands to have the same
// layout.
type State struct {
	dec      *domain.Decomposition
	spectral bool
	fields   []*Array
	index    map[string]int
}

// NewState groups arrays into a state.
func NewState(fields ...*Array) (*State, error) {
	if len(fields) == 0 {
		return nil, dynamo.Configf("field", "state needs at least one field")
	}
	s := &State{
		dec:      fields[0].dec,
		spectral: fields[0].spectral,
		fields:   fields,
		index:    make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if f.dec != s.dec || f.spectral != s.spectral {
			return nil, dynamo.Configf("field", "field %s does not share the state layout", f.Name)
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, dynamo.Configf("field", "duplicate field %s", f.Name)
		}
		s.index[f.Name] = i
	}
	return s, nil
}

func (s *State) Spectral() bool                       { return s.spectral }
func (s *State) Decomposition() *domain.Decomposition { return s.dec }
func (s *State) Fields() []*Array                     { return s.fields }

func (s *State) Names() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

// Field returns the named array, or nil.
func (s *State) Field(name string) *Array {
	i, ok := s.index[name]
	if !ok {
		return nil
	}
	return s.fields[i]
}

func (s *State) Clone() *State {
	out := &State{
		dec:      s.dec,
		spectral: s.spectral,
		fields:   make([]*Array, len(s.fields)),
		index:    s.index,
	}
	for i, f := range s.fields {
		out.fields[i] = f.Clone()
	}
	return out
}

// ZerosLike returns a zeroed state with the same layout.
func (s *State) ZerosLike() *State {
	out := s.Clone()
	out.Zero()
	return out
}

func (s *State) Zero() {
	for _, f := range s.fields {
		f.Zero()
	}
}

func (s *State) compatible(o *State) error {
	if s.dec != o.dec {
		return dynamo.Configf("field", "states live on different decompositions")
	}
	if s.spectral != o.spectral {
		return dynamo.Configf("field", "cannot combine physical and spectral states")
	}
	if len(s.fields) != len(o.fields) {
		return dynamo.Configf("field", "states hold %d and %d fields", len(s.fields), len(o.fields))
	}
	for i := range s.fields {
		if s.fields[i].Name != o.fields[i].Name {
			return dynamo.Configf("field", "field %d is %s in one state and %s in the other", i, s.fields[i].Name, o.fields[i].Name)
		}
	}
	return nil
}

func (s *State) each(o *State, fn func(a, b *Array) error) error {
	if err := s.compatible(o); err != nil {
		return err
	}
	for i := range s.fields {
		if err := fn(s.fields[i], o.fields[i]); err != nil {
			return err
		}
	}
	return nil
}

// CopyFrom overwrites s with the values of o.
func (s *State) CopyFrom(o *State) error {
	return s.each(o, (*Array).CopyFrom)
}

// Add sets s = s + o.
func (s *State) Add(o *State) error {
	return s.each(o, (*Array).Add)
}

// Sub sets s = s - o.
func (s *State) Sub(o *State) error {
	return s.each(o, (*Array).Sub)
}

// AddScaled sets s = s + f*o.
func (s *State) AddScaled(f float64, o *State) error {
	return s.each(o, func(a, b *Array) error { return a.AddScaled(f, b) })
}

// Scale sets s = f*s.
func (s *State) Scale(f float64) {
	for _, a := range s.fields {
		a.Scale(f)
	}
}

// Dot is the global inner product summed over all fields.
func (s *State) Dot(ctx context.Context, o *State) (float64, error) {
	if err := s.compatible(o); err != nil {
		return 0, err
	}
	var total float64
	for i := range s.fields {
		d, err := s.fields[i].Dot(ctx, o.fields[i])
		if err != nil {
			return 0, err
		}
		total += d
	}
	return total, nil
}

// Norm is the global Euclidean norm over all fields.
func (s *State) Norm(ctx context.Context) (float64, error) {
	d, err := s.Dot(ctx, s)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(d), nil
}

// NormOfDiff is the relative distance 2|s-o| / (|s|+|o|). It is zero when
// both states vanish.
func (s *State) NormOfDiff(ctx context.Context, o *State) (float64, error) {
	diff := s.Clone()
	if err := diff.Sub(o); err != nil {
		return 0, err
	}
	nd, err := diff.Norm(ctx)
	if err != nil {
		return 0, err
	}
	ns, err := s.Norm(ctx)
	if err != nil {
		return 0, err
	}
	no, err := o.Norm(ctx)
	if err != nil {
		return 0, err
	}
	if ns+no == 0 {
		return 0, nil
	}
	return 2 * nd / (ns + no), nil
}

// Sync refreshes the halo cells of every field.
func (s *State) Sync(ctx context.Context) error {
	for _, f := range s.fields {
		if err := f.Sync(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) HasNaN() bool {
	for _, f := range s.fields {
		if f.HasNaN() {
			return true
		}
	}
	return false
}
