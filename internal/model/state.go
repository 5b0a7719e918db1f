package model

import (
	"github.com/san-kum/flowsim/internal/field"
)

// State is the mutable state of one model: the current fields, their
// tendency, the iteration counter and the model time.
type State struct {
	Z  *field.State
	DZ *field.State
	It int
	T  float64

	control float64
}

func newState(z *field.State, t0 float64) *State {
	return &State{Z: z.Clone(), DZ: z.ZerosLike(), T: t0, control: 1}
}

func (s *State) Current() *field.State  { return s.Z }
func (s *State) Tendency() *field.State { return s.DZ }
func (s *State) Iteration() int         { return s.It }
func (s *State) Time() float64          { return s.T }
func (s *State) Control() float64       { return s.control }
