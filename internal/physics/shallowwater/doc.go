// Package shallowwater implements the rotating shallow water equations on a
// doubly periodic or walled f-plane:
//
//	du/dt =  f v - dh/dx - Ro (u.grad) u + Ah lap u
//	dv/dt = -f u - dh/dy - Ro (u.grad) v + Ah lap v
//	dh/dt = -csqr div(u) - Ro div(h u)
//
// All fields share the cell centers of a regular grid and derivatives are
// second order centered differences with a halo of one cell. The linear
// part conserves the discrete energy exactly in space.
//
// The geostrophic projector gives the base point for optimal balance and the
// nonlinear terms follow the ramp control factor of the model state.
package shallowwater
