// Package balance projects model states onto a slow, balanced manifold.
//
// OptimalBalance finds the state whose linear projection matches a given
// base point after the nonlinear terms are ramped off and on again:
//
//	ob, err := balance.New(balance.DefaultConfig(), proj, factory)
//	res, err := ob.Balance(ctx, z)
//
// Every call is collective over the ranks of the state's decomposition.
// An error that grows between two passes stops the iteration and keeps the
// previous candidate; that is reported through Result.Stop, not as an error.
package balance
