// Package domain splits a structured N-dimensional grid across a group of
// ranks and keeps the halo cells of the local blocks consistent.
//
// Ranks are goroutines of one process that exchange messages through a
// [World]; each rank is single-threaded and every collective ([Decomposition.Sync],
// [Decomposition.Reduce], [Decomposition.GatherGlobal]) must be called by all
// ranks in the same order:
//
//	err := domain.Run(ctx, 4, func(ctx context.Context, comm domain.Communicator) error {
//	    dec, err := domain.New(comm, []int{64, 64}, []int{0}, 2)
//	    if err != nil {
//	        return err
//	    }
//	    ...
//	    return dec.Sync(ctx, data, dec.Subdomain().LocalShape())
//	})
package domain
