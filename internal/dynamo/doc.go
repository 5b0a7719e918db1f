// Package dynamo holds the error taxonomy shared by the stepping engine.
//
// Every failure the engine can produce falls in one of four classes:
//
//   - [ErrConfiguration]: invalid decomposition, integrator order or run
//     settings, raised before any communication happens
//   - [ErrCommunication]: a halo exchange or reduction that cannot complete
//   - [ErrModuleExecution]: an error raised inside a pipeline module
//   - [ErrDiverging]: the balancing iteration soft-stop, reported but never
//     returned as an error
//
// The wrapper types ([ConfigError], [CommError], [ModuleError],
// [SimulationError]) carry the component that raised the failure and unwrap
// to the sentinel, so callers match with errors.Is:
//
//	if errors.Is(err, dynamo.ErrConfiguration) {
//	    // fix the settings, do not retry
//	}
package dynamo
