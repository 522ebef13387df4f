// Package service implements service objects: units of business logic wrapped
// in a uniform run lifecycle.
//
// # Lifecycle
//
// A Service starts in the not-run state. Run (or RunE) moves it to running and
// then to a completed state, either succeeded or failed:
//
//	NotRun -> Running -> Succeeded | Failed
//
// The lifecycle is driven exactly once per instance. The work itself is supplied
// by a Routine. A routine reports failure by returning an error (a recovered
// panic is treated the same way, see PanicError) or by leaving the success flag
// unset. A nil routine is a no-op success.
//
// Run records failures on the Service and never returns them. RunE records the
// failure and returns it to the caller as well:
//
//	s := service.Define("greet", service.Produce(greet)).Run(ctx, service.Params{"name": "bob"})
//	if s.Failed() {
//	    slog.ErrorContext(ctx, "greeting failed", "error", s.Err())
//	}
//
//	s, err := service.Define("greet", service.Produce(greet)).RunE(ctx, nil)
//
// Before Run both Succeeded and Failed report false.
//
// # Blueprints
//
// A Blueprint is the immutable definition of a kind of service: its name, its
// routine and a default Class. Instances resolve their Class from an instance
// override first and fall back to the Blueprint default.
//
// # Partial work
//
// There is no rollback. Whatever the routine assigned before failing stays in
// place, so Object is only meaningful once Succeeded reports true.
package service
