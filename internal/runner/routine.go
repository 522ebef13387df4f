package runner

import (
	"context"

	"github.com/bbservices/bbservices/pkg/service"
)

// Routine returns a service routine executing cmd with r. The produced object
// is the Result, the service succeeds iff the process exited with code 0.
func Routine(r Runner, cmd Command) service.Routine[Result] {
	return service.RoutineFunc[Result](func(ctx context.Context, s *service.Service[Result]) error {
		result, err := r.Run(ctx, cmd)
		s.SetObject(result)
		if err != nil {
			return err
		}
		if result.Err != nil {
			return result.Err
		}
		s.SetSuccessful(result.ExitCode == 0)
		return nil
	})
}
