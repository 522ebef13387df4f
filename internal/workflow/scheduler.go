package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	gocron "github.com/go-co-op/gocron/v2"

	"github.com/bbservices/bbservices/internal/model"
)

var ErrNothingScheduled = errors.New("no workflow has a schedule")

// Scheduler runs workflows on their schedule and publishes every report.
type Scheduler struct {
	publisher   model.Publisher
	workflows   []*Workflow
	immediately bool
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithStartImmediately runs every workflow once when the scheduler starts.
func WithStartImmediately() SchedulerOption {
	return func(s *Scheduler) { s.immediately = true }
}

// NewScheduler returns a scheduler for the workflows having a schedule.
func NewScheduler(publisher model.Publisher, workflows []*Workflow, opts ...SchedulerOption) (*Scheduler, error) {
	s := &Scheduler{publisher: publisher}
	for _, opt := range opts {
		opt(s)
	}
	for _, w := range workflows {
		if w.Schedule() == "" {
			slog.Warn("workflow has no schedule: ignoring", "workflow", w.Name())
			continue
		}
		if _, err := model.ParseSchedule(w.Schedule()); err != nil {
			return nil, fmt.Errorf("workflow %s: schedule: %w", w.Name(), err)
		}
		s.workflows = append(s.workflows, w)
	}
	if len(s.workflows) == 0 {
		return nil, ErrNothingScheduled
	}
	return s, nil
}

// Do starts the jobs and blocks until ctx is cancelled. gocron waits for the
// running workflows on shutdown.
func (s *Scheduler) Do(ctx context.Context) error {
	slog.DebugContext(ctx, "starting a scheduler", "workflows", len(s.workflows))

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("initializing gocron scheduler: %w", err)
	}
	for _, w := range s.workflows {
		job, err := jobDefinition(w.Schedule())
		if err != nil {
			_ = scheduler.Shutdown()
			return fmt.Errorf("workflow %s: %w", w.Name(), err)
		}
		opts := []gocron.JobOption{
			gocron.WithName(w.Name()),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		}
		if s.immediately {
			opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
		}
		_, err = scheduler.NewJob(job, gocron.NewTask(func() { s.run(ctx, w) }), opts...)
		if err != nil {
			_ = scheduler.Shutdown()
			return fmt.Errorf("initializing gocron job: %w", err)
		}
	}

	scheduler.Start()
	<-ctx.Done()

	if err := scheduler.Shutdown(); err != nil {
		slog.ErrorContext(ctx, "shutting down gocron has failed", "error", err)
	}
	return nil
}

func (s *Scheduler) run(ctx context.Context, w *Workflow) {
	if ctx.Err() != nil {
		return
	}

	report := w.Run(ctx)
	if s.publisher == nil {
		return
	}
	// publish even when the scheduler is stopping
	if err := s.publisher.Publish(context.WithoutCancel(ctx), report); err != nil {
		slog.ErrorContext(ctx, "publishing report has failed", "workflow", w.Name(), "error", err)
	}
}

// jobDefinition maps @every schedules to duration jobs, anything else is a
// cron job.
func jobDefinition(schedule string) (gocron.JobDefinition, error) {
	schedule = strings.TrimSpace(schedule)
	if every, ok := strings.CutPrefix(schedule, "@every "); ok {
		d, err := model.ParseDuration(strings.TrimSpace(every))
		if err != nil {
			return nil, fmt.Errorf("parsing schedule: %w", err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("parsing schedule: non positive duration %s", every)
		}
		return gocron.DurationJob(d), nil
	}
	return gocron.CronJob(schedule, false), nil
}
