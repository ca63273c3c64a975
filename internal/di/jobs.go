package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/pricesentry/internal/clientdata"
	"github.com/aristath/pricesentry/internal/config"
	"github.com/aristath/pricesentry/internal/database"
	"github.com/aristath/pricesentry/internal/domain"
	"github.com/aristath/pricesentry/internal/reliability"
	"github.com/aristath/pricesentry/internal/scheduler"
)

// JobInstances holds the registered jobs for manual triggering
type JobInstances struct {
	SessionAM   scheduler.Job
	SessionPM   scheduler.Job
	Cleanup     scheduler.Job
	Maintenance scheduler.Job
	Rotation    scheduler.Job // nil when R2 is not configured
}

// RegisterJobs creates the serve-mode jobs and registers them with sched.
// ctx bounds session runs started by the scheduler.
func RegisterJobs(ctx context.Context, container *Container, cfg *config.Config, sched *scheduler.Scheduler, log zerolog.Logger) (*JobInstances, error) {
	databases := map[string]*database.DB{
		database.NameMain:       container.MainDB,
		database.NameClientData: container.ClientDataDB,
	}
	jobs := &JobInstances{
		SessionAM:   scheduler.NewSessionJob(ctx, container.Runner, domain.SessionAM, 0, log),
		SessionPM:   scheduler.NewSessionJob(ctx, container.Runner, domain.SessionPM, 0, log),
		Cleanup:     clientdata.NewCleanupJob(container.PriceRepo, cfg.Cache.Retention, log),
		Maintenance: reliability.NewMaintenanceJob(databases, cfg.DataDir, log),
	}

	type scheduled struct {
		spec string
		job  scheduler.Job
	}
	schedules := []scheduled{
		{cfg.Schedule.AM, jobs.SessionAM},
		{cfg.Schedule.PM, jobs.SessionPM},
		{cfg.Schedule.Cleanup, jobs.Cleanup},
		{cfg.Schedule.Maintenance, jobs.Maintenance},
	}
	if container.Archive != nil {
		jobs.Rotation = reliability.NewRotationJob(container.Archive, cfg.R2.Retention)
		schedules = append(schedules, scheduled{cfg.Schedule.Maintenance, jobs.Rotation})
	}

	for _, s := range schedules {
		if err := sched.AddJob(s.spec, s.job); err != nil {
			return nil, fmt.Errorf("failed to schedule %s (%q): %w", s.job.Name(), s.spec, err)
		}
	}
	return jobs, nil
}
