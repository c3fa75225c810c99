// Package cron runs the periodic OTP housekeeping jobs.
package cron

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// NewScheduler creates and starts a scheduler whose job events are logged to log.
func NewScheduler(ctx context.Context, log zerolog.Logger) (gocron.Scheduler, error) {
	zlog := log.With().Str("component", "cron").Logger()

	scheduler, err := gocron.NewScheduler(
		gocron.WithGlobalJobOptions(
			gocron.WithContext(ctx),
			gocron.WithEventListeners(
				gocron.BeforeJobRuns(func(jobID uuid.UUID, jobName string) {
					zlog.Debug().Str("job_name", jobName).Str("job_id", jobID.String()).Msg("job started")
				}),
				gocron.AfterJobRuns(func(jobID uuid.UUID, jobName string) {
					zlog.Debug().Str("job_name", jobName).Str("job_id", jobID.String()).Msg("job finished")
				}),
				gocron.AfterJobRunsWithError(func(jobID uuid.UUID, jobName string, err error) {
					zlog.Err(err).Str("job_name", jobName).Str("job_id", jobID.String()).Msg("error while running the job")
				}),
				gocron.AfterJobRunsWithPanic(func(jobID uuid.UUID, jobName string, recoverData any) {
					zlog.Error().Str("job_name", jobName).Str("job_id", jobID.String()).Any("recover_data", recoverData).Msg("job panicked")
				}),
			),
		),
		gocron.WithLogger(logger{l: &zlog}),
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, err
	}
	scheduler.Start()
	return scheduler, nil
}

type logger struct {
	l *zerolog.Logger
}

func (l logger) Debug(msg string, args ...any) {
	l.l.Debug().Msgf(msg, args...)
}
func (l logger) Error(msg string, args ...any) {
	l.l.Error().Msgf(msg, args...)
}
func (l logger) Info(msg string, args ...any) {
	l.l.Info().Msgf(msg, args...)
}
func (l logger) Warn(msg string, args ...any) {
	l.l.Warn().Msgf(msg, args...)
}
