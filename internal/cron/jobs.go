package cron

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"github.com/example/clinic/internal/otp"
)

// StaleSweeper is the part of otp.Store the sweep job needs.
type StaleSweeper interface {
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

// BalanceChecker reports the SMS account balance, or nil when unavailable.
type BalanceChecker interface {
	CheckBalance(ctx context.Context) map[string]any
}

// SweepStale removes OTP records created more than retention before now.
func SweepStale(ctx context.Context, store StaleSweeper, retention time.Duration, now time.Time) (int64, error) {
	return store.DeleteStale(ctx, now.Add(-retention))
}

// RegisterSweep schedules the stale OTP sweep every interval.
func RegisterSweep(s gocron.Scheduler, store otp.Store, retention, interval time.Duration, log zerolog.Logger) error {
	_, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func(ctx context.Context) error {
			removed, err := SweepStale(ctx, store, retention, time.Now())
			if err != nil {
				return err
			}
			if removed > 0 {
				log.Info().Int64("removed", removed).Msg("swept stale otp records")
			}
			return nil
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("OTP Sweep Stale Records"),
	)
	return err
}

// RegisterBalanceCheck logs the SMS balance every interval.
func RegisterBalanceCheck(s gocron.Scheduler, checker BalanceChecker, interval time.Duration, log zerolog.Logger) error {
	_, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func(ctx context.Context) {
			balance := checker.CheckBalance(ctx)
			if balance == nil {
				log.Warn().Msg("sms balance unavailable")
				return
			}
			log.Info().Interface("balance", balance).Msg("sms balance")
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("SMS Balance Check"),
	)
	return err
}
