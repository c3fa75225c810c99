package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/spf13/cobra"

	"github.com/example/clinic/internal/config"
	"github.com/example/clinic/internal/cron"
	"github.com/example/clinic/internal/database"
	"github.com/example/clinic/internal/handlers"
	"github.com/example/clinic/internal/logging"
	"github.com/example/clinic/internal/middleware"
	"github.com/example/clinic/internal/otp"
	"github.com/example/clinic/internal/ratelimit"
	"github.com/example/clinic/internal/routes"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "clinic-otp",
		Short:         "Clinic OTP and SMS notification service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(smsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete OTP records older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if retention, _ := cmd.Flags().GetDuration("retention"); retention > 0 {
				cfg.OTPRetention = retention
			}

			log := logging.New(cfg.LogLevel, cfg.IsDev())
			ctx := cmd.Context()

			deps, err := newDeps(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer deps.Close()

			removed, err := cron.SweepStale(ctx, deps.Store, cfg.OTPRetention, time.Now())
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			fmt.Printf("Removed %d stale OTP record(s).\n", removed)
			return nil
		},
	}
	cmd.Flags().Duration("retention", 0, "Override OTP_RETENTION for this run")
	return cmd
}

func smsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sms",
		Short: "Query the SMS gateway",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "balance",
		Short: "Print the SMS account balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			sonali := newSonali(cfg, logging.New(cfg.LogLevel, cfg.IsDev()))
			return printJSON(sonali.CheckBalance(cmd.Context()), "balance")
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status <message-id>",
		Short: "Print the delivery status of a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			sonali := newSonali(cfg, logging.New(cfg.LogLevel, cfg.IsDev()))
			return printJSON(sonali.GetStatus(cmd.Context(), args[0]), "status")
		},
	})

	return cmd
}

func printJSON(payload map[string]any, what string) error {
	if payload == nil {
		return fmt.Errorf("sms gateway did not return a %s", what)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel, cfg.IsDev())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := newDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	ledger := otp.NewLedger(deps.Store, deps.Dispatcher, otp.Options{
		TTL:         cfg.OTPTTL,
		MaxAttempts: cfg.OTPMaxAttempts,
		Codes:       otp.NewNumericCodes(cfg.OTPCodeLength),
		Logger:      log.With().Str("component", "otp").Logger(),
	})

	otpCfg := handlers.OTPConfig{
		GrantSecret: cfg.JWTSecret,
		GrantTTL:    cfg.OTPGrantTTL,
	}
	if deps.Redis != nil && cfg.RateLimitEnabled() {
		otpCfg.Limiter = ratelimit.New(ratelimit.NewRedisCounter(deps.Redis), cfg.RateLimitWindow, cfg.RateLimitMax, cfg.RateLimitCooldown)
	}

	var authHandler *handlers.AuthHandler
	if deps.DB != nil {
		users := database.NewUserRepository(deps.DB)
		otpCfg.Phones = users
		authHandler = handlers.NewAuthHandler(users, cfg, log)

		created, err := database.SeedAdministrator(deps.DB, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return fmt.Errorf("seed administrator: %w", err)
		}
		if created {
			log.Info().Str("email", cfg.AdminEmail).Msg("administrator account created")
		}
	}

	smsHandler := handlers.NewSMSHandler(nil)
	if deps.Sonali != nil {
		smsHandler = handlers.NewSMSHandler(deps.Sonali)
	}

	scheduler, err := cron.NewScheduler(ctx, log)
	if err != nil {
		return fmt.Errorf("cron scheduler: %w", err)
	}
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			log.Err(err).Msg("error while shutting down the cron scheduler")
		}
	}()
	if err := cron.RegisterSweep(scheduler, deps.Store, cfg.OTPRetention, cfg.SweepInterval, log); err != nil {
		return fmt.Errorf("register sweep job: %w", err)
	}
	if deps.Sonali != nil && cfg.BalanceInterval > 0 {
		if err := cron.RegisterBalanceCheck(scheduler, deps.Sonali, cfg.BalanceInterval, log); err != nil {
			return fmt.Errorf("register balance job: %w", err)
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      "Clinic OTP",
		ErrorHandler: handlers.ErrorHandler(log),
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.Logger(log))

	routes.Register(app, routes.Handlers{
		Auth:      authHandler,
		OTP:       handlers.NewOTPHandler(ledger, otpCfg, log.With().Str("component", "otp_http").Logger()),
		SMS:       smsHandler,
		JWTSecret: cfg.JWTSecret,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.AppPort).Str("otp_store", cfg.OTPStore).Str("sms_provider", cfg.SMSProvider).Msg("starting server")
		errCh <- app.Listen(":" + cfg.AppPort)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("fiber.Listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	return app.ShutdownWithTimeout(10 * time.Second)
}
