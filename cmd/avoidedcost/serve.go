package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/bher20/avoidedcost/internal/alerting"
	"github.com/bher20/avoidedcost/internal/api"
	"github.com/bher20/avoidedcost/internal/auth"
	"github.com/bher20/avoidedcost/internal/cron"
	"github.com/bher20/avoidedcost/internal/notification"
)

func (a *app) serveCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("listen") {
				a.cfg.Listen = listen
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":8000", "listen address")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	opts, err := a.engineOptions()
	if err != nil {
		return err
	}
	st, err := a.openStorage(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	var authSvc *auth.Service
	if a.cfg.AuthEnabled {
		if authSvc, err = auth.NewService(ctx, st); err != nil {
			return err
		}
	} else {
		slog.Warn("auth disabled, the API is open")
	}

	srv := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           api.NewMux(st, authSvc, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("avoidedcost listening", "addr", srv.Addr, "driver", a.cfg.DBDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *app) workerCmd() *cobra.Command {
	var schedule string
	var once bool
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Recompute the stored portfolio on a schedule",
		Long: "Recomputes every stored project and stores the run. The schedule is a number\n" +
			"of seconds or a cron expression; the worker_schedule setting overrides it.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if cmd.Flags().Changed("schedule") {
				a.cfg.WorkerSchedule = schedule
			}
			opts, err := a.engineOptions()
			if err != nil {
				return err
			}
			st, err := a.openStorage(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			w := cron.NewWorker(st, opts, a.cfg.WorkerSchedule)
			alerter, err := a.alerter()
			if err != nil {
				return err
			}
			w.Alerter = alerter
			if once {
				_, err := w.RunOnce(ctx)
				return err
			}
			err = w.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", "", "seconds between runs or a cron expression")
	cmd.Flags().BoolVar(&once, "once", false, "run the job once and exit")
	return cmd
}

// alerter returns nil when neither a webhook nor email is configured.
func (a *app) alerter() (*alerting.Alerter, error) {
	cfg := alerting.Config{
		WebhookURL:  a.cfg.AlertWebhookURL,
		WebhookType: a.cfg.AlertWebhookType,
		MinFailures: a.cfg.AlertMinFailures,
	}
	if a.cfg.Email.Provider != "" {
		m, err := notification.NewMailer(a.cfg.Email)
		if err != nil {
			return nil, err
		}
		cfg.Mailer = m
	}
	if cfg.WebhookURL == "" && cfg.Mailer == nil {
		return nil, nil
	}
	return alerting.New(cfg), nil
}
