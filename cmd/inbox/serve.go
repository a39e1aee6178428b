package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/LeventeLantos/wa-inbox/internal/api"
	"github.com/LeventeLantos/wa-inbox/internal/broadcast"
	"github.com/LeventeLantos/wa-inbox/internal/client"
	"github.com/LeventeLantos/wa-inbox/internal/config"
	"github.com/LeventeLantos/wa-inbox/internal/ingest"
	"github.com/LeventeLantos/wa-inbox/internal/scheduler"
	"github.com/LeventeLantos/wa-inbox/internal/service"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP API, webhook endpoint and live updates",
		Args:    cobra.NoArgs,
		Example: "  inbox serve\n  inbox serve --addr :8080",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadAll()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}
			setupLogger(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: SERVER_ADDRESS)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	d, err := openDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	hub := broadcast.NewHub(cfg.Server.AllowedOrigins, cfg.Broadcast.ClientQueueSize)
	disp := broadcast.NewDispatcher(cfg.Broadcast.QueueSize, d.sinks(hub)...)
	go disp.Run(ctx)

	if d.relay != nil {
		go func() {
			if err := d.relay.Run(ctx, hub.Deliver); err != nil {
				slog.Error("redis relay subscription failed", "err", err)
			}
		}()
	}

	rec := service.NewReconciler(d.store).WithHooks(d.writeHooks(disp)...)

	sender := service.NewSender(rec, cfg.Send.ContentMax)
	if cfg.Relay.URL != "" {
		timeout := time.Duration(cfg.Relay.TimeoutSeconds) * time.Second
		sender = sender.WithRelay(client.NewRelayClient(cfg.Relay.URL, timeout))
	}

	inbox := service.NewInbox(d.store, rec, sender)
	if d.cache != nil {
		inbox = inbox.WithCache(d.cache)
	}

	var sched *scheduler.Scheduler
	if interval := cfg.Ingest.Interval(); interval > 0 {
		// Rescans replay files that were mostly applied before; they refresh
		// the cache but do not re-broadcast.
		driver := ingest.NewDriver(service.NewReconciler(d.store).WithHooks(d.writeHooks(nil)...), cfg.Ingest.Workers)
		dir := cfg.Ingest.Dir

		sched, err = scheduler.New("payload-rescan", interval, func(ctx context.Context) {
			items, err := ingest.ReadDir(dir)
			if err != nil {
				slog.Warn("payload rescan skipped", "dir", dir, "err", err)
				return
			}
			driver.Run(ctx, items)
		})
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.Send.RatePerSecond), cfg.Send.Burst)
	handler := api.Router(api.NewHandler(inbox, sched), api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		SendLimiter:    limiter,
		Live:           hub,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", cfg.Server.Address, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "err", err)
	}
	hub.Close()
	disp.Drain(shutdownCtx)
	return nil
}
