package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/LeventeLantos/wa-inbox/internal/broadcast"
	"github.com/LeventeLantos/wa-inbox/internal/config"
	"github.com/LeventeLantos/wa-inbox/internal/ingest"
	"github.com/LeventeLantos/wa-inbox/internal/service"
)

type ingestOptions struct {
	Dir     string
	Workers int
	Watch   bool
	Settle  time.Duration
}

func newIngestCommand() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Apply webhook payload files from a directory",
		Args:  cobra.NoArgs,
		Example: `  inbox ingest
  inbox ingest --dir ./payloads --workers 8
  inbox ingest --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadAll()
			if err != nil {
				return err
			}
			if opts.Dir != "" {
				cfg.Ingest.Dir = opts.Dir
			}
			if opts.Workers > 0 {
				cfg.Ingest.Workers = opts.Workers
			}
			setupLogger(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runIngest(ctx, cfg, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", "", "Payload directory (default: PAYLOAD_DIR)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "Concurrent workers (default: INGEST_WORKERS)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Keep running and apply new files as they appear")
	cmd.Flags().DurationVar(&opts.Settle, "settle", 200*time.Millisecond, "Quiet period before a changed file is read")

	return cmd
}

// runIngest fails only when the store cannot be reached. Bad files are
// reported in the summary.
func runIngest(ctx context.Context, cfg *config.Config, opts ingestOptions, out io.Writer) error {
	d, err := openDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	var pub service.Publisher
	if sinks := d.sinks(nil); len(sinks) > 0 {
		disp := broadcast.NewDispatcher(cfg.Broadcast.QueueSize, sinks...)
		go disp.Run(ctx)
		defer disp.Drain(context.Background())
		pub = disp
	}

	rec := service.NewReconciler(d.store).WithHooks(d.writeHooks(pub)...)
	driver := ingest.NewDriver(rec, cfg.Ingest.Workers)

	items, err := ingest.ReadDir(cfg.Ingest.Dir)
	if err != nil {
		return fmt.Errorf("read payload dir: %w", err)
	}
	printReport(out, cfg.Ingest.Dir, driver.Run(ctx, items))

	if !opts.Watch {
		return nil
	}
	return ingest.Watch(ctx, cfg.Ingest.Dir, opts.Settle, func(ctx context.Context, it ingest.Item) {
		rep := driver.Run(ctx, []ingest.Item{it})
		slog.Debug("payload applied", "file", it.Name, "applied", rep.Applied())
	})
}

func printReport(w io.Writer, dir string, rep ingest.Report) {
	fmt.Fprintf(w, "Ingested %s: %d files\n", dir, rep.Total)
	fmt.Fprintf(w, "  inbound:   %d\n", rep.Inbound)
	fmt.Fprintf(w, "  status:    %d\n", rep.Status)
	fmt.Fprintf(w, "  no-op:     %d\n", rep.NoOp)
	fmt.Fprintf(w, "  malformed: %d\n", rep.Malformed)
	fmt.Fprintf(w, "  failed:    %d\n", rep.Failed)
	for _, f := range rep.Failures {
		fmt.Fprintf(w, "    - %s: %v\n", f.Name, f.Err)
	}
}
