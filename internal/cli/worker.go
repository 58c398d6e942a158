package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/huffmsa/nuts/api"
)

func newWorkerCmd() *cobra.Command {
	var (
		concurrency int
		httpAddr    string
		workflows   string
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a worker process",
		Long:  "Runs execution slots and campaigns for leadership. With --http-addr the control API is served as well.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := settings
			if cmd.Flags().Changed("concurrency") {
				s.Worker.Concurrency = concurrency
			}
			if cmd.Flags().Changed("http-addr") {
				s.HTTPAddr = httpAddr
			}
			if cmd.Flags().Changed("workflows") {
				s.Workflows = workflows
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWorker(ctx, s)
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 1, "Execution slots in this process")
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "Serve the control API on this address (e.g. :8000)")
	cmd.Flags().StringVar(&workflows, "workflows", "", "YAML file of additional workflow definitions")
	return cmd
}

func runWorker(ctx context.Context, s Settings) error {
	eng, closeStore, err := openEngine(s)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	if err := eng.Health(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.Run(gctx)
	})

	if s.HTTPAddr != "" {
		srv := &http.Server{
			Addr:              s.HTTPAddr,
			Handler:           api.New(eng, logger).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("control api listening", slog.String("addr", s.HTTPAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
