package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/d60-Lab/activity-feed/internal/databus/activity"
	"github.com/d60-Lab/activity-feed/internal/queue"
	"github.com/d60-Lab/activity-feed/internal/repository"
	"github.com/d60-Lab/activity-feed/internal/service"
	"github.com/d60-Lab/activity-feed/pkg/logger"
	"github.com/d60-Lab/activity-feed/pkg/metrics"
)

func newWorkerCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "consume activity events and maintain actions and feeds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()
			return runWorker(ctx, a, metricsAddr)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address serving /metrics, empty to disable")
	return cmd
}

func runWorker(ctx context.Context, a *app, metricsAddr string) error {
	cfg := a.cfg
	repos := repository.NewRepositories(a.db)
	uow := repository.NewUnitOfWork(a.db)

	fanout := service.NewFanoutService(a.followers(), repos.Feeds, cfg.Fanout.ChunkSize, cfg.Fanout.Concurrency)
	dispatcher := service.NewDispatcher(service.NewActionStore(repos.Actions), fanout, uow)
	deletion := service.NewDeletionService(uow, cfg.Fanout.ChunkSize)

	opts := queue.OptionsFromConfig(cfg.Queue)
	if opts.Consumer == "" {
		host, _ := os.Hostname()
		opts.Consumer = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	consumer := queue.NewConsumer(a.redis, opts)
	consumer.Register(cfg.Queue.CreatedStream, activity.NewActivityCreatedHandler(dispatcher))
	consumer.Register(cfg.Queue.UpdatedStream, activity.NewActivityUpdatedHandler(dispatcher))
	consumer.Register(cfg.Queue.DeletedStream, activity.NewActivityDeletedHandler(deletion))

	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down worker", zap.Duration("timeout", cfg.Queue.ShutdownTimeout))
	select {
	case err := <-done:
		return err
	case <-time.After(cfg.Queue.ShutdownTimeout):
		return errors.New("worker shutdown timed out, unacked messages will be reclaimed")
	}
}
