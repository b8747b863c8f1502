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

	"github.com/d60-Lab/activity-feed/internal/api"
	"github.com/d60-Lab/activity-feed/internal/api/handler"
	"github.com/d60-Lab/activity-feed/internal/queue"
	"github.com/d60-Lab/activity-feed/internal/repository"
	"github.com/d60-Lab/activity-feed/internal/service"
	"github.com/d60-Lab/activity-feed/pkg/logger"
)

func newAPICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "api",
		Short: "serve the admin HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()
			return runAPI(ctx, a)
		},
	}
}

func runAPI(ctx context.Context, a *app) error {
	if err := a.cfg.JWT.Validate(); err != nil {
		return fmt.Errorf("refusing to serve the api: %w", err)
	}
	h := handler.NewHandler(
		service.NewRelationshipService(a.followers()),
		queue.NewPublisher(a.redis),
		repository.NewFeedRepository(a.db),
		a.cfg.Queue,
	)
	srv := &http.Server{
		Addr:              ":" + a.cfg.Server.Port,
		Handler:           api.SetupRouter(a.cfg, h),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
