// @title Activity Feed Admin API
// @version 1.0
// @description 发布活动事件、维护关注关系、查看扇出结果
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/activity-feed/config"
	"github.com/d60-Lab/activity-feed/internal/repository"
	"github.com/d60-Lab/activity-feed/pkg/database"
	"github.com/d60-Lab/activity-feed/pkg/logger"
	"github.com/d60-Lab/activity-feed/pkg/monitoring"
	"github.com/d60-Lab/activity-feed/pkg/tracing"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "feedd",
		Short:         "activity feed fan-out service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default config/config.yaml)")
	root.AddCommand(newWorkerCmd(), newAPICmd(), newMigrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app 进程级依赖
type app struct {
	cfg   *config.Config
	db    *gorm.DB
	redis *redis.Client

	shutdownTracing func(context.Context) error
}

func bootstrap(ctx context.Context, withRedis bool) (*app, error) {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if err := monitoring.InitSentry(cfg.Sentry); err != nil {
		logger.Warn("sentry disabled", zap.Error(err))
	}
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return nil, err
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, db: db, shutdownTracing: shutdownTracing}

	if withRedis {
		if a.redis, err = database.InitRedis(ctx, cfg.Redis); err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

// followers 返回粉丝仓储，配置了 TTL 时带 Redis 缓存
func (a *app) followers() repository.FollowerRepository {
	return repository.NewCachedFollowerRepository(repository.NewFollowerRepository(a.db), a.redis, a.cfg.Fanout.FollowerCacheTTL)
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = database.Close(a.db)
	}
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}
	monitoring.Flush(2 * time.Second)
	logger.Sync()
}
