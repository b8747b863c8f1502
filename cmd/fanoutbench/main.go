// fanoutbench 对配置中的数据库压测写扩散：一个作者 N 个粉丝，连续发布 ACTIONS 个 join。
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/activity-feed/config"
	"github.com/d60-Lab/activity-feed/internal/model"
	"github.com/d60-Lab/activity-feed/internal/repository"
	"github.com/d60-Lab/activity-feed/internal/service"
	"github.com/d60-Lab/activity-feed/pkg/database"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return v
		}
	}
	return def
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(xs) {
		k = len(xs) - 1
	}
	return xs[k]
}

func avg(vs []time.Duration) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range vs {
		sum += d
	}
	return sum / time.Duration(len(vs))
}

func main() {
	ctx := context.Background()
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))
	if err := database.Migrate(db); err != nil {
		panic(err)
	}

	n := envInt("N", 20000)
	actions := envInt("ACTIONS", 100)
	chunk := envInt("CHUNK", cfg.Fanout.ChunkSize)
	workers := envInt("WORKERS", cfg.Fanout.Concurrency)

	// 本地压测数据，可重复运行
	author := "bench-author"
	db.Where("user_id = ?", author).Delete(&model.UserFollower{})
	records := make([]model.UserFollower, n)
	now := time.Now()
	for i := range records {
		records[i] = model.UserFollower{
			ID: uuid.NewString(), UserID: author, FollowerID: uuid.NewString(),
			Status: model.FollowerActive, CreatedAt: now, UpdatedAt: now,
		}
	}
	if err := db.CreateInBatches(&records, 1000).Error; err != nil {
		panic(err)
	}

	var followers repository.FollowerRepository = repository.NewFollowerRepository(db)
	cached := false
	if cfg.Fanout.FollowerCacheTTL > 0 {
		if rdb, err := database.InitRedis(ctx, cfg.Redis); err == nil {
			defer rdb.Close()
			followers = repository.NewCachedFollowerRepository(followers, rdb, cfg.Fanout.FollowerCacheTTL)
			cached = true
		} else {
			fmt.Printf("redis unavailable, running without follower cache: %v\n", err)
		}
	}

	repos := repository.NewRepositories(db)
	fanout := service.NewFanoutService(followers, repos.Feeds, chunk, workers)
	dispatcher := service.NewDispatcher(service.NewActionStore(repos.Actions), fanout, repository.NewUnitOfWork(db))

	first := make([]time.Duration, 0, actions)
	again := make([]time.Duration, 0, actions)
	var activities []string
	for i := 0; i < actions; i++ {
		activityID := uuid.NewString()
		activities = append(activities, activityID)
		evt := model.ActivityUpdated{Auth: model.Auth{UserID: author}, Action: string(model.VerbJoin), ActivityID: activityID}

		st := time.Now()
		if _, err := dispatcher.HandleUpdated(ctx, evt); err != nil {
			panic(err)
		}
		first = append(first, time.Since(st))

		// 重复投递：集合不变，只做差集比较
		st = time.Now()
		if _, err := dispatcher.HandleUpdated(ctx, evt); err != nil {
			panic(err)
		}
		again = append(again, time.Since(st))
	}

	fmt.Printf("N=%d ACTIONS=%d CHUNK=%d WORKERS=%d CACHE=%v\n", n, actions, chunk, workers, cached)
	fmt.Printf("First fan-out:  avg=%v p95=%v p99=%v\n", avg(first), pct(first, 0.95), pct(first, 0.99))
	fmt.Printf("Redelivery:     avg=%v p95=%v p99=%v\n", avg(again), pct(again, 0.95), pct(again, 0.99))

	deletion := service.NewDeletionService(repository.NewUnitOfWork(db), chunk)
	del := make([]time.Duration, 0, len(activities))
	for _, id := range activities {
		st := time.Now()
		if _, err := deletion.DeleteActivity(ctx, id); err != nil {
			panic(err)
		}
		del = append(del, time.Since(st))
	}
	fmt.Printf("Cascade delete: avg=%v p95=%v p99=%v\n", avg(del), pct(del, 0.95), pct(del, 0.99))

	db.Where("user_id = ?", author).Delete(&model.UserFollower{})
}
