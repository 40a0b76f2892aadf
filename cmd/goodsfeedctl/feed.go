package main

import (
	"context"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Gunvolt24/goodsfeed/config"
	"github.com/Gunvolt24/goodsfeed/internal/app"
	cacheredis "github.com/Gunvolt24/goodsfeed/internal/cache/redis"
	"github.com/Gunvolt24/goodsfeed/internal/domain"
	"github.com/Gunvolt24/goodsfeed/internal/ports"
	"github.com/Gunvolt24/goodsfeed/internal/repo/postgres"
	"github.com/Gunvolt24/goodsfeed/pkg/logger"
)

// feed - то, что нужно командам от прикладного слоя.
type feed interface {
	ports.FeedService
	Apply(ctx context.Context, ev domain.Event) error
	Wait()
}

// opener - открывает прикладной слой; close освобождает ресурсы.
type opener func(ctx context.Context) (f feed, log ports.Logger, close func(), err error)

// openFeed - та же сборка, что у сервера, но без HTTP, Kafka и планировщика.
func openFeed(ctx context.Context) (feed, ports.Logger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	logg, cleanupLogger, err := logger.NewZapLogger(cfg.Logger.IsProd)
	if err != nil {
		return nil, nil, nil, err
	}
	closers := []func(){func() { _ = cleanupLogger() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	pool, err := postgres.NewPool(ctx, postgres.PoolOptions{
		DSN:             cfg.Postgres.DSN,
		MaxConns:        cfg.Postgres.MaxConns,
		MinConns:        cfg.Postgres.MinConns,
		MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
		MaxConnIdleTime: cfg.Postgres.MaxConnIdleTime,
	})
	if err != nil {
		closeAll()
		return nil, nil, nil, err
	}
	closers = append(closers, pool.Close)

	var rdb goredis.UniversalClient
	if !strings.EqualFold(strings.TrimSpace(cfg.Cache.Backend), app.BackendMemory) {
		client, err := cacheredis.NewClient(ctx, cacheredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			closeAll()
			return nil, nil, nil, err
		}
		rdb = client
		closers = append(closers, func() { _ = client.Close() })
	}

	core, err := app.BuildCore(cfg, pool, rdb, logg)
	if err != nil {
		closeAll()
		return nil, nil, nil, err
	}
	closers = append(closers, core.Feed.Wait)
	return core.Feed, logg, closeAll, nil
}
