package app

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Gunvolt24/goodsfeed/config"
	cachemem "github.com/Gunvolt24/goodsfeed/internal/cache/memory"
	cacheredis "github.com/Gunvolt24/goodsfeed/internal/cache/redis"
	"github.com/Gunvolt24/goodsfeed/internal/domain"
	"github.com/Gunvolt24/goodsfeed/internal/ports"
	"github.com/Gunvolt24/goodsfeed/internal/repo/postgres"
	"github.com/Gunvolt24/goodsfeed/internal/usecase"
	"github.com/Gunvolt24/goodsfeed/pkg/jitter"
)

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Core - собранный прикладной слой без внешних интерфейсов (HTTP, Kafka, планировщик).
type Core struct {
	Feed       *usecase.GoodsFeed
	Reconciler *usecase.Reconciler
}

// caches - реализации портов кэша для выбранного бэкенда.
type caches struct {
	goodsIndex ports.OrderedIndex
	userIndex  ports.OrderedIndex
	goodsCards ports.ProjectionCache[domain.GoodsCard]
	userCards  ports.ProjectionCache[domain.UserCard]
	counters   ports.CounterCache
	pending    ports.PendingSet
	locker     ports.Locker
}

// BuildCore - собирает GoodsFeed поверх Postgres и кэшей.
// rdb обязателен для бэкенда redis и игнорируется для memory.
func BuildCore(cfg *config.Config, pool *pgxpool.Pool, rdb goredis.UniversalClient, log ports.Logger) (*Core, error) {
	cs, err := buildCaches(cfg, rdb)
	if err != nil {
		return nil, err
	}

	goodsRepo := postgres.NewGoodsRepository(pool)
	userRepo := postgres.NewUserRepository(pool)

	counterSvc := usecase.NewCounterService(cs.counters, cs.pending, goodsRepo, log, usecase.CounterConfig{
		TTL:    cfg.Cache.CounterTTL,
		Jitter: cfg.Cache.CounterJitter,
	})
	reconciler := usecase.NewReconciler(counterSvc, cs.pending, cs.locker, log, usecase.ReconcilerConfig{
		LockName: cfg.Reconcile.LockName,
		LockTTL:  cfg.Reconcile.LockTTL,
	})

	pageCfg := cursorCacheConfig(cfg)
	goods := usecase.NewPartitionedCursorCache[domain.GoodsCard](
		cs.goodsIndex, cs.goodsCards, goodsRepo, log, pageCfg,
		usecase.WithOverlay[domain.GoodsCard](counterSvc.OverlayCards),
		usecase.WithCachePrepare(domain.GoodsCard.WithoutCounter),
	)
	users := usecase.NewPartitionedCursorCache[domain.UserCard](
		cs.userIndex, cs.userCards, userRepo, log, pageCfg,
	)

	return &Core{
		Feed:       usecase.NewGoodsFeed(goods, users, goodsRepo, counterSvc, reconciler, log),
		Reconciler: reconciler,
	}, nil
}

func buildCaches(cfg *config.Config, rdb goredis.UniversalClient) (caches, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Cache.Backend)) {
	case BackendMemory:
		counters := cachemem.NewCounterCache(cfg.Cache.Capacity, jitter.NewRandom())
		index := cachemem.NewOrderedIndex()
		return caches{
			goodsIndex: index,
			userIndex:  index,
			goodsCards: cachemem.NewProjectionCache[domain.GoodsCard]("cards", cfg.Cache.Capacity, jitter.NewRandom()),
			userCards:  cachemem.NewProjectionCache[domain.UserCard]("users", cfg.Cache.Capacity, jitter.NewRandom()),
			counters:   counters,
			pending:    cachemem.NewPendingSet(counters, cfg.Reconcile.PendingTTL),
			locker:     cachemem.NewLocker(),
		}, nil
	case "", BackendRedis:
		if rdb == nil {
			return caches{}, fmt.Errorf("cache backend %q requires a redis client", BackendRedis)
		}
		index := cacheredis.NewOrderedIndex(rdb)
		return caches{
			goodsIndex: index,
			userIndex:  index,
			goodsCards: cacheredis.NewGoodsCardCache(rdb, jitter.NewRandom()),
			userCards:  cacheredis.NewUserCardCache(rdb, jitter.NewRandom()),
			counters:   cacheredis.NewCounterCache(rdb, jitter.NewRandom()),
			pending:    cacheredis.NewPendingSet(rdb, cfg.Reconcile.PendingTTL),
			locker:     cacheredis.NewLocker(rdb),
		}, nil
	default:
		return caches{}, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

func cursorCacheConfig(cfg *config.Config) usecase.CursorCacheConfig {
	def := usecase.DefaultCursorCacheConfig()
	out := usecase.CursorCacheConfig{
		DefaultSize:    cfg.Pagination.DefaultSize,
		MaxSize:        cfg.Pagination.MaxSize,
		CardTTL:        cfg.Cache.CardTTL,
		CardJitter:     cfg.Cache.CardJitter,
		IndexTTL:       cfg.Cache.IndexTTL,
		EmptyIndexTTL:  cfg.Cache.EmptyIndexTTL,
		RebuildTimeout: cfg.Cache.RebuildTimeout,
	}
	if out.DefaultSize <= 0 {
		out.DefaultSize = def.DefaultSize
	}
	if out.MaxSize <= 0 {
		out.MaxSize = def.MaxSize
	}
	if out.IndexTTL <= 0 {
		out.IndexTTL = def.IndexTTL
	}
	if out.EmptyIndexTTL <= 0 {
		out.EmptyIndexTTL = def.EmptyIndexTTL
	}
	return out
}
