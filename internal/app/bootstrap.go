package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Gunvolt24/goodsfeed/config"
	cacheredis "github.com/Gunvolt24/goodsfeed/internal/cache/redis"
	"github.com/Gunvolt24/goodsfeed/internal/events"
	"github.com/Gunvolt24/goodsfeed/internal/kafka"
	"github.com/Gunvolt24/goodsfeed/internal/ports"
	"github.com/Gunvolt24/goodsfeed/internal/repo/postgres"
	"github.com/Gunvolt24/goodsfeed/internal/scheduler"
	rest "github.com/Gunvolt24/goodsfeed/internal/transport/http"
	"github.com/Gunvolt24/goodsfeed/internal/usecase"
	"github.com/Gunvolt24/goodsfeed/pkg/ctxmeta"
	"github.com/Gunvolt24/goodsfeed/pkg/logger"
	"github.com/Gunvolt24/goodsfeed/pkg/metrics"
	"github.com/Gunvolt24/goodsfeed/pkg/telemetry"
)

// App - собранное приложение и его внешние интерфейсы (HTTP, consumer, планировщик).
type App struct {
	Logger          ports.Logger          // логгер
	HTTPServer      *http.Server          // HTTP-сервер
	MetricsServer   *http.Server          // отдельный листенер /metrics; nil - только на основном роутере
	KafkaConsumer   ports.MessageConsumer // консьюмер событий; nil - выключен
	Scheduler       *scheduler.Scheduler  // планировщик согласования; nil - выключен
	gracefulTimeout time.Duration         // время ожидания завершения HTTP-сервера
}

// Cleanup - функция освобождения ресурсов.
type Cleanup func()

// applyGinMode - устанавливает режим Gin по строке;
// неизвестное значение → debug и предупреждение в лог.
func applyGinMode(ctx context.Context, mode string, log ports.Logger) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	case "", "debug":
		gin.SetMode(gin.DebugMode)
	default:
		gin.SetMode(gin.DebugMode)
		log.Warnf(ctx, "unknown GIN_MODE=%q, fallback to debug", mode)
	}
}

// ReconcileJob - задача планировщика: один проход согласования счётчиков.
func ReconcileJob(r *usecase.Reconciler, log ports.Logger) scheduler.Job {
	return func(ctx context.Context) error {
		ctx = ctxmeta.WithOrigin(ctx, ctxmeta.OriginScheduler)
		report, err := r.RunScheduledPass(ctx)
		if err != nil {
			return err
		}
		if !report.Skipped && report.Pending > 0 {
			log.Infof(ctx, "reconcile pass pending=%d applied=%d unchanged=%d conflicts=%d dropped=%d failed=%d took=%s",
				report.Pending, report.Applied, report.Unchanged, report.Conflicts, report.Dropped, report.Failed, report.Duration)
		}
		return nil
	}
}

// newMetricsServer - promhttp на addr; пустой адрес или совпадающий с HTTP выключает листенер.
func newMetricsServer(addr, httpAddr string) *http.Server {
	addr = strings.TrimSpace(addr)
	if addr == "" || addr == httpAddr {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

// Bootstrap - собирает зависимости и возвращает приложение, функцию очистки и ошибку.
func Bootstrap(ctx context.Context, cfg *config.Config) (*App, Cleanup, error) {
	// Логгер (dev/prod режим задаётся конфигурацией).
	logg, cleanupLogger, err := logger.NewZapLogger(cfg.Logger.IsProd)
	if err != nil {
		return nil, func() {}, err
	}

	// Освобождение ресурсов в обратном порядке; дополняется по мере сборки.
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		if cerr := cleanupLogger(); cerr != nil {
			logg.Warnf(ctx, "cleanup logger: %v", cerr)
		}
	}
	fail := func(err error) (*App, Cleanup, error) {
		cleanup()
		return nil, func() {}, err
	}

	// Регистрация метрик (Prometheus).
	metrics.MustRegister()

	// Пул подключений Postgres
	pool, err := postgres.NewPool(ctx, postgres.PoolOptions{
		DSN:             cfg.Postgres.DSN,
		MaxConns:        cfg.Postgres.MaxConns,
		MinConns:        cfg.Postgres.MinConns,
		MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
		MaxConnIdleTime: cfg.Postgres.MaxConnIdleTime,
	})
	if err != nil {
		return fail(err)
	}
	closers = append(closers, pool.Close)

	// Redis (только для бэкенда redis).
	var rdb goredis.UniversalClient
	if !strings.EqualFold(strings.TrimSpace(cfg.Cache.Backend), BackendMemory) {
		client, rErr := cacheredis.NewClient(ctx, cacheredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if rErr != nil {
			return fail(rErr)
		}
		rdb = client
		closers = append(closers, func() {
			if cErr := client.Close(); cErr != nil {
				logg.Warnf(ctx, "redis close: %v", cErr)
			}
		})
	}

	// Трейсинг OTEL (при включённой конфигурации); по умолчанию - no-op.
	if cfg.Tracing.Enabled {
		shutdownTrace, tErr := telemetry.SetupTracing(ctx, telemetry.Options{
			ServiceName: cfg.Tracing.ServiceName,
			Endpoint:    cfg.Tracing.Endpoint,
			SampleRatio: cfg.Tracing.SampleRatio,
		})
		if tErr != nil {
			logg.Warnf(ctx, "failed to setup tracing: %v", tErr)
		} else {
			logg.Infof(ctx, "otel tracing enabled service=%s endpoint=%s sample=%.2f",
				cfg.Tracing.ServiceName, cfg.Tracing.Endpoint, cfg.Tracing.SampleRatio)
			closers = append(closers, func() {
				if terr := shutdownTrace(context.Background()); terr != nil {
					logg.Warnf(ctx, "shutdown tracing: %v", terr)
				}
			})
		}
	}

	// Прикладной слой.
	core, err := BuildCore(cfg, pool, rdb, logg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, core.Feed.Wait)

	// Режим Gin.
	applyGinMode(ctx, cfg.HTTP.GinMode, logg)

	// Имя сервиса для otelgin (только при включённом трейсинге).
	otelServiceName := ""
	if cfg.Tracing.Enabled {
		otelServiceName = cfg.Tracing.ServiceName
	}

	// Роутер и HTTP-сервер.
	httpHandler := rest.NewHandler(core.Feed, logg, cfg.HTTP.HandlerTimeout)
	router := rest.NewRouter(httpHandler, cfg.HTTP.StaticDir, otelServiceName)

	app := &App{
		Logger: logg,
		HTTPServer: &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           router,
			ReadTimeout:       cfg.HTTP.ReadTimeout,
			WriteTimeout:      cfg.HTTP.WriteTimeout,
			ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
			IdleTimeout:       cfg.HTTP.IdleTimeout,
		},
		gracefulTimeout: cfg.HTTP.GracefulTimeout,
	}

	// Отдельный порт для Prometheus.
	app.MetricsServer = newMetricsServer(cfg.Metrics.Addr, cfg.HTTP.Addr)

	// Консьюмер событий товаров.
	if cfg.Kafka.Enabled {
		kafkaCfg := kafka.ConsumerConfig{
			Brokers:        cfg.Kafka.Brokers,
			GroupID:        cfg.Kafka.GroupID,
			Topic:          cfg.Kafka.Topic,
			StartOffset:    cfg.Kafka.StartOffset,
			ProcessTimeout: cfg.Kafka.ProcessTimeout,
			RetryInitial:   cfg.Kafka.RetryInitial,
			RetryMax:       cfg.Kafka.RetryMax,
		}
		consumer, kErr := kafka.NewConsumer(&kafkaCfg, events.NewHandler(core.Feed, logg), logg)
		if kErr != nil {
			return fail(kErr)
		}
		app.KafkaConsumer = consumer
	}

	// Планировщик согласования счётчиков.
	if cfg.Reconcile.Enabled {
		sched, sErr := scheduler.New("collect-reconcile", cfg.Reconcile.Cron,
			ReconcileJob(core.Reconciler, logg), logg,
			scheduler.WithRetryDelay(cfg.Reconcile.RetryDelay))
		if sErr != nil {
			return fail(sErr)
		}
		app.Scheduler = sched
	}

	return app, cleanup, nil
}

// Run - запускает HTTP-сервер, консьюмера и планировщик; ждёт отмены контекста
// или ошибки и останавливает их.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	errCh := make(chan error, 3)
	var wg sync.WaitGroup

	// Запуск консьюмера.
	if a.KafkaConsumer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Logger.Infof(ctx, "kafka consumer starting")
			if err := a.KafkaConsumer.Run(runCtx); err != nil {
				errCh <- err
			}
		}()
	}

	// Запуск планировщика.
	if a.Scheduler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.Scheduler.Run(runCtx); err != nil {
				errCh <- err
			}
		}()
	}

	// Листенер метрик: ошибка не останавливает сервис.
	if a.MetricsServer != nil {
		go func() {
			a.Logger.Infof(ctx, "metrics server starting (addr=%s)", a.MetricsServer.Addr)
			if err := a.MetricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.Logger.Warnf(ctx, "metrics server: %v", err)
			}
		}()
	}

	// Запуск HTTP-сервера.
	go func() {
		a.Logger.Infof(ctx, "http server starting (addr=%s)", a.HTTPServer.Addr)
		if err := a.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Ожидание сигнала остановки или фоновой ошибки.
	select {
	case <-ctx.Done():
		a.Logger.Infof(ctx, "shutdown requested, starting graceful shutdown")
	case err := <-errCh:
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			a.Logger.Infof(ctx, "background component stopped: %v", err)
		} else {
			a.Logger.Warnf(ctx, "background error: %v", err)
		}
	}

	gt := a.gracefulTimeout
	if gt <= 0 {
		gt = 5 * time.Second
	}

	// Корректная остановка HTTP-сервера.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), gt)
	defer cancel()

	if err := a.HTTPServer.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warnf(ctx, "http server shutdown failed: %v", err)
	} else {
		a.Logger.Infof(ctx, "http server stopped gracefully")
	}

	if a.MetricsServer != nil {
		if err := a.MetricsServer.Shutdown(shutdownCtx); err != nil {
			a.Logger.Warnf(ctx, "metrics server shutdown failed: %v", err)
		}
	}

	// Остановка фоновых компонентов: планировщик дожидается текущего прохода.
	cancelRun()
	wg.Wait()

	if a.KafkaConsumer != nil {
		if err := a.KafkaConsumer.Close(); err != nil {
			a.Logger.Warnf(ctx, "kafka consumer close error: %v", err)
		}
	}

	a.Logger.Infof(ctx, "service stopped")
	return nil
}
