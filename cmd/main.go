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

	"github.com/senyabanana/proposal-service/internal/clock"
	"github.com/senyabanana/proposal-service/internal/db"
	"github.com/senyabanana/proposal-service/internal/handlers"
	"github.com/senyabanana/proposal-service/internal/lock"
	"github.com/senyabanana/proposal-service/internal/repository"
	"github.com/senyabanana/proposal-service/internal/router"
	"github.com/senyabanana/proposal-service/internal/router/config"
	"github.com/senyabanana/proposal-service/internal/services"
	"github.com/senyabanana/proposal-service/internal/storage"
	"github.com/senyabanana/proposal-service/internal/tasks"
	"github.com/senyabanana/proposal-service/internal/validation"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
)

const (
	modeAPI    = "api"
	modeWorker = "worker"
	modeAll    = "all"

	lockTTL = 30 * time.Second
)

func main() {
	mode := pflag.StringP("mode", "m", modeAll, "run mode: api, worker or all")
	configPath := pflag.String("config", ".", "directory with app.env")
	pflag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if *mode != modeAPI && *mode != modeWorker && *mode != modeAll {
		logger.Error("unknown run mode", slog.String("mode", *mode))
		os.Exit(2)
	}
	if err := run(*mode, *configPath, logger); err != nil {
		logger.Error("service stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(mode, configPath string, logger *slog.Logger) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	taxes, err := cfg.TaxTable()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.RunMigrations(cfg.MigrationURL, cfg.DSN()); err != nil {
		return err
	}
	logger.Info("db migrated successfully")

	dbPool, err := db.InitDb(ctx, cfg)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	var (
		rdb    *redis.Client
		locker lock.Locker = lock.NewMemoryLocker()
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		locker = lock.NewRedisLocker(rdb, lockTTL, logger)
	} else {
		logger.Warn("REDIS_ADDR is not set, project locks are local to this process")
	}

	var files storage.FileStore
	if cfg.AwsS3Bucket != "" {
		s3Store, err := storage.NewS3FileStore(ctx, cfg)
		if err != nil {
			return err
		}
		files = s3Store
	} else {
		logger.Warn("AWS_S3_BUCKET is not set, attachments are disabled")
	}

	store := repository.NewPostgresStore(dbPool)
	clk := clock.Real()
	proposalService := services.NewProposalService(store, locker, clk, validation.NewCalculator(taxes), files, loc, logger)
	projectService := services.NewProjectService(store, locker, clk, loc, logger)

	errc := make(chan error, 2)

	if mode == modeAPI || mode == modeAll {
		routes := router.InitRoutes(
			handlers.NewProposalHandler(proposalService, logger, cfg.RequestTimeout, cfg.MaxUploadMB<<20),
			handlers.NewProjectHandler(projectService, logger, cfg.RequestTimeout),
			router.Options{
				JWTSecret:      cfg.JWTSecret,
				RateLimitRPS:   cfg.RateLimitRPS,
				RateLimitBurst: cfg.RateLimitBurst,
				DB:             dbPool,
				Logger:         logger,
			},
		)
		srv := &http.Server{Addr: cfg.ServerAddress, Handler: routes, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			logger.Info("server is listening", slog.String("address", cfg.ServerAddress))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
				return
			}
			errc <- nil
		}()
		defer shutdown(srv, logger)
	}

	if mode == modeWorker || mode == modeAll {
		processor := tasks.NewTaskProcessor(proposalService, logger)
		if rdb == nil {
			go func() { errc <- sweepLocally(ctx, processor, cfg.ExpirySweepInterval, logger) }()
		} else {
			opt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
			worker, mux := tasks.SetupServer(opt, processor, logger)
			if err := worker.Start(mux); err != nil {
				return err
			}
			defer worker.Shutdown()

			scheduler, err := tasks.NewScheduler(opt, cfg.ExpirySweepInterval, loc, logger)
			if err != nil {
				return err
			}
			if err := scheduler.Start(); err != nil {
				return err
			}
			defer scheduler.Shutdown()
		}
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-errc:
		return err
	}
}

// sweepLocally запускает обход просроченных предложений по таймеру без очереди.
func sweepLocally(ctx context.Context, processor *tasks.TaskProcessor, interval time.Duration, logger *slog.Logger) error {
	logger.Warn("REDIS_ADDR is not set, expiry sweep runs in process", slog.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			task, err := tasks.NewExpireSweepTask(now)
			if err != nil {
				return err
			}
			// Ошибка уже записана в лог, следующий тик повторит обход.
			_ = processor.HandleExpireSweepTask(ctx, task)
		}
	}
}

func shutdown(srv *http.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
}
