package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/taskboard/internal/config"
	"github.com/iliyamo/taskboard/internal/database"
	"github.com/iliyamo/taskboard/internal/docstore"
	"github.com/iliyamo/taskboard/internal/handler"
	"github.com/iliyamo/taskboard/internal/middleware"
	"github.com/iliyamo/taskboard/internal/queue"
	"github.com/iliyamo/taskboard/internal/repository"
	"github.com/iliyamo/taskboard/internal/router"
	"github.com/iliyamo/taskboard/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, closeStore, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	logger.Info("store ready", "driver", cfg.StoreDriver)

	// A nil interface keeps activity publishing off.
	var pub service.ActivityPublisher
	if cfg.QueueEnabled {
		pub = queue.NewPublisher(cfg.RabbitURL)
	}
	if cfg.QueueConsumerEnabled {
		consumer := &queue.Consumer{URL: cfg.RabbitURL, LogDir: cfg.ActivityLogDir, Logger: logger}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("activity consumer stopped", "error", err)
			}
		}()
	}

	users := service.NewUserService(stores.Users, cfg.BcryptCost, logger)
	auth := service.NewAuthService(users, stores.Tokens, cfg.JWTSecret, cfg.AccessTTLMin, cfg.RefreshTTLDays)
	tasks := service.NewTaskService(stores, pub, logger)
	kanban := service.NewKanbanService(stores, pub, logger)
	stats := service.NewStatisticsService(stores.Tasks, stores.Users, cfg.StatsLocation)

	if err := seed(ctx, cfg, users, kanban, logger); err != nil {
		return err
	}

	rl := config.LoadRateLimitConfig()
	cc := config.LoadCacheConfig()
	var rdb *redis.Client
	if rl.Enabled || cc.Enabled {
		rdb, err = config.NewRedisClient(ctx)
		if err != nil {
			logger.Warn("redis unavailable, rate limiting and caching disabled", "error", err)
		} else {
			defer rdb.Close()
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(requestLogger(logger))

	router.Register(e, router.Handlers{
		Auth:       handler.NewAuthHandler(auth, logger),
		Users:      handler.NewUserHandler(users, logger),
		Tasks:      handler.NewTaskHandler(tasks, logger),
		Kanban:     handler.NewKanbanHandler(kanban, logger),
		Statistics: handler.NewStatisticsHandler(stats, logger),
	}, auth,
		middleware.NewTokenBucket(rl, rdb, logger),
		middleware.NewRedisCache(cc, rdb, logger),
	)

	errc := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// openStores connects the configured backend and returns its stores with
// a function releasing the connection.
func openStores(ctx context.Context, cfg config.Config) (repository.Stores, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, err := docstore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return repository.Stores{}, nil, err
		}
		closeFn := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		}
		ds, err := docstore.New(ctx, client.Database(cfg.MongoDB))
		if err != nil {
			closeFn()
			return repository.Stores{}, nil, err
		}
		return ds.Stores(), closeFn, nil

	case config.DriverMySQL, config.DriverSQLite:
		var (
			db      *sql.DB
			dialect string
			err     error
		)
		if cfg.StoreDriver == config.DriverMySQL {
			dialect = database.DialectMySQL
			db, err = database.OpenMySQL(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		} else {
			dialect = database.DialectSQLite
			db, err = database.OpenSQLite(cfg.SQLitePath)
		}
		if err != nil {
			return repository.Stores{}, nil, err
		}
		if err := database.Migrate(ctx, db, dialect); err != nil {
			_ = db.Close()
			return repository.Stores{}, nil, err
		}
		return repository.NewSQLStores(db), func() { _ = db.Close() }, nil
	}
	return repository.Stores{}, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func seed(ctx context.Context, cfg config.Config, users *service.UserService, kanban *service.KanbanService, logger *slog.Logger) error {
	if cfg.AdminEmail != "" {
		created, err := users.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminUsername, cfg.AdminPassword)
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		if created {
			logger.Info("default admin created", "email", cfg.AdminEmail)
		}
	}
	if cfg.SeedKanban {
		created, err := kanban.EnsureDefaultColumns(ctx)
		if err != nil {
			return fmt.Errorf("seed kanban: %w", err)
		}
		if created {
			logger.Info("default kanban columns created")
		}
	}
	return nil
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
			}
			if v.Error != nil {
				logger.Error("request", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.Info("request", attrs...)
			return nil
		},
	})
}
