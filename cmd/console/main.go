package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gasflow/ops-console/api/controllers"
	"github.com/gasflow/ops-console/api/routes"
	"github.com/gasflow/ops-console/internal/agents"
	"github.com/gasflow/ops-console/internal/assignments"
	"github.com/gasflow/ops-console/internal/coordinator"
	"github.com/gasflow/ops-console/internal/dashboard"
	"github.com/gasflow/ops-console/internal/dialogs"
	"github.com/gasflow/ops-console/internal/export"
	"github.com/gasflow/ops-console/internal/gateway"
	"github.com/gasflow/ops-console/internal/livesync"
	"github.com/gasflow/ops-console/internal/notices"
	"github.com/gasflow/ops-console/internal/session"
	"github.com/gasflow/ops-console/pkg/config"
	"github.com/gasflow/ops-console/pkg/db"
	"github.com/gasflow/ops-console/pkg/idempotency"
	"github.com/gasflow/ops-console/pkg/logger"
	"github.com/gasflow/ops-console/pkg/metrics"
	"github.com/gasflow/ops-console/pkg/migrate"
	"github.com/gasflow/ops-console/pkg/pubsub"
	"github.com/gasflow/ops-console/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "console"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "console",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "console stopped unexpectedly", err)
		os.Exit(1)
	}
}

// authRelay lets the gateway report 401s to a session built after it.
type authRelay struct {
	session *session.Session
}

func (a *authRelay) HandleAPIError(ctx context.Context, err *gateway.APIError) {
	if a.session != nil {
		a.session.HandleAPIError(ctx, err)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	var (
		redisClient *redis.Client
		store       redis.IdempotencyStore
	)
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		store = redisClient
	} else {
		logg.Warn(ctx, "redis not configured, using in-process idempotency store")
		store = idempotency.NewMemoryStore()
	}

	dedup, err := idempotency.NewManager(store, cfg.Push.IdempotencyTTL)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	refreshMetrics := metrics.NewRefreshMetrics(registry)
	pushMetrics := metrics.NewPushMetrics(registry)

	relay := &authRelay{}
	gw, err := gateway.NewClient(cfg.Backend.BaseURL,
		gateway.WithTokenSource(gateway.StaticToken(cfg.Backend.Token)),
		gateway.WithAuthHandler(relay),
		gateway.WithMetrics(metrics.NewGatewayMetrics(registry)),
		gateway.WithLogger(logg),
		gateway.WithTimeout(cfg.Backend.Timeout),
		gateway.WithExport(export.NewWriter(cfg.Console.CurrencyToken), cfg.Console.ExportLimit),
	)
	if err != nil {
		return err
	}

	board := notices.NewBoard(cfg.Console.NoticeHistory, logg)
	coord := coordinator.New(gw,
		coordinator.WithNotifier(board),
		coordinator.WithLogger(logg),
		coordinator.WithPageSize(cfg.Console.PageSize),
		coordinator.WithDebounce(cfg.Console.RefreshDebounce, coordinator.SystemClock),
		coordinator.WithMetrics(refreshMetrics),
		coordinator.WithContext(ctx),
	)
	defer coord.Close()

	roster := agents.NewRoster(gw, logg)
	dash := dashboard.New(gw,
		dashboard.WithAgents(roster),
		dashboard.WithLogger(logg),
		dashboard.WithWindow(cfg.Console.RefreshDebounce, coordinator.SystemClock),
		dashboard.WithMetrics(refreshMetrics),
		dashboard.WithContext(ctx),
	)
	defer dash.Close()

	dialogSvc := dialogs.NewService(gw, coord, roster,
		dialogs.WithCompensationStore(assignments.NewRepository(dbClient.DB())),
		dialogs.WithLogger(logg),
	)

	source, closeSource, err := pushSource(ctx, cfg, redisClient, logg)
	if err != nil {
		return err
	}
	defer closeSource()

	sess, err := session.New(session.Deps{
		Source:    source,
		Sink:      coord,
		Agents:    roster,
		Roster:    roster,
		Dashboard: dash,
		Dedup:     dedup,
		Push:      pushMetrics,
		Logger:    logg,
	})
	if err != nil {
		return err
	}
	relay.session = sess

	if err := sess.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := sess.Logout(context.Background()); err != nil {
			logg.Error(context.Background(), "session teardown failed", err)
		}
	}()

	ready := map[string]controllers.Pinger{"db": dbClient}
	if redisClient != nil {
		ready["redis"] = redisClient
	}

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Services{
			Orders:      coord,
			Dialogs:     dialogSvc,
			Exporter:    gw,
			Agents:      roster,
			Dashboard:   dash,
			Notices:     board,
			Idempotency: store,
			Gatherer:    registry,
			Ready:       ready,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveCtx := logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "addr": addr})
	logg.Info(serveCtx, "starting console server")

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info(context.Background(), "shutting down console server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// pushSource picks the live update transport for the configured driver.
func pushSource(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logg *logger.Logger) (livesync.Source, func(), error) {
	noop := func() {}
	switch cfg.Push.Driver {
	case config.PushDriverPubSub:
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.Push, logg)
		if err != nil {
			return nil, noop, err
		}
		source, err := livesync.NewPubSubSource(client.OrdersSubscription(), logg)
		if err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		return source, func() {
			if err := client.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}, nil
	case config.PushDriverRedis:
		if redisClient == nil {
			logg.Warn(ctx, "push driver is redis but redis is not configured, live updates disabled")
			return nil, noop, nil
		}
		source, err := livesync.NewRedisSource(redisClient, cfg.Push.RedisChannel, logg)
		if err != nil {
			return nil, noop, err
		}
		return source, noop, nil
	default:
		logg.Info(ctx, "live updates disabled")
		return nil, noop, nil
	}
}
