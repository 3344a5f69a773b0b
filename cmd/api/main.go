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

	"github.com/paperhouse/warehouse-backend/api/routes"
	"github.com/paperhouse/warehouse-backend/internal/auth"
	"github.com/paperhouse/warehouse-backend/internal/counts"
	"github.com/paperhouse/warehouse-backend/internal/invoices"
	"github.com/paperhouse/warehouse-backend/internal/ledger"
	"github.com/paperhouse/warehouse-backend/internal/maintenance"
	"github.com/paperhouse/warehouse-backend/internal/materials"
	"github.com/paperhouse/warehouse-backend/internal/notifications"
	"github.com/paperhouse/warehouse-backend/internal/orders"
	"github.com/paperhouse/warehouse-backend/internal/users"
	"github.com/paperhouse/warehouse-backend/internal/warehouses"
	"github.com/paperhouse/warehouse-backend/pkg/config"
	"github.com/paperhouse/warehouse-backend/pkg/db"
	"github.com/paperhouse/warehouse-backend/pkg/logger"
	"github.com/paperhouse/warehouse-backend/pkg/metrics"
	"github.com/paperhouse/warehouse-backend/pkg/migrate"
	"github.com/paperhouse/warehouse-backend/pkg/outbox"
	pkgredis "github.com/paperhouse/warehouse-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := pkgredis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	deps, err := buildServices(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(deps),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *pkgredis.Client) (routes.Deps, error) {
	conn := dbClient.DB()
	publisher := outbox.NewService(outbox.NewRepository(conn), logg)
	led := ledger.New(metrics.NewStockMetrics(prometheus.DefaultRegisterer))

	usersSvc, err := users.NewService(users.NewRepository(conn), cfg.Password)
	if err != nil {
		return routes.Deps{}, err
	}
	authSvc, err := auth.NewService(users.NewRepository(conn), cfg.JWT)
	if err != nil {
		return routes.Deps{}, err
	}
	warehousesSvc, err := warehouses.NewService(dbClient, warehouses.NewRepository(conn), led)
	if err != nil {
		return routes.Deps{}, err
	}
	materialsSvc, err := materials.NewService(dbClient, materials.NewRepository(conn), led, publisher)
	if err != nil {
		return routes.Deps{}, err
	}
	countsSvc, err := counts.NewService(dbClient, counts.NewRepository(conn), led, publisher)
	if err != nil {
		return routes.Deps{}, err
	}
	ordersSvc, err := orders.NewService(dbClient, orders.NewRepository(conn), led, publisher, cfg.Stock.LowStockThreshold)
	if err != nil {
		return routes.Deps{}, err
	}
	invoicesSvc, err := invoices.NewService(dbClient, invoices.NewRepository(conn), ordersSvc, publisher)
	if err != nil {
		return routes.Deps{}, err
	}
	notificationsSvc, err := notifications.NewService(notifications.NewRepository(conn))
	if err != nil {
		return routes.Deps{}, err
	}
	maintenanceSvc, err := maintenance.NewService(maintenance.NewRepository(conn))
	if err != nil {
		return routes.Deps{}, err
	}

	return routes.Deps{
		Config:        cfg,
		Logger:        logg,
		DBPinger:      dbClient,
		RedisClient:   redisClient,
		Auth:          authSvc,
		Users:         usersSvc,
		Warehouses:    warehousesSvc,
		Materials:     materialsSvc,
		Counts:        countsSvc,
		Orders:        ordersSvc,
		Invoices:      invoicesSvc,
		Notifications: notificationsSvc,
		Maintenance:   maintenanceSvc,
	}, nil
}
