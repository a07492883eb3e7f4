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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/auricjewels/auric-backend/api/routes"
	"github.com/auricjewels/auric-backend/internal/agents"
	"github.com/auricjewels/auric-backend/internal/catalog"
	checkoutsvc "github.com/auricjewels/auric-backend/internal/checkout"
	"github.com/auricjewels/auric-backend/internal/inventory"
	"github.com/auricjewels/auric-backend/internal/notifications"
	"github.com/auricjewels/auric-backend/internal/orders"
	"github.com/auricjewels/auric-backend/internal/payments"
	"github.com/auricjewels/auric-backend/internal/pincodes"
	"github.com/auricjewels/auric-backend/internal/rewards"
	"github.com/auricjewels/auric-backend/pkg/config"
	"github.com/auricjewels/auric-backend/pkg/db"
	pkgerrors "github.com/auricjewels/auric-backend/pkg/errors"
	"github.com/auricjewels/auric-backend/pkg/gateway"
	"github.com/auricjewels/auric-backend/pkg/logger"
	"github.com/auricjewels/auric-backend/pkg/metrics"
	"github.com/auricjewels/auric-backend/pkg/migrate"
	"github.com/auricjewels/auric-backend/pkg/pubsub"
	pkgredis "github.com/auricjewels/auric-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

// gatewayDisabled stands in for the payment gateway when credentials are
// absent: the prepaid path degrades to a typed error while COD keeps working.
type gatewayDisabled struct{}

func (gatewayDisabled) CreateOrder(context.Context, int64, string) (*gateway.GatewayOrder, error) {
	return nil, pkgerrors.New(pkgerrors.CodeGatewayMisconfigured, "payment gateway credentials are not configured")
}

func (gatewayDisabled) VerifyPayment(context.Context, gateway.VerifyRequest) (*gateway.VerifyResult, error) {
	return nil, pkgerrors.New(pkgerrors.CodeGatewayMisconfigured, "payment gateway credentials are not configured")
}

func (gatewayDisabled) RefundPayment(context.Context, string, int64) (*gateway.Refund, error) {
	return nil, pkgerrors.New(pkgerrors.CodeGatewayMisconfigured, "payment gateway credentials are not configured")
}

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := pkgredis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}

	var pubsubClient *pubsub.Client
	var dispatcher *notifications.Dispatcher
	if cfg.GCP.ProjectID != "" {
		pubsubClient, err = pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		dispatcher, err = notifications.NewDispatcher(pubsubClient.OrderEventsPublisher(), logg)
		if err != nil {
			logg.Error(ctx, "failed to create notification dispatcher", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(ctx, "gcp project not configured, order events are not published")
	}

	gatewayClient, err := gateway.NewClient(cfg.Gateway)
	if err != nil {
		logg.Warn(logg.WithField(ctx, "reason", err.Error()), "payment gateway disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	handler, err := buildHandler(cfg, logg, dbClient, redisClient, dispatcher, gatewayClient, checkoutMetrics, registry)
	if err != nil {
		logg.Error(ctx, "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	logCtx := logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "addr": addr})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(logCtx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var closeErr error
	closeErr = multierr.Append(closeErr, server.Shutdown(shutdownCtx))
	closeErr = multierr.Append(closeErr, redisClient.Close())
	if pubsubClient != nil {
		closeErr = multierr.Append(closeErr, pubsubClient.Close())
	}
	closeErr = multierr.Append(closeErr, dbClient.Close())
	if closeErr != nil {
		logg.Error(logCtx, "shutdown finished with errors", closeErr)
		os.Exit(1)
	}
	logg.Info(logCtx, "shutdown complete")
}

func buildHandler(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *pkgredis.Client,
	dispatcher *notifications.Dispatcher,
	gatewayClient *gateway.Client,
	checkoutMetrics *metrics.CheckoutMetrics,
	registry *prometheus.Registry,
) (http.Handler, error) {
	conn := dbClient.DB()

	pincodeService, err := pincodes.NewService(pincodes.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	catalogService, err := catalog.NewService(catalog.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	rewardService, err := rewards.NewService(rewards.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	inventoryService, err := inventory.NewService(inventory.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	agentService, err := agents.NewService(agents.NewRepository(conn))
	if err != nil {
		return nil, err
	}

	ordersRepo := orders.NewRepository(conn)

	orderDeps := orders.Deps{
		Repo:      ordersRepo,
		Tx:        dbClient,
		Inventory: inventoryService,
		Rewards:   rewardService,
		Agents:    agentService,
		Events:    dispatcher,
		Logger:    logg,
	}
	// A nil refund hook makes cancellations skip the refund call instead of
	// dialing a gateway that was never configured.
	if gatewayClient != nil {
		orderDeps.Gateway = gatewayClient
	}
	orderService, err := orders.NewService(orderDeps)
	if err != nil {
		return nil, err
	}

	paymentDeps := payments.Deps{
		Orders:    ordersRepo,
		Tx:        dbClient,
		Inventory: inventoryService,
		Rewards:   rewardService,
		Agents:    agentService,
		Events:    dispatcher,
		Metrics:   checkoutMetrics,
		Logger:    logg,
	}
	if gatewayClient != nil {
		paymentDeps.Gateway = gatewayClient
	} else {
		paymentDeps.Gateway = gatewayDisabled{}
	}
	paymentService, err := payments.NewService(paymentDeps)
	if err != nil {
		return nil, err
	}

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.Deps{
		Orders:    ordersRepo,
		Tx:        dbClient,
		Pincodes:  pincodeService,
		Catalog:   catalogService,
		Rewards:   rewardService,
		Inventory: inventoryService,
		Agents:    agentService,
		Payments:  paymentService,
		Events:    dispatcher,
		Metrics:   checkoutMetrics,
		Config:    cfg.Checkout,
		Logger:    logg,
	})
	if err != nil {
		return nil, err
	}

	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return routes.NewRouter(
		cfg,
		logg,
		dbClient,
		redisClient,
		metricsHandler,
		pincodeService,
		catalogService,
		rewardService,
		inventoryService,
		agentService,
		ordersRepo,
		orderService,
		paymentService,
		checkoutService,
	), nil
}
