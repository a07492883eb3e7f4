package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/auricjewels/auric-backend/api/controllers"
	"github.com/auricjewels/auric-backend/api/middleware"
	"github.com/auricjewels/auric-backend/internal/agents"
	"github.com/auricjewels/auric-backend/internal/catalog"
	checkoutsvc "github.com/auricjewels/auric-backend/internal/checkout"
	"github.com/auricjewels/auric-backend/internal/inventory"
	"github.com/auricjewels/auric-backend/internal/orders"
	"github.com/auricjewels/auric-backend/internal/payments"
	"github.com/auricjewels/auric-backend/internal/pincodes"
	"github.com/auricjewels/auric-backend/internal/rewards"
	"github.com/auricjewels/auric-backend/pkg/config"
	"github.com/auricjewels/auric-backend/pkg/db"
	"github.com/auricjewels/auric-backend/pkg/enums"
	"github.com/auricjewels/auric-backend/pkg/logger"
	pkgredis "github.com/auricjewels/auric-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *pkgredis.Client,
	metricsHandler http.Handler,
	pincodeService pincodes.Service,
	catalogService catalog.Service,
	rewardService rewards.Service,
	inventoryService inventory.Service,
	agentService agents.Service,
	ordersRepo orders.Repository,
	orderService orders.Service,
	paymentService payments.Service,
	checkoutService checkoutsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	var idempotencyStore pkgredis.IdempotencyStore
	if redisClient != nil {
		idempotencyStore = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, controllers.ReadinessDeps(dbClient, redisClient)))
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/pincodes/{code}", controllers.PincodeCheck(pincodeService, logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/gateway", controllers.GatewayWebhook(paymentService, idempotencyStore, cfg.Checkout.WebhookIdempotencyTTL, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Post("/checkout", controllers.Checkout(checkoutService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(orderService, logg))
			r.Get("/{orderId}", controllers.OrderDetail(orderService, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(orderService, logg))
			r.Post("/{orderId}/return", controllers.OrderRequestReturn(orderService, logg))
			r.Post("/{orderId}/pay", controllers.PaymentInitiate(paymentService, logg))
			r.Post("/{orderId}/payment-failed", controllers.PaymentFail(paymentService, logg))
		})

		r.Post("/payments/confirm", controllers.PaymentConfirm(paymentService, logg))

		r.Route("/rewards", func(r chi.Router) {
			r.Get("/", controllers.RewardBalance(rewardService, logg))
			r.Get("/history", controllers.RewardHistory(rewardService, logg))
		})

		r.Route("/agent", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.UserRoleAgent.String(), logg))
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.AgentOrderQueue(orderService, logg))
				r.Post("/{orderId}/deliver", controllers.AgentDeliverOrder(orderService, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.UserRoleAdmin.String(), logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/pincodes", func(r chi.Router) {
			r.Get("/", controllers.AdminPincodeList(pincodeService, logg))
			r.Post("/", controllers.AdminPincodeUpsert(pincodeService, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.AdminProductList(catalogService, logg))
			r.Post("/", controllers.AdminProductSeed(catalogService, logg))
		})

		r.Route("/warehouses", func(r chi.Router) {
			r.Post("/", controllers.AdminWarehouseCreate(inventoryService, logg))
			r.Get("/{warehouseId}/stock", controllers.AdminStockList(inventoryService, logg))
			r.Put("/{warehouseId}/stock", controllers.AdminStockSet(inventoryService, logg))
		})

		r.Route("/agents", func(r chi.Router) {
			r.Get("/", controllers.AdminAgentList(agentService, logg))
			r.Post("/", controllers.AdminAgentRegister(agentService, logg))
			r.Get("/{agentId}", controllers.AdminAgentStats(agentService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/{orderId}", controllers.AdminOrderDetail(orderService, logg))
			r.Post("/{orderId}/advance", controllers.AdminOrderAdvance(orderService, logg))
			r.Post("/{orderId}/assign", controllers.AdminOrderAssign(agentService, ordersRepo, dbClient, logg))
			r.Post("/{orderId}/return-decision", controllers.AdminReturnDecision(orderService, logg))
			r.Post("/{orderId}/return-complete", controllers.AdminReturnComplete(orderService, logg))
		})
	})

	return r
}
