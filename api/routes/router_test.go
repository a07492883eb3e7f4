package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/auricjewels/auric-backend/internal/agents"
	"github.com/auricjewels/auric-backend/internal/catalog"
	checkoutsvc "github.com/auricjewels/auric-backend/internal/checkout"
	"github.com/auricjewels/auric-backend/internal/inventory"
	"github.com/auricjewels/auric-backend/internal/orders"
	"github.com/auricjewels/auric-backend/internal/payments"
	"github.com/auricjewels/auric-backend/internal/pincodes"
	"github.com/auricjewels/auric-backend/internal/rewards"
	pkgauth "github.com/auricjewels/auric-backend/pkg/auth"
	"github.com/auricjewels/auric-backend/pkg/config"
	"github.com/auricjewels/auric-backend/pkg/db"
	"github.com/auricjewels/auric-backend/pkg/db/models"
	"github.com/auricjewels/auric-backend/pkg/enums"
	"github.com/auricjewels/auric-backend/pkg/gateway"
	"github.com/auricjewels/auric-backend/pkg/logger"
)

type fakeGateway struct {
	created []int64
}

func (f *fakeGateway) CreateOrder(_ context.Context, amountPaise int64, receipt string) (*gateway.GatewayOrder, error) {
	f.created = append(f.created, amountPaise)
	return &gateway.GatewayOrder{ID: uuid.NewString(), AmountPaise: amountPaise, Currency: "INR", Receipt: receipt, Status: "created"}, nil
}

func (f *fakeGateway) VerifyPayment(_ context.Context, req gateway.VerifyRequest) (*gateway.VerifyResult, error) {
	return &gateway.VerifyResult{Verified: true, PaymentID: req.PaymentID, Status: "captured"}, nil
}

type routerEnv struct {
	handler http.Handler
	db      *gorm.DB
	cfg     *config.Config
	gateway *fakeGateway
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "auric-test",
			ExpirationMinutes: 60,
		},
		Checkout: config.CheckoutConfig{
			TaxRateBps:            300,
			ShippingFeePaise:      9900,
			FreeShippingOverPaise: 500000,
			WebhookIdempotencyTTL: time.Hour,
		},
	}
}

func newRouterEnv(t *testing.T) *routerEnv {
	t.Helper()

	dsn := "file:routes_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Order{}, &models.OrderItem{}, &models.OrderStatusEvent{}, &models.OrderAssignment{},
		&models.RewardAccount{}, &models.RewardTransaction{},
		&models.Warehouse{}, &models.WarehouseInventory{}, &models.DeliveryAgent{},
		&models.Pincode{}, &models.Product{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := testConfig()
	logg := logger.New(logger.Options{ServiceName: "routes-test", Output: io.Discard})
	client := db.FromGorm(conn)

	pincodeService, err := pincodes.NewService(pincodes.NewRepository(conn))
	if err != nil {
		t.Fatalf("pincode service: %v", err)
	}
	catalogService, err := catalog.NewService(catalog.NewRepository(conn))
	if err != nil {
		t.Fatalf("catalog service: %v", err)
	}
	rewardService, err := rewards.NewService(rewards.NewRepository(conn))
	if err != nil {
		t.Fatalf("reward service: %v", err)
	}
	inventoryService, err := inventory.NewService(inventory.NewRepository(conn))
	if err != nil {
		t.Fatalf("inventory service: %v", err)
	}
	agentService, err := agents.NewService(agents.NewRepository(conn))
	if err != nil {
		t.Fatalf("agent service: %v", err)
	}

	fake := &fakeGateway{}
	ordersRepo := orders.NewRepository(conn)

	orderService, err := orders.NewService(orders.Deps{
		Repo:      ordersRepo,
		Tx:        client,
		Inventory: inventoryService,
		Rewards:   rewardService,
		Agents:    agentService,
		Logger:    logg,
	})
	if err != nil {
		t.Fatalf("order service: %v", err)
	}

	paymentService, err := payments.NewService(payments.Deps{
		Orders:    ordersRepo,
		Tx:        client,
		Gateway:   fake,
		Inventory: inventoryService,
		Rewards:   rewardService,
		Agents:    agentService,
		Logger:    logg,
	})
	if err != nil {
		t.Fatalf("payment service: %v", err)
	}

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.Deps{
		Orders:    ordersRepo,
		Tx:        client,
		Pincodes:  pincodeService,
		Catalog:   catalogService,
		Rewards:   rewardService,
		Inventory: inventoryService,
		Agents:    agentService,
		Payments:  paymentService,
		Config:    cfg.Checkout,
		Logger:    logg,
	})
	if err != nil {
		t.Fatalf("checkout service: %v", err)
	}

	handler := NewRouter(
		cfg,
		logg,
		client,
		nil,
		nil,
		pincodeService,
		catalogService,
		rewardService,
		inventoryService,
		agentService,
		ordersRepo,
		orderService,
		paymentService,
		checkoutService,
	)

	return &routerEnv{handler: handler, db: conn, cfg: cfg, gateway: fake}
}

func buildToken(t *testing.T, cfg *config.Config, userID uuid.UUID, role enums.UserRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{UserID: userID, Role: role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func (e *routerEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	e.handler.ServeHTTP(resp, req)
	return resp
}

func decodeData(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response %q: %v", resp.Body.String(), err)
	}
	return envelope.Data
}

func (e *routerEnv) seedCatalog(t *testing.T, pricePaise int64, stockQty int) uuid.UUID {
	t.Helper()
	pincode := models.Pincode{Code: "400001", City: "Mumbai", State: "Maharashtra", DeliveryDays: 3, CODAvailable: true, IsActive: true}
	if err := e.db.Create(&pincode).Error; err != nil {
		t.Fatalf("seed pincode: %v", err)
	}
	product := models.Product{ID: uuid.New(), Name: "Gold ring", SKU: "AU-" + uuid.NewString()[:8], PricePaise: pricePaise, IsActive: true}
	if err := e.db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	warehouse := models.Warehouse{ID: uuid.New(), Name: "Mumbai hub", Pincode: "400001", City: "Mumbai", State: "Maharashtra", IsActive: true}
	if err := e.db.Create(&warehouse).Error; err != nil {
		t.Fatalf("seed warehouse: %v", err)
	}
	stock := models.WarehouseInventory{WarehouseID: warehouse.ID, ProductID: product.ID, StockQty: stockQty}
	if err := e.db.Create(&stock).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	agent := models.DeliveryAgent{ID: uuid.New(), Name: "Ravi", Phone: "9876543210", AssignedArea: "Mumbai", AssignedPincodes: []string{"400001"}, IsActive: true}
	if err := e.db.Create(&agent).Error; err != nil {
		t.Fatalf("seed agent: %v", err)
	}
	return product.ID
}

func checkoutBody(productID uuid.UUID, method string) map[string]any {
	return map[string]any{
		"items":          []map[string]any{{"product_id": productID, "qty": 1}},
		"payment_method": method,
		"redeem_points":  0,
		"shipping_address": map[string]any{
			"full_name": "Asha Rao",
			"phone":     "9876543210",
			"line1":     "14 MG Road",
			"city":      "Mumbai",
			"state":     "Maharashtra",
			"pincode":   "400001",
		},
	}
}

func TestHealthLive(t *testing.T) {
	t.Parallel()

	env := newRouterEnv(t)
	resp := env.do(t, http.MethodGet, "/health/live", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got := resp.Header().Get("X-Auric-Env"); got != "test" {
		t.Fatalf("expected env header, got %q", got)
	}
}

func TestAuthenticatedRoutesRejectMissingToken(t *testing.T) {
	t.Parallel()

	env := newRouterEnv(t)
	resp := env.do(t, http.MethodGet, "/api/v1/orders/", "", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	t.Parallel()

	env := newRouterEnv(t)
	customer := buildToken(t, env.cfg, uuid.New(), enums.UserRoleCustomer)
	resp := env.do(t, http.MethodGet, "/api/admin/v1/pincodes/", customer, nil)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer got %d", resp.Code)
	}

	admin := buildToken(t, env.cfg, uuid.New(), enums.UserRoleAdmin)
	resp = env.do(t, http.MethodGet, "/api/admin/v1/pincodes/", admin, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAgentRoutesRequireAgentRole(t *testing.T) {
	t.Parallel()

	env := newRouterEnv(t)
	customer := buildToken(t, env.cfg, uuid.New(), enums.UserRoleCustomer)
	resp := env.do(t, http.MethodGet, "/api/v1/agent/orders/", customer, nil)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer got %d", resp.Code)
	}

	agent := buildToken(t, env.cfg, uuid.New(), enums.UserRoleAgent)
	resp = env.do(t, http.MethodGet, "/api/v1/agent/orders/", agent, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for agent got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestPublicPincodeCheck(t *testing.T) {
	t.Parallel()

	env := newRouterEnv(t)
	env.seedCatalog(t, 250000, 5)

	resp := env.do(t, http.MethodGet, "/api/public/pincodes/400001", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	data := decodeData(t, resp)
	if data["cod_available"] != true {
		t.Fatalf("expected cod_available true, got %v", data["cod_available"])
	}

	resp = env.do(t, http.MethodGet, "/api/public/pincodes/999999", "", nil)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown pincode got %d", resp.Code)
	}
}

func TestCheckoutAndOrderLifecycle(t *testing.T) {
	t.Parallel()

	env := newRouterEnv(t)
	productID := env.seedCatalog(t, 250000, 5)
	userID := uuid.New()
	token := buildToken(t, env.cfg, userID, enums.UserRoleCustomer)

	resp := env.do(t, http.MethodPost, "/api/v1/checkout", token, checkoutBody(productID, "cod"))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	data := decodeData(t, resp)
	order, ok := data["order"].(map[string]any)
	if !ok {
		t.Fatalf("expected order in response, got %v", data)
	}
	orderID := fmt.Sprintf("%v", order["ID"])
	if order["Status"] != string(enums.OrderStatusConfirmed) {
		t.Fatalf("expected confirmed order, got %v", order["Status"])
	}

	detail := env.do(t, http.MethodGet, "/api/v1/orders/"+orderID, token, nil)
	if detail.Code != http.StatusOK {
		t.Fatalf("expected 200 detail got %d: %s", detail.Code, detail.Body.String())
	}

	stranger := buildToken(t, env.cfg, uuid.New(), enums.UserRoleCustomer)
	hidden := env.do(t, http.MethodGet, "/api/v1/orders/"+orderID, stranger, nil)
	if hidden.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign order got %d", hidden.Code)
	}

	cancel := env.do(t, http.MethodPost, "/api/v1/orders/"+orderID+"/cancel", token, nil)
	if cancel.Code != http.StatusOK {
		t.Fatalf("expected 200 cancel got %d: %s", cancel.Code, cancel.Body.String())
	}
	cancelled := decodeData(t, cancel)
	if cancelled["Status"] != string(enums.OrderStatusCancelled) {
		t.Fatalf("expected cancelled order, got %v", cancelled["Status"])
	}
}

func TestGatewayWebhookConfirmsOrder(t *testing.T) {
	t.Parallel()

	env := newRouterEnv(t)
	productID := env.seedCatalog(t, 250000, 5)
	userID := uuid.New()
	token := buildToken(t, env.cfg, userID, enums.UserRoleCustomer)

	resp := env.do(t, http.MethodPost, "/api/v1/checkout", token, checkoutBody(productID, "gateway"))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	data := decodeData(t, resp)
	gatewayInfo, ok := data["gateway"].(map[string]any)
	if !ok {
		t.Fatalf("expected gateway section in response, got %v", data)
	}
	gatewayOrderID := fmt.Sprintf("%v", gatewayInfo["gateway_order_id"])
	if gatewayOrderID == "" {
		t.Fatal("expected gateway order id")
	}

	webhook := env.do(t, http.MethodPost, "/api/v1/webhooks/gateway", "", map[string]any{
		"event":            "payment.captured",
		"gateway_order_id": gatewayOrderID,
		"payment_id":       "pay_webhook_1",
		"signature":        "sig",
	})
	if webhook.Code != http.StatusOK {
		t.Fatalf("expected 200 webhook got %d: %s", webhook.Code, webhook.Body.String())
	}

	order := data["order"].(map[string]any)
	orderID := fmt.Sprintf("%v", order["ID"])
	detail := env.do(t, http.MethodGet, "/api/v1/orders/"+orderID, token, nil)
	if detail.Code != http.StatusOK {
		t.Fatalf("expected 200 detail got %d", detail.Code)
	}
	confirmed := decodeData(t, detail)
	if confirmed["IsPaid"] != true {
		t.Fatalf("expected paid order after webhook, got %v", confirmed["IsPaid"])
	}
	if confirmed["Status"] != string(enums.OrderStatusConfirmed) {
		t.Fatalf("expected confirmed order after webhook, got %v", confirmed["Status"])
	}
}

func TestAdminReassignBlockedOnceShipped(t *testing.T) {
	t.Parallel()

	env := newRouterEnv(t)
	productID := env.seedCatalog(t, 250000, 5)
	userID := uuid.New()
	token := buildToken(t, env.cfg, userID, enums.UserRoleCustomer)
	admin := buildToken(t, env.cfg, uuid.New(), enums.UserRoleAdmin)

	resp := env.do(t, http.MethodPost, "/api/v1/checkout", token, checkoutBody(productID, "cod"))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	order := decodeData(t, resp)["order"].(map[string]any)
	orderID := fmt.Sprintf("%v", order["ID"])

	backup := models.DeliveryAgent{ID: uuid.New(), Name: "Meera", Phone: "9876500000", AssignedArea: "Mumbai", AssignedPincodes: []string{"400001"}, IsActive: true}
	if err := env.db.Create(&backup).Error; err != nil {
		t.Fatalf("seed backup agent: %v", err)
	}

	assignBody := map[string]any{"agent_id": backup.ID}
	reassign := env.do(t, http.MethodPost, "/api/admin/v1/orders/"+orderID+"/assign", admin, assignBody)
	if reassign.Code != http.StatusOK {
		t.Fatalf("expected 200 reassign before shipment got %d: %s", reassign.Code, reassign.Body.String())
	}

	for _, status := range []string{"processing", "shipped"} {
		advance := env.do(t, http.MethodPost, "/api/admin/v1/orders/"+orderID+"/advance", admin, map[string]any{"status": status})
		if advance.Code != http.StatusOK {
			t.Fatalf("advance to %s got %d: %s", status, advance.Code, advance.Body.String())
		}
	}

	blocked := env.do(t, http.MethodPost, "/api/admin/v1/orders/"+orderID+"/assign", admin, assignBody)
	if blocked.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 reassign after shipment got %d: %s", blocked.Code, blocked.Body.String())
	}

	unknownID := uuid.New()
	missing := env.do(t, http.MethodPost, "/api/admin/v1/orders/"+unknownID.String()+"/assign", admin, assignBody)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown order got %d: %s", missing.Code, missing.Body.String())
	}

	var assignments int64
	if err := env.db.Model(&models.OrderAssignment{}).Where("order_id = ?", unknownID).Count(&assignments).Error; err != nil {
		t.Fatalf("count assignments: %v", err)
	}
	if assignments != 0 {
		t.Fatalf("assignments written for unknown order: %d", assignments)
	}
}

func TestAdminSeedsCatalogOverHTTP(t *testing.T) {
	t.Parallel()

	env := newRouterEnv(t)
	admin := buildToken(t, env.cfg, uuid.New(), enums.UserRoleAdmin)

	resp := env.do(t, http.MethodPost, "/api/admin/v1/pincodes/", admin, map[string]any{
		"code": "560001", "city": "Bengaluru", "state": "Karnataka",
		"delivery_days": 4, "cod_available": true, "is_active": true,
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 pincode upsert got %d: %s", resp.Code, resp.Body.String())
	}

	resp = env.do(t, http.MethodPost, "/api/admin/v1/products/", admin, map[string]any{
		"name": "Silver chain", "sku": "AU-CHAIN-1", "price_paise": 150000,
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 product seed got %d: %s", resp.Code, resp.Body.String())
	}

	resp = env.do(t, http.MethodPost, "/api/admin/v1/warehouses/", admin, map[string]any{
		"name": "Bengaluru hub", "pincode": "560001", "city": "Bengaluru", "state": "Karnataka",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 warehouse got %d: %s", resp.Code, resp.Body.String())
	}
}
