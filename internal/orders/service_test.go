package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/auricjewels/auric-backend/internal/agents"
	"github.com/auricjewels/auric-backend/internal/inventory"
	"github.com/auricjewels/auric-backend/internal/notifications"
	"github.com/auricjewels/auric-backend/internal/rewards"
	"github.com/auricjewels/auric-backend/pkg/db"
	"github.com/auricjewels/auric-backend/pkg/db/models"
	"github.com/auricjewels/auric-backend/pkg/enums"
	pkgerrors "github.com/auricjewels/auric-backend/pkg/errors"
	"github.com/auricjewels/auric-backend/pkg/gateway"
	"github.com/auricjewels/auric-backend/pkg/logger"
	"github.com/auricjewels/auric-backend/pkg/pagination"
)

type fakeRefunder struct {
	refunded []string
	err      error
}

func (f *fakeRefunder) RefundPayment(_ context.Context, paymentID string, amountPaise int64) (*gateway.Refund, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.refunded = append(f.refunded, paymentID)
	return &gateway.Refund{ID: "rf_1", PaymentID: paymentID, AmountPaise: amountPaise, Status: "processed"}, nil
}

type eventRecorder struct {
	events []notifications.OrderEvent
}

func (r *eventRecorder) OrderEvent(_ context.Context, event notifications.OrderEvent) {
	r.events = append(r.events, event)
}

type ordersEnv struct {
	db       *gorm.DB
	svc      Service
	refunder *fakeRefunder
	events   *eventRecorder
}

func newOrdersEnv(t *testing.T) *ordersEnv {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Order{}, &models.OrderItem{}, &models.OrderStatusEvent{}, &models.OrderAssignment{},
		&models.RewardAccount{}, &models.RewardTransaction{},
		&models.Warehouse{}, &models.WarehouseInventory{}, &models.DeliveryAgent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	inventorySvc, err := inventory.NewService(inventory.NewRepository(conn))
	if err != nil {
		t.Fatalf("inventory service: %v", err)
	}
	rewardSvc, err := rewards.NewService(rewards.NewRepository(conn))
	if err != nil {
		t.Fatalf("reward service: %v", err)
	}
	agentSvc, err := agents.NewService(agents.NewRepository(conn))
	if err != nil {
		t.Fatalf("agent service: %v", err)
	}

	refunder := &fakeRefunder{}
	recorder := &eventRecorder{}
	svc, err := NewService(Deps{
		Repo:      NewRepository(conn),
		Tx:        db.FromGorm(conn),
		Inventory: inventorySvc,
		Rewards:   rewardSvc,
		Agents:    agentSvc,
		Gateway:   refunder,
		Events:    recorder,
		Logger:    logger.New(logger.Options{ServiceName: "orders-test"}),
	})
	if err != nil {
		t.Fatalf("order service: %v", err)
	}

	return &ordersEnv{db: conn, svc: svc, refunder: refunder, events: recorder}
}

type seedOpts struct {
	status        enums.OrderStatus
	paymentMethod enums.PaymentMethod
	paymentStatus enums.PaymentStatus
	isPaid        bool
	isDelivered   bool
	warehouseID   *uuid.UUID
	agentID       *uuid.UUID
	items         []models.OrderItem
	returnStatus  enums.ReturnStatus
	returnType    *enums.ReturnType
}

func (e *ordersEnv) seedOrder(t *testing.T, userID uuid.UUID, opts seedOpts) *models.Order {
	t.Helper()
	if opts.status == "" {
		opts.status = enums.OrderStatusConfirmed
	}
	if opts.paymentMethod == "" {
		opts.paymentMethod = enums.PaymentMethodCOD
	}
	if opts.paymentStatus == "" {
		opts.paymentStatus = enums.PaymentStatusAwaitingDeliveryPayment
	}
	if opts.returnStatus == "" {
		opts.returnStatus = enums.ReturnStatusNone
	}

	order := models.Order{
		ID:            uuid.New(),
		OrderNumber:   time.Now().UnixNano(),
		UserID:        userID,
		PaymentMethod: opts.paymentMethod,
		PaymentStatus: opts.paymentStatus,
		IsPaid:        opts.isPaid,
		IsDelivered:   opts.isDelivered,
		ItemsPaise:    500000,
		TotalPaise:    500000,
		Status:        opts.status,
		WarehouseID:   opts.warehouseID,
		ReturnStatus:  opts.returnStatus,
		ReturnType:    opts.returnType,
	}
	if opts.isPaid {
		order.PaymentResult = &models.PaymentResult{
			TransactionID: "pay_123",
			Status:        "paid",
			ConfirmedAt:   time.Now(),
		}
	}
	if order.DeliveryAgentID == nil {
		order.DeliveryAgentID = opts.agentID
	}
	for i := range opts.items {
		opts.items[i].ID = uuid.New()
		opts.items[i].OrderID = order.ID
	}
	order.Items = opts.items
	if err := e.db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return &order
}

func (e *ordersEnv) seedWarehouseStock(t *testing.T, productID uuid.UUID, stock, reserved int) uuid.UUID {
	t.Helper()
	warehouse := models.Warehouse{ID: uuid.New(), Name: "Mumbai hub", Pincode: "400001", City: "Mumbai", State: "Maharashtra", IsActive: true}
	if err := e.db.Create(&warehouse).Error; err != nil {
		t.Fatalf("seed warehouse: %v", err)
	}
	row := models.WarehouseInventory{WarehouseID: warehouse.ID, ProductID: productID, StockQty: stock, ReservedQty: reserved}
	if err := e.db.Create(&row).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	return warehouse.ID
}

func (e *ordersEnv) seedAssignedAgent(t *testing.T, orderID uuid.UUID) uuid.UUID {
	t.Helper()
	agent := models.DeliveryAgent{ID: uuid.New(), Name: "Ravi", Phone: "9876543210", AssignedArea: "Mumbai", ActiveOrders: 1, TotalAssigned: 1, IsActive: true}
	if err := e.db.Create(&agent).Error; err != nil {
		t.Fatalf("seed agent: %v", err)
	}
	assignment := models.OrderAssignment{ID: uuid.New(), OrderID: orderID, AgentID: agent.ID, Active: true}
	if err := e.db.Create(&assignment).Error; err != nil {
		t.Fatalf("seed assignment: %v", err)
	}
	return agent.ID
}

func codeOf(t *testing.T, err error) pkgerrors.Code {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %T: %v", err, err)
	}
	return typed.Code()
}

func TestService_AdvanceStatusAppendsEvent(t *testing.T) {
	t.Parallel()

	env := newOrdersEnv(t)
	ctx := context.Background()
	order := env.seedOrder(t, uuid.New(), seedOpts{status: enums.OrderStatusConfirmed})

	note := "picked and packed"
	updated, err := env.svc.AdvanceStatus(ctx, order.ID, enums.OrderStatusProcessing, &note)
	if err != nil {
		t.Fatalf("AdvanceStatus error: %v", err)
	}
	if updated.Status != enums.OrderStatusProcessing {
		t.Fatalf("status = %s, want processing", updated.Status)
	}
	if len(updated.StatusEvents) != 1 {
		t.Fatalf("status events = %d, want 1", len(updated.StatusEvents))
	}
	if got := updated.StatusEvents[0]; got.Status != enums.OrderStatusProcessing || got.Note == nil || *got.Note != note {
		t.Fatalf("unexpected status event %+v", got)
	}
	if len(env.events.events) != 1 || env.events.events[0].Type != enums.EventOrderStatusAdvanced {
		t.Fatalf("expected one status_advanced event, got %+v", env.events.events)
	}
}

func TestService_AdvanceStatusRejectsBackwardMove(t *testing.T) {
	t.Parallel()

	env := newOrdersEnv(t)
	ctx := context.Background()
	order := env.seedOrder(t, uuid.New(), seedOpts{status: enums.OrderStatusProcessing})

	_, err := env.svc.AdvanceStatus(ctx, order.ID, enums.OrderStatusConfirmed, nil)
	if code := codeOf(t, err); code != pkgerrors.CodeStateConflict {
		t.Fatalf("code = %s, want STATE_CONFLICT", code)
	}

	var after models.Order
	if err := env.db.First(&after, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if after.Status != enums.OrderStatusProcessing {
		t.Fatalf("status moved to %s on a rejected advance", after.Status)
	}
}

func TestService_AdvanceToShippedConsumesReservation(t *testing.T) {
	t.Parallel()

	env := newOrdersEnv(t)
	ctx := context.Background()
	productID := uuid.New()
	warehouseID := env.seedWarehouseStock(t, productID, 10, 2)
	order := env.seedOrder(t, uuid.New(), seedOpts{
		status:      enums.OrderStatusProcessing,
		warehouseID: &warehouseID,
		items:       []models.OrderItem{{ProductID: productID, Name: "Gold ring", SKU: "AU-1", UnitPricePaise: 250000, Qty: 2, TotalPaise: 500000}},
	})

	if _, err := env.svc.AdvanceStatus(ctx, order.ID, enums.OrderStatusShipped, nil); err != nil {
		t.Fatalf("AdvanceStatus error: %v", err)
	}

	var stock models.WarehouseInventory
	if err := env.db.First(&stock, "warehouse_id = ? AND product_id = ?", warehouseID, productID).Error; err != nil {
		t.Fatalf("reload stock: %v", err)
	}
	if stock.StockQty != 8 || stock.ReservedQty != 0 {
		t.Fatalf("stock = %d/%d reserved, want 8/0", stock.StockQty, stock.ReservedQty)
	}
}

func TestService_DeliveredSettlesCODAndRewards(t *testing.T) {
	t.Parallel()

	env := newOrdersEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	order := env.seedOrder(t, userID, seedOpts{status: enums.OrderStatusShipped})
	agentID := env.seedAssignedAgent(t, order.ID)

	updated, err := env.svc.AdvanceStatus(ctx, order.ID, enums.OrderStatusDelivered, nil)
	if err != nil {
		t.Fatalf("AdvanceStatus error: %v", err)
	}
	if !updated.IsDelivered || updated.DeliveredAt == nil {
		t.Fatal("order not marked delivered")
	}
	if !updated.IsPaid || updated.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("cod order not settled: paid=%v status=%s", updated.IsPaid, updated.PaymentStatus)
	}

	var account models.RewardAccount
	if err := env.db.First(&account, "user_id = ?", userID).Error; err != nil {
		t.Fatalf("reload reward account: %v", err)
	}
	// 1% of the rupees paid on a ₹5,000 order.
	if account.Balance != 50 || account.TotalEarned != 50 {
		t.Fatalf("reward balance = %d earned = %d, want 50/50", account.Balance, account.TotalEarned)
	}

	var agent models.DeliveryAgent
	if err := env.db.First(&agent, "id = ?", agentID).Error; err != nil {
		t.Fatalf("reload agent: %v", err)
	}
	if agent.ActiveOrders != 0 || agent.TotalDelivered != 1 {
		t.Fatalf("agent stats = %d active / %d delivered, want 0/1", agent.ActiveOrders, agent.TotalDelivered)
	}
}

func TestService_CancelReleasesEverything(t *testing.T) {
	t.Parallel()

	env := newOrdersEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	productID := uuid.New()
	warehouseID := env.seedWarehouseStock(t, productID, 10, 2)
	order := env.seedOrder(t, userID, seedOpts{
		status:        enums.OrderStatusConfirmed,
		paymentMethod: enums.PaymentMethodGateway,
		paymentStatus: enums.PaymentStatusPaid,
		isPaid:        true,
		warehouseID:   &warehouseID,
		items:         []models.OrderItem{{ProductID: productID, Name: "Gold ring", SKU: "AU-1", UnitPricePaise: 250000, Qty: 2, TotalPaise: 500000}},
	})
	agentID := env.seedAssignedAgent(t, order.ID)

	// A committed redemption of 100 points rides on this order.
	account := models.RewardAccount{UserID: userID, Balance: 0, TotalRedeemed: 100}
	if err := env.db.Create(&account).Error; err != nil {
		t.Fatalf("seed account: %v", err)
	}
	redeem := models.RewardTransaction{ID: uuid.New(), UserID: userID, OrderID: &order.ID, Type: enums.RewardTransactionRedeem, Points: 100, AmountPaise: 1000}
	if err := env.db.Create(&redeem).Error; err != nil {
		t.Fatalf("seed redeem: %v", err)
	}

	updated, err := env.svc.Cancel(ctx, order.ID, userID)
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if updated.Status != enums.OrderStatusCancelled || updated.CancelledAt == nil {
		t.Fatalf("order not cancelled: %+v", updated.Status)
	}
	if updated.PaymentStatus != enums.PaymentStatusRefunded {
		t.Fatalf("payment status = %s, want refunded", updated.PaymentStatus)
	}

	var stock models.WarehouseInventory
	if err := env.db.First(&stock, "warehouse_id = ? AND product_id = ?", warehouseID, productID).Error; err != nil {
		t.Fatalf("reload stock: %v", err)
	}
	if stock.ReservedQty != 0 || stock.StockQty != 10 {
		t.Fatalf("stock = %d/%d reserved, want 10/0", stock.StockQty, stock.ReservedQty)
	}

	if err := env.db.First(&account, "user_id = ?", userID).Error; err != nil {
		t.Fatalf("reload account: %v", err)
	}
	if account.Balance != 100 || account.TotalRedeemed != 0 {
		t.Fatalf("reward balance = %d redeemed = %d, want 100/0", account.Balance, account.TotalRedeemed)
	}

	var agent models.DeliveryAgent
	if err := env.db.First(&agent, "id = ?", agentID).Error; err != nil {
		t.Fatalf("reload agent: %v", err)
	}
	if agent.ActiveOrders != 0 || agent.TotalDelivered != 0 {
		t.Fatalf("agent stats = %d active / %d delivered, want 0/0", agent.ActiveOrders, agent.TotalDelivered)
	}

	if len(env.refunder.refunded) != 1 || env.refunder.refunded[0] != "pay_123" {
		t.Fatalf("refunds = %v, want [pay_123]", env.refunder.refunded)
	}
}

func TestService_CancelRejectedAfterShipped(t *testing.T) {
	t.Parallel()

	env := newOrdersEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	order := env.seedOrder(t, userID, seedOpts{status: enums.OrderStatusShipped})

	_, err := env.svc.Cancel(ctx, order.ID, userID)
	if code := codeOf(t, err); code != pkgerrors.CodeStateConflict {
		t.Fatalf("code = %s, want STATE_CONFLICT", code)
	}
	if len(env.refunder.refunded) != 0 {
		t.Fatalf("refund issued on a rejected cancel: %v", env.refunder.refunded)
	}
}

func TestService_GetHidesOtherUsersOrders(t *testing.T) {
	t.Parallel()

	env := newOrdersEnv(t)
	ctx := context.Background()
	order := env.seedOrder(t, uuid.New(), seedOpts{})

	_, err := env.svc.Get(ctx, order.ID, uuid.New())
	if code := codeOf(t, err); code != pkgerrors.CodeNotFound {
		t.Fatalf("code = %s, want NOT_FOUND", code)
	}

	if _, err := env.svc.Get(ctx, order.ID, uuid.Nil); err != nil {
		t.Fatalf("admin read failed: %v", err)
	}
}

func TestService_ListMinePaginates(t *testing.T) {
	t.Parallel()

	env := newOrdersEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		order := env.seedOrder(t, userID, seedOpts{})
		if err := env.db.Model(&models.Order{}).Where("id = ?", order.ID).
			UpdateColumn("created_at", base.Add(time.Duration(i)*time.Minute)).Error; err != nil {
			t.Fatalf("backdate order: %v", err)
		}
	}

	first, err := env.svc.ListMine(ctx, userID, pagination.Params{Limit: 3})
	if err != nil {
		t.Fatalf("ListMine error: %v", err)
	}
	if len(first.Orders) != 3 || first.NextCursor == "" {
		t.Fatalf("first page = %d orders, cursor %q", len(first.Orders), first.NextCursor)
	}

	second, err := env.svc.ListMine(ctx, userID, pagination.Params{Limit: 3, Cursor: first.NextCursor})
	if err != nil {
		t.Fatalf("ListMine second page error: %v", err)
	}
	if len(second.Orders) != 2 || second.NextCursor != "" {
		t.Fatalf("second page = %d orders, cursor %q", len(second.Orders), second.NextCursor)
	}
}

func TestService_ReturnWorkflow(t *testing.T) {
	t.Parallel()

	env := newOrdersEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	order := env.seedOrder(t, userID, seedOpts{
		status:        enums.OrderStatusDelivered,
		paymentMethod: enums.PaymentMethodGateway,
		paymentStatus: enums.PaymentStatusPaid,
		isPaid:        true,
		isDelivered:   true,
	})

	updated, err := env.svc.RequestReturn(ctx, order.ID, userID, enums.ReturnTypeReturn, "stone came loose")
	if err != nil {
		t.Fatalf("RequestReturn error: %v", err)
	}
	if updated.ReturnStatus != enums.ReturnStatusPending {
		t.Fatalf("return status = %s, want pending", updated.ReturnStatus)
	}

	if _, err := env.svc.RequestReturn(ctx, order.ID, userID, enums.ReturnTypeReturn, "again"); err == nil {
		t.Fatal("second request accepted")
	}

	updated, err = env.svc.DecideReturn(ctx, order.ID, true)
	if err != nil {
		t.Fatalf("DecideReturn error: %v", err)
	}
	if updated.ReturnStatus != enums.ReturnStatusApproved {
		t.Fatalf("return status = %s, want approved", updated.ReturnStatus)
	}

	updated, err = env.svc.CompleteReturn(ctx, order.ID)
	if err != nil {
		t.Fatalf("CompleteReturn error: %v", err)
	}
	if updated.ReturnStatus != enums.ReturnStatusCompleted {
		t.Fatalf("return status = %s, want completed", updated.ReturnStatus)
	}
	if updated.PaymentStatus != enums.PaymentStatusRefunded {
		t.Fatalf("payment status = %s, want refunded", updated.PaymentStatus)
	}
	if len(env.refunder.refunded) != 1 {
		t.Fatalf("refunds = %v, want one", env.refunder.refunded)
	}
}

func TestService_RequestReturnRequiresDelivery(t *testing.T) {
	t.Parallel()

	env := newOrdersEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	order := env.seedOrder(t, userID, seedOpts{status: enums.OrderStatusProcessing})

	_, err := env.svc.RequestReturn(ctx, order.ID, userID, enums.ReturnTypeExchange, "wrong size")
	if code := codeOf(t, err); code != pkgerrors.CodeStateConflict {
		t.Fatalf("code = %s, want STATE_CONFLICT", code)
	}
}
