package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/auricjewels/auric-backend/internal/agents"
	"github.com/auricjewels/auric-backend/internal/inventory"
	"github.com/auricjewels/auric-backend/internal/notifications"
	"github.com/auricjewels/auric-backend/internal/orders"
	"github.com/auricjewels/auric-backend/pkg/db/models"
	"github.com/auricjewels/auric-backend/pkg/enums"
	pkgerrors "github.com/auricjewels/auric-backend/pkg/errors"
	"github.com/auricjewels/auric-backend/pkg/gateway"
	"github.com/auricjewels/auric-backend/pkg/logger"
	"github.com/auricjewels/auric-backend/pkg/metrics"
)

// gatewayClient is the slice of the payment gateway adapter this service
// drives.
type gatewayClient interface {
	CreateOrder(ctx context.Context, amountPaise int64, receipt string) (*gateway.GatewayOrder, error)
	VerifyPayment(ctx context.Context, req gateway.VerifyRequest) (*gateway.VerifyResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// stockKeeper covers the inventory moves deferred until payment confirms.
type stockKeeper interface {
	SelectWarehouse(ctx context.Context, tx *gorm.DB, dest inventory.Destination, lines []inventory.Line) (*models.Warehouse, error)
	Reserve(ctx context.Context, tx *gorm.DB, warehouseID uuid.UUID, lines []inventory.Line) error
}

// rewardLedger settles the redemption hold riding on the order.
type rewardLedger interface {
	EnsureHold(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, points int) error
	Commit(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID) error
	Release(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID) error
}

// agentAssigner picks a courier once the order is confirmed.
type agentAssigner interface {
	Assign(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, pincode, city string, actor *uuid.UUID) (*agents.AssignResult, error)
}

type eventDispatcher interface {
	OrderEvent(ctx context.Context, event notifications.OrderEvent)
}

// ApplyPaymentInput identifies a verified (or verifiable) capture. Webhook,
// redirect and polling callers all funnel through the same struct; OrderID
// and GatewayOrderID are alternates, one must be set.
type ApplyPaymentInput struct {
	OrderID        uuid.UUID
	GatewayOrderID string
	PaymentID      string
	Signature      string
	// SignatureVerified skips the gateway round trip when the caller already
	// validated the webhook signature.
	SignatureVerified bool
}

// GatewayCheckout is what the storefront needs to open the payment widget.
// Free means the reward discount covered the whole order and no gateway leg
// exists.
type GatewayCheckout struct {
	OrderID        uuid.UUID `json:"order_id"`
	GatewayOrderID string    `json:"gateway_order_id,omitempty"`
	AmountPaise    int64     `json:"amount_paise"`
	Currency       string    `json:"currency,omitempty"`
	Free           bool      `json:"free,omitempty"`
}

// Service owns the asynchronous gateway payment leg: initiating a gateway
// order, applying a verified capture exactly once and abandoning a failed
// attempt.
type Service interface {
	InitiateGatewayPayment(ctx context.Context, orderID, userID uuid.UUID) (*GatewayCheckout, error)
	ApplyVerifiedPayment(ctx context.Context, input ApplyPaymentInput) (*models.Order, error)
	FailPayment(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
}

// Deps carries everything the payment service consumes.
type Deps struct {
	Orders    orders.Repository
	Tx        txRunner
	Gateway   gatewayClient
	Inventory stockKeeper
	Rewards   rewardLedger
	Agents    agentAssigner
	Events    eventDispatcher
	Metrics   *metrics.CheckoutMetrics
	Logger    *logger.Logger
}

type service struct {
	orders    orders.Repository
	tx        txRunner
	gateway   gatewayClient
	inventory stockKeeper
	rewards   rewardLedger
	agents    agentAssigner
	events    eventDispatcher
	metrics   *metrics.CheckoutMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService wires the payment service. Events and Metrics may be nil.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Orders == nil:
		return nil, fmt.Errorf("order repository required")
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Gateway == nil:
		return nil, fmt.Errorf("gateway client required")
	case deps.Inventory == nil:
		return nil, fmt.Errorf("inventory service required")
	case deps.Rewards == nil:
		return nil, fmt.Errorf("reward service required")
	case deps.Agents == nil:
		return nil, fmt.Errorf("agent service required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		orders:    deps.Orders,
		tx:        deps.Tx,
		gateway:   deps.Gateway,
		inventory: deps.Inventory,
		rewards:   deps.Rewards,
		agents:    deps.Agents,
		events:    deps.Events,
		metrics:   deps.Metrics,
		logg:      deps.Logger,
		now:       time.Now,
	}, nil
}

// InitiateGatewayPayment registers the payable amount with the gateway and
// stores the gateway order id on the order. Calling it again after a failed
// attempt issues a fresh gateway order, which is how retry works. A zero
// payable amount never touches the gateway; the order is settled on the spot.
func (s *service) InitiateGatewayPayment(ctx context.Context, orderID, userID uuid.UUID) (*GatewayCheckout, error) {
	order, err := s.loadOwned(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != enums.PaymentMethodGateway {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is not a gateway payment")
	}
	if order.IsPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer payable")
	}

	// A failed attempt released the redemption hold, but the order's total
	// still embeds the discount. Retrying must put the hold back before any
	// money moves, or fail if the balance no longer covers it.
	if order.Reward.Points > 0 {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.rewards.EnsureHold(ctx, tx, order.UserID, order.ID, order.Reward.Points)
		})
		if err != nil {
			return nil, err
		}
	}

	payable := order.PayablePaise()
	if payable == 0 {
		paid, err := s.applyPaid(ctx, order, fmt.Sprintf("FREE-%d", order.OrderNumber), string(enums.PaymentMethodGateway))
		if err != nil {
			return nil, err
		}
		return &GatewayCheckout{OrderID: paid.ID, Free: true}, nil
	}

	gwOrder, err := s.gateway.CreateOrder(ctx, payable, fmt.Sprintf("%d", order.OrderNumber))
	if err != nil {
		return nil, err
	}
	if err := s.orders.SetGatewayOrderID(ctx, order.ID, gwOrder.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store gateway order id")
	}
	if err := s.orders.SetPaymentStatus(ctx, order.ID, enums.PaymentStatusAwaitingPayment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
	}

	return &GatewayCheckout{
		OrderID:        order.ID,
		GatewayOrderID: gwOrder.ID,
		AmountPaise:    payable,
		Currency:       gwOrder.Currency,
	}, nil
}

// ApplyVerifiedPayment is the single idempotent entry point for a confirmed
// capture. Webhook, redirect and poll all land here; replays keyed on the
// external transaction id and the order's paid flag are no-ops that return
// the order as-is.
func (s *service) ApplyVerifiedPayment(ctx context.Context, input ApplyPaymentInput) (*models.Order, error) {
	if input.PaymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}

	order, err := s.loadForApply(ctx, input)
	if err != nil {
		return nil, err
	}
	if order.IsPaid {
		s.metrics.IncWebhookReplay()
		return order, nil
	}

	seen, err := s.orders.ExistsByExternalTxnID(ctx, input.PaymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check transaction replay")
	}
	if seen {
		s.metrics.IncWebhookReplay()
		return order, nil
	}

	if !input.SignatureVerified {
		result, err := s.gateway.VerifyPayment(ctx, gateway.VerifyRequest{
			GatewayOrderID: input.GatewayOrderID,
			PaymentID:      input.PaymentID,
			Signature:      input.Signature,
		})
		if err != nil {
			return nil, err
		}
		if !result.Verified {
			s.metrics.IncPaymentOutcome(string(order.PaymentMethod), "verification_failed")
			return nil, pkgerrors.New(pkgerrors.CodePaymentVerification, "payment signature not verified")
		}
	}

	return s.applyPaid(ctx, order, input.PaymentID, string(enums.PaymentMethodGateway))
}

// applyPaid runs the confirmation side effects in one transaction: paid flag,
// reward hold commit, deferred inventory reservation, confirmed status and
// agent assignment. The MarkPaid guard makes a concurrent replay a no-op.
func (s *service) applyPaid(ctx context.Context, order *models.Order, externalTxnID, provider string) (*models.Order, error) {
	var (
		assignedAgent *models.DeliveryAgent
		applied       bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		now := s.now()

		result := models.PaymentResult{
			TransactionID: externalTxnID,
			Status:        string(enums.PaymentStatusPaid),
			Provider:      provider,
			ConfirmedAt:   now,
		}
		marked, err := repo.MarkPaid(ctx, order.ID, result, &externalTxnID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}
		if !marked {
			return nil
		}
		applied = true

		if err := s.rewards.Commit(ctx, tx, order.UserID, order.ID); err != nil {
			return err
		}

		if order.WarehouseID == nil {
			dest := inventory.Destination{City: order.ShippingAddress.City, State: order.ShippingAddress.State}
			warehouse, err := s.inventory.SelectWarehouse(ctx, tx, dest, orderLines(order))
			if err != nil {
				return err
			}
			if err := s.inventory.Reserve(ctx, tx, warehouse.ID, orderLines(order)); err != nil {
				return err
			}
			if err := repo.SetWarehouse(ctx, order.ID, warehouse.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store selected warehouse")
			}
		}

		moved, err := repo.AdvanceStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusConfirmed)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm order")
		}
		if moved {
			note := "payment confirmed"
			if err := repo.AppendStatusEvent(ctx, &models.OrderStatusEvent{
				ID:      uuid.New(),
				OrderID: order.ID,
				Status:  enums.OrderStatusConfirmed,
				Note:    &note,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status event")
			}
		}

		assignment, err := s.agents.Assign(ctx, tx, order.ID, order.ShippingAddress.Pincode, order.ShippingAddress.City, nil)
		if err != nil {
			return err
		}
		if assignment != nil && assignment.Agent != nil {
			assignedAgent = assignment.Agent
			if err := repo.SetAgent(ctx, order.ID, &assignment.Agent.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store assigned agent")
			}
		}
		return nil
	})
	if err != nil {
		s.metrics.IncPaymentOutcome(string(order.PaymentMethod), "failed")
		return nil, err
	}

	updated, err := s.orders.GetByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	if !applied {
		s.metrics.IncWebhookReplay()
		return updated, nil
	}

	s.metrics.IncPaymentOutcome(string(order.PaymentMethod), "paid")
	s.emit(ctx, updated, enums.EventOrderPaid)
	if assignedAgent != nil {
		s.emit(ctx, updated, enums.EventOrderAgentAssigned)
	}
	return updated, nil
}

// FailPayment abandons the gateway attempt: the order stays cancellable but
// its hold goes back to the buyer's balance.
func (s *service) FailPayment(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	order, err := s.loadOwned(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if order.IsPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		failed, err := repo.MarkPaymentFailed(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
		}
		if !failed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
		}
		return s.rewards.Release(ctx, tx, order.UserID, orderID)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncPaymentOutcome(string(order.PaymentMethod), "failed")
	updated, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	s.emit(ctx, updated, enums.EventOrderPaymentFailed)
	return updated, nil
}

func (s *service) loadOwned(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if userID != uuid.Nil && order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) loadForApply(ctx context.Context, input ApplyPaymentInput) (*models.Order, error) {
	if input.OrderID != uuid.Nil {
		return s.loadOwned(ctx, input.OrderID, uuid.Nil)
	}
	if input.GatewayOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id or gateway order id required")
	}
	order, err := s.orders.GetByGatewayOrderID(ctx, input.GatewayOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found for gateway order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by gateway order id")
	}
	return order, nil
}

func (s *service) emit(ctx context.Context, order *models.Order, eventType enums.OrderEventType) {
	if s.events == nil {
		return
	}
	s.events.OrderEvent(ctx, notifications.OrderEvent{
		Type:          eventType,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		Status:        order.Status.String(),
		PaymentStatus: order.PaymentStatus.String(),
		AgentID:       order.DeliveryAgentID,
		OccurredAt:    s.now(),
	})
}

func orderLines(order *models.Order) []inventory.Line {
	lines := make([]inventory.Line, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, inventory.Line{ProductID: item.ProductID, Qty: item.Qty})
	}
	return lines
}
