package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/auricjewels/auric-backend/internal/inventory"
	"github.com/auricjewels/auric-backend/internal/notifications"
	"github.com/auricjewels/auric-backend/pkg/db/models"
	"github.com/auricjewels/auric-backend/pkg/enums"
	pkgerrors "github.com/auricjewels/auric-backend/pkg/errors"
	"github.com/auricjewels/auric-backend/pkg/gateway"
	"github.com/auricjewels/auric-backend/pkg/logger"
	"github.com/auricjewels/auric-backend/pkg/pagination"
)

// txRunner runs a function inside a database transaction.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// stockKeeper is the slice of the inventory service the lifecycle needs.
type stockKeeper interface {
	Release(ctx context.Context, tx *gorm.DB, warehouseID uuid.UUID, lines []inventory.Line) error
	Commit(ctx context.Context, tx *gorm.DB, warehouseID uuid.UUID, lines []inventory.Line) error
}

// rewardLedger is the slice of the reward service the lifecycle needs.
type rewardLedger interface {
	Release(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID) error
	Earn(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, paidPaise int64) (int, error)
}

// agentRoster is the slice of the agent service the lifecycle needs.
type agentRoster interface {
	OnDelivered(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	Unassign(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

// refunder pushes money back through the payment gateway.
type refunder interface {
	RefundPayment(ctx context.Context, paymentID string, amountPaise int64) (*gateway.Refund, error)
}

// eventDispatcher emits order lifecycle notifications, best effort.
type eventDispatcher interface {
	OrderEvent(ctx context.Context, event notifications.OrderEvent)
}

// Page is one page of a buyer's order history plus the cursor for the next.
type Page struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// Service owns the order aggregate after checkout: reads, the status
// lifecycle, cancellation and the return workflow.
type Service interface {
	Get(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
	ListMine(ctx context.Context, userID uuid.UUID, page pagination.Params) (*Page, error)
	AgentQueue(ctx context.Context, agentID uuid.UUID) ([]models.Order, error)
	AdvanceStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, note *string) (*models.Order, error)
	Cancel(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
	RequestReturn(ctx context.Context, orderID, userID uuid.UUID, returnType enums.ReturnType, reason string) (*models.Order, error)
	DecideReturn(ctx context.Context, orderID uuid.UUID, approve bool) (*models.Order, error)
	CompleteReturn(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// Deps carries everything the order service consumes.
type Deps struct {
	Repo      Repository
	Tx        txRunner
	Inventory stockKeeper
	Rewards   rewardLedger
	Agents    agentRoster
	Gateway   refunder
	Events    eventDispatcher
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	tx        txRunner
	inventory stockKeeper
	rewards   rewardLedger
	agents    agentRoster
	gateway   refunder
	events    eventDispatcher
	logg      *logger.Logger
	now       func() time.Time
}

// NewService wires the order lifecycle service. Gateway and Events may be nil
// in reduced deployments; everything else is required.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Repo == nil:
		return nil, fmt.Errorf("order repository required")
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
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
		repo:      deps.Repo,
		tx:        deps.Tx,
		inventory: deps.Inventory,
		rewards:   deps.Rewards,
		agents:    deps.Agents,
		gateway:   deps.Gateway,
		events:    deps.Events,
		logg:      deps.Logger,
		now:       time.Now,
	}, nil
}

// Get loads an order. A non-nil userID restricts the read to that buyer's own
// orders; uuid.Nil skips the ownership check for admin callers.
func (s *service) Get(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.GetByID(ctx, orderID)
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

func (s *service) ListMine(ctx context.Context, userID uuid.UUID, page pagination.Params) (*Page, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	cursor, err := pagination.ParseCursor(page.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(page.Limit)
	rows, err := s.repo.ListByUser(ctx, userID, pagination.LimitWithBuffer(page.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	result := &Page{Orders: rows}
	if len(rows) > limit {
		result.Orders = rows[:limit]
		last := result.Orders[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return result, nil
}

func (s *service) AgentQueue(ctx context.Context, agentID uuid.UUID) ([]models.Order, error) {
	if agentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent id required")
	}
	rows, err := s.repo.ListAssignedToAgent(ctx, agentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list agent queue")
	}
	return rows, nil
}

// AdvanceStatus moves the linear lifecycle forward. Backward moves and moves
// on terminal orders fail with STATE_CONFLICT and leave the order untouched.
// Crossing shipped consumes the inventory reservation; reaching delivered
// settles COD payment, credits reward earn and updates agent stats.
func (s *service) AdvanceStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, note *string) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !to.IsValid() || to == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid target status")
	}

	order, err := s.Get(ctx, orderID, uuid.Nil)
	if err != nil {
		return nil, err
	}
	from := order.Status
	if from == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is cancelled")
	}
	if to.Rank() <= from.Rank() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move status from %s to %s", from, to))
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		moved, err := repo.AdvanceStatus(ctx, orderID, from, to)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance order status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}

		crossedShipped := from.Rank() < enums.OrderStatusShipped.Rank() &&
			to.Rank() >= enums.OrderStatusShipped.Rank()
		if crossedShipped && order.WarehouseID != nil {
			if err := s.inventory.Commit(ctx, tx, *order.WarehouseID, orderLines(order)); err != nil {
				return err
			}
		}

		if to == enums.OrderStatusDelivered {
			if err := s.settleDelivery(ctx, tx, order); err != nil {
				return err
			}
		}

		return repo.AppendStatusEvent(ctx, &models.OrderStatusEvent{
			ID:      uuid.New(),
			OrderID: orderID,
			Status:  to,
			Note:    note,
		})
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, order, enums.EventOrderStatusAdvanced, to)
	return s.Get(ctx, orderID, uuid.Nil)
}

// settleDelivery runs the delivered side effects inside the advance
// transaction: COD cash is marked paid, reward earn is credited on the paid
// amount and the agent's stats are settled.
func (s *service) settleDelivery(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	repo := s.repo.WithTx(tx)
	now := s.now()

	if _, err := repo.SetDelivered(ctx, order.ID, now); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order delivered")
	}

	paid := order.IsPaid
	if !paid && order.PaymentMethod == enums.PaymentMethodCOD {
		result := models.PaymentResult{
			TransactionID: fmt.Sprintf("COD-%d", order.OrderNumber),
			Status:        string(enums.PaymentStatusPaid),
			Provider:      string(enums.PaymentMethodCOD),
			ConfirmedAt:   now,
		}
		marked, err := repo.MarkPaid(ctx, order.ID, result, nil, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark cod order paid")
		}
		paid = paid || marked
	}

	if paid {
		if _, err := s.rewards.Earn(ctx, tx, order.UserID, order.ID, order.TotalPaise); err != nil {
			return err
		}
	}

	return s.agents.OnDelivered(ctx, tx, order.ID)
}

// Cancel aborts an order that has not shipped. The reservation is released,
// redeemed reward points come back and a paid gateway payment is refunded.
func (s *service) Cancel(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	order, err := s.Get(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if order.Status == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already cancelled")
	}
	if order.Status.Rank() >= enums.OrderStatusShipped.Rank() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "shipped orders cannot be cancelled")
	}

	paymentStatus := enums.PaymentStatusCancelled
	if order.IsPaid {
		paymentStatus = enums.PaymentStatusRefunded
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cancelled, err := repo.Cancel(ctx, orderID, order.Status, paymentStatus, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !cancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}

		if order.WarehouseID != nil {
			if err := s.inventory.Release(ctx, tx, *order.WarehouseID, orderLines(order)); err != nil {
				return err
			}
		}
		if err := s.rewards.Release(ctx, tx, order.UserID, orderID); err != nil {
			return err
		}
		if err := s.agents.Unassign(ctx, tx, orderID); err != nil {
			return err
		}

		note := "order cancelled"
		return repo.AppendStatusEvent(ctx, &models.OrderStatusEvent{
			ID:      uuid.New(),
			OrderID: orderID,
			Status:  enums.OrderStatusCancelled,
			Note:    &note,
		})
	})
	if err != nil {
		return nil, err
	}

	s.refundIfPaid(ctx, order)
	s.emit(ctx, order, enums.EventOrderCancelled, enums.OrderStatusCancelled)
	return s.Get(ctx, orderID, uuid.Nil)
}

// RequestReturn opens a return or exchange on a delivered order. One request
// per order, ever.
func (s *service) RequestReturn(ctx context.Context, orderID, userID uuid.UUID, returnType enums.ReturnType, reason string) (*models.Order, error) {
	if !returnType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid return type")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return reason required")
	}

	order, err := s.Get(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if !order.IsDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only delivered orders can be returned")
	}
	if order.ReturnStatus != enums.ReturnStatusNone {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a return request already exists for this order")
	}

	opened, err := s.repo.SetReturnRequest(ctx, orderID, returnType, reason)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open return request")
	}
	if !opened {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a return request already exists for this order")
	}

	s.emit(ctx, order, enums.EventOrderReturnUpdated, order.Status)
	return s.Get(ctx, orderID, uuid.Nil)
}

// DecideReturn approves or rejects a pending return request.
func (s *service) DecideReturn(ctx context.Context, orderID uuid.UUID, approve bool) (*models.Order, error) {
	order, err := s.Get(ctx, orderID, uuid.Nil)
	if err != nil {
		return nil, err
	}

	decision := enums.ReturnStatusRejected
	if approve {
		decision = enums.ReturnStatusApproved
	}
	moved, err := s.repo.SetReturnStatus(ctx, orderID, enums.ReturnStatusPending, decision)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decide return request")
	}
	if !moved {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no pending return request on this order")
	}

	s.emit(ctx, order, enums.EventOrderReturnUpdated, order.Status)
	return s.Get(ctx, orderID, uuid.Nil)
}

// CompleteReturn closes an approved request. A completed refund return on a
// paid order pushes the money back through the gateway.
func (s *service) CompleteReturn(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.Get(ctx, orderID, uuid.Nil)
	if err != nil {
		return nil, err
	}

	moved, err := s.repo.SetReturnStatus(ctx, orderID, enums.ReturnStatusApproved, enums.ReturnStatusCompleted)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete return request")
	}
	if !moved {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no approved return request on this order")
	}

	if order.ReturnType != nil && *order.ReturnType == enums.ReturnTypeReturn && order.IsPaid {
		s.refundIfPaid(ctx, order)
		if err := s.repo.SetPaymentStatus(ctx, orderID, enums.PaymentStatusRefunded); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund")
		}
	}

	s.emit(ctx, order, enums.EventOrderReturnUpdated, order.Status)
	return s.Get(ctx, orderID, uuid.Nil)
}

// refundIfPaid pushes a paid gateway or BNPL payment back. Refunds run after
// the state change commits; a gateway failure here is logged for manual
// follow-up rather than unwinding the order.
func (s *service) refundIfPaid(ctx context.Context, order *models.Order) {
	if s.gateway == nil || !order.IsPaid || order.PaymentResult == nil {
		return
	}
	if order.PaymentMethod == enums.PaymentMethodCOD {
		return
	}
	if _, err := s.gateway.RefundPayment(ctx, order.PaymentResult.TransactionID, order.TotalPaise); err != nil {
		ctx = s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Error(ctx, "gateway refund failed", err)
	}
}

func (s *service) emit(ctx context.Context, order *models.Order, eventType enums.OrderEventType, status enums.OrderStatus) {
	if s.events == nil {
		return
	}
	s.events.OrderEvent(ctx, notifications.OrderEvent{
		Type:          eventType,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		Status:        status.String(),
		PaymentStatus: order.PaymentStatus.String(),
		AgentID:       order.DeliveryAgentID,
		OccurredAt:    s.now(),
	})
}

// orderLines converts the frozen item snapshots back into inventory lines.
func orderLines(order *models.Order) []inventory.Line {
	lines := make([]inventory.Line, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, inventory.Line{ProductID: item.ProductID, Qty: item.Qty})
	}
	return lines
}
