package orders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/auricjewels/auric-backend/pkg/db/models"
	"github.com/auricjewels/auric-backend/pkg/enums"
	"github.com/auricjewels/auric-backend/pkg/pagination"
)

// Repository manages persistence for orders, their items, status timeline and
// return fields. Every mutation that guards an invariant does so inside the
// UPDATE itself and reports whether the row moved.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	ExistsByExternalTxnID(ctx context.Context, externalTxnID string) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error)
	ListAssignedToAgent(ctx context.Context, agentID uuid.UUID) ([]models.Order, error)
	AppendStatusEvent(ctx context.Context, event *models.OrderStatusEvent) error
	AdvanceStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (bool, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID, result models.PaymentResult, externalTxnID *string, paidAt time.Time) (bool, error)
	MarkPaymentFailed(ctx context.Context, orderID uuid.UUID) (bool, error)
	SetPaymentStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) error
	SetGatewayOrderID(ctx context.Context, orderID uuid.UUID, gatewayOrderID string) error
	SetWarehouse(ctx context.Context, orderID, warehouseID uuid.UUID) error
	SetAgent(ctx context.Context, orderID uuid.UUID, agentID *uuid.UUID) error
	SetDelivered(ctx context.Context, orderID uuid.UUID, at time.Time) (bool, error)
	Cancel(ctx context.Context, orderID uuid.UUID, from enums.OrderStatus, paymentStatus enums.PaymentStatus, at time.Time) (bool, error)
	SetReturnRequest(ctx context.Context, orderID uuid.UUID, returnType enums.ReturnType, reason string) (bool, error)
	SetReturnStatus(ctx context.Context, orderID uuid.UUID, from, to enums.ReturnStatus) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create persists the order together with its items and the initial status
// event in one insert via gorm's association handling.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("StatusEvents", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("id = ?", id).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("gateway_order_id = ?", gatewayOrderID).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ExistsByExternalTxnID(ctx context.Context, externalTxnID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("external_txn_id = ?", externalTxnID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID)
	if cursor != nil {
		query = query.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var orders []models.Order
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) ListAssignedToAgent(ctx context.Context, agentID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("delivery_agent_id = ? AND is_delivered = ?", agentID, false).
		Order("created_at ASC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) AppendStatusEvent(ctx context.Context, event *models.OrderStatusEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// AdvanceStatus moves the lifecycle forward only when the row still carries
// the expected current status. Concurrent movers lose the race cleanly.
func (r *repository) AdvanceStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		UpdateColumn("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkPaid records the payment outcome exactly once. The is_paid guard makes
// webhook replays and double confirmations no-ops.
func (r *repository) MarkPaid(ctx context.Context, orderID uuid.UUID, result models.PaymentResult, externalTxnID *string, paidAt time.Time) (bool, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return false, err
	}
	updates := map[string]any{
		"is_paid":        true,
		"paid_at":        paidAt,
		"payment_status": enums.PaymentStatusPaid,
		"payment_result": string(payload),
	}
	if externalTxnID != nil {
		updates["external_txn_id"] = *externalTxnID
	}

	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND is_paid = ?", orderID, false).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) MarkPaymentFailed(ctx context.Context, orderID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND is_paid = ?", orderID, false).
		UpdateColumn("payment_status", enums.PaymentStatusFailed)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) SetPaymentStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		UpdateColumn("payment_status", status).Error
}

func (r *repository) SetGatewayOrderID(ctx context.Context, orderID uuid.UUID, gatewayOrderID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		UpdateColumn("gateway_order_id", gatewayOrderID).Error
}

func (r *repository) SetWarehouse(ctx context.Context, orderID, warehouseID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		UpdateColumn("warehouse_id", warehouseID).Error
}

func (r *repository) SetAgent(ctx context.Context, orderID uuid.UUID, agentID *uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		UpdateColumn("delivery_agent_id", agentID).Error
}

func (r *repository) SetDelivered(ctx context.Context, orderID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND is_delivered = ?", orderID, false).
		Updates(map[string]any{
			"is_delivered": true,
			"delivered_at": at,
			"status":       enums.OrderStatusDelivered,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Cancel flips the order into its terminal cancelled state. The status guard
// keeps a concurrent ship or second cancel from double-running the side
// effects the service layers on top.
func (r *repository) Cancel(ctx context.Context, orderID uuid.UUID, from enums.OrderStatus, paymentStatus enums.PaymentStatus, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(map[string]any{
			"status":         enums.OrderStatusCancelled,
			"cancelled_at":   at,
			"payment_status": paymentStatus,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetReturnRequest opens a return/exchange window exactly once per order.
func (r *repository) SetReturnRequest(ctx context.Context, orderID uuid.UUID, returnType enums.ReturnType, reason string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND is_delivered = ? AND return_status = ?", orderID, true, enums.ReturnStatusNone).
		Updates(map[string]any{
			"return_type":   returnType,
			"return_reason": reason,
			"return_status": enums.ReturnStatusPending,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) SetReturnStatus(ctx context.Context, orderID uuid.UUID, from, to enums.ReturnStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND return_status = ?", orderID, from).
		UpdateColumn("return_status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
