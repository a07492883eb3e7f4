package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/auricjewels/auric-backend/pkg/enums"
	"github.com/auricjewels/auric-backend/pkg/types"
)

// PaymentResult is the outcome recorded once a payment leg concludes.
// isPaid on the order implies this snapshot is present.
type PaymentResult struct {
	TransactionID string    `json:"transaction_id"`
	Status        string    `json:"status"`
	Provider      string    `json:"provider,omitempty"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

// BNPLDetails captures the selected buy-now-pay-later plan.
type BNPLDetails struct {
	Provider     enums.BNPLProvider `json:"provider"`
	Installments int                `json:"installments"`
	Status       string             `json:"status"`
}

// RewardUsage freezes the redemption applied to an order.
type RewardUsage struct {
	Points        int   `json:"points"`
	DiscountPaise int64 `json:"discount_paise"`
}

// Order is the central aggregate produced by checkout. Monetary amounts are
// integer paise; price/name/image values are snapshots frozen at creation and
// never recomputed from the live catalog.
type Order struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber int64     `gorm:"column:order_number;not null;uniqueIndex"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`

	ShippingAddress types.ShippingAddress `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	Gift            types.GiftDetails     `gorm:"column:gift;type:jsonb;serializer:json"`

	PaymentMethod  enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus  enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'created'"`
	GatewayOrderID *string             `gorm:"column:gateway_order_id"`
	ExternalTxnID  *string             `gorm:"column:external_txn_id;uniqueIndex"`
	PaymentResult  *PaymentResult      `gorm:"column:payment_result;type:jsonb;serializer:json"`
	BNPL           *BNPLDetails        `gorm:"column:bnpl;type:jsonb;serializer:json"`
	IsPaid         bool                `gorm:"column:is_paid;not null;default:false"`
	PaidAt         *time.Time          `gorm:"column:paid_at"`

	Reward        RewardUsage `gorm:"column:reward;type:jsonb;serializer:json"`
	ItemsPaise    int64       `gorm:"column:items_paise;not null"`
	TaxPaise      int64       `gorm:"column:tax_paise;not null;default:0"`
	ShippingPaise int64       `gorm:"column:shipping_paise;not null;default:0"`
	TotalPaise    int64       `gorm:"column:total_paise;not null"`

	Status      enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	IsDelivered bool              `gorm:"column:is_delivered;not null;default:false"`
	DeliveredAt *time.Time        `gorm:"column:delivered_at"`
	CancelledAt *time.Time        `gorm:"column:cancelled_at"`

	// Inventory is reserved against exactly one warehouse; split shipment is
	// not supported.
	WarehouseID *uuid.UUID `gorm:"column:warehouse_id;type:uuid"`

	DeliveryAgentID     *uuid.UUID `gorm:"column:delivery_agent_id;type:uuid"`
	EstimatedDeliveryAt *time.Time `gorm:"column:estimated_delivery_at"`

	ReturnType   *enums.ReturnType  `gorm:"column:return_type;type:text"`
	ReturnReason *string            `gorm:"column:return_reason"`
	ReturnStatus enums.ReturnStatus `gorm:"column:return_status;type:text;not null;default:'none'"`

	Items        []OrderItem        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	StatusEvents []OrderStatusEvent `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Assignments  []OrderAssignment  `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// PayablePaise is the amount the buyer settles after the reward discount.
func (o *Order) PayablePaise() int64 {
	return o.TotalPaise
}

// ReturnOpen reports whether a return/exchange request is still active.
func (o *Order) ReturnOpen() bool {
	return o.ReturnType != nil && o.ReturnStatus.Open()
}
