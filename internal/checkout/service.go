package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/auricjewels/auric-backend/internal/agents"
	"github.com/auricjewels/auric-backend/internal/catalog"
	"github.com/auricjewels/auric-backend/internal/inventory"
	"github.com/auricjewels/auric-backend/internal/notifications"
	"github.com/auricjewels/auric-backend/internal/orders"
	"github.com/auricjewels/auric-backend/internal/payments"
	"github.com/auricjewels/auric-backend/internal/pincodes"
	"github.com/auricjewels/auric-backend/internal/rewards"
	"github.com/auricjewels/auric-backend/pkg/config"
	"github.com/auricjewels/auric-backend/pkg/db/models"
	"github.com/auricjewels/auric-backend/pkg/enums"
	pkgerrors "github.com/auricjewels/auric-backend/pkg/errors"
	"github.com/auricjewels/auric-backend/pkg/logger"
	"github.com/auricjewels/auric-backend/pkg/metrics"
	"github.com/auricjewels/auric-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventDispatcher interface {
	OrderEvent(ctx context.Context, event notifications.OrderEvent)
}

// gatewayInitiator opens the gateway leg once a gateway order is persisted.
type gatewayInitiator interface {
	InitiateGatewayPayment(ctx context.Context, orderID, userID uuid.UUID) (*payments.GatewayCheckout, error)
}

// ItemInput is one requested cart line.
type ItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,gt=0,lte=10"`
}

// Input is the whole checkout request.
type Input struct {
	Items           []ItemInput           `json:"items" validate:"required,min=1,max=20,dive"`
	ShippingAddress types.ShippingAddress `json:"shipping_address" validate:"required"`
	Gift            types.GiftDetails     `json:"gift"`
	PaymentMethod   enums.PaymentMethod   `json:"payment_method" validate:"required"`
	BNPLProvider    string                `json:"bnpl_provider,omitempty"`
	RedeemPoints    int                   `json:"redeem_points" validate:"gte=0"`
}

// Result is what the storefront renders after a successful checkout. Gateway
// is set only for the gateway payment method.
type Result struct {
	Order   *models.Order             `json:"order"`
	Gateway *payments.GatewayCheckout `json:"gateway,omitempty"`
}

// Service turns a cart into an order, dispatching the payment path and
// leaving zero residue when any step fails.
type Service interface {
	Execute(ctx context.Context, userID uuid.UUID, input Input) (*Result, error)
}

// Deps carries everything checkout orchestrates.
type Deps struct {
	Orders    orders.Repository
	Tx        txRunner
	Pincodes  pincodes.Service
	Catalog   catalog.Service
	Rewards   rewards.Service
	Inventory inventory.Service
	Agents    agents.Service
	Payments  gatewayInitiator
	Events    eventDispatcher
	Metrics   *metrics.CheckoutMetrics
	Config    config.CheckoutConfig
	Logger    *logger.Logger
}

type service struct {
	orders    orders.Repository
	tx        txRunner
	pincodes  pincodes.Service
	catalog   catalog.Service
	rewards   rewards.Service
	inventory inventory.Service
	agents    agents.Service
	payments  gatewayInitiator
	events    eventDispatcher
	metrics   *metrics.CheckoutMetrics
	cfg       config.CheckoutConfig
	logg      *logger.Logger
	validate  *validator.Validate
	now       func() time.Time
}

// NewService wires the checkout orchestrator. Events and Metrics may be nil.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Orders == nil:
		return nil, fmt.Errorf("order repository required")
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Pincodes == nil:
		return nil, fmt.Errorf("pincode service required")
	case deps.Catalog == nil:
		return nil, fmt.Errorf("catalog service required")
	case deps.Rewards == nil:
		return nil, fmt.Errorf("reward service required")
	case deps.Inventory == nil:
		return nil, fmt.Errorf("inventory service required")
	case deps.Agents == nil:
		return nil, fmt.Errorf("agent service required")
	case deps.Payments == nil:
		return nil, fmt.Errorf("payment service required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		orders:    deps.Orders,
		tx:        deps.Tx,
		pincodes:  deps.Pincodes,
		catalog:   deps.Catalog,
		rewards:   deps.Rewards,
		inventory: deps.Inventory,
		agents:    deps.Agents,
		payments:  deps.Payments,
		events:    deps.Events,
		metrics:   deps.Metrics,
		cfg:       deps.Config,
		logg:      deps.Logger,
		validate:  validator.New(),
		now:       time.Now,
	}, nil
}

// Execute places an order. COD and BNPL orders confirm, reserve inventory and
// get a courier inside the placement transaction; gateway orders persist
// pending and come back with the widget parameters for the payment leg.
func (s *service) Execute(ctx context.Context, userID uuid.UUID, input Input) (*Result, error) {
	started := s.now()
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid checkout request")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	input.ShippingAddress.Normalize()

	var bnplProvider enums.BNPLProvider
	if input.PaymentMethod == enums.PaymentMethodBNPL {
		provider, err := enums.ParseBNPLProvider(input.BNPLProvider)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid bnpl provider")
		}
		bnplProvider = provider
	}
	if input.Gift.IsGift && input.Gift.WrappingType != "" {
		if _, err := enums.ParseGiftWrapType(input.Gift.WrappingType); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid gift wrap type")
		}
	}

	serviceability, err := s.pincodes.CheckServiceability(ctx, input.ShippingAddress.Pincode)
	if err != nil {
		return nil, err
	}
	if input.PaymentMethod == enums.PaymentMethodCOD && !serviceability.CODAvailable {
		return nil, pkgerrors.New(pkgerrors.CodeNotServiceable, "cash on delivery is not available at this pincode")
	}

	order, err := s.buildOrder(ctx, userID, input, bnplProvider, serviceability)
	if err != nil {
		return nil, err
	}

	var assignedAgent *models.DeliveryAgent
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		agent, err := s.place(ctx, tx, order, input)
		if err != nil {
			return err
		}
		assignedAgent = agent
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeInsufficientStock {
			s.metrics.IncReservationConflict()
		}
		return nil, err
	}

	s.metrics.IncOrderPlaced(string(input.PaymentMethod))
	s.metrics.ObserveCheckoutDuration(string(input.PaymentMethod), s.now().Sub(started))

	result := &Result{}
	if input.PaymentMethod == enums.PaymentMethodGateway {
		checkout, err := s.payments.InitiateGatewayPayment(ctx, order.ID, userID)
		if err != nil {
			return nil, err
		}
		result.Gateway = checkout
	}

	placed, err := s.orders.GetByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	result.Order = placed

	s.emit(ctx, placed, enums.EventOrderPlaced)
	if assignedAgent != nil {
		s.emit(ctx, placed, enums.EventOrderAgentAssigned)
	}
	return result, nil
}

// buildOrder freezes catalog snapshots and prices the cart. Amounts stay in
// integer paise; the intermediate tax math runs on decimals.
func (s *service) buildOrder(ctx context.Context, userID uuid.UUID, input Input, bnplProvider enums.BNPLProvider, serviceability *pincodes.Serviceability) (*models.Order, error) {
	ids := make([]uuid.UUID, 0, len(input.Items))
	for _, item := range input.Items {
		ids = append(ids, item.ProductID)
	}
	snapshots, err := s.catalog.Snapshots(ctx, ids)
	if err != nil {
		return nil, err
	}

	orderID := uuid.New()
	var itemsPaise int64
	items := make([]models.OrderItem, 0, len(input.Items))
	for _, line := range input.Items {
		product := snapshots[line.ProductID]
		lineTotal := product.PricePaise * int64(line.Qty)
		itemsPaise += lineTotal
		items = append(items, models.OrderItem{
			ID:             uuid.New(),
			OrderID:        orderID,
			ProductID:      product.ID,
			Name:           product.Name,
			SKU:            product.SKU,
			ImageURL:       product.ImageURL,
			UnitPricePaise: product.PricePaise,
			Qty:            line.Qty,
			TotalPaise:     lineTotal,
		})
	}

	acceptedPoints, discountPaise := rewards.QuoteRedemption(input.RedeemPoints)
	if input.RedeemPoints > 0 && acceptedPoints == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("minimum redemption is %d points", rewards.MinRedeemPoints))
	}
	if discountPaise > itemsPaise {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reward discount exceeds the order subtotal")
	}

	subtotal := decimal.NewFromInt(itemsPaise).Sub(decimal.NewFromInt(discountPaise))
	tax := subtotal.
		Mul(decimal.NewFromInt(int64(s.cfg.TaxRateBps))).
		Div(decimal.NewFromInt(10000)).
		Round(0)
	shipping := decimal.NewFromInt(s.cfg.ShippingFeePaise)
	if subtotal.GreaterThanOrEqual(decimal.NewFromInt(s.cfg.FreeShippingOverPaise)) {
		shipping = decimal.Zero
	}
	total := subtotal.Add(tax).Add(shipping)

	now := s.now()
	order := &models.Order{
		ID:              orderID,
		OrderNumber:     now.UnixNano(),
		UserID:          userID,
		ShippingAddress: input.ShippingAddress,
		Gift:            input.Gift,
		PaymentMethod:   input.PaymentMethod,
		PaymentStatus:   enums.PaymentStatusCreated,
		Reward:          models.RewardUsage{Points: acceptedPoints, DiscountPaise: discountPaise},
		ItemsPaise:      itemsPaise,
		TaxPaise:        tax.IntPart(),
		ShippingPaise:   shipping.IntPart(),
		TotalPaise:      total.IntPart(),
		Status:          enums.OrderStatusPending,
		Items:           items,
	}
	if !serviceability.EstimatedDeliveryAt.IsZero() {
		eta := serviceability.EstimatedDeliveryAt
		order.EstimatedDeliveryAt = &eta
	}

	switch input.PaymentMethod {
	case enums.PaymentMethodCOD:
		order.Status = enums.OrderStatusConfirmed
		order.PaymentStatus = enums.PaymentStatusAwaitingDeliveryPayment
	case enums.PaymentMethodBNPL:
		order.Status = enums.OrderStatusConfirmed
		order.PaymentStatus = enums.PaymentStatusPaid
		order.IsPaid = true
		order.PaidAt = &now
		order.BNPL = &models.BNPLDetails{
			Provider:     bnplProvider,
			Installments: bnplProvider.Installments(),
			Status:       "acknowledged",
		}
		order.PaymentResult = &models.PaymentResult{
			TransactionID: fmt.Sprintf("BNPL-%d", order.OrderNumber),
			Status:        string(enums.PaymentStatusPaid),
			Provider:      bnplProvider.String(),
			ConfirmedAt:   now,
		}
	}
	return order, nil
}

// place runs the placement transaction: reserve stock for instantly-confirmed
// methods, persist the aggregate, take the redemption hold and settle it when
// the method pays up front.
func (s *service) place(ctx context.Context, tx *gorm.DB, order *models.Order, input Input) (*models.DeliveryAgent, error) {
	repo := s.orders.WithTx(tx)
	confirmedAtPlacement := order.PaymentMethod != enums.PaymentMethodGateway

	if confirmedAtPlacement {
		dest := inventory.Destination{City: order.ShippingAddress.City, State: order.ShippingAddress.State}
		warehouse, err := s.inventory.SelectWarehouse(ctx, tx, dest, inputLines(input))
		if err != nil {
			return nil, err
		}
		if err := s.inventory.Reserve(ctx, tx, warehouse.ID, inputLines(input)); err != nil {
			return nil, err
		}
		order.WarehouseID = &warehouse.ID
	}

	placedNote := "order placed"
	order.StatusEvents = []models.OrderStatusEvent{{
		ID:      uuid.New(),
		OrderID: order.ID,
		Status:  order.Status,
		Note:    &placedNote,
	}}
	if err := repo.Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
	}

	if order.Reward.Points > 0 {
		hold, err := s.rewards.Hold(ctx, tx, order.UserID, order.ID, input.RedeemPoints)
		if err != nil {
			return nil, err
		}
		if hold.DiscountPaise != order.Reward.DiscountPaise {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "redemption quote diverged from hold")
		}
	}

	if !confirmedAtPlacement {
		return nil, nil
	}

	if err := s.rewards.Commit(ctx, tx, order.UserID, order.ID); err != nil {
		return nil, err
	}

	assignment, err := s.agents.Assign(ctx, tx, order.ID, order.ShippingAddress.Pincode, order.ShippingAddress.City, nil)
	if err != nil {
		return nil, err
	}
	if assignment == nil || assignment.Agent == nil {
		return nil, nil
	}
	if err := repo.SetAgent(ctx, order.ID, &assignment.Agent.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store assigned agent")
	}
	return assignment.Agent, nil
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

func inputLines(input Input) []inventory.Line {
	lines := make([]inventory.Line, 0, len(input.Items))
	for _, item := range input.Items {
		lines = append(lines, inventory.Line{ProductID: item.ProductID, Qty: item.Qty})
	}
	return lines
}
