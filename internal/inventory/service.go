package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/auricjewels/auric-backend/pkg/db/models"
	pkgerrors "github.com/auricjewels/auric-backend/pkg/errors"
)

// Line is one product/quantity pair an order needs fulfilled.
type Line struct {
	ProductID uuid.UUID
	Qty       int
}

// Destination narrows warehouse selection to the delivery region.
type Destination struct {
	City  string
	State string
}

// WarehouseInput carries the admin-provided warehouse row.
type WarehouseInput struct {
	Name    string `json:"name" validate:"required"`
	Pincode string `json:"pincode" validate:"required,len=6,numeric"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
}

// StockInput sets the absolute stock level for one product at a warehouse.
type StockInput struct {
	WarehouseID uuid.UUID `json:"warehouse_id" validate:"required"`
	ProductID   uuid.UUID `json:"product_id" validate:"required"`
	StockQty    int       `json:"stock_qty" validate:"gte=0"`
}

// Service owns stock reservations and warehouse selection.
type Service interface {
	SelectWarehouse(ctx context.Context, tx *gorm.DB, dest Destination, lines []Line) (*models.Warehouse, error)
	Reserve(ctx context.Context, tx *gorm.DB, warehouseID uuid.UUID, lines []Line) error
	Release(ctx context.Context, tx *gorm.DB, warehouseID uuid.UUID, lines []Line) error
	Commit(ctx context.Context, tx *gorm.DB, warehouseID uuid.UUID, lines []Line) error
	CreateWarehouse(ctx context.Context, input WarehouseInput) (*models.Warehouse, error)
	SetStock(ctx context.Context, input StockInput) error
	ListStock(ctx context.Context, warehouseID uuid.UUID) ([]models.WarehouseInventory, error)
}

type service struct {
	repo Repository
}

// NewService wires an inventory service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &service{repo: repo}, nil
}

func validateLines(lines []Line) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	for _, line := range lines {
		if line.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id required on every line")
		}
		if line.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
		}
	}
	return nil
}

// SelectWarehouse picks the single warehouse that will carry the whole
// order: same city first, then same state, always requiring full
// availability on every line. A destination no in-state warehouse can cover
// is not fulfillable.
func (s *service) SelectWarehouse(ctx context.Context, tx *gorm.DB, dest Destination, lines []Line) (*models.Warehouse, error) {
	if err := validateLines(lines); err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)
	warehouses, err := repo.ListActiveWarehouses(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list warehouses")
	}

	productIDs := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		productIDs = append(productIDs, line.ProductID)
	}

	sameCity := func(w models.Warehouse) bool { return strings.EqualFold(w.City, dest.City) }
	sameState := func(w models.Warehouse) bool { return strings.EqualFold(w.State, dest.State) }

	ranked := make([]models.Warehouse, 0, len(warehouses))
	for _, w := range warehouses {
		if sameCity(w) {
			ranked = append(ranked, w)
		}
	}
	for _, w := range warehouses {
		if !sameCity(w) && sameState(w) {
			ranked = append(ranked, w)
		}
	}

	for _, w := range ranked {
		stock, err := repo.GetStock(ctx, w.ID, productIDs)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load warehouse stock")
		}
		available := make(map[uuid.UUID]int, len(stock))
		for _, row := range stock {
			available[row.ProductID] = row.AvailableQty()
		}
		fulfillable := true
		for _, line := range lines {
			if available[line.ProductID] < line.Qty {
				fulfillable = false
				break
			}
		}
		if fulfillable {
			warehouse := w
			return &warehouse, nil
		}
	}

	return nil, pkgerrors.New(pkgerrors.CodeNoFulfillableWarehouse, "no warehouse can fulfill the order")
}

// Reserve takes every line or fails as a whole; the caller's transaction
// unwinds partial reservations.
func (s *service) Reserve(ctx context.Context, tx *gorm.DB, warehouseID uuid.UUID, lines []Line) error {
	if warehouseID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "warehouse id required")
	}
	if err := validateLines(lines); err != nil {
		return err
	}

	repo := s.repo.WithTx(tx)
	for _, line := range lines {
		reserved, err := repo.Reserve(ctx, warehouseID, line.ProductID, line.Qty)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
		}
		if !reserved {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock,
				fmt.Sprintf("insufficient stock for product %s", line.ProductID))
		}
	}
	return nil
}

func (s *service) Release(ctx context.Context, tx *gorm.DB, warehouseID uuid.UUID, lines []Line) error {
	if warehouseID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "warehouse id required")
	}
	if err := validateLines(lines); err != nil {
		return err
	}

	repo := s.repo.WithTx(tx)
	for _, line := range lines {
		released, err := repo.Release(ctx, warehouseID, line.ProductID, line.Qty)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release stock")
		}
		if !released {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("no reservation to release for product %s", line.ProductID))
		}
	}
	return nil
}

func (s *service) Commit(ctx context.Context, tx *gorm.DB, warehouseID uuid.UUID, lines []Line) error {
	if warehouseID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "warehouse id required")
	}
	if err := validateLines(lines); err != nil {
		return err
	}

	repo := s.repo.WithTx(tx)
	for _, line := range lines {
		committed, err := repo.Commit(ctx, warehouseID, line.ProductID, line.Qty)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commit stock")
		}
		if !committed {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("no reservation to commit for product %s", line.ProductID))
		}
	}
	return nil
}

func (s *service) CreateWarehouse(ctx context.Context, input WarehouseInput) (*models.Warehouse, error) {
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.City) == "" || strings.TrimSpace(input.State) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name, city and state are required")
	}

	warehouse := &models.Warehouse{
		ID:       uuid.New(),
		Name:     strings.TrimSpace(input.Name),
		Pincode:  strings.TrimSpace(input.Pincode),
		City:     strings.TrimSpace(input.City),
		State:    strings.TrimSpace(input.State),
		IsActive: true,
	}
	if err := s.repo.CreateWarehouse(ctx, warehouse); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create warehouse")
	}
	return warehouse, nil
}

func (s *service) SetStock(ctx context.Context, input StockInput) error {
	if input.WarehouseID == uuid.Nil || input.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "warehouse id and product id required")
	}
	if input.StockQty < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock quantity cannot be negative")
	}

	row := &models.WarehouseInventory{
		WarehouseID: input.WarehouseID,
		ProductID:   input.ProductID,
		StockQty:    input.StockQty,
	}
	if err := s.repo.UpsertStock(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert stock")
	}
	return nil
}

func (s *service) ListStock(ctx context.Context, warehouseID uuid.UUID) ([]models.WarehouseInventory, error) {
	if warehouseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse id required")
	}
	rows, err := s.repo.ListStock(ctx, warehouseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock")
	}
	return rows, nil
}
