package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/auricjewels/auric-backend/pkg/db/models"
)

// Repository manages persistence for warehouses and their stock counters.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateWarehouse(ctx context.Context, warehouse *models.Warehouse) error
	ListActiveWarehouses(ctx context.Context) ([]models.Warehouse, error)
	GetStock(ctx context.Context, warehouseID uuid.UUID, productIDs []uuid.UUID) ([]models.WarehouseInventory, error)
	ListStock(ctx context.Context, warehouseID uuid.UUID) ([]models.WarehouseInventory, error)
	UpsertStock(ctx context.Context, row *models.WarehouseInventory) error
	Reserve(ctx context.Context, warehouseID, productID uuid.UUID, qty int) (bool, error)
	Release(ctx context.Context, warehouseID, productID uuid.UUID, qty int) (bool, error)
	Commit(ctx context.Context, warehouseID, productID uuid.UUID, qty int) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateWarehouse(ctx context.Context, warehouse *models.Warehouse) error {
	return r.db.WithContext(ctx).Create(warehouse).Error
}

func (r *repository) ListActiveWarehouses(ctx context.Context) ([]models.Warehouse, error) {
	var rows []models.Warehouse
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) GetStock(ctx context.Context, warehouseID uuid.UUID, productIDs []uuid.UUID) ([]models.WarehouseInventory, error) {
	var rows []models.WarehouseInventory
	if len(productIDs) == 0 {
		return rows, nil
	}
	if err := r.db.WithContext(ctx).
		Where("warehouse_id = ? AND product_id IN ?", warehouseID, productIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListStock(ctx context.Context, warehouseID uuid.UUID) ([]models.WarehouseInventory, error) {
	var rows []models.WarehouseInventory
	if err := r.db.WithContext(ctx).
		Where("warehouse_id = ?", warehouseID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpsertStock(ctx context.Context, row *models.WarehouseInventory) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "warehouse_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"stock_qty", "updated_at"}),
		}).
		Create(row).Error
}

// Reserve moves free stock into the reserved counter. The availability guard
// sits inside the UPDATE so two concurrent checkouts cannot both take the
// last piece.
func (r *repository) Reserve(ctx context.Context, warehouseID, productID uuid.UUID, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.WarehouseInventory{}).
		Where("warehouse_id = ? AND product_id = ? AND stock_qty - reserved_qty >= ?", warehouseID, productID, qty).
		Update("reserved_qty", gorm.Expr("reserved_qty + ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Release returns a reservation to free stock.
func (r *repository) Release(ctx context.Context, warehouseID, productID uuid.UUID, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.WarehouseInventory{}).
		Where("warehouse_id = ? AND product_id = ? AND reserved_qty >= ?", warehouseID, productID, qty).
		Update("reserved_qty", gorm.Expr("reserved_qty - ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Commit consumes a reservation for good once the order ships.
func (r *repository) Commit(ctx context.Context, warehouseID, productID uuid.UUID, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.WarehouseInventory{}).
		Where("warehouse_id = ? AND product_id = ? AND reserved_qty >= ? AND stock_qty >= ?", warehouseID, productID, qty, qty).
		Updates(map[string]any{
			"stock_qty":    gorm.Expr("stock_qty - ?", qty),
			"reserved_qty": gorm.Expr("reserved_qty - ?", qty),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
