package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/auricjewels/auric-backend/pkg/db/models"
	pkgerrors "github.com/auricjewels/auric-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Warehouse{}, &models.WarehouseInventory{}); err != nil {
		t.Fatalf("migrate inventory: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedWarehouse(t *testing.T, db *gorm.DB, city, state string) uuid.UUID {
	t.Helper()
	warehouse := models.Warehouse{ID: uuid.New(), Name: city + " hub", Pincode: "400001", City: city, State: state, IsActive: true}
	if err := db.Create(&warehouse).Error; err != nil {
		t.Fatalf("seed warehouse: %v", err)
	}
	return warehouse.ID
}

func seedStock(t *testing.T, db *gorm.DB, warehouseID, productID uuid.UUID, stock, reserved int) {
	t.Helper()
	row := models.WarehouseInventory{WarehouseID: warehouseID, ProductID: productID, StockQty: stock, ReservedQty: reserved}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}

func TestService_ReserveThenReleaseAndCommit(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	warehouseID := seedWarehouse(t, db, "Mumbai", "Maharashtra")
	productID := uuid.New()
	seedStock(t, db, warehouseID, productID, 5, 0)

	lines := []Line{{ProductID: productID, Qty: 3}}
	if err := svc.Reserve(ctx, nil, warehouseID, lines); err != nil {
		t.Fatalf("Reserve error: %v", err)
	}

	var row models.WarehouseInventory
	if err := db.First(&row, "warehouse_id = ? AND product_id = ?", warehouseID, productID).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	if row.StockQty != 5 || row.ReservedQty != 3 {
		t.Fatalf("unexpected stock after reserve: %+v", row)
	}

	if err := svc.Release(ctx, nil, warehouseID, []Line{{ProductID: productID, Qty: 1}}); err != nil {
		t.Fatalf("Release error: %v", err)
	}
	if err := svc.Commit(ctx, nil, warehouseID, []Line{{ProductID: productID, Qty: 2}}); err != nil {
		t.Fatalf("Commit error: %v", err)
	}

	if err := db.First(&row, "warehouse_id = ? AND product_id = ?", warehouseID, productID).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	if row.StockQty != 3 || row.ReservedQty != 0 {
		t.Fatalf("unexpected stock after commit: %+v", row)
	}
}

func TestService_ReserveInsufficientStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	warehouseID := seedWarehouse(t, db, "Mumbai", "Maharashtra")
	productID := uuid.New()
	seedStock(t, db, warehouseID, productID, 2, 1)

	err := svc.Reserve(context.Background(), nil, warehouseID, []Line{{ProductID: productID, Qty: 2}})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}

	var row models.WarehouseInventory
	if err := db.First(&row, "warehouse_id = ? AND product_id = ?", warehouseID, productID).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	if row.ReservedQty != 1 {
		t.Fatalf("failed reserve must not change counters: %+v", row)
	}
}

func TestService_ReleaseWithoutReservation(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	warehouseID := seedWarehouse(t, db, "Mumbai", "Maharashtra")
	productID := uuid.New()
	seedStock(t, db, warehouseID, productID, 2, 0)

	err := svc.Release(context.Background(), nil, warehouseID, []Line{{ProductID: productID, Qty: 1}})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestService_SelectWarehousePrefersSameCity(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	productID := uuid.New()

	puneID := seedWarehouse(t, db, "Pune", "Maharashtra")
	mumbaiID := seedWarehouse(t, db, "Mumbai", "Maharashtra")
	seedStock(t, db, puneID, productID, 10, 0)
	seedStock(t, db, mumbaiID, productID, 10, 0)

	got, err := svc.SelectWarehouse(ctx, nil, Destination{City: "Mumbai", State: "Maharashtra"}, []Line{{ProductID: productID, Qty: 1}})
	if err != nil {
		t.Fatalf("SelectWarehouse error: %v", err)
	}
	if got.ID != mumbaiID {
		t.Fatalf("expected same-city warehouse, got %s (%s)", got.Name, got.ID)
	}
}

func TestService_SelectWarehouseFallsBackToState(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	productID := uuid.New()

	puneID := seedWarehouse(t, db, "Pune", "Maharashtra")
	delhiID := seedWarehouse(t, db, "Delhi", "Delhi")
	seedStock(t, db, puneID, productID, 10, 0)
	seedStock(t, db, delhiID, productID, 10, 0)

	got, err := svc.SelectWarehouse(ctx, nil, Destination{City: "Mumbai", State: "Maharashtra"}, []Line{{ProductID: productID, Qty: 1}})
	if err != nil {
		t.Fatalf("SelectWarehouse error: %v", err)
	}
	if got.ID != puneID {
		t.Fatalf("expected same-state warehouse, got %s", got.Name)
	}
}

func TestService_SelectWarehouseRequiresFullAvailability(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	ringID := uuid.New()
	chainID := uuid.New()

	mumbaiID := seedWarehouse(t, db, "Mumbai", "Maharashtra")
	puneID := seedWarehouse(t, db, "Pune", "Maharashtra")
	// Mumbai has the ring but not the chain; Pune has both.
	seedStock(t, db, mumbaiID, ringID, 5, 0)
	seedStock(t, db, puneID, ringID, 5, 0)
	seedStock(t, db, puneID, chainID, 5, 0)

	lines := []Line{{ProductID: ringID, Qty: 1}, {ProductID: chainID, Qty: 1}}
	got, err := svc.SelectWarehouse(ctx, nil, Destination{City: "Mumbai", State: "Maharashtra"}, lines)
	if err != nil {
		t.Fatalf("SelectWarehouse error: %v", err)
	}
	if got.ID != puneID {
		t.Fatalf("expected fallback to fully stocked warehouse, got %s", got.Name)
	}
}

func TestService_SelectWarehouseNoneFulfillable(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	productID := uuid.New()
	warehouseID := seedWarehouse(t, db, "Mumbai", "Maharashtra")
	seedStock(t, db, warehouseID, productID, 1, 1)

	_, err := svc.SelectWarehouse(context.Background(), nil, Destination{City: "Mumbai", State: "Maharashtra"}, []Line{{ProductID: productID, Qty: 1}})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNoFulfillableWarehouse) {
		t.Fatalf("expected no-fulfillable-warehouse error, got %v", err)
	}
}

func TestService_SelectWarehouseIgnoresOtherStates(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	productID := uuid.New()

	delhiID := seedWarehouse(t, db, "Delhi", "Delhi")
	seedStock(t, db, delhiID, productID, 10, 0)

	_, err := svc.SelectWarehouse(context.Background(), nil, Destination{City: "Mumbai", State: "Maharashtra"}, []Line{{ProductID: productID, Qty: 1}})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNoFulfillableWarehouse) {
		t.Fatalf("expected no-fulfillable-warehouse error for out-of-state stock, got %v", err)
	}
}

func TestService_SetStockUpsert(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	warehouseID := seedWarehouse(t, db, "Jaipur", "Rajasthan")
	productID := uuid.New()

	if err := svc.SetStock(ctx, StockInput{WarehouseID: warehouseID, ProductID: productID, StockQty: 7}); err != nil {
		t.Fatalf("SetStock error: %v", err)
	}
	if err := svc.SetStock(ctx, StockInput{WarehouseID: warehouseID, ProductID: productID, StockQty: 4}); err != nil {
		t.Fatalf("SetStock update error: %v", err)
	}

	rows, err := svc.ListStock(ctx, warehouseID)
	if err != nil {
		t.Fatalf("ListStock error: %v", err)
	}
	if len(rows) != 1 || rows[0].StockQty != 4 {
		t.Fatalf("unexpected stock rows: %+v", rows)
	}
}
