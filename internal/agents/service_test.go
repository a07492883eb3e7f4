package agents

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
	dsn := "file:agents_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.DeliveryAgent{}, &models.OrderAssignment{}); err != nil {
		t.Fatalf("migrate agents: %v", err)
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

func seedAgent(t *testing.T, db *gorm.DB, name, area string, pincodes []string, activeOrders int) uuid.UUID {
	t.Helper()
	agent := models.DeliveryAgent{
		ID:               uuid.New(),
		Name:             name,
		Phone:            "9876543210",
		AssignedArea:     area,
		AssignedPincodes: pincodes,
		ActiveOrders:     activeOrders,
		IsActive:         true,
	}
	if err := db.Create(&agent).Error; err != nil {
		t.Fatalf("seed agent: %v", err)
	}
	return agent.ID
}

func TestService_AssignPrefersPincodeCoverage(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	seedAgent(t, db, "Asha", "Mumbai", nil, 0)
	coveredID := seedAgent(t, db, "Ravi", "Thane", []string{"400001"}, 5)

	got, err := svc.Assign(ctx, nil, uuid.New(), "400001", "Mumbai", nil)
	if err != nil {
		t.Fatalf("Assign error: %v", err)
	}
	if got.Agent == nil || got.Agent.ID != coveredID {
		t.Fatalf("expected pincode-covering agent despite higher load, got %+v", got.Agent)
	}

	var agent models.DeliveryAgent
	if err := db.First(&agent, "id = ?", coveredID).Error; err != nil {
		t.Fatalf("load agent: %v", err)
	}
	if agent.ActiveOrders != 6 || agent.TotalAssigned != 1 {
		t.Fatalf("unexpected agent load: %+v", agent)
	}
}

func TestService_AssignFallsBackToCityLowestLoad(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	seedAgent(t, db, "Busy", "Mumbai", nil, 4)
	idleID := seedAgent(t, db, "Idle", "Mumbai", nil, 1)

	got, err := svc.Assign(context.Background(), nil, uuid.New(), "400099", "Mumbai", nil)
	if err != nil {
		t.Fatalf("Assign error: %v", err)
	}
	if got.Agent == nil || got.Agent.ID != idleID {
		t.Fatalf("expected least-loaded city agent, got %+v", got.Agent)
	}
}

func TestService_AssignNoCoverageLeavesOrderUnassigned(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	seedAgent(t, db, "Asha", "Mumbai", []string{"400001"}, 0)

	got, err := svc.Assign(context.Background(), nil, uuid.New(), "560001", "Bengaluru", nil)
	if err != nil {
		t.Fatalf("Assign error: %v", err)
	}
	if got.Agent != nil {
		t.Fatalf("expected unassigned result, got %+v", got.Agent)
	}
}

func TestService_AssignRejectsDoubleAssignment(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	orderID := uuid.New()

	seedAgent(t, db, "Asha", "Mumbai", nil, 0)

	if _, err := svc.Assign(ctx, nil, orderID, "400001", "Mumbai", nil); err != nil {
		t.Fatalf("Assign error: %v", err)
	}
	if _, err := svc.Assign(ctx, nil, orderID, "400001", "Mumbai", nil); !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestService_ReassignMovesLoad(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	orderID := uuid.New()

	firstID := seedAgent(t, db, "First", "Mumbai", nil, 0)
	secondID := seedAgent(t, db, "Second", "Pune", nil, 0)

	if _, err := svc.Assign(ctx, nil, orderID, "400001", "Mumbai", nil); err != nil {
		t.Fatalf("Assign error: %v", err)
	}
	got, err := svc.Reassign(ctx, nil, orderID, secondID, nil)
	if err != nil {
		t.Fatalf("Reassign error: %v", err)
	}
	if got.Agent.ID != secondID {
		t.Fatalf("expected reassignment to second agent, got %+v", got.Agent)
	}

	var first, second models.DeliveryAgent
	if err := db.First(&first, "id = ?", firstID).Error; err != nil {
		t.Fatalf("load first agent: %v", err)
	}
	if err := db.First(&second, "id = ?", secondID).Error; err != nil {
		t.Fatalf("load second agent: %v", err)
	}
	if first.ActiveOrders != 0 {
		t.Fatalf("expected first agent load returned: %+v", first)
	}
	if second.ActiveOrders != 1 || second.TotalAssigned != 1 {
		t.Fatalf("unexpected second agent load: %+v", second)
	}

	var history []models.OrderAssignment
	if err := db.Where("order_id = ?", orderID).Order("assigned_at ASC").Find(&history).Error; err != nil {
		t.Fatalf("load assignments: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 assignment rows, got %d", len(history))
	}
}

func TestService_ReassignToSameAgentConflicts(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	orderID := uuid.New()
	agentID := seedAgent(t, db, "Asha", "Mumbai", nil, 0)

	if _, err := svc.Assign(ctx, nil, orderID, "400001", "Mumbai", nil); err != nil {
		t.Fatalf("Assign error: %v", err)
	}
	if _, err := svc.Reassign(ctx, nil, orderID, agentID, nil); !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestService_OnDeliveredSettlesStats(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	orderID := uuid.New()
	agentID := seedAgent(t, db, "Asha", "Mumbai", nil, 0)

	if _, err := svc.Assign(ctx, nil, orderID, "400001", "Mumbai", nil); err != nil {
		t.Fatalf("Assign error: %v", err)
	}
	if err := svc.OnDelivered(ctx, nil, orderID); err != nil {
		t.Fatalf("OnDelivered error: %v", err)
	}
	// replay settles nothing further
	if err := svc.OnDelivered(ctx, nil, orderID); err != nil {
		t.Fatalf("OnDelivered replay error: %v", err)
	}

	var agent models.DeliveryAgent
	if err := db.First(&agent, "id = ?", agentID).Error; err != nil {
		t.Fatalf("load agent: %v", err)
	}
	if agent.ActiveOrders != 0 || agent.TotalDelivered != 1 {
		t.Fatalf("unexpected agent stats: %+v", agent)
	}
}

func TestService_RegisterValidation(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	if _, err := svc.Register(context.Background(), RegisterInput{Name: "", Phone: "9876543210", AssignedArea: "Mumbai"}); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Register(context.Background(), RegisterInput{Name: "Asha", Phone: "98765", AssignedArea: "Mumbai"}); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
