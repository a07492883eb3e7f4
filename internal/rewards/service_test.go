package rewards

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/auricjewels/auric-backend/pkg/db/models"
	"github.com/auricjewels/auric-backend/pkg/enums"
	pkgerrors "github.com/auricjewels/auric-backend/pkg/errors"
	"github.com/auricjewels/auric-backend/pkg/pagination"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:rewards_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.RewardAccount{}, &models.RewardTransaction{}); err != nil {
		t.Fatalf("migrate rewards: %v", err)
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

func seedAccount(t *testing.T, db *gorm.DB, userID uuid.UUID, balance int) {
	t.Helper()
	account := models.RewardAccount{UserID: userID, Balance: balance, TotalEarned: balance}
	if err := db.Create(&account).Error; err != nil {
		t.Fatalf("seed account: %v", err)
	}
}

func TestService_HoldRoundsDownToBlocks(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	orderID := uuid.New()
	seedAccount(t, db, userID, 500)

	got, err := svc.Hold(ctx, nil, userID, orderID, 250)
	if err != nil {
		t.Fatalf("Hold error: %v", err)
	}
	if got.AcceptedPoints != 200 {
		t.Fatalf("expected 200 accepted points, got %d", got.AcceptedPoints)
	}
	if got.DiscountPaise != 2000 {
		t.Fatalf("expected 2000 paise discount, got %d", got.DiscountPaise)
	}

	var account models.RewardAccount
	if err := db.First(&account, "user_id = ?", userID).Error; err != nil {
		t.Fatalf("load account: %v", err)
	}
	if account.Balance != 300 || account.TotalRedeemed != 200 {
		t.Fatalf("unexpected account state: %+v", account)
	}
}

func TestService_HoldZeroPointsIsNoop(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	got, err := svc.Hold(context.Background(), nil, uuid.New(), uuid.New(), 0)
	if err != nil {
		t.Fatalf("Hold error: %v", err)
	}
	if got.AcceptedPoints != 0 || got.DiscountPaise != 0 {
		t.Fatalf("expected empty hold, got %+v", got)
	}
}

func TestService_HoldBelowMinimum(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	userID := uuid.New()
	seedAccount(t, db, userID, 500)

	_, err := svc.Hold(context.Background(), nil, userID, uuid.New(), 99)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_HoldInsufficientBalance(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	userID := uuid.New()
	seedAccount(t, db, userID, 150)

	_, err := svc.Hold(context.Background(), nil, userID, uuid.New(), 200)
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientBalance) {
		t.Fatalf("expected insufficient balance error, got %v", err)
	}

	var account models.RewardAccount
	if err := db.First(&account, "user_id = ?", userID).Error; err != nil {
		t.Fatalf("load account: %v", err)
	}
	if account.Balance != 150 || account.TotalRedeemed != 0 {
		t.Fatalf("failed hold must not touch the balance: %+v", account)
	}
}

func TestRepository_DebitIfSufficientGuardsAgainstDoubleSpend(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()
	seedAccount(t, db, userID, 100)

	// Two redemptions race for the same 100 points; the conditional
	// UPDATE lets exactly one through.
	first, err := repo.DebitIfSufficient(ctx, userID, 100)
	if err != nil {
		t.Fatalf("first debit error: %v", err)
	}
	second, err := repo.DebitIfSufficient(ctx, userID, 100)
	if err != nil {
		t.Fatalf("second debit error: %v", err)
	}
	if !first || second {
		t.Fatalf("expected exactly one debit to win, got first=%v second=%v", first, second)
	}

	var account models.RewardAccount
	if err := db.First(&account, "user_id = ?", userID).Error; err != nil {
		t.Fatalf("load account: %v", err)
	}
	if account.Balance != 0 || account.TotalRedeemed != 100 {
		t.Fatalf("unexpected account state after race: %+v", account)
	}
}

func TestService_HoldSecondRedemptionRejected(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	seedAccount(t, db, userID, 100)

	if _, err := svc.Hold(ctx, nil, userID, uuid.New(), 100); err != nil {
		t.Fatalf("first hold error: %v", err)
	}
	_, err := svc.Hold(ctx, nil, userID, uuid.New(), 100)
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientBalance) {
		t.Fatalf("expected insufficient balance on second hold, got %v", err)
	}
}

func TestService_CommitFlipsHold(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	orderID := uuid.New()
	seedAccount(t, db, userID, 300)

	if _, err := svc.Hold(ctx, nil, userID, orderID, 300); err != nil {
		t.Fatalf("Hold error: %v", err)
	}
	if err := svc.Commit(ctx, nil, userID, orderID); err != nil {
		t.Fatalf("Commit error: %v", err)
	}
	// replay is a no-op
	if err := svc.Commit(ctx, nil, userID, orderID); err != nil {
		t.Fatalf("Commit replay error: %v", err)
	}

	var txn models.RewardTransaction
	if err := db.First(&txn, "user_id = ? AND order_id = ?", userID, orderID).Error; err != nil {
		t.Fatalf("load transaction: %v", err)
	}
	if txn.Type != enums.RewardTransactionRedeem {
		t.Fatalf("expected redeem transaction, got %s", txn.Type)
	}
}

func TestService_ReleaseRestoresBalanceOnce(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	orderID := uuid.New()
	seedAccount(t, db, userID, 400)

	if _, err := svc.Hold(ctx, nil, userID, orderID, 400); err != nil {
		t.Fatalf("Hold error: %v", err)
	}
	if err := svc.Release(ctx, nil, userID, orderID); err != nil {
		t.Fatalf("Release error: %v", err)
	}
	if err := svc.Release(ctx, nil, userID, orderID); err != nil {
		t.Fatalf("Release replay error: %v", err)
	}

	var account models.RewardAccount
	if err := db.First(&account, "user_id = ?", userID).Error; err != nil {
		t.Fatalf("load account: %v", err)
	}
	if account.Balance != 400 || account.TotalRedeemed != 0 {
		t.Fatalf("replayed release must credit exactly once: %+v", account)
	}
}

func TestService_EnsureHoldRetakesReleasedHold(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	orderID := uuid.New()
	seedAccount(t, db, userID, 300)

	if _, err := svc.Hold(ctx, nil, userID, orderID, 200); err != nil {
		t.Fatalf("Hold error: %v", err)
	}
	if err := svc.Release(ctx, nil, userID, orderID); err != nil {
		t.Fatalf("Release error: %v", err)
	}
	if err := svc.EnsureHold(ctx, nil, userID, orderID, 200); err != nil {
		t.Fatalf("EnsureHold error: %v", err)
	}

	var account models.RewardAccount
	if err := db.First(&account, "user_id = ?", userID).Error; err != nil {
		t.Fatalf("load account: %v", err)
	}
	if account.Balance != 100 || account.TotalRedeemed != 200 {
		t.Fatalf("expected hold re-taken, got %+v", account)
	}

	var count int64
	if err := db.Model(&models.RewardTransaction{}).
		Where("user_id = ? AND order_id = ? AND type = ?", userID, orderID, enums.RewardTransactionRedeemHold).
		Count(&count).Error; err != nil {
		t.Fatalf("count holds: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one active hold entry, got %d", count)
	}
}

func TestService_EnsureHoldNoopWhileHoldActive(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	orderID := uuid.New()
	seedAccount(t, db, userID, 200)

	if _, err := svc.Hold(ctx, nil, userID, orderID, 200); err != nil {
		t.Fatalf("Hold error: %v", err)
	}
	if err := svc.EnsureHold(ctx, nil, userID, orderID, 200); err != nil {
		t.Fatalf("EnsureHold error: %v", err)
	}

	var account models.RewardAccount
	if err := db.First(&account, "user_id = ?", userID).Error; err != nil {
		t.Fatalf("load account: %v", err)
	}
	if account.Balance != 0 || account.TotalRedeemed != 200 {
		t.Fatalf("active hold must not be debited twice: %+v", account)
	}
}

func TestService_EnsureHoldFailsWhenBalanceSpent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	orderID := uuid.New()
	seedAccount(t, db, userID, 200)

	if _, err := svc.Hold(ctx, nil, userID, orderID, 200); err != nil {
		t.Fatalf("Hold error: %v", err)
	}
	if err := svc.Release(ctx, nil, userID, orderID); err != nil {
		t.Fatalf("Release error: %v", err)
	}
	// The returned points get spent on another order before the retry.
	if _, err := svc.Hold(ctx, nil, userID, uuid.New(), 200); err != nil {
		t.Fatalf("competing hold error: %v", err)
	}

	err := svc.EnsureHold(ctx, nil, userID, orderID, 200)
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
}

func TestService_ReleaseWithoutHoldIsNoop(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	if err := svc.Release(context.Background(), nil, uuid.New(), uuid.New()); err != nil {
		t.Fatalf("Release error: %v", err)
	}
}

func TestService_EarnCreditsOnePercentOfRupees(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	orderID := uuid.New()

	// ₹24,999 paid → 249 points
	points, err := svc.Earn(ctx, nil, userID, orderID, 2499900)
	if err != nil {
		t.Fatalf("Earn error: %v", err)
	}
	if points != 249 {
		t.Fatalf("expected 249 points, got %d", points)
	}

	// replay must not double-credit
	points, err = svc.Earn(ctx, nil, userID, orderID, 2499900)
	if err != nil {
		t.Fatalf("Earn replay error: %v", err)
	}
	if points != 0 {
		t.Fatalf("expected replay no-op, got %d points", points)
	}

	var account models.RewardAccount
	if err := db.First(&account, "user_id = ?", userID).Error; err != nil {
		t.Fatalf("load account: %v", err)
	}
	if account.Balance != 249 || account.TotalEarned != 249 {
		t.Fatalf("unexpected account state: %+v", account)
	}
}

func TestService_EarnTinyOrderYieldsNothing(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	points, err := svc.Earn(context.Background(), nil, uuid.New(), uuid.New(), 9900)
	if err != nil {
		t.Fatalf("Earn error: %v", err)
	}
	if points != 0 {
		t.Fatalf("expected 0 points for sub-₹100 payment, got %d", points)
	}
}

func TestService_BalanceCreatesAccountLazily(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	userID := uuid.New()

	account, err := svc.Balance(context.Background(), userID)
	if err != nil {
		t.Fatalf("Balance error: %v", err)
	}
	if account.Balance != 0 || account.TotalEarned != 0 {
		t.Fatalf("expected fresh account, got %+v", account)
	}
}

func TestService_HistoryPaginates(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()

	for i := 0; i < 5; i++ {
		orderID := uuid.New()
		if _, err := svc.Earn(ctx, nil, userID, orderID, 5000000); err != nil {
			t.Fatalf("seed earn %d: %v", i, err)
		}
	}

	page, err := svc.History(ctx, userID, pagination.Params{Limit: 3})
	if err != nil {
		t.Fatalf("History error: %v", err)
	}
	if len(page.Transactions) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(page.Transactions))
	}
	if page.NextCursor == "" {
		t.Fatal("expected next cursor")
	}

	rest, err := svc.History(ctx, userID, pagination.Params{Limit: 3, Cursor: page.NextCursor})
	if err != nil {
		t.Fatalf("History page 2 error: %v", err)
	}
	if len(rest.Transactions) != 2 {
		t.Fatalf("expected 2 transactions on second page, got %d", len(rest.Transactions))
	}
	if rest.NextCursor != "" {
		t.Fatalf("expected exhausted cursor, got %q", rest.NextCursor)
	}
}
