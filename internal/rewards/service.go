package rewards

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/auricjewels/auric-backend/pkg/db/models"
	"github.com/auricjewels/auric-backend/pkg/enums"
	pkgerrors "github.com/auricjewels/auric-backend/pkg/errors"
	"github.com/auricjewels/auric-backend/pkg/pagination"
)

const (
	// MinRedeemPoints is the smallest redemption the ledger accepts.
	MinRedeemPoints = 100
	// redeemBlock is the granularity points are redeemed in.
	redeemBlock = 100
	// paisePerBlock is the discount one redeemed block buys (₹10).
	paisePerBlock = 1000
	// earnDivisor converts paid paise into earned points (1% of rupees).
	earnDivisor = 10000
)

// QuoteRedemption reports what a redemption request would take and buy
// without touching the ledger. Below the minimum nothing is accepted; the
// actual debit stays with Hold.
func QuoteRedemption(points int) (accepted int, discountPaise int64) {
	if points < MinRedeemPoints {
		return 0, 0
	}
	accepted = (points / redeemBlock) * redeemBlock
	return accepted, int64(accepted/redeemBlock) * paisePerBlock
}

// HoldResult reports what a redemption hold actually took.
type HoldResult struct {
	AcceptedPoints int   `json:"accepted_points"`
	DiscountPaise  int64 `json:"discount_paise"`
}

// HistoryPage is one page of the reward ledger plus the cursor for the next.
type HistoryPage struct {
	Transactions []models.RewardTransaction `json:"transactions"`
	NextCursor   string                     `json:"next_cursor,omitempty"`
}

// Service owns the reward point ledger.
type Service interface {
	Balance(ctx context.Context, userID uuid.UUID) (*models.RewardAccount, error)
	History(ctx context.Context, userID uuid.UUID, page pagination.Params) (*HistoryPage, error)
	Hold(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, points int) (*HoldResult, error)
	EnsureHold(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, points int) error
	Commit(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID) error
	Release(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID) error
	Earn(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, paidPaise int64) (int, error)
}

type service struct {
	repo Repository
}

// NewService wires a reward service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reward repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (*models.RewardAccount, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if err := s.repo.EnsureAccount(ctx, userID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure reward account")
	}
	account, err := s.repo.GetAccount(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reward account")
	}
	return account, nil
}

func (s *service) History(ctx context.Context, userID uuid.UUID, page pagination.Params) (*HistoryPage, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	cursor, err := pagination.ParseCursor(page.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(page.Limit)
	txns, err := s.repo.ListTransactions(ctx, userID, pagination.LimitWithBuffer(page.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reward transactions")
	}

	result := &HistoryPage{Transactions: txns}
	if len(txns) > limit {
		result.Transactions = txns[:limit]
		last := result.Transactions[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return result, nil
}

// Hold debits a redemption from the balance ahead of payment. Points are
// accepted in blocks of 100; the remainder stays on the account.
func (s *service) Hold(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, points int) (*HoldResult, error) {
	if userID == uuid.Nil || orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and order id required")
	}
	if points == 0 {
		return &HoldResult{}, nil
	}
	if points < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "points cannot be negative")
	}
	if points < MinRedeemPoints {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("minimum redemption is %d points", MinRedeemPoints))
	}

	accepted := (points / redeemBlock) * redeemBlock
	discount := int64(accepted/redeemBlock) * paisePerBlock

	repo := s.repo.WithTx(tx)
	if err := repo.EnsureAccount(ctx, userID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure reward account")
	}
	debited, err := repo.DebitIfSufficient(ctx, userID, accepted)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit reward balance")
	}
	if !debited {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientBalance, "reward balance does not cover the redemption")
	}

	txn := &models.RewardTransaction{
		ID:          uuid.New(),
		UserID:      userID,
		OrderID:     &orderID,
		Type:        enums.RewardTransactionRedeemHold,
		Points:      accepted,
		AmountPaise: discount,
	}
	if err := repo.CreateTransaction(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record redemption hold")
	}

	return &HoldResult{AcceptedPoints: accepted, DiscountPaise: discount}, nil
}

// EnsureHold re-takes the redemption frozen into an order when its hold was
// released by an abandoned payment attempt. Points is the accepted block
// count from the original hold. A still-active hold (or an already committed
// redemption) makes this a no-op; a balance that no longer covers the points
// fails the retry the same way the original hold would have.
func (s *service) EnsureHold(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, points int) error {
	if userID == uuid.Nil || orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id and order id required")
	}
	if points <= 0 {
		return nil
	}

	repo := s.repo.WithTx(tx)
	for _, active := range []enums.RewardTransactionType{
		enums.RewardTransactionRedeemHold,
		enums.RewardTransactionRedeem,
	} {
		if _, err := repo.FindByOrderAndType(ctx, userID, orderID, active); err == nil {
			return nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check redemption entry")
		}
	}

	debited, err := repo.DebitIfSufficient(ctx, userID, points)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit reward balance")
	}
	if !debited {
		return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "reward balance no longer covers the redemption")
	}

	txn := &models.RewardTransaction{
		ID:          uuid.New(),
		UserID:      userID,
		OrderID:     &orderID,
		Type:        enums.RewardTransactionRedeemHold,
		Points:      points,
		AmountPaise: int64(points/redeemBlock) * paisePerBlock,
	}
	if err := repo.CreateTransaction(ctx, txn); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record redemption hold")
	}
	return nil
}

// Commit finalizes the hold for a paid order. The debit already happened at
// hold time, so committing only flips the ledger row. Safe to replay.
func (s *service) Commit(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID) error {
	if userID == uuid.Nil || orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id and order id required")
	}

	repo := s.repo.WithTx(tx)
	hold, err := repo.FindByOrderAndType(ctx, userID, orderID, enums.RewardTransactionRedeemHold)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load redemption hold")
	}

	if _, err := repo.FlipTransactionType(ctx, hold.ID,
		enums.RewardTransactionRedeemHold, enums.RewardTransactionRedeem); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commit redemption hold")
	}
	return nil
}

// Release returns redeemed points to the balance when the order never
// completes. It covers both a pending hold and a committed redemption, so a
// cancel after payment still restores the points. The flip is the idempotency
// gate: only the caller that wins it credits.
func (s *service) Release(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID) error {
	if userID == uuid.Nil || orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id and order id required")
	}

	repo := s.repo.WithTx(tx)
	for _, source := range []enums.RewardTransactionType{
		enums.RewardTransactionRedeemHold,
		enums.RewardTransactionRedeem,
	} {
		txn, err := repo.FindByOrderAndType(ctx, userID, orderID, source)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load redemption entry")
		}

		flipped, err := repo.FlipTransactionType(ctx, txn.ID, source, enums.RewardTransactionRelease)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release redemption")
		}
		if !flipped {
			return nil
		}
		if err := repo.CreditRelease(ctx, userID, txn.Points); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit released points")
		}
		return nil
	}
	return nil
}

// Earn credits 1% of the rupees actually paid, rounded down. Replays for the
// same order are no-ops.
func (s *service) Earn(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, paidPaise int64) (int, error) {
	if userID == uuid.Nil || orderID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id and order id required")
	}
	if paidPaise < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "paid amount cannot be negative")
	}

	points := int(paidPaise / earnDivisor)
	if points == 0 {
		return 0, nil
	}

	repo := s.repo.WithTx(tx)
	if _, err := repo.FindByOrderAndType(ctx, userID, orderID, enums.RewardTransactionEarn); err == nil {
		return 0, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing earn")
	}

	if err := repo.EnsureAccount(ctx, userID); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure reward account")
	}
	if err := repo.CreditEarn(ctx, userID, points); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit earned points")
	}

	txn := &models.RewardTransaction{
		ID:          uuid.New(),
		UserID:      userID,
		OrderID:     &orderID,
		Type:        enums.RewardTransactionEarn,
		Points:      points,
		AmountPaise: paidPaise,
	}
	if err := repo.CreateTransaction(ctx, txn); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record earn")
	}
	return points, nil
}
