package rewards

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/auricjewels/auric-backend/pkg/db/models"
	"github.com/auricjewels/auric-backend/pkg/enums"
	"github.com/auricjewels/auric-backend/pkg/pagination"
)

// Repository manages persistence for reward accounts and their ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	EnsureAccount(ctx context.Context, userID uuid.UUID) error
	GetAccount(ctx context.Context, userID uuid.UUID) (*models.RewardAccount, error)
	DebitIfSufficient(ctx context.Context, userID uuid.UUID, points int) (bool, error)
	CreditRelease(ctx context.Context, userID uuid.UUID, points int) error
	CreditEarn(ctx context.Context, userID uuid.UUID, points int) error
	CreateTransaction(ctx context.Context, txn *models.RewardTransaction) error
	FindByOrderAndType(ctx context.Context, userID, orderID uuid.UUID, txnType enums.RewardTransactionType) (*models.RewardTransaction, error)
	FlipTransactionType(ctx context.Context, txnID uuid.UUID, from, to enums.RewardTransactionType) (bool, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.RewardTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reward repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) EnsureAccount(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.RewardAccount{UserID: userID}).Error
}

func (r *repository) GetAccount(ctx context.Context, userID uuid.UUID) (*models.RewardAccount, error) {
	var account models.RewardAccount
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// DebitIfSufficient takes points out of the balance only when the balance
// still covers them. The guard lives in the UPDATE itself so concurrent
// redemptions cannot overdraw.
func (r *repository) DebitIfSufficient(ctx context.Context, userID uuid.UUID, points int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.RewardAccount{}).
		Where("user_id = ? AND balance >= ?", userID, points).
		Updates(map[string]any{
			"balance":        gorm.Expr("balance - ?", points),
			"total_redeemed": gorm.Expr("total_redeemed + ?", points),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) CreditRelease(ctx context.Context, userID uuid.UUID, points int) error {
	return r.db.WithContext(ctx).
		Model(&models.RewardAccount{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"balance":        gorm.Expr("balance + ?", points),
			"total_redeemed": gorm.Expr("total_redeemed - ?", points),
		}).Error
}

func (r *repository) CreditEarn(ctx context.Context, userID uuid.UUID, points int) error {
	return r.db.WithContext(ctx).
		Model(&models.RewardAccount{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"balance":      gorm.Expr("balance + ?", points),
			"total_earned": gorm.Expr("total_earned + ?", points),
		}).Error
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.RewardTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindByOrderAndType(ctx context.Context, userID, orderID uuid.UUID, txnType enums.RewardTransactionType) (*models.RewardTransaction, error) {
	var txn models.RewardTransaction
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND order_id = ? AND type = ?", userID, orderID, txnType).
		First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// FlipTransactionType resolves a hold into its final state. The WHERE on the
// source type makes replays no-ops.
func (r *repository) FlipTransactionType(ctx context.Context, txnID uuid.UUID, from, to enums.RewardTransactionType) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.RewardTransaction{}).
		Where("id = ? AND type = ?", txnID, from).
		UpdateColumn("type", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ListTransactions(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.RewardTransaction, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var txns []models.RewardTransaction
	if err := query.Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}
