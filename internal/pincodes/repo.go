package pincodes

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/auricjewels/auric-backend/pkg/db/models"
)

// Repository manages persistence for serviceable pincodes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByCode(ctx context.Context, code string) (*models.Pincode, error)
	Upsert(ctx context.Context, pincode *models.Pincode) error
	List(ctx context.Context) ([]models.Pincode, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a pincode repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetByCode(ctx context.Context, code string) (*models.Pincode, error) {
	var pincode models.Pincode
	if err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&pincode).Error; err != nil {
		return nil, err
	}
	return &pincode, nil
}

func (r *repository) Upsert(ctx context.Context, pincode *models.Pincode) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"city", "state", "delivery_days", "cod_available", "is_active", "updated_at",
			}),
		}).
		Create(pincode).Error
}

func (r *repository) List(ctx context.Context) ([]models.Pincode, error) {
	var rows []models.Pincode
	if err := r.db.WithContext(ctx).
		Order("code ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
