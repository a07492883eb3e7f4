package agents

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/auricjewels/auric-backend/pkg/db/models"
)

// Repository manages persistence for delivery agents and assignments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, agent *models.DeliveryAgent) error
	GetByID(ctx context.Context, agentID uuid.UUID) (*models.DeliveryAgent, error)
	ListActive(ctx context.Context) ([]models.DeliveryAgent, error)
	List(ctx context.Context) ([]models.DeliveryAgent, error)
	ActiveAssignment(ctx context.Context, orderID uuid.UUID) (*models.OrderAssignment, error)
	CreateAssignment(ctx context.Context, assignment *models.OrderAssignment) error
	DeactivateAssignment(ctx context.Context, assignmentID uuid.UUID, now time.Time) (bool, error)
	IncrementLoad(ctx context.Context, agentID uuid.UUID) error
	DecrementLoad(ctx context.Context, agentID uuid.UUID) error
	MarkDelivered(ctx context.Context, agentID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an agent repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, agent *models.DeliveryAgent) error {
	return r.db.WithContext(ctx).Create(agent).Error
}

func (r *repository) GetByID(ctx context.Context, agentID uuid.UUID) (*models.DeliveryAgent, error) {
	var agent models.DeliveryAgent
	if err := r.db.WithContext(ctx).
		Where("id = ?", agentID).
		First(&agent).Error; err != nil {
		return nil, err
	}
	return &agent, nil
}

func (r *repository) ListActive(ctx context.Context) ([]models.DeliveryAgent, error) {
	var agents []models.DeliveryAgent
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("active_orders ASC, created_at ASC").
		Find(&agents).Error; err != nil {
		return nil, err
	}
	return agents, nil
}

func (r *repository) List(ctx context.Context) ([]models.DeliveryAgent, error) {
	var agents []models.DeliveryAgent
	if err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&agents).Error; err != nil {
		return nil, err
	}
	return agents, nil
}

func (r *repository) ActiveAssignment(ctx context.Context, orderID uuid.UUID) (*models.OrderAssignment, error) {
	var assignment models.OrderAssignment
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND active = ?", orderID, true).
		First(&assignment).Error; err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *repository) CreateAssignment(ctx context.Context, assignment *models.OrderAssignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *repository) DeactivateAssignment(ctx context.Context, assignmentID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.OrderAssignment{}).
		Where("id = ? AND active = ?", assignmentID, true).
		Updates(map[string]any{"active": false, "unassigned_at": now})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) IncrementLoad(ctx context.Context, agentID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.DeliveryAgent{}).
		Where("id = ?", agentID).
		Updates(map[string]any{
			"active_orders":  gorm.Expr("active_orders + 1"),
			"total_assigned": gorm.Expr("total_assigned + 1"),
		}).Error
}

func (r *repository) DecrementLoad(ctx context.Context, agentID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.DeliveryAgent{}).
		Where("id = ? AND active_orders > 0", agentID).
		Update("active_orders", gorm.Expr("active_orders - 1")).Error
}

func (r *repository) MarkDelivered(ctx context.Context, agentID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.DeliveryAgent{}).
		Where("id = ? AND active_orders > 0", agentID).
		Updates(map[string]any{
			"active_orders":   gorm.Expr("active_orders - 1"),
			"total_delivered": gorm.Expr("total_delivered + 1"),
		}).Error
}
