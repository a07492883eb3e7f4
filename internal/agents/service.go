package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/auricjewels/auric-backend/pkg/db/models"
	pkgerrors "github.com/auricjewels/auric-backend/pkg/errors"
)

// RegisterInput carries a new delivery agent's details.
type RegisterInput struct {
	Name             string   `json:"name" validate:"required"`
	Phone            string   `json:"phone" validate:"required,len=10,numeric"`
	AssignedArea     string   `json:"assigned_area" validate:"required"`
	AssignedPincodes []string `json:"assigned_pincodes" validate:"dive,len=6,numeric"`
}

// AssignResult reports the assignment outcome; Agent is nil when no agent
// covered the destination and the order stays assignable.
type AssignResult struct {
	Agent      *models.DeliveryAgent
	Assignment *models.OrderAssignment
}

// Service owns delivery agent registration and order assignment.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.DeliveryAgent, error)
	List(ctx context.Context) ([]models.DeliveryAgent, error)
	Stats(ctx context.Context, agentID uuid.UUID) (*models.DeliveryAgent, error)
	Assign(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, pincode, city string, actor *uuid.UUID) (*AssignResult, error)
	Reassign(ctx context.Context, tx *gorm.DB, orderID, newAgentID uuid.UUID, actor *uuid.UUID) (*AssignResult, error)
	OnDelivered(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	Unassign(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires an agent service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("agent repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*models.DeliveryAgent, error) {
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.AssignedArea) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name and assigned area are required")
	}
	if len(strings.TrimSpace(input.Phone)) != 10 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone must be 10 digits")
	}

	agent := &models.DeliveryAgent{
		ID:               uuid.New(),
		Name:             strings.TrimSpace(input.Name),
		Phone:            strings.TrimSpace(input.Phone),
		AssignedArea:     strings.TrimSpace(input.AssignedArea),
		AssignedPincodes: input.AssignedPincodes,
		IsActive:         true,
	}
	if err := s.repo.Create(ctx, agent); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create delivery agent")
	}
	return agent, nil
}

func (s *service) List(ctx context.Context) ([]models.DeliveryAgent, error) {
	agents, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list delivery agents")
	}
	return agents, nil
}

func (s *service) Stats(ctx context.Context, agentID uuid.UUID) (*models.DeliveryAgent, error) {
	if agentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent id required")
	}
	agent, err := s.repo.GetByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery agent not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery agent")
	}
	return agent, nil
}

// pickAgent chooses by pincode coverage first, then by area/city, taking
// the least-loaded candidate. ListActive already orders by load.
func pickAgent(agents []models.DeliveryAgent, pincode, city string) *models.DeliveryAgent {
	for i := range agents {
		if agents[i].ServesPincode(pincode) {
			return &agents[i]
		}
	}
	for i := range agents {
		if strings.EqualFold(agents[i].AssignedArea, city) {
			return &agents[i]
		}
	}
	return nil
}

// Assign attaches the best-matching agent to the order. A destination no
// agent covers is not an error: the result carries a nil agent and the
// order stays in the assignment queue.
func (s *service) Assign(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, pincode, city string, actor *uuid.UUID) (*AssignResult, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	repo := s.repo.WithTx(tx)
	if _, err := repo.ActiveAssignment(ctx, orderID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order already has an active assignment")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active assignment")
	}

	agents, err := repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list delivery agents")
	}

	agent := pickAgent(agents, pincode, city)
	if agent == nil {
		return &AssignResult{}, nil
	}

	assignment := &models.OrderAssignment{
		ID:               uuid.New(),
		OrderID:          orderID,
		AgentID:          agent.ID,
		AssignedByUserID: actor,
		Active:           true,
	}
	if err := repo.CreateAssignment(ctx, assignment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create assignment")
	}
	if err := repo.IncrementLoad(ctx, agent.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment agent load")
	}
	return &AssignResult{Agent: agent, Assignment: assignment}, nil
}

// Reassign hands the order to a specific agent, retiring the previous
// assignment and its load. Callers gate this on the order not yet shipped.
func (s *service) Reassign(ctx context.Context, tx *gorm.DB, orderID, newAgentID uuid.UUID, actor *uuid.UUID) (*AssignResult, error) {
	if orderID == uuid.Nil || newAgentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and agent id required")
	}

	repo := s.repo.WithTx(tx)
	next, err := repo.GetByID(ctx, newAgentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery agent not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery agent")
	}
	if !next.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "delivery agent is not active")
	}

	current, err := repo.ActiveAssignment(ctx, orderID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active assignment")
	}
	if current != nil {
		if current.AgentID == newAgentID {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already assigned to this agent")
		}
		deactivated, err := repo.DeactivateAssignment(ctx, current.ID, s.now())
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate assignment")
		}
		if deactivated {
			if err := repo.DecrementLoad(ctx, current.AgentID); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement agent load")
			}
		}
	}

	assignment := &models.OrderAssignment{
		ID:               uuid.New(),
		OrderID:          orderID,
		AgentID:          newAgentID,
		AssignedByUserID: actor,
		Active:           true,
	}
	if err := repo.CreateAssignment(ctx, assignment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create assignment")
	}
	if err := repo.IncrementLoad(ctx, newAgentID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment agent load")
	}
	return &AssignResult{Agent: next, Assignment: assignment}, nil
}

// OnDelivered settles agent stats when the order reaches the doorstep.
func (s *service) OnDelivered(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	repo := s.repo.WithTx(tx)
	assignment, err := repo.ActiveAssignment(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active assignment")
	}

	deactivated, err := repo.DeactivateAssignment(ctx, assignment.ID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate assignment")
	}
	if !deactivated {
		return nil
	}
	if err := repo.MarkDelivered(ctx, assignment.AgentID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update agent stats")
	}
	return nil
}

// Unassign drops the active assignment without crediting a delivery, used
// when the order is cancelled before it ships. No-op when nothing is
// assigned.
func (s *service) Unassign(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	repo := s.repo.WithTx(tx)
	assignment, err := repo.ActiveAssignment(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active assignment")
	}

	deactivated, err := repo.DeactivateAssignment(ctx, assignment.ID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate assignment")
	}
	if !deactivated {
		return nil
	}
	if err := repo.DecrementLoad(ctx, assignment.AgentID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement agent load")
	}
	return nil
}
