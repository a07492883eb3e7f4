package pincodes

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/auricjewels/auric-backend/pkg/db/models"
	pkgerrors "github.com/auricjewels/auric-backend/pkg/errors"
)

var pincodeRe = regexp.MustCompile(`^[0-9]{6}$`)

// Serviceability is the delivery answer for a destination pincode.
type Serviceability struct {
	Code                string    `json:"code"`
	City                string    `json:"city"`
	State               string    `json:"state"`
	CODAvailable        bool      `json:"cod_available"`
	DeliveryDays        int       `json:"delivery_days"`
	EstimatedDeliveryAt time.Time `json:"estimated_delivery_at"`
}

// UpsertInput carries the admin-managed serviceability row.
type UpsertInput struct {
	Code         string `json:"code" validate:"required,len=6,numeric"`
	City         string `json:"city" validate:"required"`
	State        string `json:"state" validate:"required"`
	DeliveryDays int    `json:"delivery_days" validate:"required,gt=0"`
	CODAvailable bool   `json:"cod_available"`
	IsActive     bool   `json:"is_active"`
}

// Service answers serviceability questions and maintains the pincode index.
type Service interface {
	CheckServiceability(ctx context.Context, code string) (*Serviceability, error)
	Upsert(ctx context.Context, input UpsertInput) (*models.Pincode, error)
	List(ctx context.Context) ([]models.Pincode, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires a pincode service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("pincode repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) CheckServiceability(ctx context.Context, code string) (*Serviceability, error) {
	trimmed := strings.TrimSpace(code)
	if !pincodeRe.MatchString(trimmed) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pincode must be exactly 6 digits")
	}

	pincode, err := s.repo.GetByCode(ctx, trimmed)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotServiceable, "delivery is not available for this pincode")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pincode")
	}
	if !pincode.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotServiceable, "delivery is not available for this pincode")
	}

	return &Serviceability{
		Code:                pincode.Code,
		City:                pincode.City,
		State:               pincode.State,
		CODAvailable:        pincode.CODAvailable,
		DeliveryDays:        pincode.DeliveryDays,
		EstimatedDeliveryAt: s.now().AddDate(0, 0, pincode.DeliveryDays),
	}, nil
}

func (s *service) Upsert(ctx context.Context, input UpsertInput) (*models.Pincode, error) {
	trimmed := strings.TrimSpace(input.Code)
	if !pincodeRe.MatchString(trimmed) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pincode must be exactly 6 digits")
	}
	if strings.TrimSpace(input.City) == "" || strings.TrimSpace(input.State) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "city and state are required")
	}
	if input.DeliveryDays <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery days must be positive")
	}

	pincode := &models.Pincode{
		Code:         trimmed,
		City:         strings.TrimSpace(input.City),
		State:        strings.TrimSpace(input.State),
		DeliveryDays: input.DeliveryDays,
		CODAvailable: input.CODAvailable,
		IsActive:     input.IsActive,
	}
	if err := s.repo.Upsert(ctx, pincode); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert pincode")
	}
	return pincode, nil
}

func (s *service) List(ctx context.Context) ([]models.Pincode, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pincodes")
	}
	return rows, nil
}
