package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/auricjewels/auric-backend/pkg/db/models"
	pkgerrors "github.com/auricjewels/auric-backend/pkg/errors"
)

// Service loads the immutable product data frozen into order lines.
type Service interface {
	Snapshots(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	Seed(ctx context.Context, input SeedInput) (*models.Product, error)
	List(ctx context.Context) ([]models.Product, error)
}

// SeedInput carries the admin-provided product row.
type SeedInput struct {
	Name       string `json:"name" validate:"required"`
	SKU        string `json:"sku" validate:"required"`
	PricePaise int64  `json:"price_paise" validate:"required,gt=0"`
	ImageURL   string `json:"image_url"`
}

type service struct {
	repo Repository
}

// NewService wires a catalog service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

// Snapshots resolves every requested product or fails the lookup as a whole.
// Inactive products are treated as absent so retired pieces cannot be ordered.
func (s *service) Snapshots(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one product is required")
	}

	products, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}

	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		if p.IsActive {
			byID[p.ID] = p
		}
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s is not available", id))
		}
	}
	return byID, nil
}

func (s *service) Seed(ctx context.Context, input SeedInput) (*models.Product, error) {
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.SKU) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name and sku are required")
	}
	if input.PricePaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}

	product := &models.Product{
		Name:       strings.TrimSpace(input.Name),
		SKU:        strings.TrimSpace(input.SKU),
		PricePaise: input.PricePaise,
		ImageURL:   strings.TrimSpace(input.ImageURL),
		IsActive:   true,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return product, nil
}

func (s *service) List(ctx context.Context) ([]models.Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return products, nil
}
