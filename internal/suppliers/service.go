package suppliers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oakline/cabinetry-backend/pkg/db/models"
	pkgerrors "github.com/oakline/cabinetry-backend/pkg/errors"
	"github.com/oakline/cabinetry-backend/pkg/pagination"
)

// Service exposes supplier management operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Supplier, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Supplier, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.Supplier, error)
	List(ctx context.Context, params pagination.Params) (*ListResult, error)

	// FindByID exposes the raw loader for sibling services validating links.
	FindByID(ctx context.Context, id uuid.UUID) (*models.Supplier, error)
}

// CreateInput holds the validated payload to create a supplier.
type CreateInput struct {
	Name  string
	Email *string
	Phone *string
}

// UpdateInput holds optional mutation values for a supplier.
type UpdateInput struct {
	Name  *string
	Email *string
	Phone *string
}

// ListResult is a cursor page of suppliers.
type ListResult struct {
	Suppliers  []models.Supplier
	NextCursor *string
}

type service struct {
	repo *Repository
}

// NewService constructs a supplier service instance.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("supplier repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Supplier, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier name is required")
	}

	row := &models.Supplier{
		ID:    uuid.New(),
		Name:  name,
		Email: input.Email,
		Phone: input.Phone,
	}
	created, err := s.repo.Create(ctx, row)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating supplier")
	}
	return created, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Supplier, error) {
	row, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier name cannot be empty")
		}
		row.Name = name
	}
	if input.Email != nil {
		row.Email = input.Email
	}
	if input.Phone != nil {
		row.Phone = input.Phone
	}

	updated, err := s.repo.Update(ctx, row)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating supplier")
	}
	return updated, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting supplier")
	}
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Supplier, error) {
	return s.FindByID(ctx, id)
}

func (s *service) List(ctx context.Context, params pagination.Params) (*ListResult, error) {
	rows, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing suppliers")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	result := &ListResult{Suppliers: rows}
	if len(rows) > limit {
		result.Suppliers = rows[:limit]
		last := result.Suppliers[len(result.Suppliers)-1]
		cursor := pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		result.NextCursor = &cursor
	}
	return result, nil
}

func (s *service) FindByID(ctx context.Context, id uuid.UUID) (*models.Supplier, error) {
	row, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "supplier not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading supplier")
	}
	return row, nil
}
