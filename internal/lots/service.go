package lots

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oakline/cabinetry-backend/pkg/db"
	"github.com/oakline/cabinetry-backend/pkg/db/models"
	pkgerrors "github.com/oakline/cabinetry-backend/pkg/errors"
	"github.com/oakline/cabinetry-backend/pkg/pagination"
)

// Service exposes project lot management operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.ProjectLot, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.ProjectLot, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.ProjectLot, error)
	List(ctx context.Context, params pagination.Params) (*ListResult, error)

	// FindByID exposes the raw loader for sibling services validating links.
	FindByID(ctx context.Context, id uuid.UUID) (*models.ProjectLot, error)
}

// CreateInput holds the validated payload to create a lot.
type CreateInput struct {
	Code       string
	Name       string
	ClientName *string
}

// UpdateInput holds optional mutation values for a lot.
type UpdateInput struct {
	Name       *string
	ClientName *string
}

// ListResult is a cursor page of lots.
type ListResult struct {
	Lots       []models.ProjectLot
	NextCursor *string
}

type service struct {
	repo *Repository
}

// NewService constructs a project lot service instance.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("lot repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.ProjectLot, error) {
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lot code is required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lot name is required")
	}

	exists, err := s.repo.CodeExists(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking lot code")
	}
	if exists {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "lot code already in use").
			WithDetails(map[string]any{"code": code})
	}

	row := &models.ProjectLot{
		ID:         uuid.New(),
		Code:       code,
		Name:       name,
		ClientName: input.ClientName,
	}
	created, err := s.repo.Create(ctx, row)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "lot code already in use").
				WithDetails(map[string]any{"code": code})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating lot")
	}
	return created, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.ProjectLot, error) {
	row, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "lot name cannot be empty")
		}
		row.Name = name
	}
	if input.ClientName != nil {
		row.ClientName = input.ClientName
	}

	updated, err := s.repo.Update(ctx, row)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating lot")
	}
	return updated, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting lot")
	}
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.ProjectLot, error) {
	return s.FindByID(ctx, id)
}

func (s *service) List(ctx context.Context, params pagination.Params) (*ListResult, error) {
	rows, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing lots")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	result := &ListResult{Lots: rows}
	if len(rows) > limit {
		result.Lots = rows[:limit]
		last := result.Lots[len(result.Lots)-1]
		cursor := pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		result.NextCursor = &cursor
	}
	return result, nil
}

func (s *service) FindByID(ctx context.Context, id uuid.UUID) (*models.ProjectLot, error) {
	row, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "lot not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading lot")
	}
	return row, nil
}
