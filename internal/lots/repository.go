package lots

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oakline/cabinetry-backend/pkg/db/models"
	"github.com/oakline/cabinetry-backend/pkg/pagination"
)

// Repository wires together project lot persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads a live lot row.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ProjectLot, error) {
	var row models.ProjectLot
	if err := r.db.WithContext(ctx).First(&row, "id = ? AND is_deleted = FALSE", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// CodeExists reports whether a live lot already uses the code.
func (r *Repository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProjectLot{}).
		Where("code = ? AND is_deleted = FALSE", code).
		Count(&count).Error
	return count > 0, err
}

// Create inserts a new lot row.
func (r *Repository) Create(ctx context.Context, row *models.ProjectLot) (*models.ProjectLot, error) {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// Update persists mutable lot fields.
func (r *Repository) Update(ctx context.Context, row *models.ProjectLot) (*models.ProjectLot, error) {
	if err := r.db.WithContext(ctx).Save(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// SoftDelete flags the lot as deleted.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.ProjectLot{}).
		Where("id = ? AND is_deleted = FALSE", id).
		Update("is_deleted", true).Error
}

// List returns a cursor page of live lots.
func (r *Repository) List(ctx context.Context, params pagination.Params) ([]models.ProjectLot, error) {
	query := r.db.WithContext(ctx).
		Where("is_deleted = FALSE").
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.ProjectLot
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
