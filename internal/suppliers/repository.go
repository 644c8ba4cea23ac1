package suppliers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oakline/cabinetry-backend/pkg/db/models"
	"github.com/oakline/cabinetry-backend/pkg/pagination"
)

// Repository wires together supplier persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads a live supplier row.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Supplier, error) {
	var row models.Supplier
	if err := r.db.WithContext(ctx).First(&row, "id = ? AND is_deleted = FALSE", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Create inserts a new supplier row.
func (r *Repository) Create(ctx context.Context, row *models.Supplier) (*models.Supplier, error) {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// Update persists mutable supplier fields.
func (r *Repository) Update(ctx context.Context, row *models.Supplier) (*models.Supplier, error) {
	if err := r.db.WithContext(ctx).Save(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// SoftDelete flags the supplier as deleted.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Supplier{}).
		Where("id = ? AND is_deleted = FALSE", id).
		Update("is_deleted", true).Error
}

// List returns a cursor page of live suppliers.
func (r *Repository) List(ctx context.Context, params pagination.Params) ([]models.Supplier, error) {
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

	var rows []models.Supplier
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
