package reservations

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oakline/cabinetry-backend/pkg/db/models"
)

// Repository wires together stock reservation persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads one reservation row.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.StockReservation, error) {
	var row models.StockReservation
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByLineTx loads the reservation attached to a line, if any.
func (r *Repository) FindByLineTx(tx *gorm.DB, lineID uuid.UUID) (*models.StockReservation, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	var row models.StockReservation
	if err := tx.First(&row, "materials_to_order_item_id = ?", lineID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// InsertTx creates a reservation inside the caller's transaction.
func (r *Repository) InsertTx(tx *gorm.DB, row *models.StockReservation) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(row).Error
}

// UpdateQuantityTx rewrites the reserved quantity.
func (r *Repository) UpdateQuantityTx(tx *gorm.DB, id uuid.UUID, quantity int) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Model(&models.StockReservation{}).
		Where("id = ?", id).
		Update("quantity", quantity).Error
}

// DeleteTx removes the reservation row.
func (r *Repository) DeleteTx(tx *gorm.DB, id uuid.UUID) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Where("id = ?", id).Delete(&models.StockReservation{}).Error
}

// ListForMTO returns all reservations attached to the header's lines.
func (r *Repository) ListForMTO(ctx context.Context, mtoID uuid.UUID) ([]models.StockReservation, error) {
	db := r.db.WithContext(ctx)
	var rows []models.StockReservation
	err := db.Where("materials_to_order_item_id IN (?)",
		db.Session(&gorm.Session{NewDB: true}).
			Model(&models.MaterialsToOrderItem{}).
			Select("id").
			Where("materials_to_order_id = ?", mtoID),
	).Order("created_at ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindLineTx loads the line row for a reservation target.
func (r *Repository) FindLineTx(tx *gorm.DB, lineID uuid.UUID) (*models.MaterialsToOrderItem, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	var line models.MaterialsToOrderItem
	if err := tx.First(&line, "id = ?", lineID).Error; err != nil {
		return nil, err
	}
	return &line, nil
}

// FindHeaderForUpdateTx row-locks the owning header on Postgres so reservation
// writes serialize against completion.
func (r *Repository) FindHeaderForUpdateTx(tx *gorm.DB, mtoID uuid.UUID) (*models.MaterialsToOrder, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	query := tx.Session(&gorm.Session{})
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var header models.MaterialsToOrder
	if err := query.First(&header, "id = ? AND is_deleted = FALSE", mtoID).Error; err != nil {
		return nil, err
	}
	return &header, nil
}
