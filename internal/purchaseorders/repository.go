package purchaseorders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oakline/cabinetry-backend/pkg/db/models"
	"github.com/oakline/cabinetry-backend/pkg/enums"
	"github.com/oakline/cabinetry-backend/pkg/pagination"
)

// Repository wires together purchase order persistence.
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

// Create inserts the header plus its lines.
func (r *Repository) Create(ctx context.Context, header *models.PurchaseOrder) (*models.PurchaseOrder, error) {
	if err := r.db.WithContext(ctx).Create(header).Error; err != nil {
		return nil, err
	}
	return header, nil
}

// FindByID loads the header with its lines.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
	var row models.PurchaseOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&row, "id = ? AND is_deleted = FALSE", id).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByIDForUpdateTx loads the header with lines, row-locked on Postgres so
// concurrent receipts against the same order serialize.
func (r *Repository) FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*models.PurchaseOrder, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	query := tx.Preload("Items")
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "purchase_orders"}})
	}
	var row models.PurchaseOrder
	if err := query.First(&row, "id = ? AND is_deleted = FALSE", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// List returns a cursor page of headers with optional filters.
func (r *Repository) List(ctx context.Context, supplierID *uuid.UUID, status *enums.POStatus, params pagination.Params) ([]models.PurchaseOrder, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("is_deleted = FALSE").
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	if supplierID != nil {
		query = query.Where("supplier_id = ?", *supplierID)
	}
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.PurchaseOrder
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateStatusTx writes the derived status inside the caller's transaction.
func (r *Repository) UpdateStatusTx(tx *gorm.DB, id uuid.UUID, status enums.POStatus) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Model(&models.PurchaseOrder{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// ReceiveLineTx increments quantity_received under the over-receipt guard. The
// update only lands when the cumulative total stays within the ordered
// quantity, so concurrent receipts cannot overshoot.
func (r *Repository) ReceiveLineTx(tx *gorm.DB, lineID uuid.UUID, qty int) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	res := tx.Model(&models.PurchaseOrderItem{}).
		Where("id = ? AND quantity_received + ? <= quantity", lineID, qty).
		Update("quantity_received", gorm.Expr("quantity_received + ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FindLineTx loads one purchase order line inside the caller's transaction.
func (r *Repository) FindLineTx(tx *gorm.DB, lineID uuid.UUID) (*models.PurchaseOrderItem, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	var line models.PurchaseOrderItem
	if err := tx.First(&line, "id = ?", lineID).Error; err != nil {
		return nil, err
	}
	return &line, nil
}

// ReferenceExists reports whether a live order already uses the reference.
func (r *Repository) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PurchaseOrder{}).
		Where("reference = ? AND is_deleted = FALSE", reference).
		Count(&count).Error
	return count > 0, err
}
