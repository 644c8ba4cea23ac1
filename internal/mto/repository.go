package mto

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

// Repository wires together materials-to-order persistence.
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
func (r *Repository) Create(ctx context.Context, header *models.MaterialsToOrder) (*models.MaterialsToOrder, error) {
	if err := r.db.WithContext(ctx).Create(header).Error; err != nil {
		return nil, err
	}
	return header, nil
}

// FindByID loads the header with its lines.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.MaterialsToOrder, error) {
	var row models.MaterialsToOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&row, "id = ? AND is_deleted = FALSE", id).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByIDForUpdateTx loads the header with lines, row-locked on Postgres so
// concurrent completion and reservation writers serialize.
func (r *Repository) FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*models.MaterialsToOrder, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	query := tx.Preload("Items")
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "materials_to_order"}})
	}
	var row models.MaterialsToOrder
	if err := query.First(&row, "id = ? AND is_deleted = FALSE", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// List returns a cursor page of headers, optionally filtered by lot and status.
func (r *Repository) List(ctx context.Context, lotID *uuid.UUID, status *enums.MTOStatus, params pagination.Params) ([]models.MaterialsToOrder, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("is_deleted = FALSE").
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	if lotID != nil {
		query = query.Where("lot_id = ?", *lotID)
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

	var rows []models.MaterialsToOrder
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SoftDelete flags the header as deleted.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.MaterialsToOrder{}).
		Where("id = ? AND is_deleted = FALSE", id).
		Update("is_deleted", true).Error
}

// UpdateStatusTx writes the derived status inside the caller's transaction.
func (r *Repository) UpdateStatusTx(tx *gorm.DB, id uuid.UUID, status enums.MTOStatus) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Model(&models.MaterialsToOrder{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// MarkCompletedTx sets the one-way used_material_completed flag. The WHERE
// guard on the current flag value makes the flip idempotence-safe at the
// persistence boundary: a second writer matches zero rows.
func (r *Repository) MarkCompletedTx(tx *gorm.DB, id uuid.UUID) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	res := tx.Model(&models.MaterialsToOrder{}).
		Where("id = ? AND used_material_completed = FALSE", id).
		Update("used_material_completed", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateLineUsageTx increments quantity_used under a cap guard so usage can
// never exceed the required quantity.
func (r *Repository) UpdateLineUsageTx(tx *gorm.DB, lineID uuid.UUID, qty int) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	res := tx.Model(&models.MaterialsToOrderItem{}).
		Where("id = ? AND quantity_used + ? <= quantity", lineID, qty).
		Update("quantity_used", gorm.Expr("quantity_used + ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AddLineOrderedTx adjusts quantity_ordered_po for the line matching the item.
func (r *Repository) AddLineOrderedTx(tx *gorm.DB, mtoID, itemID uuid.UUID, qty int) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	res := tx.Model(&models.MaterialsToOrderItem{}).
		Where("materials_to_order_id = ? AND item_id = ? AND quantity_ordered_po + ? >= 0", mtoID, itemID, qty).
		Update("quantity_ordered_po", gorm.Expr("quantity_ordered_po + ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ReservedByLineTx sums active reservations per line for the given header.
func (r *Repository) ReservedByLineTx(tx *gorm.DB, mtoID uuid.UUID) (map[uuid.UUID]int, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	type reservedRow struct {
		MaterialsToOrderItemID uuid.UUID
		Total                  int
	}
	var rows []reservedRow
	err := tx.Model(&models.StockReservation{}).
		Select("materials_to_order_item_id, COALESCE(SUM(quantity), 0) AS total").
		Where("materials_to_order_item_id IN (?)",
			tx.Session(&gorm.Session{NewDB: true}).
				Model(&models.MaterialsToOrderItem{}).
				Select("id").
				Where("materials_to_order_id = ?", mtoID),
		).
		Group("materials_to_order_item_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		out[row.MaterialsToOrderItemID] = row.Total
	}
	return out, nil
}

// DeleteReservationsTx removes all reservations attached to the header's lines.
func (r *Repository) DeleteReservationsTx(tx *gorm.DB, mtoID uuid.UUID) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Where("materials_to_order_item_id IN (?)",
		tx.Session(&gorm.Session{NewDB: true}).
			Model(&models.MaterialsToOrderItem{}).
			Select("id").
			Where("materials_to_order_id = ?", mtoID),
	).Delete(&models.StockReservation{}).Error
}

// FindReservationByLineTx loads the reservation attached to a line, if any.
func (r *Repository) FindReservationByLineTx(tx *gorm.DB, lineID uuid.UUID) (*models.StockReservation, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	var row models.StockReservation
	if err := tx.First(&row, "materials_to_order_item_id = ?", lineID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ShrinkReservationTx reduces a reservation by the consumed amount, dropping
// the row entirely once it hits zero.
func (r *Repository) ShrinkReservationTx(tx *gorm.DB, id uuid.UUID, by int) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	res := tx.Model(&models.StockReservation{}).
		Where("id = ? AND quantity > ?", id, by).
		Update("quantity", gorm.Expr("quantity - ?", by))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return tx.Where("id = ? AND quantity <= ?", id, by).Delete(&models.StockReservation{}).Error
}

// FindLineTx loads one line row inside the caller's transaction.
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
