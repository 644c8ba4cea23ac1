package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oakline/cabinetry-backend/pkg/db/models"
	"github.com/oakline/cabinetry-backend/pkg/enums"
	"github.com/oakline/cabinetry-backend/pkg/pagination"
)

// DeltaOutcome reports how a guarded stock mutation resolved.
type DeltaOutcome int

const (
	// DeltaApplied means the quantity row was updated.
	DeltaApplied DeltaOutcome = iota
	// DeltaItemMissing means no live item row matched the ID.
	DeltaItemMissing
	// DeltaInsufficient means applying the delta would have driven quantity negative.
	DeltaInsufficient
)

// Repository wires together item and stock ledger persistence.
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

// FindItemByID loads a live item row.
func (r *Repository) FindItemByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).First(&item, "id = ? AND is_deleted = FALSE", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateItem inserts a new item row.
func (r *Repository) CreateItem(ctx context.Context, item *models.Item) (*models.Item, error) {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItem persists mutable item fields.
func (r *Repository) UpdateItem(ctx context.Context, item *models.Item) (*models.Item, error) {
	if err := r.db.WithContext(ctx).Save(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// SoftDeleteItem flags the item as deleted without removing history.
func (r *Repository) SoftDeleteItem(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ? AND is_deleted = FALSE", id).
		Update("is_deleted", true).Error
}

// ListItems returns a cursor page of live items, optionally filtered by category.
func (r *Repository) ListItems(ctx context.Context, category *enums.ItemCategory, params pagination.Params) ([]models.Item, error) {
	query := r.db.WithContext(ctx).
		Where("is_deleted = FALSE").
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	if category != nil {
		query = query.Where("category = ?", *category)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at, id) < (?, ?)",
			cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Item
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ApplyDeltaTx applies a guarded quantity change inside the caller's transaction.
// The WHERE clause is the non-negativity guard: the update only lands when the
// resulting quantity stays at or above zero, so concurrent writers cannot drive
// stock negative regardless of interleaving.
func (r *Repository) ApplyDeltaTx(tx *gorm.DB, itemID uuid.UUID, delta int) (DeltaOutcome, int, error) {
	if tx == nil {
		return DeltaItemMissing, 0, errors.New("transaction required")
	}

	res := tx.Model(&models.Item{}).
		Where("id = ? AND is_deleted = FALSE AND quantity + ? >= 0", itemID, delta).
		Update("quantity", gorm.Expr("quantity + ?", delta))
	if res.Error != nil {
		return DeltaItemMissing, 0, res.Error
	}
	if res.RowsAffected > 0 {
		return DeltaApplied, 0, nil
	}

	var item models.Item
	err := tx.First(&item, "id = ? AND is_deleted = FALSE", itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DeltaItemMissing, 0, nil
	}
	if err != nil {
		return DeltaItemMissing, 0, err
	}
	return DeltaInsufficient, item.Quantity, nil
}

// InsertTransactionTx appends a stock ledger row inside the caller's transaction.
func (r *Repository) InsertTransactionTx(tx *gorm.DB, row models.StockTransaction) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(&row).Error
}

// ListTransactions returns a cursor page of ledger rows for the item, newest first.
func (r *Repository) ListTransactions(ctx context.Context, itemID uuid.UUID, params pagination.Params) ([]models.StockTransaction, error) {
	query := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at, id) < (?, ?)",
			cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.StockTransaction
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SumReservedForItemTx totals active reservations for an item inside a transaction.
func (r *Repository) SumReservedForItemTx(tx *gorm.DB, itemID uuid.UUID) (int, error) {
	if tx == nil {
		return 0, errors.New("transaction required")
	}
	var total int64
	err := tx.Model(&models.StockReservation{}).
		Where("item_id = ?", itemID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	return int(total), err
}
