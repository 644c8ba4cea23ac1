package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oakline/cabinetry-backend/pkg/db/models"
	"github.com/oakline/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/oakline/cabinetry-backend/pkg/errors"
	"github.com/oakline/cabinetry-backend/pkg/outbox"
	"github.com/oakline/cabinetry-backend/pkg/pagination"
)

// Service exposes item management and the guarded stock mutation primitive.
type Service interface {
	CreateItem(ctx context.Context, input CreateItemInput) (*models.Item, error)
	UpdateItem(ctx context.Context, itemID uuid.UUID, input UpdateItemInput) (*models.Item, error)
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	GetItem(ctx context.Context, itemID uuid.UUID) (*models.Item, error)
	ListItems(ctx context.Context, input ListItemsInput) (*ItemListResult, error)
	AdjustStock(ctx context.Context, actor *outbox.ActorRef, itemID uuid.UUID, input AdjustStockInput) (*models.Item, error)
	ListTransactions(ctx context.Context, itemID uuid.UUID, params pagination.Params) (*TransactionListResult, error)

	// ApplyDeltaTx runs the guarded mutation inside an existing transaction so
	// sibling domains (receiving, material usage, reservations) share the same
	// primitive and ledger.
	ApplyDeltaTx(ctx context.Context, tx *gorm.DB, change StockChange) error
}

// CreateItemInput holds the validated payload to create an item.
type CreateItemInput struct {
	Name            string
	Category        enums.ItemCategory
	Quantity        int
	MeasurementUnit string
}

// UpdateItemInput holds optional mutation values for an item.
type UpdateItemInput struct {
	Name            *string
	Category        *enums.ItemCategory
	MeasurementUnit *string
}

// ListItemsInput captures list filters and pagination.
type ListItemsInput struct {
	Category   *enums.ItemCategory
	Pagination pagination.Params
}

// ItemListResult is a cursor page of items.
type ItemListResult struct {
	Items      []models.Item
	NextCursor *string
}

// AdjustStockInput describes a manual stock adjustment.
type AdjustStockInput struct {
	Type     enums.StockTransactionType
	Quantity int
	Note     *string
}

// StockChange describes one guarded mutation plus its ledger row.
type StockChange struct {
	ItemID             uuid.UUID
	Delta              int
	Type               enums.StockTransactionType
	PurchaseOrderID    *uuid.UUID
	MaterialsToOrderID *uuid.UUID
	Note               *string
	Actor              *outbox.ActorRef
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo     *Repository
	dbClient txRunner
	events   eventEmitter
}

// NewService constructs an inventory service instance.
func NewService(repo *Repository, dbClient txRunner, events eventEmitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	return &service{repo: repo, dbClient: dbClient, events: events}, nil
}

func (s *service) CreateItem(ctx context.Context, input CreateItemInput) (*models.Item, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item name is required")
	}
	if !input.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid item category")
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "initial quantity cannot be negative")
	}
	unit := strings.TrimSpace(input.MeasurementUnit)
	if unit == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "measurement unit is required")
	}

	item := &models.Item{
		ID:              uuid.New(),
		Name:            name,
		Category:        input.Category,
		Quantity:        input.Quantity,
		MeasurementUnit: unit,
	}
	created, err := s.repo.CreateItem(ctx, item)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating item")
	}
	return created, nil
}

func (s *service) UpdateItem(ctx context.Context, itemID uuid.UUID, input UpdateItemInput) (*models.Item, error) {
	item, err := s.findItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item name cannot be empty")
		}
		item.Name = name
	}
	if input.Category != nil {
		if !input.Category.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid item category")
		}
		item.Category = *input.Category
	}
	if input.MeasurementUnit != nil {
		unit := strings.TrimSpace(*input.MeasurementUnit)
		if unit == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "measurement unit cannot be empty")
		}
		item.MeasurementUnit = unit
	}

	updated, err := s.repo.UpdateItem(ctx, item)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating item")
	}
	return updated, nil
}

func (s *service) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	if _, err := s.findItem(ctx, itemID); err != nil {
		return err
	}
	if err := s.repo.SoftDeleteItem(ctx, itemID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting item")
	}
	return nil
}

func (s *service) GetItem(ctx context.Context, itemID uuid.UUID) (*models.Item, error) {
	return s.findItem(ctx, itemID)
}

func (s *service) ListItems(ctx context.Context, input ListItemsInput) (*ItemListResult, error) {
	if input.Category != nil && !input.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid item category")
	}
	rows, err := s.repo.ListItems(ctx, input.Category, input.Pagination)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing items")
	}

	limit := pagination.NormalizeLimit(input.Pagination.Limit)
	result := &ItemListResult{Items: rows}
	if len(rows) > limit {
		result.Items = rows[:limit]
		last := result.Items[len(result.Items)-1]
		cursor := pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		result.NextCursor = &cursor
	}
	return result, nil
}

// AdjustStock applies a manual stock movement through the guarded primitive.
func (s *service) AdjustStock(ctx context.Context, actor *outbox.ActorRef, itemID uuid.UUID, input AdjustStockInput) (*models.Item, error) {
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid stock transaction type")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	delta := input.Quantity
	if input.Type != enums.StockTransactionAdded {
		delta = -input.Quantity
	}

	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		return s.ApplyDeltaTx(ctx, tx, StockChange{
			ItemID: itemID,
			Delta:  delta,
			Type:   input.Type,
			Note:   input.Note,
			Actor:  actor,
		})
	})
	if err != nil {
		return nil, err
	}

	return s.findItem(ctx, itemID)
}

func (s *service) ListTransactions(ctx context.Context, itemID uuid.UUID, params pagination.Params) (*TransactionListResult, error) {
	if _, err := s.findItem(ctx, itemID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListTransactions(ctx, itemID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing stock transactions")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	result := &TransactionListResult{Transactions: rows}
	if len(rows) > limit {
		result.Transactions = rows[:limit]
		last := result.Transactions[len(result.Transactions)-1]
		cursor := pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		result.NextCursor = &cursor
	}
	return result, nil
}

// TransactionListResult is a cursor page of stock ledger rows.
type TransactionListResult struct {
	Transactions []models.StockTransaction
	NextCursor   *string
}

// ApplyDeltaTx mutates item quantity under the non-negativity guard and appends
// the matching ledger row. Both writes share the caller's transaction.
func (s *service) ApplyDeltaTx(ctx context.Context, tx *gorm.DB, change StockChange) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if change.Delta == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock delta cannot be zero")
	}
	if !change.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid stock transaction type")
	}

	repo := s.repo.WithTx(tx)
	outcome, available, err := repo.ApplyDeltaTx(tx, change.ItemID, change.Delta)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "applying stock delta")
	}
	switch outcome {
	case DeltaItemMissing:
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	case DeltaInsufficient:
		return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
			WithDetails(map[string]any{
				"item_id":   change.ItemID.String(),
				"requested": -change.Delta,
				"available": available,
			})
	}

	ledgerQty := change.Delta
	if ledgerQty < 0 {
		ledgerQty = -ledgerQty
	}
	row := models.StockTransaction{
		ID:                 uuid.New(),
		ItemID:             change.ItemID,
		Type:               change.Type,
		Quantity:           ledgerQty,
		PurchaseOrderID:    change.PurchaseOrderID,
		MaterialsToOrderID: change.MaterialsToOrderID,
		Note:               change.Note,
	}
	if err := repo.InsertTransactionTx(tx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording stock transaction")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventStockAdjusted,
		AggregateType: enums.AggregateItem,
		AggregateID:   change.ItemID,
		Actor:         change.Actor,
		Version:       1,
		Data: map[string]any{
			"item_id": change.ItemID.String(),
			"delta":   change.Delta,
			"type":    change.Type,
		},
	}
	if err := s.events.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queueing stock event")
	}
	return nil
}

func (s *service) findItem(ctx context.Context, itemID uuid.UUID) (*models.Item, error) {
	item, err := s.repo.FindItemByID(ctx, itemID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading item")
	}
	return item, nil
}
