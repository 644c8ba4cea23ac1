package purchaseorders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/oakline/cabinetry-backend/internal/inventory"
	"github.com/oakline/cabinetry-backend/pkg/db"
	"github.com/oakline/cabinetry-backend/pkg/db/models"
	"github.com/oakline/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/oakline/cabinetry-backend/pkg/errors"
	"github.com/oakline/cabinetry-backend/pkg/outbox"
	"github.com/oakline/cabinetry-backend/pkg/pagination"
)

// Service exposes purchase order lifecycle operations, including receiving.
type Service interface {
	Create(ctx context.Context, actor *outbox.ActorRef, input CreateInput) (*models.PurchaseOrder, error)
	Get(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
	Receive(ctx context.Context, actor *outbox.ActorRef, poID uuid.UUID, receipts []ReceiptLine) (*models.PurchaseOrder, error)
	Cancel(ctx context.Context, actor *outbox.ActorRef, poID uuid.UUID) (*models.PurchaseOrder, error)
}

// CreateInput holds the validated payload to place a purchase order.
type CreateInput struct {
	Reference          string
	SupplierID         uuid.UUID
	MaterialsToOrderID *uuid.UUID
	Lines              []CreateLineInput
}

// CreateLineInput is one ordered item.
type CreateLineInput struct {
	ItemID    uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
}

// ListInput captures list filters and pagination.
type ListInput struct {
	SupplierID *uuid.UUID
	Status     *enums.POStatus
	Pagination pagination.Params
}

// ListResult is a cursor page of purchase orders.
type ListResult struct {
	PurchaseOrders []models.PurchaseOrder
	NextCursor     *string
}

// ReceiptLine records delivered quantity against one order line.
type ReceiptLine struct {
	LineID   uuid.UUID
	Quantity int
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type stockMutator interface {
	ApplyDeltaTx(ctx context.Context, tx *gorm.DB, change inventory.StockChange) error
}

type statusRecomputer interface {
	RecomputeStatusTx(ctx context.Context, tx *gorm.DB, mtoID uuid.UUID) error
}

type supplierReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Supplier, error)
}

type itemReader interface {
	GetItem(ctx context.Context, itemID uuid.UUID) (*models.Item, error)
}

type mtoLinker interface {
	statusRecomputer
	Get(ctx context.Context, id uuid.UUID) (*models.MaterialsToOrder, error)
}

type orderedAdjuster interface {
	AddLineOrderedTx(tx *gorm.DB, mtoID, itemID uuid.UUID, qty int) (bool, error)
}

type service struct {
	repo      *Repository
	dbClient  txRunner
	stock     stockMutator
	suppliers supplierReader
	items     itemReader
	mto       mtoLinker
	mtoLines  orderedAdjuster
	events    eventEmitter
}

// NewService constructs a purchase order service instance.
func NewService(repo *Repository, dbClient txRunner, stock stockMutator, suppliers supplierReader, items itemReader, mto mtoLinker, mtoLines orderedAdjuster, events eventEmitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("purchase order repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock mutator required")
	}
	if suppliers == nil {
		return nil, fmt.Errorf("supplier reader required")
	}
	if items == nil {
		return nil, fmt.Errorf("item reader required")
	}
	if mto == nil {
		return nil, fmt.Errorf("mto linker required")
	}
	if mtoLines == nil {
		return nil, fmt.Errorf("mto line adjuster required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	return &service{
		repo:      repo,
		dbClient:  dbClient,
		stock:     stock,
		suppliers: suppliers,
		items:     items,
		mto:       mto,
		mtoLines:  mtoLines,
		events:    events,
	}, nil
}

func (s *service) Create(ctx context.Context, actor *outbox.ActorRef, input CreateInput) (*models.PurchaseOrder, error) {
	reference := strings.TrimSpace(input.Reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one order line is required")
	}
	if _, err := s.suppliers.FindByID(ctx, input.SupplierID); err != nil {
		return nil, err
	}

	var linkedMTO *models.MaterialsToOrder
	if input.MaterialsToOrderID != nil {
		mtoRow, err := s.mto.Get(ctx, *input.MaterialsToOrderID)
		if err != nil {
			return nil, err
		}
		if mtoRow.Status == enums.MTOStatusClosed {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "materials to order is closed")
		}
		linkedMTO = mtoRow
	}

	seen := make(map[uuid.UUID]bool, len(input.Lines))
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
		}
		if line.UnitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative")
		}
		if seen[line.ItemID] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate item on order lines").
				WithDetails(map[string]any{"item_id": line.ItemID.String()})
		}
		seen[line.ItemID] = true
		if _, err := s.items.GetItem(ctx, line.ItemID); err != nil {
			return nil, err
		}
	}

	exists, err := s.repo.ReferenceExists(ctx, reference)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking reference")
	}
	if exists {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "reference already in use").
			WithDetails(map[string]any{"reference": reference})
	}

	header := &models.PurchaseOrder{
		ID:                 uuid.New(),
		Reference:          reference,
		SupplierID:         input.SupplierID,
		MaterialsToOrderID: input.MaterialsToOrderID,
		Status:             enums.POStatusPlaced,
	}
	for _, line := range input.Lines {
		header.Items = append(header.Items, models.PurchaseOrderItem{
			ID:              uuid.New(),
			PurchaseOrderID: header.ID,
			ItemID:          line.ItemID,
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
		})
	}

	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).Create(ctx, header); err != nil {
			// A concurrent Create can slip past the ReferenceExists check.
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "reference already in use").
					WithDetails(map[string]any{"reference": reference})
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating purchase order")
		}

		if linkedMTO != nil {
			for _, line := range header.Items {
				// Lines without a matching material line are legitimate extras;
				// only matched lines count toward MTO coverage.
				if _, err := s.mtoLines.AddLineOrderedTx(tx, linkedMTO.ID, line.ItemID, line.Quantity); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating ordered quantities")
				}
			}
			if err := s.mto.RecomputeStatusTx(ctx, tx, linkedMTO.ID); err != nil {
				return err
			}
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPOCreated,
			AggregateType: enums.AggregatePurchaseOrder,
			AggregateID:   header.ID,
			Actor:         actor,
			Version:       1,
			Data: map[string]any{
				"reference":   reference,
				"supplier_id": input.SupplierID.String(),
				"lines":       len(input.Lines),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, header.ID)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
	row, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading purchase order")
	}
	return row, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	rows, err := s.repo.List(ctx, input.SupplierID, input.Status, input.Pagination)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing purchase orders")
	}

	limit := pagination.NormalizeLimit(input.Pagination.Limit)
	result := &ListResult{PurchaseOrders: rows}
	if len(rows) > limit {
		result.PurchaseOrders = rows[:limit]
		last := result.PurchaseOrders[len(result.PurchaseOrders)-1]
		cursor := pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		result.NextCursor = &cursor
	}
	return result, nil
}

// Receive books delivered quantities against the order. Each receipt is
// guarded against over-receipt, adds stock through the guarded mutation, and
// the derived status reflects the cumulative received totals afterwards.
func (s *service) Receive(ctx context.Context, actor *outbox.ActorRef, poID uuid.UUID, receipts []ReceiptLine) (*models.PurchaseOrder, error) {
	if len(receipts) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one receipt line is required")
	}
	for _, receipt := range receipts {
		if receipt.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipt quantity must be positive")
		}
	}

	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		header, err := s.lockHeader(tx, poID)
		if err != nil {
			return err
		}
		if header.Status == enums.POStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "purchase order is cancelled")
		}
		if header.Status == enums.POStatusFullyReceived {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "purchase order is fully received")
		}

		lines := lineIndex(header)
		for _, receipt := range receipts {
			line, ok := lines[receipt.LineID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order line not found").
					WithDetails(map[string]any{"line_id": receipt.LineID.String()})
			}

			applied, err := s.repo.ReceiveLineTx(tx, line.ID, receipt.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording receipt")
			}
			if !applied {
				return pkgerrors.New(pkgerrors.CodeConflict, "receipt exceeds ordered quantity").
					WithDetails(map[string]any{
						"line_id":   line.ID.String(),
						"requested": receipt.Quantity,
						"remaining": line.Quantity - line.QuantityReceived,
					})
			}
			line.QuantityReceived += receipt.Quantity

			err = s.stock.ApplyDeltaTx(ctx, tx, inventory.StockChange{
				ItemID:          line.ItemID,
				Delta:           receipt.Quantity,
				Type:            enums.StockTransactionAdded,
				PurchaseOrderID: &header.ID,
				Actor:           actor,
			})
			if err != nil {
				return err
			}
		}

		if err := s.recomputeStatusTx(ctx, tx, header); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPOReceived,
			AggregateType: enums.AggregatePurchaseOrder,
			AggregateID:   poID,
			Actor:         actor,
			Version:       1,
			Data:          map[string]any{"lines": len(receipts)},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, poID)
}

// Cancel marks the order cancelled and returns any unreceived ordered
// quantities to the linked materials-to-order coverage.
func (s *service) Cancel(ctx context.Context, actor *outbox.ActorRef, poID uuid.UUID) (*models.PurchaseOrder, error) {
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		header, err := s.lockHeader(tx, poID)
		if err != nil {
			return err
		}
		if header.Status == enums.POStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "purchase order already cancelled")
		}
		if header.Status == enums.POStatusFullyReceived {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "fully received orders cannot be cancelled")
		}

		if err := s.repo.UpdateStatusTx(tx, poID, enums.POStatusCancelled); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancelling purchase order")
		}

		if header.MaterialsToOrderID != nil {
			for _, line := range header.Items {
				unreceived := line.Quantity - line.QuantityReceived
				if unreceived <= 0 {
					continue
				}
				if _, err := s.mtoLines.AddLineOrderedTx(tx, *header.MaterialsToOrderID, line.ItemID, -unreceived); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reverting ordered quantities")
				}
			}
			if err := s.mto.RecomputeStatusTx(ctx, tx, *header.MaterialsToOrderID); err != nil {
				return err
			}
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPOCancelled,
			AggregateType: enums.AggregatePurchaseOrder,
			AggregateID:   poID,
			Actor:         actor,
			Version:       1,
			Data:          map[string]any{"reference": header.Reference},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, poID)
}

// recomputeStatusTx derives placed/partially_received/fully_received from the
// in-memory line totals, which the caller keeps current during receiving.
// Cancelled orders are never touched.
func (s *service) recomputeStatusTx(ctx context.Context, tx *gorm.DB, header *models.PurchaseOrder) error {
	if header.Status == enums.POStatusCancelled {
		return nil
	}

	allReceived := len(header.Items) > 0
	anyReceived := false
	for _, line := range header.Items {
		if line.QuantityReceived > 0 {
			anyReceived = true
		}
		if line.QuantityReceived < line.Quantity {
			allReceived = false
		}
	}

	next := enums.POStatusPlaced
	switch {
	case allReceived:
		next = enums.POStatusFullyReceived
	case anyReceived:
		next = enums.POStatusPartiallyReceived
	}

	if next == header.Status {
		return nil
	}
	if err := s.repo.UpdateStatusTx(tx, header.ID, next); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating status")
	}
	header.Status = next
	return nil
}

func (s *service) lockHeader(tx *gorm.DB, poID uuid.UUID) (*models.PurchaseOrder, error) {
	header, err := s.repo.FindByIDForUpdateTx(tx, poID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "locking purchase order")
	}
	return header, nil
}

func lineIndex(header *models.PurchaseOrder) map[uuid.UUID]*models.PurchaseOrderItem {
	out := make(map[uuid.UUID]*models.PurchaseOrderItem, len(header.Items))
	for i := range header.Items {
		out[header.Items[i].ID] = &header.Items[i]
	}
	return out
}
