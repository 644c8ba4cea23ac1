package mto

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oakline/cabinetry-backend/internal/inventory"
	"github.com/oakline/cabinetry-backend/pkg/db/models"
	"github.com/oakline/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/oakline/cabinetry-backend/pkg/errors"
	"github.com/oakline/cabinetry-backend/pkg/outbox"
	"github.com/oakline/cabinetry-backend/pkg/pagination"
)

// Service exposes materials-to-order lifecycle operations.
type Service interface {
	Create(ctx context.Context, actor *outbox.ActorRef, input CreateInput) (*models.MaterialsToOrder, error)
	Get(ctx context.Context, id uuid.UUID) (*models.MaterialsToOrder, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
	Delete(ctx context.Context, id uuid.UUID) error
	UseMaterials(ctx context.Context, actor *outbox.ActorRef, mtoID uuid.UUID, usages []LineUsage) (*models.MaterialsToOrder, error)
	CompleteUsedMaterial(ctx context.Context, actor *outbox.ActorRef, mtoID uuid.UUID) (*models.MaterialsToOrder, error)
	Close(ctx context.Context, actor *outbox.ActorRef, mtoID uuid.UUID) (*models.MaterialsToOrder, error)

	// RecomputeStatusTx derives the header status from line coverage inside an
	// existing transaction. Safe to call repeatedly; a no-op when the derived
	// status matches the stored one or the header is closed.
	RecomputeStatusTx(ctx context.Context, tx *gorm.DB, mtoID uuid.UUID) error
}

// CreateInput holds the validated payload to create a header with lines.
type CreateInput struct {
	LotID uuid.UUID
	Note  *string
	Lines []CreateLineInput
}

// CreateLineInput is one required material on the header.
type CreateLineInput struct {
	ItemID   uuid.UUID
	Quantity int
}

// ListInput captures list filters and pagination.
type ListInput struct {
	LotID      *uuid.UUID
	Status     *enums.MTOStatus
	Pagination pagination.Params
}

// ListResult is a cursor page of headers.
type ListResult struct {
	MaterialsToOrder []models.MaterialsToOrder
	NextCursor       *string
}

// LineUsage records consumed material against one line.
type LineUsage struct {
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

type lotReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.ProjectLot, error)
}

type itemReader interface {
	GetItem(ctx context.Context, itemID uuid.UUID) (*models.Item, error)
}

type service struct {
	repo     *Repository
	dbClient txRunner
	stock    stockMutator
	lots     lotReader
	items    itemReader
	events   eventEmitter
}

// NewService constructs a materials-to-order service instance.
func NewService(repo *Repository, dbClient txRunner, stock stockMutator, lots lotReader, items itemReader, events eventEmitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("mto repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock mutator required")
	}
	if lots == nil {
		return nil, fmt.Errorf("lot reader required")
	}
	if items == nil {
		return nil, fmt.Errorf("item reader required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	return &service{
		repo:     repo,
		dbClient: dbClient,
		stock:    stock,
		lots:     lots,
		items:    items,
		events:   events,
	}, nil
}

func (s *service) Create(ctx context.Context, actor *outbox.ActorRef, input CreateInput) (*models.MaterialsToOrder, error) {
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one material line is required")
	}
	if _, err := s.lots.FindByID(ctx, input.LotID); err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]bool, len(input.Lines))
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
		}
		if seen[line.ItemID] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate item on material lines").
				WithDetails(map[string]any{"item_id": line.ItemID.String()})
		}
		seen[line.ItemID] = true
		if _, err := s.items.GetItem(ctx, line.ItemID); err != nil {
			return nil, err
		}
	}

	header := &models.MaterialsToOrder{
		ID:     uuid.New(),
		LotID:  input.LotID,
		Status: enums.MTOStatusDraft,
		Note:   input.Note,
	}
	for _, line := range input.Lines {
		header.Items = append(header.Items, models.MaterialsToOrderItem{
			ID:                 uuid.New(),
			MaterialsToOrderID: header.ID,
			ItemID:             line.ItemID,
			Quantity:           line.Quantity,
		})
	}

	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).Create(ctx, header); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating materials to order")
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMTOCreated,
			AggregateType: enums.AggregateMaterialsToOrder,
			AggregateID:   header.ID,
			Actor:         actor,
			Version:       1,
			Data:          map[string]any{"lot_id": input.LotID.String(), "lines": len(input.Lines)},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, header.ID)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.MaterialsToOrder, error) {
	row, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "materials to order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading materials to order")
	}
	return row, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	rows, err := s.repo.List(ctx, input.LotID, input.Status, input.Pagination)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing materials to order")
	}

	limit := pagination.NormalizeLimit(input.Pagination.Limit)
	result := &ListResult{MaterialsToOrder: rows}
	if len(rows) > limit {
		result.MaterialsToOrder = rows[:limit]
		last := result.MaterialsToOrder[len(result.MaterialsToOrder)-1]
		cursor := pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		result.NextCursor = &cursor
	}
	return result, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	row, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if row.Status != enums.MTOStatusDraft {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only draft materials to order can be deleted").
			WithDetails(map[string]any{"status": row.Status})
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting materials to order")
	}
	return nil
}

// UseMaterials records consumed quantities against lines. Reserved stock is
// consumed first; anything beyond the reservation draws from free stock through
// the guarded mutation.
func (s *service) UseMaterials(ctx context.Context, actor *outbox.ActorRef, mtoID uuid.UUID, usages []LineUsage) (*models.MaterialsToOrder, error) {
	if len(usages) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one usage line is required")
	}
	for _, usage := range usages {
		if usage.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "usage quantity must be positive")
		}
	}

	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		header, err := s.lockHeader(tx, mtoID)
		if err != nil {
			return err
		}
		if header.UsedMaterialCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "material usage already completed")
		}

		lines := lineIndex(header)
		for _, usage := range usages {
			line, ok := lines[usage.LineID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "material line not found").
					WithDetails(map[string]any{"line_id": usage.LineID.String()})
			}
			if err := s.consumeForLine(ctx, tx, actor, header, line, usage.Quantity); err != nil {
				return err
			}
		}

		if err := s.RecomputeStatusTx(ctx, tx, mtoID); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMTOMaterialsUsed,
			AggregateType: enums.AggregateMaterialsToOrder,
			AggregateID:   mtoID,
			Actor:         actor,
			Version:       1,
			Data:          map[string]any{"lines": len(usages)},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, mtoID)
}

// CompleteUsedMaterial flips the one-way completion flag and implicitly
// consumes every line's remaining quantity.
func (s *service) CompleteUsedMaterial(ctx context.Context, actor *outbox.ActorRef, mtoID uuid.UUID) (*models.MaterialsToOrder, error) {
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		header, err := s.lockHeader(tx, mtoID)
		if err != nil {
			return err
		}
		if header.UsedMaterialCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "material usage already completed")
		}

		for i := range header.Items {
			line := &header.Items[i]
			remaining := line.Quantity - line.QuantityUsed
			if remaining <= 0 {
				continue
			}
			if err := s.consumeForLine(ctx, tx, actor, header, line, remaining); err != nil {
				return err
			}
		}

		flipped, err := s.repo.MarkCompletedTx(tx, mtoID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marking completion")
		}
		if !flipped {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "material usage already completed")
		}

		if err := s.RecomputeStatusTx(ctx, tx, mtoID); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMTOMaterialsUsed,
			AggregateType: enums.AggregateMaterialsToOrder,
			AggregateID:   mtoID,
			Actor:         actor,
			Version:       1,
			Data:          map[string]any{"completed": true},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, mtoID)
}

func (s *service) Close(ctx context.Context, actor *outbox.ActorRef, mtoID uuid.UUID) (*models.MaterialsToOrder, error) {
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		header, err := s.lockHeader(tx, mtoID)
		if err != nil {
			return err
		}
		if header.Status == enums.MTOStatusClosed {
			return nil
		}
		if !header.UsedMaterialCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "material usage must be completed before closing")
		}
		if err := s.repo.UpdateStatusTx(tx, mtoID, enums.MTOStatusClosed); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "closing materials to order")
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMTOStatusChanged,
			AggregateType: enums.AggregateMaterialsToOrder,
			AggregateID:   mtoID,
			Actor:         actor,
			Version:       1,
			Data:          map[string]any{"status": enums.MTOStatusClosed},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, mtoID)
}

// RecomputeStatusTx derives the header status from per-line coverage. Coverage
// counts reserved stock, quantities already placed on purchase orders, and
// quantities already consumed, so the derived status never regresses as
// reservations convert into usage.
func (s *service) RecomputeStatusTx(ctx context.Context, tx *gorm.DB, mtoID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}

	var header models.MaterialsToOrder
	err := tx.Preload("Items").First(&header, "id = ? AND is_deleted = FALSE", mtoID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "materials to order not found")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading materials to order")
	}
	if header.Status == enums.MTOStatusClosed {
		return nil
	}

	reserved, err := s.repo.ReservedByLineTx(tx, mtoID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "summing reservations")
	}

	allCovered := len(header.Items) > 0
	anyCoverage := false
	for _, line := range header.Items {
		coverage := reserved[line.ID] + line.QuantityOrderedPO + line.QuantityUsed
		if coverage > 0 {
			anyCoverage = true
		}
		if coverage < line.Quantity {
			allCovered = false
		}
	}

	next := enums.MTOStatusDraft
	switch {
	case allCovered:
		next = enums.MTOStatusFullyOrdered
	case anyCoverage:
		next = enums.MTOStatusPartiallyOrdered
	}

	if next == header.Status {
		return nil
	}
	if err := s.repo.UpdateStatusTx(tx, mtoID, next); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating status")
	}
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventMTOStatusChanged,
		AggregateType: enums.AggregateMaterialsToOrder,
		AggregateID:   mtoID,
		Version:       1,
		Data:          map[string]any{"status": next, "previous": header.Status},
	})
}

// consumeForLine draws qty from the line's reservation first, then free stock,
// and bumps quantity_used under the cap guard.
func (s *service) consumeForLine(ctx context.Context, tx *gorm.DB, actor *outbox.ActorRef, header *models.MaterialsToOrder, line *models.MaterialsToOrderItem, qty int) error {
	remaining := line.Quantity - line.QuantityUsed
	if qty > remaining {
		return pkgerrors.New(pkgerrors.CodeConflict, "usage exceeds required quantity").
			WithDetails(map[string]any{
				"line_id":   line.ID.String(),
				"requested": qty,
				"remaining": remaining,
			})
	}

	fromReserved := 0
	reservation, err := s.repo.FindReservationByLineTx(tx, line.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading reservation")
	}
	if reservation != nil {
		fromReserved = reservation.Quantity
		if fromReserved > qty {
			fromReserved = qty
		}
		if err := s.repo.ShrinkReservationTx(tx, reservation.ID, fromReserved); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "consuming reservation")
		}
	}

	if fromFree := qty - fromReserved; fromFree > 0 {
		err := s.stock.ApplyDeltaTx(ctx, tx, inventory.StockChange{
			ItemID:             line.ItemID,
			Delta:              -fromFree,
			Type:               enums.StockTransactionUsed,
			MaterialsToOrderID: &header.ID,
			Actor:              actor,
		})
		if err != nil {
			return err
		}
	}

	ok, err := s.repo.UpdateLineUsageTx(tx, line.ID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating line usage")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConflict, "usage exceeds required quantity").
			WithDetails(map[string]any{"line_id": line.ID.String()})
	}
	line.QuantityUsed += qty
	return nil
}

func (s *service) lockHeader(tx *gorm.DB, mtoID uuid.UUID) (*models.MaterialsToOrder, error) {
	header, err := s.repo.FindByIDForUpdateTx(tx, mtoID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "materials to order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "locking materials to order")
	}
	return header, nil
}

func lineIndex(header *models.MaterialsToOrder) map[uuid.UUID]*models.MaterialsToOrderItem {
	out := make(map[uuid.UUID]*models.MaterialsToOrderItem, len(header.Items))
	for i := range header.Items {
		out[header.Items[i].ID] = &header.Items[i]
	}
	return out
}
