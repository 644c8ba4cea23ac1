package reservations

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
)

// Service exposes reservation adjustment operations. Reserving deducts from
// free stock immediately; releasing returns it.
type Service interface {
	Create(ctx context.Context, actor *outbox.ActorRef, input CreateInput) (*models.StockReservation, error)
	UpdateQuantity(ctx context.Context, actor *outbox.ActorRef, reservationID uuid.UUID, quantity int) (*models.StockReservation, error)
	Delete(ctx context.Context, actor *outbox.ActorRef, reservationID uuid.UUID) error
	ListForMTO(ctx context.Context, mtoID uuid.UUID) ([]models.StockReservation, error)
}

// CreateInput holds the validated payload to reserve stock for a line.
type CreateInput struct {
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

type service struct {
	repo     *Repository
	dbClient txRunner
	stock    stockMutator
	statuses statusRecomputer
	events   eventEmitter
}

// NewService constructs a reservation service instance.
func NewService(repo *Repository, dbClient txRunner, stock stockMutator, statuses statusRecomputer, events eventEmitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reservation repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock mutator required")
	}
	if statuses == nil {
		return nil, fmt.Errorf("status recomputer required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	return &service{
		repo:     repo,
		dbClient: dbClient,
		stock:    stock,
		statuses: statuses,
		events:   events,
	}, nil
}

func (s *service) Create(ctx context.Context, actor *outbox.ActorRef, input CreateInput) (*models.StockReservation, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
	}

	var created *models.StockReservation
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		line, header, err := s.lockLine(tx, input.LineID)
		if err != nil {
			return err
		}
		if err := guardAdjustable(header); err != nil {
			return err
		}

		if _, err := s.repo.FindByLineTx(tx, line.ID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "reservation already exists for line").
				WithDetails(map[string]any{"line_id": line.ID.String()})
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking existing reservation")
		}

		if err := guardLineCapacity(line, input.Quantity); err != nil {
			return err
		}

		err = s.stock.ApplyDeltaTx(ctx, tx, inventory.StockChange{
			ItemID:             line.ItemID,
			Delta:              -input.Quantity,
			Type:               enums.StockTransactionUsed,
			MaterialsToOrderID: &header.ID,
			Actor:              actor,
		})
		if err != nil {
			return err
		}

		row := &models.StockReservation{
			ID:                     uuid.New(),
			ItemID:                 line.ItemID,
			MaterialsToOrderItemID: line.ID,
			Quantity:               input.Quantity,
		}
		if err := s.repo.InsertTx(tx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating reservation")
		}
		created = row

		if err := s.statuses.RecomputeStatusTx(ctx, tx, header.ID); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationCreated,
			AggregateType: enums.AggregateMaterialsToOrder,
			AggregateID:   header.ID,
			Actor:         actor,
			Version:       1,
			Data: map[string]any{
				"reservation_id": row.ID.String(),
				"item_id":        line.ItemID.String(),
				"quantity":       input.Quantity,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) UpdateQuantity(ctx context.Context, actor *outbox.ActorRef, reservationID uuid.UUID, quantity int) (*models.StockReservation, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
	}

	var updated *models.StockReservation
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		row, line, header, err := s.lockReservation(tx, reservationID)
		if err != nil {
			return err
		}
		if err := guardAdjustable(header); err != nil {
			return err
		}

		delta := quantity - row.Quantity
		if delta == 0 {
			updated = row
			return nil
		}
		if delta > 0 {
			if err := guardLineCapacity(line, quantity); err != nil {
				return err
			}
			err = s.stock.ApplyDeltaTx(ctx, tx, inventory.StockChange{
				ItemID:             line.ItemID,
				Delta:              -delta,
				Type:               enums.StockTransactionUsed,
				MaterialsToOrderID: &header.ID,
				Actor:              actor,
			})
		} else {
			err = s.stock.ApplyDeltaTx(ctx, tx, inventory.StockChange{
				ItemID:             line.ItemID,
				Delta:              -delta,
				Type:               enums.StockTransactionAdded,
				MaterialsToOrderID: &header.ID,
				Actor:              actor,
			})
		}
		if err != nil {
			return err
		}

		if err := s.repo.UpdateQuantityTx(tx, row.ID, quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating reservation")
		}
		row.Quantity = quantity
		updated = row

		if err := s.statuses.RecomputeStatusTx(ctx, tx, header.ID); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationUpdated,
			AggregateType: enums.AggregateMaterialsToOrder,
			AggregateID:   header.ID,
			Actor:         actor,
			Version:       1,
			Data: map[string]any{
				"reservation_id": row.ID.String(),
				"quantity":       quantity,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Delete(ctx context.Context, actor *outbox.ActorRef, reservationID uuid.UUID) error {
	return s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		row, line, header, err := s.lockReservation(tx, reservationID)
		if err != nil {
			return err
		}
		if err := guardAdjustable(header); err != nil {
			return err
		}

		err = s.stock.ApplyDeltaTx(ctx, tx, inventory.StockChange{
			ItemID:             line.ItemID,
			Delta:              row.Quantity,
			Type:               enums.StockTransactionAdded,
			MaterialsToOrderID: &header.ID,
			Actor:              actor,
		})
		if err != nil {
			return err
		}
		if err := s.repo.DeleteTx(tx, row.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting reservation")
		}

		if err := s.statuses.RecomputeStatusTx(ctx, tx, header.ID); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationReleased,
			AggregateType: enums.AggregateMaterialsToOrder,
			AggregateID:   header.ID,
			Actor:         actor,
			Version:       1,
			Data: map[string]any{
				"reservation_id": row.ID.String(),
				"quantity":       row.Quantity,
			},
		})
	})
}

func (s *service) ListForMTO(ctx context.Context, mtoID uuid.UUID) ([]models.StockReservation, error) {
	rows, err := s.repo.ListForMTO(ctx, mtoID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing reservations")
	}
	return rows, nil
}

// guardAdjustable blocks reservation writes once the header is terminal or its
// material usage is completed.
func guardAdjustable(header *models.MaterialsToOrder) error {
	if header.Status.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "materials to order is in a terminal status").
			WithDetails(map[string]any{"status": header.Status})
	}
	if header.UsedMaterialCompleted {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "material usage already completed")
	}
	return nil
}

func guardLineCapacity(line *models.MaterialsToOrderItem, reserved int) error {
	capacity := line.Quantity - line.QuantityUsed
	if reserved > capacity {
		return pkgerrors.New(pkgerrors.CodeConflict, "reservation exceeds required quantity").
			WithDetails(map[string]any{
				"line_id":   line.ID.String(),
				"requested": reserved,
				"remaining": capacity,
			})
	}
	return nil
}

func (s *service) lockLine(tx *gorm.DB, lineID uuid.UUID) (*models.MaterialsToOrderItem, *models.MaterialsToOrder, error) {
	line, err := s.repo.FindLineTx(tx, lineID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "material line not found")
	}
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading material line")
	}

	header, err := s.repo.FindHeaderForUpdateTx(tx, line.MaterialsToOrderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "materials to order not found")
	}
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "locking materials to order")
	}
	return line, header, nil
}

func (s *service) lockReservation(tx *gorm.DB, reservationID uuid.UUID) (*models.StockReservation, *models.MaterialsToOrderItem, *models.MaterialsToOrder, error) {
	var row models.StockReservation
	err := tx.First(&row, "id = ?", reservationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	if err != nil {
		return nil, nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading reservation")
	}

	line, header, err := s.lockLine(tx, row.MaterialsToOrderItemID)
	if err != nil {
		return nil, nil, nil, err
	}
	return &row, line, header, nil
}
