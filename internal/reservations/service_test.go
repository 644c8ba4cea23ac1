package reservations

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oakline/cabinetry-backend/internal/inventory"
	"github.com/oakline/cabinetry-backend/internal/lots"
	"github.com/oakline/cabinetry-backend/internal/mto"
	"github.com/oakline/cabinetry-backend/pkg/db/models"
	"github.com/oakline/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/oakline/cabinetry-backend/pkg/errors"
	"github.com/oakline/cabinetry-backend/pkg/outbox"
)

func setupReservationsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS items (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  category TEXT NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 0,
  measurement_unit TEXT NOT NULL,
  is_deleted INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS stock_transactions (
  id TEXT PRIMARY KEY,
  item_id TEXT NOT NULL,
  type TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  purchase_order_id TEXT,
  materials_to_order_id TEXT,
  note TEXT,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS stock_reservations (
  id TEXT PRIMARY KEY,
  item_id TEXT NOT NULL,
  materials_to_order_item_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS project_lots (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL,
  name TEXT NOT NULL,
  client_name TEXT,
  is_deleted INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS materials_to_order (
  id TEXT PRIMARY KEY,
  lot_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'draft',
  used_material_completed INTEGER NOT NULL DEFAULT 0,
  note TEXT,
  is_deleted INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS materials_to_order_items (
  id TEXT PRIMARY KEY,
  materials_to_order_id TEXT NOT NULL,
  item_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  quantity_used INTEGER NOT NULL DEFAULT 0,
  quantity_ordered_po INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type testTxRunner struct {
	db *gorm.DB
}

func (r *testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type reservationFixture struct {
	db     *gorm.DB
	svc    Service
	item   *models.Item
	header *models.MaterialsToOrder
	line   *models.MaterialsToOrderItem
}

func newReservationFixture(t *testing.T, stockQty, lineQty int) *reservationFixture {
	t.Helper()

	db := setupReservationsTestDB(t)
	runner := &testTxRunner{db: db}
	events := outbox.NewService(outbox.NewRepository(db), nil)

	inventorySvc, err := inventory.NewService(inventory.NewRepository(db), runner, events)
	require.NoError(t, err)
	lotsSvc, err := lots.NewService(lots.NewRepository(db))
	require.NoError(t, err)
	mtoSvc, err := mto.NewService(mto.NewRepository(db), runner, inventorySvc, lotsSvc, inventorySvc, events)
	require.NoError(t, err)
	svc, err := NewService(NewRepository(db), runner, inventorySvc, mtoSvc, events)
	require.NoError(t, err)

	item := &models.Item{
		ID:              uuid.New(),
		Name:            "euro hinge 110",
		Category:        enums.ItemCategoryHardware,
		Quantity:        stockQty,
		MeasurementUnit: "pcs",
	}
	require.NoError(t, db.Create(item).Error)

	lot := &models.ProjectLot{ID: uuid.New(), Code: uuid.NewString(), Name: "Kitchen 12"}
	require.NoError(t, db.Create(lot).Error)

	header := &models.MaterialsToOrder{
		ID:     uuid.New(),
		LotID:  lot.ID,
		Status: enums.MTOStatusDraft,
	}
	require.NoError(t, db.Create(header).Error)

	line := &models.MaterialsToOrderItem{
		ID:                 uuid.New(),
		MaterialsToOrderID: header.ID,
		ItemID:             item.ID,
		Quantity:           lineQty,
	}
	require.NoError(t, db.Create(line).Error)

	return &reservationFixture{db: db, svc: svc, item: item, header: header, line: line}
}

func (f *reservationFixture) itemQuantity(t *testing.T) int {
	t.Helper()
	var item models.Item
	require.NoError(t, f.db.First(&item, "id = ?", f.item.ID).Error)
	return item.Quantity
}

func (f *reservationFixture) headerStatus(t *testing.T) enums.MTOStatus {
	t.Helper()
	var header models.MaterialsToOrder
	require.NoError(t, f.db.First(&header, "id = ?", f.header.ID).Error)
	return header.Status
}

func reservationActor() *outbox.ActorRef {
	return &outbox.ActorRef{UserID: uuid.New(), Role: string(enums.MemberRoleEmployee)}
}

func TestCreateReservationDeductsFreeStock(t *testing.T) {
	f := newReservationFixture(t, 5, 10)

	row, err := f.svc.Create(context.Background(), reservationActor(), CreateInput{
		LineID:   f.line.ID,
		Quantity: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, row.Quantity)
	assert.Equal(t, 2, f.itemQuantity(t))
	assert.Equal(t, enums.MTOStatusPartiallyOrdered, f.headerStatus(t))
}

func TestIncreaseReservationWithinFreeStock(t *testing.T) {
	f := newReservationFixture(t, 5, 10)

	row, err := f.svc.Create(context.Background(), reservationActor(), CreateInput{LineID: f.line.ID, Quantity: 3})
	require.NoError(t, err)

	updated, err := f.svc.UpdateQuantity(context.Background(), reservationActor(), row.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Quantity)
	assert.Equal(t, 1, f.itemQuantity(t))
}

func TestIncreaseReservationBeyondFreeStockRejected(t *testing.T) {
	f := newReservationFixture(t, 5, 10)

	row, err := f.svc.Create(context.Background(), reservationActor(), CreateInput{LineID: f.line.ID, Quantity: 4})
	require.NoError(t, err)

	_, err = f.svc.UpdateQuantity(context.Background(), reservationActor(), row.ID, 7)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())

	// Failed increase must leave both the reservation and the item untouched.
	var current models.StockReservation
	require.NoError(t, f.db.First(&current, "id = ?", row.ID).Error)
	assert.Equal(t, 4, current.Quantity)
	assert.Equal(t, 1, f.itemQuantity(t))
}

func TestReservationCappedByLineQuantity(t *testing.T) {
	f := newReservationFixture(t, 10, 2)

	_, err := f.svc.Create(context.Background(), reservationActor(), CreateInput{LineID: f.line.ID, Quantity: 3})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
	assert.Equal(t, 10, f.itemQuantity(t))
}

func TestSecondReservationOnLineRejected(t *testing.T) {
	f := newReservationFixture(t, 10, 8)

	_, err := f.svc.Create(context.Background(), reservationActor(), CreateInput{LineID: f.line.ID, Quantity: 2})
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), reservationActor(), CreateInput{LineID: f.line.ID, Quantity: 1})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
}

func TestDeleteReservationReturnsStock(t *testing.T) {
	f := newReservationFixture(t, 5, 10)

	row, err := f.svc.Create(context.Background(), reservationActor(), CreateInput{LineID: f.line.ID, Quantity: 3})
	require.NoError(t, err)
	require.Equal(t, 2, f.itemQuantity(t))

	require.NoError(t, f.svc.Delete(context.Background(), reservationActor(), row.ID))
	assert.Equal(t, 5, f.itemQuantity(t))
	assert.Equal(t, enums.MTOStatusDraft, f.headerStatus(t))
}

func TestFullCoverageDrivesFullyOrdered(t *testing.T) {
	f := newReservationFixture(t, 5, 3)

	_, err := f.svc.Create(context.Background(), reservationActor(), CreateInput{LineID: f.line.ID, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, enums.MTOStatusFullyOrdered, f.headerStatus(t))
}

func TestReservationsBlockedOnClosedHeader(t *testing.T) {
	f := newReservationFixture(t, 5, 10)
	require.NoError(t, f.db.Model(&models.MaterialsToOrder{}).
		Where("id = ?", f.header.ID).
		Update("status", enums.MTOStatusClosed).Error)

	_, err := f.svc.Create(context.Background(), reservationActor(), CreateInput{LineID: f.line.ID, Quantity: 1})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
}

func TestReservationsBlockedAfterCompletion(t *testing.T) {
	f := newReservationFixture(t, 5, 10)
	require.NoError(t, f.db.Model(&models.MaterialsToOrder{}).
		Where("id = ?", f.header.ID).
		Update("used_material_completed", true).Error)

	_, err := f.svc.Create(context.Background(), reservationActor(), CreateInput{LineID: f.line.ID, Quantity: 1})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestListForMTO(t *testing.T) {
	f := newReservationFixture(t, 5, 10)

	row, err := f.svc.Create(context.Background(), reservationActor(), CreateInput{LineID: f.line.ID, Quantity: 2})
	require.NoError(t, err)

	rows, err := f.svc.ListForMTO(context.Background(), f.header.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, row.ID, rows[0].ID)
}
