package mto

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
	"github.com/oakline/cabinetry-backend/pkg/db/models"
	"github.com/oakline/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/oakline/cabinetry-backend/pkg/errors"
	"github.com/oakline/cabinetry-backend/pkg/outbox"
)

func setupMTOTestDB(t *testing.T) *gorm.DB {
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

type mtoFixture struct {
	db   *gorm.DB
	svc  Service
	lot  *models.ProjectLot
	item *models.Item
}

func newMTOFixture(t *testing.T, stockQty int) *mtoFixture {
	t.Helper()

	db := setupMTOTestDB(t)
	runner := &testTxRunner{db: db}
	events := outbox.NewService(outbox.NewRepository(db), nil)

	inventorySvc, err := inventory.NewService(inventory.NewRepository(db), runner, events)
	require.NoError(t, err)
	lotsSvc, err := lots.NewService(lots.NewRepository(db))
	require.NoError(t, err)
	svc, err := NewService(NewRepository(db), runner, inventorySvc, lotsSvc, inventorySvc, events)
	require.NoError(t, err)

	lot := &models.ProjectLot{ID: uuid.New(), Code: uuid.NewString(), Name: "Wardrobe 7"}
	require.NoError(t, db.Create(lot).Error)

	item := &models.Item{
		ID:              uuid.New(),
		Name:            "2mm edging tape white",
		Category:        enums.ItemCategoryEdgingTape,
		Quantity:        stockQty,
		MeasurementUnit: "m",
	}
	require.NoError(t, db.Create(item).Error)

	return &mtoFixture{db: db, svc: svc, lot: lot, item: item}
}

// seedHeader inserts a header plus one line directly, bypassing the service,
// so tests control quantity_used and reservations freely.
func (f *mtoFixture) seedHeader(t *testing.T, lineQty, used int) (*models.MaterialsToOrder, *models.MaterialsToOrderItem) {
	t.Helper()

	header := &models.MaterialsToOrder{
		ID:     uuid.New(),
		LotID:  f.lot.ID,
		Status: enums.MTOStatusDraft,
	}
	require.NoError(t, f.db.Create(header).Error)

	line := &models.MaterialsToOrderItem{
		ID:                 uuid.New(),
		MaterialsToOrderID: header.ID,
		ItemID:             f.item.ID,
		Quantity:           lineQty,
		QuantityUsed:       used,
	}
	require.NoError(t, f.db.Create(line).Error)
	return header, line
}

func (f *mtoFixture) itemQuantity(t *testing.T) int {
	t.Helper()
	var item models.Item
	require.NoError(t, f.db.First(&item, "id = ?", f.item.ID).Error)
	return item.Quantity
}

func mtoActor() *outbox.ActorRef {
	return &outbox.ActorRef{UserID: uuid.New(), Role: string(enums.MemberRoleManager)}
}

func TestCreatePersistsHeaderAndLines(t *testing.T) {
	f := newMTOFixture(t, 10)

	header, err := f.svc.Create(context.Background(), mtoActor(), CreateInput{
		LotID: f.lot.ID,
		Lines: []CreateLineInput{{ItemID: f.item.ID, Quantity: 6}},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.MTOStatusDraft, header.Status)
	require.Len(t, header.Items, 1)
	assert.Equal(t, 6, header.Items[0].Quantity)
	assert.Zero(t, header.Items[0].QuantityUsed)

	var events []models.OutboxEvent
	require.NoError(t, f.db.Where("aggregate_id = ? AND event_type = ?", header.ID, enums.EventMTOCreated).Find(&events).Error)
	assert.Len(t, events, 1)
}

func TestCreateValidation(t *testing.T) {
	f := newMTOFixture(t, 10)

	_, err := f.svc.Create(context.Background(), mtoActor(), CreateInput{LotID: f.lot.ID})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = f.svc.Create(context.Background(), mtoActor(), CreateInput{
		LotID: f.lot.ID,
		Lines: []CreateLineInput{
			{ItemID: f.item.ID, Quantity: 2},
			{ItemID: f.item.ID, Quantity: 3},
		},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = f.svc.Create(context.Background(), mtoActor(), CreateInput{
		LotID: uuid.New(),
		Lines: []CreateLineInput{{ItemID: f.item.ID, Quantity: 2}},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestUseMaterialsConsumesReservationFirst(t *testing.T) {
	f := newMTOFixture(t, 7)
	header, line := f.seedHeader(t, 5, 0)

	// Three units already reserved, meaning they were deducted from free stock.
	require.NoError(t, f.db.Create(&models.StockReservation{
		ID:                     uuid.New(),
		ItemID:                 f.item.ID,
		MaterialsToOrderItemID: line.ID,
		Quantity:               3,
	}).Error)

	updated, err := f.svc.UseMaterials(context.Background(), mtoActor(), header.ID, []LineUsage{
		{LineID: line.ID, Quantity: 4},
	})
	require.NoError(t, err)
	require.Len(t, updated.Items, 1)
	assert.Equal(t, 4, updated.Items[0].QuantityUsed)

	// 3 came out of the reservation, only 1 out of free stock.
	assert.Equal(t, 6, f.itemQuantity(t))

	var count int64
	require.NoError(t, f.db.Model(&models.StockReservation{}).
		Where("materials_to_order_item_id = ?", line.ID).Count(&count).Error)
	assert.Zero(t, count, "fully consumed reservation should be removed")
}

func TestUseMaterialsRejectsOveruse(t *testing.T) {
	f := newMTOFixture(t, 10)
	header, line := f.seedHeader(t, 3, 2)

	_, err := f.svc.UseMaterials(context.Background(), mtoActor(), header.ID, []LineUsage{
		{LineID: line.ID, Quantity: 2},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
}

func TestUseMaterialsBlockedAfterCompletion(t *testing.T) {
	f := newMTOFixture(t, 10)
	header, line := f.seedHeader(t, 3, 0)
	require.NoError(t, f.db.Model(&models.MaterialsToOrder{}).
		Where("id = ?", header.ID).
		Update("used_material_completed", true).Error)

	_, err := f.svc.UseMaterials(context.Background(), mtoActor(), header.ID, []LineUsage{
		{LineID: line.ID, Quantity: 1},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestCompleteUsedMaterialConsumesRemaining(t *testing.T) {
	f := newMTOFixture(t, 10)
	header, _ := f.seedHeader(t, 3, 1)

	updated, err := f.svc.CompleteUsedMaterial(context.Background(), mtoActor(), header.ID)
	require.NoError(t, err)
	assert.True(t, updated.UsedMaterialCompleted)
	require.Len(t, updated.Items, 1)
	assert.Equal(t, 3, updated.Items[0].QuantityUsed)
	assert.Equal(t, 8, f.itemQuantity(t))

	// The flag is one-way: completing twice is a state conflict.
	_, err = f.svc.CompleteUsedMaterial(context.Background(), mtoActor(), header.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
	assert.Equal(t, 8, f.itemQuantity(t), "second completion must not consume stock again")
}

func TestCloseRequiresCompletion(t *testing.T) {
	f := newMTOFixture(t, 10)
	header, _ := f.seedHeader(t, 2, 0)

	_, err := f.svc.Close(context.Background(), mtoActor(), header.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())

	_, err = f.svc.CompleteUsedMaterial(context.Background(), mtoActor(), header.ID)
	require.NoError(t, err)

	closed, err := f.svc.Close(context.Background(), mtoActor(), header.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.MTOStatusClosed, closed.Status)

	// Closing an already closed header is a no-op.
	again, err := f.svc.Close(context.Background(), mtoActor(), header.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.MTOStatusClosed, again.Status)
}

func TestRecomputeStatusIsIdempotent(t *testing.T) {
	f := newMTOFixture(t, 10)
	header, line := f.seedHeader(t, 4, 0)
	require.NoError(t, f.db.Model(&models.MaterialsToOrderItem{}).
		Where("id = ?", line.ID).
		Update("quantity_ordered_po", 2).Error)

	for i := 0; i < 2; i++ {
		require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
			return f.svc.RecomputeStatusTx(context.Background(), tx, header.ID)
		}))
	}

	var current models.MaterialsToOrder
	require.NoError(t, f.db.First(&current, "id = ?", header.ID).Error)
	assert.Equal(t, enums.MTOStatusPartiallyOrdered, current.Status)

	var events int64
	require.NoError(t, f.db.Model(&models.OutboxEvent{}).
		Where("aggregate_id = ? AND event_type = ?", header.ID, enums.EventMTOStatusChanged).
		Count(&events).Error)
	assert.EqualValues(t, 1, events, "repeat recompute with no change must not emit")
}

func TestDeleteOnlyDraft(t *testing.T) {
	f := newMTOFixture(t, 10)
	header, _ := f.seedHeader(t, 2, 0)
	require.NoError(t, f.db.Model(&models.MaterialsToOrder{}).
		Where("id = ?", header.ID).
		Update("status", enums.MTOStatusPartiallyOrdered).Error)

	err := f.svc.Delete(context.Background(), header.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())

	draft, _ := f.seedHeader(t, 2, 0)
	require.NoError(t, f.svc.Delete(context.Background(), draft.ID))

	_, err = f.svc.Get(context.Background(), draft.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
