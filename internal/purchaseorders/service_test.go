package purchaseorders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oakline/cabinetry-backend/internal/inventory"
	"github.com/oakline/cabinetry-backend/internal/lots"
	"github.com/oakline/cabinetry-backend/internal/mto"
	"github.com/oakline/cabinetry-backend/internal/suppliers"
	"github.com/oakline/cabinetry-backend/pkg/db/models"
	"github.com/oakline/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/oakline/cabinetry-backend/pkg/errors"
	"github.com/oakline/cabinetry-backend/pkg/outbox"
)

func setupPOTestDB(t *testing.T) *gorm.DB {
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
		`CREATE TABLE IF NOT EXISTS suppliers (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT,
  phone TEXT,
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
		`CREATE TABLE IF NOT EXISTS purchase_orders (
  id TEXT PRIMARY KEY,
  reference TEXT NOT NULL,
  supplier_id TEXT NOT NULL,
  materials_to_order_id TEXT,
  status TEXT NOT NULL DEFAULT 'placed',
  is_deleted INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS purchase_order_items (
  id TEXT PRIMARY KEY,
  purchase_order_id TEXT NOT NULL,
  item_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  quantity_received INTEGER NOT NULL DEFAULT 0,
  unit_price NUMERIC NOT NULL,
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

type poFixture struct {
	db       *gorm.DB
	svc      Service
	supplier *models.Supplier
	lot      *models.ProjectLot
	item     *models.Item
}

func newPOFixture(t *testing.T, stockQty int) *poFixture {
	t.Helper()

	db := setupPOTestDB(t)
	runner := &testTxRunner{db: db}
	events := outbox.NewService(outbox.NewRepository(db), nil)

	inventorySvc, err := inventory.NewService(inventory.NewRepository(db), runner, events)
	require.NoError(t, err)
	suppliersSvc, err := suppliers.NewService(suppliers.NewRepository(db))
	require.NoError(t, err)
	lotsSvc, err := lots.NewService(lots.NewRepository(db))
	require.NoError(t, err)
	mtoRepo := mto.NewRepository(db)
	mtoSvc, err := mto.NewService(mtoRepo, runner, inventorySvc, lotsSvc, inventorySvc, events)
	require.NoError(t, err)
	svc, err := NewService(NewRepository(db), runner, inventorySvc, suppliersSvc, inventorySvc, mtoSvc, mtoRepo, events)
	require.NoError(t, err)

	supplier := &models.Supplier{ID: uuid.New(), Name: "Nordic Panel Co"}
	require.NoError(t, db.Create(supplier).Error)

	lot := &models.ProjectLot{ID: uuid.New(), Code: uuid.NewString(), Name: "Office 3"}
	require.NoError(t, db.Create(lot).Error)

	item := &models.Item{
		ID:              uuid.New(),
		Name:            "16mm MDF",
		Category:        enums.ItemCategorySheet,
		Quantity:        stockQty,
		MeasurementUnit: "sheet",
	}
	require.NoError(t, db.Create(item).Error)

	return &poFixture{db: db, svc: svc, supplier: supplier, lot: lot, item: item}
}

func (f *poFixture) seedMTO(t *testing.T, lineQty int) (*models.MaterialsToOrder, *models.MaterialsToOrderItem) {
	t.Helper()

	header := &models.MaterialsToOrder{ID: uuid.New(), LotID: f.lot.ID, Status: enums.MTOStatusDraft}
	require.NoError(t, f.db.Create(header).Error)
	line := &models.MaterialsToOrderItem{
		ID:                 uuid.New(),
		MaterialsToOrderID: header.ID,
		ItemID:             f.item.ID,
		Quantity:           lineQty,
	}
	require.NoError(t, f.db.Create(line).Error)
	return header, line
}

func (f *poFixture) itemQuantity(t *testing.T) int {
	t.Helper()
	var item models.Item
	require.NoError(t, f.db.First(&item, "id = ?", f.item.ID).Error)
	return item.Quantity
}

func poActor() *outbox.ActorRef {
	return &outbox.ActorRef{UserID: uuid.New(), Role: string(enums.MemberRoleAdmin)}
}

func TestCreatePurchaseOrder(t *testing.T) {
	f := newPOFixture(t, 0)

	order, err := f.svc.Create(context.Background(), poActor(), CreateInput{
		Reference:  "PO-" + uuid.NewString(),
		SupplierID: f.supplier.ID,
		Lines: []CreateLineInput{
			{ItemID: f.item.ID, Quantity: 5, UnitPrice: decimal.RequireFromString("12.50")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.POStatusPlaced, order.Status)
	require.Len(t, order.Items, 1)
	assert.Zero(t, order.Items[0].QuantityReceived)
}

func TestCreateLinkedToMTOBumpsCoverage(t *testing.T) {
	f := newPOFixture(t, 0)
	header, line := f.seedMTO(t, 8)

	_, err := f.svc.Create(context.Background(), poActor(), CreateInput{
		Reference:          "PO-" + uuid.NewString(),
		SupplierID:         f.supplier.ID,
		MaterialsToOrderID: &header.ID,
		Lines: []CreateLineInput{
			{ItemID: f.item.ID, Quantity: 5, UnitPrice: decimal.RequireFromString("3.20")},
		},
	})
	require.NoError(t, err)

	var current models.MaterialsToOrderItem
	require.NoError(t, f.db.First(&current, "id = ?", line.ID).Error)
	assert.Equal(t, 5, current.QuantityOrderedPO)

	var mtoRow models.MaterialsToOrder
	require.NoError(t, f.db.First(&mtoRow, "id = ?", header.ID).Error)
	assert.Equal(t, enums.MTOStatusPartiallyOrdered, mtoRow.Status)
}

func TestCreateRejectsDuplicateReference(t *testing.T) {
	f := newPOFixture(t, 0)
	reference := "PO-" + uuid.NewString()

	_, err := f.svc.Create(context.Background(), poActor(), CreateInput{
		Reference:  reference,
		SupplierID: f.supplier.ID,
		Lines:      []CreateLineInput{{ItemID: f.item.ID, Quantity: 1, UnitPrice: decimal.Zero}},
	})
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), poActor(), CreateInput{
		Reference:  reference,
		SupplierID: f.supplier.ID,
		Lines:      []CreateLineInput{{ItemID: f.item.ID, Quantity: 1, UnitPrice: decimal.Zero}},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
}

func TestReceivePartialThenFull(t *testing.T) {
	f := newPOFixture(t, 0)

	order, err := f.svc.Create(context.Background(), poActor(), CreateInput{
		Reference:  "PO-" + uuid.NewString(),
		SupplierID: f.supplier.ID,
		Lines:      []CreateLineInput{{ItemID: f.item.ID, Quantity: 5, UnitPrice: decimal.RequireFromString("9.99")}},
	})
	require.NoError(t, err)
	lineID := order.Items[0].ID

	partial, err := f.svc.Receive(context.Background(), poActor(), order.ID, []ReceiptLine{{LineID: lineID, Quantity: 2}})
	require.NoError(t, err)
	assert.Equal(t, enums.POStatusPartiallyReceived, partial.Status)
	assert.Equal(t, 2, f.itemQuantity(t))

	full, err := f.svc.Receive(context.Background(), poActor(), order.ID, []ReceiptLine{{LineID: lineID, Quantity: 3}})
	require.NoError(t, err)
	assert.Equal(t, enums.POStatusFullyReceived, full.Status)
	assert.Equal(t, 5, f.itemQuantity(t))

	_, err = f.svc.Receive(context.Background(), poActor(), order.ID, []ReceiptLine{{LineID: lineID, Quantity: 1}})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestReceiveRejectsOverReceipt(t *testing.T) {
	f := newPOFixture(t, 0)

	order, err := f.svc.Create(context.Background(), poActor(), CreateInput{
		Reference:  "PO-" + uuid.NewString(),
		SupplierID: f.supplier.ID,
		Lines:      []CreateLineInput{{ItemID: f.item.ID, Quantity: 5, UnitPrice: decimal.Zero}},
	})
	require.NoError(t, err)

	_, err = f.svc.Receive(context.Background(), poActor(), order.ID, []ReceiptLine{
		{LineID: order.Items[0].ID, Quantity: 6},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
	assert.Zero(t, f.itemQuantity(t), "rejected receipt must not add stock")
}

func TestCancelReturnsUnreceivedCoverage(t *testing.T) {
	f := newPOFixture(t, 0)
	header, line := f.seedMTO(t, 8)

	order, err := f.svc.Create(context.Background(), poActor(), CreateInput{
		Reference:          "PO-" + uuid.NewString(),
		SupplierID:         f.supplier.ID,
		MaterialsToOrderID: &header.ID,
		Lines:              []CreateLineInput{{ItemID: f.item.ID, Quantity: 5, UnitPrice: decimal.Zero}},
	})
	require.NoError(t, err)

	_, err = f.svc.Receive(context.Background(), poActor(), order.ID, []ReceiptLine{
		{LineID: order.Items[0].ID, Quantity: 2},
	})
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(context.Background(), poActor(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.POStatusCancelled, cancelled.Status)

	// Only the 3 unreceived units leave MTO coverage.
	var current models.MaterialsToOrderItem
	require.NoError(t, f.db.First(&current, "id = ?", line.ID).Error)
	assert.Equal(t, 2, current.QuantityOrderedPO)

	_, err = f.svc.Cancel(context.Background(), poActor(), order.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestCancelFullyReceivedRejected(t *testing.T) {
	f := newPOFixture(t, 0)

	order, err := f.svc.Create(context.Background(), poActor(), CreateInput{
		Reference:  "PO-" + uuid.NewString(),
		SupplierID: f.supplier.ID,
		Lines:      []CreateLineInput{{ItemID: f.item.ID, Quantity: 2, UnitPrice: decimal.Zero}},
	})
	require.NoError(t, err)

	_, err = f.svc.Receive(context.Background(), poActor(), order.ID, []ReceiptLine{
		{LineID: order.Items[0].ID, Quantity: 2},
	})
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), poActor(), order.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestCreateRejectsClosedMTO(t *testing.T) {
	f := newPOFixture(t, 0)
	header, _ := f.seedMTO(t, 4)
	require.NoError(t, f.db.Model(&models.MaterialsToOrder{}).
		Where("id = ?", header.ID).
		Update("status", enums.MTOStatusClosed).Error)

	_, err := f.svc.Create(context.Background(), poActor(), CreateInput{
		Reference:          "PO-" + uuid.NewString(),
		SupplierID:         f.supplier.ID,
		MaterialsToOrderID: &header.ID,
		Lines:              []CreateLineInput{{ItemID: f.item.ID, Quantity: 1, UnitPrice: decimal.Zero}},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}
