package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oakline/cabinetry-backend/pkg/db/models"
	"github.com/oakline/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/oakline/cabinetry-backend/pkg/errors"
	"github.com/oakline/cabinetry-backend/pkg/outbox"
	"github.com/oakline/cabinetry-backend/pkg/pagination"
)

func setupInventoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	items := `
CREATE TABLE IF NOT EXISTS items (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  category TEXT NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 0,
  measurement_unit TEXT NOT NULL,
  is_deleted INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	transactions := `
CREATE TABLE IF NOT EXISTS stock_transactions (
  id TEXT PRIMARY KEY,
  item_id TEXT NOT NULL,
  type TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  purchase_order_id TEXT,
  materials_to_order_id TEXT,
  note TEXT,
  created_at DATETIME
);`
	reservations := `
CREATE TABLE IF NOT EXISTS stock_reservations (
  id TEXT PRIMARY KEY,
  item_id TEXT NOT NULL,
  materials_to_order_item_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	outboxEvents := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	require.NoError(t, db.Exec(items).Error)
	require.NoError(t, db.Exec(transactions).Error)
	require.NoError(t, db.Exec(reservations).Error)
	require.NoError(t, db.Exec(outboxEvents).Error)
	return db
}

type testTxRunner struct {
	db *gorm.DB
}

func (r *testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newInventoryService(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	svc, err := NewService(NewRepository(db), &testTxRunner{db: db}, outbox.NewService(outbox.NewRepository(db), nil))
	require.NoError(t, err)
	return svc
}

func seedItem(t *testing.T, db *gorm.DB, quantity int) *models.Item {
	t.Helper()

	item := &models.Item{
		ID:              uuid.New(),
		Name:            "18mm birch plywood",
		Category:        enums.ItemCategorySheet,
		Quantity:        quantity,
		MeasurementUnit: "sheet",
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

func testActor() *outbox.ActorRef {
	return &outbox.ActorRef{UserID: uuid.New(), Role: string(enums.MemberRoleManager)}
}

func TestAdjustStockAddsQuantityAndLedgerRow(t *testing.T) {
	db := setupInventoryTestDB(t)
	svc := newInventoryService(t, db)
	item := seedItem(t, db, 10)

	updated, err := svc.AdjustStock(context.Background(), testActor(), item.ID, AdjustStockInput{
		Type:     enums.StockTransactionAdded,
		Quantity: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, 15, updated.Quantity)

	var rows []models.StockTransaction
	require.NoError(t, db.Where("item_id = ?", item.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.StockTransactionAdded, rows[0].Type)
	assert.Equal(t, 5, rows[0].Quantity)

	var events []models.OutboxEvent
	require.NoError(t, db.Where("aggregate_id = ?", item.ID).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventStockAdjusted, events[0].EventType)
}

func TestAdjustStockRejectsOverdraw(t *testing.T) {
	db := setupInventoryTestDB(t)
	svc := newInventoryService(t, db)
	item := seedItem(t, db, 3)

	_, err := svc.AdjustStock(context.Background(), testActor(), item.ID, AdjustStockInput{
		Type:     enums.StockTransactionUsed,
		Quantity: 5,
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())

	var current models.Item
	require.NoError(t, db.First(&current, "id = ?", item.ID).Error)
	assert.Equal(t, 3, current.Quantity, "failed adjustment must not touch quantity")

	var count int64
	require.NoError(t, db.Model(&models.StockTransaction{}).Where("item_id = ?", item.ID).Count(&count).Error)
	assert.Zero(t, count, "failed adjustment must not write ledger rows")
}

func TestAdjustStockDrawsDownToZero(t *testing.T) {
	db := setupInventoryTestDB(t)
	svc := newInventoryService(t, db)
	item := seedItem(t, db, 4)

	updated, err := svc.AdjustStock(context.Background(), testActor(), item.ID, AdjustStockInput{
		Type:     enums.StockTransactionWasted,
		Quantity: 4,
	})
	require.NoError(t, err)
	assert.Zero(t, updated.Quantity)
}

func TestAdjustStockValidatesInput(t *testing.T) {
	db := setupInventoryTestDB(t)
	svc := newInventoryService(t, db)
	item := seedItem(t, db, 10)

	_, err := svc.AdjustStock(context.Background(), testActor(), item.ID, AdjustStockInput{
		Type:     enums.StockTransactionType("shrunk"),
		Quantity: 1,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = svc.AdjustStock(context.Background(), testActor(), item.ID, AdjustStockInput{
		Type:     enums.StockTransactionAdded,
		Quantity: 0,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestApplyDeltaTxMissingItem(t *testing.T) {
	db := setupInventoryTestDB(t)
	svc := newInventoryService(t, db)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.ApplyDeltaTx(context.Background(), tx, StockChange{
			ItemID: uuid.New(),
			Delta:  1,
			Type:   enums.StockTransactionAdded,
		})
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestCreateItemValidation(t *testing.T) {
	db := setupInventoryTestDB(t)
	svc := newInventoryService(t, db)

	_, err := svc.CreateItem(context.Background(), CreateItemInput{
		Name:            "  ",
		Category:        enums.ItemCategorySheet,
		MeasurementUnit: "sheet",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = svc.CreateItem(context.Background(), CreateItemInput{
		Name:            "soft close hinge",
		Category:        enums.ItemCategory("lumber"),
		MeasurementUnit: "pcs",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = svc.CreateItem(context.Background(), CreateItemInput{
		Name:            "soft close hinge",
		Category:        enums.ItemCategoryHardware,
		Quantity:        -1,
		MeasurementUnit: "pcs",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestDeleteItemHidesFromLookups(t *testing.T) {
	db := setupInventoryTestDB(t)
	svc := newInventoryService(t, db)
	item := seedItem(t, db, 2)

	require.NoError(t, svc.DeleteItem(context.Background(), item.ID))

	_, err := svc.GetItem(context.Background(), item.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestListItemsPagination(t *testing.T) {
	db := setupInventoryTestDB(t)
	svc := newInventoryService(t, db)
	for i := 0; i < 3; i++ {
		seedItem(t, db, i)
	}

	page, err := svc.ListItems(context.Background(), ListItemsInput{
		Pagination: pagination.Params{Limit: 2},
	})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	require.NotNil(t, page.NextCursor)

	next, err := svc.ListItems(context.Background(), ListItemsInput{
		Pagination: pagination.Params{Limit: 2, Cursor: *page.NextCursor},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, next.Items)
}

func TestListTransactionsRequiresItem(t *testing.T) {
	db := setupInventoryTestDB(t)
	svc := newInventoryService(t, db)

	_, err := svc.ListTransactions(context.Background(), uuid.New(), pagination.Params{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
