package suppliers

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgerrors "github.com/oakline/cabinetry-backend/pkg/errors"
	"github.com/oakline/cabinetry-backend/pkg/pagination"
)

func setupSuppliersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS suppliers (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT,
  phone TEXT,
  is_deleted INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func newSuppliersService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	return svc
}

func strPtr(s string) *string { return &s }

func TestCreateTrimsAndValidatesName(t *testing.T) {
	db := setupSuppliersTestDB(t)
	svc := newSuppliersService(t, db)

	created, err := svc.Create(context.Background(), CreateInput{
		Name:  "  Baltic Veneer OU ",
		Email: strPtr("sales@balticveneer.example"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Baltic Veneer OU", created.Name)

	_, err = svc.Create(context.Background(), CreateInput{Name: "   "})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestUpdatePartialFields(t *testing.T) {
	db := setupSuppliersTestDB(t)
	svc := newSuppliersService(t, db)

	created, err := svc.Create(context.Background(), CreateInput{Name: "Hettich Dealer"})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), created.ID, UpdateInput{
		Phone: strPtr("+372 5555 0100"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Hettich Dealer", updated.Name)
	require.NotNil(t, updated.Phone)
	assert.Equal(t, "+372 5555 0100", *updated.Phone)

	_, err = svc.Update(context.Background(), created.ID, UpdateInput{Name: strPtr(" ")})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestDeleteHidesSupplier(t *testing.T) {
	db := setupSuppliersTestDB(t)
	svc := newSuppliersService(t, db)

	created, err := svc.Create(context.Background(), CreateInput{Name: "Closing Down OU"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID))

	_, err = svc.Get(context.Background(), created.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	err = svc.Delete(context.Background(), created.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestGetUnknownSupplier(t *testing.T) {
	db := setupSuppliersTestDB(t)
	svc := newSuppliersService(t, db)

	_, err := svc.Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestListPagination(t *testing.T) {
	db := setupSuppliersTestDB(t)
	svc := newSuppliersService(t, db)

	for _, name := range []string{"Alpha Boards", "Beta Hinges", "Gamma Edging"} {
		_, err := svc.Create(context.Background(), CreateInput{Name: name})
		require.NoError(t, err)
	}

	page, err := svc.List(context.Background(), pagination.Params{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Suppliers, 2)
	require.NotNil(t, page.NextCursor)

	rest, err := svc.List(context.Background(), pagination.Params{Limit: 2, Cursor: *page.NextCursor})
	require.NoError(t, err)
	assert.NotEmpty(t, rest.Suppliers)
}
