package buyers

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/kiosko-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/kiosko-backend/pkg/errors"
	"github.com/angelmondragon/kiosko-backend/pkg/logger"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r *gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newBuyersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:buyers_%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	buyersTable := `
CREATE TABLE IF NOT EXISTS buyers (
  id TEXT PRIMARY KEY,
  external_ref TEXT NOT NULL UNIQUE,
  display_name TEXT NOT NULL,
  phone TEXT NOT NULL,
  address TEXT,
  porch TEXT,
  floor TEXT,
  apartment TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	loyaltyAccounts := `
CREATE TABLE IF NOT EXISTS loyalty_accounts (
  buyer_id TEXT PRIMARY KEY,
  point_balance INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME
);`
	require.NoError(t, gdb.Exec(buyersTable).Error)
	require.NoError(t, gdb.Exec(loyaltyAccounts).Error)
	return gdb
}

func newBuyersService(t *testing.T, gdb *gorm.DB) Service {
	t.Helper()

	svc, err := NewService(Deps{
		Tx:     &gormTxRunner{db: gdb},
		Repo:   NewRepository(gdb),
		Logger: logger.New(logger.Options{ServiceName: "buyers-test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc
}

func TestUpsertCreatesBuyerAndLoyaltyAccount(t *testing.T) {
	gdb := newBuyersTestDB(t)
	svc := newBuyersService(t, gdb)

	address := "Lenina 1"
	buyer, err := svc.Upsert(context.Background(), "tg-100", UpsertInput{
		DisplayName: "Ivan",
		Phone:       "+70000000002",
		Address:     &address,
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, buyer.ID)
	assert.Equal(t, "tg-100", buyer.ExternalRef)

	var account models.LoyaltyAccount
	require.NoError(t, gdb.First(&account, "buyer_id = ?", buyer.ID).Error)
	assert.Zero(t, account.PointBalance)
}

func TestUpsertUpdatesProfileKeepsBalance(t *testing.T) {
	gdb := newBuyersTestDB(t)
	svc := newBuyersService(t, gdb)

	buyer, err := svc.Upsert(context.Background(), "tg-100", UpsertInput{
		DisplayName: "Ivan",
		Phone:       "+70000000002",
	})
	require.NoError(t, err)

	// An earned balance must survive subsequent profile pushes.
	require.NoError(t, gdb.Model(&models.LoyaltyAccount{}).
		Where("buyer_id = ?", buyer.ID).
		UpdateColumn("point_balance", 500).Error)

	address := "Arbat 20"
	updated, err := svc.Upsert(context.Background(), "tg-100", UpsertInput{
		DisplayName: "Ivan Petrov",
		Phone:       "+70000000003",
		Address:     &address,
	})
	require.NoError(t, err)
	assert.Equal(t, buyer.ID, updated.ID)
	assert.Equal(t, "Ivan Petrov", updated.DisplayName)
	require.NotNil(t, updated.Address)
	assert.Equal(t, "Arbat 20", *updated.Address)

	var account models.LoyaltyAccount
	require.NoError(t, gdb.First(&account, "buyer_id = ?", buyer.ID).Error)
	assert.Equal(t, int64(500), account.PointBalance)

	var count int64
	require.NoError(t, gdb.Model(&models.Buyer{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpsertClearsDroppedOptionalFields(t *testing.T) {
	gdb := newBuyersTestDB(t)
	svc := newBuyersService(t, gdb)

	address := "Lenina 1"
	apartment := "12"
	_, err := svc.Upsert(context.Background(), "tg-100", UpsertInput{
		DisplayName: "Ivan",
		Phone:       "+70000000002",
		Address:     &address,
		Apartment:   &apartment,
	})
	require.NoError(t, err)

	updated, err := svc.Upsert(context.Background(), "tg-100", UpsertInput{
		DisplayName: "Ivan",
		Phone:       "+70000000002",
	})
	require.NoError(t, err)
	assert.Nil(t, updated.Address)
	assert.Nil(t, updated.Apartment)
}

func TestUpsertValidation(t *testing.T) {
	svc := newBuyersService(t, newBuyersTestDB(t))

	cases := []struct {
		name        string
		externalRef string
		input       UpsertInput
	}{
		{"missing external ref", "", UpsertInput{DisplayName: "Ivan", Phone: "+7"}},
		{"missing display name", "tg-100", UpsertInput{Phone: "+7"}},
		{"missing phone", "tg-100", UpsertInput{DisplayName: "Ivan"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Upsert(context.Background(), tc.externalRef, tc.input)
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
		})
	}
}

func TestFindByIDPreloadsLoyaltyAccount(t *testing.T) {
	gdb := newBuyersTestDB(t)
	svc := newBuyersService(t, gdb)

	buyer, err := svc.Upsert(context.Background(), "tg-100", UpsertInput{
		DisplayName: "Ivan",
		Phone:       "+70000000002",
	})
	require.NoError(t, err)

	loaded, err := svc.FindByID(context.Background(), buyer.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.LoyaltyAccount)
	assert.Zero(t, loaded.LoyaltyAccount.PointBalance)
}

func TestFindByIDNotFound(t *testing.T) {
	svc := newBuyersService(t, newBuyersTestDB(t))

	_, err := svc.FindByID(context.Background(), uuid.New())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}
