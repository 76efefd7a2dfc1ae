package ledger

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/kiosko-backend/pkg/db/models"
	"github.com/angelmondragon/kiosko-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kiosko-backend/pkg/errors"
)

func newLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:ledger_%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	stockPositions := `
CREATE TABLE IF NOT EXISTS stock_positions (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  price_cents INTEGER NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 0,
  weight_grams INTEGER NOT NULL DEFAULT 0,
  length_mm INTEGER NOT NULL DEFAULT 0,
  width_mm INTEGER NOT NULL DEFAULT 0,
  height_mm INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	loyaltyAccounts := `
CREATE TABLE IF NOT EXISTS loyalty_accounts (
  buyer_id TEXT PRIMARY KEY,
  point_balance INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME
);`
	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  buyer_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending_payment',
  fulfillment_method TEXT NOT NULL,
  delivery_address TEXT,
  delivery_porch TEXT,
  delivery_floor TEXT,
  delivery_apartment TEXT,
  used_points INTEGER NOT NULL DEFAULT 0,
  goods_total_cents INTEGER NOT NULL,
  delivery_cost_cents INTEGER NOT NULL DEFAULT 0,
  delivery_claim_id TEXT,
  payment_metadata TEXT,
  cancel_reason TEXT,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  paid_at DATETIME,
  finished_at DATETIME
);`
	orderItems := `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  stock_position_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price_cents INTEGER NOT NULL
);`
	ledgerEvents := `
CREATE TABLE IF NOT EXISTS ledger_events (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  buyer_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  points_delta INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  UNIQUE (order_id, event_type)
);`
	require.NoError(t, gdb.Exec(stockPositions).Error)
	require.NoError(t, gdb.Exec(loyaltyAccounts).Error)
	require.NoError(t, gdb.Exec(orders).Error)
	require.NoError(t, gdb.Exec(orderItems).Error)
	require.NoError(t, gdb.Exec(ledgerEvents).Error)
	return gdb
}

func seedPosition(t *testing.T, gdb *gorm.DB, title string, priceCents int64, quantity int) models.StockPosition {
	t.Helper()
	pos := models.StockPosition{ID: uuid.New(), Title: title, PriceCents: priceCents, Quantity: quantity}
	require.NoError(t, gdb.Create(&pos).Error)
	return pos
}

func seedAccount(t *testing.T, gdb *gorm.DB, buyerID uuid.UUID, balance int64) {
	t.Helper()
	require.NoError(t, gdb.Create(&models.LoyaltyAccount{BuyerID: buyerID, PointBalance: balance}).Error)
}

func TestReserveAndReleaseRoundTrip(t *testing.T) {
	t.Parallel()

	gdb := newLedgerTestDB(t)
	svc, err := NewService(NewRepository(gdb))
	require.NoError(t, err)
	ctx := context.Background()

	buyerID := uuid.New()
	seedAccount(t, gdb, buyerID, 500)
	coffee := seedPosition(t, gdb, "coffee beans 1kg", 2500, 10)
	mug := seedPosition(t, gdb, "stoneware mug", 1200, 4)

	var reservation *Reservation
	order := models.Order{
		ID:                uuid.New(),
		BuyerID:           buyerID,
		Status:            enums.OrderStatusPendingPayment,
		FulfillmentMethod: enums.FulfillmentPickup,
	}

	err = gdb.Transaction(func(tx *gorm.DB) error {
		res, rerr := svc.Reserve(ctx, tx, ReserveInput{
			BuyerID: buyerID,
			Items: []ItemRequest{
				{PositionID: coffee.ID, Quantity: 2},
				{PositionID: mug.ID, Quantity: 1},
			},
			RequestedPoints: 10_000,
		})
		if rerr != nil {
			return rerr
		}
		reservation = res

		order.GoodsTotalCents = res.GoodsTotalCents
		order.UsedPoints = res.AppliedPoints
		if cerr := tx.Create(&order).Error; cerr != nil {
			return cerr
		}
		for _, line := range res.Lines {
			item := models.OrderItem{
				ID:              uuid.New(),
				OrderID:         order.ID,
				StockPositionID: line.Position.ID,
				Quantity:        line.Quantity,
				UnitPriceCents:  line.Position.PriceCents,
			}
			if cerr := tx.Create(&item).Error; cerr != nil {
				return cerr
			}
		}
		return svc.RecordReserved(ctx, tx, &order)
	})
	require.NoError(t, err)

	require.NotNil(t, reservation)
	assert.Equal(t, int64(6200), reservation.GoodsTotalCents)
	// Requested more points than the balance holds, so the balance caps it.
	assert.Equal(t, int64(500), reservation.AppliedPoints)

	var gotCoffee, gotMug models.StockPosition
	require.NoError(t, gdb.First(&gotCoffee, "id = ?", coffee.ID).Error)
	require.NoError(t, gdb.First(&gotMug, "id = ?", mug.ID).Error)
	assert.Equal(t, 8, gotCoffee.Quantity)
	assert.Equal(t, 3, gotMug.Quantity)

	var account models.LoyaltyAccount
	require.NoError(t, gdb.First(&account, "buyer_id = ?", buyerID).Error)
	assert.Equal(t, int64(0), account.PointBalance)

	var items []models.OrderItem
	require.NoError(t, gdb.Where("order_id = ?", order.ID).Find(&items).Error)
	require.Len(t, items, 2)

	err = gdb.Transaction(func(tx *gorm.DB) error {
		return svc.Release(ctx, tx, &order, items)
	})
	require.NoError(t, err)

	require.NoError(t, gdb.First(&gotCoffee, "id = ?", coffee.ID).Error)
	require.NoError(t, gdb.First(&gotMug, "id = ?", mug.ID).Error)
	assert.Equal(t, 10, gotCoffee.Quantity)
	assert.Equal(t, 4, gotMug.Quantity)

	require.NoError(t, gdb.First(&account, "buyer_id = ?", buyerID).Error)
	assert.Equal(t, int64(500), account.PointBalance)

	events, err := svc.History(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, enums.LedgerEventTypeReserve, events[0].EventType)
	assert.Equal(t, int64(-500), events[0].PointsDelta)
	assert.Equal(t, enums.LedgerEventTypeRelease, events[1].EventType)
	assert.Equal(t, int64(500), events[1].PointsDelta)
}

func TestReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	gdb := newLedgerTestDB(t)
	svc, err := NewService(NewRepository(gdb))
	require.NoError(t, err)
	ctx := context.Background()

	buyerID := uuid.New()
	seedAccount(t, gdb, buyerID, 100)
	pos := seedPosition(t, gdb, "tea sampler", 900, 5)

	order := models.Order{
		ID:                uuid.New(),
		BuyerID:           buyerID,
		Status:            enums.OrderStatusPendingPayment,
		FulfillmentMethod: enums.FulfillmentPickup,
		GoodsTotalCents:   1800,
		UsedPoints:        100,
	}
	err = gdb.Transaction(func(tx *gorm.DB) error {
		if _, rerr := svc.Reserve(ctx, tx, ReserveInput{
			BuyerID:         buyerID,
			Items:           []ItemRequest{{PositionID: pos.ID, Quantity: 2}},
			RequestedPoints: 100,
		}); rerr != nil {
			return rerr
		}
		return tx.Create(&order).Error
	})
	require.NoError(t, err)

	items := []models.OrderItem{{ID: uuid.New(), OrderID: order.ID, StockPositionID: pos.ID, Quantity: 2, UnitPriceCents: 900}}
	for i := 0; i < 2; i++ {
		err = gdb.Transaction(func(tx *gorm.DB) error {
			return svc.Release(ctx, tx, &order, items)
		})
		require.NoError(t, err)
	}

	var got models.StockPosition
	require.NoError(t, gdb.First(&got, "id = ?", pos.ID).Error)
	assert.Equal(t, 5, got.Quantity)

	var account models.LoyaltyAccount
	require.NoError(t, gdb.First(&account, "buyer_id = ?", buyerID).Error)
	assert.Equal(t, int64(100), account.PointBalance)

	var count int64
	require.NoError(t, gdb.Model(&models.LedgerEvent{}).
		Where("order_id = ? AND event_type = ?", order.ID, enums.LedgerEventTypeRelease).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestReserveReportsEveryShortfall(t *testing.T) {
	t.Parallel()

	gdb := newLedgerTestDB(t)
	svc, err := NewService(NewRepository(gdb))
	require.NoError(t, err)

	buyerID := uuid.New()
	seedAccount(t, gdb, buyerID, 0)
	low := seedPosition(t, gdb, "honey jar", 700, 1)
	empty := seedPosition(t, gdb, "candle set", 1500, 0)
	fine := seedPosition(t, gdb, "notebook", 400, 10)

	err = gdb.Transaction(func(tx *gorm.DB) error {
		_, rerr := svc.Reserve(context.Background(), tx, ReserveInput{
			BuyerID: buyerID,
			Items: []ItemRequest{
				{PositionID: low.ID, Quantity: 3},
				{PositionID: empty.ID, Quantity: 1},
				{PositionID: fine.ID, Quantity: 2},
			},
		})
		return rerr
	})
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	shortfalls, ok := typed.Details().(map[string]any)["shortfalls"].([]StockShortfall)
	require.True(t, ok)
	assert.Len(t, shortfalls, 2)

	// Failed reservation must leave stock untouched.
	var got models.StockPosition
	require.NoError(t, gdb.First(&got, "id = ?", fine.ID).Error)
	assert.Equal(t, 10, got.Quantity)
}

func TestReserveRejectsUnknownPositions(t *testing.T) {
	t.Parallel()

	gdb := newLedgerTestDB(t)
	svc, err := NewService(NewRepository(gdb))
	require.NoError(t, err)

	buyerID := uuid.New()
	known := seedPosition(t, gdb, "soap bar", 300, 5)
	missing := uuid.New()

	err = gdb.Transaction(func(tx *gorm.DB) error {
		_, rerr := svc.Reserve(context.Background(), tx, ReserveInput{
			BuyerID: buyerID,
			Items: []ItemRequest{
				{PositionID: known.ID, Quantity: 1},
				{PositionID: missing, Quantity: 1},
			},
		})
		return rerr
	})
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	ids, ok := typed.Details().(map[string]any)["missing_position_ids"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{missing.String()}, ids)
}

func TestReservePointClamps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		balance   int64
		requested int64
		quantity  int
		want      int64
	}{
		{name: "negative request applies nothing", balance: 1000, requested: -50, quantity: 1, want: 0},
		{name: "balance caps request", balance: 300, requested: 900, quantity: 1, want: 300},
		{name: "goods total caps request", balance: 10_000, requested: 10_000, quantity: 1, want: 800},
		{name: "exact request passes through", balance: 1000, requested: 400, quantity: 2, want: 400},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			gdb := newLedgerTestDB(t)
			svc, err := NewService(NewRepository(gdb))
			require.NoError(t, err)

			buyerID := uuid.New()
			seedAccount(t, gdb, buyerID, tc.balance)
			pos := seedPosition(t, gdb, "gift wrap", 800, 10)

			var res *Reservation
			err = gdb.Transaction(func(tx *gorm.DB) error {
				var rerr error
				res, rerr = svc.Reserve(context.Background(), tx, ReserveInput{
					BuyerID:         buyerID,
					Items:           []ItemRequest{{PositionID: pos.ID, Quantity: tc.quantity}},
					RequestedPoints: tc.requested,
				})
				return rerr
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.AppliedPoints)
		})
	}
}

func TestReserveConsolidatesDuplicateLines(t *testing.T) {
	t.Parallel()

	gdb := newLedgerTestDB(t)
	svc, err := NewService(NewRepository(gdb))
	require.NoError(t, err)

	buyerID := uuid.New()
	pos := seedPosition(t, gdb, "sticker pack", 250, 5)

	var res *Reservation
	err = gdb.Transaction(func(tx *gorm.DB) error {
		var rerr error
		res, rerr = svc.Reserve(context.Background(), tx, ReserveInput{
			BuyerID: buyerID,
			Items: []ItemRequest{
				{PositionID: pos.ID, Quantity: 1},
				{PositionID: pos.ID, Quantity: 2},
			},
		})
		return rerr
	})
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, 3, res.Lines[0].Quantity)
	assert.Equal(t, int64(750), res.GoodsTotalCents)

	var got models.StockPosition
	require.NoError(t, gdb.First(&got, "id = ?", pos.ID).Error)
	assert.Equal(t, 2, got.Quantity)
}

func TestReserveValidation(t *testing.T) {
	t.Parallel()

	gdb := newLedgerTestDB(t)
	svc, err := NewService(NewRepository(gdb))
	require.NoError(t, err)
	pos := seedPosition(t, gdb, "postcard", 150, 5)

	tests := []struct {
		name  string
		input ReserveInput
	}{
		{name: "missing buyer", input: ReserveInput{Items: []ItemRequest{{PositionID: pos.ID, Quantity: 1}}}},
		{name: "no items", input: ReserveInput{BuyerID: uuid.New()}},
		{name: "zero quantity", input: ReserveInput{BuyerID: uuid.New(), Items: []ItemRequest{{PositionID: pos.ID, Quantity: 0}}}},
		{name: "nil position id", input: ReserveInput{BuyerID: uuid.New(), Items: []ItemRequest{{Quantity: 1}}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rerr := gdb.Transaction(func(tx *gorm.DB) error {
				_, e := svc.Reserve(context.Background(), tx, tc.input)
				return e
			})
			require.Error(t, rerr)
			typed := pkgerrors.As(rerr)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
		})
	}
}

func TestReserveProvisionsMissingLoyaltyAccount(t *testing.T) {
	t.Parallel()

	gdb := newLedgerTestDB(t)
	svc, err := NewService(NewRepository(gdb))
	require.NoError(t, err)

	buyerID := uuid.New()
	pos := seedPosition(t, gdb, "tote bag", 1100, 3)

	var res *Reservation
	err = gdb.Transaction(func(tx *gorm.DB) error {
		var rerr error
		res, rerr = svc.Reserve(context.Background(), tx, ReserveInput{
			BuyerID:         buyerID,
			Items:           []ItemRequest{{PositionID: pos.ID, Quantity: 1}},
			RequestedPoints: 200,
		})
		return rerr
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.AppliedPoints)

	var account models.LoyaltyAccount
	require.NoError(t, gdb.First(&account, "buyer_id = ?", buyerID).Error)
	assert.Equal(t, int64(0), account.PointBalance)
}
