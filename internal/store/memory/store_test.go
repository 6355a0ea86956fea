package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/datascoop/datascoop/internal/catalog"
	"github.com/datascoop/datascoop/internal/inventory"
	"github.com/datascoop/datascoop/internal/shared"
)

func TestCatalogCreatesLedgerEntries(t *testing.T) {
	ctx := context.Background()
	store := New()
	svc := catalog.NewService(store, nil)

	loc, err := svc.AddLocation(ctx, "Downtown")
	require.NoError(t, err)
	f, err := svc.AddFlavor(ctx, "Vanilla", decimal.RequireFromString("2.00"))
	require.NoError(t, err)
	loc2, err := svc.AddLocation(ctx, "Airport")
	require.NoError(t, err)

	for _, l := range []catalog.Location{loc, loc2} {
		e, err := store.GetEntry(ctx, l.ID, f.ID)
		require.NoError(t, err)
		require.Zero(t, e.Ounces)
		require.True(t, e.AvgCost.IsZero())
	}

	_, err = svc.AddLocation(ctx, "downtown")
	require.ErrorIs(t, err, shared.ErrDuplicateName)
	_, err = svc.AddFlavor(ctx, "Vanilla", decimal.RequireFromString("1.00"))
	require.ErrorIs(t, err, shared.ErrDuplicateName)

	locs, err := svc.ListLocations(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Airport", "Downtown"}, []string{locs[0].Name, locs[1].Name})
}

func TestWithTxDiscardsOnError(t *testing.T) {
	ctx := context.Background()
	store := New()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(ctx context.Context, tx inventory.TxRepository) error {
		require.NoError(t, tx.UpsertEntry(ctx, inventory.Entry{LocationID: 1, FlavorID: 1, Ounces: 640}))
		_, err := tx.InsertPurchase(ctx, inventory.Purchase{LocationID: 1, FlavorID: 1, Containers: 1})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.GetEntry(ctx, 1, 1)
	require.ErrorIs(t, err, inventory.ErrEntryNotFound)
	purchases, err := store.ListPurchases(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Empty(t, purchases)
}

func TestListSalesWindowIsClosedOpen(t *testing.T) {
	ctx := context.Background()
	store := New()
	dates := []time.Time{
		time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx inventory.TxRepository) error {
		for _, d := range dates {
			if _, err := tx.InsertSale(ctx, inventory.Sale{LocationID: 1, FlavorID: 1, Date: d, Size: catalog.SizeSmall, Quantity: 1}); err != nil {
				return err
			}
		}
		return nil
	}))

	from, to, err := shared.MonthRange(2024, 5)
	require.NoError(t, err)
	sales, err := store.ListSales(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	require.Equal(t, dates[1], sales[0].Date)
	require.Equal(t, dates[2], sales[1].Date)
}

func TestIdempotency(t *testing.T) {
	ctx := context.Background()
	idem := NewIdempotency()
	require.NoError(t, idem.CheckAndInsert(ctx, "sale:1", "inventory"))
	require.ErrorIs(t, idem.CheckAndInsert(ctx, "sale:1", "inventory"), shared.ErrIdempotencyConflict)
	require.NoError(t, idem.Delete(ctx, "sale:1"))
	require.NoError(t, idem.CheckAndInsert(ctx, "sale:1", "inventory"))
	require.Error(t, idem.CheckAndInsert(ctx, "", "inventory"))
}
