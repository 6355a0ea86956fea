package reports

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/datascoop/datascoop/internal/catalog"
	"github.com/datascoop/datascoop/internal/inventory"
	"github.com/datascoop/datascoop/internal/shared"
	"github.com/datascoop/datascoop/internal/store/memory"
)

type fixture struct {
	catalog   *catalog.Service
	inventory *inventory.Service
	reports   *Service
	main      catalog.Location
	vanilla   catalog.Flavor
	cone      catalog.Container
}

func newFixture(t *testing.T, cache *Cache) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	cat := catalog.NewService(store, nil)
	require.NoError(t, cat.Seed(ctx))
	main, err := cat.AddLocation(ctx, "Main")
	require.NoError(t, err)

	flavors, err := cat.ListFlavors(ctx)
	require.NoError(t, err)
	var vanilla catalog.Flavor
	for _, f := range flavors {
		if f.Name == "Vanilla" {
			vanilla = f
		}
	}
	containers, err := cat.ListContainers(ctx)
	require.NoError(t, err)

	inv := inventory.NewService(store, cat, nil, memory.NewIdempotency(), inventory.ServiceConfig{}, nil)
	return fixture{
		catalog:   cat,
		inventory: inv,
		reports:   NewService(cat, inv, nil, cache, nil),
		main:      main,
		vanilla:   vanilla,
		cone:      containers[0],
	}
}

func (f fixture) sell(t *testing.T, date time.Time, size catalog.Size, qty int64) {
	t.Helper()
	_, err := f.inventory.RecordSale(context.Background(), inventory.SaleInput{
		LocationID: f.main.ID, FlavorID: f.vanilla.ID, Size: size, ContainerID: f.cone.ID, Quantity: qty, Date: &date,
	})
	require.NoError(t, err)
}

func TestIncomeStatementEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	d := day(2024, 5, 1)
	_, err := f.inventory.RecordPurchase(ctx, inventory.PurchaseInput{LocationID: f.main.ID, FlavorID: f.vanilla.ID, Containers: 2, Date: &d})
	require.NoError(t, err)
	f.sell(t, day(2024, 5, 10), catalog.SizeMedium, 5)

	report, err := f.reports.IncomeStatement(ctx, 2024, 5)
	require.NoError(t, err)
	require.Len(t, report.Locations, 1)
	st := report.Locations[0]
	require.True(t, st.Revenue.Equal(dec("20")))
	require.True(t, st.COGSIceCream.Equal(dec("0.1875")), st.COGSIceCream.String())
	require.True(t, st.COGSContainers.Equal(dec("0.25")))
	require.True(t, st.COGSNapkins.Equal(dec("0.02")))
	require.True(t, st.NetIncome.Equal(dec("-18230.4575")), st.NetIncome.String())
	require.True(t, report.Company.NetIncome.Equal(st.NetIncome))

	again, err := f.reports.IncomeStatement(ctx, 2024, 5)
	require.NoError(t, err)
	require.Equal(t, report, again)
}

func TestSoldOutFlavorStillCarriesCOGS(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	d := day(2024, 5, 1)
	_, err := f.inventory.RecordPurchase(ctx, inventory.PurchaseInput{LocationID: f.main.ID, FlavorID: f.vanilla.ID, Containers: 1, Date: &d})
	require.NoError(t, err)
	f.sell(t, day(2024, 5, 20), catalog.SizeLarge, 40)

	report, err := f.reports.IncomeStatement(ctx, 2024, 5)
	require.NoError(t, err)
	require.True(t, report.Company.COGSIceCream.Equal(dec("2")), report.Company.COGSIceCream.String())

	levels, err := f.reports.InventoryLevels(ctx)
	require.NoError(t, err)
	for _, row := range levels {
		if row.FlavorID == f.vanilla.ID {
			require.Zero(t, row.Ounces)
			require.True(t, row.AvgCost.Equal(dec("0.003125")))
		}
	}
}

func TestPeriodPartitioning(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	_, err := f.inventory.RecordPurchase(ctx, inventory.PurchaseInput{LocationID: f.main.ID, FlavorID: f.vanilla.ID, Containers: 1})
	require.NoError(t, err)
	f.sell(t, day(2024, 4, 30), catalog.SizeKiddie, 1)
	f.sell(t, day(2024, 5, 1), catalog.SizeKiddie, 2)
	f.sell(t, day(2024, 5, 31), catalog.SizeKiddie, 3)
	f.sell(t, day(2024, 6, 1), catalog.SizeKiddie, 4)

	expect := map[int]string{4: "3", 5: "15", 6: "12"}
	for month, revenue := range expect {
		report, err := f.reports.IncomeStatement(ctx, 2024, month)
		require.NoError(t, err)
		require.True(t, report.Company.Revenue.Equal(dec(revenue)), "month %d: %s", month, report.Company.Revenue)
	}

	rows, err := f.reports.FlavorSales(ctx, 2024, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, int64(20), rows[0].OuncesSold)

	rows, err = f.reports.FlavorSales(ctx, 2023, 1)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestReportRejectsBadPeriod(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.reports.IncomeStatement(context.Background(), 2024, 13)
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
	_, err = f.reports.FlavorSales(context.Background(), 0, 1)
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestInventoryLevelsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	_, err := f.inventory.RecordPurchase(ctx, inventory.PurchaseInput{LocationID: f.main.ID, FlavorID: f.vanilla.ID, Containers: 3})
	require.NoError(t, err)

	first, err := f.reports.InventoryLevels(ctx)
	require.NoError(t, err)
	second, err := f.reports.InventoryLevels(ctx)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Len(t, first, len(catalog.DefaultFlavors()))

	vals, err := f.reports.Valuation(ctx)
	require.NoError(t, err)
	require.Len(t, vals, 1)
	require.True(t, vals[0].Value.Equal(dec("6")), vals[0].Value.String())
}

func setupCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestIncomeStatementCachedUntilBump(t *testing.T) {
	ctx := context.Background()
	cache, mr := setupCache(t)
	f := newFixture(t, cache)
	_, err := f.inventory.RecordPurchase(ctx, inventory.PurchaseInput{LocationID: f.main.ID, FlavorID: f.vanilla.ID, Containers: 1})
	require.NoError(t, err)
	f.sell(t, day(2024, 5, 2), catalog.SizeSmall, 1)

	first, err := f.reports.IncomeStatement(ctx, 2024, 5)
	require.NoError(t, err)
	require.True(t, mr.Exists("reports:income:2024-05:v1"))

	f.sell(t, day(2024, 5, 3), catalog.SizeSmall, 1)
	stale, err := f.reports.IncomeStatement(ctx, 2024, 5)
	require.NoError(t, err)
	require.Equal(t, first, stale)

	require.NoError(t, f.reports.Invalidate(ctx))
	fresh, err := f.reports.IncomeStatement(ctx, 2024, 5)
	require.NoError(t, err)
	require.True(t, fresh.Company.Revenue.Equal(dec("7")))
	require.True(t, mr.Exists("reports:income:2024-05:v2"))
}

func TestConcurrentReportsShareResult(t *testing.T) {
	ctx := context.Background()
	cache, _ := setupCache(t)
	f := newFixture(t, cache)
	_, err := f.inventory.RecordPurchase(ctx, inventory.PurchaseInput{LocationID: f.main.ID, FlavorID: f.vanilla.ID, Containers: 1})
	require.NoError(t, err)
	f.sell(t, day(2024, 5, 2), catalog.SizeLarge, 2)

	var wg sync.WaitGroup
	results := make([]IncomeStatementReport, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = f.reports.IncomeStatement(ctx, 2024, 5)
		}()
	}
	wg.Wait()
	for i := range results {
		require.NoError(t, errs[i])
		require.Equal(t, results[0], results[i])
	}
}

func TestCacheVersionAndNilClient(t *testing.T) {
	ctx := context.Background()
	cache, _ := setupCache(t)
	ver, err := cache.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), ver)
	require.NoError(t, cache.Bump(ctx))
	ver, err = cache.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), ver)

	var disabled *Cache
	key, err := disabled.BuildKey(ctx, "a", "b")
	require.NoError(t, err)
	require.Equal(t, "a:b", key)
	require.NoError(t, disabled.Bump(ctx))
}
