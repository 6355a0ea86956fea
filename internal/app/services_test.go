package app

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/datascoop/datascoop/internal/inventory"
)

func TestNewServicesMemoryWithCache(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	svc, err := NewServices(ctx, &Config{
		StoreDriver:    StoreDriverMemory,
		RedisAddr:      mr.Addr(),
		ReportCacheTTL: time.Minute,
		SeedCatalog:    true,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	require.NotNil(t, svc.Cache)

	flavors, err := svc.Catalog.ListFlavors(ctx)
	require.NoError(t, err)
	require.Len(t, flavors, 5)

	before, err := svc.Cache.Version(ctx)
	require.NoError(t, err)
	loc, err := svc.Catalog.AddLocation(ctx, "Main")
	require.NoError(t, err)
	_, err = svc.Inventory.RecordPurchase(ctx, inventory.PurchaseInput{LocationID: loc.ID, FlavorID: flavors[0].ID, Containers: 1})
	require.NoError(t, err)

	after, err := svc.Cache.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, before+2, after)
}

func TestNewServicesWithoutRedis(t *testing.T) {
	svc, err := NewServices(context.Background(), &Config{StoreDriver: StoreDriverMemory}, nil)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	require.Nil(t, svc.Cache)

	flavors, err := svc.Catalog.ListFlavors(context.Background())
	require.NoError(t, err)
	require.Empty(t, flavors)
}
