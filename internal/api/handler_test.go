package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/datascoop/datascoop/internal/catalog"
	"github.com/datascoop/datascoop/internal/inventory"
	"github.com/datascoop/datascoop/internal/reports"
	"github.com/datascoop/datascoop/internal/store/memory"
)

type testServer struct {
	router  http.Handler
	vanilla catalog.Flavor
	cone    catalog.Container
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	cat := catalog.NewService(store, nil)
	require.NoError(t, cat.Seed(ctx))
	inv := inventory.NewService(store, cat, nil, memory.NewIdempotency(), inventory.ServiceConfig{}, nil)
	rep := reports.NewService(cat, inv, nil, nil, nil)

	flavors, err := cat.ListFlavors(ctx)
	require.NoError(t, err)
	containers, err := cat.ListContainers(ctx)
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandler(nil, cat, inv, rep).MountRoutes(r)
	srv := testServer{router: r, cone: containers[0]}
	for _, f := range flavors {
		if f.Name == "Vanilla" {
			srv.vanilla = f
		}
	}
	return srv
}

func (s testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestLocationLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(t, http.MethodPost, "/locations", map[string]any{"name": "Main"})
	require.Equal(t, http.StatusCreated, rr.Code)
	loc := decodeBody[catalog.Location](t, rr)
	require.Equal(t, "Main", loc.Name)

	rr = srv.do(t, http.MethodPost, "/locations", map[string]any{"name": "Main"})
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

	rr = srv.do(t, http.MethodPost, "/locations", map[string]any{"name": ""})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = srv.do(t, http.MethodPost, "/locations", map[string]any{"title": "x"})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = srv.do(t, http.MethodGet, "/locations", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, decodeBody[[]catalog.Location](t, rr), 1)
}

func TestPurchaseSaleAndInventory(t *testing.T) {
	srv := newTestServer(t)
	loc := decodeBody[catalog.Location](t, srv.do(t, http.MethodPost, "/locations", map[string]any{"name": "Main"}))

	rr := srv.do(t, http.MethodPost, "/purchases", map[string]any{
		"location_id": loc.ID, "flavor_id": srv.vanilla.ID, "containers": 2, "date": "2024-05-01",
	}, IdempotencyHeader, "po-1")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = srv.do(t, http.MethodPost, "/purchases", map[string]any{
		"location_id": loc.ID, "flavor_id": srv.vanilla.ID, "containers": 2, "date": "2024-05-01",
	}, IdempotencyHeader, "po-1")
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = srv.do(t, http.MethodPost, "/sales", map[string]any{
		"location_id": loc.ID, "flavor_id": srv.vanilla.ID, "size": "medium", "container_id": srv.cone.ID, "quantity": 5, "date": "2024-05-10",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = srv.do(t, http.MethodGet, "/inventory/"+itoa(loc.ID)+"/"+itoa(srv.vanilla.ID), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	entry := decodeBody[inventory.Entry](t, rr)
	require.Equal(t, int64(1220), entry.Ounces)
	require.True(t, entry.AvgCost.Equal(decimal.RequireFromString("0.003125")))

	rr = srv.do(t, http.MethodPost, "/sales", map[string]any{
		"location_id": loc.ID, "flavor_id": srv.vanilla.ID, "size": "Large", "container_id": srv.cone.ID, "quantity": 100,
	})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = srv.do(t, http.MethodPost, "/sales", map[string]any{
		"location_id": loc.ID, "flavor_id": srv.vanilla.ID, "size": "jumbo", "container_id": srv.cone.ID, "quantity": 1,
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = srv.do(t, http.MethodPost, "/purchases", map[string]any{
		"location_id": 999, "flavor_id": srv.vanilla.ID, "containers": 1,
	})
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = srv.do(t, http.MethodPost, "/purchases", map[string]any{
		"location_id": loc.ID, "flavor_id": srv.vanilla.ID, "containers": 0,
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = srv.do(t, http.MethodGet, "/inventory/abc/1", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCheckoutPartialFailure(t *testing.T) {
	srv := newTestServer(t)
	loc := decodeBody[catalog.Location](t, srv.do(t, http.MethodPost, "/locations", map[string]any{"name": "Main"}))
	rr := srv.do(t, http.MethodPost, "/purchases", map[string]any{"location_id": loc.ID, "flavor_id": srv.vanilla.ID, "containers": 1})
	require.Equal(t, http.StatusCreated, rr.Code)

	line := func(qty int) map[string]any {
		return map[string]any{"location_id": loc.ID, "flavor_id": srv.vanilla.ID, "size": "Large", "container_id": srv.cone.ID, "quantity": qty}
	}
	rr = srv.do(t, http.MethodPost, "/checkout", map[string]any{"lines": []any{line(30), line(20)}})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	resp := decodeBody[checkoutResponse](t, rr)
	require.Len(t, resp.Sales, 1)
	require.Equal(t, 1, resp.FailedLine)
	require.NotEmpty(t, resp.Error)

	rr = srv.do(t, http.MethodPost, "/checkout", map[string]any{"lines": []any{}})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestReportsEndpoints(t *testing.T) {
	srv := newTestServer(t)
	loc := decodeBody[catalog.Location](t, srv.do(t, http.MethodPost, "/locations", map[string]any{"name": "Main"}))
	srv.do(t, http.MethodPost, "/purchases", map[string]any{"location_id": loc.ID, "flavor_id": srv.vanilla.ID, "containers": 2})
	rr := srv.do(t, http.MethodPost, "/sales", map[string]any{
		"location_id": loc.ID, "flavor_id": srv.vanilla.ID, "size": "Small", "container_id": srv.cone.ID, "quantity": 2, "date": "2024-05-31",
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = srv.do(t, http.MethodGet, "/reports/income-statement?year=2024&month=5", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	report := decodeBody[reports.IncomeStatementReport](t, rr)
	require.True(t, report.Company.Revenue.Equal(decimal.RequireFromString("7")))

	rr = srv.do(t, http.MethodGet, "/reports/flavor-sales?period=2024-05", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rows := decodeBody[[]reports.FlavorSalesRow](t, rr)
	require.Len(t, rows, 1)
	require.Equal(t, int64(16), rows[0].OuncesSold)

	rr = srv.do(t, http.MethodGet, "/reports/income-statement?year=2024&month=13", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	rr = srv.do(t, http.MethodGet, "/reports/income-statement", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = srv.do(t, http.MethodGet, "/reports/inventory", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, decodeBody[[]reports.InventoryLevelRow](t, rr), 5)
}

func TestFlavorEndpoints(t *testing.T) {
	srv := newTestServer(t)
	rr := srv.do(t, http.MethodPost, "/flavors", map[string]any{"name": "Mint", "cost_per_container": "2.25"})
	require.Equal(t, http.StatusCreated, rr.Code)
	mint := decodeBody[catalog.Flavor](t, rr)

	rr = srv.do(t, http.MethodPut, "/flavors/"+itoa(mint.ID)+"/cost", map[string]any{"cost_per_container": 3.1})
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, decodeBody[catalog.Flavor](t, rr).CostPerContainer.Equal(decimal.RequireFromString("3.1")))

	rr = srv.do(t, http.MethodPut, "/flavors/999/cost", map[string]any{"cost_per_container": 1})
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = srv.do(t, http.MethodGet, "/containers", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, decodeBody[[]catalog.Container](t, rr), 3)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
