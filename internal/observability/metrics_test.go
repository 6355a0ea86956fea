package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesJobCollectors(t *testing.T) {
	metrics := NewMetrics()
	_ = metrics.Jobs().Track("inventory:valuation").End(errors.New("boom"))

	body := scrape(t, metrics)
	require.Contains(t, body, `datascoop_jobs_total{job="inventory:valuation",status="failure"} 1`)
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `datascoop_http_requests_total{code="418",route="/test"} 1`)
	require.Contains(t, body, `datascoop_http_request_duration_seconds_bucket{route="/test"`)
}

func TestLedgerCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObservePurchase(3, 1280)
	metrics.ObserveSale("small", 16)
	metrics.ObserveRejectedSale("insufficient_inventory")

	body := scrape(t, metrics)
	for _, want := range []string{
		`datascoop_purchases_total{location="3"} 1`,
		`datascoop_ounces_purchased_total 1280`,
		`datascoop_sales_total{size="small"} 1`,
		`datascoop_ounces_sold_total 16`,
		`datascoop_sales_rejected_total{reason="insufficient_inventory"} 1`,
	} {
		require.True(t, strings.Contains(body, want), want)
	}

	var nilMetrics *Metrics
	nilMetrics.ObserveSale("small", 1)
	require.Nil(t, nilMetrics.Jobs())
}
