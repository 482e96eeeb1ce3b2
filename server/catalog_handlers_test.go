package server_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/go-admin-console/api"
	"github.com/jrsteele09/go-admin-console/catalog"
	"github.com/jrsteele09/go-admin-console/catalog/backendfake"
	"github.com/jrsteele09/go-admin-console/catalogmodel"
	"github.com/jrsteele09/go-admin-console/internal/utils"
	"github.com/jrsteele09/go-admin-console/server"
	"github.com/stretchr/testify/require"
)

var threeImages = map[string]string{"front.png": "front", "side.png": "side", "back.png": "back"}

func (f *testFixture) createProduct(t *testing.T, product any, primary string, order ...string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, product, primary, threeImages, order)
	req := httptest.NewRequest(http.MethodPost, server.RouteProducts, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func TestCreateProductHandler(t *testing.T) {
	f := setupTestFixture(t, nil)
	f.login(t)

	rec := f.createProduct(t, catalogmodel.ProductInput{Name: "Desk Lamp", Price: 24.5, Stock: 10}, "1", "front.png", "side.png", "back.png")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[server.CreateProductResponse](t, rec)
	require.NotEmpty(t, resp.TransactionID)
	require.Equal(t, int64(42), resp.Product.ID)
	require.Len(t, resp.Product.Images, 3)
	require.True(t, resp.Product.Images[1].IsPrimary)
	require.False(t, resp.Product.Images[0].IsPrimary)
	require.Equal(t, "products/1-front.png", resp.Product.Images[0].StorageKey)
	require.Len(t, f.backend.ImageRecords(42), 3)
}

func TestCreateProductHandler_WithoutImages(t *testing.T) {
	f := setupTestFixture(t, nil)
	f.login(t)

	rec := f.createProduct(t, catalogmodel.ProductInput{Name: "Gift Card", Price: 10}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Empty(t, decode[server.CreateProductResponse](t, rec).Product.Images)
}

func TestCreateProductHandler_RollbackReported(t *testing.T) {
	f := setupTestFixture(t, nil)
	f.login(t)
	f.backend.FailOn(backendfake.OpUploadImage, 2, &api.HTTPError{StatusCode: 500, Message: "storage unavailable"})

	rec := f.createProduct(t, catalogmodel.ProductInput{Name: "Desk Lamp", Price: 24.5}, "0", "front.png", "side.png", "back.png")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	resp := decode[server.ErrorResponse](t, rec)
	require.Equal(t, "transaction_failed", resp.Error)
	require.NotNil(t, resp.Transaction)
	require.Equal(t, string(catalog.StepUploadDependent), resp.Transaction.Step)
	require.Equal(t, 1, resp.Transaction.Index)
	require.Equal(t, int64(42), resp.Transaction.ProductID)
	require.Equal(t, string(catalog.RolledBack), resp.Transaction.Outcome)
	require.Empty(t, resp.Transaction.RollbackWarning)

	require.Empty(t, f.backend.Products())
	require.Empty(t, f.backend.StoredKeys())
}

func TestCreateProductHandler_RollbackWarning(t *testing.T) {
	f := setupTestFixture(t, nil)
	f.login(t)
	f.backend.FailOn(backendfake.OpCreateProductImage, 1, &api.HTTPError{StatusCode: 500, Message: "db down"})
	f.backend.FailOn(backendfake.OpDeleteProduct, 0, &api.HTTPError{StatusCode: 503, Message: "busy"})

	rec := f.createProduct(t, catalogmodel.ProductInput{Name: "Desk Lamp"}, "0", "front.png")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	resp := decode[server.ErrorResponse](t, rec)
	require.Equal(t, string(catalog.StepPersistDependents), resp.Transaction.Step)
	require.Equal(t, string(catalog.PrimaryDeleteFailed), resp.Transaction.Outcome)
	require.Contains(t, resp.Transaction.RollbackWarning, "product 42")
	require.Contains(t, resp.Transaction.LeftBehind, "product 42")
}

func TestCreateProductHandler_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		product any
		primary string
		images  []string
	}{
		{"missing product field", nil, "", nil},
		{"product is not an object", "lamp", "", nil},
		{"product fails validation", catalogmodel.ProductInput{Price: 3}, "", nil},
		{"primary image is not a number", catalogmodel.ProductInput{Name: "Lamp"}, "first", []string{"front.png"}},
		{"primary image out of range", catalogmodel.ProductInput{Name: "Lamp"}, "4", []string{"front.png"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t, nil)
			f.login(t)

			rec := f.createProduct(t, tt.product, tt.primary, tt.images...)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			require.Empty(t, f.backend.Journal())
		})
	}
}

func TestCreateProductHandler_NotMultipart(t *testing.T) {
	f := setupTestFixture(t, nil)
	f.login(t)

	rec := f.do(t, http.MethodPost, server.RouteProducts, catalogmodel.ProductInput{Name: "Lamp"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateAndDeleteProductHandlers(t *testing.T) {
	f := setupTestFixture(t, nil)
	f.login(t)

	rec := f.createProduct(t, catalogmodel.ProductInput{Name: "Lamp", Price: 10}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	path := server.RoutePrefix + "/products/42"

	rec = f.do(t, http.MethodPut, path, catalogmodel.ProductUpdate{Stock: utils.Ptr(7)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	product := decode[catalogmodel.Product](t, rec)
	require.Equal(t, 7, product.Stock)
	require.Equal(t, "Lamp", product.Name)

	rec = f.do(t, http.MethodPut, path, catalogmodel.ProductUpdate{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, server.RoutePrefix+"/products/abc", catalogmodel.ProductUpdate{Stock: utils.Ptr(1)})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "not_found", decode[server.ErrorResponse](t, rec).Error)
}

func TestListProductsHandler(t *testing.T) {
	f := setupTestFixture(t, nil)
	f.login(t)

	for _, name := range []string{"Lamp", "Desk", "Chair"} {
		rec := f.createProduct(t, catalogmodel.ProductInput{Name: name, Price: 1}, "")
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := f.do(t, http.MethodGet, server.RouteProducts+"?page=2&page_size=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[catalogmodel.Page[catalogmodel.Product]](t, rec)
	require.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 1)
	require.Equal(t, "Chair", page.Items[0].Name)

	rec = f.do(t, http.MethodGet, server.RouteProducts+"?page_size=500", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, server.RouteProducts+"?page=two", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderHandlers(t *testing.T) {
	f := setupTestFixture(t, nil)
	f.login(t)
	f.backend.AddOrder(catalogmodel.Order{ID: 1, CustomerName: "Ada", Status: catalogmodel.OrderPending, Total: 40})
	f.backend.AddOrder(catalogmodel.Order{ID: 2, CustomerName: "Grace", Status: catalogmodel.OrderShipped, Total: 60})

	rec := f.do(t, http.MethodGet, server.RouteOrders+"?status=pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[catalogmodel.Page[catalogmodel.Order]](t, rec)
	require.Equal(t, 1, page.Total)
	require.Equal(t, "Ada", page.Items[0].CustomerName)

	rec = f.do(t, http.MethodGet, server.RoutePrefix+"/orders/2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Grace", decode[catalogmodel.Order](t, rec).CustomerName)

	rec = f.do(t, http.MethodGet, server.RoutePrefix+"/orders/9", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPut, server.RoutePrefix+"/orders/1/status", catalogmodel.OrderStatusUpdate{Status: "lost"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, 0, f.backend.Calls(backendfake.OpUpdateOrderStatus))

	rec = f.do(t, http.MethodPut, server.RoutePrefix+"/orders/1/status", catalogmodel.OrderStatusUpdate{Status: catalogmodel.OrderProcessing})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, catalogmodel.OrderProcessing, decode[catalogmodel.Order](t, rec).Status)

	rec = f.do(t, http.MethodDelete, server.RoutePrefix+"/orders/2", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, server.RouteDashboard, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[catalogmodel.DashboardSummary](t, rec)
	require.Equal(t, 1, summary.TotalOrders)
	require.Equal(t, 40.0, summary.TotalRevenue)
}

func TestReadHandlers_BackendFailure(t *testing.T) {
	f := setupTestFixture(t, nil)
	f.login(t)
	f.backend.FailOn(backendfake.OpDashboardSummary, 0, &api.HTTPError{StatusCode: 500, Message: "db down"})

	rec := f.do(t, http.MethodGet, server.RouteDashboard, nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decode[server.ErrorResponse](t, rec)
	require.Equal(t, "backend_error", resp.Error)
	require.Equal(t, "db down", resp.Description)
}
