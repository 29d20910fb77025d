package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nwhitfield/minicrm-system/internal/model"
	"github.com/nwhitfield/minicrm-system/internal/repository"
	"github.com/nwhitfield/minicrm-system/internal/service"
	"github.com/nwhitfield/minicrm-system/internal/validation"
)

type stubService struct {
	customersResp []model.Customer
	customersErr  error

	customerResp *model.Customer
	customerErr  error

	deleteCustomerErr error

	productsResp []model.Product
	productsErr  error

	productResp *model.Product
	productErr  error

	deleteProductErr error

	salesResp []model.Sale
	salesErr  error

	saleResp *model.Sale
	saleErr  error

	deleteSaleErr error

	lastSaleInput service.SaleInput
}

func (s *stubService) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	return s.customersResp, s.customersErr
}

func (s *stubService) GetCustomer(ctx context.Context, id int64) (*model.Customer, error) {
	return s.customerResp, s.customerErr
}

func (s *stubService) CreateCustomer(ctx context.Context, c model.Customer) (*model.Customer, error) {
	return s.customerResp, s.customerErr
}

func (s *stubService) UpdateCustomer(ctx context.Context, c model.Customer) (*model.Customer, error) {
	return s.customerResp, s.customerErr
}

func (s *stubService) DeleteCustomer(ctx context.Context, id int64) error {
	return s.deleteCustomerErr
}

func (s *stubService) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.productsResp, s.productsErr
}

func (s *stubService) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	return s.productResp, s.productErr
}

func (s *stubService) CreateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	return s.productResp, s.productErr
}

func (s *stubService) UpdateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	return s.productResp, s.productErr
}

func (s *stubService) DeleteProduct(ctx context.Context, id int64) error {
	return s.deleteProductErr
}

func (s *stubService) ListSales(ctx context.Context) ([]model.Sale, error) {
	return s.salesResp, s.salesErr
}

func (s *stubService) GetSale(ctx context.Context, id int64) (*model.Sale, error) {
	return s.saleResp, s.saleErr
}

func (s *stubService) CreateSale(ctx context.Context, in service.SaleInput) (*model.Sale, error) {
	s.lastSaleInput = in
	return s.saleResp, s.saleErr
}

func (s *stubService) UpdateSale(ctx context.Context, id int64, in service.SaleInput) (*model.Sale, error) {
	s.lastSaleInput = in
	return s.saleResp, s.saleErr
}

func (s *stubService) DeleteSale(ctx context.Context, id int64) error {
	return s.deleteSaleErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	return NewHandler(svc, logger)
}

func TestListCustomers_EmptyIsEmptyArray(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/customers", nil)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp []customerResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 0 {
		t.Fatalf("expected empty array, got %v", resp)
	}
}

func TestCreateCustomer_FieldErrorsAreBadRequest(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(customerRequest{Name: "Acme Ltd"})
	req := httptest.NewRequest(http.MethodPost, "/api/customers", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	// The real service rejects the missing email; the stub reproduces it.
	svc.customerErr = validation.FieldErrors{"email": "email is required"}

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}

	var resp fieldErrorsResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Errors["email"] == "" {
		t.Fatalf("expected email error, got %v", resp.Errors)
	}
}

func TestGetCustomer_NotFound(t *testing.T) {
	svc := &stubService{customerErr: repository.ErrCustomerNotFound}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/customers/7", nil)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestGetCustomer_BadID(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/customers/abc", nil)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestDeleteCustomer_InUseIsConflict(t *testing.T) {
	svc := &stubService{deleteCustomerErr: repository.ErrCustomerInUse}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/customers/1", nil)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestDeleteProduct_InUseIsConflict(t *testing.T) {
	svc := &stubService{deleteProductErr: repository.ErrProductInUse}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/products/1", nil)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestCreateSale_IgnoresClientTotal(t *testing.T) {
	serverTotal := decimal.RequireFromString("59.97")
	svc := &stubService{
		saleResp: &model.Sale{
			ID:           1,
			CustomerID:   1,
			CustomerName: "Acme Ltd",
			ProductID:    1,
			ProductName:  "Widget",
			Quantity:     3,
			SaleDate:     time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC),
			TotalAmount:  serverTotal,
		},
	}
	h := newTestHandler(t, svc)

	body := []byte(`{"customerId":1,"productId":1,"quantity":3,"saleDate":"2025-06-15","totalAmount":0.01}`)
	req := httptest.NewRequest(http.MethodPost, "/api/sales", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var resp saleResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.TotalAmount.Equal(serverTotal) {
		t.Fatalf("total = %s, want server-computed %s", resp.TotalAmount, serverTotal)
	}
	if resp.SaleDate != "2025-06-15T00:00:00Z" {
		t.Fatalf("sale date = %q, want UTC midnight", resp.SaleDate)
	}
	if svc.lastSaleInput.Quantity != 3 || svc.lastSaleInput.ProductID != 1 {
		t.Fatalf("service received unexpected input: %+v", svc.lastSaleInput)
	}
}

func TestCreateSale_UnknownProductIsBadRequest(t *testing.T) {
	svc := &stubService{saleErr: service.ErrInvalidProductRef}
	h := newTestHandler(t, svc)

	body := []byte(`{"customerId":1,"productId":99,"quantity":1,"saleDate":"2025-06-15"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/sales", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}

	var resp fieldErrorsResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Errors["productId"] == "" {
		t.Fatalf("expected productId error, got %v", resp.Errors)
	}
}

func TestUpdateSale_NotFound(t *testing.T) {
	svc := &stubService{saleErr: repository.ErrSaleNotFound}
	h := newTestHandler(t, svc)

	body := []byte(`{"customerId":1,"productId":1,"quantity":1,"saleDate":"2025-06-15"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/sales/42", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestGetProduct_MarshalsRenewalPrice(t *testing.T) {
	renewal := decimal.RequireFromString("8.99")
	svc := &stubService{
		productResp: &model.Product{
			ID:           1,
			Name:         "Hosting",
			Price:        decimal.RequireFromString("9.99"),
			Type:         model.ProductTypeService,
			Recurring:    model.RecurringMonthly,
			RenewalPrice: &renewal,
		},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/products/1", nil)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp productResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Recurring != "Monthly" {
		t.Fatalf("recurring = %q, want Monthly", resp.Recurring)
	}
	if resp.RenewalPrice == nil || !resp.RenewalPrice.Equal(renewal) {
		t.Fatalf("renewal price = %v, want %s", resp.RenewalPrice, renewal)
	}
}

func TestDeleteSale_NoContent(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/sales/1", nil)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}
