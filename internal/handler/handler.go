// Package handler contains the HTTP handlers of the mini-CRM API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nwhitfield/minicrm-system/internal/model"
	"github.com/nwhitfield/minicrm-system/internal/pricing"
	"github.com/nwhitfield/minicrm-system/internal/repository"
	"github.com/nwhitfield/minicrm-system/internal/service"
	"github.com/nwhitfield/minicrm-system/internal/validation"
)

// Service defines the business-logic contract used by the HTTP handlers.
type Service interface {
	ListCustomers(ctx context.Context) ([]model.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*model.Customer, error)
	CreateCustomer(ctx context.Context, c model.Customer) (*model.Customer, error)
	UpdateCustomer(ctx context.Context, c model.Customer) (*model.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
	ListProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	CreateProduct(ctx context.Context, p model.Product) (*model.Product, error)
	UpdateProduct(ctx context.Context, p model.Product) (*model.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	ListSales(ctx context.Context) ([]model.Sale, error)
	GetSale(ctx context.Context, id int64) (*model.Sale, error)
	CreateSale(ctx context.Context, in service.SaleInput) (*model.Sale, error)
	UpdateSale(ctx context.Context, id int64, in service.SaleInput) (*model.Sale, error)
	DeleteSale(ctx context.Context, id int64) error
}

// Handler implements the HTTP handlers of the mini-CRM API.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler instance.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
	}
}

type customerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Postcode string `json:"postcode"`
}

type customerResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	Postcode  string `json:"postcode"`
	CreatedAt string `json:"createdAt"`
}

func toCustomerResponse(c *model.Customer) customerResponse {
	return customerResponse{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Address:   c.Address,
		Postcode:  c.Postcode,
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ListCustomers returns all customers.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.service.ListCustomers(r.Context())
	if err != nil {
		h.logger.Error("list customers error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]customerResponse, 0, len(customers))
	for i := range customers {
		resp = append(resp, toCustomerResponse(&customers[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetCustomer returns one customer by id.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	customer, err := h.service.GetCustomer(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "get customer")
		return
	}

	h.writeJSON(w, http.StatusOK, toCustomerResponse(customer))
}

// CreateCustomer validates and stores a new customer.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	customer, err := h.service.CreateCustomer(r.Context(), model.Customer{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  req.Address,
		Postcode: req.Postcode,
	})
	if err != nil {
		h.writeError(w, err, "create customer")
		return
	}

	h.writeJSON(w, http.StatusCreated, toCustomerResponse(customer))
}

// UpdateCustomer validates and stores changed customer fields.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	var req customerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	customer, err := h.service.UpdateCustomer(r.Context(), model.Customer{
		ID:       id,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  req.Address,
		Postcode: req.Postcode,
	})
	if err != nil {
		h.writeError(w, err, "update customer")
		return
	}

	h.writeJSON(w, http.StatusOK, toCustomerResponse(customer))
}

// DeleteCustomer removes a customer.
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteCustomer(r.Context(), id); err != nil {
		h.writeError(w, err, "delete customer")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type productRequest struct {
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Price        decimal.Decimal  `json:"price"`
	Type         string           `json:"type"`
	Recurring    string           `json:"recurring"`
	RenewalPrice *decimal.Decimal `json:"renewalPrice"`
}

type productResponse struct {
	ID           int64            `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Price        decimal.Decimal  `json:"price"`
	Type         string           `json:"type"`
	Recurring    string           `json:"recurring"`
	RenewalPrice *decimal.Decimal `json:"renewalPrice,omitempty"`
}

func toProductResponse(p *model.Product) productResponse {
	resp := productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Type:        string(p.Type),
		Recurring:   string(p.Recurring),
	}
	if renewal, ok := pricing.ComputeRenewal(p.Recurring, p.RenewalPrice); ok {
		resp.RenewalPrice = &renewal
	}
	return resp
}

func (req *productRequest) toModel(id int64) model.Product {
	return model.Product{
		ID:           id,
		Name:         req.Name,
		Description:  req.Description,
		Price:        req.Price,
		Type:         model.ProductType(req.Type),
		Recurring:    model.RecurringMode(req.Recurring),
		RenewalPrice: req.RenewalPrice,
	}
}

// ListProducts returns the whole catalogue.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.logger.Error("list products error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for i := range products {
		resp = append(resp, toProductResponse(&products[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetProduct returns one catalogue entry by id.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "get product")
		return
	}

	h.writeJSON(w, http.StatusOK, toProductResponse(product))
}

// CreateProduct validates and stores a new catalogue entry.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	product, err := h.service.CreateProduct(r.Context(), req.toModel(0))
	if err != nil {
		h.writeError(w, err, "create product")
		return
	}

	h.writeJSON(w, http.StatusCreated, toProductResponse(product))
}

// UpdateProduct validates and stores changed catalogue fields.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	product, err := h.service.UpdateProduct(r.Context(), req.toModel(id))
	if err != nil {
		h.writeError(w, err, "update product")
		return
	}

	h.writeJSON(w, http.StatusOK, toProductResponse(product))
}

// DeleteProduct removes a catalogue entry.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		h.writeError(w, err, "delete product")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type saleRequest struct {
	CustomerID int64  `json:"customerId"`
	ProductID  int64  `json:"productId"`
	Quantity   int    `json:"quantity"`
	SaleDate   string `json:"saleDate"`
	// TotalAmount is accepted for compatibility with clients that
	// pre-compute it, but the stored value is always recomputed
	// server-side from the product price.
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

type saleResponse struct {
	ID           int64           `json:"id"`
	CustomerID   int64           `json:"customerId"`
	CustomerName string          `json:"customerName"`
	ProductID    int64           `json:"productId"`
	ProductName  string          `json:"productName"`
	Quantity     int             `json:"quantity"`
	SaleDate     string          `json:"saleDate"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
}

func toSaleResponse(s *model.Sale) saleResponse {
	return saleResponse{
		ID:           s.ID,
		CustomerID:   s.CustomerID,
		CustomerName: s.CustomerName,
		ProductID:    s.ProductID,
		ProductName:  s.ProductName,
		Quantity:     s.Quantity,
		SaleDate:     s.SaleDate.UTC().Format(time.RFC3339),
		TotalAmount:  s.TotalAmount,
	}
}

func (req *saleRequest) toInput() service.SaleInput {
	return service.SaleInput{
		CustomerID: req.CustomerID,
		ProductID:  req.ProductID,
		Quantity:   req.Quantity,
		SaleDate:   req.SaleDate,
	}
}

// ListSales returns all sales with customer and product names resolved.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.service.ListSales(r.Context())
	if err != nil {
		h.logger.Error("list sales error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]saleResponse, 0, len(sales))
	for i := range sales {
		resp = append(resp, toSaleResponse(&sales[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetSale returns one sale by id.
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	sale, err := h.service.GetSale(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "get sale")
		return
	}

	h.writeJSON(w, http.StatusOK, toSaleResponse(sale))
}

// CreateSale resolves references, recomputes the total and stores the sale.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	sale, err := h.service.CreateSale(r.Context(), req.toInput())
	if err != nil {
		h.writeError(w, err, "create sale")
		return
	}

	h.writeJSON(w, http.StatusCreated, toSaleResponse(sale))
}

// UpdateSale re-resolves references, recomputes the total and stores the sale.
func (h *Handler) UpdateSale(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	var req saleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	sale, err := h.service.UpdateSale(r.Context(), id, req.toInput())
	if err != nil {
		h.writeError(w, err, "update sale")
		return
	}

	h.writeJSON(w, http.StatusOK, toSaleResponse(sale))
}

// DeleteSale removes a sale.
func (h *Handler) DeleteSale(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteSale(r.Context(), id); err != nil {
		h.writeError(w, err, "delete sale")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

type fieldErrorsResponse struct {
	Errors map[string]string `json:"errors"`
}

// writeError maps the error taxonomy onto HTTP statuses: field errors and
// unresolvable references are 400, missing entities 404, restricted
// deletes 409, anything else a logged 500.
func (h *Handler) writeError(w http.ResponseWriter, err error, op string) {
	var fieldErrs validation.FieldErrors
	if errors.As(err, &fieldErrs) {
		h.writeJSON(w, http.StatusBadRequest, fieldErrorsResponse{Errors: fieldErrs})
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidCustomerRef):
		h.writeJSON(w, http.StatusBadRequest, fieldErrorsResponse{
			Errors: map[string]string{"customerId": "customer does not exist"},
		})
	case errors.Is(err, service.ErrInvalidProductRef):
		h.writeJSON(w, http.StatusBadRequest, fieldErrorsResponse{
			Errors: map[string]string{"productId": "product does not exist"},
		})
	case errors.Is(err, repository.ErrCustomerNotFound),
		errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrSaleNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, repository.ErrCustomerInUse),
		errors.Is(err, repository.ErrProductInUse):
		http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
	default:
		h.logger.Error(op+" error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
