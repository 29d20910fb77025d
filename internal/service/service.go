// Package service implements the business logic of the mini-CRM service.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/nwhitfield/minicrm-system/internal/model"
	"github.com/nwhitfield/minicrm-system/internal/pricing"
	"github.com/nwhitfield/minicrm-system/internal/repository"
	"github.com/nwhitfield/minicrm-system/internal/validation"
)

// ErrInvalidCustomerRef is returned when a sale references a customer id
// that cannot be resolved.
var (
	ErrInvalidCustomerRef = errors.New("sale references unknown customer")
	// ErrInvalidProductRef is returned when a sale references a product id
	// that cannot be resolved.
	ErrInvalidProductRef = errors.New("sale references unknown product")
)

// Repository describes the data access contract used by the service.
type Repository interface {
	Close() error
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
	CreateSale(ctx context.Context, s model.Sale) (*model.Sale, error)
	UpdateSale(ctx context.Context, s model.Sale) (*model.Sale, error)
	DeleteSale(ctx context.Context, id int64) error
}

// Service contains the business logic of the mini-CRM service.
type Service struct {
	repo Repository
}

// NewService creates a service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Close releases the service's resources.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// ListCustomers returns all customers.
func (s *Service) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

// GetCustomer returns a customer by id.
func (s *Service) GetCustomer(ctx context.Context, id int64) (*model.Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

// CreateCustomer validates and persists a new customer.
func (s *Service) CreateCustomer(ctx context.Context, c model.Customer) (*model.Customer, error) {
	if err := validation.CheckCustomer(c); err != nil {
		return nil, err
	}
	return s.repo.CreateCustomer(ctx, c)
}

// UpdateCustomer validates and persists changed customer fields.
func (s *Service) UpdateCustomer(ctx context.Context, c model.Customer) (*model.Customer, error) {
	if err := validation.CheckCustomer(c); err != nil {
		return nil, err
	}
	return s.repo.UpdateCustomer(ctx, c)
}

// DeleteCustomer removes a customer unless sales still reference it.
func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	return s.repo.DeleteCustomer(ctx, id)
}

// ListProducts returns the whole catalogue.
func (s *Service) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.repo.ListProducts(ctx)
}

// GetProduct returns a catalogue entry by id.
func (s *Service) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// CreateProduct validates and persists a new catalogue entry.
func (s *Service) CreateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	normalizeProduct(&p)
	if err := validation.CheckProduct(p); err != nil {
		return nil, err
	}
	return s.repo.CreateProduct(ctx, p)
}

// UpdateProduct validates and persists changed catalogue fields.
func (s *Service) UpdateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	normalizeProduct(&p)
	if err := validation.CheckProduct(p); err != nil {
		return nil, err
	}
	return s.repo.UpdateProduct(ctx, p)
}

// DeleteProduct removes a catalogue entry unless sales still reference it.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	return s.repo.DeleteProduct(ctx, id)
}

// normalizeProduct fills enum defaults and drops a renewal price
// submitted for a non-recurring product, keeping the renewal invariant.
func normalizeProduct(p *model.Product) {
	if p.Type == "" {
		p.Type = model.ProductTypeProduct
	}
	if p.Recurring == "" {
		p.Recurring = model.RecurringNone
	}
	if p.Recurring == model.RecurringNone {
		p.RenewalPrice = nil
	}
}

// SaleInput carries the client-controlled fields of a sale. Any
// client-computed total is deliberately absent: the total is always
// recomputed from the product price.
type SaleInput struct {
	CustomerID int64
	ProductID  int64
	Quantity   int
	SaleDate   string
}

// ListSales returns all sales with names resolved.
func (s *Service) ListSales(ctx context.Context) ([]model.Sale, error) {
	return s.repo.ListSales(ctx)
}

// GetSale returns a sale by id with names resolved.
func (s *Service) GetSale(ctx context.Context, id int64) (*model.Sale, error) {
	return s.repo.GetSale(ctx, id)
}

// CreateSale resolves the referenced customer and product, validates the
// input, computes the total amount and persists the sale in one write.
func (s *Service) CreateSale(ctx context.Context, in SaleInput) (*model.Sale, error) {
	sale, err := s.composeSale(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.repo.CreateSale(ctx, *sale)
}

// UpdateSale re-runs the full resolution and recompute sequence: the
// referenced customer or product may have been deleted since creation.
func (s *Service) UpdateSale(ctx context.Context, id int64, in SaleInput) (*model.Sale, error) {
	sale, err := s.composeSale(ctx, in)
	if err != nil {
		return nil, err
	}
	sale.ID = id
	return s.repo.UpdateSale(ctx, *sale)
}

// DeleteSale removes a sale.
func (s *Service) DeleteSale(ctx context.Context, id int64) error {
	return s.repo.DeleteSale(ctx, id)
}

func (s *Service) composeSale(ctx context.Context, in SaleInput) (*model.Sale, error) {
	errs := validation.FieldErrors{}

	if !validation.IsValidQuantity(in.Quantity) {
		errs["quantity"] = "quantity must be at least 1"
	}

	saleDate, err := parseSaleDate(in.SaleDate)
	if err != nil {
		errs["saleDate"] = "sale date must be a valid calendar date"
	}

	if len(errs) > 0 {
		return nil, errs
	}

	customer, err := s.repo.GetCustomer(ctx, in.CustomerID)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return nil, ErrInvalidCustomerRef
		}
		return nil, err
	}

	product, err := s.repo.GetProduct(ctx, in.ProductID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrInvalidProductRef
		}
		return nil, err
	}

	return &model.Sale{
		CustomerID:   customer.ID,
		CustomerName: customer.Name,
		ProductID:    product.ID,
		ProductName:  product.Name,
		Quantity:     in.Quantity,
		SaleDate:     saleDate,
		TotalAmount:  pricing.ComputeTotal(product.Price, in.Quantity),
	}, nil
}

// parseSaleDate accepts a bare calendar date or a full RFC 3339 instant
// and truncates either to UTC midnight.
func parseSaleDate(raw string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		t, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, err
		}
		t = t.UTC()
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
