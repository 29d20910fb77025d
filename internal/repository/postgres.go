// Package repository implements data access against PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/nwhitfield/minicrm-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrCustomerNotFound is returned when a customer id does not exist.
var (
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrProductNotFound is returned when a product id does not exist.
	ErrProductNotFound = errors.New("product not found")
	// ErrSaleNotFound is returned when a sale id does not exist.
	ErrSaleNotFound = errors.New("sale not found")
	// ErrCustomerInUse is returned when deleting a customer that sales still reference.
	ErrCustomerInUse = errors.New("customer is referenced by existing sales")
	// ErrProductInUse is returned when deleting a product that sales still reference.
	ErrProductInUse = errors.New("product is referenced by existing sales")
)

// PostgresRepository provides access to the CRM data store in PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a repository and initialises the schema via migrations.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection pool.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// ListCustomers returns all customers ordered by id.
func (r *PostgresRepository) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, email, phone, address, postcode, created_at
		 FROM customers
		 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select customers: %w", err)
	}
	defer rows.Close()

	var customers []model.Customer
	for rows.Next() {
		var c model.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.Postcode, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return customers, nil
}

// GetCustomer returns a customer by id.
func (r *PostgresRepository) GetCustomer(ctx context.Context, id int64) (*model.Customer, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, email, phone, address, postcode, created_at
		 FROM customers
		 WHERE id = $1`,
		id,
	)

	var c model.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.Postcode, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}

	return &c, nil
}

// CreateCustomer inserts a customer and returns the stored record.
func (r *PostgresRepository) CreateCustomer(ctx context.Context, c model.Customer) (*model.Customer, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO customers (name, email, phone, address, postcode)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		c.Name, c.Email, c.Phone, c.Address, c.Postcode,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return &c, nil
}

// UpdateCustomer overwrites a customer's fields and returns the stored record.
func (r *PostgresRepository) UpdateCustomer(ctx context.Context, c model.Customer) (*model.Customer, error) {
	err := r.pool.QueryRow(ctx,
		`UPDATE customers
		 SET name = $2, email = $3, phone = $4, address = $5, postcode = $6
		 WHERE id = $1
		 RETURNING created_at`,
		c.ID, c.Name, c.Email, c.Phone, c.Address, c.Postcode,
	).Scan(&c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return &c, nil
}

// DeleteCustomer removes a customer. Deletion is restricted while sales
// still reference the customer.
func (r *PostgresRepository) DeleteCustomer(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return ErrCustomerInUse
		}
		return fmt.Errorf("delete customer: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

// ListProducts returns all catalogue entries ordered by id.
func (r *PostgresRepository) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, price::text, type, recurring, renewal_price::text
		 FROM products
		 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

// GetProduct returns a catalogue entry by id.
func (r *PostgresRepository) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, description, price::text, type, recurring, renewal_price::text
		 FROM products
		 WHERE id = $1`,
		id,
	)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	return p, nil
}

// CreateProduct inserts a catalogue entry and returns the stored record.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (name, description, price, type, recurring, renewal_price)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		p.Name, p.Description, p.Price.String(), string(p.Type), string(p.Recurring), renewalPriceArg(p.RenewalPrice),
	).Scan(&p.ID)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return &p, nil
}

// UpdateProduct overwrites a catalogue entry and returns the stored record.
func (r *PostgresRepository) UpdateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE products
		 SET name = $2, description = $3, price = $4, type = $5, recurring = $6, renewal_price = $7
		 WHERE id = $1`,
		p.ID, p.Name, p.Description, p.Price.String(), string(p.Type), string(p.Recurring), renewalPriceArg(p.RenewalPrice),
	)
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return nil, ErrProductNotFound
	}
	return &p, nil
}

// DeleteProduct removes a catalogue entry. Deletion is restricted while
// sales still reference the product.
func (r *PostgresRepository) DeleteProduct(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return ErrProductInUse
		}
		return fmt.Errorf("delete product: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

const saleColumns = `s.id, s.customer_id, c.name, s.product_id, p.name, s.quantity, s.sale_date, s.total_amount::text
	 FROM sales s
	 JOIN customers c ON c.id = s.customer_id
	 JOIN products p ON p.id = s.product_id`

// ListSales returns all sales with customer and product names resolved,
// ordered by id.
func (r *PostgresRepository) ListSales(ctx context.Context) ([]model.Sale, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+saleColumns+` ORDER BY s.id`)
	if err != nil {
		return nil, fmt.Errorf("select sales: %w", err)
	}
	defer rows.Close()

	var sales []model.Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return sales, nil
}

// GetSale returns a sale by id with customer and product names resolved.
func (r *PostgresRepository) GetSale(ctx context.Context, id int64) (*model.Sale, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+saleColumns+` WHERE s.id = $1`, id)

	s, err := scanSale(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}

	return s, nil
}

// CreateSale inserts a sale in a single statement and returns its id.
func (r *PostgresRepository) CreateSale(ctx context.Context, s model.Sale) (*model.Sale, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO sales (customer_id, product_id, quantity, sale_date, total_amount)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		s.CustomerID, s.ProductID, s.Quantity, s.SaleDate, s.TotalAmount.String(),
	).Scan(&s.ID)
	if err != nil {
		return nil, fmt.Errorf("create sale: %w", err)
	}
	return &s, nil
}

// UpdateSale overwrites a sale in a single statement.
func (r *PostgresRepository) UpdateSale(ctx context.Context, s model.Sale) (*model.Sale, error) {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE sales
		 SET customer_id = $2, product_id = $3, quantity = $4, sale_date = $5, total_amount = $6
		 WHERE id = $1`,
		s.ID, s.CustomerID, s.ProductID, s.Quantity, s.SaleDate, s.TotalAmount.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("update sale: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return nil, ErrSaleNotFound
	}
	return &s, nil
}

// DeleteSale removes a sale.
func (r *PostgresRepository) DeleteSale(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete sale: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrSaleNotFound
	}
	return nil
}

func scanProduct(row pgx.Row) (*model.Product, error) {
	var (
		p           model.Product
		priceText   string
		renewalText *string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &priceText, &p.Type, &p.Recurring, &renewalText); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}

	price, err := decimal.NewFromString(priceText)
	if err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}
	p.Price = price

	if renewalText != nil {
		renewal, err := decimal.NewFromString(*renewalText)
		if err != nil {
			return nil, fmt.Errorf("parse renewal price: %w", err)
		}
		p.RenewalPrice = &renewal
	}

	return &p, nil
}

func scanSale(row pgx.Row) (*model.Sale, error) {
	var (
		s         model.Sale
		totalText string
		saleDate  time.Time
	)
	if err := row.Scan(&s.ID, &s.CustomerID, &s.CustomerName, &s.ProductID, &s.ProductName, &s.Quantity, &saleDate, &totalText); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan sale: %w", err)
	}

	total, err := decimal.NewFromString(totalText)
	if err != nil {
		return nil, fmt.Errorf("parse total amount: %w", err)
	}
	s.TotalAmount = total
	s.SaleDate = time.Date(saleDate.Year(), saleDate.Month(), saleDate.Day(), 0, 0, 0, 0, time.UTC)

	return &s, nil
}

func renewalPriceArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
