package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"pos-register/internal/domain"

	"github.com/google/uuid"
)

var ErrProductNotFound = errors.New("product not found")

// CatalogProduct is a product joined with its category name for listing
type CatalogProduct struct {
	domain.Product
	CategoryName *string
}

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, search string, page, perPage int) ([]*CatalogProduct, int, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (id, name, sku, price, category_id, image_url, stock, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		product.ID, product.Name, product.SKU, product.Price, product.CategoryID,
		product.ImageURL, product.Stock, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, sku = $3, price = $4, category_id = $5,
		    image_url = $6, stock = $7, updated_at = $8
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		product.ID, product.Name, product.SKU, product.Price, product.CategoryID,
		product.ImageURL, product.Stock, product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrProductNotFound
	}

	return nil
}

func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrProductNotFound
	}

	return nil
}

func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `
		SELECT id, name, sku, price, category_id, image_url, stock, created_at, updated_at
		FROM products
		WHERE id = $1
	`

	product := &domain.Product{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&product.ID, &product.Name, &product.SKU, &product.Price, &product.CategoryID,
		&product.ImageURL, &product.Stock, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// List returns one page of products with their category names, plus the
// total match count. An empty search returns the whole catalog; otherwise
// name and sku are matched case-insensitively.
func (r *productRepository) List(ctx context.Context, search string, page, perPage int) ([]*CatalogProduct, int, error) {
	where := ""
	args := []interface{}{}

	if strings.TrimSpace(search) != "" {
		where = "WHERE p.name ILIKE $1 OR p.sku ILIKE $1"
		args = append(args, "%"+strings.TrimSpace(search)+"%")
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM products p %s`, where)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	offset := (page - 1) * perPage
	query := fmt.Sprintf(`
		SELECT p.id, p.name, p.sku, p.price, p.category_id, c.name,
		       p.image_url, p.stock, p.created_at, p.updated_at
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		%s
		ORDER BY p.name ASC, p.id ASC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, perPage, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*CatalogProduct{}
	for rows.Next() {
		p := &CatalogProduct{}
		err := rows.Scan(
			&p.ID, &p.Name, &p.SKU, &p.Price, &p.CategoryID, &p.CategoryName,
			&p.ImageURL, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating products: %w", err)
	}

	return products, total, nil
}
