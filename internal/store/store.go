package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sushi-chatbot/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetCategoryByID retrieves a category by ID. Returns (nil, nil) when absent.
func (s *Store) GetCategoryByID(ctx context.Context, id int64) (*models.Category, error) {
	var category models.Category
	err := s.db.GetContext(ctx, &category, "SELECT * FROM categories WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// GetCategoryByName retrieves a category by exact name. Returns (nil, nil)
// when absent; used for the duplicate-name check.
func (s *Store) GetCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	var category models.Category
	err := s.db.GetContext(ctx, &category, "SELECT * FROM categories WHERE name = $1", name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// ListCategories retrieves categories sorted by their menu order. With
// showAll false only available categories are returned.
func (s *Store) ListCategories(ctx context.Context, showAll bool) ([]models.Category, error) {
	query := "SELECT * FROM categories ORDER BY sort_order"
	if !showAll {
		query = "SELECT * FROM categories WHERE available = true ORDER BY sort_order"
	}

	var categories []models.Category
	err := s.db.SelectContext(ctx, &categories, query)
	return categories, err
}

// CreateCategory inserts a category
func (s *Store) CreateCategory(ctx context.Context, category *models.Category) error {
	query := `
		INSERT INTO categories (name, description, sort_order, available)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, category, query,
		category.Name, category.Description, category.SortOrder, category.Available)
}

// UpdateCategory updates a category's editable fields
func (s *Store) UpdateCategory(ctx context.Context, category *models.Category) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE categories SET name = $1, description = $2, sort_order = $3, updated_at = NOW() WHERE id = $4",
		category.Name, category.Description, category.SortOrder, category.ID)
	return err
}

// SetCategoryAvailability toggles a category on or off the menu
func (s *Store) SetCategoryAvailability(ctx context.Context, id int64, available bool) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE categories SET available = $1, updated_at = NOW() WHERE id = $2",
		available, id)
	return err
}

// GetProductByID retrieves a product by ID. Returns (nil, nil) when absent.
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProducts retrieves products sorted by their parent category's menu
// order. With showAll false only available products in available categories
// are returned.
func (s *Store) ListProducts(ctx context.Context, showAll bool) ([]models.Product, error) {
	query := `
		SELECT p.* FROM products p
		JOIN categories c ON c.id = p.category_id
		ORDER BY c.sort_order, p.id`
	if !showAll {
		query = `
			SELECT p.* FROM products p
			JOIN categories c ON c.id = p.category_id
			WHERE p.available = true AND c.available = true
			ORDER BY c.sort_order, p.id`
	}

	var products []models.Product
	err := s.db.SelectContext(ctx, &products, query)
	return products, err
}

// CreateProduct inserts a product
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (name, description, price, category_id, image, available)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, product, query,
		product.Name, product.Description, product.Price, product.CategoryID,
		product.Image, product.Available)
}

// UpdateProduct updates a product's editable fields
func (s *Store) UpdateProduct(ctx context.Context, product *models.Product) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE products
		 SET name = $1, description = $2, price = $3, category_id = $4, image = $5, updated_at = NOW()
		 WHERE id = $6`,
		product.Name, product.Description, product.Price, product.CategoryID,
		product.Image, product.ID)
	return err
}

// SetProductAvailability toggles a product on or off the menu
func (s *Store) SetProductAvailability(ctx context.Context, id int64, available bool) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE products SET available = $1, updated_at = NOW() WHERE id = $2",
		available, id)
	return err
}
