package service

import (
	"context"
	"fmt"
	"strings"

	"sushi-chatbot/internal/models"
	"sushi-chatbot/internal/util"

	"go.uber.org/zap"
)

// CatalogStore is the storage contract the catalog service depends on
type CatalogStore interface {
	GetCategoryByID(ctx context.Context, id int64) (*models.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*models.Category, error)
	ListCategories(ctx context.Context, showAll bool) ([]models.Category, error)
	CreateCategory(ctx context.Context, category *models.Category) error
	UpdateCategory(ctx context.Context, category *models.Category) error
	SetCategoryAvailability(ctx context.Context, id int64, available bool) error

	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, showAll bool) ([]models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, product *models.Product) error
	SetProductAvailability(ctx context.Context, id int64, available bool) error
}

// CatalogService handles category and product management and supplies the
// read-only product/category lookups the order pipeline depends on.
type CatalogService struct {
	store  CatalogStore
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store CatalogStore) *CatalogService {
	return &CatalogService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// CategoryInput is the payload for creating or updating a category
type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Order       int    `json:"order"`
}

// ProductInput is the payload for creating or updating a product
type ProductInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	CategoryID  int64  `json:"category_id"`
	Image       string `json:"image"`
}

// ListCategories returns categories sorted by menu order
func (cs *CatalogService) ListCategories(ctx context.Context, showAll bool) ([]models.Category, error) {
	categories, err := cs.store.ListCategories(ctx, showAll)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	if len(categories) == 0 {
		return nil, NotFoundError("no categories found")
	}
	return categories, nil
}

// CreateCategory creates a category; duplicate names are rejected
func (cs *CatalogService) CreateCategory(ctx context.Context, input *CategoryInput) (*models.Category, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ValidationError("category name is required")
	}

	existing, err := cs.store.GetCategoryByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check category name: %w", err)
	}
	if existing != nil {
		return nil, ValidationError(fmt.Sprintf("a category named %q already exists", name))
	}

	category := &models.Category{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		SortOrder:   input.Order,
		Available:   true,
	}
	if err := cs.store.CreateCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	cs.logger.Info("Category created", zap.String("name", category.Name), zap.Int64("id", category.ID))
	return category, nil
}

// UpdateCategory updates an existing category
func (cs *CatalogService) UpdateCategory(ctx context.Context, id int64, input *CategoryInput) (*models.Category, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ValidationError("category name is required")
	}

	category, err := cs.store.GetCategoryByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load category: %w", err)
	}
	if category == nil {
		return nil, NotFoundError("category not found")
	}

	if name != category.Name {
		existing, err := cs.store.GetCategoryByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to check category name: %w", err)
		}
		if existing != nil {
			return nil, ValidationError(fmt.Sprintf("a category named %q already exists", name))
		}
	}

	category.Name = name
	category.Description = strings.TrimSpace(input.Description)
	category.SortOrder = input.Order

	if err := cs.store.UpdateCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("failed to update category: %w", err)
	}

	cs.logger.Info("Category updated", zap.Int64("id", category.ID))
	return category, nil
}

// SetCategoryAvailability activates or deactivates a category
func (cs *CatalogService) SetCategoryAvailability(ctx context.Context, id int64, available bool) (*models.Category, error) {
	category, err := cs.store.GetCategoryByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load category: %w", err)
	}
	if category == nil {
		return nil, NotFoundError("category not found")
	}

	if err := cs.store.SetCategoryAvailability(ctx, id, available); err != nil {
		return nil, fmt.Errorf("failed to update category availability: %w", err)
	}
	category.Available = available

	cs.logger.Info("Category availability changed",
		zap.Int64("id", id),
		zap.Bool("available", available))
	return category, nil
}

// ListProducts returns products sorted by their parent category's menu
// order. With showAll false only available products in available categories
// are returned; the chat get_menu tool uses that view.
func (cs *CatalogService) ListProducts(ctx context.Context, showAll bool) ([]models.Product, error) {
	products, err := cs.store.ListProducts(ctx, showAll)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	if len(products) == 0 {
		return nil, NotFoundError("no products found")
	}
	return products, nil
}

// GetProduct retrieves a product by ID; used by the order pipeline to
// resolve line items.
func (cs *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	product, err := cs.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return product, nil
}

// CreateProduct creates a product under an existing, available category
func (cs *CatalogService) CreateProduct(ctx context.Context, input *ProductInput) (*models.Product, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}

	category, err := cs.store.GetCategoryByID(ctx, input.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load category: %w", err)
	}
	if category == nil {
		return nil, NotFoundError("category not found")
	}
	if !category.Available {
		return nil, NotFoundError("category is not available")
	}

	product := &models.Product{
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Price:       input.Price,
		CategoryID:  input.CategoryID,
		Image:       input.Image,
		Available:   true,
	}
	if err := cs.store.CreateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	cs.logger.Info("Product created", zap.String("name", product.Name), zap.Int64("id", product.ID))
	return product, nil
}

// UpdateProduct updates an existing product
func (cs *CatalogService) UpdateProduct(ctx context.Context, id int64, input *ProductInput) (*models.Product, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}

	product, err := cs.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if product == nil {
		return nil, NotFoundError("product not found")
	}

	if input.CategoryID != product.CategoryID {
		category, err := cs.store.GetCategoryByID(ctx, input.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("failed to load category: %w", err)
		}
		if category == nil {
			return nil, NotFoundError("category not found")
		}
	}

	product.Name = strings.TrimSpace(input.Name)
	product.Description = strings.TrimSpace(input.Description)
	product.Price = input.Price
	product.CategoryID = input.CategoryID
	product.Image = input.Image

	if err := cs.store.UpdateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	cs.logger.Info("Product updated", zap.Int64("id", product.ID))
	return product, nil
}

// SetProductAvailability activates or deactivates a product
func (cs *CatalogService) SetProductAvailability(ctx context.Context, id int64, available bool) (*models.Product, error) {
	product, err := cs.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if product == nil {
		return nil, NotFoundError("product not found")
	}

	if err := cs.store.SetProductAvailability(ctx, id, available); err != nil {
		return nil, fmt.Errorf("failed to update product availability: %w", err)
	}
	product.Available = available

	cs.logger.Info("Product availability changed",
		zap.Int64("id", id),
		zap.Bool("available", available))
	return product, nil
}

func validateProductInput(input *ProductInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return ValidationError("product name is required")
	}
	if input.Price < 0 {
		return ValidationError("product price must not be negative")
	}
	if input.CategoryID == 0 {
		return ValidationError("product category is required")
	}
	return nil
}
