package service

import (
	"context"
	"testing"

	"sushi-chatbot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalogStore struct {
	categories map[int64]*models.Category
	products   map[int64]*models.Product
	nextID     int64
}

func newFakeCatalogStore() *fakeCatalogStore {
	return &fakeCatalogStore{
		categories: make(map[int64]*models.Category),
		products:   make(map[int64]*models.Product),
	}
}

func (s *fakeCatalogStore) GetCategoryByID(ctx context.Context, id int64) (*models.Category, error) {
	return s.categories[id], nil
}

func (s *fakeCatalogStore) GetCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	for _, category := range s.categories {
		if category.Name == name {
			return category, nil
		}
	}
	return nil, nil
}

func (s *fakeCatalogStore) ListCategories(ctx context.Context, showAll bool) ([]models.Category, error) {
	var result []models.Category
	for _, category := range s.categories {
		if !showAll && !category.Available {
			continue
		}
		result = append(result, *category)
	}
	return result, nil
}

func (s *fakeCatalogStore) CreateCategory(ctx context.Context, category *models.Category) error {
	s.nextID++
	category.ID = s.nextID
	s.categories[category.ID] = category
	return nil
}

func (s *fakeCatalogStore) UpdateCategory(ctx context.Context, category *models.Category) error {
	s.categories[category.ID] = category
	return nil
}

func (s *fakeCatalogStore) SetCategoryAvailability(ctx context.Context, id int64, available bool) error {
	s.categories[id].Available = available
	return nil
}

func (s *fakeCatalogStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	return s.products[id], nil
}

func (s *fakeCatalogStore) ListProducts(ctx context.Context, showAll bool) ([]models.Product, error) {
	var result []models.Product
	for _, product := range s.products {
		if !showAll {
			if !product.Available {
				continue
			}
			if category := s.categories[product.CategoryID]; category == nil || !category.Available {
				continue
			}
		}
		result = append(result, *product)
	}
	return result, nil
}

func (s *fakeCatalogStore) CreateProduct(ctx context.Context, product *models.Product) error {
	s.nextID++
	product.ID = s.nextID
	s.products[product.ID] = product
	return nil
}

func (s *fakeCatalogStore) UpdateProduct(ctx context.Context, product *models.Product) error {
	s.products[product.ID] = product
	return nil
}

func (s *fakeCatalogStore) SetProductAvailability(ctx context.Context, id int64, available bool) error {
	s.products[id].Available = available
	return nil
}

func TestCreateCategoryRejectsDuplicateName(t *testing.T) {
	store := newFakeCatalogStore()
	svc := NewCatalogService(store)

	_, err := svc.CreateCategory(context.Background(), &CategoryInput{Name: "Rolls"})
	require.NoError(t, err)

	_, err = svc.CreateCategory(context.Background(), &CategoryInput{Name: "Rolls"})
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeValidation))
}

func TestCreateProductRequiresAvailableCategory(t *testing.T) {
	store := newFakeCatalogStore()
	svc := NewCatalogService(store)

	category, err := svc.CreateCategory(context.Background(), &CategoryInput{Name: "Nigiri"})
	require.NoError(t, err)

	input := &ProductInput{Name: "Tuna", Price: 3000, CategoryID: category.ID}
	product, err := svc.CreateProduct(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, product.Available)

	_, err = svc.SetCategoryAvailability(context.Background(), category.ID, false)
	require.NoError(t, err)

	_, err = svc.CreateProduct(context.Background(), &ProductInput{Name: "Salmon", Price: 2500, CategoryID: category.ID})
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeNotFound))

	_, err = svc.CreateProduct(context.Background(), &ProductInput{Name: "Eel", Price: 4000, CategoryID: 999})
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeNotFound))
}

func TestListProductsHidesUnavailable(t *testing.T) {
	store := newFakeCatalogStore()
	svc := NewCatalogService(store)

	category, err := svc.CreateCategory(context.Background(), &CategoryInput{Name: "Rolls"})
	require.NoError(t, err)

	visible, err := svc.CreateProduct(context.Background(), &ProductInput{Name: "California", Price: 2000, CategoryID: category.ID})
	require.NoError(t, err)
	hidden, err := svc.CreateProduct(context.Background(), &ProductInput{Name: "Dragon", Price: 3500, CategoryID: category.ID})
	require.NoError(t, err)

	_, err = svc.SetProductAvailability(context.Background(), hidden.ID, false)
	require.NoError(t, err)

	products, err := svc.ListProducts(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, visible.ID, products[0].ID)

	all, err := svc.ListProducts(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestListProductsEmptyIsNotFound(t *testing.T) {
	svc := NewCatalogService(newFakeCatalogStore())

	_, err := svc.ListProducts(context.Background(), false)
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeNotFound))
}

func TestProductValidation(t *testing.T) {
	svc := NewCatalogService(newFakeCatalogStore())

	_, err := svc.CreateProduct(context.Background(), &ProductInput{Name: " ", Price: 100, CategoryID: 1})
	assert.True(t, IsCode(err, CodeValidation))

	_, err = svc.CreateProduct(context.Background(), &ProductInput{Name: "Tuna", Price: -1, CategoryID: 1})
	assert.True(t, IsCode(err, CodeValidation))

	_, err = svc.CreateProduct(context.Background(), &ProductInput{Name: "Tuna", Price: 100})
	assert.True(t, IsCode(err, CodeValidation))
}
