package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sushi-chatbot/internal/chat"
	"sushi-chatbot/internal/models"
	"sushi-chatbot/internal/realtime"
	"sushi-chatbot/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memOrderStore struct {
	orders  map[int64]*models.Order
	items   map[int64][]models.OrderItem
	nextSeq int64
}

func (s *memOrderStore) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	s.nextSeq++
	order.SequenceNumber = s.nextSeq
	copied := *order
	s.orders[order.SequenceNumber] = &copied
	for _, item := range items {
		item.OrderSequence = order.SequenceNumber
		s.items[order.SequenceNumber] = append(s.items[order.SequenceNumber], item)
	}
	return nil
}

func (s *memOrderStore) GetOrder(ctx context.Context, sequenceNumber int64, customerName string) (*models.Order, error) {
	order, ok := s.orders[sequenceNumber]
	if !ok || order.CustomerName != customerName {
		return nil, nil
	}
	copied := *order
	return &copied, nil
}

func (s *memOrderStore) GetOrderItems(ctx context.Context, sequenceNumber int64) ([]models.OrderItem, error) {
	return s.items[sequenceNumber], nil
}

func (s *memOrderStore) ListOrders(ctx context.Context, statuses []string, nameFilter string) ([]models.Order, error) {
	var result []models.Order
	for _, order := range s.orders {
		result = append(result, *order)
	}
	return result, nil
}

func (s *memOrderStore) UpdateOrderStatus(ctx context.Context, sequenceNumber int64, status string) error {
	s.orders[sequenceNumber].Status = status
	return nil
}

type memCatalog struct {
	products map[int64]*models.Product
}

func (c *memCatalog) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return c.products[id], nil
}

type silentNotifier struct{}

func (silentNotifier) Notify(ctx context.Context, notification *models.StatusNotification) {}

func newTestRouter() (*gin.Engine, *memOrderStore) {
	gin.SetMode(gin.TestMode)

	store := &memOrderStore{
		orders: make(map[int64]*models.Order),
		items:  make(map[int64][]models.OrderItem),
	}
	catalog := &memCatalog{products: map[int64]*models.Product{
		1: {ID: 1, Name: "Salmon Roll", Price: 2500, Available: true},
	}}

	orders := service.NewOrderService(store, catalog, silentNotifier{}, nil)
	hub := realtime.NewHub(chat.NewRouter(nil, nil, 0), "http://localhost:5173")
	handler := NewHandler(orders, nil, hub, "test")

	router := gin.New()
	handler.SetupRoutes(router)
	return router, store
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestCreateOrderEndpoint(t *testing.T) {
	router, store := newTestRouter()

	body := `{
		"customerName": "Alice",
		"deliveryType": "delivery",
		"deliveryAddress": "123 Fish St",
		"items": [{"product": 1, "quantity": 2}]
	}`
	recorder := doRequest(router, http.MethodPost, "/api/v1/orders", body)

	assert.Equal(t, http.StatusCreated, recorder.Code)

	var response struct {
		Success bool          `json:"success"`
		Status  int           `json:"status"`
		Message string        `json:"message"`
		Data    *models.Order `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.True(t, response.Success)
	assert.Equal(t, http.StatusCreated, response.Status)
	require.NotNil(t, response.Data)
	assert.Equal(t, int64(5000), response.Data.TotalPrice)
	assert.Equal(t, models.StatusPending, response.Data.Status)

	assert.Len(t, store.orders, 1)
}

func TestCreateOrderRejectsUnknownFields(t *testing.T) {
	router, store := newTestRouter()

	body := `{"customerName": "Alice", "deliveryType": "delivery", "items": [{"product": 1, "quantity": 1}], "vipDiscount": true}`
	recorder := doRequest(router, http.MethodPost, "/api/v1/orders", body)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Empty(t, store.orders)

	var response struct {
		Success    bool   `json:"success"`
		StatusCode int    `json:"statusCode"`
		Message    string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.False(t, response.Success)
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
	assert.Contains(t, response.Message, "vipDiscount")
}

func TestCreateOrderValidationEnvelope(t *testing.T) {
	router, _ := newTestRouter()

	recorder := doRequest(router, http.MethodPost, "/api/v1/orders",
		`{"customerName": "", "deliveryType": "delivery", "items": [{"product": 1, "quantity": 1}]}`)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, false, response["success"])
	assert.Equal(t, float64(http.StatusBadRequest), response["statusCode"])
	assert.Equal(t, "the customer name is required", response["message"])
}

func TestGetOrderRequiresCustomerName(t *testing.T) {
	router, store := newTestRouter()
	store.orders[1] = &models.Order{SequenceNumber: 1, CustomerName: "alice", Status: models.StatusPending}

	recorder := doRequest(router, http.MethodGet, "/api/v1/orders/1", "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = doRequest(router, http.MethodGet, "/api/v1/orders/1?customerName=Alice", "")
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = doRequest(router, http.MethodGet, "/api/v1/orders/1?customerName=Bob", "")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestUpdateOrderStatusEndpoint(t *testing.T) {
	router, store := newTestRouter()
	store.orders[1] = &models.Order{SequenceNumber: 1, CustomerName: "alice", Status: models.StatusPending}

	recorder := doRequest(router, http.MethodPatch, "/api/v1/orders/1/status?customerName=Alice",
		`{"status": "accepted"}`)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, models.StatusAccepted, store.orders[1].Status)

	// illegal transition surfaces as a validation error
	recorder = doRequest(router, http.MethodPatch, "/api/v1/orders/1/status?customerName=Alice",
		`{"status": "delivered"}`)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, models.StatusAccepted, store.orders[1].Status)
}

func TestUpdateOrderStatusRequiresBody(t *testing.T) {
	router, store := newTestRouter()
	store.orders[1] = &models.Order{SequenceNumber: 1, CustomerName: "alice", Status: models.StatusPending}

	recorder := doRequest(router, http.MethodPatch, "/api/v1/orders/1/status?customerName=Alice", `{}`)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestListOrdersEmptyEnvelope(t *testing.T) {
	router, _ := newTestRouter()

	recorder := doRequest(router, http.MethodGet, "/api/v1/orders", "")
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "no orders found", response["message"])
}

func TestInvalidSequenceNumber(t *testing.T) {
	router, _ := newTestRouter()

	recorder := doRequest(router, http.MethodGet, "/api/v1/orders/abc?customerName=Alice", "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter()

	recorder := doRequest(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
}
