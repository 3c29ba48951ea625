package store

import (
	"context"
	"database/sql"
	"strings"

	"sushi-chatbot/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateOrder inserts an order and its line items in one transaction: a
// failing item insert rolls the order back, so no partial order is ever
// visible. The sequence number comes from the table's BIGSERIAL: assignment
// is atomic and monotonically increasing under concurrent inserts, with gaps
// when an insert rolls back.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	orderQuery := `
		INSERT INTO orders (customer_name, status, delivery_type, delivery_address, scheduled_time, comments, total_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING sequence_number, created_at, updated_at`

	if err := tx.GetContext(ctx, order, orderQuery,
		order.CustomerName, order.Status, order.DeliveryType,
		order.DeliveryAddress, order.ScheduledTime, order.Comments, order.TotalPrice); err != nil {
		return err
	}

	itemQuery := `
		INSERT INTO order_items (order_sequence, product_id, quantity)
		VALUES ($1, $2, $3)
		RETURNING id`

	for i := range items {
		items[i].OrderSequence = order.SequenceNumber
		if err := tx.GetContext(ctx, &items[i].ID, itemQuery,
			items[i].OrderSequence, items[i].ProductID, items[i].Quantity); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetOrder retrieves an order by sequence number and exact customer name.
// Returns (nil, nil) when no order matches both.
func (s *Store) GetOrder(ctx context.Context, sequenceNumber int64, customerName string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE sequence_number = $1 AND customer_name = $2",
		sequenceNumber, customerName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItems retrieves the line items of an order with product name and
// current catalog price resolved.
func (s *Store) GetOrderItems(ctx context.Context, sequenceNumber int64) ([]models.OrderItem, error) {
	query := `
		SELECT oi.id, oi.order_sequence, oi.product_id, oi.quantity,
		       p.name AS product_name, p.price AS product_price
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_sequence = $1
		ORDER BY oi.id`

	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items, query, sequenceNumber)
	return items, err
}

// ListOrders retrieves orders newest-first, optionally restricted to a
// status set and filtered by a case-insensitive customer-name substring.
func (s *Store) ListOrders(ctx context.Context, statuses []string, nameFilter string) ([]models.Order, error) {
	query := "SELECT * FROM orders"
	var clauses []string
	var args []interface{}

	if len(statuses) > 0 {
		clauses = append(clauses, "status IN (?)")
		args = append(args, statuses)
	}
	if nameFilter != "" {
		clauses = append(clauses, "customer_name ILIKE ?")
		args = append(args, "%"+nameFilter+"%")
	}

	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"

	query, expanded, err := sqlx.In(query, args...)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var orders []models.Order
	err = s.db.SelectContext(ctx, &orders, query, expanded...)
	return orders, err
}

// UpdateOrderStatus updates an order's status
func (s *Store) UpdateOrderStatus(ctx context.Context, sequenceNumber int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE sequence_number = $2",
		status, sequenceNumber)
	return err
}
