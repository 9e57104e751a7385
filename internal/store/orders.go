package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"order-management/internal/models"
)

// CreateOrderWithItems persists an order and all of its items as a
// single transaction. Stock of every referenced product is re-checked
// under a row lock and decremented in the same transaction; on any
// failure nothing is persisted.
func (s *Store) CreateOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i := range items {
		var stock int
		err := tx.GetContext(ctx, &stock,
			"SELECT stock FROM products WHERE id = $1 FOR UPDATE", items[i].ProductID)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: product %d", ErrNotFound, items[i].ProductID)
		}
		if err != nil {
			return fmt.Errorf("failed to lock product %d: %w", items[i].ProductID, err)
		}

		if stock < items[i].Quantity {
			return fmt.Errorf("%w: product %d: available=%d, requested=%d",
				ErrInsufficientStock, items[i].ProductID, stock, items[i].Quantity)
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE products SET stock = stock - $1 WHERE id = $2",
			items[i].Quantity, items[i].ProductID)
		if err != nil {
			return fmt.Errorf("failed to decrement stock: %w", err)
		}
	}

	query := `
		INSERT INTO orders (client_id, status, total)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`

	if err := tx.GetContext(ctx, order, query, order.ClientID, order.Status, order.Total); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	for i := range items {
		items[i].OrderID = order.ID
		if err := tx.GetContext(ctx, &items[i].ID, itemQuery,
			items[i].OrderID, items[i].ProductID, items[i].Quantity,
			items[i].UnitPrice, items[i].Subtotal); err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	order.Items = items
	return nil
}

// ListOrders returns one page of a user's orders, newest first, plus
// the total number of matching rows.
func (s *Store) ListOrders(ctx context.Context, userID int64, f models.OrderFilter) ([]models.Order, int64, error) {
	where := []string{"c.user_id = $1"}
	args := []interface{}{userID}

	if f.ClientID != nil {
		args = append(args, *f.ClientID)
		where = append(where, fmt.Sprintf("o.client_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("o.status = $%d", len(args)))
	}
	if f.StartDate != nil {
		args = append(args, *f.StartDate)
		where = append(where, fmt.Sprintf("o.created_at >= $%d", len(args)))
	}
	if f.EndDate != nil {
		args = append(args, *f.EndDate)
		where = append(where, fmt.Sprintf("o.created_at <= $%d", len(args)))
	}

	base := "FROM orders o JOIN clients c ON c.id = o.client_id WHERE " + strings.Join(where, " AND ")

	var total int64
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Offset, f.Limit)
	query := fmt.Sprintf(
		"SELECT o.* %s ORDER BY o.created_at DESC OFFSET $%d LIMIT $%d",
		base, len(args)-1, len(args))

	var orders []models.Order
	if err := s.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// GetOrderByID retrieves an order scoped to the requesting user, with
// its items loaded. Orders of other users look like missing orders.
func (s *Store) GetOrderByID(ctx context.Context, orderID, userID int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, `
		SELECT o.* FROM orders o
		JOIN clients c ON c.id = o.client_id
		WHERE o.id = $1 AND c.user_id = $2`, orderID, userID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	err = s.db.SelectContext(ctx, &order.Items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	if err != nil {
		return nil, err
	}

	return &order, nil
}

// UpdateOrderStatus moves an order from one status to another as a
// compare-and-swap: the write only lands while the stored status still
// equals from, so a transition validated against a stale read fails
// with ErrStatusConflict instead of overwriting a concurrent commit.
// When restock is true the quantities of the order's items are
// returned to product stock in the same transaction.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, from, to models.OrderStatus, restock bool) (*models.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var order models.Order
	err = tx.GetContext(ctx, &order, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING *`, to, orderID, from)
	if err == sql.ErrNoRows {
		// distinguish a missing order from a lost race
		var current models.OrderStatus
		err := tx.GetContext(ctx, &current, "SELECT status FROM orders WHERE id = $1", orderID)
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: status is %q, expected %q", ErrStatusConflict, current, from)
	}
	if err != nil {
		return nil, err
	}

	if restock {
		if err := restockItems(ctx, tx, orderID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &order, nil
}

// DeleteOrder removes an order and its items, returning the item
// quantities to product stock in the same transaction. The pending
// check happens under a row lock, so an order that left pending after
// the caller's read fails with ErrStatusConflict instead of being
// deleted and restocked.
func (s *Store) DeleteOrder(ctx context.Context, orderID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status models.OrderStatus
	err = tx.GetContext(ctx, &status,
		"SELECT status FROM orders WHERE id = $1 FOR UPDATE", orderID)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if status != models.OrderStatusPending {
		return fmt.Errorf("%w: status is %q, expected %q",
			ErrStatusConflict, status, models.OrderStatusPending)
	}

	if err := restockItems(ctx, tx, orderID); err != nil {
		return err
	}

	// order_items cascade with the order
	if _, err := tx.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", orderID); err != nil {
		return err
	}

	return tx.Commit()
}

type execGetter interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func restockItems(ctx context.Context, tx execGetter, orderID int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE products p
		SET stock = p.stock + oi.quantity
		FROM order_items oi
		WHERE oi.order_id = $1 AND p.id = oi.product_id`, orderID)
	if err != nil {
		return fmt.Errorf("failed to restore stock: %w", err)
	}
	return nil
}
