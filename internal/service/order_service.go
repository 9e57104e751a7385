package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"order-management/internal/models"
	"order-management/internal/store"
	"order-management/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 200
)

// CatalogStore is the read-only catalog dependency of the order engine
type CatalogStore interface {
	GetClientByIDAndUser(ctx context.Context, id, userID int64) (*models.Client, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
}

// OrderStore is the persistence boundary of the order engine. All
// mutating operations are atomic: either everything is stored or
// nothing is. UpdateOrderStatus writes only while the stored status
// still equals from, and DeleteOrder only while the order is still
// pending; both report a lost race as store.ErrStatusConflict.
type OrderStore interface {
	CreateOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error
	ListOrders(ctx context.Context, userID int64, f models.OrderFilter) ([]models.Order, int64, error)
	GetOrderByID(ctx context.Context, orderID, userID int64) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, from, to models.OrderStatus, restock bool) (*models.Order, error)
	DeleteOrder(ctx context.Context, orderID int64) error
	GetTimeline(ctx context.Context, orderID int64) ([]models.TimelineEntry, error)
}

// OrderCache caches single-order reads
type OrderCache interface {
	GetOrder(ctx context.Context, userID, orderID int64) (*models.Order, bool)
	SetOrder(ctx context.Context, userID int64, order *models.Order)
	InvalidateOrder(ctx context.Context, userID, orderID int64)
}

// EventPublisher publishes order lifecycle events. Publish failures
// are logged and never fail the operation that triggered them.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishOrderDeleted(ctx context.Context, event *models.OrderDeletedEvent) error
}

// OrderService implements order creation, listing, status transitions
// and deletion. It is stateless between calls; all state lives in the
// injected stores.
type OrderService struct {
	orders  OrderStore
	catalog CatalogStore
	cache   OrderCache
	events  EventPublisher
	logger  *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(orders OrderStore, catalog CatalogStore, cache OrderCache, events EventPublisher) *OrderService {
	return &OrderService{
		orders:  orders,
		catalog: catalog,
		cache:   cache,
		events:  events,
		logger:  util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	ClientID int64              `json:"client_id" binding:"required"`
	Items    []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// OrderItemRequest represents one requested line item
type OrderItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

// CreateOrder validates the request and persists a pending order with
// all of its items atomically. Validation is fail-fast: client
// ownership, duplicate products, product existence, then stock.
func (s *OrderService) CreateOrder(ctx context.Context, userID int64, req *CreateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.OrderCreateLatency.Observe(time.Since(start).Seconds())
	}()

	client, err := s.catalog.GetClientByIDAndUser(ctx, req.ClientID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.OrdersRejectedTotal.WithLabelValues("client_not_found").Inc()
			return nil, fmt.Errorf("%w: client %d does not exist or does not belong to user", ErrNotFound, req.ClientID)
		}
		return nil, fmt.Errorf("failed to resolve client: %w", err)
	}

	// binding enforces min=1 at the HTTP layer, but the engine does
	// not rely on it
	if len(req.Items) == 0 {
		util.OrdersRejectedTotal.WithLabelValues("empty_items").Inc()
		return nil, fmt.Errorf("%w: order must contain at least one item", ErrBusinessRule)
	}

	seen := make(map[int64]bool, len(req.Items))
	productIDs := make([]int64, 0, len(req.Items))
	for _, item := range req.Items {
		if seen[item.ProductID] {
			util.OrdersRejectedTotal.WithLabelValues("duplicate_product").Inc()
			return nil, fmt.Errorf("%w: product %d appears more than once", ErrBusinessRule, item.ProductID)
		}
		seen[item.ProductID] = true
		productIDs = append(productIDs, item.ProductID)
	}

	products, err := s.catalog.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve products: %w", err)
	}

	productMap := make(map[int64]*models.Product, len(products))
	for i := range products {
		productMap[products[i].ID] = &products[i]
	}

	if len(products) != len(productIDs) {
		var missing []int64
		for _, id := range productIDs {
			if productMap[id] == nil {
				missing = append(missing, id)
			}
		}
		util.OrdersRejectedTotal.WithLabelValues("product_not_found").Inc()
		return nil, fmt.Errorf("%w: products not found: %v", ErrNotFound, missing)
	}

	var total int64
	items := make([]models.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		product := productMap[item.ProductID]

		if product.Stock < item.Quantity {
			util.OrdersRejectedTotal.WithLabelValues("insufficient_stock").Inc()
			return nil, fmt.Errorf("%w: insufficient stock for product %q: available=%d, requested=%d",
				ErrBusinessRule, product.Name, product.Stock, item.Quantity)
		}

		subtotal := product.Price * int64(item.Quantity)
		items = append(items, models.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
			Subtotal:  subtotal,
		})
		total += subtotal
	}

	order := &models.Order{
		ClientID: client.ID,
		Status:   models.OrderStatusPending,
		Total:    total,
	}

	if err := s.orders.CreateOrderWithItems(ctx, order, items); err != nil {
		// Stock may have moved between the read and the transaction's
		// row-locked re-check.
		if errors.Is(err, store.ErrInsufficientStock) {
			util.OrdersRejectedTotal.WithLabelValues("insufficient_stock").Inc()
			return nil, fmt.Errorf("%w: %v", ErrBusinessRule, err)
		}
		if errors.Is(err, store.ErrNotFound) {
			util.OrdersRejectedTotal.WithLabelValues("product_not_found").Inc()
			return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		util.OrdersRejectedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("client_id", client.ID),
		zap.Int64("total", order.Total))

	event := &models.OrderCreatedEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderCreated),
		OrderID:   order.ID,
		ClientID:  client.ID,
		UserID:    userID,
		Total:     order.Total,
		Items:     itemData(order.Items),
	}
	if err := s.events.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	return order, nil
}

// ListOrders returns one page of the user's orders plus the total
// matching count. Offset and limit are normalized to sane bounds.
func (s *OrderService) ListOrders(ctx context.Context, userID int64, f models.OrderFilter) ([]models.Order, int64, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Limit <= 0 {
		f.Limit = defaultPageLimit
	}
	if f.Limit > maxPageLimit {
		f.Limit = maxPageLimit
	}

	return s.orders.ListOrders(ctx, userID, f)
}

// GetOrder retrieves one order with its items, scoped to the
// requesting user
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	if order, ok := s.cache.GetOrder(ctx, userID, orderID); ok {
		util.OrderCacheHitsTotal.WithLabelValues("hit").Inc()
		return order, nil
	}
	util.OrderCacheHitsTotal.WithLabelValues("miss").Inc()

	order, err := s.orders.GetOrderByID(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		return nil, err
	}

	s.cache.SetOrder(ctx, userID, order)
	return order, nil
}

// UpdateOrderRequest carries the requested target status. A nil status
// makes the update a no-op.
type UpdateOrderRequest struct {
	Status *models.OrderStatus `json:"status"`
}

// UpdateOrderStatus moves an order along the allowed-transition table.
// An omitted target status returns the order unchanged.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, userID, orderID int64, req *UpdateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrderStatus")
	defer span.End()

	order, err := s.orders.GetOrderByID(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		return nil, err
	}

	if req.Status == nil || *req.Status == "" {
		return order, nil
	}
	target := *req.Status

	if !models.ValidStatus(target) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrBusinessRule, target)
	}

	if !models.CanTransition(order.Status, target) {
		return nil, fmt.Errorf("%w: cannot transition from %q to %q, allowed: %v",
			ErrBusinessRule, order.Status, target, models.AllowedTransitions(order.Status))
	}

	// Cancelling returns the reserved quantities to stock.
	restock := target == models.OrderStatusCancelled

	// The store write is conditional on the status we validated
	// against, so a commit landing between our read and write loses
	// cleanly instead of being overwritten.
	updated, err := s.orders.UpdateOrderStatus(ctx, orderID, order.Status, target, restock)
	if err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: order %d was modified concurrently: %v", ErrBusinessRule, orderID, err)
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	updated.Items = order.Items

	s.cache.InvalidateOrder(ctx, userID, orderID)
	util.OrderStatusChangesTotal.WithLabelValues(string(order.Status), string(target)).Inc()
	s.logger.Info("Order status changed",
		zap.Int64("order_id", orderID),
		zap.String("from", string(order.Status)),
		zap.String("to", string(target)))

	event := &models.OrderStatusChangedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:    orderID,
		UserID:     userID,
		FromStatus: string(order.Status),
		ToStatus:   string(target),
	}
	if err := s.events.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
	}

	return updated, nil
}

// DeleteOrder removes an order and its items. Only pending orders may
// be deleted; their stock is returned to the products.
func (s *OrderService) DeleteOrder(ctx context.Context, userID, orderID int64) error {
	ctx, span := util.StartSpan(ctx, "OrderService.DeleteOrder")
	defer span.End()

	order, err := s.orders.GetOrderByID(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		return err
	}

	if order.Status != models.OrderStatusPending {
		return fmt.Errorf("%w: cannot delete order with status %q, only pending orders may be deleted",
			ErrBusinessRule, order.Status)
	}

	if err := s.orders.DeleteOrder(ctx, orderID); err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			return fmt.Errorf("%w: order %d was modified concurrently: %v", ErrBusinessRule, orderID, err)
		}
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		return fmt.Errorf("failed to delete order: %w", err)
	}

	s.cache.InvalidateOrder(ctx, userID, orderID)
	util.OrdersDeletedTotal.Inc()
	s.logger.Info("Order deleted", zap.Int64("order_id", orderID))

	event := &models.OrderDeletedEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderDeleted),
		OrderID:   orderID,
		UserID:    userID,
	}
	if err := s.events.PublishOrderDeleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderDeleted event", zap.Error(err))
	}

	return nil
}

// GetOrderTimeline returns the recorded lifecycle events of one of the
// user's orders
func (s *OrderService) GetOrderTimeline(ctx context.Context, userID, orderID int64) ([]models.TimelineEntry, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrderTimeline")
	defer span.End()

	if _, err := s.orders.GetOrderByID(ctx, orderID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		return nil, err
	}

	return s.orders.GetTimeline(ctx, orderID)
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

func itemData(items []models.OrderItem) []models.OrderItemData {
	data := make([]models.OrderItemData, 0, len(items))
	for _, it := range items {
		data = append(data, models.OrderItemData{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return data
}
