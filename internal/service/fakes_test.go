package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"order-management/internal/models"
	"order-management/internal/store"
)

// memStore is an in-memory stand-in for the sqlx store, good enough to
// exercise the service rules without a database.
type memStore struct {
	users    map[int64]*models.User
	clients  map[int64]*models.Client
	products map[int64]*models.Product
	orders   map[int64]*models.Order
	timeline map[int64][]models.TimelineEntry
	nextID   int64
	now      time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[int64]*models.User),
		clients:  make(map[int64]*models.Client),
		products: make(map[int64]*models.Product),
		orders:   make(map[int64]*models.Order),
		timeline: make(map[int64][]models.TimelineEntry),
		now:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

// tick returns a strictly increasing clock so created_at ordering is
// deterministic
func (m *memStore) tick() time.Time {
	m.now = m.now.Add(time.Second)
	return m.now
}

func (m *memStore) addUser(email string) *models.User {
	u := &models.User{ID: m.id(), Email: email, CreatedAt: m.tick()}
	m.users[u.ID] = u
	return u
}

func (m *memStore) addClient(userID int64, name, email string) *models.Client {
	c := &models.Client{ID: m.id(), Name: name, Email: email, UserID: userID, Active: true, CreatedAt: m.tick()}
	m.clients[c.ID] = c
	return c
}

func (m *memStore) addProduct(name string, price int64, stock int) *models.Product {
	p := &models.Product{ID: m.id(), Name: name, Price: price, Stock: stock, CreatedAt: m.tick()}
	m.products[p.ID] = p
	return p
}

func (m *memStore) CreateUser(_ context.Context, user *models.User) error {
	user.ID = m.id()
	user.CreatedAt = m.tick()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memStore) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) GetClientByIDAndUser(_ context.Context, id, userID int64) (*models.Client, error) {
	c, ok := m.clients[id]
	if !ok || c.UserID != userID {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) GetClientByEmail(_ context.Context, email string) (*models.Client, error) {
	for _, c := range m.clients {
		if c.Email == email {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) CreateClient(_ context.Context, client *models.Client) error {
	client.ID = m.id()
	client.Active = true
	client.CreatedAt = m.tick()
	cp := *client
	m.clients[client.ID] = &cp
	return nil
}

func (m *memStore) GetClients(_ context.Context, userID int64, offset, limit int) ([]models.Client, error) {
	var out []models.Client
	for _, c := range m.clients {
		if c.UserID == userID && c.Active {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, offset, limit), nil
}

func (m *memStore) UpdateClient(_ context.Context, client *models.Client) error {
	cp := *client
	m.clients[client.ID] = &cp
	return nil
}

func (m *memStore) DeleteClient(_ context.Context, id int64) error {
	for _, o := range m.orders {
		if o.ClientID == id {
			return store.ErrRestricted
		}
	}
	if _, ok := m.clients[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.clients, id)
	return nil
}

func (m *memStore) GetProductsByIDs(_ context.Context, ids []int64) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memStore) CreateProduct(_ context.Context, product *models.Product) error {
	product.ID = m.id()
	product.CreatedAt = m.tick()
	cp := *product
	m.products[product.ID] = &cp
	return nil
}

func (m *memStore) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GetProductByName(_ context.Context, name string) (*models.Product, error) {
	for _, p := range m.products {
		if p.Name == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) GetProducts(_ context.Context, offset, limit int) ([]models.Product, error) {
	var out []models.Product
	for _, p := range m.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, offset, limit), nil
}

func (m *memStore) UpdateProduct(_ context.Context, product *models.Product) error {
	cp := *product
	m.products[product.ID] = &cp
	return nil
}

func (m *memStore) DeleteProduct(_ context.Context, id int64) error {
	for _, o := range m.orders {
		for _, it := range o.Items {
			if it.ProductID == id {
				return store.ErrRestricted
			}
		}
	}
	if _, ok := m.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *memStore) CreateOrderWithItems(_ context.Context, order *models.Order, items []models.OrderItem) error {
	for _, it := range items {
		p, ok := m.products[it.ProductID]
		if !ok {
			return fmt.Errorf("%w: product %d", store.ErrNotFound, it.ProductID)
		}
		if p.Stock < it.Quantity {
			return fmt.Errorf("%w: product %d: available=%d, requested=%d",
				store.ErrInsufficientStock, it.ProductID, p.Stock, it.Quantity)
		}
	}
	for _, it := range items {
		m.products[it.ProductID].Stock -= it.Quantity
	}

	order.ID = m.id()
	order.CreatedAt = m.tick()
	order.UpdatedAt = order.CreatedAt
	for i := range items {
		items[i].ID = m.id()
		items[i].OrderID = order.ID
	}
	order.Items = items

	cp := *order
	cp.Items = append([]models.OrderItem(nil), items...)
	m.orders[order.ID] = &cp
	return nil
}

func (m *memStore) ListOrders(_ context.Context, userID int64, f models.OrderFilter) ([]models.Order, int64, error) {
	var matched []models.Order
	for _, o := range m.orders {
		c, ok := m.clients[o.ClientID]
		if !ok || c.UserID != userID {
			continue
		}
		if f.ClientID != nil && o.ClientID != *f.ClientID {
			continue
		}
		if f.Status != "" && string(o.Status) != f.Status {
			continue
		}
		if f.StartDate != nil && o.CreatedAt.Before(*f.StartDate) {
			continue
		}
		if f.EndDate != nil && o.CreatedAt.After(*f.EndDate) {
			continue
		}
		matched = append(matched, *o)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return page(matched, f.Offset, f.Limit), int64(len(matched)), nil
}

func (m *memStore) GetOrderByID(_ context.Context, orderID, userID int64) (*models.Order, error) {
	o, ok := m.orders[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	c, ok := m.clients[o.ClientID]
	if !ok || c.UserID != userID {
		return nil, store.ErrNotFound
	}
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	return &cp, nil
}

func (m *memStore) UpdateOrderStatus(_ context.Context, orderID int64, from, to models.OrderStatus, restock bool) (*models.Order, error) {
	o, ok := m.orders[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if o.Status != from {
		return nil, fmt.Errorf("%w: status is %q, expected %q", store.ErrStatusConflict, o.Status, from)
	}
	o.Status = to
	o.UpdatedAt = m.tick()
	if restock {
		m.restock(orderID)
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) DeleteOrder(_ context.Context, orderID int64) error {
	o, ok := m.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	if o.Status != models.OrderStatusPending {
		return fmt.Errorf("%w: status is %q, expected %q",
			store.ErrStatusConflict, o.Status, models.OrderStatusPending)
	}
	m.restock(orderID)
	delete(m.orders, orderID)
	return nil
}

func (m *memStore) restock(orderID int64) {
	for _, it := range m.orders[orderID].Items {
		if p, ok := m.products[it.ProductID]; ok {
			p.Stock += it.Quantity
		}
	}
}

func (m *memStore) GetTimeline(_ context.Context, orderID int64) ([]models.TimelineEntry, error) {
	return m.timeline[orderID], nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// raceStore interleaves a competing commit between the service's
// validation read and its subsequent write
type raceStore struct {
	*memStore
	afterRead func()
}

func (r *raceStore) GetOrderByID(ctx context.Context, orderID, userID int64) (*models.Order, error) {
	o, err := r.memStore.GetOrderByID(ctx, orderID, userID)
	if r.afterRead != nil {
		hook := r.afterRead
		r.afterRead = nil
		hook()
	}
	return o, err
}

// memCache records cache traffic
type memCache struct {
	entries map[string]*models.Order
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]*models.Order)}
}

func cacheKey(userID, orderID int64) string {
	return fmt.Sprintf("%d/%d", userID, orderID)
}

func (c *memCache) GetOrder(_ context.Context, userID, orderID int64) (*models.Order, bool) {
	o, ok := c.entries[cacheKey(userID, orderID)]
	return o, ok
}

func (c *memCache) SetOrder(_ context.Context, userID int64, order *models.Order) {
	c.entries[cacheKey(userID, order.ID)] = order
}

func (c *memCache) InvalidateOrder(_ context.Context, userID, orderID int64) {
	delete(c.entries, cacheKey(userID, orderID))
}

// memPublisher records published events
type memPublisher struct {
	created       []*models.OrderCreatedEvent
	statusChanged []*models.OrderStatusChangedEvent
	deleted       []*models.OrderDeletedEvent
}

func (p *memPublisher) PublishOrderCreated(_ context.Context, e *models.OrderCreatedEvent) error {
	p.created = append(p.created, e)
	return nil
}

func (p *memPublisher) PublishOrderStatusChanged(_ context.Context, e *models.OrderStatusChangedEvent) error {
	p.statusChanged = append(p.statusChanged, e)
	return nil
}

func (p *memPublisher) PublishOrderDeleted(_ context.Context, e *models.OrderDeletedEvent) error {
	p.deleted = append(p.deleted, e)
	return nil
}
