package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProduct(t *testing.T) {
	st := newMemStore()
	svc := NewProductService(st)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, &CreateProductRequest{
		Name:  "Widget",
		Price: 1999,
		Stock: 10,
	})
	require.NoError(t, err)
	assert.NotZero(t, product.ID)

	_, err = svc.CreateProduct(ctx, &CreateProductRequest{Name: "Widget", Price: 500})
	assert.ErrorIs(t, err, ErrBusinessRule)
}

func TestUpdateProductPartial(t *testing.T) {
	st := newMemStore()
	svc := NewProductService(st)
	product := st.addProduct("Widget", 1999, 10)
	ctx := context.Background()

	stock := 25
	updated, err := svc.UpdateProduct(ctx, product.ID, &UpdateProductRequest{Stock: &stock})
	require.NoError(t, err)
	assert.Equal(t, 25, updated.Stock)
	assert.Equal(t, int64(1999), updated.Price)
	assert.Equal(t, "Widget", updated.Name)
}

func TestUpdateProductNameTaken(t *testing.T) {
	st := newMemStore()
	svc := NewProductService(st)
	st.addProduct("Widget", 1999, 10)
	gadget := st.addProduct("Gadget", 500, 10)
	ctx := context.Background()

	taken := "Widget"
	_, err := svc.UpdateProduct(ctx, gadget.ID, &UpdateProductRequest{Name: &taken})
	assert.ErrorIs(t, err, ErrBusinessRule)
}

func TestDeleteProductReferencedByOrder(t *testing.T) {
	st := newMemStore()
	svc := NewProductService(st)
	user := st.addUser("owner@example.com")
	client := st.addClient(user.ID, "Acme Corp", "acme@example.com")
	product := st.addProduct("Widget", 1000, 5)
	ctx := context.Background()

	orders := NewOrderService(st, st, newMemCache(), &memPublisher{})
	_, err := orders.CreateOrder(ctx, user.ID, &CreateOrderRequest{
		ClientID: client.ID,
		Items:    []OrderItemRequest{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	err = svc.DeleteProduct(ctx, product.ID)
	assert.ErrorIs(t, err, ErrBusinessRule)
	assert.Contains(t, st.products, product.ID)
}

func TestDeleteProduct(t *testing.T) {
	st := newMemStore()
	svc := NewProductService(st)
	product := st.addProduct("Widget", 1000, 5)
	ctx := context.Background()

	err := svc.DeleteProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.NotContains(t, st.products, product.ID)

	err = svc.DeleteProduct(ctx, product.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetAndListProducts(t *testing.T) {
	st := newMemStore()
	svc := NewProductService(st)
	widget := st.addProduct("Widget", 1000, 5)
	st.addProduct("Gadget", 500, 3)
	ctx := context.Background()

	got, err := svc.GetProduct(ctx, widget.ID)
	require.NoError(t, err)
	assert.Equal(t, "Widget", got.Name)

	_, err = svc.GetProduct(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	products, err := svc.ListProducts(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, products, 2)

	products, err = svc.ListProducts(ctx, 1, 1)
	require.NoError(t, err)
	assert.Len(t, products, 1)
}
