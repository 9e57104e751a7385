package service

import (
	"context"
	"errors"
	"fmt"

	"order-management/internal/models"
	"order-management/internal/store"
	"order-management/internal/util"

	"go.uber.org/zap"
)

// ProductStore is the persistence dependency of the product service
type ProductStore interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProductByName(ctx context.Context, name string) (*models.Product, error)
	GetProducts(ctx context.Context, offset, limit int) ([]models.Product, error)
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id int64) error
}

// ProductService manages the product catalog
type ProductService struct {
	products ProductStore
	logger   *zap.Logger
}

// NewProductService creates a new product service
func NewProductService(products ProductStore) *ProductService {
	return &ProductService{
		products: products,
		logger:   util.GetLogger(),
	}
}

// CreateProductRequest represents a request to add a product. Price is
// in minor currency units.
type CreateProductRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Price       int64  `json:"price" binding:"required,gt=0"`
	Stock       int    `json:"stock" binding:"min=0"`
}

// CreateProduct adds a product to the catalog. Product names are
// unique.
func (s *ProductService) CreateProduct(ctx context.Context, req *CreateProductRequest) (*models.Product, error) {
	if err := s.checkNameFree(ctx, req.Name, 0); err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
	}
	if err := s.products.CreateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created",
		zap.Int64("product_id", product.ID),
		zap.String("name", product.Name))
	return product, nil
}

// GetProduct retrieves a product by ID
func (s *ProductService) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	product, err := s.products.GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: product %d", ErrNotFound, productID)
		}
		return nil, err
	}
	return product, nil
}

// ListProducts returns products with pagination
func (s *ProductService) ListProducts(ctx context.Context, offset, limit int) ([]models.Product, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > maxPageLimit {
		limit = defaultPageLimit
	}
	return s.products.GetProducts(ctx, offset, limit)
}

// UpdateProductRequest carries the fields to change; nil fields are
// left untouched
type UpdateProductRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Price       *int64  `json:"price" binding:"omitempty,gt=0"`
	Stock       *int    `json:"stock" binding:"omitempty,min=0"`
}

// UpdateProduct updates a product
func (s *ProductService) UpdateProduct(ctx context.Context, productID int64, req *UpdateProductRequest) (*models.Product, error) {
	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil && *req.Name != product.Name {
		if err := s.checkNameFree(ctx, *req.Name, product.ID); err != nil {
			return nil, err
		}
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}

	if err := s.products.UpdateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return product, nil
}

// DeleteProduct removes a product. Products referenced by order items
// cannot be removed.
func (s *ProductService) DeleteProduct(ctx context.Context, productID int64) error {
	if err := s.products.DeleteProduct(ctx, productID); err != nil {
		if errors.Is(err, store.ErrRestricted) {
			return fmt.Errorf("%w: product %d is referenced by orders", ErrBusinessRule, productID)
		}
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: product %d", ErrNotFound, productID)
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

func (s *ProductService) checkNameFree(ctx context.Context, name string, selfID int64) error {
	existing, err := s.products.GetProductByName(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to check product name: %w", err)
	}
	if existing.ID != selfID {
		return fmt.Errorf("%w: a product named %q already exists", ErrBusinessRule, name)
	}
	return nil
}
