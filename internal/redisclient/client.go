package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"order-management/internal/models"
	"order-management/internal/util"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Client is a cache-aside store for single-order reads. Keys carry the
// requesting user id, so one user's cache never answers for another.
type Client struct {
	rdb      *redis.Client
	orderTTL time.Duration
	logger   *zap.Logger
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int, orderTTL time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:      rdb,
		orderTTL: orderTTL,
		logger:   util.GetLogger(),
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func orderCacheKey(userID, orderID int64) string {
	return fmt.Sprintf("user:%d:order:%d", userID, orderID)
}

// GetOrder returns a cached order, if present. Cache failures count as
// misses.
func (c *Client) GetOrder(ctx context.Context, userID, orderID int64) (*models.Order, bool) {
	data, err := c.rdb.Get(ctx, orderCacheKey(userID, orderID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Order cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var order models.Order
	if err := json.Unmarshal(data, &order); err != nil {
		c.logger.Warn("Order cache entry corrupt, dropping", zap.Error(err))
		c.rdb.Del(ctx, orderCacheKey(userID, orderID))
		return nil, false
	}
	return &order, true
}

// SetOrder caches an order for its owning user
func (c *Client) SetOrder(ctx context.Context, userID int64, order *models.Order) {
	data, err := json.Marshal(order)
	if err != nil {
		c.logger.Warn("Failed to marshal order for cache", zap.Error(err))
		return
	}

	if err := c.rdb.Set(ctx, orderCacheKey(userID, order.ID), data, c.orderTTL).Err(); err != nil {
		c.logger.Warn("Order cache write failed", zap.Error(err))
	}
}

// InvalidateOrder drops a cached order after a mutation
func (c *Client) InvalidateOrder(ctx context.Context, userID, orderID int64) {
	if err := c.rdb.Del(ctx, orderCacheKey(userID, orderID)).Err(); err != nil {
		c.logger.Warn("Order cache invalidation failed", zap.Error(err))
	}
}
