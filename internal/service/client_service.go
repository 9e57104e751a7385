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

// ClientStore is the persistence dependency of the client service
type ClientStore interface {
	CreateClient(ctx context.Context, client *models.Client) error
	GetClientByIDAndUser(ctx context.Context, id, userID int64) (*models.Client, error)
	GetClientByEmail(ctx context.Context, email string) (*models.Client, error)
	GetClients(ctx context.Context, userID int64, offset, limit int) ([]models.Client, error)
	UpdateClient(ctx context.Context, client *models.Client) error
	DeleteClient(ctx context.Context, id int64) error
}

// ClientService manages client records. Visibility is scoped to the
// owning user.
type ClientService struct {
	clients ClientStore
	logger  *zap.Logger
}

// NewClientService creates a new client service
func NewClientService(clients ClientStore) *ClientService {
	return &ClientService{
		clients: clients,
		logger:  util.GetLogger(),
	}
}

// CreateClientRequest represents a request to register a client
type CreateClientRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// CreateClient registers a new client for the user. Client emails are
// globally unique.
func (s *ClientService) CreateClient(ctx context.Context, userID int64, req *CreateClientRequest) (*models.Client, error) {
	if err := s.checkEmailFree(ctx, req.Email, 0); err != nil {
		return nil, err
	}

	client := &models.Client{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
		UserID:  userID,
	}
	if err := s.clients.CreateClient(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	s.logger.Info("Client created", zap.Int64("client_id", client.ID), zap.Int64("user_id", userID))
	return client, nil
}

// GetClient retrieves one of the user's clients
func (s *ClientService) GetClient(ctx context.Context, userID, clientID int64) (*models.Client, error) {
	client, err := s.clients.GetClientByIDAndUser(ctx, clientID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: client %d", ErrNotFound, clientID)
		}
		return nil, err
	}
	return client, nil
}

// ListClients returns the user's active clients with pagination
func (s *ClientService) ListClients(ctx context.Context, userID int64, offset, limit int) ([]models.Client, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > maxPageLimit {
		limit = defaultPageLimit
	}
	return s.clients.GetClients(ctx, userID, offset, limit)
}

// UpdateClientRequest carries the fields to change; nil fields are
// left untouched
type UpdateClientRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email" binding:"omitempty,email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

// UpdateClient updates one of the user's clients
func (s *ClientService) UpdateClient(ctx context.Context, userID, clientID int64, req *UpdateClientRequest) (*models.Client, error) {
	client, err := s.GetClient(ctx, userID, clientID)
	if err != nil {
		return nil, err
	}

	if req.Email != nil && *req.Email != client.Email {
		if err := s.checkEmailFree(ctx, *req.Email, client.ID); err != nil {
			return nil, err
		}
		client.Email = *req.Email
	}
	if req.Name != nil {
		client.Name = *req.Name
	}
	if req.Phone != nil {
		client.Phone = *req.Phone
	}
	if req.Address != nil {
		client.Address = *req.Address
	}

	if err := s.clients.UpdateClient(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to update client: %w", err)
	}
	return client, nil
}

// DeactivateClient soft-deletes a client: it disappears from listings
// but its orders remain intact
func (s *ClientService) DeactivateClient(ctx context.Context, userID, clientID int64) (*models.Client, error) {
	client, err := s.GetClient(ctx, userID, clientID)
	if err != nil {
		return nil, err
	}

	client.Active = false
	if err := s.clients.UpdateClient(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to deactivate client: %w", err)
	}

	s.logger.Info("Client deactivated", zap.Int64("client_id", clientID))
	return client, nil
}

// DeleteClient removes a client permanently. Clients referenced by
// orders cannot be removed.
func (s *ClientService) DeleteClient(ctx context.Context, userID, clientID int64) error {
	if _, err := s.GetClient(ctx, userID, clientID); err != nil {
		return err
	}

	if err := s.clients.DeleteClient(ctx, clientID); err != nil {
		if errors.Is(err, store.ErrRestricted) {
			return fmt.Errorf("%w: client %d still has orders", ErrBusinessRule, clientID)
		}
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: client %d", ErrNotFound, clientID)
		}
		return fmt.Errorf("failed to delete client: %w", err)
	}
	return nil
}

func (s *ClientService) checkEmailFree(ctx context.Context, email string, selfID int64) error {
	existing, err := s.clients.GetClientByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to check client email: %w", err)
	}
	if existing.ID != selfID {
		return fmt.Errorf("%w: email %q already registered for another client", ErrBusinessRule, email)
	}
	return nil
}
