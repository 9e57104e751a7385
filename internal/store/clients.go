package store

import (
	"context"
	"database/sql"

	"order-management/internal/models"
)

// CreateClient creates a new client owned by a user
func (s *Store) CreateClient(ctx context.Context, client *models.Client) error {
	query := `
		INSERT INTO clients (name, email, phone, address, user_id, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id, active, created_at`

	return s.db.GetContext(ctx, client, query,
		client.Name, client.Email, client.Phone, client.Address, client.UserID)
}

// GetClientByIDAndUser retrieves a client scoped to its owning user
func (s *Store) GetClientByIDAndUser(ctx context.Context, id, userID int64) (*models.Client, error) {
	var client models.Client
	err := s.db.GetContext(ctx, &client,
		"SELECT * FROM clients WHERE id = $1 AND user_id = $2", id, userID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// GetClientByEmail retrieves a client by its unique email
func (s *Store) GetClientByEmail(ctx context.Context, email string) (*models.Client, error) {
	var client models.Client
	err := s.db.GetContext(ctx, &client, "SELECT * FROM clients WHERE email = $1", email)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// GetClients retrieves active clients of a user with pagination
func (s *Store) GetClients(ctx context.Context, userID int64, offset, limit int) ([]models.Client, error) {
	var clients []models.Client
	err := s.db.SelectContext(ctx, &clients,
		"SELECT * FROM clients WHERE user_id = $1 AND active ORDER BY id OFFSET $2 LIMIT $3",
		userID, offset, limit)
	return clients, err
}

// UpdateClient updates a client row
func (s *Store) UpdateClient(ctx context.Context, client *models.Client) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE clients SET name = $1, email = $2, phone = $3, address = $4, active = $5 WHERE id = $6",
		client.Name, client.Email, client.Phone, client.Address, client.Active, client.ID)
	return err
}

// DeleteClient removes a client. Fails with ErrRestricted while any
// order references it.
func (s *Store) DeleteClient(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM clients WHERE id = $1", id)
	if err != nil {
		return restrictErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
