package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"riad/internal/domain"
	"riad/internal/models"
)

func (db *DB) CreateCustomer(ctx context.Context, c *models.Customer) error {
	query := `INSERT INTO customers (user_id, name, email, phone, address, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query, c.UserID, c.Name, c.Email, c.Phone, c.Address, now, now)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

func (db *DB) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	c := &models.Customer{}
	query := `SELECT id, user_id, name, email, phone, address, created_at, updated_at FROM customers WHERE id = ?`
	err := db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.UserID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("customer %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return c, nil
}
