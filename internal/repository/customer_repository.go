package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/ImageForge/internal/models"
)

type CustomerRepository struct {
	db *sql.DB
}

func NewCustomerRepository(db *sql.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) FindByID(ctx context.Context, id string) (*models.Customer, error) {
	const query = `
SELECT id, COALESCE(email, ''), COALESCE(stripe_customer_id, ''), role, credits_balance, created_at, updated_at
FROM customers WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	var c models.Customer
	var role string
	if err := row.Scan(&c.ID, &c.Email, &c.StripeCustomerID, &role, &c.CreditsBalance, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan customer: %w", err)
	}
	c.Role = models.Role(role)
	return &c, nil
}

func (r *CustomerRepository) FindByStripeCustomerID(ctx context.Context, stripeID string) (*models.Customer, error) {
	const query = `SELECT id FROM customers WHERE stripe_customer_id = ? LIMIT 1`
	var id string
	if err := r.db.QueryRowContext(ctx, query, stripeID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find customer by stripe id: %w", err)
	}
	return r.FindByID(ctx, id)
}

// Create inserts a customer row. An existing row with the same id is left as
// is apart from filling in a missing email or Stripe id.
func (r *CustomerRepository) Create(ctx context.Context, c *models.Customer) error {
	role := c.Role
	if role == "" {
		role = models.RoleUser
	}
	const query = `
INSERT INTO customers (id, email, stripe_customer_id, role)
VALUES (?, NULLIF(?, ''), NULLIF(?, ''), ?)
ON DUPLICATE KEY UPDATE
    email = COALESCE(email, VALUES(email)),
    stripe_customer_id = COALESCE(stripe_customer_id, VALUES(stripe_customer_id))`
	if _, err := r.db.ExecContext(ctx, query, c.ID, c.Email, c.StripeCustomerID, string(role)); err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	c.Role = role
	return nil
}

// UpsertRole sets the role, creating the row when the user has none yet.
func (r *CustomerRepository) UpsertRole(ctx context.Context, id string, role models.Role) error {
	const query = `
INSERT INTO customers (id, role) VALUES (?, ?)
ON DUPLICATE KEY UPDATE role = VALUES(role), updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, id, string(role)); err != nil {
		return fmt.Errorf("upsert customer role: %w", err)
	}
	return nil
}

func (r *CustomerRepository) SetStripeCustomerID(ctx context.Context, id, stripeID string) error {
	const query = `UPDATE customers SET stripe_customer_id = ?, updated_at = NOW() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, stripeID, id); err != nil {
		return fmt.Errorf("set stripe customer id: %w", err)
	}
	return nil
}
