package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/digkill/ImageForge/internal/models"
)

const subscriptionColumns = `
s.id, s.user_id, s.status, s.price_id, s.quantity, s.cancel_at_period_end, s.created,
s.current_period_start, s.current_period_end, s.ended_at,
pr.id, pr.unit_amount, pr.currency, COALESCE(pr.` + "`interval`" + `, ''), pr.interval_count, pr.active,
p.id, p.name, COALESCE(p.description, ''), p.credits`

// orderSortColumns maps the accepted sort keys to SQL columns.
var orderSortColumns = map[string]string{
	"created":  "s.created",
	"status":   "s.status",
	"ended_at": "s.ended_at",
}

type SubscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// ListActiveByUser returns trialing and active subscriptions with their
// price and product.
func (r *SubscriptionRepository) ListActiveByUser(ctx context.Context, userID string) ([]models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
FROM subscriptions s
JOIN prices pr ON pr.id = s.price_id
JOIN products p ON p.id = pr.product_id
WHERE s.user_id = ? AND s.status IN ('trialing', 'active')
ORDER BY s.created DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// Upsert stores the latest state of a subscription.
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub models.Subscription) error {
	const query = `
INSERT INTO subscriptions (id, user_id, status, price_id, quantity, cancel_at_period_end, created, current_period_start, current_period_end, ended_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    status = VALUES(status), price_id = VALUES(price_id), quantity = VALUES(quantity),
    cancel_at_period_end = VALUES(cancel_at_period_end),
    current_period_start = VALUES(current_period_start), current_period_end = VALUES(current_period_end),
    ended_at = VALUES(ended_at)`
	created := sub.Created
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, query, sub.ID, sub.UserID, sub.Status, sub.PriceID, sub.Quantity, sub.CancelAtPeriodEnd,
		created, sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.EndedAt)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// Link records a subscription created by a checkout. An existing row only
// gets its owner set, so state from subscription events is kept.
func (r *SubscriptionRepository) Link(ctx context.Context, sub models.Subscription) error {
	const query = `
INSERT INTO subscriptions (id, user_id, status, price_id, quantity, cancel_at_period_end, created)
VALUES (?, ?, ?, ?, ?, 0, ?)
ON DUPLICATE KEY UPDATE user_id = VALUES(user_id)`
	created := sub.Created
	if created.IsZero() {
		created = time.Now().UTC()
	}
	if _, err := r.db.ExecContext(ctx, query, sub.ID, sub.UserID, sub.Status, sub.PriceID, sub.Quantity, created); err != nil {
		return fmt.Errorf("link subscription: %w", err)
	}
	return nil
}

// ListOrders pages subscriptions for the admin view. The returned total
// counts rows matching the same filters.
func (r *SubscriptionRepository) ListOrders(ctx context.Context, q models.OrderQuery) ([]models.Order, int, error) {
	var (
		where []string
		args  []any
	)
	if q.StatusFilter != "" {
		where = append(where, "s.status = ?")
		args = append(args, q.StatusFilter)
	}
	if len(q.UserIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(q.UserIDs)), ", ")
		where = append(where, "s.user_id IN ("+placeholders+")")
		for _, id := range q.UserIDs {
			args = append(args, id)
		}
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM subscriptions s` + clause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	column, ok := orderSortColumns[q.SortBy]
	direction := "DESC"
	if !ok {
		column = orderSortColumns["created"]
	} else if q.Ascending {
		direction = "ASC"
	}

	listQuery := `SELECT ` + subscriptionColumns + `
FROM subscriptions s
JOIN prices pr ON pr.id = s.price_id
JOIN products p ON p.id = pr.product_id` + clause + `
ORDER BY ` + column + ` ` + direction + `
LIMIT ? OFFSET ?`
	pageArgs := append(append([]any{}, args...), q.Limit, (q.Page-1)*q.Limit)
	rows, err := r.db.QueryContext(ctx, listQuery, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, toOrder(sub))
	}
	return orders, total, rows.Err()
}

func toOrder(sub models.Subscription) models.Order {
	o := models.Order{
		ID:                 sub.ID,
		UserID:             sub.UserID,
		Status:             sub.Status,
		CreatedAt:          sub.Created,
		EndedAt:            sub.EndedAt,
		ProductName:        "Unknown Product",
		Currency:           "usd",
		Quantity:           sub.Quantity,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
	}
	if o.Quantity == 0 {
		o.Quantity = 1
	}
	if sub.Product != nil && sub.Product.Name != "" {
		o.ProductName = sub.Product.Name
	}
	if sub.Price != nil {
		o.PriceAmount = sub.Price.UnitAmount
		if sub.Price.Currency != "" {
			o.Currency = sub.Price.Currency
		}
		if sub.Price.Interval != "" {
			interval := sub.Price.Interval
			o.Interval = &interval
		}
	}
	return o
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (models.Subscription, error) {
	var (
		sub                    models.Subscription
		price                  models.Price
		product                models.Product
		periodStart, periodEnd sql.NullTime
		endedAt                sql.NullTime
	)
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.Status, &sub.PriceID, &sub.Quantity, &sub.CancelAtPeriodEnd, &sub.Created,
		&periodStart, &periodEnd, &endedAt,
		&price.ID, &price.UnitAmount, &price.Currency, &price.Interval, &price.IntervalCount, &price.Active,
		&product.ID, &product.Name, &product.Description, &product.Credits); err != nil {
		return models.Subscription{}, fmt.Errorf("scan subscription: %w", err)
	}
	sub.CurrentPeriodStart = nullTime(periodStart)
	sub.CurrentPeriodEnd = nullTime(periodEnd)
	sub.EndedAt = nullTime(endedAt)
	price.ProductID = product.ID
	sub.Price = &price
	sub.Product = &product
	return sub, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
