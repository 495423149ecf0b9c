package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/digkill/ImageForge/internal/models"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// ListActive returns active products with only their active prices attached.
func (r *ProductRepository) ListActive(ctx context.Context) ([]models.Product, error) {
	const query = `
SELECT p.id, p.name, COALESCE(p.description, ''), COALESCE(p.image, ''), p.active, p.credits, p.metadata,
       pr.id, pr.active, pr.unit_amount, pr.currency, COALESCE(pr.` + "`interval`" + `, ''), pr.interval_count, pr.type
FROM products p
LEFT JOIN prices pr ON pr.product_id = p.id AND pr.active = 1
WHERE p.active = 1
ORDER BY p.id ASC, pr.unit_amount ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	index := map[string]int{}
	for rows.Next() {
		var (
			p        models.Product
			metadata sql.NullString
			priceID  sql.NullString
			pActive  sql.NullBool
			amount   sql.NullInt64
			currency sql.NullString
			interval sql.NullString
			count    sql.NullInt64
			kind     sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Image, &p.Active, &p.Credits, &metadata,
			&priceID, &pActive, &amount, &currency, &interval, &count, &kind); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}

		i, seen := index[p.ID]
		if !seen {
			p.Metadata = decodeMetadata(metadata)
			products = append(products, p)
			i = len(products) - 1
			index[p.ID] = i
		}
		if priceID.Valid {
			products[i].Prices = append(products[i].Prices, models.Price{
				ID:            priceID.String,
				ProductID:     p.ID,
				Active:        pActive.Bool,
				UnitAmount:    amount.Int64,
				Currency:      currency.String,
				Interval:      interval.String,
				IntervalCount: int(count.Int64),
				Type:          kind.String,
			})
		}
	}
	return products, rows.Err()
}

// FindByPriceID returns the product a price belongs to.
func (r *ProductRepository) FindByPriceID(ctx context.Context, priceID string) (*models.Product, error) {
	const query = `
SELECT p.id, p.name, COALESCE(p.description, ''), COALESCE(p.image, ''), p.active, p.credits, p.metadata
FROM products p
JOIN prices pr ON pr.product_id = p.id
WHERE pr.id = ?`
	var p models.Product
	var metadata sql.NullString
	err := r.db.QueryRowContext(ctx, query, priceID).Scan(&p.ID, &p.Name, &p.Description, &p.Image, &p.Active, &p.Credits, &metadata)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find product by price: %w", err)
	}
	p.Metadata = decodeMetadata(metadata)
	return &p, nil
}

// UpsertProduct mirrors a billing-provider product. Credits come from the
// product metadata and are kept when the update carries none.
func (r *ProductRepository) UpsertProduct(ctx context.Context, p models.Product) error {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("encode product metadata: %w", err)
	}
	const query = `
INSERT INTO products (id, name, description, image, active, credits, metadata)
VALUES (?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?)
ON DUPLICATE KEY UPDATE
    name = VALUES(name), description = VALUES(description), image = VALUES(image),
    active = VALUES(active), credits = IF(VALUES(credits) > 0, VALUES(credits), credits),
    metadata = VALUES(metadata), updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.Description, p.Image, p.Active, p.Credits, string(metadata)); err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

func (r *ProductRepository) UpsertPrice(ctx context.Context, p models.Price) error {
	const query = `
INSERT INTO prices (id, product_id, active, unit_amount, currency, type, ` + "`interval`" + `, interval_count)
VALUES (?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?)
ON DUPLICATE KEY UPDATE
    product_id = VALUES(product_id), active = VALUES(active), unit_amount = VALUES(unit_amount),
    currency = VALUES(currency), type = VALUES(type), ` + "`interval`" + ` = VALUES(` + "`interval`" + `),
    interval_count = VALUES(interval_count)`
	if _, err := r.db.ExecContext(ctx, query, p.ID, p.ProductID, p.Active, p.UnitAmount, p.Currency, p.Type, p.Interval, p.IntervalCount); err != nil {
		return fmt.Errorf("upsert price: %w", err)
	}
	return nil
}

func decodeMetadata(raw sql.NullString) map[string]string {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw.String), &m); err != nil {
		return nil
	}
	return m
}
