package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/go-sql-driver/mysql"

	"github.com/digkill/ImageForge/internal/models"
)

const mysqlDuplicateEntry = 1062

// MySQL keeps balances on customers.credits_balance and the journal in credits.
type MySQL struct {
	db *sql.DB
}

func NewMySQL(db *sql.DB) *MySQL {
	return &MySQL{db: db}
}

func (l *MySQL) Balance(ctx context.Context, userID string) (int, error) {
	const query = `SELECT credits_balance FROM customers WHERE id = ?`
	var balance int
	if err := l.db.QueryRowContext(ctx, query, userID).Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("read credits balance: %w", err)
	}
	return balance, nil
}

func (l *MySQL) Debit(ctx context.Context, userID string, amount int, memo string) (bool, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin debit: %w", err)
	}
	defer tx.Rollback()

	const update = `
UPDATE customers SET credits_balance = credits_balance - ?, updated_at = NOW()
WHERE id = ? AND credits_balance >= ?`
	res, err := tx.ExecContext(ctx, update, amount, userID, amount)
	if err != nil {
		return false, fmt.Errorf("debit credits: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("debit rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if err := insertJournal(ctx, tx, newTransNo("SPEND"), userID, models.TransGeneration, -amount, memo); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit debit: %w", err)
	}
	return true, nil
}

func (l *MySQL) Refund(ctx context.Context, userID string, amount int, memo string) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin refund: %w", err)
	}
	defer tx.Rollback()

	const update = `UPDATE customers SET credits_balance = credits_balance + ?, updated_at = NOW() WHERE id = ?`
	if _, err := tx.ExecContext(ctx, update, amount, userID); err != nil {
		return fmt.Errorf("refund credits: %w", err)
	}
	if err := insertJournal(ctx, tx, newTransNo("REFUND"), userID, models.TransRefund, amount, memo); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit refund: %w", err)
	}
	return nil
}

func (l *MySQL) Grant(ctx context.Context, e Entry) (bool, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin grant: %w", err)
	}
	defer tx.Rollback()

	if err := insertJournal(ctx, tx, e.TransNo, e.UserID, e.TransType, e.Credits, e.Description); err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
			return false, nil
		}
		return false, err
	}

	const upsert = `
INSERT INTO customers (id, credits_balance) VALUES (?, ?)
ON DUPLICATE KEY UPDATE credits_balance = credits_balance + VALUES(credits_balance), updated_at = NOW()`
	if _, err := tx.ExecContext(ctx, upsert, e.UserID, e.Credits); err != nil {
		return false, fmt.Errorf("grant credits: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit grant: %w", err)
	}
	return true, nil
}

func (l *MySQL) Journal(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	query := `
SELECT id, trans_no, user_id, trans_type, credits, COALESCE(description, ''), created_at
FROM credits WHERE user_id = ? ORDER BY id DESC`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read credits journal: %w", err)
	}
	defer rows.Close()

	var out []models.CreditTransaction
	for rows.Next() {
		var (
			tx        models.CreditTransaction
			transType string
		)
		if err := rows.Scan(&tx.ID, &tx.TransNo, &tx.UserID, &transType, &tx.Credits, &tx.Description, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan credits journal: %w", err)
		}
		tx.TransType = models.TransType(transType)
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read credits journal: %w", err)
	}
	slices.Reverse(out)
	return out, nil
}

func insertJournal(ctx context.Context, tx *sql.Tx, transNo, userID string, transType models.TransType, credits int, description string) error {
	const query = `
INSERT INTO credits (trans_no, user_id, trans_type, credits, description)
VALUES (?, ?, ?, ?, NULLIF(?, ''))`
	if _, err := tx.ExecContext(ctx, query, transNo, userID, string(transType), credits, description); err != nil {
		return fmt.Errorf("insert credits journal: %w", err)
	}
	return nil
}
