package ledger

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/ImageForge/internal/models"
)

func newMockLedger(t *testing.T) (*MySQL, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMySQL(db), mock
}

func TestMySQLBalance(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectQuery("SELECT credits_balance FROM customers").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"credits_balance"}).AddRow(42))
	mock.ExpectQuery("SELECT credits_balance FROM customers").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	balance, err := l.Balance(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 42, balance)

	balance, err = l.Balance(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Zero(t, balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLDebitWritesJournal(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE customers SET credits_balance = credits_balance -").
		WithArgs(10, "user-1", 10).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO credits").
		WithArgs(sqlmock.AnyArg(), "user-1", string(models.TransGeneration), -10, "AI image generation").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ok, err := l.Debit(context.Background(), "user-1", 10, "AI image generation")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLDebitInsufficient(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE customers SET credits_balance = credits_balance -").
		WithArgs(10, "user-1", 10).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	ok, err := l.Debit(context.Background(), "user-1", 10, "AI image generation")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLDebitError(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE customers").WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectRollback()

	ok, err := l.Debit(context.Background(), "user-1", 10, "AI image generation")
	require.Error(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLRefund(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE customers SET credits_balance = credits_balance \\+").
		WithArgs(10, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO credits").
		WithArgs(sqlmock.AnyArg(), "user-1", string(models.TransRefund), 10, "refund").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, l.Refund(context.Background(), "user-1", 10, "refund"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLGrant(t *testing.T) {
	l, mock := newMockLedger(t)
	entry := Entry{TransNo: "SIGNUP_BONUS_1_abcdefgh", UserID: "abcdefgh-1234", TransType: models.TransSignupBonus, Credits: 50, Description: "signup bonus"}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO credits").
		WithArgs(entry.TransNo, entry.UserID, string(models.TransSignupBonus), 50, "signup bonus").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO customers").
		WithArgs(entry.UserID, 50).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := l.Grant(context.Background(), entry)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLGrantDuplicate(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO credits").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	applied, err := l.Grant(context.Background(), Entry{TransNo: "STRIPE_cs_1", UserID: "u", TransType: models.TransPurchase, Credits: 100})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLJournalOldestFirst(t *testing.T) {
	l, mock := newMockLedger(t)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id, trans_no, user_id, trans_type, credits").
		WithArgs("user-1", 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "trans_no", "user_id", "trans_type", "credits", "description", "created_at"}).
			AddRow(7, "REFUND_2", "user-1", "refund", 10, "Refund: AI image generation: dall-e-3", at).
			AddRow(6, "SPEND_1", "user-1", "generation", -10, "AI image generation: dall-e-3", at))

	journal, err := l.Journal(context.Background(), "user-1", 2)
	require.NoError(t, err)
	require.Len(t, journal, 2)
	assert.Equal(t, "SPEND_1", journal[0].TransNo)
	assert.Equal(t, models.TransGeneration, journal[0].TransType)
	assert.Equal(t, -10, journal[0].Credits)
	assert.Equal(t, models.TransRefund, journal[1].TransType)
	assert.NoError(t, mock.ExpectationsWereMet())
}
