// Package ledger keeps per-user credit balances and their journal.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/digkill/ImageForge/internal/models"
)

// Entry is a credit addition. TransNo makes grants idempotent.
type Entry struct {
	TransNo     string
	UserID      string
	TransType   models.TransType
	Credits     int
	Description string
}

// Ledger is the credit store used by the generation pipeline and billing.
type Ledger interface {
	Balance(ctx context.Context, userID string) (int, error)
	// Debit subtracts amount only when the balance covers it; false means
	// the balance was insufficient and nothing changed.
	Debit(ctx context.Context, userID string, amount int, memo string) (bool, error)
	Refund(ctx context.Context, userID string, amount int, memo string) error
	// Grant applies e once; a repeated TransNo returns false.
	Grant(ctx context.Context, e Entry) (bool, error)
	// Journal returns the user's latest limit entries, oldest first. A limit
	// of zero returns the whole journal.
	Journal(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error)
}

// SignupBonusTransNo builds the journal number of a signup bonus.
func SignupBonusTransNo(userID string, at time.Time) string {
	short := userID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("SIGNUP_BONUS_%d_%s", at.UnixMilli(), short)
}

func newTransNo(prefix string) string {
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), uuid.NewString()[:8])
}
