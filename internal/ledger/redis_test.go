package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/ImageForge/internal/models"
)

func newRedisLedger(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedis(client), srv
}

func TestRedisBalanceMissingIsZero(t *testing.T) {
	l, _ := newRedisLedger(t)
	balance, err := l.Balance(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestRedisGrantIsIdempotent(t *testing.T) {
	l, _ := newRedisLedger(t)
	ctx := context.Background()
	entry := Entry{TransNo: "STRIPE_cs_1", UserID: "user-1", TransType: models.TransPurchase, Credits: 100, Description: "Pro plan"}

	applied, err := l.Grant(ctx, entry)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = l.Grant(ctx, entry)
	require.NoError(t, err)
	assert.False(t, applied)

	balance, err := l.Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 100, balance)
}

func TestRedisDebitAndRefund(t *testing.T) {
	l, _ := newRedisLedger(t)
	ctx := context.Background()
	_, err := l.Grant(ctx, Entry{TransNo: "g1", UserID: "user-1", TransType: models.TransSignupBonus, Credits: 15})
	require.NoError(t, err)

	ok, err := l.Debit(ctx, "user-1", 10, "AI image generation")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Debit(ctx, "user-1", 10, "AI image generation")
	require.NoError(t, err)
	assert.False(t, ok)

	balance, err := l.Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 5, balance)

	require.NoError(t, l.Refund(ctx, "user-1", 10, "generation failed"))
	balance, err = l.Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 15, balance)

	journal, err := l.Journal(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, journal, 3)
	assert.Equal(t, models.TransSignupBonus, journal[0].TransType)
	assert.Equal(t, -10, journal[1].Credits)
	assert.Equal(t, models.TransRefund, journal[2].TransType)

	latest, err := l.Journal(ctx, "user-1", 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, models.TransGeneration, latest[0].TransType)
	assert.Equal(t, models.TransRefund, latest[1].TransType)
}

func TestRedisConcurrentDebitsNeverOverspend(t *testing.T) {
	l, _ := newRedisLedger(t)
	ctx := context.Background()
	_, err := l.Grant(ctx, Entry{TransNo: "g1", UserID: "user-1", TransType: models.TransPurchase, Credits: 50})
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Debit(ctx, "user-1", 10, "AI image generation")
			if err == nil && ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, wins)
	balance, err := l.Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestSignupBonusTransNo(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, "SIGNUP_BONUS_1700000000123_0f8e2c1a", SignupBonusTransNo("0f8e2c1a-77aa-4b2b-9a51-3b7b6f0c8d11", at))
	assert.Equal(t, "SIGNUP_BONUS_1700000000123_abc", SignupBonusTransNo("abc", at))
}
