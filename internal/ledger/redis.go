package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/digkill/ImageForge/internal/models"
)

const defaultRedisPrefix = "imageforge:credits"

// debitScript decrements KEYS[1] by ARGV[1] only when the balance covers it
// and appends ARGV[2] to the journal KEYS[2]. Returns -1 when insufficient.
var debitScript = redis.NewScript(`
local balance = tonumber(redis.call('GET', KEYS[1]) or '0')
local amount = tonumber(ARGV[1])
if balance < amount then
  return -1
end
local left = redis.call('DECRBY', KEYS[1], amount)
redis.call('RPUSH', KEYS[2], ARGV[2])
return left
`)

// grantScript applies a grant once per trans_no recorded in KEYS[3].
var grantScript = redis.NewScript(`
if redis.call('SADD', KEYS[3], ARGV[1]) == 0 then
  return 0
end
redis.call('INCRBY', KEYS[1], ARGV[2])
redis.call('RPUSH', KEYS[2], ARGV[3])
return 1
`)

// Redis keeps balances as integer keys and the journal as per-user lists.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client, prefix: defaultRedisPrefix}
}

func (l *Redis) balanceKey(userID string) string {
	return l.prefix + ":balance:" + userID
}

func (l *Redis) journalKey(userID string) string {
	return l.prefix + ":journal:" + userID
}

func (l *Redis) grantsKey() string {
	return l.prefix + ":grants"
}

func (l *Redis) Balance(ctx context.Context, userID string) (int, error) {
	balance, err := l.client.Get(ctx, l.balanceKey(userID)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("read credits balance: %w", err)
	}
	return balance, nil
}

func (l *Redis) Debit(ctx context.Context, userID string, amount int, memo string) (bool, error) {
	entry, err := journalEntry(newTransNo("SPEND"), userID, models.TransGeneration, -amount, memo)
	if err != nil {
		return false, err
	}
	left, err := debitScript.Run(ctx, l.client, []string{l.balanceKey(userID), l.journalKey(userID)}, amount, entry).Int64()
	if err != nil {
		return false, fmt.Errorf("debit credits: %w", err)
	}
	return left >= 0, nil
}

func (l *Redis) Refund(ctx context.Context, userID string, amount int, memo string) error {
	entry, err := journalEntry(newTransNo("REFUND"), userID, models.TransRefund, amount, memo)
	if err != nil {
		return err
	}
	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.IncrBy(ctx, l.balanceKey(userID), int64(amount))
		pipe.RPush(ctx, l.journalKey(userID), entry)
		return nil
	})
	if err != nil {
		return fmt.Errorf("refund credits: %w", err)
	}
	return nil
}

func (l *Redis) Grant(ctx context.Context, e Entry) (bool, error) {
	entry, err := journalEntry(e.TransNo, e.UserID, e.TransType, e.Credits, e.Description)
	if err != nil {
		return false, err
	}
	keys := []string{l.balanceKey(e.UserID), l.journalKey(e.UserID), l.grantsKey()}
	applied, err := grantScript.Run(ctx, l.client, keys, e.TransNo, e.Credits, entry).Int64()
	if err != nil {
		return false, fmt.Errorf("grant credits: %w", err)
	}
	return applied == 1, nil
}

func (l *Redis) Journal(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	var start int64
	if limit > 0 {
		start = -int64(limit)
	}
	raw, err := l.client.LRange(ctx, l.journalKey(userID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read credits journal: %w", err)
	}
	out := make([]models.CreditTransaction, 0, len(raw))
	for _, item := range raw {
		var tx models.CreditTransaction
		if err := json.Unmarshal([]byte(item), &tx); err != nil {
			return nil, fmt.Errorf("decode journal entry: %w", err)
		}
		out = append(out, tx)
	}
	return out, nil
}

func journalEntry(transNo, userID string, transType models.TransType, credits int, description string) (string, error) {
	b, err := json.Marshal(models.CreditTransaction{
		TransNo:     transNo,
		UserID:      userID,
		TransType:   transType,
		Credits:     credits,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("encode journal entry: %w", err)
	}
	return string(b), nil
}
