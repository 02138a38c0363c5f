package accountrepository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/superbrain63/superbrain-ai/internal/domain"
	"github.com/superbrain63/superbrain-ai/internal/reporting"
)

const maxRedisTxAttempts = 100

const (
	fieldTier        = "tier"
	fieldUsageCount  = "usage_count"
	fieldPeriodStart = "period_start"
)

// Redis stores each account as a hash and serializes updates with WATCH/MULTI
type Redis struct {
	client  redis.UniversalClient
	prefix  string
	tracer  trace.Tracer
	nowFunc func() time.Time
}

func NewRedis(client redis.UniversalClient, prefix string, nowFunc func() time.Time) *Redis {
	tracer := otel.Tracer("superbrain/accountrepository/redis")
	return &Redis{
		client:  client,
		prefix:  prefix,
		tracer:  tracer,
		nowFunc: nowFunc,
	}
}

func (r *Redis) key(userID string) string {
	return fmt.Sprintf("%s:account:%s", r.prefix, userID)
}

func encodeAccount(account domain.Account) map[string]any {
	periodStart := ""
	if !account.PeriodStart.IsZero() {
		periodStart = account.PeriodStart.UTC().Format(time.RFC3339Nano)
	}
	return map[string]any{
		fieldTier:        string(account.Tier),
		fieldUsageCount:  strconv.FormatInt(account.UsageCount, 10),
		fieldPeriodStart: periodStart,
	}
}

func decodeAccount(userID string, fields map[string]string) (domain.Account, error) {
	usageCount, err := strconv.ParseInt(fields[fieldUsageCount], 10, 64)
	if err != nil {
		return domain.Account{}, fmt.Errorf("%w: unreadable usage count for user %q", domain.ErrCorruptState, userID)
	}

	var periodStart time.Time
	if raw := fields[fieldPeriodStart]; raw != "" {
		periodStart, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return domain.Account{}, fmt.Errorf("%w: unreadable period start for user %q", domain.ErrCorruptState, userID)
		}
	}

	return domain.Account{
		UserID:      userID,
		Tier:        domain.Tier(fields[fieldTier]),
		UsageCount:  usageCount,
		PeriodStart: periodStart,
	}, nil
}

func (r *Redis) GetAccount(ctx context.Context, userID string) (domain.Account, error) {
	ctx, span := r.tracer.Start(ctx, "Redis.GetAccount")
	defer span.End()

	fields, err := r.client.HGetAll(ctx, r.key(userID)).Result()
	if err != nil {
		err := fmt.Errorf("failed to get account for user %q: %w", userID, err)
		reporting.Report(ctx, err)
		return domain.Account{}, err
	}
	if len(fields) == 0 {
		return domain.Account{}, domain.ErrAccountNotFound
	}

	return decodeAccount(userID, fields)
}

func (r *Redis) UpdateAccount(ctx context.Context, userID string, update UpdateFunc) (domain.Account, error) {
	ctx, span := r.tracer.Start(ctx, "Redis.UpdateAccount")
	defer span.End()

	if userID == "" {
		err := fmt.Errorf("userID is empty")
		reporting.Report(ctx, err)
		return domain.Account{}, err
	}

	key := r.key(userID)

	var current, next domain.Account
	txf := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to read account: %w", err)
		}

		created := len(fields) == 0
		if created {
			current = domain.NewAccount(userID, r.nowFunc())
		} else {
			current, err = decodeAccount(userID, fields)
			if err != nil {
				return err
			}
		}

		next, err = update(current)
		if err != nil {
			return err
		}
		if next.UserID != userID {
			return fmt.Errorf("update changed user id from %q to %q", userID, next.UserID)
		}

		if !created && next.Equal(current) {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, encodeAccount(next))
			return nil
		})
		return err
	}

	for attempt := 1; attempt <= maxRedisTxAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			// Another writer touched the account, try again with fresh state
			continue
		}
		span.SetAttributes(attribute.Int("redis.attempts", attempt))
		if err != nil {
			return current, err
		}
		return next, nil
	}

	err := fmt.Errorf("%w: gave up updating account for user %q after %d attempts", domain.ErrTemporarilyUnavailable, userID, maxRedisTxAttempts)
	reporting.Report(ctx, err)
	return current, err
}

func (r *Redis) PutAccount(ctx context.Context, account domain.Account) (domain.Account, error) {
	ctx, span := r.tracer.Start(ctx, "Redis.PutAccount")
	defer span.End()

	if account.UserID == "" {
		err := fmt.Errorf("userID is empty")
		reporting.Report(ctx, err)
		return domain.Account{}, err
	}

	err := r.client.HSet(ctx, r.key(account.UserID), encodeAccount(account)).Err()
	if err != nil {
		err := fmt.Errorf("failed to put account for user %q: %w", account.UserID, err)
		reporting.Report(ctx, err)
		return domain.Account{}, err
	}

	return account, nil
}

var _ AccountRepository = (*Redis)(nil)
