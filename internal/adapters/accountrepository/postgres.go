package accountrepository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/superbrain63/superbrain-ai/internal/domain"
	"github.com/superbrain63/superbrain-ai/internal/reporting"
)

type Postgres struct {
	db      *sqlx.DB
	schema  string
	tracer  trace.Tracer
	nowFunc func() time.Time
}

func NewPostgres(db *sqlx.DB, schema string, nowFunc func() time.Time) *Postgres {
	tracer := otel.Tracer("superbrain/accountrepository/postgres")
	return &Postgres{
		db:      db,
		schema:  schema,
		tracer:  tracer,
		nowFunc: nowFunc,
	}
}

type dbAccount struct {
	UserID      string       `db:"user_id"`
	Tier        string       `db:"tier"`
	UsageCount  int64        `db:"usage_count"`
	PeriodStart sql.NullTime `db:"period_start"`
}

func (a dbAccount) toDomain() domain.Account {
	var periodStart time.Time
	if a.PeriodStart.Valid {
		periodStart = a.PeriodStart.Time
	}
	return domain.Account{
		UserID:      a.UserID,
		Tier:        domain.Tier(a.Tier),
		UsageCount:  a.UsageCount,
		PeriodStart: periodStart,
	}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func (p *Postgres) GetAccount(ctx context.Context, userID string) (domain.Account, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.GetAccount")
	defer span.End()

	var account dbAccount
	err := p.db.QueryRowxContext(
		ctx,
		fmt.Sprintf(
			`SELECT user_id, tier, usage_count, period_start FROM %s.accounts WHERE user_id = $1`,
			pq.QuoteIdentifier(p.schema),
		),
		userID,
	).StructScan(&account)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	if err != nil {
		err := fmt.Errorf("failed to get account for user %q: %w", userID, err)
		reporting.Report(ctx, err)
		return domain.Account{}, err
	}

	return account.toDomain(), nil
}

func (p *Postgres) UpdateAccount(ctx context.Context, userID string, update UpdateFunc) (domain.Account, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.UpdateAccount")
	defer span.End()

	if userID == "" {
		err := fmt.Errorf("userID is empty")
		reporting.Report(ctx, err)
		return domain.Account{}, err
	}

	now := p.nowFunc()

	txx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		err := fmt.Errorf("failed to start transaction: %w", err)
		reporting.Report(ctx, err)
		return domain.Account{}, err
	}
	defer txx.Rollback()

	fresh := domain.NewAccount(userID, now)
	_, err = txx.ExecContext(
		ctx,
		fmt.Sprintf(
			`INSERT INTO %s.accounts
			(user_id, tier, usage_count, period_start, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4, $4)
			ON CONFLICT (user_id) DO NOTHING`,
			pq.QuoteIdentifier(p.schema),
		),
		fresh.UserID,
		string(fresh.Tier),
		fresh.UsageCount,
		fresh.PeriodStart,
	)
	if err != nil {
		err := fmt.Errorf("failed to create account for user %q: %w", userID, err)
		reporting.Report(ctx, err)
		return domain.Account{}, err
	}

	// Row lock held until commit/rollback serializes concurrent updates of this account
	var stored dbAccount
	err = txx.QueryRowxContext(
		ctx,
		fmt.Sprintf(
			`SELECT user_id, tier, usage_count, period_start FROM %s.accounts WHERE user_id = $1 FOR UPDATE`,
			pq.QuoteIdentifier(p.schema),
		),
		userID,
	).StructScan(&stored)
	if err != nil {
		err := fmt.Errorf("failed to lock account for user %q: %w", userID, err)
		reporting.Report(ctx, err)
		return domain.Account{}, err
	}
	current := stored.toDomain()

	next, err := update(current)
	if err != nil {
		return current, err
	}
	if next.UserID != userID {
		err := fmt.Errorf("update changed user id from %q to %q", userID, next.UserID)
		reporting.Report(ctx, err)
		return current, err
	}

	if !next.Equal(current) {
		_, err = txx.ExecContext(
			ctx,
			fmt.Sprintf(
				`UPDATE %s.accounts
				SET tier = $2, usage_count = $3, period_start = $4, updated_at = $5
				WHERE user_id = $1`,
				pq.QuoteIdentifier(p.schema),
			),
			userID,
			string(next.Tier),
			next.UsageCount,
			nullTime(next.PeriodStart),
			now,
		)
		if err != nil {
			err := fmt.Errorf("failed to update account for user %q: %w", userID, err)
			reporting.Report(ctx, err)
			return current, err
		}
	}

	if next.Tier != current.Tier {
		span.SetAttributes(attribute.String("tier.from", string(current.Tier)), attribute.String("tier.to", string(next.Tier)))
		err = p.recordTierChange(ctx, txx, userID, current.Tier, next.Tier, now)
		if err != nil {
			return current, err
		}
	}

	if err := txx.Commit(); err != nil {
		err := fmt.Errorf("failed to commit account update for user %q: %w", userID, err)
		reporting.Report(ctx, err)
		return current, err
	}

	return next, nil
}

func (p *Postgres) recordTierChange(ctx context.Context, txx *sqlx.Tx, userID string, from, to domain.Tier, now time.Time) error {
	_, err := txx.ExecContext(
		ctx,
		fmt.Sprintf(
			`INSERT INTO %s.tier_changes (user_id, from_tier, to_tier, changed_at) VALUES ($1, $2, $3, $4)`,
			pq.QuoteIdentifier(p.schema),
		),
		userID,
		string(from),
		string(to),
		now,
	)
	if err != nil {
		err := fmt.Errorf("failed to record tier change for user %q: %w", userID, err)
		reporting.Report(ctx, err)
		return err
	}
	return nil
}

func (p *Postgres) PutAccount(ctx context.Context, account domain.Account) (domain.Account, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.PutAccount")
	defer span.End()

	if account.UserID == "" {
		err := fmt.Errorf("userID is empty")
		reporting.Report(ctx, err)
		return domain.Account{}, err
	}

	now := p.nowFunc()

	var stored dbAccount
	err := p.db.QueryRowxContext(
		ctx,
		fmt.Sprintf(
			`INSERT INTO %s.accounts
			(user_id, tier, usage_count, period_start, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
			ON CONFLICT (user_id)
			DO UPDATE SET
				tier = EXCLUDED.tier,
				usage_count = EXCLUDED.usage_count,
				period_start = EXCLUDED.period_start,
				updated_at = EXCLUDED.updated_at
			RETURNING user_id, tier, usage_count, period_start`,
			pq.QuoteIdentifier(p.schema),
		),
		account.UserID,
		string(account.Tier),
		account.UsageCount,
		nullTime(account.PeriodStart),
		now,
	).StructScan(&stored)
	if err != nil {
		err := fmt.Errorf("failed to put account for user %q: %w", account.UserID, err)
		reporting.Report(ctx, err)
		return domain.Account{}, err
	}

	return stored.toDomain(), nil
}

var _ AccountRepository = (*Postgres)(nil)
