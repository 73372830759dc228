// AngelaMos | 2026
// postgres_store.go

package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/viralforge/forge/internal/core"
	"github.com/viralforge/forge/internal/entitlements"
)

// SQL functions installed by the migrations. Keeping the write logic in the
// database lets PostgresStore and SupabaseStore share one implementation.
const (
	fnIncrementUsage        = "increment_usage"
	fnIncrementUsageIfBelow = "increment_usage_if_below"
	fnGrantUsageBonus       = "grant_usage_bonus"
	fnSetUsagePlan          = "set_usage_plan"
	fnSetUsageComp          = "set_usage_comp"
	fnResetUsage            = "reset_usage"
	fnResetDueUsage         = "reset_due_usage"
)

const pgInvalidTextRepresentation = "22P02"

// PostgresStore keeps usage records in Postgres through sqlx.
type PostgresStore struct {
	db core.DBTX
}

func NewPostgresStore(db core.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

type recordRow struct {
	UserID       string     `db:"user_id"`
	Plan         string     `db:"plan"`
	UsageResetAt time.Time  `db:"usage_reset_at"`
	CompedUntil  *time.Time `db:"comped_until"`
	Feature      *string    `db:"feature"`
	Used         *int64     `db:"used"`
	Bonus        *int64     `db:"bonus"`
}

func (s *PostgresStore) FetchUsageRecord(
	ctx context.Context,
	userID string,
) (*entitlements.UsageRecord, error) {
	query := `
		SELECT r.user_id, r.plan, r.usage_reset_at, r.comped_until,
		       c.feature, c.used, c.bonus
		FROM usage_records r
		LEFT JOIN usage_counters c ON c.user_id = r.user_id
		WHERE r.user_id = $1`

	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("fetch usage record: %w", mapPgError(err))
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("fetch usage record: %w", entitlements.ErrRecordNotFound)
	}

	first := rows[0]
	record := &entitlements.UsageRecord{
		UserID:       first.UserID,
		Plan:         entitlements.PlanID(first.Plan),
		Used:         map[entitlements.Feature]int64{},
		Bonus:        map[entitlements.Feature]int64{},
		UsageResetAt: first.UsageResetAt.UTC(),
	}
	if first.CompedUntil != nil {
		until := first.CompedUntil.UTC()
		record.CompedUntil = &until
	}

	for _, row := range rows {
		if row.Feature == nil {
			continue
		}
		feature := entitlements.Feature(*row.Feature)
		if row.Used != nil {
			record.Used[feature] = *row.Used
		}
		if row.Bonus != nil && *row.Bonus > 0 {
			record.Bonus[feature] = *row.Bonus
		}
	}

	return record, nil
}

func (s *PostgresStore) IncrementUsage(
	ctx context.Context,
	userID string,
	feature entitlements.Feature,
) error {
	query := `SELECT ` + fnIncrementUsage + `($1, $2)`

	var used int64
	if err := s.db.GetContext(ctx, &used, query, userID, string(feature)); err != nil {
		return fmt.Errorf("increment usage: %w", mapPgError(err))
	}
	return nil
}

func (s *PostgresStore) IncrementIfBelow(
	ctx context.Context,
	userID string,
	feature entitlements.Feature,
	limit int64,
) (bool, error) {
	query := `SELECT ` + fnIncrementUsageIfBelow + `($1, $2, $3)`

	var ok bool
	if err := s.db.GetContext(ctx, &ok, query, userID, string(feature), limit); err != nil {
		return false, fmt.Errorf("conditional increment: %w", mapPgError(err))
	}
	return ok, nil
}

func (s *PostgresStore) ResetUsage(
	ctx context.Context,
	userID string,
	nextResetAt time.Time,
) error {
	query := `SELECT ` + fnResetUsage + `($1, $2)`

	var found bool
	if err := s.db.GetContext(ctx, &found, query, userID, nextResetAt.UTC()); err != nil {
		return fmt.Errorf("reset usage: %w", mapPgError(err))
	}
	if !found {
		return fmt.Errorf("reset usage: %w", entitlements.ErrRecordNotFound)
	}
	return nil
}

func (s *PostgresStore) SetPlan(
	ctx context.Context,
	userID string,
	plan entitlements.PlanID,
) error {
	query := `SELECT ` + fnSetUsagePlan + `($1, $2)`

	if _, err := s.db.ExecContext(ctx, query, userID, string(plan)); err != nil {
		return fmt.Errorf("set plan: %w", mapPgError(err))
	}
	return nil
}

func (s *PostgresStore) GrantBonus(
	ctx context.Context,
	userID string,
	feature entitlements.Feature,
	amount int64,
) error {
	query := `SELECT ` + fnGrantUsageBonus + `($1, $2, $3)`

	var bonus int64
	if err := s.db.GetContext(ctx, &bonus, query, userID, string(feature), amount); err != nil {
		return fmt.Errorf("grant bonus: %w", mapPgError(err))
	}
	return nil
}

func (s *PostgresStore) SetCompedUntil(
	ctx context.Context,
	userID string,
	until *time.Time,
) error {
	query := `SELECT ` + fnSetUsageComp + `($1, $2)`

	var arg any
	if until != nil {
		arg = until.UTC()
	}

	if _, err := s.db.ExecContext(ctx, query, userID, arg); err != nil {
		return fmt.Errorf("set comp: %w", mapPgError(err))
	}
	return nil
}

func (s *PostgresStore) ResetDue(ctx context.Context, now time.Time) (int, error) {
	query := `SELECT ` + fnResetDueUsage + `($1)`

	var n int
	if err := s.db.GetContext(ctx, &n, query, now.UTC()); err != nil {
		return 0, fmt.Errorf("reset due usage: %w", mapPgError(err))
	}
	return n, nil
}

// mapPgError turns a malformed user id into ErrInvalidInput.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgInvalidTextRepresentation {
		return fmt.Errorf("%w: %s", core.ErrInvalidInput, pgErr.Message)
	}
	return err
}

var (
	_ entitlements.RecordManager          = (*PostgresStore)(nil)
	_ entitlements.ConditionalIncrementer = (*PostgresStore)(nil)
)
