// AngelaMos | 2026
// supabase_store.go

package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"

	"github.com/viralforge/forge/internal/core"
	"github.com/viralforge/forge/internal/entitlements"
)

const (
	tableUsageRecords = "usage_records"
	recordColumns     = "user_id,plan,usage_reset_at,comped_until,usage_counters(feature,used,bonus)"
)

// SupabaseStore talks to the same schema as PostgresStore through the
// Supabase REST API, using the service role key. Writes go through the
// SQL functions exposed as RPC endpoints.
//
// The client does not take a context, so cancellation is only checked
// before each call.
type SupabaseStore struct {
	client *supabase.Client
}

func NewSupabaseStore(client *supabase.Client) *SupabaseStore {
	return &SupabaseStore{client: client}
}

// NewSupabaseClient builds a service-role client for url.
func NewSupabaseClient(url, key string) (*supabase.Client, error) {
	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return client, nil
}

// Ping runs a cheap filtered read to prove the REST endpoint and key work.
func (s *SupabaseStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, _, err := s.client.From(tableUsageRecords).
		Select("user_id", "", false).
		Eq("user_id", uuid.Nil.String()).
		Execute()
	if err != nil {
		return fmt.Errorf("supabase ping failed: %w", err)
	}
	return nil
}

type supabaseCounter struct {
	Feature string `json:"feature"`
	Used    int64  `json:"used"`
	Bonus   int64  `json:"bonus"`
}

type supabaseRecord struct {
	UserID       string            `json:"user_id"`
	Plan         string            `json:"plan"`
	UsageResetAt time.Time         `json:"usage_reset_at"`
	CompedUntil  *time.Time        `json:"comped_until"`
	Counters     []supabaseCounter `json:"usage_counters"`
}

func (r supabaseRecord) toUsageRecord() *entitlements.UsageRecord {
	record := &entitlements.UsageRecord{
		UserID:       r.UserID,
		Plan:         entitlements.PlanID(r.Plan),
		Used:         make(map[entitlements.Feature]int64, len(r.Counters)),
		Bonus:        map[entitlements.Feature]int64{},
		UsageResetAt: r.UsageResetAt.UTC(),
	}
	if r.CompedUntil != nil {
		until := r.CompedUntil.UTC()
		record.CompedUntil = &until
	}
	for _, c := range r.Counters {
		feature := entitlements.Feature(c.Feature)
		record.Used[feature] = c.Used
		if c.Bonus > 0 {
			record.Bonus[feature] = c.Bonus
		}
	}
	return record
}

func (s *SupabaseStore) FetchUsageRecord(
	ctx context.Context,
	userID string,
) (*entitlements.UsageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch usage record: %w", err)
	}

	data, _, err := s.client.From(tableUsageRecords).
		Select(recordColumns, "", false).
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetch usage record: %w", err)
	}

	var rows []supabaseRecord
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode usage record: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("fetch usage record: %w", entitlements.ErrRecordNotFound)
	}

	return rows[0].toUsageRecord(), nil
}

func (s *SupabaseStore) IncrementUsage(
	ctx context.Context,
	userID string,
	feature entitlements.Feature,
) error {
	var used int64
	err := s.rpc(ctx, fnIncrementUsage, map[string]any{
		"p_user_id": userID,
		"p_feature": string(feature),
	}, &used)
	if err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	return nil
}

func (s *SupabaseStore) IncrementIfBelow(
	ctx context.Context,
	userID string,
	feature entitlements.Feature,
	limit int64,
) (bool, error) {
	var ok bool
	err := s.rpc(ctx, fnIncrementUsageIfBelow, map[string]any{
		"p_user_id": userID,
		"p_feature": string(feature),
		"p_limit":   limit,
	}, &ok)
	if err != nil {
		return false, fmt.Errorf("conditional increment: %w", err)
	}
	return ok, nil
}

func (s *SupabaseStore) ResetUsage(
	ctx context.Context,
	userID string,
	nextResetAt time.Time,
) error {
	var found bool
	err := s.rpc(ctx, fnResetUsage, map[string]any{
		"p_user_id":    userID,
		"p_next_reset": nextResetAt.UTC(),
	}, &found)
	if err != nil {
		return fmt.Errorf("reset usage: %w", err)
	}
	if !found {
		return fmt.Errorf("reset usage: %w", entitlements.ErrRecordNotFound)
	}
	return nil
}

func (s *SupabaseStore) SetPlan(
	ctx context.Context,
	userID string,
	plan entitlements.PlanID,
) error {
	var ok bool
	err := s.rpc(ctx, fnSetUsagePlan, map[string]any{
		"p_user_id": userID,
		"p_plan":    string(plan),
	}, &ok)
	if err != nil {
		return fmt.Errorf("set plan: %w", err)
	}
	return nil
}

func (s *SupabaseStore) GrantBonus(
	ctx context.Context,
	userID string,
	feature entitlements.Feature,
	amount int64,
) error {
	var bonus int64
	err := s.rpc(ctx, fnGrantUsageBonus, map[string]any{
		"p_user_id": userID,
		"p_feature": string(feature),
		"p_amount":  amount,
	}, &bonus)
	if err != nil {
		return fmt.Errorf("grant bonus: %w", err)
	}
	return nil
}

func (s *SupabaseStore) SetCompedUntil(
	ctx context.Context,
	userID string,
	until *time.Time,
) error {
	var arg any
	if until != nil {
		arg = until.UTC()
	}

	var ok bool
	err := s.rpc(ctx, fnSetUsageComp, map[string]any{
		"p_user_id": userID,
		"p_until":   arg,
	}, &ok)
	if err != nil {
		return fmt.Errorf("set comp: %w", err)
	}
	return nil
}

func (s *SupabaseStore) ResetDue(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := s.rpc(ctx, fnResetDueUsage, map[string]any{
		"p_now": now.UTC(),
	}, &n)
	if err != nil {
		return 0, fmt.Errorf("reset due usage: %w", err)
	}
	return n, nil
}

// postgrestError is the body PostgREST returns for failed calls.
type postgrestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *postgrestError) Error() string {
	return fmt.Sprintf("postgrest %s: %s", e.Code, e.Message)
}

// rpc calls a SQL function and decodes its scalar result into dest. The
// client hands back the raw body for successes and failures alike, so an
// object with a message is treated as an error.
func (s *SupabaseStore) rpc(
	ctx context.Context,
	name string,
	body map[string]any,
	dest any,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw := strings.TrimSpace(s.client.Rpc(name, "", body))
	if raw == "" {
		return fmt.Errorf("rpc %s: empty response", name)
	}

	if strings.HasPrefix(raw, "{") {
		var apiErr postgrestError
		if err := json.Unmarshal([]byte(raw), &apiErr); err == nil && apiErr.Message != "" {
			return fmt.Errorf("rpc %s: %w", name, classifyPostgrestError(&apiErr))
		}
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("rpc %s: decode %q: %w", name, raw, err)
	}
	return nil
}

func classifyPostgrestError(apiErr *postgrestError) error {
	if apiErr.Code == pgInvalidTextRepresentation {
		return errors.Join(core.ErrInvalidInput, apiErr)
	}
	return apiErr
}

var (
	_ entitlements.RecordManager          = (*SupabaseStore)(nil)
	_ entitlements.ConditionalIncrementer = (*SupabaseStore)(nil)
)
