// AngelaMos | 2026
// main_test.go

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viralforge/forge/internal/auth"
	"github.com/viralforge/forge/internal/config"
	"github.com/viralforge/forge/internal/entitlements"
	"github.com/viralforge/forge/internal/usage"
)

const testSecret = "cli-test-secret-that-is-long-enough-000"

// execute runs the root command with args. Commands share package-level
// flag state, so these tests do not run in parallel.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		configPath = ""
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func memoryEnv(t *testing.T) {
	t.Helper()
	t.Setenv("USAGE_STORE", config.UsageStoreMemory)
	t.Setenv("SUPABASE_JWT_SECRET", testSecret)
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("REDIS_URL", "")
	t.Setenv("LOG_LEVEL", "error")
}

func TestPlansPrintJSON(t *testing.T) {
	out, err := execute(t, "plans", "print", "--format", "json")
	require.NoError(t, err)

	var list usage.PlanListResponse
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Equal(t, entitlements.PlanBusinessPro, list.TopTier)
	require.Len(t, list.Plans, 3)
	assert.Equal(t, entitlements.PlanFree, list.Plans[0].ID)
}

func TestPlansPrintYAMLValidates(t *testing.T) {
	out, err := execute(t, "plans", "print", "--format", "yaml")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "plans.yaml")
	require.NoError(t, os.WriteFile(path, []byte(out), 0o600))

	out, err = execute(t, "plans", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "3 plans")
	assert.Contains(t, out, "top tier business_pro")
}

func TestPlansPrintUnknownFormat(t *testing.T) {
	_, err := execute(t, "plans", "print", "--format", "toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestPlansValidateRejectsBadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.yaml")
	require.NoError(t, os.WriteFile(path, []byte("plans:\n  - id: free\n    nmae: Free\n"), 0o600))

	_, err := execute(t, "plans", "validate", path)
	require.ErrorIs(t, err, entitlements.ErrInvalidCatalog)
}

func TestTokenMintsVerifiableToken(t *testing.T) {
	memoryEnv(t)
	const userID = "0b6f3c1e-5d4a-4c2b-9e8f-7a6b5c4d3e2f"

	out, err := execute(t, "token",
		"--user", userID,
		"--plan", "creator_pro",
		"--role", "admin",
	)
	require.NoError(t, err)

	cfg, err := config.Load("")
	require.NoError(t, err)
	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	require.NoError(t, err)

	claims, err := jwtManager.VerifyAccessToken(context.Background(), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "creator_pro", claims.Plan)
	assert.Equal(t, "admin", claims.Role)
}

func TestTokenRefusedInProduction(t *testing.T) {
	memoryEnv(t)
	t.Setenv("USAGE_STORE", config.UsageStorePostgres)
	t.Setenv("DATABASE_URL", "postgres://localhost/forge")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("OTEL_ENABLED", "false")

	_, err := execute(t, "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "production")
}

func TestUsageResetDueOnMemoryStore(t *testing.T) {
	memoryEnv(t)

	out, err := execute(t, "usage", "reset-due")
	require.NoError(t, err)
	assert.Equal(t, "reset 0 usage records\n", out)
}

func TestSetupLoggerLevels(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := setupLogger(config.LogConfig{Level: tt.level, Format: "json"})
			assert.True(t, logger.Enabled(context.Background(), tt.want))
			if tt.want > slog.LevelDebug {
				assert.False(t, logger.Enabled(context.Background(), tt.want-1))
			}
		})
	}
}
