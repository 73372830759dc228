// AngelaMos | 2026
// telemetry_test.go

package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viralforge/forge/internal/config"
	"github.com/viralforge/forge/internal/core"
)

func TestTelemetryDisabledStillCorrelates(t *testing.T) {
	ctx := context.Background()

	tel, err := core.NewTelemetry(ctx, config.OtelConfig{ServiceName: "forge"}, config.AppConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	assert.False(t, tel.Exporting())
	assert.Empty(t, core.TraceIDFromContext(ctx))

	spanCtx, span := tel.Named("test").Start(ctx, "op")
	defer span.End()

	assert.Len(t, core.TraceIDFromContext(spanCtx), 32)
}

func TestTelemetryNilIsSafe(t *testing.T) {
	var tel *core.Telemetry

	assert.False(t, tel.Exporting())
	assert.NotNil(t, tel.Named("test"))
	assert.NoError(t, tel.Shutdown(context.Background()))
}
