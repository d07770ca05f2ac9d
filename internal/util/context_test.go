package util

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContextValues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))
	assert.Empty(t, RouteFromContext(ctx))
	assert.Empty(t, TargetFromContext(ctx))
	assert.True(t, StartTimeFromContext(ctx).IsZero())
	assert.Zero(t, ElapsedTime(ctx))

	start := time.Now().Add(-50 * time.Millisecond)
	ctx = ContextWithRequestID(ctx, "req-1")
	ctx = ContextWithRoute(ctx, "order_route")
	ctx = ContextWithTarget(ctx, "http://localhost:9001")
	ctx = ContextWithStartTime(ctx, start)

	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "order_route", RouteFromContext(ctx))
	assert.Equal(t, "http://localhost:9001", TargetFromContext(ctx))
	assert.Equal(t, start, StartTimeFromContext(ctx))
	assert.GreaterOrEqual(t, ElapsedTime(ctx), 50*time.Millisecond)
}
