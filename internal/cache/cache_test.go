package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/geraldfingburke/editorial-core/internal/config"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := config.Default()
	cfg.RedisURL = "redis://" + mr.Addr()
	return New(cfg, zerolog.Nop())
}

func TestGetSetRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", "v", time.Minute)
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	require.Equal(t, "v", got)
}

func TestGetMissingKey(t *testing.T) {
	c := newTestCache(t)
	_, ok := c.Get(context.Background(), "missing")
	require.False(t, ok)
}

func TestIncrementCounter(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.EqualValues(t, 1, c.IncrementCounter(ctx, "counter", time.Minute))
	require.EqualValues(t, 2, c.IncrementCounter(ctx, "counter", time.Minute))
}

func TestURLProcessedRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.False(t, c.IsURLProcessed(ctx, "https://example.com/a"))
	c.MarkURLProcessed(ctx, "https://example.com/a")
	require.True(t, c.IsURLProcessed(ctx, "https://example.com/a"))
}

func TestRecentTitlesTrimsToCapacity(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < recentTitlesCap+10; i++ {
		c.AddRecentTitle(ctx, "title")
	}
	require.Len(t, c.GetRecentTitles(ctx), recentTitlesCap)
}

func TestIsDuplicateTitleFuzzyMatch(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.AddRecentTitle(ctx, "الرئيس يعلن عن خطة اقتصادية جديدة لدعم الاستثمار")
	require.True(t, c.IsDuplicateTitle(ctx, "الرئيس يعلن خطة اقتصادية جديدة لدعم الاستثمار", 0))
	require.False(t, c.IsDuplicateTitle(ctx, "فريق كرة القدم يفوز بالبطولة المحلية", 0))
}

func TestGetJSONSetJSONRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	type payload struct {
		Name string `json:"name"`
	}
	c.SetJSON(ctx, "obj", payload{Name: "scout"}, time.Minute)

	var got payload
	require.True(t, c.GetJSON(ctx, "obj", &got))
	require.Equal(t, "scout", got.Name)
}
