package roundup

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealcast/internal/format"
	"dealcast/internal/models"
	"dealcast/internal/source"
)

func weekDeals(now time.Time) []models.Deal {
	orig := 12000.0
	return []models.Deal{
		{ID: "a", Brand: "Rolex", Model: "Submariner", Price: 8500, OriginalPrice: &orig,
			Score: 93, Category: "diver", URL: "https://deals.example/a", FoundAt: now.Add(-24 * time.Hour)},
		{ID: "b", Brand: "Omega", Model: "Speedmaster", Price: 4200,
			Score: 80, Category: "chronograph", URL: "https://deals.example/b", FoundAt: now.Add(-48 * time.Hour)},
		{ID: "c", Brand: "Seiko", Model: "SKX007", Price: 240,
			Score: 55, Category: "diver", FoundAt: now.Add(-3 * 24 * time.Hour)},
		{ID: "stale", Brand: "Tudor", Model: "BB58", Price: 3100,
			Score: 99, Category: "diver", FoundAt: now.Add(-9 * 24 * time.Hour)},
	}
}

func fixedNow() time.Time {
	return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
}

func newTestComposer(src source.Source, cfg Config) *Composer {
	c := New(src, cfg)
	c.now = fixedNow
	return c
}

func TestComposePlan(t *testing.T) {
	t.Parallel()

	now := fixedNow()
	c := newTestComposer(source.NewStatic(weekDeals(now)...), Config{TopN: 2})

	plan, err := c.Compose(context.Background())
	require.NoError(t, err)

	// Opener + 2 deal segments + category breakdown + closer.
	require.Len(t, plan.Segments, 5)

	opener := plan.Segments[0].Text
	assert.Contains(t, opener, "3 deals", "deals outside the window are excluded")
	assert.Contains(t, opener, "29% off", "opener carries the best discount")

	first := plan.Segments[1].Text
	assert.Contains(t, first, "1. Rolex Submariner")
	assert.Contains(t, first, "$8,500")
	assert.Contains(t, first, "(29% off)")
	assert.Contains(t, first, "https://deals.example/a")

	assert.Contains(t, plan.Segments[2].Text, "2. Omega Speedmaster")

	breakdown := plan.Segments[3].Text
	assert.Contains(t, breakdown, "diver ×2")
	assert.Contains(t, breakdown, "chronograph ×1")
}

func TestComposePlanIDStablePerWeek(t *testing.T) {
	t.Parallel()

	c := newTestComposer(source.NewStatic(), Config{})
	plan1, err := c.Compose(context.Background())
	require.NoError(t, err)
	plan2, err := c.Compose(context.Background())
	require.NoError(t, err)
	assert.Equal(t, plan1.ID, plan2.ID)
	assert.Equal(t, "roundup-2026-W36", plan1.ID)
}

func TestComposeEmptyWindow(t *testing.T) {
	t.Parallel()

	c := newTestComposer(source.NewStatic(), Config{})
	plan, err := c.Compose(context.Background())
	require.NoError(t, err)
	assert.Empty(t, plan.Segments)
	assert.NotEmpty(t, plan.ID)
}

func TestComposeSkipsBreakdownForSingleCategory(t *testing.T) {
	t.Parallel()

	now := fixedNow()
	deals := []models.Deal{
		{ID: "a", Brand: "Rolex", Model: "Submariner", Price: 8500, Score: 93,
			Category: "diver", FoundAt: now.Add(-time.Hour)},
		{ID: "b", Brand: "Seiko", Model: "SKX007", Price: 240, Score: 55,
			Category: "diver", FoundAt: now.Add(-time.Hour)},
	}
	c := newTestComposer(source.NewStatic(deals...), Config{TopN: 5})

	plan, err := c.Compose(context.Background())
	require.NoError(t, err)
	// Opener + 2 deals + closer, no breakdown.
	require.Len(t, plan.Segments, 4)
	for _, seg := range plan.Segments {
		assert.NotContains(t, seg.Text, "By category")
	}
}

func TestComposeSegmentsRespectLimit(t *testing.T) {
	t.Parallel()

	now := fixedNow()
	deals := make([]models.Deal, 0, 6)
	for i := 0; i < 6; i++ {
		deals = append(deals, models.Deal{
			ID:      fmt.Sprintf("d%d", i),
			Brand:   "Grand Seiko",
			Model:   "Spring Drive Snowflake SBGA211 limited anniversary edition with extra bracelet",
			Price:   5800,
			Score:   90 - float64(i),
			URL:     "https://deals.example/very/long/path/" + fmt.Sprint(i),
			FoundAt: now.Add(-time.Hour),
		})
	}
	c := newTestComposer(source.NewStatic(deals...), Config{TopN: 6, CharLimit: 120})

	plan, err := c.Compose(context.Background())
	require.NoError(t, err)
	for i, seg := range plan.Segments {
		assert.LessOrEqual(t, format.RuneLen(seg.Text), 120, "segment %d over limit", i)
	}
}
