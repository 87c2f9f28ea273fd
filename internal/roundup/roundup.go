// Package roundup composes the weekly deal thread: an opener, one segment
// per top deal, an optional category breakdown and a closer. The composer
// only plans; it performs no network I/O and leaves publishing to the
// thread channel's chain run.
package roundup

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"dealcast/internal/format"
	"dealcast/internal/models"
	"dealcast/internal/orchestrator"
	"dealcast/internal/source"
)

const (
	defaultTopN   = 5
	defaultWindow = 7 * 24 * time.Hour
)

// Config tunes the composer.
type Config struct {
	TopN      int           // deals to feature, default 5
	Window    time.Duration // trailing window, default 7 days
	CharLimit int           // per-segment limit, default the thread channel's 280
}

type Composer struct {
	src    source.Source
	topN   int
	window time.Duration
	limit  int
	now    func() time.Time
}

func New(src source.Source, cfg Config) *Composer {
	c := &Composer{
		src:    src,
		topN:   cfg.TopN,
		window: cfg.Window,
		limit:  cfg.CharLimit,
		now:    time.Now,
	}
	if c.topN <= 0 {
		c.topN = defaultTopN
	}
	if c.window <= 0 {
		c.window = defaultWindow
	}
	if c.limit <= 0 {
		c.limit = format.MicroblogLimit
	}
	return c
}

// Compose plans the thread over the trailing window. An empty plan (no
// segments) means no deals qualified; callers skip publishing entirely.
func (c *Composer) Compose(ctx context.Context) (orchestrator.ThreadPlan, error) {
	now := c.now().UTC()
	plan := orchestrator.ThreadPlan{ID: planID(now)}

	deals, err := c.src.FetchWindow(ctx, now.Add(-c.window), 0)
	if err != nil {
		return plan, fmt.Errorf("fetch roundup window: %w", err)
	}
	if len(deals) == 0 {
		return plan, nil
	}

	top := deals
	if len(top) > c.topN {
		top = top[:c.topN]
	}

	plan.Segments = append(plan.Segments, c.segment(c.opener(deals)))
	for i, deal := range top {
		plan.Segments = append(plan.Segments, c.segment(c.dealLine(i+1, deal)))
	}
	if breakdown, ok := c.categoryBreakdown(deals); ok {
		plan.Segments = append(plan.Segments, c.segment(breakdown))
	}
	plan.Segments = append(plan.Segments, c.segment(c.closer()))
	return plan, nil
}

// planID is stable within an ISO week, so a re-triggered roundup dedups
// through the ledger instead of posting twice.
func planID(now time.Time) string {
	year, week := now.ISOWeek()
	return fmt.Sprintf("roundup-%d-W%02d", year, week)
}

func (c *Composer) segment(text string) format.Payload {
	if format.RuneLen(text) > c.limit {
		text = format.TruncRunes(text, c.limit)
	}
	return format.Payload{Text: text}
}

func (c *Composer) opener(deals []models.Deal) string {
	best := 0
	for _, d := range deals {
		if pct, ok := d.DiscountPercent(); ok && pct > best {
			best = pct
		}
	}
	s := fmt.Sprintf("📋 Weekly Roundup: %d deals crossed our desk this week.", len(deals))
	if best > 0 {
		s += fmt.Sprintf(" Best discount: %d%% off.", best)
	}
	return s + " Thread 🧵"
}

func (c *Composer) dealLine(rank int, d models.Deal) string {
	name := strings.TrimSpace(d.Brand + " " + d.Model)
	if name == "" {
		name = d.Title
	}
	s := fmt.Sprintf("%d. %s — %s", rank, name, format.Money(d.Price))
	if pct, ok := d.DiscountPercent(); ok {
		s += fmt.Sprintf(" (%d%% off)", pct)
	}
	if d.URL != "" {
		s += "\n" + d.URL
	}
	return s
}

// categoryBreakdown summarizes deal counts per category. Omitted when the
// week's deals all share one category.
func (c *Composer) categoryBreakdown(deals []models.Deal) (string, bool) {
	counts := make(map[string]int)
	for _, d := range deals {
		cat := strings.TrimSpace(d.Category)
		if cat == "" {
			cat = "other"
		}
		counts[cat]++
	}
	if len(counts) < 2 {
		return "", false
	}

	cats := make([]string, 0, len(counts))
	for cat := range counts {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool {
		if counts[cats[i]] != counts[cats[j]] {
			return counts[cats[i]] > counts[cats[j]]
		}
		return cats[i] < cats[j]
	})

	parts := make([]string, 0, len(cats))
	for _, cat := range cats {
		parts = append(parts, fmt.Sprintf("%s ×%d", cat, counts[cat]))
	}
	return "By category: " + strings.Join(parts, ", "), true
}

func (c *Composer) closer() string {
	return "That's the week. Follow for daily picks. #watchdeals #dealcast"
}
