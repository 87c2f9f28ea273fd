package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"dealcast/internal/models"
	"dealcast/pkg/logx"
)

func openTestLedger(t *testing.T, driver string) Ledger {
	t.Helper()
	cfg := Config{Driver: driver, Path: filepath.Join(t.TempDir(), "ledger.db")}
	l, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("Open(%s) error: %v", driver, err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLedgerDrivers(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"file", "sqlite"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			l := openTestLedger(t, driver)

			ok, err := l.IsPosted(ctx, "d1", models.ChannelMicroblog)
			if err != nil {
				t.Fatalf("IsPosted error: %v", err)
			}
			if ok {
				t.Fatal("fresh ledger reports d1 as posted")
			}

			rec := models.PostRecord{
				ItemID:       "d1",
				Channel:      models.ChannelMicroblog,
				RemotePostID: "r1",
				PostedAt:     time.Now(),
				Status:       models.PostSucceeded,
			}
			if err := l.RecordPosted(ctx, rec); err != nil {
				t.Fatalf("RecordPosted error: %v", err)
			}

			ok, err = l.IsPosted(ctx, "d1", models.ChannelMicroblog)
			if err != nil || !ok {
				t.Fatalf("IsPosted = (%v, %v), want (true, nil)", ok, err)
			}

			// Same item on another channel is independent.
			ok, _ = l.IsPosted(ctx, "d1", models.ChannelChatBot)
			if ok {
				t.Fatal("d1 reported posted on chatbot without a record")
			}

			// Re-recording the same success must not double-count.
			if err := l.RecordPosted(ctx, rec); err != nil {
				t.Fatalf("duplicate RecordPosted error: %v", err)
			}
			n, err := l.RecentCount(ctx, models.ChannelMicroblog, 24*time.Hour)
			if err != nil {
				t.Fatalf("RecentCount error: %v", err)
			}
			if n != 1 {
				t.Fatalf("RecentCount = %d, want 1", n)
			}
		})
	}
}

func TestLedgerRecentCountWindow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := openTestLedger(t, "file")

	old := models.PostRecord{
		ItemID:   "old",
		Channel:  models.ChannelMediaGraph,
		PostedAt: time.Now().Add(-48 * time.Hour),
		Status:   models.PostSucceeded,
	}
	fresh := models.PostRecord{
		ItemID:   "fresh",
		Channel:  models.ChannelMediaGraph,
		PostedAt: time.Now().Add(-time.Hour),
		Status:   models.PostSucceeded,
	}
	for _, r := range []models.PostRecord{old, fresh} {
		if err := l.RecordPosted(ctx, r); err != nil {
			t.Fatalf("RecordPosted error: %v", err)
		}
	}

	n, err := l.RecentCount(ctx, models.ChannelMediaGraph, 24*time.Hour)
	if err != nil {
		t.Fatalf("RecentCount error: %v", err)
	}
	if n != 1 {
		t.Fatalf("RecentCount(24h) = %d, want 1", n)
	}
	n, _ = l.RecentCount(ctx, models.ChannelMediaGraph, 72*time.Hour)
	if n != 2 {
		t.Fatalf("RecentCount(72h) = %d, want 2", n)
	}
}

func TestLedgerFailedDoesNotDedup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := openTestLedger(t, "sqlite")

	rec := models.PostRecord{
		ItemID:   "d2",
		Channel:  models.ChannelMicroblog,
		PostedAt: time.Now(),
		Status:   models.PostFailed,
	}
	if err := l.RecordPosted(ctx, rec); err != nil {
		t.Fatalf("RecordPosted error: %v", err)
	}
	ok, err := l.IsPosted(ctx, "d2", models.ChannelMicroblog)
	if err != nil {
		t.Fatalf("IsPosted error: %v", err)
	}
	if ok {
		t.Fatal("failed record must not mark item as posted")
	}
	n, _ := l.RecentCount(ctx, models.ChannelMicroblog, 24*time.Hour)
	if n != 0 {
		t.Fatalf("failed record counted toward rate window: %d", n)
	}
}

func TestFileLedgerReplay(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	cfg := Config{Driver: "file", Path: filepath.Join(dir, "ledger.jsonl")}

	l, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	rec := models.PostRecord{
		ItemID:       "d3",
		Channel:      models.ChannelChatBot,
		RemotePostID: "m9",
		PostedAt:     time.Now(),
		Status:       models.PostSucceeded,
	}
	if err := l.RecordPosted(ctx, rec); err != nil {
		t.Fatalf("RecordPosted error: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	// Reopen and verify the replayed index.
	l2, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer l2.Close()
	ok, err := l2.IsPosted(ctx, "d3", models.ChannelChatBot)
	if err != nil || !ok {
		t.Fatalf("IsPosted after replay = (%v, %v), want (true, nil)", ok, err)
	}
	st, err := l2.Stats(ctx, models.ChannelChatBot)
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if st.Total != 1 || st.Last24h != 1 || st.LastPosted.IsZero() {
		t.Fatalf("unexpected stats after replay: %+v", st)
	}
}

func TestLedgerFailsClosed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := openTestLedger(t, "file")
	if err := l.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	if _, err := l.IsPosted(ctx, "x", models.ChannelMicroblog); !errors.Is(err, ErrLedgerUnavailable) {
		t.Fatalf("IsPosted after close = %v, want ErrLedgerUnavailable", err)
	}
	if _, err := l.RecentCount(ctx, models.ChannelMicroblog, time.Hour); !errors.Is(err, ErrLedgerUnavailable) {
		t.Fatalf("RecentCount after close = %v, want ErrLedgerUnavailable", err)
	}
}
